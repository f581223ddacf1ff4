// Package loop runs reconciliation cycles on a ticker or on demand.
//
// A cycle refreshes open orders from the feed, observes the incoming prefix,
// sweeps expired claims and failed matches, computes a plan and applies it:
// orphans and conflicts are parked and alerted, new matches go to the worker
// pool.
package loop
