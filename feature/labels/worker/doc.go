// Package worker runs pipeline jobs with bounded concurrency.
//
// The reconciliation loop dispatches into a buffered queue read by a fixed
// set of goroutines. Shutdown drains whatever is queued before returning.
package worker
