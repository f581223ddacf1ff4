// Package matcher decides which incoming labels can be paired with open
// orders.
//
// LoadSnapshot reads the current orders and labels from the store, Compute
// turns that snapshot into a Plan of new matches, conflicts and orphans, and
// PlanCache serves recent plans to preview endpoints without re-listing the
// store on every request.
//
//	snap, err := matcher.LoadSnapshot(ctx, st, 200, time.Now())
//	plan := matcher.Compute(snap, matcher.Options{OrphanTimeout: 24 * time.Hour})
package matcher
