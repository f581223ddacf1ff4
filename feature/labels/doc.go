// Package labels is the operator surface of the reconciliation engine.
//
// It lists and counts labels, shows match progress, serves label files,
// requeues or discards errored and orphaned labels and lets an operator
// trigger or preview a cycle. The engine itself lives in the subpackages.
package labels
