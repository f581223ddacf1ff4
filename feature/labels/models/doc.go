// Package models defines orders, label objects and matches, the transition
// tables that keep their states monotonic, and the error kinds shared by the
// store, the matcher and the pipeline.
//
// Label lifecycle:
//
//	incoming -> matched -> processing -> processed
//	                 \            \-> errored -> processing (retry)
//	                  \-> incoming (claim released)
//	incoming -> orphaned
//	errored, orphaned -> incoming (operator requeue)
//	errored, orphaned -> discarded (operator discard)
//
// Order lifecycle:
//
//	open -> matched -> shipped
//	open, matched -> unmatched-alerted -> open (operator reopen)
//	matched -> open (claim released)
package models
