// Package pipeline processes matched labels: claim, fetch, print, archive.
//
// Every step retries transient failures with jittered exponential backoff
// and records its completion on the match. A drive that fails leaves the
// label errored; the reconciliation loop re-drives it with Resume until
// MaxDrives is reached, after which the order is held and an alert raised.
package pipeline
