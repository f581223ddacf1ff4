// Package queue publishes jobs to an lmstfy job queue. The warehouse print
// agent consumes the print queue; ttl and tries bound how long and how often a
// job is offered to it.
package queue
