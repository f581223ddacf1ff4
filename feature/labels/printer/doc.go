// Package printer hands label content to the print service.
//
// Implementations publish to an lmstfy queue (Queue), a Kafka topic (Topic)
// or just the log (Log). Submission failures are transient so the pipeline
// retries them.
package printer
