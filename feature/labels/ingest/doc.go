// Package ingest records label objects found in the bucket.
//
// Three sources feed the same Ingestor: a listing of the incoming prefix run
// once per cycle, MinIO bucket notifications, and S3 event records read from
// Kafka. Push sources trigger a reconciliation cycle after each new label;
// the poll remains the safety net for anything they miss.
package ingest
