// Package broker wraps segmentio/kafka-go with a keyed JSON producer and a
// group consumer loop that commits only successfully handled messages.
//
// Producers carry print jobs and alerts; the consumer feeds storage events
// into label ingestion.
package broker
