// Package tracing wires OpenTelemetry with a Jaeger exporter. Reconciliation
// cycles and pipeline steps open spans through StartSpan; when no collector is
// configured the global no-op provider makes them free.
package tracing
