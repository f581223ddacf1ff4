// Package config provides configuration management for the label matcher.
//
// Values come from environment variables, optionally seeded from a .env file.
// Every field declares its key with a mapstructure tag and its fallback with a
// default tag; nested sections map to underscore separated variables
// (labels.orphan_timeout -> LABELS_ORPHAN_TIMEOUT). Durations use Go syntax
// ("15m") and lists are comma separated.
//
// # Sections
//
//   - Server: HTTP port, API key, shutdown budget
//   - Storage: S3/MinIO credentials and the label bucket
//   - Database / Redis: state store backends
//   - Kafka / Queue: event ingestion, print submission and alert fan-out
//   - Tracing: Jaeger export
//   - Feed: VeraCore order feed credentials and report settings
//   - Labels: extraction pattern, timeouts, retry limits, worker pool size
//
// # Usage
//
//	cfg, err := config.LoadConfig(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Labels.OrphanTimeout)
package config
