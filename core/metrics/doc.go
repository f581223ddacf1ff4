// Package metrics declares the Prometheus instruments of the reconciler and
// exposes them on /metrics through Fiber's net/http adaptor.
package metrics
