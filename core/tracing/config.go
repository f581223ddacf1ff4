package tracing

// Config holds configuration for OpenTelemetry tracing.
type Config struct {
	// ServiceName is reported as service.name.
	ServiceName string `mapstructure:"service_name" default:"label-matcher"`
	// JaegerEndpoint is the collector URL. Empty disables export.
	JaegerEndpoint string `mapstructure:"jaeger_endpoint" default:""`
	// SampleRatio is the fraction of root spans sampled.
	SampleRatio float64 `mapstructure:"sample_ratio" default:"1"`
}
