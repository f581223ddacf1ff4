package redisclient

// Config holds configuration for the Redis connection.
type Config struct {
	// Addr is host:port. Empty disables every Redis backed component.
	Addr string `mapstructure:"addr" default:""`
	// Password is the AUTH password.
	Password string `mapstructure:"password" default:""`
	// DB selects the logical database.
	DB int `mapstructure:"db" default:"0"`
	// KeyPrefix namespaces every key written by the state store.
	KeyPrefix string `mapstructure:"key_prefix" default:"lm"`
	// AlertChannel is the Pub/Sub channel alerts are published on.
	AlertChannel string `mapstructure:"alert_channel" default:"label-alerts"`
}

// Enabled reports whether an address is configured.
func (c Config) Enabled() bool {
	return c.Addr != ""
}
