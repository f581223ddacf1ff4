package broker

// Config holds configuration for the Kafka brokers.
type Config struct {
	// Brokers is a comma separated list of host:port seeds. Empty disables Kafka.
	Brokers []string `mapstructure:"brokers" default:""`
	// GroupID is the consumer group for the storage event topic.
	GroupID string `mapstructure:"group_id" default:"label-matcher"`
	// EventsTopic carries S3 style object-created notifications.
	EventsTopic string `mapstructure:"events_topic" default:""`
	// PrintTopic receives print jobs when the kafka printer is selected.
	PrintTopic string `mapstructure:"print_topic" default:"label-print-jobs"`
	// AlertTopic receives alerts. Empty disables the kafka alert sink.
	AlertTopic string `mapstructure:"alert_topic" default:""`
}

// Enabled reports whether any broker is configured.
func (c Config) Enabled() bool {
	for _, b := range c.Brokers {
		if b != "" {
			return true
		}
	}
	return false
}
