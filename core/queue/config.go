package queue

// Config holds configuration for the lmstfy job queue.
type Config struct {
	// Host is the lmstfy server host. Empty disables the queue.
	Host string `mapstructure:"host" default:""`
	// Port is the lmstfy HTTP port.
	Port int `mapstructure:"port" default:"7777"`
	// Namespace is the lmstfy namespace.
	Namespace string `mapstructure:"namespace" default:"labels"`
	// Token authenticates against the namespace.
	Token string `mapstructure:"token" default:""`
	// PrintQueue is the queue the print agent consumes.
	PrintQueue string `mapstructure:"print_queue" default:"print"`
	// TTLSeconds is how long an unconsumed job lives (0 keeps it forever).
	TTLSeconds uint32 `mapstructure:"ttl_seconds" default:"86400"`
	// Tries is how many times the agent may receive a job.
	Tries uint16 `mapstructure:"tries" default:"3"`
}
