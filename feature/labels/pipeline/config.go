package pipeline

import "time"

// Config tunes the pipeline.
type Config struct {
	IncomingPrefix  string
	ProcessedPrefix string
	ErrorsPrefix    string

	// StepTimeout bounds one attempt of fetch, print or archive.
	StepTimeout time.Duration
	// StepAttempts is the attempt budget per step within one drive.
	StepAttempts int
	// InitialBackoff and MaxBackoff shape the jittered exponential delay.
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	// ClaimTTL is how long a claim stays fresh without progress.
	ClaimTTL time.Duration
	// MaxDrives is how often a match may be driven before a failure is terminal.
	MaxDrives int
}

func (c Config) withDefaults() Config {
	if c.IncomingPrefix == "" {
		c.IncomingPrefix = "incoming/"
	}
	if c.ProcessedPrefix == "" {
		c.ProcessedPrefix = "processed/"
	}
	if c.ErrorsPrefix == "" {
		c.ErrorsPrefix = "errors/"
	}
	if c.StepTimeout <= 0 {
		c.StepTimeout = 30 * time.Second
	}
	if c.StepAttempts <= 0 {
		c.StepAttempts = 4
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = 500 * time.Millisecond
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 10 * time.Second
	}
	if c.ClaimTTL <= 0 {
		c.ClaimTTL = 5 * time.Minute
	}
	if c.MaxDrives <= 0 {
		c.MaxDrives = 3
	}
	return c
}
