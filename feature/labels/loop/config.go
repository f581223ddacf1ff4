package loop

import "time"

// Config tunes the reconciliation loop.
type Config struct {
	IncomingPrefix string
	ErrorsPrefix   string

	// Interval is the time between scheduled cycles.
	Interval time.Duration
	// OrphanTimeout is how long a label may wait for its order.
	OrphanTimeout time.Duration
	// OrderGrace is how long an open order missing from the feed is kept.
	OrderGrace time.Duration
	// FeedTimeout bounds one order feed refresh.
	FeedTimeout time.Duration
	// PageSize is used for store listings.
	PageSize int
}

func (c Config) withDefaults() Config {
	if c.IncomingPrefix == "" {
		c.IncomingPrefix = "incoming/"
	}
	if c.ErrorsPrefix == "" {
		c.ErrorsPrefix = "errors/"
	}
	if c.Interval <= 0 {
		c.Interval = 5 * time.Minute
	}
	if c.OrphanTimeout <= 0 {
		c.OrphanTimeout = 24 * time.Hour
	}
	if c.OrderGrace < 0 {
		c.OrderGrace = 0
	}
	if c.FeedTimeout <= 0 {
		c.FeedTimeout = 2 * time.Minute
	}
	if c.PageSize <= 0 {
		c.PageSize = 200
	}
	return c
}
