package veracore

import "time"

// Config holds configuration for the VeraCore order feed.
type Config struct {
	// BaseURL is the public API root, e.g. https://host/VeraCore/Public.Api/api.
	// Empty disables the feed.
	BaseURL  string `mapstructure:"base_url" default:""`
	Username string `mapstructure:"username" default:""`
	Password string `mapstructure:"password" default:""`
	SystemID string `mapstructure:"system_id" default:""`

	// ReportName is the saved report listing open orders.
	ReportName string `mapstructure:"report_name" default:"Open Orders"`
	// OrderColumn is the report column holding the order id.
	OrderColumn string `mapstructure:"order_column" default:"OrderID"`

	// PollInterval and PollAttempts bound the wait for report generation.
	PollInterval time.Duration `mapstructure:"poll_interval" default:"2s"`
	PollAttempts int           `mapstructure:"poll_attempts" default:"30"`

	// RateLimit is the request rate allowed against the API, per second.
	RateLimit float64 `mapstructure:"rate_limit" default:"5"`
	RateBurst int     `mapstructure:"rate_burst" default:"5"`

	// Timeout bounds a single request; FetchTimeout the report download.
	Timeout      time.Duration `mapstructure:"timeout" default:"30s"`
	FetchTimeout time.Duration `mapstructure:"fetch_timeout" default:"90s"`
	// Retries is the number of retries for transport errors and 5xx responses.
	Retries int `mapstructure:"retries" default:"3"`
}

// Enabled reports whether the feed is configured.
func (c Config) Enabled() bool {
	return c.BaseURL != ""
}
