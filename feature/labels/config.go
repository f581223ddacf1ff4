package labels

import (
	"time"

	"label-matcher/feature/labels/extract"
)

// Config holds the reconciliation engine settings.
type Config struct {
	// Extract describes the filename convention for order ids.
	Extract extract.Config `mapstructure:"extract"`

	// IncomingPrefix is where new labels are dropped.
	IncomingPrefix string `mapstructure:"incoming_prefix" default:"incoming/"`
	// ProcessedPrefix receives labels after they are printed.
	ProcessedPrefix string `mapstructure:"processed_prefix" default:"processed/"`
	// ErrorsPrefix receives orphaned and terminally failed labels.
	ErrorsPrefix string `mapstructure:"errors_prefix" default:"errors/"`

	// OrphanTimeout is how long an incoming label may wait for its order.
	OrphanTimeout time.Duration `mapstructure:"orphan_timeout" default:"24h"`
	// OrderGrace is how long an order missing from the feed is kept.
	OrderGrace time.Duration `mapstructure:"order_grace" default:"1h"`
	// CycleInterval is the period of the reconciliation loop.
	CycleInterval time.Duration `mapstructure:"cycle_interval" default:"5m"`

	// Workers is the number of concurrent pipeline drivers.
	Workers int `mapstructure:"workers" default:"4"`
	// QueueSize bounds the dispatch backlog.
	QueueSize int `mapstructure:"queue_size" default:"64"`

	// StepTimeout bounds a single fetch, print or archive attempt.
	StepTimeout time.Duration `mapstructure:"step_timeout" default:"30s"`
	// StepAttempts is the attempt budget per step and drive.
	StepAttempts int `mapstructure:"step_attempts" default:"4"`
	// InitialBackoff and MaxBackoff shape the retry delay between attempts.
	InitialBackoff time.Duration `mapstructure:"initial_backoff" default:"500ms"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff" default:"10s"`
	// ClaimTTL is how long a worker may hold a label without progress.
	ClaimTTL time.Duration `mapstructure:"claim_ttl" default:"5m"`
	// MaxDrives caps how often a failed match is resumed before it is terminal.
	MaxDrives int `mapstructure:"max_drives" default:"3"`
	// MatchTimeout bounds one full pipeline drive.
	MatchTimeout time.Duration `mapstructure:"match_timeout" default:"5m"`

	// PageSize is the store and listing page size.
	PageSize int `mapstructure:"page_size" default:"200"`
	// FeedTimeout bounds a full order feed refresh.
	FeedTimeout time.Duration `mapstructure:"feed_timeout" default:"2m"`
	// PlanCacheTTL is how long a computed plan preview is reused.
	PlanCacheTTL time.Duration `mapstructure:"plan_cache_ttl" default:"30s"`

	// Store selects the state backend: gorm, redis or memory.
	Store string `mapstructure:"store" default:"gorm"`
	// Ingest lists the discovery sources: poll, notify, kafka.
	Ingest []string `mapstructure:"ingest" default:"poll"`
	// Printer selects the print target: log, lmstfy or kafka.
	Printer string `mapstructure:"printer" default:"log"`
}
