package alert

import (
	"context"
	"time"
	"unicode/utf8"

	"label-matcher/core/metrics"

	"go.uber.org/zap"
)

// Kind classifies an alert.
type Kind string

const (
	KindConflict         Kind = "conflict"
	KindOrphan           Kind = "orphan"
	KindTerminalError    Kind = "terminal-error"
	KindFeedFailure      Kind = "feed-failure"
	KindListingFailure   Kind = "listing-failure"
	KindStaleTransition  Kind = "stale-transition"
	KindMatched          Kind = "matched"
	KindUnconfirmedPrint Kind = "unconfirmed-print"
)

// MaxSubjectLen caps Subject, matching common notification services.
const MaxSubjectLen = 100

// Alert is an operator notification.
type Alert struct {
	Kind      Kind              `json:"kind"`
	Subject   string            `json:"subject"`
	OrderID   string            `json:"order_id,omitempty"`
	LabelKeys []string          `json:"label_keys,omitempty"`
	Message   string            `json:"message"`
	Details   map[string]string `json:"details,omitempty"`
	At        time.Time         `json:"at"`
}

// Sink delivers alerts to one destination.
type Sink interface {
	Name() string
	Send(ctx context.Context, a Alert) error
}

// Notifier fans alerts out to every sink. Delivery is best effort: failures
// are logged and counted but never returned, so an alert can not undo the
// state change that raised it.
type Notifier struct {
	sinks   []Sink
	logger  *zap.Logger
	timeout time.Duration
	now     func() time.Time
}

// NewNotifier creates a notifier over sinks.
func NewNotifier(logger *zap.Logger, sinks ...Sink) *Notifier {
	return &Notifier{
		sinks:   sinks,
		logger:  logger,
		timeout: 5 * time.Second,
		now:     time.Now,
	}
}

// Notify delivers a to every sink.
func (n *Notifier) Notify(ctx context.Context, a Alert) {
	if a.At.IsZero() {
		a.At = n.now().UTC()
	}
	if a.Subject == "" {
		a.Subject = string(a.Kind)
	}
	a.Subject = truncate(a.Subject, MaxSubjectLen)

	metrics.AlertsTotal.WithLabelValues(string(a.Kind)).Inc()

	// Deliver even if the caller is already shutting down.
	ctx = context.WithoutCancel(ctx)
	for _, sink := range n.sinks {
		sendCtx, cancel := context.WithTimeout(ctx, n.timeout)
		err := sink.Send(sendCtx, a)
		cancel()
		if err != nil {
			metrics.AlertDeliveryFailures.WithLabelValues(sink.Name()).Inc()
			n.logger.Warn("Alert delivery failed",
				zap.String("sink", sink.Name()),
				zap.String("kind", string(a.Kind)),
				zap.Error(err))
		}
	}
}

// truncate cuts s to at most limit bytes without splitting a rune.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	s = s[:limit]
	for !utf8.ValidString(s) {
		s = s[:len(s)-1]
	}
	return s
}
