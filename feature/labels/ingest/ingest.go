package ingest

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"sync"
	"time"

	"label-matcher/core/metrics"
	"label-matcher/feature/labels/alert"
	"label-matcher/feature/labels/extract"
	"label-matcher/feature/labels/models"
	"label-matcher/feature/labels/store"

	"go.uber.org/zap"
)

// Sources label observations can come from.
const (
	SourcePoll   = "poll"
	SourceNotify = "notify"
	SourceKafka  = "kafka"
)

// Observation is one sighting of a label object.
type Observation struct {
	Key          string
	Size         int64
	ETag         string
	LastModified time.Time
	Source       string
}

// Alerter receives operator alerts.
type Alerter interface {
	Notify(ctx context.Context, a alert.Alert)
}

// Ingestor turns observations into label records.
type Ingestor struct {
	store     store.Store
	extractor *extract.Extractor
	alerts    Alerter
	logger    *zap.Logger
	prefix    string
	now       func() time.Time

	mu sync.Mutex
	// stale remembers the etag last alerted per key.
	stale map[string]string
}

// NewIngestor creates an ingestor for objects under prefix.
func NewIngestor(s store.Store, ex *extract.Extractor, alerts Alerter, logger *zap.Logger, prefix string) *Ingestor {
	return &Ingestor{
		store:     s,
		extractor: ex,
		alerts:    alerts,
		logger:    logger,
		prefix:    prefix,
		now:       time.Now,
		stale:     make(map[string]string),
	}
}

// Accepts reports whether key is a label object this ingestor tracks.
func (i *Ingestor) Accepts(key string) bool {
	if !strings.HasPrefix(key, i.prefix) || strings.HasSuffix(key, "/") {
		return false
	}
	base := path.Base(key)
	return base != "" && !strings.HasPrefix(base, ".")
}

// Observe records o. Labels without an identifier are stored with an empty
// order id so the matcher can orphan them. A changed object behind a label
// that already left incoming is rejected, logged and alerted once; that case
// returns nil because retrying can not fix it.
func (i *Ingestor) Observe(ctx context.Context, o Observation) error {
	if !i.Accepts(o.Key) {
		return nil
	}
	metrics.LabelsObservedTotal.WithLabelValues(o.Source).Inc()

	orderID, _ := i.extractor.Extract(o.Key)
	now := i.now()
	err := i.store.UpsertLabel(ctx, models.Label{
		ObjectKey:    o.Key,
		OrderID:      orderID,
		ETag:         o.ETag,
		Size:         o.Size,
		State:        models.LabelIncoming,
		DiscoveredAt: now,
		LastSeen:     now,
	})
	if errors.Is(err, models.ErrStaleTransition) {
		i.reportStale(ctx, o, err)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to record label %s: %w", o.Key, err)
	}
	return nil
}

func (i *Ingestor) reportStale(ctx context.Context, o Observation, err error) {
	metrics.StaleTransitionsTotal.Inc()
	i.logger.Error("Rejected stale label observation",
		zap.String("label_key", o.Key),
		zap.String("etag", o.ETag),
		zap.String("source", o.Source),
		zap.Error(err))

	i.mu.Lock()
	seen := i.stale[o.Key] == o.ETag
	i.stale[o.Key] = o.ETag
	i.mu.Unlock()
	if seen {
		return
	}

	i.alerts.Notify(ctx, alert.Alert{
		Kind:      alert.KindStaleTransition,
		Subject:   fmt.Sprintf("Label %s changed after processing started", path.Base(o.Key)),
		LabelKeys: []string{o.Key},
		Message:   err.Error(),
		Details:   map[string]string{"etag": o.ETag, "source": o.Source},
	})
}
