package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"label-matcher/core/storage"
	"label-matcher/feature/labels/alert"
	"label-matcher/feature/labels/models"
	"label-matcher/feature/labels/store"

	"github.com/minio/minio-go/v7"
	"go.uber.org/zap"
)

// ReasonRemoved is recorded on incoming labels whose object disappeared.
const ReasonRemoved = "object removed from storage"

// PollResult summarises one listing pass.
type PollResult struct {
	Listed  int
	Failed  int
	Removed int
}

// PollSource lists the incoming prefix. It is run once per cycle.
type PollSource struct {
	client   storage.Client
	bucket   string
	ingestor *Ingestor
	pageSize int
	now      func() time.Time
}

// NewPollSource creates a poll source.
func NewPollSource(client storage.Client, bucket string, ingestor *Ingestor, pageSize int) *PollSource {
	return &PollSource{
		client:   client,
		bucket:   bucket,
		ingestor: ingestor,
		pageSize: pageSize,
		now:      time.Now,
	}
}

// Poll observes every object under the incoming prefix. Incoming labels that
// were known before the listing started but are no longer listed are
// orphaned. A listing error aborts the pass before anything is orphaned.
func (p *PollSource) Poll(ctx context.Context) (PollResult, error) {
	var res PollResult
	started := p.now()
	i := p.ingestor

	listCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	seen := make(map[string]struct{})
	var firstErr error
	for obj := range p.client.ListObjects(listCtx, p.bucket, minio.ListObjectsOptions{Prefix: i.prefix, Recursive: true}) {
		if obj.Err != nil {
			return res, models.Transient(fmt.Errorf("failed to list %s: %w", i.prefix, obj.Err))
		}
		if !i.Accepts(obj.Key) {
			continue
		}
		res.Listed++
		seen[obj.Key] = struct{}{}

		err := i.Observe(ctx, Observation{
			Key:          obj.Key,
			Size:         obj.Size,
			ETag:         obj.ETag,
			LastModified: obj.LastModified,
			Source:       SourcePoll,
		})
		if err != nil {
			res.Failed++
			if firstErr == nil {
				firstErr = err
			}
			i.logger.Warn("Failed to observe label", zap.String("label_key", obj.Key), zap.Error(err))
		}
	}

	for label, err := range store.Labels(ctx, i.store, models.LabelIncoming, p.pageSize) {
		if err != nil {
			return res, err
		}
		if _, ok := seen[label.ObjectKey]; ok || !label.DiscoveredAt.Before(started) {
			continue
		}
		if p.orphanRemoved(ctx, label) {
			res.Removed++
		}
	}

	return res, firstErr
}

func (p *PollSource) orphanRemoved(ctx context.Context, label models.Label) bool {
	i := p.ingestor
	now := p.now()
	err := i.store.TransitionLabel(ctx, label.ObjectKey, models.LabelIncoming, models.LabelOrphaned, store.Fields{
		Reason:    store.Ptr(ReasonRemoved),
		AlertedAt: &now,
	})
	if errors.Is(err, models.ErrConflict) {
		return false
	}
	if err != nil {
		i.logger.Warn("Failed to orphan removed label", zap.String("label_key", label.ObjectKey), zap.Error(err))
		return false
	}

	i.alerts.Notify(ctx, alert.Alert{
		Kind:      alert.KindOrphan,
		Subject:   fmt.Sprintf("Label %s disappeared", label.ObjectKey),
		OrderID:   label.OrderID,
		LabelKeys: []string{label.ObjectKey},
		Message:   ReasonRemoved,
		At:        now,
	})
	return true
}
