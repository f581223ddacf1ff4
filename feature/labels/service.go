package labels

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"label-matcher/feature/labels/matcher"
	"label-matcher/feature/labels/models"
	"label-matcher/feature/labels/objects"
	"label-matcher/feature/labels/store"

	"go.uber.org/zap"
)

// Reconciler is the part of the loop the operator API drives.
type Reconciler interface {
	Trigger()
	Plan(ctx context.Context) (*matcher.Plan, error)
}

// LabelPage is one page of a label listing.
type LabelPage struct {
	Items []models.Label `json:"items"`
	Next  string         `json:"next,omitempty"`
}

// LabelDetail is a label with its match, if any.
type LabelDetail struct {
	Label models.Label  `json:"label"`
	Match *models.Match `json:"match,omitempty"`
}

// Service implements the operator actions on labels.
type Service struct {
	store  store.Store
	bucket *objects.Bucket
	loop   Reconciler
	logger *zap.Logger
	cfg    Config
}

// NewService creates a label service.
func NewService(s store.Store, bucket *objects.Bucket, loop Reconciler, logger *zap.Logger, cfg Config) *Service {
	return &Service{store: s, bucket: bucket, loop: loop, logger: logger, cfg: cfg}
}

// ListLabels returns one page of labels in state.
func (s *Service) ListLabels(ctx context.Context, state models.LabelState, after string, limit int) (*LabelPage, error) {
	items, next, err := s.store.ListLabels(ctx, state, after, limit)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []models.Label{}
	}
	return &LabelPage{Items: items, Next: next}, nil
}

// GetLabel returns a label and its match.
func (s *Service) GetLabel(ctx context.Context, key string) (*LabelDetail, error) {
	l, err := s.store.GetLabel(ctx, key)
	if err != nil {
		return nil, err
	}
	detail := &LabelDetail{Label: *l}

	m, err := s.store.GetMatch(ctx, key)
	switch {
	case err == nil:
		detail.Match = m
	case !errors.Is(err, models.ErrNotFound):
		return nil, err
	}
	return detail, nil
}

// Requeue sends an errored or orphaned label back to incoming, restoring
// the object from the errors prefix and releasing an order the label still
// holds. Labels that were already printed are refused so a retry can never
// print twice.
func (s *Service) Requeue(ctx context.Context, key string) (*models.Label, error) {
	l, err := s.store.GetLabel(ctx, key)
	if err != nil {
		return nil, err
	}
	if l.State != models.LabelErrored && l.State != models.LabelOrphaned {
		return nil, fmt.Errorf("%w: label %s is %s", models.ErrConflict, key, l.State)
	}

	m, err := s.store.GetMatch(ctx, key)
	switch {
	case err == nil && m.Step.Reached(models.StepPrinted):
		return nil, fmt.Errorf("%w: label %s was already printed", models.ErrConflict, key)
	case err != nil && !errors.Is(err, models.ErrNotFound):
		return nil, err
	}

	if l.ArchiveKey != "" && strings.HasPrefix(l.ArchiveKey, s.cfg.ErrorsPrefix) {
		if err := s.bucket.Move(ctx, l.ArchiveKey, key); err != nil {
			return nil, fmt.Errorf("failed to restore %s: %w", l.ArchiveKey, err)
		}
	}

	err = s.store.TransitionLabel(ctx, key, l.State, models.LabelIncoming, store.Fields{
		ArchiveKey: store.Ptr(""),
		Reason:     store.Ptr(""),
		ClearClaim: true,
		ClearAlert: true,
	})
	if err != nil {
		return nil, err
	}

	// A retryable errored label still holds its order. Release it only after
	// the label is back in incoming, so a concurrent resume either wins the
	// label or never sees the open order.
	if l.Active() && l.OrderID != "" {
		err := s.store.TransitionOrder(ctx, l.OrderID, models.OrderMatched, models.OrderOpen, store.Fields{})
		if err != nil && !errors.Is(err, models.ErrConflict) && !errors.Is(err, models.ErrNotFound) {
			return nil, fmt.Errorf("label %s requeued but order %s not released: %w", key, l.OrderID, err)
		}
	}

	s.logger.Info("Label requeued", zap.String("label_key", key), zap.String("from", string(l.State)))
	s.loop.Trigger()
	return s.store.GetLabel(ctx, key)
}

// Discard retires an errored or orphaned label for good and deletes its
// object. An order the label still holds is released, or marked shipped if
// the label was printed before it failed.
func (s *Service) Discard(ctx context.Context, key string) (*models.Label, error) {
	l, err := s.store.GetLabel(ctx, key)
	if err != nil {
		return nil, err
	}
	if l.State != models.LabelErrored && l.State != models.LabelOrphaned {
		return nil, fmt.Errorf("%w: label %s is %s", models.ErrConflict, key, l.State)
	}

	printed := false
	m, err := s.store.GetMatch(ctx, key)
	switch {
	case err == nil:
		printed = m.Step.Reached(models.StepPrinted)
	case !errors.Is(err, models.ErrNotFound):
		return nil, err
	}

	err = s.store.TransitionLabel(ctx, key, l.State, models.LabelDiscarded, store.Fields{
		ClearClaim: true,
		ArchiveKey: store.Ptr(""),
	})
	if err != nil {
		return nil, err
	}

	if err := s.bucket.Remove(ctx, objectLocation(l)); err != nil {
		s.logger.Warn("Failed to delete discarded label object", zap.String("label_key", key), zap.Error(err))
	}

	if l.Active() && l.OrderID != "" {
		to := models.OrderOpen
		if printed {
			to = models.OrderShipped
		}
		err := s.store.TransitionOrder(ctx, l.OrderID, models.OrderMatched, to, store.Fields{})
		if err != nil && !errors.Is(err, models.ErrConflict) && !errors.Is(err, models.ErrNotFound) {
			return nil, fmt.Errorf("label %s discarded but order %s not released: %w", key, l.OrderID, err)
		}
	}

	s.logger.Info("Label discarded", zap.String("label_key", key), zap.String("from", string(l.State)))
	s.loop.Trigger()
	return s.store.GetLabel(ctx, key)
}

// Content returns the bytes of a label from wherever its object lives now.
func (s *Service) Content(ctx context.Context, key string) ([]byte, error) {
	l, err := s.store.GetLabel(ctx, key)
	if err != nil {
		return nil, err
	}
	if l.State == models.LabelDiscarded {
		return nil, fmt.Errorf("%w: label %s was discarded", models.ErrNotFound, key)
	}

	data, err := s.bucket.Fetch(ctx, objectLocation(l))
	if errors.Is(err, models.ErrPermanentData) {
		return nil, fmt.Errorf("%w: %w", models.ErrNotFound, err)
	}
	return data, err
}

// Stats counts labels and orders per state. Every known state is present.
type Stats struct {
	Labels map[models.LabelState]int  `json:"labels"`
	Orders map[models.OrderStatus]int `json:"orders"`
}

// Stats returns the dashboard counts.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	labels, err := s.store.CountLabels(ctx)
	if err != nil {
		return nil, err
	}
	orders, err := s.store.CountOrders(ctx)
	if err != nil {
		return nil, err
	}

	stats := &Stats{
		Labels: make(map[models.LabelState]int, len(models.LabelStates)),
		Orders: make(map[models.OrderStatus]int, len(models.OrderStatuses)),
	}
	for _, st := range models.LabelStates {
		stats.Labels[st] = labels[st]
	}
	for _, st := range models.OrderStatuses {
		stats.Orders[st] = orders[st]
	}
	return stats, nil
}

// objectLocation is where the label's object lives: its archive key once it
// was moved, its original key otherwise.
func objectLocation(l *models.Label) string {
	if l.ArchiveKey != "" {
		return l.ArchiveKey
	}
	return l.ObjectKey
}

// TriggerCycle asks the loop for a cycle.
func (s *Service) TriggerCycle() {
	s.loop.Trigger()
}

// Plan returns the plan the next cycle would apply.
func (s *Service) Plan(ctx context.Context) (*matcher.Plan, error) {
	return s.loop.Plan(ctx)
}
