package store

import (
	"context"
	"fmt"
	"iter"
	"time"

	"label-matcher/feature/labels/models"
)

// DefaultPageSize is used when a list call passes a non-positive limit.
const DefaultPageSize = 200

// Store is the durable record of orders, labels and matches. Every state
// change goes through TransitionOrder or TransitionLabel, which succeed only
// if the entity is still in the expected state.
type Store interface {
	// UpsertOrder records an observation from the order feed. New orders are
	// created in o.Status (open if empty); existing orders only get their
	// metadata refreshed, never their status.
	UpsertOrder(ctx context.Context, o models.Order) error
	// UpsertLabel records an observation of a label object. New labels are
	// created in l.State (incoming if empty). Re-observing a label refreshes
	// etag/size/last_seen while it is incoming or the etag is unchanged; a new
	// etag on a label past incoming fails with ErrStaleTransition.
	UpsertLabel(ctx context.Context, l models.Label) error

	GetOrder(ctx context.Context, id string) (*models.Order, error)
	GetLabel(ctx context.Context, key string) (*models.Label, error)

	// TransitionOrder moves an order from -> to and applies f atomically.
	// It fails with ErrConflict if the order is not in from, ErrNotFound if
	// it does not exist and ErrStaleTransition if from -> to is not allowed.
	TransitionOrder(ctx context.Context, id string, from, to models.OrderStatus, f Fields) error
	// TransitionLabel is the label counterpart of TransitionOrder.
	TransitionLabel(ctx context.Context, key string, from, to models.LabelState, f Fields) error

	// ListOrders returns up to limit orders in status with id > after, in id
	// order, plus the cursor for the next page ("" when exhausted).
	ListOrders(ctx context.Context, status models.OrderStatus, after string, limit int) ([]models.Order, string, error)
	// ListLabels returns up to limit labels in state with key > after.
	ListLabels(ctx context.Context, state models.LabelState, after string, limit int) ([]models.Label, string, error)

	// CountLabels returns the number of labels per state. States without
	// labels may be absent.
	CountLabels(ctx context.Context) (map[models.LabelState]int, error)
	// CountOrders is the order counterpart of CountLabels.
	CountOrders(ctx context.Context) (map[models.OrderStatus]int, error)

	// DeleteOrder removes an order that is still in expected.
	DeleteOrder(ctx context.Context, id string, expected models.OrderStatus) error

	SaveMatch(ctx context.Context, m models.Match) error
	GetMatch(ctx context.Context, labelKey string) (*models.Match, error)

	// FindProcessedByFingerprint returns a processed label other than
	// exceptKey whose content hashes to fingerprint.
	FindProcessedByFingerprint(ctx context.Context, fingerprint, exceptKey string) (*models.Label, error)

	// Migrate prepares the backend schema.
	Migrate(ctx context.Context) error
	Close() error
}

// Fields are optional column updates applied together with a transition.
// Nil pointers leave the column untouched.
type Fields struct {
	OrderID         *string
	Fingerprint     *string
	ArchiveKey      *string
	Reason          *string
	ClaimDeadline   *time.Time
	ClearClaim      bool
	AlertedAt       *time.Time
	ClearAlert      bool
	MissedRefreshes *int
}

// Ptr returns a pointer to v, for filling Fields.
func Ptr[T any](v T) *T {
	return &v
}

func checkLabelTransition(key string, from, to models.LabelState) error {
	if !models.CanTransitionLabel(from, to) {
		return fmt.Errorf("%w: label %s %s -> %s", models.ErrStaleTransition, key, from, to)
	}
	return nil
}

// staleObservation rejects new content behind a label that left incoming.
func staleObservation(key string, state models.LabelState) error {
	return fmt.Errorf("%w: label %s changed while %s", models.ErrStaleTransition, key, state)
}

func checkOrderTransition(id string, from, to models.OrderStatus) error {
	if !models.CanTransitionOrder(from, to) {
		return fmt.Errorf("%w: order %s %s -> %s", models.ErrStaleTransition, id, from, to)
	}
	return nil
}

func labelConflict(key string, from models.LabelState) error {
	return fmt.Errorf("%w: label %s is not %s", models.ErrConflict, key, from)
}

func orderConflict(id string, from models.OrderStatus) error {
	return fmt.Errorf("%w: order %s is not %s", models.ErrConflict, id, from)
}

func labelNotFound(key string) error {
	return fmt.Errorf("%w: label %s", models.ErrNotFound, key)
}

func orderNotFound(id string) error {
	return fmt.Errorf("%w: order %s", models.ErrNotFound, id)
}

func applyLabelFields(l *models.Label, f Fields) {
	if f.OrderID != nil {
		l.OrderID = *f.OrderID
	}
	if f.Fingerprint != nil {
		l.Fingerprint = *f.Fingerprint
	}
	if f.ArchiveKey != nil {
		l.ArchiveKey = *f.ArchiveKey
	}
	if f.Reason != nil {
		l.Reason = *f.Reason
	}
	if f.ClearClaim {
		l.ClaimDeadline = nil
	} else if f.ClaimDeadline != nil {
		t := *f.ClaimDeadline
		l.ClaimDeadline = &t
	}
	if f.ClearAlert {
		l.AlertedAt = nil
	} else if f.AlertedAt != nil {
		t := *f.AlertedAt
		l.AlertedAt = &t
	}
}

func applyOrderFields(o *models.Order, f Fields) {
	if f.MissedRefreshes != nil {
		o.MissedRefreshes = *f.MissedRefreshes
	}
}

func normalizeOrder(o models.Order, now time.Time) models.Order {
	if o.Status == "" {
		o.Status = models.OrderOpen
	}
	if o.LastSeen.IsZero() {
		o.LastSeen = now
	}
	if o.FirstSeen.IsZero() {
		o.FirstSeen = o.LastSeen
	}
	o.UpdatedAt = now
	return o
}

func normalizeLabel(l models.Label, now time.Time) models.Label {
	if l.State == "" {
		l.State = models.LabelIncoming
	}
	if l.DiscoveredAt.IsZero() {
		l.DiscoveredAt = now
	}
	if l.LastSeen.IsZero() {
		l.LastSeen = now
	}
	l.UpdatedAt = now
	return l
}

func pageLimit(limit int) int {
	if limit <= 0 {
		return DefaultPageSize
	}
	return limit
}

// LabelLister is the listing half of Store.
type LabelLister interface {
	ListLabels(ctx context.Context, state models.LabelState, after string, limit int) ([]models.Label, string, error)
}

// OrderLister is the listing half of Store.
type OrderLister interface {
	ListOrders(ctx context.Context, status models.OrderStatus, after string, limit int) ([]models.Order, string, error)
}

// Labels lazily walks every label in state, one page at a time. Iteration
// stops after yielding the first error.
func Labels(ctx context.Context, s LabelLister, state models.LabelState, pageSize int) iter.Seq2[models.Label, error] {
	return func(yield func(models.Label, error) bool) {
		after := ""
		for {
			page, next, err := s.ListLabels(ctx, state, after, pageSize)
			if err != nil {
				yield(models.Label{}, err)
				return
			}
			for _, l := range page {
				if !yield(l, nil) {
					return
				}
			}
			if next == "" {
				return
			}
			after = next
		}
	}
}

// Orders lazily walks every order in status.
func Orders(ctx context.Context, s OrderLister, status models.OrderStatus, pageSize int) iter.Seq2[models.Order, error] {
	return func(yield func(models.Order, error) bool) {
		after := ""
		for {
			page, next, err := s.ListOrders(ctx, status, after, pageSize)
			if err != nil {
				yield(models.Order{}, err)
				return
			}
			for _, o := range page {
				if !yield(o, nil) {
					return
				}
			}
			if next == "" {
				return
			}
			after = next
		}
	}
}

func matchNotFound(key string) error {
	return fmt.Errorf("%w: match for label %s", models.ErrNotFound, key)
}

func fingerprintNotFound(fp string) error {
	return fmt.Errorf("%w: processed label with fingerprint %s", models.ErrNotFound, fp)
}

// MarkAlerted stamps a label as alerted without moving it, so repeated
// cycles do not raise the same alert twice.
func MarkAlerted(ctx context.Context, s Store, key string, state models.LabelState, at time.Time) error {
	return s.TransitionLabel(ctx, key, state, state, Fields{AlertedAt: &at})
}
