package orders

import (
	"context"

	"label-matcher/feature/labels/models"
	"label-matcher/feature/labels/store"

	"go.uber.org/zap"
)

// Trigger requests a reconciliation cycle.
type Trigger interface {
	Trigger()
}

// OrderPage is one page of an order listing.
type OrderPage struct {
	Items []models.Order `json:"items"`
	Next  string         `json:"next,omitempty"`
}

// Service implements the operator actions on orders.
type Service struct {
	store    store.Store
	loop     Trigger
	logger   *zap.Logger
	pageSize int
}

// NewService creates an order service.
func NewService(s store.Store, loop Trigger, logger *zap.Logger, pageSize int) *Service {
	if pageSize <= 0 {
		pageSize = store.DefaultPageSize
	}
	return &Service{store: s, loop: loop, logger: logger, pageSize: pageSize}
}

// ListOrders returns one page of orders in status.
func (s *Service) ListOrders(ctx context.Context, status models.OrderStatus, after string, limit int) (*OrderPage, error) {
	items, next, err := s.store.ListOrders(ctx, status, after, limit)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []models.Order{}
	}
	return &OrderPage{Items: items, Next: next}, nil
}

// Reopen releases an order held after a conflict or terminal failure. The
// alert stamps of its waiting labels are cleared so a new conflict on the
// same labels is reported again.
func (s *Service) Reopen(ctx context.Context, id string) (*models.Order, error) {
	err := s.store.TransitionOrder(ctx, id, models.OrderUnmatchedAlerted, models.OrderOpen, store.Fields{})
	if err != nil {
		return nil, err
	}

	cleared := 0
	for l, err := range store.Labels(ctx, s.store, models.LabelIncoming, s.pageSize) {
		if err != nil {
			return nil, err
		}
		if l.OrderID != id || l.AlertedAt == nil {
			continue
		}
		err := s.store.TransitionLabel(ctx, l.ObjectKey, models.LabelIncoming, models.LabelIncoming, store.Fields{ClearAlert: true})
		if err != nil {
			s.logger.Warn("Failed to clear label alert", zap.String("label_key", l.ObjectKey), zap.Error(err))
			continue
		}
		cleared++
	}

	s.logger.Info("Order reopened", zap.String("order_id", id), zap.Int("labels", cleared))
	s.loop.Trigger()
	return s.store.GetOrder(ctx, id)
}
