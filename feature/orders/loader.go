package orders

import (
	"label-matcher/feature/labels/store"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Feature exposes order inspection and reopen.
type Feature struct {
	service *Service
	handler *Handler
}

// NewFeature creates a new orders feature.
func NewFeature(s store.Store, loop Trigger, logger *zap.Logger, pageSize int) *Feature {
	svc := NewService(s, loop, logger, pageSize)
	return &Feature{service: svc, handler: NewHandler(svc)}
}

// Name returns the name of the feature.
func (f *Feature) Name() string {
	return "orders"
}

// IsEnabled checks if the feature is enabled.
func (f *Feature) IsEnabled() bool {
	return true
}

// Load registers the feature's routes.
func (f *Feature) Load(app fiber.Router) error {
	f.handler.RegisterRoutes(app)
	return nil
}
