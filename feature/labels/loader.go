package labels

import (
	"label-matcher/feature/labels/objects"
	"label-matcher/feature/labels/store"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Feature exposes label inspection, requeue and reconciliation control.
type Feature struct {
	service *Service
	handler *Handler
}

// NewFeature creates a new labels feature.
func NewFeature(s store.Store, bucket *objects.Bucket, loop Reconciler, logger *zap.Logger, cfg Config) *Feature {
	svc := NewService(s, bucket, loop, logger, cfg)
	return &Feature{service: svc, handler: NewHandler(svc)}
}

// Name returns the name of the feature.
func (f *Feature) Name() string {
	return "labels"
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
