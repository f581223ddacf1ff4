package labels

import (
	"path"

	"label-matcher/core/logger"
	"label-matcher/feature/labels/models"
	"label-matcher/feature/labels/store"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// maxPageSize caps the limit query parameter.
const maxPageSize = 1000

// Handler handles HTTP requests for labels and reconciliation.
type Handler struct {
	service *Service
}

// NewHandler creates a new HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers the label and reconcile routes.
func (h *Handler) RegisterRoutes(app fiber.Router) {
	group := app.Group("/labels")
	group.Get("/", h.HandleListLabels)
	group.Get("/detail", h.HandleGetLabel)
	group.Get("/content", h.HandleContent)
	group.Get("/stats", h.HandleStats)
	group.Post("/requeue", h.HandleRequeue)
	group.Post("/discard", h.HandleDiscard)

	rec := app.Group("/reconcile")
	rec.Post("/", h.HandleTrigger)
	rec.Get("/plan", h.HandlePlan)
}

func (h *Handler) fail(c *fiber.Ctx, l *zap.Logger, msg string, err error) error {
	status := models.StatusCode(err)
	if status >= fiber.StatusInternalServerError {
		l.Error(msg, zap.Error(err))
	} else {
		l.Info(msg, zap.Error(err))
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}

// HandleListLabels lists labels in one state.
// @Summary List Labels
// @Description List labels in a state, ordered by object key. Use next as the after cursor for the following page.
// @Tags labels
// @Produce json
// @Param state query string false "Label state" default(incoming) Enums(incoming, matched, processing, processed, errored, orphaned, discarded)
// @Param after query string false "Cursor from the previous page"
// @Param limit query int false "Page size" default(200)
// @Success 200 {object} labels.LabelPage "Labels"
// @Failure 400 {object} map[string]string "Invalid state"
// @Failure 500 {object} map[string]string "Internal Server Error"
// @Router /labels [get]
func (h *Handler) HandleListLabels(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)

	state := models.LabelState(c.Query("state", string(models.LabelIncoming)))
	if !models.ValidLabelState(state) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "unknown state " + string(state)})
	}
	limit := c.QueryInt("limit", store.DefaultPageSize)
	if limit <= 0 || limit > maxPageSize {
		limit = store.DefaultPageSize
	}

	page, err := h.service.ListLabels(c.Context(), state, c.Query("after"), limit)
	if err != nil {
		return h.fail(c, l, "Failed to list labels", err)
	}
	return c.JSON(page)
}

// HandleGetLabel returns one label with its match.
// @Summary Get Label
// @Description Get a label and the progress of its match.
// @Tags labels
// @Produce json
// @Param key query string true "Object key, e.g. incoming/label_A-1001.pdf"
// @Success 200 {object} labels.LabelDetail "Label"
// @Failure 400 {object} map[string]string "Missing key"
// @Failure 404 {object} map[string]string "Not Found"
// @Failure 500 {object} map[string]string "Internal Server Error"
// @Router /labels/detail [get]
func (h *Handler) HandleGetLabel(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)

	key := c.Query("key")
	if key == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "key is required"})
	}

	detail, err := h.service.GetLabel(c.Context(), key)
	if err != nil {
		return h.fail(c, l, "Failed to get label", err)
	}
	return c.JSON(detail)
}

// HandleRequeue retries an errored or orphaned label.
// @Summary Requeue Label
// @Description Move an errored or orphaned label back to incoming and trigger a cycle.
// @Tags labels
// @Produce json
// @Param key query string true "Object key"
// @Success 200 {object} models.Label "Requeued label"
// @Failure 400 {object} map[string]string "Missing key"
// @Failure 404 {object} map[string]string "Not Found"
// @Failure 409 {object} map[string]string "Label is not errored or orphaned, or was already printed"
// @Failure 500 {object} map[string]string "Internal Server Error"
// @Router /labels/requeue [post]
func (h *Handler) HandleRequeue(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)

	key := c.Query("key")
	if key == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "key is required"})
	}

	label, err := h.service.Requeue(c.Context(), key)
	if err != nil {
		return h.fail(c, l, "Failed to requeue label", err)
	}
	l.Info("Requeued label", zap.String("label_key", key))
	return c.JSON(label)
}

// HandleDiscard retires an errored or orphaned label.
// @Summary Discard Label
// @Description Retire an errored or orphaned label for good and delete its object. An order it still holds is released.
// @Tags labels
// @Produce json
// @Param key query string true "Object key"
// @Success 200 {object} models.Label "Discarded label"
// @Failure 400 {object} map[string]string "Missing key"
// @Failure 404 {object} map[string]string "Not Found"
// @Failure 409 {object} map[string]string "Label is not errored or orphaned"
// @Failure 500 {object} map[string]string "Internal Server Error"
// @Router /labels/discard [post]
func (h *Handler) HandleDiscard(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)

	key := c.Query("key")
	if key == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "key is required"})
	}

	label, err := h.service.Discard(c.Context(), key)
	if err != nil {
		return h.fail(c, l, "Failed to discard label", err)
	}
	l.Info("Discarded label", zap.String("label_key", key))
	return c.JSON(label)
}

// HandleContent downloads the label file.
// @Summary Download Label
// @Description Download the label file from its current location.
// @Tags labels
// @Produce octet-stream
// @Param key query string true "Object key"
// @Success 200 {file} file "Label file"
// @Failure 400 {object} map[string]string "Missing key"
// @Failure 404 {object} map[string]string "Label or object not found"
// @Failure 500 {object} map[string]string "Internal Server Error"
// @Router /labels/content [get]
func (h *Handler) HandleContent(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)

	key := c.Query("key")
	if key == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "key is required"})
	}

	data, err := h.service.Content(c.Context(), key)
	if err != nil {
		return h.fail(c, l, "Failed to fetch label content", err)
	}
	c.Attachment(path.Base(key))
	return c.Send(data)
}

// HandleStats returns label and order counts per state.
// @Summary Label Stats
// @Description Count labels and orders per state.
// @Tags labels
// @Produce json
// @Success 200 {object} labels.Stats "Counts"
// @Failure 500 {object} map[string]string "Internal Server Error"
// @Router /labels/stats [get]
func (h *Handler) HandleStats(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)

	stats, err := h.service.Stats(c.Context())
	if err != nil {
		return h.fail(c, l, "Failed to count labels", err)
	}
	return c.JSON(stats)
}

// HandleTrigger requests a reconciliation cycle.
// @Summary Trigger Reconciliation
// @Description Request a reconciliation cycle. Requests made while one is pending are coalesced.
// @Tags reconcile
// @Produce json
// @Success 202 {object} map[string]string "Accepted"
// @Router /reconcile [post]
func (h *Handler) HandleTrigger(c *fiber.Ctx) error {
	logger.WithRayID(h.service.logger, c).Info("Reconciliation requested")
	h.service.TriggerCycle()
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"status": "accepted"})
}

// HandlePlan returns the plan the next cycle would apply.
// @Summary Preview Plan
// @Description Compute matches, conflicts and orphans from the current state without applying them.
// @Tags reconcile
// @Produce json
// @Success 200 {object} matcher.Plan "Plan"
// @Failure 500 {object} map[string]string "Internal Server Error"
// @Router /reconcile/plan [get]
func (h *Handler) HandlePlan(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)

	plan, err := h.service.Plan(c.Context())
	if err != nil {
		return h.fail(c, l, "Failed to compute plan", err)
	}
	return c.JSON(plan)
}
