package orders

import (
	"label-matcher/core/logger"
	"label-matcher/feature/labels/models"
	"label-matcher/feature/labels/store"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const maxPageSize = 1000

// Handler handles HTTP requests for orders.
type Handler struct {
	service *Service
}

// NewHandler creates a new HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers the order routes.
func (h *Handler) RegisterRoutes(app fiber.Router) {
	group := app.Group("/orders")
	group.Get("/", h.HandleListOrders)
	group.Post("/:id/reopen", h.HandleReopen)
}

// HandleListOrders lists orders in one status.
// @Summary List Orders
// @Description List orders known from the order feed, ordered by id.
// @Tags orders
// @Produce json
// @Param status query string false "Order status" default(open) Enums(open, matched, shipped, unmatched-alerted)
// @Param after query string false "Cursor from the previous page"
// @Param limit query int false "Page size" default(200)
// @Success 200 {object} orders.OrderPage "Orders"
// @Failure 400 {object} map[string]string "Invalid status"
// @Failure 500 {object} map[string]string "Internal Server Error"
// @Router /orders [get]
func (h *Handler) HandleListOrders(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)

	status := models.OrderStatus(c.Query("status", string(models.OrderOpen)))
	if !models.ValidOrderStatus(status) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "unknown status " + string(status)})
	}
	limit := c.QueryInt("limit", store.DefaultPageSize)
	if limit <= 0 || limit > maxPageSize {
		limit = store.DefaultPageSize
	}

	page, err := h.service.ListOrders(c.Context(), status, c.Query("after"), limit)
	if err != nil {
		l.Error("Failed to list orders", zap.Error(err))
		return c.Status(models.StatusCode(err)).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(page)
}

// HandleReopen releases a held order.
// @Summary Reopen Order
// @Description Move an unmatched-alerted order back to open and trigger a cycle.
// @Tags orders
// @Produce json
// @Param id path string true "Order ID"
// @Success 200 {object} models.Order "Reopened order"
// @Failure 404 {object} map[string]string "Not Found"
// @Failure 409 {object} map[string]string "Order is not unmatched-alerted"
// @Failure 500 {object} map[string]string "Internal Server Error"
// @Router /orders/{id}/reopen [post]
func (h *Handler) HandleReopen(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)
	id := c.Params("id")

	order, err := h.service.Reopen(c.Context(), id)
	if err != nil {
		status := models.StatusCode(err)
		if status >= fiber.StatusInternalServerError {
			l.Error("Failed to reopen order", zap.String("order_id", id), zap.Error(err))
		}
		return c.Status(status).JSON(fiber.Map{"error": err.Error()})
	}
	l.Info("Reopened order", zap.String("order_id", id))
	return c.JSON(order)
}
