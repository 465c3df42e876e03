package handlers

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"

	"warung/internal/services"
)

// OrderHandler handles HTTP requests for checkout and order history.
type OrderHandler struct {
	service *services.OrderService
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(service *services.OrderService) *OrderHandler {
	return &OrderHandler{
		service: service,
	}
}

// RegisterRoutes registers the order routes with the Fiber app. All order
// routes require authentication.
func (h *OrderHandler) RegisterRoutes(router fiber.Router) {
	orderRoutes := router.Group("/orders")
	orderRoutes.Post("/", h.HandlePlaceOrder)
	orderRoutes.Get("/", h.HandleGetOrders)
}

// HandlePlaceOrder converts the authenticated user's cart into an order.
// Client-correctable failures (empty cart, insufficient stock) map to 400,
// a transaction timeout to 408, an unresolved conflict to 409 so the caller
// can retry, and anything else to 500.
func (h *OrderHandler) HandlePlaceOrder(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)

	order, err := h.service.PlaceOrder(c.UserContext(), userID)
	if err != nil {
		log.Printf("Error placing order for user %s: %v", userID, err)

		var stockErr *services.InsufficientStockError
		switch {
		case errors.Is(err, services.ErrEmptyCart), errors.As(err, &stockErr):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"message": "Order could not be placed",
				"error":   err.Error(),
			})
		case errors.Is(err, services.ErrTransactionTimeout):
			return c.Status(fiber.StatusRequestTimeout).JSON(fiber.Map{
				"message": "Order placement timed out, please retry",
				"error":   err.Error(),
			})
		case errors.Is(err, services.ErrTransactionConflict):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"message": "Order placement conflicted with another checkout, please retry",
				"error":   err.Error(),
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not place order",
			"error":   err.Error(),
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message":  "Order placed successfully",
		"order_id": order.ID,
		"order":    order,
	})
}

// HandleGetOrders lists order history: admins get every order with the
// purchaser attached, customers only their own.
func (h *OrderHandler) HandleGetOrders(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	role, _ := c.Locals("role").(string)

	orders, err := h.service.GetOrders(userID, role)
	if err != nil {
		log.Printf("Error getting orders for user %s: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not retrieve orders",
			"error":   err.Error(),
		})
	}
	return c.JSON(orders)
}
