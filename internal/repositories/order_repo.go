package repositories

import (
	"gorm.io/gorm"

	"warung/internal/models"
)

// OrderRepository defines the interface for order data access.
type OrderRepository interface {
	// Create persists an order together with its nested line items.
	Create(order *models.Order) error
	// FindByUserID lists a user's orders, newest first, with items and
	// their products.
	FindByUserID(userID string) ([]models.Order, error)
	// FindAll lists every order system-wide, newest first, with the
	// purchasing user attached.
	FindAll() ([]models.Order, error)
	WithTx(tx *gorm.DB) OrderRepository
}
