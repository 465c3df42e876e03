package repositories

import (
	"gorm.io/gorm"

	"warung/internal/models"
)

// CartRepository defines the interface for cart data access.
type CartRepository interface {
	// FindByUserID retrieves the user's cart with its items (in insertion
	// order) and each item's product. Returns (nil, nil) when the user has
	// no cart yet.
	FindByUserID(userID string) (*models.Cart, error)
	Create(cart *models.Cart) error
	// UpsertItem adds the quantity to the existing line for the product, or
	// creates a new line if the product is not in the cart yet.
	UpsertItem(cartID, productID string, quantity int) error
	RemoveItem(cartID, productID string) error
	// ClearItems removes every item from the cart, leaving the cart row in
	// place as an empty container.
	ClearItems(cartID string) error
	WithTx(tx *gorm.DB) CartRepository
}
