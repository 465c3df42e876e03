package repositories

import (
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"warung/internal/models"
)

// GORMCartRepository is a GORM implementation of CartRepository.
type GORMCartRepository struct {
	db *gorm.DB
}

// NewGORMCartRepository creates a new instance of GORMCartRepository.
func NewGORMCartRepository(db *gorm.DB) *GORMCartRepository {
	return &GORMCartRepository{
		db: db,
	}
}

// WithTx returns a copy of the repository bound to the given transaction.
func (r *GORMCartRepository) WithTx(tx *gorm.DB) CartRepository {
	return &GORMCartRepository{db: tx}
}

// FindByUserID retrieves the user's cart with items ordered by insertion
// (autoincrement id) and each item's product preloaded.
func (r *GORMCartRepository) FindByUserID(userID string) (*models.Cart, error) {
	var cart models.Cart
	err := r.db.
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("cart_items.id ASC")
		}).
		Preload("Items.Product").
		First(&cart, "user_id = ?", userID).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get cart for user %s: %w", userID, err)
	}
	return &cart, nil
}

// Create creates a new cart for a user.
func (r *GORMCartRepository) Create(cart *models.Cart) error {
	if cart.ID == "" {
		cart.ID = uuid.New().String()
	}
	if err := r.db.Create(cart).Error; err != nil {
		return fmt.Errorf("failed to create cart: %w", err)
	}
	return nil
}

// UpsertItem accumulates quantity onto an existing line or inserts a new one.
func (r *GORMCartRepository) UpsertItem(cartID, productID string, quantity int) error {
	var item models.CartItem
	err := r.db.First(&item, "cart_id = ? AND product_id = ?", cartID, productID).Error
	switch {
	case err == nil:
		item.Quantity += quantity
		if err := r.db.Save(&item).Error; err != nil {
			return fmt.Errorf("failed to update cart item: %w", err)
		}
		return nil
	case err == gorm.ErrRecordNotFound:
		item = models.CartItem{
			CartID:    cartID,
			ProductID: productID,
			Quantity:  quantity,
		}
		if err := r.db.Create(&item).Error; err != nil {
			return fmt.Errorf("failed to add cart item: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("failed to look up cart item: %w", err)
	}
}

// RemoveItem deletes the line for a product from the cart.
func (r *GORMCartRepository) RemoveItem(cartID, productID string) error {
	res := r.db.Where("cart_id = ? AND product_id = ?", cartID, productID).Delete(&models.CartItem{})
	if res.Error != nil {
		return fmt.Errorf("failed to remove cart item: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("product %s not found in cart", productID)
	}
	return nil
}

// ClearItems removes all items from the cart.
func (r *GORMCartRepository) ClearItems(cartID string) error {
	if err := r.db.Where("cart_id = ?", cartID).Delete(&models.CartItem{}).Error; err != nil {
		return fmt.Errorf("failed to clear cart %s: %w", cartID, err)
	}
	return nil
}
