package repositories

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"warung/internal/models"
)

// ProductListOptions carries pagination and filtering for catalog listings.
type ProductListOptions struct {
	Page       int
	Limit      int
	CategoryID uint
	MinPrice   *decimal.Decimal
	MaxPrice   *decimal.Decimal
}

// ProductRepository defines the interface for product data access.
type ProductRepository interface {
	List(opts ProductListOptions) ([]models.Product, int64, error)
	GetByID(id string) (*models.Product, error)
	// GetForUpdate reads the authoritative product row, holding a row lock
	// until the surrounding transaction ends. Must be called through WithTx.
	GetForUpdate(id string) (*models.Product, error)
	Create(product *models.Product) error
	Update(product *models.Product) error
	// UpdateStock sets the absolute stock quantity for a product.
	UpdateStock(id string, stock int) error
	Delete(id string) error
	// WithTx returns a copy of the repository scoped to the given transaction
	// handle, so reads and writes join the caller's unit of work.
	WithTx(tx *gorm.DB) ProductRepository
}
