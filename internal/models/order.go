package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderItem represents a single line within an order. Price is the unit
// price captured at purchase time and never changes afterwards, regardless
// of later product price updates.
type OrderItem struct {
	ID        uint            `json:"id" gorm:"primaryKey"`
	OrderID   string          `json:"order_id" gorm:"index;type:varchar(36)"`
	ProductID string          `json:"product_id" gorm:"type:varchar(36)"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price" gorm:"type:decimal(10,2)"`
	Product   *Product        `json:"product,omitempty" gorm:"foreignKey:ProductID"`
}

// Order is a customer order. Immutable once created; TotalPrice is the sum
// of line price times quantity at creation time.
type Order struct {
	ID         string          `json:"id" gorm:"primaryKey;type:varchar(36)"`
	UserID     string          `json:"user_id" gorm:"index;type:varchar(36)"`
	User       *User           `json:"user,omitempty" gorm:"foreignKey:UserID"`
	TotalPrice decimal.Decimal `json:"total_price" gorm:"type:decimal(10,2)"`
	Items      []OrderItem     `json:"items" gorm:"foreignKey:OrderID"`
	CreatedAt  time.Time       `json:"created_at"`
}
