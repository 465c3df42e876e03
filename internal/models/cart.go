package models

import "gorm.io/gorm"

// Cart is the single shopping cart a user owns. It is created lazily on the
// first add and survives checkout as an empty container.
type Cart struct {
	ID         string     `json:"id" gorm:"primaryKey;type:varchar(36)"`
	UserID     string     `json:"user_id" gorm:"uniqueIndex;type:varchar(36)"`
	Items      []CartItem `json:"items" gorm:"foreignKey:CartID"`
	gorm.Model `json:"-"`
}

// CartItem is one product line inside a cart. The autoincrement ID doubles
// as the insertion order during checkout.
type CartItem struct {
	ID         uint     `json:"id" gorm:"primaryKey"`
	CartID     string   `json:"cart_id" gorm:"index;type:varchar(36)"`
	ProductID  string   `json:"product_id" gorm:"type:varchar(36)"`
	Quantity   int      `json:"quantity" validate:"required,gt=0"`
	Product    *Product `json:"product,omitempty" gorm:"foreignKey:ProductID"`
	gorm.Model `json:"-"`
}
