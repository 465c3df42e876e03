package services

import (
	"fmt"

	"github.com/shopspring/decimal"

	"warung/internal/models"
	"warung/internal/repositories"
)

// CartItemView is one cart line with its product snapshot and subtotal.
type CartItemView struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

// CartView is the cart as presented to the caller, with computed totals.
type CartView struct {
	CartID     string          `json:"cart_id,omitempty"`
	Items      []CartItemView  `json:"items"`
	TotalPrice decimal.Decimal `json:"total_price"`
}

// CartService handles business logic related to shopping carts.
type CartService struct {
	cartRepo    repositories.CartRepository
	productRepo repositories.ProductRepository
}

// NewCartService creates a new CartService.
func NewCartService(cartRepo repositories.CartRepository, productRepo repositories.ProductRepository) *CartService {
	return &CartService{
		cartRepo:    cartRepo,
		productRepo: productRepo,
	}
}

// GetCart returns the user's cart with per-line subtotals and the cart
// total. A user without a cart gets an empty view, not an error.
func (s *CartService) GetCart(userID string) (*CartView, error) {
	cart, err := s.cartRepo.FindByUserID(userID)
	if err != nil {
		return nil, err
	}
	if cart == nil {
		return &CartView{Items: []CartItemView{}, TotalPrice: decimal.Zero}, nil
	}

	view := &CartView{
		CartID:     cart.ID,
		Items:      make([]CartItemView, 0, len(cart.Items)),
		TotalPrice: decimal.Zero,
	}
	for _, item := range cart.Items {
		if item.Product == nil {
			return nil, fmt.Errorf("cart item %d references missing product %s", item.ID, item.ProductID)
		}
		subtotal := item.Product.Price.Mul(decimal.NewFromInt(int64(item.Quantity)))
		view.TotalPrice = view.TotalPrice.Add(subtotal)
		view.Items = append(view.Items, CartItemView{
			ProductID: item.ProductID,
			Name:      item.Product.Name,
			Price:     item.Product.Price,
			Quantity:  item.Quantity,
			Subtotal:  subtotal,
		})
	}
	return view, nil
}

// AddToCart adds a quantity of a product to the user's cart, creating the
// cart lazily on first use. Repeated adds of the same product accumulate.
// The stock check here is advisory only; checkout re-validates against the
// authoritative rows inside its transaction.
func (s *CartService) AddToCart(userID, productID string, quantity int) (*CartView, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("quantity must be greater than 0")
	}

	product, err := s.productRepo.GetByID(productID)
	if err != nil {
		return nil, err
	}
	if product.Stock < quantity {
		return nil, &InsufficientStockError{ProductName: product.Name}
	}

	cart, err := s.cartRepo.FindByUserID(userID)
	if err != nil {
		return nil, err
	}
	if cart == nil {
		cart = &models.Cart{UserID: userID}
		if err := s.cartRepo.Create(cart); err != nil {
			return nil, err
		}
	}

	if err := s.cartRepo.UpsertItem(cart.ID, productID, quantity); err != nil {
		return nil, err
	}
	return s.GetCart(userID)
}

// RemoveFromCart removes the line for a product from the user's cart.
func (s *CartService) RemoveFromCart(userID, productID string) (*CartView, error) {
	cart, err := s.cartRepo.FindByUserID(userID)
	if err != nil {
		return nil, err
	}
	if cart == nil {
		return nil, fmt.Errorf("cart not found for user %s", userID)
	}

	if err := s.cartRepo.RemoveItem(cart.ID, productID); err != nil {
		return nil, err
	}
	return s.GetCart(userID)
}
