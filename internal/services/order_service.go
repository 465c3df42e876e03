package services

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"warung/internal/models"
	"warung/internal/repositories"
)

const (
	// checkoutTimeout bounds the whole checkout transaction, acquisition
	// included. Exceeding it aborts with ErrTransactionTimeout.
	checkoutTimeout = 20 * time.Second

	// conflictRetries is how many times a serialization conflict is retried
	// in-engine before surfacing ErrTransactionConflict.
	conflictRetries = 3

	conflictBackoff = 50 * time.Millisecond
)

// EventPublisher publishes domain events after a successful commit. A nil
// publisher disables events entirely.
type EventPublisher interface {
	Publish(routingKey string, body []byte) error
}

// OrderService owns the order placement transaction and order history
// queries.
type OrderService struct {
	db          *gorm.DB
	cartRepo    repositories.CartRepository
	productRepo repositories.ProductRepository
	orderRepo   repositories.OrderRepository
	publisher   EventPublisher
}

// NewOrderService creates a new OrderService.
func NewOrderService(db *gorm.DB, cartRepo repositories.CartRepository, productRepo repositories.ProductRepository, orderRepo repositories.OrderRepository, publisher EventPublisher) *OrderService {
	return &OrderService{
		db:          db,
		cartRepo:    cartRepo,
		productRepo: productRepo,
		orderRepo:   orderRepo,
		publisher:   publisher,
	}
}

// PlaceOrder atomically converts the user's cart into a persisted order:
// validates stock against the rows read inside the transaction, deducts
// inventory, snapshots unit prices, creates the order with its line items
// and empties the cart. On any failure nothing is committed. Serialization
// conflicts are retried a bounded number of times with backoff before
// surfacing ErrTransactionConflict.
func (s *OrderService) PlaceOrder(ctx context.Context, userID string) (*models.Order, error) {
	var (
		order *models.Order
		err   error
	)
	for attempt := 0; ; attempt++ {
		order, err = s.placeOrderOnce(ctx, userID)
		if err == nil || !isConflict(err) || attempt >= conflictRetries {
			break
		}
		select {
		case <-time.After(conflictBackoff * time.Duration(attempt+1)):
		case <-ctx.Done():
			return nil, ErrTransactionTimeout
		}
	}
	if err != nil {
		switch {
		case isTimeout(err):
			return nil, ErrTransactionTimeout
		case isConflict(err):
			return nil, ErrTransactionConflict
		}
		return nil, err
	}

	s.publishOrderPlaced(order)
	return order, nil
}

// placeOrderOnce runs one attempt of the checkout transaction.
func (s *OrderService) placeOrderOnce(ctx context.Context, userID string) (*models.Order, error) {
	txCtx, cancel := context.WithTimeout(ctx, checkoutTimeout)
	defer cancel()

	var placed *models.Order
	err := s.db.WithContext(txCtx).Transaction(func(tx *gorm.DB) error {
		carts := s.cartRepo.WithTx(tx)
		products := s.productRepo.WithTx(tx)
		orders := s.orderRepo.WithTx(tx)

		cart, err := carts.FindByUserID(userID)
		if err != nil {
			return err
		}
		if cart == nil || len(cart.Items) == 0 {
			return ErrEmptyCart
		}

		// Re-read every product inside the transaction with a row lock.
		// The stock check below must see the authoritative value, not the
		// possibly stale snapshot preloaded with the cart.
		locked := make([]*models.Product, len(cart.Items))
		for i, item := range cart.Items {
			product, err := products.GetForUpdate(item.ProductID)
			if err != nil {
				return err
			}
			locked[i] = product
		}

		// Batch validation: if any line fails, no stock is deducted at all.
		for i, item := range cart.Items {
			if locked[i].Stock < item.Quantity {
				return &InsufficientStockError{ProductName: locked[i].Name}
			}
		}

		total := decimal.Zero
		orderItems := make([]models.OrderItem, 0, len(cart.Items))
		for i, item := range cart.Items {
			product := locked[i]
			if err := products.UpdateStock(product.ID, product.Stock-item.Quantity); err != nil {
				return err
			}
			// Snapshot the unit price at purchase time.
			total = total.Add(product.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
			orderItems = append(orderItems, models.OrderItem{
				ProductID: product.ID,
				Quantity:  item.Quantity,
				Price:     product.Price,
			})
		}

		order := &models.Order{
			ID:         uuid.New().String(),
			UserID:     userID,
			TotalPrice: total,
			Items:      orderItems,
		}
		if err := orders.Create(order); err != nil {
			return err
		}

		if err := carts.ClearItems(cart.ID); err != nil {
			return err
		}

		placed = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return placed, nil
}

// GetOrders returns the order history visible to the caller: admins see
// every order with the purchaser attached, customers only their own. Both
// are ordered newest first.
func (s *OrderService) GetOrders(userID, role string) ([]models.Order, error) {
	if role == models.RoleAdmin {
		return s.orderRepo.FindAll()
	}
	return s.orderRepo.FindByUserID(userID)
}

// publishOrderPlaced emits an order.placed event. Publishing is best-effort;
// a failure is logged and never affects the committed order.
func (s *OrderService) publishOrderPlaced(order *models.Order) {
	if s.publisher == nil {
		return
	}

	event := map[string]interface{}{
		"order_id":  order.ID,
		"user_id":   order.UserID,
		"total":     order.TotalPrice,
		"placed_at": order.CreatedAt,
	}
	body, err := json.Marshal(event)
	if err != nil {
		log.Printf("Failed to marshal order event for order %s: %v", order.ID, err)
		return
	}
	if err := s.publisher.Publish("order.placed", body); err != nil {
		log.Printf("Warning: failed to publish order.placed for order %s: %v", order.ID, err)
	}
}
