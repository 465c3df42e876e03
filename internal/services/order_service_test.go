package services_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"warung/internal/models"
	"warung/internal/repositories"
	"warung/internal/services"
)

// checkoutFixture wires an OrderService over a fresh in-memory SQLite
// database, shared-cache so concurrent transactions see the same data.
type checkoutFixture struct {
	db           *gorm.DB
	cartRepo     repositories.CartRepository
	productRepo  repositories.ProductRepository
	orderRepo    repositories.OrderRepository
	orderService *services.OrderService
}

func newCheckoutFixture(t *testing.T, publisher services.EventPublisher) *checkoutFixture {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_busy_timeout=5000",
		strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&models.User{}, &models.Category{}, &models.Product{},
		&models.Cart{}, &models.CartItem{},
		&models.Order{}, &models.OrderItem{},
	)
	require.NoError(t, err)

	f := &checkoutFixture{
		db:          db,
		cartRepo:    repositories.NewGORMCartRepository(db),
		productRepo: repositories.NewGORMProductRepository(db),
		orderRepo:   repositories.NewGORMOrderRepository(db),
	}
	f.orderService = services.NewOrderService(db, f.cartRepo, f.productRepo, f.orderRepo, publisher)
	return f
}

func (f *checkoutFixture) createProduct(t *testing.T, name, price string, stock int) *models.Product {
	t.Helper()
	product := &models.Product{
		Name:  name,
		Price: decimal.RequireFromString(price),
		Stock: stock,
	}
	require.NoError(t, f.productRepo.Create(product))
	return product
}

func (f *checkoutFixture) createCart(t *testing.T, userID string, lines ...models.CartItem) *models.Cart {
	t.Helper()
	cart := &models.Cart{UserID: userID}
	require.NoError(t, f.cartRepo.Create(cart))
	for _, line := range lines {
		require.NoError(t, f.cartRepo.UpsertItem(cart.ID, line.ProductID, line.Quantity))
	}
	return cart
}

func (f *checkoutFixture) productStock(t *testing.T, id string) int {
	t.Helper()
	product, err := f.productRepo.GetByID(id)
	require.NoError(t, err)
	return product.Stock
}

func (f *checkoutFixture) cartItemCount(t *testing.T, cartID string) int64 {
	t.Helper()
	var count int64
	require.NoError(t, f.db.Model(&models.CartItem{}).Where("cart_id = ?", cartID).Count(&count).Error)
	return count
}

func TestOrderService_PlaceOrder_Success(t *testing.T) {
	f := newCheckoutFixture(t, nil)

	productX := f.createProduct(t, "productX", "10.00", 5)
	productY := f.createProduct(t, "productY", "5.00", 3)
	userID := uuid.New().String()
	cart := f.createCart(t, userID,
		models.CartItem{ProductID: productX.ID, Quantity: 2},
		models.CartItem{ProductID: productY.ID, Quantity: 1},
	)

	order, err := f.orderService.PlaceOrder(context.Background(), userID)
	assert.NoError(t, err)
	require.NotNil(t, order)

	assert.NotEmpty(t, order.ID)
	assert.Equal(t, userID, order.UserID)
	assert.True(t, decimal.RequireFromString("25.00").Equal(order.TotalPrice),
		"expected total 25.00, got %s", order.TotalPrice)
	require.Len(t, order.Items, 2)

	// Lines follow cart insertion order with snapshotted unit prices.
	assert.Equal(t, productX.ID, order.Items[0].ProductID)
	assert.Equal(t, 2, order.Items[0].Quantity)
	assert.True(t, decimal.RequireFromString("10.00").Equal(order.Items[0].Price))
	assert.Equal(t, productY.ID, order.Items[1].ProductID)
	assert.Equal(t, 1, order.Items[1].Quantity)
	assert.True(t, decimal.RequireFromString("5.00").Equal(order.Items[1].Price))

	// Stock deducted line by line, cart emptied.
	assert.Equal(t, 3, f.productStock(t, productX.ID))
	assert.Equal(t, 2, f.productStock(t, productY.ID))
	assert.EqualValues(t, 0, f.cartItemCount(t, cart.ID))

	// The order is durably persisted with its items.
	persisted, err := f.orderRepo.FindByUserID(userID)
	assert.NoError(t, err)
	require.Len(t, persisted, 1)
	assert.Len(t, persisted[0].Items, 2)
}

func TestOrderService_PlaceOrder_NoCart(t *testing.T) {
	f := newCheckoutFixture(t, nil)

	order, err := f.orderService.PlaceOrder(context.Background(), uuid.New().String())
	assert.Nil(t, order)
	assert.ErrorIs(t, err, services.ErrEmptyCart)
}

func TestOrderService_PlaceOrder_EmptyCart(t *testing.T) {
	f := newCheckoutFixture(t, nil)

	userID := uuid.New().String()
	f.createCart(t, userID) // cart exists but holds nothing

	order, err := f.orderService.PlaceOrder(context.Background(), userID)
	assert.Nil(t, order)
	assert.ErrorIs(t, err, services.ErrEmptyCart)
}

func TestOrderService_PlaceOrder_InsufficientStock(t *testing.T) {
	f := newCheckoutFixture(t, nil)

	productZ := f.createProduct(t, "productZ", "7.50", 2)
	userID := uuid.New().String()
	cart := f.createCart(t, userID, models.CartItem{ProductID: productZ.ID, Quantity: 10})

	order, err := f.orderService.PlaceOrder(context.Background(), userID)
	assert.Nil(t, order)

	var stockErr *services.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, "productZ", stockErr.ProductName)

	// Nothing changed: stock intact, cart intact, no order created.
	assert.Equal(t, 2, f.productStock(t, productZ.ID))
	assert.EqualValues(t, 1, f.cartItemCount(t, cart.ID))
	orders, err := f.orderRepo.FindByUserID(userID)
	assert.NoError(t, err)
	assert.Empty(t, orders)
}

func TestOrderService_PlaceOrder_PartialFailureRollsBackEverything(t *testing.T) {
	f := newCheckoutFixture(t, nil)

	// First line passes the stock check, second fails. The batch must fail
	// as a whole without deducting the first line either.
	plentiful := f.createProduct(t, "plentiful", "10.00", 100)
	scarce := f.createProduct(t, "scarce", "20.00", 1)
	userID := uuid.New().String()
	cart := f.createCart(t, userID,
		models.CartItem{ProductID: plentiful.ID, Quantity: 5},
		models.CartItem{ProductID: scarce.ID, Quantity: 3},
	)

	order, err := f.orderService.PlaceOrder(context.Background(), userID)
	assert.Nil(t, order)

	var stockErr *services.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, "scarce", stockErr.ProductName)

	assert.Equal(t, 100, f.productStock(t, plentiful.ID))
	assert.Equal(t, 1, f.productStock(t, scarce.ID))
	assert.EqualValues(t, 2, f.cartItemCount(t, cart.ID))

	var orderCount int64
	require.NoError(t, f.db.Model(&models.Order{}).Count(&orderCount).Error)
	assert.EqualValues(t, 0, orderCount)
}

func TestOrderService_PlaceOrder_PriceSnapshotImmutable(t *testing.T) {
	f := newCheckoutFixture(t, nil)

	product := f.createProduct(t, "Gadget", "10.00", 5)
	userID := uuid.New().String()
	f.createCart(t, userID, models.CartItem{ProductID: product.ID, Quantity: 1})

	order, err := f.orderService.PlaceOrder(context.Background(), userID)
	require.NoError(t, err)

	// Raise the catalog price after the purchase.
	updated, err := f.productRepo.GetByID(product.ID)
	require.NoError(t, err)
	updated.Price = decimal.RequireFromString("99.99")
	require.NoError(t, f.productRepo.Update(updated))

	persisted, err := f.orderRepo.FindByUserID(userID)
	require.NoError(t, err)
	require.Len(t, persisted, 1)
	require.Len(t, persisted[0].Items, 1)
	assert.True(t, decimal.RequireFromString("10.00").Equal(persisted[0].Items[0].Price),
		"snapshot price changed to %s", persisted[0].Items[0].Price)
	assert.True(t, decimal.RequireFromString("10.00").Equal(persisted[0].TotalPrice))
	assert.Equal(t, order.ID, persisted[0].ID)
}

func TestOrderService_PlaceOrder_RepeatedCheckoutFailsEmptyCart(t *testing.T) {
	f := newCheckoutFixture(t, nil)

	product := f.createProduct(t, "Widget", "3.00", 10)
	userID := uuid.New().String()
	f.createCart(t, userID, models.CartItem{ProductID: product.ID, Quantity: 2})

	_, err := f.orderService.PlaceOrder(context.Background(), userID)
	require.NoError(t, err)

	// The cart was emptied by the first checkout.
	order, err := f.orderService.PlaceOrder(context.Background(), userID)
	assert.Nil(t, order)
	assert.ErrorIs(t, err, services.ErrEmptyCart)
}

func TestOrderService_PlaceOrder_ConcurrentLastUnit(t *testing.T) {
	f := newCheckoutFixture(t, nil)

	lastUnit := f.createProduct(t, "last-unit", "42.00", 1)
	userA := uuid.New().String()
	userB := uuid.New().String()
	f.createCart(t, userA, models.CartItem{ProductID: lastUnit.ID, Quantity: 1})
	f.createCart(t, userB, models.CartItem{ProductID: lastUnit.ID, Quantity: 1})

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, userID := range []string{userA, userB} {
		wg.Add(1)
		go func(i int, userID string) {
			defer wg.Done()
			_, errs[i] = f.orderService.PlaceOrder(context.Background(), userID)
		}(i, userID)
	}
	wg.Wait()

	var failures []error
	for _, err := range errs {
		if err != nil {
			failures = append(failures, err)
		}
	}
	require.Len(t, failures, 1, "exactly one of the two checkouts must succeed")

	var stockErr *services.InsufficientStockError
	assert.ErrorAs(t, failures[0], &stockErr)
	assert.Equal(t, 0, f.productStock(t, lastUnit.ID), "stock must never go negative")

	var orderCount int64
	require.NoError(t, f.db.Model(&models.Order{}).Count(&orderCount).Error)
	assert.EqualValues(t, 1, orderCount)
}

// MockEventPublisher is a mock implementation of services.EventPublisher.
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(routingKey string, body []byte) error {
	args := m.Called(routingKey, body)
	return args.Error(0)
}

func TestOrderService_PlaceOrder_PublishesEvent(t *testing.T) {
	publisher := new(MockEventPublisher)
	publisher.On("Publish", "order.placed", mock.Anything).Return(nil).Once()

	f := newCheckoutFixture(t, publisher)
	product := f.createProduct(t, "Gizmo", "12.34", 4)
	userID := uuid.New().String()
	f.createCart(t, userID, models.CartItem{ProductID: product.ID, Quantity: 2})

	_, err := f.orderService.PlaceOrder(context.Background(), userID)
	assert.NoError(t, err)
	publisher.AssertExpectations(t)
}

func TestOrderService_PlaceOrder_PublishFailureDoesNotFailOrder(t *testing.T) {
	publisher := new(MockEventPublisher)
	publisher.On("Publish", "order.placed", mock.Anything).Return(fmt.Errorf("broker down")).Once()

	f := newCheckoutFixture(t, publisher)
	product := f.createProduct(t, "Gizmo", "12.34", 4)
	userID := uuid.New().String()
	f.createCart(t, userID, models.CartItem{ProductID: product.ID, Quantity: 1})

	order, err := f.orderService.PlaceOrder(context.Background(), userID)
	assert.NoError(t, err)
	assert.NotNil(t, order)
	assert.Equal(t, 3, f.productStock(t, product.ID))
	publisher.AssertExpectations(t)
}

func TestOrderService_GetOrders_RoleGating(t *testing.T) {
	f := newCheckoutFixture(t, nil)

	customerA := &models.User{Email: "a@example.com", Password: "x", Role: models.RoleCustomer}
	customerB := &models.User{Email: "b@example.com", Password: "x", Role: models.RoleCustomer}
	userRepo := repositories.NewGORMUserRepository(f.db)
	require.NoError(t, userRepo.Create(customerA))
	require.NoError(t, userRepo.Create(customerB))

	older := &models.Order{
		UserID:     customerA.ID,
		TotalPrice: decimal.RequireFromString("10.00"),
		Items:      []models.OrderItem{{ProductID: uuid.New().String(), Quantity: 1, Price: decimal.RequireFromString("10.00")}},
		CreatedAt:  time.Now().Add(-time.Hour),
	}
	newer := &models.Order{
		UserID:     customerB.ID,
		TotalPrice: decimal.RequireFromString("20.00"),
		Items:      []models.OrderItem{{ProductID: uuid.New().String(), Quantity: 2, Price: decimal.RequireFromString("10.00")}},
		CreatedAt:  time.Now(),
	}
	require.NoError(t, f.orderRepo.Create(older))
	require.NoError(t, f.orderRepo.Create(newer))

	// Customers only see their own orders.
	own, err := f.orderService.GetOrders(customerA.ID, models.RoleCustomer)
	assert.NoError(t, err)
	require.Len(t, own, 1)
	assert.Equal(t, older.ID, own[0].ID)

	// Admins see everything, newest first, with the purchaser attached.
	all, err := f.orderService.GetOrders(customerA.ID, models.RoleAdmin)
	assert.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, newer.ID, all[0].ID)
	assert.Equal(t, older.ID, all[1].ID)
	require.NotNil(t, all[0].User)
	assert.Equal(t, "b@example.com", all[0].User.Email)
}
