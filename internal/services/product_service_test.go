package services_test

import (
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"warung/internal/models"
	"warung/internal/repositories"
	"warung/internal/services"
)

func TestProductService_ListProducts(t *testing.T) {
	mockRepo := new(MockProductRepository)
	service := services.NewProductService(mockRepo)

	expected := []models.Product{
		{ID: "1", Name: "Product A", Price: decimal.RequireFromString("10.00"), Stock: 100},
		{ID: "2", Name: "Product B", Price: decimal.RequireFromString("20.00"), Stock: 50},
	}
	opts := repositories.ProductListOptions{Page: 1, Limit: 10}
	mockRepo.On("List", opts).Return(expected, int64(25), nil).Once()

	products, meta, err := service.ListProducts(opts)
	assert.NoError(t, err)
	assert.Equal(t, expected, products)
	assert.EqualValues(t, 25, meta.Total)
	assert.Equal(t, 1, meta.Page)
	assert.Equal(t, 10, meta.Limit)
	assert.Equal(t, 3, meta.TotalPages) // 25 items over pages of 10
	mockRepo.AssertExpectations(t)
}

func TestProductService_ListProducts_DefaultsPagination(t *testing.T) {
	mockRepo := new(MockProductRepository)
	service := services.NewProductService(mockRepo)

	normalized := repositories.ProductListOptions{Page: 1, Limit: 10}
	mockRepo.On("List", normalized).Return([]models.Product{}, int64(0), nil).Once()

	_, meta, err := service.ListProducts(repositories.ProductListOptions{Page: 0, Limit: -5})
	assert.NoError(t, err)
	assert.Equal(t, 1, meta.Page)
	assert.Equal(t, 10, meta.Limit)
	assert.Equal(t, 0, meta.TotalPages)
	mockRepo.AssertExpectations(t)
}

func TestProductService_GetProductByID(t *testing.T) {
	mockRepo := new(MockProductRepository)
	service := services.NewProductService(mockRepo)

	expected := &models.Product{ID: "1", Name: "Product A", Price: decimal.RequireFromString("10.00"), Stock: 100}

	// Test successful retrieval
	mockRepo.On("GetByID", "1").Return(expected, nil).Once()
	product, err := service.GetProductByID("1")
	assert.NoError(t, err)
	assert.Equal(t, expected, product)
	mockRepo.AssertExpectations(t)

	// Test product not found
	mockRepo.On("GetByID", "99").Return(nil, fmt.Errorf("product with ID 99 not found")).Once()
	product, err = service.GetProductByID("99")
	assert.Error(t, err)
	assert.Nil(t, product)
	assert.Contains(t, err.Error(), "not found")
	mockRepo.AssertExpectations(t)
}

func TestProductService_CreateProduct(t *testing.T) {
	mockRepo := new(MockProductRepository)
	service := services.NewProductService(mockRepo)

	newProduct := &models.Product{Name: "New Product", Price: decimal.RequireFromString("50.00"), Stock: 20}

	// Test successful creation
	mockRepo.On("Create", newProduct).Return(nil).Once()
	err := service.CreateProduct(newProduct)
	assert.NoError(t, err)
	mockRepo.AssertExpectations(t)

	// Test creation failure (e.g., database error)
	mockRepo.On("Create", newProduct).Return(fmt.Errorf("database error")).Once()
	err = service.CreateProduct(newProduct)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "database error")
	mockRepo.AssertExpectations(t)
}

func TestProductService_UpdateProduct(t *testing.T) {
	mockRepo := new(MockProductRepository)
	service := services.NewProductService(mockRepo)

	updated := &models.Product{ID: "1", Name: "Product A Updated", Price: decimal.RequireFromString("12.00"), Stock: 95}

	mockRepo.On("Update", updated).Return(nil).Once()
	err := service.UpdateProduct(updated)
	assert.NoError(t, err)
	mockRepo.AssertExpectations(t)

	missing := &models.Product{ID: "99", Name: "NonExistent", Price: decimal.RequireFromString("1.00"), Stock: 1}
	mockRepo.On("Update", missing).Return(fmt.Errorf("product with ID 99 not found for update")).Once()
	err = service.UpdateProduct(missing)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "not found for update")
	mockRepo.AssertExpectations(t)
}

func TestProductService_DeleteProduct(t *testing.T) {
	mockRepo := new(MockProductRepository)
	service := services.NewProductService(mockRepo)

	// Test successful deletion
	mockRepo.On("Delete", "1").Return(nil).Once()
	err := service.DeleteProduct("1")
	assert.NoError(t, err)
	mockRepo.AssertExpectations(t)

	// Test deletion failure (e.g., product not found)
	mockRepo.On("Delete", "99").Return(fmt.Errorf("product with ID 99 not found for deletion")).Once()
	err = service.DeleteProduct("99")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "not found for deletion")
	mockRepo.AssertExpectations(t)
}
