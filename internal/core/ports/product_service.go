package ports

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/bizdesk/backoffice/internal/core/domain"
)

// CreateProductInput carries the fields of a new product.
type CreateProductInput struct {
	SKU   string
	Name  string
	Price decimal.Decimal
	Stock int
}

// ListProductsInput carries the parameters for the catalogue listing.
type ListProductsInput struct {
	Search string
	Page   int
	Limit  int
}

// ListProductsResult is returned by ListProducts.
type ListProductsResult struct {
	Items      []*domain.Product
	Total      int64
	Page       int
	Limit      int
	TotalPages int
}

type ProductService interface {
	CreateProduct(ctx context.Context, actor *domain.Actor, input CreateProductInput) (*domain.Product, error)
	GetProduct(ctx context.Context, productID string) (*domain.Product, error)
	ListProducts(ctx context.Context, input ListProductsInput) (*ListProductsResult, error)
	Restock(ctx context.Context, actor *domain.Actor, productID string, quantity int) (*domain.Product, error)
}
