package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/bizdesk/backoffice/internal/core/domain"
	"github.com/bizdesk/backoffice/internal/core/inventory"
	"github.com/bizdesk/backoffice/internal/core/ports"
)

// ProductService manages the catalogue. Stock changes go through the ledger.
type ProductService struct {
	store  ports.Store
	ledger *inventory.Ledger
	logger zerolog.Logger
}

func NewProductService(store ports.Store, ledger *inventory.Ledger, logger zerolog.Logger) *ProductService {
	return &ProductService{store: store, ledger: ledger, logger: logger}
}

func (s *ProductService) CreateProduct(ctx context.Context, actor *domain.Actor, input ports.CreateProductInput) (*domain.Product, error) {
	if !actor.Authenticated() || actor.Role != domain.RoleAdmin {
		return nil, fmt.Errorf("%w: only admins create products", domain.ErrForbidden)
	}

	sku := strings.TrimSpace(input.SKU)
	name := strings.TrimSpace(input.Name)
	switch {
	case sku == "":
		return nil, domain.Validationf("sku is required")
	case name == "":
		return nil, domain.Validationf("name is required")
	case input.Price.IsNegative():
		return nil, domain.Validationf("price must not be negative")
	case input.Stock < 0:
		return nil, domain.Validationf("stock must not be negative")
	}

	now := time.Now().UTC()
	product := &domain.Product{
		ID:          uuid.NewString(),
		SKU:         sku,
		Name:        name,
		Price:       input.Price,
		Stock:       input.Stock,
		CreatedByID: actor.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err := s.store.InTx(ctx, func(tx ports.Tx) error {
		return tx.CreateProduct(ctx, product)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("product_id", product.ID).Str("sku", product.SKU).Int("stock", product.Stock).Msg("product created")
	return product, nil
}

func (s *ProductService) GetProduct(ctx context.Context, productID string) (*domain.Product, error) {
	var product *domain.Product
	err := s.store.View(ctx, func(tx ports.Tx) error {
		var err error
		product, err = tx.FindProductByID(ctx, productID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return product, nil
}

func (s *ProductService) ListProducts(ctx context.Context, input ports.ListProductsInput) (*ports.ListProductsResult, error) {
	page, limit := normalizePage(input.Page, input.Limit)

	result := &ports.ListProductsResult{Items: []*domain.Product{}, Page: page, Limit: limit}
	err := s.store.View(ctx, func(tx ports.Tx) error {
		items, total, err := tx.ListProducts(ctx, ports.ProductFilter{
			Search: strings.TrimSpace(input.Search),
			Page:   page,
			Limit:  limit,
		})
		if err != nil {
			return err
		}
		result.Items = items
		result.Total = total
		return nil
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list products")
		return nil, err
	}

	result.TotalPages = totalPages(result.Total, limit)
	return result, nil
}

// Restock adds units to a product's stock.
func (s *ProductService) Restock(ctx context.Context, actor *domain.Actor, productID string, quantity int) (*domain.Product, error) {
	if !actor.Authenticated() || actor.Role != domain.RoleAdmin {
		return nil, fmt.Errorf("%w: only admins restock products", domain.ErrForbidden)
	}
	return s.ledger.Restock(ctx, productID, quantity)
}
