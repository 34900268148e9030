package ports

import (
	"context"

	"github.com/bizdesk/backoffice/internal/core/domain"
)

// OrderItemInput is a requested order line.
type OrderItemInput struct {
	ProductID string
	Quantity  int
}

// CreateOrderInput carries all data needed to create a new order.
type CreateOrderInput struct {
	Actor *domain.Actor
	Items []OrderItemInput
	// Status is draft or pending; empty means pending.
	Status       domain.OrderStatus
	AssignedToID string
	// CustomerID is required for staff; customers always order for themselves.
	CustomerID     string
	IdempotencyKey string
}

// CreateOrderResult is returned by CreateOrder.
type CreateOrderResult struct {
	Order *domain.Order
	// AlreadyExisted is true when the Idempotency-Key matched an existing order.
	AlreadyExisted bool
}

// ListOrdersInput carries all parameters for the list endpoint.
type ListOrdersInput struct {
	Actor      *domain.Actor
	Status     string
	CustomerID string
	Page       int
	Limit      int
}

// ListOrdersResult is returned by ListOrders.
type ListOrdersResult struct {
	Items      []*domain.Order
	Total      int64
	Page       int
	Limit      int
	TotalPages int
}

// OrderService is the order fulfillment state machine.
type OrderService interface {
	CreateOrder(ctx context.Context, input CreateOrderInput) (*CreateOrderResult, error)
	TransitionOrder(ctx context.Context, actor *domain.Actor, orderID string, to domain.OrderStatus) (*domain.Order, error)
	ReassignOrder(ctx context.Context, actor *domain.Actor, orderID, assigneeID string) (*domain.Order, error)
	DeleteOrder(ctx context.Context, actor *domain.Actor, orderID string) error
	GetOrder(ctx context.Context, actor *domain.Actor, orderID string) (*domain.Order, error)
	ListOrders(ctx context.Context, input ListOrdersInput) (*ListOrdersResult, error)
}
