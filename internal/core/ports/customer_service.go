package ports

import (
	"context"

	"github.com/bizdesk/backoffice/internal/core/domain"
)

// CustomerDetail is a customer together with its current assignment.
type CustomerDetail struct {
	Customer     *domain.User
	AssignedToID string
}

// ListCustomersInput carries the parameters for listing visible customers.
type ListCustomersInput struct {
	Actor *domain.Actor
	Page  int
	Limit int
}

// ListCustomersResult is returned by ListCustomers.
type ListCustomersResult struct {
	Items      []*domain.User
	Total      int64
	Page       int
	Limit      int
	TotalPages int
}

type CustomerService interface {
	GetCustomer(ctx context.Context, actor *domain.Actor, customerID string) (*CustomerDetail, error)
	ListCustomers(ctx context.Context, input ListCustomersInput) (*ListCustomersResult, error)
	AssignCustomer(ctx context.Context, actor *domain.Actor, customerID, employeeID string) (*domain.CustomerAssignment, error)
	UnassignCustomer(ctx context.Context, actor *domain.Actor, customerID string) error
}
