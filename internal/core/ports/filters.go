package ports

import (
	"slices"

	"github.com/bizdesk/backoffice/internal/core/domain"
)

// OrderScope restricts a listing to the orders an actor may see. An order
// matches when All is set or when any of the id sets contains the
// corresponding field.
type OrderScope struct {
	All        bool
	CreatedBy  []string
	AssignedTo []string
	Customers  []string
}

// Matches reports whether o falls inside the scope.
func (s OrderScope) Matches(o *domain.Order) bool {
	if s.All {
		return true
	}
	if slices.Contains(s.CreatedBy, o.CreatedByID) || slices.Contains(s.Customers, o.CustomerID) {
		return true
	}
	return o.AssignedToID != nil && slices.Contains(s.AssignedTo, *o.AssignedToID)
}

// Empty reports whether the scope can match nothing.
func (s OrderScope) Empty() bool {
	return !s.All && len(s.CreatedBy) == 0 && len(s.AssignedTo) == 0 && len(s.Customers) == 0
}

// CustomerScope restricts a listing to the customers an actor may see.
type CustomerScope struct {
	All       bool
	CreatedBy []string
	IDs       []string
}

// Matches reports whether u falls inside the scope.
func (s CustomerScope) Matches(u *domain.User) bool {
	if s.All || slices.Contains(s.IDs, u.ID) {
		return true
	}
	return u.CreatedByID != nil && slices.Contains(s.CreatedBy, *u.CreatedByID)
}

// Empty reports whether the scope can match nothing.
func (s CustomerScope) Empty() bool {
	return !s.All && len(s.CreatedBy) == 0 && len(s.IDs) == 0
}

// OrderFilter carries the query parameters for listing orders.
// Scope is always set by the service layer from the visibility engine.
type OrderFilter struct {
	Scope      OrderScope
	Status     domain.OrderStatus // optional
	CustomerID string             // optional
	Page       int                // 1-based
	Limit      int
}

// UserFilter carries the query parameters for listing users.
type UserFilter struct {
	Role  domain.Role // optional
	Scope CustomerScope
	Page  int
	Limit int
}

// ProductFilter carries the query parameters for listing products.
type ProductFilter struct {
	Search string // optional: partial match on sku or name
	Page   int
	Limit  int
}

// Offset returns the number of rows to skip for a 1-based page.
func Offset(page, limit int) int {
	if page < 1 {
		return 0
	}
	return (page - 1) * limit
}
