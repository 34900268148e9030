package ports

import (
	"context"
	"time"

	"github.com/bizdesk/backoffice/internal/core/domain"
)

// Store is the relational persistence boundary. All reads and writes happen
// through a Tx obtained from InTx or View.
type Store interface {
	// InTx runs fn in a read-write transaction. A non-nil error from fn rolls
	// the transaction back and is returned unchanged.
	InTx(ctx context.Context, fn func(tx Tx) error) error
	// View runs fn in a read-only transaction.
	View(ctx context.Context, fn func(tx Tx) error) error
	Ping(ctx context.Context) error
	Close() error
}

// Tx is the set of repositories bound to one transaction.
type Tx interface {
	UserRepository
	AssignmentRepository
	ProductRepository
	StockRepository
	OrderRepository
}

// UserRepository persists accounts.
type UserRepository interface {
	// CreateUser inserts u. Returns domain.ErrUserExists when the email is taken.
	CreateUser(ctx context.Context, u *domain.User) error
	FindUserByID(ctx context.Context, id string) (*domain.User, error)
	FindUserByEmail(ctx context.Context, email string) (*domain.User, error)
	// ListSubordinateIDs returns the ids of users whose created_by_id is creatorID.
	// Only direct children are returned.
	ListSubordinateIDs(ctx context.Context, creatorID string) ([]string, error)
	ListUsers(ctx context.Context, filter UserFilter) ([]*domain.User, int64, error)
}

// AssignmentRepository persists customer → employee delegations.
type AssignmentRepository interface {
	// AssignCustomer replaces any existing assignment of the customer.
	AssignCustomer(ctx context.Context, a domain.CustomerAssignment) error
	// UnassignCustomer reports whether an assignment existed.
	UnassignCustomer(ctx context.Context, customerID string) (bool, error)
	ListAssigneeIDs(ctx context.Context, customerID string) ([]string, error)
	ListAssignedCustomerIDs(ctx context.Context, employeeIDs []string) ([]string, error)
}

// ProductRepository persists the catalogue. Stock counters are changed only
// through StockRepository.
type ProductRepository interface {
	// CreateProduct inserts p. Returns domain.ErrDuplicateSKU when the sku is taken.
	CreateProduct(ctx context.Context, p *domain.Product) error
	FindProductByID(ctx context.Context, id string) (*domain.Product, error)
	// FindProductsByIDs returns the products that exist, keyed by id.
	FindProductsByIDs(ctx context.Context, ids []string) (map[string]*domain.Product, error)
	ListProducts(ctx context.Context, filter ProductFilter) ([]*domain.Product, int64, error)
}

// StockRepository exposes the guarded counter updates used by the inventory ledger.
type StockRepository interface {
	// DecrementStock subtracts qty from the product's stock only if the stock
	// is at least qty, as a single conditional update. It reports whether a
	// row was changed.
	DecrementStock(ctx context.Context, productID string, qty int) (bool, error)
	// IncrementStock adds qty and reports whether the product exists.
	IncrementStock(ctx context.Context, productID string, qty int) (bool, error)
}

// OrderRepository persists orders and their items.
type OrderRepository interface {
	// CreateOrder inserts the order together with its items.
	CreateOrder(ctx context.Context, o *domain.Order) error
	// FindOrderByID returns the order with its items.
	FindOrderByID(ctx context.Context, id string) (*domain.Order, error)
	// ListOrders returns a page of orders (without items) and the total count.
	ListOrders(ctx context.Context, filter OrderFilter) ([]*domain.Order, int64, error)
	// UpdateOrderStatus sets the status to `to` only while it is still `from`.
	UpdateOrderStatus(ctx context.Context, id string, from, to domain.OrderStatus, at time.Time) (bool, error)
	// UpdateOrderAssignee sets assigned_to_id only while the order is non-terminal.
	UpdateOrderAssignee(ctx context.Context, id string, assigneeID *string, at time.Time) (bool, error)
	// DeleteOrder removes the order and its items only while it is still in status.
	DeleteOrder(ctx context.Context, id string, status domain.OrderStatus) (bool, error)
}
