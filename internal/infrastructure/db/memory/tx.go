package memory

import (
	"context"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/bizdesk/backoffice/internal/core/domain"
	"github.com/bizdesk/backoffice/internal/core/ports"
)

type tx struct {
	data     *dataset
	readOnly bool
}

var _ ports.Tx = (*tx)(nil)

func (t *tx) writable() error {
	if t.readOnly {
		return errReadOnly
	}
	return nil
}

// --- users ---

func (t *tx) CreateUser(_ context.Context, u *domain.User) error {
	if err := t.writable(); err != nil {
		return err
	}
	for _, existing := range t.data.users {
		if existing.Email == u.Email {
			return domain.ErrUserExists
		}
	}
	if _, ok := t.data.users[u.ID]; ok {
		return domain.ErrUserExists
	}
	t.data.users[u.ID] = *u
	return nil
}

func (t *tx) FindUserByID(_ context.Context, id string) (*domain.User, error) {
	u, ok := t.data.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return &u, nil
}

func (t *tx) FindUserByEmail(_ context.Context, email string) (*domain.User, error) {
	for _, u := range t.data.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (t *tx) ListSubordinateIDs(_ context.Context, creatorID string) ([]string, error) {
	var ids []string
	for _, u := range t.data.users {
		if u.CreatedBy(creatorID) {
			ids = append(ids, u.ID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (t *tx) ListUsers(_ context.Context, f ports.UserFilter) ([]*domain.User, int64, error) {
	var matched []*domain.User
	for _, u := range t.data.users {
		if f.Role != "" && u.Role != f.Role {
			continue
		}
		if !f.Scope.Matches(&u) {
			continue
		}
		matched = append(matched, &u)
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.Before(matched[j].CreatedAt)
		}
		return matched[i].ID < matched[j].ID
	})
	return paginate(matched, f.Page, f.Limit), int64(len(matched)), nil
}

// --- assignments ---

func (t *tx) AssignCustomer(_ context.Context, a domain.CustomerAssignment) error {
	if err := t.writable(); err != nil {
		return err
	}
	t.data.assignments[a.CustomerID] = a
	return nil
}

func (t *tx) UnassignCustomer(_ context.Context, customerID string) (bool, error) {
	if err := t.writable(); err != nil {
		return false, err
	}
	_, ok := t.data.assignments[customerID]
	delete(t.data.assignments, customerID)
	return ok, nil
}

func (t *tx) ListAssigneeIDs(_ context.Context, customerID string) ([]string, error) {
	a, ok := t.data.assignments[customerID]
	if !ok {
		return nil, nil
	}
	return []string{a.EmployeeID}, nil
}

func (t *tx) ListAssignedCustomerIDs(_ context.Context, employeeIDs []string) ([]string, error) {
	var ids []string
	for _, a := range t.data.assignments {
		if slices.Contains(employeeIDs, a.EmployeeID) {
			ids = append(ids, a.CustomerID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// --- products ---

func (t *tx) CreateProduct(_ context.Context, p *domain.Product) error {
	if err := t.writable(); err != nil {
		return err
	}
	for _, existing := range t.data.products {
		if existing.SKU == p.SKU {
			return domain.ErrDuplicateSKU
		}
	}
	t.data.products[p.ID] = *p
	return nil
}

func (t *tx) FindProductByID(_ context.Context, id string) (*domain.Product, error) {
	p, ok := t.data.products[id]
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	return &p, nil
}

func (t *tx) FindProductsByIDs(_ context.Context, ids []string) (map[string]*domain.Product, error) {
	out := make(map[string]*domain.Product, len(ids))
	for _, id := range ids {
		if p, ok := t.data.products[id]; ok {
			out[id] = &p
		}
	}
	return out, nil
}

func (t *tx) ListProducts(_ context.Context, f ports.ProductFilter) ([]*domain.Product, int64, error) {
	search := strings.ToLower(f.Search)
	var matched []*domain.Product
	for _, p := range t.data.products {
		if search != "" &&
			!strings.Contains(strings.ToLower(p.SKU), search) &&
			!strings.Contains(strings.ToLower(p.Name), search) {
			continue
		}
		matched = append(matched, &p)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].SKU < matched[j].SKU })
	return paginate(matched, f.Page, f.Limit), int64(len(matched)), nil
}

// --- stock ---

func (t *tx) DecrementStock(_ context.Context, productID string, qty int) (bool, error) {
	if err := t.writable(); err != nil {
		return false, err
	}
	p, ok := t.data.products[productID]
	if !ok || p.Stock < qty {
		return false, nil
	}
	p.Stock -= qty
	p.UpdatedAt = time.Now().UTC()
	t.data.products[productID] = p
	return true, nil
}

func (t *tx) IncrementStock(_ context.Context, productID string, qty int) (bool, error) {
	if err := t.writable(); err != nil {
		return false, err
	}
	p, ok := t.data.products[productID]
	if !ok {
		return false, nil
	}
	p.Stock += qty
	p.UpdatedAt = time.Now().UTC()
	t.data.products[productID] = p
	return true, nil
}

// --- orders ---

func (t *tx) CreateOrder(_ context.Context, o *domain.Order) error {
	if err := t.writable(); err != nil {
		return err
	}
	t.data.orders[o.ID] = cloneOrder(*o)
	return nil
}

func (t *tx) FindOrderByID(_ context.Context, id string) (*domain.Order, error) {
	o, ok := t.data.orders[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	o = cloneOrder(o)
	return &o, nil
}

func (t *tx) ListOrders(_ context.Context, f ports.OrderFilter) ([]*domain.Order, int64, error) {
	var matched []*domain.Order
	for _, o := range t.data.orders {
		if !f.Scope.Matches(&o) {
			continue
		}
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		if f.CustomerID != "" && o.CustomerID != f.CustomerID {
			continue
		}
		o.Items = nil
		matched = append(matched, &o)
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID < matched[j].ID
	})
	return paginate(matched, f.Page, f.Limit), int64(len(matched)), nil
}

func (t *tx) UpdateOrderStatus(_ context.Context, id string, from, to domain.OrderStatus, at time.Time) (bool, error) {
	if err := t.writable(); err != nil {
		return false, err
	}
	o, ok := t.data.orders[id]
	if !ok || o.Status != from {
		return false, nil
	}
	o.Status = to
	o.UpdatedAt = at
	t.data.orders[id] = o
	return true, nil
}

func (t *tx) UpdateOrderAssignee(_ context.Context, id string, assigneeID *string, at time.Time) (bool, error) {
	if err := t.writable(); err != nil {
		return false, err
	}
	o, ok := t.data.orders[id]
	if !ok || o.Status.IsTerminal() {
		return false, nil
	}
	o.AssignedToID = assigneeID
	o.UpdatedAt = at
	t.data.orders[id] = o
	return true, nil
}

func (t *tx) DeleteOrder(_ context.Context, id string, status domain.OrderStatus) (bool, error) {
	if err := t.writable(); err != nil {
		return false, err
	}
	o, ok := t.data.orders[id]
	if !ok || o.Status != status {
		return false, nil
	}
	delete(t.data.orders, id)
	return true, nil
}

func paginate[T any](items []T, page, limit int) []T {
	if limit <= 0 {
		return items
	}
	skip := ports.Offset(page, limit)
	if skip >= len(items) {
		return []T{}
	}
	end := skip + limit
	if end > len(items) {
		end = len(items)
	}
	return items[skip:end]
}
