// Package storetest is a behavioural suite shared by every ports.Store
// implementation. Ids are random so the suite can run against a database
// that outlives a single test run.
package storetest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bizdesk/backoffice/internal/core/domain"
	"github.com/bizdesk/backoffice/internal/core/ports"
)

// Opener returns a ready store; the suite closes it when the test ends.
type Opener func(t *testing.T) ports.Store

// Run executes the whole suite.
func Run(t *testing.T, open Opener) {
	cases := []struct {
		name string
		fn   func(t *testing.T, s ports.Store)
	}{
		{"Users", testUsers},
		{"UserListing", testUserListing},
		{"Assignments", testAssignments},
		{"Products", testProducts},
		{"GuardedStock", testGuardedStock},
		{"ConcurrentDecrements", testConcurrentDecrements},
		{"Orders", testOrders},
		{"OrderListing", testOrderListing},
		{"OrderGuards", testOrderGuards},
		{"Rollback", testRollback},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := open(t)
			t.Cleanup(func() { _ = s.Close() })
			tc.fn(t, s)
		})
	}
}

// ---------------------------------------------------------------------------
// Seeding helpers
// ---------------------------------------------------------------------------

var base = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func write(t *testing.T, s ports.Store, fn func(ctx context.Context, tx ports.Tx) error) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.InTx(ctx, func(tx ports.Tx) error { return fn(ctx, tx) }))
}

func read(t *testing.T, s ports.Store, fn func(ctx context.Context, tx ports.Tx) error) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.View(ctx, func(tx ports.Tx) error { return fn(ctx, tx) }))
}

func newUser(role domain.Role, createdBy string, at time.Time) *domain.User {
	id := uuid.NewString()
	return &domain.User{
		ID:           id,
		Email:        id + "@store.test",
		PasswordHash: "hash",
		Role:         role,
		CreatedByID:  domain.StringPtr(createdBy),
		CreatedAt:    at,
		UpdatedAt:    at,
	}
}

func newProduct(stock int, price string) *domain.Product {
	id := uuid.NewString()
	return &domain.Product{
		ID:        id,
		SKU:       "SKU-" + id,
		Name:      "Product " + id,
		Price:     decimal.RequireFromString(price),
		Stock:     stock,
		CreatedAt: base,
		UpdatedAt: base,
	}
}

func newOrder(customer, createdBy string, status domain.OrderStatus, at time.Time, items ...domain.OrderItem) *domain.Order {
	id := uuid.NewString()
	for i := range items {
		items[i].OrderID = id
	}
	return &domain.Order{
		ID:          id,
		CustomerID:  customer,
		CreatedByID: createdBy,
		Status:      status,
		Total:       domain.ComputeTotal(items),
		Items:       items,
		CreatedAt:   at,
		UpdatedAt:   at,
	}
}

func stockOf(t *testing.T, s ports.Store, id string) int {
	t.Helper()
	var stock int
	read(t, s, func(ctx context.Context, tx ports.Tx) error {
		p, err := tx.FindProductByID(ctx, id)
		if err != nil {
			return err
		}
		stock = p.Stock
		return nil
	})
	return stock
}

// ---------------------------------------------------------------------------
// Users & assignments
// ---------------------------------------------------------------------------

func testUsers(t *testing.T, s ports.Store) {
	admin := newUser(domain.RoleAdmin, "", base)
	emp := newUser(domain.RoleEmployee, admin.ID, base)
	cust := newUser(domain.RoleCustomer, emp.ID, base)

	write(t, s, func(ctx context.Context, tx ports.Tx) error {
		for _, u := range []*domain.User{admin, emp, cust} {
			if err := tx.CreateUser(ctx, u); err != nil {
				return err
			}
		}
		return nil
	})

	err := s.InTx(context.Background(), func(tx ports.Tx) error {
		dup := newUser(domain.RoleCustomer, "", base)
		dup.Email = cust.Email
		return tx.CreateUser(context.Background(), dup)
	})
	assert.ErrorIs(t, err, domain.ErrUserExists)

	read(t, s, func(ctx context.Context, tx ports.Tx) error {
		got, err := tx.FindUserByID(ctx, cust.ID)
		require.NoError(t, err)
		assert.Equal(t, cust.Email, got.Email)
		assert.Equal(t, domain.RoleCustomer, got.Role)
		assert.Equal(t, emp.ID, domain.Deref(got.CreatedByID))
		assert.True(t, got.CreatedAt.Equal(base))

		got, err = tx.FindUserByEmail(ctx, admin.Email)
		require.NoError(t, err)
		assert.Equal(t, admin.ID, got.ID)
		assert.Nil(t, got.CreatedByID)

		_, err = tx.FindUserByID(ctx, uuid.NewString())
		assert.ErrorIs(t, err, domain.ErrNotFound)
		_, err = tx.FindUserByEmail(ctx, "nobody@store.test")
		assert.ErrorIs(t, err, domain.ErrNotFound)

		subs, err := tx.ListSubordinateIDs(ctx, admin.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{emp.ID}, subs)

		subs, err = tx.ListSubordinateIDs(ctx, cust.ID)
		require.NoError(t, err)
		assert.Empty(t, subs)
		return nil
	})
}

func testUserListing(t *testing.T, s ports.Store) {
	admin := newUser(domain.RoleAdmin, "", base)
	c1 := newUser(domain.RoleCustomer, admin.ID, base.Add(time.Minute))
	c2 := newUser(domain.RoleCustomer, admin.ID, base.Add(2*time.Minute))
	emp := newUser(domain.RoleEmployee, admin.ID, base.Add(3*time.Minute))
	loose := newUser(domain.RoleCustomer, "", base.Add(4*time.Minute))

	write(t, s, func(ctx context.Context, tx ports.Tx) error {
		for _, u := range []*domain.User{admin, c1, c2, emp, loose} {
			if err := tx.CreateUser(ctx, u); err != nil {
				return err
			}
		}
		return nil
	})

	read(t, s, func(ctx context.Context, tx ports.Tx) error {
		scope := ports.CustomerScope{CreatedBy: []string{admin.ID}, IDs: []string{loose.ID}}

		users, total, err := tx.ListUsers(ctx, ports.UserFilter{Role: domain.RoleCustomer, Scope: scope, Page: 1, Limit: 2})
		require.NoError(t, err)
		assert.EqualValues(t, 3, total)
		require.Len(t, users, 2)
		assert.Equal(t, c1.ID, users[0].ID)
		assert.Equal(t, c2.ID, users[1].ID)

		users, _, err = tx.ListUsers(ctx, ports.UserFilter{Role: domain.RoleCustomer, Scope: scope, Page: 2, Limit: 2})
		require.NoError(t, err)
		require.Len(t, users, 1)
		assert.Equal(t, loose.ID, users[0].ID)

		_, total, err = tx.ListUsers(ctx, ports.UserFilter{Scope: scope})
		require.NoError(t, err)
		assert.EqualValues(t, 4, total, "role filter off includes the employee")

		users, total, err = tx.ListUsers(ctx, ports.UserFilter{Role: domain.RoleCustomer})
		require.NoError(t, err)
		assert.Zero(t, total, "an empty scope matches nothing")
		assert.Empty(t, users)
		return nil
	})
}

func testAssignments(t *testing.T, s ports.Store) {
	emp1 := newUser(domain.RoleEmployee, "", base)
	emp2 := newUser(domain.RoleEmployee, "", base)
	c1 := newUser(domain.RoleCustomer, "", base)
	c2 := newUser(domain.RoleCustomer, "", base)

	write(t, s, func(ctx context.Context, tx ports.Tx) error {
		for _, u := range []*domain.User{emp1, emp2, c1, c2} {
			if err := tx.CreateUser(ctx, u); err != nil {
				return err
			}
		}
		if err := tx.AssignCustomer(ctx, domain.CustomerAssignment{CustomerID: c1.ID, EmployeeID: emp1.ID, AssignedAt: base}); err != nil {
			return err
		}
		if err := tx.AssignCustomer(ctx, domain.CustomerAssignment{CustomerID: c2.ID, EmployeeID: emp1.ID, AssignedAt: base}); err != nil {
			return err
		}
		// Replaces the first assignment of c1.
		return tx.AssignCustomer(ctx, domain.CustomerAssignment{CustomerID: c1.ID, EmployeeID: emp2.ID, AssignedAt: base})
	})

	read(t, s, func(ctx context.Context, tx ports.Tx) error {
		ids, err := tx.ListAssigneeIDs(ctx, c1.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{emp2.ID}, ids)

		ids, err = tx.ListAssignedCustomerIDs(ctx, []string{emp1.ID})
		require.NoError(t, err)
		assert.Equal(t, []string{c2.ID}, ids)

		ids, err = tx.ListAssignedCustomerIDs(ctx, []string{emp1.ID, emp2.ID})
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{c1.ID, c2.ID}, ids)

		ids, err = tx.ListAssignedCustomerIDs(ctx, nil)
		require.NoError(t, err)
		assert.Empty(t, ids)
		return nil
	})

	write(t, s, func(ctx context.Context, tx ports.Tx) error {
		removed, err := tx.UnassignCustomer(ctx, c1.ID)
		require.NoError(t, err)
		assert.True(t, removed)

		removed, err = tx.UnassignCustomer(ctx, c1.ID)
		require.NoError(t, err)
		assert.False(t, removed)
		return nil
	})
}

// ---------------------------------------------------------------------------
// Products & stock
// ---------------------------------------------------------------------------

func testProducts(t *testing.T, s ports.Store) {
	tag := uuid.NewString()[:8]
	a := newProduct(3, "12.345")
	a.SKU = "A-" + tag
	b := newProduct(0, "0")
	b.SKU = "B-" + tag
	b.Name = "Gadget " + tag

	write(t, s, func(ctx context.Context, tx ports.Tx) error {
		if err := tx.CreateProduct(ctx, a); err != nil {
			return err
		}
		return tx.CreateProduct(ctx, b)
	})

	err := s.InTx(context.Background(), func(tx ports.Tx) error {
		dup := newProduct(1, "1")
		dup.SKU = a.SKU
		return tx.CreateProduct(context.Background(), dup)
	})
	assert.ErrorIs(t, err, domain.ErrDuplicateSKU)

	read(t, s, func(ctx context.Context, tx ports.Tx) error {
		got, err := tx.FindProductByID(ctx, a.ID)
		require.NoError(t, err)
		assert.True(t, got.Price.Equal(decimal.RequireFromString("12.345")), "price %s", got.Price)
		assert.Equal(t, 3, got.Stock)

		_, err = tx.FindProductByID(ctx, uuid.NewString())
		assert.ErrorIs(t, err, domain.ErrNotFound)

		found, err := tx.FindProductsByIDs(ctx, []string{a.ID, b.ID, uuid.NewString()})
		require.NoError(t, err)
		assert.Len(t, found, 2)
		assert.Contains(t, found, b.ID)

		products, total, err := tx.ListProducts(ctx, ports.ProductFilter{Search: tag, Page: 1, Limit: 1})
		require.NoError(t, err)
		assert.EqualValues(t, 2, total)
		require.Len(t, products, 1)
		assert.Equal(t, a.ID, products[0].ID, "ordered by sku")

		products, total, err = tx.ListProducts(ctx, ports.ProductFilter{Search: "gadget " + tag})
		require.NoError(t, err)
		assert.EqualValues(t, 1, total, "search is case-insensitive on name")
		require.Len(t, products, 1)
		assert.Equal(t, b.ID, products[0].ID)
		return nil
	})
}

func testGuardedStock(t *testing.T, s ports.Store) {
	p := newProduct(5, "1")
	write(t, s, func(ctx context.Context, tx ports.Tx) error { return tx.CreateProduct(ctx, p) })

	write(t, s, func(ctx context.Context, tx ports.Tx) error {
		ok, err := tx.DecrementStock(ctx, p.ID, 6)
		require.NoError(t, err)
		assert.False(t, ok, "decrement above stock must not apply")

		ok, err = tx.DecrementStock(ctx, p.ID, 5)
		require.NoError(t, err)
		assert.True(t, ok, "decrement equal to stock applies")

		ok, err = tx.DecrementStock(ctx, p.ID, 1)
		require.NoError(t, err)
		assert.False(t, ok, "stock is exhausted")

		ok, err = tx.DecrementStock(ctx, uuid.NewString(), 1)
		require.NoError(t, err)
		assert.False(t, ok, "unknown product")

		ok, err = tx.IncrementStock(ctx, p.ID, 2)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = tx.IncrementStock(ctx, uuid.NewString(), 2)
		require.NoError(t, err)
		assert.False(t, ok)
		return nil
	})

	assert.Equal(t, 2, stockOf(t, s, p.ID))
}

func testConcurrentDecrements(t *testing.T, s ports.Store) {
	const (
		stock   = 10
		workers = 25
	)
	p := newProduct(stock, "1")
	write(t, s, func(ctx context.Context, tx ports.Tx) error { return tx.CreateProduct(ctx, p) })

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		applied int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.InTx(context.Background(), func(tx ports.Tx) error {
				ok, err := tx.DecrementStock(context.Background(), p.ID, 1)
				if err != nil || !ok {
					return err
				}
				mu.Lock()
				applied++
				mu.Unlock()
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, stock, applied)
	assert.Equal(t, 0, stockOf(t, s, p.ID))
}

// ---------------------------------------------------------------------------
// Orders
// ---------------------------------------------------------------------------

type orderWorld struct {
	admin, emp, cust, other *domain.User
	product                 *domain.Product
}

func seedOrderWorld(t *testing.T, s ports.Store) orderWorld {
	t.Helper()
	w := orderWorld{
		admin:   newUser(domain.RoleAdmin, "", base),
		product: newProduct(100, "2.50"),
	}
	w.emp = newUser(domain.RoleEmployee, w.admin.ID, base)
	w.cust = newUser(domain.RoleCustomer, "", base)
	w.other = newUser(domain.RoleCustomer, "", base)

	write(t, s, func(ctx context.Context, tx ports.Tx) error {
		for _, u := range []*domain.User{w.admin, w.emp, w.cust, w.other} {
			if err := tx.CreateUser(ctx, u); err != nil {
				return err
			}
		}
		return tx.CreateProduct(ctx, w.product)
	})
	return w
}

func testOrders(t *testing.T, s ports.Store) {
	w := seedOrderWorld(t, s)
	o := newOrder(w.cust.ID, w.admin.ID, domain.OrderPending, base,
		domain.OrderItem{ProductID: w.product.ID, Quantity: 2, UnitPrice: decimal.RequireFromString("2.50")},
		domain.OrderItem{ProductID: w.product.ID, Quantity: 1, UnitPrice: decimal.RequireFromString("1.25")},
	)
	o.AssignedToID = domain.StringPtr(w.emp.ID)

	write(t, s, func(ctx context.Context, tx ports.Tx) error { return tx.CreateOrder(ctx, o) })

	read(t, s, func(ctx context.Context, tx ports.Tx) error {
		got, err := tx.FindOrderByID(ctx, o.ID)
		require.NoError(t, err)
		assert.Equal(t, w.cust.ID, got.CustomerID)
		assert.Equal(t, w.admin.ID, got.CreatedByID)
		assert.Equal(t, w.emp.ID, domain.Deref(got.AssignedToID))
		assert.Equal(t, domain.OrderPending, got.Status)
		assert.True(t, got.Total.Equal(decimal.RequireFromString("6.25")), "total %s", got.Total)
		require.Len(t, got.Items, 2)
		assert.Equal(t, 2, got.Items[0].Quantity)
		assert.True(t, got.Items[1].UnitPrice.Equal(decimal.RequireFromString("1.25")))
		assert.Equal(t, o.ID, got.Items[1].OrderID)

		_, err = tx.FindOrderByID(ctx, uuid.NewString())
		assert.ErrorIs(t, err, domain.ErrNotFound)
		return nil
	})
}

func testOrderListing(t *testing.T, s ports.Store) {
	w := seedOrderWorld(t, s)
	item := func() domain.OrderItem {
		return domain.OrderItem{ProductID: w.product.ID, Quantity: 1, UnitPrice: w.product.Price}
	}

	byAdmin := newOrder(w.cust.ID, w.admin.ID, domain.OrderDraft, base.Add(1*time.Minute), item())
	assigned := newOrder(w.other.ID, w.other.ID, domain.OrderPending, base.Add(2*time.Minute), item())
	assigned.AssignedToID = domain.StringPtr(w.emp.ID)
	ownByCust := newOrder(w.cust.ID, w.cust.ID, domain.OrderPending, base.Add(3*time.Minute), item())
	unrelated := newOrder(w.other.ID, w.other.ID, domain.OrderCancelled, base.Add(4*time.Minute), item())

	write(t, s, func(ctx context.Context, tx ports.Tx) error {
		for _, o := range []*domain.Order{byAdmin, assigned, ownByCust, unrelated} {
			if err := tx.CreateOrder(ctx, o); err != nil {
				return err
			}
		}
		return nil
	})

	ids := func(orders []*domain.Order) []string {
		out := make([]string, 0, len(orders))
		for _, o := range orders {
			out = append(out, o.ID)
		}
		return out
	}

	read(t, s, func(ctx context.Context, tx ports.Tx) error {
		scope := ports.OrderScope{
			CreatedBy:  []string{w.admin.ID},
			AssignedTo: []string{w.emp.ID},
			Customers:  []string{w.cust.ID},
		}

		orders, total, err := tx.ListOrders(ctx, ports.OrderFilter{Scope: scope})
		require.NoError(t, err)
		assert.EqualValues(t, 3, total)
		assert.Equal(t, []string{ownByCust.ID, assigned.ID, byAdmin.ID}, ids(orders), "newest first")
		for _, o := range orders {
			assert.Empty(t, o.Items, "listings do not load items")
		}

		orders, total, err = tx.ListOrders(ctx, ports.OrderFilter{Scope: scope, Status: domain.OrderPending})
		require.NoError(t, err)
		assert.EqualValues(t, 2, total)
		assert.Equal(t, []string{ownByCust.ID, assigned.ID}, ids(orders))

		orders, total, err = tx.ListOrders(ctx, ports.OrderFilter{Scope: scope, CustomerID: w.cust.ID, Page: 2, Limit: 1})
		require.NoError(t, err)
		assert.EqualValues(t, 2, total)
		assert.Equal(t, []string{byAdmin.ID}, ids(orders))

		orders, total, err = tx.ListOrders(ctx, ports.OrderFilter{Scope: ports.OrderScope{Customers: []string{w.other.ID}}})
		require.NoError(t, err)
		assert.EqualValues(t, 2, total)
		assert.Equal(t, []string{unrelated.ID, assigned.ID}, ids(orders))

		_, total, err = tx.ListOrders(ctx, ports.OrderFilter{})
		require.NoError(t, err)
		assert.Zero(t, total, "an empty scope matches nothing")
		return nil
	})
}

func testOrderGuards(t *testing.T, s ports.Store) {
	w := seedOrderWorld(t, s)
	o := newOrder(w.cust.ID, w.cust.ID, domain.OrderPending, base,
		domain.OrderItem{ProductID: w.product.ID, Quantity: 1, UnitPrice: w.product.Price})
	write(t, s, func(ctx context.Context, tx ports.Tx) error { return tx.CreateOrder(ctx, o) })

	later := base.Add(time.Hour)
	write(t, s, func(ctx context.Context, tx ports.Tx) error {
		ok, err := tx.UpdateOrderStatus(ctx, o.ID, domain.OrderDraft, domain.OrderPending, later)
		require.NoError(t, err)
		assert.False(t, ok, "status compare must fail on a stale from")

		ok, err = tx.UpdateOrderAssignee(ctx, o.ID, domain.StringPtr(w.emp.ID), later)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = tx.UpdateOrderStatus(ctx, o.ID, domain.OrderPending, domain.OrderCompleted, later)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = tx.UpdateOrderAssignee(ctx, o.ID, nil, later)
		require.NoError(t, err)
		assert.False(t, ok, "terminal orders cannot be reassigned")

		ok, err = tx.DeleteOrder(ctx, o.ID, domain.OrderPending)
		require.NoError(t, err)
		assert.False(t, ok, "delete must match the observed status")
		return nil
	})

	read(t, s, func(ctx context.Context, tx ports.Tx) error {
		got, err := tx.FindOrderByID(ctx, o.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.OrderCompleted, got.Status)
		assert.Equal(t, w.emp.ID, domain.Deref(got.AssignedToID))
		assert.True(t, got.UpdatedAt.Equal(later))
		return nil
	})

	write(t, s, func(ctx context.Context, tx ports.Tx) error {
		ok, err := tx.DeleteOrder(ctx, o.ID, domain.OrderCompleted)
		require.NoError(t, err)
		assert.True(t, ok)
		return nil
	})

	read(t, s, func(ctx context.Context, tx ports.Tx) error {
		_, err := tx.FindOrderByID(ctx, o.ID)
		assert.ErrorIs(t, err, domain.ErrNotFound)
		return nil
	})
}

func testRollback(t *testing.T, s ports.Store) {
	p := newProduct(4, "1")
	write(t, s, func(ctx context.Context, tx ports.Tx) error { return tx.CreateProduct(ctx, p) })

	boom := errors.New("boom")
	err := s.InTx(context.Background(), func(tx ports.Tx) error {
		ok, err := tx.DecrementStock(context.Background(), p.ID, 3)
		require.NoError(t, err)
		require.True(t, ok)
		return boom
	})
	assert.ErrorIs(t, err, boom, "the callback error is returned unchanged")
	assert.Equal(t, 4, stockOf(t, s, p.ID), "a failed transaction leaves no trace")
}
