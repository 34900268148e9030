package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/bizdesk/backoffice/internal/core/domain"
	"github.com/bizdesk/backoffice/internal/core/inventory"
	"github.com/bizdesk/backoffice/internal/core/ports"
	"github.com/bizdesk/backoffice/internal/core/visibility"
	"github.com/bizdesk/backoffice/internal/infrastructure/db/memory"
)

const superAdminEmail = "root@bizdesk.test"

// ---------------------------------------------------------------------------
// Stubs
// ---------------------------------------------------------------------------

type recordingAudit struct {
	mu     sync.Mutex
	events []domain.OrderEvent
}

func (a *recordingAudit) Notify(e domain.OrderEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, e)
}

func (a *recordingAudit) actions() []domain.OrderAction {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]domain.OrderAction, 0, len(a.events))
	for _, e := range a.events {
		out = append(out, e.Action)
	}
	return out
}

type stubIdempotency struct {
	mu   sync.Mutex
	keys map[string]string
}

func newStubIdempotency() *stubIdempotency {
	return &stubIdempotency{keys: make(map[string]string)}
}

func (s *stubIdempotency) Lookup(_ context.Context, actorID, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.keys[actorID+"/"+key]
	return id, ok, nil
}

func (s *stubIdempotency) Remember(_ context.Context, actorID, key, orderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[actorID+"/"+key] = orderID
	return nil
}

// ---------------------------------------------------------------------------
// Fixture
// ---------------------------------------------------------------------------

type fixture struct {
	store     *memory.Store
	vis       *visibility.Engine
	audit     *recordingAudit
	idem      *stubIdempotency
	orders    *OrderService
	customers *CustomerService
	products  *ProductService
	auth      *AuthService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.New()
	vis := visibility.New(visibility.Config{SuperAdminEmail: superAdminEmail})
	ledger := inventory.NewLedger(store, zerolog.Nop())
	audit := &recordingAudit{}
	idem := newStubIdempotency()

	return &fixture{
		store:     store,
		vis:       vis,
		audit:     audit,
		idem:      idem,
		orders:    NewOrderService(store, ledger, vis, idem, audit, zerolog.Nop()),
		customers: NewCustomerService(store, vis, zerolog.Nop()),
		products:  NewProductService(store, ledger, zerolog.Nop()),
		auth:      NewAuthService(store, vis, "secret", time.Hour, zerolog.Nop()),
	}
}

// user seeds an account directly in the store and returns it as an actor.
func (f *fixture) user(t *testing.T, id string, role domain.Role, createdBy string) *domain.Actor {
	t.Helper()
	email := id + "@bizdesk.test"
	if id == "super" {
		email = superAdminEmail
	}
	now := time.Now().UTC()
	err := f.store.InTx(context.Background(), func(tx ports.Tx) error {
		return tx.CreateUser(context.Background(), &domain.User{
			ID:          id,
			Email:       email,
			Role:        role,
			CreatedByID: domain.StringPtr(createdBy),
			CreatedAt:   now,
			UpdatedAt:   now,
		})
	})
	if err != nil {
		t.Fatalf("seed user %s: %v", id, err)
	}
	return &domain.Actor{ID: id, Role: role, Email: email}
}

func (f *fixture) assign(t *testing.T, customerID, employeeID string) {
	t.Helper()
	err := f.store.InTx(context.Background(), func(tx ports.Tx) error {
		return tx.AssignCustomer(context.Background(), domain.CustomerAssignment{
			CustomerID: customerID,
			EmployeeID: employeeID,
			AssignedAt: time.Now().UTC(),
		})
	})
	if err != nil {
		t.Fatalf("assign %s -> %s: %v", customerID, employeeID, err)
	}
}

func (f *fixture) product(t *testing.T, id string, stock int, price string) {
	t.Helper()
	err := f.store.InTx(context.Background(), func(tx ports.Tx) error {
		return tx.CreateProduct(context.Background(), &domain.Product{
			ID:    id,
			SKU:   "SKU-" + id,
			Name:  "product " + id,
			Price: decimal.RequireFromString(price),
			Stock: stock,
		})
	})
	if err != nil {
		t.Fatalf("seed product %s: %v", id, err)
	}
}

func (f *fixture) stock(t *testing.T, productID string) int {
	t.Helper()
	var stock int
	err := f.store.View(context.Background(), func(tx ports.Tx) error {
		p, err := tx.FindProductByID(context.Background(), productID)
		if err != nil {
			return err
		}
		stock = p.Stock
		return nil
	})
	if err != nil {
		t.Fatalf("read stock %s: %v", productID, err)
	}
	return stock
}

func (f *fixture) orderCount(t *testing.T) int {
	t.Helper()
	var n int64
	err := f.store.View(context.Background(), func(tx ports.Tx) error {
		var err error
		_, n, err = tx.ListOrders(context.Background(), ports.OrderFilter{Scope: ports.OrderScope{All: true}})
		return err
	})
	if err != nil {
		t.Fatalf("count orders: %v", err)
	}
	return int(n)
}

func items(lines ...ports.OrderItemInput) []ports.OrderItemInput { return lines }

func line(productID string, qty int) ports.OrderItemInput {
	return ports.OrderItemInput{ProductID: productID, Quantity: qty}
}
