package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/bizdesk/backoffice/internal/core/domain"
	"github.com/bizdesk/backoffice/internal/core/ports"
)

func createOrder(t *testing.T, f *fixture, actor *domain.Actor, status domain.OrderStatus, customerID string, lines ...ports.OrderItemInput) *domain.Order {
	t.Helper()
	res, err := f.orders.CreateOrder(context.Background(), ports.CreateOrderInput{
		Actor:      actor,
		Items:      lines,
		Status:     status,
		CustomerID: customerID,
	})
	if err != nil {
		t.Fatalf("CreateOrder returned error: %v", err)
	}
	return res.Order
}

func transition(f *fixture, actor *domain.Actor, orderID string, to domain.OrderStatus) error {
	_, err := f.orders.TransitionOrder(context.Background(), actor, orderID, to)
	return err
}

// ---------------------------------------------------------------------------
// Create
// ---------------------------------------------------------------------------

func TestOrderService_Create_PendingReservesStock(t *testing.T) {
	f := newFixture(t)
	cust := f.user(t, "cust", domain.RoleCustomer, "")
	f.product(t, "p1", 10, "2.50")

	order := createOrder(t, f, cust, "", "", line("p1", 3))

	if order.Status != domain.OrderPending {
		t.Errorf("expected default status pending, got %s", order.Status)
	}
	if order.CustomerID != cust.ID || order.CreatedByID != cust.ID {
		t.Errorf("customer order must be for and by the customer: %+v", order)
	}
	if !order.Items[0].UnitPrice.Equal(decimal.RequireFromString("2.50")) {
		t.Errorf("expected unit price 2.50, got %s", order.Items[0].UnitPrice)
	}
	if !order.Total.Equal(decimal.RequireFromString("7.50")) {
		t.Errorf("expected total 7.50, got %s", order.Total)
	}
	if got := f.stock(t, "p1"); got != 7 {
		t.Errorf("expected stock 7, got %d", got)
	}
	if got := f.audit.actions(); len(got) != 1 || got[0] != domain.ActionCreated {
		t.Errorf("expected one created event, got %v", got)
	}
}

func TestOrderService_Create_DraftReservesNothing(t *testing.T) {
	f := newFixture(t)
	cust := f.user(t, "cust", domain.RoleCustomer, "")
	f.product(t, "p1", 5, "1")

	order := createOrder(t, f, cust, domain.OrderDraft, "", line("p1", 50))

	if order.Status != domain.OrderDraft {
		t.Errorf("expected draft, got %s", order.Status)
	}
	if got := f.stock(t, "p1"); got != 5 {
		t.Errorf("draft must not touch stock, got %d", got)
	}
}

func TestOrderService_Create_TotalSumsAllLines(t *testing.T) {
	f := newFixture(t)
	cust := f.user(t, "cust", domain.RoleCustomer, "")
	f.product(t, "a", 10, "1.10")
	f.product(t, "b", 10, "0.25")

	order := createOrder(t, f, cust, "", "", line("a", 3), line("b", 4))

	if !order.Total.Equal(decimal.RequireFromString("4.30")) {
		t.Errorf("expected total 4.30, got %s", order.Total)
	}
}

func TestOrderService_Create_QuantityEqualToStock(t *testing.T) {
	f := newFixture(t)
	cust := f.user(t, "cust", domain.RoleCustomer, "")
	f.product(t, "p1", 4, "1")

	createOrder(t, f, cust, "", "", line("p1", 4))

	if got := f.stock(t, "p1"); got != 0 {
		t.Errorf("expected stock 0, got %d", got)
	}
}

func TestOrderService_Create_QuantityOverStockFailsWholeOrder(t *testing.T) {
	f := newFixture(t)
	cust := f.user(t, "cust", domain.RoleCustomer, "")
	f.product(t, "a", 10, "1")
	f.product(t, "b", 4, "1")

	_, err := f.orders.CreateOrder(context.Background(), ports.CreateOrderInput{
		Actor: cust,
		Items: items(line("a", 2), line("b", 5)),
	})
	if !errors.Is(err, domain.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}
	if got := f.stock(t, "a"); got != 10 {
		t.Errorf("product a must be unchanged, got %d", got)
	}
	if got := f.stock(t, "b"); got != 4 {
		t.Errorf("product b must be unchanged, got %d", got)
	}
	if n := f.orderCount(t); n != 0 {
		t.Errorf("no order must be persisted, got %d", n)
	}
	if got := f.audit.actions(); len(got) != 0 {
		t.Errorf("failed operations must not be audited, got %v", got)
	}
}

func TestOrderService_Create_Validation(t *testing.T) {
	f := newFixture(t)
	cust := f.user(t, "cust", domain.RoleCustomer, "")
	f.product(t, "p1", 4, "1")

	tests := []struct {
		name  string
		input ports.CreateOrderInput
	}{
		{"no items", ports.CreateOrderInput{Actor: cust}},
		{"zero quantity", ports.CreateOrderInput{Actor: cust, Items: items(line("p1", 0))}},
		{"negative quantity", ports.CreateOrderInput{Actor: cust, Items: items(line("p1", -2))}},
		{"unknown product", ports.CreateOrderInput{Actor: cust, Items: items(line("ghost", 1))}},
		{"unknown product in draft", ports.CreateOrderInput{Actor: cust, Status: domain.OrderDraft, Items: items(line("ghost", 1))}},
		{"created as completed", ports.CreateOrderInput{Actor: cust, Status: domain.OrderCompleted, Items: items(line("p1", 1))}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := f.orders.CreateOrder(context.Background(), tc.input); !errors.Is(err, domain.ErrValidation) {
				t.Errorf("expected ErrValidation, got %v", err)
			}
		})
	}
	if got := f.stock(t, "p1"); got != 4 {
		t.Errorf("stock must be unchanged, got %d", got)
	}
}

func TestOrderService_Create_CustomerCannotOrderForOthers(t *testing.T) {
	f := newFixture(t)
	cust := f.user(t, "cust", domain.RoleCustomer, "")
	f.user(t, "other", domain.RoleCustomer, "")
	f.product(t, "p1", 4, "1")

	_, err := f.orders.CreateOrder(context.Background(), ports.CreateOrderInput{
		Actor:      cust,
		CustomerID: "other",
		Items:      items(line("p1", 1)),
	})
	if !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestOrderService_Create_StaffOnBehalfOfCustomer(t *testing.T) {
	f := newFixture(t)
	admin := f.user(t, "admin", domain.RoleAdmin, "")
	emp := f.user(t, "emp", domain.RoleEmployee, "admin")
	f.user(t, "cust", domain.RoleCustomer, "admin")
	f.user(t, "stranger", domain.RoleCustomer, "")
	f.assign(t, "cust", "emp")
	f.product(t, "p1", 10, "1")

	order := createOrder(t, f, admin, "", "cust", line("p1", 1))
	if order.CustomerID != "cust" || order.CreatedByID != admin.ID {
		t.Errorf("unexpected ownership: %+v", order)
	}
	if order.AssignedToID != nil {
		t.Errorf("admin orders have no default assignee, got %v", *order.AssignedToID)
	}

	byEmp := createOrder(t, f, emp, "", "cust", line("p1", 1))
	if domain.Deref(byEmp.AssignedToID) != emp.ID {
		t.Errorf("employee orders default to the employee, got %v", byEmp.AssignedToID)
	}

	_, err := f.orders.CreateOrder(context.Background(), ports.CreateOrderInput{Actor: admin, Items: items(line("p1", 1))})
	if !errors.Is(err, domain.ErrValidation) {
		t.Errorf("expected ErrValidation without customer_id, got %v", err)
	}

	_, err = f.orders.CreateOrder(context.Background(), ports.CreateOrderInput{Actor: emp, CustomerID: "stranger", Items: items(line("p1", 1))})
	if !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("expected ErrForbidden for invisible customer, got %v", err)
	}
}

func TestOrderService_Create_AssigneeMustBeEmployee(t *testing.T) {
	f := newFixture(t)
	admin := f.user(t, "admin", domain.RoleAdmin, "")
	f.user(t, "cust", domain.RoleCustomer, "admin")
	f.product(t, "p1", 10, "1")

	_, err := f.orders.CreateOrder(context.Background(), ports.CreateOrderInput{
		Actor:        admin,
		CustomerID:   "cust",
		AssignedToID: "cust",
		Items:        items(line("p1", 1)),
	})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if got := f.stock(t, "p1"); got != 10 {
		t.Errorf("stock must be unchanged, got %d", got)
	}
}

func TestOrderService_Create_IdempotencyReplay(t *testing.T) {
	f := newFixture(t)
	cust := f.user(t, "cust", domain.RoleCustomer, "")
	f.product(t, "p1", 10, "1")

	input := ports.CreateOrderInput{Actor: cust, Items: items(line("p1", 3)), IdempotencyKey: "key-1"}
	first, err := f.orders.CreateOrder(context.Background(), input)
	if err != nil {
		t.Fatalf("first create: %v", err)
	}
	second, err := f.orders.CreateOrder(context.Background(), input)
	if err != nil {
		t.Fatalf("second create: %v", err)
	}

	if !second.AlreadyExisted {
		t.Error("expected AlreadyExisted on replay")
	}
	if second.Order.ID != first.Order.ID {
		t.Errorf("expected same order, got %s and %s", first.Order.ID, second.Order.ID)
	}
	if got := f.stock(t, "p1"); got != 7 {
		t.Errorf("replay must not reserve again, stock %d", got)
	}
}

func TestOrderService_Create_NoIdempotencyKey_AlwaysCreates(t *testing.T) {
	f := newFixture(t)
	cust := f.user(t, "cust", domain.RoleCustomer, "")
	f.product(t, "p1", 10, "1")

	createOrder(t, f, cust, "", "", line("p1", 1))
	createOrder(t, f, cust, "", "", line("p1", 1))

	if n := f.orderCount(t); n != 2 {
		t.Errorf("expected 2 orders, got %d", n)
	}
}

// ---------------------------------------------------------------------------
// Transitions
// ---------------------------------------------------------------------------

func TestOrderService_ReserveReleaseRoundTrip(t *testing.T) {
	f := newFixture(t)
	cust := f.user(t, "cust", domain.RoleCustomer, "")
	f.product(t, "p1", 10, "1")

	order := createOrder(t, f, cust, "", "", line("p1", 3))
	if got := f.stock(t, "p1"); got != 7 {
		t.Fatalf("expected stock 7 after reserve, got %d", got)
	}

	if err := transition(f, cust, order.ID, domain.OrderCancelled); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if got := f.stock(t, "p1"); got != 10 {
		t.Errorf("expected stock 10 after cancel, got %d", got)
	}
}

func TestOrderService_DraftSubmitDelete(t *testing.T) {
	f := newFixture(t)
	cust := f.user(t, "cust", domain.RoleCustomer, "")
	emp := f.user(t, "emp", domain.RoleEmployee, "")
	f.assign(t, "cust", "emp")
	f.product(t, "p1", 5, "1")

	order := createOrder(t, f, cust, domain.OrderDraft, "", line("p1", 2))
	if got := f.stock(t, "p1"); got != 5 {
		t.Fatalf("expected stock 5 for draft, got %d", got)
	}

	if err := transition(f, cust, order.ID, domain.OrderPending); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if got := f.stock(t, "p1"); got != 3 {
		t.Fatalf("expected stock 3 after submit, got %d", got)
	}

	if err := f.orders.DeleteOrder(context.Background(), emp, order.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if got := f.stock(t, "p1"); got != 5 {
		t.Errorf("expected stock 5 after delete, got %d", got)
	}
	if _, err := f.orders.GetOrder(context.Background(), emp, order.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestOrderService_SubmitDraftWithoutStockFails(t *testing.T) {
	f := newFixture(t)
	cust := f.user(t, "cust", domain.RoleCustomer, "")
	f.product(t, "p1", 2, "1")

	order := createOrder(t, f, cust, domain.OrderDraft, "", line("p1", 3))

	if err := transition(f, cust, order.ID, domain.OrderPending); !errors.Is(err, domain.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}
	got, err := f.orders.GetOrder(context.Background(), cust, order.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != domain.OrderDraft {
		t.Errorf("failed submit must leave the order in draft, got %s", got.Status)
	}
	if s := f.stock(t, "p1"); s != 2 {
		t.Errorf("expected stock 2, got %d", s)
	}
}

func TestOrderService_DoubleCancelRejected(t *testing.T) {
	f := newFixture(t)
	cust := f.user(t, "cust", domain.RoleCustomer, "")
	f.product(t, "p1", 10, "1")

	order := createOrder(t, f, cust, "", "", line("p1", 4))

	if err := transition(f, cust, order.ID, domain.OrderCancelled); err != nil {
		t.Fatalf("first cancel: %v", err)
	}
	if err := transition(f, cust, order.ID, domain.OrderCancelled); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if got := f.stock(t, "p1"); got != 10 {
		t.Errorf("stock must be released exactly once, got %d", got)
	}
}

func TestOrderService_InvalidTransitions(t *testing.T) {
	f := newFixture(t)
	admin := f.user(t, "admin", domain.RoleAdmin, "")
	f.user(t, "cust", domain.RoleCustomer, "admin")
	f.product(t, "p1", 10, "1")

	draft := createOrder(t, f, admin, domain.OrderDraft, "cust", line("p1", 1))
	if err := transition(f, admin, draft.ID, domain.OrderCompleted); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Errorf("completing a draft: expected ErrInvalidTransition, got %v", err)
	}

	done := createOrder(t, f, admin, "", "cust", line("p1", 1))
	if err := transition(f, admin, done.ID, domain.OrderCompleted); err != nil {
		t.Fatalf("complete: %v", err)
	}
	for _, to := range []domain.OrderStatus{domain.OrderCancelled, domain.OrderPending, domain.OrderDraft} {
		if err := transition(f, admin, done.ID, to); !errors.Is(err, domain.ErrInvalidTransition) {
			t.Errorf("completed -> %s: expected ErrInvalidTransition, got %v", to, err)
		}
	}

	if err := transition(f, admin, done.ID, "shipped"); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("unknown status: expected ErrValidation, got %v", err)
	}
	if got := f.stock(t, "p1"); got != 9 {
		t.Errorf("completed order keeps its reservation, expected 9, got %d", got)
	}
}

func TestOrderService_CancelDraftTouchesNothing(t *testing.T) {
	f := newFixture(t)
	cust := f.user(t, "cust", domain.RoleCustomer, "")
	f.product(t, "p1", 3, "1")

	order := createOrder(t, f, cust, domain.OrderDraft, "", line("p1", 2))
	if err := transition(f, cust, order.ID, domain.OrderCancelled); err != nil {
		t.Fatalf("cancel draft: %v", err)
	}
	if got := f.stock(t, "p1"); got != 3 {
		t.Errorf("expected stock 3, got %d", got)
	}
}

func TestOrderService_OnlyStaffComplete(t *testing.T) {
	f := newFixture(t)
	cust := f.user(t, "cust", domain.RoleCustomer, "")
	f.product(t, "p1", 3, "1")

	order := createOrder(t, f, cust, "", "", line("p1", 1))
	if err := transition(f, cust, order.ID, domain.OrderCompleted); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestOrderService_TransitionInvisibleOrderForbidden(t *testing.T) {
	f := newFixture(t)
	cust := f.user(t, "cust", domain.RoleCustomer, "")
	other := f.user(t, "other", domain.RoleCustomer, "")
	f.product(t, "p1", 3, "1")

	order := createOrder(t, f, cust, "", "", line("p1", 1))
	if err := transition(f, other, order.ID, domain.OrderCancelled); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if err := transition(f, other, "missing", domain.OrderCancelled); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if got := f.stock(t, "p1"); got != 2 {
		t.Errorf("expected stock 2, got %d", got)
	}
}

// ---------------------------------------------------------------------------
// Delete
// ---------------------------------------------------------------------------

func TestOrderService_Delete_ReleasesOnlyHeldStock(t *testing.T) {
	f := newFixture(t)
	admin := f.user(t, "admin", domain.RoleAdmin, "")
	f.user(t, "cust", domain.RoleCustomer, "admin")
	f.product(t, "p1", 10, "1")

	cancelled := createOrder(t, f, admin, "", "cust", line("p1", 2))
	if err := transition(f, admin, cancelled.ID, domain.OrderCancelled); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	completed := createOrder(t, f, admin, "", "cust", line("p1", 3))
	if err := transition(f, admin, completed.ID, domain.OrderCompleted); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if got := f.stock(t, "p1"); got != 7 {
		t.Fatalf("expected stock 7, got %d", got)
	}

	if err := f.orders.DeleteOrder(context.Background(), admin, cancelled.ID); err != nil {
		t.Fatalf("delete cancelled: %v", err)
	}
	if got := f.stock(t, "p1"); got != 7 {
		t.Errorf("deleting a cancelled order must not release again, got %d", got)
	}

	if err := f.orders.DeleteOrder(context.Background(), admin, completed.ID); err != nil {
		t.Fatalf("delete completed: %v", err)
	}
	if got := f.stock(t, "p1"); got != 10 {
		t.Errorf("deleting a completed order releases its stock, got %d", got)
	}
}

func TestOrderService_Delete_CustomerOnlyDrafts(t *testing.T) {
	f := newFixture(t)
	cust := f.user(t, "cust", domain.RoleCustomer, "")
	f.product(t, "p1", 10, "1")

	draft := createOrder(t, f, cust, domain.OrderDraft, "", line("p1", 1))
	pending := createOrder(t, f, cust, "", "", line("p1", 1))

	if err := f.orders.DeleteOrder(context.Background(), cust, draft.ID); err != nil {
		t.Errorf("customer deleting own draft: %v", err)
	}
	if err := f.orders.DeleteOrder(context.Background(), cust, pending.ID); !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("expected ErrForbidden, got %v", err)
	}
	if got := f.stock(t, "p1"); got != 9 {
		t.Errorf("expected stock 9, got %d", got)
	}
}

// ---------------------------------------------------------------------------
// Reassign
// ---------------------------------------------------------------------------

func TestOrderService_Reassign(t *testing.T) {
	f := newFixture(t)
	admin := f.user(t, "admin", domain.RoleAdmin, "")
	f.user(t, "emp1", domain.RoleEmployee, "admin")
	f.user(t, "emp2", domain.RoleEmployee, "admin")
	f.user(t, "cust", domain.RoleCustomer, "admin")
	f.product(t, "p1", 10, "1")

	order := createOrder(t, f, admin, "", "cust", line("p1", 2))

	got, err := f.orders.ReassignOrder(context.Background(), admin, order.ID, "emp1")
	if err != nil {
		t.Fatalf("reassign: %v", err)
	}
	if domain.Deref(got.AssignedToID) != "emp1" {
		t.Errorf("expected emp1, got %v", got.AssignedToID)
	}
	if s := f.stock(t, "p1"); s != 8 {
		t.Errorf("reassign must not touch stock, got %d", s)
	}

	if _, err := f.orders.ReassignOrder(context.Background(), admin, order.ID, "cust"); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("expected ErrValidation for non-employee assignee, got %v", err)
	}

	if err := transition(f, admin, order.ID, domain.OrderCompleted); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if _, err := f.orders.ReassignOrder(context.Background(), admin, order.ID, "emp2"); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition on terminal order, got %v", err)
	}
}

func TestOrderService_Reassign_CustomerForbidden(t *testing.T) {
	f := newFixture(t)
	cust := f.user(t, "cust", domain.RoleCustomer, "")
	f.user(t, "emp", domain.RoleEmployee, "")
	f.product(t, "p1", 10, "1")

	order := createOrder(t, f, cust, "", "", line("p1", 1))
	if _, err := f.orders.ReassignOrder(context.Background(), cust, order.ID, "emp"); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

// ---------------------------------------------------------------------------
// Reads
// ---------------------------------------------------------------------------

func TestOrderService_Get_VisibilityScenario(t *testing.T) {
	f := newFixture(t)
	adminA := f.user(t, "adminA", domain.RoleAdmin, "")
	adminB := f.user(t, "adminB", domain.RoleAdmin, "")
	super := f.user(t, "super", domain.RoleAdmin, "")
	emp := f.user(t, "emp", domain.RoleEmployee, "adminA")
	cust := f.user(t, "cust", domain.RoleCustomer, "")
	f.assign(t, "cust", "emp")
	f.product(t, "p1", 10, "1")

	order := createOrder(t, f, emp, "", "cust", line("p1", 1))

	for _, actor := range []*domain.Actor{emp, adminA, super, cust} {
		if _, err := f.orders.GetOrder(context.Background(), actor, order.ID); err != nil {
			t.Errorf("%s should see the order: %v", actor.ID, err)
		}
	}
	if _, err := f.orders.GetOrder(context.Background(), adminB, order.ID); !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("expected ErrForbidden for unrelated admin, got %v", err)
	}
	if _, err := f.orders.GetOrder(context.Background(), adminB, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestOrderService_List_ScopedAndPaged(t *testing.T) {
	f := newFixture(t)
	admin := f.user(t, "admin", domain.RoleAdmin, "")
	cust := f.user(t, "cust", domain.RoleCustomer, "admin")
	other := f.user(t, "other", domain.RoleCustomer, "")
	f.product(t, "p1", 100, "1")

	for i := 0; i < 5; i++ {
		createOrder(t, f, cust, "", "", line("p1", 1))
	}
	createOrder(t, f, cust, domain.OrderDraft, "", line("p1", 1))
	createOrder(t, f, other, "", "", line("p1", 1))

	res, err := f.orders.ListOrders(context.Background(), ports.ListOrdersInput{Actor: cust, Limit: 2, Page: 3})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if res.Total != 6 || res.TotalPages != 3 || len(res.Items) != 2 {
		t.Errorf("unexpected page: total=%d pages=%d items=%d", res.Total, res.TotalPages, len(res.Items))
	}

	res, err = f.orders.ListOrders(context.Background(), ports.ListOrdersInput{Actor: cust, Status: "draft"})
	if err != nil {
		t.Fatalf("list drafts: %v", err)
	}
	if res.Total != 1 {
		t.Errorf("expected 1 draft, got %d", res.Total)
	}
	if res.Limit != 20 {
		t.Errorf("expected default limit 20, got %d", res.Limit)
	}

	// cust is a direct subordinate of admin, so its own orders are visible.
	res, err = f.orders.ListOrders(context.Background(), ports.ListOrdersInput{Actor: admin, Limit: 500})
	if err != nil {
		t.Fatalf("list as admin: %v", err)
	}
	if res.Total != 6 || res.Limit != 100 {
		t.Errorf("expected 6 orders with capped limit, got total=%d limit=%d", res.Total, res.Limit)
	}

	res, err = f.orders.ListOrders(context.Background(), ports.ListOrdersInput{Actor: other})
	if err != nil {
		t.Fatalf("list as other: %v", err)
	}
	if res.Total != 1 {
		t.Errorf("expected 1 order for other, got %d", res.Total)
	}

	if _, err := f.orders.ListOrders(context.Background(), ports.ListOrdersInput{Actor: cust, Status: "shipped"}); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("expected ErrValidation for unknown status, got %v", err)
	}

	res, err = f.orders.ListOrders(context.Background(), ports.ListOrdersInput{})
	if err != nil || res.Total != 0 {
		t.Errorf("unauthenticated list must be empty, got %+v, %v", res, err)
	}
}

// ---------------------------------------------------------------------------
// Concurrency
// ---------------------------------------------------------------------------

func TestOrderService_ConcurrentCreates_NeverOversell(t *testing.T) {
	const (
		stock    = 10
		requests = 30
	)
	f := newFixture(t)
	cust := f.user(t, "cust", domain.RoleCustomer, "")
	f.product(t, "hot", stock, "1")

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < requests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.orders.CreateOrder(context.Background(), ports.CreateOrderInput{
				Actor: cust,
				Items: items(line("hot", 1)),
			})
			if err != nil && !errors.Is(err, domain.ErrInsufficientStock) {
				t.Errorf("unexpected error: %v", err)
			}
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if succeeded != stock {
		t.Errorf("expected %d successful orders, got %d", stock, succeeded)
	}
	if got := f.stock(t, "hot"); got != 0 {
		t.Errorf("expected stock 0, got %d", got)
	}
	if n := f.orderCount(t); n != stock {
		t.Errorf("expected %d persisted orders, got %d", stock, n)
	}
}

func TestOrderService_ConcurrentCancels_ReleaseOnce(t *testing.T) {
	f := newFixture(t)
	cust := f.user(t, "cust", domain.RoleCustomer, "")
	f.product(t, "p1", 10, "1")

	order := createOrder(t, f, cust, "", "", line("p1", 6))

	var (
		wg sync.WaitGroup
		mu sync.Mutex
		ok int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := transition(f, cust, order.ID, domain.OrderCancelled)
			if err != nil && !errors.Is(err, domain.ErrInvalidTransition) {
				t.Errorf("unexpected error: %v", err)
			}
			if err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if ok != 1 {
		t.Errorf("expected exactly one successful cancel, got %d", ok)
	}
	if got := f.stock(t, "p1"); got != 10 {
		t.Errorf("expected stock 10, got %d", got)
	}
}
