package handler

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/bizdesk/backoffice/internal/core/domain"
	"github.com/bizdesk/backoffice/internal/core/ports"
)

type stubOrderService struct {
	createFn     func(ctx context.Context, in ports.CreateOrderInput) (*ports.CreateOrderResult, error)
	transitionFn func(ctx context.Context, actor *domain.Actor, id string, to domain.OrderStatus) (*domain.Order, error)
	reassignFn   func(ctx context.Context, actor *domain.Actor, id, assignee string) (*domain.Order, error)
	deleteFn     func(ctx context.Context, actor *domain.Actor, id string) error
	getFn        func(ctx context.Context, actor *domain.Actor, id string) (*domain.Order, error)
	listFn       func(ctx context.Context, in ports.ListOrdersInput) (*ports.ListOrdersResult, error)
}

func (s *stubOrderService) CreateOrder(ctx context.Context, in ports.CreateOrderInput) (*ports.CreateOrderResult, error) {
	return s.createFn(ctx, in)
}

func (s *stubOrderService) TransitionOrder(ctx context.Context, actor *domain.Actor, id string, to domain.OrderStatus) (*domain.Order, error) {
	return s.transitionFn(ctx, actor, id, to)
}

func (s *stubOrderService) ReassignOrder(ctx context.Context, actor *domain.Actor, id, assignee string) (*domain.Order, error) {
	return s.reassignFn(ctx, actor, id, assignee)
}

func (s *stubOrderService) DeleteOrder(ctx context.Context, actor *domain.Actor, id string) error {
	return s.deleteFn(ctx, actor, id)
}

func (s *stubOrderService) GetOrder(ctx context.Context, actor *domain.Actor, id string) (*domain.Order, error) {
	return s.getFn(ctx, actor, id)
}

func (s *stubOrderService) ListOrders(ctx context.Context, in ports.ListOrdersInput) (*ports.ListOrdersResult, error) {
	return s.listFn(ctx, in)
}

var customerActor = &domain.Actor{ID: "c-1", Role: domain.RoleCustomer}

func sampleOrder() *domain.Order {
	return &domain.Order{
		ID:          "o-1",
		CustomerID:  "c-1",
		CreatedByID: "c-1",
		Status:      domain.OrderPending,
		Total:       decimal.RequireFromString("5.00"),
		Items: []domain.OrderItem{
			{OrderID: "o-1", ProductID: "p-1", Quantity: 2, UnitPrice: decimal.RequireFromString("2.50")},
		},
	}
}

func TestOrderHandler_Create(t *testing.T) {
	stub := &stubOrderService{
		createFn: func(_ context.Context, in ports.CreateOrderInput) (*ports.CreateOrderResult, error) {
			if in.Actor.ID != "c-1" || in.IdempotencyKey != "k-1" || in.Status != domain.OrderDraft {
				t.Fatalf("unexpected input: %+v", in)
			}
			if len(in.Items) != 1 || in.Items[0].ProductID != "p-1" || in.Items[0].Quantity != 2 {
				t.Fatalf("unexpected items: %+v", in.Items)
			}
			return &ports.CreateOrderResult{Order: sampleOrder()}, nil
		},
	}
	c, rec := newContext(http.MethodPost, "/v1/orders", `{"items":[{"product_id":"p-1","quantity":2}],"status":"draft"}`, customerActor)
	c.Request().Header.Set("Idempotency-Key", "k-1")

	if err := NewOrderHandler(stub).Create(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}

	resp := decode(t, rec)
	if resp["id"] != "o-1" || resp["total"] != "5" {
		t.Fatalf("unexpected payload: %+v", resp)
	}
	items := resp["items"].([]any)
	if sub := items[0].(map[string]any)["subtotal"]; sub != "5" {
		t.Fatalf("subtotal = %v, want 5", sub)
	}
}

func TestOrderHandler_Create_ReplayReturns200(t *testing.T) {
	stub := &stubOrderService{
		createFn: func(context.Context, ports.CreateOrderInput) (*ports.CreateOrderResult, error) {
			return &ports.CreateOrderResult{Order: sampleOrder(), AlreadyExisted: true}, nil
		},
	}
	c, rec := newContext(http.MethodPost, "/v1/orders", `{"items":[{"product_id":"p-1","quantity":2}]}`, customerActor)

	if err := NewOrderHandler(stub).Create(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestOrderHandler_Create_Validation(t *testing.T) {
	tests := map[string]string{
		"no items":        `{"items":[]}`,
		"zero quantity":   `{"items":[{"product_id":"p-1","quantity":0}]}`,
		"missing product": `{"items":[{"quantity":1}]}`,
		"terminal status": `{"items":[{"product_id":"p-1","quantity":1}],"status":"completed"}`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			stub := &stubOrderService{
				createFn: func(context.Context, ports.CreateOrderInput) (*ports.CreateOrderResult, error) {
					t.Fatal("should not be called")
					return nil, nil
				},
			}
			c, _ := newContext(http.MethodPost, "/v1/orders", body, customerActor)

			if err := NewOrderHandler(stub).Create(c); !errors.Is(err, domain.ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
		})
	}
}

func TestOrderHandler_Create_PropagatesDomainErrors(t *testing.T) {
	stub := &stubOrderService{
		createFn: func(context.Context, ports.CreateOrderInput) (*ports.CreateOrderResult, error) {
			return nil, domain.ErrInsufficientStock
		},
	}
	c, _ := newContext(http.MethodPost, "/v1/orders", `{"items":[{"product_id":"p-1","quantity":99}]}`, customerActor)

	if err := NewOrderHandler(stub).Create(c); !errors.Is(err, domain.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}
}

func TestOrderHandler_Get(t *testing.T) {
	stub := &stubOrderService{
		getFn: func(_ context.Context, actor *domain.Actor, id string) (*domain.Order, error) {
			if id == "o-1" {
				return sampleOrder(), nil
			}
			return nil, domain.ErrForbidden
		},
	}
	h := NewOrderHandler(stub)

	c, rec := newContext(http.MethodGet, "/v1/orders/o-1", "", customerActor)
	c.SetParamNames("id")
	c.SetParamValues("o-1")
	if err := h.Get(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if got := decode(t, rec)["_links"].(map[string]any)["self"]; got != "/v1/orders/o-1" {
		t.Fatalf("self link = %v", got)
	}

	c, _ = newContext(http.MethodGet, "/v1/orders/o-2", "", customerActor)
	c.SetParamNames("id")
	c.SetParamValues("o-2")
	if err := h.Get(c); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestOrderHandler_List(t *testing.T) {
	stub := &stubOrderService{
		listFn: func(_ context.Context, in ports.ListOrdersInput) (*ports.ListOrdersResult, error) {
			if in.Status != "pending" || in.CustomerID != "c-1" || in.Page != 2 || in.Limit != 5 {
				t.Fatalf("unexpected input: %+v", in)
			}
			return &ports.ListOrdersResult{Items: []*domain.Order{sampleOrder()}, Total: 6, Page: 2, Limit: 5, TotalPages: 2}, nil
		},
	}
	c, rec := newContext(http.MethodGet, "/v1/orders?status=pending&customer_id=c-1&page=2&limit=5", "", customerActor)

	if err := NewOrderHandler(stub).List(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	resp := decode(t, rec)
	if data := resp["data"].([]any); len(data) != 1 {
		t.Fatalf("data = %v", data)
	}
	if p := resp["pagination"].(map[string]any); p["total"] != float64(6) || p["total_pages"] != float64(2) {
		t.Fatalf("pagination = %v", p)
	}
}

func TestOrderHandler_List_RejectsUnknownStatus(t *testing.T) {
	c, _ := newContext(http.MethodGet, "/v1/orders?status=shipped", "", customerActor)

	if err := NewOrderHandler(&stubOrderService{}).List(c); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestOrderHandler_Transition(t *testing.T) {
	stub := &stubOrderService{
		transitionFn: func(_ context.Context, _ *domain.Actor, id string, to domain.OrderStatus) (*domain.Order, error) {
			if id != "o-1" {
				t.Fatalf("id = %s", id)
			}
			if to == domain.OrderCompleted {
				return nil, domain.ErrInvalidTransition
			}
			o := sampleOrder()
			o.Status = to
			return o, nil
		},
	}
	h := NewOrderHandler(stub)

	c, rec := newContext(http.MethodPatch, "/v1/orders/o-1/status", `{"status":"cancelled"}`, customerActor)
	c.SetParamNames("id")
	c.SetParamValues("o-1")
	if err := h.Transition(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if got := decode(t, rec)["status"]; got != "cancelled" {
		t.Fatalf("status = %v", got)
	}

	c, _ = newContext(http.MethodPatch, "/v1/orders/o-1/status", `{"status":"completed"}`, customerActor)
	c.SetParamNames("id")
	c.SetParamValues("o-1")
	if err := h.Transition(c); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestOrderHandler_Reassign(t *testing.T) {
	staff := &domain.Actor{ID: "a-1", Role: domain.RoleAdmin}
	stub := &stubOrderService{
		reassignFn: func(_ context.Context, actor *domain.Actor, id, assignee string) (*domain.Order, error) {
			if actor.ID != "a-1" || id != "o-1" || assignee != "e-2" {
				t.Fatalf("unexpected call: %s %s %s", actor.ID, id, assignee)
			}
			o := sampleOrder()
			o.AssignedToID = domain.StringPtr(assignee)
			return o, nil
		},
	}
	c, rec := newContext(http.MethodPatch, "/v1/orders/o-1/assignee", `{"assigned_to_id":"e-2"}`, staff)
	c.SetParamNames("id")
	c.SetParamValues("o-1")

	if err := NewOrderHandler(stub).Reassign(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if got := decode(t, rec)["assigned_to_id"]; got != "e-2" {
		t.Fatalf("assigned_to_id = %v", got)
	}
}

func TestOrderHandler_Delete(t *testing.T) {
	deleted := ""
	stub := &stubOrderService{
		deleteFn: func(_ context.Context, _ *domain.Actor, id string) error {
			deleted = id
			return nil
		},
	}
	c, rec := newContext(http.MethodDelete, "/v1/orders/o-1", "", customerActor)
	c.SetParamNames("id")
	c.SetParamValues("o-1")

	if err := NewOrderHandler(stub).Delete(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusNoContent || deleted != "o-1" {
		t.Fatalf("got %d, deleted %q", rec.Code, deleted)
	}
}
