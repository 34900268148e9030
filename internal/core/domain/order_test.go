package domain

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestOrderStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from, to OrderStatus
		want     bool
	}{
		{OrderDraft, OrderPending, true},
		{OrderDraft, OrderCancelled, true},
		{OrderDraft, OrderCompleted, false},
		{OrderPending, OrderCompleted, true},
		{OrderPending, OrderCancelled, true},
		{OrderPending, OrderDraft, false},
		{OrderCompleted, OrderCancelled, false},
		{OrderCancelled, OrderCancelled, false},
		{OrderCancelled, OrderPending, false},
	}
	for _, tc := range tests {
		if got := tc.from.CanTransitionTo(tc.to); got != tc.want {
			t.Errorf("%s -> %s: expected %v, got %v", tc.from, tc.to, tc.want, got)
		}
	}
}

func TestOrderStatus_HoldsStock(t *testing.T) {
	held := map[OrderStatus]bool{
		OrderDraft:     false,
		OrderPending:   true,
		OrderCompleted: true,
		OrderCancelled: false,
	}
	for status, want := range held {
		if got := status.HoldsStock(); got != want {
			t.Errorf("%s: expected HoldsStock %v, got %v", status, want, got)
		}
	}
}

func TestComputeTotal(t *testing.T) {
	items := []OrderItem{
		{ProductID: "a", Quantity: 3, UnitPrice: decimal.RequireFromString("0.10")},
		{ProductID: "b", Quantity: 1, UnitPrice: decimal.RequireFromString("19.99")},
	}
	if got := ComputeTotal(items); !got.Equal(decimal.RequireFromString("20.29")) {
		t.Errorf("expected 20.29, got %s", got)
	}
	if got := ComputeTotal(nil); !got.IsZero() {
		t.Errorf("expected zero total, got %s", got)
	}
}
