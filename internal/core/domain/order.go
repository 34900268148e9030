package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus represents the lifecycle state of an order.
type OrderStatus string

const (
	OrderDraft     OrderStatus = "draft"
	OrderPending   OrderStatus = "pending"
	OrderCompleted OrderStatus = "completed"
	OrderCancelled OrderStatus = "cancelled"
)

// validTransitions defines the allowed state machine transitions.
// completed and cancelled are terminal.
var validTransitions = map[OrderStatus][]OrderStatus{
	OrderDraft:   {OrderPending, OrderCancelled},
	OrderPending: {OrderCompleted, OrderCancelled},
}

// Valid reports whether s is a known status.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderDraft, OrderPending, OrderCompleted, OrderCancelled:
		return true
	}
	return false
}

// CanTransitionTo reports whether a transition from current status to next is valid.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range validTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are possible.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderCompleted || s == OrderCancelled
}

// HoldsStock reports whether an order in this status has its items reserved
// against product stock.
func (s OrderStatus) HoldsStock() bool {
	return s == OrderPending || s == OrderCompleted
}

// OrderItem is a single line of an order. UnitPrice is captured when the
// order is created and never recalculated.
type OrderItem struct {
	OrderID   string          `json:"order_id"`
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// Subtotal is quantity × unit price.
func (i OrderItem) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Order is the aggregate root of the fulfillment state machine.
type Order struct {
	ID           string          `json:"id"`
	CustomerID   string          `json:"customer_id"`
	CreatedByID  string          `json:"created_by_id"`
	AssignedToID *string         `json:"assigned_to_id,omitempty"`
	Status       OrderStatus     `json:"status"`
	Total        decimal.Decimal `json:"total"`
	Items        []OrderItem     `json:"items,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// ComputeTotal sums the subtotals of items.
func ComputeTotal(items []OrderItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Subtotal())
	}
	return total
}

// StockLine is a quantity of one product moved by the inventory ledger.
type StockLine struct {
	ProductID string
	Quantity  int
}

// StockLines returns the reservation lines for the order's items.
func (o *Order) StockLines() []StockLine {
	lines := make([]StockLine, 0, len(o.Items))
	for _, item := range o.Items {
		lines = append(lines, StockLine{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	return lines
}
