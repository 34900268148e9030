package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/bizdesk/backoffice/internal/core/domain"
	"github.com/bizdesk/backoffice/internal/core/inventory"
	"github.com/bizdesk/backoffice/internal/core/ports"
	"github.com/bizdesk/backoffice/internal/core/visibility"
)

// OrderService is the order fulfillment state machine. Every status change
// and its stock effect commit in one store transaction.
type OrderService struct {
	store       ports.Store
	ledger      *inventory.Ledger
	visibility  *visibility.Engine
	idempotency ports.IdempotencyStore
	audit       ports.AuditSink
	logger      zerolog.Logger
}

// NewOrderService wires the state machine. idempotency and audit may be nil.
func NewOrderService(
	store ports.Store,
	ledger *inventory.Ledger,
	vis *visibility.Engine,
	idempotency ports.IdempotencyStore,
	audit ports.AuditSink,
	logger zerolog.Logger,
) *OrderService {
	if audit == nil {
		audit = nopAudit{}
	}
	return &OrderService{
		store:       store,
		ledger:      ledger,
		visibility:  vis,
		idempotency: idempotency,
		audit:       audit,
		logger:      logger,
	}
}

type nopAudit struct{}

func (nopAudit) Notify(domain.OrderEvent) {}

// CreateOrder creates an order in draft or pending. Pending orders reserve
// stock for all items or fail without touching any counter. If an idempotency
// key is provided and already seen, the previously created order is returned
// without side effects.
func (s *OrderService) CreateOrder(ctx context.Context, input ports.CreateOrderInput) (*ports.CreateOrderResult, error) {
	actor := input.Actor
	if !actor.Authenticated() {
		return nil, domain.ErrForbidden
	}

	status := input.Status
	if status == "" {
		status = domain.OrderPending
	}
	if status != domain.OrderDraft && status != domain.OrderPending {
		return nil, domain.Validationf("orders are created as draft or pending, not %q", status)
	}
	if err := validateItems(input.Items); err != nil {
		return nil, err
	}

	if existing := s.replay(ctx, actor, input.IdempotencyKey); existing != nil {
		return &ports.CreateOrderResult{Order: existing, AlreadyExisted: true}, nil
	}

	now := time.Now().UTC()
	order := &domain.Order{
		ID:          uuid.NewString(),
		CreatedByID: actor.ID,
		Status:      status,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err := s.store.InTx(ctx, func(tx ports.Tx) error {
		customerID, err := s.resolveCustomer(ctx, tx, actor, input.CustomerID)
		if err != nil {
			return err
		}
		order.CustomerID = customerID

		if order.AssignedToID, err = s.resolveAssignee(ctx, tx, actor, input.AssignedToID); err != nil {
			return err
		}
		if order.Items, err = priceItems(ctx, tx, order.ID, input.Items); err != nil {
			return err
		}
		order.Total = domain.ComputeTotal(order.Items)

		if status.HoldsStock() {
			if err := s.ledger.ReserveIn(ctx, tx, order.StockLines()); err != nil {
				return err
			}
		}
		return tx.CreateOrder(ctx, order)
	})
	if err != nil {
		s.logRejection(err, "", "create order")
		return nil, err
	}

	if input.IdempotencyKey != "" && s.idempotency != nil {
		if err := s.idempotency.Remember(ctx, actor.ID, input.IdempotencyKey, order.ID); err != nil {
			s.logger.Warn().Err(err).Str("order_id", order.ID).Msg("failed to record idempotency key")
		}
	}

	s.logger.Info().
		Str("order_id", order.ID).
		Str("customer_id", order.CustomerID).
		Str("status", string(order.Status)).
		Str("actor_id", actor.ID).
		Msg("order created")

	s.audit.Notify(domain.OrderEvent{
		OrderID:      order.ID,
		Action:       domain.ActionCreated,
		To:           order.Status,
		ActorID:      actor.ID,
		AssignedToID: domain.Deref(order.AssignedToID),
		Timestamp:    now,
	})

	return &ports.CreateOrderResult{Order: order}, nil
}

// replay returns the order an earlier request with the same key created, or nil.
func (s *OrderService) replay(ctx context.Context, actor *domain.Actor, key string) *domain.Order {
	if key == "" || s.idempotency == nil {
		return nil
	}

	orderID, found, err := s.idempotency.Lookup(ctx, actor.ID, key)
	if err != nil {
		s.logger.Warn().Err(err).Str("idempotency_key", key).Msg("idempotency lookup failed")
		return nil
	}
	if !found {
		return nil
	}

	var existing *domain.Order
	err = s.store.View(ctx, func(tx ports.Tx) error {
		var err error
		existing, err = tx.FindOrderByID(ctx, orderID)
		return err
	})
	if err != nil {
		return nil
	}
	s.logger.Info().Str("idempotency_key", key).Str("order_id", existing.ID).Msg("idempotent replay")
	return existing
}

func validateItems(items []ports.OrderItemInput) error {
	if len(items) == 0 {
		return domain.Validationf("an order needs at least one item")
	}
	for _, item := range items {
		if item.ProductID == "" {
			return domain.Validationf("product_id is required")
		}
		if item.Quantity <= 0 {
			return domain.Validationf("quantity must be positive for product %s", item.ProductID)
		}
	}
	return nil
}

// resolveCustomer returns the beneficiary of a new order. Customers always
// order for themselves; staff must name a customer they can view.
func (s *OrderService) resolveCustomer(ctx context.Context, tx ports.Tx, actor *domain.Actor, customerID string) (string, error) {
	if actor.Role == domain.RoleCustomer {
		if customerID != "" && customerID != actor.ID {
			return "", fmt.Errorf("%w: customers order for themselves", domain.ErrForbidden)
		}
		return actor.ID, nil
	}

	if customerID == "" {
		return "", domain.Validationf("customer_id is required")
	}
	customer, err := tx.FindUserByID(ctx, customerID)
	if errors.Is(err, domain.ErrNotFound) {
		return "", domain.Validationf("unknown customer %s", customerID)
	}
	if err != nil {
		return "", err
	}
	if customer.Role != domain.RoleCustomer {
		return "", domain.Validationf("user %s is not a customer", customerID)
	}

	ok, err := s.visibility.CanViewCustomer(ctx, tx, actor, customer)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", domain.ErrForbidden
	}
	return customer.ID, nil
}

// resolveAssignee validates an explicit assignee, defaulting to the acting
// employee.
func (s *OrderService) resolveAssignee(ctx context.Context, tx ports.Tx, actor *domain.Actor, assigneeID string) (*string, error) {
	if assigneeID == "" {
		if actor.Role == domain.RoleEmployee {
			return domain.StringPtr(actor.ID), nil
		}
		return nil, nil
	}
	if err := requireEmployee(ctx, tx, assigneeID); err != nil {
		return nil, err
	}
	return domain.StringPtr(assigneeID), nil
}

func requireEmployee(ctx context.Context, tx ports.Tx, userID string) error {
	user, err := tx.FindUserByID(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Validationf("unknown assignee %s", userID)
	}
	if err != nil {
		return err
	}
	if user.Role != domain.RoleEmployee {
		return domain.Validationf("assignee %s is not an employee", userID)
	}
	return nil
}

// priceItems captures the current product price on every line.
func priceItems(ctx context.Context, tx ports.Tx, orderID string, inputs []ports.OrderItemInput) ([]domain.OrderItem, error) {
	ids := make([]string, 0, len(inputs))
	for _, in := range inputs {
		ids = append(ids, in.ProductID)
	}
	products, err := tx.FindProductsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	items := make([]domain.OrderItem, 0, len(inputs))
	for _, in := range inputs {
		product, ok := products[in.ProductID]
		if !ok {
			return nil, domain.Validationf("unknown product %s", in.ProductID)
		}
		items = append(items, domain.OrderItem{
			OrderID:   orderID,
			ProductID: product.ID,
			Quantity:  in.Quantity,
			UnitPrice: product.Price,
		})
	}
	return items, nil
}

// TransitionOrder moves an order to status `to`, reserving or releasing stock
// by the difference between what the old and new status hold.
func (s *OrderService) TransitionOrder(ctx context.Context, actor *domain.Actor, orderID string, to domain.OrderStatus) (*domain.Order, error) {
	if !to.Valid() {
		return nil, domain.Validationf("unknown status %q", to)
	}
	if to == domain.OrderCompleted && (!actor.Authenticated() || !actor.Role.IsStaff()) {
		return nil, fmt.Errorf("%w: only staff complete orders", domain.ErrForbidden)
	}

	var (
		order *domain.Order
		from  domain.OrderStatus
		now   = time.Now().UTC()
	)
	err := s.store.InTx(ctx, func(tx ports.Tx) error {
		var err error
		if order, err = s.loadVisible(ctx, tx, actor, orderID); err != nil {
			return err
		}

		from = order.Status
		if !from.CanTransitionTo(to) {
			return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, from, to)
		}
		changed, err := tx.UpdateOrderStatus(ctx, order.ID, from, to, now)
		if err != nil {
			return err
		}
		if !changed {
			return fmt.Errorf("%w: order %s changed concurrently", domain.ErrInvalidTransition, order.ID)
		}

		switch {
		case to.HoldsStock() && !from.HoldsStock():
			err = s.ledger.ReserveIn(ctx, tx, order.StockLines())
		case from.HoldsStock() && !to.HoldsStock():
			err = s.ledger.ReleaseIn(ctx, tx, order.StockLines())
		}
		return err
	})
	if err != nil {
		s.logRejection(err, orderID, "transition order")
		return nil, err
	}

	order.Status = to
	order.UpdatedAt = now

	s.logger.Info().
		Str("order_id", order.ID).
		Str("from", string(from)).
		Str("to", string(to)).
		Str("actor_id", actor.ID).
		Msg("order transitioned")

	s.audit.Notify(domain.OrderEvent{
		OrderID:      order.ID,
		Action:       domain.ActionTransitioned,
		From:         from,
		To:           to,
		ActorID:      actor.ID,
		AssignedToID: domain.Deref(order.AssignedToID),
		Timestamp:    now,
	})

	return order, nil
}

// ReassignOrder changes the responsible employee of a non-terminal order.
// Stock is never touched.
func (s *OrderService) ReassignOrder(ctx context.Context, actor *domain.Actor, orderID, assigneeID string) (*domain.Order, error) {
	if !actor.Authenticated() || !actor.Role.IsStaff() {
		return nil, fmt.Errorf("%w: only staff reassign orders", domain.ErrForbidden)
	}
	if assigneeID == "" {
		return nil, domain.Validationf("assignee is required")
	}

	var (
		order *domain.Order
		now   = time.Now().UTC()
	)
	err := s.store.InTx(ctx, func(tx ports.Tx) error {
		var err error
		if order, err = s.loadVisible(ctx, tx, actor, orderID); err != nil {
			return err
		}
		if order.Status.IsTerminal() {
			return fmt.Errorf("%w: cannot reassign a %s order", domain.ErrInvalidTransition, order.Status)
		}
		if err := requireEmployee(ctx, tx, assigneeID); err != nil {
			return err
		}

		changed, err := tx.UpdateOrderAssignee(ctx, order.ID, domain.StringPtr(assigneeID), now)
		if err != nil {
			return err
		}
		if !changed {
			return fmt.Errorf("%w: order %s changed concurrently", domain.ErrInvalidTransition, order.ID)
		}
		return nil
	})
	if err != nil {
		s.logRejection(err, orderID, "reassign order")
		return nil, err
	}

	order.AssignedToID = domain.StringPtr(assigneeID)
	order.UpdatedAt = now

	s.logger.Info().Str("order_id", order.ID).Str("assigned_to_id", assigneeID).Str("actor_id", actor.ID).Msg("order reassigned")

	s.audit.Notify(domain.OrderEvent{
		OrderID:      order.ID,
		Action:       domain.ActionReassigned,
		From:         order.Status,
		To:           order.Status,
		ActorID:      actor.ID,
		AssignedToID: assigneeID,
		Timestamp:    now,
	})

	return order, nil
}

// DeleteOrder removes an order, releasing whatever stock its status holds.
func (s *OrderService) DeleteOrder(ctx context.Context, actor *domain.Actor, orderID string) error {
	var (
		order *domain.Order
		now   = time.Now().UTC()
	)
	err := s.store.InTx(ctx, func(tx ports.Tx) error {
		var err error
		if order, err = s.loadVisible(ctx, tx, actor, orderID); err != nil {
			return err
		}
		if actor.Role == domain.RoleCustomer && order.Status != domain.OrderDraft {
			return fmt.Errorf("%w: customers may only delete drafts", domain.ErrForbidden)
		}

		deleted, err := tx.DeleteOrder(ctx, order.ID, order.Status)
		if err != nil {
			return err
		}
		if !deleted {
			return fmt.Errorf("%w: order %s changed concurrently", domain.ErrInvalidTransition, order.ID)
		}

		if order.Status.HoldsStock() {
			return s.ledger.ReleaseIn(ctx, tx, order.StockLines())
		}
		return nil
	})
	if err != nil {
		s.logRejection(err, orderID, "delete order")
		return err
	}

	s.logger.Info().Str("order_id", order.ID).Str("status", string(order.Status)).Str("actor_id", actor.ID).Msg("order deleted")

	s.audit.Notify(domain.OrderEvent{
		OrderID:      order.ID,
		Action:       domain.ActionDeleted,
		From:         order.Status,
		ActorID:      actor.ID,
		AssignedToID: domain.Deref(order.AssignedToID),
		Timestamp:    now,
	})
	return nil
}

// GetOrder returns the order with its items if actor may see it.
func (s *OrderService) GetOrder(ctx context.Context, actor *domain.Actor, orderID string) (*domain.Order, error) {
	var order *domain.Order
	err := s.store.View(ctx, func(tx ports.Tx) error {
		var err error
		order, err = s.loadVisible(ctx, tx, actor, orderID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// ListOrders returns a page of the orders visible to the actor.
func (s *OrderService) ListOrders(ctx context.Context, input ports.ListOrdersInput) (*ports.ListOrdersResult, error) {
	status := domain.OrderStatus(input.Status)
	if status != "" && !status.Valid() {
		return nil, domain.Validationf("unknown status %q", input.Status)
	}
	page, limit := normalizePage(input.Page, input.Limit)

	result := &ports.ListOrdersResult{Items: []*domain.Order{}, Page: page, Limit: limit}
	err := s.store.View(ctx, func(tx ports.Tx) error {
		scope, err := s.visibility.OrderScope(ctx, tx, input.Actor)
		if err != nil {
			return err
		}
		if scope.Empty() {
			return nil
		}

		items, total, err := tx.ListOrders(ctx, ports.OrderFilter{
			Scope:      scope,
			Status:     status,
			CustomerID: input.CustomerID,
			Page:       page,
			Limit:      limit,
		})
		if err != nil {
			return err
		}
		result.Items = items
		result.Total = total
		return nil
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list orders")
		return nil, err
	}

	result.TotalPages = totalPages(result.Total, limit)
	return result, nil
}

// loadVisible fetches the order and applies the visibility rules. A missing
// order is NotFound; an invisible one is Forbidden.
func (s *OrderService) loadVisible(ctx context.Context, tx ports.Tx, actor *domain.Actor, orderID string) (*domain.Order, error) {
	if !actor.Authenticated() {
		return nil, domain.ErrForbidden
	}
	order, err := tx.FindOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	ok, err := s.visibility.CanViewOrder(ctx, tx, actor, order)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ErrForbidden
	}
	return order, nil
}

// logRejection logs expected rejections at Warn and anything else at Error.
func (s *OrderService) logRejection(err error, orderID, op string) {
	level := zerolog.ErrorLevel
	for _, kind := range []error{
		domain.ErrValidation,
		domain.ErrInsufficientStock,
		domain.ErrInvalidTransition,
		domain.ErrForbidden,
		domain.ErrNotFound,
	} {
		if errors.Is(err, kind) {
			level = zerolog.WarnLevel
			break
		}
	}
	s.logger.WithLevel(level).Err(err).Str("order_id", orderID).Msg(op + " rejected")
}
