package visibility

import (
	"context"
	"fmt"

	"github.com/bizdesk/backoffice/internal/core/domain"
	"github.com/bizdesk/backoffice/internal/core/ports"
)

// OrderScope translates the order rules into a filter the store can apply to
// a listing. For any order o, OrderScope(actor).Matches(o) agrees with
// CanViewOrder(actor, o).
func (e *Engine) OrderScope(ctx context.Context, r Reader, actor *domain.Actor) (ports.OrderScope, error) {
	if !actor.Authenticated() {
		return ports.OrderScope{}, nil
	}
	if e.IsSuperAdmin(actor) {
		return ports.OrderScope{All: true}, nil
	}

	switch actor.Role {
	case domain.RoleAdmin:
		subs, customers, err := e.delegated(ctx, r, actor.ID)
		if err != nil {
			return ports.OrderScope{}, err
		}
		return ports.OrderScope{
			CreatedBy: append([]string{actor.ID}, subs...),
			Customers: customers,
		}, nil
	case domain.RoleEmployee:
		customers, err := r.ListAssignedCustomerIDs(ctx, []string{actor.ID})
		if err != nil {
			return ports.OrderScope{}, fmt.Errorf("list assigned customers: %w", err)
		}
		return ports.OrderScope{AssignedTo: []string{actor.ID}, Customers: customers}, nil
	case domain.RoleCustomer:
		return ports.OrderScope{Customers: []string{actor.ID}}, nil
	}
	return ports.OrderScope{}, nil
}

// CustomerScope is the customer counterpart of OrderScope.
func (e *Engine) CustomerScope(ctx context.Context, r Reader, actor *domain.Actor) (ports.CustomerScope, error) {
	if !actor.Authenticated() {
		return ports.CustomerScope{}, nil
	}
	if e.IsSuperAdmin(actor) {
		return ports.CustomerScope{All: true}, nil
	}

	switch actor.Role {
	case domain.RoleAdmin:
		subs, customers, err := e.delegated(ctx, r, actor.ID)
		if err != nil {
			return ports.CustomerScope{}, err
		}
		return ports.CustomerScope{
			CreatedBy: append([]string{actor.ID}, subs...),
			IDs:       customers,
		}, nil
	case domain.RoleEmployee:
		customers, err := r.ListAssignedCustomerIDs(ctx, []string{actor.ID})
		if err != nil {
			return ports.CustomerScope{}, fmt.Errorf("list assigned customers: %w", err)
		}
		return ports.CustomerScope{IDs: append([]string{actor.ID}, customers...)}, nil
	case domain.RoleCustomer:
		return ports.CustomerScope{IDs: []string{actor.ID}}, nil
	}
	return ports.CustomerScope{}, nil
}

// delegated returns an admin's direct subordinates and the customers assigned
// to any of them.
func (e *Engine) delegated(ctx context.Context, r Reader, adminID string) ([]string, []string, error) {
	subs, err := r.ListSubordinateIDs(ctx, adminID)
	if err != nil {
		return nil, nil, fmt.Errorf("list subordinates: %w", err)
	}
	if len(subs) == 0 {
		return nil, nil, nil
	}
	customers, err := r.ListAssignedCustomerIDs(ctx, subs)
	if err != nil {
		return nil, nil, fmt.Errorf("list assigned customers: %w", err)
	}
	return subs, customers, nil
}
