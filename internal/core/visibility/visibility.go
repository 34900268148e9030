// Package visibility decides which customers and orders an actor may see.
//
// Decisions are made in two steps: facts about the delegation graph are read
// through a Reader, then a pure function over (actor, target, facts) returns
// the answer. Only direct subordinates of an admin are considered; the
// hierarchy is not walked recursively.
package visibility

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/bizdesk/backoffice/internal/core/domain"
)

// TargetKind names the kind of record a visibility check is about.
type TargetKind string

const (
	TargetCustomer TargetKind = "customer"
	TargetOrder    TargetKind = "order"
)

// Config is read once at startup and handed to the engine.
type Config struct {
	SuperAdminEmail string
}

// Reader is the read-only slice of a store transaction the engine needs.
// ports.Tx satisfies it.
type Reader interface {
	FindUserByID(ctx context.Context, id string) (*domain.User, error)
	FindOrderByID(ctx context.Context, id string) (*domain.Order, error)
	ListSubordinateIDs(ctx context.Context, creatorID string) ([]string, error)
	ListAssigneeIDs(ctx context.Context, customerID string) ([]string, error)
	ListAssignedCustomerIDs(ctx context.Context, employeeIDs []string) ([]string, error)
}

type Engine struct {
	superAdminEmail string
}

func New(cfg Config) *Engine {
	return &Engine{superAdminEmail: domain.NormalizeEmail(cfg.SuperAdminEmail)}
}

// IsSuperAdmin reports whether actor is the configured super-admin.
func (e *Engine) IsSuperAdmin(actor *domain.Actor) bool {
	if !actor.Authenticated() || actor.Role != domain.RoleAdmin {
		return false
	}
	return e.IsSuperAdminEmail(actor.Email)
}

// IsSuperAdminEmail compares email with the configured super-admin address,
// ignoring case.
func (e *Engine) IsSuperAdminEmail(email string) bool {
	if e.superAdminEmail == "" {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(email), e.superAdminEmail)
}

// facts is what the pure decisions consume.
type facts struct {
	superAdmin bool
	// subordinates are the direct children of an admin actor.
	subordinates []string
	// assignees are the employees the target customer is assigned to.
	assignees []string
}

// CanView loads the target and reports whether actor may see it. A missing
// target is reported as a domain not-found error so callers can tell it
// apart from a denial.
func (e *Engine) CanView(ctx context.Context, r Reader, actor *domain.Actor, kind TargetKind, id string) (bool, error) {
	if !actor.Authenticated() {
		return false, nil
	}
	switch kind {
	case TargetCustomer:
		target, err := r.FindUserByID(ctx, id)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return false, domain.ErrCustomerNotFound
			}
			return false, err
		}
		return e.CanViewCustomer(ctx, r, actor, target)
	case TargetOrder:
		order, err := r.FindOrderByID(ctx, id)
		if err != nil {
			return false, err
		}
		return e.CanViewOrder(ctx, r, actor, order)
	default:
		return false, fmt.Errorf("unknown visibility target %q", kind)
	}
}

// CanViewCustomer evaluates the customer rules against an already loaded user.
func (e *Engine) CanViewCustomer(ctx context.Context, r Reader, actor *domain.Actor, target *domain.User) (bool, error) {
	if !actor.Authenticated() || target == nil {
		return false, nil
	}
	f, err := e.gather(ctx, r, actor, target.ID)
	if err != nil {
		return false, err
	}
	return decideCustomer(actor, target, f), nil
}

// CanViewOrder evaluates the order rules against an already loaded order.
func (e *Engine) CanViewOrder(ctx context.Context, r Reader, actor *domain.Actor, order *domain.Order) (bool, error) {
	if !actor.Authenticated() || order == nil {
		return false, nil
	}
	f, err := e.gather(ctx, r, actor, order.CustomerID)
	if err != nil {
		return false, err
	}
	return decideOrder(actor, order, f), nil
}

// gather reads only the facts the actor's role needs.
func (e *Engine) gather(ctx context.Context, r Reader, actor *domain.Actor, customerID string) (facts, error) {
	var f facts
	if e.IsSuperAdmin(actor) {
		f.superAdmin = true
		return f, nil
	}

	var err error
	switch actor.Role {
	case domain.RoleAdmin:
		if f.subordinates, err = r.ListSubordinateIDs(ctx, actor.ID); err != nil {
			return f, fmt.Errorf("list subordinates: %w", err)
		}
		if len(f.subordinates) == 0 {
			return f, nil
		}
	case domain.RoleEmployee:
	default:
		return f, nil
	}

	if f.assignees, err = r.ListAssigneeIDs(ctx, customerID); err != nil {
		return f, fmt.Errorf("list assignees: %w", err)
	}
	return f, nil
}

func decideCustomer(actor *domain.Actor, target *domain.User, f facts) bool {
	if f.superAdmin {
		return true
	}
	switch actor.Role {
	case domain.RoleAdmin:
		if target.CreatedBy(actor.ID) {
			return true
		}
		if target.CreatedByID != nil && slices.Contains(f.subordinates, *target.CreatedByID) {
			return true
		}
		return intersects(f.assignees, f.subordinates)
	case domain.RoleEmployee:
		return actor.ID == target.ID || slices.Contains(f.assignees, actor.ID)
	case domain.RoleCustomer:
		return actor.ID == target.ID
	}
	return false
}

func decideOrder(actor *domain.Actor, order *domain.Order, f facts) bool {
	if f.superAdmin {
		return true
	}
	switch actor.Role {
	case domain.RoleAdmin:
		if order.CreatedByID == actor.ID || slices.Contains(f.subordinates, order.CreatedByID) {
			return true
		}
		return intersects(f.assignees, f.subordinates)
	case domain.RoleEmployee:
		if order.AssignedToID != nil && *order.AssignedToID == actor.ID {
			return true
		}
		return slices.Contains(f.assignees, actor.ID)
	case domain.RoleCustomer:
		return order.CustomerID == actor.ID
	}
	return false
}

func intersects(a, b []string) bool {
	for _, v := range a {
		if slices.Contains(b, v) {
			return true
		}
	}
	return false
}
