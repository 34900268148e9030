package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/bizdesk/backoffice/internal/core/domain"
	"github.com/bizdesk/backoffice/internal/core/ports"
	"github.com/bizdesk/backoffice/internal/core/visibility"
)

// CustomerService serves customer reads and employee assignments.
type CustomerService struct {
	store      ports.Store
	visibility *visibility.Engine
	logger     zerolog.Logger
}

func NewCustomerService(store ports.Store, vis *visibility.Engine, logger zerolog.Logger) *CustomerService {
	return &CustomerService{store: store, visibility: vis, logger: logger}
}

func (s *CustomerService) GetCustomer(ctx context.Context, actor *domain.Actor, customerID string) (*ports.CustomerDetail, error) {
	var detail *ports.CustomerDetail
	err := s.store.View(ctx, func(tx ports.Tx) error {
		customer, err := s.loadVisible(ctx, tx, actor, customerID)
		if err != nil {
			return err
		}
		assignees, err := tx.ListAssigneeIDs(ctx, customer.ID)
		if err != nil {
			return err
		}

		detail = &ports.CustomerDetail{Customer: customer}
		if len(assignees) > 0 {
			detail.AssignedToID = assignees[0]
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return detail, nil
}

func (s *CustomerService) ListCustomers(ctx context.Context, input ports.ListCustomersInput) (*ports.ListCustomersResult, error) {
	page, limit := normalizePage(input.Page, input.Limit)

	result := &ports.ListCustomersResult{Items: []*domain.User{}, Page: page, Limit: limit}
	err := s.store.View(ctx, func(tx ports.Tx) error {
		scope, err := s.visibility.CustomerScope(ctx, tx, input.Actor)
		if err != nil {
			return err
		}
		if scope.Empty() {
			return nil
		}

		items, total, err := tx.ListUsers(ctx, ports.UserFilter{
			Role:  domain.RoleCustomer,
			Scope: scope,
			Page:  page,
			Limit: limit,
		})
		if err != nil {
			return err
		}
		result.Items = items
		result.Total = total
		return nil
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list customers")
		return nil, err
	}

	result.TotalPages = totalPages(result.Total, limit)
	return result, nil
}

// AssignCustomer delegates a customer to an employee, replacing any existing
// assignment. Admins may only delegate to their own direct subordinates.
func (s *CustomerService) AssignCustomer(ctx context.Context, actor *domain.Actor, customerID, employeeID string) (*domain.CustomerAssignment, error) {
	if !actor.Authenticated() || actor.Role != domain.RoleAdmin {
		return nil, fmt.Errorf("%w: only admins assign customers", domain.ErrForbidden)
	}
	if employeeID == "" {
		return nil, domain.Validationf("employee_id is required")
	}

	assignment := domain.CustomerAssignment{
		CustomerID: customerID,
		EmployeeID: employeeID,
		AssignedAt: time.Now().UTC(),
	}
	err := s.store.InTx(ctx, func(tx ports.Tx) error {
		if _, err := s.loadVisible(ctx, tx, actor, customerID); err != nil {
			return err
		}

		employee, err := tx.FindUserByID(ctx, employeeID)
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Validationf("unknown employee %s", employeeID)
		}
		if err != nil {
			return err
		}
		if employee.Role != domain.RoleEmployee {
			return domain.Validationf("user %s is not an employee", employeeID)
		}
		if !s.visibility.IsSuperAdmin(actor) && !employee.CreatedBy(actor.ID) {
			return fmt.Errorf("%w: employee %s does not report to you", domain.ErrForbidden, employeeID)
		}

		return tx.AssignCustomer(ctx, assignment)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("customer_id", customerID).Str("employee_id", employeeID).Str("actor_id", actor.ID).Msg("customer assigned")
	return &assignment, nil
}

// UnassignCustomer removes the customer's current assignment.
func (s *CustomerService) UnassignCustomer(ctx context.Context, actor *domain.Actor, customerID string) error {
	if !actor.Authenticated() || actor.Role != domain.RoleAdmin {
		return fmt.Errorf("%w: only admins unassign customers", domain.ErrForbidden)
	}

	err := s.store.InTx(ctx, func(tx ports.Tx) error {
		if _, err := s.loadVisible(ctx, tx, actor, customerID); err != nil {
			return err
		}
		removed, err := tx.UnassignCustomer(ctx, customerID)
		if err != nil {
			return err
		}
		if !removed {
			return fmt.Errorf("assignment %w", domain.ErrNotFound)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info().Str("customer_id", customerID).Str("actor_id", actor.ID).Msg("customer unassigned")
	return nil
}

// loadVisible fetches a customer account and applies the visibility rules.
// Users of other roles are reported as not found.
func (s *CustomerService) loadVisible(ctx context.Context, tx ports.Tx, actor *domain.Actor, customerID string) (*domain.User, error) {
	if !actor.Authenticated() {
		return nil, domain.ErrForbidden
	}
	customer, err := tx.FindUserByID(ctx, customerID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrCustomerNotFound
	}
	if err != nil {
		return nil, err
	}
	if customer.Role != domain.RoleCustomer {
		return nil, domain.ErrCustomerNotFound
	}

	ok, err := s.visibility.CanViewCustomer(ctx, tx, actor, customer)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ErrForbidden
	}
	return customer, nil
}
