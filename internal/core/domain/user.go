package domain

import (
	"strings"
	"time"
)

// Role is the authorization tier of a User.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleEmployee Role = "employee"
	RoleCustomer Role = "customer"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleEmployee, RoleCustomer:
		return true
	}
	return false
}

// IsStaff reports whether r belongs to the back-office (admin or employee).
func (r Role) IsStaff() bool {
	return r == RoleAdmin || r == RoleEmployee
}

// User models an account in the system. CreatedByID points at the admin or
// employee that onboarded the user; it is nil for root accounts.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	CreatedByID  *string   `json:"created_by_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// CreatedBy reports whether the user was created by the given account.
func (u *User) CreatedBy(id string) bool {
	return u.CreatedByID != nil && *u.CreatedByID == id
}

// CustomerAssignment delegates a customer to an employee.
type CustomerAssignment struct {
	CustomerID string    `json:"customer_id"`
	EmployeeID string    `json:"employee_id"`
	AssignedAt time.Time `json:"assigned_at"`
}

// Actor is the authenticated identity issuing a request.
type Actor struct {
	ID    string
	Role  Role
	Email string
}

// Authenticated reports whether the actor carries an identity at all.
func (a *Actor) Authenticated() bool {
	return a != nil && a.ID != ""
}

// NormalizeEmail lower-cases and trims an email for storage and comparison.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// StringPtr returns a pointer to s, or nil when s is empty.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Deref returns the pointed-to string or "".
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
