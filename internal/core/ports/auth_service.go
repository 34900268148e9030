package ports

import (
	"context"

	"github.com/bizdesk/backoffice/internal/core/domain"
)

// RegisterInput carries the fields of a new account.
type RegisterInput struct {
	Email    string
	Password string
	Role     domain.Role
}

type AuthService interface {
	// Register creates a root account through the public endpoint.
	Register(ctx context.Context, input RegisterInput) (*domain.User, error)
	// CreateUser creates an account on behalf of a privileged actor.
	CreateUser(ctx context.Context, actor *domain.Actor, input RegisterInput) (*domain.User, error)
	Login(ctx context.Context, email, password string) (string, *domain.User, error)
}
