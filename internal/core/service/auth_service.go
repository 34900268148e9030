package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/bizdesk/backoffice/internal/core/domain"
	"github.com/bizdesk/backoffice/internal/core/ports"
	"github.com/bizdesk/backoffice/internal/core/visibility"
)

const minPasswordLength = 8

// AuthService implements registration, user provisioning and login.
type AuthService struct {
	store      ports.Store
	visibility *visibility.Engine
	jwtSecret  string
	tokenTTL   time.Duration
	logger     zerolog.Logger
}

func NewAuthService(store ports.Store, vis *visibility.Engine, jwtSecret string, tokenTTL time.Duration, logger zerolog.Logger) *AuthService {
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}
	return &AuthService{store: store, visibility: vis, jwtSecret: jwtSecret, tokenTTL: tokenTTL, logger: logger}
}

// Register creates a root account. Only customers may sign up on their own;
// the configured super-admin email may bootstrap itself as admin.
func (s *AuthService) Register(ctx context.Context, input ports.RegisterInput) (*domain.User, error) {
	if input.Role == "" {
		input.Role = domain.RoleCustomer
	}
	if err := validateRegistration(input); err != nil {
		return nil, err
	}

	switch {
	case input.Role == domain.RoleCustomer:
	case input.Role == domain.RoleAdmin && s.visibility.IsSuperAdminEmail(input.Email):
	default:
		return nil, fmt.Errorf("%w: self-registration as %s", domain.ErrForbidden, input.Role)
	}

	return s.create(ctx, input, nil)
}

// CreateUser provisions an account on behalf of actor, who becomes its creator.
func (s *AuthService) CreateUser(ctx context.Context, actor *domain.Actor, input ports.RegisterInput) (*domain.User, error) {
	if !actor.Authenticated() {
		return nil, domain.ErrForbidden
	}
	if err := validateRegistration(input); err != nil {
		return nil, err
	}
	if !s.mayCreate(actor, input.Role) {
		return nil, fmt.Errorf("%w: %s cannot create %s accounts", domain.ErrForbidden, actor.Role, input.Role)
	}

	return s.create(ctx, input, domain.StringPtr(actor.ID))
}

func (s *AuthService) mayCreate(actor *domain.Actor, role domain.Role) bool {
	if s.visibility.IsSuperAdmin(actor) {
		return true
	}
	switch actor.Role {
	case domain.RoleAdmin:
		return role == domain.RoleEmployee || role == domain.RoleCustomer
	case domain.RoleEmployee:
		return role == domain.RoleCustomer
	}
	return false
}

func (s *AuthService) create(ctx context.Context, input ports.RegisterInput, createdBy *string) (*domain.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	user := &domain.User{
		ID:           uuid.NewString(),
		Email:        domain.NormalizeEmail(input.Email),
		PasswordHash: string(hash),
		Role:         input.Role,
		CreatedByID:  createdBy,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err = s.store.InTx(ctx, func(tx ports.Tx) error {
		return tx.CreateUser(ctx, user)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("user_id", user.ID).Str("role", string(user.Role)).Str("created_by", domain.Deref(createdBy)).Msg("user created")
	return user, nil
}

func validateRegistration(input ports.RegisterInput) error {
	if domain.NormalizeEmail(input.Email) == "" {
		return domain.Validationf("email is required")
	}
	if len(input.Password) < minPasswordLength {
		return domain.Validationf("password must be at least %d characters", minPasswordLength)
	}
	if !input.Role.Valid() {
		return domain.Validationf("unknown role %q", input.Role)
	}
	return nil
}

// Login checks the credentials and returns a signed token for the user.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, *domain.User, error) {
	email = domain.NormalizeEmail(email)
	if email == "" || password == "" {
		return "", nil, domain.ErrInvalidCredentials
	}

	var user *domain.User
	err := s.store.View(ctx, func(tx ports.Tx) error {
		var err error
		user, err = tx.FindUserByEmail(ctx, email)
		return err
	})
	if errors.Is(err, domain.ErrNotFound) {
		return "", nil, domain.ErrInvalidCredentials
	}
	if err != nil {
		return "", nil, err
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return "", nil, domain.ErrInvalidCredentials
	}

	token, err := s.generateToken(user)
	if err != nil {
		return "", nil, err
	}

	return token, user, nil
}

func (s *AuthService) generateToken(user *domain.User) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   user.ID,
		"role":  string(user.Role),
		"email": user.Email,
		"iat":   now.Unix(),
		"exp":   now.Add(s.tokenTTL).Unix(),
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString([]byte(s.jwtSecret))
}
