package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/oinkbank/ledger/internal/auth"
	"github.com/oinkbank/ledger/internal/db"
	"github.com/oinkbank/ledger/internal/models"
)

// UserService handles back-office users and credential checks.
type UserService struct {
	postgres *db.Postgres
	auth     *auth.Auth
}

func NewUserService(postgres *db.Postgres, a *auth.Auth) *UserService {
	return &UserService{
		postgres: postgres,
		auth:     a,
	}
}

// CreateUser registers a user with a bcrypt-hashed password.
func (s *UserService) CreateUser(ctx context.Context, req *models.CreateUserRequest) (*models.User, error) {
	username := strings.TrimSpace(req.Username)
	if username == "" || req.Password == "" {
		return nil, fmt.Errorf("%w: username and password are required", ErrInvalidArgument)
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now().UTC()
	user := &models.User{
		ID:           uuid.New(),
		Username:     username,
		Email:        strings.TrimSpace(req.Email),
		Phone:        strings.TrimSpace(req.Phone),
		PasswordHash: hash,
		Admin:        req.Admin,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.postgres.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

// EnsureAdmin creates the bootstrap admin user if it does not exist yet, so
// a fresh deployment has a way in. Empty credentials disable bootstrapping.
func (s *UserService) EnsureAdmin(ctx context.Context, username, password string) error {
	if username == "" || password == "" {
		return nil
	}

	_, err := s.postgres.GetUserByUsername(ctx, username)
	if err == nil {
		return nil
	}
	if !errors.Is(err, db.ErrNotFound) {
		return fmt.Errorf("failed to look up admin user: %w", err)
	}

	_, err = s.CreateUser(ctx, &models.CreateUserRequest{
		Username: username,
		Email:    username + "@oinkbank.local",
		Phone:    "bootstrap-" + username,
		Password: password,
		Admin:    true,
	})
	if err != nil {
		return fmt.Errorf("failed to create admin user: %w", err)
	}
	return nil
}

// Authenticate checks credentials and issues a bearer token.
func (s *UserService) Authenticate(ctx context.Context, username, password string) (*models.TokenResponse, error) {
	user, err := s.postgres.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			// Same error as a wrong password, to avoid leaking which
			// usernames exist.
			return nil, auth.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	if err := auth.VerifyPassword(password, user.PasswordHash); err != nil {
		return nil, err
	}

	token, expiresAt, err := s.auth.GenerateToken(user)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}
	return &models.TokenResponse{Token: token, ExpiresAt: expiresAt}, nil
}

// GetUser retrieves a user by ID.
func (s *UserService) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user, err := s.postgres.GetUser(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// ListUsers retrieves all non-deleted users.
func (s *UserService) ListUsers(ctx context.Context) ([]*models.User, error) {
	users, err := s.postgres.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

// UpdateUser patches user detail fields. A supplied password is
// re-hashed before it replaces the stored hash.
func (s *UserService) UpdateUser(ctx context.Context, id uuid.UUID, params models.UpdateUserParams) (*models.User, error) {
	var passwordHash *string
	if params.Password != nil {
		if *params.Password == "" {
			return nil, fmt.Errorf("%w: password cannot be empty", ErrInvalidArgument)
		}
		hash, err := auth.HashPassword(*params.Password)
		if err != nil {
			return nil, fmt.Errorf("failed to hash password: %w", err)
		}
		passwordHash = &hash
	}

	user, err := s.postgres.UpdateUser(ctx, id, params.Username, params.Email, params.Phone, passwordHash, params.Admin)
	if err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	return user, nil
}

// DeleteUser soft-deletes a user.
func (s *UserService) DeleteUser(ctx context.Context, id uuid.UUID) error {
	if err := s.postgres.SoftDeleteUser(ctx, id); err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return nil
}
