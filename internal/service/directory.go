package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/oinkbank/ledger/internal/db"
	"github.com/oinkbank/ledger/internal/models"
)

// DirectoryService handles branches and addresses.
type DirectoryService struct {
	postgres *db.Postgres
}

func NewDirectoryService(postgres *db.Postgres) *DirectoryService {
	return &DirectoryService{postgres: postgres}
}

func (s *DirectoryService) CreateBranch(ctx context.Context, req *models.CreateBranchRequest) (*models.Branch, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: branch name is required", ErrInvalidArgument)
	}

	now := time.Now().UTC()
	branch := &models.Branch{
		ID:        uuid.New(),
		Name:      name,
		Phone:     strings.TrimSpace(req.Phone),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.postgres.CreateBranch(ctx, branch); err != nil {
		return nil, fmt.Errorf("failed to create branch: %w", err)
	}
	return branch, nil
}

func (s *DirectoryService) GetBranch(ctx context.Context, id uuid.UUID) (*models.Branch, error) {
	return s.postgres.GetBranch(ctx, id)
}

func (s *DirectoryService) ListBranches(ctx context.Context) ([]*models.Branch, error) {
	return s.postgres.ListBranches(ctx)
}

// UpdateBranch patches branch detail fields.
func (s *DirectoryService) UpdateBranch(ctx context.Context, id uuid.UUID, params models.UpdateBranchParams) (*models.Branch, error) {
	if params.Name != nil && strings.TrimSpace(*params.Name) == "" {
		return nil, fmt.Errorf("%w: branch name cannot be empty", ErrInvalidArgument)
	}
	return s.postgres.UpdateBranch(ctx, id, params.Name, params.Phone)
}

func (s *DirectoryService) DeleteBranch(ctx context.Context, id uuid.UUID) error {
	return s.postgres.SoftDeleteBranch(ctx, id)
}

func (s *DirectoryService) CreateAddress(ctx context.Context, req *models.CreateAddressRequest) (*models.Address, error) {
	if strings.TrimSpace(req.Street) == "" {
		return nil, fmt.Errorf("%w: street is required", ErrInvalidArgument)
	}

	now := time.Now().UTC()
	address := &models.Address{
		ID:         uuid.New(),
		UserID:     req.UserID,
		Street:     strings.TrimSpace(req.Street),
		City:       strings.TrimSpace(req.City),
		Province:   strings.TrimSpace(req.Province),
		PostalCode: strings.TrimSpace(req.PostalCode),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.postgres.CreateAddress(ctx, address); err != nil {
		return nil, fmt.Errorf("failed to create address: %w", err)
	}
	return address, nil
}

func (s *DirectoryService) GetAddress(ctx context.Context, id uuid.UUID) (*models.Address, error) {
	return s.postgres.GetAddress(ctx, id)
}

func (s *DirectoryService) ListAddressesByUser(ctx context.Context, userID uuid.UUID) ([]*models.Address, error) {
	return s.postgres.ListAddressesByUser(ctx, userID)
}

func (s *DirectoryService) DeleteAddress(ctx context.Context, id uuid.UUID) error {
	return s.postgres.SoftDeleteAddress(ctx, id)
}
