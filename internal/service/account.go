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

// AccountService handles account CRUD. Balances are set once at opening;
// afterwards they only move through the posting engine.
type AccountService struct {
	postgres *db.Postgres
}

func NewAccountService(postgres *db.Postgres) *AccountService {
	return &AccountService{
		postgres: postgres,
	}
}

// CreateAccount opens a new account. The opening balance may sit below the
// minimum; the floor only constrains postings.
func (s *AccountService) CreateAccount(ctx context.Context, req *models.CreateAccountRequest) (*models.Account, error) {
	number := strings.TrimSpace(req.Number)
	if number == "" {
		return nil, fmt.Errorf("%w: account number is required", ErrInvalidArgument)
	}
	if req.Balance.Sign() < 0 {
		return nil, fmt.Errorf("%w: opening balance cannot be negative", ErrInvalidArgument)
	}

	minimum := models.DefaultMinimumBalance
	if req.MinimumBalance != nil {
		minimum = *req.MinimumBalance
	}

	now := time.Now().UTC()
	account := &models.Account{
		ID:             uuid.New(),
		Number:         number,
		Balance:        req.Balance,
		Currency:       models.IDR,
		MinimumBalance: minimum,
		Interest:       req.Interest,
		UserID:         req.UserID,
		BranchID:       req.BranchID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.postgres.CreateAccount(ctx, account); err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}
	return account, nil
}

// GetAccount retrieves an account by ID.
func (s *AccountService) GetAccount(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	account, err := s.postgres.GetAccount(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return account, nil
}

// ListAccounts retrieves all non-deleted accounts.
func (s *AccountService) ListAccounts(ctx context.Context) ([]*models.Account, error) {
	accounts, err := s.postgres.ListAccounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	return accounts, nil
}

// UpdateAccount patches account metadata. The balance is not patchable.
func (s *AccountService) UpdateAccount(ctx context.Context, id uuid.UUID, params models.UpdateAccountParams) (*models.Account, error) {
	account, err := s.postgres.UpdateAccount(ctx, id, params)
	if err != nil {
		return nil, fmt.Errorf("failed to update account: %w", err)
	}
	return account, nil
}

// DeleteAccount soft-deletes an account. Its transactions stay on record.
func (s *AccountService) DeleteAccount(ctx context.Context, id uuid.UUID) error {
	if err := s.postgres.SoftDeleteAccount(ctx, id); err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
	}
	return nil
}
