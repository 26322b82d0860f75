package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Currency string

const (
	// IDR is the only currency the bank operates in.
	IDR Currency = "IDR"
)

// DefaultMinimumBalance is the floor applied to new accounts unless the
// request overrides it.
var DefaultMinimumBalance = decimal.NewFromInt(50_000)

// Account is the canonical account record. Balance and MinimumBalance are
// exact decimals; the balance is only ever mutated by posting a transaction.
type Account struct {
	ID             uuid.UUID       `json:"id" db:"id"`
	Number         string          `json:"number" db:"number"`
	Balance        decimal.Decimal `json:"balance" db:"balance"`
	Currency       Currency        `json:"currency" db:"currency"`
	MinimumBalance decimal.Decimal `json:"minimum_balance" db:"minimum_balance"`
	Interest       decimal.Decimal `json:"interest" db:"interest"`
	UserID         uuid.UUID       `json:"user_id" db:"user_id"`
	BranchID       uuid.UUID       `json:"branch_id" db:"branch_id"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at" db:"updated_at"`
	DeletedAt      *time.Time      `json:"-" db:"deleted_at"`
}

type CreateAccountRequest struct {
	Number         string           `json:"number"`
	Balance        decimal.Decimal  `json:"balance"`
	MinimumBalance *decimal.Decimal `json:"minimum_balance,omitempty"`
	Interest       decimal.Decimal  `json:"interest"`
	UserID         uuid.UUID        `json:"user_id"`
	BranchID       uuid.UUID        `json:"branch_id"`
}

// UpdateAccountParams carries the patchable account fields; nil means
// "leave unchanged".
type UpdateAccountParams struct {
	Number         *string          `json:"number,omitempty"`
	MinimumBalance *decimal.Decimal `json:"minimum_balance,omitempty"`
	Interest       *decimal.Decimal `json:"interest,omitempty"`
	BranchID       *uuid.UUID       `json:"branch_id,omitempty"`
}

type AccountResponse struct {
	ID             uuid.UUID       `json:"id"`
	Number         string          `json:"number"`
	Balance        decimal.Decimal `json:"balance"`
	Currency       Currency        `json:"currency"`
	MinimumBalance decimal.Decimal `json:"minimum_balance"`
	Interest       decimal.Decimal `json:"interest"`
	UserID         uuid.UUID       `json:"user_id"`
	BranchID       uuid.UUID       `json:"branch_id"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// NewAccountResponse converts an account record to its API representation.
func NewAccountResponse(a *Account) AccountResponse {
	return AccountResponse{
		ID:             a.ID,
		Number:         a.Number,
		Balance:        a.Balance,
		Currency:       a.Currency,
		MinimumBalance: a.MinimumBalance,
		Interest:       a.Interest,
		UserID:         a.UserID,
		BranchID:       a.BranchID,
		CreatedAt:      a.CreatedAt,
		UpdatedAt:      a.UpdatedAt,
	}
}
