package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	// Deposit credits the account.
	Deposit TransactionType = "DEPOSIT"

	// Withdrawal debits the account.
	Withdrawal TransactionType = "WITHDRAWAL"

	// Transfer debits the source account and credits the destination
	// account resolved by account number.
	Transfer TransactionType = "TRANSFER"

	// Interest is a credit posted by the bank.
	Interest TransactionType = "INTEREST"

	// Fee is a debit posted by the bank.
	Fee TransactionType = "FEE"
)

// Transaction is the canonical posting record. It is immutable once posted;
// soft deletion goes through the ledger reversal flow.
type Transaction struct {
	ID        uuid.UUID       `json:"id" db:"id"`
	AccountID uuid.UUID       `json:"account_id" db:"account_id"`
	Type      TransactionType `json:"type" db:"type"`
	Amount    decimal.Decimal `json:"amount" db:"amount"`
	Posted    bool            `json:"posted" db:"posted"`
	Details   string          `json:"details" db:"details"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt time.Time       `json:"updated_at" db:"updated_at"`
	DeletedAt *time.Time      `json:"-" db:"deleted_at"`
}

// TransactionRequest is the posting payload. DestinationNumber is only
// meaningful for transfers and is never persisted on the transaction.
type TransactionRequest struct {
	Type              TransactionType `json:"type"`
	Amount            decimal.Decimal `json:"amount"`
	Details           string          `json:"details,omitempty"`
	DestinationNumber string          `json:"destination_number,omitempty"`
}

type TransactionResponse struct {
	ID        uuid.UUID       `json:"id"`
	AccountID uuid.UUID       `json:"account_id"`
	Type      TransactionType `json:"type"`
	Amount    decimal.Decimal `json:"amount"`
	Posted    bool            `json:"posted"`
	Details   string          `json:"details"`
	CreatedAt time.Time       `json:"created_at"`
}

func NewTransactionResponse(tx *Transaction) TransactionResponse {
	return TransactionResponse{
		ID:        tx.ID,
		AccountID: tx.AccountID,
		Type:      tx.Type,
		Amount:    tx.Amount,
		Posted:    tx.Posted,
		Details:   tx.Details,
		CreatedAt: tx.CreatedAt,
	}
}

// StatementEntry is the archived form of a posted transaction, published to
// the queue after commit and stored in the statement archive. IDs and the
// amount travel as strings so the JSON and BSON encodings stay exact.
type StatementEntry struct {
	TransactionID string    `json:"transaction_id" bson:"_id"`
	AccountID     string    `json:"account_id" bson:"account_id"`
	Type          string    `json:"type" bson:"type"`
	Amount        string    `json:"amount" bson:"amount"`
	Details       string    `json:"details" bson:"details"`
	PostedAt      time.Time `json:"posted_at" bson:"posted_at"`
}

// NewStatementEntry builds the archive entry for a posted transaction.
func NewStatementEntry(tx *Transaction) *StatementEntry {
	return &StatementEntry{
		TransactionID: tx.ID.String(),
		AccountID:     tx.AccountID.String(),
		Type:          string(tx.Type),
		Amount:        tx.Amount.String(),
		Details:       tx.Details,
		PostedAt:      tx.CreatedAt,
	}
}
