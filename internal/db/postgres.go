// Package db implements the persistence collaborators: PostgreSQL for
// canonical state and MongoDB for the statement archive.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/oinkbank/ledger/internal/ledger"
	"github.com/oinkbank/ledger/internal/models"
)

var (
	// ErrNotFound means the record does not exist or is soft-deleted.
	ErrNotFound = errors.New("record not found")

	// ErrConflict means a unique constraint (username, email, phone,
	// account number) was violated.
	ErrConflict = errors.New("record conflicts with an existing record")
)

// Postgres holds canonical users, branches, addresses, accounts and
// transactions. It implements ledger.Store.
type Postgres struct {
	db *sql.DB
}

// NewPostgres opens and pings a PostgreSQL connection.
func NewPostgres(connStr string) (*Postgres, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}
	return &Postgres{db: db}, nil
}

// Close closes the database connection.
func (p *Postgres) Close() error {
	return p.db.Close()
}

// InitSchema creates the tables and the partial unique indexes that enforce
// uniqueness among non-deleted records.
func (p *Postgres) InitSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id UUID PRIMARY KEY,
			username TEXT NOT NULL,
			email TEXT NOT NULL,
			phone TEXT NOT NULL,
			password_hash TEXT NOT NULL,
			admin BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL,
			deleted_at TIMESTAMPTZ
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS users_username_live
			ON users (username) WHERE deleted_at IS NULL`,
		`CREATE UNIQUE INDEX IF NOT EXISTS users_email_live
			ON users (email) WHERE deleted_at IS NULL`,
		`CREATE UNIQUE INDEX IF NOT EXISTS users_phone_live
			ON users (phone) WHERE deleted_at IS NULL`,
		`CREATE TABLE IF NOT EXISTS branches (
			id UUID PRIMARY KEY,
			name TEXT NOT NULL,
			phone TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL,
			deleted_at TIMESTAMPTZ
		)`,
		`CREATE TABLE IF NOT EXISTS addresses (
			id UUID PRIMARY KEY,
			user_id UUID NOT NULL REFERENCES users (id),
			street TEXT NOT NULL,
			city TEXT NOT NULL,
			province TEXT NOT NULL,
			postal_code TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL,
			deleted_at TIMESTAMPTZ
		)`,
		`CREATE TABLE IF NOT EXISTS accounts (
			id UUID PRIMARY KEY,
			number TEXT NOT NULL,
			balance DECIMAL(20, 2) NOT NULL,
			currency TEXT NOT NULL,
			minimum_balance DECIMAL(20, 2) NOT NULL,
			interest DECIMAL(8, 4) NOT NULL,
			user_id UUID NOT NULL REFERENCES users (id),
			branch_id UUID NOT NULL REFERENCES branches (id),
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL,
			deleted_at TIMESTAMPTZ
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS accounts_number_live
			ON accounts (number) WHERE deleted_at IS NULL`,
		`CREATE TABLE IF NOT EXISTS transactions (
			id UUID PRIMARY KEY,
			account_id UUID NOT NULL REFERENCES accounts (id),
			type TEXT NOT NULL,
			amount DECIMAL(20, 2) NOT NULL,
			posted BOOLEAN NOT NULL,
			details TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL,
			deleted_at TIMESTAMPTZ
		)`,
		`CREATE INDEX IF NOT EXISTS transactions_account
			ON transactions (account_id)`,
	}

	for _, stmt := range statements {
		if _, err := p.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

// Begin opens a unit of work for one posting call.
func (p *Postgres) Begin(ctx context.Context) (ledger.UnitOfWork, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &unitOfWork{tx: tx}, nil
}

const accountColumns = `id, number, balance, currency, minimum_balance, interest,
	user_id, branch_id, created_at, updated_at`

func scanAccount(row *sql.Row) (*models.Account, error) {
	var a models.Account
	err := row.Scan(
		&a.ID, &a.Number, &a.Balance, &a.Currency, &a.MinimumBalance,
		&a.Interest, &a.UserID, &a.BranchID, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// unitOfWork wraps one SQL transaction. Account and transaction loads take
// FOR UPDATE row locks so concurrent postings against the same rows
// serialize.
type unitOfWork struct {
	tx *sql.Tx
}

func (u *unitOfWork) AccountForUpdate(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	query := `SELECT ` + accountColumns + `
		FROM accounts WHERE id = $1 AND deleted_at IS NULL FOR UPDATE`

	account, err := scanAccount(u.tx.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ledger.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load account: %w", err)
	}
	return account, nil
}

func (u *unitOfWork) AccountByNumberForUpdate(ctx context.Context, number string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + `
		FROM accounts WHERE number = $1 AND deleted_at IS NULL FOR UPDATE`

	account, err := scanAccount(u.tx.QueryRowContext(ctx, query, number))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ledger.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load account by number: %w", err)
	}
	return account, nil
}

func (u *unitOfWork) UpdateBalance(ctx context.Context, id uuid.UUID, balance decimal.Decimal) error {
	_, err := u.tx.ExecContext(ctx,
		`UPDATE accounts SET balance = $1, updated_at = $2 WHERE id = $3`,
		balance, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update balance: %w", err)
	}
	return nil
}

func (u *unitOfWork) InsertTransaction(ctx context.Context, tx *models.Transaction) error {
	_, err := u.tx.ExecContext(ctx,
		`INSERT INTO transactions (id, account_id, type, amount, posted, details, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		tx.ID, tx.AccountID, tx.Type, tx.Amount, tx.Posted, tx.Details, tx.CreatedAt, tx.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	}
	return nil
}

func (u *unitOfWork) TransactionForUpdate(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	var tx models.Transaction
	err := u.tx.QueryRowContext(ctx,
		`SELECT id, account_id, type, amount, posted, details, created_at, updated_at
		FROM transactions WHERE id = $1 AND deleted_at IS NULL FOR UPDATE`,
		id,
	).Scan(&tx.ID, &tx.AccountID, &tx.Type, &tx.Amount, &tx.Posted, &tx.Details, &tx.CreatedAt, &tx.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ledger.ErrTransactionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load transaction: %w", err)
	}
	return &tx, nil
}

func (u *unitOfWork) SoftDeleteTransaction(ctx context.Context, id uuid.UUID) error {
	now := time.Now().UTC()
	_, err := u.tx.ExecContext(ctx,
		`UPDATE transactions SET deleted_at = $1, updated_at = $1 WHERE id = $2`,
		now, id,
	)
	if err != nil {
		return fmt.Errorf("failed to soft-delete transaction: %w", err)
	}
	return nil
}

func (u *unitOfWork) Commit() error {
	return u.tx.Commit()
}

func (u *unitOfWork) Rollback() error {
	err := u.tx.Rollback()
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return err
}

// CreateAccount inserts a new account.
func (p *Postgres) CreateAccount(ctx context.Context, a *models.Account) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO accounts (id, number, balance, currency, minimum_balance, interest,
			user_id, branch_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		a.ID, a.Number, a.Balance, a.Currency, a.MinimumBalance, a.Interest,
		a.UserID, a.BranchID, a.CreatedAt, a.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("account number %q: %w", a.Number, ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

// GetAccount retrieves a non-deleted account by ID.
func (p *Postgres) GetAccount(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	query := `SELECT ` + accountColumns + `
		FROM accounts WHERE id = $1 AND deleted_at IS NULL`

	account, err := scanAccount(p.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return account, nil
}

// ListAccounts retrieves all non-deleted accounts.
func (p *Postgres) ListAccounts(ctx context.Context) ([]*models.Account, error) {
	query := `SELECT ` + accountColumns + `
		FROM accounts WHERE deleted_at IS NULL ORDER BY created_at`

	rows, err := p.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*models.Account
	for rows.Next() {
		var a models.Account
		if err := rows.Scan(
			&a.ID, &a.Number, &a.Balance, &a.Currency, &a.MinimumBalance,
			&a.Interest, &a.UserID, &a.BranchID, &a.CreatedAt, &a.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, &a)
	}
	return accounts, rows.Err()
}

// UpdateAccount patches the mutable account fields; nil params are left
// unchanged. The balance is deliberately not patchable here, it only moves
// through postings.
func (p *Postgres) UpdateAccount(ctx context.Context, id uuid.UUID, params models.UpdateAccountParams) (*models.Account, error) {
	query := `UPDATE accounts SET
			number = COALESCE($2, number),
			minimum_balance = COALESCE($3, minimum_balance),
			interest = COALESCE($4, interest),
			branch_id = COALESCE($5, branch_id),
			updated_at = $6
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING ` + accountColumns

	account, err := scanAccount(p.db.QueryRowContext(ctx, query,
		id, params.Number, params.MinimumBalance, params.Interest, params.BranchID,
		time.Now().UTC(),
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("account number: %w", ErrConflict)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update account: %w", err)
	}
	return account, nil
}

// SoftDeleteAccount marks an account deleted.
func (p *Postgres) SoftDeleteAccount(ctx context.Context, id uuid.UUID) error {
	return p.softDelete(ctx, "accounts", id)
}

// GetTransaction retrieves a non-deleted transaction by ID.
func (p *Postgres) GetTransaction(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	var tx models.Transaction
	err := p.db.QueryRowContext(ctx,
		`SELECT id, account_id, type, amount, posted, details, created_at, updated_at
		FROM transactions WHERE id = $1 AND deleted_at IS NULL`,
		id,
	).Scan(&tx.ID, &tx.AccountID, &tx.Type, &tx.Amount, &tx.Posted, &tx.Details, &tx.CreatedAt, &tx.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return &tx, nil
}

// softDelete marks a record deleted; missing or already-deleted records
// report ErrNotFound.
func (p *Postgres) softDelete(ctx context.Context, table string, id uuid.UUID) error {
	now := time.Now().UTC()
	res, err := p.db.ExecContext(ctx,
		`UPDATE `+table+` SET deleted_at = $1, updated_at = $1 WHERE id = $2 AND deleted_at IS NULL`,
		now, id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete from %s: %w", table, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete from %s: %w", table, err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
