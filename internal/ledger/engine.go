package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/oinkbank/ledger/internal/models"
)

// UnitOfWork is one atomic persistence transaction. Account loads take a row
// lock so concurrent postings against the same account serialize; postings
// against different accounts proceed in parallel. Implementations must leave
// no partial state after Rollback.
type UnitOfWork interface {
	AccountForUpdate(ctx context.Context, id uuid.UUID) (*models.Account, error)
	AccountByNumberForUpdate(ctx context.Context, number string) (*models.Account, error)
	UpdateBalance(ctx context.Context, id uuid.UUID, balance decimal.Decimal) error
	InsertTransaction(ctx context.Context, tx *models.Transaction) error
	TransactionForUpdate(ctx context.Context, id uuid.UUID) (*models.Transaction, error)
	SoftDeleteTransaction(ctx context.Context, id uuid.UUID) error
	Commit() error
	Rollback() error
}

// Store opens units of work, one per posting call.
type Store interface {
	Begin(ctx context.Context) (UnitOfWork, error)
}

// Request describes one posting. DestinationNumber is only read for
// transfers.
type Request struct {
	Type              models.TransactionType
	Amount            decimal.Decimal
	Details           string
	DestinationNumber string
}

// Result is the outcome of a committed posting. Mirror is the credit entry
// recorded on the destination account of a transfer, nil for every other
// type.
type Result struct {
	Transaction *models.Transaction
	Mirror      *models.Transaction
}

// Engine applies postings. It is stateless; all state lives behind Store.
type Engine struct {
	store Store
}

func NewEngine(store Store) *Engine {
	return &Engine{store: store}
}

// Post validates the request and applies it to the target account inside one
// unit of work. On any error the unit of work is rolled back and no persisted
// state changes.
func (e *Engine) Post(ctx context.Context, accountID uuid.UUID, req Request) (*Result, error) {
	if err := validateAmount(req.Amount); err != nil {
		return nil, err
	}

	uow, err := e.store.Begin(ctx)
	if err != nil {
		return nil, storageErr(err)
	}
	defer uow.Rollback()

	account, err := uow.AccountForUpdate(ctx, accountID)
	if err != nil {
		return nil, loadErr(err)
	}

	var res *Result
	switch req.Type {
	case models.Deposit, models.Interest:
		res, err = e.credit(ctx, uow, account, req)
	case models.Withdrawal, models.Fee:
		res, err = e.debit(ctx, uow, account, req)
	case models.Transfer:
		res, err = e.transfer(ctx, uow, account, req)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedType, req.Type)
	}
	if err != nil {
		return nil, err
	}

	if err := uow.Commit(); err != nil {
		return nil, storageErr(err)
	}
	return res, nil
}

// Reverse soft-deletes a posted transaction by recording a compensating
// entry in the opposite direction, subject to the same balance floor, and
// marking the original deleted. Both happen in one unit of work. Transfers
// cannot be reversed one-sided; post an opposite transfer instead.
func (e *Engine) Reverse(ctx context.Context, transactionID uuid.UUID) (*Result, error) {
	uow, err := e.store.Begin(ctx)
	if err != nil {
		return nil, storageErr(err)
	}
	defer uow.Rollback()

	orig, err := uow.TransactionForUpdate(ctx, transactionID)
	if err != nil {
		if errors.Is(err, ErrTransactionNotFound) {
			return nil, err
		}
		return nil, storageErr(err)
	}

	account, err := uow.AccountForUpdate(ctx, orig.AccountID)
	if err != nil {
		return nil, loadErr(err)
	}

	details := fmt.Sprintf("reversal of transaction %s", orig.ID)

	var res *Result
	switch orig.Type {
	case models.Deposit, models.Interest:
		// Undoing a credit debits the account.
		res, err = e.debit(ctx, uow, account, Request{
			Type:    models.Withdrawal,
			Amount:  orig.Amount,
			Details: details,
		})
	case models.Withdrawal, models.Fee:
		res, err = e.credit(ctx, uow, account, Request{
			Type:    models.Deposit,
			Amount:  orig.Amount,
			Details: details,
		})
	case models.Transfer:
		return nil, fmt.Errorf("%w: transfers cannot be reversed one-sided", ErrUnsupportedType)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedType, orig.Type)
	}
	if err != nil {
		return nil, err
	}

	if err := uow.SoftDeleteTransaction(ctx, orig.ID); err != nil {
		return nil, storageErr(err)
	}
	if err := uow.Commit(); err != nil {
		return nil, storageErr(err)
	}
	return res, nil
}

func (e *Engine) credit(ctx context.Context, uow UnitOfWork, account *models.Account, req Request) (*Result, error) {
	newBalance := account.Balance.Add(req.Amount)
	if newBalance.LessThan(account.MinimumBalance) {
		return nil, ErrBalanceTooLow
	}
	tx, err := e.record(ctx, uow, account, req.Type, req.Amount, newBalance, req.Details)
	if err != nil {
		return nil, err
	}
	return &Result{Transaction: tx}, nil
}

func (e *Engine) debit(ctx context.Context, uow UnitOfWork, account *models.Account, req Request) (*Result, error) {
	newBalance := account.Balance.Sub(req.Amount)
	if newBalance.LessThan(account.MinimumBalance) {
		return nil, ErrInsufficientFunds
	}
	tx, err := e.record(ctx, uow, account, req.Type, req.Amount, newBalance, req.Details)
	if err != nil {
		return nil, err
	}
	return &Result{Transaction: tx}, nil
}

func (e *Engine) transfer(ctx context.Context, uow UnitOfWork, source *models.Account, req Request) (*Result, error) {
	newSource := source.Balance.Sub(req.Amount)
	if newSource.LessThan(source.MinimumBalance) {
		return nil, ErrInsufficientFunds
	}

	if req.DestinationNumber == source.Number {
		return nil, ErrSameAccount
	}
	dest, err := uow.AccountByNumberForUpdate(ctx, req.DestinationNumber)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return nil, ErrDestinationNotFound
		}
		return nil, storageErr(err)
	}
	if dest.ID == source.ID {
		return nil, ErrSameAccount
	}

	// Caller-supplied details are replaced with system notes naming the
	// counterpart account.
	debit, err := e.record(ctx, uow, source, models.Transfer, req.Amount, newSource,
		fmt.Sprintf("transfer to account %s", dest.Number))
	if err != nil {
		return nil, err
	}
	credit, err := e.record(ctx, uow, dest, models.Transfer, req.Amount, dest.Balance.Add(req.Amount),
		fmt.Sprintf("transfer from account %s", source.Number))
	if err != nil {
		return nil, err
	}

	return &Result{Transaction: debit, Mirror: credit}, nil
}

// record writes the new balance and inserts the posting row.
func (e *Engine) record(ctx context.Context, uow UnitOfWork, account *models.Account, typ models.TransactionType, amount, newBalance decimal.Decimal, details string) (*models.Transaction, error) {
	if err := uow.UpdateBalance(ctx, account.ID, newBalance); err != nil {
		return nil, storageErr(err)
	}

	now := time.Now().UTC()
	tx := &models.Transaction{
		ID:        uuid.New(),
		AccountID: account.ID,
		Type:      typ,
		Amount:    amount,
		Posted:    true,
		Details:   details,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := uow.InsertTransaction(ctx, tx); err != nil {
		return nil, storageErr(err)
	}
	return tx, nil
}

// validateAmount rejects non-positive amounts and amounts with more than two
// fractional digits. Sub-cent precision is rejected rather than rounded.
func validateAmount(amount decimal.Decimal) error {
	if amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if !amount.Equal(amount.Round(2)) {
		return ErrInvalidAmount
	}
	return nil
}

func loadErr(err error) error {
	if errors.Is(err, ErrAccountNotFound) {
		return err
	}
	return storageErr(err)
}

func storageErr(err error) error {
	return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
}
