// Package ledger implements the posting engine: it validates a transaction
// request, applies its balance effect to one or two accounts inside a single
// unit of work, and records the transaction. All exits either commit the
// whole posting or leave persisted state untouched.
package ledger

import "errors"

// Domain errors returned by the engine. The HTTP layer maps these to status
// codes; everything else is treated as an internal failure.
var (
	// ErrAccountNotFound means the target account does not exist or is
	// soft-deleted.
	ErrAccountNotFound = errors.New("account not found")

	// ErrTransactionNotFound means the transaction does not exist or is
	// soft-deleted.
	ErrTransactionNotFound = errors.New("transaction not found")

	// ErrInvalidAmount means the amount is not a positive value with at
	// most two fractional digits.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrBalanceTooLow means a credit would still leave the balance below
	// the account's minimum.
	ErrBalanceTooLow = errors.New("balance below account minimum")

	// ErrInsufficientFunds means a debit would push the balance below the
	// account's minimum.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrDestinationNotFound means no non-deleted account matches the
	// transfer destination number.
	ErrDestinationNotFound = errors.New("transfer destination not found")

	// ErrSameAccount means a transfer names its own account as destination.
	ErrSameAccount = errors.New("transfer source and destination are the same account")

	// ErrUnsupportedType means the transaction type has no posting rule.
	ErrUnsupportedType = errors.New("unsupported transaction type")

	// ErrStorageUnavailable wraps infrastructure failures from the
	// persistence layer. Nothing was persisted.
	ErrStorageUnavailable = errors.New("storage unavailable")
)
