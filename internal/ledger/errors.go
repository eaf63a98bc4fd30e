package ledger

import (
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"

	"custody-wallet/internal/rates"
)

var (
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrInvalidSymbol       = errors.New("invalid symbol")
	ErrInvalidReference    = errors.New("external reference required")
	ErrInvalidDestination  = errors.New("destination required")
	ErrOwnerNotFound       = errors.New("owner not found")
	ErrAssetNotFound       = errors.New("asset not found")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrDuplicateReference  = errors.New("duplicate external reference")
	ErrRecipientNotFound   = errors.New("recipient not found")
	ErrRateUnavailable     = errors.New("rate unavailable")
	ErrConcurrencyConflict = errors.New("concurrency conflict")
	ErrPersistence         = errors.New("persistence failure")
	ErrTransactionNotFound = errors.New("transaction not found")

	ErrRateSourceUnavailable = rates.ErrRateSourceUnavailable
)

// storageErr tags a database error with the ledger error it maps to while
// keeping the driver error reachable through errors.As.
func storageErr(err error) error {
	if err == nil {
		return nil
	}

	var se sqlite3.Error
	if errors.As(err, &se) {
		switch {
		case se.Code == sqlite3.ErrBusy || se.Code == sqlite3.ErrLocked:
			return fmt.Errorf("%w: %w", ErrConcurrencyConflict, err)
		case se.ExtendedCode == sqlite3.ErrConstraintUnique:
			return fmt.Errorf("%w: %w", ErrDuplicateReference, err)
		}
	}
	return fmt.Errorf("%w: %w", ErrPersistence, err)
}
