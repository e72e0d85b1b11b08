/*
errors.go - Centralized error types for the ledger engine

PURPOSE:
  All ledger-level errors in one place. The timber domain package wraps or
  complements these with inventory errors of its own.

ERROR CATEGORIES:
  1. Validation errors - malformed input, rejected before any write
  2. Invariant errors  - would break a balance invariant, abort the unit
  3. Not-found errors  - stale references, reported distinctly from bad input

USAGE:
  Callers dispatch with errors.Is / errors.As:

    if errors.Is(err, ledger.ErrInsufficientBalance) { ... }

    var be *ledger.BalanceError
    if errors.As(err, &be) { log(be.Available, be.Requested) }
*/
package ledger

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidAmount is returned when an amount is zero or negative.
	// Direction is carried by the entry type, never by a negative amount.
	ErrInvalidAmount = errors.New("amount must be positive")

	// ErrUnsupportedCurrency is returned for a currency outside the
	// supported set.
	ErrUnsupportedCurrency = errors.New("unsupported currency")

	// ErrUnknownEntryType is returned for an entry type missing from the
	// direction table.
	ErrUnknownEntryType = errors.New("unknown entry type")

	// ErrRateNotFound is returned when no stored rate exists for the
	// ordered currency pair.
	ErrRateNotFound = errors.New("exchange rate not found")

	// ErrSameCurrency is returned when a transfer names the same currency
	// on both sides.
	ErrSameCurrency = errors.New("transfer requires two distinct currencies")

	// ErrInsufficientBalance is returned when a transfer exceeds the
	// current journal balance of the source currency.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrEntryNotFound is returned when a referenced journal entry does
	// not exist.
	ErrEntryNotFound = errors.New("journal entry not found")

	// ErrEntryBound is returned when a void targets an entry issued by a
	// sale or transfer. Such entries are only reversed through the
	// operation that owns them, so the owning record never drifts from
	// its journal trace.
	ErrEntryBound = errors.New("entry belongs to a sale or transfer and must be reversed through it")

	// ErrTransferNotFound is returned when a referenced transfer does not
	// exist.
	ErrTransferNotFound = errors.New("transfer not found")
)

// =============================================================================
// STRUCTURED ERRORS - Carry the quantities involved
// =============================================================================

// BalanceError reports a transfer rejected for lack of funds, with the
// amounts needed to make the condition actionable.
type BalanceError struct {
	Currency  Currency
	Available decimal.Decimal
	Requested decimal.Decimal
}

func (e *BalanceError) Error() string {
	return fmt.Sprintf("insufficient %s balance: available %s, requested %s",
		e.Currency, e.Available, e.Requested)
}

func (e *BalanceError) Unwrap() error { return ErrInsufficientBalance }

// RateNotFoundError reports the exact directional pair that has no stored
// rate. The system stores both directions explicitly; a missing direction is
// not recoverable by inversion.
type RateNotFoundError struct {
	From Currency
	To   Currency
}

func (e *RateNotFoundError) Error() string {
	return fmt.Sprintf("no active rate for %s -> %s", e.From, e.To)
}

func (e *RateNotFoundError) Unwrap() error { return ErrRateNotFound }

// =============================================================================
// CLASSIFICATION HELPERS
// =============================================================================

// IsClientError reports whether the error is due to invalid caller input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrUnsupportedCurrency) ||
		errors.Is(err, ErrUnknownEntryType) ||
		errors.Is(err, ErrSameCurrency) ||
		errors.Is(err, ErrInsufficientBalance)
}

// IsNotFound reports whether the error indicates a stale reference.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrRateNotFound) ||
		errors.Is(err, ErrEntryNotFound) ||
		errors.Is(err, ErrTransferNotFound)
}
