/*
journal.go - Append-only cash journal

PURPOSE:
  The Journal is the single source of truth for money. Balance is always
  computed by replaying entries through the direction table - there is no
  separate balance field that can drift.

CRITICAL INVARIANTS:
  1. APPEND-ONLY: entries are never updated in place
  2. POSITIVE AMOUNTS: direction comes from the entry type
  3. VOID, NEVER DELETE: a voided entry keeps its row so every historical
     balance remains reproducible

CORRECTIONS:
  A mistaken entry is voided (soft-deleted) as part of reversing the
  business entity that created it, e.g. deleting an unpaid sale voids its
  debt entries. Voided entries are excluded from every balance and
  projection computation.

SEE ALSO:
  - types.go: Entry and the direction table
  - store interface below: persistence contract implemented by
    store/sqlite and store/memory
*/
package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// STORE - persistence contract for ledger state
// =============================================================================

// Store handles persistence of journal entries, rates, and transfers.
// IMPORTANT: entries are append-only. VoidEntry flips the soft-delete flag;
// nothing is ever physically removed.
type Store interface {
	// AppendEntry persists a new journal entry.
	AppendEntry(ctx context.Context, e *Entry) error

	// Entries returns entries matching the filter, ordered by transaction
	// date descending.
	Entries(ctx context.Context, f Filter) ([]*Entry, error)

	// Entry returns a single entry by id, voided or not. Returns
	// ErrEntryNotFound if no such entry exists.
	Entry(ctx context.Context, id string) (*Entry, error)

	// VoidEntry marks a single entry deleted. Returns ErrEntryNotFound if
	// no such entry exists.
	VoidEntry(ctx context.Context, id string) error

	// VoidEntriesBySale marks every entry referencing the sale deleted.
	// Used when an unpaid sale is reversed.
	VoidEntriesBySale(ctx context.Context, saleID string) error

	// Rate returns the stored rate for the exact ordered pair.
	// Returns ErrRateNotFound if no rate is stored for that direction.
	Rate(ctx context.Context, from, to Currency) (decimal.Decimal, error)

	// SaveRate stores or replaces the rate for one direction.
	SaveRate(ctx context.Context, r Rate) error

	// SaveTransfer persists a currency transfer record.
	SaveTransfer(ctx context.Context, t *Transfer) error

	// Transfer returns a single transfer by id, voided or not. Returns
	// ErrTransferNotFound if no such transfer exists.
	Transfer(ctx context.Context, id string) (*Transfer, error)

	// Transfers returns all transfer records, newest first.
	Transfers(ctx context.Context) ([]*Transfer, error)
}

// Runner executes a function atomically against a transaction-scoped Store.
// Implemented by the database layer; see store/sqlite.
type Runner interface {
	Atomic(ctx context.Context, fn func(Store) error) error
}

// =============================================================================
// JOURNAL - validation and derived balances over a Store
// =============================================================================

// Journal wraps a Store with entry validation and balance replay.
type Journal struct {
	store Store
	now   func() time.Time
}

// NewJournal creates a journal over the given store.
func NewJournal(store Store) *Journal {
	return &Journal{store: store, now: func() time.Time { return time.Now().UTC() }}
}

// Append validates and persists a journal entry, filling ID and CreatedAt
// when absent. This is the only write path for monetary events.
func (j *Journal) Append(ctx context.Context, e Entry) (*Entry, error) {
	if err := Validate(e); err != nil {
		return nil, err
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = j.now()
	}
	if e.TransactedAt.IsZero() {
		e.TransactedAt = e.CreatedAt
	}
	if err := j.store.AppendEntry(ctx, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// Balance returns income minus expense for the currency, replaying every
// non-voided entry through the direction table. debt_sale entries move no
// cash and contribute nothing.
func (j *Journal) Balance(ctx context.Context, c Currency) (decimal.Decimal, error) {
	if !c.Supported() {
		return decimal.Zero, ErrUnsupportedCurrency
	}
	entries, err := j.store.Entries(ctx, Filter{Currency: c})
	if err != nil {
		return decimal.Zero, err
	}
	return SumEntries(entries), nil
}

// Find returns entries matching the filter, newest first.
func (j *Journal) Find(ctx context.Context, f Filter) ([]*Entry, error) {
	return j.store.Entries(ctx, f)
}

// Void marks an entry deleted. The row remains.
func (j *Journal) Void(ctx context.Context, id string) error {
	return j.store.VoidEntry(ctx, id)
}

// =============================================================================
// PURE HELPERS - shared with projections and rollups
// =============================================================================

// Validate checks an entry against the journal invariants without writing.
func Validate(e Entry) error {
	if _, ok := e.Type.Direction(); !ok {
		return ErrUnknownEntryType
	}
	if !e.Currency.Supported() {
		return ErrUnsupportedCurrency
	}
	if !e.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	return nil
}

// SumEntries folds entries through the direction table. Voided entries are
// skipped so the same helper serves filtered and unfiltered slices.
func SumEntries(entries []*Entry) decimal.Decimal {
	total := decimal.Zero
	for _, e := range entries {
		if e.Deleted {
			continue
		}
		d, ok := e.Type.Direction()
		if !ok || d == 0 {
			continue
		}
		if d > 0 {
			total = total.Add(e.Amount)
		} else {
			total = total.Sub(e.Amount)
		}
	}
	return total
}
