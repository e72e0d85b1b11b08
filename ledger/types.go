/*
Package ledger provides the append-only cash journal and the currency
primitives built on top of it.

PURPOSE:
  Money in this system has exactly one source of truth: the journal. Every
  income, expense, transfer leg, client payment, and debt issuance is an
  immutable Entry. Balances, client debt, and shipment revenue are always
  derived by replaying entries - there is no independently mutable "balance"
  field anywhere in the core.

KEY CONCEPTS IN THIS FILE (types.go):
  - Currency: the two supported currencies (USD, RUB), tracked independently
    and never merged by implicit conversion
  - EntryType: enumerated monetary event kinds with a fixed direction table
  - Entry: an immutable journal line (amount always positive, direction
    carried by the type)
  - Filter: journal query parameters

DESIGN PRINCIPLES:
  1. Append-only: entries are never updated in place; corrections are new
     offsetting entries, removal is a soft-delete flag (void)
  2. Precision: decimal.Decimal for every amount, no float64
  3. Direction by type: the direction table below is the documented mapping,
     it is never inferred from the sign of an amount

SEE ALSO:
  - journal.go: Append/Balance/Find contract
  - rates.go: currency conversion service
  - transfer.go: cross-currency balance transfers
*/
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// CURRENCY
// =============================================================================

// Currency identifies one of the two supported bookkeeping currencies.
type Currency string

const (
	USD Currency = "usd"
	RUB Currency = "rub"
)

// Currencies lists every supported currency.
var Currencies = []Currency{USD, RUB}

// Supported reports whether c is one of the supported currencies.
func (c Currency) Supported() bool {
	for _, s := range Currencies {
		if c == s {
			return true
		}
	}
	return false
}

// =============================================================================
// ENTRY TYPES - fixed direction table
// =============================================================================

// EntryType enumerates the monetary event kinds the journal records.
type EntryType string

const (
	// Cash in.
	EntryIncomeGeneral EntryType = "income_general" // unscoped income
	EntryClientPayment EntryType = "client_payment" // payment received against a sale
	EntryDebtPayment   EntryType = "debt_payment"   // payment received against standalone debt
	EntryTransferIn    EntryType = "transfer_in"    // credit leg of a currency transfer

	// Cash out.
	EntryExpenseGeneral  EntryType = "expense_general"  // unscoped expense
	EntryExpenseShipment EntryType = "expense_shipment" // expense allocated to a shipment
	EntryTransferOut     EntryType = "transfer_out"     // debit leg of a currency transfer

	// No cash movement.
	EntryDebtSale EntryType = "debt_sale" // debt issued when volume is dispatched on credit
)

// directions is the authoritative type -> cash direction table.
// +1 increases the cash balance, -1 decreases it, 0 moves no cash
// (debt issuance is an obligation, not money in the till).
var directions = map[EntryType]int{
	EntryIncomeGeneral:   +1,
	EntryClientPayment:   +1,
	EntryDebtPayment:     +1,
	EntryTransferIn:      +1,
	EntryExpenseGeneral:  -1,
	EntryExpenseShipment: -1,
	EntryTransferOut:     -1,
	EntryDebtSale:        0,
}

// Direction returns the cash direction for t, or false if t is unknown.
func (t EntryType) Direction() (int, bool) {
	d, ok := directions[t]
	return d, ok
}

// =============================================================================
// ENTRY - atomic journal line
// =============================================================================

// Entry is a single immutable journal line.
//
// INVARIANTS:
//   - Amount is strictly positive; direction comes from Type
//   - Currency is one of the supported currencies
//   - Entries are never updated; a voided entry keeps its row with the
//     Deleted flag set so historical reconciliation stays reproducible
type Entry struct {
	ID       string
	Type     EntryType
	Currency Currency
	Amount   decimal.Decimal

	// Optional business references. A sale's entries carry SaleID (and
	// usually ClientID/ShipmentID/LotID); transfer legs carry TransferID.
	ClientID   string
	ShipmentID string
	LotID      string
	SaleID     string
	TransferID string

	Notes        string
	TransactedAt time.Time
	CreatedBy    string
	CreatedAt    time.Time
	Deleted      bool
}

// =============================================================================
// FILTER - journal queries
// =============================================================================

// Filter narrows a journal query. Zero-value fields are ignored.
// Results are ordered by transaction date descending and the query is a
// pure read: re-running it never depends on cursor state.
type Filter struct {
	Currency   Currency
	Types      []EntryType
	ClientID   string
	ShipmentID string
	SaleID     string
	TransferID string

	From *time.Time
	To   *time.Time

	// IncludeDeleted also returns voided entries. Balance and projection
	// computations never set this.
	IncludeDeleted bool

	// Limit caps the number of returned entries. 0 means no cap.
	Limit int
}

// Matches reports whether e satisfies the filter. Store implementations may
// evaluate filters natively (SQL) or via this helper (memory).
func (f Filter) Matches(e Entry) bool {
	if e.Deleted && !f.IncludeDeleted {
		return false
	}
	if f.Currency != "" && e.Currency != f.Currency {
		return false
	}
	if f.ClientID != "" && e.ClientID != f.ClientID {
		return false
	}
	if f.ShipmentID != "" && e.ShipmentID != f.ShipmentID {
		return false
	}
	if f.SaleID != "" && e.SaleID != f.SaleID {
		return false
	}
	if f.TransferID != "" && e.TransferID != f.TransferID {
		return false
	}
	if len(f.Types) > 0 {
		found := false
		for _, t := range f.Types {
			if e.Type == t {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.From != nil && e.TransactedAt.Before(*f.From) {
		return false
	}
	if f.To != nil && e.TransactedAt.After(*f.To) {
		return false
	}
	return true
}

// =============================================================================
// RATE / TRANSFER RECORDS
// =============================================================================

// Rate is a stored directional exchange rate. Both directions are stored
// explicitly; lookup never inverts.
type Rate struct {
	From      Currency
	To        Currency
	Value     decimal.Decimal
	UpdatedAt time.Time
}

// TransferStatus is the lifecycle state of a currency transfer.
type TransferStatus string

const (
	TransferCompleted TransferStatus = "completed"
	TransferVoided    TransferStatus = "voided"
)

// Transfer records a balance movement between the two currencies together
// with the journal legs it produced. The rate is snapshotted at transfer
// time and never re-derived.
type Transfer struct {
	ID           string
	FromCurrency Currency
	ToCurrency   Currency
	FromAmount   decimal.Decimal
	ToAmount     decimal.Decimal
	Rate         decimal.Decimal
	OutEntryID   string
	InEntryID    string
	Status       TransferStatus
	Notes        string
	CreatedBy    string
	CreatedAt    time.Time
}
