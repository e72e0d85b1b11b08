/*
client.go - Client entity and the debt projection cache

PURPOSE:
  A Client row caches the debt projection; it is never the authority.
  The authoritative values are derived from non-deleted sales and journal
  payment entries by RecomputeClient (projection.go). Any divergence is a
  bug repaired by full recomputation, never by a one-off increment.
*/
package timber

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/timber-ledger/ledger"
)

// CurrencyDebt is one currency's slice of a client's projection.
// The two currencies are tracked independently and never merged by
// implicit conversion.
type CurrencyDebt struct {
	Debt        decimal.Decimal // sum of non-deleted sale totals
	Paid        decimal.Decimal // sum of non-voided payment entries
	Outstanding decimal.Decimal // max(0, Debt - Paid)
	Volume      decimal.Decimal // received volume across those sales (m3)
}

// DebtProjection is the full per-currency projection for one client.
// Recomputing twice with no intervening mutation yields identical values.
type DebtProjection struct {
	USD CurrencyDebt
	RUB CurrencyDebt
}

// ForCurrency returns the slice for c.
func (p DebtProjection) ForCurrency(c ledger.Currency) CurrencyDebt {
	if c == ledger.RUB {
		return p.RUB
	}
	return p.USD
}

func (p *DebtProjection) set(c ledger.Currency, d CurrencyDebt) {
	if c == ledger.RUB {
		p.RUB = d
	} else {
		p.USD = d
	}
}

// Client is a counterparty. Projection is a cache of RecomputeClient's
// output, refreshed inside every transaction that touches the client's
// sales or payments.
type Client struct {
	ID    string
	Name  string
	Phone string
	Notes string

	Projection DebtProjection

	Deleted   bool
	CreatedBy string
	CreatedAt time.Time
	UpdatedAt time.Time
}
