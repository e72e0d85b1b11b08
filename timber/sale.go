/*
sale.go - Sale entity and derived financials

PURPOSE:
  A Sale is a dispatch of lot volume to a client at an agreed unit price.
  At most one sale exists per (lot, client) pair: a second sale request for
  the same pair merges into the existing record.

DERIVATIONS:
  total = priced volume x unit price (priced volume per PricingPolicy)
  debt  = total - paid
  status = pending | partial | paid, from paid vs total

MERGE PRICING:
  When a merge supplies a different unit price or currency, the latest
  values supersede the earlier ones and the total is recomputed over the
  combined volume. This re-prices volume dispatched earlier. It reproduces
  the behavior of the system this one replaces; flag to stakeholders before
  changing it.
*/
package timber

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/timber-ledger/ledger"
)

// Sale is one client's cumulative purchase from one lot.
type Sale struct {
	ID         string
	LotID      string
	ShipmentID string

	// Either a stored client reference or a one-time client name/phone.
	ClientID    string
	ClientName  string
	ClientPhone string

	// Cumulative dispatched volume and transport loss (m3).
	Dispatched           decimal.Decimal
	TransportLoss        decimal.Decimal
	TransportResponsible string

	// Latest agreed price. On merge these supersede prior values.
	Currency  ledger.Currency
	UnitPrice decimal.Decimal

	// TotalPrice is derived. It is persisted for query convenience but
	// recomputed on every mutation via reprice().
	TotalPrice decimal.Decimal
	Paid       decimal.Decimal

	Deleted   bool
	CreatedBy string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// PricedVolume returns the volume the total is computed on under p.
func (s *Sale) PricedVolume(p PricingPolicy) decimal.Decimal {
	if p == PriceDelivered {
		return s.Dispatched.Sub(s.TransportLoss)
	}
	return s.Dispatched
}

// Debt returns total minus paid. May be negative only transiently within a
// transaction; the projection clamps at zero.
func (s *Sale) Debt() decimal.Decimal {
	return s.TotalPrice.Sub(s.Paid)
}

// Status derives the lifecycle state from paid vs total.
func (s *Sale) Status() SaleStatus {
	switch {
	case !s.Paid.IsPositive():
		return SalePending
	case s.Paid.GreaterThanOrEqual(s.TotalPrice):
		return SalePaid
	default:
		return SalePartial
	}
}

// reprice recomputes the derived total from current volume and price.
func (s *Sale) reprice(p PricingPolicy, now time.Time) {
	s.TotalPrice = s.PricedVolume(p).Mul(s.UnitPrice)
	s.UpdatedAt = now
}
