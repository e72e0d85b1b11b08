/*
shipment.go - Shipment aggregate and its rollup

PURPOSE:
  A Shipment ("wagon") is the parent aggregate for a batch import. All of
  its volume and financial fields are pure functions of its child lots,
  sales, and allocated expense entries. RecomputeShipment overwrites
  them wholesale - never a field-by-field patch that can drift.

STATE MACHINE:
  active -> closed   when total volume > 0, remaining <= epsilon, and
                     something was dispatched (reason fully_sold)
  closed -> active   when a correction restores remaining > epsilon
  total volume == 0  forces active: a shipment cannot be closed before it
                     has any inventory
*/
package timber

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/timber-ledger/ledger"
)

// CurrencyTotals is one currency's rolled-up financials for a shipment.
type CurrencyTotals struct {
	Cost    decimal.Decimal // purchase amounts + allocated expenses
	Revenue decimal.Decimal // sale totals
	Paid    decimal.Decimal // payments received against those sales
	Profit  decimal.Decimal // Revenue - Cost
}

// Rollup carries every derived shipment field. Overwritten wholesale by
// RecomputeShipment.
type Rollup struct {
	TotalVolume      decimal.Decimal
	LossVolume       decimal.Decimal
	AvailableVolume  decimal.Decimal
	DispatchedVolume decimal.Decimal
	RemainingVolume  decimal.Decimal

	LotCount  int
	SaleCount int

	USD CurrencyTotals
	RUB CurrencyTotals
}

// ForCurrency returns the totals for c.
func (r Rollup) ForCurrency(c ledger.Currency) CurrencyTotals {
	if c == ledger.RUB {
		return r.RUB
	}
	return r.USD
}

func (r *Rollup) set(c ledger.Currency, t CurrencyTotals) {
	if c == ledger.RUB {
		r.RUB = t
	} else {
		r.USD = t
	}
}

// Shipment is a batch import transaction aggregating lots.
type Shipment struct {
	ID   string
	Code string // unique, sequential per year, e.g. "007-2026"
	Year int

	Origin      string
	Destination string

	Status      ShipmentStatus
	CloseReason CloseReason
	ClosedAt    *time.Time

	Rollup Rollup

	Deleted   bool
	CreatedBy string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// =============================================================================
// ROLLUP RECOMPUTATION
// =============================================================================

// RecomputeShipment re-derives a shipment's rollup and lifecycle state from
// its children and persists it. Must run inside the same atomic unit as the
// mutation that invalidated it, so shipment reads are never stale relative
// to their own children within one logical operation.
func RecomputeShipment(ctx context.Context, s Store, shipmentID string, policy PricingPolicy, now time.Time) (*Shipment, error) {
	sh, err := s.Shipment(ctx, shipmentID)
	if err != nil {
		return nil, err
	}

	lots, err := s.LotsByShipment(ctx, shipmentID)
	if err != nil {
		return nil, err
	}
	sales, err := s.SalesByShipment(ctx, shipmentID)
	if err != nil {
		return nil, err
	}
	expenses, err := s.Entries(ctx, ledger.Filter{
		ShipmentID: shipmentID,
		Types:      []ledger.EntryType{ledger.EntryExpenseShipment},
	})
	if err != nil {
		return nil, err
	}

	var r Rollup
	for _, lot := range lots {
		if lot.Deleted {
			continue
		}
		r.LotCount++
		r.TotalVolume = r.TotalVolume.Add(lot.Purchased)
		r.LossVolume = r.LossVolume.Add(lot.Loss)
		r.AvailableVolume = r.AvailableVolume.Add(lot.Available())
		r.DispatchedVolume = r.DispatchedVolume.Add(lot.Dispatched)
		r.RemainingVolume = r.RemainingVolume.Add(lot.Remaining())

		t := r.ForCurrency(lot.PurchaseCurrency)
		t.Cost = t.Cost.Add(lot.PurchaseAmount)
		r.set(lot.PurchaseCurrency, t)
	}
	for _, sale := range sales {
		if sale.Deleted {
			continue
		}
		r.SaleCount++
		t := r.ForCurrency(sale.Currency)
		t.Revenue = t.Revenue.Add(sale.TotalPrice)
		t.Paid = t.Paid.Add(sale.Paid)
		r.set(sale.Currency, t)
	}
	for _, e := range expenses {
		t := r.ForCurrency(e.Currency)
		t.Cost = t.Cost.Add(e.Amount)
		r.set(e.Currency, t)
	}
	for _, c := range ledger.Currencies {
		t := r.ForCurrency(c)
		t.Profit = t.Revenue.Sub(t.Cost)
		r.set(c, t)
	}

	sh.Rollup = r
	applyLifecycle(sh, now)
	sh.UpdatedAt = now

	if err := s.SaveShipment(ctx, sh); err != nil {
		return nil, err
	}
	return sh, nil
}

// applyLifecycle drives the active/closed state machine from the freshly
// computed rollup.
func applyLifecycle(sh *Shipment, now time.Time) {
	r := sh.Rollup
	switch {
	case !r.TotalVolume.IsPositive():
		// No inventory yet: never closed, whatever was stored.
		sh.Status = ShipmentActive
		sh.CloseReason = ""
		sh.ClosedAt = nil
	case exhausted(r.RemainingVolume) && r.DispatchedVolume.IsPositive():
		if sh.Status != ShipmentClosed {
			sh.Status = ShipmentClosed
			sh.CloseReason = CloseFullySold
			closedAt := now
			sh.ClosedAt = &closedAt
		}
	default:
		if sh.Status == ShipmentClosed && sh.CloseReason == CloseFullySold {
			// A correction restored volume: reopen.
			sh.Status = ShipmentActive
			sh.CloseReason = ""
			sh.ClosedAt = nil
		}
	}
}

// FormatCode renders the per-year sequential shipment code.
func FormatCode(seq int64, year int) string {
	return fmt.Sprintf("%03d-%d", seq, year)
}
