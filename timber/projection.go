/*
projection.go - Client debt projection

PURPOSE:
  Derives a client's per-currency debt and paid totals from first
  principles and refreshes the cache on the client row.

ALGORITHM:
  debt(c)  = sum of TotalPrice over the client's non-deleted sales in c
  paid(c)  = sum of non-voided client_payment/debt_payment entries in c
  outstanding(c) = max(0, debt - paid)    (clamped - a client never shows
                                           negative debt)

  Sales are the debt source; the journal's debt_sale entries must agree
  with them and the agreement is asserted in tests. Payments come
  from the journal because the journal is the authority for money.

IDEMPOTENCE:
  Recompute is a pure fold over current state. Running it twice with no
  intervening mutation yields identical output; running it after any
  sale/journal mutation restores consistency regardless of prior drift.
  Event-driven increments are never used in the steady state.
*/
package timber

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/timber-ledger/ledger"
)

// RecomputeClient re-derives the client's debt projection and persists it
// on the client row. Runs inside the caller's transaction.
func RecomputeClient(ctx context.Context, s Store, clientID string, now time.Time) (*Client, error) {
	c, err := s.Client(ctx, clientID)
	if err != nil {
		return nil, err
	}

	sales, err := s.SalesByClient(ctx, clientID)
	if err != nil {
		return nil, err
	}
	payments, err := s.Entries(ctx, ledger.Filter{
		ClientID: clientID,
		Types:    []ledger.EntryType{ledger.EntryClientPayment, ledger.EntryDebtPayment},
	})
	if err != nil {
		return nil, err
	}

	var p DebtProjection
	for _, cur := range ledger.Currencies {
		d := projectCurrency(sales, payments, cur)
		p.set(cur, d)
	}

	c.Projection = p
	c.UpdatedAt = now
	if err := s.SaveClient(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func projectCurrency(sales []*Sale, payments []*ledger.Entry, cur ledger.Currency) CurrencyDebt {
	d := CurrencyDebt{
		Debt:        decimal.Zero,
		Paid:        decimal.Zero,
		Outstanding: decimal.Zero,
		Volume:      decimal.Zero,
	}
	for _, sale := range sales {
		if sale.Deleted || sale.Currency != cur {
			continue
		}
		d.Debt = d.Debt.Add(sale.TotalPrice)
		d.Volume = d.Volume.Add(sale.Dispatched)
	}
	for _, e := range payments {
		if e.Deleted || e.Currency != cur {
			continue
		}
		d.Paid = d.Paid.Add(e.Amount)
	}
	d.Outstanding = d.Debt.Sub(d.Paid)
	if d.Outstanding.IsNegative() {
		d.Outstanding = decimal.Zero
	}
	return d
}
