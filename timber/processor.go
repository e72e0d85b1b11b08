/*
processor.go - Sale transaction processor

PURPOSE:
  Sell is the one path that moves volume out of a lot. It validates
  against the lot's CURRENT remaining volume (re-read inside the
  transaction, never from a value the caller read earlier), merges into
  the existing (lot, client) sale or creates one, appends the journal
  deltas, and recomputes the client projection and shipment rollup - all
  in a single atomic unit.

CONCURRENCY:
  Two concurrent sells against one lot are expected to race. The store's
  conflict detection aborts the loser, the atomic runner retries it, and
  the retry observes the updated remaining volume: it either succeeds
  against genuinely available volume or fails with an
  InsufficientVolumeError. Oversell is impossible by construction.

JOURNAL DELTAS:
  A merge appends a debt_sale entry for the CHANGE in total price, not the
  cumulative total, so replaying the journal never double-counts. When a
  merge switches the sale's currency, the old currency's debt entries are
  voided and the full new total is issued in the new currency.
*/
package timber

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/warp/timber-ledger/ledger"
)

// SaleProcessor executes sale, payment, and sale-reversal transactions.
type SaleProcessor struct {
	db     DB
	inv    Invalidator
	policy PricingPolicy
	now    func() time.Time
	newID  func() string
}

// NewSaleProcessor creates the processor. A nil invalidator discards
// signals.
func NewSaleProcessor(db DB, policy PricingPolicy, inv Invalidator) *SaleProcessor {
	if inv == nil {
		inv = NopInvalidator{}
	}
	if !policy.Valid() {
		policy = PriceDispatched
	}
	return &SaleProcessor{
		db:     db,
		inv:    inv,
		policy: policy,
		now:    func() time.Time { return time.Now().UTC() },
		newID:  uuid.NewString,
	}
}

// =============================================================================
// SELL
// =============================================================================

// SellInput describes one dispatch to a client.
type SellInput struct {
	LotID    string
	ClientID string

	// One-time client identification when no stored client is referenced.
	ClientName  string
	ClientPhone string

	Volume               decimal.Decimal // dispatched volume, m3
	TransportLoss        decimal.Decimal
	TransportResponsible string

	Currency  ledger.Currency
	UnitPrice decimal.Decimal
	Paid      decimal.Decimal // amount paid immediately, may be zero

	Actor string
}

// Sell dispatches lot volume to a client.
//
// Failure set: ErrLotNotFound, ErrClientNotFound, ErrShipmentClosed,
// InsufficientVolumeError, ErrInvalidLoss, ErrInvalidVolume,
// ledger.ErrUnsupportedCurrency, ledger.ErrInvalidAmount. Any failure
// aborts the whole unit: no partial journal entries, no lot mutation.
func (p *SaleProcessor) Sell(ctx context.Context, in SellInput) (*Sale, error) {
	if !in.Volume.IsPositive() {
		return nil, ErrInvalidVolume
	}
	if in.TransportLoss.IsNegative() || in.TransportLoss.GreaterThanOrEqual(in.Volume) {
		return nil, ErrInvalidLoss
	}
	if !in.Currency.Supported() {
		return nil, ledger.ErrUnsupportedCurrency
	}
	if in.UnitPrice.IsNegative() || in.Paid.IsNegative() {
		return nil, ledger.ErrInvalidAmount
	}

	var (
		sale *Sale
		pend invalidations
	)
	err := p.db.Atomic(ctx, func(s Store) error {
		pend = pend[:0]
		now := p.now()

		// Re-read current state inside the transaction (snapshot read).
		lot, err := s.Lot(ctx, in.LotID)
		if err != nil {
			return err
		}
		if lot.Deleted {
			return ErrLotNotFound
		}
		sh, err := s.Shipment(ctx, lot.ShipmentID)
		if err != nil {
			return err
		}
		if sh.Status == ShipmentClosed {
			return ErrShipmentClosed
		}
		if in.ClientID != "" {
			if _, err := s.Client(ctx, in.ClientID); err != nil {
				return err
			}
		}

		// Merge into the existing (lot, client) sale or create one.
		sale, err = p.mergeOrCreate(ctx, s, lot, in, now)
		if err != nil {
			return err
		}

		// Consume lot volume against its current remaining.
		if err := lot.dispatch(in.Volume, now); err != nil {
			return err
		}
		if err := s.SaveLot(ctx, lot); err != nil {
			return err
		}
		if err := s.SaveSale(ctx, sale); err != nil {
			return err
		}

		// Projection, then rollup, inside the same unit.
		if in.ClientID != "" {
			if _, err := RecomputeClient(ctx, s, in.ClientID, now); err != nil {
				return err
			}
			pend.add(KindClient, in.ClientID)
		}
		if _, err := RecomputeShipment(ctx, s, lot.ShipmentID, p.policy, now); err != nil {
			return err
		}

		pend.add(KindLot, lot.ID)
		pend.add(KindSale, sale.ID)
		pend.add(KindShipment, lot.ShipmentID)
		return nil
	})
	if err != nil {
		return nil, err
	}
	pend.emit(p.inv)
	return sale, nil
}

// mergeOrCreate resolves the sale row and appends the journal deltas for
// this dispatch.
func (p *SaleProcessor) mergeOrCreate(ctx context.Context, s Store, lot *Lot, in SellInput, now time.Time) (*Sale, error) {
	// The merge invariant is keyed on the (lot, client) pair; one-time
	// clients have no stable identity, so each of their sales stands alone.
	var existing *Sale
	if in.ClientID != "" {
		var err error
		existing, err = s.SaleByLotClient(ctx, in.LotID, in.ClientID)
		if err != nil && !errors.Is(err, ErrSaleNotFound) {
			return nil, err
		}
	}

	if existing == nil {
		sale := &Sale{
			ID:                   p.newID(),
			LotID:                lot.ID,
			ShipmentID:           lot.ShipmentID,
			ClientID:             in.ClientID,
			ClientName:           in.ClientName,
			ClientPhone:          in.ClientPhone,
			Dispatched:           in.Volume,
			TransportLoss:        in.TransportLoss,
			TransportResponsible: in.TransportResponsible,
			Currency:             in.Currency,
			UnitPrice:            in.UnitPrice,
			Paid:                 in.Paid,
			CreatedBy:            in.Actor,
			CreatedAt:            now,
			UpdatedAt:            now,
		}
		sale.reprice(p.policy, now)
		if err := p.appendSaleEntries(ctx, s, sale, sale.TotalPrice, in.Paid, now, in.Actor); err != nil {
			return nil, err
		}
		return sale, nil
	}

	prevTotal := existing.TotalPrice
	prevCurrency := existing.Currency

	existing.Dispatched = existing.Dispatched.Add(in.Volume)
	existing.TransportLoss = existing.TransportLoss.Add(in.TransportLoss)
	if in.TransportResponsible != "" {
		existing.TransportResponsible = in.TransportResponsible
	}
	// Latest price and currency supersede the prior ones for the combined
	// volume. See the package comment before changing this.
	existing.Currency = in.Currency
	existing.UnitPrice = in.UnitPrice
	existing.Paid = existing.Paid.Add(in.Paid)
	existing.reprice(p.policy, now)

	debtDelta := existing.TotalPrice.Sub(prevTotal)
	if prevCurrency != in.Currency || debtDelta.IsNegative() {
		// Currency switch or downward reprice: the issued debt no longer
		// describes this sale, and debt_sale corrections are never
		// negative. Void the issuance and write the full total anew so
		// the live journal sum keeps matching the sale total.
		if err := s.VoidEntriesBySale(ctx, existing.ID); err != nil {
			return nil, err
		}
		if err := p.appendSaleEntries(ctx, s, existing, existing.TotalPrice, existing.Paid, now, in.Actor); err != nil {
			return nil, err
		}
		return existing, nil
	}

	if err := p.appendSaleEntries(ctx, s, existing, debtDelta, in.Paid, now, in.Actor); err != nil {
		return nil, err
	}
	return existing, nil
}

// appendSaleEntries writes the debt_sale delta and, when paid > 0, the
// client_payment entry for one dispatch.
func (p *SaleProcessor) appendSaleEntries(ctx context.Context, s Store, sale *Sale, debtDelta, paid decimal.Decimal, now time.Time, actor string) error {
	if debtDelta.IsPositive() {
		e := &ledger.Entry{
			ID:           p.newID(),
			Type:         ledger.EntryDebtSale,
			Currency:     sale.Currency,
			Amount:       debtDelta,
			ClientID:     sale.ClientID,
			ShipmentID:   sale.ShipmentID,
			LotID:        sale.LotID,
			SaleID:       sale.ID,
			TransactedAt: now,
			CreatedBy:    actor,
			CreatedAt:    now,
		}
		if err := ledger.Validate(*e); err != nil {
			return err
		}
		if err := s.AppendEntry(ctx, e); err != nil {
			return err
		}
	}
	if paid.IsPositive() {
		e := &ledger.Entry{
			ID:           p.newID(),
			Type:         ledger.EntryClientPayment,
			Currency:     sale.Currency,
			Amount:       paid,
			ClientID:     sale.ClientID,
			ShipmentID:   sale.ShipmentID,
			LotID:        sale.LotID,
			SaleID:       sale.ID,
			TransactedAt: now,
			CreatedBy:    actor,
			CreatedAt:    now,
		}
		if err := ledger.Validate(*e); err != nil {
			return err
		}
		if err := s.AppendEntry(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// PAYMENT APPLICATION
// =============================================================================

// RecordPayment applies a payment to an existing sale. The payment cannot
// exceed the sale's outstanding debt.
func (p *SaleProcessor) RecordPayment(ctx context.Context, saleID string, amount decimal.Decimal, actor string) (*Sale, error) {
	if !amount.IsPositive() {
		return nil, ledger.ErrInvalidAmount
	}

	var (
		sale *Sale
		pend invalidations
	)
	err := p.db.Atomic(ctx, func(s Store) error {
		pend = pend[:0]
		now := p.now()

		var err error
		sale, err = s.Sale(ctx, saleID)
		if err != nil {
			return err
		}
		if sale.Deleted {
			return ErrSaleNotFound
		}
		if amount.GreaterThan(sale.Debt()) {
			return ErrPaymentExceedsDebt
		}

		sale.Paid = sale.Paid.Add(amount)
		sale.UpdatedAt = now
		if err := s.SaveSale(ctx, sale); err != nil {
			return err
		}
		if err := p.appendSaleEntries(ctx, s, sale, decimal.Zero, amount, now, actor); err != nil {
			return err
		}
		if sale.ClientID != "" {
			if _, err := RecomputeClient(ctx, s, sale.ClientID, now); err != nil {
				return err
			}
			pend.add(KindClient, sale.ClientID)
		}
		if _, err := RecomputeShipment(ctx, s, sale.ShipmentID, p.policy, now); err != nil {
			return err
		}
		pend.add(KindSale, sale.ID)
		pend.add(KindShipment, sale.ShipmentID)
		return nil
	})
	if err != nil {
		return nil, err
	}
	pend.emit(p.inv)
	return sale, nil
}

// =============================================================================
// DELETION
// =============================================================================

// DeleteSale soft-deletes a sale, reverses its lot dispatch, and voids its
// journal entries. Permitted only while the sale has no payment history -
// a paid sale is immutable to deletion.
func (p *SaleProcessor) DeleteSale(ctx context.Context, saleID string) error {
	var pend invalidations
	err := p.db.Atomic(ctx, func(s Store) error {
		pend = pend[:0]
		now := p.now()

		sale, err := s.Sale(ctx, saleID)
		if err != nil {
			return err
		}
		if sale.Deleted {
			return ErrSaleNotFound
		}
		if sale.Paid.IsPositive() {
			return ErrSaleHasPayments
		}

		lot, err := s.Lot(ctx, sale.LotID)
		if err != nil {
			return err
		}
		if err := lot.reverseDispatch(sale.Dispatched, now); err != nil {
			return err
		}

		sale.Deleted = true
		sale.UpdatedAt = now
		if err := s.SaveSale(ctx, sale); err != nil {
			return err
		}
		if err := s.SaveLot(ctx, lot); err != nil {
			return err
		}
		if err := s.VoidEntriesBySale(ctx, sale.ID); err != nil {
			return err
		}
		if sale.ClientID != "" {
			if _, err := RecomputeClient(ctx, s, sale.ClientID, now); err != nil {
				return err
			}
			pend.add(KindClient, sale.ClientID)
		}
		if _, err := RecomputeShipment(ctx, s, sale.ShipmentID, p.policy, now); err != nil {
			return err
		}
		pend.add(KindSale, sale.ID)
		pend.add(KindLot, lot.ID)
		pend.add(KindShipment, sale.ShipmentID)
		return nil
	})
	if err != nil {
		return err
	}
	pend.emit(p.inv)
	return nil
}
