/*
lot_ledger.go - Shipment and lot intake operations

PURPOSE:
  The LotLedger owns shipment creation and every lot mutation that is not
  part of a sale: purchase intake (with additive merge on identical spec),
  warehouse loss adjustment, and lot soft-deletion. Every operation runs in
  one atomic unit and recomputes the parent shipment's rollup before
  committing.

MERGE-ON-INTAKE:
  If the shipment already holds a non-deleted lot with the same spec key
  and purchase currency, intake adds quantity/volume/amount to it instead
  of creating a duplicate. Two identical intakes therefore always yield a
  single lot carrying the sum of both.
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

// LotLedger performs shipment/lot mutations atomically.
type LotLedger struct {
	db     DB
	inv    Invalidator
	policy PricingPolicy
	now    func() time.Time
	newID  func() string
}

// NewLotLedger creates the lot ledger. A nil invalidator discards signals.
func NewLotLedger(db DB, policy PricingPolicy, inv Invalidator) *LotLedger {
	if inv == nil {
		inv = NopInvalidator{}
	}
	return &LotLedger{
		db:     db,
		inv:    inv,
		policy: policy,
		now:    func() time.Time { return time.Now().UTC() },
		newID:  uuid.NewString,
	}
}

// =============================================================================
// SHIPMENT CREATION
// =============================================================================

// ShipmentInput describes a new shipment.
type ShipmentInput struct {
	Origin      string
	Destination string
	Actor       string
}

// CreateShipment allocates the next per-year code and persists an empty
// active shipment. The sequence row is claimed inside the same transaction
// as the insert.
func (ll *LotLedger) CreateShipment(ctx context.Context, in ShipmentInput) (*Shipment, error) {
	now := ll.now()
	year := now.Year()

	var sh *Shipment
	err := ll.db.Atomic(ctx, func(s Store) error {
		seq, err := s.NextSequence(ctx, "shipment", year)
		if err != nil {
			return err
		}
		sh = &Shipment{
			ID:          ll.newID(),
			Code:        FormatCode(seq, year),
			Year:        year,
			Origin:      in.Origin,
			Destination: in.Destination,
			Status:      ShipmentActive,
			CreatedBy:   in.Actor,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		return s.SaveShipment(ctx, sh)
	})
	if err != nil {
		return nil, err
	}
	ll.inv.Invalidate(KindShipment, sh.ID)
	return sh, nil
}

// =============================================================================
// INTAKE
// =============================================================================

// IntakeInput describes one purchase intake.
type IntakeInput struct {
	ShipmentID string
	Spec       LotSpec
	Quantity   int64
	Volume     decimal.Decimal
	Currency   ledger.Currency
	Amount     decimal.Decimal
	Actor      string
}

// Intake records a purchase into the shipment, merging into an existing lot
// when spec and currency match. Returns the resulting lot and whether it
// was a merge. Intake into a closed shipment is allowed; the rollup reopens
// the shipment when remaining volume returns.
func (ll *LotLedger) Intake(ctx context.Context, in IntakeInput) (*Lot, bool, error) {
	if !in.Volume.IsPositive() || in.Quantity <= 0 {
		return nil, false, ErrInvalidVolume
	}
	if !in.Currency.Supported() {
		return nil, false, ledger.ErrUnsupportedCurrency
	}
	if in.Amount.IsNegative() {
		return nil, false, ledger.ErrInvalidAmount
	}

	var (
		lot    *Lot
		merged bool
		pend   invalidations
	)
	err := ll.db.Atomic(ctx, func(s Store) error {
		pend = pend[:0]
		now := ll.now()

		if _, err := s.Shipment(ctx, in.ShipmentID); err != nil {
			return err
		}

		existing, err := s.LotBySpec(ctx, in.ShipmentID, in.Spec.Key(), in.Currency)
		switch {
		case err == nil:
			existing.merge(in.Quantity, in.Volume, in.Amount, now)
			lot, merged = existing, true
		case errors.Is(err, ErrLotNotFound):
			lot, merged = &Lot{
				ID:               ll.newID(),
				ShipmentID:       in.ShipmentID,
				Spec:             in.Spec,
				Quantity:         in.Quantity,
				Purchased:        in.Volume,
				PurchaseCurrency: in.Currency,
				PurchaseAmount:   in.Amount,
				Loss:             decimal.Zero,
				Dispatched:       decimal.Zero,
				CreatedBy:        in.Actor,
				CreatedAt:        now,
				UpdatedAt:        now,
			}, false
		default:
			return err
		}

		if err := s.SaveLot(ctx, lot); err != nil {
			return err
		}
		if _, err := RecomputeShipment(ctx, s, in.ShipmentID, ll.policy, now); err != nil {
			return err
		}
		pend.add(KindLot, lot.ID)
		pend.add(KindShipment, in.ShipmentID)
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	pend.emit(ll.inv)
	return lot, merged, nil
}

// =============================================================================
// MANUAL CLOSURE
// =============================================================================

// CloseShipment closes an active shipment by hand, e.g. when leftover
// volume is written off without a sale. An empty shipment cannot be
// closed: the lifecycle keeps shipments without inventory active.
func (ll *LotLedger) CloseShipment(ctx context.Context, shipmentID string) (*Shipment, error) {
	var sh *Shipment
	err := ll.db.Atomic(ctx, func(s Store) error {
		now := ll.now()

		var err error
		sh, err = s.Shipment(ctx, shipmentID)
		if err != nil {
			return err
		}
		if sh.Deleted {
			return ErrShipmentNotFound
		}
		if sh.Status == ShipmentClosed {
			return ErrShipmentClosed
		}
		if !sh.Rollup.TotalVolume.IsPositive() {
			return ErrInvalidVolume
		}

		sh.Status = ShipmentClosed
		sh.CloseReason = CloseManual
		closedAt := now
		sh.ClosedAt = &closedAt
		sh.UpdatedAt = now
		return s.SaveShipment(ctx, sh)
	})
	if err != nil {
		return nil, err
	}
	ll.inv.Invalidate(KindShipment, shipmentID)
	return sh, nil
}

// ReopenShipment clears a closure and re-derives the lifecycle state. A
// shipment whose volume is still exhausted closes right back as fully
// sold; reopening an active shipment is a no-op recompute.
func (ll *LotLedger) ReopenShipment(ctx context.Context, shipmentID string) (*Shipment, error) {
	var sh *Shipment
	err := ll.db.Atomic(ctx, func(s Store) error {
		now := ll.now()

		cur, err := s.Shipment(ctx, shipmentID)
		if err != nil {
			return err
		}
		if cur.Deleted {
			return ErrShipmentNotFound
		}
		cur.Status = ShipmentActive
		cur.CloseReason = ""
		cur.ClosedAt = nil
		cur.UpdatedAt = now
		if err := s.SaveShipment(ctx, cur); err != nil {
			return err
		}
		sh, err = RecomputeShipment(ctx, s, shipmentID, ll.policy, now)
		return err
	})
	if err != nil {
		return nil, err
	}
	ll.inv.Invalidate(KindShipment, shipmentID)
	return sh, nil
}

// =============================================================================
// LOSS ADJUSTMENT
// =============================================================================

// RecordLoss attributes warehouse loss volume to a lot. Fails when the
// cumulative loss would exceed the purchased volume or undercut volume
// already dispatched.
func (ll *LotLedger) RecordLoss(ctx context.Context, lotID string, volume decimal.Decimal, responsible, reason string) (*Lot, error) {
	var (
		lot  *Lot
		pend invalidations
	)
	err := ll.db.Atomic(ctx, func(s Store) error {
		pend = pend[:0]
		now := ll.now()

		var err error
		lot, err = s.Lot(ctx, lotID)
		if err != nil {
			return err
		}
		if lot.Deleted {
			return ErrLotNotFound
		}
		if err := lot.recordLoss(volume, responsible, now); err != nil {
			return err
		}
		if err := s.SaveLot(ctx, lot); err != nil {
			return err
		}
		if _, err := RecomputeShipment(ctx, s, lot.ShipmentID, ll.policy, now); err != nil {
			return err
		}
		pend.add(KindLot, lot.ID)
		pend.add(KindShipment, lot.ShipmentID)
		return nil
	})
	if err != nil {
		return nil, err
	}
	pend.emit(ll.inv)
	return lot, nil
}

// =============================================================================
// DELETION
// =============================================================================

// DeleteLot soft-deletes a lot. Permitted only while remaining equals
// purchased: nothing dispatched and no loss recorded. Rows are never
// physically removed.
func (ll *LotLedger) DeleteLot(ctx context.Context, lotID string) error {
	var pend invalidations
	err := ll.db.Atomic(ctx, func(s Store) error {
		pend = pend[:0]
		now := ll.now()

		lot, err := s.Lot(ctx, lotID)
		if err != nil {
			return err
		}
		if lot.Deleted {
			return ErrLotNotFound
		}
		if !lot.Remaining().Equal(lot.Purchased) {
			return ErrLotHasDispatches
		}
		lot.Deleted = true
		lot.UpdatedAt = now
		if err := s.SaveLot(ctx, lot); err != nil {
			return err
		}
		if _, err := RecomputeShipment(ctx, s, lot.ShipmentID, ll.policy, now); err != nil {
			return err
		}
		pend.add(KindLot, lot.ID)
		pend.add(KindShipment, lot.ShipmentID)
		return nil
	})
	if err != nil {
		return err
	}
	pend.emit(ll.inv)
	return nil
}
