/*
lot.go - Lot entity and volume conservation

PURPOSE:
  A Lot tracks one purchased batch through its volume lifecycle.

VOLUME INVARIANTS:
  0 <= Loss <= Purchased
  0 <= Dispatched <= Available
  Available = Purchased - Loss and Remaining = Available - Dispatched,
  always recomputed from their inputs, never stored as separate fields.

  Only Purchased, Loss, and Dispatched are persisted. Available() and
  Remaining() are methods, so the derivations hold by construction.
*/
package timber

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/timber-ledger/ledger"
)

// Lot is a purchased batch of wood with fixed physical dimensions.
// Exclusively owned by its parent shipment; sales hold non-owning
// references to it.
type Lot struct {
	ID         string
	ShipmentID string
	Spec       LotSpec

	// Purchase facts. Quantity is the piece count, Purchased the volume
	// in m3. Merge-on-intake adds to these.
	Quantity         int64
	Purchased        decimal.Decimal
	PurchaseCurrency ledger.Currency
	PurchaseAmount   decimal.Decimal

	// Warehouse loss with the responsible party it is attributed to.
	Loss            decimal.Decimal
	LossResponsible string

	// Total volume dispatched to sales. Mutated only via dispatch and
	// reverseDispatch inside a sale transaction.
	Dispatched decimal.Decimal

	Deleted   bool
	CreatedBy string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Available returns purchased minus warehouse loss.
func (l *Lot) Available() decimal.Decimal {
	return l.Purchased.Sub(l.Loss)
}

// Remaining returns available minus dispatched.
func (l *Lot) Remaining() decimal.Decimal {
	return l.Available().Sub(l.Dispatched)
}

// merge folds a second intake with an identical spec into this lot.
func (l *Lot) merge(quantity int64, volume, amount decimal.Decimal, now time.Time) {
	l.Quantity += quantity
	l.Purchased = l.Purchased.Add(volume)
	l.PurchaseAmount = l.PurchaseAmount.Add(amount)
	l.UpdatedAt = now
}

// recordLoss applies a warehouse loss adjustment, bounding the resulting
// total loss by the purchased volume.
func (l *Lot) recordLoss(volume decimal.Decimal, responsible string, now time.Time) error {
	if !volume.IsPositive() {
		return ErrInvalidVolume
	}
	newLoss := l.Loss.Add(volume)
	if newLoss.GreaterThan(l.Purchased) {
		return &InvalidLossError{LotID: l.ID, Loss: newLoss, Against: l.Purchased}
	}
	if l.Dispatched.GreaterThan(l.Purchased.Sub(newLoss)) {
		// Loss cannot retroactively undercut volume already dispatched.
		return &InvalidLossError{LotID: l.ID, Loss: newLoss, Against: l.Purchased.Sub(l.Dispatched)}
	}
	l.Loss = newLoss
	if responsible != "" {
		l.LossResponsible = responsible
	}
	l.UpdatedAt = now
	return nil
}

// dispatch consumes remaining volume, checked against the lot's current
// state. Callers must hold the lot inside an open transaction.
func (l *Lot) dispatch(volume decimal.Decimal, now time.Time) error {
	if !volume.IsPositive() {
		return ErrInvalidVolume
	}
	if volume.GreaterThan(l.Remaining()) {
		return &InsufficientVolumeError{LotID: l.ID, Requested: volume, Remaining: l.Remaining()}
	}
	l.Dispatched = l.Dispatched.Add(volume)
	l.UpdatedAt = now
	return nil
}

// reverseDispatch returns volume to the lot when a sale is undone. Cannot
// reverse more than was dispatched.
func (l *Lot) reverseDispatch(volume decimal.Decimal, now time.Time) error {
	if !volume.IsPositive() {
		return ErrInvalidVolume
	}
	if volume.GreaterThan(l.Dispatched) {
		return &InsufficientVolumeError{LotID: l.ID, Requested: volume, Remaining: l.Dispatched}
	}
	l.Dispatched = l.Dispatched.Sub(volume)
	l.UpdatedAt = now
	return nil
}
