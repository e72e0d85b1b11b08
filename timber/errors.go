/*
errors.go - Centralized error types for the timber domain

PURPOSE:
  Inventory-side errors in one place, mirroring ledger/errors.go. Sentinel
  errors classify, structured errors carry the quantities (requested vs
  available) so callers can act on the condition instead of guessing.
*/
package timber

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidVolume is returned for zero/negative volumes, or a loss
	// adjustment exceeding the lot's purchased volume.
	ErrInvalidVolume = errors.New("invalid volume")

	// ErrInsufficientVolume is returned when a dispatch exceeds the lot's
	// remaining volume.
	ErrInsufficientVolume = errors.New("insufficient remaining volume")

	// ErrInvalidLoss is returned when transport loss would consume the
	// entire dispatched volume.
	ErrInvalidLoss = errors.New("transport loss must be less than dispatched volume")

	// ErrShipmentClosed is returned when a mutation targets a closed
	// shipment.
	ErrShipmentClosed = errors.New("shipment is closed")

	// ErrSaleHasPayments is returned when deleting a sale that has any
	// payment history.
	ErrSaleHasPayments = errors.New("sale has payments and cannot be deleted")

	// ErrLotHasDispatches is returned when deleting a lot whose remaining
	// volume no longer equals its purchased volume (dispatches or loss
	// recorded).
	ErrLotHasDispatches = errors.New("lot has dispatched or lost volume and cannot be deleted")

	// ErrPaymentExceedsDebt is returned when a payment would exceed the
	// sale's outstanding debt.
	ErrPaymentExceedsDebt = errors.New("payment exceeds outstanding debt")

	// Not-found errors, reported distinctly from validation errors so
	// callers can tell bad input from a stale reference.
	ErrLotNotFound      = errors.New("lot not found")
	ErrSaleNotFound     = errors.New("sale not found")
	ErrClientNotFound   = errors.New("client not found")
	ErrShipmentNotFound = errors.New("shipment not found")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// InsufficientVolumeError reports a dispatch rejected against the lot's
// current remaining volume, re-read inside the transaction.
type InsufficientVolumeError struct {
	LotID     string
	Requested decimal.Decimal
	Remaining decimal.Decimal
}

func (e *InsufficientVolumeError) Error() string {
	return fmt.Sprintf("lot %s: requested %s m3, remaining %s m3",
		e.LotID, e.Requested, e.Remaining)
}

func (e *InsufficientVolumeError) Unwrap() error { return ErrInsufficientVolume }

// InvalidLossError reports a warehouse or transport loss out of range.
type InvalidLossError struct {
	LotID   string
	Loss    decimal.Decimal
	Against decimal.Decimal // the bound the loss was checked against
}

func (e *InvalidLossError) Error() string {
	return fmt.Sprintf("lot %s: loss %s m3 out of range (bound %s m3)",
		e.LotID, e.Loss, e.Against)
}

func (e *InvalidLossError) Unwrap() error { return ErrInvalidVolume }

// =============================================================================
// CLASSIFICATION HELPERS
// =============================================================================

// IsClientError reports whether the error is due to invalid caller input or
// a business-rule rejection (as opposed to infrastructure failure).
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidVolume) ||
		errors.Is(err, ErrInsufficientVolume) ||
		errors.Is(err, ErrInvalidLoss) ||
		errors.Is(err, ErrShipmentClosed) ||
		errors.Is(err, ErrSaleHasPayments) ||
		errors.Is(err, ErrLotHasDispatches) ||
		errors.Is(err, ErrPaymentExceedsDebt)
}

// IsNotFound reports whether the error indicates a stale reference.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrLotNotFound) ||
		errors.Is(err, ErrSaleNotFound) ||
		errors.Is(err, ErrClientNotFound) ||
		errors.Is(err, ErrShipmentNotFound)
}
