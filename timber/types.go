/*
Package timber is the wood-inventory domain: lots, sales, clients, and
shipments, with volume-conservation invariants enforced end to end.

PURPOSE:
  A Lot is a purchased batch of wood with fixed dimensions. Volume flows
  one way: purchased -> (warehouse loss) -> available -> (dispatch to
  sales) -> remaining. Derived volumes are computed, never stored
  independently of their inputs, so they cannot drift.

  Client debt and shipment financials are projections over sales and the
  cash journal (package ledger), recomputed wholesale inside the same
  atomic unit as the mutation that invalidated them.

KEY CONCEPTS IN THIS FILE (types.go):
  - LotSpec: the physical-dimensions descriptor; identical specs merge on
    intake instead of creating duplicate lots
  - SaleStatus / ShipmentStatus: lifecycle enumerations
  - PricingPolicy: whether transport loss is deducted before pricing
  - VolumeEpsilon: the closure tolerance absorbing decimal dust

SEE ALSO:
  - lot.go, sale.go, shipment.go, client.go: entities and derivations
  - processor.go: the sale transaction processor
  - store.go: persistence contracts
*/
package timber

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// =============================================================================
// VOLUME TOLERANCE
// =============================================================================

// VolumeEpsilon is the tolerance applied when deciding whether a volume is
// exhausted (shipment closure, lot emptiness). 0.001 m3 absorbs rounding
// dust from per-piece volume arithmetic.
var VolumeEpsilon = decimal.NewFromFloat(0.001)

// exhausted reports whether v is zero within VolumeEpsilon.
func exhausted(v decimal.Decimal) bool {
	return v.LessThanOrEqual(VolumeEpsilon)
}

// =============================================================================
// LOT SPEC - physical dimensions descriptor
// =============================================================================

// LotSpec describes the fixed physical characteristics of a lot. Two intakes
// with equal specs (and equal purchase currency) merge into one lot.
type LotSpec struct {
	Species    string // e.g. "pine", "birch"
	Dimensions string // e.g. "50x150x6000" (mm)
	Grade      string // optional quality grade
}

// Key returns the normalized merge key for the spec.
func (s LotSpec) Key() string {
	return strings.ToLower(strings.TrimSpace(s.Species)) + "|" +
		strings.ToLower(strings.TrimSpace(s.Dimensions)) + "|" +
		strings.ToLower(strings.TrimSpace(s.Grade))
}

func (s LotSpec) String() string {
	if s.Grade == "" {
		return fmt.Sprintf("%s %s", s.Species, s.Dimensions)
	}
	return fmt.Sprintf("%s %s grade %s", s.Species, s.Dimensions, s.Grade)
}

// =============================================================================
// LIFECYCLE ENUMERATIONS
// =============================================================================

// SaleStatus is derived from paid vs total; it is never set directly.
type SaleStatus string

const (
	SalePending SaleStatus = "pending" // nothing paid
	SalePartial SaleStatus = "partial" // some paid, debt outstanding
	SalePaid    SaleStatus = "paid"    // fully paid
)

// ShipmentStatus is the shipment lifecycle state.
type ShipmentStatus string

const (
	ShipmentActive ShipmentStatus = "active"
	ShipmentClosed ShipmentStatus = "closed"
)

// CloseReason explains a shipment closure.
type CloseReason string

const (
	CloseFullySold CloseReason = "fully_sold"
	CloseManual    CloseReason = "manual"
)

// =============================================================================
// PRICING POLICY
// =============================================================================

// PricingPolicy selects the volume a sale total is computed on. The source
// system was ambiguous between the two; the choice is configuration, not
// code paths.
type PricingPolicy string

const (
	// PriceDispatched prices the full dispatched volume; transport loss is
	// the seller's cost.
	PriceDispatched PricingPolicy = "dispatched"

	// PriceDelivered prices dispatched minus transport loss; loss is not
	// billed to the client.
	PriceDelivered PricingPolicy = "delivered"
)

// Valid reports whether p is a known policy.
func (p PricingPolicy) Valid() bool {
	return p == PriceDispatched || p == PriceDelivered
}

// =============================================================================
// CACHE INVALIDATION SIGNAL
// =============================================================================

// EntityKind names the entity classes carried on invalidation signals.
type EntityKind string

const (
	KindLot      EntityKind = "lot"
	KindSale     EntityKind = "sale"
	KindClient   EntityKind = "client"
	KindShipment EntityKind = "shipment"
	KindEntry    EntityKind = "cash_entry"
)

// Invalidator receives the identifier of every entity touched by a committed
// mutation so an external read-through cache can evict stale state. The core
// emits signals; it never manages cache storage.
type Invalidator interface {
	Invalidate(kind EntityKind, id string)
}

// NopInvalidator discards signals. Used when no cache is attached.
type NopInvalidator struct{}

func (NopInvalidator) Invalidate(EntityKind, string) {}

// invalidation is one pending signal, collected inside a transaction and
// emitted only after commit.
type invalidation struct {
	kind EntityKind
	id   string
}

type invalidations []invalidation

func (v *invalidations) add(kind EntityKind, id string) {
	for _, i := range *v {
		if i.kind == kind && i.id == id {
			return
		}
	}
	*v = append(*v, invalidation{kind: kind, id: id})
}

func (v invalidations) emit(inv Invalidator) {
	if inv == nil {
		return
	}
	for _, i := range v {
		inv.Invalidate(i.kind, i.id)
	}
}
