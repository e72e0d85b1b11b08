/*
store.go - Persistence contracts for the timber domain

PURPOSE:
  Defines the interface between domain logic and the database. The
  aggregate Store embeds the ledger store, so one transaction scope covers
  journal entries and inventory rows together.

ATOMICITY:
  DB.Atomic is the only place transaction boundaries open for the sale
  processor, lot ledger mutations, and currency transfers. The function
  receives a transaction-scoped Store; returning an error rolls everything
  back. Implementations retry transient write conflicts with bounded
  backoff (see store/sqlite).

IMPLEMENTATIONS:
  - store/sqlite: production store (WAL, busy-retry classification)
  - store/memory: in-memory store for tests and dev mode
*/
package timber

import (
	"context"

	"github.com/warp/timber-ledger/ledger"
)

// =============================================================================
// ENTITY STORES
// =============================================================================

// LotStore persists lots. Loads exclude soft-deleted rows unless stated.
type LotStore interface {
	// SaveLot inserts or overwrites a lot row.
	SaveLot(ctx context.Context, l *Lot) error

	// Lot returns a lot by id, including soft-deleted rows so callers can
	// report "deleted" distinctly. Returns ErrLotNotFound if absent.
	Lot(ctx context.Context, id string) (*Lot, error)

	// LotsByShipment returns the shipment's non-deleted lots.
	LotsByShipment(ctx context.Context, shipmentID string) ([]*Lot, error)

	// LotBySpec returns the shipment's non-deleted lot matching the spec
	// key and purchase currency, or ErrLotNotFound.
	LotBySpec(ctx context.Context, shipmentID, specKey string, currency ledger.Currency) (*Lot, error)
}

// SaleStore persists sales.
type SaleStore interface {
	SaveSale(ctx context.Context, s *Sale) error

	// Sale returns a sale by id, including soft-deleted rows.
	Sale(ctx context.Context, id string) (*Sale, error)

	// SaleByLotClient returns the non-deleted sale for the (lot, client)
	// pair, or ErrSaleNotFound. At most one such sale exists.
	SaleByLotClient(ctx context.Context, lotID, clientID string) (*Sale, error)

	// SalesByLot / SalesByShipment / SalesByClient return non-deleted
	// sales scoped to the reference.
	SalesByLot(ctx context.Context, lotID string) ([]*Sale, error)
	SalesByShipment(ctx context.Context, shipmentID string) ([]*Sale, error)
	SalesByClient(ctx context.Context, clientID string) ([]*Sale, error)
}

// ClientStore persists clients and their cached projections.
type ClientStore interface {
	SaveClient(ctx context.Context, c *Client) error
	Client(ctx context.Context, id string) (*Client, error)
	Clients(ctx context.Context) ([]*Client, error)
}

// ShipmentStore persists shipments.
type ShipmentStore interface {
	SaveShipment(ctx context.Context, sh *Shipment) error
	Shipment(ctx context.Context, id string) (*Shipment, error)
	Shipments(ctx context.Context) ([]*Shipment, error)
}

// CounterStore allocates per-(kind, year) sequence numbers, e.g. shipment
// codes. Allocation happens inside the caller's transaction so a rolled
// back intake does not burn visible gaps under concurrent access.
type CounterStore interface {
	NextSequence(ctx context.Context, kind string, year int) (int64, error)
}

// =============================================================================
// AGGREGATE STORE AND DB
// =============================================================================

// Store is the full persistence surface one transaction scope exposes.
type Store interface {
	ledger.Store
	LotStore
	SaleStore
	ClientStore
	ShipmentStore
	CounterStore
}

// DB is a Store that can also open atomic units.
type DB interface {
	Store

	// Atomic executes fn against a transaction-scoped Store. All writes
	// commit together or not at all. Transient write conflicts are
	// retried with bounded backoff; the original error surfaces once
	// retries are exhausted.
	Atomic(ctx context.Context, fn func(Store) error) error
}

// LedgerRunner adapts a DB to ledger.Runner so the transfer ledger shares
// the same transaction machinery without importing this package.
func LedgerRunner(db DB) ledger.Runner {
	return ledgerRunner{db: db}
}

type ledgerRunner struct{ db DB }

func (r ledgerRunner) Atomic(ctx context.Context, fn func(ledger.Store) error) error {
	return r.db.Atomic(ctx, func(s Store) error { return fn(s) })
}
