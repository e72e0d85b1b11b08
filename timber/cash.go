/*
cash.go - Manual journal operations and the client registry

PURPOSE:
  CashDesk covers the journal surface that is not driven by sales or
  transfers: general income and expense entries, shipment expenses,
  standalone debt payments, and entry voiding. It also owns client CRUD,
  since debt payments need a client to attach to.

RECONCILIATION:
  Any entry that references a client or shipment re-derives the affected
  projection/rollup inside the same atomic unit, so derived state never
  lags the journal it is derived from.
*/
package timber

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/warp/timber-ledger/ledger"
)

// CashDesk records manual journal entries and manages clients.
type CashDesk struct {
	db     DB
	inv    Invalidator
	policy PricingPolicy
	now    func() time.Time
	newID  func() string
}

// NewCashDesk creates a cash desk over db.
func NewCashDesk(db DB, policy PricingPolicy, inv Invalidator) *CashDesk {
	if inv == nil {
		inv = NopInvalidator{}
	}
	return &CashDesk{
		db:     db,
		inv:    inv,
		policy: policy,
		now:    func() time.Time { return time.Now().UTC() },
		newID:  uuid.NewString,
	}
}

// EntryInput describes a manual journal entry.
type EntryInput struct {
	Type     ledger.EntryType
	Currency ledger.Currency
	Amount   decimal.Decimal

	ClientID   string
	ShipmentID string
	Notes      string

	TransactedAt time.Time // zero means now
	Actor        string
}

// RecordEntry appends a manual entry and reconciles whatever it touches.
// Transfer legs and sale entries are rejected here; those are issued only
// by their owning services.
func (cd *CashDesk) RecordEntry(ctx context.Context, in EntryInput) (*ledger.Entry, error) {
	switch in.Type {
	case ledger.EntryIncomeGeneral, ledger.EntryExpenseGeneral,
		ledger.EntryExpenseShipment, ledger.EntryDebtPayment:
	default:
		return nil, ledger.ErrUnknownEntryType
	}
	if in.Type == ledger.EntryDebtPayment && in.ClientID == "" {
		return nil, ErrClientNotFound
	}
	if in.Type == ledger.EntryExpenseShipment && in.ShipmentID == "" {
		return nil, ErrShipmentNotFound
	}

	var (
		entry *ledger.Entry
		pend  invalidations
	)
	err := cd.db.Atomic(ctx, func(s Store) error {
		pend = pend[:0]
		now := cd.now()

		transactedAt := in.TransactedAt
		if transactedAt.IsZero() {
			transactedAt = now
		}

		e := ledger.Entry{
			ID:           cd.newID(),
			Type:         in.Type,
			Currency:     in.Currency,
			Amount:       in.Amount,
			ClientID:     in.ClientID,
			ShipmentID:   in.ShipmentID,
			Notes:        in.Notes,
			TransactedAt: transactedAt,
			CreatedBy:    in.Actor,
			CreatedAt:    now,
		}
		if err := ledger.Validate(e); err != nil {
			return err
		}

		if in.ClientID != "" {
			if _, err := s.Client(ctx, in.ClientID); err != nil {
				return err
			}
		}
		if in.ShipmentID != "" {
			if _, err := s.Shipment(ctx, in.ShipmentID); err != nil {
				return err
			}
		}

		if err := s.AppendEntry(ctx, &e); err != nil {
			return err
		}
		entry = &e
		pend.add(KindEntry, e.ID)

		if in.ClientID != "" {
			if _, err := RecomputeClient(ctx, s, in.ClientID, now); err != nil {
				return err
			}
			pend.add(KindClient, in.ClientID)
		}
		if in.ShipmentID != "" {
			if _, err := RecomputeShipment(ctx, s, in.ShipmentID, cd.policy, now); err != nil {
				return err
			}
			pend.add(KindShipment, in.ShipmentID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	pend.emit(cd.inv)
	return entry, nil
}

// VoidEntry marks an entry deleted and re-derives any projection or rollup
// it contributed to. The row itself is preserved. Entries issued by a sale
// or transfer are rejected with ledger.ErrEntryBound: voiding a single
// client_payment or transfer leg here would leave the owning record
// claiming money the journal no longer shows.
func (cd *CashDesk) VoidEntry(ctx context.Context, id string) error {
	var pend invalidations
	err := cd.db.Atomic(ctx, func(s Store) error {
		pend = pend[:0]
		now := cd.now()

		target, err := s.Entry(ctx, id)
		if err != nil {
			return err
		}
		if target.Deleted {
			return ledger.ErrEntryNotFound
		}
		if target.SaleID != "" || target.TransferID != "" {
			return ledger.ErrEntryBound
		}

		if err := s.VoidEntry(ctx, id); err != nil {
			return err
		}
		pend.add(KindEntry, id)

		if target.ClientID != "" {
			if _, err := RecomputeClient(ctx, s, target.ClientID, now); err != nil {
				return err
			}
			pend.add(KindClient, target.ClientID)
		}
		if target.ShipmentID != "" {
			if _, err := RecomputeShipment(ctx, s, target.ShipmentID, cd.policy, now); err != nil {
				return err
			}
			pend.add(KindShipment, target.ShipmentID)
		}
		return nil
	})
	if err != nil {
		return err
	}
	pend.emit(cd.inv)
	return nil
}

// =============================================================================
// CLIENT REGISTRY
// =============================================================================

// ClientInput describes a client create or update.
type ClientInput struct {
	Name  string
	Phone string
	Notes string
	Actor string
}

// CreateClient registers a new client with an empty projection.
func (cd *CashDesk) CreateClient(ctx context.Context, in ClientInput) (*Client, error) {
	var client *Client
	err := cd.db.Atomic(ctx, func(s Store) error {
		now := cd.now()
		c := &Client{
			ID:        cd.newID(),
			Name:      in.Name,
			Phone:     in.Phone,
			Notes:     in.Notes,
			CreatedBy: in.Actor,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.SaveClient(ctx, c); err != nil {
			return err
		}
		client = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	cd.inv.Invalidate(KindClient, client.ID)
	return client, nil
}

// UpdateClient rewrites a client's contact fields. The projection is left
// untouched.
func (cd *CashDesk) UpdateClient(ctx context.Context, id string, in ClientInput) (*Client, error) {
	var client *Client
	err := cd.db.Atomic(ctx, func(s Store) error {
		c, err := s.Client(ctx, id)
		if err != nil {
			return err
		}
		c.Name = in.Name
		c.Phone = in.Phone
		c.Notes = in.Notes
		c.UpdatedAt = cd.now()
		if err := s.SaveClient(ctx, c); err != nil {
			return err
		}
		client = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	cd.inv.Invalidate(KindClient, id)
	return client, nil
}
