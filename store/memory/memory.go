/*
Package memory provides an in-memory implementation of the storage
interfaces, for tests and dev mode.

ATOMICITY:
  Atomic clones the entire state, runs the function against the clone, and
  swaps the clone in only on success. All-or-nothing semantics without a
  real database; single-writer, so the transient-conflict retry path never
  triggers here.

  Every read returns a copy so callers can never alias live store state.
*/
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/timber-ledger/ledger"
	"github.com/warp/timber-ledger/timber"
)

// =============================================================================
// STORE
// =============================================================================

// Store implements timber.DB in memory.
type Store struct {
	mu sync.Mutex
	st *state
}

type ratePair struct {
	from ledger.Currency
	to   ledger.Currency
}

type counterKey struct {
	kind string
	year int
}

type state struct {
	entries   []*ledger.Entry
	rates     map[ratePair]ledger.Rate
	transfers []*ledger.Transfer
	lots      map[string]*timber.Lot
	sales     map[string]*timber.Sale
	clients   map[string]*timber.Client
	shipments map[string]*timber.Shipment
	counters  map[counterKey]int64
}

func newState() *state {
	return &state{
		rates:     make(map[ratePair]ledger.Rate),
		lots:      make(map[string]*timber.Lot),
		sales:     make(map[string]*timber.Sale),
		clients:   make(map[string]*timber.Client),
		shipments: make(map[string]*timber.Shipment),
		counters:  make(map[counterKey]int64),
	}
}

func (s *state) clone() *state {
	c := newState()
	c.entries = make([]*ledger.Entry, len(s.entries))
	for i, e := range s.entries {
		cp := *e
		c.entries[i] = &cp
	}
	for k, v := range s.rates {
		c.rates[k] = v
	}
	c.transfers = make([]*ledger.Transfer, len(s.transfers))
	for i, t := range s.transfers {
		cp := *t
		c.transfers[i] = &cp
	}
	for k, v := range s.lots {
		cp := *v
		c.lots[k] = &cp
	}
	for k, v := range s.sales {
		cp := *v
		c.sales[k] = &cp
	}
	for k, v := range s.clients {
		cp := *v
		c.clients[k] = &cp
	}
	for k, v := range s.shipments {
		cp := *v
		if v.ClosedAt != nil {
			at := *v.ClosedAt
			cp.ClosedAt = &at
		}
		c.shipments[k] = &cp
	}
	for k, v := range s.counters {
		c.counters[k] = v
	}
	return c
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{st: newState()}
}

var _ timber.DB = (*Store)(nil)

// Atomic runs fn against a clone of the state and swaps it in on success.
func (s *Store) Atomic(_ context.Context, fn func(timber.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := s.st.clone()
	if err := fn(&view{st: clone}); err != nil {
		return err
	}
	s.st = clone
	return nil
}

// Every non-atomic operation delegates to a view over the live state under
// the lock, so single calls are atomic too.
func (s *Store) with(fn func(*view) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(&view{st: s.st})
}

// =============================================================================
// VIEW - timber.Store over one state
// =============================================================================

type view struct {
	st *state
}

var _ timber.Store = (*view)(nil)

// --- ledger.Store ---

func (v *view) AppendEntry(_ context.Context, e *ledger.Entry) error {
	cp := *e
	v.st.entries = append(v.st.entries, &cp)
	return nil
}

func (v *view) Entries(_ context.Context, f ledger.Filter) ([]*ledger.Entry, error) {
	var out []*ledger.Entry
	for _, e := range v.st.entries {
		if f.Matches(*e) {
			cp := *e
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].TransactedAt.After(out[j].TransactedAt)
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (v *view) Entry(_ context.Context, id string) (*ledger.Entry, error) {
	for _, e := range v.st.entries {
		if e.ID == id {
			cp := *e
			return &cp, nil
		}
	}
	return nil, ledger.ErrEntryNotFound
}

func (v *view) VoidEntry(_ context.Context, id string) error {
	for _, e := range v.st.entries {
		if e.ID == id {
			e.Deleted = true
			return nil
		}
	}
	return ledger.ErrEntryNotFound
}

func (v *view) VoidEntriesBySale(_ context.Context, saleID string) error {
	for _, e := range v.st.entries {
		if e.SaleID == saleID {
			e.Deleted = true
		}
	}
	return nil
}

func (v *view) Rate(_ context.Context, from, to ledger.Currency) (decimal.Decimal, error) {
	r, ok := v.st.rates[ratePair{from: from, to: to}]
	if !ok {
		return decimal.Zero, &ledger.RateNotFoundError{From: from, To: to}
	}
	return r.Value, nil
}

func (v *view) SaveRate(_ context.Context, r ledger.Rate) error {
	if r.UpdatedAt.IsZero() {
		r.UpdatedAt = time.Now().UTC()
	}
	v.st.rates[ratePair{from: r.From, to: r.To}] = r
	return nil
}

func (v *view) SaveTransfer(_ context.Context, t *ledger.Transfer) error {
	cp := *t
	for i, existing := range v.st.transfers {
		if existing.ID == t.ID {
			v.st.transfers[i] = &cp
			return nil
		}
	}
	v.st.transfers = append(v.st.transfers, &cp)
	return nil
}

func (v *view) Transfer(_ context.Context, id string) (*ledger.Transfer, error) {
	for _, t := range v.st.transfers {
		if t.ID == id {
			cp := *t
			return &cp, nil
		}
	}
	return nil, ledger.ErrTransferNotFound
}

func (v *view) Transfers(_ context.Context) ([]*ledger.Transfer, error) {
	out := make([]*ledger.Transfer, 0, len(v.st.transfers))
	for i := len(v.st.transfers) - 1; i >= 0; i-- {
		cp := *v.st.transfers[i]
		out = append(out, &cp)
	}
	return out, nil
}

// --- timber.LotStore ---

func (v *view) SaveLot(_ context.Context, l *timber.Lot) error {
	cp := *l
	v.st.lots[l.ID] = &cp
	return nil
}

func (v *view) Lot(_ context.Context, id string) (*timber.Lot, error) {
	l, ok := v.st.lots[id]
	if !ok {
		return nil, timber.ErrLotNotFound
	}
	cp := *l
	return &cp, nil
}

func (v *view) LotsByShipment(_ context.Context, shipmentID string) ([]*timber.Lot, error) {
	var out []*timber.Lot
	for _, l := range v.st.lots {
		if l.ShipmentID == shipmentID && !l.Deleted {
			cp := *l
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (v *view) LotBySpec(_ context.Context, shipmentID, specKey string, currency ledger.Currency) (*timber.Lot, error) {
	for _, l := range v.st.lots {
		if l.ShipmentID == shipmentID && !l.Deleted &&
			l.Spec.Key() == specKey && l.PurchaseCurrency == currency {
			cp := *l
			return &cp, nil
		}
	}
	return nil, timber.ErrLotNotFound
}

// --- timber.SaleStore ---

func (v *view) SaveSale(_ context.Context, sale *timber.Sale) error {
	cp := *sale
	v.st.sales[sale.ID] = &cp
	return nil
}

func (v *view) Sale(_ context.Context, id string) (*timber.Sale, error) {
	sale, ok := v.st.sales[id]
	if !ok {
		return nil, timber.ErrSaleNotFound
	}
	cp := *sale
	return &cp, nil
}

func (v *view) SaleByLotClient(_ context.Context, lotID, clientID string) (*timber.Sale, error) {
	for _, sale := range v.st.sales {
		if sale.LotID == lotID && sale.ClientID == clientID && !sale.Deleted {
			cp := *sale
			return &cp, nil
		}
	}
	return nil, timber.ErrSaleNotFound
}

func (v *view) salesWhere(keep func(*timber.Sale) bool) []*timber.Sale {
	var out []*timber.Sale
	for _, sale := range v.st.sales {
		if !sale.Deleted && keep(sale) {
			cp := *sale
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (v *view) SalesByLot(_ context.Context, lotID string) ([]*timber.Sale, error) {
	return v.salesWhere(func(s *timber.Sale) bool { return s.LotID == lotID }), nil
}

func (v *view) SalesByShipment(_ context.Context, shipmentID string) ([]*timber.Sale, error) {
	return v.salesWhere(func(s *timber.Sale) bool { return s.ShipmentID == shipmentID }), nil
}

func (v *view) SalesByClient(_ context.Context, clientID string) ([]*timber.Sale, error) {
	return v.salesWhere(func(s *timber.Sale) bool { return s.ClientID == clientID }), nil
}

// --- timber.ClientStore ---

func (v *view) SaveClient(_ context.Context, c *timber.Client) error {
	cp := *c
	v.st.clients[c.ID] = &cp
	return nil
}

func (v *view) Client(_ context.Context, id string) (*timber.Client, error) {
	c, ok := v.st.clients[id]
	if !ok || c.Deleted {
		return nil, timber.ErrClientNotFound
	}
	cp := *c
	return &cp, nil
}

func (v *view) Clients(_ context.Context) ([]*timber.Client, error) {
	var out []*timber.Client
	for _, c := range v.st.clients {
		if !c.Deleted {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// --- timber.ShipmentStore ---

func (v *view) SaveShipment(_ context.Context, sh *timber.Shipment) error {
	cp := *sh
	if sh.ClosedAt != nil {
		at := *sh.ClosedAt
		cp.ClosedAt = &at
	}
	v.st.shipments[sh.ID] = &cp
	return nil
}

func (v *view) Shipment(_ context.Context, id string) (*timber.Shipment, error) {
	sh, ok := v.st.shipments[id]
	if !ok || sh.Deleted {
		return nil, timber.ErrShipmentNotFound
	}
	cp := *sh
	if sh.ClosedAt != nil {
		at := *sh.ClosedAt
		cp.ClosedAt = &at
	}
	return &cp, nil
}

func (v *view) Shipments(_ context.Context) ([]*timber.Shipment, error) {
	var out []*timber.Shipment
	for _, sh := range v.st.shipments {
		if !sh.Deleted {
			cp := *sh
			if sh.ClosedAt != nil {
				at := *sh.ClosedAt
				cp.ClosedAt = &at
			}
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

// --- timber.CounterStore ---

func (v *view) NextSequence(_ context.Context, kind string, year int) (int64, error) {
	k := counterKey{kind: kind, year: year}
	v.st.counters[k]++
	return v.st.counters[k], nil
}

// =============================================================================
// TOP-LEVEL DELEGATION
// =============================================================================

func (s *Store) AppendEntry(ctx context.Context, e *ledger.Entry) error {
	return s.with(func(v *view) error { return v.AppendEntry(ctx, e) })
}

func (s *Store) Entries(ctx context.Context, f ledger.Filter) (out []*ledger.Entry, err error) {
	err = s.with(func(v *view) error { out, err = v.Entries(ctx, f); return err })
	return
}

func (s *Store) Entry(ctx context.Context, id string) (out *ledger.Entry, err error) {
	err = s.with(func(v *view) error { out, err = v.Entry(ctx, id); return err })
	return
}

func (s *Store) VoidEntry(ctx context.Context, id string) error {
	return s.with(func(v *view) error { return v.VoidEntry(ctx, id) })
}

func (s *Store) VoidEntriesBySale(ctx context.Context, saleID string) error {
	return s.with(func(v *view) error { return v.VoidEntriesBySale(ctx, saleID) })
}

func (s *Store) Rate(ctx context.Context, from, to ledger.Currency) (out decimal.Decimal, err error) {
	err = s.with(func(v *view) error { out, err = v.Rate(ctx, from, to); return err })
	return
}

func (s *Store) SaveRate(ctx context.Context, r ledger.Rate) error {
	return s.with(func(v *view) error { return v.SaveRate(ctx, r) })
}

func (s *Store) SaveTransfer(ctx context.Context, t *ledger.Transfer) error {
	return s.with(func(v *view) error { return v.SaveTransfer(ctx, t) })
}

func (s *Store) Transfer(ctx context.Context, id string) (out *ledger.Transfer, err error) {
	err = s.with(func(v *view) error { out, err = v.Transfer(ctx, id); return err })
	return
}

func (s *Store) Transfers(ctx context.Context) (out []*ledger.Transfer, err error) {
	err = s.with(func(v *view) error { out, err = v.Transfers(ctx); return err })
	return
}

func (s *Store) SaveLot(ctx context.Context, l *timber.Lot) error {
	return s.with(func(v *view) error { return v.SaveLot(ctx, l) })
}

func (s *Store) Lot(ctx context.Context, id string) (out *timber.Lot, err error) {
	err = s.with(func(v *view) error { out, err = v.Lot(ctx, id); return err })
	return
}

func (s *Store) LotsByShipment(ctx context.Context, shipmentID string) (out []*timber.Lot, err error) {
	err = s.with(func(v *view) error { out, err = v.LotsByShipment(ctx, shipmentID); return err })
	return
}

func (s *Store) LotBySpec(ctx context.Context, shipmentID, specKey string, currency ledger.Currency) (out *timber.Lot, err error) {
	err = s.with(func(v *view) error { out, err = v.LotBySpec(ctx, shipmentID, specKey, currency); return err })
	return
}

func (s *Store) SaveSale(ctx context.Context, sale *timber.Sale) error {
	return s.with(func(v *view) error { return v.SaveSale(ctx, sale) })
}

func (s *Store) Sale(ctx context.Context, id string) (out *timber.Sale, err error) {
	err = s.with(func(v *view) error { out, err = v.Sale(ctx, id); return err })
	return
}

func (s *Store) SaleByLotClient(ctx context.Context, lotID, clientID string) (out *timber.Sale, err error) {
	err = s.with(func(v *view) error { out, err = v.SaleByLotClient(ctx, lotID, clientID); return err })
	return
}

func (s *Store) SalesByLot(ctx context.Context, lotID string) (out []*timber.Sale, err error) {
	err = s.with(func(v *view) error { out, err = v.SalesByLot(ctx, lotID); return err })
	return
}

func (s *Store) SalesByShipment(ctx context.Context, shipmentID string) (out []*timber.Sale, err error) {
	err = s.with(func(v *view) error { out, err = v.SalesByShipment(ctx, shipmentID); return err })
	return
}

func (s *Store) SalesByClient(ctx context.Context, clientID string) (out []*timber.Sale, err error) {
	err = s.with(func(v *view) error { out, err = v.SalesByClient(ctx, clientID); return err })
	return
}

func (s *Store) SaveClient(ctx context.Context, c *timber.Client) error {
	return s.with(func(v *view) error { return v.SaveClient(ctx, c) })
}

func (s *Store) Client(ctx context.Context, id string) (out *timber.Client, err error) {
	err = s.with(func(v *view) error { out, err = v.Client(ctx, id); return err })
	return
}

func (s *Store) Clients(ctx context.Context) (out []*timber.Client, err error) {
	err = s.with(func(v *view) error { out, err = v.Clients(ctx); return err })
	return
}

func (s *Store) SaveShipment(ctx context.Context, sh *timber.Shipment) error {
	return s.with(func(v *view) error { return v.SaveShipment(ctx, sh) })
}

func (s *Store) Shipment(ctx context.Context, id string) (out *timber.Shipment, err error) {
	err = s.with(func(v *view) error { out, err = v.Shipment(ctx, id); return err })
	return
}

func (s *Store) Shipments(ctx context.Context) (out []*timber.Shipment, err error) {
	err = s.with(func(v *view) error { out, err = v.Shipments(ctx); return err })
	return
}

func (s *Store) NextSequence(ctx context.Context, kind string, year int) (out int64, err error) {
	err = s.with(func(v *view) error { out, err = v.NextSequence(ctx, kind, year); return err })
	return
}
