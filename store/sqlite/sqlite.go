/*
Package sqlite provides the SQLite-backed implementation of the storage
interfaces.

PURPOSE:
  Implements timber.DB (entity persistence plus the atomic runner) using
  SQLite. In production the same patterns apply to PostgreSQL - only minor
  SQL dialect differences.

SOFT-DELETE ENFORCEMENT:
  cash_entries rows are never UPDATEd except to set the deleted flag, and
  never DELETEd. Every other entity keeps its row on deletion too, so any
  historical balance or projection remains reproducible.

KEY TABLES:
  cash_entries: the append-only journal (hot path for balances/projections)
  lots:         purchased batches with loss/dispatch volumes
  sales:        one row per (lot, client) pair
  clients:      counterparties with the cached debt projection (JSON)
  shipments:    parent aggregates with the cached rollup (JSON)
  rates:        directional exchange rates, one row per direction
  transfers:    currency transfer records pairing two journal legs
  counters:     per-(kind, year) sequence allocation

WAL MODE:
  The database opens with WAL so readers don't block the single writer.
  Write conflicts surface as SQLITE_BUSY/SQLITE_LOCKED and are retried by
  the atomic runner (atomic.go).

DECIMALS:
  All volumes and amounts are stored as TEXT and parsed with
  shopspring/decimal. REAL would reintroduce the drift the volume epsilon
  exists to absorb.

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - atomic.go: transaction runner with transient-conflict retry
  - timber/store.go, ledger/journal.go: interface definitions
  - store/memory: in-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/timber-ledger/ledger"
	"github.com/warp/timber-ledger/timber"
)

// Store implements timber.DB over SQLite.
type Store struct {
	conn
	db *sql.DB

	retry RetryPolicy
}

var _ timber.DB = (*Store)(nil)

// New opens (or creates) the database at dbPath and migrates the schema.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=250")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite allows one writer; a second connection would just queue on
	// the file lock and widen the busy window.
	db.SetMaxOpenConns(1)

	s := &Store{conn: conn{q: db}, db: db, retry: DefaultRetryPolicy()}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error { return s.db.Close() }

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Cash journal (append-only)
	CREATE TABLE IF NOT EXISTS cash_entries (
		id TEXT PRIMARY KEY,
		entry_type TEXT NOT NULL,
		currency TEXT NOT NULL,
		amount TEXT NOT NULL,
		client_id TEXT,
		shipment_id TEXT,
		lot_id TEXT,
		sale_id TEXT,
		transfer_id TEXT,
		notes TEXT,
		transacted_at TEXT NOT NULL,
		created_by TEXT,
		created_at TEXT NOT NULL,
		deleted INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_entries_currency
		ON cash_entries(currency, deleted);
	CREATE INDEX IF NOT EXISTS idx_entries_client
		ON cash_entries(client_id) WHERE client_id IS NOT NULL;
	CREATE INDEX IF NOT EXISTS idx_entries_shipment
		ON cash_entries(shipment_id) WHERE shipment_id IS NOT NULL;
	CREATE INDEX IF NOT EXISTS idx_entries_sale
		ON cash_entries(sale_id) WHERE sale_id IS NOT NULL;
	CREATE INDEX IF NOT EXISTS idx_entries_transacted
		ON cash_entries(transacted_at);

	-- Lots
	CREATE TABLE IF NOT EXISTS lots (
		id TEXT PRIMARY KEY,
		shipment_id TEXT NOT NULL,
		species TEXT NOT NULL,
		dimensions TEXT NOT NULL,
		grade TEXT NOT NULL DEFAULT '',
		spec_key TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		purchased TEXT NOT NULL,
		purchase_currency TEXT NOT NULL,
		purchase_amount TEXT NOT NULL,
		loss TEXT NOT NULL,
		loss_responsible TEXT,
		dispatched TEXT NOT NULL,
		deleted INTEGER NOT NULL DEFAULT 0,
		created_by TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_lots_shipment
		ON lots(shipment_id, deleted);
	-- Merge-on-intake lookup (hot path)
	CREATE INDEX IF NOT EXISTS idx_lots_spec
		ON lots(shipment_id, spec_key, purchase_currency) WHERE deleted = 0;

	-- Sales
	CREATE TABLE IF NOT EXISTS sales (
		id TEXT PRIMARY KEY,
		lot_id TEXT NOT NULL,
		shipment_id TEXT NOT NULL,
		client_id TEXT,
		client_name TEXT,
		client_phone TEXT,
		dispatched TEXT NOT NULL,
		transport_loss TEXT NOT NULL,
		transport_responsible TEXT,
		currency TEXT NOT NULL,
		unit_price TEXT NOT NULL,
		total_price TEXT NOT NULL,
		paid TEXT NOT NULL,
		deleted INTEGER NOT NULL DEFAULT 0,
		created_by TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_sales_lot ON sales(lot_id, deleted);
	CREATE INDEX IF NOT EXISTS idx_sales_shipment ON sales(shipment_id, deleted);
	CREATE INDEX IF NOT EXISTS idx_sales_client ON sales(client_id, deleted);
	-- At most one live sale per (lot, client) pair; one-time clients
	-- (empty client_id) are exempt
	CREATE UNIQUE INDEX IF NOT EXISTS idx_sales_lot_client
		ON sales(lot_id, client_id)
		WHERE deleted = 0 AND client_id IS NOT NULL AND client_id != '';

	-- Clients
	CREATE TABLE IF NOT EXISTS clients (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		phone TEXT,
		notes TEXT,
		projection_json TEXT NOT NULL DEFAULT '{}',
		deleted INTEGER NOT NULL DEFAULT 0,
		created_by TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Shipments
	CREATE TABLE IF NOT EXISTS shipments (
		id TEXT PRIMARY KEY,
		code TEXT NOT NULL UNIQUE,
		year INTEGER NOT NULL,
		origin TEXT,
		destination TEXT,
		status TEXT NOT NULL,
		close_reason TEXT NOT NULL DEFAULT '',
		closed_at TEXT,
		rollup_json TEXT NOT NULL DEFAULT '{}',
		deleted INTEGER NOT NULL DEFAULT 0,
		created_by TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Exchange rates, one row per direction
	CREATE TABLE IF NOT EXISTS rates (
		from_currency TEXT NOT NULL,
		to_currency TEXT NOT NULL,
		rate TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (from_currency, to_currency)
	);

	-- Currency transfers
	CREATE TABLE IF NOT EXISTS transfers (
		id TEXT PRIMARY KEY,
		from_currency TEXT NOT NULL,
		to_currency TEXT NOT NULL,
		from_amount TEXT NOT NULL,
		to_amount TEXT NOT NULL,
		rate TEXT NOT NULL,
		out_entry_id TEXT NOT NULL,
		in_entry_id TEXT NOT NULL,
		status TEXT NOT NULL,
		notes TEXT,
		created_by TEXT,
		created_at TEXT NOT NULL
	);

	-- Sequence counters, one row per (kind, year)
	CREATE TABLE IF NOT EXISTS counters (
		kind TEXT NOT NULL,
		year INTEGER NOT NULL,
		seq INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (kind, year)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// CONN - timber.Store over either *sql.DB or *sql.Tx
// =============================================================================

type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type conn struct {
	q dbtx
}

var _ timber.Store = (*conn)(nil)

type scanner interface{ Scan(dest ...any) error }

func fmtTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func parseDec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func fmtNullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return fmtTime(*t)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// =============================================================================
// JOURNAL
// =============================================================================

func (c *conn) AppendEntry(ctx context.Context, e *ledger.Entry) error {
	_, err := c.q.ExecContext(ctx, `
		INSERT INTO cash_entries
			(id, entry_type, currency, amount, client_id, shipment_id,
			 lot_id, sale_id, transfer_id, notes, transacted_at,
			 created_by, created_at, deleted)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0)`,
		e.ID, string(e.Type), string(e.Currency), e.Amount.String(),
		e.ClientID, e.ShipmentID, e.LotID, e.SaleID, e.TransferID,
		e.Notes, fmtTime(e.TransactedAt), e.CreatedBy, fmtTime(e.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to append entry: %w", err)
	}
	return nil
}

func (c *conn) Entries(ctx context.Context, f ledger.Filter) ([]*ledger.Entry, error) {
	query := `
		SELECT id, entry_type, currency, amount,
		       COALESCE(client_id, ''), COALESCE(shipment_id, ''),
		       COALESCE(lot_id, ''), COALESCE(sale_id, ''),
		       COALESCE(transfer_id, ''), COALESCE(notes, ''),
		       transacted_at, COALESCE(created_by, ''), created_at, deleted
		FROM cash_entries WHERE 1=1`
	var args []any

	if !f.IncludeDeleted {
		query += ` AND deleted = 0`
	}
	if f.Currency != "" {
		query += ` AND currency = ?`
		args = append(args, string(f.Currency))
	}
	if f.ClientID != "" {
		query += ` AND client_id = ?`
		args = append(args, f.ClientID)
	}
	if f.ShipmentID != "" {
		query += ` AND shipment_id = ?`
		args = append(args, f.ShipmentID)
	}
	if f.SaleID != "" {
		query += ` AND sale_id = ?`
		args = append(args, f.SaleID)
	}
	if f.TransferID != "" {
		query += ` AND transfer_id = ?`
		args = append(args, f.TransferID)
	}
	if len(f.Types) > 0 {
		query += ` AND entry_type IN (?` + strings.Repeat(",?", len(f.Types)-1) + `)`
		for _, t := range f.Types {
			args = append(args, string(t))
		}
	}
	if f.From != nil {
		query += ` AND transacted_at >= ?`
		args = append(args, fmtTime(*f.From))
	}
	if f.To != nil {
		query += ` AND transacted_at <= ?`
		args = append(args, fmtTime(*f.To))
	}
	query += ` ORDER BY transacted_at DESC, created_at DESC`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := c.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer rows.Close()

	var out []*ledger.Entry
	for rows.Next() {
		var (
			e                          ledger.Entry
			typ, cur, amount, tAt, cAt string
			deleted                    int
		)
		if err := rows.Scan(&e.ID, &typ, &cur, &amount,
			&e.ClientID, &e.ShipmentID, &e.LotID, &e.SaleID, &e.TransferID,
			&e.Notes, &tAt, &e.CreatedBy, &cAt, &deleted); err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		e.Type = ledger.EntryType(typ)
		e.Currency = ledger.Currency(cur)
		e.Amount = parseDec(amount)
		e.TransactedAt = parseTime(tAt)
		e.CreatedAt = parseTime(cAt)
		e.Deleted = deleted != 0
		out = append(out, &e)
	}
	return out, rows.Err()
}

func (c *conn) Entry(ctx context.Context, id string) (*ledger.Entry, error) {
	var (
		e                          ledger.Entry
		typ, cur, amount, tAt, cAt string
		deleted                    int
	)
	err := c.q.QueryRowContext(ctx, `
		SELECT id, entry_type, currency, amount,
		       COALESCE(client_id, ''), COALESCE(shipment_id, ''),
		       COALESCE(lot_id, ''), COALESCE(sale_id, ''),
		       COALESCE(transfer_id, ''), COALESCE(notes, ''),
		       transacted_at, COALESCE(created_by, ''), created_at, deleted
		FROM cash_entries WHERE id = ?`, id).
		Scan(&e.ID, &typ, &cur, &amount,
			&e.ClientID, &e.ShipmentID, &e.LotID, &e.SaleID, &e.TransferID,
			&e.Notes, &tAt, &e.CreatedBy, &cAt, &deleted)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ledger.ErrEntryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan entry: %w", err)
	}
	e.Type = ledger.EntryType(typ)
	e.Currency = ledger.Currency(cur)
	e.Amount = parseDec(amount)
	e.TransactedAt = parseTime(tAt)
	e.CreatedAt = parseTime(cAt)
	e.Deleted = deleted != 0
	return &e, nil
}

func (c *conn) VoidEntry(ctx context.Context, id string) error {
	res, err := c.q.ExecContext(ctx,
		`UPDATE cash_entries SET deleted = 1 WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ledger.ErrEntryNotFound
	}
	return nil
}

func (c *conn) VoidEntriesBySale(ctx context.Context, saleID string) error {
	_, err := c.q.ExecContext(ctx,
		`UPDATE cash_entries SET deleted = 1 WHERE sale_id = ?`, saleID)
	return err
}

// =============================================================================
// RATES AND TRANSFERS
// =============================================================================

func (c *conn) Rate(ctx context.Context, from, to ledger.Currency) (decimal.Decimal, error) {
	var rate string
	err := c.q.QueryRowContext(ctx,
		`SELECT rate FROM rates WHERE from_currency = ? AND to_currency = ?`,
		string(from), string(to)).Scan(&rate)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, &ledger.RateNotFoundError{From: from, To: to}
	}
	if err != nil {
		return decimal.Zero, err
	}
	return parseDec(rate), nil
}

func (c *conn) SaveRate(ctx context.Context, r ledger.Rate) error {
	if r.UpdatedAt.IsZero() {
		r.UpdatedAt = time.Now().UTC()
	}
	_, err := c.q.ExecContext(ctx, `
		INSERT INTO rates (from_currency, to_currency, rate, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(from_currency, to_currency) DO UPDATE SET
			rate = excluded.rate,
			updated_at = excluded.updated_at`,
		string(r.From), string(r.To), r.Value.String(), fmtTime(r.UpdatedAt))
	return err
}

func (c *conn) SaveTransfer(ctx context.Context, t *ledger.Transfer) error {
	_, err := c.q.ExecContext(ctx, `
		INSERT INTO transfers
			(id, from_currency, to_currency, from_amount, to_amount, rate,
			 out_entry_id, in_entry_id, status, notes, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status`,
		t.ID, string(t.FromCurrency), string(t.ToCurrency),
		t.FromAmount.String(), t.ToAmount.String(), t.Rate.String(),
		t.OutEntryID, t.InEntryID, string(t.Status), t.Notes,
		t.CreatedBy, fmtTime(t.CreatedAt))
	return err
}

func (c *conn) Transfer(ctx context.Context, id string) (*ledger.Transfer, error) {
	var (
		t                                  ledger.Transfer
		from, to, fa, ta, rate, status, at string
	)
	err := c.q.QueryRowContext(ctx, `
		SELECT id, from_currency, to_currency, from_amount, to_amount, rate,
		       out_entry_id, in_entry_id, status, COALESCE(notes, ''),
		       COALESCE(created_by, ''), created_at
		FROM transfers WHERE id = ?`, id).
		Scan(&t.ID, &from, &to, &fa, &ta, &rate,
			&t.OutEntryID, &t.InEntryID, &status, &t.Notes,
			&t.CreatedBy, &at)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ledger.ErrTransferNotFound
	}
	if err != nil {
		return nil, err
	}
	t.FromCurrency = ledger.Currency(from)
	t.ToCurrency = ledger.Currency(to)
	t.FromAmount = parseDec(fa)
	t.ToAmount = parseDec(ta)
	t.Rate = parseDec(rate)
	t.Status = ledger.TransferStatus(status)
	t.CreatedAt = parseTime(at)
	return &t, nil
}

func (c *conn) Transfers(ctx context.Context) ([]*ledger.Transfer, error) {
	rows, err := c.q.QueryContext(ctx, `
		SELECT id, from_currency, to_currency, from_amount, to_amount, rate,
		       out_entry_id, in_entry_id, status, COALESCE(notes, ''),
		       COALESCE(created_by, ''), created_at
		FROM transfers ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*ledger.Transfer
	for rows.Next() {
		var (
			t                                  ledger.Transfer
			from, to, fa, ta, rate, status, at string
		)
		if err := rows.Scan(&t.ID, &from, &to, &fa, &ta, &rate,
			&t.OutEntryID, &t.InEntryID, &status, &t.Notes,
			&t.CreatedBy, &at); err != nil {
			return nil, err
		}
		t.FromCurrency = ledger.Currency(from)
		t.ToCurrency = ledger.Currency(to)
		t.FromAmount = parseDec(fa)
		t.ToAmount = parseDec(ta)
		t.Rate = parseDec(rate)
		t.Status = ledger.TransferStatus(status)
		t.CreatedAt = parseTime(at)
		out = append(out, &t)
	}
	return out, rows.Err()
}

// =============================================================================
// LOTS
// =============================================================================

const lotColumns = `id, shipment_id, species, dimensions, grade, quantity,
	purchased, purchase_currency, purchase_amount, loss,
	COALESCE(loss_responsible, ''), dispatched, deleted,
	COALESCE(created_by, ''), created_at, updated_at`

func (c *conn) SaveLot(ctx context.Context, l *timber.Lot) error {
	_, err := c.q.ExecContext(ctx, `
		INSERT INTO lots
			(id, shipment_id, species, dimensions, grade, spec_key, quantity,
			 purchased, purchase_currency, purchase_amount, loss,
			 loss_responsible, dispatched, deleted, created_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			quantity = excluded.quantity,
			purchased = excluded.purchased,
			purchase_amount = excluded.purchase_amount,
			loss = excluded.loss,
			loss_responsible = excluded.loss_responsible,
			dispatched = excluded.dispatched,
			deleted = excluded.deleted,
			updated_at = excluded.updated_at`,
		l.ID, l.ShipmentID, l.Spec.Species, l.Spec.Dimensions, l.Spec.Grade,
		l.Spec.Key(), l.Quantity, l.Purchased.String(),
		string(l.PurchaseCurrency), l.PurchaseAmount.String(),
		l.Loss.String(), l.LossResponsible, l.Dispatched.String(),
		boolInt(l.Deleted), l.CreatedBy, fmtTime(l.CreatedAt), fmtTime(l.UpdatedAt))
	return err
}

func scanLot(row scanner) (*timber.Lot, error) {
	var (
		l                                  timber.Lot
		purchased, cur, amount, loss, disp string
		createdAt, updatedAt               string
		deleted                            int
	)
	err := row.Scan(&l.ID, &l.ShipmentID, &l.Spec.Species, &l.Spec.Dimensions,
		&l.Spec.Grade, &l.Quantity, &purchased, &cur, &amount, &loss,
		&l.LossResponsible, &disp, &deleted, &l.CreatedBy, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	l.Purchased = parseDec(purchased)
	l.PurchaseCurrency = ledger.Currency(cur)
	l.PurchaseAmount = parseDec(amount)
	l.Loss = parseDec(loss)
	l.Dispatched = parseDec(disp)
	l.Deleted = deleted != 0
	l.CreatedAt = parseTime(createdAt)
	l.UpdatedAt = parseTime(updatedAt)
	return &l, nil
}

func (c *conn) Lot(ctx context.Context, id string) (*timber.Lot, error) {
	row := c.q.QueryRowContext(ctx,
		`SELECT `+lotColumns+` FROM lots WHERE id = ?`, id)
	l, err := scanLot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, timber.ErrLotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan lot: %w", err)
	}
	return l, nil
}

func (c *conn) LotsByShipment(ctx context.Context, shipmentID string) ([]*timber.Lot, error) {
	rows, err := c.q.QueryContext(ctx,
		`SELECT `+lotColumns+` FROM lots
		 WHERE shipment_id = ? AND deleted = 0 ORDER BY created_at`, shipmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*timber.Lot
	for rows.Next() {
		l, err := scanLot(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan lot: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (c *conn) LotBySpec(ctx context.Context, shipmentID, specKey string, currency ledger.Currency) (*timber.Lot, error) {
	row := c.q.QueryRowContext(ctx,
		`SELECT `+lotColumns+` FROM lots
		 WHERE shipment_id = ? AND spec_key = ? AND purchase_currency = ? AND deleted = 0`,
		shipmentID, specKey, string(currency))
	l, err := scanLot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, timber.ErrLotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan lot: %w", err)
	}
	return l, nil
}

// =============================================================================
// SALES
// =============================================================================

const saleColumns = `id, lot_id, shipment_id, COALESCE(client_id, ''),
	COALESCE(client_name, ''), COALESCE(client_phone, ''), dispatched,
	transport_loss, COALESCE(transport_responsible, ''), currency,
	unit_price, total_price, paid, deleted, COALESCE(created_by, ''),
	created_at, updated_at`

func (c *conn) SaveSale(ctx context.Context, s *timber.Sale) error {
	_, err := c.q.ExecContext(ctx, `
		INSERT INTO sales
			(id, lot_id, shipment_id, client_id, client_name, client_phone,
			 dispatched, transport_loss, transport_responsible, currency,
			 unit_price, total_price, paid, deleted, created_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			dispatched = excluded.dispatched,
			transport_loss = excluded.transport_loss,
			transport_responsible = excluded.transport_responsible,
			currency = excluded.currency,
			unit_price = excluded.unit_price,
			total_price = excluded.total_price,
			paid = excluded.paid,
			deleted = excluded.deleted,
			updated_at = excluded.updated_at`,
		s.ID, s.LotID, s.ShipmentID, s.ClientID, s.ClientName, s.ClientPhone,
		s.Dispatched.String(), s.TransportLoss.String(), s.TransportResponsible,
		string(s.Currency), s.UnitPrice.String(), s.TotalPrice.String(),
		s.Paid.String(), boolInt(s.Deleted), s.CreatedBy,
		fmtTime(s.CreatedAt), fmtTime(s.UpdatedAt))
	return err
}

func scanSale(row scanner) (*timber.Sale, error) {
	var (
		s                                   timber.Sale
		disp, loss, cur, price, total, paid string
		createdAt, updatedAt                string
		deleted                             int
	)
	err := row.Scan(&s.ID, &s.LotID, &s.ShipmentID, &s.ClientID,
		&s.ClientName, &s.ClientPhone, &disp, &loss, &s.TransportResponsible,
		&cur, &price, &total, &paid, &deleted, &s.CreatedBy, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	s.Dispatched = parseDec(disp)
	s.TransportLoss = parseDec(loss)
	s.Currency = ledger.Currency(cur)
	s.UnitPrice = parseDec(price)
	s.TotalPrice = parseDec(total)
	s.Paid = parseDec(paid)
	s.Deleted = deleted != 0
	s.CreatedAt = parseTime(createdAt)
	s.UpdatedAt = parseTime(updatedAt)
	return &s, nil
}

func (c *conn) Sale(ctx context.Context, id string) (*timber.Sale, error) {
	row := c.q.QueryRowContext(ctx,
		`SELECT `+saleColumns+` FROM sales WHERE id = ?`, id)
	s, err := scanSale(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, timber.ErrSaleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan sale: %w", err)
	}
	return s, nil
}

func (c *conn) SaleByLotClient(ctx context.Context, lotID, clientID string) (*timber.Sale, error) {
	row := c.q.QueryRowContext(ctx,
		`SELECT `+saleColumns+` FROM sales
		 WHERE lot_id = ? AND client_id = ? AND deleted = 0`, lotID, clientID)
	s, err := scanSale(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, timber.ErrSaleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan sale: %w", err)
	}
	return s, nil
}

func (c *conn) salesBy(ctx context.Context, column, value string) ([]*timber.Sale, error) {
	rows, err := c.q.QueryContext(ctx,
		`SELECT `+saleColumns+` FROM sales
		 WHERE `+column+` = ? AND deleted = 0 ORDER BY created_at`, value)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*timber.Sale
	for rows.Next() {
		s, err := scanSale(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sale: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (c *conn) SalesByLot(ctx context.Context, lotID string) ([]*timber.Sale, error) {
	return c.salesBy(ctx, "lot_id", lotID)
}

func (c *conn) SalesByShipment(ctx context.Context, shipmentID string) ([]*timber.Sale, error) {
	return c.salesBy(ctx, "shipment_id", shipmentID)
}

func (c *conn) SalesByClient(ctx context.Context, clientID string) ([]*timber.Sale, error) {
	return c.salesBy(ctx, "client_id", clientID)
}

// =============================================================================
// CLIENTS
// =============================================================================

const clientColumns = `id, name, COALESCE(phone, ''), COALESCE(notes, ''),
	projection_json, deleted, COALESCE(created_by, ''), created_at, updated_at`

func (c *conn) SaveClient(ctx context.Context, cl *timber.Client) error {
	projection, err := json.Marshal(cl.Projection)
	if err != nil {
		return err
	}
	_, err = c.q.ExecContext(ctx, `
		INSERT INTO clients
			(id, name, phone, notes, projection_json, deleted, created_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			phone = excluded.phone,
			notes = excluded.notes,
			projection_json = excluded.projection_json,
			deleted = excluded.deleted,
			updated_at = excluded.updated_at`,
		cl.ID, cl.Name, cl.Phone, cl.Notes, string(projection),
		boolInt(cl.Deleted), cl.CreatedBy, fmtTime(cl.CreatedAt), fmtTime(cl.UpdatedAt))
	return err
}

func scanClient(row scanner) (*timber.Client, error) {
	var (
		cl                   timber.Client
		projection           string
		createdAt, updatedAt string
		deleted              int
	)
	err := row.Scan(&cl.ID, &cl.Name, &cl.Phone, &cl.Notes, &projection,
		&deleted, &cl.CreatedBy, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	if projection != "" && projection != "{}" {
		if err := json.Unmarshal([]byte(projection), &cl.Projection); err != nil {
			return nil, fmt.Errorf("failed to decode projection: %w", err)
		}
	}
	cl.Deleted = deleted != 0
	cl.CreatedAt = parseTime(createdAt)
	cl.UpdatedAt = parseTime(updatedAt)
	return &cl, nil
}

func (c *conn) Client(ctx context.Context, id string) (*timber.Client, error) {
	row := c.q.QueryRowContext(ctx,
		`SELECT `+clientColumns+` FROM clients WHERE id = ? AND deleted = 0`, id)
	cl, err := scanClient(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, timber.ErrClientNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan client: %w", err)
	}
	return cl, nil
}

func (c *conn) Clients(ctx context.Context) ([]*timber.Client, error) {
	rows, err := c.q.QueryContext(ctx,
		`SELECT `+clientColumns+` FROM clients WHERE deleted = 0 ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*timber.Client
	for rows.Next() {
		cl, err := scanClient(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan client: %w", err)
		}
		out = append(out, cl)
	}
	return out, rows.Err()
}

// =============================================================================
// SHIPMENTS
// =============================================================================

const shipmentColumns = `id, code, year, COALESCE(origin, ''),
	COALESCE(destination, ''), status, close_reason, closed_at, rollup_json,
	deleted, COALESCE(created_by, ''), created_at, updated_at`

func (c *conn) SaveShipment(ctx context.Context, sh *timber.Shipment) error {
	rollup, err := json.Marshal(sh.Rollup)
	if err != nil {
		return err
	}
	_, err = c.q.ExecContext(ctx, `
		INSERT INTO shipments
			(id, code, year, origin, destination, status, close_reason,
			 closed_at, rollup_json, deleted, created_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			origin = excluded.origin,
			destination = excluded.destination,
			status = excluded.status,
			close_reason = excluded.close_reason,
			closed_at = excluded.closed_at,
			rollup_json = excluded.rollup_json,
			deleted = excluded.deleted,
			updated_at = excluded.updated_at`,
		sh.ID, sh.Code, sh.Year, sh.Origin, sh.Destination, string(sh.Status),
		string(sh.CloseReason), fmtNullTime(sh.ClosedAt), string(rollup),
		boolInt(sh.Deleted), sh.CreatedBy, fmtTime(sh.CreatedAt), fmtTime(sh.UpdatedAt))
	return err
}

func scanShipment(row scanner) (*timber.Shipment, error) {
	var (
		sh                   timber.Shipment
		status, reason       string
		closedAt             sql.NullString
		rollup               string
		createdAt, updatedAt string
		deleted              int
	)
	err := row.Scan(&sh.ID, &sh.Code, &sh.Year, &sh.Origin, &sh.Destination,
		&status, &reason, &closedAt, &rollup, &deleted, &sh.CreatedBy,
		&createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	sh.Status = timber.ShipmentStatus(status)
	sh.CloseReason = timber.CloseReason(reason)
	if closedAt.Valid && closedAt.String != "" {
		t := parseTime(closedAt.String)
		sh.ClosedAt = &t
	}
	if rollup != "" && rollup != "{}" {
		if err := json.Unmarshal([]byte(rollup), &sh.Rollup); err != nil {
			return nil, fmt.Errorf("failed to decode rollup: %w", err)
		}
	}
	sh.Deleted = deleted != 0
	sh.CreatedAt = parseTime(createdAt)
	sh.UpdatedAt = parseTime(updatedAt)
	return &sh, nil
}

func (c *conn) Shipment(ctx context.Context, id string) (*timber.Shipment, error) {
	row := c.q.QueryRowContext(ctx,
		`SELECT `+shipmentColumns+` FROM shipments WHERE id = ? AND deleted = 0`, id)
	sh, err := scanShipment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, timber.ErrShipmentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan shipment: %w", err)
	}
	return sh, nil
}

func (c *conn) Shipments(ctx context.Context) ([]*timber.Shipment, error) {
	rows, err := c.q.QueryContext(ctx,
		`SELECT `+shipmentColumns+` FROM shipments WHERE deleted = 0 ORDER BY code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*timber.Shipment
	for rows.Next() {
		sh, err := scanShipment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan shipment: %w", err)
		}
		out = append(out, sh)
	}
	return out, rows.Err()
}

// =============================================================================
// COUNTERS
// =============================================================================

func (c *conn) NextSequence(ctx context.Context, kind string, year int) (int64, error) {
	var seq int64
	err := c.q.QueryRowContext(ctx, `
		INSERT INTO counters (kind, year, seq) VALUES (?, ?, 1)
		ON CONFLICT(kind, year) DO UPDATE SET seq = counters.seq + 1
		RETURNING seq`, kind, year).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("failed to allocate sequence: %w", err)
	}
	return seq, nil
}
