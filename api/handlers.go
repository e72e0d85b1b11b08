/*
handlers.go - HTTP API handlers for the timber ledger

PURPOSE:
  Exposes the inventory and cash engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Shipments:
    GET    /api/shipments                 List shipments with rollups
    POST   /api/shipments                 Open a shipment
    GET    /api/shipments/{id}            Shipment with rollup
    GET    /api/shipments/{id}/lots       Lots of a shipment
    GET    /api/shipments/{id}/sales      Sales of a shipment
    POST   /api/shipments/{id}/lots       Record an intake (merge-or-create)

  Lots:
    GET    /api/lots/{id}                 Lot with derived volumes
    POST   /api/lots/{id}/loss            Attribute warehouse loss
    POST   /api/lots/{id}/sales           Dispatch volume (sell)
    DELETE /api/lots/{id}                 Delete an untouched lot

  Sales:
    GET    /api/sales/{id}                Sale with debt and status
    POST   /api/sales/{id}/payments       Record a payment
    DELETE /api/sales/{id}                Reverse an unpaid sale

  Clients:
    GET    /api/clients                   List clients with projections
    POST   /api/clients                   Register a client
    GET    /api/clients/{id}              Client with debt projection
    PUT    /api/clients/{id}              Update contact fields
    GET    /api/clients/{id}/sales        Sales of a client

  Journal:
    GET    /api/entries                   Query the journal
    POST   /api/entries                   Manual income/expense entry
    DELETE /api/entries/{id}              Void an entry
    GET    /api/balance                   Derived balance per currency

  Transfers:
    GET    /api/transfers                 Transfer history
    POST   /api/transfers                 Convert between currencies

  Admin:
    PUT    /api/admin/rates               Store a conversion rate
    POST   /api/admin/recompute           Full reconciliation pass

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input, insufficient volume/balance
  - 404: Entity not found
  - 409: Shipment closed, sale has payments, lot has dispatches
  - 500: Internal errors

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.
  Deploy behind an authenticating proxy.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/timber-ledger/ledger"
	"github.com/warp/timber-ledger/obs"
	"github.com/warp/timber-ledger/timber"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	DB        timber.DB
	Lots      *timber.LotLedger
	Sales     *timber.SaleProcessor
	Cash      *timber.CashDesk
	Transfers *ledger.TransferLedger
	Repair    *timber.Repair
	Log       *zap.Logger
}

// NewHandler wires the domain services over db.
func NewHandler(db timber.DB, policy timber.PricingPolicy, inv timber.Invalidator, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		DB:        db,
		Lots:      timber.NewLotLedger(db, policy, inv),
		Sales:     timber.NewSaleProcessor(db, policy, inv),
		Cash:      timber.NewCashDesk(db, policy, inv),
		Transfers: ledger.NewTransferLedger(timber.LedgerRunner(db)),
		Repair:    timber.NewRepair(db, policy, inv),
		Log:       log,
	}
}

// =============================================================================
// SHIPMENT HANDLERS
// =============================================================================

// ListShipments returns all shipments with their rollups.
func (h *Handler) ListShipments(w http.ResponseWriter, r *http.Request) {
	shipments, err := h.DB.Shipments(r.Context())
	if err != nil {
		h.writeDomainError(w, "Failed to list shipments", err)
		return
	}
	dtos := make([]ShipmentDTO, len(shipments))
	for i, sh := range shipments {
		dtos[i] = toShipmentDTO(sh)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateShipment opens a new shipment with the next per-year code.
func (h *Handler) CreateShipment(w http.ResponseWriter, r *http.Request) {
	var req CreateShipmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	sh, err := h.Lots.CreateShipment(r.Context(), timber.ShipmentInput{
		Origin:      req.Origin,
		Destination: req.Destination,
		Actor:       req.Actor,
	})
	obs.Operation("create_shipment", err)
	if err != nil {
		h.writeDomainError(w, "Failed to create shipment", err)
		return
	}
	writeJSON(w, http.StatusCreated, toShipmentDTO(sh))
}

// GetShipment returns one shipment with its rollup.
func (h *Handler) GetShipment(w http.ResponseWriter, r *http.Request) {
	sh, err := h.DB.Shipment(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, "Failed to get shipment", err)
		return
	}
	writeJSON(w, http.StatusOK, toShipmentDTO(sh))
}

// CloseShipment closes a shipment by hand.
func (h *Handler) CloseShipment(w http.ResponseWriter, r *http.Request) {
	sh, err := h.Lots.CloseShipment(r.Context(), chi.URLParam(r, "id"))
	obs.Operation("close_shipment", err)
	if err != nil {
		h.writeDomainError(w, "Failed to close shipment", err)
		return
	}
	writeJSON(w, http.StatusOK, toShipmentDTO(sh))
}

// ReopenShipment clears a closure and re-derives the lifecycle state.
func (h *Handler) ReopenShipment(w http.ResponseWriter, r *http.Request) {
	sh, err := h.Lots.ReopenShipment(r.Context(), chi.URLParam(r, "id"))
	obs.Operation("reopen_shipment", err)
	if err != nil {
		h.writeDomainError(w, "Failed to reopen shipment", err)
		return
	}
	writeJSON(w, http.StatusOK, toShipmentDTO(sh))
}

// ListShipmentLots returns the lots of a shipment.
func (h *Handler) ListShipmentLots(w http.ResponseWriter, r *http.Request) {
	lots, err := h.DB.LotsByShipment(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, "Failed to list lots", err)
		return
	}
	dtos := make([]LotDTO, len(lots))
	for i, l := range lots {
		dtos[i] = toLotDTO(l)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ListShipmentSales returns the sales of a shipment.
func (h *Handler) ListShipmentSales(w http.ResponseWriter, r *http.Request) {
	sales, err := h.DB.SalesByShipment(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, "Failed to list sales", err)
		return
	}
	writeJSON(w, http.StatusOK, toSaleDTOs(sales))
}

// =============================================================================
// LOT HANDLERS
// =============================================================================

// Intake records a purchase into a shipment, merging into an existing lot
// when the spec and currency match.
func (h *Handler) Intake(w http.ResponseWriter, r *http.Request) {
	var req IntakeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	volume, err := decimal.NewFromString(req.Volume)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid volume", err)
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
		return
	}

	lot, merged, err := h.Lots.Intake(r.Context(), timber.IntakeInput{
		ShipmentID: chi.URLParam(r, "id"),
		Spec: timber.LotSpec{
			Species:    req.Species,
			Dimensions: req.Dimensions,
			Grade:      req.Grade,
		},
		Quantity: req.Quantity,
		Volume:   volume,
		Currency: ledger.Currency(req.Currency),
		Amount:   amount,
		Actor:    req.Actor,
	})
	obs.Operation("intake", err)
	if err != nil {
		h.writeDomainError(w, "Failed to record intake", err)
		return
	}
	writeJSON(w, http.StatusCreated, IntakeResponse{Lot: toLotDTO(lot), Merged: merged})
}

// GetLot returns one lot with derived volumes.
func (h *Handler) GetLot(w http.ResponseWriter, r *http.Request) {
	lot, err := h.DB.Lot(r.Context(), chi.URLParam(r, "id"))
	if err != nil || lot.Deleted {
		if err == nil {
			err = timber.ErrLotNotFound
		}
		h.writeDomainError(w, "Failed to get lot", err)
		return
	}
	writeJSON(w, http.StatusOK, toLotDTO(lot))
}

// RecordLoss attributes warehouse loss to a lot.
func (h *Handler) RecordLoss(w http.ResponseWriter, r *http.Request) {
	var req RecordLossRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	volume, err := decimal.NewFromString(req.Volume)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid volume", err)
		return
	}

	lot, err := h.Lots.RecordLoss(r.Context(), chi.URLParam(r, "id"), volume, req.Responsible, req.Reason)
	obs.Operation("record_loss", err)
	if err != nil {
		h.writeDomainError(w, "Failed to record loss", err)
		return
	}
	writeJSON(w, http.StatusOK, toLotDTO(lot))
}

// DeleteLot removes a lot that has no dispatches or loss recorded.
func (h *Handler) DeleteLot(w http.ResponseWriter, r *http.Request) {
	err := h.Lots.DeleteLot(r.Context(), chi.URLParam(r, "id"))
	obs.Operation("delete_lot", err)
	if err != nil {
		h.writeDomainError(w, "Failed to delete lot", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": true})
}

// =============================================================================
// SALE HANDLERS
// =============================================================================

// Sell dispatches lot volume to a client, merging into the open sale for
// the same (lot, client) pair.
func (h *Handler) Sell(w http.ResponseWriter, r *http.Request) {
	var req SellRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	volume, err := decimal.NewFromString(req.Volume)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid volume", err)
		return
	}
	unitPrice, err := decimal.NewFromString(req.UnitPrice)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid unit_price", err)
		return
	}
	transportLoss, err := optionalDecimal(req.TransportLoss)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid transport_loss", err)
		return
	}
	paid, err := optionalDecimal(req.Paid)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid paid", err)
		return
	}

	sale, err := h.Sales.Sell(r.Context(), timber.SellInput{
		LotID:                chi.URLParam(r, "id"),
		ClientID:             req.ClientID,
		ClientName:           req.ClientName,
		ClientPhone:          req.ClientPhone,
		Volume:               volume,
		TransportLoss:        transportLoss,
		TransportResponsible: req.TransportResponsible,
		Currency:             ledger.Currency(req.Currency),
		UnitPrice:            unitPrice,
		Paid:                 paid,
		Actor:                req.Actor,
	})
	obs.Operation("sell", err)
	if err != nil {
		h.writeDomainError(w, "Failed to dispatch sale", err)
		return
	}
	writeJSON(w, http.StatusCreated, toSaleDTO(sale))
}

// GetSale returns one sale with debt and status.
func (h *Handler) GetSale(w http.ResponseWriter, r *http.Request) {
	sale, err := h.DB.Sale(r.Context(), chi.URLParam(r, "id"))
	if err != nil || sale.Deleted {
		if err == nil {
			err = timber.ErrSaleNotFound
		}
		h.writeDomainError(w, "Failed to get sale", err)
		return
	}
	writeJSON(w, http.StatusOK, toSaleDTO(sale))
}

// ListLotSales returns the sales of a lot.
func (h *Handler) ListLotSales(w http.ResponseWriter, r *http.Request) {
	sales, err := h.DB.SalesByLot(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, "Failed to list sales", err)
		return
	}
	writeJSON(w, http.StatusOK, toSaleDTOs(sales))
}

// RecordPayment records a payment against a sale.
func (h *Handler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	var req PaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
		return
	}

	sale, err := h.Sales.RecordPayment(r.Context(), chi.URLParam(r, "id"), amount, req.Actor)
	obs.Operation("record_payment", err)
	if err != nil {
		h.writeDomainError(w, "Failed to record payment", err)
		return
	}
	writeJSON(w, http.StatusOK, toSaleDTO(sale))
}

// DeleteSale reverses an unpaid sale, returning its volume to the lot.
func (h *Handler) DeleteSale(w http.ResponseWriter, r *http.Request) {
	err := h.Sales.DeleteSale(r.Context(), chi.URLParam(r, "id"))
	obs.Operation("delete_sale", err)
	if err != nil {
		h.writeDomainError(w, "Failed to delete sale", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": true})
}

// =============================================================================
// CLIENT HANDLERS
// =============================================================================

// ListClients returns all clients with their debt projections.
func (h *Handler) ListClients(w http.ResponseWriter, r *http.Request) {
	clients, err := h.DB.Clients(r.Context())
	if err != nil {
		h.writeDomainError(w, "Failed to list clients", err)
		return
	}
	dtos := make([]ClientDTO, len(clients))
	for i, c := range clients {
		dtos[i] = toClientDTO(c)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateClient registers a new client.
func (h *Handler) CreateClient(w http.ResponseWriter, r *http.Request) {
	var req ClientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "Client name is required", nil)
		return
	}

	client, err := h.Cash.CreateClient(r.Context(), timber.ClientInput{
		Name:  req.Name,
		Phone: req.Phone,
		Notes: req.Notes,
		Actor: req.Actor,
	})
	obs.Operation("create_client", err)
	if err != nil {
		h.writeDomainError(w, "Failed to create client", err)
		return
	}
	writeJSON(w, http.StatusCreated, toClientDTO(client))
}

// GetClient returns one client with its debt projection.
func (h *Handler) GetClient(w http.ResponseWriter, r *http.Request) {
	client, err := h.DB.Client(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, "Failed to get client", err)
		return
	}
	writeJSON(w, http.StatusOK, toClientDTO(client))
}

// UpdateClient rewrites a client's contact fields.
func (h *Handler) UpdateClient(w http.ResponseWriter, r *http.Request) {
	var req ClientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	client, err := h.Cash.UpdateClient(r.Context(), chi.URLParam(r, "id"), timber.ClientInput{
		Name:  req.Name,
		Phone: req.Phone,
		Notes: req.Notes,
		Actor: req.Actor,
	})
	obs.Operation("update_client", err)
	if err != nil {
		h.writeDomainError(w, "Failed to update client", err)
		return
	}
	writeJSON(w, http.StatusOK, toClientDTO(client))
}

// ListClientSales returns the sales of a client.
func (h *Handler) ListClientSales(w http.ResponseWriter, r *http.Request) {
	sales, err := h.DB.SalesByClient(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, "Failed to list sales", err)
		return
	}
	writeJSON(w, http.StatusOK, toSaleDTOs(sales))
}

// =============================================================================
// JOURNAL HANDLERS
// =============================================================================

// ListEntries queries the journal. Supports currency, type, client_id,
// shipment_id, sale_id, and limit query parameters.
func (h *Handler) ListEntries(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := ledger.Filter{
		Currency:   ledger.Currency(q.Get("currency")),
		ClientID:   q.Get("client_id"),
		ShipmentID: q.Get("shipment_id"),
		SaleID:     q.Get("sale_id"),
	}
	if t := q.Get("type"); t != "" {
		f.Types = []ledger.EntryType{ledger.EntryType(t)}
	}
	if limit := q.Get("limit"); limit != "" {
		if n, err := strconv.Atoi(limit); err == nil && n > 0 {
			f.Limit = n
		}
	}

	entries, err := h.DB.Entries(r.Context(), f)
	if err != nil {
		h.writeDomainError(w, "Failed to query journal", err)
		return
	}
	dtos := make([]EntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = toEntryDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateEntry records a manual income or expense entry.
func (h *Handler) CreateEntry(w http.ResponseWriter, r *http.Request) {
	var req CreateEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
		return
	}
	var transactedAt time.Time
	if req.Date != "" {
		transactedAt, err = time.Parse(time.RFC3339, req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid date (use RFC3339)", err)
			return
		}
	}

	entry, err := h.Cash.RecordEntry(r.Context(), timber.EntryInput{
		Type:         ledger.EntryType(req.Type),
		Currency:     ledger.Currency(req.Currency),
		Amount:       amount,
		ClientID:     req.ClientID,
		ShipmentID:   req.ShipmentID,
		Notes:        req.Notes,
		TransactedAt: transactedAt,
		Actor:        req.Actor,
	})
	obs.Operation("create_entry", err)
	if err != nil {
		h.writeDomainError(w, "Failed to record entry", err)
		return
	}
	writeJSON(w, http.StatusCreated, toEntryDTO(entry))
}

// VoidEntry marks an entry deleted and reconciles affected projections.
func (h *Handler) VoidEntry(w http.ResponseWriter, r *http.Request) {
	err := h.Cash.VoidEntry(r.Context(), chi.URLParam(r, "id"))
	obs.Operation("void_entry", err)
	if err != nil {
		h.writeDomainError(w, "Failed to void entry", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"voided": true})
}

// GetBalance returns the derived cash balance for both currencies.
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	journal := ledger.NewJournal(h.DB)
	usd, err := journal.Balance(r.Context(), ledger.USD)
	if err != nil {
		h.writeDomainError(w, "Failed to compute balance", err)
		return
	}
	rub, err := journal.Balance(r.Context(), ledger.RUB)
	if err != nil {
		h.writeDomainError(w, "Failed to compute balance", err)
		return
	}
	writeJSON(w, http.StatusOK, BalanceDTO{USD: usd.String(), RUB: rub.String()})
}

// =============================================================================
// TRANSFER HANDLERS
// =============================================================================

// CreateTransfer converts balance between the two currencies at the stored
// rate.
func (h *Handler) CreateTransfer(w http.ResponseWriter, r *http.Request) {
	var req TransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
		return
	}

	transfer, err := h.Transfers.Transfer(r.Context(), ledger.TransferInput{
		From:   ledger.Currency(req.From),
		To:     ledger.Currency(req.To),
		Amount: amount,
		Actor:  req.Actor,
		Notes:  req.Notes,
	})
	obs.Operation("transfer", err)
	if err != nil {
		h.writeDomainError(w, "Failed to transfer", err)
		return
	}
	writeJSON(w, http.StatusCreated, toTransferDTO(transfer))
}

// ListTransfers returns the transfer history, newest first.
func (h *Handler) ListTransfers(w http.ResponseWriter, r *http.Request) {
	transfers, err := h.DB.Transfers(r.Context())
	if err != nil {
		h.writeDomainError(w, "Failed to list transfers", err)
		return
	}
	dtos := make([]TransferDTO, len(transfers))
	for i, t := range transfers {
		dtos[i] = toTransferDTO(t)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// VoidTransfer reverses a transfer: both legs are voided and the balances
// return to where they were.
func (h *Handler) VoidTransfer(w http.ResponseWriter, r *http.Request) {
	transfer, err := h.Transfers.VoidTransfer(r.Context(), chi.URLParam(r, "id"))
	obs.Operation("void_transfer", err)
	if err != nil {
		h.writeDomainError(w, "Failed to void transfer", err)
		return
	}
	writeJSON(w, http.StatusOK, toTransferDTO(transfer))
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// SaveRate stores the conversion rate for one direction.
func (h *Handler) SaveRate(w http.ResponseWriter, r *http.Request) {
	var req SaveRateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	rate, err := decimal.NewFromString(req.Rate)
	if err != nil || !rate.IsPositive() {
		writeError(w, http.StatusBadRequest, "Invalid rate", err)
		return
	}
	from := ledger.Currency(req.From)
	to := ledger.Currency(req.To)
	if !from.Supported() || !to.Supported() || from == to {
		writeError(w, http.StatusBadRequest, "Invalid currency pair", nil)
		return
	}

	err = h.DB.Atomic(r.Context(), func(s timber.Store) error {
		return s.SaveRate(r.Context(), ledger.Rate{From: from, To: to, Value: rate})
	})
	obs.Operation("save_rate", err)
	if err != nil {
		h.writeDomainError(w, "Failed to save rate", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"saved": true})
}

// RecomputeAll re-derives every projection and rollup from scratch.
func (h *Handler) RecomputeAll(w http.ResponseWriter, r *http.Request) {
	summary, err := h.Repair.RecomputeAll(r.Context())
	obs.Operation("recompute_all", err)
	if err != nil {
		h.writeDomainError(w, "Failed to recompute", err)
		return
	}
	obs.ObserveRecompute(summary.Took)
	writeJSON(w, http.StatusOK, RepairSummaryDTO{
		Clients:   summary.Clients,
		Shipments: summary.Shipments,
		TookMS:    summary.Took.Milliseconds(),
		StartedAt: summary.StartedAt.Format(time.RFC3339),
	})
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func toSaleDTOs(sales []*timber.Sale) []SaleDTO {
	dtos := make([]SaleDTO, len(sales))
	for i, s := range sales {
		dtos[i] = toSaleDTO(s)
	}
	return dtos
}

func optionalDecimal(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

// writeDomainError maps domain errors onto HTTP statuses.
func (h *Handler) writeDomainError(w http.ResponseWriter, message string, err error) {
	status := http.StatusInternalServerError
	switch {
	case timber.IsNotFound(err) || ledger.IsNotFound(err):
		status = http.StatusNotFound
	case errors.Is(err, timber.ErrShipmentClosed),
		errors.Is(err, timber.ErrSaleHasPayments),
		errors.Is(err, timber.ErrLotHasDispatches),
		errors.Is(err, ledger.ErrEntryBound):
		status = http.StatusConflict
	case timber.IsClientError(err) || ledger.IsClientError(err):
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		h.Log.Error(message, zap.Error(err))
	}
	writeError(w, status, message, err)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
