/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

MONEY AND VOLUMES:
  Decimal fields travel as JSON strings ("123.45") to keep exact values
  across the wire. Handlers parse them with shopspring/decimal.

VALIDATION:
  Validation is done in handlers and domain services, not in DTOs. DTOs
  are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/warp/timber-ledger/ledger"
	"github.com/warp/timber-ledger/timber"
)

// =============================================================================
// SHIPMENTS
// =============================================================================

// CreateShipmentRequest is the request to open a new shipment.
type CreateShipmentRequest struct {
	Origin      string `json:"origin"`
	Destination string `json:"destination"`
	Actor       string `json:"actor,omitempty"`
}

// CurrencyTotalsDTO carries per-currency shipment totals.
type CurrencyTotalsDTO struct {
	Cost    string `json:"cost"`
	Revenue string `json:"revenue"`
	Paid    string `json:"paid"`
	Profit  string `json:"profit"`
}

// RollupDTO is the derived shipment aggregate.
type RollupDTO struct {
	Purchased  string            `json:"purchased"`
	Loss       string            `json:"loss"`
	Dispatched string            `json:"dispatched"`
	Remaining  string            `json:"remaining"`
	LotCount   int               `json:"lot_count"`
	SaleCount  int               `json:"sale_count"`
	USD        CurrencyTotalsDTO `json:"usd"`
	RUB        CurrencyTotalsDTO `json:"rub"`
}

// ShipmentDTO represents a shipment in API responses.
type ShipmentDTO struct {
	ID          string    `json:"id"`
	Code        string    `json:"code"`
	Year        int       `json:"year"`
	Origin      string    `json:"origin,omitempty"`
	Destination string    `json:"destination,omitempty"`
	Status      string    `json:"status"`
	CloseReason string    `json:"close_reason,omitempty"`
	ClosedAt    string    `json:"closed_at,omitempty"`
	Rollup      RollupDTO `json:"rollup"`
	CreatedAt   string    `json:"created_at,omitempty"`
}

// =============================================================================
// LOTS
// =============================================================================

// IntakeRequest records a purchase into a shipment.
type IntakeRequest struct {
	Species    string `json:"species"`
	Dimensions string `json:"dimensions"`
	Grade      string `json:"grade,omitempty"`
	Quantity   int64  `json:"quantity"`
	Volume     string `json:"volume"`
	Currency   string `json:"currency"`
	Amount     string `json:"amount"`
	Actor      string `json:"actor,omitempty"`
}

// RecordLossRequest attributes warehouse loss to a lot.
type RecordLossRequest struct {
	Volume      string `json:"volume"`
	Responsible string `json:"responsible,omitempty"`
	Reason      string `json:"reason,omitempty"`
}

// LotDTO represents a lot in API responses.
type LotDTO struct {
	ID               string `json:"id"`
	ShipmentID       string `json:"shipment_id"`
	Species          string `json:"species"`
	Dimensions       string `json:"dimensions"`
	Grade            string `json:"grade,omitempty"`
	Quantity         int64  `json:"quantity"`
	Purchased        string `json:"purchased"`
	PurchaseCurrency string `json:"purchase_currency"`
	PurchaseAmount   string `json:"purchase_amount"`
	Loss             string `json:"loss"`
	LossResponsible  string `json:"loss_responsible,omitempty"`
	Dispatched       string `json:"dispatched"`
	Available        string `json:"available"`
	Remaining        string `json:"remaining"`
	CreatedAt        string `json:"created_at,omitempty"`
}

// IntakeResponse wraps the lot plus whether the intake merged into an
// existing lot.
type IntakeResponse struct {
	Lot    LotDTO `json:"lot"`
	Merged bool   `json:"merged"`
}

// =============================================================================
// SALES
// =============================================================================

// SellRequest dispatches lot volume to a client.
type SellRequest struct {
	ClientID    string `json:"client_id,omitempty"`
	ClientName  string `json:"client_name,omitempty"`
	ClientPhone string `json:"client_phone,omitempty"`

	Volume               string `json:"volume"`
	TransportLoss        string `json:"transport_loss,omitempty"`
	TransportResponsible string `json:"transport_responsible,omitempty"`

	Currency  string `json:"currency"`
	UnitPrice string `json:"unit_price"`
	Paid      string `json:"paid,omitempty"`

	Actor string `json:"actor,omitempty"`
}

// PaymentRequest records a payment against a sale.
type PaymentRequest struct {
	Amount string `json:"amount"`
	Actor  string `json:"actor,omitempty"`
}

// SaleDTO represents a sale in API responses.
type SaleDTO struct {
	ID          string `json:"id"`
	LotID       string `json:"lot_id"`
	ShipmentID  string `json:"shipment_id"`
	ClientID    string `json:"client_id,omitempty"`
	ClientName  string `json:"client_name,omitempty"`
	ClientPhone string `json:"client_phone,omitempty"`

	Dispatched           string `json:"dispatched"`
	TransportLoss        string `json:"transport_loss"`
	TransportResponsible string `json:"transport_responsible,omitempty"`

	Currency   string `json:"currency"`
	UnitPrice  string `json:"unit_price"`
	TotalPrice string `json:"total_price"`
	Paid       string `json:"paid"`
	Debt       string `json:"debt"`
	Status     string `json:"status"`

	CreatedAt string `json:"created_at,omitempty"`
}

// =============================================================================
// CLIENTS
// =============================================================================

// ClientRequest creates or updates a client.
type ClientRequest struct {
	Name  string `json:"name"`
	Phone string `json:"phone,omitempty"`
	Notes string `json:"notes,omitempty"`
	Actor string `json:"actor,omitempty"`
}

// CurrencyDebtDTO is one currency slice of a client's debt projection.
type CurrencyDebtDTO struct {
	Debt        string `json:"debt"`
	Paid        string `json:"paid"`
	Outstanding string `json:"outstanding"`
	Volume      string `json:"volume"`
}

// ClientDTO represents a client in API responses.
type ClientDTO struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Phone     string          `json:"phone,omitempty"`
	Notes     string          `json:"notes,omitempty"`
	USD       CurrencyDebtDTO `json:"usd"`
	RUB       CurrencyDebtDTO `json:"rub"`
	CreatedAt string          `json:"created_at,omitempty"`
}

// =============================================================================
// JOURNAL
// =============================================================================

// CreateEntryRequest records a manual journal entry.
type CreateEntryRequest struct {
	Type       string `json:"type"`
	Currency   string `json:"currency"`
	Amount     string `json:"amount"`
	ClientID   string `json:"client_id,omitempty"`
	ShipmentID string `json:"shipment_id,omitempty"`
	Notes      string `json:"notes,omitempty"`
	Date       string `json:"date,omitempty"` // RFC3339, defaults to now
	Actor      string `json:"actor,omitempty"`
}

// EntryDTO represents a journal entry in API responses.
type EntryDTO struct {
	ID           string `json:"id"`
	Type         string `json:"type"`
	Currency     string `json:"currency"`
	Amount       string `json:"amount"`
	Direction    int    `json:"direction"`
	ClientID     string `json:"client_id,omitempty"`
	ShipmentID   string `json:"shipment_id,omitempty"`
	LotID        string `json:"lot_id,omitempty"`
	SaleID       string `json:"sale_id,omitempty"`
	TransferID   string `json:"transfer_id,omitempty"`
	Notes        string `json:"notes,omitempty"`
	TransactedAt string `json:"transacted_at"`
	Deleted      bool   `json:"deleted,omitempty"`
}

// BalanceDTO is the derived cash balance per currency.
type BalanceDTO struct {
	USD string `json:"usd"`
	RUB string `json:"rub"`
}

// =============================================================================
// TRANSFERS AND RATES
// =============================================================================

// TransferRequest converts balance between the two currencies.
type TransferRequest struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount string `json:"amount"`
	Notes  string `json:"notes,omitempty"`
	Actor  string `json:"actor,omitempty"`
}

// TransferDTO represents a currency transfer and its lifecycle status.
type TransferDTO struct {
	ID         string `json:"id"`
	From       string `json:"from"`
	To         string `json:"to"`
	FromAmount string `json:"from_amount"`
	ToAmount   string `json:"to_amount"`
	Rate       string `json:"rate"`
	Status     string `json:"status"`
	Notes      string `json:"notes,omitempty"`
	CreatedAt  string `json:"created_at,omitempty"`
}

// SaveRateRequest stores the rate for one conversion direction.
type SaveRateRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
	Rate string `json:"rate"`
}

// =============================================================================
// ADMIN
// =============================================================================

// RepairSummaryDTO reports a full recomputation pass.
type RepairSummaryDTO struct {
	Clients   int    `json:"clients"`
	Shipments int    `json:"shipments"`
	TookMS    int64  `json:"took_ms"`
	StartedAt string `json:"started_at"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toShipmentDTO(sh *timber.Shipment) ShipmentDTO {
	dto := ShipmentDTO{
		ID:          sh.ID,
		Code:        sh.Code,
		Year:        sh.Year,
		Origin:      sh.Origin,
		Destination: sh.Destination,
		Status:      string(sh.Status),
		CloseReason: string(sh.CloseReason),
		Rollup:      toRollupDTO(sh.Rollup),
		CreatedAt:   sh.CreatedAt.Format(time.RFC3339),
	}
	if sh.ClosedAt != nil {
		dto.ClosedAt = sh.ClosedAt.Format(time.RFC3339)
	}
	return dto
}

func toRollupDTO(r timber.Rollup) RollupDTO {
	return RollupDTO{
		Purchased:  r.TotalVolume.String(),
		Loss:       r.LossVolume.String(),
		Dispatched: r.DispatchedVolume.String(),
		Remaining:  r.RemainingVolume.String(),
		LotCount:   r.LotCount,
		SaleCount:  r.SaleCount,
		USD:        toCurrencyTotalsDTO(r.USD),
		RUB:        toCurrencyTotalsDTO(r.RUB),
	}
}

func toCurrencyTotalsDTO(t timber.CurrencyTotals) CurrencyTotalsDTO {
	return CurrencyTotalsDTO{
		Cost:    t.Cost.String(),
		Revenue: t.Revenue.String(),
		Paid:    t.Paid.String(),
		Profit:  t.Profit.String(),
	}
}

func toLotDTO(l *timber.Lot) LotDTO {
	return LotDTO{
		ID:               l.ID,
		ShipmentID:       l.ShipmentID,
		Species:          l.Spec.Species,
		Dimensions:       l.Spec.Dimensions,
		Grade:            l.Spec.Grade,
		Quantity:         l.Quantity,
		Purchased:        l.Purchased.String(),
		PurchaseCurrency: string(l.PurchaseCurrency),
		PurchaseAmount:   l.PurchaseAmount.String(),
		Loss:             l.Loss.String(),
		LossResponsible:  l.LossResponsible,
		Dispatched:       l.Dispatched.String(),
		Available:        l.Available().String(),
		Remaining:        l.Remaining().String(),
		CreatedAt:        l.CreatedAt.Format(time.RFC3339),
	}
}

func toSaleDTO(s *timber.Sale) SaleDTO {
	return SaleDTO{
		ID:                   s.ID,
		LotID:                s.LotID,
		ShipmentID:           s.ShipmentID,
		ClientID:             s.ClientID,
		ClientName:           s.ClientName,
		ClientPhone:          s.ClientPhone,
		Dispatched:           s.Dispatched.String(),
		TransportLoss:        s.TransportLoss.String(),
		TransportResponsible: s.TransportResponsible,
		Currency:             string(s.Currency),
		UnitPrice:            s.UnitPrice.String(),
		TotalPrice:           s.TotalPrice.String(),
		Paid:                 s.Paid.String(),
		Debt:                 s.Debt().String(),
		Status:               string(s.Status()),
		CreatedAt:            s.CreatedAt.Format(time.RFC3339),
	}
}

func toClientDTO(c *timber.Client) ClientDTO {
	return ClientDTO{
		ID:        c.ID,
		Name:      c.Name,
		Phone:     c.Phone,
		Notes:     c.Notes,
		USD:       toCurrencyDebtDTO(c.Projection.USD),
		RUB:       toCurrencyDebtDTO(c.Projection.RUB),
		CreatedAt: c.CreatedAt.Format(time.RFC3339),
	}
}

func toCurrencyDebtDTO(d timber.CurrencyDebt) CurrencyDebtDTO {
	return CurrencyDebtDTO{
		Debt:        d.Debt.String(),
		Paid:        d.Paid.String(),
		Outstanding: d.Outstanding.String(),
		Volume:      d.Volume.String(),
	}
}

func toEntryDTO(e *ledger.Entry) EntryDTO {
	dir, _ := e.Type.Direction()
	return EntryDTO{
		ID:           e.ID,
		Type:         string(e.Type),
		Currency:     string(e.Currency),
		Amount:       e.Amount.String(),
		Direction:    dir,
		ClientID:     e.ClientID,
		ShipmentID:   e.ShipmentID,
		LotID:        e.LotID,
		SaleID:       e.SaleID,
		TransferID:   e.TransferID,
		Notes:        e.Notes,
		TransactedAt: e.TransactedAt.Format(time.RFC3339),
		Deleted:      e.Deleted,
	}
}

func toTransferDTO(t *ledger.Transfer) TransferDTO {
	return TransferDTO{
		ID:         t.ID,
		From:       string(t.FromCurrency),
		To:         string(t.ToCurrency),
		FromAmount: t.FromAmount.String(),
		ToAmount:   t.ToAmount.String(),
		Rate:       t.Rate.String(),
		Status:     string(t.Status),
		Notes:      t.Notes,
		CreatedAt:  t.CreatedAt.Format(time.RFC3339),
	}
}
