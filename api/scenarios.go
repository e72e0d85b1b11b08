/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with realistic
	data for testing and demos. Each scenario creates shipments, lots,
	clients, sales, and journal entries that demonstrate specific features.

AVAILABLE SCENARIOS:

	fresh-shipment:  One shipment with two lots and a warehouse loss
	active-trading:  Stored and one-time clients, partial payments, a
	                 currency transfer
	sell-out:        A lot sold down to zero in two dispatches to the same
	                 client, closing the shipment

HOW SCENARIOS WORK:
 1. Create entities through the same domain services the API uses, so
    every invariant and projection recompute applies
 2. Nothing is reset: scenarios seed into the current database

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "active-trading"}

NOTE:

	Only use in development/demo environments.

SEE ALSO:
  - handlers.go: Domain service wiring
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/warp/timber-ledger/ledger"
	"github.com/warp/timber-ledger/timber"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

// ScenarioDTO describes one loadable demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadScenarioRequest selects the scenario to load.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

var scenarios = []ScenarioDTO{
	{
		ID:          "fresh-shipment",
		Name:        "Fresh Shipment",
		Description: "One shipment with two lots and a warehouse loss",
	},
	{
		ID:          "active-trading",
		Name:        "Active Trading",
		Description: "Stored and one-time clients, partial payments, a currency transfer",
	},
	{
		ID:          "sell-out",
		Name:        "Sell-Out",
		Description: "A lot sold to zero in two dispatches, closing the shipment",
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// LoadScenario seeds the selected scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	ctx := r.Context()
	var err error
	switch req.ScenarioID {
	case "fresh-shipment":
		err = h.loadFreshShipment(ctx)
	case "active-trading":
		err = h.loadActiveTrading(ctx)
	case "sell-out":
		err = h.loadSellOut(ctx)
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Unknown scenario: %s", req.ScenarioID), nil)
		return
	}
	if err != nil {
		h.writeDomainError(w, "Failed to load scenario", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"loaded": req.ScenarioID})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func (h *Handler) loadFreshShipment(ctx context.Context) error {
	sh, err := h.Lots.CreateShipment(ctx, timber.ShipmentInput{
		Origin: "Abakan", Destination: "Tashkent", Actor: "demo",
	})
	if err != nil {
		return err
	}

	pine, _, err := h.Lots.Intake(ctx, timber.IntakeInput{
		ShipmentID: sh.ID,
		Spec:       timber.LotSpec{Species: "pine", Dimensions: "50x150x6000", Grade: "1"},
		Quantity:   420,
		Volume:     dec("18.9"),
		Currency:   ledger.RUB,
		Amount:     dec("283500"),
		Actor:      "demo",
	})
	if err != nil {
		return err
	}
	if _, _, err := h.Lots.Intake(ctx, timber.IntakeInput{
		ShipmentID: sh.ID,
		Spec:       timber.LotSpec{Species: "spruce", Dimensions: "25x100x4000", Grade: "2"},
		Quantity:   900,
		Volume:     dec("9"),
		Currency:   ledger.RUB,
		Amount:     dec("117000"),
		Actor:      "demo",
	}); err != nil {
		return err
	}

	_, err = h.Lots.RecordLoss(ctx, pine.ID, dec("0.4"), "warehouse", "forklift damage")
	return err
}

func (h *Handler) loadActiveTrading(ctx context.Context) error {
	// Rates first so the transfer at the end can resolve one.
	err := h.DB.Atomic(ctx, func(s timber.Store) error {
		if err := s.SaveRate(ctx, ledger.Rate{From: ledger.USD, To: ledger.RUB, Value: dec("92.5")}); err != nil {
			return err
		}
		return s.SaveRate(ctx, ledger.Rate{From: ledger.RUB, To: ledger.USD, Value: dec("0.0108")})
	})
	if err != nil {
		return err
	}

	sh, err := h.Lots.CreateShipment(ctx, timber.ShipmentInput{
		Origin: "Krasnoyarsk", Destination: "Samarkand", Actor: "demo",
	})
	if err != nil {
		return err
	}
	lot, _, err := h.Lots.Intake(ctx, timber.IntakeInput{
		ShipmentID: sh.ID,
		Spec:       timber.LotSpec{Species: "larch", Dimensions: "40x200x6000"},
		Quantity:   1200,
		Volume:     dec("57.6"),
		Currency:   ledger.USD,
		Amount:     dec("8640"),
		Actor:      "demo",
	})
	if err != nil {
		return err
	}

	client, err := h.Cash.CreateClient(ctx, timber.ClientInput{
		Name: "Navruz Trading", Phone: "+998901234567", Actor: "demo",
	})
	if err != nil {
		return err
	}

	// Stored client buys on credit with a partial upfront payment.
	sale, err := h.Sales.Sell(ctx, timber.SellInput{
		LotID:         lot.ID,
		ClientID:      client.ID,
		Volume:        dec("20"),
		TransportLoss: dec("0.3"),
		Currency:      ledger.USD,
		UnitPrice:     dec("210"),
		Paid:          dec("1500"),
		Actor:         "demo",
	})
	if err != nil {
		return err
	}
	if _, err := h.Sales.RecordPayment(ctx, sale.ID, dec("1000"), "demo"); err != nil {
		return err
	}

	// One-time client pays in full at dispatch.
	if _, err := h.Sales.Sell(ctx, timber.SellInput{
		LotID:       lot.ID,
		ClientName:  "bazaar buyer",
		ClientPhone: "+998907654321",
		Volume:      dec("4.8"),
		Currency:    ledger.USD,
		UnitPrice:   dec("225"),
		Paid:        dec("1080"),
		Actor:       "demo",
	}); err != nil {
		return err
	}

	// Shipment expense and a currency transfer.
	if _, err := h.Cash.RecordEntry(ctx, timber.EntryInput{
		Type:       ledger.EntryExpenseShipment,
		Currency:   ledger.USD,
		Amount:     dec("700"),
		ShipmentID: sh.ID,
		Notes:      "rail freight",
		Actor:      "demo",
	}); err != nil {
		return err
	}
	_, err = h.Transfers.Transfer(ctx, ledger.TransferInput{
		From: ledger.USD, To: ledger.RUB, Amount: dec("500"), Actor: "demo",
	})
	return err
}

func (h *Handler) loadSellOut(ctx context.Context) error {
	sh, err := h.Lots.CreateShipment(ctx, timber.ShipmentInput{
		Origin: "Bratsk", Destination: "Andijan", Actor: "demo",
	})
	if err != nil {
		return err
	}
	lot, _, err := h.Lots.Intake(ctx, timber.IntakeInput{
		ShipmentID: sh.ID,
		Spec:       timber.LotSpec{Species: "pine", Dimensions: "50x150x6000"},
		Quantity:   2200,
		Volume:     dec("100"),
		Currency:   ledger.USD,
		Amount:     dec("12000"),
		Actor:      "demo",
	})
	if err != nil {
		return err
	}
	client, err := h.Cash.CreateClient(ctx, timber.ClientInput{
		Name: "Oq Daryo LLC", Actor: "demo",
	})
	if err != nil {
		return err
	}

	// Two dispatches to the same client merge into one sale; the second
	// exhausts the lot and closes the shipment.
	if _, err := h.Sales.Sell(ctx, timber.SellInput{
		LotID:     lot.ID,
		ClientID:  client.ID,
		Volume:    dec("40"),
		Currency:  ledger.USD,
		UnitPrice: dec("10"),
		Actor:     "demo",
	}); err != nil {
		return err
	}
	_, err = h.Sales.Sell(ctx, timber.SellInput{
		LotID:     lot.ID,
		ClientID:  client.ID,
		Volume:    dec("60"),
		Currency:  ledger.USD,
		UnitPrice: dec("10"),
		Paid:      dec("400"),
		Actor:     "demo",
	})
	return err
}
