/*
rates.go - Currency conversion service

PURPOSE:
  Resolves the authoritative exchange rate between the two supported
  currencies. Rates are directional: usd->rub and rub->usd are stored as
  two independent rows and looked up in the exact direction requested.
  No automatic inversion - an admin who sets only one direction has set
  only one direction.

  Conversion is a pure read. Rate mutation happens through the admin
  endpoint (api layer) writing via Store.SaveRate; ingestion from
  third-party rate feeds is outside this repository.
*/
package ledger

import (
	"context"

	"github.com/shopspring/decimal"
)

// Converter resolves rates and converts amounts between currencies.
type Converter struct {
	store Store
}

// NewConverter creates a converter reading rates from the store.
func NewConverter(store Store) *Converter {
	return &Converter{store: store}
}

// Rate returns the stored rate for the ordered pair (from, to).
// Fails with a RateNotFoundError when no rate exists for that direction.
func (c *Converter) Rate(ctx context.Context, from, to Currency) (decimal.Decimal, error) {
	if !from.Supported() || !to.Supported() {
		return decimal.Zero, ErrUnsupportedCurrency
	}
	if from == to {
		return decimal.NewFromInt(1), nil
	}
	rate, err := c.store.Rate(ctx, from, to)
	if err != nil {
		return decimal.Zero, err
	}
	if !rate.IsPositive() {
		return decimal.Zero, &RateNotFoundError{From: from, To: to}
	}
	return rate, nil
}

// Convert returns amount expressed in the target currency, with an identity
// short-circuit when from == to.
func (c *Converter) Convert(ctx context.Context, amount decimal.Decimal, from, to Currency) (decimal.Decimal, error) {
	if from == to {
		return amount, nil
	}
	rate, err := c.Rate(ctx, from, to)
	if err != nil {
		return decimal.Zero, err
	}
	return amount.Mul(rate), nil
}
