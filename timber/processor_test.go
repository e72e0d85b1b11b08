package timber_test

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/timber-ledger/ledger"
	"github.com/warp/timber-ledger/store/memory"
	"github.com/warp/timber-ledger/store/sqlite"
	"github.com/warp/timber-ledger/timber"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type fixture struct {
	db    *memory.Store
	lots  *timber.LotLedger
	sales *timber.SaleProcessor
	cash  *timber.CashDesk
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := memory.New()
	return &fixture{
		db:    db,
		lots:  timber.NewLotLedger(db, timber.PriceDispatched, nil),
		sales: timber.NewSaleProcessor(db, timber.PriceDispatched, nil),
		cash:  timber.NewCashDesk(db, timber.PriceDispatched, nil),
	}
}

// shipmentWithLot seeds one active shipment holding one pine lot.
func (f *fixture) shipmentWithLot(t *testing.T, volume, amount string, cur ledger.Currency) (*timber.Shipment, *timber.Lot) {
	t.Helper()
	ctx := context.Background()

	sh, err := f.lots.CreateShipment(ctx, timber.ShipmentInput{
		Origin:      "Abakan",
		Destination: "Tashkent",
		Actor:       "test",
	})
	require.NoError(t, err)

	lot, merged, err := f.lots.Intake(ctx, timber.IntakeInput{
		ShipmentID: sh.ID,
		Spec:       timber.LotSpec{Species: "pine", Dimensions: "50x150x6000"},
		Quantity:   200,
		Volume:     dec(volume),
		Currency:   cur,
		Amount:     dec(amount),
		Actor:      "test",
	})
	require.NoError(t, err)
	require.False(t, merged)
	return sh, lot
}

func (f *fixture) client(t *testing.T, name string) *timber.Client {
	t.Helper()
	c, err := f.cash.CreateClient(context.Background(), timber.ClientInput{Name: name, Actor: "test"})
	require.NoError(t, err)
	return c
}

func (f *fixture) entries(t *testing.T, flt ledger.Filter) []*ledger.Entry {
	t.Helper()
	out, err := f.db.Entries(context.Background(), flt)
	require.NoError(t, err)
	return out
}

// =============================================================================
// SELL - CREATION
// =============================================================================

func TestSell_CreatesSaleAndIssuesJournalEntries(t *testing.T) {
	// GIVEN: A lot of 100 m3 and a stored client
	// WHEN: Selling 40 m3 at 10 USD/m3 with 150 paid up front
	// THEN: The sale carries total 400, debt 250, and the journal holds a
	//       debt_sale for the total plus a client_payment for the paid part

	f := newFixture(t)
	ctx := context.Background()
	_, lot := f.shipmentWithLot(t, "100", "3000", ledger.USD)
	c := f.client(t, "Navruz Trading")

	sale, err := f.sales.Sell(ctx, timber.SellInput{
		LotID:     lot.ID,
		ClientID:  c.ID,
		Volume:    dec("40"),
		Currency:  ledger.USD,
		UnitPrice: dec("10"),
		Paid:      dec("150"),
		Actor:     "test",
	})
	require.NoError(t, err)

	assert.True(t, sale.TotalPrice.Equal(dec("400")))
	assert.True(t, sale.Debt().Equal(dec("250")))
	assert.Equal(t, timber.SalePartial, sale.Status())

	got, err := f.db.Lot(ctx, lot.ID)
	require.NoError(t, err)
	assert.True(t, got.Dispatched.Equal(dec("40")))
	assert.True(t, got.Remaining().Equal(dec("60")))

	debts := f.entries(t, ledger.Filter{SaleID: sale.ID, Types: []ledger.EntryType{ledger.EntryDebtSale}})
	require.Len(t, debts, 1)
	assert.True(t, debts[0].Amount.Equal(dec("400")))

	pays := f.entries(t, ledger.Filter{SaleID: sale.ID, Types: []ledger.EntryType{ledger.EntryClientPayment}})
	require.Len(t, pays, 1)
	assert.True(t, pays[0].Amount.Equal(dec("150")))
}

func TestSell_RejectsBadInputBeforeTouchingState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, lot := f.shipmentWithLot(t, "100", "3000", ledger.USD)

	in := timber.SellInput{LotID: lot.ID, Volume: dec("10"), Currency: ledger.USD, UnitPrice: dec("5")}

	bad := in
	bad.Volume = dec("0")
	_, err := f.sales.Sell(ctx, bad)
	assert.ErrorIs(t, err, timber.ErrInvalidVolume)

	bad = in
	bad.TransportLoss = dec("10") // equals volume: nothing would arrive
	_, err = f.sales.Sell(ctx, bad)
	assert.ErrorIs(t, err, timber.ErrInvalidLoss)

	bad = in
	bad.Currency = "eur"
	_, err = f.sales.Sell(ctx, bad)
	assert.ErrorIs(t, err, ledger.ErrUnsupportedCurrency)

	bad = in
	bad.UnitPrice = dec("-1")
	_, err = f.sales.Sell(ctx, bad)
	assert.ErrorIs(t, err, ledger.ErrInvalidAmount)

	got, err := f.db.Lot(ctx, lot.ID)
	require.NoError(t, err)
	assert.True(t, got.Dispatched.IsZero(), "rejected sells must not dispatch")
}

func TestSell_OversellFailsAtomically(t *testing.T) {
	// GIVEN: A lot with 60 m3 remaining after a first sale
	// WHEN: Selling 61 m3
	// THEN: InsufficientVolumeError reports the current remaining and the
	//       failed attempt leaves no journal or lot trace

	f := newFixture(t)
	ctx := context.Background()
	_, lot := f.shipmentWithLot(t, "100", "3000", ledger.USD)
	c := f.client(t, "Oq Daryo LLC")

	_, err := f.sales.Sell(ctx, timber.SellInput{
		LotID: lot.ID, ClientID: c.ID,
		Volume: dec("40"), Currency: ledger.USD, UnitPrice: dec("10"),
		Actor: "test",
	})
	require.NoError(t, err)

	before := len(f.entries(t, ledger.Filter{}))

	_, err = f.sales.Sell(ctx, timber.SellInput{
		LotID: lot.ID, ClientID: c.ID,
		Volume: dec("61"), Currency: ledger.USD, UnitPrice: dec("10"),
		Actor: "test",
	})
	var ive *timber.InsufficientVolumeError
	require.ErrorAs(t, err, &ive)
	assert.True(t, ive.Requested.Equal(dec("61")))
	assert.True(t, ive.Remaining.Equal(dec("60")))
	assert.ErrorIs(t, err, timber.ErrInsufficientVolume)

	assert.Len(t, f.entries(t, ledger.Filter{}), before)
	got, err := f.db.Lot(ctx, lot.ID)
	require.NoError(t, err)
	assert.True(t, got.Dispatched.Equal(dec("40")))
}

func TestSell_ClosedShipmentRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, lot := f.shipmentWithLot(t, "50", "1500", ledger.RUB)
	c := f.client(t, "closer")

	// Sell everything; the rollup closes the shipment.
	_, err := f.sales.Sell(ctx, timber.SellInput{
		LotID: lot.ID, ClientID: c.ID,
		Volume: dec("50"), Currency: ledger.RUB, UnitPrice: dec("100"),
		Actor: "test",
	})
	require.NoError(t, err)

	_, err = f.sales.Sell(ctx, timber.SellInput{
		LotID: lot.ID, ClientID: c.ID,
		Volume: dec("1"), Currency: ledger.RUB, UnitPrice: dec("100"),
		Actor: "test",
	})
	assert.ErrorIs(t, err, timber.ErrShipmentClosed)
}

// =============================================================================
// SELL - MERGE
// =============================================================================

func TestSell_SamePairMergesIntoOneSale(t *testing.T) {
	// GIVEN: A 100 m3 lot sold 40 m3 to a client at price 10
	// WHEN: The same client buys the remaining 60 m3 at the same price
	// THEN: One sale row carries 100 m3 with total 1000, the journal gained
	//       only the 600 debt delta, and the shipment closed as fully sold

	f := newFixture(t)
	ctx := context.Background()
	sh, lot := f.shipmentWithLot(t, "100", "3000", ledger.USD)
	c := f.client(t, "Oq Daryo LLC")

	first, err := f.sales.Sell(ctx, timber.SellInput{
		LotID: lot.ID, ClientID: c.ID,
		Volume: dec("40"), Currency: ledger.USD, UnitPrice: dec("10"),
		Actor: "test",
	})
	require.NoError(t, err)

	second, err := f.sales.Sell(ctx, timber.SellInput{
		LotID: lot.ID, ClientID: c.ID,
		Volume: dec("60"), Currency: ledger.USD, UnitPrice: dec("10"),
		Actor: "test",
	})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID, "same (lot, client) pair must merge")
	assert.True(t, second.Dispatched.Equal(dec("100")))
	assert.True(t, second.TotalPrice.Equal(dec("1000")))

	all, err := f.db.SalesByLot(ctx, lot.ID)
	require.NoError(t, err)
	require.Len(t, all, 1)

	debts := f.entries(t, ledger.Filter{SaleID: first.ID, Types: []ledger.EntryType{ledger.EntryDebtSale}})
	require.Len(t, debts, 2)
	sum := decimal.Zero
	for _, e := range debts {
		sum = sum.Add(e.Amount)
	}
	assert.True(t, sum.Equal(dec("1000")), "debt issuance must agree with the sale total")

	gotSh, err := f.db.Shipment(ctx, sh.ID)
	require.NoError(t, err)
	assert.Equal(t, timber.ShipmentClosed, gotSh.Status)
	assert.Equal(t, timber.CloseFullySold, gotSh.CloseReason)
	require.NotNil(t, gotSh.ClosedAt)
}

func TestSell_MergeLatestPriceSupersedes(t *testing.T) {
	// GIVEN: 40 m3 sold at price 10 (total 400)
	// WHEN: 10 more m3 sell at price 12
	// THEN: The combined 50 m3 is repriced at 12 (total 600) and the
	//       journal delta is 200, not 120

	f := newFixture(t)
	ctx := context.Background()
	_, lot := f.shipmentWithLot(t, "100", "3000", ledger.USD)
	c := f.client(t, "reprice")

	sale, err := f.sales.Sell(ctx, timber.SellInput{
		LotID: lot.ID, ClientID: c.ID,
		Volume: dec("40"), Currency: ledger.USD, UnitPrice: dec("10"),
		Actor: "test",
	})
	require.NoError(t, err)

	sale, err = f.sales.Sell(ctx, timber.SellInput{
		LotID: lot.ID, ClientID: c.ID,
		Volume: dec("10"), Currency: ledger.USD, UnitPrice: dec("12"),
		Actor: "test",
	})
	require.NoError(t, err)

	assert.True(t, sale.UnitPrice.Equal(dec("12")))
	assert.True(t, sale.TotalPrice.Equal(dec("600")))

	debts := f.entries(t, ledger.Filter{SaleID: sale.ID, Types: []ledger.EntryType{ledger.EntryDebtSale}})
	require.Len(t, debts, 2)
	assert.True(t, debts[0].Amount.Equal(dec("200")), "newest entry is the reprice delta")
}

func TestSell_MergeCurrencySwitchReissuesEntries(t *testing.T) {
	// GIVEN: 40 m3 sold in USD at 10 with 100 paid
	// WHEN: The same pair buys 10 m3 in RUB at 900
	// THEN: The USD issuance is voided and the full RUB total and paid are
	//       issued anew, so live entries are single-currency

	f := newFixture(t)
	ctx := context.Background()
	_, lot := f.shipmentWithLot(t, "100", "3000", ledger.USD)
	c := f.client(t, "switcher")

	sale, err := f.sales.Sell(ctx, timber.SellInput{
		LotID: lot.ID, ClientID: c.ID,
		Volume: dec("40"), Currency: ledger.USD, UnitPrice: dec("10"),
		Paid:  dec("100"),
		Actor: "test",
	})
	require.NoError(t, err)

	sale, err = f.sales.Sell(ctx, timber.SellInput{
		LotID: lot.ID, ClientID: c.ID,
		Volume: dec("10"), Currency: ledger.RUB, UnitPrice: dec("900"),
		Actor: "test",
	})
	require.NoError(t, err)

	assert.Equal(t, ledger.RUB, sale.Currency)
	assert.True(t, sale.TotalPrice.Equal(dec("45000")), "50 m3 at 900")
	assert.True(t, sale.Paid.Equal(dec("100")), "paid carries over as a number")

	live := f.entries(t, ledger.Filter{SaleID: sale.ID})
	for _, e := range live {
		assert.Equal(t, ledger.RUB, e.Currency)
	}

	debts := f.entries(t, ledger.Filter{SaleID: sale.ID, Types: []ledger.EntryType{ledger.EntryDebtSale}})
	require.Len(t, debts, 1)
	assert.True(t, debts[0].Amount.Equal(dec("45000")))

	voided := f.entries(t, ledger.Filter{SaleID: sale.ID, IncludeDeleted: true})
	assert.Greater(t, len(voided), len(live), "old-currency entries stay voided, never erased")
}

func TestSell_MergeDownwardRepriceReissuesDebt(t *testing.T) {
	// GIVEN: 40 m3 sold at price 10 (total 400) with 150 paid
	// WHEN: 10 more m3 sell at the lower price 5, shrinking the total to 250
	// THEN: The old issuance is voided and reissued, so live debt_sale
	//       entries sum to 250 and the payment trace stays intact

	f := newFixture(t)
	ctx := context.Background()
	_, lot := f.shipmentWithLot(t, "100", "3000", ledger.USD)
	c := f.client(t, "haggler")

	sale, err := f.sales.Sell(ctx, timber.SellInput{
		LotID: lot.ID, ClientID: c.ID,
		Volume: dec("40"), Currency: ledger.USD, UnitPrice: dec("10"),
		Paid:  dec("150"),
		Actor: "test",
	})
	require.NoError(t, err)

	sale, err = f.sales.Sell(ctx, timber.SellInput{
		LotID: lot.ID, ClientID: c.ID,
		Volume: dec("10"), Currency: ledger.USD, UnitPrice: dec("5"),
		Actor: "test",
	})
	require.NoError(t, err)

	assert.True(t, sale.TotalPrice.Equal(dec("250")), "50 m3 at 5")
	assert.True(t, sale.Paid.Equal(dec("150")))

	debts := f.entries(t, ledger.Filter{SaleID: sale.ID, Types: []ledger.EntryType{ledger.EntryDebtSale}})
	debtSum := decimal.Zero
	for _, e := range debts {
		debtSum = debtSum.Add(e.Amount)
	}
	assert.True(t, debtSum.Equal(sale.TotalPrice), "live debt_sale sum %s != sale total %s", debtSum, sale.TotalPrice)

	pays := f.entries(t, ledger.Filter{SaleID: sale.ID, Types: []ledger.EntryType{ledger.EntryClientPayment}})
	require.Len(t, pays, 1)
	assert.True(t, pays[0].Amount.Equal(dec("150")))

	voided := f.entries(t, ledger.Filter{SaleID: sale.ID, IncludeDeleted: true})
	live := f.entries(t, ledger.Filter{SaleID: sale.ID})
	assert.Greater(t, len(voided), len(live), "superseded entries stay voided, never erased")
}

func TestSell_OneTimeClientsNeverMerge(t *testing.T) {
	// GIVEN: A lot sold twice to unnamed bazaar buyers
	// WHEN: Both sales carry only a free-form name
	// THEN: Two independent sale rows exist

	f := newFixture(t)
	ctx := context.Background()
	_, lot := f.shipmentWithLot(t, "100", "3000", ledger.USD)

	a, err := f.sales.Sell(ctx, timber.SellInput{
		LotID: lot.ID, ClientName: "bazaar buyer",
		Volume: dec("5"), Currency: ledger.USD, UnitPrice: dec("10"), Paid: dec("50"),
		Actor: "test",
	})
	require.NoError(t, err)

	b, err := f.sales.Sell(ctx, timber.SellInput{
		LotID: lot.ID, ClientName: "bazaar buyer",
		Volume: dec("5"), Currency: ledger.USD, UnitPrice: dec("10"), Paid: dec("50"),
		Actor: "test",
	})
	require.NoError(t, err)

	assert.NotEqual(t, a.ID, b.ID)
	all, err := f.db.SalesByLot(ctx, lot.ID)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

// =============================================================================
// PAYMENTS
// =============================================================================

func TestRecordPayment_ReducesDebtUpToZero(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, lot := f.shipmentWithLot(t, "100", "3000", ledger.USD)
	c := f.client(t, "payer")

	sale, err := f.sales.Sell(ctx, timber.SellInput{
		LotID: lot.ID, ClientID: c.ID,
		Volume: dec("20"), Currency: ledger.USD, UnitPrice: dec("10"),
		Actor: "test",
	})
	require.NoError(t, err)
	require.True(t, sale.Debt().Equal(dec("200")))

	sale, err = f.sales.RecordPayment(ctx, sale.ID, dec("150"), "test")
	require.NoError(t, err)
	assert.True(t, sale.Debt().Equal(dec("50")))
	assert.Equal(t, timber.SalePartial, sale.Status())

	sale, err = f.sales.RecordPayment(ctx, sale.ID, dec("50"), "test")
	require.NoError(t, err)
	assert.True(t, sale.Debt().IsZero())
	assert.Equal(t, timber.SalePaid, sale.Status())

	pays := f.entries(t, ledger.Filter{SaleID: sale.ID, Types: []ledger.EntryType{ledger.EntryClientPayment}})
	assert.Len(t, pays, 2)
}

func TestRecordPayment_CannotExceedDebt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, lot := f.shipmentWithLot(t, "100", "3000", ledger.USD)
	c := f.client(t, "overpayer")

	sale, err := f.sales.Sell(ctx, timber.SellInput{
		LotID: lot.ID, ClientID: c.ID,
		Volume: dec("20"), Currency: ledger.USD, UnitPrice: dec("10"),
		Actor: "test",
	})
	require.NoError(t, err)

	_, err = f.sales.RecordPayment(ctx, sale.ID, dec("200.01"), "test")
	assert.ErrorIs(t, err, timber.ErrPaymentExceedsDebt)

	_, err = f.sales.RecordPayment(ctx, sale.ID, dec("0"), "test")
	assert.ErrorIs(t, err, ledger.ErrInvalidAmount)
}

// =============================================================================
// DELETION
// =============================================================================

func TestDeleteSale_ReturnsVolumeAndVoidsEntries(t *testing.T) {
	// GIVEN: An unpaid sale of 30 m3
	// WHEN: Deleting it
	// THEN: The lot regains the volume, the sale is soft-deleted, and its
	//       journal entries are voided

	f := newFixture(t)
	ctx := context.Background()
	_, lot := f.shipmentWithLot(t, "100", "3000", ledger.USD)
	c := f.client(t, "undo")

	sale, err := f.sales.Sell(ctx, timber.SellInput{
		LotID: lot.ID, ClientID: c.ID,
		Volume: dec("30"), Currency: ledger.USD, UnitPrice: dec("10"),
		Actor: "test",
	})
	require.NoError(t, err)

	require.NoError(t, f.sales.DeleteSale(ctx, sale.ID))

	got, err := f.db.Lot(ctx, lot.ID)
	require.NoError(t, err)
	assert.True(t, got.Dispatched.IsZero())
	assert.True(t, got.Remaining().Equal(dec("100")))

	gone, err := f.db.Sale(ctx, sale.ID)
	require.NoError(t, err)
	assert.True(t, gone.Deleted)

	assert.Empty(t, f.entries(t, ledger.Filter{SaleID: sale.ID}))
	assert.NotEmpty(t, f.entries(t, ledger.Filter{SaleID: sale.ID, IncludeDeleted: true}))

	err = f.sales.DeleteSale(ctx, sale.ID)
	assert.ErrorIs(t, err, timber.ErrSaleNotFound)
}

func TestDeleteSale_PaidSaleIsImmutable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, lot := f.shipmentWithLot(t, "100", "3000", ledger.USD)
	c := f.client(t, "keeper")

	sale, err := f.sales.Sell(ctx, timber.SellInput{
		LotID: lot.ID, ClientID: c.ID,
		Volume: dec("30"), Currency: ledger.USD, UnitPrice: dec("10"),
		Paid:  dec("1"),
		Actor: "test",
	})
	require.NoError(t, err)

	err = f.sales.DeleteSale(ctx, sale.ID)
	assert.ErrorIs(t, err, timber.ErrSaleHasPayments)
}

// =============================================================================
// PRICING POLICY
// =============================================================================

func TestSell_DeliveredPolicyPricesVolumeAfterTransportLoss(t *testing.T) {
	// GIVEN: A processor under the delivered pricing policy
	// WHEN: Selling 40 m3 with 2 m3 lost in transport at price 10
	// THEN: The total prices the 38 m3 that arrived, while the lot is
	//       still debited the full 40 m3 dispatched

	db := memory.New()
	lots := timber.NewLotLedger(db, timber.PriceDelivered, nil)
	sales := timber.NewSaleProcessor(db, timber.PriceDelivered, nil)
	ctx := context.Background()

	sh, err := lots.CreateShipment(ctx, timber.ShipmentInput{Origin: "Abakan", Destination: "Samarkand", Actor: "test"})
	require.NoError(t, err)
	lot, _, err := lots.Intake(ctx, timber.IntakeInput{
		ShipmentID: sh.ID,
		Spec:       timber.LotSpec{Species: "spruce", Dimensions: "25x100x4000"},
		Quantity:   100, Volume: dec("100"), Currency: ledger.USD, Amount: dec("2000"),
		Actor: "test",
	})
	require.NoError(t, err)

	sale, err := sales.Sell(ctx, timber.SellInput{
		LotID: lot.ID, ClientName: "roadside",
		Volume: dec("40"), TransportLoss: dec("2"),
		Currency: ledger.USD, UnitPrice: dec("10"),
		Actor: "test",
	})
	require.NoError(t, err)

	assert.True(t, sale.TotalPrice.Equal(dec("380")))

	got, err := db.Lot(ctx, lot.ID)
	require.NoError(t, err)
	assert.True(t, got.Dispatched.Equal(dec("40")))
}

// =============================================================================
// CONCURRENCY
// =============================================================================

func TestSell_ConcurrentSellsNeverOversell(t *testing.T) {
	// GIVEN: A 55 m3 lot in a sqlite-backed store
	// WHEN: Ten buyers race to take 10 m3 each
	// THEN: Exactly five succeed, the lot never dispatches past its
	//       volume, and every loser fails on insufficient volume

	db, err := sqlite.New(filepath.Join(t.TempDir(), "race.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	lots := timber.NewLotLedger(db, timber.PriceDispatched, nil)
	sales := timber.NewSaleProcessor(db, timber.PriceDispatched, nil)
	ctx := context.Background()

	sh, err := lots.CreateShipment(ctx, timber.ShipmentInput{Origin: "Abakan", Destination: "Tashkent", Actor: "test"})
	require.NoError(t, err)
	lot, _, err := lots.Intake(ctx, timber.IntakeInput{
		ShipmentID: sh.ID,
		Spec:       timber.LotSpec{Species: "pine", Dimensions: "50x150x6000"},
		Quantity:   110, Volume: dec("55"), Currency: ledger.USD, Amount: dec("1650"),
		Actor: "test",
	})
	require.NoError(t, err)

	const buyers = 10
	errs := make(chan error, buyers)
	var wg sync.WaitGroup
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := sales.Sell(ctx, timber.SellInput{
				LotID:      lot.ID,
				ClientName: fmt.Sprintf("buyer-%d", i),
				Volume:     dec("10"),
				Currency:   ledger.USD,
				UnitPrice:  dec("10"),
				Actor:      "test",
			})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	var won, lost int
	for err := range errs {
		if err == nil {
			won++
			continue
		}
		lost++
		var ive *timber.InsufficientVolumeError
		require.ErrorAs(t, err, &ive, "losers fail on volume, nothing else")
	}
	assert.Equal(t, 5, won)
	assert.Equal(t, 5, lost)

	got, err := db.Lot(ctx, lot.ID)
	require.NoError(t, err)
	assert.True(t, got.Dispatched.Equal(dec("50")))
	assert.True(t, got.Remaining().Equal(dec("5")), "the residue stays, never a negative remainder")

	all, err := db.SalesByLot(ctx, lot.ID)
	require.NoError(t, err)
	assert.Len(t, all, 5)
}
