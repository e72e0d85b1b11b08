package timber_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/timber-ledger/ledger"
	"github.com/warp/timber-ledger/timber"
)

// =============================================================================
// SHIPMENT CREATION
// =============================================================================

func TestCreateShipment_AssignsSequentialYearCodes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, err := f.lots.CreateShipment(ctx, timber.ShipmentInput{Origin: "Abakan", Destination: "Tashkent", Actor: "test"})
	require.NoError(t, err)
	b, err := f.lots.CreateShipment(ctx, timber.ShipmentInput{Origin: "Kansk", Destination: "Tashkent", Actor: "test"})
	require.NoError(t, err)

	assert.Equal(t, timber.FormatCode(1, a.Year), a.Code)
	assert.Equal(t, timber.FormatCode(2, b.Year), b.Code)
	assert.Equal(t, timber.ShipmentActive, a.Status)
}

// =============================================================================
// INTAKE
// =============================================================================

func TestIntake_MergesIdenticalSpecIntoOneLot(t *testing.T) {
	// GIVEN: A shipment holding a pine 50x150x6000 lot of 30 m3
	// WHEN: A second intake arrives with the same spec and currency
	// THEN: The existing lot grows instead of a duplicate appearing

	f := newFixture(t)
	ctx := context.Background()
	sh, lot := f.shipmentWithLot(t, "30", "900", ledger.RUB)

	again, merged, err := f.lots.Intake(ctx, timber.IntakeInput{
		ShipmentID: sh.ID,
		Spec:       timber.LotSpec{Species: "Pine", Dimensions: "50X150X6000"}, // case differs
		Quantity:   50,
		Volume:     dec("20"),
		Currency:   ledger.RUB,
		Amount:     dec("700"),
		Actor:      "test",
	})
	require.NoError(t, err)
	assert.True(t, merged)
	assert.Equal(t, lot.ID, again.ID)
	assert.True(t, again.Purchased.Equal(dec("50")))
	assert.True(t, again.PurchaseAmount.Equal(dec("1600")))
	assert.EqualValues(t, 250, again.Quantity)

	all, err := f.db.LotsByShipment(ctx, sh.ID)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestIntake_DifferentCurrencyStaysSeparate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sh, _ := f.shipmentWithLot(t, "30", "900", ledger.RUB)

	_, merged, err := f.lots.Intake(ctx, timber.IntakeInput{
		ShipmentID: sh.ID,
		Spec:       timber.LotSpec{Species: "pine", Dimensions: "50x150x6000"},
		Quantity:   50, Volume: dec("20"), Currency: ledger.USD, Amount: dec("400"),
		Actor: "test",
	})
	require.NoError(t, err)
	assert.False(t, merged, "same spec in another currency is a different purchase")

	all, err := f.db.LotsByShipment(ctx, sh.ID)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestIntake_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sh, _ := f.shipmentWithLot(t, "30", "900", ledger.RUB)

	in := timber.IntakeInput{
		ShipmentID: sh.ID,
		Spec:       timber.LotSpec{Species: "birch", Dimensions: "50x150x6000"},
		Quantity:   10, Volume: dec("5"), Currency: ledger.RUB, Amount: dec("100"),
	}

	bad := in
	bad.Volume = dec("-1")
	_, _, err := f.lots.Intake(ctx, bad)
	assert.ErrorIs(t, err, timber.ErrInvalidVolume)

	bad = in
	bad.Quantity = 0
	_, _, err = f.lots.Intake(ctx, bad)
	assert.ErrorIs(t, err, timber.ErrInvalidVolume)

	bad = in
	bad.Currency = "sum"
	_, _, err = f.lots.Intake(ctx, bad)
	assert.ErrorIs(t, err, ledger.ErrUnsupportedCurrency)

	bad = in
	bad.ShipmentID = "no-such"
	_, _, err = f.lots.Intake(ctx, bad)
	assert.ErrorIs(t, err, timber.ErrShipmentNotFound)
}

func TestIntake_ReopensFullySoldShipment(t *testing.T) {
	// GIVEN: A shipment that closed because everything sold
	// WHEN: New volume arrives
	// THEN: The rollup reopens it

	f := newFixture(t)
	ctx := context.Background()
	sh, lot := f.shipmentWithLot(t, "50", "1500", ledger.RUB)

	_, err := f.sales.Sell(ctx, timber.SellInput{
		LotID: lot.ID, ClientName: "bulk buyer",
		Volume: dec("50"), Currency: ledger.RUB, UnitPrice: dec("100"),
		Actor: "test",
	})
	require.NoError(t, err)

	closed, err := f.db.Shipment(ctx, sh.ID)
	require.NoError(t, err)
	require.Equal(t, timber.ShipmentClosed, closed.Status)

	_, _, err = f.lots.Intake(ctx, timber.IntakeInput{
		ShipmentID: sh.ID,
		Spec:       timber.LotSpec{Species: "pine", Dimensions: "50x150x6000"},
		Quantity:   10, Volume: dec("10"), Currency: ledger.RUB, Amount: dec("300"),
		Actor: "test",
	})
	require.NoError(t, err)

	reopened, err := f.db.Shipment(ctx, sh.ID)
	require.NoError(t, err)
	assert.Equal(t, timber.ShipmentActive, reopened.Status)
	assert.Empty(t, reopened.CloseReason)
	assert.Nil(t, reopened.ClosedAt)
}

// =============================================================================
// MANUAL CLOSURE
// =============================================================================

func TestCloseShipment_ManualCloseBlocksSellsAndSurvivesRecompute(t *testing.T) {
	// GIVEN: A half-sold shipment closed by hand
	// WHEN: A sell attempts it and new volume arrives
	// THEN: The sell is rejected and intake does not reopen a manual close

	f := newFixture(t)
	ctx := context.Background()
	sh, lot := f.shipmentWithLot(t, "50", "1500", ledger.RUB)

	_, err := f.sales.Sell(ctx, timber.SellInput{
		LotID: lot.ID, ClientName: "early buyer",
		Volume: dec("20"), Currency: ledger.RUB, UnitPrice: dec("100"),
		Actor: "test",
	})
	require.NoError(t, err)

	closed, err := f.lots.CloseShipment(ctx, sh.ID)
	require.NoError(t, err)
	assert.Equal(t, timber.ShipmentClosed, closed.Status)
	assert.Equal(t, timber.CloseManual, closed.CloseReason)
	require.NotNil(t, closed.ClosedAt)

	_, err = f.sales.Sell(ctx, timber.SellInput{
		LotID: lot.ID, ClientName: "late buyer",
		Volume: dec("5"), Currency: ledger.RUB, UnitPrice: dec("100"),
		Actor: "test",
	})
	assert.ErrorIs(t, err, timber.ErrShipmentClosed)

	// Intake recomputes the rollup; only fully_sold closures auto-reopen.
	_, _, err = f.lots.Intake(ctx, timber.IntakeInput{
		ShipmentID: sh.ID,
		Spec:       timber.LotSpec{Species: "pine", Dimensions: "50x150x6000"},
		Quantity:   10, Volume: dec("10"), Currency: ledger.RUB, Amount: dec("300"),
		Actor: "test",
	})
	require.NoError(t, err)

	got, err := f.db.Shipment(ctx, sh.ID)
	require.NoError(t, err)
	assert.Equal(t, timber.ShipmentClosed, got.Status)
	assert.Equal(t, timber.CloseManual, got.CloseReason)
}

func TestCloseShipment_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	empty, err := f.lots.CreateShipment(ctx, timber.ShipmentInput{Origin: "Abakan", Destination: "Tashkent", Actor: "test"})
	require.NoError(t, err)
	_, err = f.lots.CloseShipment(ctx, empty.ID)
	assert.ErrorIs(t, err, timber.ErrInvalidVolume, "a shipment without inventory stays active")

	sh, _ := f.shipmentWithLot(t, "50", "1500", ledger.RUB)
	_, err = f.lots.CloseShipment(ctx, sh.ID)
	require.NoError(t, err)
	_, err = f.lots.CloseShipment(ctx, sh.ID)
	assert.ErrorIs(t, err, timber.ErrShipmentClosed)

	_, err = f.lots.CloseShipment(ctx, "no-such")
	assert.ErrorIs(t, err, timber.ErrShipmentNotFound)
}

func TestReopenShipment_ClearsManualCloseButNotExhaustion(t *testing.T) {
	// GIVEN: A manually closed shipment with volume left
	// WHEN: It is reopened
	// THEN: It turns active; a reopened shipment with nothing left closes
	//       right back as fully sold

	f := newFixture(t)
	ctx := context.Background()
	sh, _ := f.shipmentWithLot(t, "50", "1500", ledger.RUB)

	_, err := f.lots.CloseShipment(ctx, sh.ID)
	require.NoError(t, err)

	reopened, err := f.lots.ReopenShipment(ctx, sh.ID)
	require.NoError(t, err)
	assert.Equal(t, timber.ShipmentActive, reopened.Status)
	assert.Empty(t, reopened.CloseReason)
	assert.Nil(t, reopened.ClosedAt)

	sh2, lot2 := f.shipmentWithLot(t, "30", "900", ledger.RUB)
	_, err = f.sales.Sell(ctx, timber.SellInput{
		LotID: lot2.ID, ClientName: "bulk buyer",
		Volume: dec("30"), Currency: ledger.RUB, UnitPrice: dec("100"),
		Actor: "test",
	})
	require.NoError(t, err)

	got, err := f.lots.ReopenShipment(ctx, sh2.ID)
	require.NoError(t, err)
	assert.Equal(t, timber.ShipmentClosed, got.Status)
	assert.Equal(t, timber.CloseFullySold, got.CloseReason)
}

// =============================================================================
// LOSS ADJUSTMENT
// =============================================================================

func TestRecordLoss_ReducesAvailableVolume(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, lot := f.shipmentWithLot(t, "30", "900", ledger.RUB)

	got, err := f.lots.RecordLoss(ctx, lot.ID, dec("0.4"), "forklift operator", "cracked during unloading")
	require.NoError(t, err)

	assert.True(t, got.Loss.Equal(dec("0.4")))
	assert.True(t, got.Available().Equal(dec("29.6")))
	assert.True(t, got.Remaining().Equal(dec("29.6")))
	assert.Equal(t, "forklift operator", got.LossResponsible)

	// Loss accumulates across adjustments.
	got, err = f.lots.RecordLoss(ctx, lot.ID, dec("0.6"), "", "")
	require.NoError(t, err)
	assert.True(t, got.Loss.Equal(dec("1")))
	assert.Equal(t, "forklift operator", got.LossResponsible, "blank responsible keeps the prior attribution")
}

func TestRecordLoss_BoundedByPurchasedAndDispatched(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, lot := f.shipmentWithLot(t, "30", "900", ledger.RUB)

	_, err := f.lots.RecordLoss(ctx, lot.ID, dec("31"), "", "")
	var ile *timber.InvalidLossError
	require.ErrorAs(t, err, &ile)
	assert.ErrorIs(t, err, timber.ErrInvalidVolume)

	// Dispatch 25 m3; loss may now consume at most the remaining 5.
	_, err = f.sales.Sell(ctx, timber.SellInput{
		LotID: lot.ID, ClientName: "buyer",
		Volume: dec("25"), Currency: ledger.RUB, UnitPrice: dec("100"),
		Actor: "test",
	})
	require.NoError(t, err)

	_, err = f.lots.RecordLoss(ctx, lot.ID, dec("6"), "", "")
	assert.ErrorIs(t, err, timber.ErrInvalidVolume, "loss cannot undercut dispatched volume")

	_, err = f.lots.RecordLoss(ctx, lot.ID, dec("5"), "", "")
	assert.NoError(t, err)

	_, err = f.lots.RecordLoss(ctx, lot.ID, dec("0"), "", "")
	assert.ErrorIs(t, err, timber.ErrInvalidVolume)
}

// =============================================================================
// LOT DELETION
// =============================================================================

func TestDeleteLot_OnlyWhileUntouched(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sh, lot := f.shipmentWithLot(t, "30", "900", ledger.RUB)

	// Any dispatch blocks deletion.
	_, err := f.sales.Sell(ctx, timber.SellInput{
		LotID: lot.ID, ClientName: "buyer",
		Volume: dec("5"), Currency: ledger.RUB, UnitPrice: dec("100"),
		Actor: "test",
	})
	require.NoError(t, err)
	assert.ErrorIs(t, f.lots.DeleteLot(ctx, lot.ID), timber.ErrLotHasDispatches)

	// A fresh lot deletes cleanly and drops out of the rollup.
	fresh, _, err := f.lots.Intake(ctx, timber.IntakeInput{
		ShipmentID: sh.ID,
		Spec:       timber.LotSpec{Species: "larch", Dimensions: "100x100x6000"},
		Quantity:   10, Volume: dec("12"), Currency: ledger.RUB, Amount: dec("500"),
		Actor: "test",
	})
	require.NoError(t, err)

	require.NoError(t, f.lots.DeleteLot(ctx, fresh.ID))

	gone, err := f.db.Lot(ctx, fresh.ID)
	require.NoError(t, err)
	assert.True(t, gone.Deleted)

	gotSh, err := f.db.Shipment(ctx, sh.ID)
	require.NoError(t, err)
	assert.True(t, gotSh.Rollup.TotalVolume.Equal(dec("30")))
	assert.Equal(t, 1, gotSh.Rollup.LotCount)

	assert.ErrorIs(t, f.lots.DeleteLot(ctx, fresh.ID), timber.ErrLotNotFound)
}

func TestDeleteLot_LossAlsoBlocksDeletion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, lot := f.shipmentWithLot(t, "30", "900", ledger.RUB)

	_, err := f.lots.RecordLoss(ctx, lot.ID, dec("1"), "", "")
	require.NoError(t, err)

	assert.ErrorIs(t, f.lots.DeleteLot(ctx, lot.ID), timber.ErrLotHasDispatches)
}

// =============================================================================
// LIFECYCLE EDGES
// =============================================================================

func TestLifecycle_ResidueWithinEpsilonCloses(t *testing.T) {
	// GIVEN: A 50 m3 lot with 49.9995 m3 sold
	// WHEN: The rollup recomputes
	// THEN: The 0.0005 m3 residue is within tolerance and the shipment closes

	f := newFixture(t)
	ctx := context.Background()
	sh, lot := f.shipmentWithLot(t, "50", "1500", ledger.RUB)

	_, err := f.sales.Sell(ctx, timber.SellInput{
		LotID: lot.ID, ClientName: "buyer",
		Volume: dec("49.9995"), Currency: ledger.RUB, UnitPrice: dec("100"),
		Actor: "test",
	})
	require.NoError(t, err)

	got, err := f.db.Shipment(ctx, sh.ID)
	require.NoError(t, err)
	assert.Equal(t, timber.ShipmentClosed, got.Status)
	assert.Equal(t, timber.CloseFullySold, got.CloseReason)
}

func TestLifecycle_EmptyShipmentStaysActive(t *testing.T) {
	// A shipment with no inventory has remaining == 0 but must not read as
	// fully sold.
	f := newFixture(t)
	ctx := context.Background()

	sh, err := f.lots.CreateShipment(ctx, timber.ShipmentInput{Origin: "Abakan", Destination: "Tashkent", Actor: "test"})
	require.NoError(t, err)

	got, err := f.db.Shipment(ctx, sh.ID)
	require.NoError(t, err)
	assert.Equal(t, timber.ShipmentActive, got.Status)
	assert.Empty(t, got.CloseReason)
}

func TestLifecycle_TotalLossDoesNotClose(t *testing.T) {
	// GIVEN: A lot written off entirely as warehouse loss
	// WHEN: Remaining hits zero without any dispatch
	// THEN: The shipment stays active - closure means sold, not destroyed

	f := newFixture(t)
	ctx := context.Background()
	sh, lot := f.shipmentWithLot(t, "30", "900", ledger.RUB)

	_, err := f.lots.RecordLoss(ctx, lot.ID, dec("30"), "flood", "warehouse flooding")
	require.NoError(t, err)

	got, err := f.db.Shipment(ctx, sh.ID)
	require.NoError(t, err)
	assert.Equal(t, timber.ShipmentActive, got.Status)
}

// =============================================================================
// ROLLUP FINANCIALS
// =============================================================================

func TestRollup_PerCurrencyProfitIncludesAllocatedExpenses(t *testing.T) {
	// GIVEN: A RUB lot costing 900, sales of 2000, and 300 rail freight
	//        allocated to the shipment
	// WHEN: The rollup recomputes
	// THEN: RUB profit = 2000 - (900 + 300), USD totals untouched

	f := newFixture(t)
	ctx := context.Background()
	sh, lot := f.shipmentWithLot(t, "30", "900", ledger.RUB)

	_, err := f.sales.Sell(ctx, timber.SellInput{
		LotID: lot.ID, ClientName: "buyer",
		Volume: dec("20"), Currency: ledger.RUB, UnitPrice: dec("100"),
		Paid:  dec("500"),
		Actor: "test",
	})
	require.NoError(t, err)

	_, err = f.cash.RecordEntry(ctx, timber.EntryInput{
		Type:       ledger.EntryExpenseShipment,
		Currency:   ledger.RUB,
		Amount:     dec("300"),
		ShipmentID: sh.ID,
		Notes:      "rail freight",
		Actor:      "test",
	})
	require.NoError(t, err)

	got, err := f.db.Shipment(ctx, sh.ID)
	require.NoError(t, err)

	rub := got.Rollup.ForCurrency(ledger.RUB)
	assert.True(t, rub.Cost.Equal(dec("1200")))
	assert.True(t, rub.Revenue.Equal(dec("2000")))
	assert.True(t, rub.Paid.Equal(dec("500")))
	assert.True(t, rub.Profit.Equal(dec("800")))

	usd := got.Rollup.ForCurrency(ledger.USD)
	assert.True(t, usd.Cost.IsZero())
	assert.True(t, usd.Revenue.IsZero())

	assert.True(t, got.Rollup.DispatchedVolume.Equal(dec("20")))
	assert.True(t, got.Rollup.RemainingVolume.Equal(dec("10")))
	assert.Equal(t, 1, got.Rollup.SaleCount)
}
