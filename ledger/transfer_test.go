package ledger_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/timber-ledger/ledger"
	"github.com/warp/timber-ledger/store/memory"
	"github.com/warp/timber-ledger/timber"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTransferLedger(t *testing.T) (*ledger.TransferLedger, *memory.Store) {
	t.Helper()
	store := memory.New()
	return ledger.NewTransferLedger(timber.LedgerRunner(store)), store
}

func fund(t *testing.T, store *memory.Store, currency ledger.Currency, amount string) {
	t.Helper()
	journal := ledger.NewJournal(store)
	_, err := journal.Append(context.Background(), ledger.Entry{
		Type:     ledger.EntryIncomeGeneral,
		Currency: currency,
		Amount:   dec(amount),
	})
	require.NoError(t, err)
}

func saveRate(t *testing.T, store *memory.Store, from, to ledger.Currency, rate string) {
	t.Helper()
	err := store.SaveRate(context.Background(), ledger.Rate{
		From: from, To: to, Value: dec(rate),
	})
	require.NoError(t, err)
}

// =============================================================================
// RATES
// =============================================================================

func TestConverter_DirectionExactLookup(t *testing.T) {
	// GIVEN: Only the usd->rub rate is stored
	// WHEN: Looking up both directions
	// THEN: usd->rub resolves, rub->usd does not (no inversion)

	store := memory.New()
	saveRate(t, store, ledger.USD, ledger.RUB, "92.5")
	conv := ledger.NewConverter(store)
	ctx := context.Background()

	rate, err := conv.Rate(ctx, ledger.USD, ledger.RUB)
	require.NoError(t, err)
	assert.True(t, rate.Equal(dec("92.5")))

	_, err = conv.Rate(ctx, ledger.RUB, ledger.USD)
	assert.ErrorIs(t, err, ledger.ErrRateNotFound)

	var rateErr *ledger.RateNotFoundError
	require.ErrorAs(t, err, &rateErr)
	assert.Equal(t, ledger.RUB, rateErr.From)
	assert.Equal(t, ledger.USD, rateErr.To)
}

func TestConverter_IdentityRate(t *testing.T) {
	store := memory.New()
	conv := ledger.NewConverter(store)

	rate, err := conv.Rate(context.Background(), ledger.USD, ledger.USD)
	require.NoError(t, err)
	assert.True(t, rate.Equal(dec("1")))
}

// =============================================================================
// TRANSFERS
// =============================================================================

func TestTransfer_PairsLegsAndSnapshotsRate(t *testing.T) {
	// GIVEN: A funded USD balance and a stored usd->rub rate
	// WHEN: Transferring 100 USD into RUB
	// THEN: Both journal legs appear with a shared transfer id, balances
	//       move by the converted amounts, and the record snapshots the rate

	transfers, store := newTransferLedger(t)
	ctx := context.Background()
	fund(t, store, ledger.USD, "500")
	saveRate(t, store, ledger.USD, ledger.RUB, "90")

	tr, err := transfers.Transfer(ctx, ledger.TransferInput{
		From: ledger.USD, To: ledger.RUB, Amount: dec("100"), Actor: "ops",
	})
	require.NoError(t, err)

	assert.True(t, tr.FromAmount.Equal(dec("100")))
	assert.True(t, tr.ToAmount.Equal(dec("9000")))
	assert.True(t, tr.Rate.Equal(dec("90")))
	assert.Equal(t, ledger.TransferCompleted, tr.Status)

	legs, err := store.Entries(ctx, ledger.Filter{TransferID: tr.ID})
	require.NoError(t, err)
	require.Len(t, legs, 2)

	journal := ledger.NewJournal(store)
	usd, err := journal.Balance(ctx, ledger.USD)
	require.NoError(t, err)
	assert.True(t, usd.Equal(dec("400")), "got %s", usd)

	rub, err := journal.Balance(ctx, ledger.RUB)
	require.NoError(t, err)
	assert.True(t, rub.Equal(dec("9000")), "got %s", rub)
}

func TestTransfer_InsufficientBalance_NothingWritten(t *testing.T) {
	// GIVEN: 50 USD on hand
	// WHEN: Transferring 100 USD
	// THEN: BalanceError with the shortfall, and the journal is untouched

	transfers, store := newTransferLedger(t)
	ctx := context.Background()
	fund(t, store, ledger.USD, "50")
	saveRate(t, store, ledger.USD, ledger.RUB, "90")

	_, err := transfers.Transfer(ctx, ledger.TransferInput{
		From: ledger.USD, To: ledger.RUB, Amount: dec("100"),
	})
	require.ErrorIs(t, err, ledger.ErrInsufficientBalance)

	var balErr *ledger.BalanceError
	require.ErrorAs(t, err, &balErr)
	assert.True(t, balErr.Available.Equal(dec("50")))
	assert.True(t, balErr.Requested.Equal(dec("100")))

	entries, err := store.Entries(ctx, ledger.Filter{Currency: ledger.USD})
	require.NoError(t, err)
	assert.Len(t, entries, 1, "only the funding entry")

	trs, err := store.Transfers(ctx)
	require.NoError(t, err)
	assert.Empty(t, trs)
}

func TestVoidTransfer_RestoresBothBalances(t *testing.T) {
	// GIVEN: A completed 100 USD -> 9000 RUB transfer
	// WHEN: The transfer is voided
	// THEN: Both legs are voided, balances return to the pre-transfer
	//       state, and the record flips to voided

	transfers, store := newTransferLedger(t)
	ctx := context.Background()
	fund(t, store, ledger.USD, "500")
	saveRate(t, store, ledger.USD, ledger.RUB, "90")

	tr, err := transfers.Transfer(ctx, ledger.TransferInput{
		From: ledger.USD, To: ledger.RUB, Amount: dec("100"), Actor: "ops",
	})
	require.NoError(t, err)

	voided, err := transfers.VoidTransfer(ctx, tr.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.TransferVoided, voided.Status)

	journal := ledger.NewJournal(store)
	usd, err := journal.Balance(ctx, ledger.USD)
	require.NoError(t, err)
	assert.True(t, usd.Equal(dec("500")), "got %s", usd)

	rub, err := journal.Balance(ctx, ledger.RUB)
	require.NoError(t, err)
	assert.True(t, rub.IsZero(), "got %s", rub)

	live, err := store.Entries(ctx, ledger.Filter{TransferID: tr.ID})
	require.NoError(t, err)
	assert.Empty(t, live, "both legs are voided")

	all, err := store.Entries(ctx, ledger.Filter{TransferID: tr.ID, IncludeDeleted: true})
	require.NoError(t, err)
	assert.Len(t, all, 2, "the rows remain")

	got, err := store.Transfer(ctx, tr.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.TransferVoided, got.Status)
}

func TestVoidTransfer_MissingOrAlreadyVoided(t *testing.T) {
	transfers, store := newTransferLedger(t)
	ctx := context.Background()
	fund(t, store, ledger.USD, "500")
	saveRate(t, store, ledger.USD, ledger.RUB, "90")

	_, err := transfers.VoidTransfer(ctx, "no-such")
	assert.ErrorIs(t, err, ledger.ErrTransferNotFound)

	tr, err := transfers.Transfer(ctx, ledger.TransferInput{
		From: ledger.USD, To: ledger.RUB, Amount: dec("100"),
	})
	require.NoError(t, err)

	_, err = transfers.VoidTransfer(ctx, tr.ID)
	require.NoError(t, err)
	_, err = transfers.VoidTransfer(ctx, tr.ID)
	assert.ErrorIs(t, err, ledger.ErrTransferNotFound)
}

func TestTransfer_MissingRate_Fails(t *testing.T) {
	transfers, store := newTransferLedger(t)
	fund(t, store, ledger.USD, "500")

	_, err := transfers.Transfer(context.Background(), ledger.TransferInput{
		From: ledger.USD, To: ledger.RUB, Amount: dec("100"),
	})
	assert.ErrorIs(t, err, ledger.ErrRateNotFound)
}

func TestTransfer_InputValidation(t *testing.T) {
	transfers, _ := newTransferLedger(t)
	ctx := context.Background()

	_, err := transfers.Transfer(ctx, ledger.TransferInput{
		From: ledger.USD, To: ledger.USD, Amount: dec("100"),
	})
	assert.ErrorIs(t, err, ledger.ErrSameCurrency)

	_, err = transfers.Transfer(ctx, ledger.TransferInput{
		From: ledger.USD, To: "eur", Amount: dec("100"),
	})
	assert.ErrorIs(t, err, ledger.ErrUnsupportedCurrency)

	_, err = transfers.Transfer(ctx, ledger.TransferInput{
		From: ledger.USD, To: ledger.RUB, Amount: dec("0"),
	})
	assert.ErrorIs(t, err, ledger.ErrInvalidAmount)
}
