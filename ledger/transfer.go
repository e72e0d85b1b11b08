/*
transfer.go - Currency transfer ledger

PURPOSE:
  Moves a balance from one currency to the other. A transfer snapshots the
  rate at execution time, checks the source balance computed fresh from the
  journal, and writes three records atomically: a transfer_out leg, a
  transfer_in leg, and the Transfer record pairing them.

BALANCE INVARIANT:
  After transfer(A, B, x) succeeds, balance(A) has decreased by exactly x
  and balance(B) has increased by exactly x * rate(A, B). If balance(A) < x
  beforehand the operation fails with no partial entries.
*/
package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransferInput describes one requested currency transfer.
type TransferInput struct {
	From   Currency
	To     Currency
	Amount decimal.Decimal
	Actor  string
	Notes  string
}

// TransferLedger converts balances between the two supported currencies.
// All writes go through the Runner; the service never manages its own
// transaction lifecycle.
type TransferLedger struct {
	run Runner
	now func() time.Time
}

// NewTransferLedger creates a transfer ledger over the atomic runner.
func NewTransferLedger(run Runner) *TransferLedger {
	return &TransferLedger{run: run, now: func() time.Time { return time.Now().UTC() }}
}

// Transfer executes one currency transfer atomically.
//
// Failure set: ErrSameCurrency, ErrInvalidAmount, ErrUnsupportedCurrency,
// RateNotFoundError, BalanceError. Any failure leaves no partial entries.
func (t *TransferLedger) Transfer(ctx context.Context, in TransferInput) (*Transfer, error) {
	if in.From == in.To {
		return nil, ErrSameCurrency
	}
	if !in.From.Supported() || !in.To.Supported() {
		return nil, ErrUnsupportedCurrency
	}
	if !in.Amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	var out *Transfer
	err := t.run.Atomic(ctx, func(s Store) error {
		rate, err := NewConverter(s).Rate(ctx, in.From, in.To)
		if err != nil {
			return err
		}
		toAmount := in.Amount.Mul(rate)

		// Balance is computed fresh inside the transaction, never from a
		// value read earlier in the request.
		balance, err := NewJournal(s).Balance(ctx, in.From)
		if err != nil {
			return err
		}
		if balance.LessThan(in.Amount) {
			return &BalanceError{Currency: in.From, Available: balance, Requested: in.Amount}
		}

		now := t.now()
		transferID := uuid.NewString()
		legOut := &Entry{
			ID:           uuid.NewString(),
			Type:         EntryTransferOut,
			Currency:     in.From,
			Amount:       in.Amount,
			TransferID:   transferID,
			Notes:        in.Notes,
			TransactedAt: now,
			CreatedBy:    in.Actor,
			CreatedAt:    now,
		}
		legIn := &Entry{
			ID:           uuid.NewString(),
			Type:         EntryTransferIn,
			Currency:     in.To,
			Amount:       toAmount,
			TransferID:   transferID,
			Notes:        in.Notes,
			TransactedAt: now,
			CreatedBy:    in.Actor,
			CreatedAt:    now,
		}
		if err := s.AppendEntry(ctx, legOut); err != nil {
			return err
		}
		if err := s.AppendEntry(ctx, legIn); err != nil {
			return err
		}

		out = &Transfer{
			ID:           transferID,
			FromCurrency: in.From,
			ToCurrency:   in.To,
			FromAmount:   in.Amount,
			ToAmount:     toAmount,
			Rate:         rate,
			OutEntryID:   legOut.ID,
			InEntryID:    legIn.ID,
			Status:       TransferCompleted,
			Notes:        in.Notes,
			CreatedBy:    in.Actor,
			CreatedAt:    now,
		}
		return s.SaveTransfer(ctx, out)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// VoidTransfer reverses a completed transfer: both legs are voided and the
// transfer record flips to voided, restoring the balances the transfer
// moved. A transfer that is already voided behaves like a missing one.
func (t *TransferLedger) VoidTransfer(ctx context.Context, id string) (*Transfer, error) {
	var out *Transfer
	err := t.run.Atomic(ctx, func(s Store) error {
		tr, err := s.Transfer(ctx, id)
		if err != nil {
			return err
		}
		if tr.Status == TransferVoided {
			return ErrTransferNotFound
		}
		if err := s.VoidEntry(ctx, tr.OutEntryID); err != nil {
			return err
		}
		if err := s.VoidEntry(ctx, tr.InEntryID); err != nil {
			return err
		}
		tr.Status = TransferVoided
		if err := s.SaveTransfer(ctx, tr); err != nil {
			return err
		}
		out = tr
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
