/*
Atomic transaction runner with transient-conflict retry.

PURPOSE:
  Implements timber.DB's Atomic method: every multi-step mutation in the
  system runs through here. The callback gets a transaction-scoped
  timber.Store; on success the transaction commits, on any error it rolls
  back in full.

RETRY SEMANTICS:
  SQLite under WAL admits a single writer. A concurrent writer surfaces as
  SQLITE_BUSY or SQLITE_LOCKED - transient conditions that a fresh attempt
  will usually clear. Those are retried with bounded exponential backoff
  plus jitter. Everything else (constraint violations, domain errors from
  the callback) is returned immediately and untouched, so errors.Is checks
  upstream keep working.

  The callback therefore MUST be safe to re-execute: read state inside the
  callback, never capture pre-transaction reads.

EXHAUSTION:
  When attempts run out, the last underlying error is returned as-is. The
  caller sees the real SQLITE_BUSY, not a wrapper string.
*/
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/warp/timber-ledger/obs"
	"github.com/warp/timber-ledger/timber"
)

// RetryPolicy bounds the retry loop for transient write conflicts.
type RetryPolicy struct {
	MaxRetries   int           // additional attempts after the first
	InitialDelay time.Duration // backoff before the first retry
	MaxDelay     time.Duration // backoff cap
}

// DefaultRetryPolicy suits a single-node deployment with short
// transactions.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:   5,
		InitialDelay: 10 * time.Millisecond,
		MaxDelay:     500 * time.Millisecond,
	}
}

// WithRetryPolicy overrides the default conflict retry policy.
func (s *Store) WithRetryPolicy(p RetryPolicy) *Store {
	s.retry = p
	return s
}

// Atomic runs fn against a transaction-scoped store, committing on nil and
// rolling back otherwise. Transient write conflicts restart the whole
// callback after a backoff.
func (s *Store) Atomic(ctx context.Context, fn func(timber.Store) error) error {
	delay := s.retry.InitialDelay
	var err error
	for attempt := 0; ; attempt++ {
		err = s.attempt(ctx, fn)
		if err == nil || !isTransient(err) || attempt >= s.retry.MaxRetries {
			return err
		}
		obs.ConflictRetry()

		// Full jitter: sleep a uniform fraction of the current backoff
		// so colliding writers don't reconverge on the same instant.
		sleep := time.Duration(rand.Int63n(int64(delay) + 1))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(sleep):
		}
		delay *= 2
		if delay > s.retry.MaxDelay {
			delay = s.retry.MaxDelay
		}
	}
}

func (s *Store) attempt(ctx context.Context, fn func(timber.Store) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(&conn{q: tx}); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// isTransient reports whether err is a write conflict worth retrying.
// Domain errors and constraint violations are not.
func isTransient(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.Code == sqlite3.ErrBusy || se.Code == sqlite3.ErrLocked
	}
	return false
}
