// Package ledger holds per-account credit balances.
//
// Every implementation must make Reserve atomic with respect to concurrent
// Reserve/Refund/TopUp calls on the same account: a balance is never
// observable below zero.
package ledger

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrInsufficientFunds is the only failure Reserve reports for a
	// reachable store. The balance is left untouched.
	ErrInsufficientFunds = errors.New("ledger: insufficient funds")

	// ErrUnavailable wraps any failure of the backing store itself.
	ErrUnavailable = errors.New("ledger: store unavailable")

	ErrInvalidAmount = errors.New("ledger: amount must be positive")
)

// Ledger is the credit store used by the dispatch engine.
//
// Refund is not idempotent: calling it twice for one reservation credits the
// account twice.
type Ledger interface {
	// Balance returns the current balance; unknown accounts have balance 0.
	Balance(ctx context.Context, account string) (int64, error)

	// Reserve debits amount. On ErrInsufficientFunds the returned balance is
	// the current (unchanged) balance.
	Reserve(ctx context.Context, account string, amount int64) (int64, error)

	// Refund credits back a previous reservation in full.
	Refund(ctx context.Context, account string, amount int64) (int64, error)

	// TopUp credits purchased or granted credits.
	TopUp(ctx context.Context, account string, amount int64) (int64, error)
}

func checkAmount(amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidAmount, amount)
	}
	return nil
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrUnavailable, op, err)
}
