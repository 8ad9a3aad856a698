package ledger

import (
	"context"
	"sync"
)

// MemoryLedger is an in-process Ledger guarded by a single mutex.
type MemoryLedger struct {
	mu       sync.Mutex
	balances map[string]int64
}

var _ Ledger = (*MemoryLedger)(nil)

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{balances: make(map[string]int64)}
}

func (l *MemoryLedger) Balance(_ context.Context, account string) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[account], nil
}

// Reserve checks and decrements under the same lock, so the balance never
// goes negative.
func (l *MemoryLedger) Reserve(_ context.Context, account string, amount int64) (int64, error) {
	if err := checkAmount(amount); err != nil {
		return 0, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	bal := l.balances[account]
	if bal < amount {
		return bal, ErrInsufficientFunds
	}
	bal -= amount
	l.balances[account] = bal
	return bal, nil
}

func (l *MemoryLedger) Refund(_ context.Context, account string, amount int64) (int64, error) {
	return l.credit(account, amount)
}

func (l *MemoryLedger) TopUp(_ context.Context, account string, amount int64) (int64, error) {
	return l.credit(account, amount)
}

func (l *MemoryLedger) credit(account string, amount int64) (int64, error) {
	if err := checkAmount(amount); err != nil {
		return 0, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.balances[account] += amount
	return l.balances[account], nil
}
