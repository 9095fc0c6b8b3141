package stock

import (
	"context"
	"sync"
)

// MemoryLedger is an in-process Ledger with the same contract as the
// Redis one: all-or-nothing reserve, once-per-request release. Used by
// tests and single-node setups without Redis.
type MemoryLedger struct {
	mu       sync.Mutex
	balances map[uint]int64
	released map[string]bool
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		balances: make(map[uint]int64),
		released: make(map[string]bool),
	}
}

// Set seeds a product balance.
func (l *MemoryLedger) Set(productID uint, quantity int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[productID] = quantity
}

// Balance returns the current balance; missing products read as zero.
func (l *MemoryLedger) Balance(productID uint) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[productID]
}

func (l *MemoryLedger) Reserve(ctx context.Context, requestID string, adjustments []Adjustment) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, a := range adjustments {
		if l.balances[a.ProductID] < a.Quantity {
			return &InsufficientStockError{ProductID: a.ProductID}
		}
	}
	for _, a := range adjustments {
		l.balances[a.ProductID] -= a.Quantity
	}
	return nil
}

func (l *MemoryLedger) Release(ctx context.Context, requestID string, adjustments []Adjustment) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.released[requestID] {
		return false, nil
	}
	l.released[requestID] = true
	for _, a := range adjustments {
		l.balances[a.ProductID] += a.Quantity
	}
	return true, nil
}
