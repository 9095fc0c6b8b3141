package stock

import (
	"context"
	"fmt"
)

// Adjustment is one product's quantity delta, already collapsed so each
// product appears at most once per call.
type Adjustment struct {
	ProductID uint
	Quantity  int64
}

// InsufficientStockError reports the first product that would go negative.
// The whole batch is rejected; no partial decrement happens.
type InsufficientStockError struct {
	ProductID uint
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d", e.ProductID)
}

// Ledger is the atomic stock-adjustment primitive. Reserve decrements the
// whole batch or nothing; Release puts the same batch back, at most once
// per request id so a retried rollback never double-credits.
type Ledger interface {
	Reserve(ctx context.Context, requestID string, adjustments []Adjustment) error
	Release(ctx context.Context, requestID string, adjustments []Adjustment) (bool, error)
}
