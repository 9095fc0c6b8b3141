package order

import "errors"

var (
	// ErrEmptyItems rejects a creation request with no line items.
	ErrEmptyItems = errors.New("order must contain at least one item")
	// ErrInvalidItem rejects a line with qty <= 0 or price < 0.
	ErrInvalidItem = errors.New("item quantity must be > 0 and price >= 0")
	// ErrOrderNotFound means the order id has no header row.
	ErrOrderNotFound = errors.New("order not found")
	// ErrStatusNotFound means the status id is not in the catalog.
	ErrStatusNotFound = errors.New("status not found in catalog")
	// ErrTerminalStatus guards orders already delivered or rejected.
	ErrTerminalStatus = errors.New("order is in a terminal status")
	// ErrNoNextStatus means advance mode found no configured next step.
	ErrNoNextStatus = errors.New("current status has no configured next status")
	// ErrObservationRequired enforces the non-empty observation rule.
	ErrObservationRequired = errors.New("observation must not be empty")
)
