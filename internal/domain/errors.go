package domain

import (
	"errors"
	"fmt"
)

var (
	ErrStockNotFound         = errors.New("stock level not found")
	ErrInvalidQuantity       = errors.New("invalid quantity")
	ErrInvalidOwner          = errors.New("exactly one of session or user owner must be set")
	ErrInvalidID             = errors.New("invalid id")
	ErrReservationNotFound   = errors.New("reservation not found")
	ErrReservationNotPending = errors.New("reservation is not pending")
)

// InsufficientStockError is returned when a reserve request exceeds the
// available quantity. It carries the live available count so callers can tell
// shoppers how many units they can still get.
type InsufficientStockError struct {
	Key       StockKey
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: requested %d, available %d",
		e.Key.ProductID, e.Requested, e.Available)
}

// IsInsufficientStock unwraps err as an InsufficientStockError if possible.
func IsInsufficientStock(err error) (*InsufficientStockError, bool) {
	var ise *InsufficientStockError
	if errors.As(err, &ise) {
		return ise, true
	}
	return nil, false
}
