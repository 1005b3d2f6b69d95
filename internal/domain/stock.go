package domain

import "time"

// StockKey is the (product, optional variant) pair that owns one set of
// inventory counters. An empty VariantID means product-level stock.
type StockKey struct {
	ProductID string
	VariantID string
}

// StockLevel is the counter pair for one stock-keying-unit. Available is
// always derived, never stored.
type StockLevel struct {
	Key       StockKey
	OnHand    int
	Reserved  int
	UpdatedAt time.Time
}

// Available returns the quantity safe to offer new shoppers.
func (l StockLevel) Available() int {
	return l.OnHand - l.Reserved
}

type InventoryStatus string

const (
	InventoryStatusInStock    InventoryStatus = "IN_STOCK"
	InventoryStatusLowStock   InventoryStatus = "LOW_STOCK"
	InventoryStatusOutOfStock InventoryStatus = "OUT_OF_STOCK"
)

// InventoryStatus derives the display status from the available count. The
// low-stock threshold is configuration owned by the caller, not this engine.
func (l StockLevel) InventoryStatus(lowStockThreshold int) InventoryStatus {
	available := l.Available()
	if available <= 0 {
		return InventoryStatusOutOfStock
	}
	if available < lowStockThreshold {
		return InventoryStatusLowStock
	}
	return InventoryStatusInStock
}
