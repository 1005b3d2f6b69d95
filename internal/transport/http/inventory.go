package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/arnaudt-bojan/stockledger/internal/domain"
)

// InventoryReader is the minimal interface needed to serve stock snapshots.
type InventoryReader interface {
	GetAvailability(ctx context.Context, productID, variantID string) (domain.StockLevel, error)
}

// HandleGetInventory serves GET /inventory/{productID}?variant_id=...
// The snapshot is advisory display data; it never gates a reserve.
func HandleGetInventory(svc InventoryReader, lowStockThreshold int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		productID, ok := parseInventoryPath(r.URL.Path)
		if !ok {
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
			return
		}
		variantID := r.URL.Query().Get("variant_id")

		level, err := svc.GetAvailability(r.Context(), productID, variantID)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		resp := inventoryResponse{
			ProductID:       level.Key.ProductID,
			VariantID:       level.Key.VariantID,
			TotalStock:      level.OnHand,
			ReservedStock:   level.Reserved,
			AvailableStock:  level.Available(),
			InventoryStatus: string(level.InventoryStatus(lowStockThreshold)),
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func parseInventoryPath(path string) (string, bool) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) != 2 || parts[0] != "inventory" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

type inventoryResponse struct {
	ProductID       string `json:"product_id"`
	VariantID       string `json:"variant_id,omitempty"`
	TotalStock      int    `json:"total_stock"`
	ReservedStock   int    `json:"reserved_stock"`
	AvailableStock  int    `json:"available_stock"`
	InventoryStatus string `json:"inventory_status"`
}
