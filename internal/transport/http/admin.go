package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/arnaudt-bojan/stockledger/internal/app"
	"github.com/arnaudt-bojan/stockledger/internal/domain"
)

// StockAdmin is the minimal interface for seeding and restocking the ledger.
type StockAdmin interface {
	SetStockLevel(ctx context.Context, in app.SetStockLevelInput) (domain.StockLevel, error)
	ListStockLevels(ctx context.Context) ([]domain.StockLevel, error)
}

// HandleAdminStock serves PUT and GET on /admin/stock.
func HandleAdminStock(svc StockAdmin) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPut:
			handleSetStock(w, r, svc)
		case http.MethodGet:
			handleListStock(w, r, svc)
		default:
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
		}
	}
}

func handleSetStock(w http.ResponseWriter, r *http.Request, svc StockAdmin) {
	var req setStockRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
		return
	}
	if req.ProductID == "" {
		writeError(w, http.StatusBadRequest, codeProductIDRequired, "product_id is required")
		return
	}

	level, err := svc.SetStockLevel(r.Context(), app.SetStockLevelInput{
		ProductID: req.ProductID,
		VariantID: req.VariantID,
		OnHand:    req.OnHand,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(newStockLevelResponse(level))
}

func handleListStock(w http.ResponseWriter, r *http.Request, svc StockAdmin) {
	levels, err := svc.ListStockLevels(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	resp := make([]stockLevelResponse, 0, len(levels))
	for _, l := range levels {
		resp = append(resp, newStockLevelResponse(l))
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resp)
}

type setStockRequest struct {
	ProductID string `json:"product_id"`
	VariantID string `json:"variant_id"`
	OnHand    int    `json:"on_hand"`
}

type stockLevelResponse struct {
	ProductID string    `json:"product_id"`
	VariantID string    `json:"variant_id,omitempty"`
	OnHand    int       `json:"on_hand"`
	Reserved  int       `json:"reserved"`
	Available int       `json:"available"`
	UpdatedAt time.Time `json:"updated_at"`
}

func newStockLevelResponse(l domain.StockLevel) stockLevelResponse {
	return stockLevelResponse{
		ProductID: l.Key.ProductID,
		VariantID: l.Key.VariantID,
		OnHand:    l.OnHand,
		Reserved:  l.Reserved,
		Available: l.Available(),
		UpdatedAt: l.UpdatedAt,
	}
}
