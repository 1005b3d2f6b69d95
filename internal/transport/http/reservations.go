package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/arnaudt-bojan/stockledger/internal/app"
	"github.com/arnaudt-bojan/stockledger/internal/domain"
)

// StockReserver is the minimal interface needed to reserve stock.
type StockReserver interface {
	Reserve(ctx context.Context, in app.ReserveInput) (domain.Reservation, error)
}

// HandleReserveStock returns an HTTP handler for creating reservations.
func HandleReserveStock(svc StockReserver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		var req reserveStockRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}
		if err := req.validate(); err != nil {
			writeDomainError(w, err)
			return
		}

		res, err := svc.Reserve(r.Context(), app.ReserveInput{
			ProductID: req.ProductID,
			VariantID: req.VariantID,
			Quantity:  req.Quantity,
			Owner:     req.owner(),
			TTL:       time.Duration(req.TTLSeconds) * time.Second,
		})
		if err != nil {
			writeDomainError(w, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(newReservationResponse(res))
	}
}

type reserveStockRequest struct {
	ProductID  string `json:"product_id"`
	VariantID  string `json:"variant_id"`
	Quantity   int    `json:"quantity"`
	SessionID  string `json:"session_id"`
	UserID     string `json:"user_id"`
	TTLSeconds int    `json:"ttl_seconds"`
}

func (r reserveStockRequest) validate() error {
	if r.ProductID == "" {
		return domain.ErrInvalidID
	}
	if r.Quantity <= 0 {
		return domain.ErrInvalidQuantity
	}
	if (r.SessionID == "") == (r.UserID == "") {
		return domain.ErrInvalidOwner
	}
	return nil
}

func (r reserveStockRequest) owner() domain.Owner {
	if r.UserID != "" {
		return domain.UserOwner(r.UserID)
	}
	return domain.SessionOwner(r.SessionID)
}

type reservationResponse struct {
	ID          string     `json:"id"`
	ProductID   string     `json:"product_id"`
	VariantID   string     `json:"variant_id,omitempty"`
	Quantity    int        `json:"quantity"`
	OwnerKind   string     `json:"owner_kind"`
	OwnerRef    string     `json:"owner_ref"`
	Status      string     `json:"status"`
	OrderID     string     `json:"order_id,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	ExpiresAt   time.Time  `json:"expires_at"`
	CommittedAt *time.Time `json:"committed_at,omitempty"`
	ReleasedAt  *time.Time `json:"released_at,omitempty"`
}

func newReservationResponse(res domain.Reservation) reservationResponse {
	return reservationResponse{
		ID:          res.ID,
		ProductID:   res.ProductID,
		VariantID:   res.VariantID,
		Quantity:    res.Quantity,
		OwnerKind:   string(res.Owner.Kind),
		OwnerRef:    res.Owner.Ref,
		Status:      string(res.Status),
		OrderID:     res.OrderID,
		CreatedAt:   res.CreatedAt,
		ExpiresAt:   res.ExpiresAt,
		CommittedAt: res.CommittedAt,
		ReleasedAt:  res.ReleasedAt,
	}
}
