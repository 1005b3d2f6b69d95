package http

import (
	"encoding/json"
	"net/http"

	"github.com/arnaudt-bojan/stockledger/internal/domain"
)

const (
	codeMethodNotAllowed       = "method_not_allowed"
	codeNotFound               = "not_found"
	codeInvalidRequestBody     = "invalid_request_body"
	codeInvalidID              = "invalid_id"
	codeInvalidQuantity        = "invalid_quantity"
	codeInvalidOwner           = "invalid_owner"
	codeInsufficientStock      = "insufficient_stock"
	codeStockNotFound          = "stock_not_found"
	codeReservationNotFound    = "reservation_not_found"
	codeReservationNotPending  = "reservation_not_pending"
	codeOrderIDRequired        = "order_id_required"
	codeProductIDRequired      = "product_id_required"
	codeForbidden              = "forbidden"
	codeInternalError          = "internal_error"
)

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	Available *int   `json:"available,omitempty"`
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeErrorResponse(w, status, errorResponse{Error: msg, Code: code})
}

func writeErrorResponse(w http.ResponseWriter, status int, resp errorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	payload, err := json.Marshal(resp)
	if err != nil {
		_, _ = w.Write([]byte(`{"error":"internal error","code":"internal_error"}`))
		return
	}
	_, _ = w.Write(payload)
}

// writeDomainError maps the engine's error taxonomy onto HTTP statuses.
// Recoverable conflicts (insufficient stock, lost races) are 409s the UI can
// act on; anything unrecognized is a 500.
func writeDomainError(w http.ResponseWriter, err error) {
	if ise, ok := domain.IsInsufficientStock(err); ok {
		available := ise.Available
		writeErrorResponse(w, http.StatusConflict, errorResponse{
			Error:     err.Error(),
			Code:      codeInsufficientStock,
			Available: &available,
		})
		return
	}

	switch err {
	case domain.ErrInvalidQuantity:
		writeError(w, http.StatusBadRequest, codeInvalidQuantity, err.Error())
	case domain.ErrInvalidOwner:
		writeError(w, http.StatusBadRequest, codeInvalidOwner, err.Error())
	case domain.ErrInvalidID:
		writeError(w, http.StatusBadRequest, codeInvalidID, err.Error())
	case domain.ErrStockNotFound:
		writeError(w, http.StatusNotFound, codeStockNotFound, err.Error())
	case domain.ErrReservationNotFound:
		writeError(w, http.StatusNotFound, codeReservationNotFound, err.Error())
	case domain.ErrReservationNotPending:
		writeError(w, http.StatusConflict, codeReservationNotPending, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
	}
}
