package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/arnaudt-bojan/stockledger/internal/domain"
)

// ReservationActor covers the per-reservation operations forwarded by this
// layer: explicit release, expiry extension and order commit.
type ReservationActor interface {
	Release(ctx context.Context, id string) (bool, error)
	Extend(ctx context.Context, id string, ttl time.Duration) (domain.Reservation, error)
	Commit(ctx context.Context, id, orderID string) (domain.Reservation, error)
}

// HandleReservationAction routes POST /reservations/{id}/{action}.
func HandleReservationAction(svc ReservationActor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		id, action, ok := parseReservationActionPath(r.URL.Path)
		if !ok {
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
			return
		}

		switch action {
		case "release":
			handleRelease(w, r, svc, id)
		case "extend":
			handleExtend(w, r, svc, id)
		case "commit":
			handleCommit(w, r, svc, id)
		default:
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
		}
	}
}

func handleRelease(w http.ResponseWriter, r *http.Request, svc ReservationActor, id string) {
	released, err := svc.Release(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(releaseResponse{Released: released})
}

func handleExtend(w http.ResponseWriter, r *http.Request, svc ReservationActor, id string) {
	var req extendRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
		return
	}
	if req.TTLSeconds < 0 {
		writeError(w, http.StatusBadRequest, codeInvalidQuantity, "ttl_seconds must not be negative")
		return
	}

	res, err := svc.Extend(r.Context(), id, time.Duration(req.TTLSeconds)*time.Second)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(newReservationResponse(res))
}

func handleCommit(w http.ResponseWriter, r *http.Request, svc ReservationActor, id string) {
	var req commitRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
		return
	}
	if req.OrderID == "" {
		writeError(w, http.StatusBadRequest, codeOrderIDRequired, "order_id is required")
		return
	}

	res, err := svc.Commit(r.Context(), id, req.OrderID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(newReservationResponse(res))
}

func parseReservationActionPath(path string) (id, action string, ok bool) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) != 3 || parts[0] != "reservations" {
		return "", "", false
	}
	if parts[1] == "" || parts[2] == "" {
		return "", "", false
	}
	return parts[1], parts[2], true
}

type releaseResponse struct {
	Released bool `json:"released"`
}

type extendRequest struct {
	TTLSeconds int `json:"ttl_seconds"`
}

type commitRequest struct {
	OrderID string `json:"order_id"`
}
