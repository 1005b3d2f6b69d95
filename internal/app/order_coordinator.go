package app

import (
	"context"
	"fmt"

	"github.com/arnaudt-bojan/stockledger/internal/domain"
)

// OrderCoordinator converts the reservations backing a cart into permanent
// stock decrements at order placement.
type OrderCoordinator struct {
	svc *ReservationService
}

func NewOrderCoordinator(svc *ReservationService) *OrderCoordinator {
	return &OrderCoordinator{svc: svc}
}

// CommitCartResult reports how far a batch commit got. On failure, Committed
// holds the reservations already decremented; compensating for them belongs
// to the caller's order-rollback path, because a commit is a real stock
// decrement this engine must not silently undo.
type CommitCartResult struct {
	Committed []domain.Reservation
	FailedID  string
}

// CommitCart commits every reservation against orderID, stopping at the first
// failure (for example a reservation the reaper expired a moment before
// checkout completed).
func (c *OrderCoordinator) CommitCart(ctx context.Context, orderID string, reservationIDs []string) (CommitCartResult, error) {
	if orderID == "" {
		return CommitCartResult{}, domain.ErrInvalidID
	}

	var result CommitCartResult
	for _, id := range reservationIDs {
		res, err := c.svc.Commit(ctx, id, orderID)
		if err != nil {
			result.FailedID = id
			return result, fmt.Errorf("commit reservation %s for order %s: %w", id, orderID, err)
		}
		result.Committed = append(result.Committed, res)
	}
	return result, nil
}
