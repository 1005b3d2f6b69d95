package app

import (
	"context"
	"errors"

	"github.com/arnaudt-bojan/stockledger/internal/domain"
)

// CartItem is the slice of a cart line item this engine cares about. The cart
// itself is owned elsewhere; ReservationID is the 1:1 back-reference to the
// reservation backing the line.
type CartItem struct {
	ProductID     string
	VariantID     string
	Quantity      int
	Owner         domain.Owner
	ReservationID string
}

// CartBridge maps cart line items to reservations. Quantity edits are always
// release-old plus reserve-new: the ledger's reserve and release primitives
// are the only consistency-guaranteed operations, so no in-place quantity
// mutation is offered.
type CartBridge struct {
	svc *ReservationService
}

func NewCartBridge(svc *ReservationService) *CartBridge {
	return &CartBridge{svc: svc}
}

// EnsureReservation returns a pending reservation backing the cart item,
// reusing the item's existing reservation when it still matches. Callers must
// always reconcile against the item's last-known reservation id; reserving
// blindly after a timeout could create a second hold for the same line.
func (b *CartBridge) EnsureReservation(ctx context.Context, item CartItem) (domain.Reservation, error) {
	if item.ReservationID != "" {
		existing, err := b.svc.GetReservation(ctx, item.ReservationID)
		switch {
		case err == nil:
			now := b.svc.clock.Now()
			if existing.Status == domain.StatusPending && !existing.Expired(now) {
				if existing.Quantity == item.Quantity {
					return existing, nil
				}
				return b.AdjustReservation(ctx, item, item.Quantity)
			}
			// Terminal or lapsed: fall through and reserve fresh.
		case errors.Is(err, domain.ErrReservationNotFound):
			// Stale back-reference, reserve fresh.
		default:
			return domain.Reservation{}, err
		}
	}

	return b.svc.Reserve(ctx, ReserveInput{
		ProductID: item.ProductID,
		VariantID: item.VariantID,
		Quantity:  item.Quantity,
		Owner:     item.Owner,
	})
}

// AdjustReservation replaces the item's reservation with one for newQuantity.
// The old hold is released first so that shrinking a hold never fails for
// units the shopper already had.
func (b *CartBridge) AdjustReservation(ctx context.Context, item CartItem, newQuantity int) (domain.Reservation, error) {
	if newQuantity <= 0 {
		return domain.Reservation{}, domain.ErrInvalidQuantity
	}

	if item.ReservationID != "" {
		if _, err := b.svc.Release(ctx, item.ReservationID); err != nil && !errors.Is(err, domain.ErrReservationNotFound) {
			return domain.Reservation{}, err
		}
	}

	return b.svc.Reserve(ctx, ReserveInput{
		ProductID: item.ProductID,
		VariantID: item.VariantID,
		Quantity:  newQuantity,
		Owner:     item.Owner,
	})
}

// ReleaseReservation frees the hold backing a removed cart item. A missing or
// already-terminal reservation is a successful no-op.
func (b *CartBridge) ReleaseReservation(ctx context.Context, item CartItem) error {
	if item.ReservationID == "" {
		return nil
	}
	if _, err := b.svc.Release(ctx, item.ReservationID); err != nil && !errors.Is(err, domain.ErrReservationNotFound) {
		return err
	}
	return nil
}

// MigrateOwnership re-owns pending reservations during a guest-to-user cart
// merge. Only the owner changes; per-key reserved totals stay identical.
func (b *CartBridge) MigrateOwnership(ctx context.Context, reservationIDs []string, fromSessionID, toUserID string) (int, error) {
	return b.svc.MigrateOwnership(ctx, reservationIDs, fromSessionID, toUserID)
}
