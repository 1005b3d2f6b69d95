package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arnaudt-bojan/stockledger/internal/domain"
)

type ReservationRepository struct {
	pool *pgxpool.Pool
}

func NewReservationRepository(pool *pgxpool.Pool) *ReservationRepository {
	return &ReservationRepository{pool: pool}
}

func (r *ReservationRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.pool, fn)
}

const reservationColumns = `id, product_id, variant_id, quantity, owner_kind, owner_ref, status, order_id, created_at, expires_at, committed_at, released_at`

func scanReservation(row pgx.Row) (domain.Reservation, error) {
	var res domain.Reservation
	var orderID *string
	err := row.Scan(
		&res.ID,
		&res.ProductID,
		&res.VariantID,
		&res.Quantity,
		&res.Owner.Kind,
		&res.Owner.Ref,
		&res.Status,
		&orderID,
		&res.CreatedAt,
		&res.ExpiresAt,
		&res.CommittedAt,
		&res.ReleasedAt,
	)
	if err != nil {
		return domain.Reservation{}, err
	}
	if orderID != nil {
		res.OrderID = *orderID
	}
	return res, nil
}

func (r *ReservationRepository) Create(ctx context.Context, res domain.Reservation) error {
	const stmt = `
INSERT INTO stock_reservations (id, product_id, variant_id, quantity, owner_kind, owner_ref, status, created_at, expires_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.exec(ctx, stmt,
		res.ID,
		res.ProductID,
		res.VariantID,
		res.Quantity,
		res.Owner.Kind,
		res.Owner.Ref,
		res.Status,
		res.CreatedAt,
		res.ExpiresAt,
	)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		if isForeignKeyViolation(err) {
			return domain.ErrStockNotFound
		}
		if isUniqueViolation(err) {
			return fmt.Errorf("create reservation: duplicate id %s", res.ID)
		}
		return fmt.Errorf("create reservation: %w", err)
	}
	return nil
}

func (r *ReservationRepository) GetByID(ctx context.Context, id string) (domain.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM stock_reservations WHERE id = $1`
	return r.get(ctx, query, id)
}

// GetByIDForUpdate locks the reservation row, serializing a user-triggered
// release/commit against a concurrent reaper sweep on the same reservation.
func (r *ReservationRepository) GetByIDForUpdate(ctx context.Context, id string) (domain.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM stock_reservations WHERE id = $1 FOR UPDATE`
	return r.get(ctx, query, id)
}

func (r *ReservationRepository) get(ctx context.Context, query, id string) (domain.Reservation, error) {
	res, err := scanReservation(r.queryRow(ctx, query, id))
	if err != nil {
		if isInvalidUUID(err) {
			return domain.Reservation{}, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return domain.Reservation{}, domain.ErrReservationNotFound
		}
		return domain.Reservation{}, fmt.Errorf("get reservation: %w", err)
	}
	return res, nil
}

// FindPendingExpiredBefore returns up to limit pending reservations whose
// expiry has passed, oldest first. This is the reaper's work queue.
func (r *ReservationRepository) FindPendingExpiredBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.Reservation, error) {
	query := `
SELECT ` + reservationColumns + `
FROM stock_reservations
WHERE status = $1 AND expires_at <= $2
ORDER BY expires_at ASC
LIMIT $3`

	rows, err := r.query(ctx, query, domain.StatusPending, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("find expired reservations: %w", err)
	}
	defer rows.Close()

	var out []domain.Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reservation: %w", err)
		}
		out = append(out, res)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate reservations: %w", rows.Err())
	}
	return out, nil
}

// Transition applies a conditional status update: it succeeds only if the
// stored status still equals from. Racing writers (reaper vs. user release)
// resolve here; the loser sees applied=false and must not touch counters.
func (r *ReservationRepository) Transition(ctx context.Context, id string, from, to domain.Status, fields domain.TransitionFields) (bool, error) {
	if !domain.CanTransition(from, to) {
		return false, fmt.Errorf("illegal reservation transition %s -> %s", from, to)
	}

	const stmt = `
UPDATE stock_reservations
SET status = $3,
    order_id = COALESCE(NULLIF($4, ''), order_id),
    committed_at = COALESCE($5, committed_at),
    released_at = COALESCE($6, released_at)
WHERE id = $1 AND status = $2`

	tag, err := r.exec(ctx, stmt, id, from, to, fields.OrderID, fields.CommittedAt, fields.ReleasedAt)
	if err != nil {
		if isInvalidUUID(err) {
			return false, domain.ErrInvalidID
		}
		return false, fmt.Errorf("transition reservation: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// UpdateExpiry pushes expires_at forward; only pending reservations qualify.
func (r *ReservationRepository) UpdateExpiry(ctx context.Context, id string, expiresAt time.Time) (bool, error) {
	const stmt = `
UPDATE stock_reservations
SET expires_at = $3
WHERE id = $1 AND status = $2`

	tag, err := r.exec(ctx, stmt, id, domain.StatusPending, expiresAt)
	if err != nil {
		if isInvalidUUID(err) {
			return false, domain.ErrInvalidID
		}
		return false, fmt.Errorf("update reservation expiry: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// UpdateOwner re-points pending reservations from a session to a user
// (guest-to-authenticated cart merge). The ledger is untouched: total
// reserved quantity does not change. Returns how many rows moved.
func (r *ReservationRepository) UpdateOwner(ctx context.Context, ids []string, fromSessionID, toUserID string) (int, error) {
	const stmt = `
UPDATE stock_reservations
SET owner_kind = $4, owner_ref = $5
WHERE id = ANY($1) AND status = $2 AND owner_kind = $3 AND owner_ref = $6`

	tag, err := r.exec(ctx, stmt, ids, domain.StatusPending, domain.OwnerKindSession, domain.OwnerKindUser, toUserID, fromSessionID)
	if err != nil {
		if isInvalidUUID(err) {
			return 0, domain.ErrInvalidID
		}
		return 0, fmt.Errorf("update reservation owner: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *ReservationRepository) exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Exec(ctx, sql, args...)
	}
	return r.pool.Exec(ctx, sql, args...)
}

func (r *ReservationRepository) queryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if tx := txFromContext(ctx); tx != nil {
		return tx.QueryRow(ctx, sql, args...)
	}
	return r.pool.QueryRow(ctx, sql, args...)
}

func (r *ReservationRepository) query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Query(ctx, sql, args...)
	}
	return r.pool.Query(ctx, sql, args...)
}
