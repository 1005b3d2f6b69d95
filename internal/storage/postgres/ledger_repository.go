package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/arnaudt-bojan/stockledger/internal/domain"
)

// LedgerRepository owns the on_hand/reserved counters in stock_levels. Every
// counter mutation locks the row first, so concurrent writers on the same
// stock-keying-unit serialize at the database.
type LedgerRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

func NewLedgerRepository(pool *pgxpool.Pool, logger zerolog.Logger) *LedgerRepository {
	return &LedgerRepository{pool: pool, logger: logger}
}

func (r *LedgerRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.pool, fn)
}

func (r *LedgerRepository) getForUpdate(ctx context.Context, key domain.StockKey) (domain.StockLevel, error) {
	const query = `
SELECT product_id, variant_id, on_hand, reserved, updated_at
FROM stock_levels
WHERE product_id = $1 AND variant_id = $2
FOR UPDATE`

	var l domain.StockLevel
	err := r.queryRow(ctx, query, key.ProductID, key.VariantID).
		Scan(&l.Key.ProductID, &l.Key.VariantID, &l.OnHand, &l.Reserved, &l.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.StockLevel{}, domain.ErrStockNotFound
		}
		return domain.StockLevel{}, fmt.Errorf("get stock level for update: %w", err)
	}
	return l, nil
}

// TryReserve increments reserved by qty if at least qty units are available,
// otherwise it fails with InsufficientStockError carrying the live count.
// Must run inside a transaction so the row lock covers the reservation write.
func (r *LedgerRepository) TryReserve(ctx context.Context, key domain.StockKey, qty int) error {
	level, err := r.getForUpdate(ctx, key)
	if err != nil {
		return err
	}

	if level.Available() < qty {
		return &domain.InsufficientStockError{
			Key:       key,
			Requested: qty,
			Available: level.Available(),
		}
	}

	return r.setCounters(ctx, key, level.OnHand, level.Reserved+qty)
}

// RestoreReserved returns qty units from reserved to available. A caller
// accounting bug that would drive reserved negative is clamped at zero and
// logged; negative counters are never stored.
func (r *LedgerRepository) RestoreReserved(ctx context.Context, key domain.StockKey, qty int) error {
	level, err := r.getForUpdate(ctx, key)
	if err != nil {
		return err
	}

	reserved := level.Reserved - qty
	if reserved < 0 {
		r.logger.Error().
			Str("product_id", key.ProductID).
			Str("variant_id", key.VariantID).
			Int("reserved", level.Reserved).
			Int("restore_qty", qty).
			Msg("restore would drive reserved negative, clamping to zero")
		reserved = 0
	}

	return r.setCounters(ctx, key, level.OnHand, reserved)
}

// CommitDecrement converts qty reserved units into a permanent decrement:
// both on_hand and reserved drop by qty.
func (r *LedgerRepository) CommitDecrement(ctx context.Context, key domain.StockKey, qty int) error {
	level, err := r.getForUpdate(ctx, key)
	if err != nil {
		return err
	}

	onHand := level.OnHand - qty
	reserved := level.Reserved - qty
	if onHand < 0 || reserved < 0 {
		r.logger.Error().
			Str("product_id", key.ProductID).
			Str("variant_id", key.VariantID).
			Int("on_hand", level.OnHand).
			Int("reserved", level.Reserved).
			Int("commit_qty", qty).
			Msg("commit would drive counters negative, clamping to zero")
		if onHand < 0 {
			onHand = 0
		}
		if reserved < 0 {
			reserved = 0
		}
	}

	return r.setCounters(ctx, key, onHand, reserved)
}

func (r *LedgerRepository) setCounters(ctx context.Context, key domain.StockKey, onHand, reserved int) error {
	const stmt = `
UPDATE stock_levels
SET on_hand = $3, reserved = $4, updated_at = NOW()
WHERE product_id = $1 AND variant_id = $2`

	tag, err := r.exec(ctx, stmt, key.ProductID, key.VariantID, onHand, reserved)
	if err != nil {
		return fmt.Errorf("update stock counters: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrStockNotFound
	}
	return nil
}

// Get reads a stock level without locking. Slightly stale reads are fine
// here; availability checks that gate writes go through TryReserve.
func (r *LedgerRepository) Get(ctx context.Context, key domain.StockKey) (domain.StockLevel, error) {
	const query = `
SELECT product_id, variant_id, on_hand, reserved, updated_at
FROM stock_levels
WHERE product_id = $1 AND variant_id = $2`

	var l domain.StockLevel
	err := r.queryRow(ctx, query, key.ProductID, key.VariantID).
		Scan(&l.Key.ProductID, &l.Key.VariantID, &l.OnHand, &l.Reserved, &l.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.StockLevel{}, domain.ErrStockNotFound
		}
		return domain.StockLevel{}, fmt.Errorf("get stock level: %w", err)
	}
	return l, nil
}

// UpsertLevel creates the counter row for a stock-keying-unit or resets its
// on-hand quantity (restock). Reserved is never touched here; lowering
// on_hand below the current reserved count is rejected by the row constraint.
func (r *LedgerRepository) UpsertLevel(ctx context.Context, key domain.StockKey, onHand int) (domain.StockLevel, error) {
	const stmt = `
INSERT INTO stock_levels (product_id, variant_id, on_hand, reserved)
VALUES ($1, $2, $3, 0)
ON CONFLICT (product_id, variant_id)
DO UPDATE SET on_hand = EXCLUDED.on_hand, updated_at = NOW()
RETURNING product_id, variant_id, on_hand, reserved, updated_at`

	var l domain.StockLevel
	err := r.queryRow(ctx, stmt, key.ProductID, key.VariantID, onHand).
		Scan(&l.Key.ProductID, &l.Key.VariantID, &l.OnHand, &l.Reserved, &l.UpdatedAt)
	if err != nil {
		if isCheckViolation(err) {
			return domain.StockLevel{}, domain.ErrInvalidQuantity
		}
		return domain.StockLevel{}, fmt.Errorf("upsert stock level: %w", err)
	}
	return l, nil
}

func (r *LedgerRepository) ListLevels(ctx context.Context) ([]domain.StockLevel, error) {
	const query = `
SELECT product_id, variant_id, on_hand, reserved, updated_at
FROM stock_levels
ORDER BY product_id, variant_id`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list stock levels: %w", err)
	}
	defer rows.Close()

	var levels []domain.StockLevel
	for rows.Next() {
		var l domain.StockLevel
		if err := rows.Scan(&l.Key.ProductID, &l.Key.VariantID, &l.OnHand, &l.Reserved, &l.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan stock level: %w", err)
		}
		levels = append(levels, l)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate stock levels: %w", rows.Err())
	}
	return levels, nil
}

func (r *LedgerRepository) exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Exec(ctx, sql, args...)
	}
	return r.pool.Exec(ctx, sql, args...)
}

func (r *LedgerRepository) queryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if tx := txFromContext(ctx); tx != nil {
		return tx.QueryRow(ctx, sql, args...)
	}
	return r.pool.QueryRow(ctx, sql, args...)
}
