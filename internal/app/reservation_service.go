package app

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/arnaudt-bojan/stockledger/internal/clock"
	"github.com/arnaudt-bojan/stockledger/internal/domain"
	"github.com/arnaudt-bojan/stockledger/internal/metrics"
)

// LedgerStore is the counter side of the engine. Implementations must
// serialize mutations per stock-keying-unit (row lock or equivalent); no
// caller may read-modify-write the counters outside of it.
type LedgerStore interface {
	TryReserve(ctx context.Context, key domain.StockKey, qty int) error
	RestoreReserved(ctx context.Context, key domain.StockKey, qty int) error
	CommitDecrement(ctx context.Context, key domain.StockKey, qty int) error
	Get(ctx context.Context, key domain.StockKey) (domain.StockLevel, error)
}

// ReservationStore persists reservation rows. Transition is a conditional
// update: it applies only if the stored status still equals from.
type ReservationStore interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	Create(ctx context.Context, res domain.Reservation) error
	GetByID(ctx context.Context, id string) (domain.Reservation, error)
	GetByIDForUpdate(ctx context.Context, id string) (domain.Reservation, error)
	FindPendingExpiredBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.Reservation, error)
	Transition(ctx context.Context, id string, from, to domain.Status, fields domain.TransitionFields) (bool, error)
	UpdateExpiry(ctx context.Context, id string, expiresAt time.Time) (bool, error)
	UpdateOwner(ctx context.Context, ids []string, fromSessionID, toUserID string) (int, error)
}

const defaultHoldTTL = 15 * time.Minute

// ReservationService coordinates the ledger counters and reservation rows.
// Every mutating operation runs both writes in a single transaction, which is
// what keeps reserved equal to the sum of pending quantities at all times.
type ReservationService struct {
	ledger  LedgerStore
	store   ReservationStore
	clock   clock.Clock
	metrics *metrics.Metrics
	holdTTL time.Duration
}

func NewReservationService(ledger LedgerStore, store ReservationStore, clk clock.Clock, m *metrics.Metrics, opts ...ReservationServiceOption) *ReservationService {
	svc := &ReservationService{
		ledger:  ledger,
		store:   store,
		clock:   clk,
		metrics: m,
		holdTTL: defaultHoldTTL,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

type ReservationServiceOption func(*ReservationService)

// WithHoldTTL overrides the default TTL for new reservations.
func WithHoldTTL(d time.Duration) ReservationServiceOption {
	return func(s *ReservationService) {
		if d > 0 {
			s.holdTTL = d
		}
	}
}

type ReserveInput struct {
	ProductID string
	VariantID string
	Quantity  int
	Owner     domain.Owner
	TTL       time.Duration
}

// Reserve places a temporary hold on stock. On insufficient stock the
// returned error carries the live available count and no row is written.
func (s *ReservationService) Reserve(ctx context.Context, in ReserveInput) (domain.Reservation, error) {
	if in.ProductID == "" {
		return domain.Reservation{}, domain.ErrInvalidID
	}
	if in.Quantity <= 0 {
		return domain.Reservation{}, domain.ErrInvalidQuantity
	}
	if err := in.Owner.Validate(); err != nil {
		return domain.Reservation{}, err
	}

	ttl := in.TTL
	if ttl <= 0 {
		ttl = s.holdTTL
	}

	now := s.clock.Now()
	key := domain.StockKey{ProductID: in.ProductID, VariantID: in.VariantID}
	res := domain.Reservation{
		ID:        uuid.NewString(),
		ProductID: in.ProductID,
		VariantID: in.VariantID,
		Quantity:  in.Quantity,
		Owner:     in.Owner,
		Status:    domain.StatusPending,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}

	err := s.store.WithTx(ctx, func(txCtx context.Context) error {
		if err := s.ledger.TryReserve(txCtx, key, in.Quantity); err != nil {
			return err
		}
		return s.store.Create(txCtx, res)
	})
	if err != nil {
		if _, ok := domain.IsInsufficientStock(err); ok {
			s.metrics.ReserveRejected.Inc()
		}
		return domain.Reservation{}, err
	}

	s.metrics.ReservationsCreated.Inc()
	return res, nil
}

// Release returns a pending reservation's quantity to availability. Calling
// it on an already-terminal reservation is a successful no-op, so flaky
// client retries are safe and counters are never double-adjusted.
func (s *ReservationService) Release(ctx context.Context, id string) (bool, error) {
	now := s.clock.Now()

	err := s.store.WithTx(ctx, func(txCtx context.Context) error {
		res, err := s.store.GetByIDForUpdate(txCtx, id)
		if err != nil {
			return err
		}
		if res.Status.IsTerminal() {
			return nil
		}

		if err := s.ledger.RestoreReserved(txCtx, res.Key(), res.Quantity); err != nil {
			return err
		}
		applied, err := s.store.Transition(txCtx, id, domain.StatusPending, domain.StatusReleased, domain.TransitionFields{ReleasedAt: &now})
		if err != nil {
			return err
		}
		if !applied {
			// The row is locked, so a lost conditional update means the
			// stored status disagrees with what we just read.
			return domain.ErrReservationNotPending
		}

		s.metrics.ReservationsFreed.WithLabelValues("released").Inc()
		return nil
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

// Commit converts a pending reservation into a permanent stock decrement tied
// to orderID. Unlike Release this is single-shot: committing a non-pending or
// lapsed reservation is a hard conflict, because it would either decrement
// physical stock twice or attach an order to a hold the shopper no longer has.
func (s *ReservationService) Commit(ctx context.Context, id, orderID string) (domain.Reservation, error) {
	if orderID == "" {
		return domain.Reservation{}, domain.ErrInvalidID
	}

	now := s.clock.Now()
	var result domain.Reservation

	err := s.store.WithTx(ctx, func(txCtx context.Context) error {
		res, err := s.store.GetByIDForUpdate(txCtx, id)
		if err != nil {
			return err
		}
		if res.Status != domain.StatusPending || res.Expired(now) {
			return domain.ErrReservationNotPending
		}

		if err := s.ledger.CommitDecrement(txCtx, res.Key(), res.Quantity); err != nil {
			return err
		}
		applied, err := s.store.Transition(txCtx, id, domain.StatusPending, domain.StatusCommitted, domain.TransitionFields{
			OrderID:     orderID,
			CommittedAt: &now,
		})
		if err != nil {
			return err
		}
		if !applied {
			return domain.ErrReservationNotPending
		}

		res.Status = domain.StatusCommitted
		res.OrderID = orderID
		res.CommittedAt = &now
		result = res
		return nil
	})
	if err != nil {
		return domain.Reservation{}, err
	}

	s.metrics.CommitsApplied.Inc()
	return result, nil
}

// Extend pushes a pending reservation's expiry to now+ttl, for checkouts that
// outlast the default hold window.
func (s *ReservationService) Extend(ctx context.Context, id string, ttl time.Duration) (domain.Reservation, error) {
	if ttl <= 0 {
		ttl = s.holdTTL
	}

	now := s.clock.Now()
	var result domain.Reservation

	err := s.store.WithTx(ctx, func(txCtx context.Context) error {
		res, err := s.store.GetByIDForUpdate(txCtx, id)
		if err != nil {
			return err
		}
		if res.Status != domain.StatusPending {
			return domain.ErrReservationNotPending
		}

		expiresAt := now.Add(ttl)
		applied, err := s.store.UpdateExpiry(txCtx, id, expiresAt)
		if err != nil {
			return err
		}
		if !applied {
			return domain.ErrReservationNotPending
		}

		res.ExpiresAt = expiresAt
		result = res
		return nil
	})
	if err != nil {
		return domain.Reservation{}, err
	}
	return result, nil
}

// GetReservation reads a reservation without locking.
func (s *ReservationService) GetReservation(ctx context.Context, id string) (domain.Reservation, error) {
	return s.store.GetByID(ctx, id)
}

// GetAvailability returns an advisory snapshot of the counters for one
// stock-keying-unit. It does not lock and must not be used to gate a reserve.
func (s *ReservationService) GetAvailability(ctx context.Context, productID, variantID string) (domain.StockLevel, error) {
	if productID == "" {
		return domain.StockLevel{}, domain.ErrInvalidID
	}
	return s.ledger.Get(ctx, domain.StockKey{ProductID: productID, VariantID: variantID})
}

// MigrateOwnership re-points pending reservations from a session to a user
// during a guest-to-authenticated cart merge. Reserved totals are unchanged,
// so the ledger is never touched.
func (s *ReservationService) MigrateOwnership(ctx context.Context, ids []string, fromSessionID, toUserID string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	if fromSessionID == "" || toUserID == "" {
		return 0, domain.ErrInvalidOwner
	}
	return s.store.UpdateOwner(ctx, ids, fromSessionID, toUserID)
}

// ExpireOne transitions a single lapsed pending reservation to expired and
// restores its quantity, in one transaction. It reports false without error
// when the reservation was already terminal or is not yet due: a concurrent
// release simply loses the conditional transition and is skipped.
func (s *ReservationService) ExpireOne(ctx context.Context, id string) (bool, error) {
	now := s.clock.Now()
	expired := false

	err := s.store.WithTx(ctx, func(txCtx context.Context) error {
		res, err := s.store.GetByIDForUpdate(txCtx, id)
		if err != nil {
			return err
		}
		if res.Status != domain.StatusPending || !res.Expired(now) {
			return nil
		}

		if err := s.ledger.RestoreReserved(txCtx, res.Key(), res.Quantity); err != nil {
			return err
		}
		applied, err := s.store.Transition(txCtx, id, domain.StatusPending, domain.StatusExpired, domain.TransitionFields{ReleasedAt: &now})
		if err != nil {
			return err
		}
		if !applied {
			return domain.ErrReservationNotPending
		}

		expired = true
		s.metrics.ReservationsFreed.WithLabelValues("expired").Inc()
		return nil
	})
	if err != nil {
		return false, err
	}
	return expired, nil
}

// FindDue returns reservations the reaper should expire, oldest first.
func (s *ReservationService) FindDue(ctx context.Context, limit int) ([]domain.Reservation, error) {
	return s.store.FindPendingExpiredBefore(ctx, s.clock.Now(), limit)
}
