package app

import (
	"context"
	"sync"
	"time"

	"github.com/arnaudt-bojan/stockledger/internal/domain"
)

// fakeStore backs both LedgerStore and ReservationStore with in-memory maps.
// TryReserve does its check-and-increment under one lock acquisition, so the
// concurrency property test exercises real interleavings.
type fakeStore struct {
	mu           sync.Mutex
	levels       map[domain.StockKey]*domain.StockLevel
	reservations map[string]*domain.Reservation

	// transitionErr, when set, is consulted per reservation id to inject
	// row-level failures (reaper partial-batch tests).
	transitionErr func(id string) error
}

func newFakeStore(levels []domain.StockLevel, reservations []domain.Reservation) *fakeStore {
	f := &fakeStore{
		levels:       make(map[domain.StockKey]*domain.StockLevel),
		reservations: make(map[string]*domain.Reservation),
	}
	for i := range levels {
		l := levels[i]
		f.levels[l.Key] = &l
	}
	for i := range reservations {
		r := reservations[i]
		f.reservations[r.ID] = &r
	}
	return f
}

func (f *fakeStore) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (f *fakeStore) TryReserve(_ context.Context, key domain.StockKey, qty int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.levels[key]
	if !ok {
		return domain.ErrStockNotFound
	}
	if l.Available() < qty {
		return &domain.InsufficientStockError{Key: key, Requested: qty, Available: l.Available()}
	}
	l.Reserved += qty
	return nil
}

func (f *fakeStore) RestoreReserved(_ context.Context, key domain.StockKey, qty int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.levels[key]
	if !ok {
		return domain.ErrStockNotFound
	}
	l.Reserved -= qty
	if l.Reserved < 0 {
		l.Reserved = 0
	}
	return nil
}

func (f *fakeStore) CommitDecrement(_ context.Context, key domain.StockKey, qty int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.levels[key]
	if !ok {
		return domain.ErrStockNotFound
	}
	l.OnHand -= qty
	l.Reserved -= qty
	return nil
}

func (f *fakeStore) Get(_ context.Context, key domain.StockKey) (domain.StockLevel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.levels[key]
	if !ok {
		return domain.StockLevel{}, domain.ErrStockNotFound
	}
	return *l, nil
}

func (f *fakeStore) Create(_ context.Context, res domain.Reservation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r := res
	f.reservations[r.ID] = &r
	return nil
}

func (f *fakeStore) GetByID(_ context.Context, id string) (domain.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.reservations[id]
	if !ok {
		return domain.Reservation{}, domain.ErrReservationNotFound
	}
	return *r, nil
}

func (f *fakeStore) GetByIDForUpdate(ctx context.Context, id string) (domain.Reservation, error) {
	return f.GetByID(ctx, id)
}

func (f *fakeStore) FindPendingExpiredBefore(_ context.Context, cutoff time.Time, limit int) ([]domain.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Reservation
	for _, r := range f.reservations {
		if len(out) >= limit {
			break
		}
		if r.Status == domain.StatusPending && !r.ExpiresAt.After(cutoff) {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *fakeStore) Transition(_ context.Context, id string, from, to domain.Status, fields domain.TransitionFields) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.transitionErr != nil {
		if err := f.transitionErr(id); err != nil {
			return false, err
		}
	}
	r, ok := f.reservations[id]
	if !ok || r.Status != from {
		return false, nil
	}
	r.Status = to
	if fields.OrderID != "" {
		r.OrderID = fields.OrderID
	}
	if fields.CommittedAt != nil {
		r.CommittedAt = fields.CommittedAt
	}
	if fields.ReleasedAt != nil {
		r.ReleasedAt = fields.ReleasedAt
	}
	return true, nil
}

func (f *fakeStore) UpdateExpiry(_ context.Context, id string, expiresAt time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.reservations[id]
	if !ok || r.Status != domain.StatusPending {
		return false, nil
	}
	r.ExpiresAt = expiresAt
	return true, nil
}

func (f *fakeStore) UpdateOwner(_ context.Context, ids []string, fromSessionID, toUserID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	moved := 0
	for _, id := range ids {
		r, ok := f.reservations[id]
		if !ok {
			continue
		}
		if r.Status != domain.StatusPending {
			continue
		}
		if r.Owner.Kind != domain.OwnerKindSession || r.Owner.Ref != fromSessionID {
			continue
		}
		r.Owner = domain.UserOwner(toUserID)
		moved++
	}
	return moved, nil
}

func (f *fakeStore) level(key domain.StockKey) domain.StockLevel {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.levels[key]
}

func (f *fakeStore) reservation(id string) domain.Reservation {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.reservations[id]
}

func (f *fakeStore) pendingCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, r := range f.reservations {
		if r.Status == domain.StatusPending {
			n++
		}
	}
	return n
}
