package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/arnaudt-bojan/stockledger/internal/domain"
	"github.com/arnaudt-bojan/stockledger/internal/testutil"
)

func TestReservationRepository_CreateAndGet(t *testing.T) {
	pool := testutil.NewTestPool(t)
	ctx := context.Background()
	testutil.ApplyMigrations(t, ctx, pool)
	testutil.TruncateAll(t, ctx, pool)

	repo := NewReservationRepository(pool)
	key := domain.StockKey{ProductID: "prod-1", VariantID: "red"}
	testutil.InsertStockLevel(t, ctx, pool, key, 5, 0)

	now := time.Date(2025, 1, 4, 10, 0, 0, 0, time.UTC)
	res := domain.Reservation{
		ID:        uuid.NewString(),
		ProductID: key.ProductID,
		VariantID: key.VariantID,
		Quantity:  2,
		Owner:     domain.SessionOwner("sess-1"),
		Status:    domain.StatusPending,
		CreatedAt: now,
		ExpiresAt: now.Add(15 * time.Minute),
	}
	if err := repo.Create(ctx, res); err != nil {
		t.Fatalf("create reservation: %v", err)
	}

	got, err := repo.GetByID(ctx, res.ID)
	if err != nil {
		t.Fatalf("get reservation: %v", err)
	}
	if got.ProductID != key.ProductID || got.VariantID != key.VariantID {
		t.Fatalf("expected key %s/%s, got %s/%s", key.ProductID, key.VariantID, got.ProductID, got.VariantID)
	}
	if got.Owner != domain.SessionOwner("sess-1") {
		t.Fatalf("expected session owner, got %+v", got.Owner)
	}
	if got.Status != domain.StatusPending {
		t.Fatalf("expected pending, got %s", got.Status)
	}
	if got.OrderID != "" || got.CommittedAt != nil || got.ReleasedAt != nil {
		t.Fatalf("expected empty transition fields, got %+v", got)
	}
}

func TestReservationRepository_Create_UnknownStock(t *testing.T) {
	pool := testutil.NewTestPool(t)
	ctx := context.Background()
	testutil.ApplyMigrations(t, ctx, pool)
	testutil.TruncateAll(t, ctx, pool)

	repo := NewReservationRepository(pool)
	res := domain.Reservation{
		ID:        uuid.NewString(),
		ProductID: "missing",
		Quantity:  1,
		Owner:     domain.SessionOwner("sess-1"),
		Status:    domain.StatusPending,
		CreatedAt: time.Now().UTC(),
		ExpiresAt: time.Now().UTC().Add(time.Minute),
	}

	if err := repo.Create(ctx, res); !errors.Is(err, domain.ErrStockNotFound) {
		t.Fatalf("expected ErrStockNotFound, got %v", err)
	}
}

func TestReservationRepository_Get_InvalidID(t *testing.T) {
	pool := testutil.NewTestPool(t)
	ctx := context.Background()
	testutil.ApplyMigrations(t, ctx, pool)
	testutil.TruncateAll(t, ctx, pool)

	repo := NewReservationRepository(pool)

	if _, err := repo.GetByID(ctx, "not-a-uuid"); !errors.Is(err, domain.ErrInvalidID) {
		t.Fatalf("expected ErrInvalidID, got %v", err)
	}
	if _, err := repo.GetByID(ctx, uuid.NewString()); !errors.Is(err, domain.ErrReservationNotFound) {
		t.Fatalf("expected ErrReservationNotFound, got %v", err)
	}
}

func TestReservationRepository_Transition_Conditional(t *testing.T) {
	pool := testutil.NewTestPool(t)
	ctx := context.Background()
	testutil.ApplyMigrations(t, ctx, pool)
	testutil.TruncateAll(t, ctx, pool)

	repo := NewReservationRepository(pool)
	key := domain.StockKey{ProductID: "prod-1"}
	testutil.InsertStockLevel(t, ctx, pool, key, 5, 2)

	now := time.Date(2025, 1, 4, 10, 0, 0, 0, time.UTC)
	id := testutil.InsertReservation(t, ctx, pool, domain.Reservation{
		ProductID: key.ProductID,
		Quantity:  2,
		Owner:     domain.UserOwner("user-1"),
		Status:    domain.StatusPending,
		ExpiresAt: now.Add(15 * time.Minute),
	})

	applied, err := repo.Transition(ctx, id, domain.StatusPending, domain.StatusCommitted, domain.TransitionFields{
		OrderID:     "order-1",
		CommittedAt: &now,
	})
	if err != nil {
		t.Fatalf("transition: %v", err)
	}
	if !applied {
		t.Fatalf("expected transition to apply")
	}

	got, err := repo.GetByID(ctx, id)
	if err != nil {
		t.Fatalf("get reservation: %v", err)
	}
	if got.Status != domain.StatusCommitted || got.OrderID != "order-1" {
		t.Fatalf("expected committed with order-1, got %s/%s", got.Status, got.OrderID)
	}
	if got.CommittedAt == nil || !got.CommittedAt.Equal(now) {
		t.Fatalf("expected committed_at %v, got %v", now, got.CommittedAt)
	}

	applied, err = repo.Transition(ctx, id, domain.StatusPending, domain.StatusReleased, domain.TransitionFields{ReleasedAt: &now})
	if err != nil {
		t.Fatalf("transition: %v", err)
	}
	if applied {
		t.Fatalf("expected lost race to report applied=false")
	}
}

func TestReservationRepository_Transition_IllegalPair(t *testing.T) {
	pool := testutil.NewTestPool(t)
	ctx := context.Background()
	testutil.ApplyMigrations(t, ctx, pool)
	testutil.TruncateAll(t, ctx, pool)

	repo := NewReservationRepository(pool)

	if _, err := repo.Transition(ctx, uuid.NewString(), domain.StatusCommitted, domain.StatusPending, domain.TransitionFields{}); err == nil {
		t.Fatalf("expected error for illegal transition")
	}
}

func TestReservationRepository_FindPendingExpiredBefore(t *testing.T) {
	pool := testutil.NewTestPool(t)
	ctx := context.Background()
	testutil.ApplyMigrations(t, ctx, pool)
	testutil.TruncateAll(t, ctx, pool)

	repo := NewReservationRepository(pool)
	key := domain.StockKey{ProductID: "prod-1"}
	testutil.InsertStockLevel(t, ctx, pool, key, 10, 0)

	now := time.Date(2025, 1, 4, 10, 0, 0, 0, time.UTC)
	oldest := testutil.InsertReservation(t, ctx, pool, domain.Reservation{
		ProductID: key.ProductID, Quantity: 1,
		Owner: domain.SessionOwner("s1"), Status: domain.StatusPending,
		ExpiresAt: now.Add(-10 * time.Minute),
	})
	newerDue := testutil.InsertReservation(t, ctx, pool, domain.Reservation{
		ProductID: key.ProductID, Quantity: 1,
		Owner: domain.SessionOwner("s2"), Status: domain.StatusPending,
		ExpiresAt: now.Add(-1 * time.Minute),
	})
	testutil.InsertReservation(t, ctx, pool, domain.Reservation{
		ProductID: key.ProductID, Quantity: 1,
		Owner: domain.SessionOwner("s3"), Status: domain.StatusPending,
		ExpiresAt: now.Add(10 * time.Minute),
	})
	testutil.InsertReservation(t, ctx, pool, domain.Reservation{
		ProductID: key.ProductID, Quantity: 1,
		Owner: domain.SessionOwner("s4"), Status: domain.StatusReleased,
		ExpiresAt: now.Add(-20 * time.Minute),
	})

	due, err := repo.FindPendingExpiredBefore(ctx, now, 10)
	if err != nil {
		t.Fatalf("find due: %v", err)
	}
	if len(due) != 2 {
		t.Fatalf("expected 2 due reservations, got %d", len(due))
	}
	if due[0].ID != oldest || due[1].ID != newerDue {
		t.Fatalf("expected oldest-first ordering, got %s then %s", due[0].ID, due[1].ID)
	}

	limited, err := repo.FindPendingExpiredBefore(ctx, now, 1)
	if err != nil {
		t.Fatalf("find due limited: %v", err)
	}
	if len(limited) != 1 || limited[0].ID != oldest {
		t.Fatalf("expected only oldest within limit, got %+v", limited)
	}
}

func TestReservationRepository_UpdateExpiry(t *testing.T) {
	pool := testutil.NewTestPool(t)
	ctx := context.Background()
	testutil.ApplyMigrations(t, ctx, pool)
	testutil.TruncateAll(t, ctx, pool)

	repo := NewReservationRepository(pool)
	key := domain.StockKey{ProductID: "prod-1"}
	testutil.InsertStockLevel(t, ctx, pool, key, 5, 0)

	now := time.Date(2025, 1, 4, 10, 0, 0, 0, time.UTC)
	pending := testutil.InsertReservation(t, ctx, pool, domain.Reservation{
		ProductID: key.ProductID, Quantity: 1,
		Owner: domain.SessionOwner("s1"), Status: domain.StatusPending,
		ExpiresAt: now.Add(5 * time.Minute),
	})
	released := testutil.InsertReservation(t, ctx, pool, domain.Reservation{
		ProductID: key.ProductID, Quantity: 1,
		Owner: domain.SessionOwner("s2"), Status: domain.StatusReleased,
		ExpiresAt: now.Add(5 * time.Minute),
	})

	applied, err := repo.UpdateExpiry(ctx, pending, now.Add(30*time.Minute))
	if err != nil {
		t.Fatalf("update expiry: %v", err)
	}
	if !applied {
		t.Fatalf("expected expiry update to apply to pending reservation")
	}

	got, err := repo.GetByID(ctx, pending)
	if err != nil {
		t.Fatalf("get reservation: %v", err)
	}
	if !got.ExpiresAt.Equal(now.Add(30 * time.Minute)) {
		t.Fatalf("expected expires_at %v, got %v", now.Add(30*time.Minute), got.ExpiresAt)
	}

	applied, err = repo.UpdateExpiry(ctx, released, now.Add(30*time.Minute))
	if err != nil {
		t.Fatalf("update expiry: %v", err)
	}
	if applied {
		t.Fatalf("expected expiry update to skip released reservation")
	}
}

func TestReservationRepository_UpdateOwner(t *testing.T) {
	pool := testutil.NewTestPool(t)
	ctx := context.Background()
	testutil.ApplyMigrations(t, ctx, pool)
	testutil.TruncateAll(t, ctx, pool)

	repo := NewReservationRepository(pool)
	key := domain.StockKey{ProductID: "prod-1"}
	testutil.InsertStockLevel(t, ctx, pool, key, 10, 3)

	now := time.Date(2025, 1, 4, 10, 0, 0, 0, time.UTC)
	mine := testutil.InsertReservation(t, ctx, pool, domain.Reservation{
		ProductID: key.ProductID, Quantity: 1,
		Owner: domain.SessionOwner("sess-1"), Status: domain.StatusPending,
		ExpiresAt: now.Add(5 * time.Minute),
	})
	foreign := testutil.InsertReservation(t, ctx, pool, domain.Reservation{
		ProductID: key.ProductID, Quantity: 1,
		Owner: domain.SessionOwner("sess-other"), Status: domain.StatusPending,
		ExpiresAt: now.Add(5 * time.Minute),
	})
	terminal := testutil.InsertReservation(t, ctx, pool, domain.Reservation{
		ProductID: key.ProductID, Quantity: 1,
		Owner: domain.SessionOwner("sess-1"), Status: domain.StatusReleased,
		ExpiresAt: now.Add(5 * time.Minute),
	})

	moved, err := repo.UpdateOwner(ctx, []string{mine, foreign, terminal}, "sess-1", "user-1")
	if err != nil {
		t.Fatalf("update owner: %v", err)
	}
	if moved != 1 {
		t.Fatalf("expected 1 reservation moved, got %d", moved)
	}

	got, err := repo.GetByID(ctx, mine)
	if err != nil {
		t.Fatalf("get reservation: %v", err)
	}
	if got.Owner != domain.UserOwner("user-1") {
		t.Fatalf("expected user owner, got %+v", got.Owner)
	}

	untouched, err := repo.GetByID(ctx, foreign)
	if err != nil {
		t.Fatalf("get reservation: %v", err)
	}
	if untouched.Owner != domain.SessionOwner("sess-other") {
		t.Fatalf("expected foreign session untouched, got %+v", untouched.Owner)
	}
}
