package app

import (
	"context"

	"github.com/arnaudt-bojan/stockledger/internal/domain"
)

type AdminStore interface {
	UpsertLevel(ctx context.Context, key domain.StockKey, onHand int) (domain.StockLevel, error)
	ListLevels(ctx context.Context) ([]domain.StockLevel, error)
}

// AdminService seeds and restocks the ledger. Restocks set on_hand only;
// reserved belongs exclusively to the reservation flow.
type AdminService struct {
	store AdminStore
}

func NewAdminService(store AdminStore) *AdminService {
	return &AdminService{store: store}
}

type SetStockLevelInput struct {
	ProductID string
	VariantID string
	OnHand    int
}

func (s *AdminService) SetStockLevel(ctx context.Context, in SetStockLevelInput) (domain.StockLevel, error) {
	if in.ProductID == "" {
		return domain.StockLevel{}, domain.ErrInvalidID
	}
	if in.OnHand < 0 {
		return domain.StockLevel{}, domain.ErrInvalidQuantity
	}
	key := domain.StockKey{ProductID: in.ProductID, VariantID: in.VariantID}
	return s.store.UpsertLevel(ctx, key, in.OnHand)
}

func (s *AdminService) ListStockLevels(ctx context.Context) ([]domain.StockLevel, error) {
	return s.store.ListLevels(ctx)
}
