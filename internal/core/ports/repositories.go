package ports

import (
	"context"

	"alpaclub/internal/core/domain"
)

// AlpacaRepository defines persistence operations for alpacas and their
// transfer ledger. Lookups return (nil, nil) when no record exists.
type AlpacaRepository interface {
	// GetByID loads one alpaca with its full ledger, most-recent-first.
	GetByID(ctx context.Context, id int64) (*domain.Alpaca, error)
	// List returns all alpacas ordered by id, ledgers included.
	List(ctx context.Context) ([]domain.Alpaca, error)
	// Count returns the number of provisioned alpacas.
	Count(ctx context.Context) (int64, error)
	// Create inserts a freshly provisioned alpaca.
	Create(ctx context.Context, alpaca *domain.Alpaca) error
	// Save durably records the alpaca's current fields and, when the
	// in-memory ledger has grown by one entry since the persisted state,
	// exactly one new ledger row. The two writes commit atomically.
	Save(ctx context.Context, alpaca *domain.Alpaca) (*domain.Alpaca, error)
}
