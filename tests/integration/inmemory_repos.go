package integration

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"alpaclub/internal/core/domain"
)

// inMemoryAlpacaRepo is a thread-safe in-memory ports.AlpacaRepository for
// integration tests. Reads hand out deep copies so the stored state only
// changes through Save.
type inMemoryAlpacaRepo struct {
	mu      sync.RWMutex
	alpacas map[int64]*domain.Alpaca
}

func newInMemoryAlpacaRepo() *inMemoryAlpacaRepo {
	return &inMemoryAlpacaRepo{alpacas: make(map[int64]*domain.Alpaca)}
}

func copyAlpaca(a *domain.Alpaca) *domain.Alpaca {
	cp := *a
	if a.BackgroundImage != nil {
		bg := *a.BackgroundImage
		cp.BackgroundImage = &bg
	}
	cp.History = make([]domain.TransferRecord, len(a.History))
	copy(cp.History, a.History)
	return &cp
}

func (r *inMemoryAlpacaRepo) GetByID(_ context.Context, id int64) (*domain.Alpaca, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.alpacas[id]
	if !ok {
		return nil, nil
	}
	return copyAlpaca(a), nil
}

func (r *inMemoryAlpacaRepo) List(_ context.Context) ([]domain.Alpaca, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Alpaca, 0, len(r.alpacas))
	for _, a := range r.alpacas {
		out = append(out, *copyAlpaca(a))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *inMemoryAlpacaRepo) Count(_ context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.alpacas)), nil
}

func (r *inMemoryAlpacaRepo) Create(_ context.Context, a *domain.Alpaca) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.alpacas[a.ID]; exists {
		return fmt.Errorf("alpaca already exists: %d", a.ID)
	}
	r.alpacas[a.ID] = copyAlpaca(a)
	return nil
}

func (r *inMemoryAlpacaRepo) Save(_ context.Context, a *domain.Alpaca) (*domain.Alpaca, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.alpacas[a.ID]; !exists {
		return nil, fmt.Errorf("alpaca not found: %d", a.ID)
	}
	r.alpacas[a.ID] = copyAlpaca(a)
	return copyAlpaca(a), nil
}
