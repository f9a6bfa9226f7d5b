package service

import (
	"context"
	"fmt"
	"time"

	"alpaclub/internal/core/domain"
	"alpaclub/internal/core/ports"

	"github.com/rs/zerolog"
)

// Seeder provisions the initial herd on first boot.
type Seeder struct {
	repo    ports.AlpacaRepository
	hashSvc ports.HashService
	count   int
	value   int64
	secret  string
	log     zerolog.Logger
}

// NewSeeder creates a Seeder provisioning count alpacas at the given
// starting value, all owned by the system sentinel with a shared default
// secret.
func NewSeeder(repo ports.AlpacaRepository, hashSvc ports.HashService, count int, value int64, secret string, log zerolog.Logger) *Seeder {
	return &Seeder{
		repo:    repo,
		hashSvc: hashSvc,
		count:   count,
		value:   value,
		secret:  secret,
		log:     log,
	}
}

// EnsureSeeded provisions the herd when the repository is empty; an already
// populated repository is left alone. Freshly provisioned alpacas carry the
// Unix epoch as their last transfer timestamp so the very first bid is never
// cooldown-locked.
func (s *Seeder) EnsureSeeded(ctx context.Context) error {
	existing, err := s.repo.Count(ctx)
	if err != nil {
		return fmt.Errorf("count alpacas: %w", err)
	}
	if existing > 0 {
		return nil
	}

	secretHash, err := s.hashSvc.Hash(s.secret)
	if err != nil {
		return fmt.Errorf("hash seed secret: %w", err)
	}

	for i := 1; i <= s.count; i++ {
		id := int64(i)
		alpaca := &domain.Alpaca{
			ID:             id,
			Name:           domain.DefaultName(id),
			Color:          domain.DefaultColor,
			StableColor:    domain.DefaultStableColor,
			Accessory:      domain.AccessoryNone,
			CurrentValue:   s.value,
			OwnerName:      domain.SystemOwner,
			SecretHash:     secretHash,
			LastTransferAt: time.Unix(0, 0).UTC(),
		}
		if err := s.repo.Create(ctx, alpaca); err != nil {
			return fmt.Errorf("seed alpaca %d: %w", id, err)
		}
	}

	s.log.Info().Int("count", s.count).Int64("starting_value", s.value).Msg("herd provisioned")
	return nil
}
