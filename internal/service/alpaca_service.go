package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"alpaclub/internal/core/domain"
	"alpaclub/internal/core/ports"
	"alpaclub/pkg/apperror"

	"github.com/rs/zerolog"
)

// bidLockTTL bounds how long a bid can hold the per-alpaca lock if its
// request dies before releasing it.
const bidLockTTL = 10 * time.Second

// AlpacaServiceImpl implements ports.AlpacaService: the takeover
// orchestrator, the customization path, and the read paths.
type AlpacaServiceImpl struct {
	repo     ports.AlpacaRepository
	hashSvc  ports.HashService
	payments ports.PaymentVerifier // nil = no payment provider configured
	bidLocks ports.BidLockStore    // nil = per-alpaca serialization disabled
	clock    ports.Clock
	cooldown time.Duration
	maxBid   int64 // 0 = no upper bound
	log      zerolog.Logger
}

// NewAlpacaService creates a new AlpacaServiceImpl.
func NewAlpacaService(
	repo ports.AlpacaRepository,
	hashSvc ports.HashService,
	payments ports.PaymentVerifier,
	bidLocks ports.BidLockStore,
	clock ports.Clock,
	cooldown time.Duration,
	maxBid int64,
	log zerolog.Logger,
) *AlpacaServiceImpl {
	return &AlpacaServiceImpl{
		repo:     repo,
		hashSvc:  hashSvc,
		payments: payments,
		bidLocks: bidLocks,
		clock:    clock,
		cooldown: cooldown,
		maxBid:   maxBid,
		log:      log,
	}
}

// PlaceBid runs one takeover attempt end-to-end: load, cooldown check, bid
// check, payment policy, secret hashing, entity transfer, persist. Business
// failures come back as typed AppErrors; storage failures propagate as
// SYS_001 and nothing is persisted on any failure path.
func (s *AlpacaServiceImpl) PlaceBid(ctx context.Context, req ports.BidRequest) (*domain.Alpaca, error) {
	if s.bidLocks != nil {
		acquired, err := s.bidLocks.Acquire(ctx, req.AlpacaID, bidLockTTL)
		switch {
		case err != nil:
			// Lock store outage degrades to lock-free bidding rather
			// than refusing all bids.
			s.log.Warn().Err(err).Int64("alpaca_id", req.AlpacaID).
				Msg("bid lock unavailable, proceeding without serialization")
		case !acquired:
			return nil, apperror.ErrBidInProgress()
		default:
			defer func() {
				if err := s.bidLocks.Release(ctx, req.AlpacaID); err != nil {
					s.log.Warn().Err(err).Int64("alpaca_id", req.AlpacaID).Msg("bid lock release failed")
				}
			}()
		}
	}

	alpaca, err := s.repo.GetByID(ctx, req.AlpacaID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("load alpaca %d: %w", req.AlpacaID, err))
	}
	if alpaca == nil {
		return nil, apperror.ErrAlpacaNotFound(req.AlpacaID)
	}

	now := s.clock()
	elapsed := now.Sub(alpaca.LastTransferAt)
	if elapsed < s.cooldown {
		remaining := int64(math.Ceil((s.cooldown - elapsed).Seconds()))
		return nil, apperror.ErrCooldownLocked(remaining)
	}

	if !alpaca.IsBidAcceptable(req.Amount) {
		return nil, apperror.ErrBidTooLow(req.Amount, alpaca.CurrentValue)
	}

	// Payment policy: a configured provider must positively verify any
	// supplied payment reference. The amount cap is the coarse stand-in
	// policy for deployments without a provider.
	if s.maxBid > 0 && req.Amount > s.maxBid {
		return nil, apperror.ErrBidAboveCap(s.maxBid)
	}
	if s.payments != nil && req.PaymentRef != nil {
		verified, err := s.payments.VerifyPayment(ctx, *req.PaymentRef)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("verify payment: %w", err))
		}
		if !verified {
			return nil, apperror.ErrPaymentNotVerified()
		}
	}

	secretHash, err := s.hashSvc.Hash(req.NewSecret)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("hash secret: %w", err))
	}

	if err := alpaca.TransferOwnership(req.NewOwner, req.Amount, secretHash, now); err != nil {
		var bidErr *domain.InvalidBidError
		if errors.As(err, &bidErr) {
			return nil, apperror.ErrBidTooLow(bidErr.Amount, bidErr.CurrentValue)
		}
		return nil, apperror.InternalError(err)
	}

	saved, err := s.repo.Save(ctx, alpaca)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("save alpaca %d: %w", req.AlpacaID, err))
	}

	s.log.Info().
		Int64("alpaca_id", saved.ID).
		Str("new_owner", saved.OwnerName).
		Int64("amount", req.Amount).
		Str("client_ip", req.ClientIP).
		Msg("ownership transferred")

	return saved, nil
}

// Customize applies a presence-based partial cosmetic update. Non-system
// alpacas require the owner secret unless the request is admin-authenticated.
// Missing and wrong secrets are distinguished only in logs, never in the
// returned error.
func (s *AlpacaServiceImpl) Customize(ctx context.Context, req ports.CustomizeRequest) (*domain.Alpaca, error) {
	alpaca, err := s.repo.GetByID(ctx, req.AlpacaID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("load alpaca %d: %w", req.AlpacaID, err))
	}
	if alpaca == nil {
		return nil, apperror.ErrAlpacaNotFound(req.AlpacaID)
	}

	if !req.AsAdmin && !alpaca.IsSystemOwned() {
		if req.Secret == nil || *req.Secret == "" {
			s.log.Debug().Int64("alpaca_id", req.AlpacaID).Msg("customize rejected: secret missing")
			return nil, apperror.ErrForbidden()
		}
		ok, err := s.hashSvc.Verify(*req.Secret, alpaca.SecretHash)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("verify secret: %w", err))
		}
		if !ok {
			s.log.Debug().Int64("alpaca_id", req.AlpacaID).Msg("customize rejected: secret mismatch")
			return nil, apperror.ErrForbidden()
		}
	}

	applyCosmetics(alpaca, req.Update)

	saved, err := s.repo.Save(ctx, alpaca)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("save alpaca %d: %w", req.AlpacaID, err))
	}

	s.log.Info().Int64("alpaca_id", saved.ID).Bool("as_admin", req.AsAdmin).Msg("alpaca customized")
	return saved, nil
}

// applyCosmetics applies the fields present in the update. An empty
// background image clears it; every other supplied value is set verbatim.
// Value, owner, ledger, and transfer timestamp are never touched here.
func applyCosmetics(a *domain.Alpaca, u ports.CosmeticUpdate) {
	if u.Name != nil {
		a.Name = *u.Name
	}
	if u.Color != nil {
		a.Color = *u.Color
	}
	if u.StableColor != nil {
		a.StableColor = *u.StableColor
	}
	if u.Accessory != nil {
		a.Accessory = *u.Accessory
	}
	if u.BackgroundImage != nil {
		if *u.BackgroundImage == "" {
			a.BackgroundImage = nil
		} else {
			img := *u.BackgroundImage
			a.BackgroundImage = &img
		}
	}
}

// GetAlpaca loads one alpaca with its ledger.
func (s *AlpacaServiceImpl) GetAlpaca(ctx context.Context, id int64) (*domain.Alpaca, error) {
	alpaca, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("load alpaca %d: %w", id, err))
	}
	if alpaca == nil {
		return nil, apperror.ErrAlpacaNotFound(id)
	}
	return alpaca, nil
}

// ListAlpacas returns the whole herd, id-ascending.
func (s *AlpacaServiceImpl) ListAlpacas(ctx context.Context) ([]domain.Alpaca, error) {
	alpacas, err := s.repo.List(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list alpacas: %w", err))
	}
	return alpacas, nil
}
