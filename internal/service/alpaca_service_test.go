package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"alpaclub/internal/core/domain"
	"alpaclub/internal/core/ports"
	"alpaclub/internal/core/ports/mocks"
	"alpaclub/pkg/apperror"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

const testCooldown = 5 * time.Minute

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type alpacaTestDeps struct {
	svc      *AlpacaServiceImpl
	repo     *mocks.MockAlpacaRepository
	hashSvc  *mocks.MockHashService
	payments *mocks.MockPaymentVerifier
	bidLocks *mocks.MockBidLockStore
	ctrl     *gomock.Controller
}

// setupAlpacaService wires the service with a frozen clock at testNow.
// Payment verifier and bid lock store are attached but individual tests
// decide whether they come into play.
func setupAlpacaService(t *testing.T, withPayments, withLocks bool) *alpacaTestDeps {
	ctrl := gomock.NewController(t)
	d := &alpacaTestDeps{
		repo:     mocks.NewMockAlpacaRepository(ctrl),
		hashSvc:  mocks.NewMockHashService(ctrl),
		payments: mocks.NewMockPaymentVerifier(ctrl),
		bidLocks: mocks.NewMockBidLockStore(ctrl),
		ctrl:     ctrl,
	}
	var payments ports.PaymentVerifier
	if withPayments {
		payments = d.payments
	}
	var locks ports.BidLockStore
	if withLocks {
		locks = d.bidLocks
	}
	d.svc = NewAlpacaService(
		d.repo, d.hashSvc, payments, locks,
		func() time.Time { return testNow },
		testCooldown, 1000000, zerolog.Nop(),
	)
	return d
}

func seededAlpaca(lastTransferAt time.Time) *domain.Alpaca {
	return &domain.Alpaca{
		ID:             1,
		Name:           "Alpaca #1",
		Color:          domain.DefaultColor,
		StableColor:    domain.DefaultStableColor,
		Accessory:      domain.AccessoryNone,
		CurrentValue:   100,
		OwnerName:      domain.SystemOwner,
		SecretHash:     "hash_default",
		LastTransferAt: lastTransferAt,
	}
}

// ==================== PlaceBid ====================

func TestPlaceBid_Success(t *testing.T) {
	d := setupAlpacaService(t, false, false)
	ctx := context.Background()

	alpaca := seededAlpaca(testNow.Add(-10 * time.Minute))
	d.repo.EXPECT().GetByID(ctx, int64(1)).Return(alpaca, nil)
	d.hashSvc.EXPECT().Hash("p1").Return("hash_p1", nil)
	d.repo.EXPECT().Save(ctx, alpaca).DoAndReturn(
		func(_ context.Context, a *domain.Alpaca) (*domain.Alpaca, error) {
			return a, nil
		})

	result, err := d.svc.PlaceBid(ctx, ports.BidRequest{
		AlpacaID: 1, Amount: 150, NewOwner: "Alice", NewSecret: "p1",
	})
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Equal(t, "Alice", result.OwnerName)
	assert.Equal(t, int64(150), result.CurrentValue)
	assert.Equal(t, "hash_p1", result.SecretHash)
	assert.Equal(t, testNow, result.LastTransferAt)
	require.Len(t, result.History, 1)
	assert.Equal(t, domain.SystemOwner, result.History[0].PreviousOwner)
	assert.Equal(t, "Alice", result.History[0].NewOwner)
	assert.Equal(t, int64(150), result.History[0].Amount)
}

func TestPlaceBid_NotFound(t *testing.T) {
	d := setupAlpacaService(t, false, false)
	ctx := context.Background()

	d.repo.EXPECT().GetByID(ctx, int64(99)).Return(nil, nil)

	_, err := d.svc.PlaceBid(ctx, ports.BidRequest{AlpacaID: 99, Amount: 150, NewOwner: "Alice", NewSecret: "p1"})
	require.Error(t, err)

	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "ALP_001", appErr.Code)
}

func TestPlaceBid_CooldownBoundary(t *testing.T) {
	tests := []struct {
		name          string
		lastTransfer  time.Time
		wantLocked    bool
		wantRemaining string
	}{
		{"one ms inside the window", testNow.Add(-testCooldown + time.Millisecond), true, "1 seconds"},
		{"half the window left", testNow.Add(-testCooldown / 2), true, "150 seconds"},
		{"just transferred", testNow, true, "300 seconds"},
		{"exactly at the boundary", testNow.Add(-testCooldown), false, ""},
		{"past the window", testNow.Add(-testCooldown - time.Second), false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := setupAlpacaService(t, false, false)
			ctx := context.Background()

			alpaca := seededAlpaca(tt.lastTransfer)
			d.repo.EXPECT().GetByID(ctx, int64(1)).Return(alpaca, nil)
			if !tt.wantLocked {
				d.hashSvc.EXPECT().Hash("p1").Return("hash_p1", nil)
				d.repo.EXPECT().Save(ctx, gomock.Any()).DoAndReturn(
					func(_ context.Context, a *domain.Alpaca) (*domain.Alpaca, error) {
						return a, nil
					})
			}

			_, err := d.svc.PlaceBid(ctx, ports.BidRequest{AlpacaID: 1, Amount: 150, NewOwner: "Alice", NewSecret: "p1"})

			if tt.wantLocked {
				var appErr *apperror.AppError
				require.ErrorAs(t, err, &appErr)
				assert.Equal(t, "BID_002", appErr.Code)
				assert.Contains(t, appErr.Message, tt.wantRemaining)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestPlaceBid_BidTooLow(t *testing.T) {
	for _, amount := range []int64{100, 99, 1} {
		d := setupAlpacaService(t, false, false)
		ctx := context.Background()

		alpaca := seededAlpaca(testNow.Add(-time.Hour))
		d.repo.EXPECT().GetByID(ctx, int64(1)).Return(alpaca, nil)

		_, err := d.svc.PlaceBid(ctx, ports.BidRequest{AlpacaID: 1, Amount: amount, NewOwner: "Alice", NewSecret: "p1"})

		var appErr *apperror.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, "BID_001", appErr.Code)
		assert.Contains(t, appErr.Message, "100")
		// Nothing was hashed or persisted.
		assert.Empty(t, alpaca.History)
		assert.Equal(t, domain.SystemOwner, alpaca.OwnerName)
	}
}

func TestPlaceBid_AboveCap(t *testing.T) {
	d := setupAlpacaService(t, false, false)
	ctx := context.Background()

	alpaca := seededAlpaca(testNow.Add(-time.Hour))
	d.repo.EXPECT().GetByID(ctx, int64(1)).Return(alpaca, nil)

	_, err := d.svc.PlaceBid(ctx, ports.BidRequest{AlpacaID: 1, Amount: 2000000, NewOwner: "Croesus", NewSecret: "p1"})

	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "BID_003", appErr.Code)
}

func TestPlaceBid_PaymentGate(t *testing.T) {
	ref := "pi_12345"

	t.Run("verified payment proceeds", func(t *testing.T) {
		d := setupAlpacaService(t, true, false)
		ctx := context.Background()

		alpaca := seededAlpaca(testNow.Add(-time.Hour))
		d.repo.EXPECT().GetByID(ctx, int64(1)).Return(alpaca, nil)
		d.payments.EXPECT().VerifyPayment(ctx, ref).Return(true, nil)
		d.hashSvc.EXPECT().Hash("p1").Return("hash_p1", nil)
		d.repo.EXPECT().Save(ctx, gomock.Any()).DoAndReturn(
			func(_ context.Context, a *domain.Alpaca) (*domain.Alpaca, error) {
				return a, nil
			})

		_, err := d.svc.PlaceBid(ctx, ports.BidRequest{AlpacaID: 1, Amount: 150, NewOwner: "Alice", NewSecret: "p1", PaymentRef: &ref})
		assert.NoError(t, err)
	})

	t.Run("failed verification blocks the transfer", func(t *testing.T) {
		d := setupAlpacaService(t, true, false)
		ctx := context.Background()

		alpaca := seededAlpaca(testNow.Add(-time.Hour))
		d.repo.EXPECT().GetByID(ctx, int64(1)).Return(alpaca, nil)
		d.payments.EXPECT().VerifyPayment(ctx, ref).Return(false, nil)

		_, err := d.svc.PlaceBid(ctx, ports.BidRequest{AlpacaID: 1, Amount: 150, NewOwner: "Alice", NewSecret: "p1", PaymentRef: &ref})

		var appErr *apperror.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, "BID_004", appErr.Code)
	})

	t.Run("no reference skips the provider", func(t *testing.T) {
		d := setupAlpacaService(t, true, false)
		ctx := context.Background()

		alpaca := seededAlpaca(testNow.Add(-time.Hour))
		d.repo.EXPECT().GetByID(ctx, int64(1)).Return(alpaca, nil)
		d.hashSvc.EXPECT().Hash("p1").Return("hash_p1", nil)
		d.repo.EXPECT().Save(ctx, gomock.Any()).DoAndReturn(
			func(_ context.Context, a *domain.Alpaca) (*domain.Alpaca, error) {
				return a, nil
			})

		_, err := d.svc.PlaceBid(ctx, ports.BidRequest{AlpacaID: 1, Amount: 150, NewOwner: "Alice", NewSecret: "p1"})
		assert.NoError(t, err)
	})
}

func TestPlaceBid_BidLock(t *testing.T) {
	t.Run("held lock rejects the bid", func(t *testing.T) {
		d := setupAlpacaService(t, false, true)
		ctx := context.Background()

		d.bidLocks.EXPECT().Acquire(ctx, int64(1), bidLockTTL).Return(false, nil)

		_, err := d.svc.PlaceBid(ctx, ports.BidRequest{AlpacaID: 1, Amount: 150, NewOwner: "Alice", NewSecret: "p1"})

		var appErr *apperror.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, "BID_005", appErr.Code)
	})

	t.Run("lock store outage degrades to lock-free", func(t *testing.T) {
		d := setupAlpacaService(t, false, true)
		ctx := context.Background()

		d.bidLocks.EXPECT().Acquire(ctx, int64(1), bidLockTTL).Return(false, errors.New("redis down"))
		alpaca := seededAlpaca(testNow.Add(-time.Hour))
		d.repo.EXPECT().GetByID(ctx, int64(1)).Return(alpaca, nil)
		d.hashSvc.EXPECT().Hash("p1").Return("hash_p1", nil)
		d.repo.EXPECT().Save(ctx, gomock.Any()).DoAndReturn(
			func(_ context.Context, a *domain.Alpaca) (*domain.Alpaca, error) {
				return a, nil
			})

		_, err := d.svc.PlaceBid(ctx, ports.BidRequest{AlpacaID: 1, Amount: 150, NewOwner: "Alice", NewSecret: "p1"})
		assert.NoError(t, err)
	})

	t.Run("lock released after a successful bid", func(t *testing.T) {
		d := setupAlpacaService(t, false, true)
		ctx := context.Background()

		d.bidLocks.EXPECT().Acquire(ctx, int64(1), bidLockTTL).Return(true, nil)
		alpaca := seededAlpaca(testNow.Add(-time.Hour))
		d.repo.EXPECT().GetByID(ctx, int64(1)).Return(alpaca, nil)
		d.hashSvc.EXPECT().Hash("p1").Return("hash_p1", nil)
		d.repo.EXPECT().Save(ctx, gomock.Any()).DoAndReturn(
			func(_ context.Context, a *domain.Alpaca) (*domain.Alpaca, error) {
				return a, nil
			})
		d.bidLocks.EXPECT().Release(ctx, int64(1)).Return(nil)

		_, err := d.svc.PlaceBid(ctx, ports.BidRequest{AlpacaID: 1, Amount: 150, NewOwner: "Alice", NewSecret: "p1"})
		assert.NoError(t, err)
	})
}

func TestPlaceBid_StorageFailurePropagates(t *testing.T) {
	d := setupAlpacaService(t, false, false)
	ctx := context.Background()

	alpaca := seededAlpaca(testNow.Add(-time.Hour))
	d.repo.EXPECT().GetByID(ctx, int64(1)).Return(alpaca, nil)
	d.hashSvc.EXPECT().Hash("p1").Return("hash_p1", nil)
	d.repo.EXPECT().Save(ctx, gomock.Any()).Return(nil, errors.New("connection reset"))

	_, err := d.svc.PlaceBid(ctx, ports.BidRequest{AlpacaID: 1, Amount: 150, NewOwner: "Alice", NewSecret: "p1"})

	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "SYS_001", appErr.Code)
}

// End-to-end takeover scenario: Alice outbids the system, a second bid hits
// the cooldown, Bob outbids Alice once the lock expires.
func TestPlaceBid_TakeoverScenario(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockAlpacaRepository(ctrl)
	hashSvc := mocks.NewMockHashService(ctrl)

	now := testNow
	svc := NewAlpacaService(repo, hashSvc, nil, nil,
		func() time.Time { return now },
		testCooldown, 1000000, zerolog.Nop())

	ctx := context.Background()
	alpaca := seededAlpaca(testNow.Add(-10 * time.Minute))

	repo.EXPECT().GetByID(ctx, int64(1)).Return(alpaca, nil).AnyTimes()
	repo.EXPECT().Save(ctx, alpaca).DoAndReturn(
		func(_ context.Context, a *domain.Alpaca) (*domain.Alpaca, error) {
			return a, nil
		}).AnyTimes()
	hashSvc.EXPECT().Hash(gomock.Any()).DoAndReturn(
		func(s string) (string, error) { return "hash_" + s, nil }).AnyTimes()

	// Alice takes over.
	result, err := svc.PlaceBid(ctx, ports.BidRequest{AlpacaID: 1, Amount: 150, NewOwner: "Alice", NewSecret: "p1"})
	require.NoError(t, err)
	assert.Equal(t, int64(150), result.CurrentValue)
	assert.Equal(t, "Alice", result.OwnerName)
	require.Len(t, result.History, 1)
	assert.Equal(t, domain.SystemOwner, result.History[0].PreviousOwner)

	// Bob bids immediately: cooldown armed by Alice's transfer.
	_, err = svc.PlaceBid(ctx, ports.BidRequest{AlpacaID: 1, Amount: 200, NewOwner: "Bob", NewSecret: "p2"})
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "BID_002", appErr.Code)

	// Five minutes later Bob succeeds.
	now = now.Add(testCooldown)
	result, err = svc.PlaceBid(ctx, ports.BidRequest{AlpacaID: 1, Amount: 200, NewOwner: "Bob", NewSecret: "p2"})
	require.NoError(t, err)
	assert.Equal(t, "Bob", result.OwnerName)
	assert.Equal(t, int64(200), result.CurrentValue)
	require.Len(t, result.History, 2)
	assert.Equal(t, "Bob", result.History[0].NewOwner)
	assert.Equal(t, "Alice", result.History[1].NewOwner)
	assert.Equal(t, domain.DefaultName(1), result.Name)
}

// ==================== Customize ====================

func TestCustomize_SystemOwnedNeedsNoSecret(t *testing.T) {
	d := setupAlpacaService(t, false, false)
	ctx := context.Background()

	alpaca := seededAlpaca(testNow.Add(-time.Hour))
	d.repo.EXPECT().GetByID(ctx, int64(1)).Return(alpaca, nil)
	d.repo.EXPECT().Save(ctx, alpaca).DoAndReturn(
		func(_ context.Context, a *domain.Alpaca) (*domain.Alpaca, error) {
			return a, nil
		})

	name := "Sir Humphrey"
	accessory := domain.AccessoryTopHat
	result, err := d.svc.Customize(ctx, ports.CustomizeRequest{
		AlpacaID: 1,
		Update:   ports.CosmeticUpdate{Name: &name, Accessory: &accessory},
	})
	require.NoError(t, err)

	assert.Equal(t, "Sir Humphrey", result.Name)
	assert.Equal(t, domain.AccessoryTopHat, result.Accessory)
	// Untouched fields stay as they were.
	assert.Equal(t, domain.DefaultColor, result.Color)
	assert.Equal(t, int64(100), result.CurrentValue)
}

func TestCustomize_OwnedAlpacaGating(t *testing.T) {
	owned := func() *domain.Alpaca {
		a := seededAlpaca(testNow.Add(-time.Hour))
		a.OwnerName = "Alice"
		a.SecretHash = "hash_p1"
		return a
	}
	name := "Wooly"

	t.Run("missing secret is forbidden", func(t *testing.T) {
		d := setupAlpacaService(t, false, false)
		ctx := context.Background()
		d.repo.EXPECT().GetByID(ctx, int64(1)).Return(owned(), nil)

		_, err := d.svc.Customize(ctx, ports.CustomizeRequest{AlpacaID: 1, Update: ports.CosmeticUpdate{Name: &name}})

		var appErr *apperror.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, "SEC_001", appErr.Code)
		assert.Equal(t, "access denied", appErr.Message)
	})

	t.Run("wrong secret is forbidden with the same message", func(t *testing.T) {
		d := setupAlpacaService(t, false, false)
		ctx := context.Background()
		d.repo.EXPECT().GetByID(ctx, int64(1)).Return(owned(), nil)
		wrong := "nope"
		d.hashSvc.EXPECT().Verify("nope", "hash_p1").Return(false, nil)

		_, err := d.svc.Customize(ctx, ports.CustomizeRequest{AlpacaID: 1, Secret: &wrong, Update: ports.CosmeticUpdate{Name: &name}})

		var appErr *apperror.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, "SEC_001", appErr.Code)
		assert.Equal(t, "access denied", appErr.Message)
	})

	t.Run("correct secret applies the update", func(t *testing.T) {
		d := setupAlpacaService(t, false, false)
		ctx := context.Background()
		alpaca := owned()
		d.repo.EXPECT().GetByID(ctx, int64(1)).Return(alpaca, nil)
		secret := "p1"
		d.hashSvc.EXPECT().Verify("p1", "hash_p1").Return(true, nil)
		d.repo.EXPECT().Save(ctx, alpaca).DoAndReturn(
			func(_ context.Context, a *domain.Alpaca) (*domain.Alpaca, error) {
				return a, nil
			})

		result, err := d.svc.Customize(ctx, ports.CustomizeRequest{AlpacaID: 1, Secret: &secret, Update: ports.CosmeticUpdate{Name: &name}})
		require.NoError(t, err)
		assert.Equal(t, "Wooly", result.Name)
		assert.Equal(t, "Alice", result.OwnerName)
	})

	t.Run("admin bypasses the secret", func(t *testing.T) {
		d := setupAlpacaService(t, false, false)
		ctx := context.Background()
		alpaca := owned()
		d.repo.EXPECT().GetByID(ctx, int64(1)).Return(alpaca, nil)
		d.repo.EXPECT().Save(ctx, alpaca).DoAndReturn(
			func(_ context.Context, a *domain.Alpaca) (*domain.Alpaca, error) {
				return a, nil
			})

		result, err := d.svc.Customize(ctx, ports.CustomizeRequest{AlpacaID: 1, AsAdmin: true, Update: ports.CosmeticUpdate{Name: &name}})
		require.NoError(t, err)
		assert.Equal(t, "Wooly", result.Name)
	})
}

func TestCustomize_PresenceSemantics(t *testing.T) {
	d := setupAlpacaService(t, false, false)
	ctx := context.Background()

	alpaca := seededAlpaca(testNow.Add(-time.Hour))
	bg := "https://img.example/old.png"
	alpaca.BackgroundImage = &bg
	d.repo.EXPECT().GetByID(ctx, int64(1)).Return(alpaca, nil)
	d.repo.EXPECT().Save(ctx, alpaca).DoAndReturn(
		func(_ context.Context, a *domain.Alpaca) (*domain.Alpaca, error) {
			return a, nil
		})

	// An explicitly empty background clears it; omitted fields survive.
	empty := ""
	result, err := d.svc.Customize(ctx, ports.CustomizeRequest{
		AlpacaID: 1,
		Update:   ports.CosmeticUpdate{BackgroundImage: &empty},
	})
	require.NoError(t, err)

	assert.Nil(t, result.BackgroundImage)
	assert.Equal(t, "Alpaca #1", result.Name)
	assert.Equal(t, domain.DefaultColor, result.Color)
}

func TestCustomize_NeverTouchesValueOrLedger(t *testing.T) {
	d := setupAlpacaService(t, false, false)
	ctx := context.Background()

	alpaca := seededAlpaca(testNow.Add(-time.Hour))
	require.NoError(t, alpaca.TransferOwnership("Alice", 150, "hash_p1", testNow.Add(-30*time.Minute)))
	d.repo.EXPECT().GetByID(ctx, int64(1)).Return(alpaca, nil)
	secret := "p1"
	d.hashSvc.EXPECT().Verify("p1", "hash_p1").Return(true, nil)
	d.repo.EXPECT().Save(ctx, alpaca).DoAndReturn(
		func(_ context.Context, a *domain.Alpaca) (*domain.Alpaca, error) {
			return a, nil
		})

	color := "Caramel"
	result, err := d.svc.Customize(ctx, ports.CustomizeRequest{AlpacaID: 1, Secret: &secret, Update: ports.CosmeticUpdate{Color: &color}})
	require.NoError(t, err)

	assert.Equal(t, int64(150), result.CurrentValue)
	assert.Equal(t, "Alice", result.OwnerName)
	assert.Len(t, result.History, 1)
	assert.Equal(t, testNow.Add(-30*time.Minute), result.LastTransferAt)
}

// ==================== Reads ====================

func TestGetAlpaca(t *testing.T) {
	d := setupAlpacaService(t, false, false)
	ctx := context.Background()

	alpaca := seededAlpaca(testNow)
	d.repo.EXPECT().GetByID(ctx, int64(1)).Return(alpaca, nil)

	result, err := d.svc.GetAlpaca(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, alpaca, result)

	d.repo.EXPECT().GetByID(ctx, int64(404)).Return(nil, nil)
	_, err = d.svc.GetAlpaca(ctx, 404)
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "ALP_001", appErr.Code)
}

func TestListAlpacas(t *testing.T) {
	d := setupAlpacaService(t, false, false)
	ctx := context.Background()

	herd := []domain.Alpaca{*seededAlpaca(testNow), *seededAlpaca(testNow)}
	d.repo.EXPECT().List(ctx).Return(herd, nil)

	result, err := d.svc.ListAlpacas(ctx)
	require.NoError(t, err)
	assert.Len(t, result, 2)
}
