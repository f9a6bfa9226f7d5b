package ports

import (
	"context"
	"time"

	"alpaclub/internal/core/domain"
)

// Clock supplies the current instant. Injected so cooldown arithmetic and
// ledger timestamps are deterministic in tests.
type Clock func() time.Time

// HashService handles one-way hashing of owner secrets.
type HashService interface {
	Hash(secret string) (string, error)
	Verify(secret string, hash string) (bool, error)
}

// PaymentVerifier is the boolean pass/fail gate over an external payment
// provider. The wire protocol behind it is not this system's concern.
type PaymentVerifier interface {
	VerifyPayment(ctx context.Context, paymentRef string) (bool, error)
}

// BidLockStore serializes concurrent bids on the same alpaca.
type BidLockStore interface {
	// Acquire takes the per-alpaca lock. Returns false if another bid
	// holds it.
	Acquire(ctx context.Context, alpacaID int64, ttl time.Duration) (bool, error)
	Release(ctx context.Context, alpacaID int64) error
}

// TokenService handles admin session tokens.
type TokenService interface {
	Generate(subject string) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed token claims.
type TokenClaims struct {
	Subject string
}

// --- Service Ports (Business Logic) ---

// AlpacaService defines the bid, customization, and read paths.
type AlpacaService interface {
	PlaceBid(ctx context.Context, req BidRequest) (*domain.Alpaca, error)
	Customize(ctx context.Context, req CustomizeRequest) (*domain.Alpaca, error)
	GetAlpaca(ctx context.Context, id int64) (*domain.Alpaca, error)
	ListAlpacas(ctx context.Context) ([]domain.Alpaca, error)
}

// BidRequest holds validated input for a takeover attempt. NewSecret is the
// bidder's plaintext secret; it is hashed before storage and never logged.
type BidRequest struct {
	AlpacaID   int64
	Amount     int64
	NewOwner   string
	NewSecret  string
	PaymentRef *string
	ClientIP   string
}

// CosmeticUpdate is a presence-based partial update: nil means "leave
// untouched", a pointer to the zero value means "clear" where clearing is
// meaningful (background image).
type CosmeticUpdate struct {
	Name            *string
	Color           *string
	StableColor     *string
	Accessory       *domain.Accessory
	BackgroundImage *string
}

// CustomizeRequest holds validated input for the customization path.
// AsAdmin marks a request authenticated by an admin token, which bypasses
// secret verification.
type CustomizeRequest struct {
	AlpacaID int64
	Secret   *string
	AsAdmin  bool
	Update   CosmeticUpdate
}

// AuthService authenticates the administrator and issues session tokens.
type AuthService interface {
	Login(ctx context.Context, username, password string) (string, time.Time, error)
}
