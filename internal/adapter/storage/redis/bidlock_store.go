package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// BidLockStore implements ports.BidLockStore using Redis SET NX. Each
// alpaca gets one lock key so concurrent bids on the same alpaca
// serialize while bids on different alpacas proceed in parallel.
type BidLockStore struct {
	client *goredis.Client
	prefix string
}

// NewBidLockStore creates a new Redis-backed bid lock store.
func NewBidLockStore(client *goredis.Client) *BidLockStore {
	return &BidLockStore{
		client: client,
		prefix: "bidlock:",
	}
}

// Acquire attempts to take the per-alpaca lock. Returns true when the
// lock was taken, false when another bid holds it. The TTL bounds how
// long a crashed holder can wedge the alpaca.
func (s *BidLockStore) Acquire(ctx context.Context, alpacaID int64, ttl time.Duration) (bool, error) {
	key := s.key(alpacaID)
	result, err := s.client.SetArgs(ctx, key, 1, goredis.SetArgs{
		Mode: "NX",
		TTL:  ttl,
	}).Result()
	if err != nil {
		if err == goredis.Nil {
			// Key already exists, lock is held.
			return false, nil
		}
		return false, fmt.Errorf("redis bid lock acquire: %w", err)
	}
	return result == "OK", nil
}

// Release drops the per-alpaca lock.
func (s *BidLockStore) Release(ctx context.Context, alpacaID int64) error {
	if err := s.client.Del(ctx, s.key(alpacaID)).Err(); err != nil {
		return fmt.Errorf("redis bid lock release: %w", err)
	}
	return nil
}

func (s *BidLockStore) key(alpacaID int64) string {
	return s.prefix + strconv.FormatInt(alpacaID, 10)
}
