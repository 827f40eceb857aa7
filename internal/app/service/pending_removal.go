package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ikkim/storefront-backend/pkg/logger"
	"github.com/redis/go-redis/v9"
)

// PendingRemoval is the prepared half of a two-step cart removal. Nothing is
// written to the stores until it is confirmed.
type PendingRemoval struct {
	Token      string    `json:"token"`
	SessionID  string    `json:"session_id"`
	CartItemID uint      `json:"cart_item_id"`
	ProductID  uint      `json:"product_id"`
	Name       string    `json:"name"`
	Quantity   int       `json:"quantity"`
	ExpiresAt  time.Time `json:"expires_at"`
}

type PendingRemovalStore interface {
	Save(ctx context.Context, removal PendingRemoval) error
	// Take removes and returns the pending removal. It fails with
	// ErrRemovalNotPending when the token is unknown, expired or owned by
	// another session.
	Take(ctx context.Context, sessionID, token string) (*PendingRemoval, error)
	Discard(ctx context.Context, sessionID, token string) error
	PurgeExpired(ctx context.Context, now time.Time) (int, error)
}

type memoryRemovalStore struct {
	mu      sync.Mutex
	pending map[string]PendingRemoval
	now     func() time.Time
}

func NewMemoryRemovalStore() PendingRemovalStore {
	return &memoryRemovalStore{
		pending: make(map[string]PendingRemoval),
		now:     time.Now,
	}
}

func (s *memoryRemovalStore) Save(_ context.Context, removal PendingRemoval) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[removal.Token] = removal
	return nil
}

func (s *memoryRemovalStore) Take(_ context.Context, sessionID, token string) (*PendingRemoval, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removal, ok := s.pending[token]
	if !ok || removal.SessionID != sessionID {
		return nil, ErrRemovalNotPending
	}
	delete(s.pending, token)
	if !removal.ExpiresAt.IsZero() && s.now().After(removal.ExpiresAt) {
		return nil, ErrRemovalNotPending
	}
	return &removal, nil
}

func (s *memoryRemovalStore) Discard(ctx context.Context, sessionID, token string) error {
	_, err := s.Take(ctx, sessionID, token)
	return err
}

func (s *memoryRemovalStore) PurgeExpired(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	purged := 0
	for token, removal := range s.pending {
		if !removal.ExpiresAt.IsZero() && now.After(removal.ExpiresAt) {
			delete(s.pending, token)
			purged++
		}
	}
	return purged, nil
}

const removalKeyPrefix = "cart:removal:"

type redisRemovalStore struct {
	client *redis.Client
}

// NewRedisRemovalStore keeps pending removals in Redis so every replica can
// confirm them. Expiry is left to the key TTL.
func NewRedisRemovalStore(client *redis.Client) PendingRemovalStore {
	return &redisRemovalStore{client: client}
}

func (s *redisRemovalStore) Save(ctx context.Context, removal PendingRemoval) error {
	data, err := json.Marshal(removal)
	if err != nil {
		return err
	}

	ttl := time.Until(removal.ExpiresAt)
	if removal.ExpiresAt.IsZero() {
		ttl = 0
	} else if ttl <= 0 {
		return fmt.Errorf("pending removal %s already expired", removal.Token)
	}

	if err := s.client.Set(ctx, removalKeyPrefix+removal.Token, data, ttl).Err(); err != nil {
		logger.Error("Failed to save pending removal", err, map[string]interface{}{
			"session_id":   removal.SessionID,
			"cart_item_id": removal.CartItemID,
		})
		return err
	}
	return nil
}

func (s *redisRemovalStore) Take(ctx context.Context, sessionID, token string) (*PendingRemoval, error) {
	key := removalKeyPrefix + token

	data, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrRemovalNotPending
	}
	if err != nil {
		logger.Error("Failed to read pending removal", err, map[string]interface{}{
			"session_id": sessionID,
		})
		return nil, err
	}

	var removal PendingRemoval
	if err := json.Unmarshal(data, &removal); err != nil {
		return nil, err
	}
	if removal.SessionID != sessionID {
		return nil, ErrRemovalNotPending
	}

	// Only the caller that actually deletes the key owns the removal.
	deleted, err := s.client.Del(ctx, key).Result()
	if err != nil {
		return nil, err
	}
	if deleted == 0 {
		return nil, ErrRemovalNotPending
	}
	return &removal, nil
}

func (s *redisRemovalStore) Discard(ctx context.Context, sessionID, token string) error {
	_, err := s.Take(ctx, sessionID, token)
	return err
}

func (s *redisRemovalStore) PurgeExpired(context.Context, time.Time) (int, error) {
	return 0, nil
}
