package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Response is the cached HTTP result replayed for duplicate requests.
// Body is kept as raw JSON so the replay is byte-identical to the original.
type Response struct {
	StatusCode int               `json:"statusCode"`
	Body       json.RawMessage   `json:"body"`
	Headers    map[string]string `json:"headers"`
	StoredAt   time.Time         `json:"storedAt"`
}

// Store persists the three co-located idempotency entries for a key:
// the processing lock, the request fingerprint, and the cached response.
type Store interface {
	// AcquireLock atomically sets the lock entry only if absent.
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error)

	GetResponse(ctx context.Context, key string) (*Response, bool, error)
	GetFingerprint(ctx context.Context, key string) (string, bool, error)

	// StoreResponse persists the response and fingerprint under ttl and
	// upgrades the lock entry to a completed marker with the same ttl.
	StoreResponse(ctx context.Context, key, fingerprint string, resp *Response, ttl time.Duration) error

	// Clear removes all three entries for the key.
	Clear(ctx context.Context, key string) error
}

const (
	lockKeyPrefix        = "idempotency:lock:"
	responseKeyPrefix    = "idempotency:response:"
	fingerprintKeyPrefix = "idempotency:fingerprint:"

	lockStateProcessing = "processing"
	lockStateCompleted  = "completed"
)

type redisStore struct {
	client *redis.Client
}

// NewRedisStore creates a Redis-backed idempotency store.
func NewRedisStore(client *redis.Client) Store {
	if client == nil {
		panic("redis client is required")
	}
	return &redisStore{client: client}
}

func (s *redisStore) AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, lockKeyPrefix+key, lockStateProcessing, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire idempotency lock: %w", err)
	}
	return ok, nil
}

func (s *redisStore) GetResponse(ctx context.Context, key string) (*Response, bool, error) {
	data, err := s.client.Get(ctx, responseKeyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to get cached response: %w", err)
	}

	var resp Response
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, false, fmt.Errorf("failed to decode cached response: %w", err)
	}
	return &resp, true, nil
}

func (s *redisStore) GetFingerprint(ctx context.Context, key string) (string, bool, error) {
	fp, err := s.client.Get(ctx, fingerprintKeyPrefix+key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to get fingerprint: %w", err)
	}
	return fp, true, nil
}

func (s *redisStore) StoreResponse(ctx context.Context, key, fingerprint string, resp *Response, ttl time.Duration) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("failed to encode response: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, responseKeyPrefix+key, data, ttl)
	pipe.Set(ctx, fingerprintKeyPrefix+key, fingerprint, ttl)
	pipe.Set(ctx, lockKeyPrefix+key, lockStateCompleted, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store idempotent response: %w", err)
	}
	return nil
}

func (s *redisStore) Clear(ctx context.Context, key string) error {
	return s.client.Del(ctx,
		responseKeyPrefix+key,
		lockKeyPrefix+key,
		fingerprintKeyPrefix+key,
	).Err()
}
