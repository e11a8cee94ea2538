// Package redisstate implements state.Store as a JSON blob per run id
// under a string key, grounded on the teacher's layering for Redis-backed
// clients (features/stream/pulse/clients/pulse): callers build a
// *redis.Client, pass it to New, and the package exposes only the
// operations it actually needs.
package redisstate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/flowkit/agentflow/orchestrator"
)

// commander is the subset of *redis.Client this package depends on,
// narrowed for testability without a live Redis server.
type commander interface {
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
}

// Options configures the Redis client implementation.
type Options struct {
	// Redis is the Redis connection checkpoints are stored through.
	// Required.
	Redis *redis.Client
	// KeyPrefix namespaces every stored key. Defaults to "agentflow:state:".
	KeyPrefix string
	// TTL expires a checkpoint after the given duration. Zero means no
	// expiration.
	TTL time.Duration
}

// Store persists checkpoints as JSON strings under KeyPrefix+id.
type Store struct {
	redis     commander
	keyPrefix string
	ttl       time.Duration
}

const defaultKeyPrefix = "agentflow:state:"

// New returns a Store backed by the provided Redis client.
func New(opts Options) (*Store, error) {
	if opts.Redis == nil {
		return nil, errors.New("redisstate: redis client is required")
	}
	prefix := opts.KeyPrefix
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return &Store{redis: opts.Redis, keyPrefix: prefix, ttl: opts.TTL}, nil
}

// Save implements state.Store.
func (s *Store) Save(ctx context.Context, id string, st *orchestrator.State) error {
	if id == "" {
		return errors.New("redisstate: run id is required")
	}
	raw, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("redisstate: encoding state: %w", err)
	}
	if err := s.redis.Set(ctx, s.key(id), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("redisstate: writing %s: %w", id, err)
	}
	return nil
}

// Load implements state.Store.
func (s *Store) Load(ctx context.Context, id string) (*orchestrator.State, error) {
	if id == "" {
		return nil, errors.New("redisstate: run id is required")
	}
	raw, err := s.redis.Get(ctx, s.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("redisstate: no checkpoint for run %q", id)
		}
		return nil, fmt.Errorf("redisstate: reading %s: %w", id, err)
	}
	var st orchestrator.State
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, fmt.Errorf("redisstate: decoding state: %w", err)
	}
	return &st, nil
}

func (s *Store) key(id string) string {
	return s.keyPrefix + id
}
