package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-redis/redis/v8"

	"github.com/otic-foundation/chatrelay/pkg/interfaces"
)

// RedisMemory implements a Redis-backed conversation store. Each session
// maps to a Redis list of JSON-encoded turns; the history bound is
// enforced server-side with LTRIM so concurrent appends against the same
// session cannot grow the list past the cap. Keys carry a TTL refreshed
// on every append, which gives idle-session eviction for free.
type RedisMemory struct {
	client     *redis.Client
	maxTurns   int
	ttl        time.Duration
	keyPrefix  string
	maxRetries uint64
}

// RedisOption represents an option for configuring the Redis store
type RedisOption func(*RedisMemory)

// WithRedisMaxTurns sets the maximum number of turns kept per session
func WithRedisMaxTurns(turns int) RedisOption {
	return func(r *RedisMemory) {
		r.maxTurns = turns
	}
}

// WithTTL sets the idle lifetime of a session key
func WithTTL(ttl time.Duration) RedisOption {
	return func(r *RedisMemory) {
		r.ttl = ttl
	}
}

// WithKeyPrefix sets a custom prefix for Redis keys
func WithKeyPrefix(prefix string) RedisOption {
	return func(r *RedisMemory) {
		r.keyPrefix = prefix
	}
}

// WithMaxRetries sets how many times transient Redis failures are retried
func WithMaxRetries(retries uint64) RedisOption {
	return func(r *RedisMemory) {
		r.maxRetries = retries
	}
}

// NewRedisMemory creates a new Redis-backed conversation store
func NewRedisMemory(client *redis.Client, options ...RedisOption) *RedisMemory {
	memory := &RedisMemory{
		client:     client,
		maxTurns:   10,
		ttl:        24 * time.Hour,
		keyPrefix:  "chatrelay:history:",
		maxRetries: 3,
	}

	for _, option := range options {
		option(memory)
	}

	return memory
}

// RedisConfig contains connection configuration for Redis
type RedisConfig struct {
	// Addr is the Redis address (e.g., "localhost:6379")
	Addr string

	// Password is the Redis password
	Password string

	// DB is the Redis database number
	DB int
}

// NewRedisMemoryFromConfig connects to Redis and returns a store backed
// by it. The connection is verified with a ping so a misconfigured
// address fails at startup instead of on the first chat request.
func NewRedisMemoryFromConfig(ctx context.Context, config RedisConfig, options ...RedisOption) (*RedisMemory, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})

	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisMemory(client, options...), nil
}

func (r *RedisMemory) key(session string) string {
	return r.keyPrefix + session
}

// AppendUser appends a user turn to the session's history
func (r *RedisMemory) AppendUser(ctx context.Context, session, text string) error {
	return r.append(ctx, session, interfaces.Message{Role: interfaces.RoleUser, Content: text})
}

// AppendAssistant appends an assistant turn, dropping empty text
func (r *RedisMemory) AppendAssistant(ctx context.Context, session, text string) error {
	if text == "" {
		return nil
	}
	return r.append(ctx, session, interfaces.Message{Role: interfaces.RoleAssistant, Content: text})
}

func (r *RedisMemory) append(ctx context.Context, session string, message interfaces.Message) error {
	payload, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal turn: %w", err)
	}

	key := r.key(session)
	operation := func() error {
		pipe := r.client.TxPipeline()
		pipe.RPush(ctx, key, payload)
		if r.maxTurns > 0 {
			pipe.LTrim(ctx, key, int64(-r.maxTurns), -1)
		}
		pipe.Expire(ctx, key, r.ttl)
		_, err := pipe.Exec(ctx)
		return err
	}

	if err := backoff.Retry(operation, r.backoff(ctx)); err != nil {
		return fmt.Errorf("failed to append turn to Redis: %w", err)
	}

	return nil
}

// Snapshot returns the session's history in order
func (r *RedisMemory) Snapshot(ctx context.Context, session string) ([]interfaces.Message, error) {
	results, err := r.client.LRange(ctx, r.key(session), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read history from Redis: %w", err)
	}

	messages := make([]interfaces.Message, 0, len(results))
	for _, result := range results {
		var message interfaces.Message
		if err := json.Unmarshal([]byte(result), &message); err != nil {
			return nil, fmt.Errorf("failed to unmarshal turn: %w", err)
		}
		messages = append(messages, message)
	}

	return messages, nil
}

// Clear removes the session's history
func (r *RedisMemory) Clear(ctx context.Context, session string) error {
	if err := r.client.Del(ctx, r.key(session)).Err(); err != nil {
		return fmt.Errorf("failed to clear history in Redis: %w", err)
	}
	return nil
}

// Close closes the underlying Redis connection
func (r *RedisMemory) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

func (r *RedisMemory) backoff(ctx context.Context) backoff.BackOff {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 100 * time.Millisecond
	return backoff.WithContext(backoff.WithMaxRetries(policy, r.maxRetries), ctx)
}
