package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisSessionPrefix = "session:"

// RedisSessionStore persists sessions in Redis so multiple replicas can share
// them. Expiry is delegated to Redis key TTLs.
type RedisSessionStore struct {
	client *redis.Client
}

// NewRedisSessionStore wraps an existing Redis client.
func NewRedisSessionStore(client *redis.Client) *RedisSessionStore {
	return &RedisSessionStore{client: client}
}

// NewRedisSessionStoreFromURL dials Redis using a redis:// URL.
func NewRedisSessionStoreFromURL(url string) (*RedisSessionStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return &RedisSessionStore{client: redis.NewClient(opts)}, nil
}

func (s *RedisSessionStore) Save(ctx context.Context, record SessionRecord) error {
	ttl := time.Until(record.ExpiresAt)
	if ttl <= 0 {
		return errors.New("session already expired")
	}
	key := redisSessionPrefix + record.Token
	if err := s.client.Set(ctx, key, record.UserID, ttl).Err(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *RedisSessionStore) Get(ctx context.Context, token string) (SessionRecord, bool, error) {
	key := redisSessionPrefix + token
	pipe := s.client.Pipeline()
	getCmd := pipe.Get(ctx, key)
	ttlCmd := pipe.TTL(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		if errors.Is(err, redis.Nil) {
			return SessionRecord{}, false, nil
		}
		return SessionRecord{}, false, fmt.Errorf("load session: %w", err)
	}
	record := SessionRecord{Token: token, UserID: getCmd.Val()}
	if ttl := ttlCmd.Val(); ttl > 0 {
		record.ExpiresAt = time.Now().Add(ttl).UTC()
	}
	return record, true, nil
}

func (s *RedisSessionStore) Delete(ctx context.Context, token string) error {
	if err := s.client.Del(ctx, redisSessionPrefix+token).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// PurgeExpired is a no-op: Redis evicts expired session keys itself.
func (s *RedisSessionStore) PurgeExpired(context.Context, time.Time) error {
	return nil
}

// Ping verifies connectivity to Redis.
func (s *RedisSessionStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close releases the underlying client.
func (s *RedisSessionStore) Close() error {
	return s.client.Close()
}

var _ SessionStore = (*RedisSessionStore)(nil)
var _ SessionStore = (*MemorySessionStore)(nil)
