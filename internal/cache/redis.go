package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// RedisStore shares the listing cache across processes. Errors from redis
// degrade to cache misses so a flaky redis never takes reads down.
type RedisStore struct {
	redisdb *redis.Client
	ttl     time.Duration
}

func NewRedisStore(cfg RedisConfig) *RedisStore {
	redisdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})

	ttl := cfg.TTL

	if ttl <= 0 {
		ttl = 5 * time.Second
	}

	return &RedisStore{redisdb: redisdb, ttl: ttl}
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool) {
	val, err := s.redisdb.Get(ctx, key).Bytes()

	if err != nil {
		return nil, false
	}

	return val, true
}

func (s *RedisStore) Set(ctx context.Context, key string, val []byte) {
	_ = s.redisdb.Set(ctx, key, val, s.ttl).Err()
}

func (s *RedisStore) Delete(ctx context.Context, key string) {
	_ = s.redisdb.Del(ctx, key).Err()
}

// Ping checks redis connectivity at startup.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.redisdb.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.redisdb.Close()
}
