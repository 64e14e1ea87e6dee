package cachesvc

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/trezcool/ritmatiza/core"
)

// RedisStore shares entries between api instances.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
}

var _ Store = (*RedisStore)(nil)

func NewRedisStore(rdb *redis.Client, prefix string) *RedisStore {
	return &RedisStore{rdb: rdb, prefix: prefix}
}

// OpenRedis connects to the configured server and checks it answers.
func OpenRedis(ctx context.Context, conf core.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     conf.Addr,
		Password: conf.Password,
		DB:       conf.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, errors.Wrap(err, "pinging redis")
	}
	return rdb, nil
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := s.rdb.Get(ctx, s.prefix+key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrap(err, "redis get")
	}
	return val, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return errors.Wrap(s.rdb.Set(ctx, s.prefix+key, value, ttl).Err(), "redis set")
}

func (s *RedisStore) Pop(ctx context.Context, key string) (string, bool, error) {
	val, err := s.rdb.GetDel(ctx, s.prefix+key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrap(err, "redis getdel")
	}
	return val, true, nil
}
