package chess

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/park285/chess-web/internal/service/cache"
)

const gameKeyPrefix = "chess:web:game:"

func gameKey(id string) string { return gameKeyPrefix + id }

// RedisStore keeps each game as a JSON value with a TTL refreshed on every
// write. Updates run inside WATCH; a concurrent writer makes the loser fail
// with ErrConcurrentUpdate and nothing is applied.
type RedisStore struct {
	cache  *cache.CacheService
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewRedisStore(c *cache.CacheService, ttl time.Duration, logger *zap.Logger) *RedisStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisStore{cache: c, rdb: c.Client(), ttl: ttl, logger: logger}
}

func (s *RedisStore) Create(ctx context.Context, rec *GameRecord) error {
	if rec == nil || rec.ID == "" {
		return errInvalidRecord
	}
	return s.cache.Set(ctx, gameKey(rec.ID), rec, s.ttl)
}

func (s *RedisStore) Load(ctx context.Context, id string) (*GameRecord, error) {
	rec := &GameRecord{}
	found, err := s.cache.Get(ctx, gameKey(id), rec)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrSessionNotFound
	}
	return rec, nil
}

func (s *RedisStore) Update(ctx context.Context, id string, fn func(rec *GameRecord) error) (*GameRecord, error) {
	key := gameKey(id)
	var out *GameRecord

	err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return ErrSessionNotFound
		}
		if err != nil {
			return err
		}
		var cur GameRecord
		if err := json.Unmarshal(raw, &cur); err != nil {
			return fmt.Errorf("decode game %s: %w", id, err)
		}

		if err := fn(&cur); err != nil {
			return err
		}
		cur.UpdatedAt = time.Now()

		next, err := json.Marshal(&cur)
		if err != nil {
			return fmt.Errorf("encode game %s: %w", id, err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, next, s.ttl)
			return nil
		})
		if err != nil {
			return err
		}
		out = &cur
		return nil
	}, key)

	if errors.Is(err, redis.TxFailedErr) {
		s.logger.Info("chess_session_conflict", zap.String("game_id", id))
		return nil, ErrConcurrentUpdate
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Close is a no-op; the underlying client is owned by the cache service.
func (s *RedisStore) Close() error { return nil }
