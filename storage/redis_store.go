// storage/redis_store.go
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chhz0/dslproc/types"
	"github.com/go-redis/redis/v8"
)

const resultTTL = 24 * time.Hour

type RedisStorage struct {
	client *redis.Client
	prefix string
}

func NewRedisStorage(addr, password string, db int) *RedisStorage {
	return &RedisStorage{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
		prefix: "dslproc:",
	}
}

func (s *RedisStorage) resultKey(id string) string {
	return s.prefix + "result:" + id
}

// 每次运行一个有序集合，score 为 Seq
func (s *RedisStorage) runKey(runID string) string {
	return s.prefix + "run:" + runID
}

func (s *RedisStorage) SaveResult(ctx context.Context, result *types.Result) error {
	if result.ID == "" {
		result.ID = generateID()
	}
	data, err := result.Serialize()
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.resultKey(result.ID), data, resultTTL)
	pipe.ZAdd(ctx, s.runKey(result.RunID), &redis.Z{
		Score:  float64(result.Seq),
		Member: result.ID,
	})
	pipe.Expire(ctx, s.runKey(result.RunID), resultTTL)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *RedisStorage) GetResult(ctx context.Context, id string) (*types.Result, error) {
	data, err := s.client.Get(ctx, s.resultKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrResultNotFound
	}
	if err != nil {
		return nil, err
	}
	return types.DeserializeResult(data)
}

func (s *RedisStorage) ListResults(ctx context.Context, runID string, limit int) ([]*types.Result, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit) - 1
	}
	ids, err := s.client.ZRange(ctx, s.runKey(runID), 0, stop).Result()
	if err != nil {
		return nil, err
	}

	var results []*types.Result
	for _, id := range ids {
		r, err := s.GetResult(ctx, id)
		if errors.Is(err, ErrResultNotFound) {
			continue // 已过期
		}
		if err != nil {
			return nil, fmt.Errorf("load result %s: %w", id, err)
		}
		results = append(results, r)
	}
	return results, nil
}

func (s *RedisStorage) Close() error {
	return s.client.Close()
}
