package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/chhz0/dslproc/types"
)

var (
	ErrResultNotFound = errors.New("result not found")
	ErrUnknownBackend = errors.New("unknown storage backend")
)

// Storage 分发结果日志。只记录处理结果，解析出的条目本身不落盘。
type Storage interface {
	SaveResult(ctx context.Context, result *types.Result) error
	GetResult(ctx context.Context, id string) (*types.Result, error)
	// ListResults 按 Seq 升序返回某次运行的结果，limit <= 0 表示不限
	ListResults(ctx context.Context, runID string, limit int) ([]*types.Result, error)
	Close() error
}

type Config struct {
	Backend       string `yaml:"backend"`
	Path          string `yaml:"path"`
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
}

// Open 按 Backend 创建存储：memory / bolt / sqlite / redis，空值等同 memory
func Open(cfg Config) (Storage, error) {
	switch cfg.Backend {
	case "", "memory":
		return NewMemoryStorage(), nil
	case "bolt":
		return NewBoltStorage(cfg.Path)
	case "sqlite":
		return NewSQLiteStorage(cfg.Path)
	case "redis":
		return NewRedisStorage(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
}
