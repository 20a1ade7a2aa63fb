// middleware/middleware.go
package middleware

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/chhz0/dslproc/retry"
	"github.com/chhz0/dslproc/types"
)

type Handler func(ctx context.Context, item *types.Item) error
type Middleware func(next Handler) Handler

// 中间件链，第一个为最外层
func Chain(middlewares ...Middleware) Middleware {
	return func(final Handler) Handler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			final = middlewares[i](final)
		}
		return final
	}
}

// 超时中间件。只设置 context 截止时间，处理器需要自行响应 ctx.Done()。
func Timeout(d time.Duration) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, item *types.Item) error {
			if d <= 0 {
				return next(ctx, item)
			}
			ctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()
			return next(ctx, item)
		}
	}
}

// 日志中间件
func Logger(logger *slog.Logger) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, item *types.Item) error {
			start := time.Now()
			logger.Debug("item started",
				slog.String("type", item.Type),
				slog.Int("options", item.Options.Len()),
			)

			err := next(ctx, item)

			elapsed := time.Since(start)
			if err != nil {
				// 失败由处理器统一按 Error 记录，这里只留调试信息
				logger.Debug("item failed",
					slog.String("type", item.Type),
					slog.Duration("elapsed", elapsed),
					slog.String("error", err.Error()),
				)
			} else {
				logger.Debug("item completed",
					slog.String("type", item.Type),
					slog.Duration("elapsed", elapsed),
				)
			}
			return err
		}
	}
}

// 重试中间件：失败后在同一次分发内重新调用，条目不会重新入队
func Retry(rm *retry.Manager) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, item *types.Item) error {
			return rm.Do(ctx, func(ctx context.Context) error {
				return next(ctx, item)
			})
		}
	}
}

// 指标收集中间件
func Metrics(stats *Stats) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, item *types.Item) error {
			start := time.Now()
			err := next(ctx, item)
			stats.record(item.Type, time.Since(start), err)
			return err
		}
	}
}

// TypeStats 单一类型的累计指标
type TypeStats struct {
	Type     string        `json:"type"`
	Calls    int64         `json:"calls"`
	Failures int64         `json:"failures"`
	Total    time.Duration `json:"total"`
}

// Stats 进程内指标，可并发使用
type Stats struct {
	mu     sync.Mutex
	byType map[string]*TypeStats
}

func NewStats() *Stats {
	return &Stats{byType: make(map[string]*TypeStats)}
}

func (s *Stats) record(itemType string, d time.Duration, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ts, ok := s.byType[itemType]
	if !ok {
		ts = &TypeStats{Type: itemType}
		s.byType[itemType] = ts
	}
	ts.Calls++
	ts.Total += d
	if err != nil {
		ts.Failures++
	}
}

// Snapshot 按类型名排序返回副本
func (s *Stats) Snapshot() []TypeStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]TypeStats, 0, len(s.byType))
	for _, ts := range s.byType {
		out = append(out, *ts)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Type < out[j].Type })
	return out
}
