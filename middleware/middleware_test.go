package middleware

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/chhz0/dslproc/retry"
	"github.com/chhz0/dslproc/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChain_Order(t *testing.T) {
	var trace []string
	mw := func(name string) Middleware {
		return func(next Handler) Handler {
			return func(ctx context.Context, item *types.Item) error {
				trace = append(trace, name)
				return next(ctx, item)
			}
		}
	}
	h := Chain(mw("a"), mw("b"), mw("c"))(func(context.Context, *types.Item) error {
		trace = append(trace, "h")
		return nil
	})
	require.NoError(t, h(context.Background(), &types.Item{Type: "x"}))
	assert.Equal(t, []string{"a", "b", "c", "h"}, trace)
}

func TestChain_Empty(t *testing.T) {
	called := false
	h := Chain()(func(context.Context, *types.Item) error { called = true; return nil })
	require.NoError(t, h(context.Background(), &types.Item{}))
	assert.True(t, called)
}

func TestTimeout_SetsDeadline(t *testing.T) {
	h := Timeout(50 * time.Millisecond)(func(ctx context.Context, _ *types.Item) error {
		_, ok := ctx.Deadline()
		assert.True(t, ok)
		<-ctx.Done()
		return ctx.Err()
	})
	err := h(context.Background(), &types.Item{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestTimeout_ZeroDisabled(t *testing.T) {
	h := Timeout(0)(func(ctx context.Context, _ *types.Item) error {
		_, ok := ctx.Deadline()
		assert.False(t, ok)
		return nil
	})
	require.NoError(t, h(context.Background(), &types.Item{}))
}

func TestLogger_LogsFailure(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	h := Logger(logger)(func(context.Context, *types.Item) error { return errors.New("bad input") })
	err := h(context.Background(), &types.Item{Type: "task"})
	require.Error(t, err)

	out := buf.String()
	assert.Contains(t, out, "item started")
	assert.Contains(t, out, "item failed")
	assert.Contains(t, out, "type=task")
	assert.Contains(t, out, "bad input")
}

func TestRetry_RetriesUntilSuccess(t *testing.T) {
	attempts := 0
	rm := retry.NewManager(&retry.Fixed{Interval: time.Millisecond, MaxAttempts: 3})
	h := Retry(rm)(func(context.Context, *types.Item) error {
		attempts++
		if attempts < 3 {
			return errors.New("flaky")
		}
		return nil
	})
	require.NoError(t, h(context.Background(), &types.Item{}))
	assert.Equal(t, 3, attempts)
}

func TestMetrics_Records(t *testing.T) {
	stats := NewStats()
	h := Metrics(stats)(func(_ context.Context, item *types.Item) error {
		if item.Type == "bad" {
			return errors.New("x")
		}
		return nil
	})
	_ = h(context.Background(), &types.Item{Type: "ok"})
	_ = h(context.Background(), &types.Item{Type: "ok"})
	_ = h(context.Background(), &types.Item{Type: "bad"})

	snap := stats.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "bad", snap[0].Type)
	assert.Equal(t, int64(1), snap[0].Calls)
	assert.Equal(t, int64(1), snap[0].Failures)
	assert.Equal(t, "ok", snap[1].Type)
	assert.Equal(t, int64(2), snap[1].Calls)
	assert.Equal(t, int64(0), snap[1].Failures)
}
