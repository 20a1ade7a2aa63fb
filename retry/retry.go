// retry/retry.go
package retry

import (
	"context"
	"time"
)

type Manager struct {
	Policy Policy
}

func NewManager(policy Policy) *Manager {
	return &Manager{Policy: policy}
}

// ShouldRetry 没有策略时不重试
func (rm *Manager) ShouldRetry(failures int) (time.Duration, bool) {
	if rm == nil || rm.Policy == nil {
		return 0, false
	}
	return rm.Policy.Delay(failures)
}

// Do 调用 fn，失败时按策略等待后再次调用，返回最后一次的错误。
// Permanent 错误和 ctx 结束都立即返回。
func (rm *Manager) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	for failures := 1; ; failures++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if IsPermanent(err) || ctx.Err() != nil {
			return err
		}

		delay, ok := rm.ShouldRetry(failures)
		if !ok {
			return err
		}

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return err
		}
	}
}
