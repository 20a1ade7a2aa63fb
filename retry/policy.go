// retry/policy.go
package retry

import (
	"errors"
	"math"
	"time"
)

// Policy 决定处理器失败后是否在本次分发内再调用一次。
// failures 为该条目已失败的次数（从 1 开始），返回等待时间及是否重试。
// 重试只发生在同一次分发里，条目不会回到待处理队列，结果里只记录最后一次的错误。
type Policy interface {
	Delay(failures int) (time.Duration, bool)
}

// Fixed 每次等待相同的间隔，最多重试 MaxAttempts 次
type Fixed struct {
	Interval    time.Duration
	MaxAttempts int
}

func (p *Fixed) Delay(failures int) (time.Duration, bool) {
	if failures > p.MaxAttempts {
		return 0, false
	}
	return p.Interval, true
}

// Backoff 从 Initial 开始每次翻倍，Max 大于 0 时封顶
type Backoff struct {
	Initial     time.Duration
	Max         time.Duration
	MaxAttempts int
}

func (p *Backoff) Delay(failures int) (time.Duration, bool) {
	if failures > p.MaxAttempts {
		return 0, false
	}
	d := p.Initial
	for i := 1; i < failures; i++ {
		if (p.Max > 0 && d >= p.Max) || d > math.MaxInt64/2 {
			break
		}
		d *= 2
	}
	if p.Max > 0 && d > p.Max {
		d = p.Max
	}
	return d, true
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent 标记处理器错误不可重试，例如选项值本身非法
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent 报告 err 链上是否有 Permanent 标记
func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}
