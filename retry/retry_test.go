package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackoff(t *testing.T) {
	p := &Backoff{Initial: 100 * time.Millisecond, Max: 300 * time.Millisecond, MaxAttempts: 4}

	want := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 300 * time.Millisecond, 300 * time.Millisecond}
	for i, w := range want {
		d, ok := p.Delay(i + 1)
		require.True(t, ok, "failure %d", i+1)
		assert.Equal(t, w, d, "failure %d", i+1)
	}
	_, ok := p.Delay(5)
	assert.False(t, ok)
}

func TestBackoff_UncappedDoesNotOverflow(t *testing.T) {
	p := &Backoff{Initial: time.Second, MaxAttempts: 100}
	d, ok := p.Delay(3)
	require.True(t, ok)
	assert.Equal(t, 4*time.Second, d)

	p.Max = time.Minute
	d, _ = p.Delay(90)
	assert.Equal(t, time.Minute, d)
}

func TestFixed(t *testing.T) {
	p := &Fixed{Interval: time.Second, MaxAttempts: 1}
	d, ok := p.Delay(1)
	assert.True(t, ok)
	assert.Equal(t, time.Second, d)
	_, ok = p.Delay(2)
	assert.False(t, ok)
}

func TestPermanent(t *testing.T) {
	assert.NoError(t, Permanent(nil))

	base := errors.New("bad color")
	err := fmt.Errorf("task: %w", Permanent(base))
	assert.True(t, IsPermanent(err))
	assert.ErrorIs(t, err, base)
	assert.EqualError(t, Permanent(base), "bad color")
	assert.False(t, IsPermanent(base))
}

func TestManager_DoGivesUp(t *testing.T) {
	rm := NewManager(&Fixed{Interval: time.Millisecond, MaxAttempts: 2})
	calls := 0
	err := rm.Do(context.Background(), func(context.Context) error {
		calls++
		return errors.New("always")
	})
	assert.EqualError(t, err, "always")
	assert.Equal(t, 3, calls)
}

func TestManager_DoStopsOnPermanent(t *testing.T) {
	rm := NewManager(&Fixed{Interval: time.Millisecond, MaxAttempts: 5})
	calls := 0
	err := rm.Do(context.Background(), func(context.Context) error {
		calls++
		return Permanent(errors.New("invalid option"))
	})
	assert.True(t, IsPermanent(err))
	assert.Equal(t, 1, calls)
}

func TestManager_NilPolicyRunsOnce(t *testing.T) {
	var rm *Manager
	calls := 0
	err := rm.Do(context.Background(), func(context.Context) error {
		calls++
		return errors.New("once")
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestManager_ContextCancelStopsWaiting(t *testing.T) {
	rm := NewManager(&Fixed{Interval: time.Hour, MaxAttempts: 5})
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := rm.Do(ctx, func(context.Context) error {
		calls++
		cancel()
		return errors.New("fail")
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}
