package executors

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoopTicksUntilCancelled(t *testing.T) {
	var ticks atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())

	loop := &Loop{
		Name:     "test",
		Interval: 5 * time.Millisecond,
		Tick: func(ctx context.Context) error {
			if ticks.Add(1) == 2 {
				return errors.New("tick errors do not stop the loop")
			}
			return nil
		},
	}

	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()

	assert.Eventually(t, func() bool { return ticks.Load() >= 3 }, time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatalf("loop did not stop after cancel")
	}
}

func TestLoopRejectsNonPositiveInterval(t *testing.T) {
	for _, interval := range []time.Duration{0, -time.Second} {
		loop := &Loop{Name: "bad", Interval: interval, Tick: func(context.Context) error { return nil }}
		assert.Error(t, loop.Run(context.Background()), "interval %s", interval)
	}
}

func TestNewSchedulerClampsIntervals(t *testing.T) {
	s := NewScheduler(Deps{}, Config{TradingInterval: 0, MonitoringInterval: -time.Second})
	assert.Equal(t, DefaultTradingInterval, s.cfg.TradingInterval)
	assert.Equal(t, DefaultMonitoringInterval, s.cfg.MonitoringInterval)
	assert.Equal(t, 1, s.cfg.WorkerPoolSize)
	assert.Equal(t, 100, s.cfg.CandleLimit)

	s = NewScheduler(Deps{}, Config{TradingInterval: time.Minute, MonitoringInterval: 5 * time.Second})
	assert.Equal(t, time.Minute, s.cfg.TradingInterval)
	assert.Equal(t, 5*time.Second, s.cfg.MonitoringInterval)
}

func TestLoopStopsDuringJitter(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	loop := &Loop{
		Name:     "jitter",
		Interval: time.Millisecond,
		Jitter:   time.Hour,
		Tick: func(ctx context.Context) error {
			t.Errorf("tick should not run while jitter is pending")
			return nil
		},
	}

	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()
	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatalf("loop did not stop while waiting on jitter")
	}
}

func TestKeyGuardSkipsBusyKeys(t *testing.T) {
	g := newKeyGuard()

	release, ok := g.tryLock("u1|BTCUSDT")
	assert.True(t, ok)

	_, ok = g.tryLock("u1|BTCUSDT")
	assert.False(t, ok)

	_, ok = g.tryLock("u2|BTCUSDT")
	assert.True(t, ok)

	release()
	_, ok = g.tryLock("u1|BTCUSDT")
	assert.True(t, ok)
}
