package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoopRunsUntilCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	l := NewLoop(ctx, 5*time.Millisecond, 5*time.Millisecond)
	l.RunImmediately = true

	var runs atomic.Int32
	done := make(chan struct{})
	go func() {
		l.Start(func() error {
			if runs.Add(1) >= 3 {
				cancel()
			}
			return nil
		})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not stop after cancel")
	}
	assert.GreaterOrEqual(t, runs.Load(), int32(3))
}

func TestLoopBacksOffAfterError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	// 失败后用 40ms 退避而不是 5ms 正常间隔。
	l := NewLoop(ctx, 5*time.Millisecond, 40*time.Millisecond)
	l.RunImmediately = true

	var stamps []time.Time
	done := make(chan struct{})
	go func() {
		l.Start(func() error {
			stamps = append(stamps, time.Now())
			if len(stamps) == 1 {
				return errors.New("boom")
			}
			cancel()
			return nil
		})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not stop")
	}
	if assert.GreaterOrEqual(t, len(stamps), 2) {
		assert.GreaterOrEqual(t, stamps[1].Sub(stamps[0]), 40*time.Millisecond)
	}
}

func TestLoopInvalidInterval(t *testing.T) {
	l := NewLoop(context.Background(), 0, 0)
	// 非法间隔直接返回，不会卡死。
	l.Start(func() error { return nil })
}
