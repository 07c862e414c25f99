// Package scheduler 驱动固定间隔的扫描循环。
package scheduler

import (
	"context"
	"time"

	"talon/internal/logger"
)

// Loop 按固定间隔执行任务。任务返回错误时改用退避间隔再试，
// 恢复成功后回到正常节奏，循环本身永不退出（除非 ctx 取消）。
type Loop struct {
	Interval       time.Duration
	Backoff        time.Duration
	RunImmediately bool

	ctx        context.Context
	nowFn      func() time.Time
	lastFailed bool
}

func NewLoop(ctx context.Context, interval, backoff time.Duration) *Loop {
	if ctx == nil {
		ctx = context.Background()
	}
	if backoff <= 0 {
		backoff = 30 * time.Second
	}
	return &Loop{
		Interval: interval,
		Backoff:  backoff,
		ctx:      ctx,
		nowFn:    time.Now,
	}
}

// Start 阻塞运行直到 ctx 取消。
func (l *Loop) Start(task func() error) {
	if l == nil || task == nil {
		return
	}
	if l.Interval <= 0 {
		logger.Warnf("scheduler: invalid interval=%s, exit", l.Interval)
		return
	}

	logger.Infof("scheduler: started interval=%s backoff=%s run_immediately=%v",
		l.Interval, l.Backoff, l.RunImmediately)

	if l.RunImmediately {
		l.runOnce(task)
	}
	for {
		wait := l.Interval
		if l.lastFailed {
			wait = l.Backoff
		}
		timer := time.NewTimer(wait)
		select {
		case <-l.ctx.Done():
			timer.Stop()
			logger.Infof("scheduler: ctx done, exit")
			return
		case <-timer.C:
		}
		l.runOnce(task)
	}
}

func (l *Loop) runOnce(task func() error) {
	start := l.nowFn()
	err := task()
	elapsed := l.nowFn().Sub(start).Truncate(time.Millisecond)
	if err != nil {
		l.lastFailed = true
		logger.Errorf("scheduler: iteration failed after %s, backing off %s: %v", elapsed, l.Backoff, err)
		return
	}
	if l.lastFailed {
		logger.Infof("scheduler: iteration recovered after %s", elapsed)
	}
	l.lastFailed = false
}
