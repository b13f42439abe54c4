package scheduler

import (
	"context"
	"time"

	"legtracker/internal/logger"
)

// IntervalScheduler runs a task on a fixed cadence until its context is
// cancelled. The next run triggers on the wall-clock interval regardless of
// how long the previous task took; overlap protection belongs to the task.
// IntervalFn, when set, is consulted before every wait so the cadence can be
// retuned at runtime.
type IntervalScheduler struct {
	Interval       time.Duration
	RunImmediately bool
	IntervalFn     func() time.Duration

	ctx context.Context
}

func NewIntervalScheduler(ctx context.Context, interval time.Duration) *IntervalScheduler {
	if ctx == nil {
		ctx = context.Background()
	}
	return &IntervalScheduler{
		Interval: interval,
		ctx:      ctx,
	}
}

func (s *IntervalScheduler) Start(task func()) {
	if s == nil {
		return
	}
	if task == nil {
		logger.Warnf("IntervalScheduler: task is nil, exit")
		return
	}
	if s.Interval <= 0 && s.IntervalFn == nil {
		logger.Warnf("IntervalScheduler: invalid interval=%s, exit", s.Interval)
		return
	}
	if s.ctx == nil {
		s.ctx = context.Background()
	}
	if s.RunImmediately {
		task()
	}
	for {
		wait := s.Interval
		if s.IntervalFn != nil {
			if d := s.IntervalFn(); d > 0 {
				wait = d
			}
		}
		if wait <= 0 {
			logger.Warnf("IntervalScheduler: invalid interval=%s, exit", wait)
			return
		}
		timer := time.NewTimer(wait)
		select {
		case <-s.ctx.Done():
			timer.Stop()
			logger.Debugf("IntervalScheduler: ctx done, exit")
			return
		case <-timer.C:
		}
		task()
	}
}

// ClampInterval bounds a configured refresh interval to the supported range.
func ClampInterval(d, min, max time.Duration) time.Duration {
	if d < min {
		return min
	}
	if d > max {
		return max
	}
	return d
}
