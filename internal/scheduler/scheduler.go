package scheduler

import (
	"context"
	"time"

	"tidebot/internal/logger"
)

// TickScheduler runs a task at a fixed cadence until its context is done.
// The interval is measured from the end of one run to the start of the next,
// so a slow task never stacks overlapping runs.
type TickScheduler struct {
	Interval       time.Duration
	RunImmediately bool

	ctx   context.Context
	nowFn func() time.Time
}

func NewTickScheduler(ctx context.Context, interval time.Duration) *TickScheduler {
	if ctx == nil {
		ctx = context.Background()
	}
	return &TickScheduler{
		Interval: interval,
		ctx:      ctx,
		nowFn:    time.Now,
	}
}

// Start blocks, invoking task every Interval, and returns when the context is
// cancelled.
func (s *TickScheduler) Start(task func()) {
	if s == nil {
		return
	}
	if task == nil {
		logger.Warnf("TickScheduler: task is nil, exit")
		return
	}
	if s.Interval <= 0 {
		logger.Warnf("TickScheduler: invalid interval=%s, exit", s.Interval)
		return
	}
	if s.ctx == nil {
		s.ctx = context.Background()
	}
	if s.nowFn == nil {
		s.nowFn = time.Now
	}

	logger.Infof("TickScheduler: started interval=%s run_immediately=%v at=%s",
		s.Interval, s.RunImmediately, s.nowFn().UTC().Format(time.RFC3339))

	if s.RunImmediately {
		select {
		case <-s.ctx.Done():
			return
		default:
		}
		task()
	}

	timer := time.NewTimer(s.Interval)
	defer timer.Stop()
	for {
		select {
		case <-s.ctx.Done():
			logger.Infof("TickScheduler: ctx done, exit")
			return
		case <-timer.C:
		}
		task()
		timer.Reset(s.Interval)
	}
}
