package crew

import (
	"context"
	"sync"
	"time"
)

// limiter spaces model requests so no more than maxRPM start in any minute.
// Every attempt counts, including client retries.
type limiter struct {
	mu       sync.Mutex
	interval time.Duration
	last     time.Time
	now      func() time.Time
	sleep    func(context.Context, time.Duration) error
}

func newLimiter(maxRPM int) *limiter {
	l := &limiter{now: time.Now, sleep: sleepContext}
	if maxRPM > 0 {
		l.interval = time.Minute / time.Duration(maxRPM)
	}
	return l
}

// Wait blocks until the next request may start.
func (l *limiter) Wait(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.interval > 0 && !l.last.IsZero() {
		if wait := l.interval - l.now().Sub(l.last); wait > 0 {
			if err := l.sleep(ctx, wait); err != nil {
				return err
			}
		}
	}
	l.last = l.now()
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
