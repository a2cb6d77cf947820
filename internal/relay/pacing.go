package relay

import (
	"context"
	"math/rand/v2"
	"time"
)

// pacer decides how long the relay waits between drains. Idle polls use the
// base interval; consecutive failures double the wait up to max.
type pacer struct {
	base    time.Duration
	max     time.Duration
	jitter  time.Duration
	current time.Duration
}

func newPacer(base, max, jitter time.Duration) pacer {
	if max < base {
		max = base
	}
	return pacer{base: base, max: max, jitter: jitter}
}

func (p *pacer) idle() time.Duration {
	p.current = 0
	return p.spread(p.base)
}

func (p *pacer) failed() time.Duration {
	next := p.current * 2
	if p.current < p.base {
		next = p.base * 2
	}
	if next > p.max {
		next = p.max
	}
	p.current = next
	return p.spread(next)
}

func (p *pacer) reset() {
	p.current = 0
}

func (p *pacer) spread(d time.Duration) time.Duration {
	if p.jitter <= 0 || d <= 0 {
		return d
	}
	return d + rand.N(p.jitter)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
