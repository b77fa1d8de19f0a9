package pads

import (
	"context"
	"sync"
)

// Pin is a digital input with awaitable levels. WaitHigh and WaitLow
// return immediately when the pin is already at the requested level,
// otherwise they block until it reaches it or ctx is done.
type Pin interface {
	WaitHigh(ctx context.Context) error
	WaitLow(ctx context.Context) error
}

// LevelPin is the software pin every input source drives. A source calls
// Set from its read loop or interrupt handler; any number of watchers
// block on the level they care about.
type LevelPin struct {
	mu      sync.Mutex
	level   bool
	changed chan struct{}
}

func NewLevelPin() *LevelPin {
	return &LevelPin{changed: make(chan struct{})}
}

// Set updates the pin level and wakes all waiters when it changes.
// Setting the level the pin already has is a no-op, so sources may feed
// absolute levels without tracking edges themselves.
func (p *LevelPin) Set(level bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.level == level {
		return
	}
	p.level = level
	close(p.changed)
	p.changed = make(chan struct{})
}

// Level reports the current level.
func (p *LevelPin) Level() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.level
}

func (p *LevelPin) WaitHigh(ctx context.Context) error { return p.wait(ctx, true) }

func (p *LevelPin) WaitLow(ctx context.Context) error { return p.wait(ctx, false) }

func (p *LevelPin) wait(ctx context.Context, level bool) error {
	for {
		p.mu.Lock()
		if p.level == level {
			p.mu.Unlock()
			return nil
		}
		changed := p.changed
		p.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-changed:
		}
	}
}
