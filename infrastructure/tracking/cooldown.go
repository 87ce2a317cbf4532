package tracking

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"
)

var (
	_ Reporter  = (*Cooldown)(nil)
	_ io.Closer = (*Cooldown)(nil)
)

// Cooldown wraps a Reporter and limits how often updates are delivered for
// each stage. A complete update is always delivered immediately. Other
// updates are delivered at most once per interval; the latest pending one
// is flushed when the interval elapses or when the stage completes.
type Cooldown struct {
	inner    Reporter
	interval time.Duration
	mu       sync.Mutex
	entries  map[string]*cooldownEntry
}

type cooldownEntry struct {
	lastFlush time.Time
	pending   *Progress
	timer     *time.Timer
}

// NewCooldown creates a Cooldown wrapping inner with the given minimum
// interval between deliveries per stage.
func NewCooldown(inner Reporter, interval time.Duration) *Cooldown {
	return &Cooldown{
		inner:    inner,
		interval: interval,
		entries:  make(map[string]*cooldownEntry),
	}
}

// OnProgress receives an update.
func (c *Cooldown) OnProgress(ctx context.Context, p Progress) error {
	stage := p.Stage()

	c.mu.Lock()

	if p.Complete() {
		if entry := c.entries[stage]; entry != nil {
			if entry.timer != nil {
				entry.timer.Stop()
			}
			delete(c.entries, stage)
		}
		c.mu.Unlock()
		return c.inner.OnProgress(ctx, p)
	}

	entry, exists := c.entries[stage]
	if !exists {
		entry = &cooldownEntry{}
		c.entries[stage] = entry
	}

	elapsed := time.Since(entry.lastFlush)
	if elapsed >= c.interval {
		if entry.timer != nil {
			entry.timer.Stop()
			entry.timer = nil
		}
		entry.pending = nil
		entry.lastFlush = time.Now()
		c.mu.Unlock()
		return c.inner.OnProgress(ctx, p)
	}

	pending := p
	entry.pending = &pending
	if entry.timer == nil {
		entry.timer = time.AfterFunc(c.interval-elapsed, func() {
			c.flushPending(stage)
		})
	}

	c.mu.Unlock()
	return nil
}

// Close flushes every pending update and stops all timers.
func (c *Cooldown) Close() error {
	c.mu.Lock()
	entries := c.entries
	c.entries = make(map[string]*cooldownEntry)
	c.mu.Unlock()

	var errs []error
	for _, entry := range entries {
		if entry.timer != nil {
			entry.timer.Stop()
		}
		if entry.pending != nil {
			errs = append(errs, c.inner.OnProgress(context.Background(), *entry.pending))
		}
	}
	return errors.Join(errs...)
}

func (c *Cooldown) flushPending(stage string) {
	c.mu.Lock()
	entry, exists := c.entries[stage]
	if !exists || entry.pending == nil {
		if exists {
			entry.timer = nil
		}
		c.mu.Unlock()
		return
	}

	p := *entry.pending
	entry.pending = nil
	entry.lastFlush = time.Now()
	entry.timer = nil
	c.mu.Unlock()

	_ = c.inner.OnProgress(context.Background(), p)
}
