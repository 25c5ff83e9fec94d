// Package search implements the collaborator lookup used when sharing a
// workspace: a debouncer that only looks up the most recent term, and a
// filter that hides users who cannot be added.
package search

import (
	"context"
	"sync"
	"time"

	"github.com/mesh-intelligence/cypress/pkg/types"
)

// DefaultDelay is the quiet period before a lookup fires.
const DefaultDelay = 450 * time.Millisecond

// LookupFunc finds users for a search term.
type LookupFunc func(ctx context.Context, term string) ([]types.User, error)

// DeliverFunc receives the outcome of a lookup.
type DeliverFunc func(term string, users []types.User, err error)

// Debouncer delays lookups until input has been quiet for the configured
// delay. It owns at most one pending timer.
type Debouncer struct {
	delay   time.Duration
	lookup  LookupFunc
	deliver DeliverFunc

	// delivering is held for the whole of a delivery so Stop can wait it
	// out.
	delivering sync.Mutex

	mu      sync.Mutex
	timer   *time.Timer
	seq     uint64
	stopped bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewDebouncer returns a Debouncer. A non-positive delay uses DefaultDelay.
func NewDebouncer(delay time.Duration, lookup LookupFunc, deliver DeliverFunc) *Debouncer {
	if delay <= 0 {
		delay = DefaultDelay
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Debouncer{delay: delay, lookup: lookup, deliver: deliver, ctx: ctx, cancel: cancel}
}

// Query replaces any pending lookup with one for term.
func (d *Debouncer) Query(term string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.seq++
	seq := d.seq
	d.timer = time.AfterFunc(d.delay, func() { d.fire(seq, term) })
}

func (d *Debouncer) fire(seq uint64, term string) {
	if !d.live(seq) {
		return
	}
	users, err := d.lookup(d.ctx, term)

	d.delivering.Lock()
	defer d.delivering.Unlock()
	if !d.live(seq) {
		return
	}
	d.deliver(term, users, err)
}

func (d *Debouncer) live(seq uint64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return !d.stopped && seq == d.seq
}

// Stop cancels the pending timer and any running lookup. If a delivery is
// under way Stop waits for it; no delivery starts after Stop returns. Stop
// is idempotent and must not be called from the deliver func.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	if !d.stopped {
		d.stopped = true
		if d.timer != nil {
			d.timer.Stop()
			d.timer = nil
		}
		d.cancel()
	}
	d.mu.Unlock()

	// Wait out a delivery that passed its live check before stopped was set.
	d.delivering.Lock()
	d.delivering.Unlock()
}
