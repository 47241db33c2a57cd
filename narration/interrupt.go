package narration

import (
	"sync"
	"time"
)

// InterruptGuard distinguishes user-initiated scrolling from the engine's
// own auto-scroll to the current segment. The controller marks each
// self-inflicted scroll; raw input signals that arrive within the grace
// window after such a mark are attributed to the auto-scroll and must not
// cancel playback. This distinction is the central correctness property of
// the whole component.
type InterruptGuard struct {
	mu    sync.Mutex
	grace time.Duration
	last  time.Time
	now   func() time.Time
}

// NewInterruptGuard creates a guard with the given grace window.
func NewInterruptGuard(grace time.Duration) *InterruptGuard {
	return &InterruptGuard{grace: grace, now: time.Now}
}

// SetNowFunc replaces the clock, for tests that need to step time.
func (g *InterruptGuard) SetNowFunc(now func() time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.now = now
}

// MarkAutoScroll records that the engine is about to scroll the view
// itself. Must be called before the host performs the scroll.
func (g *InterruptGuard) MarkAutoScroll() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.last = g.now()
}

// InGraceWindow reports whether an input signal arriving now should be
// attributed to the most recent auto-scroll.
func (g *InterruptGuard) InGraceWindow() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.last.IsZero() {
		return false
	}
	return g.now().Sub(g.last) < g.grace
}
