package narration

import "sync"

// VisibilityTracker maintains the set of subsections currently on screen.
// The host UI feeds it viewport-intersection updates continuously,
// independent of playback, so "resume from where I'm reading" is accurate
// even if the user never pressed play. Playback only reads it, and only at
// the moment a session starts.
type VisibilityTracker struct {
	mu      sync.RWMutex
	visible map[string]bool
}

// NewVisibilityTracker creates an empty tracker.
func NewVisibilityTracker() *VisibilityTracker {
	return &VisibilityTracker{visible: make(map[string]bool)}
}

// Observe records a single subsection entering or leaving the viewport.
func (t *VisibilityTracker) Observe(id string, onScreen bool) {
	if id == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if onScreen {
		t.visible[id] = true
	} else {
		delete(t.visible, id)
	}
}

// Replace swaps the whole visible set, for hosts that recompute visibility
// per scroll rather than diffing per element.
func (t *VisibilityTracker) Replace(ids []string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.visible = make(map[string]bool, len(ids))
	for _, id := range ids {
		if id != "" {
			t.visible[id] = true
		}
	}
}

// Visible reports whether the subsection is currently on screen.
func (t *VisibilityTracker) Visible(id string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.visible[id]
}

// FirstVisible returns the first id from order that is currently on
// screen. Order should be document order so the topmost subsection wins.
func (t *VisibilityTracker) FirstVisible(order []string) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, id := range order {
		if t.visible[id] {
			return id, true
		}
	}
	return "", false
}
