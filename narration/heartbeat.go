package narration

import (
	"sync"
	"time"
)

// Heartbeat pulses the speech engine with a pause/resume pair while a long
// utterance is speaking. Several engine implementations silently halt
// utterances after a fixed wall-clock ceiling; the pulse resets that
// ceiling without audible effect.
//
// A Heartbeat is owned by exactly one playback session and must be stopped
// the instant that session ends, on every path — a leaked ticker toggling a
// finished session is a defect.
type Heartbeat struct {
	engine   Engine
	interval time.Duration

	stopOnce sync.Once
	stopCh   chan struct{}
	done     chan struct{}
}

// NewHeartbeat creates a heartbeat for the given engine. It does not start
// ticking until Start is called.
func NewHeartbeat(engine Engine, interval time.Duration) *Heartbeat {
	return &Heartbeat{
		engine:   engine,
		interval: interval,
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start begins pulsing on the configured interval.
func (h *Heartbeat) Start() {
	go h.loop()
}

// Stop cancels the heartbeat. Safe to call multiple times and before
// Start; it never blocks on the engine.
func (h *Heartbeat) Stop() {
	h.stopOnce.Do(func() { close(h.stopCh) })
}

func (h *Heartbeat) loop() {
	defer close(h.done)

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-h.stopCh:
			return
		case <-ticker.C:
			h.pulse()
		}
	}
}

// pulse resets the engine's utterance ceiling. Only pulses mid-speech;
// pausing an already-paused or silent engine would be audible or wrong.
func (h *Heartbeat) pulse() {
	if !h.engine.Speaking() || h.engine.Paused() {
		return
	}
	if err := h.engine.Pause(); err != nil {
		return
	}
	_ = h.engine.Resume()
}
