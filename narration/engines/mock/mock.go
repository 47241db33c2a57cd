// Package mock provides a scriptable speech engine for testing.
package mock

import (
	"sync"
	"time"

	"github.com/lessonkit/recite/narration"
)

// Engine implements the narration engine interface without producing any
// audio. Tests drive it by firing lifecycle events explicitly with
// StartUtterance, FinishUtterance and FailUtterance; with autoplay enabled
// it instead walks each utterance through started/finished on its own,
// which also makes it a usable silent fallback engine.
//
// The engine never invokes the subscribed listener while holding its own
// lock. Callers routinely call Speak and Cancel from inside their own
// critical sections, and events delivered re-entrantly would deadlock them.
type Engine struct {
	mu       sync.Mutex
	listener func(narration.Event)

	// utterance counts every Speak; Cancel bumps gen so that pending
	// autoplay goroutines and stale test scripts turn into no-ops.
	gen      uint64
	speaking bool
	paused   bool

	speakCount  int
	cancelCount int
	pauseCount  int
	resumeCount int
	last        narration.Utterance
	utterances  []narration.Utterance

	speakErr       error
	autoplay       bool
	autoplayDelay  time.Duration
	interruptEvent bool

	voices []narration.Voice
}

// New creates a mock engine with a default voice set.
func New() *Engine {
	return &Engine{
		autoplayDelay: 10 * time.Millisecond,
		voices: []narration.Voice{
			{ID: "mock-voice-1", Name: "Mock Voice 1", Language: "en-US", Gender: "neutral"},
			{ID: "mock-voice-2", Name: "Mock Voice 2", Language: "en-GB", Gender: "female"},
			{ID: "mock-voice-3", Name: "Mock Voice 3", Language: "de-DE", Gender: "male"},
		},
	}
}

// Subscribe registers the single event listener.
func (e *Engine) Subscribe(fn func(narration.Event)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listener = fn
}

// Speak accepts an utterance. It returns immediately; lifecycle events
// arrive later, from the test script or the autoplay goroutine.
func (e *Engine) Speak(u narration.Utterance) error {
	e.mu.Lock()
	e.speakCount++
	e.last = u
	e.utterances = append(e.utterances, u)
	if e.speakErr != nil {
		err := e.speakErr
		e.mu.Unlock()
		return err
	}
	e.speaking = true
	e.paused = false
	gen := e.gen
	autoplay := e.autoplay
	delay := e.autoplayDelay
	e.mu.Unlock()

	if autoplay {
		go e.autoplayRun(gen, delay)
	}
	return nil
}

func (e *Engine) autoplayRun(gen uint64, delay time.Duration) {
	if !e.fireIfCurrent(gen, narration.Event{Kind: narration.EventStarted}) {
		return
	}
	time.Sleep(delay)
	e.mu.Lock()
	if gen != e.gen || !e.speaking {
		e.mu.Unlock()
		return
	}
	e.speaking = false
	e.mu.Unlock()
	e.fireIfCurrent(gen, narration.Event{Kind: narration.EventFinished})
}

// Cancel discards the current utterance. No further events follow except,
// when configured with EmitInterruptOnCancel, a single cancellation error
// event.
func (e *Engine) Cancel() {
	e.mu.Lock()
	e.cancelCount++
	wasSpeaking := e.speaking
	e.gen++
	e.speaking = false
	e.paused = false
	emit := e.interruptEvent && wasSpeaking
	fn := e.listener
	e.mu.Unlock()

	// Delivered asynchronously: callers routinely cancel from inside
	// their own critical sections.
	if emit && fn != nil {
		go fn(narration.Event{Kind: narration.EventError, Err: narration.ErrInterrupted})
	}
}

// Pause pauses the current utterance.
func (e *Engine) Pause() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pauseCount++
	if e.speaking {
		e.paused = true
	}
	return nil
}

// Resume resumes a paused utterance.
func (e *Engine) Resume() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.resumeCount++
	e.paused = false
	return nil
}

// Speaking reports whether an utterance is in flight.
func (e *Engine) Speaking() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.speaking
}

// Paused reports whether the current utterance is paused.
func (e *Engine) Paused() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.paused
}

// Voices returns the configured voice set.
func (e *Engine) Voices() []narration.Voice {
	e.mu.Lock()
	defer e.mu.Unlock()
	voices := make([]narration.Voice, len(e.voices))
	copy(voices, e.voices)
	return voices
}

// Test script methods. Each fires the corresponding event for the current
// utterance; a Cancel or a fresh Speak in between makes them no-ops.

// StartUtterance fires the started event for the in-flight utterance.
func (e *Engine) StartUtterance() {
	e.mu.Lock()
	if !e.speaking {
		e.mu.Unlock()
		return
	}
	gen := e.gen
	e.mu.Unlock()
	e.fireIfCurrent(gen, narration.Event{Kind: narration.EventStarted})
}

// FinishUtterance completes the in-flight utterance.
func (e *Engine) FinishUtterance() {
	e.mu.Lock()
	if !e.speaking {
		e.mu.Unlock()
		return
	}
	e.speaking = false
	e.paused = false
	gen := e.gen
	e.mu.Unlock()
	e.fireIfCurrent(gen, narration.Event{Kind: narration.EventFinished})
}

// FailUtterance fails the in-flight utterance with the given error.
func (e *Engine) FailUtterance(err error) {
	e.mu.Lock()
	if !e.speaking {
		e.mu.Unlock()
		return
	}
	e.speaking = false
	e.paused = false
	gen := e.gen
	e.mu.Unlock()
	e.fireIfCurrent(gen, narration.Event{Kind: narration.EventError, Err: err})
}

// fireIfCurrent delivers an event unless the utterance was cancelled in
// the meantime. Reports whether the event was delivered.
func (e *Engine) fireIfCurrent(gen uint64, ev narration.Event) bool {
	e.mu.Lock()
	if gen != e.gen {
		e.mu.Unlock()
		return false
	}
	fn := e.listener
	e.mu.Unlock()
	if fn != nil {
		fn(ev)
	}
	return true
}

// Test configuration methods.

// SetSpeakError makes subsequent Speak calls fail synchronously.
func (e *Engine) SetSpeakError(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.speakErr = err
}

// SetAutoplay makes the engine complete utterances on its own.
func (e *Engine) SetAutoplay(enabled bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.autoplay = enabled
}

// SetAutoplayDelay sets the simulated utterance duration for autoplay.
func (e *Engine) SetAutoplayDelay(d time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.autoplayDelay = d
}

// EmitInterruptOnCancel makes Cancel emit a single cancellation error
// event, exercising the permissive half of the cancel contract.
func (e *Engine) EmitInterruptOnCancel(enabled bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.interruptEvent = enabled
}

// SetVoices replaces the voice set.
func (e *Engine) SetVoices(voices []narration.Voice) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.voices = voices
}

// Test inspection methods.

// SpeakCount returns the number of Speak calls.
func (e *Engine) SpeakCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.speakCount
}

// CancelCount returns the number of Cancel calls.
func (e *Engine) CancelCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cancelCount
}

// PauseCount returns the number of Pause calls.
func (e *Engine) PauseCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pauseCount
}

// ResumeCount returns the number of Resume calls.
func (e *Engine) ResumeCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.resumeCount
}

// LastUtterance returns the most recently spoken utterance.
func (e *Engine) LastUtterance() narration.Utterance {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.last
}

// Utterances returns every utterance passed to Speak, in order.
func (e *Engine) Utterances() []narration.Utterance {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]narration.Utterance, len(e.utterances))
	copy(out, e.utterances)
	return out
}
