package mock

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/lessonkit/recite/narration"
)

// eventSink collects engine events across goroutines.
type eventSink struct {
	mu     sync.Mutex
	events []narration.Event
}

func (s *eventSink) collect(ev narration.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

func (s *eventSink) snapshot() []narration.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]narration.Event, len(s.events))
	copy(out, s.events)
	return out
}

// TestEngineLifecycle walks one utterance through its scripted events.
func TestEngineLifecycle(t *testing.T) {
	e := New()
	sink := &eventSink{}
	e.Subscribe(sink.collect)

	if err := e.Speak(narration.Utterance{Text: "hello"}); err != nil {
		t.Fatalf("Speak: %v", err)
	}
	if !e.Speaking() {
		t.Error("not speaking after Speak")
	}
	if got := len(sink.snapshot()); got != 0 {
		t.Errorf("%d events fired from inside Speak, want 0", got)
	}

	e.StartUtterance()
	e.FinishUtterance()

	if e.Speaking() {
		t.Error("still speaking after finish")
	}
	events := sink.snapshot()
	if len(events) != 2 ||
		events[0].Kind != narration.EventStarted ||
		events[1].Kind != narration.EventFinished {
		t.Errorf("events = %v, want started then finished", events)
	}
}

// TestEngineCancelSuppressesEvents verifies no events leak out of a
// cancelled utterance.
func TestEngineCancelSuppressesEvents(t *testing.T) {
	e := New()
	sink := &eventSink{}
	e.Subscribe(sink.collect)

	_ = e.Speak(narration.Utterance{Text: "doomed"})
	e.Cancel()

	// scripted events for the cancelled utterance must be dropped
	e.StartUtterance()
	e.FinishUtterance()
	e.FailUtterance(errors.New("late"))

	if got := sink.snapshot(); len(got) != 0 {
		t.Errorf("events after cancel = %v, want none", got)
	}
	if e.Speaking() {
		t.Error("speaking after cancel")
	}
}

// TestEngineInterruptOnCancel verifies the optional trailing cancellation
// event carries the interruption sentinel.
func TestEngineInterruptOnCancel(t *testing.T) {
	e := New()
	e.EmitInterruptOnCancel(true)
	sink := &eventSink{}
	e.Subscribe(sink.collect)

	_ = e.Speak(narration.Utterance{Text: "cut short"})
	e.Cancel()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if len(sink.snapshot()) > 0 {
			break
		}
		time.Sleep(time.Millisecond)
	}

	events := sink.snapshot()
	if len(events) != 1 {
		t.Fatalf("events = %v, want a single cancellation event", events)
	}
	if events[0].Kind != narration.EventError || !narration.IsCancellation(events[0].Err) {
		t.Errorf("event = %+v, want interruption error", events[0])
	}
}

// TestEngineSpeakError verifies the synchronous failure path.
func TestEngineSpeakError(t *testing.T) {
	e := New()
	wantErr := errors.New("no device")
	e.SetSpeakError(wantErr)

	if err := e.Speak(narration.Utterance{Text: "x"}); !errors.Is(err, wantErr) {
		t.Errorf("Speak error = %v, want %v", err, wantErr)
	}
	if e.Speaking() {
		t.Error("speaking after failed Speak")
	}
}

// TestEngineAutoplay verifies the self-driving mode completes utterances.
func TestEngineAutoplay(t *testing.T) {
	e := New()
	e.SetAutoplay(true)
	e.SetAutoplayDelay(5 * time.Millisecond)
	sink := &eventSink{}
	e.Subscribe(sink.collect)

	_ = e.Speak(narration.Utterance{Text: "on its own"})

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		events := sink.snapshot()
		if len(events) == 2 {
			if events[0].Kind != narration.EventStarted || events[1].Kind != narration.EventFinished {
				t.Errorf("events = %v, want started then finished", events)
			}
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("autoplay never completed the utterance")
}

// TestEnginePauseState tests the pause bookkeeping the heartbeat relies on.
func TestEnginePauseState(t *testing.T) {
	e := New()
	_ = e.Speak(narration.Utterance{Text: "pausable"})

	if err := e.Pause(); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	if !e.Paused() {
		t.Error("not paused after Pause")
	}
	if err := e.Resume(); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if e.Paused() {
		t.Error("still paused after Resume")
	}
	if e.PauseCount() != 1 || e.ResumeCount() != 1 {
		t.Errorf("counts = %d/%d, want 1/1", e.PauseCount(), e.ResumeCount())
	}
}

// TestEngineUtteranceLog verifies the inspection helpers.
func TestEngineUtteranceLog(t *testing.T) {
	e := New()
	_ = e.Speak(narration.Utterance{Text: "one"})
	e.Cancel()
	_ = e.Speak(narration.Utterance{Text: "two"})

	if e.SpeakCount() != 2 {
		t.Errorf("SpeakCount = %d, want 2", e.SpeakCount())
	}
	if e.CancelCount() != 1 {
		t.Errorf("CancelCount = %d, want 1", e.CancelCount())
	}
	if got := e.LastUtterance().Text; got != "two" {
		t.Errorf("LastUtterance = %q, want \"two\"", got)
	}
	utts := e.Utterances()
	if len(utts) != 2 || utts[0].Text != "one" {
		t.Errorf("Utterances = %v", utts)
	}
}
