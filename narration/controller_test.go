package narration_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/lessonkit/recite/document"
	"github.com/lessonkit/recite/narration"
	"github.com/lessonkit/recite/narration/engines/mock"
)

func lesson() *document.Document {
	return &document.Document{
		Title: "The Water Cycle",
		Sections: []document.Section{
			{
				ID:    "stages",
				Title: "Stages",
				SubSections: []document.SubSection{
					{ID: "evaporation", Title: "Evaporation", Content: "Water rises as vapor."},
					{ID: "condensation", Title: "Condensation", Content: "Vapor forms clouds."},
					// bare heading, nothing to narrate
					{ID: "precipitation", Title: "Precipitation", Content: ""},
					{ID: "recap", Title: "", Content: "The cycle repeats endlessly."},
				},
			},
		},
	}
}

// recorder captures controller callbacks, which fire on controller and
// timer goroutines.
type recorder struct {
	mu      sync.Mutex
	active  []string
	playing []bool
	scrolls []string
}

func (r *recorder) onActive(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active = append(r.active, id)
}

func (r *recorder) onPlaying(p bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.playing = append(r.playing, p)
}

func (r *recorder) onScroll(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scrolls = append(r.scrolls, id)
}

func (r *recorder) activeIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.active))
	copy(out, r.active)
	return out
}

func (r *recorder) playingEvents() []bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]bool, len(r.playing))
	copy(out, r.playing)
	return out
}

func (r *recorder) scrollIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.scrolls))
	copy(out, r.scrolls)
	return out
}

func newTestController(t *testing.T, doc *document.Document) (*narration.Controller, *mock.Engine, *recorder) {
	t.Helper()

	cfg := narration.DefaultConfig()
	cfg.Engine = "mock"
	cfg.InterSegmentDelay = 0
	cfg.HeartbeatInterval = time.Hour

	eng := mock.New()
	c := narration.NewController(eng, cfg)
	c.SetDocument(doc)

	rec := &recorder{}
	c.OnActiveChange(rec.onActive)
	c.OnPlayingChange(rec.onPlaying)
	c.OnAutoScroll(rec.onScroll)

	t.Cleanup(c.Stop)
	return c, eng, rec
}

// waitFor polls until the condition holds. Advancing between items runs on
// a timer goroutine, so tests observe it asynchronously.
func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", msg)
}

// TestControllerWalksPlaylist drives a full session from first item to
// exhaustion, including the silent skip of the bare heading.
func TestControllerWalksPlaylist(t *testing.T) {
	c, eng, rec := newTestController(t, lesson())

	c.Start(0)
	waitFor(t, func() bool { return eng.SpeakCount() == 1 }, "first speech request")

	if got := eng.LastUtterance().Text; got != "Evaporation. Water rises as vapor." {
		t.Errorf("first utterance = %q", got)
	}
	if c.State() != narration.StateAwaiting {
		t.Errorf("state = %v, want %v", c.State(), narration.StateAwaiting)
	}

	eng.StartUtterance()
	if got := c.ActiveID(); got != "evaporation" {
		t.Errorf("active = %q, want evaporation", got)
	}
	if scrolls := rec.scrollIDs(); len(scrolls) != 1 || scrolls[0] != "evaporation" {
		t.Errorf("scrolls = %v, want [evaporation]", scrolls)
	}

	eng.FinishUtterance()
	waitFor(t, func() bool { return eng.SpeakCount() == 2 }, "second speech request")
	eng.StartUtterance()
	eng.FinishUtterance()

	// precipitation has no narratable text and is skipped without any
	// activation; the next request is recap
	waitFor(t, func() bool { return eng.SpeakCount() == 3 }, "third speech request")
	if got := eng.LastUtterance().Text; got != "The cycle repeats endlessly." {
		t.Errorf("third utterance = %q", got)
	}

	eng.StartUtterance()
	eng.FinishUtterance()
	waitFor(t, func() bool { return !c.Playing() }, "session end")

	for _, id := range rec.activeIDs() {
		if id == "precipitation" {
			t.Error("bare heading was activated")
		}
	}

	active := rec.activeIDs()
	if len(active) == 0 || active[len(active)-1] != "" {
		t.Errorf("active events %v should end with \"\"", active)
	}
	playing := rec.playingEvents()
	if len(playing) != 2 || !playing[0] || playing[1] {
		t.Errorf("playing events = %v, want [true false]", playing)
	}
	if c.State() != narration.StateStopped {
		t.Errorf("state = %v, want %v", c.State(), narration.StateStopped)
	}
}

// TestControllerStartOutOfRange verifies an invalid index ends the session
// immediately but cleanly.
func TestControllerStartOutOfRange(t *testing.T) {
	c, eng, rec := newTestController(t, lesson())

	c.Start(99)

	if c.Playing() {
		t.Error("still playing after out-of-range start")
	}
	if eng.SpeakCount() != 0 {
		t.Errorf("SpeakCount = %d, want 0", eng.SpeakCount())
	}
	playing := rec.playingEvents()
	if len(playing) != 2 || !playing[0] || playing[1] {
		t.Errorf("playing events = %v, want [true false]", playing)
	}
	if c.State() != narration.StateStopped {
		t.Errorf("state = %v, want %v", c.State(), narration.StateStopped)
	}
}

// TestControllerNothingNarratable verifies a document of bare headings
// produces a start followed by an immediate clean stop.
func TestControllerNothingNarratable(t *testing.T) {
	doc := &document.Document{
		Sections: []document.Section{{
			ID: "s", Title: "S",
			SubSections: []document.SubSection{
				{ID: "a", Title: "Alpha", Content: ""},
				{ID: "b", Title: "Beta", Content: "  "},
			},
		}},
	}
	c, eng, _ := newTestController(t, doc)

	c.Start(0)
	waitFor(t, func() bool { return !c.Playing() }, "session end")

	if eng.SpeakCount() != 0 {
		t.Errorf("SpeakCount = %d, want 0", eng.SpeakCount())
	}
}

// TestControllerResumeFromVisible verifies Start(-1) picks the first
// on-screen subsection.
func TestControllerResumeFromVisible(t *testing.T) {
	c, eng, _ := newTestController(t, lesson())

	c.Visibility().Replace([]string{"condensation", "recap"})
	c.Start(-1)
	waitFor(t, func() bool { return eng.SpeakCount() == 1 }, "speech request")

	if got := eng.LastUtterance().Text; got != "Condensation. Vapor forms clouds." {
		t.Errorf("utterance = %q, want condensation item", got)
	}
}

// TestControllerResumeNothingVisible verifies Start(-1) falls back to the
// top of the playlist.
func TestControllerResumeNothingVisible(t *testing.T) {
	c, eng, _ := newTestController(t, lesson())

	c.Start(-1)
	waitFor(t, func() bool { return eng.SpeakCount() == 1 }, "speech request")

	if got := eng.LastUtterance().Text; got != "Evaporation. Water rises as vapor." {
		t.Errorf("utterance = %q, want first item", got)
	}
}

// TestControllerGraceWindow verifies input during the auto-scroll grace
// window does not stop playback, and input after it does.
func TestControllerGraceWindow(t *testing.T) {
	c, eng, _ := newTestController(t, lesson())

	now := time.Unix(5000, 0)
	c.Guard().SetNowFunc(func() time.Time { return now })

	c.Start(0)
	waitFor(t, func() bool { return eng.SpeakCount() == 1 }, "speech request")
	eng.StartUtterance() // marks the auto-scroll

	now = now.Add(100 * time.Millisecond)
	c.UserInput()
	if !c.Playing() {
		t.Fatal("input inside grace window stopped playback")
	}

	now = now.Add(time.Second)
	c.UserInput()
	if c.Playing() {
		t.Fatal("input after grace window did not stop playback")
	}
	if c.ActiveID() != "" {
		t.Errorf("active = %q after stop, want \"\"", c.ActiveID())
	}
}

// TestControllerStopIdempotent verifies repeated stops emit nothing extra
// and the controller remains restartable.
func TestControllerStopIdempotent(t *testing.T) {
	c, eng, rec := newTestController(t, lesson())

	c.Start(0)
	waitFor(t, func() bool { return eng.SpeakCount() == 1 }, "speech request")
	eng.StartUtterance()

	c.Stop()
	c.Stop()
	c.Stop()

	playing := rec.playingEvents()
	if len(playing) != 2 {
		t.Errorf("playing events = %v, want exactly [true false]", playing)
	}

	c.Start(0)
	waitFor(t, func() bool { return eng.SpeakCount() == 2 }, "restart speech request")
}

// TestControllerRestartCancelsOutstanding verifies a start during playback
// cancels the engine before issuing the next request.
func TestControllerRestartCancelsOutstanding(t *testing.T) {
	c, eng, _ := newTestController(t, lesson())

	c.Start(0)
	waitFor(t, func() bool { return eng.SpeakCount() == 1 }, "first request")
	eng.StartUtterance()
	cancels := eng.CancelCount()

	c.Start(1)
	waitFor(t, func() bool { return eng.SpeakCount() == 2 }, "second request")

	if eng.CancelCount() <= cancels {
		t.Error("restart did not cancel the outstanding utterance")
	}
	if got := eng.LastUtterance().Text; got != "Condensation. Vapor forms clouds." {
		t.Errorf("utterance = %q, want condensation item", got)
	}
	if !c.Playing() {
		t.Error("not playing after restart")
	}
}

// TestControllerEngineError verifies a genuine engine failure tears the
// session down.
func TestControllerEngineError(t *testing.T) {
	c, eng, rec := newTestController(t, lesson())

	c.Start(0)
	waitFor(t, func() bool { return eng.SpeakCount() == 1 }, "speech request")
	eng.StartUtterance()
	eng.FailUtterance(errors.New("synthesizer crashed"))

	waitFor(t, func() bool { return !c.Playing() }, "session end")
	if c.State() != narration.StateStopped {
		t.Errorf("state = %v, want %v", c.State(), narration.StateStopped)
	}
	active := rec.activeIDs()
	if len(active) == 0 || active[len(active)-1] != "" {
		t.Errorf("active events %v should end with \"\"", active)
	}
}

// TestControllerCancellationErrorIgnored verifies the permissive half of
// the cancel contract: a trailing interruption event is not a failure.
func TestControllerCancellationErrorIgnored(t *testing.T) {
	c, eng, _ := newTestController(t, lesson())
	eng.EmitInterruptOnCancel(true)

	c.Start(0)
	waitFor(t, func() bool { return eng.SpeakCount() == 1 }, "speech request")
	eng.StartUtterance()

	c.Stop()

	// restart immediately; the stale interruption event must not kill
	// the new session
	c.Start(0)
	waitFor(t, func() bool { return eng.SpeakCount() == 2 }, "restart request")
	time.Sleep(50 * time.Millisecond)
	if !c.Playing() {
		t.Error("stale cancellation event stopped the new session")
	}
}

// TestControllerSpeakFailure verifies a synchronous Speak error stops the
// session.
func TestControllerSpeakFailure(t *testing.T) {
	c, eng, rec := newTestController(t, lesson())
	eng.SetSpeakError(errors.New("audio device gone"))

	c.Start(0)

	if c.Playing() {
		t.Error("still playing after speak failure")
	}
	playing := rec.playingEvents()
	if len(playing) != 2 || !playing[0] || playing[1] {
		t.Errorf("playing events = %v, want [true false]", playing)
	}
}

// TestControllerAutoScrollOncePerSubsection verifies consecutive items of
// one subsection do not scroll twice. With one item per subsection every
// item scrolls once.
func TestControllerAutoScrollOncePerSubsection(t *testing.T) {
	c, eng, rec := newTestController(t, lesson())

	c.Start(0)
	waitFor(t, func() bool { return eng.SpeakCount() == 1 }, "first request")
	eng.StartUtterance()
	eng.FinishUtterance()
	waitFor(t, func() bool { return eng.SpeakCount() == 2 }, "second request")
	eng.StartUtterance()

	scrolls := rec.scrollIDs()
	want := []string{"evaporation", "condensation"}
	if len(scrolls) != len(want) {
		t.Fatalf("scrolls = %v, want %v", scrolls, want)
	}
	for i := range want {
		if scrolls[i] != want[i] {
			t.Errorf("scrolls[%d] = %q, want %q", i, scrolls[i], want[i])
		}
	}
}

// TestControllerToggle verifies the single-control surface.
func TestControllerToggle(t *testing.T) {
	c, eng, _ := newTestController(t, lesson())

	c.Toggle()
	waitFor(t, func() bool { return eng.SpeakCount() == 1 }, "toggle start")
	if !c.Playing() {
		t.Fatal("not playing after toggle")
	}

	c.Toggle()
	if c.Playing() {
		t.Fatal("still playing after second toggle")
	}
}

// TestControllerSetDocumentStopsSession verifies a document swap never
// leaves narration running over stale content.
func TestControllerSetDocumentStopsSession(t *testing.T) {
	c, eng, _ := newTestController(t, lesson())

	c.Start(0)
	waitFor(t, func() bool { return eng.SpeakCount() == 1 }, "speech request")
	eng.StartUtterance()

	c.SetDocument(&document.Document{
		Sections: []document.Section{{
			ID: "n", Title: "New",
			SubSections: []document.SubSection{
				{ID: "only", Title: "Only", Content: "Replacement content."},
			},
		}},
	})

	if c.Playing() {
		t.Error("still playing after document swap")
	}
	if items := c.Items(); len(items) != 1 || items[0].ID != "only" {
		t.Errorf("items = %v, want the replacement playlist", items)
	}
}

// TestControllerInterSegmentDelay verifies the pause between items is
// honored before the next request goes out.
func TestControllerInterSegmentDelay(t *testing.T) {
	cfg := narration.DefaultConfig()
	cfg.Engine = "mock"
	cfg.InterSegmentDelay = 80 * time.Millisecond
	cfg.HeartbeatInterval = time.Hour

	eng := mock.New()
	c := narration.NewController(eng, cfg)
	c.SetDocument(lesson())
	t.Cleanup(c.Stop)

	c.Start(0)
	waitFor(t, func() bool { return eng.SpeakCount() == 1 }, "first request")
	eng.StartUtterance()

	before := time.Now()
	eng.FinishUtterance()

	if c.State() != narration.StateAdvancing {
		t.Errorf("state = %v, want %v", c.State(), narration.StateAdvancing)
	}

	waitFor(t, func() bool { return eng.SpeakCount() == 2 }, "second request")
	if elapsed := time.Since(before); elapsed < 80*time.Millisecond {
		t.Errorf("second request after %v, want >= 80ms", elapsed)
	}
}

// TestControllerStopDuringAdvance verifies a stop inside the inter-segment
// pause cancels the pending advance.
func TestControllerStopDuringAdvance(t *testing.T) {
	cfg := narration.DefaultConfig()
	cfg.Engine = "mock"
	cfg.InterSegmentDelay = time.Hour
	cfg.HeartbeatInterval = time.Hour

	eng := mock.New()
	c := narration.NewController(eng, cfg)
	c.SetDocument(lesson())
	t.Cleanup(c.Stop)

	c.Start(0)
	waitFor(t, func() bool { return eng.SpeakCount() == 1 }, "first request")
	eng.StartUtterance()
	eng.FinishUtterance()

	c.Stop()
	time.Sleep(20 * time.Millisecond)

	if eng.SpeakCount() != 1 {
		t.Errorf("SpeakCount = %d after stop, want 1", eng.SpeakCount())
	}
	if c.State() != narration.StateStopped {
		t.Errorf("state = %v, want %v", c.State(), narration.StateStopped)
	}
}
