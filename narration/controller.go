// Package narration implements the narration playback engine: it flattens
// a structured lesson document into an ordered playlist and reads it aloud
// through a speech-synthesis engine, keeping the host UI's "now reading"
// indicator and scroll position synchronized with playback.
package narration

import (
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/text/language"

	"github.com/lessonkit/recite/document"
	"github.com/lessonkit/recite/narration/sanitize"
)

// Controller is the playback state machine. It walks the playlist, issues
// one speech request at a time, advances on completion, and stops on
// exhaustion, error or external cancellation. All engine callbacks, timer
// callbacks and user input serialize on one mutex; the session generation
// counter makes late callbacks from a torn-down session harmless.
type Controller struct {
	mu sync.Mutex

	engine    Engine
	sanitizer *sanitize.Sanitizer
	cfg       Config

	items []Item
	order []string // subsection ids in document order

	visibility *VisibilityTracker
	guard      *InterruptGuard
	machine    *machine

	// Session state. gen increments on every start and teardown so that
	// pending timers and stray engine callbacks can detect staleness.
	gen            uint64
	index          int
	playing        bool
	activeID       string
	lastSubsection string
	voice          Voice
	heartbeat      *Heartbeat
	advance        *time.Timer

	onActive     func(id string)
	onPlaying    func(playing bool)
	onAutoScroll func(id string)
}

// NewController creates a controller driving the given engine.
func NewController(engine Engine, cfg Config) *Controller {
	c := &Controller{
		engine: engine,
		cfg:    cfg,
		sanitizer: sanitize.New(sanitize.Options{
			MinLength:     cfg.MinNarratableLength,
			StripNonASCII: cfg.StripNonASCII,
		}),
		visibility: NewVisibilityTracker(),
		guard:      NewInterruptGuard(cfg.ScrollGraceWindow),
		machine:    newMachine(),
	}
	engine.Subscribe(c.handleEvent)
	return c
}

// SetDocument replaces the document and rebuilds the playlist. Any live
// session is torn down first; the playlist never outlives its document.
func (c *Controller) SetDocument(doc *document.Document) {
	c.Stop()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = BuildPlaylist(doc)
	if doc != nil {
		c.order = doc.SubSectionIDs()
	} else {
		c.order = nil
	}
	c.index = 0
}

// OnActiveChange registers the active-subsection callback. It fires with
// the subsection id when narration of a new subsection becomes audible and
// with "" when nothing is being narrated.
func (c *Controller) OnActiveChange(fn func(id string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onActive = fn
}

// OnPlayingChange registers the playing-status callback.
func (c *Controller) OnPlayingChange(fn func(playing bool)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onPlaying = fn
}

// OnAutoScroll registers the callback asking the host to scroll to a
// subsection. The grace window is already marked when it fires, so the
// host's scroll will not be mistaken for user input.
func (c *Controller) OnAutoScroll(fn func(id string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onAutoScroll = fn
}

// Start begins a playback session at the given playlist index. A negative
// index means "resume from where the user is reading": the first item of
// the first on-screen subsection, else index 0. Any live session is torn
// down first, so at most one engine request is ever outstanding.
func (c *Controller) Start(atIndex int) {
	var fire []func()
	c.mu.Lock()

	if c.machine.current.Active() {
		c.teardownLocked(&fire)
	}
	// Defensive: guarantees nothing queued from before this session.
	c.engine.Cancel()

	c.gen++
	c.machine.transition(StateAwaiting)
	c.playing = true
	c.lastSubsection = ""
	fire = append(fire, c.playingEventLocked(true))

	c.voice = matchVoice(c.engine.Voices(), c.cfg.PreferredLanguage)

	c.heartbeat = NewHeartbeat(c.engine, c.cfg.HeartbeatInterval)
	c.heartbeat.Start()

	idx := atIndex
	if idx < 0 {
		idx = c.resumeIndexLocked()
	}
	if idx < 0 || idx >= len(c.items) {
		c.teardownLocked(&fire)
		c.mu.Unlock()
		runAll(fire)
		return
	}

	c.index = idx
	log.Debug("narration: session started", "index", idx, "items", len(c.items), "voice", c.voice.ID)
	c.speakCurrentLocked(&fire)
	c.mu.Unlock()
	runAll(fire)
}

// Stop tears down the session: cancels the engine's current and queued
// activity, clears the heartbeat and any pending advance, and emits
// playing=false and active="". Idempotent and safe from any state; a fresh
// Start is immediately legal afterwards.
func (c *Controller) Stop() {
	var fire []func()
	c.mu.Lock()
	c.teardownLocked(&fire)
	c.mu.Unlock()
	runAll(fire)
}

// Toggle is the single user-facing control: stops when playing, otherwise
// starts from the subsection currently on screen.
func (c *Controller) Toggle() {
	c.mu.Lock()
	active := c.playing
	c.mu.Unlock()
	if active {
		c.Stop()
	} else {
		c.Start(-1)
	}
}

// UserInput reports a raw scroll/touch signal from the host. It stops
// playback unless the signal falls inside the auto-scroll grace window, in
// which case it was our own scroll echoing back.
func (c *Controller) UserInput() {
	var fire []func()
	c.mu.Lock()
	if !c.playing || c.guard.InGraceWindow() {
		c.mu.Unlock()
		return
	}
	log.Debug("narration: user input, stopping")
	c.teardownLocked(&fire)
	c.mu.Unlock()
	runAll(fire)
}

// Playing reports whether a session is live.
func (c *Controller) Playing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playing
}

// State returns the machine's current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.machine.current
}

// ActiveID returns the subsection currently being narrated, "" if none.
func (c *Controller) ActiveID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.activeID
}

// Items returns a copy of the current playlist.
func (c *Controller) Items() []Item {
	c.mu.Lock()
	defer c.mu.Unlock()
	items := make([]Item, len(c.items))
	copy(items, c.items)
	return items
}

// Visibility returns the tracker the host feeds viewport updates into.
func (c *Controller) Visibility() *VisibilityTracker {
	return c.visibility
}

// Guard returns the interruption guard, exposed for hosts that need to
// inject a clock in tests.
func (c *Controller) Guard() *InterruptGuard {
	return c.guard
}

// handleEvent serializes engine callbacks into state transitions. Events
// for a torn-down session find the machine no longer active and fall
// through; the engine-level Cancel already suppressed the rest.
func (c *Controller) handleEvent(ev Event) {
	var fire []func()
	c.mu.Lock()
	switch ev.Kind {
	case EventStarted:
		if c.machine.current == StateAwaiting {
			c.utteranceStartedLocked(&fire)
		}
	case EventFinished:
		if c.machine.current == StateAwaiting {
			c.utteranceFinishedLocked()
		}
	case EventError:
		if !c.machine.current.Active() {
			break
		}
		if IsCancellation(ev.Err) {
			// The cancelling caller is already tearing the session down.
			break
		}
		log.Debug("narration: engine error, stopping", "err", ev.Err)
		c.teardownLocked(&fire)
	}
	c.mu.Unlock()
	runAll(fire)
}

// speakCurrentLocked issues the speech request for the current index,
// silently skipping unnarratable items. Exhausting the playlist while
// skipping tears the session down.
func (c *Controller) speakCurrentLocked(fire *[]func()) {
	for c.index < len(c.items) {
		item := c.items[c.index]
		text, ok := c.sanitizer.Clean(item.Text)
		if !ok {
			// Degenerate content: skip with no active-item emission.
			c.index++
			continue
		}
		c.machine.transition(StateAwaiting)
		err := c.engine.Speak(Utterance{
			Text:   text,
			Voice:  c.voice,
			Rate:   c.cfg.Rate,
			Pitch:  c.cfg.Pitch,
			Volume: c.cfg.Volume,
		})
		if err != nil {
			log.Debug("narration: speak failed, stopping", "index", c.index, "err", err)
			c.teardownLocked(fire)
		}
		return
	}
	c.teardownLocked(fire)
}

func (c *Controller) utteranceStartedLocked(fire *[]func()) {
	item := c.items[c.index]
	c.activeID = item.ID
	*fire = append(*fire, c.activeEventLocked(item.ID))

	// Auto-scroll only on subsection boundaries, and mark the grace
	// window before the host moves anything.
	if item.ID != c.lastSubsection {
		c.lastSubsection = item.ID
		c.guard.MarkAutoScroll()
		if fn := c.onAutoScroll; fn != nil {
			id := item.ID
			*fire = append(*fire, func() { fn(id) })
		}
	}
}

func (c *Controller) utteranceFinishedLocked() {
	c.machine.transition(StateAdvancing)
	gen := c.gen
	c.advance = time.AfterFunc(c.cfg.InterSegmentDelay, func() {
		c.advanceSession(gen)
	})
}

// advanceSession moves to the next item after the inter-segment delay.
// A stale generation means the session was torn down or restarted while
// the timer was pending.
func (c *Controller) advanceSession(gen uint64) {
	var fire []func()
	c.mu.Lock()
	if gen != c.gen || c.machine.current != StateAdvancing {
		c.mu.Unlock()
		return
	}
	c.index++
	if c.index >= len(c.items) {
		c.teardownLocked(&fire)
	} else {
		c.speakCurrentLocked(&fire)
	}
	c.mu.Unlock()
	runAll(fire)
}

// teardownLocked is the single exit path for a session. It must leave the
// machine restartable regardless of which state it was called from, with
// no timer or heartbeat still ticking.
func (c *Controller) teardownLocked(fire *[]func()) {
	c.gen++
	if c.advance != nil {
		c.advance.Stop()
		c.advance = nil
	}
	if c.heartbeat != nil {
		c.heartbeat.Stop()
		c.heartbeat = nil
	}
	c.engine.Cancel()

	wasPlaying := c.playing
	c.playing = false
	c.lastSubsection = ""
	c.machine.transition(StateStopped)

	if wasPlaying {
		*fire = append(*fire, c.playingEventLocked(false))
	}
	if c.activeID != "" || wasPlaying {
		c.activeID = ""
		*fire = append(*fire, c.activeEventLocked(""))
	}
}

// resumeIndexLocked picks the starting index for a "play" with no explicit
// position: the first playlist item of the first on-screen subsection.
func (c *Controller) resumeIndexLocked() int {
	if id, ok := c.visibility.FirstVisible(c.order); ok {
		if i := FirstIndexFor(c.items, id); i >= 0 {
			return i
		}
	}
	return 0
}

func (c *Controller) playingEventLocked(playing bool) func() {
	fn := c.onPlaying
	if fn == nil {
		return func() {}
	}
	return func() { fn(playing) }
}

func (c *Controller) activeEventLocked(id string) func() {
	fn := c.onActive
	if fn == nil {
		return func() {}
	}
	return func() { fn(id) }
}

func runAll(fns []func()) {
	for _, fn := range fns {
		fn()
	}
}

// matchVoice picks the voice best matching the preferred BCP 47 tag, with
// graceful fallback to the engine's first voice when nothing matches or
// the tag is unparseable. A zero Voice means "engine default".
func matchVoice(voices []Voice, preferred string) Voice {
	if len(voices) == 0 {
		return Voice{}
	}
	want, err := language.Parse(preferred)
	if err != nil {
		return voices[0]
	}

	tags := make([]language.Tag, 0, len(voices))
	byTag := make([]int, 0, len(voices))
	for i, v := range voices {
		t, err := language.Parse(v.Language)
		if err != nil {
			continue
		}
		tags = append(tags, t)
		byTag = append(byTag, i)
	}
	if len(tags) == 0 {
		return voices[0]
	}

	matcher := language.NewMatcher(tags)
	if _, i, conf := matcher.Match(want); conf > language.No {
		return voices[byTag[i]]
	}
	return voices[0]
}
