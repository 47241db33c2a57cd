package narration

// Engine is the speech-synthesis collaborator. Implementations wrap a
// platform capability (a subprocess synthesizer, a remote API, a test
// double); the playback controller is the only component that drives an
// Engine directly and guarantees at most one outstanding utterance at any
// time, enforced by always cancelling before speaking.
//
// Speak must not block and must not deliver events from inside the call;
// start/end/error events for the utterance arrive asynchronously through
// the subscribed listener. After Cancel returns, the engine must not
// deliver further events for the cancelled utterance, except optionally a
// single error event wrapping ErrInterrupted.
type Engine interface {
	// Speak schedules the utterance for synthesis and playback.
	Speak(u Utterance) error

	// Cancel discards the current and any queued utterance.
	Cancel()

	// Pause temporarily halts audio output.
	Pause() error

	// Resume continues audio output after a pause.
	Resume() error

	// Speaking reports whether an utterance is currently being produced.
	Speaking() bool

	// Paused reports whether output is currently paused.
	Paused() bool

	// Voices enumerates the voices the engine can speak with.
	Voices() []Voice

	// Subscribe registers the listener that receives utterance events.
	// A second call replaces the previous listener.
	Subscribe(fn func(Event))
}

// Utterance is one unit of text handed to the engine for a single
// synthesis call.
type Utterance struct {
	Text   string
	Voice  Voice
	Rate   float64 // speech rate multiplier, 1.0 = normal
	Pitch  float64 // pitch adjustment, 0 = default
	Volume float64 // 0.0 to 1.0
}

// Voice identifies a synthesis voice.
type Voice struct {
	ID       string
	Name     string
	Language string // BCP 47 tag, e.g. "en-US"
	Gender   string
}

// EventKind discriminates utterance events.
type EventKind int

const (
	// EventStarted fires when audible output for an utterance begins.
	EventStarted EventKind = iota
	// EventFinished fires when an utterance has been fully spoken.
	EventFinished
	// EventError fires when an utterance fails or is cancelled.
	EventError
)

// String returns the string representation of the event kind.
func (k EventKind) String() string {
	switch k {
	case EventStarted:
		return "started"
	case EventFinished:
		return "finished"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is delivered to the subscribed listener for each utterance
// lifecycle change. Err is set only for EventError.
type Event struct {
	Kind EventKind
	Err  error
}
