package narration

// State represents the playback state machine's current state.
type State int

const (
	// StateIdle indicates no playback session exists.
	StateIdle State = iota
	// StateAwaiting indicates a speech request has been issued and the
	// session is waiting for its start/end/error callback.
	StateAwaiting
	// StateAdvancing indicates the inter-segment pause before the next
	// item is spoken.
	StateAdvancing
	// StateStopped indicates a torn-down session; a fresh start is legal.
	StateStopped
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaiting:
		return "awaiting"
	case StateAdvancing:
		return "advancing"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Active reports whether a playback session is live.
func (s State) Active() bool {
	return s == StateAwaiting || s == StateAdvancing
}

// CanStart reports whether a new session may be started directly. Starting
// from an active state is still legal but tears the old session down first.
func (s State) CanStart() bool {
	return s == StateIdle || s == StateStopped
}

// machine validates state transitions for the playback controller.
type machine struct {
	current     State
	transitions map[State][]State
}

func newMachine() *machine {
	return &machine{
		current: StateIdle,
		transitions: map[State][]State{
			StateIdle:      {StateAwaiting, StateStopped},
			StateAwaiting:  {StateAwaiting, StateAdvancing, StateStopped},
			StateAdvancing: {StateAwaiting, StateStopped},
			StateStopped:   {StateAwaiting, StateIdle, StateStopped},
		},
	}
}

// transition moves to the given state if the transition is valid.
func (m *machine) transition(to State) bool {
	for _, s := range m.transitions[m.current] {
		if s == to {
			m.current = to
			return true
		}
	}
	return false
}
