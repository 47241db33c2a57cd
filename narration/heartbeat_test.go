package narration_test

import (
	"testing"
	"time"

	"github.com/lessonkit/recite/narration"
	"github.com/lessonkit/recite/narration/engines/mock"
)

// TestHeartbeatPulsesWhileSpeaking verifies pause/resume pairs arrive on
// the interval during an utterance.
func TestHeartbeatPulsesWhileSpeaking(t *testing.T) {
	eng := mock.New()
	_ = eng.Speak(narration.Utterance{Text: "a very long utterance"})

	h := narration.NewHeartbeat(eng, 10*time.Millisecond)
	h.Start()
	defer h.Stop()

	waitFor(t, func() bool {
		return eng.PauseCount() > 0 && eng.ResumeCount() > 0
	}, "keepalive pulse")

	if eng.PauseCount() != eng.ResumeCount() {
		// a pulse may be mid-flight; allow one in-progress pair
		if eng.PauseCount()-eng.ResumeCount() > 1 {
			t.Errorf("unbalanced pulses: %d pauses, %d resumes", eng.PauseCount(), eng.ResumeCount())
		}
	}
}

// TestHeartbeatSilentWhenNotSpeaking verifies no pulses reach an idle
// engine.
func TestHeartbeatSilentWhenNotSpeaking(t *testing.T) {
	eng := mock.New()

	h := narration.NewHeartbeat(eng, 5*time.Millisecond)
	h.Start()
	defer h.Stop()

	time.Sleep(40 * time.Millisecond)
	if eng.PauseCount() != 0 {
		t.Errorf("idle engine pulsed %d times", eng.PauseCount())
	}
}

// TestHeartbeatSkipsPausedEngine verifies a paused utterance is left
// alone; pulsing it would audibly resume.
func TestHeartbeatSkipsPausedEngine(t *testing.T) {
	eng := mock.New()
	_ = eng.Speak(narration.Utterance{Text: "paused by the user"})
	_ = eng.Pause()
	baseline := eng.PauseCount()

	h := narration.NewHeartbeat(eng, 5*time.Millisecond)
	h.Start()
	defer h.Stop()

	time.Sleep(40 * time.Millisecond)
	if eng.PauseCount() != baseline {
		t.Errorf("heartbeat pulsed a paused engine (%d extra pauses)", eng.PauseCount()-baseline)
	}
	if !eng.Paused() {
		t.Error("heartbeat resumed a paused engine")
	}
}

// TestHeartbeatStopIsIdempotent verifies Stop is safe repeatedly and
// before Start.
func TestHeartbeatStopIsIdempotent(t *testing.T) {
	eng := mock.New()

	h := narration.NewHeartbeat(eng, time.Millisecond)
	h.Stop()
	h.Stop()

	h2 := narration.NewHeartbeat(eng, time.Millisecond)
	h2.Start()
	h2.Stop()
	h2.Stop()
}

// TestHeartbeatStopsPulsing verifies no pulses arrive after Stop.
func TestHeartbeatStopsPulsing(t *testing.T) {
	eng := mock.New()
	_ = eng.Speak(narration.Utterance{Text: "cut off"})

	h := narration.NewHeartbeat(eng, 5*time.Millisecond)
	h.Start()
	waitFor(t, func() bool { return eng.PauseCount() > 0 }, "first pulse")
	h.Stop()

	time.Sleep(20 * time.Millisecond)
	count := eng.PauseCount()
	time.Sleep(40 * time.Millisecond)
	if eng.PauseCount() != count {
		t.Error("heartbeat still pulsing after Stop")
	}
}
