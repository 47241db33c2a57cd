// Package espeak drives the espeak-ng command line synthesizer. Each
// utterance is one process invocation with --stdout; the WAV payload is
// decoded to raw PCM and played through an oto audio context.
package espeak

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"

	"github.com/lessonkit/recite/narration"
)

// Engine implements the narration engine interface on top of espeak-ng.
//
// Speak returns as soon as the synthesis process is launched; a worker
// goroutine waits for the PCM, plays it, and fires the lifecycle events.
// Cancel kills the process and silences the worker via the generation
// counter, so no events leak out of a cancelled utterance.
type Engine struct {
	mu       sync.Mutex
	listener func(narration.Event)

	cfg narration.EspeakConfig
	ctx *oto.Context

	gen      uint64
	speaking bool
	paused   bool
	player   *oto.Player
	cancel   context.CancelFunc

	// pcm keeps the playing buffer alive; oto reads it asynchronously.
	pcm []byte

	voicesOnce sync.Once
	voices     []narration.Voice
}

// New creates an espeak engine and opens the audio device.
func New(cfg narration.EspeakConfig) (*Engine, error) {
	if _, err := exec.LookPath(cfg.Binary); err != nil {
		return nil, fmt.Errorf("%w: %s not found: %v", narration.ErrEngineUnavailable, cfg.Binary, err)
	}

	octx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   cfg.SampleRate,
		ChannelCount: 1,
		Format:       oto.FormatSignedInt16LE,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: audio device: %v", narration.ErrEngineUnavailable, err)
	}
	<-ready

	return &Engine{cfg: cfg, ctx: octx}, nil
}

// Subscribe registers the single event listener.
func (e *Engine) Subscribe(fn func(narration.Event)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listener = fn
}

// Speak launches synthesis for the utterance and returns immediately.
func (e *Engine) Speak(u narration.Utterance) error {
	e.mu.Lock()
	e.stopLocked()
	e.gen++
	gen := e.gen
	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.speaking = true
	e.paused = false
	e.mu.Unlock()

	go e.run(ctx, gen, u)
	return nil
}

// Cancel kills any in-flight synthesis and playback. No events follow.
func (e *Engine) Cancel() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.gen++
	e.stopLocked()
}

// stopLocked tears down the current utterance without emitting anything.
func (e *Engine) stopLocked() {
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	if e.player != nil {
		e.player.Pause()
		e.player.Close()
		e.player = nil
	}
	e.pcm = nil
	e.speaking = false
	e.paused = false
}

// Pause pauses the current utterance's playback.
func (e *Engine) Pause() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.speaking || e.paused {
		return nil
	}
	if e.player != nil {
		e.player.Pause()
	}
	e.paused = true
	return nil
}

// Resume resumes paused playback.
func (e *Engine) Resume() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.paused {
		return nil
	}
	if e.player != nil {
		e.player.Play()
	}
	e.paused = false
	return nil
}

// Speaking reports whether an utterance is in flight.
func (e *Engine) Speaking() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.speaking
}

// Paused reports whether playback is paused.
func (e *Engine) Paused() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.paused
}

// Voices lists espeak-ng's installed voices. The list is queried once and
// cached; if the query fails a single default voice is reported.
func (e *Engine) Voices() []narration.Voice {
	e.voicesOnce.Do(func() {
		e.voices = queryVoices(e.cfg.Binary)
	})
	return e.voices
}

// run synthesizes and plays one utterance. Every touch of shared state
// re-checks gen; a mismatch means the utterance was cancelled.
func (e *Engine) run(ctx context.Context, gen uint64, u narration.Utterance) {
	args := []string{
		"--stdout",
		"-s", strconv.Itoa(scaleRate(e.cfg.WordsPerMinute, u.Rate)),
		"-p", strconv.Itoa(scalePitch(u.Pitch)),
		"-a", strconv.Itoa(scaleVolume(u.Volume)),
	}
	if u.Voice.ID != "" {
		args = append(args, "-v", u.Voice.ID)
	}
	args = append(args, "--", u.Text)

	out, err := exec.CommandContext(ctx, e.cfg.Binary, args...).Output()
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		e.fail(gen, fmt.Errorf("%w: %s: %v", narration.ErrEngineUnavailable, e.cfg.Binary, err))
		return
	}

	pcm, err := pcmFromWAV(out)
	if err != nil {
		e.fail(gen, fmt.Errorf("decode %s output: %w", e.cfg.Binary, err))
		return
	}

	e.mu.Lock()
	if gen != e.gen {
		e.mu.Unlock()
		return
	}
	e.pcm = pcm
	e.player = e.ctx.NewPlayer(bytes.NewReader(pcm))
	e.player.Play()
	fn := e.listener
	e.mu.Unlock()

	if fn != nil {
		fn(narration.Event{Kind: narration.EventStarted})
	}

	e.awaitCompletion(gen)
}

// awaitCompletion polls the player until the buffer drains, then fires the
// finished event. Paused time does not count as completion.
func (e *Engine) awaitCompletion(gen uint64) {
	ticker := time.NewTicker(25 * time.Millisecond)
	defer ticker.Stop()

	for range ticker.C {
		e.mu.Lock()
		if gen != e.gen {
			e.mu.Unlock()
			return
		}
		if e.paused {
			e.mu.Unlock()
			continue
		}
		if e.player != nil && e.player.IsPlaying() {
			e.mu.Unlock()
			continue
		}
		if e.player != nil {
			e.player.Close()
			e.player = nil
		}
		e.pcm = nil
		e.speaking = false
		e.cancel = nil
		fn := e.listener
		e.mu.Unlock()

		if fn != nil {
			fn(narration.Event{Kind: narration.EventFinished})
		}
		return
	}
}

// fail reports an utterance failure unless the utterance was cancelled.
func (e *Engine) fail(gen uint64, err error) {
	e.mu.Lock()
	if gen != e.gen {
		e.mu.Unlock()
		return
	}
	e.speaking = false
	e.paused = false
	e.cancel = nil
	fn := e.listener
	e.mu.Unlock()

	if fn != nil {
		fn(narration.Event{Kind: narration.EventError, Err: err})
	}
}

// scaleRate maps the relative rate multiplier onto espeak's words per
// minute, clamped to the range the synthesizer accepts.
func scaleRate(baseWPM int, rate float64) int {
	if rate <= 0 {
		rate = 1.0
	}
	wpm := int(float64(baseWPM) * rate)
	if wpm < 80 {
		wpm = 80
	}
	if wpm > 450 {
		wpm = 450
	}
	return wpm
}

// scalePitch maps the -20..20 pitch offset onto espeak's 0..99 scale,
// centered on the default 50.
func scalePitch(pitch float64) int {
	p := int(50 + pitch*2.5)
	if p < 0 {
		p = 0
	}
	if p > 99 {
		p = 99
	}
	return p
}

// scaleVolume maps the 0..2 volume onto espeak's 0..200 amplitude.
func scaleVolume(volume float64) int {
	a := int(volume * 100)
	if a < 0 {
		a = 0
	}
	if a > 200 {
		a = 200
	}
	return a
}

// pcmFromWAV extracts the raw sample data from a RIFF/WAVE payload.
// espeak-ng writes placeholder chunk sizes when streaming to a pipe, so
// the data chunk is taken to run to the end of the payload.
func pcmFromWAV(b []byte) ([]byte, error) {
	if len(b) < 12 || string(b[0:4]) != "RIFF" || string(b[8:12]) != "WAVE" {
		return nil, fmt.Errorf("not a RIFF/WAVE payload (%d bytes)", len(b))
	}
	off := 12
	for off+8 <= len(b) {
		id := string(b[off : off+4])
		size := int(binary.LittleEndian.Uint32(b[off+4 : off+8]))
		if id == "data" {
			return b[off+8:], nil
		}
		off += 8 + size
		if size%2 == 1 {
			off++
		}
	}
	return nil, fmt.Errorf("no data chunk in %d byte payload", len(b))
}

// queryVoices parses `espeak-ng --voices` output. Columns are fixed:
// Pty Language Age/Gender VoiceName File Other.
func queryVoices(binary string) []narration.Voice {
	fallback := []narration.Voice{
		{ID: "en-us", Name: "English (America)", Language: "en-US", Gender: "male"},
	}

	out, err := exec.Command(binary, "--voices").Output()
	if err != nil {
		return fallback
	}

	var voices []narration.Voice
	lines := strings.Split(string(out), "\n")
	for i, line := range lines {
		if i == 0 {
			continue // header
		}
		fields := strings.Fields(line)
		if len(fields) < 4 {
			continue
		}
		voices = append(voices, narration.Voice{
			ID:       fields[3],
			Name:     fields[3],
			Language: fields[1],
			Gender:   parseGender(fields[2]),
		})
	}
	if len(voices) == 0 {
		return fallback
	}
	return voices
}

func parseGender(ageGender string) string {
	switch {
	case strings.Contains(ageGender, "M"):
		return "male"
	case strings.Contains(ageGender, "F"):
		return "female"
	default:
		return "neutral"
	}
}
