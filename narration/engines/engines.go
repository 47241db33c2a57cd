// Package engines constructs speech engine implementations by name.
package engines

import (
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/lessonkit/recite/narration"
	"github.com/lessonkit/recite/narration/engines/espeak"
	"github.com/lessonkit/recite/narration/engines/mock"
)

// New builds the engine named in the configuration.
func New(cfg narration.Config) (narration.Engine, error) {
	switch cfg.Engine {
	case "mock":
		e := mock.New()
		e.SetAutoplay(true)
		return e, nil
	case "espeak":
		return espeak.New(cfg.Espeak)
	default:
		return nil, fmt.Errorf("%w: %q", narration.ErrUnknownEngine, cfg.Engine)
	}
}

// NewWithFallback builds the configured engine, degrading to the silent
// mock engine when construction fails (missing binary, no audio device).
// Narration then still walks the document and drives the reading
// indicator, just without sound.
func NewWithFallback(cfg narration.Config) narration.Engine {
	engine, err := New(cfg)
	if err != nil {
		log.Warn("speech engine unavailable, continuing silently", "engine", cfg.Engine, "err", err)
		e := mock.New()
		e.SetAutoplay(true)
		return e
	}
	return engine
}
