package ui

import "github.com/lessonkit/recite/narration"

// Config contains TUI-specific configuration.
type Config struct {
	GlamourMaxWidth uint
	GlamourStyle    string `env:"GLAMOUR_STYLE"`
	EnableMouse     bool

	// Watch reloads the document when the file changes on disk.
	Watch bool `env:"RECITE_WATCH"`

	// Lesson file path.
	Path string

	Narration narration.Config
}
