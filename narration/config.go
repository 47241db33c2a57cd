package narration

import (
	"fmt"
	"strings"
	"time"
)

// Config contains all narration options.
type Config struct {
	// Engine selects the speech engine: "mock" or "espeak".
	Engine string `yaml:"engine" env:"RECITE_ENGINE" envDefault:"espeak"`

	// PreferredLanguage is the BCP 47 tag used to pick a voice, with
	// graceful fallback to the engine's first voice when nothing matches.
	PreferredLanguage string `yaml:"preferred_language" env:"RECITE_PREFERRED_LANGUAGE" envDefault:"en-US"`

	// Speech parameters.
	Rate   float64 `yaml:"rate" env:"RECITE_RATE" envDefault:"1.0"`
	Pitch  float64 `yaml:"pitch" env:"RECITE_PITCH" envDefault:"0.0"`
	Volume float64 `yaml:"volume" env:"RECITE_VOLUME" envDefault:"1.0"`

	// MinNarratableLength rejects items shorter than this many characters
	// before and after sanitization (silent skip).
	MinNarratableLength int `yaml:"min_narratable_length" env:"RECITE_MIN_NARRATABLE_LENGTH" envDefault:"3"`

	// StripNonASCII removes non-ASCII runes from narrated text. Policy
	// choice for the target locale; engines that mishandle non-Latin
	// script want true, multilingual voices want false.
	StripNonASCII bool `yaml:"strip_non_ascii" env:"RECITE_STRIP_NON_ASCII" envDefault:"false"`

	// InterSegmentDelay is the fixed pause between utterances, debouncing
	// rapid-fire short segments into natural pacing.
	InterSegmentDelay time.Duration `yaml:"inter_segment_delay" env:"RECITE_INTER_SEGMENT_DELAY" envDefault:"350ms"`

	// HeartbeatInterval is the keepalive pulse period for long utterances.
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval" env:"RECITE_HEARTBEAT_INTERVAL" envDefault:"5s"`

	// ScrollGraceWindow is how long after a self-inflicted scroll an input
	// signal is still attributed to the engine rather than the user.
	ScrollGraceWindow time.Duration `yaml:"scroll_grace_window" env:"RECITE_SCROLL_GRACE_WINDOW" envDefault:"750ms"`

	// Espeak holds settings for the espeak-ng engine.
	Espeak EspeakConfig `yaml:"espeak"`
}

// EspeakConfig contains espeak-ng engine specific settings.
type EspeakConfig struct {
	Binary         string `yaml:"binary" env:"RECITE_ESPEAK_BINARY" envDefault:"espeak-ng"`
	SampleRate     int    `yaml:"sample_rate" env:"RECITE_ESPEAK_SAMPLE_RATE" envDefault:"22050"`
	WordsPerMinute int    `yaml:"words_per_minute" env:"RECITE_ESPEAK_WORDS_PER_MINUTE" envDefault:"175"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Engine:            "espeak",
		PreferredLanguage: "en-US",
		Rate:              1.0,
		Pitch:             0.0,
		Volume:            1.0,

		MinNarratableLength: 3,
		StripNonASCII:       false,

		InterSegmentDelay: 350 * time.Millisecond,
		HeartbeatInterval: 5 * time.Second,
		ScrollGraceWindow: 750 * time.Millisecond,

		Espeak: DefaultEspeakConfig(),
	}
}

// DefaultEspeakConfig returns default espeak-ng settings.
func DefaultEspeakConfig() EspeakConfig {
	return EspeakConfig{
		Binary:         "espeak-ng",
		SampleRate:     22050,
		WordsPerMinute: 175,
	}
}

// Validate checks the configuration and normalizes the engine name.
func (c *Config) Validate() error {
	validEngines := []string{"mock", "espeak"}
	engineValid := false
	for _, e := range validEngines {
		if strings.EqualFold(c.Engine, e) {
			c.Engine = strings.ToLower(c.Engine)
			engineValid = true
			break
		}
	}
	if !engineValid {
		return fmt.Errorf("%w: engine %q must be one of %v", ErrInvalidConfig, c.Engine, validEngines)
	}

	if c.Rate < 0.25 || c.Rate > 4.0 {
		return fmt.Errorf("%w: rate must be between 0.25 and 4.0, got %f", ErrInvalidConfig, c.Rate)
	}
	if c.Pitch < -20.0 || c.Pitch > 20.0 {
		return fmt.Errorf("%w: pitch must be between -20.0 and 20.0, got %f", ErrInvalidConfig, c.Pitch)
	}
	if c.Volume < 0.0 || c.Volume > 2.0 {
		return fmt.Errorf("%w: volume must be between 0.0 and 2.0, got %f", ErrInvalidConfig, c.Volume)
	}
	if c.MinNarratableLength < 1 || c.MinNarratableLength > 100 {
		return fmt.Errorf("%w: min_narratable_length must be between 1 and 100, got %d", ErrInvalidConfig, c.MinNarratableLength)
	}
	if c.InterSegmentDelay < 0 || c.InterSegmentDelay > 5*time.Second {
		return fmt.Errorf("%w: inter_segment_delay must be between 0 and 5s, got %v", ErrInvalidConfig, c.InterSegmentDelay)
	}
	if c.HeartbeatInterval < 100*time.Millisecond {
		return fmt.Errorf("%w: heartbeat_interval must be at least 100ms, got %v", ErrInvalidConfig, c.HeartbeatInterval)
	}
	if c.ScrollGraceWindow < 0 || c.ScrollGraceWindow > 10*time.Second {
		return fmt.Errorf("%w: scroll_grace_window must be between 0 and 10s, got %v", ErrInvalidConfig, c.ScrollGraceWindow)
	}

	if err := c.Espeak.Validate(); err != nil {
		return fmt.Errorf("espeak config: %w", err)
	}
	return nil
}

// Validate checks the espeak-ng settings.
func (c *EspeakConfig) Validate() error {
	if c.Binary == "" {
		return fmt.Errorf("%w: espeak binary cannot be empty", ErrInvalidConfig)
	}
	validSampleRates := []int{8000, 16000, 22050, 24000, 44100, 48000}
	ok := false
	for _, sr := range validSampleRates {
		if c.SampleRate == sr {
			ok = true
			break
		}
	}
	if !ok {
		return fmt.Errorf("%w: sample rate %d must be one of %v", ErrInvalidConfig, c.SampleRate, validSampleRates)
	}
	if c.WordsPerMinute < 50 || c.WordsPerMinute > 500 {
		return fmt.Errorf("%w: words_per_minute must be between 50 and 500, got %d", ErrInvalidConfig, c.WordsPerMinute)
	}
	return nil
}
