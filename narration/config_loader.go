package narration

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// LoadConfigFromViper loads narration configuration from Viper, starting
// from defaults so partial config files work.
func LoadConfigFromViper() (Config, error) {
	cfg := DefaultConfig()

	if viper.IsSet("narration.engine") {
		cfg.Engine = viper.GetString("narration.engine")
	}
	if viper.IsSet("narration.preferred_language") {
		cfg.PreferredLanguage = viper.GetString("narration.preferred_language")
	}
	if viper.IsSet("narration.rate") {
		cfg.Rate = viper.GetFloat64("narration.rate")
	}
	if viper.IsSet("narration.pitch") {
		cfg.Pitch = viper.GetFloat64("narration.pitch")
	}
	if viper.IsSet("narration.volume") {
		cfg.Volume = viper.GetFloat64("narration.volume")
	}
	if viper.IsSet("narration.min_narratable_length") {
		cfg.MinNarratableLength = viper.GetInt("narration.min_narratable_length")
	}
	if viper.IsSet("narration.strip_non_ascii") {
		cfg.StripNonASCII = viper.GetBool("narration.strip_non_ascii")
	}
	if viper.IsSet("narration.inter_segment_delay") {
		cfg.InterSegmentDelay = getDuration("narration.inter_segment_delay", cfg.InterSegmentDelay)
	}
	if viper.IsSet("narration.heartbeat_interval") {
		cfg.HeartbeatInterval = getDuration("narration.heartbeat_interval", cfg.HeartbeatInterval)
	}
	if viper.IsSet("narration.scroll_grace_window") {
		cfg.ScrollGraceWindow = getDuration("narration.scroll_grace_window", cfg.ScrollGraceWindow)
	}

	if viper.IsSet("narration.espeak.binary") {
		cfg.Espeak.Binary = viper.GetString("narration.espeak.binary")
	}
	if viper.IsSet("narration.espeak.sample_rate") {
		cfg.Espeak.SampleRate = viper.GetInt("narration.espeak.sample_rate")
	}
	if viper.IsSet("narration.espeak.words_per_minute") {
		cfg.Espeak.WordsPerMinute = viper.GetInt("narration.espeak.words_per_minute")
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid narration configuration: %w", err)
	}
	return cfg, nil
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if d := viper.GetDuration(key); d > 0 {
		return d
	}
	return fallback
}
