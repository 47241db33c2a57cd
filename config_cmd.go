package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/charmbracelet/x/editor"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const defaultConfig = `# style name or JSON path (default "auto")
style: "auto"
# mouse support
mouse: false
# word-wrap at width
width: 0
# reload the lesson when the file changes
watch: false

# narration settings
narration:
  # speech engine: espeak or mock
  engine: "espeak"
  # BCP 47 tag used to pick a voice
  preferred_language: "en-US"
  # speech rate multiplier (0.25 to 4.0)
  rate: 1.0
  # pitch offset (-20.0 to 20.0)
  pitch: 0.0
  # volume (0.0 to 2.0)
  volume: 1.0

  # skip items shorter than this many characters
  min_narratable_length: 3
  # remove non-ASCII runes before speaking
  strip_non_ascii: false

  # pause between narrated segments
  inter_segment_delay: "350ms"
  # keepalive pulse period for long utterances
  heartbeat_interval: "5s"
  # window after an auto-scroll in which input is not treated as a stop
  scroll_grace_window: "750ms"

  # espeak-ng engine configuration
  espeak:
    binary: "espeak-ng"
    sample_rate: 22050
    words_per_minute: 175
`

var configCmd = &cobra.Command{
	Use:     "config",
	Hidden:  false,
	Short:   "Edit the recite config file",
	Long:    paragraph(fmt.Sprintf("\n%s the recite config file. We’ll use EDITOR to determine which editor to use. If the config file doesn't exist, it will be created.", keyword("Edit"))),
	Example: paragraph("recite config\nrecite config --config path/to/config.yml"),
	Args:    cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		if err := ensureConfigFile(); err != nil {
			return err
		}

		c, err := editor.Cmd("recite", configFile)
		if err != nil {
			return fmt.Errorf("unable to set config file: %w", err)
		}
		c.Stdin = os.Stdin
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr
		if err := c.Run(); err != nil {
			return fmt.Errorf("unable to run command: %w", err)
		}

		fmt.Println("Wrote config file to:", configFile)
		return nil
	},
}

func ensureConfigFile() error {
	if configFile == "" {
		configFile = viper.GetViper().ConfigFileUsed()
		if err := os.MkdirAll(filepath.Dir(configFile), 0o755); err != nil { //nolint:gosec
			return fmt.Errorf("could not write configuration file: %w", err)
		}
	}

	if ext := path.Ext(configFile); ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("'%s' is not a supported configuration type: use '%s' or '%s'", ext, ".yaml", ".yml")
	}

	if _, err := os.Stat(configFile); errors.Is(err, fs.ErrNotExist) {
		// File doesn't exist yet, create all necessary directories and
		// write the default config file
		if err := os.MkdirAll(filepath.Dir(configFile), 0o700); err != nil {
			return fmt.Errorf("unable create directory: %w", err)
		}

		f, err := os.Create(configFile)
		if err != nil {
			return fmt.Errorf("unable to create config file: %w", err)
		}
		defer func() { _ = f.Close() }()

		if _, err := f.WriteString(defaultConfig); err != nil {
			return fmt.Errorf("unable to write config file: %w", err)
		}
	} else if err != nil { // some other error occurred
		return fmt.Errorf("unable to stat config file: %w", err)
	}
	return nil
}
