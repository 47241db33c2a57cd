// Package main provides the entry point for the recite CLI application.
package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/styles"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/lessonkit/recite/narration"
	"github.com/lessonkit/recite/narration/engines"
	"github.com/lessonkit/recite/ui"
)

var (
	// Version as provided by goreleaser.
	Version = ""
	// CommitSHA as provided by goreleaser.
	CommitSHA = ""

	configFile string
	plain      bool
	style      string
	width      uint
	mouse      bool
	watch      bool
	engineName string

	rootCmd = &cobra.Command{
		Use:   "recite [FILE]",
		Short: "Read markdown lessons aloud in the terminal",
		Long: paragraph(
			fmt.Sprintf("\nView a markdown lesson and have it %s, section by section, with the reading position following along.", keyword("read aloud")),
		),
		SilenceErrors:    false,
		SilenceUsage:     true,
		TraverseChildren: true,
		Args:             cobra.MaximumNArgs(1),
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return validateOptions(cmd)
		},
		RunE: execute,
	}
)

func validateOptions(cmd *cobra.Command) error {
	// grab config values from Viper
	width = viper.GetUint("width")
	mouse = viper.GetBool("mouse")
	plain = viper.GetBool("plain")
	watch = viper.GetBool("watch")
	engineName = viper.GetString("narration.engine")

	style = viper.GetString("style")
	if err := validateStyle(style); err != nil {
		return err
	}

	isTerminal := term.IsTerminal(int(os.Stdout.Fd()))

	// No terminal means no narration either; degrade to a plain render
	// with the no-TTY style unless a style was forced.
	if !isTerminal {
		plain = true
		if !cmd.Flags().Changed("style") {
			style = "notty"
		}
	}

	if !cmd.Flags().Changed("width") { //nolint:nestif
		if isTerminal && width == 0 {
			w, _, err := term.GetSize(int(os.Stdout.Fd()))
			if err == nil {
				width = uint(w) //nolint:gosec
			}
			if width > 120 {
				width = 120
			}
		}
		if width == 0 {
			width = 80
		}
	}
	return nil
}

func stdinIsPipe() (bool, error) {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false, fmt.Errorf("unable to stat stdin: %w", err)
	}
	if stat.Mode()&os.ModeCharDevice == 0 || stat.Size() > 0 {
		return true, nil
	}
	return false, nil
}

func execute(cmd *cobra.Command, args []string) error {
	// stdin as a pipe means narrating ad-hoc content with no backing file
	if yes, err := stdinIsPipe(); err != nil {
		return err
	} else if yes {
		content, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("unable to read stdin: %w", err)
		}
		return display("", content)
	}

	if len(args) == 0 {
		return errors.New("missing lesson file (or pipe one on stdin)")
	}

	path, err := filepath.Abs(args[0])
	if err != nil {
		return fmt.Errorf("unable to resolve path: %w", err)
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("file does not exist: %s", args[0])
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("unable to read file: %w", err)
	}
	return display(path, content)
}

func display(path string, content []byte) error {
	if plain {
		return renderPlain(os.Stdout, content)
	}
	return runTUI(path, content)
}

// renderPlain renders the lesson to stdout without narration.
func renderPlain(w io.Writer, content []byte) error {
	r, err := glamour.NewTermRenderer(
		glamour.WithColorProfile(lipgloss.ColorProfile()),
		glamourStyle(style),
		glamour.WithWordWrap(int(width)), //nolint:gosec
	)
	if err != nil {
		return fmt.Errorf("unable to create renderer: %w", err)
	}
	out, err := r.Render(string(content))
	if err != nil {
		return fmt.Errorf("unable to render markdown: %w", err)
	}
	if _, err := fmt.Fprint(w, out); err != nil {
		return fmt.Errorf("unable to write output: %w", err)
	}
	return nil
}

func runTUI(path string, content []byte) error {
	cfg, err := env.ParseAs[ui.Config]()
	if err != nil {
		return fmt.Errorf("error parsing config: %v", err)
	}

	// use style set in env, or the resolved flag/config style
	if err := validateStyle(cfg.GlamourStyle); err != nil || cfg.GlamourStyle == "" {
		cfg.GlamourStyle = style
	}
	if cfg.GlamourStyle == styles.AutoStyle {
		cfg.GlamourStyle = detectBackgroundStyle()
	}

	cfg.Path = path
	cfg.GlamourMaxWidth = width
	cfg.EnableMouse = mouse
	if watch {
		cfg.Watch = true
	}

	ncfg, err := narration.LoadConfigFromViper()
	if err != nil {
		return err
	}
	cfg.Narration = ncfg

	engine := engines.NewWithFallback(ncfg)

	if _, err := ui.NewProgram(cfg, engine, content).Run(); err != nil {
		return fmt.Errorf("unable to run tui program: %w", err)
	}
	return nil
}

func main() {
	closer, err := setupLog()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	if err := rootCmd.Execute(); err != nil {
		_ = closer()
		os.Exit(1)
	}
	_ = closer()
}

func init() {
	tryLoadConfigFromDefaultPlaces()
	if len(CommitSHA) >= 7 {
		vt := rootCmd.VersionTemplate()
		rootCmd.SetVersionTemplate(vt[:len(vt)-1] + " (" + CommitSHA[0:7] + ")\n")
	}
	if Version == "" {
		Version = "unknown (built from source)"
	}
	rootCmd.Version = Version
	rootCmd.InitDefaultCompletionCmd()

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", fmt.Sprintf("config file (default %s)", viper.GetViper().ConfigFileUsed()))
	rootCmd.Flags().BoolVarP(&plain, "plain", "p", false, "render without narration and exit")
	rootCmd.Flags().StringVarP(&style, "style", "s", styles.AutoStyle, "style name or JSON path")
	rootCmd.Flags().UintVarP(&width, "width", "w", 0, "word-wrap at width (set to 0 to disable)")
	rootCmd.Flags().BoolVarP(&mouse, "mouse", "m", false, "enable mouse wheel")
	rootCmd.Flags().BoolVar(&watch, "watch", false, "reload the lesson when the file changes")
	rootCmd.Flags().StringVar(&engineName, "engine", "", "speech engine (espeak/mock)")

	_ = viper.BindPFlag("plain", rootCmd.Flags().Lookup("plain"))
	_ = viper.BindPFlag("style", rootCmd.Flags().Lookup("style"))
	_ = viper.BindPFlag("width", rootCmd.Flags().Lookup("width"))
	_ = viper.BindPFlag("mouse", rootCmd.Flags().Lookup("mouse"))
	_ = viper.BindPFlag("watch", rootCmd.Flags().Lookup("watch"))
	_ = viper.BindPFlag("narration.engine", rootCmd.Flags().Lookup("engine"))

	viper.SetDefault("style", styles.AutoStyle)
	viper.SetDefault("width", 0)

	defaults := narration.DefaultConfig()
	viper.SetDefault("narration.engine", defaults.Engine)
	viper.SetDefault("narration.preferred_language", defaults.PreferredLanguage)
	viper.SetDefault("narration.rate", defaults.Rate)
	viper.SetDefault("narration.min_narratable_length", defaults.MinNarratableLength)
	viper.SetDefault("narration.inter_segment_delay", defaults.InterSegmentDelay)
	viper.SetDefault("narration.heartbeat_interval", defaults.HeartbeatInterval)
	viper.SetDefault("narration.scroll_grace_window", defaults.ScrollGraceWindow)
	viper.SetDefault("narration.espeak.binary", defaults.Espeak.Binary)
	viper.SetDefault("narration.espeak.sample_rate", defaults.Espeak.SampleRate)
	viper.SetDefault("narration.espeak.words_per_minute", defaults.Espeak.WordsPerMinute)

	rootCmd.AddCommand(configCmd, manCmd)
}

func tryLoadConfigFromDefaultPlaces() {
	scope := gap.NewScope(gap.User, "recite")
	dirs, err := scope.ConfigDirs()
	if err != nil {
		fmt.Println("Could not find configuration directory.")
		os.Exit(1)
	}

	if c := os.Getenv("XDG_CONFIG_HOME"); c != "" {
		dirs = append([]string{filepath.Join(c, "recite")}, dirs...)
	}

	if c := os.Getenv("RECITE_CONFIG_HOME"); c != "" {
		dirs = append([]string{c}, dirs...)
	}

	for _, v := range dirs {
		viper.AddConfigPath(v)
	}

	viper.SetConfigName("recite")
	viper.SetConfigType("yaml")
	viper.SetEnvPrefix("recite")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Warn("Could not parse configuration file", "err", err)
		}
	}

	if used := viper.ConfigFileUsed(); used != "" {
		log.Debug("Using configuration file", "path", used)
		return
	}

	configFile = filepath.Join(dirs[0], "recite.yml")
	if err := ensureConfigFile(); err != nil {
		log.Error("Could not create default configuration", "error", err)
	}
}
