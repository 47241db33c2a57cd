package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/styles"
	"github.com/charmbracelet/lipgloss"
	"github.com/mitchellh/go-homedir"
	te "github.com/muesli/termenv"
)

var (
	keywordStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#04B575", Dark: "#ECFD65"})

	paragraphStyle = lipgloss.NewStyle().
			Width(78).
			Padding(0, 0, 0, 2)
)

func keyword(s string) string {
	return keywordStyle.Render(s)
}

func paragraph(s string) string {
	return paragraphStyle.Render(s)
}

// validateStyle checks if the style is a default style, if not, checks that
// the custom style exists.
func validateStyle(style string) error {
	if style == "" || style == styles.AutoStyle || styles.DefaultStyles[style] != nil {
		return nil
	}
	style = expandPath(style)
	if _, err := os.Stat(style); errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("specified style does not exist: %s", style)
	} else if err != nil {
		return fmt.Errorf("unable to stat file: %w", err)
	}
	return nil
}

func glamourStyle(style string) glamour.TermRendererOption {
	if style == "" || style == styles.AutoStyle {
		return glamour.WithAutoStyle()
	}
	return glamour.WithStylePath(expandPath(style))
}

// detectBackgroundStyle resolves the auto style against the terminal
// background, so the TUI renders consistently across redraws.
func detectBackgroundStyle() string {
	if te.HasDarkBackground() {
		return styles.DarkStyle
	}
	return styles.LightStyle
}

func expandPath(path string) string {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return path
	}
	return expanded
}
