package ui

import (
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

type errMsg struct{ err error }

func (e errMsg) Error() string { return e.err.Error() }

// Narration events crossing from controller callbacks into the tea loop.
type (
	activeChangedMsg  struct{ id string }
	playingChangedMsg struct{ playing bool }
	autoScrollMsg     struct{ id string }
)

// fileReloadedMsg carries a fresh copy of the lesson file.
type fileReloadedMsg struct{ body []byte }

// statusTimeoutMsg clears a transient status message.
type statusTimeoutMsg struct{}

// editorFinishedMsg fires when the external editor exits.
type editorFinishedMsg struct{ err error }

// waitForEvent relays one message from a bridge channel into the program.
// The receiving Update case must re-issue the command to keep listening.
func waitForEvent(ch chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		return <-ch
	}
}

// reloadFile reads the lesson file from disk.
func reloadFile(path string) tea.Cmd {
	return func() tea.Msg {
		body, err := os.ReadFile(path)
		if err != nil {
			return errMsg{err}
		}
		return fileReloadedMsg{body: body}
	}
}

func clearStatusAfter(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg {
		return statusTimeoutMsg{}
	})
}
