// Package ui provides the terminal UI: a scrollable lesson view wired to
// the narration engine, with a reading marker that follows playback.
package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/charmbracelet/x/editor"
	"github.com/dustin/go-humanize"
	"github.com/mattn/go-runewidth"
	"github.com/muesli/reflow/truncate"

	"github.com/lessonkit/recite/document"
	"github.com/lessonkit/recite/narration"
)

const statusMessageTimeout = 2 * time.Second

// NewProgram returns a new Tea program displaying the given lesson.
func NewProgram(cfg Config, engine narration.Engine, content []byte) *tea.Program {
	log.Debug("starting recite", "path", cfg.Path, "engine", cfg.Narration.Engine)

	m := newModel(cfg, engine, content)
	opts := []tea.ProgramOption{tea.WithAltScreen()}
	if cfg.EnableMouse {
		opts = append(opts, tea.WithMouseCellMotion())
	}
	return tea.NewProgram(m, opts...)
}

type model struct {
	cfg      Config
	width    int
	height   int
	ready    bool
	fatalErr error

	viewport viewport.Model

	doc    *document.Document
	raw    []byte
	blocks []renderedBlock
	spans  map[string]lineSpan

	controller *narration.Controller

	// events bridges controller callbacks and the file watcher into the
	// tea loop; done tears the watcher down on quit.
	events chan tea.Msg
	done   chan struct{}

	playing  bool
	activeID string
	status   string
}

func newModel(cfg Config, engine narration.Engine, content []byte) *model {
	m := &model{
		cfg:        cfg,
		raw:        content,
		doc:        document.FromMarkdown(content),
		controller: narration.NewController(engine, cfg.Narration),
		events:     make(chan tea.Msg, 32),
		done:       make(chan struct{}),
	}
	m.controller.SetDocument(m.doc)

	// Callbacks fire on controller goroutines; a non-blocking send keeps
	// them from ever waiting on the UI.
	m.controller.OnActiveChange(func(id string) {
		m.post(activeChangedMsg{id: id})
	})
	m.controller.OnPlayingChange(func(playing bool) {
		m.post(playingChangedMsg{playing: playing})
	})
	m.controller.OnAutoScroll(func(id string) {
		m.post(autoScrollMsg{id: id})
	})

	if cfg.Watch && cfg.Path != "" {
		if err := watchFile(cfg.Path, m.events, m.done); err != nil {
			log.Warn("live reload unavailable", "err", err)
		}
	}
	return m
}

func (m *model) post(msg tea.Msg) {
	select {
	case m.events <- msg:
	default:
		log.Debug("dropping UI event", "msg", fmt.Sprintf("%T", msg))
	}
}

func (m *model) Init() tea.Cmd {
	return waitForEvent(m.events)
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.fatalErr != nil {
		if _, ok := msg.(tea.KeyMsg); ok {
			return m, tea.Quit
		}
	}

	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if cmd, handled := m.handleKey(msg); handled {
			return m, cmd
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		verticalMargins := 1 // status bar
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-verticalMargins)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - verticalMargins
		}
		if err := m.rerender(); err != nil {
			m.fatalErr = err
			return m, nil
		}
		m.reportVisibility()
		return m, nil

	case activeChangedMsg:
		m.activeID = msg.id
		m.refreshContent()
		return m, waitForEvent(m.events)

	case playingChangedMsg:
		m.playing = msg.playing
		return m, waitForEvent(m.events)

	case autoScrollMsg:
		if span, ok := m.spans[msg.id]; ok {
			offset := span.start - 1
			if offset < 0 {
				offset = 0
			}
			m.viewport.SetYOffset(offset)
			m.reportVisibility()
		}
		return m, waitForEvent(m.events)

	case fileReloadedMsg:
		m.raw = msg.body
		m.doc = document.FromMarkdown(msg.body)
		m.controller.SetDocument(m.doc)
		m.activeID = ""
		if err := m.rerender(); err != nil {
			m.fatalErr = err
			return m, nil
		}
		m.reportVisibility()
		m.status = fmt.Sprintf("reloaded %s", humanize.Bytes(uint64(len(msg.body))))
		return m, tea.Batch(waitForEvent(m.events), clearStatusAfter(statusMessageTimeout))

	case statusTimeoutMsg:
		m.status = ""
		return m, nil

	case editorFinishedMsg:
		if msg.err != nil {
			m.status = "edit failed"
			return m, clearStatusAfter(statusMessageTimeout)
		}
		return m, reloadFile(m.cfg.Path)

	case errMsg:
		m.fatalErr = msg.err
		return m, nil
	}

	// Everything else, scroll input included, goes to the viewport. A
	// changed offset here means the user moved the view themselves.
	before := m.viewport.YOffset
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	if m.viewport.YOffset != before {
		m.reportVisibility()
		m.controller.UserInput()
	}
	return m, tea.Batch(cmds...)
}

func (m *model) handleKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	switch msg.String() {
	case "q", "ctrl+c", "esc":
		m.controller.Stop()
		close(m.done)
		return tea.Quit, true

	case " ", "p":
		m.controller.Toggle()
		return nil, true

	case "s":
		m.controller.Stop()
		return nil, true

	case "c":
		if err := clipboard.WriteAll(string(m.raw)); err != nil {
			m.status = "copy failed"
		} else {
			m.status = "copied"
		}
		return clearStatusAfter(statusMessageTimeout), true

	case "r":
		if m.cfg.Path == "" {
			return nil, true
		}
		return reloadFile(m.cfg.Path), true

	case "e":
		if m.cfg.Path == "" {
			return nil, true
		}
		m.controller.Stop()
		cmd, err := editor.Cmd("recite", m.cfg.Path)
		if err != nil {
			m.status = "no editor configured"
			return clearStatusAfter(statusMessageTimeout), true
		}
		return tea.ExecProcess(cmd, func(err error) tea.Msg {
			return editorFinishedMsg{err: err}
		}), true
	}
	return nil, false
}

// rerender rebuilds the glamour blocks for the current size and pushes the
// assembled content into the viewport.
func (m *model) rerender() error {
	blocks, err := renderBlocks(m.doc, m.cfg.GlamourStyle, m.contentWidth())
	if err != nil {
		return err
	}
	m.blocks = blocks
	m.refreshContent()
	return nil
}

// refreshContent reassembles the viewport content, preserving the scroll
// position across reading-marker moves.
func (m *model) refreshContent() {
	offset := m.viewport.YOffset
	content, spans := assemble(m.blocks, m.activeID)
	m.spans = spans
	m.viewport.SetContent(content)
	m.viewport.SetYOffset(offset)
}

func (m *model) contentWidth() int {
	w := m.width
	if m.cfg.GlamourMaxWidth > 0 && int(m.cfg.GlamourMaxWidth) < w {
		w = int(m.cfg.GlamourMaxWidth)
	}
	return w
}

// reportVisibility tells the narration layer which subsections intersect
// the viewport right now.
func (m *model) reportVisibility() {
	if m.doc == nil {
		return
	}
	top := m.viewport.YOffset
	bottom := top + m.viewport.Height

	var visible []string
	for _, id := range m.doc.SubSectionIDs() {
		span, ok := m.spans[id]
		if !ok {
			continue
		}
		if span.start < bottom && span.end > top {
			visible = append(visible, id)
		}
	}
	m.controller.Visibility().Replace(visible)
}

func (m *model) View() string {
	if m.fatalErr != nil {
		return errorView(m.fatalErr)
	}
	if !m.ready {
		return "\n  loading..."
	}
	return m.viewport.View() + "\n" + m.statusBar()
}

func (m *model) statusBar() string {
	var badge string
	if m.playing {
		badge = statusPlayingStyle.Render("▶ READING")
	} else {
		badge = statusIdleStyle.Render("■ IDLE")
	}

	middle := m.status
	if middle == "" && m.activeID != "" {
		items := m.controller.Items()
		if i := narration.FirstIndexFor(items, m.activeID); i >= 0 {
			middle = fmt.Sprintf("%s (%d/%d)", items[i].Label, i+1, len(items))
		}
	}

	help := statusHelpStyle.Render("space play · e edit · c copy · q quit")

	gap := m.width - lipgloss.Width(badge) - lipgloss.Width(help) - runewidth.StringWidth(middle) - 2
	if gap < 1 {
		keep := runewidth.StringWidth(middle) + gap - 1
		if keep < 0 {
			keep = 0
		}
		middle = truncate.String(middle, uint(keep))
		gap = 1
	}

	bar := badge + " " + middle + strings.Repeat(" ", gap) + help
	return statusBarStyle.Width(m.width).Render(bar)
}

func errorView(err error) string {
	s := fmt.Sprintf("%s\n\n%v\n\n%s",
		errorTitleStyle.Render("ERROR"),
		err,
		subtleStyle.Render("press any key to exit"),
	)
	return "\n" + indent(s, 2)
}

func indent(s string, n int) string {
	pad := strings.Repeat(" ", n)
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = pad + l
	}
	return strings.Join(lines, "\n")
}
