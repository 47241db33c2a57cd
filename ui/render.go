package ui

import (
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/lessonkit/recite/document"
)

// gutterWidth is the column reserved on the left of every rendered line
// for the reading-position marker.
const gutterWidth = 2

// renderedBlock is one document element rendered to terminal lines. Blocks
// carrying a subsection id are narration targets; section headings carry
// an empty id.
type renderedBlock struct {
	id    string
	lines []string
}

// lineSpan is a half-open line range within the assembled view.
type lineSpan struct {
	start, end int
}

// renderBlocks renders the document subsection by subsection so that each
// narration target gets a known line range in the viewport.
func renderBlocks(doc *document.Document, style string, width int) ([]renderedBlock, error) {
	wrap := width - gutterWidth
	if wrap < 20 {
		wrap = 20
	}

	opts := []glamour.TermRendererOption{glamour.WithWordWrap(wrap)}
	if style == "" || style == "auto" {
		opts = append(opts, glamour.WithAutoStyle())
	} else {
		opts = append(opts, glamour.WithStylePath(style))
	}
	renderer, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return nil, err
	}

	var blocks []renderedBlock
	if doc == nil {
		return blocks, nil
	}

	render := func(id, md string) error {
		if strings.TrimSpace(md) == "" {
			return nil
		}
		out, err := renderer.Render(md)
		if err != nil {
			return err
		}
		lines := strings.Split(strings.Trim(out, "\n"), "\n")
		lines = append(lines, "") // spacing between blocks
		blocks = append(blocks, renderedBlock{id: id, lines: lines})
		return nil
	}

	if doc.Title != "" {
		if err := render("", "# "+doc.Title); err != nil {
			return nil, err
		}
	}
	for _, sec := range doc.Sections {
		if sec.Title != "" {
			if err := render("", "## "+sec.Title); err != nil {
				return nil, err
			}
		}
		for _, sub := range sec.SubSections {
			md := sub.Content
			if sub.Title != "" {
				md = "### " + sub.Title + "\n\n" + sub.Content
			}
			if err := render(sub.ID, md); err != nil {
				return nil, err
			}
		}
	}
	return blocks, nil
}

// assemble joins rendered blocks into viewport content, drawing the
// reading marker beside the active subsection, and returns the line span
// of every subsection for scrolling and visibility tracking.
func assemble(blocks []renderedBlock, activeID string) (string, map[string]lineSpan) {
	var b strings.Builder
	spans := make(map[string]lineSpan)
	line := 0

	activeBar := activeGutterStyle.Render("┃") + " "
	idleBar := strings.Repeat(" ", gutterWidth)

	for _, blk := range blocks {
		bar := idleBar
		if blk.id != "" && blk.id == activeID {
			bar = activeBar
		}
		start := line
		for _, l := range blk.lines {
			b.WriteString(bar)
			b.WriteString(l)
			b.WriteString("\n")
			line++
		}
		if blk.id != "" {
			spans[blk.id] = lineSpan{start: start, end: line}
		}
	}
	return b.String(), spans
}
