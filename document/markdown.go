package document

import (
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// FromMarkdown structures a markdown source into a Document. Level-1
// headings open a new section, deeper headings open a new subsection, and
// every other block is appended to the current subsection's content.
// Content that appears before any heading lands in an implicit untitled
// section/subsection so nothing is lost.
func FromMarkdown(src []byte) *Document {
	md := goldmark.New()
	root := md.Parser().Parse(text.NewReader(src))

	b := &builder{seen: make(map[string]int)}
	for node := root.FirstChild(); node != nil; node = node.NextSibling() {
		if h, ok := node.(*ast.Heading); ok {
			title := headingText(h, src)
			if h.Level == 1 {
				b.startSection(title)
			} else {
				b.startSubSection(title)
			}
			continue
		}
		b.appendContent(blockSource(node, src))
	}
	return b.finish()
}

// builder accumulates sections while walking top-level blocks.
type builder struct {
	doc  Document
	sec  *Section
	sub  *SubSection
	seen map[string]int
}

func (b *builder) startSection(title string) {
	b.flushSub()
	b.flushSec()
	b.sec = &Section{ID: b.slug(title, "section"), Title: title}
}

func (b *builder) startSubSection(title string) {
	b.flushSub()
	if b.sec == nil {
		b.sec = &Section{ID: b.slug("", "section")}
	}
	b.sub = &SubSection{ID: b.slug(title, b.sec.ID), Title: title}
}

func (b *builder) appendContent(chunk string) {
	chunk = strings.TrimRight(chunk, "\n")
	if strings.TrimSpace(chunk) == "" {
		return
	}
	if b.sub == nil {
		// Implicit subsection for body text that precedes any subheading.
		b.startSubSection("")
	}
	if b.sub.Content != "" {
		b.sub.Content += "\n\n"
	}
	b.sub.Content += chunk
}

func (b *builder) flushSub() {
	if b.sub == nil {
		return
	}
	if b.sec == nil {
		b.sec = &Section{ID: b.slug("", "section")}
	}
	b.sec.SubSections = append(b.sec.SubSections, *b.sub)
	b.sub = nil
}

func (b *builder) flushSec() {
	if b.sec == nil {
		return
	}
	b.doc.Sections = append(b.doc.Sections, *b.sec)
	b.sec = nil
}

func (b *builder) finish() *Document {
	b.flushSub()
	b.flushSec()
	return &b.doc
}

// slug derives a unique anchor id from a heading. Duplicate headings get a
// numeric suffix so the uniqueness invariant holds document-wide.
func (b *builder) slug(title, fallback string) string {
	s := slugify(title)
	if s == "" {
		s = fallback
	}
	b.seen[s]++
	if n := b.seen[s]; n > 1 {
		return fmt.Sprintf("%s-%d", s, n)
	}
	return s
}

func slugify(title string) string {
	var sb strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(title) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			sb.WriteRune(r)
			lastDash = false
		case !lastDash:
			sb.WriteByte('-')
			lastDash = true
		}
	}
	return strings.Trim(sb.String(), "-")
}

func headingText(h *ast.Heading, src []byte) string {
	var sb strings.Builder
	for c := h.FirstChild(); c != nil; c = c.NextSibling() {
		collectText(c, src, &sb)
	}
	return strings.TrimSpace(sb.String())
}

func collectText(n ast.Node, src []byte, sb *strings.Builder) {
	if t, ok := n.(*ast.Text); ok {
		sb.Write(t.Segment.Value(src))
	}
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		collectText(c, src, sb)
	}
}

// blockSource reassembles the raw source lines covered by a block and its
// descendants. Containers like lists carry no lines of their own.
func blockSource(n ast.Node, src []byte) string {
	var sb strings.Builder
	_ = ast.Walk(n, func(child ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering || child.Type() != ast.TypeBlock {
			return ast.WalkContinue, nil
		}
		lines := child.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			sb.Write(seg.Value(src))
		}
		return ast.WalkContinue, nil
	})
	return sb.String()
}
