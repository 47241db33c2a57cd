package narration

import (
	"strings"

	"github.com/lessonkit/recite/document"
)

// Item is one unit of text scheduled for a single speech-synthesis call,
// tagged with the subsection it belongs to so the host UI can highlight it.
type Item struct {
	ID    string // subsection id, the highlight/scroll anchor
	Label string // short human-readable label for status display
	Text  string // raw narration text; sanitized per item at playback time
}

// BuildPlaylist flattens a structured document into the ordered narration
// playlist. Playlist order is exactly document order, and every item maps
// back to exactly one subsection id.
//
// Each subsection yields one item combining "Title. " and the body as a
// single utterance. A subsection with no body yields an item with empty
// text: a bare heading is not narration, and the sanitizer's length guard
// turns it into a silent skip at playback time.
func BuildPlaylist(doc *document.Document) []Item {
	if doc == nil {
		return nil
	}
	items := make([]Item, 0, doc.SubSectionCount())
	for _, sec := range doc.Sections {
		for _, sub := range sec.SubSections {
			items = append(items, Item{
				ID:    sub.ID,
				Label: itemLabel(sub),
				Text:  itemText(sub),
			})
		}
	}
	return items
}

// FirstIndexFor returns the index of the first playlist item belonging to
// the given subsection id, or -1 if the id is not in the playlist.
func FirstIndexFor(items []Item, id string) int {
	if id == "" {
		return -1
	}
	for i, item := range items {
		if item.ID == id {
			return i
		}
	}
	return -1
}

func itemLabel(sub document.SubSection) string {
	if t := strings.TrimSpace(sub.Title); t != "" {
		return t
	}
	return sub.ID
}

func itemText(sub document.SubSection) string {
	body := strings.TrimSpace(sub.Content)
	if body == "" {
		return ""
	}
	title := strings.TrimSpace(sub.Title)
	if title == "" {
		return body
	}
	if !strings.HasSuffix(title, ".") && !strings.HasSuffix(title, "!") && !strings.HasSuffix(title, "?") {
		title += "."
	}
	return title + " " + body
}
