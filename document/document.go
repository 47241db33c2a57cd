// Package document defines the structured lesson document that narration
// and the UI operate on, plus the markdown structurer that produces it.
package document

// SubSection is the smallest narratable unit of a lesson. Its ID is unique
// across the whole document and doubles as the anchor the UI scrolls to.
type SubSection struct {
	ID      string // globally unique identifier
	Title   string // heading text, may be empty for implicit subsections
	Content string // raw markdown body
}

// Section is an ordered group of subsections.
type Section struct {
	ID          string
	Title       string
	SubSections []SubSection
}

// Document is an ordered tree of sections. It is built once per load and
// treated as immutable for the lifetime of a playback session.
type Document struct {
	Title    string
	Sections []Section
}

// SubSectionCount returns the total number of subsections across sections.
func (d *Document) SubSectionCount() int {
	n := 0
	for _, s := range d.Sections {
		n += len(s.SubSections)
	}
	return n
}

// SubSectionIDs returns all subsection ids in document order.
func (d *Document) SubSectionIDs() []string {
	ids := make([]string, 0, d.SubSectionCount())
	for _, s := range d.Sections {
		for _, sub := range s.SubSections {
			ids = append(ids, sub.ID)
		}
	}
	return ids
}

// Lookup returns the subsection with the given id, if present.
func (d *Document) Lookup(id string) (SubSection, bool) {
	for _, s := range d.Sections {
		for _, sub := range s.SubSections {
			if sub.ID == id {
				return sub, true
			}
		}
	}
	return SubSection{}, false
}
