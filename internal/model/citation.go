package model

// Position is a zero-based location in a document. Character is a byte
// column within the line.
type Position struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

// Before reports whether p sorts strictly before o
func (p Position) Before(o Position) bool {
	if p.Line != o.Line {
		return p.Line < o.Line
	}
	return p.Character < o.Character
}

// Range is a start/end position pair (end exclusive)
type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// Contains reports whether r fully encloses other
func (r Range) Contains(other Range) bool {
	return !other.Start.Before(r.Start) && !r.End.Before(other.End)
}

// CitationType distinguishes the two citation surface forms
type CitationType string

const (
	CitationBracket CitationType = "bracket" // [@key, p. 4]
	CitationInline  CitationType = "inline"  // @key
)

// Citation is one occurrence of a reference marker in a document.
// Several citations may share a key, and bracket citations like
// [@a; @b] share one Range and FullText.
type Citation struct {
	Key      string       `json:"key"`
	FullText string       `json:"full_text"`
	Range    Range        `json:"range"`
	PageRef  string       `json:"page_ref,omitempty"`
	Type     CitationType `json:"type"`
}

// HasPageRef reports whether the citation points at a specific page
func (c Citation) HasPageRef() bool {
	return c.PageRef != ""
}

// Paragraph is a contiguous block of prose
type Paragraph struct {
	Text      string     `json:"text"`
	Range     Range      `json:"range"`
	Citations []Citation `json:"citations,omitempty"`
}
