package extract

import (
	"regexp"
	"sort"
	"strings"

	"github.com/ppiankov/citecheck/internal/model"
)

var (
	// A bracket span with at least one @ and no nested brackets
	bracketPattern = regexp.MustCompile(`\[[^\[\]]*@[^\[\]]*\]`)

	// Citation key: a letter followed by letters, digits, _, : or -
	keyPattern = regexp.MustCompile(`@([A-Za-z][A-Za-z0-9_:\-]*)`)

	// p. 42, pp. 42-45, page 7, Pages 3–9
	pageRefPattern = regexp.MustCompile(`(?i)\b(?:pp?\.|pages?)\s*(\d+(?:\s*[-–]\s*\d+)?)`)
)

// CitationLocator finds citation markers in Markdown text
type CitationLocator struct{}

// NewCitationLocator creates a new citation locator
func NewCitationLocator() *CitationLocator {
	return &CitationLocator{}
}

// Parse returns every citation in text: all bracket citations in document
// order, followed by all inline citations in document order.
func (l *CitationLocator) Parse(text string) []model.Citation {
	if text == "" {
		return []model.Citation{}
	}

	idx := newLineIndex(text)
	citations := make([]model.Citation, 0)

	for _, span := range bracketPattern.FindAllStringIndex(text, -1) {
		fullText := text[span[0]:span[1]]
		inner := fullText[1 : len(fullText)-1]
		rng := idx.rangeOf(span[0], span[1])
		pageRef := extractPageRef(inner)

		for _, m := range keyPattern.FindAllStringSubmatchIndex(inner, -1) {
			if isEmailAt(inner, m[0]) {
				continue
			}
			citations = append(citations, model.Citation{
				Key:      inner[m[2]:m[3]],
				FullText: fullText,
				Range:    rng,
				PageRef:  pageRef,
				Type:     model.CitationBracket,
			})
		}
	}

	for _, m := range keyPattern.FindAllStringSubmatchIndex(text, -1) {
		start, end := m[0], m[1]
		if isEmailAt(text, start) {
			continue
		}
		if insideBracket(text, start, end) {
			continue
		}
		citations = append(citations, model.Citation{
			Key:      text[m[2]:m[3]],
			FullText: text[start:end],
			Range:    idx.rangeOf(start, end),
			Type:     model.CitationInline,
		})
	}

	return citations
}

// extractPageRef returns the first page reference in a bracket interior
func extractPageRef(inner string) string {
	m := pageRefPattern.FindStringSubmatch(inner)
	if m == nil {
		return ""
	}
	return strings.Join(strings.Fields(m[1]), "")
}

// insideBracket reports whether the token text[start:end] sits between an
// unclosed [ before it and a ] after it with no [ in between.
func insideBracket(text string, start, end int) bool {
	open := false
	for i := start - 1; i >= 0; i-- {
		if text[i] == ']' {
			return false
		}
		if text[i] == '[' {
			open = true
			break
		}
	}
	if !open {
		return false
	}

	for i := end; i < len(text); i++ {
		switch text[i] {
		case ']':
			return true
		case '[':
			return false
		}
	}
	return false
}

// isEmailAt reports whether the @ at s[at] belongs to an e-mail address
func isEmailAt(s string, at int) bool {
	return at > 0 && isWordByte(s[at-1])
}

func isWordByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9'
}

// lineIndex converts byte offsets into line/character positions
type lineIndex struct {
	starts []int
}

func newLineIndex(text string) *lineIndex {
	starts := []int{0}
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			starts = append(starts, i+1)
		}
	}
	return &lineIndex{starts: starts}
}

func (li *lineIndex) position(offset int) model.Position {
	line := sort.Search(len(li.starts), func(i int) bool {
		return li.starts[i] > offset
	}) - 1
	return model.Position{Line: line, Character: offset - li.starts[line]}
}

func (li *lineIndex) rangeOf(start, end int) model.Range {
	return model.Range{Start: li.position(start), End: li.position(end)}
}
