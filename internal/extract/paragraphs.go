package extract

import (
	"strings"

	"github.com/ppiankov/citecheck/internal/model"
)

// ParagraphSegmenter splits Markdown into prose blocks, skipping front
// matter, fenced code and headings
type ParagraphSegmenter struct{}

// NewParagraphSegmenter creates a new paragraph segmenter
func NewParagraphSegmenter() *ParagraphSegmenter {
	return &ParagraphSegmenter{}
}

// Parse returns the paragraphs of text in document order
func (s *ParagraphSegmenter) Parse(text string) []model.Paragraph {
	paragraphs := make([]model.Paragraph, 0)
	if text == "" {
		return paragraphs
	}

	lines := strings.Split(text, "\n")

	var (
		inFrontmatter bool
		inCodeBlock   bool
		current       []string
		firstLine     int
	)

	flush := func(lastLine int) {
		if len(current) == 0 {
			return
		}
		last := current[len(current)-1]
		paragraphs = append(paragraphs, model.Paragraph{
			Text: strings.Join(current, "\n"),
			Range: model.Range{
				Start: model.Position{Line: firstLine, Character: 0},
				End:   model.Position{Line: lastLine, Character: len(last)},
			},
		})
		current = nil
	}

	for i, raw := range lines {
		line := strings.TrimRight(raw, "\r")
		trimmed := strings.TrimSpace(line)

		if i == 0 && line == "---" {
			inFrontmatter = true
			continue
		}
		if inFrontmatter {
			if trimmed == "---" || trimmed == "..." {
				inFrontmatter = false
			}
			continue
		}

		if strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~") {
			flush(i - 1)
			inCodeBlock = !inCodeBlock
			continue
		}
		if inCodeBlock {
			continue
		}

		if strings.HasPrefix(trimmed, "#") || trimmed == "" {
			flush(i - 1)
			continue
		}

		if len(current) == 0 {
			firstLine = i
		}
		current = append(current, line)
	}
	flush(len(lines) - 1)

	return paragraphs
}

// Associate attaches each citation to the first paragraph that fully
// contains it. Citations spanning a paragraph boundary stay unattached.
func Associate(paragraphs []model.Paragraph, citations []model.Citation) []model.Paragraph {
	out := make([]model.Paragraph, len(paragraphs))
	for i, p := range paragraphs {
		p.Citations = nil
		out[i] = p
	}

	for _, c := range citations {
		for i := range out {
			if out[i].Range.Contains(c.Range) {
				out[i].Citations = append(out[i].Citations, c)
				break
			}
		}
	}

	return out
}

// FindParagraph returns the first paragraph containing the citation
func FindParagraph(paragraphs []model.Paragraph, c model.Citation) (model.Paragraph, bool) {
	for _, p := range paragraphs {
		if p.Range.Contains(c.Range) {
			return p, true
		}
	}
	return model.Paragraph{}, false
}
