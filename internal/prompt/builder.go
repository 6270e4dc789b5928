// Package prompt renders the validation prompt and parses the oracle's
// verdict.
package prompt

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ppiankov/citecheck/internal/model"
)

// Request is everything the oracle sees for one citation
type Request struct {
	Citation  model.Citation
	Paragraph string
	Entry     model.Entry
	Quotes    []model.Quote
	Fragments []model.Fragment

	// FullText is the complete source document, set only when the
	// citation points at a specific page
	FullText string
}

const taskFraming = `You are a strict academic citation validator. Decide whether the cited source supports the claim made in the paragraph below.

Start from the assumption that the claim is NOT supported. Only upgrade the verdict when the evidence provided here clearly backs the specific claim. Do not rely on outside knowledge of the source; judge only the evidence shown.`

const procedure = `## Evaluation procedure

Step 1 - Topic relevance.
Check whether the source is about the same subject as the claim. If the subject matter is unrelated, stop and answer "not_supported" immediately.

Step 2 - Evidence search.
Look for passages in the quotes, abstract, long-form fields and fragments that state or directly imply the claim. Note the quote numbers that carry the claim.

Step 3 - Status determination.
The confidence required for "supported" depends on the source type:
- Peer-reviewed paper: confidence >= 0.85.
- Book: confidence >= 0.75.
- Media (video, podcast, blog): confidence >= 0.60. Illustrative or first-person statements by the speaker count as strong evidence for claims about what they said or experienced.

Claim-type modifiers:
- Factual claims (exact numbers, dates, attributions of who said or found what) always require confidence >= 0.85, whatever the source type.
- Theoretical claims (models, mechanisms, general theories) require an academic source. A media source alone cannot support them.

Use "partial" when the source supports part of the claim, supports a weaker version of it, or supports it below the required confidence. Use "not_supported" when the evidence is absent, contradicts the claim, or the topic does not match.`

const outputContract = `## Output format

Respond with ONLY a JSON object, no prose before or after it:
{
  "status": "supported" | "partial" | "not_supported",
  "confidence": <number between 0.0 and 1.0>,
  "explanation": "<one or two sentences naming the evidence you relied on>",
  "supportingQuoteIndices": [<1-based quote numbers, or an empty array>],
  "rephrase": "<suggested wording>"
}

Rules for "rephrase":
- Include it ONLY when status is "supported" or "partial".
- OMIT the "rephrase" field entirely when status is "not_supported".
- For "supported" with confidence below 1.0, tighten the wording so it matches the evidence precisely.
- For "partial", propose wording that the evidence would fully support.`

// Build renders the validation prompt. The output depends only on req.
func Build(req Request) string {
	var b strings.Builder

	b.WriteString(taskFraming)
	b.WriteString("\n\n")

	b.WriteString("## Claim context\n\n")
	fmt.Fprintf(&b, "Citation: %s (key %s)\n\n", req.Citation.FullText, req.Citation.Key)
	b.WriteString("Paragraph:\n")
	b.WriteString(req.Paragraph)
	b.WriteString("\n\n")

	writeEvidence(&b, req)

	b.WriteString(procedure)
	b.WriteString("\n\n")
	b.WriteString(outputContract)
	b.WriteString("\n")

	return b.String()
}

func writeEvidence(b *strings.Builder, req Request) {
	e := req.Entry

	b.WriteString("## Evidence\n\n")
	b.WriteString("### Source metadata\n")
	writeField(b, "Title", e.Title)
	writeField(b, "Author", e.Author)
	if e.Year > 0 {
		writeField(b, "Year", strconv.Itoa(e.Year))
	}
	writeField(b, "Journal", e.Journal)
	writeField(b, "DOI", e.DOI)
	fmt.Fprintf(b, "- Peer reviewed: %t\n", e.PeerReviewed)
	fmt.Fprintf(b, "- Source type: %s\n", e.Tier())
	b.WriteString("\n")

	for _, section := range []struct {
		heading string
		body    string
	}{
		{"Abstract", e.Abstract},
		{"Research question", e.Question},
		{"Method", e.Method},
		{"Results", e.Results},
		{"Interpretation", e.Interpretation},
		{"Claims", e.Claims},
	} {
		if strings.TrimSpace(section.body) == "" {
			continue
		}
		fmt.Fprintf(b, "### %s\n%s\n\n", section.heading, strings.TrimSpace(section.body))
	}

	if len(req.Quotes) > 0 {
		b.WriteString("### Quotes\n")
		for i, q := range req.Quotes {
			fmt.Fprintf(b, "[Quote %d]", i+1)
			if q.Page != nil {
				fmt.Fprintf(b, " (p. %d)", *q.Page)
			}
			fmt.Fprintf(b, "\n%s\n\n", q.Text)
		}
	}

	if len(req.Fragments) > 0 {
		b.WriteString("### Relevant passages from the full text\n")
		for _, f := range req.Fragments {
			fmt.Fprintf(b, "Lines %d-%d:\n", f.LineStart, f.LineEnd)
			b.WriteString(strings.Join(f.Lines, "\n"))
			b.WriteString("\n\n")
		}
	}

	if req.FullText != "" {
		fmt.Fprintf(b, "### Full source document\nThe citation refers to page %s. Verify the claim against that page.\n\n", req.Citation.PageRef)
		b.WriteString(req.FullText)
		b.WriteString("\n\n")
	}
}

func writeField(b *strings.Builder, name, value string) {
	if value == "" {
		return
	}
	fmt.Fprintf(b, "- %s: %s\n", name, value)
}
