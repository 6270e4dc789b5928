package model

// EntryType is the corpus category an entry lives in
type EntryType string

const (
	EntryPaper EntryType = "paper"
	EntryBook  EntryType = "book"
	EntryMedia EntryType = "media" // videos, podcasts, blog posts
)

// EntryTypes is the order in which corpus categories are probed
var EntryTypes = []EntryType{EntryPaper, EntryBook, EntryMedia}

// Entry is a source record owned by the external corpus
type Entry struct {
	Key            string    `json:"key"`
	Title          string    `json:"title"`
	Author         string    `json:"author,omitempty"`
	Year           int       `json:"year,omitempty"`
	Abstract       string    `json:"abstract,omitempty"`
	Journal        string    `json:"journal,omitempty"`
	Volume         string    `json:"volume,omitempty"`
	Issue          string    `json:"issue,omitempty"`
	Pages          string    `json:"pages,omitempty"`
	DOI            string    `json:"doi,omitempty"`
	URL            string    `json:"url,omitempty"`
	Keywords       []string  `json:"keywords,omitempty"`
	Question       string    `json:"question,omitempty"`
	Method         string    `json:"method,omitempty"`
	Gaps           string    `json:"gaps,omitempty"`
	Results        string    `json:"results,omitempty"`
	Interpretation string    `json:"interpretation,omitempty"`
	Claims         string    `json:"claims,omitempty"`
	Type           EntryType `json:"type,omitempty"`
	PeerReviewed   bool      `json:"peer_reviewed"`
	File           string    `json:"file,omitempty"` // backing full-text path
}

// Quote is a fixed excerpt belonging to an entry
type Quote struct {
	Text string `json:"text"`
	Page *int   `json:"page,omitempty"`
}

// Fragment is a full-text excerpt located by keyword or semantic search.
// LineStart identifies the fragment for deduplication.
type Fragment struct {
	LineStart          int      `json:"line_start"`
	LineEnd            int      `json:"line_end"`
	Lines              []string `json:"lines"`
	MatchedLineNumbers []int    `json:"matched_line_numbers,omitempty"`
}

// SourceTier classifies an entry by how much evidentiary weight it carries
type SourceTier int

const (
	TierPaper SourceTier = iota // peer-reviewed or academic paper
	TierBook
	TierMedia
)

func (t SourceTier) String() string {
	switch t {
	case TierPaper:
		return "paper"
	case TierBook:
		return "book"
	default:
		return "media"
	}
}

// SupportedThreshold is the minimum confidence the oracle must reach
// before a claim backed by this tier may be called supported.
func (t SourceTier) SupportedThreshold() float64 {
	switch t {
	case TierPaper:
		return 0.85
	case TierBook:
		return 0.75
	default:
		return 0.60
	}
}

// Tier derives the source tier of an entry. Untyped entries fall back to
// paper, the strictest bar.
func (e Entry) Tier() SourceTier {
	switch e.Type {
	case EntryBook:
		return TierBook
	case EntryMedia:
		return TierMedia
	default:
		return TierPaper
	}
}
