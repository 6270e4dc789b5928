package extract

import (
	"context"
	"encoding/json"
	"strings"

	"go.uber.org/zap"

	"github.com/ppiankov/citecheck/internal/llm"
	"github.com/ppiankov/citecheck/internal/logger"
)

const keywordInstruction = `Extract search keywords from the paragraph below. They will be used to grep the full text of the cited source.

Return 3-6 keywords in English and 3-6 keywords in Dutch. Prefer specific nouns, named concepts and technical terms over generic words. Use single words or short phrases.

Respond with ONLY a JSON object, no prose:
{"english": ["..."], "dutch": ["..."]}

Paragraph:
`

// Keywords are bilingual search terms derived from a claim paragraph
type Keywords struct {
	English []string `json:"english"`
	Dutch   []string `json:"dutch"`
}

// All returns English then Dutch keywords, deduplicated case-insensitively
func (k Keywords) All() []string {
	seen := make(map[string]bool)
	var all []string
	for _, kw := range append(append([]string{}, k.English...), k.Dutch...) {
		kw = strings.TrimSpace(kw)
		key := strings.ToLower(kw)
		if kw == "" || seen[key] {
			continue
		}
		seen[key] = true
		all = append(all, kw)
	}
	return all
}

// Empty reports whether no keywords were extracted
func (k Keywords) Empty() bool {
	return len(k.All()) == 0
}

// KeywordExtractor asks a cheap auxiliary model for search terms
type KeywordExtractor struct {
	provider  llm.Provider
	model     string
	maxTokens int
	log       *zap.Logger
}

// NewKeywordExtractor creates a keyword extractor. A nil provider disables
// extraction.
func NewKeywordExtractor(provider llm.Provider, model string, maxTokens int, log *zap.Logger) *KeywordExtractor {
	if maxTokens <= 0 {
		maxTokens = 300
	}
	return &KeywordExtractor{
		provider:  provider,
		model:     model,
		maxTokens: maxTokens,
		log:       logger.OrNop(log),
	}
}

// Extract returns keywords for the paragraph. Extraction is an
// optimization: any failure yields empty keyword lists, never an error.
func (e *KeywordExtractor) Extract(ctx context.Context, paragraph string) Keywords {
	empty := Keywords{English: []string{}, Dutch: []string{}}
	if e == nil || e.provider == nil || strings.TrimSpace(paragraph) == "" {
		return empty
	}

	resp, err := e.provider.Complete(ctx, llm.CompletionRequest{
		Prompt:      keywordInstruction + paragraph,
		Model:       e.model,
		MaxTokens:   e.maxTokens,
		Temperature: 0,
	})
	if err != nil {
		e.log.Debug("keyword extraction failed", zap.Error(err))
		return empty
	}

	raw, ok := llm.ExtractJSONObject(resp.Text)
	if !ok {
		e.log.Debug("keyword extraction returned no JSON", zap.String("text", resp.Text))
		return empty
	}

	var kw Keywords
	if err := json.Unmarshal([]byte(raw), &kw); err != nil {
		e.log.Debug("keyword extraction returned invalid JSON", zap.Error(err))
		return empty
	}
	if kw.English == nil {
		kw.English = []string{}
	}
	if kw.Dutch == nil {
		kw.Dutch = []string{}
	}
	return kw
}
