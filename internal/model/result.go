package model

// Status is the oracle's verdict for one citation occurrence
type Status string

const (
	StatusSupported    Status = "supported"
	StatusPartial      Status = "partial"
	StatusNotSupported Status = "not_supported"
)

// Valid reports whether s is one of the enumerated verdicts
func (s Status) Valid() bool {
	switch s {
	case StatusSupported, StatusPartial, StatusNotSupported:
		return true
	}
	return false
}

// TokenUsage counts tokens consumed by one oracle call
type TokenUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Total returns input plus output tokens
func (u TokenUsage) Total() int {
	return u.InputTokens + u.OutputTokens
}

// ValidationResult is the verdict for one (citation occurrence, paragraph) pair
type ValidationResult struct {
	Citation         Citation    `json:"citation"`
	Status           Status      `json:"status"`
	Confidence       float64     `json:"confidence"`
	Explanation      string      `json:"explanation"`
	SupportingQuotes []Quote     `json:"supporting_quotes,omitempty"`
	Rephrase         string      `json:"rephrase,omitempty"`
	Usage            *TokenUsage `json:"usage,omitempty"`
	CostUSD          float64     `json:"cost_usd,omitempty"`
	Model            string      `json:"model,omitempty"`
}

// NotSupported builds a terminal failure verdict with zero confidence
func NotSupported(c Citation, explanation string) ValidationResult {
	return ValidationResult{
		Citation:    c,
		Status:      StatusNotSupported,
		Confidence:  0,
		Explanation: explanation,
	}
}
