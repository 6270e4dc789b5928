package model

import "time"

// Report is the outcome of validating every citation in one document
type Report struct {
	Subject     string             `json:"subject"`          // document path or label
	RunID       string             `json:"run_id"`
	ValidatedAt time.Time          `json:"validated_at"`
	Paragraphs  int                `json:"paragraphs"`
	Results     []ValidationResult `json:"results"`
	Summary     Summary            `json:"summary"`
}

// Summary aggregates the verdicts of a report
type Summary struct {
	Total          int     `json:"total"`
	Supported      int     `json:"supported"`
	Partial        int     `json:"partial"`
	NotSupported   int     `json:"not_supported"`
	Failed         int     `json:"failed"` // not_supported with zero confidence and no oracle call
	MeanConfidence float64 `json:"mean_confidence"`
	InputTokens    int     `json:"input_tokens"`
	OutputTokens   int     `json:"output_tokens"`
	CostUSD        float64 `json:"cost_usd"`

	// Display buckets use the presentation thresholds, which are
	// independent from the tiered thresholds baked into the prompt.
	Buckets map[DisplayBucket]int `json:"buckets"`
}

// DisplayBucket is how a verdict is presented to the user
type DisplayBucket string

const (
	BucketConfirmed DisplayBucket = "confirmed" // supported and confidence >= supported threshold
	BucketUncertain DisplayBucket = "uncertain" // supported/partial but below their bar
	BucketWeak      DisplayBucket = "weak"      // partial and confidence >= partial threshold
	BucketRejected  DisplayBucket = "rejected"  // not_supported
)
