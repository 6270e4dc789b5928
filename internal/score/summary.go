package score

import (
	"github.com/ppiankov/citecheck/internal/model"
)

// Bucket places one verdict into a display bucket using the presentation
// thresholds. The oracle's own tiered thresholds are not re-applied.
func Bucket(r model.ValidationResult, t model.ConfidenceThresholds) model.DisplayBucket {
	switch r.Status {
	case model.StatusSupported:
		if r.Confidence >= t.Supported {
			return model.BucketConfirmed
		}
		return model.BucketUncertain
	case model.StatusPartial:
		if r.Confidence >= t.Partial {
			return model.BucketWeak
		}
		return model.BucketUncertain
	default:
		return model.BucketRejected
	}
}

// Summarize aggregates the verdicts of one document
func Summarize(results []model.ValidationResult, t model.ConfidenceThresholds) model.Summary {
	summary := model.Summary{
		Total: len(results),
		Buckets: map[model.DisplayBucket]int{
			model.BucketConfirmed: 0,
			model.BucketUncertain: 0,
			model.BucketWeak:      0,
			model.BucketRejected:  0,
		},
	}
	if len(results) == 0 {
		return summary
	}

	var confidence float64
	for _, r := range results {
		switch r.Status {
		case model.StatusSupported:
			summary.Supported++
		case model.StatusPartial:
			summary.Partial++
		default:
			summary.NotSupported++
			// no oracle usage means the run failed before judging
			if r.Usage == nil && r.Confidence == 0 {
				summary.Failed++
			}
		}

		confidence += r.Confidence
		if r.Usage != nil {
			summary.InputTokens += r.Usage.InputTokens
			summary.OutputTokens += r.Usage.OutputTokens
		}
		summary.CostUSD += r.CostUSD
		summary.Buckets[Bucket(r, t)]++
	}
	summary.MeanConfidence = confidence / float64(len(results))

	return summary
}
