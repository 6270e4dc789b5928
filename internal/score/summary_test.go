package score

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ppiankov/citecheck/internal/model"
)

var thresholds = model.ConfidenceThresholds{Supported: 0.8, Partial: 0.5}

func TestBucket(t *testing.T) {
	tests := []struct {
		status     model.Status
		confidence float64
		want       model.DisplayBucket
	}{
		{model.StatusSupported, 0.9, model.BucketConfirmed},
		{model.StatusSupported, 0.8, model.BucketConfirmed},
		{model.StatusSupported, 0.7, model.BucketUncertain},
		{model.StatusPartial, 0.6, model.BucketWeak},
		{model.StatusPartial, 0.3, model.BucketUncertain},
		{model.StatusNotSupported, 0.95, model.BucketRejected},
	}

	for _, tt := range tests {
		got := Bucket(model.ValidationResult{Status: tt.status, Confidence: tt.confidence}, thresholds)
		assert.Equal(t, tt.want, got, "%s at %.2f", tt.status, tt.confidence)
	}
}

func TestSummarize(t *testing.T) {
	results := []model.ValidationResult{
		{Status: model.StatusSupported, Confidence: 0.9, Usage: &model.TokenUsage{InputTokens: 1000, OutputTokens: 200}, CostUSD: 0.006},
		{Status: model.StatusPartial, Confidence: 0.6, Usage: &model.TokenUsage{InputTokens: 800, OutputTokens: 100}, CostUSD: 0.0039},
		{Status: model.StatusNotSupported, Confidence: 0.3, Usage: &model.TokenUsage{InputTokens: 500, OutputTokens: 100}, CostUSD: 0.003},
		model.NotSupported(model.Citation{Key: "ghost"}, "Entry not found: ghost"),
	}

	s := Summarize(results, thresholds)

	assert.Equal(t, 4, s.Total)
	assert.Equal(t, 1, s.Supported)
	assert.Equal(t, 1, s.Partial)
	assert.Equal(t, 2, s.NotSupported)
	assert.Equal(t, 1, s.Failed)
	assert.InDelta(t, 0.45, s.MeanConfidence, 1e-9)
	assert.Equal(t, 2300, s.InputTokens)
	assert.Equal(t, 400, s.OutputTokens)
	assert.InDelta(t, 0.0129, s.CostUSD, 1e-9)
	assert.Equal(t, map[model.DisplayBucket]int{
		model.BucketConfirmed: 1,
		model.BucketUncertain: 0,
		model.BucketWeak:      1,
		model.BucketRejected:  2,
	}, s.Buckets)
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize(nil, thresholds)
	assert.Equal(t, 0, s.Total)
	assert.Equal(t, 0.0, s.MeanConfidence)
	assert.Len(t, s.Buckets, 4)
}
