package llm

import (
	"math"
	"testing"
)

func TestRateFor(t *testing.T) {
	tests := []struct {
		model string
		want  Rate
	}{
		{"anthropic.claude-3-opus-20240229-v1:0", Rate{15, 75}},
		{"anthropic.claude-3-5-sonnet-20241022-v2:0", Rate{3, 15}},
		{"anthropic.claude-3-5-haiku-20241022-v1:0", Rate{0.80, 4}},
		{"Claude-Haiku", Rate{0.80, 4}},
		{"gpt-4o-mini", Rate{3, 15}},
		{"", Rate{3, 15}},
	}

	for _, tt := range tests {
		if got := RateFor(tt.model); got != tt.want {
			t.Errorf("RateFor(%q) = %+v, want %+v", tt.model, got, tt.want)
		}
	}
}

func TestEstimateCost(t *testing.T) {
	// 1M input sonnet tokens + 100k output
	got := EstimateCost("claude-sonnet", 1_000_000, 100_000)
	if math.Abs(got-4.5) > 1e-9 {
		t.Errorf("Expected 4.5, got %f", got)
	}

	if got := EstimateCost("opus", 0, 0); got != 0 {
		t.Errorf("Expected zero cost for zero usage, got %f", got)
	}
}
