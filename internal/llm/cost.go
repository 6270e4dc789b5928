package llm

import "strings"

// Rate is a per-million-token price in US dollars
type Rate struct {
	Input  float64
	Output float64
}

type familyRate struct {
	marker string
	rate   Rate
}

// Families are matched against the model identifier in this order
var familyRates = []familyRate{
	{marker: "opus", rate: Rate{Input: 15.00, Output: 75.00}},
	{marker: "sonnet", rate: Rate{Input: 3.00, Output: 15.00}},
	{marker: "haiku", rate: Rate{Input: 0.80, Output: 4.00}},
}

// RateFor returns the rate of the first family whose marker occurs in
// modelID, defaulting to the sonnet tier
func RateFor(modelID string) Rate {
	id := strings.ToLower(modelID)
	for _, f := range familyRates {
		if strings.Contains(id, f.marker) {
			return f.rate
		}
	}
	return familyRates[1].rate
}

// EstimateCost converts token usage into an estimated USD cost
func EstimateCost(modelID string, inputTokens, outputTokens int) float64 {
	r := RateFor(modelID)
	return float64(inputTokens)/1e6*r.Input + float64(outputTokens)/1e6*r.Output
}
