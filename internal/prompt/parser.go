package prompt

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/ppiankov/citecheck/internal/llm"
	"github.com/ppiankov/citecheck/internal/model"
)

var (
	// ErrMalformedResponse means no JSON object could be read from the reply
	ErrMalformedResponse = errors.New("malformed oracle response")

	// ErrInvalidResponse means a required field is missing or mistyped
	ErrInvalidResponse = errors.New("invalid oracle response")

	// ErrInvalidStatus means status is not one of the enumerated verdicts
	ErrInvalidStatus = errors.New("invalid status in oracle response")
)

// Response is the oracle's verdict after validation
type Response struct {
	Status                 model.Status `json:"status"`
	Confidence             float64      `json:"confidence"`
	Explanation            string       `json:"explanation"`
	SupportingQuoteIndices []int        `json:"supportingQuoteIndices"`
	Rephrase               string       `json:"rephrase,omitempty"`
}

var responseSchema = gojsonschema.NewStringLoader(`{
  "type": "object",
  "required": ["status", "confidence", "explanation"],
  "properties": {
    "status": {"type": "string", "enum": ["supported", "partial", "not_supported"]},
    "confidence": {"type": "number"},
    "explanation": {"type": "string"},
    "supportingQuoteIndices": {"type": ["array", "null"]},
    "rephrase": {"type": ["string", "null"]}
  }
}`)

// Parse reads the first JSON object in text and validates it. Confidence
// is clamped into [0, 1].
func Parse(text string) (*Response, error) {
	raw, ok := llm.ExtractJSONObject(text)
	if !ok {
		return nil, fmt.Errorf("%w: no JSON object found", ErrMalformedResponse)
	}

	var tree map[string]any
	if err := json.Unmarshal([]byte(raw), &tree); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	result, err := gojsonschema.Validate(responseSchema, gojsonschema.NewGoLoader(tree))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if !result.Valid() {
		return nil, schemaError(result.Errors())
	}

	resp := &Response{
		Status:                 model.Status(tree["status"].(string)),
		Confidence:             clamp(tree["confidence"].(float64)),
		Explanation:            tree["explanation"].(string),
		SupportingQuoteIndices: []int{},
	}
	// null optional fields count as absent; non-integer indices are dropped
	if indices, ok := tree["supportingQuoteIndices"].([]any); ok {
		for _, v := range indices {
			if f, ok := v.(float64); ok && f == math.Trunc(f) {
				resp.SupportingQuoteIndices = append(resp.SupportingQuoteIndices, int(f))
			}
		}
	}
	if rephrase, ok := tree["rephrase"].(string); ok {
		resp.Rephrase = rephrase
	}

	return resp, nil
}

// schemaError maps schema violations onto the response error kinds.
// Structural problems win over a bad status value.
func schemaError(errs []gojsonschema.ResultError) error {
	details := make([]string, len(errs))
	enumOnly := true
	for i, e := range errs {
		details[i] = e.String()
		if e.Type() != "enum" {
			enumOnly = false
		}
	}

	if enumOnly {
		return fmt.Errorf("%w: %s", ErrInvalidStatus, strings.Join(details, "; "))
	}
	return fmt.Errorf("%w: %s", ErrInvalidResponse, strings.Join(details, "; "))
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
