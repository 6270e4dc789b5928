package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/sashabaranov/go-openai"
)

// StatusError is a non-200 reply from a model API
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("API error (%d): %s", e.StatusCode, e.Message)
}

// IsTransient reports whether a failed call may succeed when repeated:
// throttling, server-side failures and transport errors. Auth failures,
// bad requests and unusable replies are permanent.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return transientStatus(statusErr.StatusCode)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return transientStatus(apiErr.HTTPStatusCode)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return transientStatus(reqErr.HTTPStatusCode)
	}

	var throttled *types.ThrottlingException
	var internal *types.InternalServerException
	var timeout *types.ModelTimeoutException
	if errors.As(err, &throttled) || errors.As(err, &internal) || errors.As(err, &timeout) {
		return true
	}

	// AWS SDK response errors
	var coded interface{ HTTPStatusCode() int }
	if errors.As(err, &coded) {
		return transientStatus(coded.HTTPStatusCode())
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}

func transientStatus(code int) bool {
	return code == http.StatusRequestTimeout || code == http.StatusTooManyRequests || code >= 500
}
