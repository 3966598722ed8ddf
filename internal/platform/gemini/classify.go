package gemini

import (
	"errors"
	"net/http"
	"time"

	"github.com/phrazzld/scry-worker/internal/generation"
	"google.golang.org/genai"
)

const (
	// retryInfoType is the @type of the structured retry detail attached to quota errors
	retryInfoType = "type.googleapis.com/google.rpc.RetryInfo"

	// statusResourceExhausted is the RPC status Gemini reports for quota errors
	statusResourceExhausted = "RESOURCE_EXHAUSTED"
)

// classifyError turns a genai client error into a generation.Failure.
func classifyError(err error) *generation.Failure {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return classifyAPIError(apiErr, err)
	}

	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return classifyAPIError(*apiErrPtr, err)
	}

	return generation.Fatal(err)
}

// classifyAPIError maps an APIError by HTTP code and RPC status.
func classifyAPIError(apiErr genai.APIError, err error) *generation.Failure {
	switch {
	case apiErr.Code == http.StatusTooManyRequests || apiErr.Status == statusResourceExhausted:
		return generation.RateLimited(err, retryDelay(apiErr.Details))
	case apiErr.Code >= http.StatusInternalServerError:
		return generation.Transient(apiErr.Code, err)
	default:
		failure := generation.Fatal(err)
		failure.StatusCode = apiErr.Code
		return failure
	}
}

// retryDelay returns the retryDelay of the first RetryInfo detail, or nil when
// no detail carries a well-formed value.
func retryDelay(details []map[string]any) *time.Duration {
	for _, detail := range details {
		if detailType, _ := detail["@type"].(string); detailType != retryInfoType {
			continue
		}

		raw, ok := detail["retryDelay"].(string)
		if !ok {
			continue
		}

		if d, ok := generation.ParseRetryDelay(raw); ok {
			return &d
		}
	}
	return nil
}
