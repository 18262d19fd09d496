package llm

import (
	"errors"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
)

// ErrEmptyResponse is returned when the API answers without any choices.
var ErrEmptyResponse = errors.New("LLM returned no choices")

// Kind classifies completion failures by their HTTP status.
type Kind int

const (
	KindUnknown Kind = iota
	KindRateLimited
	KindInvalidRequest
	KindAuthenticationFailed
	KindServiceUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindRateLimited:
		return "rate_limited"
	case KindInvalidRequest:
		return "invalid_request"
	case KindAuthenticationFailed:
		return "authentication_failed"
	case KindServiceUnavailable:
		return "service_unavailable"
	default:
		return "unknown"
	}
}

// Message is the user-facing English text for the kind.
func (k Kind) Message() string {
	switch k {
	case KindRateLimited:
		return "Rate limit exceeded. Please try again in a few minutes."
	case KindInvalidRequest:
		return "Invalid request. Please check your inputs and try again."
	case KindAuthenticationFailed:
		return "Authentication error. Please check your API key."
	case KindServiceUnavailable:
		return "The AI service is temporarily unavailable. Please try again later."
	default:
		return "An error occurred while contacting the AI service. Please try again."
	}
}

// MessageID keys the kind's message in the locale catalog.
func (k Kind) MessageID() string {
	switch k {
	case KindRateLimited:
		return "ErrLLMRateLimited"
	case KindInvalidRequest:
		return "ErrLLMInvalidRequest"
	case KindAuthenticationFailed:
		return "ErrLLMAuthentication"
	case KindServiceUnavailable:
		return "ErrLLMUnavailable"
	default:
		return "ErrLLMUnknown"
	}
}

// Error is a classified completion failure.
type Error struct {
	Kind   Kind
	Status int // 0 when no HTTP response was received
	Err    error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("LLM %s (status %d): %v", e.Kind, e.Status, e.Err)
	}
	return fmt.Sprintf("LLM %s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return KindUnknown, false
}

// classify wraps err with the kind implied by its HTTP status.
func classify(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	status := statusOf(err)
	return &Error{Kind: kindForStatus(status), Status: status, Err: err}
}

func statusOf(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}

func kindForStatus(status int) Kind {
	switch status {
	case http.StatusTooManyRequests:
		return KindRateLimited
	case http.StatusBadRequest:
		return KindInvalidRequest
	case http.StatusUnauthorized:
		return KindAuthenticationFailed
	case http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return KindServiceUnavailable
	default:
		return KindUnknown
	}
}
