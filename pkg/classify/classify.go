package classify

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/resurrect-systems/resurrect/pkg/adapter"
)

// Kind is the normalized failure category for an upstream response.
type Kind string

const (
	KindRateLimited    Kind = "rate_limited"
	KindQuotaExhausted Kind = "quota_exhausted"
	KindUpstreamError  Kind = "upstream_error"
	KindParseFailure   Kind = "parse_failure"
)

// ClassifiedError is a normalized upstream failure. It is attached to the
// pipeline step that failed and surfaced to the caller.
type ClassifiedError struct {
	Kind       Kind   `json:"kind"`
	HTTPStatus int    `json:"httpStatus,omitempty"`
	Message    string `json:"message"`
}

func (e *ClassifiedError) Error() string {
	if e == nil {
		return "classified error"
	}
	return string(e.Kind) + ": " + e.Message
}

// UserMessage returns the human-readable message for the failure category.
func (e *ClassifiedError) UserMessage() string {
	switch e.Kind {
	case KindRateLimited:
		return "The AI service is rate limited. Try again shortly."
	case KindQuotaExhausted:
		return "AI quota exhausted. Add credits to continue."
	case KindParseFailure:
		return "The AI returned an unexpected response format."
	default:
		return "The AI service is unavailable. Try again later."
	}
}

// Classify maps an upstream HTTP status and response body to a
// ClassifiedError. Rules are checked in order, first match wins:
// 429 is rate_limited, 402 is quota_exhausted, any other non-2xx is
// upstream_error. Pure function.
func Classify(status int, body string) *ClassifiedError {
	switch {
	case status == http.StatusTooManyRequests:
		return &ClassifiedError{Kind: KindRateLimited, HTTPStatus: status, Message: bodyMessage(body, "rate limited")}
	case status == http.StatusPaymentRequired:
		return &ClassifiedError{Kind: KindQuotaExhausted, HTTPStatus: status, Message: bodyMessage(body, "quota exhausted")}
	default:
		return &ClassifiedError{Kind: KindUpstreamError, HTTPStatus: status, Message: bodyMessage(body, "upstream error")}
	}
}

// FromError normalizes a gateway call failure. Adapter errors carrying an
// upstream status go through Classify; timeouts and network failures are
// upstream_error with no status.
func FromError(err error) *ClassifiedError {
	if err == nil {
		return nil
	}

	var classified *ClassifiedError
	if errors.As(err, &classified) {
		return classified
	}

	var adapterErr *adapter.AdapterError
	if errors.As(err, &adapterErr) && adapterErr.Status != 0 {
		return Classify(adapterErr.Status, adapterErr.Body)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &ClassifiedError{Kind: KindUpstreamError, Message: "request timed out"}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &ClassifiedError{Kind: KindUpstreamError, Message: "request timed out"}
	}

	return &ClassifiedError{Kind: KindUpstreamError, Message: err.Error()}
}

// bodyMessage extracts the message field from a JSON error body, falling
// back to the raw body text, then to a default.
func bodyMessage(body, fallback string) string {
	body = strings.TrimSpace(body)
	if body == "" {
		return fallback
	}

	var payload struct {
		Message string `json:"message"`
		Error   struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal([]byte(body), &payload); err == nil {
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Error.Message != "" {
			return payload.Error.Message
		}
	}
	return body
}
