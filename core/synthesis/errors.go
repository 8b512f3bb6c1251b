package synthesis

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// Kind classifies a generation failure for the transport layer.
type Kind string

const (
	KindUnauthenticated      Kind = "unauthenticated"
	KindAccountNotFound      Kind = "account_not_found"
	KindQuotaExceeded        Kind = "quota_exceeded"
	KindRecordCreationFailed Kind = "record_creation_failed"
	KindProviderUnavailable  Kind = "provider_unavailable"
	KindInvalidResponse      Kind = "invalid_provider_response"
	KindUnexpected           Kind = "unexpected"
)

// Error is a classified generation failure. Message is safe to show
// to the caller; Err carries the underlying cause for logs.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// ProviderError is a failed provider HTTP exchange. StatusCode is 0
// for transport-level failures.
type ProviderError struct {
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("provider returned status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("provider request failed: %s", e.Message)
}

// isTransient reports whether a provider failure is worth retrying:
// timeouts, connection resets, 429, 503, any 5xx, or a provider
// message saying the model is busy.
func isTransient(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var provErr *ProviderError
	if errors.As(err, &provErr) {
		switch {
		case provErr.StatusCode == 429:
			return true
		case provErr.StatusCode >= 500 && provErr.StatusCode < 600:
			return true
		}
		msg := strings.ToLower(provErr.Message)
		if strings.Contains(msg, "busy") || strings.Contains(msg, "try again later") {
			return true
		}
		return false
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "busy")
}

// failureReason derives the user-facing reason recorded on a failed
// track from the last provider error.
func failureReason(err error) string {
	if err == nil {
		return "The AI model is currently unavailable. Please try again later."
	}

	var provErr *ProviderError
	if errors.As(err, &provErr) {
		switch provErr.StatusCode {
		case 429:
			return "Too many requests. Please wait a moment before trying again."
		case 503:
			return "The AI service is temporarily unavailable. Please try again later."
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return "The request timed out. The model might be experiencing high demand."
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "The request timed out. The model might be experiencing high demand."
	}
	if strings.Contains(strings.ToLower(err.Error()), "timeout") {
		return "The request timed out. The model might be experiencing high demand."
	}

	return "The AI model is currently unavailable. Please try again later."
}
