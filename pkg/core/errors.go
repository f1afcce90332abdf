package core

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
)

// Error represents a failure at a provider boundary (speech, language model,
// microphone, platform).
type Error struct {
	Type     ErrorType `json:"type"`
	Message  string    `json:"message"`
	Code     string    `json:"code,omitempty"`
	Status   int       `json:"status,omitempty"`
	Provider string    `json:"provider,omitempty"`
	Cause    error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	prefix := string(e.Type)
	if e.Provider != "" {
		prefix = e.Provider + " " + prefix
	}
	if e.Code != "" {
		return fmt.Sprintf("%s: %s (code: %s)", prefix, e.Message, e.Code)
	}
	return fmt.Sprintf("%s: %s", prefix, e.Message)
}

// Unwrap returns the underlying error for error wrapping.
func (e *Error) Unwrap() error {
	return e.Cause
}

// ErrorType categorizes errors.
type ErrorType string

const (
	ErrAuth            ErrorType = "auth"
	ErrRateLimit       ErrorType = "rate_limit"
	ErrNetwork         ErrorType = "network"
	ErrInvalidResponse ErrorType = "invalid_response"
	ErrUnsupported     ErrorType = "unsupported"
	ErrNoSpeech        ErrorType = "no_speech"
	ErrMicrophone      ErrorType = "mic"
	ErrUnknown         ErrorType = "unknown"
)

// NewAuthError creates an auth error (invalid or revoked credential).
func NewAuthError(message string) *Error {
	return &Error{Type: ErrAuth, Message: message, Status: http.StatusUnauthorized}
}

// NewRateLimitError creates a rate limit error.
func NewRateLimitError(message string) *Error {
	return &Error{Type: ErrRateLimit, Message: message, Status: http.StatusTooManyRequests}
}

// NewNetworkError wraps a transport failure or timeout.
func NewNetworkError(message string, cause error) *Error {
	return &Error{Type: ErrNetwork, Message: message, Cause: cause}
}

// NewInvalidResponseError creates an error for an empty or malformed provider payload.
func NewInvalidResponseError(message string) *Error {
	return &Error{Type: ErrInvalidResponse, Message: message}
}

// NewUnsupportedError reports that the platform lacks a required capability.
func NewUnsupportedError(message string) *Error {
	return &Error{Type: ErrUnsupported, Message: message}
}

// NewNoSpeechError reports that an audio chunk contained no recognizable speech.
func NewNoSpeechError(message string) *Error {
	return &Error{Type: ErrNoSpeech, Message: message}
}

// NewMicrophoneError reports that microphone access was denied or unavailable.
func NewMicrophoneError(message string, cause error) *Error {
	return &Error{Type: ErrMicrophone, Message: message, Cause: cause}
}

// NewStatusError builds an error from a non-2xx HTTP status and the provider's
// error envelope message.
func NewStatusError(provider string, status int, message string) *Error {
	if message == "" {
		message = http.StatusText(status)
	}
	return &Error{
		Type:     ErrorTypeFromStatus(status),
		Message:  message,
		Status:   status,
		Provider: provider,
	}
}

// ErrorTypeFromStatus maps an HTTP status to an error kind.
func ErrorTypeFromStatus(status int) ErrorType {
	switch {
	case status == http.StatusUnauthorized:
		return ErrAuth
	case status == http.StatusTooManyRequests:
		return ErrRateLimit
	default:
		return ErrUnknown
	}
}

// Classify returns the error kind for any error seen at a provider boundary.
func Classify(err error) ErrorType {
	if err == nil {
		return ""
	}
	var coreErr *Error
	if errors.As(err, &coreErr) && coreErr != nil {
		return coreErr.Type
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrNetwork
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return ErrNetwork
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return ErrNetwork
	}
	return ErrUnknown
}

// FromTransport converts an http.Client error into a network error, keeping
// context cancellation recognizable to callers.
func FromTransport(provider string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	e := NewNetworkError("request failed", err)
	e.Provider = provider
	if errors.Is(err, context.DeadlineExceeded) {
		e.Message = "request timed out"
	}
	return e
}

// UserMessage renders the banner text shown to players for an error.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	switch Classify(err) {
	case ErrAuth:
		return "The AI service key was rejected. Check the API key in settings."
	case ErrRateLimit:
		return "The AI service is busy right now. Try again in a moment."
	case ErrNetwork:
		return "Network problem while talking to the AI service."
	case ErrUnsupported:
		return "This device does not support the required speech features."
	case ErrNoSpeech:
		return "No speech was detected. Speak a little closer to the microphone."
	case ErrMicrophone:
		return "Microphone access was denied. Allow the microphone to let the AI listen."
	case ErrInvalidResponse:
		return "The AI service returned an unexpected response."
	default:
		return "Something went wrong with the AI player."
	}
}

// FallbackMessage renders the banner text shown when the cloud provider failed
// and the native provider handled the operation instead.
func FallbackMessage(operation string, err error) string {
	return fmt.Sprintf("Cloud %s failed (%s); switched to device speech for this turn.", operation, Classify(err))
}
