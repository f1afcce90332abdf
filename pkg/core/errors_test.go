package core

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Error(t *testing.T) {
	err := &Error{
		Type:    ErrInvalidResponse,
		Message: "empty transcript payload",
	}

	expected := "invalid_response: empty transcript payload"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
}

func TestError_WithProviderAndCode(t *testing.T) {
	err := &Error{
		Type:     ErrRateLimit,
		Message:  "too many requests",
		Code:     "rate_limit_exceeded",
		Provider: "cloud-stt",
	}

	expected := "cloud-stt rate_limit: too many requests (code: rate_limit_exceeded)"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
}

func TestErrorTypeFromStatus(t *testing.T) {
	tests := []struct {
		status int
		want   ErrorType
	}{
		{http.StatusUnauthorized, ErrAuth},
		{http.StatusTooManyRequests, ErrRateLimit},
		{http.StatusInternalServerError, ErrUnknown},
		{http.StatusBadRequest, ErrUnknown},
		{http.StatusForbidden, ErrUnknown},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.want, ErrorTypeFromStatus(tt.status))
		})
	}
}

func TestClassify(t *testing.T) {
	wrapped := fmt.Errorf("transcribe: %w", NewNoSpeechError("silence"))
	assert.Equal(t, ErrNoSpeech, Classify(wrapped))
	assert.Equal(t, ErrNetwork, Classify(context.DeadlineExceeded))
	assert.Equal(t, ErrNetwork, Classify(&url.Error{Op: "Post", URL: "http://x", Err: errors.New("refused")}))
	assert.Equal(t, ErrUnknown, Classify(errors.New("boom")))
	assert.Equal(t, ErrorType(""), Classify(nil))
}

func TestFromTransport(t *testing.T) {
	assert.Nil(t, FromTransport("llm", nil))
	assert.ErrorIs(t, FromTransport("llm", context.Canceled), context.Canceled)

	err := FromTransport("llm", context.DeadlineExceeded)
	var coreErr *Error
	if assert.ErrorAs(t, err, &coreErr) {
		assert.Equal(t, ErrNetwork, coreErr.Type)
		assert.Equal(t, "request timed out", coreErr.Message)
		assert.Equal(t, "llm", coreErr.Provider)
	}
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestUserMessage_DistinctPerKind(t *testing.T) {
	kinds := []error{
		NewAuthError("x"),
		NewRateLimitError("x"),
		NewNetworkError("x", nil),
		NewUnsupportedError("x"),
		NewNoSpeechError("x"),
		NewMicrophoneError("x", nil),
		errors.New("x"),
	}
	seen := map[string]bool{}
	for _, k := range kinds {
		msg := UserMessage(k)
		assert.NotEmpty(t, msg)
		assert.False(t, seen[msg], "duplicate message %q", msg)
		seen[msg] = true
	}
	assert.Empty(t, UserMessage(nil))
}

func TestFallbackMessage(t *testing.T) {
	msg := FallbackMessage("transcription", NewNetworkError("down", nil))
	assert.Contains(t, msg, "switched to device speech")
	assert.Contains(t, msg, "network")
}
