package apierror

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/vango-go/vai-spy/pkg/core"
	"github.com/vango-go/vai-spy/pkg/core/match"
)

func TestFromError_ContextCanceled_Is408Cancelled(t *testing.T) {
	e, status := FromError(context.Canceled, "req_test")
	if status != http.StatusRequestTimeout {
		t.Fatalf("status=%d", status)
	}
	if e.Code != "cancelled" {
		t.Fatalf("code=%q", e.Code)
	}
	if e.RequestID != "req_test" {
		t.Fatalf("request_id=%q", e.RequestID)
	}
}

func TestFromError_NoMatch_Is404(t *testing.T) {
	e, status := FromError(fmt.Errorf("read: %w", match.ErrNoMatch), "")
	if status != http.StatusNotFound || e.Type != TypeNotFound {
		t.Fatalf("status=%d type=%q", status, e.Type)
	}
}

func TestFromError_CoreErrorUsesUserMessage(t *testing.T) {
	err := core.NewMicrophoneError("open", errors.New("denied"))
	e, status := FromError(err, "")
	if status != http.StatusConflict {
		t.Fatalf("status=%d", status)
	}
	if e.Type != string(core.ErrMicrophone) {
		t.Fatalf("type=%q", e.Type)
	}
	if e.Message != core.UserMessage(err) {
		t.Fatalf("message=%q", e.Message)
	}
}

func TestFromError_UnknownIsOpaque(t *testing.T) {
	e, status := FromError(errors.New("db password is hunter2"), "")
	if status != http.StatusInternalServerError || e.Message != "internal error" {
		t.Fatalf("status=%d message=%q", status, e.Message)
	}
}

func TestWriteError_Envelope(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteError(rr, core.NewRateLimitError("slow down"), "req_1")

	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("status=%d", rr.Code)
	}
	var env Envelope
	if err := json.Unmarshal(rr.Body.Bytes(), &env); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if env.Error == nil || env.Error.RequestID != "req_1" {
		t.Fatalf("env=%+v", env.Error)
	}
}
