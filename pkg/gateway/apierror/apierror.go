// Package apierror renders errors from the control surface as a single JSON
// envelope: {"error": {"type", "message", ...}}.
package apierror

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/vango-go/vai-spy/pkg/core"
	"github.com/vango-go/vai-spy/pkg/core/match"
)

// Gateway-only error kinds. Provider failures reuse core.ErrorType.
const (
	TypeInvalidRequest = "invalid_request"
	TypeAuthentication = "authentication"
	TypeNotFound       = "not_found"
	TypeInternal       = "internal"
)

type Error struct {
	Type      string `json:"type"`
	Message   string `json:"message"`
	Param     string `json:"param,omitempty"`
	Code      string `json:"code,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

type Envelope struct {
	Error *Error `json:"error"`
}

func FromError(err error, requestID string) (*Error, int) {
	if err == nil {
		return nil, http.StatusOK
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{
			Type:      string(core.ErrNetwork),
			Message:   "request timeout",
			RequestID: requestID,
		}, http.StatusGatewayTimeout
	}
	if errors.Is(err, context.Canceled) {
		return &Error{
			Type:      TypeInternal,
			Message:   "request cancelled",
			Code:      "cancelled",
			RequestID: requestID,
		}, http.StatusRequestTimeout
	}

	if errors.Is(err, match.ErrNoMatch) {
		return &Error{
			Type:      TypeNotFound,
			Message:   "no current match",
			RequestID: requestID,
		}, http.StatusNotFound
	}

	var coreErr *core.Error
	if errors.As(err, &coreErr) && coreErr != nil {
		return &Error{
			Type:      string(coreErr.Type),
			Message:   core.UserMessage(coreErr),
			Code:      coreErr.Code,
			RequestID: requestID,
		}, statusFromType(coreErr.Type)
	}

	// Do not leak details of unknown errors.
	return &Error{
		Type:      TypeInternal,
		Message:   "internal error",
		RequestID: requestID,
	}, http.StatusInternalServerError
}

// Write encodes e with the given status.
func Write(w http.ResponseWriter, status int, e *Error) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Envelope{Error: e})
}

// WriteError maps err and writes it.
func WriteError(w http.ResponseWriter, err error, requestID string) {
	e, status := FromError(err, requestID)
	Write(w, status, e)
}

func statusFromType(t core.ErrorType) int {
	switch t {
	case core.ErrAuth:
		return http.StatusBadGateway
	case core.ErrRateLimit:
		return http.StatusTooManyRequests
	case core.ErrNetwork, core.ErrInvalidResponse:
		return http.StatusBadGateway
	case core.ErrUnsupported:
		return http.StatusNotImplemented
	case core.ErrMicrophone:
		return http.StatusConflict
	case core.ErrNoSpeech:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
