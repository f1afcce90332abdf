package spyvoice

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/vango-go/vai-spy/pkg/gateway/apierror"
)

// APIError is an error envelope returned by the server.
type APIError struct {
	StatusCode int
	Type       string
	Message    string
	Param      string
	Code       string
	RequestID  string
}

func (e *APIError) Error() string {
	if e.RequestID != "" {
		return fmt.Sprintf("spyvoice: %s (%d %s, request %s)", e.Message, e.StatusCode, e.Type, e.RequestID)
	}
	return fmt.Sprintf("spyvoice: %s (%d %s)", e.Message, e.StatusCode, e.Type)
}

// TransportError is a failure to reach the server at all (DNS, refused
// connection, TLS, a dropped stream). Use errors.As to tell it apart from
// *APIError.
type TransportError struct {
	Op  string
	URL string
	Err error
}

func (e *TransportError) Error() string {
	switch {
	case e == nil:
		return ""
	case e.Op != "" && e.URL != "":
		return fmt.Sprintf("transport error during %s %s: %v", e.Op, redactURLUserInfo(e.URL), e.Err)
	case e.Op != "":
		return fmt.Sprintf("transport error during %s: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("transport error: %v", e.Err)
	}
}

func (e *TransportError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func redactURLUserInfo(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil || parsed == nil {
		return raw
	}
	parsed.User = nil
	return parsed.String()
}

func decodeErrorResponse(resp *http.Response) error {
	defer resp.Body.Close()

	out := &APIError{StatusCode: resp.StatusCode}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	var env apierror.Envelope
	if err := json.Unmarshal(body, &env); err == nil && env.Error != nil {
		out.Type = env.Error.Type
		out.Message = env.Error.Message
		out.Param = env.Error.Param
		out.Code = env.Error.Code
		out.RequestID = env.Error.RequestID
	}
	if out.RequestID == "" {
		out.RequestID = strings.TrimSpace(resp.Header.Get("X-Request-ID"))
	}
	if out.Type == "" {
		out.Type = inferErrorType(resp.StatusCode)
	}
	if out.Message == "" {
		if text := strings.TrimSpace(string(body)); text != "" && len(text) < 200 {
			out.Message = text
		} else {
			out.Message = http.StatusText(resp.StatusCode)
		}
	}
	return out
}

func inferErrorType(status int) string {
	switch status {
	case http.StatusBadRequest:
		return apierror.TypeInvalidRequest
	case http.StatusUnauthorized, http.StatusForbidden:
		return apierror.TypeAuthentication
	case http.StatusNotFound:
		return apierror.TypeNotFound
	default:
		return apierror.TypeInternal
	}
}
