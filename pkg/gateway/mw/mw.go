// Package mw holds the HTTP middleware shared by every control route.
package mw

import (
	"bufio"
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vango-go/vai-spy/pkg/gateway/apierror"
	"github.com/vango-go/vai-spy/pkg/gateway/config"
)

// maxClientRequestID bounds the X-Request-ID values accepted from callers.
const maxClientRequestID = 128

type ctxKeyRequestID struct{}

func RequestIDFrom(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ctxKeyRequestID{}).(string)
	return id, ok && id != ""
}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKeyRequestID{}, id)
}

// RequestID tags each request with an id, keeping a sane client-supplied one.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get("X-Request-ID"))
		if id == "" || len(id) > maxClientRequestID {
			id = newRequestID()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(WithRequestID(r.Context(), id)))
	})
}

func newRequestID() string {
	return "req_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Auth guards state-changing requests. Safe methods pass through so any
// screen can watch the orchestrator state.
func Auth(cfg config.Config, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isSafeMethod(r.Method) || cfg.AuthMode == config.AuthModeDisabled {
			next.ServeHTTP(w, r)
			return
		}
		reqID, _ := RequestIDFrom(r.Context())

		if cfg.AuthMode != config.AuthModeOptional && cfg.AuthMode != config.AuthModeRequired {
			apierror.Write(w, http.StatusInternalServerError, &apierror.Error{
				Type:      apierror.TypeInternal,
				Message:   "invalid auth_mode",
				RequestID: reqID,
			})
			return
		}

		token, present := bearerToken(r)
		switch {
		case !present && cfg.AuthMode == config.AuthModeOptional:
			next.ServeHTTP(w, r)
		case !present:
			deny(w, reqID, "missing bearer token")
		case !knownKey(cfg, token):
			deny(w, reqID, "invalid api key")
		default:
			next.ServeHTTP(w, r)
		}
	})
}

func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}

func knownKey(cfg config.Config, token string) bool {
	_, ok := cfg.APIKeys[token]
	return ok
}

func deny(w http.ResponseWriter, reqID, msg string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="spyvoice"`)
	apierror.Write(w, http.StatusUnauthorized, &apierror.Error{
		Type:      apierror.TypeAuthentication,
		Message:   msg,
		Param:     "Authorization",
		RequestID: reqID,
	})
}

func bearerToken(r *http.Request) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(r.Header.Get("Authorization")), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// Recover turns a handler panic into a JSON 500, unless the response has
// already started.
func Recover(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			v := recover()
			if v == nil {
				return
			}
			if v == http.ErrAbortHandler {
				panic(v)
			}
			reqID, _ := RequestIDFrom(r.Context())
			if logger != nil {
				logger.Error("handler panic", "request_id", reqID, "path", r.URL.Path, "panic", v, "stack", string(debug.Stack()))
			}
			if sw, ok := w.(*statusWriter); ok && sw.wroteHeader {
				return
			}
			apierror.Write(w, http.StatusInternalServerError, &apierror.Error{
				Type:      apierror.TypeInternal,
				Message:   "internal error",
				RequestID: reqID,
			})
		}()
		next.ServeHTTP(w, r)
	})
}

// statusWriter records what was sent so the access log can report it.
type statusWriter struct {
	http.ResponseWriter
	status      int
	bytes       int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.status = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(p []byte) (int, error) {
	w.wroteHeader = true
	n, err := w.ResponseWriter.Write(p)
	w.bytes += n
	return n, err
}

// Hijack lets the state websocket upgrade through the access log.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("hijack not supported")
	}
	w.status = http.StatusSwitchingProtocols
	w.wroteHeader = true
	return h.Hijack()
}

func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// AccessLog writes one record per request; 4xx log at warn and 5xx at error.
func AccessLog(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		if logger == nil {
			return
		}

		level := slog.LevelInfo
		switch {
		case sw.status >= 500:
			level = slog.LevelError
		case sw.status >= 400:
			level = slog.LevelWarn
		}
		reqID, _ := RequestIDFrom(r.Context())
		logger.LogAttrs(r.Context(), level, "request",
			slog.String("request_id", reqID),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", sw.status),
			slog.Int("bytes", sw.bytes),
			slog.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	})
}
