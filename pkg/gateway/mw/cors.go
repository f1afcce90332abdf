package mw

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/vango-go/vai-spy/pkg/gateway/config"
)

const (
	corsAllowMethods  = "GET, POST, OPTIONS"
	corsAllowHeaders  = "Authorization, Content-Type, X-Request-ID"
	corsExposeHeaders = "X-Request-ID"
	corsMaxAge        = "600"
)

// CORS lets game screens served from an allowlisted origin read and drive
// the orchestrator. Other origins get no CORS headers, and their preflights
// are refused.
func CORS(cfg config.Config, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := strings.TrimSpace(r.Header.Get("Origin"))
		_, listed := cfg.CORSAllowedOrigins[origin]
		allowed := origin != "" && listed

		h := w.Header()
		if allowed {
			h.Set("Access-Control-Allow-Origin", origin)
			h.Add("Vary", "Origin")
		}

		if isPreflight(r) {
			if !allowed {
				http.Error(w, "cors preflight not allowed", http.StatusForbidden)
				return
			}
			h.Set("Access-Control-Allow-Methods", corsAllowMethods)
			h.Set("Access-Control-Allow-Headers", corsAllowHeaders)
			h.Set("Access-Control-Max-Age", corsMaxAge)
			w.WriteHeader(http.StatusNoContent)
			return
		}

		if allowed {
			h.Set("Access-Control-Expose-Headers", corsExposeHeaders)
		}
		next.ServeHTTP(w, r)
	})
}

func isPreflight(r *http.Request) bool {
	return r.Method == http.MethodOptions && strings.TrimSpace(r.Header.Get("Access-Control-Request-Method")) != ""
}

// OriginAllowed reports whether a websocket handshake may proceed: the
// origin is allowlisted, points at this host, or is absent (non-browser
// clients).
func OriginAllowed(cfg config.Config, r *http.Request) bool {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		return true
	}
	if _, ok := cfg.CORSAllowedOrigins[origin]; ok {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return false
	}
	return strings.EqualFold(u.Host, r.Host)
}
