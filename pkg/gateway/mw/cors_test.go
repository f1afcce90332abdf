package mw

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vango-go/vai-spy/pkg/gateway/config"
)

func screensOnly() config.Config {
	return config.Config{CORSAllowedOrigins: map[string]struct{}{"http://localhost:5173": {}}}
}

func TestCORS_SimpleRequests(t *testing.T) {
	cases := []struct {
		name       string
		origin     string
		wantOrigin string
	}{
		{name: "no origin", origin: ""},
		{name: "unlisted origin", origin: "http://localhost:3000"},
		{name: "listed origin", origin: "http://localhost:5173", wantOrigin: "http://localhost:5173"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			called := false
			h := CORS(screensOnly(), http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
			}))

			req := httptest.NewRequest(http.MethodGet, "/v1/state", nil)
			if tc.origin != "" {
				req.Header.Set("Origin", tc.origin)
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)

			require.True(t, called)
			assert.Equal(t, tc.wantOrigin, rr.Header().Get("Access-Control-Allow-Origin"))
			if tc.wantOrigin != "" {
				assert.Equal(t, "Origin", rr.Header().Get("Vary"))
				assert.Equal(t, "X-Request-ID", rr.Header().Get("Access-Control-Expose-Headers"))
			}
		})
	}
}

func TestCORS_Preflight(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("preflight reached the handler")
	})

	preflight := func(origin string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodOptions, "/v1/match/phase", nil)
		req.Header.Set("Origin", origin)
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		rr := httptest.NewRecorder()
		CORS(screensOnly(), next).ServeHTTP(rr, req)
		return rr
	}

	ok := preflight("http://localhost:5173")
	assert.Equal(t, http.StatusNoContent, ok.Code)
	assert.Equal(t, "http://localhost:5173", ok.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, ok.Header().Get("Access-Control-Allow-Methods"), http.MethodPost)
	assert.Contains(t, ok.Header().Get("Access-Control-Allow-Headers"), "Authorization")
	assert.Equal(t, "600", ok.Header().Get("Access-Control-Max-Age"))

	denied := preflight("https://evil.example.com")
	assert.Equal(t, http.StatusForbidden, denied.Code)
	assert.Empty(t, denied.Header().Get("Access-Control-Allow-Origin"))
}

func TestOriginAllowed(t *testing.T) {
	cases := []struct {
		origin string
		want   bool
	}{
		{"", true},
		{"http://localhost:5173", true},
		{"http://example.com", true},
		{"https://EXAMPLE.com", true},
		{"https://evil.example.com", false},
		{"null", false},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "http://example.com/v1/state/ws", nil)
		if tc.origin != "" {
			req.Header.Set("Origin", tc.origin)
		}
		assert.Equal(t, tc.want, OriginAllowed(screensOnly(), req), "origin %q", tc.origin)
	}
}
