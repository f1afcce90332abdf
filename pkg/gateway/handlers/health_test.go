package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vango-go/vai-spy/pkg/core/types"
)

func TestHealthHandler(t *testing.T) {
	rr := httptest.NewRecorder()
	HealthHandler{}.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok\n", rr.Body.String())
}

func TestReadyHandler(t *testing.T) {
	cases := []struct {
		name       string
		caps       map[string]types.Capability
		draining   bool
		wantCode   int
		wantIssues []string
	}{
		{
			name: "no recognizer",
			caps: map[string]types.Capability{
				"stt.cloud":  types.Unavailable("no api key"),
				"stt.device": types.Unavailable("no recognizer url"),
				"tts.device": types.Available("espeak-ng"),
			},
			wantCode: http.StatusServiceUnavailable,
			wantIssues: []string{
				"stt.cloud: no api key",
				"stt.device: no recognizer url",
				"no speech recognizer available",
			},
		},
		{
			name: "device recognizer only",
			caps: map[string]types.Capability{
				"stt.cloud":  types.Unavailable("no api key"),
				"stt.device": types.Available("vosk"),
			},
			wantCode:   http.StatusOK,
			wantIssues: []string{"stt.cloud: no api key"},
		},
		{
			name:       "draining",
			caps:       map[string]types.Capability{"stt.cloud": types.Available("cloud")},
			draining:   true,
			wantCode:   http.StatusServiceUnavailable,
			wantIssues: []string{"draining"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := ReadyHandler{
				Capabilities: func() map[string]types.Capability { return tc.caps },
				Draining:     func() bool { return tc.draining },
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))

			require.Equal(t, tc.wantCode, rr.Code, rr.Body.String())
			var resp struct {
				OK     bool     `json:"ok"`
				Issues []string `json:"issues"`
			}
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
			assert.Equal(t, tc.wantCode == http.StatusOK, resp.OK)
			assert.Equal(t, tc.wantIssues, resp.Issues)
		})
	}
}
