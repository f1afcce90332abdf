package mw

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vango-go/vai-spy/pkg/gateway/apierror"
)

func TestRecover_WritesInternalError(t *testing.T) {
	h := RequestID(Recover(nil, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/match/phase", nil))

	require.Equal(t, http.StatusInternalServerError, rr.Code)
	var env apierror.Envelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
	require.NotNil(t, env.Error)
	assert.Equal(t, apierror.TypeInternal, env.Error.Type)
	assert.Equal(t, rr.Header().Get("X-Request-ID"), env.Error.RequestID)
	assert.True(t, strings.HasPrefix(env.Error.RequestID, "req_"))
}

func TestRecover_LeavesStartedResponseAlone(t *testing.T) {
	h := AccessLog(nil, Recover(nil, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "partial")
		panic("late")
	})))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/state", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "partial", rr.Body.String())
}

func TestRecover_RepanicsAbort(t *testing.T) {
	h := Recover(nil, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(http.ErrAbortHandler)
	}))
	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/state", nil))
	})
}

func TestRequestID(t *testing.T) {
	cases := []struct {
		name   string
		header string
		keep   bool
	}{
		{name: "client value kept", header: "req_client", keep: true},
		{name: "missing generated", header: ""},
		{name: "oversized replaced", header: strings.Repeat("x", maxClientRequestID+1)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var seen string
			h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen, _ = RequestIDFrom(r.Context())
			}))

			req := httptest.NewRequest(http.MethodGet, "/v1/state", nil)
			if tc.header != "" {
				req.Header.Set("X-Request-ID", tc.header)
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)

			assert.Equal(t, seen, rr.Header().Get("X-Request-ID"))
			if tc.keep {
				assert.Equal(t, tc.header, seen)
				return
			}
			assert.Len(t, seen, len("req_")+32)
		})
	}
}
