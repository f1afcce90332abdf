package spyvoice

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vango-go/vai-spy/pkg/core/discussion"
	"github.com/vango-go/vai-spy/pkg/core/live"
	"github.com/vango-go/vai-spy/pkg/core/match"
	"github.com/vango-go/vai-spy/pkg/core/types"
	"github.com/vango-go/vai-spy/pkg/gateway/config"
	gatewayserver "github.com/vango-go/vai-spy/pkg/gateway/server"
	"github.com/vango-go/vai-spy/pkg/metrics"
)

type quietMic struct{}

func (quietMic) Open(context.Context, live.AudioConfig, func([]byte)) (io.Closer, error) {
	return io.NopCloser(strings.NewReader("")), nil
}

func newTestServer(t *testing.T, cfg config.Config) (*httptest.Server, *discussion.Supervisor) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	bridge := match.NewBridge(match.NewMemoryStore())
	sup := discussion.NewSupervisor(context.Background(), discussion.SupervisorDeps{
		Bridge: bridge,
		Mic:    quietMic{},
		Logger: logger,
	})
	t.Cleanup(sup.Close)

	if cfg.AuthMode == "" {
		cfg.AuthMode = config.AuthModeDisabled
	}
	if cfg.APIKeys == nil {
		cfg.APIKeys = map[string]struct{}{}
	}
	cfg.CORSAllowedOrigins = map[string]struct{}{}
	cfg.WSPingInterval = time.Second
	cfg.WSWriteTimeout = time.Second

	gw := gatewayserver.New(cfg, logger, gatewayserver.Deps{
		Runtime: sup,
		Matches: bridge,
		Metrics: metrics.New("spyvoice_sdk_test"),
		Capabilities: func() map[string]types.Capability {
			return map[string]types.Capability{"stt.cloud": types.Available("cloud")}
		},
	})
	ts := httptest.NewServer(gw.Handler())
	t.Cleanup(ts.Close)
	return ts, sup
}

func TestClient_MatchLifecycle(t *testing.T) {
	ts, sup := newTestServer(t, config.Config{})
	c := NewClient(ts.URL)
	ctx := context.Background()

	_, err := c.Match(ctx)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "not_found", apiErr.Type)

	started, err := c.StartMatch(ctx, &types.MatchSnapshot{
		Language: "en",
		Status:   types.StatusReveal,
		Participants: []types.Participant{
			{ID: "ai", Name: "Falcon", IsAI: true},
			{ID: "p1", Name: "Maya"},
		},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, started.ID)

	moved, err := c.SetPhase(ctx, types.StatusDiscussion)
	require.NoError(t, err)
	assert.Equal(t, types.StatusDiscussion, moved.Status)
	assert.True(t, sup.Running())

	current, err := c.Match(ctx)
	require.NoError(t, err)
	assert.Equal(t, started.ID, current.ID)

	thread, err := c.Thread(ctx, "ai")
	require.NoError(t, err)
	assert.Empty(t, thread.Entries)
}

func TestClient_RuntimeToggleAndState(t *testing.T) {
	ts, _ := newTestServer(t, config.Config{})
	c := NewClient(ts.URL + "/")
	ctx := context.Background()

	st, err := c.State(ctx)
	require.NoError(t, err)
	assert.True(t, st.State.RuntimeEnabled)

	st, err = c.ToggleRuntime(ctx)
	require.NoError(t, err)
	assert.False(t, st.State.RuntimeEnabled)

	st, err = c.ClearError(ctx)
	require.NoError(t, err)
	assert.Empty(t, st.Error)
}

func TestClient_SendsAPIKey(t *testing.T) {
	ts, _ := newTestServer(t, config.Config{
		AuthMode: config.AuthModeRequired,
		APIKeys:  map[string]struct{}{"spy_key": {}},
	})
	ctx := context.Background()

	_, err := NewClient(ts.URL).ToggleRuntime(ctx)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.NotEmpty(t, apiErr.RequestID)

	_, err = NewClient(ts.URL, WithAPIKey("spy_key")).ToggleRuntime(ctx)
	require.NoError(t, err)
}

func TestClient_WatchState(t *testing.T) {
	ts, sup := newTestServer(t, config.Config{})
	c := NewClient(ts.URL)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var seen []bool
	err := c.WatchState(ctx, func(s discussion.Snapshot) error {
		seen = append(seen, s.State.RuntimeEnabled)
		if len(seen) == 1 {
			sup.ToggleRuntimeEnabled(ctx)
			return nil
		}
		if !s.State.RuntimeEnabled {
			return errStop
		}
		return nil
	})
	require.ErrorIs(t, err, errStop)
	require.NotEmpty(t, seen)
	assert.True(t, seen[0])
	assert.False(t, seen[len(seen)-1])
}

var errStop = errors.New("stop")

func TestClient_TransportError(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	_, err := NewClient(url).State(context.Background())
	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, http.MethodGet, te.Op)
}

func TestClient_RejectsBadBaseURL(t *testing.T) {
	_, err := NewClient("not a url").State(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid base URL")

	_, err = NewClient("http://user:pw@example.com").State(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "credentials")
}
