package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vango-go/vai-spy/pkg/core/discussion"
	"github.com/vango-go/vai-spy/pkg/core/match"
	"github.com/vango-go/vai-spy/pkg/core/types"
	"github.com/vango-go/vai-spy/pkg/gateway/apierror"
)

type fakeRuntime struct {
	hub       *discussion.StateHub
	enabled   bool
	refreshes int
}

func newFakeRuntime() *fakeRuntime {
	return &fakeRuntime{hub: discussion.NewStateHub(nil), enabled: true}
}

func (f *fakeRuntime) Hub() *discussion.StateHub { return f.hub }

func (f *fakeRuntime) ToggleRuntimeEnabled(ctx context.Context) bool {
	f.enabled = !f.enabled
	f.hub.Update(func(s *discussion.State) { s.RuntimeEnabled = f.enabled })
	return f.enabled
}

func (f *fakeRuntime) ClearError() { f.hub.ClearError() }

func (f *fakeRuntime) Refresh(ctx context.Context) { f.refreshes++ }

func newBridge(t *testing.T) *match.Bridge {
	t.Helper()
	b := match.NewBridge(match.NewMemoryStore())
	_, err := b.StartMatch(context.Background(), &types.MatchSnapshot{
		Language: "ar",
		Participants: []types.Participant{
			{ID: "ai", Name: "صقر", IsAI: true},
			{ID: "p1", Name: "محمد"},
		},
	})
	require.NoError(t, err)
	return b
}

func decodeSnapshot(t *testing.T, rr *httptest.ResponseRecorder) discussion.Snapshot {
	t.Helper()
	var snap discussion.Snapshot
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &snap))
	return snap
}

func TestRuntimeToggleHandler(t *testing.T) {
	rt := newFakeRuntime()
	rr := httptest.NewRecorder()
	RuntimeToggleHandler{Runtime: rt}.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/runtime/toggle", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.False(t, decodeSnapshot(t, rr).State.RuntimeEnabled)
}

func TestErrorClearHandler(t *testing.T) {
	rt := newFakeRuntime()
	rt.hub.SetError("microphone blocked")

	rr := httptest.NewRecorder()
	ErrorClearHandler{Runtime: rt}.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/error/clear", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, decodeSnapshot(t, rr).Error)
	assert.Empty(t, rt.hub.Snapshot().Error)
}

func TestStateHandler(t *testing.T) {
	hub := discussion.NewStateHub(nil)
	hub.Update(func(s *discussion.State) { s.Phase = "listening" })

	rr := httptest.NewRecorder()
	StateHandler{Hub: hub}.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/state", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "listening", decodeSnapshot(t, rr).State.Phase)
}

func TestMatchPhaseHandler_SetsStatusAndRefreshes(t *testing.T) {
	rt := newFakeRuntime()
	b := newBridge(t)
	h := MatchPhaseHandler{Matches: b, Runtime: rt}

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/match/phase", strings.NewReader(`{"status":" Discussion "}`)))

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, 1, rt.refreshes)
	snap, err := b.GetCurrentMatchSnapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, types.StatusDiscussion, snap.Status)
}

func TestMatchPhaseHandler_RejectsBadInput(t *testing.T) {
	cases := map[string]string{
		"unknown status": `{"status":"lunch"}`,
		"unknown field":  `{"status":"voting","extra":1}`,
		"trailing data":  `{"status":"voting"} {}`,
		"not json":       `status=voting`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			rt := newFakeRuntime()
			rr := httptest.NewRecorder()
			MatchPhaseHandler{Matches: newBridge(t), Runtime: rt}.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/match/phase", strings.NewReader(body)))

			require.Equal(t, http.StatusBadRequest, rr.Code)
			var env apierror.Envelope
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
			assert.Equal(t, apierror.TypeInvalidRequest, env.Error.Type)
			assert.Zero(t, rt.refreshes)
		})
	}
}

func TestMatchPhaseHandler_NoMatchIs404(t *testing.T) {
	rr := httptest.NewRecorder()
	h := MatchPhaseHandler{Matches: match.NewBridge(match.NewMemoryStore()), Runtime: newFakeRuntime()}
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/match/phase", strings.NewReader(`{"status":"discussion"}`)))

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestMatchHandler_StartAndRead(t *testing.T) {
	rt := newFakeRuntime()
	b := match.NewBridge(match.NewMemoryStore())
	h := MatchHandler{Matches: b, Runtime: rt}

	body := `{"language":"ar","category":"food","participants":[{"id":"ai","name":"صقر","is_ai":true},{"id":"p1","name":"محمد","role":"spy"}]}`
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/match", strings.NewReader(body)))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.Equal(t, 1, rt.refreshes)

	var created types.MatchSnapshot
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &created))
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, types.StatusSetup, created.Status)

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/match", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var read types.MatchSnapshot
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &read))
	assert.Equal(t, created.ID, read.ID)
	assert.Len(t, read.Participants, 2)
}

func TestMatchHandler_RequiresParticipants(t *testing.T) {
	rr := httptest.NewRecorder()
	MatchHandler{Matches: match.NewBridge(match.NewMemoryStore()), Runtime: newFakeRuntime()}.
		ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/match", strings.NewReader(`{"language":"ar"}`)))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestThreadHandler(t *testing.T) {
	b := newBridge(t)
	_, err := b.AppendMessages(context.Background(), "ai", []types.ThreadEntry{
		{Speaker: types.SpeakerUser, SpeakerName: "محمد", Text: "مرحبا"},
	})
	require.NoError(t, err)

	mux := http.NewServeMux()
	mux.Handle("GET /v1/match/threads/{aiID}", ThreadHandler{Matches: b})

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/match/threads/ai", nil))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var thread types.Thread
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &thread))
	require.Len(t, thread.Entries, 1)
	assert.Equal(t, "مرحبا", thread.Entries[0].Text)
	assert.Contains(t, thread.Summary, "محمد: مرحبا")
}
