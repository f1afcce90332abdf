package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/vango-go/vai-spy/pkg/core/discussion"
	"github.com/vango-go/vai-spy/pkg/core/types"
)

var errTrailingData = errors.New("unexpected data after JSON body")

// Runtime is the lifecycle surface the control routes drive.
// *discussion.Supervisor satisfies it.
type Runtime interface {
	Hub() *discussion.StateHub
	ToggleRuntimeEnabled(ctx context.Context) bool
	ClearError()
	Refresh(ctx context.Context)
}

// Matches is the match document surface. *match.Bridge satisfies it.
type Matches interface {
	GetCurrentMatchSnapshot(ctx context.Context) (*types.MatchSnapshot, error)
	StartMatch(ctx context.Context, snap *types.MatchSnapshot) (*types.MatchSnapshot, error)
	SetStatus(ctx context.Context, status types.MatchStatus) (*types.MatchSnapshot, error)
	ReadThread(ctx context.Context, aiID string) (types.Thread, error)
}

// RuntimeToggleHandler flips the user pause switch.
type RuntimeToggleHandler struct {
	Runtime Runtime
}

func (h RuntimeToggleHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.Runtime.ToggleRuntimeEnabled(r.Context())
	writeJSON(w, http.StatusOK, h.Runtime.Hub().Snapshot())
}

// ErrorClearHandler dismisses the surfaced error.
type ErrorClearHandler struct {
	Runtime Runtime
}

func (h ErrorClearHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.Runtime.ClearError()
	writeJSON(w, http.StatusOK, h.Runtime.Hub().Snapshot())
}

// MatchHandler reads the current match (GET) or starts a new one (POST).
type MatchHandler struct {
	Matches Matches
	Runtime Runtime
	Logger  *slog.Logger
}

func (h MatchHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		snap, err := h.Matches.GetCurrentMatchSnapshot(r.Context())
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, snap)
	case http.MethodPost:
		var body types.MatchSnapshot
		if err := decodeBody(w, r, &body); err != nil {
			writeBadRequest(w, r, "body", err.Error())
			return
		}
		if len(body.Participants) == 0 {
			writeBadRequest(w, r, "participants", "at least one participant is required")
			return
		}
		if body.Status != "" && !validStatus(body.Status) {
			writeBadRequest(w, r, "status", "unknown match status")
			return
		}
		snap, err := h.Matches.StartMatch(r.Context(), &body)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if h.Logger != nil {
			h.Logger.Info("match started", "match_id", snap.ID, "participants", len(snap.Participants))
		}
		h.Runtime.Refresh(r.Context())
		writeJSON(w, http.StatusCreated, snap)
	default:
		w.Header().Set("Allow", "GET, POST")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// MatchPhaseHandler moves the current match to another status and
// reconciles the pipeline immediately instead of waiting for the next poll.
type MatchPhaseHandler struct {
	Matches Matches
	Runtime Runtime
}

func (h MatchPhaseHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Status types.MatchStatus `json:"status"`
	}
	if err := decodeBody(w, r, &body); err != nil {
		writeBadRequest(w, r, "body", err.Error())
		return
	}
	body.Status = types.MatchStatus(strings.ToLower(strings.TrimSpace(string(body.Status))))
	if !validStatus(body.Status) {
		writeBadRequest(w, r, "status", "unknown match status")
		return
	}

	snap, err := h.Matches.SetStatus(r.Context(), body.Status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.Runtime.Refresh(r.Context())
	writeJSON(w, http.StatusOK, snap)
}

// ThreadHandler returns one AI's conversation thread.
type ThreadHandler struct {
	Matches Matches
}

func (h ThreadHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	aiID := strings.TrimSpace(r.PathValue("aiID"))
	if aiID == "" {
		writeBadRequest(w, r, "aiID", "missing ai id")
		return
	}
	thread, err := h.Matches.ReadThread(r.Context(), aiID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, thread)
}

func validStatus(s types.MatchStatus) bool {
	switch s {
	case types.StatusSetup, types.StatusReveal, types.StatusDiscussion, types.StatusVoting, types.StatusFinished:
		return true
	}
	return false
}
