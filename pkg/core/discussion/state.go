package discussion

import (
	"sync"
	"time"

	"github.com/vango-go/vai-spy/pkg/metrics"
)

// Phase is the orchestrator's position in its state machine.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseListening
	PhaseProcessing
	PhaseSpeaking
	PhaseWaitingAnswer
)

// String returns the wire name of the phase.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseListening:
		return "listening"
	case PhaseProcessing:
		return "processing"
	case PhaseSpeaking:
		return "speaking"
	case PhaseWaitingAnswer:
		return "waiting_answer"
	default:
		return "unknown"
	}
}

// State is the read model shown to players. It is recomputed by the
// orchestrator and never used as a source of truth.
type State struct {
	Phase             string    `json:"phase"`
	ActiveAIID        string    `json:"activeAiId,omitempty"`
	ActiveAIName      string    `json:"activeAiName,omitempty"`
	PendingTargetID   string    `json:"pendingTargetId,omitempty"`
	PendingTargetName string    `json:"pendingTargetName,omitempty"`
	LastSpeakerName   string    `json:"lastSpeakerName,omitempty"`
	LastTranscript    string    `json:"lastTranscript,omitempty"`
	LastIntervention  string    `json:"lastIntervention,omitempty"`
	SilenceMs         int64     `json:"silenceMs"`
	Listening         bool      `json:"listening"`
	Speaking          bool      `json:"speaking"`
	RuntimeEnabled    bool      `json:"runtimeEnabled"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

// Snapshot pairs the state with the single surfaced error string.
type Snapshot struct {
	State State  `json:"state"`
	Error string `json:"error,omitempty"`
}

// StateHub owns the published snapshot across orchestrator runs and fans
// changes out to subscribers. Slow subscribers only ever see the latest
// snapshot.
type StateHub struct {
	now     func() time.Time
	metrics *metrics.Metrics

	mu     sync.RWMutex
	state  State
	errMsg string
	subs   map[int]chan Snapshot
	nextID int
}

// NewStateHub creates a hub in the idle phase with the runtime enabled.
func NewStateHub(m *metrics.Metrics) *StateHub {
	h := &StateHub{
		now:     time.Now,
		metrics: m,
		state:   State{Phase: PhaseIdle.String(), RuntimeEnabled: true},
		subs:    make(map[int]chan Snapshot),
	}
	m.SetPhase(h.state.Phase)
	return h
}

// Snapshot returns the current state and error.
func (h *StateHub) Snapshot() Snapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return Snapshot{State: h.state, Error: h.errMsg}
}

// Update applies fn to the state and publishes the result.
func (h *StateHub) Update(fn func(*State)) {
	h.mu.Lock()
	prevPhase := h.state.Phase
	fn(&h.state)
	h.state.UpdatedAt = h.now()
	snap := Snapshot{State: h.state, Error: h.errMsg}
	h.publishLocked(snap)
	h.mu.Unlock()

	if snap.State.Phase != prevPhase {
		h.metrics.SetPhase(snap.State.Phase)
	}
}

// SetError replaces the surfaced error.
func (h *StateHub) SetError(msg string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.errMsg = msg
	h.publishLocked(Snapshot{State: h.state, Error: h.errMsg})
}

// ClearError removes the surfaced error.
func (h *StateHub) ClearError() {
	h.SetError("")
}

// Subscribe returns a channel of snapshots and a cancel func. The current
// snapshot is delivered immediately.
func (h *StateHub) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.subs[id] = ch
	ch <- Snapshot{State: h.state, Error: h.errMsg}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
		})
	}
}

func (h *StateHub) publishLocked(snap Snapshot) {
	for _, ch := range h.subs {
		select {
		case ch <- snap:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}
