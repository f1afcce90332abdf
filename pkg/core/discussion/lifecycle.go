package discussion

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vango-go/vai-spy/pkg/core"
	"github.com/vango-go/vai-spy/pkg/core/live"
	"github.com/vango-go/vai-spy/pkg/core/llm"
	"github.com/vango-go/vai-spy/pkg/core/settings"
	"github.com/vango-go/vai-spy/pkg/core/types"
	"github.com/vango-go/vai-spy/pkg/metrics"
)

// DefaultPollInterval is how often Watch re-reads the match and settings.
const DefaultPollInterval = 2 * time.Second

// MicSource opens a live capture stream that delivers PCM16 frames to onPCM
// until the returned closer is closed.
type MicSource interface {
	Open(ctx context.Context, cfg live.AudioConfig, onPCM func([]byte)) (io.Closer, error)
}

// SettingsSource returns the current settings. settings.Store satisfies it.
type SettingsSource interface {
	Current() settings.Settings
}

// capabilityChecker is implemented by transcribers that can report whether
// any speech recognizer is usable.
type capabilityChecker interface {
	CanTranscribe() types.Capability
}

// SupervisorDeps are the long-lived collaborators shared by every run.
type SupervisorDeps struct {
	Bridge      Bridge
	Settings    SettingsSource
	Mic         MicSource
	Transcriber Transcriber
	Vocalizer   Vocalizer
	LLM         llm.Completer
	Audio       live.AudioConfig
	Monitor     live.MonitorConfig
	Metrics     *metrics.Metrics
	Logger      *slog.Logger
}

// Supervisor starts, restarts and tears down the listening pipeline as the
// match phase, settings, AI roster and runtime toggle change.
type Supervisor struct {
	deps   SupervisorDeps
	hub    *StateHub
	logger *slog.Logger

	mu             sync.Mutex
	base           context.Context
	runtimeEnabled bool
	current        *run
}

// run is one started pipeline.
type run struct {
	key     string
	cancel  context.CancelFunc
	group   *errgroup.Group
	orch    *Orchestrator
	monitor *live.Monitor
	queue   *live.ChunkQueue
	stream  io.Closer
}

// NewSupervisor creates a supervisor. Runs are parented to base.
func NewSupervisor(base context.Context, deps SupervisorDeps) *Supervisor {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Audio.SampleRate == 0 {
		deps.Audio = live.DefaultAudioConfig()
	}
	return &Supervisor{
		deps:           deps,
		hub:            NewStateHub(deps.Metrics),
		logger:         deps.Logger.With("component", "supervisor"),
		base:           base,
		runtimeEnabled: true,
	}
}

// Hub returns the state hub shared by every run.
func (s *Supervisor) Hub() *StateHub {
	return s.hub
}

// Orchestrator returns the running orchestrator, if any.
func (s *Supervisor) Orchestrator() *Orchestrator {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil
	}
	return s.current.orch
}

// Running reports whether a pipeline is live.
func (s *Supervisor) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current != nil
}

// ToggleRuntimeEnabled flips the user pause switch and reconciles.
func (s *Supervisor) ToggleRuntimeEnabled(ctx context.Context) bool {
	s.mu.Lock()
	s.runtimeEnabled = !s.runtimeEnabled
	enabled := s.runtimeEnabled
	s.mu.Unlock()

	s.hub.Update(func(st *State) { st.RuntimeEnabled = enabled })
	s.Refresh(ctx)
	return enabled
}

// ClearError dismisses the surfaced error.
func (s *Supervisor) ClearError() {
	s.hub.ClearError()
}

// Watch reconciles on every interval until ctx is done, then tears down.
func (s *Supervisor) Watch(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.Refresh(ctx)
	for {
		select {
		case <-ctx.Done():
			s.Close()
			return nil
		case <-ticker.C:
			s.Refresh(ctx)
		}
	}
}

// Refresh reads the external signals and starts, restarts or stops the
// pipeline to match them.
func (s *Supervisor) Refresh(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := settings.Defaults()
	if s.deps.Settings != nil {
		st = s.deps.Settings.Current()
	}
	snap, err := s.deps.Bridge.GetCurrentMatchSnapshot(ctx)
	if err != nil {
		s.logger.Warn("read match snapshot", "error", err)
		return
	}

	ai, want := s.desiredLocked(st, snap)
	key := fingerprint(st, snap, s.runtimeEnabled)

	if s.current != nil && (!want || s.current.key != key) {
		s.teardownLocked()
	}
	if want && s.current == nil {
		s.startLocked(st, snap, ai, key)
	}
}

// Close tears down any running pipeline.
func (s *Supervisor) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != nil {
		s.teardownLocked()
	}
}

func (s *Supervisor) desiredLocked(st settings.Settings, snap *types.MatchSnapshot) (types.Participant, bool) {
	if !s.runtimeEnabled || !st.AIEnabled || !st.AIVoiceInputEnabled {
		return types.Participant{}, false
	}
	if snap == nil || snap.Status != types.StatusDiscussion {
		return types.Participant{}, false
	}
	ais := snap.AIParticipants()
	if len(ais) == 0 {
		return types.Participant{}, false
	}
	return ais[0], true
}

// fingerprint changes whenever a restart-worthy signal changes.
func fingerprint(st settings.Settings, snap *types.MatchSnapshot, enabled bool) string {
	var ids []string
	for _, p := range snap.AIParticipants() {
		ids = append(ids, p.ID)
	}
	return fmt.Sprintf("%s|%s|%s|%t|%+v", snap.ID, snap.Status, strings.Join(ids, ","), enabled, st)
}

func (s *Supervisor) startLocked(st settings.Settings, snap *types.MatchSnapshot, ai types.Participant, key string) {
	if checker, ok := s.deps.Transcriber.(capabilityChecker); ok {
		if capability := checker.CanTranscribe(); !capability.Available {
			s.logger.Warn("no speech recognizer available", "reason", capability.Reason)
			s.hub.SetError(core.UserMessage(core.NewUnsupportedError(capability.Reason)))
			s.hub.Update(func(st *State) { st.Phase = PhaseIdle.String() })
			return
		}
	}

	s.hub.Update(func(st *State) {
		st.Phase = PhaseListening.String()
		st.ActiveAIID = ai.ID
		st.ActiveAIName = ai.Name
	})

	runCtx, cancel := context.WithCancel(s.base)
	monitor := live.NewMonitor(s.deps.Monitor, s.deps.Audio)
	orch := NewOrchestrator(ConfigFromSettings(st, ai, snap.Language), Deps{
		Transcriber: s.deps.Transcriber,
		Vocalizer:   s.deps.Vocalizer,
		LLM:         s.deps.LLM,
		Bridge:      s.deps.Bridge,
		Hub:         s.hub,
		Metrics:     s.deps.Metrics,
		Logger:      s.deps.Logger,
		AfterSpeech: monitor.MarkVoice,
	})
	queue := live.NewChunkQueue(orch.HandleChunk)
	monitor.SetCallbacks(
		func(c live.Chunk) { queue.Push(runCtx, c) },
		func(int) { s.deps.Metrics.RecordChunkDiscarded() },
		func(t live.Tick) { orch.Tick(runCtx, t) },
	)

	stream, err := s.deps.Mic.Open(runCtx, s.deps.Audio, monitor.Write)
	if err != nil {
		cancel()
		s.logger.Warn("open microphone", "error", err)
		s.hub.SetError(core.UserMessage(core.NewMicrophoneError("open microphone", err)))
		s.hub.Update(func(st *State) {
			st.Phase = PhaseIdle.String()
			st.Listening = false
		})
		return
	}

	orch.Start()
	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error { return monitor.Run(gctx) })

	s.current = &run{
		key:     key,
		cancel:  cancel,
		group:   g,
		orch:    orch,
		monitor: monitor,
		queue:   queue,
		stream:  stream,
	}
	s.deps.Metrics.RecordRunStart()
	s.logger.Info("pipeline started", "ai_id", ai.ID, "match_id", snap.ID)
}

// teardownLocked stops the current run in a fixed order: speech, recorder,
// capture stream, analysis window, queue, transient state.
func (s *Supervisor) teardownLocked() {
	r := s.current
	s.current = nil

	r.orch.CancelSpeech()

	r.cancel()
	_ = r.group.Wait()
	r.monitor.DropRecording()

	if err := r.stream.Close(); err != nil {
		s.logger.Warn("close microphone stream", "error", err)
	}

	r.monitor.Reset()

	dropped := r.queue.Clear()
	r.queue.Wait()

	r.orch.Stop()

	s.deps.Metrics.RecordRunEnd()
	s.logger.Info("pipeline stopped", "dropped_chunks", dropped)
}
