package discussion

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vango-go/vai-spy/pkg/core"
	"github.com/vango-go/vai-spy/pkg/core/live"
	"github.com/vango-go/vai-spy/pkg/core/llm"
	"github.com/vango-go/vai-spy/pkg/core/settings"
	"github.com/vango-go/vai-spy/pkg/core/types"
	"github.com/vango-go/vai-spy/pkg/core/voice"
	"github.com/vango-go/vai-spy/pkg/core/voice/stt"
	"github.com/vango-go/vai-spy/pkg/core/voice/tts"
	"github.com/vango-go/vai-spy/pkg/metrics"
)

const (
	refineTimeout     = 8 * time.Second
	binaryMaxTokens   = 4
	binaryTemperature = 0.1
	humanTemperature  = 0.9
	minHumanDelay     = 300 * time.Millisecond
	maxHumanDelay     = 900 * time.Millisecond
)

// Reply strategies, as recorded in metrics.
const (
	StrategyAIReply          = "ai_reply"
	StrategyBinary           = "binary"
	StrategyDirectReply      = "direct_reply"
	StrategyInterjection     = "interjection"
	StrategyDirectedQuestion = "directed_question"
)

// Transcriber turns a finalized chunk into text. voice.Pipeline satisfies it.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, pref voice.Preference, opts stt.TranscribeOptions) (*stt.Transcript, voice.Outcome, error)
}

// Vocalizer speaks a line. voice.Speaker satisfies it.
type Vocalizer interface {
	Speak(ctx context.Context, text string, pref voice.Preference, opts tts.SynthesizeOptions) (voice.Outcome, error)
	Cancel()
}

// Bridge is the orchestrator's view of the shared match store.
type Bridge interface {
	GetCurrentMatchSnapshot(ctx context.Context) (*types.MatchSnapshot, error)
	ReadThread(ctx context.Context, aiID string) (types.Thread, error)
	AppendMessages(ctx context.Context, aiID string, entries []types.ThreadEntry) (types.Thread, error)
}

// Config is the per-run configuration, fixed for the life of an Orchestrator.
type Config struct {
	ActiveAI        types.Participant
	Language        string
	Timing          Timing
	Preference      voice.Preference
	Voice           string
	VoiceOutput     bool
	AutoFacilitator bool
	HumanSimulation bool
	Refine          bool
	Weights         Weights
	Threshold       float64
}

// ConfigFromSettings derives a run configuration.
func ConfigFromSettings(st settings.Settings, ai types.Participant, language string) Config {
	if language == "" {
		language = types.LanguageArabic
	}
	return Config{
		ActiveAI:        ai,
		Language:        language,
		Timing:          ResolveTiming(st.SilenceThresholdMs, st.InterventionRestMs, st.AnswerWindowMs),
		Preference:      voice.ParsePreference(st.PreferredVoiceProvider),
		Voice:           st.Voice,
		VoiceOutput:     st.AIVoiceOutputEnabled,
		AutoFacilitator: st.AIAutoFacilitatorEnabled,
		HumanSimulation: st.HumanSimulation,
		Refine:          st.RefineTranscripts,
		Weights:         DefaultWeights(),
		Threshold:       SuspicionThreshold,
	}
}

// Deps are the collaborators of an Orchestrator.
type Deps struct {
	Transcriber Transcriber
	Vocalizer   Vocalizer
	LLM         llm.Completer
	Bridge      Bridge
	Hub         *StateHub
	Metrics     *metrics.Metrics
	Logger      *slog.Logger
	// AfterSpeech is called when the AI finishes speaking so the silence
	// clock restarts from the end of its own line.
	AfterSpeech func(time.Time)
}

// PendingTarget is the participant the AI is waiting on.
type PendingTarget struct {
	TargetID   string
	TargetName string
	IsAI       bool
	Deadline   time.Time
}

// Orchestrator runs one discussion session for the active AI: it consumes
// transcripts and silence ticks, decides a strategy, and speaks.
type Orchestrator struct {
	cfg    Config
	deps   Deps
	hub    *StateHub
	logger *slog.Logger
	board  *SuspicionBoard

	now   func() time.Time
	delay func() time.Duration

	// turn serializes transcript handling and interventions.
	turn sync.Mutex

	mu               sync.Mutex
	busy             int
	speaking         bool
	stopped          bool
	pending          *PendingTarget
	cursor           int
	lastIntervention time.Time

	wg sync.WaitGroup
}

// NewOrchestrator creates an orchestrator. Call Start before feeding it.
func NewOrchestrator(cfg Config, deps Deps) *Orchestrator {
	if cfg.Weights == (Weights{}) {
		cfg.Weights = DefaultWeights()
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = SuspicionThreshold
	}
	if cfg.Timing == (Timing{}) {
		cfg.Timing = ResolveTiming(0, 0, 0)
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	hub := deps.Hub
	if hub == nil {
		hub = NewStateHub(deps.Metrics)
	}
	return &Orchestrator{
		cfg:    cfg,
		deps:   deps,
		hub:    hub,
		logger: logger.With("component", "orchestrator", "ai_id", cfg.ActiveAI.ID),
		board:  NewSuspicionBoard(),
		now:    time.Now,
		delay: func() time.Duration {
			return minHumanDelay + rand.N(maxHumanDelay-minHumanDelay)
		},
	}
}

// Hub returns the state hub the orchestrator publishes to.
func (o *Orchestrator) Hub() *StateHub {
	return o.hub
}

// Board returns the suspicion scores of this run.
func (o *Orchestrator) Board() *SuspicionBoard {
	return o.board
}

// Pending returns the current pending target.
func (o *Orchestrator) Pending() (PendingTarget, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.pending == nil {
		return PendingTarget{}, false
	}
	return *o.pending, true
}

// Start publishes the listening phase for the active AI.
func (o *Orchestrator) Start() {
	o.hub.Update(func(s *State) {
		s.Phase = PhaseListening.String()
		s.ActiveAIID = o.cfg.ActiveAI.ID
		s.ActiveAIName = o.cfg.ActiveAI.Name
		s.PendingTargetID = ""
		s.PendingTargetName = ""
		s.Listening = true
		s.Speaking = false
		s.SilenceMs = 0
	})
}

// Stop waits for in-flight interventions and resets transient state. The
// caller cancels the context those interventions run under first.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	o.stopped = true
	o.mu.Unlock()

	o.wg.Wait()

	o.mu.Lock()
	o.pending = nil
	o.cursor = 0
	o.busy = 0
	o.speaking = false
	o.mu.Unlock()

	o.hub.Update(func(s *State) {
		s.Phase = PhaseIdle.String()
		s.PendingTargetID = ""
		s.PendingTargetName = ""
		s.Listening = false
		s.Speaking = false
		s.SilenceMs = 0
	})
}

// CancelSpeech stops any in-flight synthesis or playback.
func (o *Orchestrator) CancelSpeech() {
	if o.deps.Vocalizer != nil {
		o.deps.Vocalizer.Cancel()
	}
}

// Tick publishes the silence clock, expires a stale pending target, and
// fires a silence intervention when the policy allows it. A tick that
// expires a target never fires.
func (o *Orchestrator) Tick(ctx context.Context, t live.Tick) {
	o.mu.Lock()
	if o.stopped {
		o.mu.Unlock()
		return
	}
	expired := o.pending != nil && !t.At.Before(o.pending.Deadline)
	if expired {
		o.logger.Debug("pending target expired", "target_id", o.pending.TargetID)
		o.pending = nil
		// The cooldown restarts at expiry; the unanswered silence does not
		// count toward the next intervention.
		o.lastIntervention = t.At
	}

	since := time.Duration(math.MaxInt64)
	if !o.lastIntervention.IsZero() {
		since = t.At.Sub(o.lastIntervention)
	}
	fire := !expired && o.cfg.AutoFacilitator && ShouldTriggerSilenceIntervention(SilenceCheck{
		Processing:            o.busy > 0,
		Speaking:              o.speaking,
		HasPendingTarget:      o.pending != nil,
		Silence:               t.Silence,
		SinceLastIntervention: since,
		Timing:                o.cfg.Timing,
	})
	if fire {
		o.busy++
		o.lastIntervention = t.At
		o.wg.Add(1)
	}
	phase := o.phaseLocked()
	o.mu.Unlock()

	o.hub.Update(func(s *State) {
		s.SilenceMs = t.Silence.Milliseconds()
		s.Phase = phase.String()
		if expired {
			s.PendingTargetID = ""
			s.PendingTargetName = ""
		}
	})

	if fire {
		o.logger.Info("silence intervention", "silence_ms", t.Silence.Milliseconds())
		go func() {
			defer o.wg.Done()
			o.intervene(ctx)
		}()
	}
}

// HandleChunk transcribes one chunk and runs the decision policy on it. It is
// the ChunkQueue handler, so calls arrive one at a time in utterance order.
func (o *Orchestrator) HandleChunk(ctx context.Context, c live.Chunk) {
	o.enter()
	defer o.exit()

	o.turn.Lock()
	defer o.turn.Unlock()
	if ctx.Err() != nil {
		return
	}

	tr, outcome, err := o.deps.Transcriber.Transcribe(ctx, c.Audio, o.cfg.Preference, stt.TranscribeOptions{
		Language:   o.cfg.Language,
		Format:     c.Format,
		SampleRate: c.SampleRate,
	})
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		if core.Classify(err) == core.ErrNoSpeech {
			o.deps.Metrics.RecordTranscription(outcome.Provider, "no_speech")
			o.logger.Debug("chunk had no speech", "chunk_id", c.ID)
			return
		}
		o.deps.Metrics.RecordTranscription(outcome.Provider, "error")
		o.fail(ctx, "transcribe", err)
		return
	}
	o.deps.Metrics.RecordTranscription(tr.Provider, "ok")
	if outcome.UsedFallback() {
		o.deps.Metrics.RecordFallback("transcription")
		o.hub.SetError(core.FallbackMessage("transcription", outcome.FallbackErr))
	}

	text := strings.TrimSpace(tr.Text)
	if o.cfg.Refine {
		text = o.refine(ctx, text)
	}
	if text == "" {
		return
	}
	o.handleTranscriptLocked(ctx, text)
}

// HandleTranscript runs the decision policy on an already transcribed line.
func (o *Orchestrator) HandleTranscript(ctx context.Context, text string) {
	o.enter()
	defer o.exit()

	o.turn.Lock()
	defer o.turn.Unlock()
	if ctx.Err() != nil {
		return
	}
	o.handleTranscriptLocked(ctx, strings.TrimSpace(text))
}

// Intervene runs the directed-question path immediately, bypassing the
// silence policy.
func (o *Orchestrator) Intervene(ctx context.Context) {
	o.mu.Lock()
	o.busy++
	o.lastIntervention = o.now()
	o.mu.Unlock()
	o.intervene(ctx)
}

func (o *Orchestrator) handleTranscriptLocked(ctx context.Context, text string) {
	snap, err := o.deps.Bridge.GetCurrentMatchSnapshot(ctx)
	if err != nil {
		o.fail(ctx, "snapshot", err)
		return
	}

	o.mu.Lock()
	pending := o.pending
	o.pending = nil
	o.mu.Unlock()

	var speakerID, speakerName string
	if pending != nil {
		speakerID, speakerName = pending.TargetID, pending.TargetName
	}

	cls := ClassifyUtterance(text, ClassifyContext{
		ActiveAIName:      o.cfg.ActiveAI.Name,
		PendingTargetName: speakerName,
	})
	if speakerID != "" && (pending == nil || !pending.IsAI) {
		o.board.Add(speakerID, o.cfg.Weights.Score(text))
	}
	o.logger.Debug("transcript",
		"kind", cls.Kind,
		"speaker", speakerName,
		"binary", cls.IsBinaryQuestion,
		"addressed", cls.AddressedToAI,
	)

	o.hub.Update(func(s *State) {
		s.LastSpeakerName = speakerName
		s.LastTranscript = text
		s.PendingTargetID = ""
		s.PendingTargetName = ""
	})

	if _, err := o.deps.Bridge.AppendMessages(ctx, o.cfg.ActiveAI.ID, []types.ThreadEntry{
		o.entry(types.SpeakerUser, speakerName, text),
	}); err != nil {
		o.fail(ctx, "append", err)
	}

	switch {
	case pending != nil && pending.IsAI:
		if ai, ok := snap.Participant(pending.TargetID); ok {
			o.aiReply(ctx, snap, ai, o.cfg.ActiveAI.Name, text)
		}
	case cls.IsBinaryQuestion:
		o.answerBinary(ctx, snap, text)
	case pending != nil && o.board.Score(pending.TargetID) >= o.cfg.Threshold:
		o.interject(ctx, snap, pending.TargetName)
	case cls.ExpectsReplyFromAI:
		o.directReply(ctx, snap, speakerName, text)
	}
}

// intervene is the directed-question path. The caller has already counted it
// as busy.
func (o *Orchestrator) intervene(ctx context.Context) {
	defer o.exit()

	o.turn.Lock()
	defer o.turn.Unlock()
	if ctx.Err() != nil {
		return
	}
	o.deps.Metrics.RecordIntervention()

	snap, err := o.deps.Bridge.GetCurrentMatchSnapshot(ctx)
	if err != nil {
		o.fail(ctx, "snapshot", err)
		return
	}

	o.mu.Lock()
	pick := PickNextTarget(TargetInput{
		ActiveAIID:   o.cfg.ActiveAI.ID,
		Participants: snap.Participants,
		Scores:       o.board.Snapshot(),
		Cursor:       o.cursor,
		Threshold:    o.cfg.Threshold,
	})
	o.cursor = pick.NextCursor
	o.mu.Unlock()
	if pick.TargetID == "" {
		return
	}
	target, _ := snap.Participant(pick.TargetID)
	if target.Name == "" {
		target.Name = target.ID
	}

	pc, err := o.promptContext(ctx, snap, o.cfg.ActiveAI)
	if err != nil {
		o.fail(ctx, "thread", err)
		return
	}

	var parts []string
	if o.board.Score(target.ID) >= o.cfg.Threshold {
		line, err := o.complete(ctx, InterjectionMessages(pc, target.Name))
		if err != nil {
			o.fail(ctx, "interjection", err)
			return
		}
		parts = append(parts, line)
		o.deps.Metrics.RecordReply(StrategyInterjection)
	}
	question, err := o.complete(ctx, DirectedQuestionMessages(pc, target.Name))
	if err != nil {
		o.fail(ctx, "question", err)
		return
	}
	parts = append(parts, question)
	line := strings.Join(parts, " ")

	o.appendAI(ctx, o.cfg.ActiveAI.ID, o.cfg.ActiveAI.Name, line)
	o.vocalize(ctx, line, StrategyDirectedQuestion)
	if ctx.Err() != nil {
		return
	}

	o.setPending(PendingTarget{
		TargetID:   target.ID,
		TargetName: target.Name,
		IsAI:       target.IsAI,
		Deadline:   o.now().Add(o.cfg.Timing.AnswerWindow),
	})

	if target.IsAI {
		o.aiReply(ctx, snap, target, o.cfg.ActiveAI.Name, question)
	}
}

// aiReply voices another AI participant answering text. The line lands in
// both that AI's thread and the active AI's thread.
func (o *Orchestrator) aiReply(ctx context.Context, snap *types.MatchSnapshot, ai types.Participant, speaker, text string) {
	pc, err := o.promptContext(ctx, snap, ai)
	if err != nil {
		o.fail(ctx, "thread", err)
		return
	}
	line, err := o.complete(ctx, ReplyMessages(pc, speaker, text))
	if err != nil {
		o.fail(ctx, "ai reply", err)
		return
	}
	if _, err := o.deps.Bridge.AppendMessages(ctx, ai.ID, []types.ThreadEntry{
		o.entry(types.SpeakerUser, speaker, text),
		o.entry(types.SpeakerAI, ai.Name, line),
	}); err != nil {
		o.fail(ctx, "append", err)
	}
	o.appendAI(ctx, o.cfg.ActiveAI.ID, ai.Name, line)
	o.vocalize(ctx, line, StrategyAIReply)
}

func (o *Orchestrator) answerBinary(ctx context.Context, snap *types.MatchSnapshot, question string) {
	pc, err := o.promptContext(ctx, snap, o.cfg.ActiveAI)
	if err != nil {
		o.fail(ctx, "thread", err)
		return
	}
	verdict, err := o.deps.LLM.Complete(ctx, llm.Request{
		Messages:    BinaryMessages(pc, question),
		Temperature: binaryTemperature,
		MaxTokens:   binaryMaxTokens,
	})
	if err != nil {
		o.fail(ctx, "binary", err)
		return
	}
	line := ParseBinary(verdict).Spoken(o.cfg.Language)
	o.appendAI(ctx, o.cfg.ActiveAI.ID, o.cfg.ActiveAI.Name, line)
	o.vocalize(ctx, line, StrategyBinary)
}

func (o *Orchestrator) directReply(ctx context.Context, snap *types.MatchSnapshot, speaker, text string) {
	pc, err := o.promptContext(ctx, snap, o.cfg.ActiveAI)
	if err != nil {
		o.fail(ctx, "thread", err)
		return
	}
	line, err := o.complete(ctx, ReplyMessages(pc, speaker, text))
	if err != nil {
		o.fail(ctx, "reply", err)
		return
	}
	o.appendAI(ctx, o.cfg.ActiveAI.ID, o.cfg.ActiveAI.Name, line)
	o.vocalize(ctx, line, StrategyDirectReply)
}

func (o *Orchestrator) interject(ctx context.Context, snap *types.MatchSnapshot, target string) {
	pc, err := o.promptContext(ctx, snap, o.cfg.ActiveAI)
	if err != nil {
		o.fail(ctx, "thread", err)
		return
	}
	line, err := o.complete(ctx, InterjectionMessages(pc, target))
	if err != nil {
		o.fail(ctx, "interjection", err)
		return
	}
	o.appendAI(ctx, o.cfg.ActiveAI.ID, o.cfg.ActiveAI.Name, line)
	o.vocalize(ctx, line, StrategyInterjection)
}

func (o *Orchestrator) promptContext(ctx context.Context, snap *types.MatchSnapshot, ai types.Participant) (PromptContext, error) {
	thread, err := o.deps.Bridge.ReadThread(ctx, ai.ID)
	if err != nil {
		return PromptContext{}, err
	}
	mc := snap.ContextFor(ai.ID)
	if mc.Language == "" {
		mc.Language = o.cfg.Language
	}
	return PromptContext{
		AIName:          ai.Name,
		Match:           mc,
		Thread:          thread,
		HumanSimulation: o.cfg.HumanSimulation,
	}, nil
}

func (o *Orchestrator) complete(ctx context.Context, msgs []types.Message) (string, error) {
	req := llm.Request{Messages: msgs}
	if o.cfg.HumanSimulation {
		req.Temperature = humanTemperature
	}
	text, err := o.deps.LLM.Complete(ctx, req)
	if err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", core.NewInvalidResponseError("empty completion")
	}
	return text, nil
}

// refine cleans a transcript with the language model. Failures keep the raw
// text.
func (o *Orchestrator) refine(ctx context.Context, raw string) string {
	if raw == "" {
		return raw
	}
	ctx, cancel := context.WithTimeout(ctx, refineTimeout)
	defer cancel()
	out, err := o.deps.LLM.Complete(ctx, llm.Request{Messages: RefineMessages(o.cfg.Language, raw)})
	if err != nil {
		o.logger.Debug("refine failed", "error", err)
		return raw
	}
	if out = strings.TrimSpace(out); out == "" {
		return raw
	}
	return out
}

func (o *Orchestrator) entry(speaker types.Speaker, name, text string) types.ThreadEntry {
	return types.ThreadEntry{
		ID:          uuid.NewString(),
		Speaker:     speaker,
		SpeakerName: name,
		Text:        text,
		Timestamp:   o.now(),
	}
}

func (o *Orchestrator) appendAI(ctx context.Context, threadID, name, text string) {
	if _, err := o.deps.Bridge.AppendMessages(ctx, threadID, []types.ThreadEntry{
		o.entry(types.SpeakerAI, name, text),
	}); err != nil {
		o.fail(ctx, "append", err)
	}
}

// vocalize publishes the line and, when voice output is on, speaks it.
func (o *Orchestrator) vocalize(ctx context.Context, text, strategy string) {
	o.deps.Metrics.RecordReply(strategy)
	o.hub.Update(func(s *State) { s.LastIntervention = text })
	if !o.cfg.VoiceOutput || o.deps.Vocalizer == nil || ctx.Err() != nil {
		return
	}

	if o.cfg.HumanSimulation {
		timer := time.NewTimer(o.delay())
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}

	o.setSpeaking(true)
	outcome, err := o.deps.Vocalizer.Speak(ctx, text, o.cfg.Preference, tts.SynthesizeOptions{
		Voice:    o.cfg.Voice,
		Language: o.cfg.Language,
	})
	o.setSpeaking(false)
	if o.deps.AfterSpeech != nil {
		o.deps.AfterSpeech(o.now())
	}

	switch {
	case err != nil:
		o.fail(ctx, "speak", err)
	case outcome.UsedFallback():
		o.deps.Metrics.RecordFallback("speech")
		o.hub.SetError(core.FallbackMessage("speech", outcome.FallbackErr))
	}
}

func (o *Orchestrator) fail(ctx context.Context, op string, err error) {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return
	}
	kind := core.Classify(err)
	o.deps.Metrics.RecordProviderError(string(kind))
	o.logger.Warn("discussion step failed", "op", op, "kind", kind, "error", err)
	o.hub.SetError(core.UserMessage(err))
}

func (o *Orchestrator) setPending(p PendingTarget) {
	o.mu.Lock()
	o.pending = &p
	phase := o.phaseLocked()
	o.mu.Unlock()
	o.hub.Update(func(s *State) {
		s.PendingTargetID = p.TargetID
		s.PendingTargetName = p.TargetName
		s.Phase = phase.String()
	})
}

func (o *Orchestrator) setSpeaking(on bool) {
	o.mu.Lock()
	o.speaking = on
	phase := o.phaseLocked()
	o.mu.Unlock()
	o.hub.Update(func(s *State) {
		s.Speaking = on
		s.Phase = phase.String()
	})
}

func (o *Orchestrator) enter() {
	o.mu.Lock()
	o.busy++
	phase := o.phaseLocked()
	o.mu.Unlock()
	o.hub.Update(func(s *State) { s.Phase = phase.String() })
}

func (o *Orchestrator) exit() {
	o.mu.Lock()
	if o.busy > 0 {
		o.busy--
	}
	phase := o.phaseLocked()
	o.mu.Unlock()
	o.hub.Update(func(s *State) { s.Phase = phase.String() })
}

// phaseLocked derives the phase from the flags. It never reports processing
// or speaking once the work behind them has finished.
func (o *Orchestrator) phaseLocked() Phase {
	switch {
	case o.stopped:
		return PhaseIdle
	case o.speaking:
		return PhaseSpeaking
	case o.busy > 0:
		return PhaseProcessing
	case o.pending != nil:
		return PhaseWaitingAnswer
	default:
		return PhaseListening
	}
}
