package live

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Chunk is one finalized utterance recording.
type Chunk struct {
	ID         string
	Audio      []byte // WAV
	Format     string
	SampleRate int
	Duration   time.Duration
	StartedAt  time.Time
	EndedAt    time.Time
}

// Tick is published on every poll of the monitor.
type Tick struct {
	At        time.Time
	Level     float64
	Silence   time.Duration
	Recording bool
}

// Monitor segments a live PCM stream into utterance chunks. Audio arrives via
// Write from the capture callback; Run polls the latest window on a ticker,
// starts a recording once the level holds above threshold, and finalizes it
// after trailing silence.
type Monitor struct {
	cfg   MonitorConfig
	audio AudioConfig
	now   func() time.Time

	window   *RingBuffer
	recorder *AudioBuffer

	mu         sync.Mutex
	recording  bool
	aboveSince time.Time
	belowSince time.Time
	lastVoice  time.Time
	recStarted time.Time

	onChunk   func(Chunk)
	onDiscard func(bytes int)
	onTick    func(Tick)
}

// NewMonitor creates a monitor. Zero config fields take their defaults.
func NewMonitor(cfg MonitorConfig, audio AudioConfig) *Monitor {
	cfg = cfg.withDefaults()
	if audio.SampleRate == 0 {
		audio = DefaultAudioConfig()
	}
	return &Monitor{
		cfg:      cfg,
		audio:    audio,
		now:      time.Now,
		window:   NewRingBuffer(audio, int(cfg.AnalysisWindow/time.Millisecond)),
		recorder: NewAudioBuffer(audio, int(cfg.MaxChunk/time.Millisecond)),
	}
}

// SetCallbacks sets the event callbacks. Callbacks run on the polling
// goroutine and must not block for long.
func (m *Monitor) SetCallbacks(onChunk func(Chunk), onDiscard func(bytes int), onTick func(Tick)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChunk = onChunk
	m.onDiscard = onDiscard
	m.onTick = onTick
}

// WithClock replaces the time source.
func (m *Monitor) WithClock(now func() time.Time) *Monitor {
	m.now = now
	return m
}

// Config returns the effective configuration.
func (m *Monitor) Config() MonitorConfig {
	return m.cfg
}

// Write feeds captured PCM16 audio.
func (m *Monitor) Write(pcm []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.window.Write(pcm)
	if m.recording {
		m.recorder.Write(pcm)
	}
}

// Recording reports whether an utterance is being captured.
func (m *Monitor) Recording() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.recording
}

// MarkVoice records voice activity at t, resetting the silence clock.
func (m *Monitor) MarkVoice(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastVoice = t
}

// Run polls until ctx is done. Callers tear down with DropRecording and
// Reset once it returns.
func (m *Monitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.Step(m.now())
		}
	}
}

// Step performs one poll at time now.
func (m *Monitor) Step(now time.Time) {
	level := m.window.Level()
	voiced := level >= m.cfg.Threshold

	m.mu.Lock()
	if m.lastVoice.IsZero() {
		m.lastVoice = now
	}
	if voiced {
		m.lastVoice = now
	}

	var (
		chunk     *Chunk
		discarded int
	)
	if !m.recording {
		switch {
		case !voiced:
			m.aboveSince = time.Time{}
		case m.aboveSince.IsZero():
			m.aboveSince = now
		}
		if voiced && now.Sub(m.aboveSince) >= m.cfg.SpeechHold {
			m.startRecordingLocked()
		}
	} else {
		switch {
		case voiced:
			m.belowSince = time.Time{}
		case m.belowSince.IsZero():
			m.belowSince = now
		}
		if !voiced && now.Sub(m.belowSince) >= m.cfg.TrailingSilence {
			chunk, discarded = m.finalizeLocked(now)
		}
	}

	tick := Tick{
		At:        now,
		Level:     level,
		Silence:   now.Sub(m.lastVoice),
		Recording: m.recording,
	}
	onChunk, onDiscard, onTick := m.onChunk, m.onDiscard, m.onTick
	m.mu.Unlock()

	if chunk != nil && onChunk != nil {
		onChunk(*chunk)
	}
	if discarded > 0 && onDiscard != nil {
		onDiscard(discarded)
	}
	if onTick != nil {
		onTick(tick)
	}
}

func (m *Monitor) startRecordingLocked() {
	m.recording = true
	m.recStarted = m.aboveSince
	m.belowSince = time.Time{}
	m.recorder.Clear()
	// The hold period already happened; keep it as pre-roll so the first
	// syllable is not clipped.
	m.recorder.Write(m.window.Read())
}

func (m *Monitor) finalizeLocked(now time.Time) (*Chunk, int) {
	pcm := m.recorder.Take()
	started := m.recStarted
	m.recording = false
	m.aboveSince = time.Time{}
	m.belowSince = time.Time{}

	wav := EncodeWAV(pcm, m.audio)
	if len(wav) < m.cfg.MinChunkBytes {
		return nil, len(wav)
	}
	return &Chunk{
		ID:         uuid.NewString(),
		Audio:      wav,
		Format:     "wav",
		SampleRate: m.audio.SampleRate,
		Duration:   time.Duration(m.audio.DurationMs(len(pcm))) * time.Millisecond,
		StartedAt:  started,
		EndedAt:    now,
	}, 0
}

// DropRecording stops and releases any in-progress recording without
// emitting it.
func (m *Monitor) DropRecording() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dropRecordingLocked()
}

func (m *Monitor) dropRecordingLocked() {
	m.recording = false
	m.aboveSince = time.Time{}
	m.belowSince = time.Time{}
	m.recorder.Clear()
}

// Reset drops any recording, clears the analysis window, and restarts the
// silence clock.
func (m *Monitor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dropRecordingLocked()
	m.lastVoice = time.Time{}
	m.window.Clear()
}
