package voice

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/vango-go/vai-spy/pkg/core/voice/tts"
)

// Player renders a synthesized clip and blocks until playback ends or ctx is
// cancelled.
type Player interface {
	Play(ctx context.Context, clip *tts.Synthesis) error
}

// Speaker guarantees at most one active playback session per process. Each
// Speak or Cancel bumps a session nonce; an in-flight Speak compares the nonce
// after every await point and quietly stops when it has been superseded.
type Speaker struct {
	pipeline *Pipeline
	player   Player

	session atomic.Uint64

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewSpeaker creates a speaker over a pipeline and audio sink.
func NewSpeaker(pipeline *Pipeline, player Player) *Speaker {
	return &Speaker{pipeline: pipeline, player: player}
}

// Speak synthesizes and plays text. A superseded or cancelled session returns
// a zero Outcome and nil error.
func (s *Speaker) Speak(ctx context.Context, text string, pref Preference, opts tts.SynthesizeOptions) (Outcome, error) {
	token, runCtx := s.begin(ctx)
	defer s.end(token)

	clip, outcome, err := s.pipeline.Synthesize(runCtx, text, pref, opts)
	if s.session.Load() != token || runCtx.Err() != nil {
		return Outcome{}, nil
	}
	if err != nil {
		return outcome, err
	}
	if clip == nil || len(clip.Audio) == 0 || s.player == nil {
		return outcome, nil
	}

	err = s.player.Play(runCtx, clip)
	if s.session.Load() != token || runCtx.Err() != nil {
		return Outcome{}, nil
	}
	return outcome, err
}

// Cancel stops any in-flight synthesis or playback.
func (s *Speaker) Cancel() {
	s.session.Add(1)
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (s *Speaker) begin(ctx context.Context) (uint64, context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	prev := s.cancel
	token := s.session.Add(1)
	s.cancel = cancel
	s.mu.Unlock()
	if prev != nil {
		prev()
	}
	return token, runCtx
}

func (s *Speaker) end(token uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session.Load() == token && s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}
