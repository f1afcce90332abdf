package voice

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vango-go/vai-spy/pkg/core/voice/tts"
)

type recordingPlayer struct {
	mu       sync.Mutex
	played   [][]byte
	hold     time.Duration
	canceled int
}

func (p *recordingPlayer) Play(ctx context.Context, clip *tts.Synthesis) error {
	if p.hold > 0 {
		select {
		case <-time.After(p.hold):
		case <-ctx.Done():
			p.mu.Lock()
			p.canceled++
			p.mu.Unlock()
			return ctx.Err()
		}
	}
	p.mu.Lock()
	p.played = append(p.played, clip.Audio)
	p.mu.Unlock()
	return nil
}

func (p *recordingPlayer) count() (int, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.played), p.canceled
}

func TestSpeaker_PlaysClip(t *testing.T) {
	player := &recordingPlayer{}
	s := NewSpeaker(NewPipeline(nil, nil, &fakeTTSProvider{name: "cloud", audio: []byte("a")}, nil), player)

	outcome, err := s.Speak(context.Background(), "hello", PreferCloud, tts.SynthesizeOptions{})
	require.NoError(t, err)
	assert.Equal(t, "cloud", outcome.Provider)
	played, _ := player.count()
	assert.Equal(t, 1, played)
}

func TestSpeaker_NewSpeakSupersedesInFlightPlayback(t *testing.T) {
	player := &recordingPlayer{hold: 200 * time.Millisecond}
	s := NewSpeaker(NewPipeline(nil, nil, &fakeTTSProvider{name: "cloud", audio: []byte("a")}, nil), player)

	firstDone := make(chan error, 1)
	go func() {
		_, err := s.Speak(context.Background(), "first", PreferCloud, tts.SynthesizeOptions{})
		firstDone <- err
	}()
	time.Sleep(30 * time.Millisecond)

	_, err := s.Speak(context.Background(), "second", PreferCloud, tts.SynthesizeOptions{})
	require.NoError(t, err)
	require.NoError(t, <-firstDone, "superseded session resolves without error")

	played, canceled := player.count()
	assert.Equal(t, 1, played)
	assert.Equal(t, 1, canceled)
}

func TestSpeaker_CancelDuringSynthesisIsSilent(t *testing.T) {
	provider := &fakeTTSProvider{name: "cloud", audio: []byte("a"), delay: 200 * time.Millisecond}
	player := &recordingPlayer{}
	s := NewSpeaker(NewPipeline(nil, nil, provider, nil), player)

	done := make(chan error, 1)
	go func() {
		_, err := s.Speak(context.Background(), "hello", PreferCloud, tts.SynthesizeOptions{})
		done <- err
	}()
	time.Sleep(30 * time.Millisecond)
	before := s.session.Load()
	s.Cancel()
	assert.Greater(t, s.session.Load(), before)

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("speak did not return after cancel")
	}
	played, _ := player.count()
	assert.Zero(t, played)
}
