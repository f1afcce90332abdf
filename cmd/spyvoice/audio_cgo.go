//go:build cgo

package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
	"github.com/gen2brain/malgo"

	"github.com/vango-go/vai-spy/pkg/core"
	"github.com/vango-go/vai-spy/pkg/core/live"
	"github.com/vango-go/vai-spy/pkg/core/voice/tts"
)

// Playback runs at one fixed rate; oto allows a single context per process.
const (
	playbackRate     = 24000
	playbackChannels = 1
	playbackPoll     = 20 * time.Millisecond
)

func openAudio(logger *slog.Logger) (audioDevices, error) {
	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{ThreadPriority: malgo.ThreadPriorityRealtime}, nil)
	if err != nil {
		return audioDevices{}, fmt.Errorf("init capture context: %w", err)
	}
	player := &otoPlayer{logger: logger}
	return audioDevices{
		Mic:    &malgoMic{ctx: mctx},
		Player: player,
		Close: func() {
			if err := mctx.Uninit(); err != nil {
				logger.Warn("release capture context", "error", err)
			}
			mctx.Free()
		},
	}, nil
}

// malgoMic captures PCM16 from the default input device.
type malgoMic struct {
	ctx *malgo.AllocatedContext
}

func (m *malgoMic) Open(ctx context.Context, cfg live.AudioConfig, onPCM func([]byte)) (io.Closer, error) {
	dc := malgo.DefaultDeviceConfig(malgo.Capture)
	dc.Capture.Format = malgo.FormatS16
	dc.Capture.Channels = uint32(cfg.Channels)
	dc.SampleRate = uint32(cfg.SampleRate)
	dc.PeriodSizeInMilliseconds = 20

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, in []byte, _ uint32) {
			if len(in) == 0 || ctx.Err() != nil {
				return
			}
			// malgo reuses the buffer after the callback returns.
			onPCM(append([]byte(nil), in...))
		},
	}
	dev, err := malgo.InitDevice(m.ctx.Context, dc, callbacks)
	if err != nil {
		return nil, core.NewMicrophoneError("open capture device", err)
	}
	if err := dev.Start(); err != nil {
		dev.Uninit()
		return nil, core.NewMicrophoneError("start capture device", err)
	}
	return &captureStream{dev: dev}, nil
}

type captureStream struct {
	once sync.Once
	dev  *malgo.Device
}

func (s *captureStream) Close() error {
	var err error
	s.once.Do(func() {
		err = s.dev.Stop()
		s.dev.Uninit()
	})
	return err
}

// otoPlayer plays WAV clips through the default output device. The oto
// context is created on first use so a headless server never touches the
// speaker.
type otoPlayer struct {
	logger *slog.Logger

	once    sync.Once
	ctx     *oto.Context
	initErr error
}

func (p *otoPlayer) context() (*oto.Context, error) {
	p.once.Do(func() {
		octx, ready, err := oto.NewContext(&oto.NewContextOptions{
			SampleRate:   playbackRate,
			ChannelCount: playbackChannels,
			Format:       oto.FormatSignedInt16LE,
			BufferSize:   100 * time.Millisecond,
		})
		if err != nil {
			p.initErr = fmt.Errorf("init playback: %w", err)
			return
		}
		<-ready
		p.ctx = octx
	})
	return p.ctx, p.initErr
}

func (p *otoPlayer) Play(ctx context.Context, clip *tts.Synthesis) error {
	pcm, format, err := live.DecodeWAV(clip.Audio)
	if err != nil {
		return fmt.Errorf("play %s clip from %s: %w", clip.Format, clip.Provider, err)
	}
	octx, err := p.context()
	if err != nil {
		return err
	}

	player := octx.NewPlayer(bytes.NewReader(live.ResampleMono(pcm, format, playbackRate)))
	defer func() {
		if err := player.Close(); err != nil {
			p.logger.Debug("close player", "error", err)
		}
	}()
	player.Play()

	ticker := time.NewTicker(playbackPoll)
	defer ticker.Stop()
	for player.IsPlaying() {
		select {
		case <-ctx.Done():
			player.Pause()
			return nil
		case <-ticker.C:
		}
	}
	return player.Err()
}
