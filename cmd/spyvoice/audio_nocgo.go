//go:build !cgo

package main

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/vango-go/vai-spy/pkg/core"
	"github.com/vango-go/vai-spy/pkg/core/live"
	"github.com/vango-go/vai-spy/pkg/core/voice/tts"
)

var errNoAudio = errors.New("built without cgo; audio devices are unavailable")

func openAudio(logger *slog.Logger) (audioDevices, error) {
	logger.Warn("audio devices unavailable", "error", errNoAudio)
	return audioDevices{Mic: noMic{}, Player: noPlayer{}}, nil
}

type noMic struct{}

func (noMic) Open(context.Context, live.AudioConfig, func([]byte)) (io.Closer, error) {
	return nil, core.NewMicrophoneError("open capture device", errNoAudio)
}

type noPlayer struct{}

func (noPlayer) Play(context.Context, *tts.Synthesis) error {
	return errNoAudio
}
