// Package stt turns finalized microphone chunks into transcripts.
package stt

import (
	"context"
	"io"
)

// Provider is a recognizer backend. Name identifies it in capability reports.
type Provider interface {
	Name() string
	Transcribe(ctx context.Context, audio io.Reader, opts TranscribeOptions) (*Transcript, error)
}

// TranscribeOptions are hints passed with each chunk.
type TranscribeOptions struct {
	Language   string // ISO language code hint ("ar", "en")
	Format     string // Audio format hint (wav, webm, ...)
	SampleRate int    // Audio sample rate in Hz
}

// Transcript is one recognized utterance.
type Transcript struct {
	Text       string
	Confidence float64 // 0..1; 1 when the provider reports none
	Provider   string
}

// clampConfidence keeps provider confidences inside [0, 1].
func clampConfidence(c float64) float64 {
	switch {
	case c < 0:
		return 0
	case c > 1:
		return 1
	default:
		return c
	}
}

// getExtension picks the upload filename suffix; unknown formats go up as wav.
func getExtension(format string) string {
	switch format {
	case "wav", "mp3", "webm", "ogg", "flac", "m4a", "mp4", "mpeg", "mpga", "oga":
		return format
	default:
		return "wav"
	}
}
