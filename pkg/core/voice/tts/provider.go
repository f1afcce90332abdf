// Package tts renders AI lines to playable audio clips.
package tts

import "context"

// Provider is a synthesis backend. Synthesize returns the whole clip at once.
type Provider interface {
	Name() string
	Synthesize(ctx context.Context, text string, opts SynthesizeOptions) (*Synthesis, error)
}

// SynthesizeOptions carry per-line overrides.
type SynthesizeOptions struct {
	Voice    string  // Voice identifier override
	Language string  // Language code ("ar", "en")
	Format   string  // Output format: "wav" or "mp3"
	Speed    float64 // Speed multiplier (0.6-1.5, default 1.0)
}

// Synthesis is a finished clip.
type Synthesis struct {
	Audio    []byte
	Format   string // Audio format
	MimeType string // Content type reported by the provider
	Provider string
}

func getFormat(format string) string {
	switch format {
	case "mp3", "wav":
		return format
	default:
		return "wav"
	}
}
