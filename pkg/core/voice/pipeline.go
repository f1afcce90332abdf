// Package voice coordinates the speech providers: preferred-provider ordering,
// per-operation fallback, capability probing, and single-session playback.
package voice

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/vango-go/vai-spy/pkg/core"
	"github.com/vango-go/vai-spy/pkg/core/types"
	"github.com/vango-go/vai-spy/pkg/core/voice/stt"
	"github.com/vango-go/vai-spy/pkg/core/voice/tts"
)

// Preference names the provider family tried first.
type Preference string

const (
	PreferCloud  Preference = "cloud"
	PreferDevice Preference = "device"
)

// ParsePreference normalizes a settings value; unknown values mean cloud.
func ParsePreference(s string) Preference {
	switch Preference(strings.ToLower(strings.TrimSpace(s))) {
	case PreferDevice, "browser", "native":
		return PreferDevice
	default:
		return PreferCloud
	}
}

// Detector is implemented by providers that can probe platform support.
type Detector interface {
	Detect() types.Capability
}

// Configurable is implemented by providers that need endpoint configuration.
type Configurable interface {
	Configured() bool
}

// Outcome describes which provider served an operation.
type Outcome struct {
	Provider string
	// FallbackErr is the primary provider's failure when the secondary one
	// served the operation instead.
	FallbackErr error
}

// UsedFallback reports whether the secondary provider served the operation.
func (o Outcome) UsedFallback() bool {
	return o.FallbackErr != nil
}

// Pipeline handles STT and TTS with cloud-first fallback.
type Pipeline struct {
	cloudSTT  stt.Provider
	deviceSTT stt.Provider
	cloudTTS  tts.Provider
	deviceTTS tts.Provider
}

// NewPipeline creates a voice pipeline. Any provider may be nil.
func NewPipeline(cloudSTT, deviceSTT stt.Provider, cloudTTS, deviceTTS tts.Provider) *Pipeline {
	return &Pipeline{
		cloudSTT:  cloudSTT,
		deviceSTT: deviceSTT,
		cloudTTS:  cloudTTS,
		deviceTTS: deviceTTS,
	}
}

// Capabilities reports the availability of each provider slot.
func (p *Pipeline) Capabilities() map[string]types.Capability {
	return map[string]types.Capability{
		"stt.cloud":  capabilityOf(p.cloudSTT),
		"stt.device": capabilityOf(p.deviceSTT),
		"tts.cloud":  capabilityOf(p.cloudTTS),
		"tts.device": capabilityOf(p.deviceTTS),
	}
}

// CanTranscribe reports whether at least one STT provider is usable.
func (p *Pipeline) CanTranscribe() types.Capability {
	cloud, device := capabilityOf(p.cloudSTT), capabilityOf(p.deviceSTT)
	switch {
	case cloud.Available:
		return cloud
	case device.Available:
		return device
	default:
		return types.Unavailable(fmt.Sprintf("no speech recognizer: cloud (%s), device (%s)", cloud.Reason, device.Reason))
	}
}

func capabilityOf(p any) types.Capability {
	if p == nil {
		return types.Unavailable("not configured")
	}
	if d, ok := p.(Detector); ok {
		return d.Detect()
	}
	if c, ok := p.(Configurable); ok && !c.Configured() {
		return types.Unavailable("not configured")
	}
	if n, ok := p.(interface{ Name() string }); ok {
		return types.Available(n.Name())
	}
	return types.Available("")
}

// Transcribe runs the preferred STT provider and, on failure, the other one
// for this chunk only.
func (p *Pipeline) Transcribe(ctx context.Context, audio []byte, pref Preference, opts stt.TranscribeOptions) (*stt.Transcript, Outcome, error) {
	primary, secondary := p.cloudSTT, p.deviceSTT
	if pref == PreferDevice {
		primary, secondary = secondary, primary
	}
	if !capabilityOf(primary).Available {
		primary, secondary = secondary, nil
	}
	if primary == nil {
		return nil, Outcome{}, core.NewUnsupportedError("no speech recognizer available")
	}

	tr, err := primary.Transcribe(ctx, bytes.NewReader(audio), opts)
	if err == nil {
		return tr, Outcome{Provider: primary.Name()}, nil
	}
	if !shouldFallback(ctx, err) || secondary == nil || !capabilityOf(secondary).Available {
		return nil, Outcome{Provider: primary.Name()}, err
	}

	tr, fbErr := secondary.Transcribe(ctx, bytes.NewReader(audio), opts)
	if fbErr != nil {
		return nil, Outcome{Provider: secondary.Name(), FallbackErr: err}, fmt.Errorf("%w; fallback: %w", err, fbErr)
	}
	return tr, Outcome{Provider: secondary.Name(), FallbackErr: err}, nil
}

// Synthesize runs the preferred TTS provider and, on failure, the other one
// for this reply only.
func (p *Pipeline) Synthesize(ctx context.Context, text string, pref Preference, opts tts.SynthesizeOptions) (*tts.Synthesis, Outcome, error) {
	primary, secondary := p.cloudTTS, p.deviceTTS
	if pref == PreferDevice {
		primary, secondary = secondary, primary
	}
	if !capabilityOf(primary).Available {
		primary, secondary = secondary, nil
	}
	if primary == nil {
		return nil, Outcome{}, core.NewUnsupportedError("no speech synthesizer available")
	}

	clip, err := primary.Synthesize(ctx, text, opts)
	if err == nil {
		return clip, Outcome{Provider: primary.Name()}, nil
	}
	if !shouldFallback(ctx, err) || secondary == nil || !capabilityOf(secondary).Available {
		return nil, Outcome{Provider: primary.Name()}, err
	}

	// Device voices are named differently; never forward a cloud voice id.
	opts.Voice = ""
	clip, fbErr := secondary.Synthesize(ctx, text, opts)
	if fbErr != nil {
		return nil, Outcome{Provider: secondary.Name(), FallbackErr: err}, fmt.Errorf("%w; fallback: %w", err, fbErr)
	}
	return clip, Outcome{Provider: secondary.Name(), FallbackErr: err}, nil
}

// shouldFallback is false for cancellation and for chunks that simply held no
// speech.
func shouldFallback(ctx context.Context, err error) bool {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return false
	}
	return core.Classify(err) != core.ErrNoSpeech
}
