package tts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/vango-go/vai-spy/pkg/core"
	"github.com/vango-go/vai-spy/pkg/core/types"
)

const (
	nativeName     = "device"
	nativeBaseWPM  = 175
	nativeMinBytes = 44
)

var nativeCandidates = []string{"espeak-ng", "espeak"}

// NativeProvider synthesizes speech with the platform's espeak engine, which
// writes a WAV stream to stdout.
type NativeProvider struct {
	binary   string
	lookPath func(string) (string, error)
}

// NewNative creates a native provider. An empty binary probes PATH for
// espeak-ng, then espeak.
func NewNative(binary string) *NativeProvider {
	return &NativeProvider{
		binary:   strings.TrimSpace(binary),
		lookPath: exec.LookPath,
	}
}

// Name returns the provider identifier.
func (n *NativeProvider) Name() string {
	return nativeName
}

// Detect reports whether a speech engine binary can be found.
func (n *NativeProvider) Detect() types.Capability {
	path, err := n.resolve()
	if err != nil {
		return types.Unavailable(err.Error())
	}
	return types.Available(path)
}

func (n *NativeProvider) resolve() (string, error) {
	if n == nil {
		return "", errors.New("no native synthesizer")
	}
	candidates := nativeCandidates
	if n.binary != "" {
		candidates = []string{n.binary}
	}
	for _, c := range candidates {
		if path, err := n.lookPath(c); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("speech engine not found (tried %s)", strings.Join(candidates, ", "))
}

// Synthesize renders text to WAV audio.
func (n *NativeProvider) Synthesize(ctx context.Context, text string, opts SynthesizeOptions) (*Synthesis, error) {
	path, err := n.resolve()
	if err != nil {
		return nil, core.NewUnsupportedError(err.Error())
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return &Synthesis{Format: "wav", MimeType: "audio/wav", Provider: n.Name()}, nil
	}

	cmd := exec.CommandContext(ctx, path, n.args(text, opts)...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &core.Error{
			Type:     core.ErrUnknown,
			Message:  strings.TrimSpace(stderr.String()),
			Provider: nativeName + "-tts",
			Cause:    err,
		}
	}
	if stdout.Len() < nativeMinBytes {
		return nil, core.NewInvalidResponseError("speech engine produced no audio")
	}
	return &Synthesis{
		Audio:    stdout.Bytes(),
		Format:   "wav",
		MimeType: "audio/wav",
		Provider: n.Name(),
	}, nil
}

func (n *NativeProvider) args(text string, opts SynthesizeOptions) []string {
	args := []string{"--stdout"}
	voice := opts.Voice
	if voice == "" {
		voice = opts.Language
	}
	if voice != "" {
		args = append(args, "-v", voice)
	}
	if opts.Speed > 0 {
		args = append(args, "-s", strconv.Itoa(int(nativeBaseWPM*opts.Speed)))
	}
	return append(args, text)
}
