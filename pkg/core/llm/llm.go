// Package llm talks to the language-model agent that voices the AI seat.
package llm

import (
	"context"

	"github.com/vango-go/vai-spy/pkg/core/types"
)

const (
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 120
)

// Request is a single completion request.
type Request struct {
	Messages    []types.Message
	Temperature float64
	MaxTokens   int
}

// Completer returns the assistant text for a request.
type Completer interface {
	Name() string
	Complete(ctx context.Context, req Request) (string, error)
}

func (r Request) withDefaults() Request {
	if r.Temperature <= 0 {
		r.Temperature = DefaultTemperature
	}
	if r.MaxTokens <= 0 {
		r.MaxTokens = DefaultMaxTokens
	}
	return r
}
