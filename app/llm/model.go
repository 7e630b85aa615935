// Package llm scores shortlisted articles with a language model and parses
// the model's JSON verdicts.
package llm

import (
	"context"
	"errors"
)

// ErrModelUnavailable means no model backend is configured.
var ErrModelUnavailable = errors.New("llm model unavailable")

// Params bound a single generation.
type Params struct {
	MaxTokens   int
	Temperature float64
	TopP        float64
	Stop        []string
}

func DefaultParams() Params {
	return Params{
		MaxTokens:   128,
		Temperature: 0.2,
		TopP:        0.9,
		Stop:        []string{"\n\n\n"},
	}
}

// Model is a text completion backend. Load is called once per scoring run
// before any other method.
type Model interface {
	Load(ctx context.Context) error
	CountTokens(ctx context.Context, text string) (int, error)
	Complete(ctx context.Context, prompt string, params Params) (string, error)
}
