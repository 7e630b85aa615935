package llm

import (
	"fmt"
	"time"
)

// NewModel builds the configured backend. "none" or "" yields a nil model.
func NewModel(backend, endpoint, model, apiKey string, timeout time.Duration) (Model, error) {
	switch backend {
	case "", "none":
		return nil, nil
	case "llamacpp":
		return NewLlamaCpp(endpoint, timeout), nil
	case "gemini":
		return NewGemini(apiKey, model), nil
	}
	return nil, fmt.Errorf("unknown llm backend %q", backend)
}
