package core

import (
	"context"
	"errors"
	"fmt"
)

// ModelClient is the raw generation/embedding service. Implementations
// classify their failures by returning a *CallError.
type ModelClient interface {
	GenerateContent(ctx context.Context, model, prompt string) (string, error)
	EmbedContent(ctx context.Context, text string) ([]float32, error)
}

// Generator produces text for a prompt, with retry and fallback applied.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Embedder maps text to a vector of fixed Dimension. It never fails: an
// outage yields the zero vector.
type Embedder interface {
	Embed(ctx context.Context, text string) []float32
	Dimension() int
}

// CallErrorKind classifies a failed model call.
type CallErrorKind int

const (
	CallErrorOther CallErrorKind = iota
	CallErrorRateLimited
	CallErrorModelUnavailable
)

func (k CallErrorKind) String() string {
	switch k {
	case CallErrorRateLimited:
		return "rate_limited"
	case CallErrorModelUnavailable:
		return "model_unavailable"
	default:
		return "other"
	}
}

// CallError wraps a model service error with its classification.
type CallError struct {
	Kind CallErrorKind
	Err  error
}

func (e *CallError) Error() string {
	return fmt.Sprintf("model call failed (%s): %v", e.Kind, e.Err)
}

func (e *CallError) Unwrap() error { return e.Err }

// KindOfCall returns the classification carried by err, or CallErrorOther.
func KindOfCall(err error) CallErrorKind {
	var ce *CallError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return CallErrorOther
}
