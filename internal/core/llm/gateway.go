package llm

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/markdave123-py/Contexta/internal/apperr"
	"github.com/markdave123-py/Contexta/internal/core"
)

const (
	defaultMaxAttempts = 5
	defaultRetryAfter  = 10 * time.Second
	defaultMaxInFlight = 8
)

// GatewayConfig tunes the retry policy around a core.ModelClient.
//
// Model:         primary generation model id.
// FallbackModel: secondary model tried once when the primary is unavailable.
// Dimension:     embedding length every Embed result is fitted to.
// MaxInFlight:   bound on concurrent outbound generate calls.
type GatewayConfig struct {
	Model         string
	FallbackModel string
	Dimension     int
	MaxInFlight   int
	MaxAttempts   int
	RetryAfter    time.Duration
}

// Gateway is the resilient wrapper around the model service. It implements
// core.Generator and core.Embedder.
type Gateway struct {
	client core.ModelClient
	cfg    GatewayConfig
	slots  *semaphore.Weighted
	log    zerolog.Logger

	sleep  func(ctx context.Context, d time.Duration) error
	jitter func() time.Duration
}

type GatewayOption func(*Gateway)

// WithSleep replaces the backoff sleep.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) GatewayOption {
	return func(g *Gateway) { g.sleep = fn }
}

// WithJitter replaces the random backoff jitter.
func WithJitter(fn func() time.Duration) GatewayOption {
	return func(g *Gateway) { g.jitter = fn }
}

func NewGateway(client core.ModelClient, cfg GatewayConfig, log zerolog.Logger, opts ...GatewayOption) (*Gateway, error) {
	if client == nil {
		return nil, errors.New("model client is nil")
	}
	if cfg.Model == "" {
		return nil, errors.New("generation model is empty")
	}
	if cfg.Dimension <= 0 {
		return nil, fmt.Errorf("embedding dimension must be positive, got %d", cfg.Dimension)
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.RetryAfter <= 0 {
		cfg.RetryAfter = defaultRetryAfter
	}
	if cfg.MaxInFlight <= 0 {
		cfg.MaxInFlight = defaultMaxInFlight
	}

	g := &Gateway{
		client: client,
		cfg:    cfg,
		slots:  semaphore.NewWeighted(int64(cfg.MaxInFlight)),
		log:    log.With().Str("component", "model_gateway").Logger(),
		sleep:  sleepContext,
		jitter: func() time.Duration { return rand.N(time.Second) },
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Generate calls the primary model. Rate-limited calls back off exponentially
// up to MaxAttempts; an unavailable model gets exactly one fallback call; any
// other failure is returned at once as a service error.
func (g *Gateway) Generate(ctx context.Context, prompt string) (string, error) {
	var lastErr error

	for attempt := 0; attempt < g.cfg.MaxAttempts; attempt++ {
		text, err := g.call(ctx, g.cfg.Model, prompt)
		if err == nil {
			return text, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}

		switch core.KindOfCall(err) {
		case core.CallErrorRateLimited:
			lastErr = err
			if attempt == g.cfg.MaxAttempts-1 {
				continue
			}
			wait := g.backoff(attempt)
			g.log.Warn().Err(err).
				Int("attempt", attempt+1).
				Int("max_attempts", g.cfg.MaxAttempts).
				Dur("wait", wait).
				Msg("rate limited, retrying")
			if err := g.sleep(ctx, wait); err != nil {
				return "", err
			}
		case core.CallErrorModelUnavailable:
			return g.fallback(ctx, prompt, err)
		default:
			return "", apperr.ServiceUnavailable(err)
		}
	}

	return "", apperr.RateLimited(g.cfg.RetryAfter,
		fmt.Errorf("rate limit exceeded after %d attempts: %w", g.cfg.MaxAttempts, lastErr))
}

func (g *Gateway) fallback(ctx context.Context, prompt string, cause error) (string, error) {
	if g.cfg.FallbackModel == "" || g.cfg.FallbackModel == g.cfg.Model {
		return "", apperr.ServiceUnavailable(cause)
	}

	g.log.Warn().Err(cause).
		Str("model", g.cfg.Model).
		Str("fallback_model", g.cfg.FallbackModel).
		Msg("model unavailable, trying fallback")

	text, err := g.call(ctx, g.cfg.FallbackModel, prompt)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", apperr.ServiceUnavailable(fmt.Errorf("fallback model %s: %w (primary: %v)", g.cfg.FallbackModel, err, cause))
	}
	return text, nil
}

// call holds a generation slot only for the duration of the outbound request,
// never across a backoff sleep.
func (g *Gateway) call(ctx context.Context, model, prompt string) (string, error) {
	if err := g.slots.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer g.slots.Release(1)

	text, err := g.client.GenerateContent(ctx, model, prompt)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

func (g *Gateway) backoff(attempt int) time.Duration {
	return time.Duration(1<<attempt)*time.Second + g.jitter()
}

// Embed returns a vector of exactly Dimension values. Failures degrade to the
// zero vector so indexing never blocks on an embedding outage.
func (g *Gateway) Embed(ctx context.Context, text string) []float32 {
	vec, err := g.client.EmbedContent(ctx, text)
	if err != nil {
		g.log.Warn().Err(err).Int("text_len", len(text)).Msg("embedding failed, using zero vector")
		return make([]float32, g.cfg.Dimension)
	}
	return fitDimension(vec, g.cfg.Dimension)
}

func (g *Gateway) Dimension() int { return g.cfg.Dimension }

func fitDimension(vec []float32, dim int) []float32 {
	if len(vec) == dim {
		return vec
	}
	out := make([]float32, dim)
	copy(out, vec)
	return out
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

var (
	_ core.Generator = (*Gateway)(nil)
	_ core.Embedder  = (*Gateway)(nil)
)
