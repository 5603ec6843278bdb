package feedback

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// DefaultTimeout bounds how long a submission waits for feedback.
const DefaultTimeout = 3 * time.Second

// FallbackText is shown when no generated feedback is available.
const FallbackText = "Kerja bagus! Pelajari kembali soal yang belum tepat dan terus berlatih untuk meningkatkan nilaimu."

// Explainer is an external text-generation collaborator.
type Explainer interface {
	ExplainPerformance(ctx context.Context, score, total int, subject string) (string, error)
}

// ExplainerFunc adapts a function to the Explainer interface.
type ExplainerFunc func(ctx context.Context, score, total int, subject string) (string, error)

// ExplainPerformance calls f.
func (f ExplainerFunc) ExplainPerformance(ctx context.Context, score, total int, subject string) (string, error) {
	return f(ctx, score, total, subject)
}

// Generator wraps an Explainer with a timeout and a fallback text.
// Explain never fails.
type Generator struct {
	explainer Explainer
	timeout   time.Duration
	fallback  string
	log       zerolog.Logger
}

// Option configures a Generator.
type Option func(*Generator)

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(g *Generator) {
		if d > 0 {
			g.timeout = d
		}
	}
}

// WithFallback overrides FallbackText.
func WithFallback(text string) Option {
	return func(g *Generator) {
		if text != "" {
			g.fallback = text
		}
	}
}

// NewGenerator creates a Generator. A nil explainer always yields the fallback.
func NewGenerator(explainer Explainer, log zerolog.Logger, opts ...Option) *Generator {
	g := &Generator{
		explainer: explainer,
		timeout:   DefaultTimeout,
		fallback:  FallbackText,
		log:       log.With().Str("component", "feedback").Logger(),
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Explain returns generated feedback, or the fallback when the explainer
// fails, returns nothing, or is slower than the timeout.
func (g *Generator) Explain(ctx context.Context, score, total int, subject string) string {
	if g.explainer == nil {
		return g.fallback
	}

	text, err := FirstOf(ctx, g.timeout, func(ctx context.Context) (string, error) {
		return g.explainer.ExplainPerformance(ctx, score, total, subject)
	})
	if err != nil {
		ev := g.log.Warn().Err(err).Str("subject", subject)
		if errors.Is(err, ErrTimeout) {
			ev = ev.Dur("timeout", g.timeout)
		}
		ev.Msg("Feedback unavailable, using fallback")
		return g.fallback
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return g.fallback
	}
	return text
}
