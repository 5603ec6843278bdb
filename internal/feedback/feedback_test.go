package feedback

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestFirstOf_CallWins(t *testing.T) {
	got, err := FirstOf(context.Background(), time.Second, func(context.Context) (string, error) {
		return "done", nil
	})
	if err != nil || got != "done" {
		t.Fatalf("FirstOf = %q, %v; want done, nil", got, err)
	}
}

func TestFirstOf_TimeoutWins(t *testing.T) {
	cancelled := make(chan struct{})
	start := time.Now()

	_, err := FirstOf(context.Background(), 20*time.Millisecond, func(ctx context.Context) (int, error) {
		<-ctx.Done()
		close(cancelled)
		return 0, ctx.Err()
	})
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("FirstOf took %s", elapsed)
	}

	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatal("abandoned call was not cancelled")
	}
}

func TestFirstOf_ParentCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := FirstOf(ctx, time.Second, func(ctx context.Context) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestGenerator_Explain(t *testing.T) {
	never := ExplainerFunc(func(ctx context.Context, _, _ int, _ string) (string, error) {
		// Ignores cancellation, like a collaborator that never resolves.
		select {}
	})

	tests := []struct {
		name      string
		explainer Explainer
		want      string
	}{
		{"success", ExplainerFunc(func(context.Context, int, int, string) (string, error) {
			return "  Bagus sekali!  ", nil
		}), "Bagus sekali!"},
		{"error falls back", ExplainerFunc(func(context.Context, int, int, string) (string, error) {
			return "", errors.New("quota exceeded")
		}), FallbackText},
		{"empty falls back", ExplainerFunc(func(context.Context, int, int, string) (string, error) {
			return "   ", nil
		}), FallbackText},
		{"never resolves", never, FallbackText},
		{"nil explainer", nil, FallbackText},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			g := NewGenerator(tc.explainer, zerolog.Nop(), WithTimeout(30*time.Millisecond))

			start := time.Now()
			got := g.Explain(context.Background(), 7, 13, "Biology")
			if got != tc.want {
				t.Fatalf("Explain = %q, want %q", got, tc.want)
			}
			if elapsed := time.Since(start); elapsed > time.Second {
				t.Fatalf("Explain blocked for %s", elapsed)
			}
		})
	}
}

func TestGenerator_CustomFallback(t *testing.T) {
	g := NewGenerator(nil, zerolog.Nop(), WithFallback("Terus belajar!"))
	if got := g.Explain(context.Background(), 1, 2, "Math"); got != "Terus belajar!" {
		t.Fatalf("Explain = %q", got)
	}
}

func TestGemini_Unconfigured(t *testing.T) {
	g, err := NewGemini(context.Background(), "", "", zerolog.Nop())
	if err != nil {
		t.Fatalf("NewGemini: %v", err)
	}
	defer g.Close()

	if _, err := g.ExplainPerformance(context.Background(), 1, 2, "Math"); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("err = %v, want ErrNotConfigured", err)
	}
}

func TestPerformancePrompt(t *testing.T) {
	p := performancePrompt(7, 13, "Biology")
	if !strings.Contains(p, "7 out of 13") || !strings.Contains(p, "Biology") {
		t.Fatalf("prompt missing score or subject: %s", p)
	}
	if !strings.Contains(p, "Bahasa Indonesia") {
		t.Fatalf("prompt does not ask for Indonesian: %s", p)
	}
}

func TestGenerator_FallbackIsIndonesian(t *testing.T) {
	g := NewGenerator(nil, zerolog.Nop(), WithFallback(""))
	got := g.Explain(context.Background(), 3, 10, "Math")
	if got != FallbackText || !strings.Contains(got, "terus berlatih") {
		t.Fatalf("fallback = %q", got)
	}
}
