package feedback

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"
)

// ErrNotConfigured is returned by a Gemini explainer created without an API key.
var ErrNotConfigured = errors.New("feedback: gemini api key not configured")

// DefaultGeminiModel is used when no model name is configured.
const DefaultGeminiModel = "gemini-1.5-flash"

// Gemini explains exam performance using the Gemini API.
type Gemini struct {
	client *genai.Client
	model  *genai.GenerativeModel
	log    zerolog.Logger
}

// NewGemini creates a Gemini explainer. With an empty apiKey the explainer is
// returned unconfigured and every call fails with ErrNotConfigured.
func NewGemini(ctx context.Context, apiKey, modelName string, log zerolog.Logger) (*Gemini, error) {
	g := &Gemini{log: log.With().Str("component", "gemini").Logger()}
	if apiKey == "" {
		g.log.Warn().Msg("GEMINI_API_KEY is not set, feedback will use the fallback text")
		return g, nil
	}
	if modelName == "" {
		modelName = DefaultGeminiModel
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	m := client.GenerativeModel(modelName)
	m.SetTemperature(0.7)
	m.SetMaxOutputTokens(256)

	g.client = client
	g.model = m
	return g, nil
}

// ExplainPerformance asks the model for two or three encouraging sentences.
func (g *Gemini) ExplainPerformance(ctx context.Context, score, total int, subject string) (string, error) {
	if g.model == nil {
		return "", ErrNotConfigured
	}

	resp, err := g.model.GenerateContent(ctx, genai.Text(performancePrompt(score, total, subject)))
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errors.New("gemini returned no candidates")
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			b.WriteString(string(txt))
		}
	}
	if b.Len() == 0 {
		return "", errors.New("gemini returned empty content")
	}
	return b.String(), nil
}

// Close releases the underlying client.
func (g *Gemini) Close() error {
	if g.client == nil {
		return nil
	}
	return g.client.Close()
}

func performancePrompt(score, total int, subject string) string {
	return fmt.Sprintf(`You are a supportive school teacher.
A student just finished a %s exam and scored %d out of %d points.
Write two or three short sentences of feedback: acknowledge the result honestly,
name one concrete way to improve in %s, and end on an encouraging note.
Write in Bahasa Indonesia. Plain text only, no lists or headings.`, subject, score, total, subject)
}
