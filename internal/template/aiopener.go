package template

import (
	"context"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// FallbackOpener is returned whenever the AI call fails, per spec.md §4.4:
// "aiOpener -> external AI call; on failure returns 'Hi! Let's connect.'".
// Exported so callers that wrap Generate (e.g. to first load the lead it
// needs context for) can fall back to the exact same text on their own
// failure paths.
const FallbackOpener = "Hi! Let's connect."

const fallbackOpener = FallbackOpener

// AIOpener generates a personalized opening line via Gemini. Instances are
// safe to share across goroutines; the underlying genai.Client is.
type AIOpener struct {
	model *genai.GenerativeModel
}

func NewAIOpener(ctx context.Context, apiKey string) (*AIOpener, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("genai client: %w", err)
	}
	return &AIOpener{model: client.GenerativeModel("gemini-1.5-flash")}, nil
}

func (a *AIOpener) Generate(ctx context.Context, leadContext string) (string, error) {
	prompt := fmt.Sprintf("Write one short, friendly opening sentence for a cold outreach email to: %s", leadContext)

	resp, err := a.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return fallbackOpener, err
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return fallbackOpener, fmt.Errorf("empty generation response")
	}

	if text, ok := resp.Candidates[0].Content.Parts[0].(genai.Text); ok {
		return string(text), nil
	}
	return fallbackOpener, fmt.Errorf("unexpected response part type")
}
