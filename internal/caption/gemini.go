package caption

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"google.golang.org/genai"
)

// DefaultGeminiModel is the Gemini model used when none is configured.
const DefaultGeminiModel = "gemini-2.5-flash"

// Gemini generates captions with the Gemini API.
type Gemini struct {
	client      *genai.Client
	model       string
	temperature float32
}

var _ Generator = (*Gemini)(nil)

// NewGemini wraps an existing client. An empty model selects DefaultGeminiModel.
func NewGemini(client *genai.Client, model string) *Gemini {
	if model == "" {
		model = DefaultGeminiModel
	}
	return &Gemini{client: client, model: model, temperature: DefaultTemperature}
}

// NewGeminiFromKey creates a Gemini API client for apiKey.
func NewGeminiFromKey(ctx context.Context, apiKey, model string) (*Gemini, error) {
	if apiKey == "" {
		return nil, errors.New("gemini api key missing")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return NewGemini(client, model), nil
}

// Model returns the configured model name.
func (g *Gemini) Model() string { return g.model }

func (g *Gemini) Complete(ctx context.Context, p Prompt) (string, error) {
	temp := g.temperature
	config := &genai.GenerateContentConfig{Temperature: &temp}
	if p.System != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: p.System}},
		}
	}

	log.Debug().
		Str("model", g.model).
		Int("prompt_length", len(p.User)).
		Msg("Starting Gemini API call for caption generation")

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(p.User), config)
	if err != nil {
		return "", fmt.Errorf("gemini: %w", err)
	}
	if resp == nil {
		return "", errors.New("gemini: empty response")
	}
	text := resp.Text()
	if text == "" {
		return "", errors.New("gemini: response has no text")
	}
	return text, nil
}
