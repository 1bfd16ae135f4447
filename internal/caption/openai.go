package caption

import (
	"context"
	"errors"
	"fmt"
	"time"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/rs/zerolog/log"
)

// DefaultOpenAIModel is the chat model used when none is configured.
const DefaultOpenAIModel = "gpt-4o-mini"

// DefaultTemperature is the sampling temperature for caption generation.
const DefaultTemperature = 0.7

// OpenAI generates captions with an OpenAI-compatible chat completions API.
type OpenAI struct {
	client      openai.Client
	model       string
	temperature float64
}

var _ Generator = (*OpenAI)(nil)

// OpenAIConfig configures an OpenAI generator. BaseURL is optional and points
// the client at any OpenAI-compatible endpoint.
type OpenAIConfig struct {
	APIKey      string
	Model       string
	BaseURL     string
	Temperature float64
	Timeout     time.Duration
}

// NewOpenAI returns an OpenAI generator. The client never retries on its own;
// a failed call is reported to the user who may try again.
func NewOpenAI(cfg OpenAIConfig) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai api key missing")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultOpenAIModel
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = DefaultTemperature
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}

	return &OpenAI{
		client:      openai.NewClient(opts...),
		model:       cfg.Model,
		temperature: cfg.Temperature,
	}, nil
}

// Model returns the configured model name.
func (o *OpenAI) Model() string { return o.model }

func (o *OpenAI) Complete(ctx context.Context, p Prompt) (string, error) {
	log.Debug().
		Str("model", o.model).
		Int("prompt_length", len(p.User)).
		Msg("Starting OpenAI chat completion")

	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(o.model),
		Messages:    messages(p),
		Temperature: openai.Float(o.temperature),
	})
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return "", fmt.Errorf("openai: status %d: %w", apiErr.StatusCode, err)
		}
		return "", fmt.Errorf("openai: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai: empty choices")
	}
	return resp.Choices[0].Message.Content, nil
}

func messages(p Prompt) []openai.ChatCompletionMessageParamUnion {
	var msgs []openai.ChatCompletionMessageParamUnion
	if p.System != "" {
		msgs = append(msgs, openai.SystemMessage(p.System))
	}
	return append(msgs, openai.UserMessage(p.User))
}
