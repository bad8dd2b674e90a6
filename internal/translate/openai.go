package translate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/nadzzz/linguabridge/internal/config"
	"github.com/nadzzz/linguabridge/internal/language"
)

// OpenAIClient translates with an OpenAI chat completion model.
type OpenAIClient struct {
	client *goopenai.Client
	model  string
}

// NewOpenAIClient creates a chat-based translator from config.
func NewOpenAIClient(cfg config.OpenAIConfig) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai translation requires an API key (set OPENAI_API_KEY)")
	}
	clientCfg := goopenai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	model := cfg.Model
	if model == "" {
		model = goopenai.GPT4oMini
	}
	return &OpenAIClient{client: goopenai.NewClientWithConfig(clientCfg), model: model}, nil
}

// Name returns the backend identifier.
func (c *OpenAIClient) Name() string { return "openai" }

// Translate implements Translator.
func (c *OpenAIClient) Translate(ctx context.Context, text string, source, target language.Tag) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model: c.model,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleSystem, Content: systemPrompt(source, target)},
			{Role: goopenai.ChatMessageRoleUser, Content: text},
		},
		Temperature: 0.2,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices returned from chat API")
	}

	out := strings.TrimSpace(resp.Choices[0].Message.Content)
	slog.Debug("openai translation complete", "model", c.model, "target_lang", target, "tokens", resp.Usage.TotalTokens)
	return out, nil
}
