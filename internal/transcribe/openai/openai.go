// Package openai implements the speech Recognizer with OpenAI's Audio
// Transcription API (whisper-1 / gpt-4o-transcribe).
package openai

import (
	"context"
	"fmt"
	"log/slog"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/nadzzz/linguabridge/internal/audio"
	"github.com/nadzzz/linguabridge/internal/config"
	"github.com/nadzzz/linguabridge/internal/transcribe"
)

// Recognizer transcribes audio files through the OpenAI API.
type Recognizer struct {
	client *goopenai.Client
	model  string
}

// New creates a recognizer from config.
func New(cfg config.OpenAIConfig) (*Recognizer, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai transcription requires an API key (set OPENAI_API_KEY)")
	}
	clientCfg := goopenai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	model := cfg.Model
	if model == "" {
		model = goopenai.Whisper1
	}
	return &Recognizer{
		client: goopenai.NewClientWithConfig(clientCfg),
		model:  model,
	}, nil
}

// Name returns the backend identifier.
func (r *Recognizer) Name() string { return "openai" }

// Recognize uploads clip and returns its transcript.
func (r *Recognizer) Recognize(ctx context.Context, clip audio.Payload, opts transcribe.Opts) (string, error) {
	req := goopenai.AudioRequest{
		Model:    r.model,
		FilePath: clip.Path,
		Language: string(opts.Language),
		Prompt:   opts.Prompt,
	}

	resp, err := r.client.CreateTranscription(ctx, req)
	if err != nil {
		return "", fmt.Errorf("transcription request: %w", err)
	}

	slog.Debug("openai transcription complete", "model", r.model, "language", opts.Language, "text_length", len(resp.Text))
	return resp.Text, nil
}

// Close is a no-op for the OpenAI recognizer.
func (r *Recognizer) Close() error { return nil }
