// Package openai implements the TTS Synthesizer with OpenAI's speech API.
package openai

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/nadzzz/linguabridge/internal/audio"
	"github.com/nadzzz/linguabridge/internal/config"
	"github.com/nadzzz/linguabridge/internal/language"
	"github.com/nadzzz/linguabridge/internal/tts"
)

// maxSpeechBytes bounds the synthesized response read into memory.
const maxSpeechBytes = 25 << 20

// Synthesizer generates Ogg/Opus speech, which Telegram plays as a voice note as-is.
type Synthesizer struct {
	client *goopenai.Client
	model  goopenai.SpeechModel
	voice  goopenai.SpeechVoice
	speed  float64
}

// New creates a speech synthesizer from config.
func New(cfg config.OpenAIConfig) (*Synthesizer, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai speech requires an API key (set OPENAI_API_KEY)")
	}
	clientCfg := goopenai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	s := &Synthesizer{
		client: goopenai.NewClientWithConfig(clientCfg),
		model:  goopenai.TTSModel1,
		voice:  goopenai.VoiceAlloy,
		speed:  cfg.Speed,
	}
	if cfg.Model != "" {
		s.model = goopenai.SpeechModel(cfg.Model)
	}
	if cfg.Voice != "" {
		s.voice = goopenai.SpeechVoice(cfg.Voice)
	}
	return s, nil
}

// Name returns the backend identifier.
func (s *Synthesizer) Name() string { return "openai" }

// Supports is always true: the voices are multilingual and follow the input text.
func (s *Synthesizer) Supports(language.Tag) bool { return true }

// Synthesize implements tts.Synthesizer.
func (s *Synthesizer) Synthesize(ctx context.Context, text string, opts tts.SynthesizeOpts) (*tts.SynthesizeResult, error) {
	if text == "" {
		return nil, fmt.Errorf("empty text for synthesis")
	}

	voice := s.voice
	if opts.Voice != "" {
		voice = goopenai.SpeechVoice(opts.Voice)
	}

	resp, err := s.client.CreateSpeech(ctx, goopenai.CreateSpeechRequest{
		Model:          s.model,
		Input:          text,
		Voice:          voice,
		ResponseFormat: goopenai.SpeechResponseFormatOpus,
		Speed:          s.speed,
	})
	if err != nil {
		return nil, fmt.Errorf("speech request: %w", err)
	}
	defer resp.Close()

	data, err := io.ReadAll(io.LimitReader(resp, maxSpeechBytes))
	if err != nil {
		return nil, fmt.Errorf("reading speech: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("speech API returned no audio")
	}

	slog.Debug("openai speech complete", "model", s.model, "voice", voice, "language", opts.Language, "bytes", len(data))
	return &tts.SynthesizeResult{
		Audio:       data,
		Format:      audio.FormatOgg,
		ContentType: audio.FormatOgg.ContentType(),
	}, nil
}

// Close is a no-op for the OpenAI synthesizer.
func (s *Synthesizer) Close() error { return nil }
