package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nadzzz/linguabridge/internal/audio"
	"github.com/nadzzz/linguabridge/internal/config"
	"github.com/nadzzz/linguabridge/internal/detect"
	"github.com/nadzzz/linguabridge/internal/dispatch"
	"github.com/nadzzz/linguabridge/internal/language"
	"github.com/nadzzz/linguabridge/internal/override"
	"github.com/nadzzz/linguabridge/internal/transcribe"
	localstt "github.com/nadzzz/linguabridge/internal/transcribe/local"
	openaistt "github.com/nadzzz/linguabridge/internal/transcribe/openai"
	"github.com/nadzzz/linguabridge/internal/translate"
	"github.com/nadzzz/linguabridge/internal/transport"
	grpctransport "github.com/nadzzz/linguabridge/internal/transport/grpc"
	httptransport "github.com/nadzzz/linguabridge/internal/transport/http"
	telegramtransport "github.com/nadzzz/linguabridge/internal/transport/telegram"
	"github.com/nadzzz/linguabridge/internal/tts"
	openaitts "github.com/nadzzz/linguabridge/internal/tts/openai"
	"github.com/nadzzz/linguabridge/internal/tts/piper"
)

// app holds the pipeline and everything that must be closed on shutdown.
type app struct {
	dispatcher  *dispatch.Dispatcher
	transcriber *transcribe.Pipeline
	synthesizer tts.Synthesizer
}

func (a *app) Close() {
	if err := a.transcriber.Close(); err != nil {
		slog.Warn("closing transcriber", "error", err)
	}
	if err := a.synthesizer.Close(); err != nil {
		slog.Warn("closing synthesizer", "error", err)
	}
}

// build wires the pipeline from configuration.
func build(ctx context.Context, cfg *config.Config) (*app, error) {
	policy, err := buildPolicy(cfg.Languages)
	if err != nil {
		return nil, err
	}

	detector, err := buildDetector(cfg.Detector)
	if err != nil {
		return nil, err
	}

	conv, err := buildConverter(cfg.Audio)
	if err != nil {
		return nil, err
	}

	rec, err := buildRecognizer(cfg.Transcription)
	if err != nil {
		return nil, err
	}
	input, ok := audio.ParseFormat(cfg.Transcription.InputFormat)
	if !ok {
		return nil, fmt.Errorf("unknown transcription input format %q", cfg.Transcription.InputFormat)
	}
	transcriber := transcribe.NewPipeline(conv, rec, input, cfg.Transcription.Timeout).
		WithPrompt(cfg.Transcription.Prompt)

	translator, err := buildTranslator(ctx, cfg.Translator)
	if err != nil {
		return nil, err
	}

	synth, err := buildSynthesizer(cfg.TTS)
	if err != nil {
		return nil, err
	}
	if err := tts.CheckCoverage(synth, policy.Targets()); err != nil {
		return nil, err
	}
	voiceFormat, ok := audio.ParseFormat(cfg.TTS.VoiceFormat)
	if !ok {
		return nil, fmt.Errorf("unknown voice format %q", cfg.TTS.VoiceFormat)
	}

	scratch, err := audio.NewScratch(cfg.Audio.ScratchDir)
	if err != nil {
		return nil, err
	}

	d, err := dispatch.New(dispatch.Options{
		Policy:                policy,
		Detector:              detector,
		Overrides:             override.NewMemoryStore(),
		Transcriber:           transcriber,
		Translator:            translator,
		Synthesizer:           synth,
		Converter:             conv,
		Scratch:               scratch,
		VoiceFormat:           voiceFormat,
		TranslateFromDetected: cfg.Translator.Source == "detected",
		Commands:              cfg.Commands,
		Messages:              cfg.Messages,
	})
	if err != nil {
		return nil, err
	}

	slog.Info("pipeline ready",
		"detector", cfg.Detector.Backend,
		"recognizer", rec.Name(),
		"converter", conv.Name(),
		"translator", translator.Name(),
		"tts", synth.Name(),
		"scratch", scratch.Dir())

	return &app{dispatcher: d, transcriber: transcriber, synthesizer: synth}, nil
}

func buildPolicy(cfg config.LanguagesConfig) (*language.Policy, error) {
	routes := make(map[language.Tag]language.Tag, len(cfg.Routes))
	for src, dst := range cfg.Routes {
		routes[language.Parse(src)] = language.Parse(dst)
	}
	return language.NewPolicy(routes, language.Parse(cfg.Fallback))
}

func buildDetector(cfg config.DetectorConfig) (detect.Detector, error) {
	switch cfg.Backend {
	case "lingua":
		return detect.NewLingua(cfg.Lingua.Languages, cfg.Lingua.MinRelativeDistance)
	case "libretranslate":
		return detect.NewLibreTranslate(cfg.LibreTranslate.URL, cfg.LibreTranslate.APIKey), nil
	default:
		return nil, fmt.Errorf("unknown detector backend %q", cfg.Backend)
	}
}

func buildConverter(cfg config.AudioConfig) (audio.Converter, error) {
	switch cfg.Converter {
	case "ffmpeg":
		ff := audio.NewFFmpeg(cfg.FFmpegPath)
		if err := ff.Available(); err != nil {
			return nil, err
		}
		return ff, nil
	case "opus":
		return audio.NewOpus(), nil
	case "none":
		return audio.Passthrough{}, nil
	default:
		return nil, fmt.Errorf("unknown audio converter %q", cfg.Converter)
	}
}

func buildRecognizer(cfg config.TranscriptionConfig) (transcribe.Recognizer, error) {
	switch cfg.Backend {
	case "openai":
		return openaistt.New(cfg.OpenAI)
	case "local":
		return localstt.New(cfg.Local)
	default:
		return nil, fmt.Errorf("unknown transcription backend %q", cfg.Backend)
	}
}

func buildTranslator(ctx context.Context, cfg config.TranslatorConfig) (translate.Translator, error) {
	var backend translate.Translator
	switch cfg.Backend {
	case "libretranslate":
		lt := translate.NewLibreTranslateClient(cfg.LibreTranslate.URL, cfg.LibreTranslate.APIKey)
		if err := lt.CheckHealth(ctx); err != nil {
			slog.Warn("libretranslate not reachable yet", "url", cfg.LibreTranslate.URL, "error", err)
		}
		backend = lt
	case "openai":
		c, err := translate.NewOpenAIClient(cfg.OpenAI)
		if err != nil {
			return nil, err
		}
		backend = c
	case "gemini":
		c, err := translate.NewGeminiClient(ctx, cfg.Gemini, "")
		if err != nil {
			return nil, err
		}
		backend = c
	default:
		return nil, fmt.Errorf("unknown translator backend %q", cfg.Backend)
	}

	var t translate.Translator = translate.WithTimeout(backend, cfg.Timeout)
	if cfg.Breaker.Enabled {
		t = translate.NewBreaker(t, cfg.Breaker)
	}
	return t, nil
}

func buildSynthesizer(cfg config.TTSConfig) (tts.Synthesizer, error) {
	var s tts.Synthesizer
	switch cfg.Backend {
	case "piper":
		s = piper.New(cfg.Piper)
	case "openai":
		o, err := openaitts.New(cfg.OpenAI)
		if err != nil {
			return nil, err
		}
		s = o
	default:
		return nil, fmt.Errorf("unknown tts backend %q", cfg.Backend)
	}
	return tts.WithTimeout(s, cfg.Timeout), nil
}

func buildTransports(cfg *config.Config) []transport.Transport {
	var transports []transport.Transport
	if cfg.Transports.Telegram.Enabled {
		transports = append(transports, telegramtransport.New(cfg.Transports.Telegram, nil))
	}
	if cfg.Transports.HTTP.Enabled {
		transports = append(transports, httptransport.New(cfg.Transports.HTTP.Port))
	}
	if cfg.Transports.GRPC.Enabled {
		transports = append(transports, grpctransport.New(cfg.Transports.GRPC.Port))
	}
	return transports
}

var errNoTransports = errors.New("no transports enabled")
