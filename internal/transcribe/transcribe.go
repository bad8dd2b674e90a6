// Package transcribe turns voice messages into text.
//
// A Pipeline first converts the downloaded voice note into the format its
// Recognizer accepts, then asks the recognizer for a transcript. The two
// stages fail with different sentinel errors so logs can tell a broken
// audio file from a recognition outage.
package transcribe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nadzzz/linguabridge/internal/audio"
	"github.com/nadzzz/linguabridge/internal/language"
)

var (
	// ErrDecode marks a failure to convert the voice note for the recognizer.
	ErrDecode = errors.New("audio decode failed")

	// ErrRecognize marks a failure of the speech recognition backend.
	ErrRecognize = errors.New("speech recognition failed")
)

// Opts controls a single recognition call.
type Opts struct {
	// Language biases recognition toward one language. Unknown means automatic.
	Language language.Tag

	// Prompt provides context to improve recognition of domain-specific terms.
	Prompt string
}

// Recognizer is a speech-to-text backend.
type Recognizer interface {
	// Name returns the backend identifier (e.g., "openai", "local").
	Name() string

	// Recognize transcribes the audio file in clip.
	Recognize(ctx context.Context, clip audio.Payload, opts Opts) (string, error)

	// Close releases any resources held by the recognizer.
	Close() error
}

// Transcriber converts a voice payload into text.
type Transcriber interface {
	// Transcribe returns the transcript of voice. Intermediate files are
	// written into ws, which the caller owns and releases.
	Transcribe(ctx context.Context, ws *audio.Workspace, voice audio.Payload, hint language.Tag) (string, error)
}

// Pipeline is the Transcriber used by the relay.
type Pipeline struct {
	conv    audio.Converter
	rec     Recognizer
	input   audio.Format
	timeout time.Duration
	prompt  string
}

// NewPipeline creates a pipeline that feeds rec with audio in the input format.
// A zero timeout leaves the caller's deadline in charge.
func NewPipeline(conv audio.Converter, rec Recognizer, input audio.Format, timeout time.Duration) *Pipeline {
	if conv == nil {
		conv = audio.Passthrough{}
	}
	return &Pipeline{conv: conv, rec: rec, input: input, timeout: timeout}
}

// WithPrompt sets the context prompt passed to every recognition call.
func (p *Pipeline) WithPrompt(prompt string) *Pipeline {
	p.prompt = strings.TrimSpace(prompt)
	return p
}

// Transcribe implements Transcriber.
func (p *Pipeline) Transcribe(ctx context.Context, ws *audio.Workspace, voice audio.Payload, hint language.Tag) (string, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	clip, err := p.conv.Convert(ctx, voice, ws.Path("recognizer-input", p.input), p.input)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrDecode, p.conv.Name(), err)
	}

	start := time.Now()
	text, err := p.rec.Recognize(ctx, clip, Opts{Language: hint, Prompt: p.prompt})
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrRecognize, p.rec.Name(), err)
	}

	text = strings.TrimSpace(text)
	slog.Debug("transcription complete",
		"backend", p.rec.Name(),
		"hint", hint,
		"text_length", len(text),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return text, nil
}

// Close closes the recognizer.
func (p *Pipeline) Close() error { return p.rec.Close() }
