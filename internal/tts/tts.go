// Package tts defines the interface for text-to-speech synthesis.
//
// The relay speaks every translation back to the user in the target
// language, so a synthesizer must cover each language the routing policy
// can produce.
package tts

import (
	"context"
	"fmt"
	"time"

	"github.com/nadzzz/linguabridge/internal/audio"
	"github.com/nadzzz/linguabridge/internal/language"
)

// SynthesizeOpts controls synthesis behavior.
type SynthesizeOpts struct {
	// Language selects the voice.
	Language language.Tag

	// Voice overrides automatic language-based voice selection.
	Voice string
}

// Synthesizer converts text to audio.
type Synthesizer interface {
	// Name returns the backend identifier (e.g., "piper", "openai").
	Name() string

	// Synthesize generates audio for text in the requested language.
	Synthesize(ctx context.Context, text string, opts SynthesizeOpts) (*SynthesizeResult, error)

	// Supports reports whether the backend has a voice for lang.
	Supports(lang language.Tag) bool

	// Close releases any resources held by the synthesizer.
	Close() error
}

// SynthesizeResult holds the output of TTS synthesis.
type SynthesizeResult struct {
	// Audio is the encoded audio file.
	Audio []byte

	// Format is the container of Audio.
	Format audio.Format

	// ContentType is the MIME type of the audio (e.g., "audio/wav").
	ContentType string
}

// CheckCoverage returns an error naming the first language in langs that s
// cannot speak.
func CheckCoverage(s Synthesizer, langs []language.Tag) error {
	for _, l := range langs {
		if !s.Supports(l) {
			return fmt.Errorf("tts backend %s has no voice for target language %q", s.Name(), l)
		}
	}
	return nil
}

// WithTimeout bounds every Synthesize call on s. A non-positive timeout
// returns s unchanged.
func WithTimeout(s Synthesizer, timeout time.Duration) Synthesizer {
	if timeout <= 0 {
		return s
	}
	return &timed{Synthesizer: s, timeout: timeout}
}

type timed struct {
	Synthesizer
	timeout time.Duration
}

func (t *timed) Synthesize(ctx context.Context, text string, opts SynthesizeOpts) (*SynthesizeResult, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.Synthesizer.Synthesize(ctx, text, opts)
}
