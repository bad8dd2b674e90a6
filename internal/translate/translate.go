// Package translate defines the translation adapter and its backends.
package translate

import (
	"context"
	"errors"
	"time"

	"github.com/nadzzz/linguabridge/internal/language"
)

// ErrEmptyTranslation is returned when a backend answers with no text.
var ErrEmptyTranslation = errors.New("backend returned an empty translation")

// Translator translates text between languages.
type Translator interface {
	// Name returns the backend identifier (e.g., "libretranslate", "openai").
	Name() string

	// Translate renders text in target. source may be language.Auto to let
	// the backend detect the input language itself.
	Translate(ctx context.Context, text string, source, target language.Tag) (string, error)
}

// Timed wraps a Translator, bounding every call by timeout and recording
// request metrics.
type Timed struct {
	next    Translator
	timeout time.Duration
}

// WithTimeout returns next bounded by timeout. A zero timeout only records metrics.
func WithTimeout(next Translator, timeout time.Duration) *Timed {
	return &Timed{next: next, timeout: timeout}
}

// Name returns the wrapped backend's name.
func (t *Timed) Name() string { return t.next.Name() }

// Translate implements Translator.
func (t *Timed) Translate(ctx context.Context, text string, source, target language.Tag) (string, error) {
	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	start := time.Now()
	out, err := t.next.Translate(ctx, text, source, target)
	if err == nil && out == "" {
		err = ErrEmptyTranslation
	}
	recordTranslation(t.next.Name(), len(text), time.Since(start), err)
	return out, err
}
