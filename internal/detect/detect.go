// Package detect identifies the language of a piece of text.
package detect

import (
	"context"
	"errors"

	"github.com/nadzzz/linguabridge/internal/language"
)

// ErrUndetermined is returned when no language can be identified, including
// for empty or whitespace-only text.
var ErrUndetermined = errors.New("language could not be determined")

// Detector identifies the language of text.
type Detector interface {
	// Detect returns the ISO-639-1 tag of the dominant language in text.
	Detect(ctx context.Context, text string) (language.Tag, error)
}
