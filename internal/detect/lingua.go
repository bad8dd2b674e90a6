package detect

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pemistahl/lingua-go"

	"github.com/nadzzz/linguabridge/internal/language"
)

// Lingua detects languages in-process with lingua-go.
type Lingua struct {
	detector lingua.LanguageDetector
}

// NewLingua builds a detector restricted to codes. An empty list loads every
// language lingua knows, which costs noticeably more memory.
func NewLingua(codes []string, minRelativeDistance float64) (*Lingua, error) {
	builder := lingua.NewLanguageDetectorBuilder()

	if len(codes) == 0 {
		builder = builder.FromAllLanguages()
	} else {
		langs := make([]lingua.Language, 0, len(codes))
		for _, c := range codes {
			iso := lingua.GetIsoCode639_1FromValue(strings.ToUpper(string(language.Parse(c))))
			l := lingua.GetLanguageFromIsoCode639_1(iso)
			if l == lingua.Unknown {
				return nil, fmt.Errorf("lingua does not support language %q", c)
			}
			langs = append(langs, l)
		}
		if len(langs) < 2 {
			return nil, fmt.Errorf("lingua needs at least two candidate languages, got %d", len(langs))
		}
		builder = builder.FromLanguages(langs...)
	}

	if minRelativeDistance > 0 {
		builder = builder.WithMinimumRelativeDistance(minRelativeDistance)
	}

	return &Lingua{detector: builder.Build()}, nil
}

// Detect implements Detector.
func (l *Lingua) Detect(_ context.Context, text string) (language.Tag, error) {
	if strings.TrimSpace(text) == "" {
		return language.Unknown, ErrUndetermined
	}

	lang, ok := l.detector.DetectLanguageOf(text)
	if !ok {
		slog.Debug("lingua could not decide", "text_length", len(text))
		return language.Unknown, ErrUndetermined
	}
	return language.Parse(lang.IsoCode639_1().String()), nil
}
