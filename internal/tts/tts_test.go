package tts

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nadzzz/linguabridge/internal/audio"
	"github.com/nadzzz/linguabridge/internal/language"
)

type fakeSynth struct {
	voices map[language.Tag]bool
	block  bool
}

func (f *fakeSynth) Name() string { return "fake" }

func (f *fakeSynth) Synthesize(ctx context.Context, text string, opts SynthesizeOpts) (*SynthesizeResult, error) {
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return &SynthesizeResult{Audio: []byte(text), Format: audio.FormatWAV, ContentType: "audio/wav"}, nil
}

func (f *fakeSynth) Supports(lang language.Tag) bool { return f.voices[lang] }
func (f *fakeSynth) Close() error                    { return nil }

func TestCheckCoverage(t *testing.T) {
	s := &fakeSynth{voices: map[language.Tag]bool{"it": true, "uk": true}}

	if err := CheckCoverage(s, []language.Tag{"it", "uk"}); err != nil {
		t.Errorf("full coverage: %v", err)
	}
	if err := CheckCoverage(s, []language.Tag{"it", "ru"}); err == nil {
		t.Error("expected error for missing ru voice")
	}
	if err := CheckCoverage(s, nil); err != nil {
		t.Errorf("no targets: %v", err)
	}
}

func TestWithTimeout(t *testing.T) {
	slow := &fakeSynth{block: true}
	s := WithTimeout(slow, 20*time.Millisecond)

	_, err := s.Synthesize(context.Background(), "ciao", SynthesizeOpts{Language: "it"})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
	if s.Name() != "fake" {
		t.Errorf("Name = %q, wrapped synthesizer should keep its name", s.Name())
	}

	if got := WithTimeout(slow, 0); got != Synthesizer(slow) {
		t.Error("zero timeout should return the synthesizer unchanged")
	}

	fast := WithTimeout(&fakeSynth{}, time.Second)
	res, err := fast.Synthesize(context.Background(), "ciao", SynthesizeOpts{Language: "it"})
	if err != nil || string(res.Audio) != "ciao" {
		t.Errorf("res = %+v, err = %v", res, err)
	}
}
