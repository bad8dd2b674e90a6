package language

import (
	"errors"
	"reflect"
	"testing"
)

func richRoutes() map[Tag]Tag {
	return map[Tag]Tag{"uk": "it", "ru": "it", "it": "uk"}
}

func TestPolicy_ResolveSupportedPairs(t *testing.T) {
	p, err := NewPolicy(richRoutes(), Unknown)
	if err != nil {
		t.Fatalf("NewPolicy: %v", err)
	}

	for src, want := range richRoutes() {
		got, err := p.Resolve(src)
		if err != nil {
			t.Errorf("Resolve(%q) error: %v", src, err)
			continue
		}
		if got != want {
			t.Errorf("Resolve(%q) = %q, want %q", src, got, want)
		}
		if got == src {
			t.Errorf("Resolve(%q) returned the source language", src)
		}
	}
}

func TestPolicy_ResolveRejectsOutsideDomain(t *testing.T) {
	p, err := NewPolicy(richRoutes(), Unknown)
	if err != nil {
		t.Fatalf("NewPolicy: %v", err)
	}

	for _, lang := range []Tag{"fr", "en", "de", Unknown, Auto} {
		if _, err := p.Resolve(lang); !errors.Is(err, ErrUnsupported) {
			t.Errorf("Resolve(%q) error = %v, want ErrUnsupported", lang, err)
		}
	}
}

func TestPolicy_Fallback(t *testing.T) {
	p, err := NewPolicy(map[Tag]Tag{"uk": "it", "it": "uk"}, "uk")
	if err != nil {
		t.Fatalf("NewPolicy: %v", err)
	}

	tests := []struct {
		in, want Tag
	}{
		{"uk", "it"},
		{"it", "uk"},
		{"fr", "uk"},
		{"ru", "uk"},
	}
	for _, tt := range tests {
		got, err := p.Resolve(tt.in)
		if err != nil {
			t.Errorf("Resolve(%q) error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Resolve(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}

	if _, err := p.Resolve(Unknown); !errors.Is(err, ErrUnsupported) {
		t.Errorf("Resolve(Unknown) error = %v, want ErrUnsupported", err)
	}
}

func TestNewPolicy_Invalid(t *testing.T) {
	tests := []struct {
		name     string
		routes   map[Tag]Tag
		fallback Tag
	}{
		{"empty", nil, Unknown},
		{"self route", map[Tag]Tag{"it": "it"}, Unknown},
		{"self route after normalisation", map[Tag]Tag{"IT": "it-IT"}, Unknown},
		{"empty target", map[Tag]Tag{"it": ""}, Unknown},
		{"fallback without route", map[Tag]Tag{"it": "uk"}, "ru"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewPolicy(tt.routes, tt.fallback); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestPolicy_SupportedAndTargets(t *testing.T) {
	p, err := NewPolicy(richRoutes(), Unknown)
	if err != nil {
		t.Fatalf("NewPolicy: %v", err)
	}
	if got, want := p.Supported(), []Tag{"it", "ru", "uk"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Supported() = %v, want %v", got, want)
	}
	if got, want := p.Targets(), []Tag{"it", "uk"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Targets() = %v, want %v", got, want)
	}
}

func TestParse(t *testing.T) {
	tests := map[string]Tag{
		"IT":     "it",
		"uk-UA":  "uk",
		"ru_RU":  "ru",
		"  en  ": "en",
		"":       Unknown,
	}
	for in, want := range tests {
		if got := Parse(in); got != want {
			t.Errorf("Parse(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestTag_Name(t *testing.T) {
	if got := Tag("uk").Name(); got != "Ukrainian" {
		t.Errorf("Name() = %q, want Ukrainian", got)
	}
	if got := Tag("xx").Name(); got != "xx" {
		t.Errorf("Name() = %q, want xx", got)
	}
}
