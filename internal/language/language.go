// Package language defines language tags and the routing policy that maps a
// detected source language to the language the relay translates into.
package language

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Tag is a lower-case ISO-639-1 language code (e.g., "it", "uk", "ru").
type Tag string

const (
	// Unknown marks a language that could not be recognized.
	Unknown Tag = ""

	// Auto asks a translation backend to detect the source language itself.
	// It is never produced by detection and never routed.
	Auto Tag = "auto"
)

// ErrUnsupported is returned when a detected language is outside the routing table.
var ErrUnsupported = errors.New("unsupported language")

// Parse normalises a code such as "IT", "uk-UA" or "ru_RU" into a Tag.
func Parse(code string) Tag {
	code = strings.ToLower(strings.TrimSpace(code))
	if idx := strings.IndexAny(code, "-_"); idx >= 0 {
		code = code[:idx]
	}
	return Tag(code)
}

// String returns the code.
func (t Tag) String() string { return string(t) }

// names maps the languages the relay commonly handles to English names, used
// in prompts for LLM translation backends.
var names = map[Tag]string{
	"it": "Italian",
	"uk": "Ukrainian",
	"ru": "Russian",
	"en": "English",
	"fr": "French",
	"de": "German",
	"es": "Spanish",
	"pl": "Polish",
	"pt": "Portuguese",
}

// Name returns the English name of the language, or the code itself.
func (t Tag) Name() string {
	if n, ok := names[t]; ok {
		return n
	}
	return string(t)
}

// Policy resolves a detected language into a target language.
//
// A policy is immutable after construction and safe for concurrent use.
type Policy struct {
	routes   map[Tag]Tag
	fallback Tag
}

// NewPolicy builds a policy from a routing table and an optional fallback
// target used for languages outside the table. Routes that point a language
// at itself are rejected, and a fallback must have its own route so that a
// message already in the fallback language is never "translated" into it.
func NewPolicy(routes map[Tag]Tag, fallback Tag) (*Policy, error) {
	if len(routes) == 0 {
		return nil, fmt.Errorf("language policy: no routes configured")
	}
	rs := make(map[Tag]Tag, len(routes))
	for src, dst := range routes {
		src, dst = Parse(string(src)), Parse(string(dst))
		if src == Unknown || dst == Unknown {
			return nil, fmt.Errorf("language policy: empty language in route %q -> %q", src, dst)
		}
		if src == dst {
			return nil, fmt.Errorf("language policy: route %q maps to itself", src)
		}
		rs[src] = dst
	}
	fallback = Parse(string(fallback))
	if fallback != Unknown {
		if _, ok := rs[fallback]; !ok {
			return nil, fmt.Errorf("language policy: fallback %q has no route of its own", fallback)
		}
	}
	return &Policy{routes: rs, fallback: fallback}, nil
}

// Resolve returns the target language for a detected language.
// Languages outside the routing table resolve to the fallback if one is set,
// otherwise ErrUnsupported is returned.
func (p *Policy) Resolve(detected Tag) (Tag, error) {
	if detected == Unknown || detected == Auto {
		return Unknown, fmt.Errorf("%w: %q", ErrUnsupported, detected)
	}
	if dst, ok := p.routes[detected]; ok {
		return dst, nil
	}
	if p.fallback != Unknown {
		return p.fallback, nil
	}
	return Unknown, fmt.Errorf("%w: %q", ErrUnsupported, detected)
}

// Supported returns the routed source languages, sorted.
func (p *Policy) Supported() []Tag {
	out := make([]Tag, 0, len(p.routes))
	for src := range p.routes {
		out = append(out, src)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Targets returns every language the policy can route into, sorted.
func (p *Policy) Targets() []Tag {
	seen := make(map[Tag]bool, len(p.routes))
	out := make([]Tag, 0, len(p.routes))
	for _, dst := range p.routes {
		if !seen[dst] {
			seen[dst] = true
			out = append(out, dst)
		}
	}
	if p.fallback != Unknown && !seen[p.fallback] {
		out = append(out, p.fallback)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Fallback returns the fallback target, or Unknown if none is set.
func (p *Policy) Fallback() Tag { return p.fallback }
