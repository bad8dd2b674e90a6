package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nadzzz/linguabridge/internal/audio"
	"github.com/nadzzz/linguabridge/internal/config"
	"github.com/nadzzz/linguabridge/internal/tts"
)

func TestSynthesize(t *testing.T) {
	var req map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/audio/speech" {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "audio/ogg")
		_, _ = w.Write([]byte("OggS-fake-opus"))
	}))
	defer srv.Close()

	s, err := New(config.OpenAIConfig{APIKey: "sk-test", BaseURL: srv.URL + "/v1", Voice: "nova"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	res, err := s.Synthesize(context.Background(), "Buongiorno", tts.SynthesizeOpts{Language: "it"})
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	if string(res.Audio) != "OggS-fake-opus" {
		t.Errorf("audio = %q", res.Audio)
	}
	if res.Format != audio.FormatOgg {
		t.Errorf("format = %s, want ogg", res.Format)
	}
	if req["voice"] != "nova" || req["response_format"] != "opus" || req["input"] != "Buongiorno" {
		t.Errorf("request = %v", req)
	}
	if !s.Supports("uk") {
		t.Error("Supports(uk) = false")
	}
}

func TestSynthesizeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"rate limited","type":"requests"}}`))
	}))
	defer srv.Close()

	s, err := New(config.OpenAIConfig{APIKey: "sk-test", BaseURL: srv.URL + "/v1"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, err := s.Synthesize(context.Background(), "Ciao", tts.SynthesizeOpts{}); err == nil {
		t.Fatal("Synthesize() error = nil, want rate limit error")
	}
}
