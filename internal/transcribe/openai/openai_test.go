package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/nadzzz/linguabridge/internal/audio"
	"github.com/nadzzz/linguabridge/internal/config"
	"github.com/nadzzz/linguabridge/internal/transcribe"
)

func TestRecognize(t *testing.T) {
	var gotModel, gotLanguage, gotFile string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/audio/transcriptions" {
			http.NotFound(w, r)
			return
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		gotModel = r.FormValue("model")
		gotLanguage = r.FormValue("language")
		if _, hdr, err := r.FormFile("file"); err == nil {
			gotFile = hdr.Filename
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"text": "Добрий день"})
	}))
	defer srv.Close()

	rec, err := New(config.OpenAIConfig{APIKey: "sk-test", BaseURL: srv.URL + "/v1"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	path := filepath.Join(t.TempDir(), "voice.mp3")
	if err := os.WriteFile(path, []byte("ID3"), 0o600); err != nil {
		t.Fatal(err)
	}

	text, err := rec.Recognize(context.Background(), audio.Payload{Path: path, Format: audio.FormatMP3}, transcribe.Opts{Language: "uk"})
	if err != nil {
		t.Fatalf("Recognize() error = %v", err)
	}
	if text != "Добрий день" {
		t.Errorf("text = %q", text)
	}
	if gotModel != "whisper-1" {
		t.Errorf("model = %q, want whisper-1", gotModel)
	}
	if gotLanguage != "uk" {
		t.Errorf("language = %q, want uk", gotLanguage)
	}
	if gotFile != "voice.mp3" {
		t.Errorf("file = %q, want voice.mp3", gotFile)
	}
}

func TestRecognizeServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"boom","type":"server_error"}}`))
	}))
	defer srv.Close()

	rec, err := New(config.OpenAIConfig{APIKey: "sk-test", BaseURL: srv.URL + "/v1"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	path := filepath.Join(t.TempDir(), "voice.mp3")
	if err := os.WriteFile(path, []byte("ID3"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := rec.Recognize(context.Background(), audio.Payload{Path: path, Format: audio.FormatMP3}, transcribe.Opts{}); err == nil {
		t.Fatal("Recognize() error = nil, want server error")
	}
}

func TestNewRequiresKey(t *testing.T) {
	if _, err := New(config.OpenAIConfig{}); err == nil {
		t.Fatal("New() without key: want error")
	}
}
