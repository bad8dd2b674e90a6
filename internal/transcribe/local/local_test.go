package local

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/nadzzz/linguabridge/internal/audio"
	"github.com/nadzzz/linguabridge/internal/config"
	"github.com/nadzzz/linguabridge/internal/transcribe"
)

func writeClip(t *testing.T) audio.Payload {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clip.wav")
	if err := os.WriteFile(path, []byte("RIFFdata"), 0o600); err != nil {
		t.Fatal(err)
	}
	return audio.Payload{Path: path, Format: audio.FormatWAV}
}

func TestRecognizeOpenAIFlavor(t *testing.T) {
	var form map[string]string
	var body []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		form = map[string]string{
			"model":    r.FormValue("model"),
			"language": r.FormValue("language"),
		}
		f, _, err := r.FormFile("file")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		body, _ = io.ReadAll(f)
		_ = json.NewEncoder(w).Encode(map[string]string{"text": "Привет"})
	}))
	defer srv.Close()

	rec, err := New(config.LocalConfig{WhisperEndpoint: srv.URL + "/v1/audio/transcriptions", Model: "large-v3"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	text, err := rec.Recognize(context.Background(), writeClip(t), transcribe.Opts{Language: "ru"})
	if err != nil {
		t.Fatalf("Recognize() error = %v", err)
	}
	if text != "Привет" {
		t.Errorf("text = %q", text)
	}
	if form["model"] != "large-v3" || form["language"] != "ru" {
		t.Errorf("form = %v", form)
	}
	if string(body) != "RIFFdata" {
		t.Errorf("uploaded body = %q", body)
	}
}

func TestRecognizeASRFlavor(t *testing.T) {
	var query map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		query = map[string]string{
			"task":       q.Get("task"),
			"language":   q.Get("language"),
			"vad_filter": q.Get("vad_filter"),
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if _, _, err := r.FormFile("audio_file"); err != nil {
			http.Error(w, "missing audio_file", http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"text": "Ciao", "language": "it"})
	}))
	defer srv.Close()

	rec, err := New(config.LocalConfig{WhisperEndpoint: srv.URL + "/asr", WhisperType: "asr", VADFilter: true})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	text, err := rec.Recognize(context.Background(), writeClip(t), transcribe.Opts{})
	if err != nil {
		t.Fatalf("Recognize() error = %v", err)
	}
	if text != "Ciao" {
		t.Errorf("text = %q", text)
	}
	if query["task"] != "transcribe" || query["vad_filter"] != "true" {
		t.Errorf("query = %v", query)
	}
	if query["language"] != "" {
		t.Errorf("language = %q, want automatic (unset)", query["language"])
	}
}

func TestRecognizeStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	rec, err := New(config.LocalConfig{WhisperEndpoint: srv.URL})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, err := rec.Recognize(context.Background(), writeClip(t), transcribe.Opts{}); err == nil {
		t.Fatal("Recognize() error = nil, want status error")
	}
}

func TestNewValidates(t *testing.T) {
	if _, err := New(config.LocalConfig{}); err == nil {
		t.Error("New() without endpoint: want error")
	}
	if _, err := New(config.LocalConfig{WhisperEndpoint: "http://x", WhisperType: "grpc"}); err == nil {
		t.Error("New() with unknown flavor: want error")
	}
}
