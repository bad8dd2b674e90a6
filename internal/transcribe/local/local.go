// Package local implements the speech Recognizer with a self-hosted Whisper.
//
// It supports any Whisper-compatible transcription endpoint (e.g., whisper.cpp
// server, faster-whisper) as well as ahmetoner/whisper-asr-webservice.
package local

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"

	"github.com/nadzzz/linguabridge/internal/audio"
	"github.com/nadzzz/linguabridge/internal/config"
	"github.com/nadzzz/linguabridge/internal/transcribe"
)

// Recognizer sends audio files to a local Whisper server.
type Recognizer struct {
	endpoint    string
	whisperType string // "openai" or "asr"
	model       string
	vadFilter   bool
	client      *http.Client
}

// New creates a local recognizer from config.
func New(cfg config.LocalConfig) (*Recognizer, error) {
	if cfg.WhisperEndpoint == "" {
		return nil, fmt.Errorf("local transcription requires transcription.local.whisper_endpoint")
	}
	wt := cfg.WhisperType
	if wt == "" {
		wt = "openai"
	}
	if wt != "openai" && wt != "asr" {
		return nil, fmt.Errorf("unknown whisper_type %q", wt)
	}
	return &Recognizer{
		endpoint:    cfg.WhisperEndpoint,
		whisperType: wt,
		model:       cfg.Model,
		vadFilter:   cfg.VADFilter,
		client:      &http.Client{},
	}, nil
}

// Name returns the backend identifier.
func (r *Recognizer) Name() string { return "local" }

// Recognize sends clip to the Whisper endpoint.
// Supports two flavors:
//   - "openai": OpenAI-compatible API (whisper.cpp server, faster-whisper)
//   - "asr":    ahmetoner/whisper-asr-webservice (POST /asr with query params)
func (r *Recognizer) Recognize(ctx context.Context, clip audio.Payload, opts transcribe.Opts) (string, error) {
	fileField := "file"
	q := make(url.Values)
	fields := make(map[string]string)

	switch r.whisperType {
	case "asr":
		// API: POST /asr?task=transcribe&language=uk&output=json&vad_filter=true
		fileField = "audio_file"
		q.Set("task", "transcribe")
		q.Set("output", "json")
		q.Set("encode", "true")
		if opts.Language != "" {
			q.Set("language", string(opts.Language))
		}
		if opts.Prompt != "" {
			q.Set("initial_prompt", opts.Prompt)
		}
		if r.vadFilter {
			q.Set("vad_filter", "true")
		}
	default:
		if r.model != "" {
			fields["model"] = r.model
		}
		if opts.Language != "" {
			fields["language"] = string(opts.Language)
		}
		if opts.Prompt != "" {
			fields["prompt"] = opts.Prompt
		}
		fields["response_format"] = "json"
	}

	reqURL := r.endpoint
	if len(q) > 0 {
		reqURL += "?" + q.Encode()
	}

	text, err := r.post(ctx, reqURL, clip, fileField, fields)
	if err != nil {
		return "", err
	}
	slog.Debug("local transcription complete", "flavor", r.whisperType, "language", opts.Language, "text_length", len(text))
	return text, nil
}

// post streams a multipart upload of clip so the audio is never held in memory.
func (r *Recognizer) post(ctx context.Context, reqURL string, clip audio.Payload, fileField string, fields map[string]string) (string, error) {
	f, err := os.Open(clip.Path)
	if err != nil {
		return "", fmt.Errorf("opening audio: %w", err)
	}
	defer f.Close()

	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)
	go func() {
		part, err := writer.CreateFormFile(fileField, "audio"+clip.Format.Ext())
		if err != nil {
			_ = pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, f); err != nil {
			_ = pw.CloseWithError(err)
			return
		}
		for k, v := range fields {
			if err := writer.WriteField(k, v); err != nil {
				_ = pw.CloseWithError(err)
				return
			}
		}
		_ = pw.CloseWithError(writer.Close())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, pr)
	if err != nil {
		_ = pr.Close()
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	slog.Debug("whisper request", "url", reqURL, "file", filepath.Base(clip.Path))

	resp, err := r.client.Do(req)
	if err != nil {
		_ = pr.Close()
		return "", fmt.Errorf("local transcription request: %w", err)
	}
	defer resp.Body.Close()
	_ = pr.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", fmt.Errorf("local transcription failed (status %d): %s", resp.StatusCode, respBody)
	}

	var result struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decoding transcription: %w", err)
	}
	return result.Text, nil
}

// Close is a no-op for the local recognizer.
func (r *Recognizer) Close() error { return nil }
