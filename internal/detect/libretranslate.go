package detect

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/nadzzz/linguabridge/internal/language"
)

// LibreTranslate detects languages with a LibreTranslate server's /detect endpoint.
type LibreTranslate struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewLibreTranslate creates a detector for the server at baseURL.
func NewLibreTranslate(baseURL, apiKey string) *LibreTranslate {
	return &LibreTranslate{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

type detectRequest struct {
	Q      string `json:"q"`
	APIKey string `json:"api_key,omitempty"`
}

type detection struct {
	Language   string  `json:"language"`
	Confidence float64 `json:"confidence"`
}

// Detect implements Detector. The highest-confidence candidate wins; a
// response with no candidates or zero confidence is undetermined.
func (d *LibreTranslate) Detect(ctx context.Context, text string) (language.Tag, error) {
	if strings.TrimSpace(text) == "" {
		return language.Unknown, ErrUndetermined
	}

	buf := new(bytes.Buffer)
	if err := json.NewEncoder(buf).Encode(detectRequest{Q: text, APIKey: d.apiKey}); err != nil {
		return language.Unknown, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+"/detect", buf)
	if err != nil {
		return language.Unknown, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return language.Unknown, fmt.Errorf("detect request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return language.Unknown, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var candidates []detection
	if err := json.NewDecoder(resp.Body).Decode(&candidates); err != nil {
		return language.Unknown, fmt.Errorf("decode response: %w", err)
	}

	var best detection
	for _, c := range candidates {
		if c.Confidence > best.Confidence {
			best = c
		}
	}
	if best.Language == "" || best.Confidence <= 0 {
		return language.Unknown, ErrUndetermined
	}

	slog.Debug("libretranslate detected language", "language", best.Language, "confidence", best.Confidence)
	return language.Parse(best.Language), nil
}
