package detect

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nadzzz/linguabridge/internal/language"
)

func TestLinguaDetect(t *testing.T) {
	d, err := NewLingua([]string{"it", "uk", "ru"}, 0)
	if err != nil {
		t.Fatalf("NewLingua() error = %v", err)
	}

	tests := []struct {
		text string
		want language.Tag
	}{
		{"Buongiorno, come stai oggi? Spero che tu stia bene.", "it"},
		{"Добрий день, як ваші справи? Я сподіваюся, що все добре.", "uk"},
		{"Добрый день, как ваши дела? Я надеюсь, что всё хорошо.", "ru"},
	}
	for _, tt := range tests {
		got, err := d.Detect(context.Background(), tt.text)
		if err != nil {
			t.Errorf("Detect(%q) error = %v", tt.text, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Detect(%q) = %q, want %q", tt.text, got, tt.want)
		}
	}
}

func TestLinguaEmptyText(t *testing.T) {
	d, err := NewLingua([]string{"it", "uk"}, 0)
	if err != nil {
		t.Fatalf("NewLingua() error = %v", err)
	}
	for _, text := range []string{"", "   \n\t"} {
		if _, err := d.Detect(context.Background(), text); !errors.Is(err, ErrUndetermined) {
			t.Errorf("Detect(%q) error = %v, want ErrUndetermined", text, err)
		}
	}
}

func TestNewLinguaRejects(t *testing.T) {
	if _, err := NewLingua([]string{"it"}, 0); err == nil {
		t.Error("NewLingua with one language: want error")
	}
	if _, err := NewLingua([]string{"it", "xx"}, 0); err == nil {
		t.Error("NewLingua with unknown code: want error")
	}
}

func TestLibreTranslateDetect(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/detect" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		var req detectRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		switch req.Q {
		case "ciao a tutti":
			_ = json.NewEncoder(w).Encode([]detection{{Language: "es", Confidence: 12}, {Language: "it", Confidence: 88}})
		case "??":
			_ = json.NewEncoder(w).Encode([]detection{})
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	d := NewLibreTranslate(srv.URL+"/", "")

	got, err := d.Detect(context.Background(), "ciao a tutti")
	if err != nil || got != "it" {
		t.Errorf("Detect() = %q, %v; want it", got, err)
	}

	if _, err := d.Detect(context.Background(), "??"); !errors.Is(err, ErrUndetermined) {
		t.Errorf("Detect(no candidates) error = %v, want ErrUndetermined", err)
	}

	if _, err := d.Detect(context.Background(), "boom"); err == nil || errors.Is(err, ErrUndetermined) {
		t.Errorf("Detect(server error) error = %v, want transport error", err)
	}

	if _, err := d.Detect(context.Background(), " "); !errors.Is(err, ErrUndetermined) {
		t.Errorf("Detect(blank) error = %v, want ErrUndetermined", err)
	}
}
