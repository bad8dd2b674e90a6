package transport

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/nadzzz/linguabridge/internal/audio"
	"github.com/nadzzz/linguabridge/internal/message"
)

func TestCollector(t *testing.T) {
	ctx := context.Background()
	var c Collector

	_ = c.SendText(ctx, "one")
	_ = c.SendKeyboard(ctx, "two", [][]string{{"/a", "/b"}})

	path := filepath.Join(t.TempDir(), "reply.ogg")
	if err := os.WriteFile(path, []byte("OggS"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := c.SendVoice(ctx, audio.Payload{Path: path, Format: audio.FormatOgg}); err != nil {
		t.Fatalf("SendVoice() error = %v", err)
	}
	// The reply must survive removal of the source file.
	_ = os.Remove(path)

	if got := c.Texts(); len(got) != 2 || got[0] != "one" || got[1] != "two" {
		t.Errorf("Texts() = %v", got)
	}
	if kb := c.Keyboard(); len(kb) != 1 || kb[0][1] != "/b" {
		t.Errorf("Keyboard() = %v", kb)
	}
	data, format := c.Voice()
	if string(data) != "OggS" || format != audio.FormatOgg {
		t.Errorf("Voice() = %q %s", data, format)
	}
}

func TestCollectorFetchVoice(t *testing.T) {
	var c Collector
	var buf bytes.Buffer
	if err := c.FetchVoice(context.Background(), &message.Voice{Data: []byte("abc")}, &buf); err != nil {
		t.Fatalf("FetchVoice() error = %v", err)
	}
	if buf.String() != "abc" {
		t.Errorf("fetched %q", buf.String())
	}
	if err := c.FetchVoice(context.Background(), &message.Voice{FileID: "x"}, &buf); err == nil {
		t.Error("FetchVoice without inline data: want error")
	}
}
