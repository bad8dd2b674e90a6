package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/nadzzz/linguabridge/internal/audio"
	"github.com/nadzzz/linguabridge/internal/message"
)

// Collector is a Channel that records replies in memory instead of
// delivering them. Request/response transports use it to build their
// response after the handler returns.
type Collector struct {
	mu       sync.Mutex
	texts    []string
	keyboard [][]string
	voice    []byte
	format   audio.Format
}

// SendText implements Channel.
func (c *Collector) SendText(_ context.Context, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.texts = append(c.texts, text)
	return nil
}

// SendKeyboard implements Channel.
func (c *Collector) SendKeyboard(_ context.Context, text string, rows [][]string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.texts = append(c.texts, text)
	c.keyboard = rows
	return nil
}

// SendVoice reads the payload into memory before the workspace holding it is released.
func (c *Collector) SendVoice(_ context.Context, voice audio.Payload) error {
	data, err := os.ReadFile(voice.Path)
	if err != nil {
		return fmt.Errorf("reading voice reply: %w", err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.voice = data
	c.format = voice.Format
	return nil
}

// FetchVoice copies inline voice data; collectors have nowhere to download from.
func (c *Collector) FetchVoice(_ context.Context, voice *message.Voice, dst io.Writer) error {
	if voice == nil || len(voice.Data) == 0 {
		return fmt.Errorf("voice message carries no inline audio")
	}
	_, err := io.Copy(dst, bytes.NewReader(voice.Data))
	return err
}

// Texts returns the text replies in order.
func (c *Collector) Texts() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.texts...)
}

// Keyboard returns the last keyboard sent, if any.
func (c *Collector) Keyboard() [][]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.keyboard
}

// Voice returns the voice reply bytes and format.
func (c *Collector) Voice() ([]byte, audio.Format) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.voice, c.format
}
