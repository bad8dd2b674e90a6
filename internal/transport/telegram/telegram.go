// Package telegram implements the Telegram Bot API transport.
//
// Updates arrive by long polling or by webhook. Each update is handled in
// its own goroutine, bounded by max_concurrency, and replies go back to the
// originating chat through a chatChannel.
package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/nadzzz/linguabridge/internal/audio"
	"github.com/nadzzz/linguabridge/internal/config"
	"github.com/nadzzz/linguabridge/internal/message"
	"github.com/nadzzz/linguabridge/internal/transport"
)

const secretHeader = "X-Telegram-Bot-Api-Secret-Token"

// errClosed is returned by dispatch once Close has started.
var errClosed = errors.New("telegram transport closed")

// Transport implements transport.Transport for a Telegram bot.
type Transport struct {
	cfg config.TelegramConfig
	api *api
	sem chan struct{}

	wg      sync.WaitGroup
	mu      sync.Mutex
	server  *http.Server
	closing bool
}

// New creates a Telegram transport. httpClient may be nil.
func New(cfg config.TelegramConfig, httpClient *http.Client) *Transport {
	n := cfg.MaxConcurrency
	if n <= 0 {
		n = 1
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 30 * time.Second
	}
	return &Transport{
		cfg: cfg,
		api: newAPI(httpClient, cfg.APIURL, cfg.Token),
		sem: make(chan struct{}, n),
	}
}

// Name returns the transport identifier.
func (t *Transport) Name() string { return "telegram" }

// Listen receives updates until ctx is cancelled.
func (t *Transport) Listen(ctx context.Context, handler transport.Handler) error {
	if t.cfg.Mode == "webhook" {
		return t.listenWebhook(ctx, handler)
	}
	return t.poll(ctx, handler)
}

func (t *Transport) poll(ctx context.Context, handler transport.Handler) error {
	// A stale webhook makes getUpdates fail with 409.
	if err := t.api.deleteWebhook(ctx, false); err != nil {
		slog.Warn("telegram delete webhook failed", "error", err)
	}
	slog.Info("telegram polling started", "timeout", t.cfg.PollTimeout)

	var offset int64
	for {
		if ctx.Err() != nil {
			return nil
		}
		updates, next, err := t.api.getUpdates(ctx, offset, t.cfg.PollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			slog.Warn("telegram get updates failed", "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}
		offset = next
		for _, u := range updates {
			if err := t.dispatch(ctx, u, handler); err != nil {
				return nil
			}
		}
	}
}

func (t *Transport) listenWebhook(ctx context.Context, handler transport.Handler) error {
	wh := t.cfg.Webhook
	if err := t.api.deleteWebhook(ctx, wh.DropPending); err != nil {
		return fmt.Errorf("telegram delete webhook: %w", err)
	}
	if err := t.api.setWebhook(ctx, wh.URL, wh.SecretToken, wh.DropPending); err != nil {
		return fmt.Errorf("telegram set webhook: %w", err)
	}

	path := wh.Path
	if path == "" {
		path = "/"
	}
	mux := http.NewServeMux()
	mux.Handle(path, t.webhookHandler(ctx, handler))

	srv := &http.Server{
		Addr:              net.JoinHostPort("", wh.ListenPort()),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	t.mu.Lock()
	t.server = srv
	t.mu.Unlock()

	slog.Info("telegram webhook listening", "port", wh.ListenPort(), "path", path)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("telegram webhook listen: %w", err)
	}
	return nil
}

// webhookHandler acknowledges each update immediately and handles it in the background.
func (t *Transport) webhookHandler(ctx context.Context, handler transport.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if secret := t.cfg.Webhook.SecretToken; secret != "" && r.Header.Get(secretHeader) != secret {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		var u update
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&u); err != nil {
			http.Error(w, "invalid update: "+err.Error(), http.StatusBadRequest)
			return
		}
		if t.isClosing() {
			http.Error(w, "shutting down", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_ = t.dispatch(ctx, u, handler)
	})
}

// dispatch hands one update to the handler in a new goroutine. It fails
// when ctx is cancelled while waiting for a free slot or once Close has
// started.
func (t *Transport) dispatch(ctx context.Context, u update, handler transport.Handler) error {
	msg := toMessage(u)
	if msg == nil {
		return nil
	}

	select {
	case t.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}

	ch := &chatChannel{api: t.api, chatID: msg.ChatID, maxBytes: t.cfg.MaxFileBytes}
	// In-flight messages finish even after shutdown begins.
	hctx := context.WithoutCancel(ctx)

	t.mu.Lock()
	if t.closing {
		t.mu.Unlock()
		<-t.sem
		return errClosed
	}
	t.wg.Add(1)
	t.mu.Unlock()

	go func() {
		defer t.wg.Done()
		defer func() { <-t.sem }()
		defer func() {
			if r := recover(); r != nil {
				slog.Error("telegram handler panic", "update_id", u.UpdateID, "panic", r)
			}
		}()

		result, err := handler(hctx, msg, ch)
		if err != nil {
			slog.Error("telegram dispatch failed", "update_id", u.UpdateID, "chat_id", msg.ChatID, "error", err)
			return
		}
		slog.Debug("telegram update handled",
			"update_id", u.UpdateID,
			"chat_id", msg.ChatID,
			"outcome", result.Outcome)
	}()
	return nil
}

func (t *Transport) isClosing() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closing
}

// Close stops the webhook server, if any, and waits for in-flight handlers.
// Updates arriving after Close starts are not dispatched.
func (t *Transport) Close() error {
	t.mu.Lock()
	t.closing = true
	srv := t.server
	t.mu.Unlock()

	var err error
	if srv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err = srv.Shutdown(ctx)
	}
	t.wg.Wait()
	return err
}

// toMessage converts an update into a relay message. Updates without a
// sender, from bots, or carrying neither text nor a voice note yield nil.
func toMessage(u update) *message.Message {
	m := u.Message
	if m == nil || m.Chat == nil || m.From == nil || m.From.IsBot {
		return nil
	}
	kind := message.ChatKind(strings.ToLower(strings.TrimSpace(m.Chat.Type)))

	if v := m.Voice; v != nil && v.FileID != "" {
		mime := v.MimeType
		if mime == "" {
			mime = audio.FormatOgg.ContentType()
		}
		return message.NewVoice(m.From.ID, m.Chat.ID, kind, &message.Voice{
			FileID:   v.FileID,
			MimeType: mime,
			Duration: v.Duration,
			Size:     v.FileSize,
		})
	}
	if strings.TrimSpace(m.Text) != "" {
		return message.NewText(m.From.ID, m.Chat.ID, kind, m.Text)
	}
	return nil
}

// chatChannel replies to a single Telegram chat.
type chatChannel struct {
	api      *api
	chatID   int64
	maxBytes int64
}

func (c *chatChannel) SendText(ctx context.Context, text string) error {
	return c.api.sendMessage(ctx, c.chatID, text, nil)
}

func (c *chatChannel) SendKeyboard(ctx context.Context, text string, rows [][]string) error {
	markup := &replyKeyboardMarkup{ResizeKeyboard: true, IsPersistent: true}
	for _, row := range rows {
		buttons := make([]keyboardButton, 0, len(row))
		for _, label := range row {
			buttons = append(buttons, keyboardButton{Text: label})
		}
		markup.Keyboard = append(markup.Keyboard, buttons)
	}
	return c.api.sendMessage(ctx, c.chatID, text, markup)
}

// SendVoice sends Ogg/Opus as a voice note and anything else as an audio file.
func (c *chatChannel) SendVoice(ctx context.Context, voice audio.Payload) error {
	name := "reply" + voice.Format.Ext()
	if voice.Format == audio.FormatOgg {
		return c.api.sendFile(ctx, "sendVoice", "voice", c.chatID, voice.Path, name)
	}
	return c.api.sendFile(ctx, "sendAudio", "audio", c.chatID, voice.Path, name)
}

func (c *chatChannel) FetchVoice(ctx context.Context, voice *message.Voice, dst io.Writer) error {
	if voice == nil || voice.FileID == "" {
		return fmt.Errorf("telegram voice: missing file_id")
	}
	if c.maxBytes > 0 && voice.Size > c.maxBytes {
		return fmt.Errorf("telegram voice too large: %d bytes (max %d)", voice.Size, c.maxBytes)
	}
	f, err := c.api.getFile(ctx, voice.FileID)
	if err != nil {
		return err
	}
	_, err = c.api.download(ctx, f.FilePath, dst, c.maxBytes)
	return err
}
