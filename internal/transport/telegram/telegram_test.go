package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nadzzz/linguabridge/internal/audio"
	"github.com/nadzzz/linguabridge/internal/config"
	"github.com/nadzzz/linguabridge/internal/message"
	"github.com/nadzzz/linguabridge/internal/transport"
)

const testToken = "123:abc"

// fakeBotAPI answers Bot API methods by name and records what it saw.
type fakeBotAPI struct {
	mu      sync.Mutex
	offsets []string
	calls   map[string]int
	bodies  map[string][]byte
	updates [][]update
	files   map[string][]byte
}

func newFakeBotAPI(t *testing.T) (*fakeBotAPI, *httptest.Server) {
	t.Helper()
	f := &fakeBotAPI{
		calls:  map[string]int{},
		bodies: map[string][]byte{},
		files:  map[string][]byte{},
	}
	srv := httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeBotAPI) serve(w http.ResponseWriter, r *http.Request) {
	if rest, ok := strings.CutPrefix(r.URL.Path, "/file/bot"+testToken+"/"); ok {
		f.mu.Lock()
		data, found := f.files[rest]
		f.mu.Unlock()
		if !found {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(data)
		return
	}

	method, ok := strings.CutPrefix(r.URL.Path, "/bot"+testToken+"/")
	if !ok {
		http.NotFound(w, r)
		return
	}

	f.mu.Lock()
	f.calls[method]++
	if r.Method == http.MethodPost && strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		body, _ := io.ReadAll(r.Body)
		f.bodies[method] = body
	}
	f.mu.Unlock()

	var result any = true
	switch method {
	case "getUpdates":
		f.mu.Lock()
		f.offsets = append(f.offsets, r.URL.Query().Get("offset"))
		var batch []update
		if len(f.updates) > 0 {
			batch, f.updates = f.updates[0], f.updates[1:]
		}
		f.mu.Unlock()
		if batch == nil {
			time.Sleep(10 * time.Millisecond)
			batch = []update{}
		}
		result = batch
	case "getFile":
		id := r.URL.Query().Get("file_id")
		result = file{FileID: id, FilePath: "voice/" + id + ".oga"}
	case "sendVoice", "sendAudio":
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		field := "voice"
		if method == "sendAudio" {
			field = "audio"
		}
		part, _, err := r.FormFile(field)
		if err != nil {
			writeEnvelope(w, false, nil, "missing "+field)
			return
		}
		data, _ := io.ReadAll(part)
		f.mu.Lock()
		f.bodies[method] = append([]byte(r.FormValue("chat_id")+":"), data...)
		f.mu.Unlock()
	}
	writeEnvelope(w, true, result, "")
}

func writeEnvelope(w http.ResponseWriter, ok bool, result any, desc string) {
	raw, _ := json.Marshal(result)
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(response{OK: ok, Result: raw, Description: desc})
}

func (f *fakeBotAPI) body(method string) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bodies[method]
}

func testConfig(apiURL string) config.TelegramConfig {
	return config.TelegramConfig{
		Enabled:        true,
		Token:          testToken,
		APIURL:         apiURL,
		Mode:           "polling",
		PollTimeout:    time.Second,
		MaxConcurrency: 2,
		MaxFileBytes:   1 << 20,
	}
}

func textUpdate(id, uid int64, chatType, text string) update {
	return update{
		UpdateID: id,
		Message: &tgMessage{
			MessageID: id,
			Chat:      &chat{ID: uid, Type: chatType},
			From:      &user{ID: uid},
			Text:      text,
		},
	}
}

func TestPollingDeliversMessages(t *testing.T) {
	fake, srv := newFakeBotAPI(t)
	fake.updates = [][]update{
		{textUpdate(7, 42, "private", "ciao"), textUpdate(9, 43, "Private", "привіт")},
	}

	tr := New(testConfig(srv.URL), srv.Client())

	var (
		mu   sync.Mutex
		got  []*message.Message
		done = make(chan struct{})
	)
	handler := func(_ context.Context, msg *message.Message, _ transport.Channel) (*message.DispatchResult, error) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, msg)
		if len(got) == 2 {
			close(done)
		}
		return &message.DispatchResult{MessageID: msg.ID, Outcome: message.OutcomeDone}, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- tr.Listen(ctx, handler) }()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for updates")
	}

	// Let at least one more poll go out with the advanced offset.
	deadline := time.Now().Add(5 * time.Second)
	for {
		fake.mu.Lock()
		n := len(fake.offsets)
		fake.mu.Unlock()
		if n >= 2 || time.Now().After(deadline) {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	if err := <-errCh; err != nil {
		t.Fatalf("Listen: %v", err)
	}
	if err := tr.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	byUser := map[int64]*message.Message{}
	for _, m := range got {
		byUser[m.UserID] = m
	}
	if m := byUser[42]; m == nil || m.Text != "ciao" || m.ChatKind != message.ChatPrivate || m.Kind != message.KindText {
		t.Errorf("user 42 message = %+v", m)
	}
	if m := byUser[43]; m == nil || m.ChatKind != message.ChatPrivate {
		t.Errorf("user 43 message = %+v, want lowercased private chat", m)
	}

	fake.mu.Lock()
	defer fake.mu.Unlock()
	if fake.offsets[0] != "" {
		t.Errorf("first offset = %q, want none", fake.offsets[0])
	}
	if fake.offsets[1] != "10" {
		t.Errorf("second offset = %q, want 10", fake.offsets[1])
	}
	if fake.calls["deleteWebhook"] != 1 {
		t.Errorf("deleteWebhook calls = %d, want 1", fake.calls["deleteWebhook"])
	}
}

func TestToMessage(t *testing.T) {
	voice := update{UpdateID: 1, Message: &tgMessage{
		Chat:  &chat{ID: 5, Type: "private"},
		From:  &user{ID: 5},
		Voice: &tgVoice{FileID: "f1", Duration: 3, FileSize: 100},
	}}
	m := toMessage(voice)
	if m == nil || m.Kind != message.KindVoice {
		t.Fatalf("voice update = %+v", m)
	}
	if m.Voice.FileID != "f1" || m.Voice.MimeType != "audio/ogg" || m.Voice.Size != 100 {
		t.Errorf("voice = %+v", m.Voice)
	}

	group := toMessage(textUpdate(2, 6, "supergroup", "hi"))
	if group == nil || group.ChatKind != message.ChatSupergroup || group.IsPrivate() {
		t.Errorf("group message = %+v", group)
	}

	ignored := map[string]update{
		"no message": {UpdateID: 3},
		"no sender":  {UpdateID: 4, Message: &tgMessage{Chat: &chat{ID: 1, Type: "private"}, Text: "x"}},
		"bot sender": {UpdateID: 5, Message: &tgMessage{Chat: &chat{ID: 1, Type: "private"}, From: &user{ID: 9, IsBot: true}, Text: "x"}},
		"sticker":    {UpdateID: 6, Message: &tgMessage{Chat: &chat{ID: 1, Type: "private"}, From: &user{ID: 1}}},
		"blank text": {UpdateID: 7, Message: &tgMessage{Chat: &chat{ID: 1, Type: "private"}, From: &user{ID: 1}, Text: "  "}},
	}
	for name, u := range ignored {
		if m := toMessage(u); m != nil {
			t.Errorf("%s: toMessage = %+v, want nil", name, m)
		}
	}
}

func TestChatChannelFetchVoice(t *testing.T) {
	fake, srv := newFakeBotAPI(t)
	fake.files["voice/f1.oga"] = []byte("OggS-voice")

	ch := &chatChannel{api: newAPI(srv.Client(), srv.URL, testToken), chatID: 1, maxBytes: 1 << 10}

	var buf bytes.Buffer
	if err := ch.FetchVoice(context.Background(), &message.Voice{FileID: "f1"}, &buf); err != nil {
		t.Fatalf("FetchVoice: %v", err)
	}
	if buf.String() != "OggS-voice" {
		t.Errorf("downloaded %q", buf.String())
	}

	ch.maxBytes = 4
	buf.Reset()
	if err := ch.FetchVoice(context.Background(), &message.Voice{FileID: "f1"}, &buf); err == nil {
		t.Error("expected size limit error during download")
	}
	if err := ch.FetchVoice(context.Background(), &message.Voice{FileID: "f1", Size: 100}, &buf); err == nil {
		t.Error("expected size limit error from declared size")
	}
	if err := ch.FetchVoice(context.Background(), &message.Voice{}, &buf); err == nil {
		t.Error("expected error for missing file_id")
	}
}

func TestChatChannelSendVoice(t *testing.T) {
	fake, srv := newFakeBotAPI(t)
	ch := &chatChannel{api: newAPI(srv.Client(), srv.URL, testToken), chatID: 77}

	dir := t.TempDir()
	ogg := filepath.Join(dir, "reply.ogg")
	if err := os.WriteFile(ogg, []byte("ogg-bytes"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := ch.SendVoice(context.Background(), audio.Payload{Path: ogg, Format: audio.FormatOgg}); err != nil {
		t.Fatalf("SendVoice ogg: %v", err)
	}
	if got := string(fake.body("sendVoice")); got != "77:ogg-bytes" {
		t.Errorf("sendVoice upload = %q", got)
	}

	mp3 := filepath.Join(dir, "reply.mp3")
	if err := os.WriteFile(mp3, []byte("mp3-bytes"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := ch.SendVoice(context.Background(), audio.Payload{Path: mp3, Format: audio.FormatMP3}); err != nil {
		t.Fatalf("SendVoice mp3: %v", err)
	}
	if got := string(fake.body("sendAudio")); got != "77:mp3-bytes" {
		t.Errorf("sendAudio upload = %q", got)
	}

	if err := ch.SendVoice(context.Background(), audio.Payload{Path: filepath.Join(dir, "missing.ogg"), Format: audio.FormatOgg}); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestChatChannelSendKeyboard(t *testing.T) {
	fake, srv := newFakeBotAPI(t)
	ch := &chatChannel{api: newAPI(srv.Client(), srv.URL, testToken), chatID: 8}

	rows := [][]string{{"/forzauk", "/forzarusso"}, {"/autolingua"}}
	if err := ch.SendKeyboard(context.Background(), "Benvenuto", rows); err != nil {
		t.Fatalf("SendKeyboard: %v", err)
	}

	var req sendMessageRequest
	if err := json.Unmarshal(fake.body("sendMessage"), &req); err != nil {
		t.Fatal(err)
	}
	if req.ChatID != 8 || req.Text != "Benvenuto" {
		t.Errorf("request = %+v", req)
	}
	if req.ReplyMarkup == nil || len(req.ReplyMarkup.Keyboard) != 2 || req.ReplyMarkup.Keyboard[0][1].Text != "/forzarusso" {
		t.Fatalf("markup = %+v", req.ReplyMarkup)
	}
	if !req.ReplyMarkup.ResizeKeyboard {
		t.Error("keyboard should be resizable")
	}

	if err := ch.SendText(context.Background(), "ok"); err != nil {
		t.Fatalf("SendText: %v", err)
	}
	if strings.Contains(string(fake.body("sendMessage")), "reply_markup") {
		t.Error("plain text should carry no reply markup")
	}
}

func TestAPIErrorEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		writeEnvelope(w, false, nil, "Bad Request: chat not found")
	}))
	defer srv.Close()

	a := newAPI(srv.Client(), srv.URL, testToken)
	err := a.sendMessage(context.Background(), 1, "hi", nil)
	if err == nil || !strings.Contains(err.Error(), "chat not found") {
		t.Fatalf("err = %v, want description", err)
	}
	if err := a.sendMessage(context.Background(), 1, "  ", nil); err == nil {
		t.Error("expected error for empty text")
	}
}

func TestTransportErrorsOmitToken(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	unreachable := srv.URL
	srv.Close()

	a := newAPI(&http.Client{Timeout: 2 * time.Second}, unreachable, testToken)
	ctx := context.Background()

	tests := []struct {
		name string
		call func() error
	}{
		{"getUpdates", func() error {
			_, _, err := a.getUpdates(ctx, 0, time.Second)
			return err
		}},
		{"getFile", func() error {
			_, err := a.getFile(ctx, "voice-1")
			return err
		}},
		{"download", func() error {
			_, err := a.download(ctx, "voice/file_1.oga", io.Discard, 0)
			return err
		}},
		{"sendMessage", func() error { return a.sendMessage(ctx, 1, "hi", nil) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			if err == nil {
				t.Fatal("expected connection error")
			}
			if strings.Contains(err.Error(), testToken) {
				t.Errorf("error leaks bot token: %v", err)
			}
		})
	}
}

func TestScrubMasksToken(t *testing.T) {
	a := newAPI(nil, "", testToken)
	err := a.scrub(errors.New("parse \"http://x/bot" + testToken + "/getMe\": bad"))
	if strings.Contains(err.Error(), testToken) || !strings.Contains(err.Error(), "<redacted>") {
		t.Errorf("scrub() = %v, want token masked", err)
	}
}

func TestWebhookHandler(t *testing.T) {
	cfg := testConfig("http://unused")
	cfg.Mode = "webhook"
	cfg.Webhook.SecretToken = "s3cret"
	tr := New(cfg, nil)

	got := make(chan *message.Message, 1)
	h := tr.webhookHandler(context.Background(), func(_ context.Context, msg *message.Message, _ transport.Channel) (*message.DispatchResult, error) {
		got <- msg
		return &message.DispatchResult{Outcome: message.OutcomeDone}, nil
	})

	body, _ := json.Marshal(textUpdate(1, 42, "private", "ciao"))

	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("missing secret: status = %d, want 403", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{"))
	req.Header.Set(secretHeader, "s3cret")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad json: status = %d, want 400", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
	req.Header.Set(secretHeader, "s3cret")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	select {
	case m := <-got:
		if m.Text != "ciao" || m.UserID != 42 {
			t.Errorf("message = %+v", m)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("handler not called")
	}
	if err := tr.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestHandlerPanicIsContained(t *testing.T) {
	tr := New(testConfig("http://unused"), nil)

	var mu sync.Mutex
	calls := 0
	handler := func(_ context.Context, msg *message.Message, _ transport.Channel) (*message.DispatchResult, error) {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		if n == 1 {
			panic("boom")
		}
		return &message.DispatchResult{Outcome: message.OutcomeDone}, nil
	}

	ctx := context.Background()
	if err := tr.dispatch(ctx, textUpdate(1, 1, "private", "a"), handler); err != nil {
		t.Fatal(err)
	}
	if err := tr.dispatch(ctx, textUpdate(2, 2, "private", "b"), handler); err != nil {
		t.Fatal(err)
	}
	if err := tr.Close(); err != nil {
		t.Fatal(err)
	}

	mu.Lock()
	defer mu.Unlock()
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
	if len(tr.sem) != 0 {
		t.Errorf("semaphore still holds %d slots", len(tr.sem))
	}
}

func TestDispatchAfterClose(t *testing.T) {
	tr := New(testConfig("http://unused"), nil)
	if err := tr.Close(); err != nil {
		t.Fatal(err)
	}
	called := false
	handler := func(context.Context, *message.Message, transport.Channel) (*message.DispatchResult, error) {
		called = true
		return &message.DispatchResult{Outcome: message.OutcomeDone}, nil
	}
	if err := tr.dispatch(context.Background(), textUpdate(1, 1, "private", "a"), handler); !errors.Is(err, errClosed) {
		t.Fatalf("dispatch() error = %v, want errClosed", err)
	}
	if called {
		t.Error("handler called after Close")
	}
	if len(tr.sem) != 0 {
		t.Errorf("semaphore still holds %d slots", len(tr.sem))
	}
}

func TestCloseWhileDispatching(t *testing.T) {
	cfg := testConfig("http://unused")
	cfg.MaxConcurrency = 4
	tr := New(cfg, nil)

	var mu sync.Mutex
	calls := 0
	handler := func(context.Context, *message.Message, transport.Channel) (*message.DispatchResult, error) {
		mu.Lock()
		calls++
		mu.Unlock()
		return &message.DispatchResult{Outcome: message.OutcomeDone}, nil
	}

	var producers sync.WaitGroup
	for p := 0; p < 4; p++ {
		producers.Add(1)
		go func(p int) {
			defer producers.Done()
			for i := int64(0); ; i++ {
				if err := tr.dispatch(context.Background(), textUpdate(i, int64(p+1), "private", "ciao"), handler); err != nil {
					return
				}
			}
		}(p)
	}

	time.Sleep(20 * time.Millisecond)
	if err := tr.Close(); err != nil {
		t.Fatal(err)
	}
	mu.Lock()
	afterClose := calls
	mu.Unlock()

	producers.Wait()
	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if calls != afterClose {
		t.Errorf("handler ran %d times after Close returned", calls-afterClose)
	}
	if len(tr.sem) != 0 {
		t.Errorf("semaphore still holds %d slots", len(tr.sem))
	}
}

func TestWebhookRejectsAfterClose(t *testing.T) {
	cfg := testConfig("http://unused")
	cfg.Mode = "webhook"
	tr := New(cfg, nil)
	h := tr.webhookHandler(context.Background(), func(context.Context, *message.Message, transport.Channel) (*message.DispatchResult, error) {
		t.Error("handler called after Close")
		return nil, nil
	})
	if err := tr.Close(); err != nil {
		t.Fatal(err)
	}

	body, _ := json.Marshal(textUpdate(1, 42, "private", "ciao"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body)))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}
