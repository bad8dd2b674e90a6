// Package http implements the HTTP transport for linguabridge.
//
// It exposes the relay pipeline as a REST endpoint so the bot can be driven
// without Telegram: POST a text message or raw voice audio and the reply
// text and voice come back in the JSON response.
package http

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/nadzzz/linguabridge/internal/audio"
	"github.com/nadzzz/linguabridge/internal/message"
	"github.com/nadzzz/linguabridge/internal/transport"
)

const (
	userHeader   = "X-Linguabridge-User"
	maxBodyBytes = 25 << 20
)

// DispatchRequest is the JSON body of POST /dispatch.
type DispatchRequest struct {
	// UserID keys the per-user language override.
	UserID int64 `json:"user_id" example:"42"`

	// Text is a text message or a command such as "/forzauk".
	Text string `json:"text,omitempty" example:"Ciao, come stai?"`

	// Audio is a base64-encoded voice note, used when Text is empty.
	Audio string `json:"audio,omitempty"`

	// ContentType is the MIME type of Audio (defaults to audio/ogg).
	ContentType string `json:"content_type,omitempty" example:"audio/ogg"`
}

// Transport implements transport.Transport over HTTP.
type Transport struct {
	port   int
	server *http.Server
}

// New creates a new HTTP transport on the given port.
func New(port int) *Transport {
	return &Transport{port: port}
}

// Name returns the transport identifier.
func (t *Transport) Name() string { return "http" }

// Router builds the route table for handler.
func (t *Transport) Router(handler transport.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)

	r.Post("/dispatch", func(w http.ResponseWriter, r *http.Request) {
		t.handleDispatch(w, r, handler)
	})

	// Swagger UI serves the generated OpenAPI docs.
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))
	return r
}

// Listen starts the HTTP server and routes incoming requests to the handler.
func (t *Transport) Listen(ctx context.Context, handler transport.Handler) error {
	t.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", t.port),
		Handler:           t.Router(handler),
		ReadHeaderTimeout: 10 * time.Second,
	}

	slog.Info("http transport listening", "port", t.port)

	go func() {
		<-ctx.Done()
		slog.Info("http transport shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = t.server.Shutdown(shutdownCtx)
	}()

	if err := t.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http listen: %w", err)
	}
	return nil
}

// handleDispatch processes a POST /dispatch request.
//
// @Summary     Relay a text or voice message
// @Description Accepts a JSON message (text, command, or base64 audio) or raw voice audio bytes.
// @Description The message runs through the relay pipeline (transcribe, detect, translate, synthesize)
// @Description and the replies that would have been sent to the chat are returned.
// @Tags        dispatch
// @Accept      json
// @Accept      audio/ogg
// @Accept      audio/mpeg
// @Accept      audio/wav
// @Produce     json
// @Param       message              body    DispatchRequest  true   "Dispatch request (JSON). For raw audio, POST the bytes directly with the appropriate Content-Type."
// @Param       X-Linguabridge-User  header  int              false  "Sender identifier (used with raw audio uploads)"
// @Success     200  {object}  message.DispatchResult  "Pipeline result with reply text and audio"
// @Failure     400  {string}  string  "Invalid request body or headers"
// @Failure     500  {string}  string  "Internal processing error"
// @Router      /dispatch [post]
func (t *Transport) handleDispatch(w http.ResponseWriter, r *http.Request, handler transport.Handler) {
	msg, err := decodeMessage(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	collector := &transport.Collector{}
	result, err := handler(r.Context(), msg, collector)
	if err != nil {
		slog.Error("dispatch failed", "error", err, "request_id", chimw.GetReqID(r.Context()))
		http.Error(w, "dispatch failed", http.StatusInternalServerError)
		return
	}

	if texts := collector.Texts(); result.ResponseText == "" && len(texts) > 0 {
		result.ResponseText = strings.Join(texts, "\n")
	}
	if data, format := collector.Voice(); len(data) > 0 {
		result.SetResponseAudioBytes(data)
		result.ResponseContentType = format.ContentType()
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(result)
}

// decodeMessage builds a private-chat message from either request shape.
func decodeMessage(r *http.Request) (*message.Message, error) {
	body := io.LimitReader(r.Body, maxBodyBytes)
	contentType := r.Header.Get("Content-Type")

	if strings.HasPrefix(contentType, "application/json") {
		var req DispatchRequest
		if err := json.NewDecoder(body).Decode(&req); err != nil {
			return nil, fmt.Errorf("invalid json: %w", err)
		}
		if req.Text != "" {
			return message.NewText(req.UserID, req.UserID, message.ChatPrivate, req.Text), nil
		}
		if req.Audio == "" {
			return nil, errors.New("either text or audio is required")
		}
		data, err := base64.StdEncoding.DecodeString(req.Audio)
		if err != nil {
			return nil, fmt.Errorf("invalid audio: %w", err)
		}
		ct := req.ContentType
		if ct == "" {
			ct = audio.FormatOgg.ContentType()
		}
		return voiceMessage(req.UserID, ct, data), nil
	}

	// Anything else is raw audio; the sender comes from a header.
	var user int64
	if h := r.Header.Get(userHeader); h != "" {
		id, err := strconv.ParseInt(h, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid %s header: %w", userHeader, err)
		}
		user = id
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("reading audio: %w", err)
	}
	if len(data) == 0 {
		return nil, errors.New("empty audio body")
	}
	if contentType == "" {
		contentType = audio.FormatOgg.ContentType()
	}
	return voiceMessage(user, contentType, data), nil
}

func voiceMessage(user int64, contentType string, data []byte) *message.Message {
	return message.NewVoice(user, user, message.ChatPrivate, &message.Voice{
		MimeType: contentType,
		Size:     int64(len(data)),
		Data:     data,
	})
}

// Close gracefully shuts down the HTTP server.
func (t *Transport) Close() error {
	if t.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return t.server.Shutdown(ctx)
	}
	return nil
}
