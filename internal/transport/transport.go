// Package transport defines the interface for pluggable message transports.
//
// Each transport (Telegram, HTTP, gRPC) implements this interface and hands
// inbound messages to the dispatcher together with a Channel for replying.
// The dispatcher doesn't care how messages arrive or how replies leave.
package transport

import (
	"context"
	"io"

	"github.com/nadzzz/linguabridge/internal/audio"
	"github.com/nadzzz/linguabridge/internal/message"
)

// Channel is the reply path back to the sender of one message.
type Channel interface {
	// SendText sends a plain text reply.
	SendText(ctx context.Context, text string) error

	// SendKeyboard sends text with a reply keyboard; each inner slice is a row of buttons.
	SendKeyboard(ctx context.Context, text string, rows [][]string) error

	// SendVoice sends an audio file as a voice reply.
	SendVoice(ctx context.Context, voice audio.Payload) error

	// FetchVoice writes the bytes of an inbound voice note to dst.
	FetchVoice(ctx context.Context, voice *message.Voice, dst io.Writer) error
}

// Handler is a function that processes an incoming message and returns a result.
// The dispatcher provides this handler to each transport.
type Handler func(ctx context.Context, msg *message.Message, ch Channel) (*message.DispatchResult, error)

// Transport is the interface that every transport adapter must implement.
type Transport interface {
	// Name returns the transport identifier (e.g., "telegram", "http", "grpc").
	Name() string

	// Listen starts accepting incoming messages and dispatches them to the handler.
	// It blocks until the context is cancelled.
	Listen(ctx context.Context, handler Handler) error

	// Close gracefully shuts down the transport, draining in-flight work.
	Close() error
}
