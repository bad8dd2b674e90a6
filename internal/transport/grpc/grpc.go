// Package grpc implements the gRPC transport for linguabridge.
//
// It serves a single unary method, linguabridge.v1.Relay/Dispatch, encoded
// with a JSON codec, plus the standard gRPC health service. Replies the
// pipeline would send to a chat are collected and returned in the response.
package grpc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"github.com/nadzzz/linguabridge/internal/audio"
	"github.com/nadzzz/linguabridge/internal/message"
	"github.com/nadzzz/linguabridge/internal/transport"
)

const (
	serviceName    = "linguabridge.v1.Relay"
	dispatchMethod = "/" + serviceName + "/Dispatch"
)

// DispatchRequest is the Relay/Dispatch request.
type DispatchRequest struct {
	UserID      int64  `json:"user_id"`
	Text        string `json:"text,omitempty"`
	Audio       []byte `json:"audio,omitempty"`
	ContentType string `json:"content_type,omitempty"`
}

// RelayServer is the server API for the Relay service.
type RelayServer interface {
	Dispatch(ctx context.Context, req *DispatchRequest) (*message.DispatchResult, error)
}

var relayServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*RelayServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Dispatch", Handler: dispatchHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "linguabridge/v1/relay.proto",
}

func dispatchHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(DispatchRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RelayServer).Dispatch(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: dispatchMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(RelayServer).Dispatch(ctx, req.(*DispatchRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// relayServer adapts a transport.Handler to RelayServer.
type relayServer struct {
	handler transport.Handler
}

func (s *relayServer) Dispatch(ctx context.Context, req *DispatchRequest) (*message.DispatchResult, error) {
	var msg *message.Message
	switch {
	case strings.TrimSpace(req.Text) != "":
		msg = message.NewText(req.UserID, req.UserID, message.ChatPrivate, req.Text)
	case len(req.Audio) > 0:
		ct := req.ContentType
		if ct == "" {
			ct = audio.FormatOgg.ContentType()
		}
		msg = message.NewVoice(req.UserID, req.UserID, message.ChatPrivate, &message.Voice{
			MimeType: ct,
			Size:     int64(len(req.Audio)),
			Data:     req.Audio,
		})
	default:
		return nil, status.Error(codes.InvalidArgument, "either text or audio is required")
	}

	collector := &transport.Collector{}
	result, err := s.handler(ctx, msg, collector)
	if err != nil {
		slog.Error("grpc dispatch failed", "error", err)
		return nil, status.Error(codes.Internal, "dispatch failed")
	}
	if texts := collector.Texts(); result.ResponseText == "" && len(texts) > 0 {
		result.ResponseText = strings.Join(texts, "\n")
	}
	if data, format := collector.Voice(); len(data) > 0 {
		result.SetResponseAudioBytes(data)
		result.ResponseContentType = format.ContentType()
	}
	return result, nil
}

// Transport implements transport.Transport over gRPC.
type Transport struct {
	port   int
	server *grpc.Server
	health *health.Server
}

// New creates a new gRPC transport on the given port.
func New(port int) *Transport {
	return &Transport{port: port}
}

// Name returns the transport identifier.
func (t *Transport) Name() string { return "grpc" }

// Listen starts the gRPC server and routes incoming requests to the handler.
func (t *Transport) Listen(ctx context.Context, handler transport.Handler) error {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", t.port))
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}
	slog.Info("grpc transport listening", "port", t.port)
	return t.serve(ctx, lis, handler)
}

func (t *Transport) serve(ctx context.Context, lis net.Listener, handler transport.Handler) error {
	t.server = grpc.NewServer()
	t.server.RegisterService(&relayServiceDesc, &relayServer{handler: handler})

	t.health = health.NewServer()
	healthpb.RegisterHealthServer(t.server, t.health)
	t.health.SetServingStatus(serviceName, healthpb.HealthCheckResponse_SERVING)

	go func() {
		<-ctx.Done()
		slog.Info("grpc transport shutting down")
		t.health.Shutdown()
		t.server.GracefulStop()
	}()

	if err := t.server.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("grpc serve: %w", err)
	}
	return nil
}

// Close gracefully stops the gRPC server.
func (t *Transport) Close() error {
	if t.server != nil {
		t.server.GracefulStop()
	}
	return nil
}

// Client calls the Relay service.
type Client struct {
	conn grpc.ClientConnInterface
}

// NewClient wraps an established connection.
func NewClient(conn grpc.ClientConnInterface) *Client {
	return &Client{conn: conn}
}

// Dispatch sends one message through the relay.
func (c *Client) Dispatch(ctx context.Context, req *DispatchRequest, opts ...grpc.CallOption) (*message.DispatchResult, error) {
	out := new(message.DispatchResult)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(codecName)}, opts...)
	if err := c.conn.Invoke(ctx, dispatchMethod, req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
