package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/hraban/opus"
)

// opusSampleRate is the fixed output rate of libopusfile.
const opusSampleRate = 48000

// Opus decodes Ogg/Opus voice notes to WAV in-process with libopusfile,
// avoiding the ffmpeg dependency. It only decodes; it cannot encode.
type Opus struct{}

// NewOpus creates an Opus converter.
func NewOpus() *Opus { return &Opus{} }

// Name returns the converter identifier.
func (o *Opus) Name() string { return "opus" }

// Convert decodes an Ogg/Opus payload to 16-bit mono WAV.
func (o *Opus) Convert(ctx context.Context, src Payload, dst string, to Format) (Payload, error) {
	if src.Format == to {
		return src, nil
	}
	if src.Format != FormatOgg || to != FormatWAV {
		return Payload{}, fmt.Errorf("%w: opus decoder handles ogg to wav only, got %s to %s", ErrUnsupportedConversion, src.Format, to)
	}

	f, err := os.Open(src.Path)
	if err != nil {
		return Payload{}, fmt.Errorf("opening ogg: %w", err)
	}
	defer f.Close()

	stream, err := opus.NewStream(f)
	if err != nil {
		return Payload{}, fmt.Errorf("opening opus stream: %w", err)
	}
	defer stream.Close()

	// Voice notes are mono; decode in 60 ms frames.
	var pcm []int16
	frame := make([]int16, opusSampleRate*60/1000)
	for {
		if err := ctx.Err(); err != nil {
			return Payload{}, err
		}
		n, err := stream.Read(frame)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Payload{}, fmt.Errorf("decoding opus: %w", err)
		}
		pcm = append(pcm, frame[:n]...)
	}
	if len(pcm) == 0 {
		return Payload{}, fmt.Errorf("decoding opus: no audio samples")
	}

	raw := make([]byte, len(pcm)*2)
	for i, s := range pcm {
		raw[2*i] = byte(s)
		raw[2*i+1] = byte(s >> 8)
	}
	if err := os.WriteFile(dst, PCMToWAV(raw, opusSampleRate, 1, 2), 0o600); err != nil {
		return Payload{}, fmt.Errorf("writing wav: %w", err)
	}

	slog.Debug("opus decode complete", "samples", len(pcm))
	return Payload{Path: dst, Format: FormatWAV}, nil
}
