package audio

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
)

// Converter changes the container format of an audio payload.
type Converter interface {
	// Name returns the converter identifier (e.g., "ffmpeg", "opus").
	Name() string

	// Convert writes src in the target format to dst and returns the new payload.
	Convert(ctx context.Context, src Payload, dst string, to Format) (Payload, error)
}

// Passthrough is a Converter that only accepts conversions to the same format.
// It is used when a backend consumes the source format directly.
type Passthrough struct{}

// Name returns the converter identifier.
func (Passthrough) Name() string { return "none" }

// Convert returns src unchanged when no conversion is needed.
func (Passthrough) Convert(_ context.Context, src Payload, _ string, to Format) (Payload, error) {
	if src.Format == to {
		return src, nil
	}
	return Payload{}, fmt.Errorf("%w: %s to %s without a converter", ErrUnsupportedConversion, src.Format, to)
}

// FFmpeg converts audio by running the ffmpeg binary.
type FFmpeg struct {
	bin string
}

// NewFFmpeg creates an ffmpeg converter. An empty path looks up "ffmpeg" in PATH.
func NewFFmpeg(path string) *FFmpeg {
	if path == "" {
		path = "ffmpeg"
	}
	return &FFmpeg{bin: path}
}

// Name returns the converter identifier.
func (f *FFmpeg) Name() string { return "ffmpeg" }

// Available reports whether the ffmpeg binary can be found.
func (f *FFmpeg) Available() error {
	if _, err := exec.LookPath(f.bin); err != nil {
		return fmt.Errorf("ffmpeg not found: %w", err)
	}
	return nil
}

// Convert transcodes src into dst. Speech does not need more than mono 16 kHz
// for recognition, but synthesized output keeps its sample rate.
func (f *FFmpeg) Convert(ctx context.Context, src Payload, dst string, to Format) (Payload, error) {
	if src.Format == to {
		return src, nil
	}

	args := []string{"-nostdin", "-y", "-hide_banner", "-loglevel", "error", "-i", src.Path, "-vn"}
	switch to {
	case FormatOgg:
		args = append(args, "-c:a", "libopus", "-b:a", "32k", "-vbr", "on", "-compression_level", "10")
	case FormatMP3:
		args = append(args, "-ac", "1", "-c:a", "libmp3lame", "-q:a", "4")
	case FormatWAV:
		args = append(args, "-ac", "1", "-ar", "16000", "-c:a", "pcm_s16le")
	default:
		return Payload{}, fmt.Errorf("%w: target %q", ErrUnsupportedConversion, to)
	}
	args = append(args, dst)

	cmd := exec.CommandContext(ctx, f.bin, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return Payload{}, fmt.Errorf("ffmpeg %s -> %s: %w: %s", src.Format, to, err, strings.TrimSpace(string(out)))
	}

	slog.Debug("ffmpeg conversion complete", "from", src.Format, "to", to)
	return Payload{Path: dst, Format: to}, nil
}
