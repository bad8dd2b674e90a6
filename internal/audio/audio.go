// Package audio holds the audio payload type that flows through the relay,
// the per-message scratch workspace that owns temporary audio files, and the
// converters that move audio between container formats.
package audio

import (
	"errors"
	"strings"
)

// Format identifies an audio container.
type Format string

const (
	// FormatOgg is Ogg/Opus, the compressed codec Telegram uses for voice notes.
	FormatOgg Format = "ogg"
	// FormatMP3 is MPEG-1 layer 3.
	FormatMP3 Format = "mp3"
	// FormatWAV is RIFF/WAVE with 16-bit PCM.
	FormatWAV Format = "wav"
)

// ErrUnsupportedConversion is returned by a converter asked for a conversion it cannot do.
var ErrUnsupportedConversion = errors.New("unsupported audio conversion")

// Payload is an audio file on disk inside a Workspace.
type Payload struct {
	Path   string
	Format Format
}

// Ext returns the file extension for the format, including the dot.
func (f Format) Ext() string {
	switch f {
	case FormatOgg, FormatMP3, FormatWAV:
		return "." + string(f)
	default:
		return ".bin"
	}
}

// ContentType returns the MIME type for the format.
func (f Format) ContentType() string {
	switch f {
	case FormatOgg:
		return "audio/ogg"
	case FormatMP3:
		return "audio/mpeg"
	case FormatWAV:
		return "audio/wav"
	default:
		return "application/octet-stream"
	}
}

// FormatFromContentType maps a MIME type (or file name) to a Format.
// Unknown types default to Ogg, which is what voice notes arrive as.
func FormatFromContentType(ct string) Format {
	ct = strings.ToLower(ct)
	switch {
	case strings.Contains(ct, "wav"):
		return FormatWAV
	case strings.Contains(ct, "mp3"), strings.Contains(ct, "mpeg"):
		return FormatMP3
	default:
		return FormatOgg
	}
}

// ParseFormat parses a config value such as "mp3" or ".ogg".
func ParseFormat(s string) (Format, bool) {
	switch f := Format(strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), ".")); f {
	case FormatOgg, FormatMP3, FormatWAV:
		return f, true
	case "opus":
		return FormatOgg, true
	default:
		return "", false
	}
}
