// Package message defines the core data types flowing through the linguabridge pipeline.
package message

import (
	"encoding/base64"
	"time"

	"github.com/google/uuid"
)

// Kind is the type of content a message carries.
type Kind string

const (
	// KindText is a plain text message (commands included).
	KindText Kind = "text"

	// KindVoice is a voice note that must be transcribed first.
	KindVoice Kind = "voice"
)

// ChatKind mirrors the Telegram chat types.
type ChatKind string

const (
	ChatPrivate    ChatKind = "private"
	ChatGroup      ChatKind = "group"
	ChatSupergroup ChatKind = "supergroup"
	ChatChannel    ChatKind = "channel"
)

// Message represents an incoming message from any transport.
type Message struct {
	// ID is a unique identifier for this message (UUID).
	ID string `json:"id"`

	// UserID identifies the sender. It keys the per-user override state.
	UserID int64 `json:"user_id"`

	// ChatID identifies the conversation replies go to.
	ChatID int64 `json:"chat_id"`

	// ChatKind is the kind of chat the message arrived in. Only private chats are served.
	ChatKind ChatKind `json:"chat_kind"`

	// Kind tells whether Text or Voice is set.
	Kind Kind `json:"kind"`

	// Text is the message text for KindText.
	Text string `json:"text,omitempty"`

	// Voice describes the voice note for KindVoice.
	Voice *Voice `json:"voice,omitempty"`

	// Timestamp is when the message was received by linguabridge.
	Timestamp time.Time `json:"timestamp"`
}

// Voice references a voice note. Transports that receive audio inline set
// Data; Telegram sets FileID and the bytes are fetched on demand.
type Voice struct {
	FileID   string `json:"file_id,omitempty"`
	MimeType string `json:"mime_type,omitempty"`
	Duration int    `json:"duration,omitempty"`
	Size     int64  `json:"size,omitempty"`
	Data     []byte `json:"-"`
}

// NewText creates a text message with a fresh ID.
func NewText(user, chat int64, kind ChatKind, text string) *Message {
	return &Message{
		ID:        uuid.NewString(),
		UserID:    user,
		ChatID:    chat,
		ChatKind:  kind,
		Kind:      KindText,
		Text:      text,
		Timestamp: time.Now().UTC(),
	}
}

// NewVoice creates a voice message with a fresh ID.
func NewVoice(user, chat int64, kind ChatKind, voice *Voice) *Message {
	return &Message{
		ID:        uuid.NewString(),
		UserID:    user,
		ChatID:    chat,
		ChatKind:  kind,
		Kind:      KindVoice,
		Voice:     voice,
		Timestamp: time.Now().UTC(),
	}
}

// IsPrivate reports whether the message came from a one-to-one chat.
func (m *Message) IsPrivate() bool { return m.ChatKind == ChatPrivate }

// Outcome summarises how the pipeline finished.
type Outcome string

const (
	OutcomeDone                Outcome = "done"
	OutcomeIgnored             Outcome = "ignored"
	OutcomeCommand             Outcome = "command"
	OutcomeDetectionFailed     Outcome = "detection_failed"
	OutcomeUnsupported         Outcome = "unsupported_language"
	OutcomeTranscriptionFailed Outcome = "transcription_failed"
	OutcomeTranslationFailed   Outcome = "translation_failed"
	OutcomeSynthesisFailed     Outcome = "synthesis_failed"
	OutcomeDeliveryFailed      Outcome = "delivery_failed"
)

// DispatchResult is the outcome of processing a message through the pipeline.
type DispatchResult struct {
	// MessageID is the original message ID.
	MessageID string `json:"message_id"`

	// Outcome is the terminal state of the run.
	Outcome Outcome `json:"outcome"`

	// States is the ordered trace of pipeline states the run went through.
	States []string `json:"states"`

	// Transcript is the text produced by audio transcription (empty if text input).
	Transcript string `json:"transcript,omitempty"`

	// DetectedLanguage is the ISO-639-1 code of the input.
	DetectedLanguage string `json:"detected_language,omitempty"`

	// TargetLanguage is the ISO-639-1 code the input was translated into.
	TargetLanguage string `json:"target_language,omitempty"`

	// Translation is the translated text.
	Translation string `json:"translation,omitempty"`

	// ResponseText is the text reply sent to the user.
	ResponseText string `json:"response_text,omitempty"`

	// ResponseAudio is the voice reply as a base64-encoded string.
	ResponseAudio string `json:"response_audio,omitempty"`

	// ResponseContentType is the MIME type of ResponseAudio (e.g., "audio/ogg").
	ResponseContentType string `json:"response_content_type,omitempty"`

	// Error is the user-facing failure message, if the run failed.
	Error string `json:"error,omitempty"`
}

// SetResponseAudioBytes base64-encodes raw audio bytes into ResponseAudio.
func (r *DispatchResult) SetResponseAudioBytes(audio []byte) {
	if len(audio) > 0 {
		r.ResponseAudio = base64.StdEncoding.EncodeToString(audio)
	}
}
