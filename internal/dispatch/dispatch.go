// Package dispatch implements the translation pipeline.
//
// The dispatcher receives messages from transports and runs each one through
// an explicit state machine: transcribe (voice only) → detect → resolve the
// target language → translate → reply with text → synthesize → reply with
// voice. Every failure ends the run with exactly one short message to the
// user, and temporary audio is released on every path.
package dispatch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"text/template"
	"time"

	"github.com/nadzzz/linguabridge/internal/audio"
	"github.com/nadzzz/linguabridge/internal/config"
	"github.com/nadzzz/linguabridge/internal/detect"
	"github.com/nadzzz/linguabridge/internal/language"
	"github.com/nadzzz/linguabridge/internal/message"
	"github.com/nadzzz/linguabridge/internal/override"
	"github.com/nadzzz/linguabridge/internal/transcribe"
	"github.com/nadzzz/linguabridge/internal/translate"
	"github.com/nadzzz/linguabridge/internal/transport"
	"github.com/nadzzz/linguabridge/internal/tts"
)

// Options holds the collaborators of a Dispatcher.
type Options struct {
	Policy      *language.Policy
	Detector    detect.Detector
	Overrides   override.Store
	Transcriber transcribe.Transcriber
	Translator  translate.Translator
	Synthesizer tts.Synthesizer

	// Converter re-encodes synthesized speech into VoiceFormat.
	Converter   audio.Converter
	Scratch     *audio.Scratch
	VoiceFormat audio.Format

	// TranslateFromDetected passes the detected language to the translator
	// instead of letting the backend detect the source itself.
	TranslateFromDetected bool

	Commands config.CommandsConfig
	Messages config.MessagesConfig
}

// Dispatcher is the pipeline orchestrator.
type Dispatcher struct {
	policy      *language.Policy
	detector    detect.Detector
	overrides   override.Store
	transcriber transcribe.Transcriber
	translator  translate.Translator
	synthesizer tts.Synthesizer
	converter   audio.Converter
	scratch     *audio.Scratch
	voiceFormat audio.Format
	fromDetect  bool

	commands commandSet
	messages config.MessagesConfig
	reply    *template.Template
}

// New validates opts and creates a Dispatcher.
func New(opts Options) (*Dispatcher, error) {
	switch {
	case opts.Policy == nil:
		return nil, fmt.Errorf("dispatch: language policy is required")
	case opts.Detector == nil, opts.Transcriber == nil, opts.Translator == nil, opts.Synthesizer == nil:
		return nil, fmt.Errorf("dispatch: detector, transcriber, translator and synthesizer are required")
	case opts.Scratch == nil:
		return nil, fmt.Errorf("dispatch: scratch directory is required")
	}

	overrides := opts.Overrides
	if overrides == nil {
		overrides = override.NewMemoryStore()
	}
	conv := opts.Converter
	if conv == nil {
		conv = audio.Passthrough{}
	}
	voiceFormat := opts.VoiceFormat
	if voiceFormat == "" {
		voiceFormat = audio.FormatOgg
	}

	reply, err := template.New("reply").Parse(opts.Messages.Reply)
	if err != nil {
		return nil, fmt.Errorf("dispatch: parsing reply template: %w", err)
	}

	cmds, err := newCommandSet(opts.Commands, opts.Messages, opts.Policy)
	if err != nil {
		return nil, err
	}

	return &Dispatcher{
		policy:      opts.Policy,
		detector:    opts.Detector,
		overrides:   overrides,
		transcriber: opts.Transcriber,
		translator:  opts.Translator,
		synthesizer: opts.Synthesizer,
		converter:   conv,
		scratch:     opts.Scratch,
		voiceFormat: voiceFormat,
		fromDetect:  opts.TranslateFromDetected,
		commands:    cmds,
		messages:    opts.Messages,
		reply:       reply,
	}, nil
}

// Handle processes a single message through the full pipeline.
// This function is passed as the transport.Handler to each transport.
//
// User-facing failures are not errors: they end in a terminal state recorded
// in the result. An error is returned only when a reply could not be delivered.
func (d *Dispatcher) Handle(ctx context.Context, msg *message.Message, ch transport.Channel) (*message.DispatchResult, error) {
	start := time.Now()
	logger := slog.With("message_id", msg.ID, "user_id", msg.UserID, "kind", msg.Kind)

	r := newRun()
	result := &message.DispatchResult{MessageID: msg.ID}
	defer func() {
		result.States = r.names()
		result.Outcome = r.outcome()
		messagesTotal.WithLabelValues(string(msg.Kind), string(result.Outcome)).Inc()
		logger.Info("dispatch complete", "outcome", result.Outcome, "duration", time.Since(start))
	}()

	if !msg.IsPrivate() {
		logger.Debug("ignoring non-private chat", "chat_kind", msg.ChatKind)
		r.to(StateIgnored)
		return result, nil
	}

	var text string
	switch msg.Kind {
	case message.KindText:
		if name, ok := parseCommand(msg.Text); ok {
			return result, d.handleCommand(ctx, logger, r, msg, name, ch)
		}
		text = msg.Text
	case message.KindVoice:
		var ok bool
		if text, ok = d.transcribeVoice(ctx, logger, r, msg, ch, result); !ok {
			return result, nil
		}
	default:
		return result, fmt.Errorf("unknown message kind %q", msg.Kind)
	}

	return result, d.relay(ctx, logger, r, text, ch, result)
}

// transcribeVoice fetches and transcribes a voice note inside its own
// workspace, which is released before returning.
func (d *Dispatcher) transcribeVoice(ctx context.Context, logger *slog.Logger, r *run, msg *message.Message, ch transport.Channel, result *message.DispatchResult) (string, bool) {
	defer observe("transcribe", time.Now())

	if msg.Voice == nil {
		d.fail(ctx, logger, r, ch, result, StateTranscriptionFailed, d.messages.TranscriptionFailed, "fetch", errors.New("voice message without voice payload"))
		return "", false
	}

	ws, err := d.scratch.Acquire("voice")
	if err != nil {
		d.fail(ctx, logger, r, ch, result, StateTranscriptionFailed, d.messages.TranscriptionFailed, "workspace", err)
		return "", false
	}
	defer func() {
		if err := ws.Release(); err != nil {
			logger.Warn("releasing voice workspace", "error", err)
		}
	}()

	f, voice, err := ws.Create("input", audio.FormatFromContentType(msg.Voice.MimeType))
	if err != nil {
		d.fail(ctx, logger, r, ch, result, StateTranscriptionFailed, d.messages.TranscriptionFailed, "workspace", err)
		return "", false
	}
	err = ch.FetchVoice(ctx, msg.Voice, f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		d.fail(ctx, logger, r, ch, result, StateTranscriptionFailed, d.messages.TranscriptionFailed, "fetch", err)
		return "", false
	}

	hint, forced := d.overrides.Get(msg.UserID)
	text, err := d.transcriber.Transcribe(ctx, ws, voice, hint)
	if err != nil {
		stage := "recognize"
		if errors.Is(err, transcribe.ErrDecode) {
			stage = "decode"
		}
		d.fail(ctx, logger, r, ch, result, StateTranscriptionFailed, d.messages.TranscriptionFailed, stage, err)
		return "", false
	}

	r.to(StateTranscribed)
	result.Transcript = text
	logger.Info("voice transcribed", "forced", forced, "hint", hint, "text_length", len(text))
	return text, true
}

// relay runs the shared text path: detect, resolve, translate, reply, speak.
func (d *Dispatcher) relay(ctx context.Context, logger *slog.Logger, r *run, text string, ch transport.Channel, result *message.DispatchResult) error {
	if strings.TrimSpace(text) == "" {
		d.fail(ctx, logger, r, ch, result, StateDetectionFailed, d.messages.DetectionFailed, "detect", detect.ErrUndetermined)
		return nil
	}

	detectStart := time.Now()
	detected, err := d.detector.Detect(ctx, text)
	observe("detect", detectStart)
	if err != nil {
		d.fail(ctx, logger, r, ch, result, StateDetectionFailed, d.messages.DetectionFailed, "detect", err)
		return nil
	}
	r.to(StateLanguageDetected)
	result.DetectedLanguage = string(detected)

	target, err := d.policy.Resolve(detected)
	if err != nil {
		d.fail(ctx, logger, r, ch, result, StateRejectedUnsupportedLanguage, d.messages.Unsupported, "resolve", err)
		return nil
	}
	r.to(StateTargetResolved)
	result.TargetLanguage = string(target)

	source := language.Auto
	if d.fromDetect {
		source = detected
	}
	translateStart := time.Now()
	translated, err := d.translator.Translate(ctx, text, source, target)
	observe("translate", translateStart)
	if err != nil {
		d.fail(ctx, logger, r, ch, result, StateTranslationFailed, d.messages.TranslationFailed, "translate", err)
		return nil
	}
	r.to(StateTranslated)
	result.Translation = translated

	reply, err := d.renderReply(detected, strings.TrimSpace(text), target, strings.TrimSpace(translated))
	if err != nil {
		r.to(StateDeliveryFailed)
		return err
	}
	if err := ch.SendText(ctx, reply); err != nil {
		r.to(StateDeliveryFailed)
		return fmt.Errorf("sending text reply: %w", err)
	}
	r.to(StateTextReplySent)
	result.ResponseText = reply
	logger.Info("text reply sent", "detected", detected, "target", target)

	d.speak(ctx, logger, r, translated, target, ch, result)
	return nil
}

// speak synthesizes the translation and sends it as a voice reply. The text
// reply has already been sent, so a failure here only reports the audio.
func (d *Dispatcher) speak(ctx context.Context, logger *slog.Logger, r *run, text string, lang language.Tag, ch transport.Channel, result *message.DispatchResult) {
	ws, err := d.scratch.Acquire("reply")
	if err != nil {
		d.fail(ctx, logger, r, ch, result, StateSynthesisFailed, d.messages.SynthesisFailed, "workspace", err)
		return
	}
	defer func() {
		if err := ws.Release(); err != nil {
			logger.Warn("releasing reply workspace", "error", err)
		}
	}()

	synthStart := time.Now()
	res, err := d.synthesizer.Synthesize(ctx, text, tts.SynthesizeOpts{Language: lang})
	observe("synthesize", synthStart)
	if err != nil {
		d.fail(ctx, logger, r, ch, result, StateSynthesisFailed, d.messages.SynthesisFailed, "synthesize", err)
		return
	}
	r.to(StateAudioSynthesized)

	synth, err := ws.WriteFile("speech", res.Format, res.Audio)
	if err != nil {
		d.fail(ctx, logger, r, ch, result, StateSynthesisFailed, d.messages.SynthesisFailed, "workspace", err)
		return
	}

	voice, err := d.converter.Convert(ctx, synth, ws.Path("reply", d.voiceFormat), d.voiceFormat)
	switch {
	case errors.Is(err, audio.ErrUnsupportedConversion):
		logger.Debug("sending synthesized audio unconverted", "format", synth.Format, "converter", d.converter.Name())
		voice = synth
	case err != nil:
		d.fail(ctx, logger, r, ch, result, StateSynthesisFailed, d.messages.SynthesisFailed, "encode", err)
		return
	}

	if err := ch.SendVoice(ctx, voice); err != nil {
		d.fail(ctx, logger, r, ch, result, StateSynthesisFailed, d.messages.SynthesisFailed, "send_voice", err)
		return
	}
	r.to(StateAudioReplySent)
	result.ResponseContentType = voice.Format.ContentType()
	r.to(StateDone)
}

// fail moves the run into a terminal failure state and sends the single
// user-facing message for it. Error details only go to the log.
func (d *Dispatcher) fail(ctx context.Context, logger *slog.Logger, r *run, ch transport.Channel, result *message.DispatchResult, state State, userMsg, stage string, err error) {
	r.to(state)
	result.Error = userMsg

	switch state {
	case StateRejectedUnsupportedLanguage, StateDetectionFailed:
		logger.Info("message rejected", "state", state, "stage", stage, "reason", err)
	default:
		logger.Error("pipeline stage failed", "state", state, "stage", stage, "error", err)
	}

	if sendErr := ch.SendText(ctx, userMsg); sendErr != nil {
		logger.Error("sending failure message", "state", state, "error", sendErr)
	}
}

type replyData struct {
	Detected    language.Tag
	Text        string
	Target      language.Tag
	Translation string
}

func (d *Dispatcher) renderReply(detected language.Tag, text string, target language.Tag, translation string) (string, error) {
	var buf bytes.Buffer
	if err := d.reply.Execute(&buf, replyData{Detected: detected, Text: text, Target: target, Translation: translation}); err != nil {
		return "", fmt.Errorf("rendering reply: %w", err)
	}
	return buf.String(), nil
}
