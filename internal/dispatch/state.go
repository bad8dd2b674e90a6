package dispatch

import (
	"fmt"

	"github.com/nadzzz/linguabridge/internal/message"
)

// State is a step of the per-message pipeline.
type State string

const (
	StateReceived         State = "Received"
	StateTranscribed      State = "Transcribed"
	StateLanguageDetected State = "LanguageDetected"
	StateTargetResolved   State = "TargetResolved"
	StateTranslated       State = "Translated"
	StateTextReplySent    State = "TextReplySent"
	StateAudioSynthesized State = "AudioSynthesized"
	StateAudioReplySent   State = "AudioReplySent"
	StateDone             State = "Done"

	StateRejectedUnsupportedLanguage State = "RejectedUnsupportedLanguage"
	StateDetectionFailed             State = "DetectionFailed"
	StateTranscriptionFailed         State = "TranscriptionFailed"
	StateTranslationFailed           State = "TranslationFailed"
	StateSynthesisFailed             State = "SynthesisFailed"
	StateDeliveryFailed              State = "DeliveryFailed"

	StateIgnored        State = "Ignored"
	StateCommandHandled State = "CommandHandled"
)

// transitions is the complete set of legal moves. Terminal states have no entry.
var transitions = map[State][]State{
	StateReceived: {
		StateTranscribed, StateTranscriptionFailed,
		StateLanguageDetected, StateDetectionFailed,
		StateIgnored, StateCommandHandled,
	},
	StateTranscribed:      {StateLanguageDetected, StateDetectionFailed},
	StateLanguageDetected: {StateTargetResolved, StateRejectedUnsupportedLanguage},
	StateTargetResolved:   {StateTranslated, StateTranslationFailed},
	StateTranslated:       {StateTextReplySent, StateDeliveryFailed},
	StateTextReplySent:    {StateAudioSynthesized, StateSynthesisFailed},
	StateAudioSynthesized: {StateAudioReplySent, StateSynthesisFailed},
	StateAudioReplySent:   {StateDone},
}

var outcomes = map[State]message.Outcome{
	StateDone:                        message.OutcomeDone,
	StateIgnored:                     message.OutcomeIgnored,
	StateCommandHandled:              message.OutcomeCommand,
	StateDetectionFailed:             message.OutcomeDetectionFailed,
	StateRejectedUnsupportedLanguage: message.OutcomeUnsupported,
	StateTranscriptionFailed:         message.OutcomeTranscriptionFailed,
	StateTranslationFailed:           message.OutcomeTranslationFailed,
	StateSynthesisFailed:             message.OutcomeSynthesisFailed,
	StateDeliveryFailed:              message.OutcomeDeliveryFailed,
}

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool {
	_, ok := transitions[s]
	return !ok
}

func canTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// run tracks one message through the state machine.
type run struct {
	state State
	trace []State
}

func newRun() *run {
	return &run{state: StateReceived, trace: []State{StateReceived}}
}

// to moves the run to next. An illegal move is a programming error.
func (r *run) to(next State) {
	if !canTransition(r.state, next) {
		panic(fmt.Sprintf("dispatch: illegal transition %s -> %s", r.state, next))
	}
	r.state = next
	r.trace = append(r.trace, next)
}

func (r *run) names() []string {
	out := make([]string, len(r.trace))
	for i, s := range r.trace {
		out[i] = string(s)
	}
	return out
}

// outcome maps the current state to a result outcome. A run that stopped in
// a non-terminal state was aborted by an internal error.
func (r *run) outcome() message.Outcome {
	if o, ok := outcomes[r.state]; ok {
		return o
	}
	return message.Outcome("aborted")
}
