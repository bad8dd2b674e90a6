package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nadzzz/linguabridge/internal/config"
	"github.com/nadzzz/linguabridge/internal/language"
	"github.com/nadzzz/linguabridge/internal/message"
	"github.com/nadzzz/linguabridge/internal/transport"
)

type commandSet struct {
	start    string
	auto     string
	force    map[string]language.Tag
	keyboard [][]string
	forced   map[language.Tag]string
	welcome  string
	autoMsg  string
}

func newCommandSet(cmds config.CommandsConfig, msgs config.MessagesConfig, policy *language.Policy) (commandSet, error) {
	cs := commandSet{
		start:    normalizeCommand(cmds.Start),
		auto:     normalizeCommand(cmds.Auto),
		force:    make(map[string]language.Tag, len(cmds.Force)),
		keyboard: cmds.Keyboard,
		forced:   make(map[language.Tag]string, len(msgs.Forced)),
		welcome:  msgs.Welcome,
		autoMsg:  msgs.Auto,
	}
	for lang, text := range msgs.Forced {
		cs.forced[language.Parse(lang)] = text
	}

	supported := make(map[language.Tag]bool)
	for _, l := range policy.Supported() {
		supported[l] = true
	}
	for name, code := range cmds.Force {
		lang := language.Parse(code)
		if !supported[lang] {
			return commandSet{}, fmt.Errorf("dispatch: command /%s forces %q, which the language policy does not route", name, lang)
		}
		if cs.forced[lang] == "" {
			return commandSet{}, fmt.Errorf("dispatch: no confirmation message configured for forced language %q", lang)
		}
		cs.force[normalizeCommand(name)] = lang
	}
	return cs, nil
}

// parseCommand extracts the command name from text like "/forzauk@MyBot extra".
func parseCommand(text string) (string, bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", false
	}
	name := text[1:]
	if idx := strings.IndexAny(name, " \t\n"); idx >= 0 {
		name = name[:idx]
	}
	name = normalizeCommand(name)
	return name, name != ""
}

func normalizeCommand(name string) string {
	name = strings.TrimPrefix(strings.TrimSpace(name), "/")
	if idx := strings.Index(name, "@"); idx >= 0 {
		name = name[:idx]
	}
	return name
}

// handleCommand runs a bot command. Unknown commands are ignored silently.
func (d *Dispatcher) handleCommand(ctx context.Context, logger *slog.Logger, r *run, msg *message.Message, name string, ch transport.Channel) error {
	var err error
	switch lang, isForce := d.commands.force[name]; {
	case name == d.commands.start:
		r.to(StateCommandHandled)
		err = ch.SendKeyboard(ctx, d.commands.welcome, d.commands.keyboard)

	case name == d.commands.auto:
		d.overrides.Clear(msg.UserID)
		overridesChanged.WithLabelValues("auto").Inc()
		r.to(StateCommandHandled)
		logger.Info("forced language cleared")
		err = ch.SendText(ctx, d.commands.autoMsg)

	case isForce:
		d.overrides.Set(msg.UserID, lang)
		overridesChanged.WithLabelValues(string(lang)).Inc()
		r.to(StateCommandHandled)
		logger.Info("forced language set", "language", lang)
		err = ch.SendText(ctx, d.commands.forced[lang])

	default:
		logger.Debug("ignoring unknown command", "command", name)
		r.to(StateIgnored)
		return nil
	}

	if err != nil {
		return fmt.Errorf("sending /%s reply: %w", name, err)
	}
	return nil
}
