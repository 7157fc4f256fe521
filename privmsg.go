package main

import (
	"context"
	"log/slog"
	"strings"

	"github.com/zephyrtronium/relaybot/command"
	"github.com/zephyrtronium/relaybot/message"
	"github.com/zephyrtronium/relaybot/source"
)

// mainMessage processes a PRIVMSG from the main network.
func (robo *Robot) mainMessage(ctx context.Context, m *message.Received) {
	call, ok := parseCommand(ctx, robo.log, &robo.sources, robo.main.cfg.Nick, m)
	if !ok {
		return
	}
	log := robo.log.With(
		slog.String("action", call.Action),
		slog.String("source", call.Source.Name),
		slog.String("from", m.From),
	)
	robo.metrics.Commands.Observe(1, call.Source.Kind.String())
	switch call.Source.Kind {
	case source.Self:
		f := command.Self(call.Action)
		if f == nil {
			log.DebugContext(ctx, "no self command")
			return
		}
		log.InfoContext(ctx, "command", slog.String("kind", "self"), slog.Any("params", call.Params))
		f(ctx, robo.commands(), call)
	case source.Relay:
		log.InfoContext(ctx, "command", slog.String("kind", "relay"))
		if robo.engine.Forward(ctx, call.Source, call.Reply, call.Text) {
			robo.metrics.Forwarded.Observe(1, call.Source.Name)
		}
	}
}

// parseCommand resolves the command in a message. me is the bot's nick, so
// that replies to private messages go back to the sender.
func parseCommand(ctx context.Context, log *slog.Logger, reg *source.Registry, me string, m *message.Received) (*command.Invocation, bool) {
	w := strings.Fields(m.Text)
	if len(w) == 0 {
		return nil, false
	}
	action := source.Fold(w[0])
	src, ok := reg.Resolve(action)
	if !ok {
		log.DebugContext(ctx, "not a command", slog.String("word", action))
		return nil, false
	}
	reply := m.To
	if strings.EqualFold(m.To, me) {
		reply = m.From
	}
	call := command.Invocation{
		Source: src,
		Text:   m.Text,
		Action: action,
		Reply:  reply,
		Params: w[1:],
	}
	return &call, true
}
