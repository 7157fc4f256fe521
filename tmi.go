package main

import (
	"context"
	"log/slog"
	"strings"

	"gitlab.com/zephyrtronium/tmi"

	"github.com/zephyrtronium/relaybot/message"
	"github.com/zephyrtronium/relaybot/phrase"
)

// mainEvent handles a message from the main network.
func (robo *Robot) mainEvent(ctx context.Context, msg *tmi.Message) {
	switch msg.Command {
	case "PRIVMSG":
		robo.metrics.MainMessages.Observe(1)
		robo.mainMessage(ctx, message.FromIRC(msg, robo.strip))
	case "JOIN":
		robo.joined(ctx, msg)
	case "KICK":
		robo.kick(ctx, msg)
	case "376", "422": // End of MOTD, or no MOTD
		robo.join(ctx, robo.main)
	case "433": // Nick in use
		robo.log.ErrorContext(ctx, "main nick in use", slog.String("nick", robo.main.cfg.Nick))
	}
}

// relayEvent handles a message from the relay network.
func (robo *Robot) relayEvent(ctx context.Context, msg *tmi.Message) {
	switch msg.Command {
	case "PRIVMSG":
		robo.metrics.RelayMessages.Observe(1)
		out := robo.engine.Return(ctx, message.FromIRC(msg, robo.strip))
		robo.metrics.Returned.Observe(1, out.String())
	case "376", "422":
		robo.join(ctx, robo.relay)
	case "433":
		robo.log.ErrorContext(ctx, "relay nick in use", slog.String("nick", robo.relay.cfg.Nick))
	}
}

func (robo *Robot) join(ctx context.Context, n *network) {
	robo.log.InfoContext(ctx, "joining", slog.String("network", n.name), slog.String("channel", n.cfg.Channel))
	msg := tmi.Message{
		Command: "JOIN",
		Params:  []string{n.cfg.Channel},
	}
	robo.queue(ctx, n, &msg)
}

// joined greets the main channel when we join it.
func (robo *Robot) joined(ctx context.Context, msg *tmi.Message) {
	// Some servers send the channel as the trailing parameter.
	ch := msg.Trailing
	if len(msg.Params) > 0 {
		ch = msg.Params[0]
	}
	if !strings.EqualFold(msg.Nick, robo.main.cfg.Nick) || !strings.EqualFold(ch, robo.main.cfg.Channel) {
		return
	}
	k := phrase.Greeting
	if robo.kicked {
		k = phrase.Kicked
		robo.kicked = false
	}
	robo.log.InfoContext(ctx, "joined channel", slog.String("channel", ch), slog.String("greeting", string(k)))
	robo.commands().Reply(ctx, robo.main.cfg.Channel, k)
}

// kick notes when we are kicked from the main channel and rejoins.
func (robo *Robot) kick(ctx context.Context, msg *tmi.Message) {
	// KICK <channel> <nick> :<reason>
	if len(msg.Params) < 2 {
		return
	}
	if !strings.EqualFold(msg.Params[1], robo.main.cfg.Nick) || !strings.EqualFold(msg.Params[0], robo.main.cfg.Channel) {
		return
	}
	robo.log.WarnContext(ctx, "kicked",
		slog.String("channel", msg.Params[0]),
		slog.String("by", msg.Nick),
		slog.String("reason", msg.Trailing),
	)
	robo.kicked = true
	robo.join(ctx, robo.main)
}
