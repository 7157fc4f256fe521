package command

import (
	"context"
	"log/slog"

	"github.com/zephyrtronium/relaybot/message"
	"github.com/zephyrtronium/relaybot/phrase"
	"github.com/zephyrtronium/relaybot/source"
	"github.com/zephyrtronium/relaybot/watchlist"
)

// Robot is the bot state as is visible to commands.
type Robot struct {
	Log     *slog.Logger
	Sources *source.Registry
	Watch   *watchlist.List
	Phrases phrase.Book
	// MaxLine is the longest line Say is given. Non-positive means no limit.
	MaxLine int
	// Say sends one line to the main network.
	Say func(ctx context.Context, msg message.Sent)
}

// Reply renders a phrase and sends it to to, split into lines.
func (robo *Robot) Reply(ctx context.Context, to string, k phrase.Key, args ...any) {
	robo.Text(ctx, to, robo.Phrases.Render(k, args...))
}

// Text sends literal text to to, split into lines.
func (robo *Robot) Text(ctx context.Context, to, text string) {
	for _, line := range phrase.Split(text, robo.MaxLine) {
		robo.Say(ctx, message.Sent{To: to, Text: line})
	}
}
