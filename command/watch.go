package command

import (
	"context"
	"log/slog"
	"strings"

	"github.com/zephyrtronium/relaybot/phrase"
)

// Watch adds a nick to the watchlist.
func Watch(ctx context.Context, robo *Robot, call *Invocation) {
	if len(call.Params) == 0 {
		robo.Reply(ctx, call.Reply, phrase.NeedNick, call.Action)
		return
	}
	nick := call.Params[0]
	if robo.Watch.Contains(nick) {
		robo.Reply(ctx, call.Reply, phrase.WatchedAlready, nick)
		return
	}
	if err := robo.Watch.Add(ctx, nick); err != nil {
		robo.Log.ErrorContext(ctx, "watch failed", slog.String("nick", nick), slog.Any("err", err))
		robo.Reply(ctx, call.Reply, phrase.WatchFailed, nick)
		return
	}
	robo.Reply(ctx, call.Reply, phrase.WatchAdded, nick)
}

// Unwatch removes a nick from the watchlist.
func Unwatch(ctx context.Context, robo *Robot, call *Invocation) {
	if len(call.Params) == 0 {
		robo.Reply(ctx, call.Reply, phrase.NeedNick, call.Action)
		return
	}
	nick := call.Params[0]
	if !robo.Watch.Contains(nick) {
		robo.Reply(ctx, call.Reply, phrase.UnwatchedAlready, nick)
		return
	}
	if err := robo.Watch.Remove(ctx, nick); err != nil {
		robo.Log.ErrorContext(ctx, "unwatch failed", slog.String("nick", nick), slog.Any("err", err))
		robo.Reply(ctx, call.Reply, phrase.WatchFailed, nick)
		return
	}
	robo.Reply(ctx, call.Reply, phrase.WatchRemoved, nick)
}

// Watched lists the watched nicks.
func Watched(ctx context.Context, robo *Robot, call *Invocation) {
	w := "nobody"
	if all := robo.Watch.All(); all != nil {
		w = strings.Join(all, " ")
	}
	robo.Reply(ctx, call.Reply, phrase.Watched, w)
}
