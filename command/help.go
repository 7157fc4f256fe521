package command

import (
	"context"
	"strings"

	"github.com/zephyrtronium/relaybot/phrase"
)

// Help lists every command, or describes one.
func Help(ctx context.Context, robo *Robot, call *Invocation) {
	if len(call.Params) == 0 {
		robo.Reply(ctx, call.Reply, phrase.Help, strings.Join(robo.Sources.Commands(), " "))
		return
	}
	cmd := call.Params[0]
	src, ok := robo.Sources.Resolve(cmd)
	if !ok {
		robo.Reply(ctx, call.Reply, phrase.HelpNotFound, cmd)
		return
	}
	robo.Reply(ctx, call.Reply, phrase.ProvidedBy, src.Name)
	if src.Description == "" {
		robo.Reply(ctx, call.Reply, phrase.HelpNotAvailable, cmd)
		return
	}
	robo.Text(ctx, call.Reply, src.Description)
}
