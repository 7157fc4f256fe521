package command

import (
	"context"

	"github.com/zephyrtronium/relaybot/source"
)

// Invocation is a command invocation. An Invocation and its fields must not
// be modified or retained by any command.
type Invocation struct {
	// Source is the source that provides the command.
	Source *source.Source
	// Text is the full text of the message which triggered the invocation.
	Text string
	// Action is the case-folded command word.
	Action string
	// Reply is the channel or nick that receives responses.
	Reply string
	// Params is the whitespace-separated words following the command word.
	Params []string
}

// Func executes a command.
type Func func(ctx context.Context, robo *Robot, call *Invocation)

// Self returns the bot's own command for a case-folded command word.
// The result is nil if the word names no command.
func Self(action string) Func {
	switch action {
	case "!watch":
		return Watch
	case "!unwatch":
		return Unwatch
	case "!watched":
		return Watched
	case "!help":
		return Help
	default:
		return nil
	}
}
