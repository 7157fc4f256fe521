// Package relay correlates commands forwarded to peers on the relay network
// with the replies those peers send back.
//
// The relay network has no notion of a request identity. Each peer is assumed
// to answer every forwarded command with exactly one line, in order, so
// replies are matched to requesters first-in first-out. A peer that answers
// with zero or several lines shifts every later reply onto the wrong
// requester until its queue drains.
package relay

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/zephyrtronium/relaybot/deque"
	"github.com/zephyrtronium/relaybot/message"
	"github.com/zephyrtronium/relaybot/source"
)

// Matcher reports whether text mentions anything being watched.
type Matcher interface {
	Matches(text string) bool
}

// Config is the configuration of an [Engine].
type Config struct {
	// Nick is the bot's own nick on the relay network.
	Nick string
	// Channel is the main network channel that receives relay messages which
	// have no pending requester.
	Channel string
	// Main queues a message to the main network. It must not block and
	// reports whether the message was queued.
	Main func(ctx context.Context, msg message.Sent) bool
	// Relay queues a message to the relay network, with the same contract
	// as Main.
	Relay func(ctx context.Context, msg message.Sent) bool
	// Watch decides whether unsolicited relay messages are rebroadcast.
	Watch Matcher
	// Log is the logger for forward and return events.
	Log *slog.Logger
}

// pending is a forwarded command awaiting its reply.
type pending struct {
	// reply is where the reply goes on the main network.
	reply string
	// trace identifies the request in logs only.
	trace uuid.UUID
	// when is the time the command was forwarded.
	when time.Time
}

// Engine routes commands to relay peers and their replies back.
// An Engine is not safe for concurrent use.
type Engine struct {
	cfg    Config
	queues map[string]deque.Deque[pending]
}

// New creates an engine with an empty queue for each peer.
// Sources which are not Relay sources are ignored.
func New(cfg Config, peers []*source.Source) *Engine {
	e := &Engine{
		cfg:    cfg,
		queues: make(map[string]deque.Deque[pending], len(peers)),
	}
	for _, p := range peers {
		if p.Kind != source.Relay {
			continue
		}
		e.queues[source.Fold(p.Name)] = deque.Deque[pending]{}
	}
	return e
}

// Forward sends text to src on the relay network and records reply as the
// destination of src's next reply. It reports whether the command was sent.
// A command which could not be sent leaves nothing pending.
func (e *Engine) Forward(ctx context.Context, src *source.Source, reply, text string) bool {
	k := source.Fold(src.Name)
	q, ok := e.queues[k]
	if !ok {
		// Replies from it would be unattributable.
		e.cfg.Log.WarnContext(ctx, "forward to unknown peer", slog.String("peer", src.Name))
		return false
	}
	if !e.cfg.Relay(ctx, message.Sent{To: src.Name, Text: text}) {
		e.cfg.Log.WarnContext(ctx, "forward not sent", slog.String("peer", src.Name), slog.String("reply", reply))
		return false
	}
	p := pending{reply: reply, trace: uuid.New(), when: time.Now()}
	e.queues[k] = q.Append(p)
	e.cfg.Log.InfoContext(ctx, "forward",
		slog.String("peer", src.Name),
		slog.String("reply", reply),
		slog.Any("trace", p.trace),
		slog.Int("pending", q.Len()+1),
	)
	return true
}

// Outcome is the result of handling a relay message.
type Outcome int

const (
	// Unattributed means the sender is not a known peer; nothing was done.
	Unattributed Outcome = iota
	// Dropped means the message was neither addressed to the bot nor
	// matched the watchlist. A pending requester, if any, was still consumed.
	Dropped
	// Delivered means the message went to a pending requester.
	Delivered
	// Broadcast means the message went to the main channel.
	Broadcast
)

func (o Outcome) String() string {
	switch o {
	case Unattributed:
		return "unattributed"
	case Dropped:
		return "dropped"
	case Delivered:
		return "delivered"
	case Broadcast:
		return "broadcast"
	default:
		return "unknown"
	}
}

// Return handles a message received on the relay network.
func (e *Engine) Return(ctx context.Context, msg *message.Received) Outcome {
	k := source.Fold(msg.From)
	q, ok := e.queues[k]
	if !ok {
		return Unattributed
	}
	log := e.cfg.Log.With(slog.String("peer", msg.From))
	target, out := e.cfg.Channel, Broadcast
	if p, ok := q.Front(); ok {
		e.queues[k] = q.DropFront(1)
		target, out = p.reply, Delivered
		log = log.With(slog.Any("trace", p.trace))
		log.DebugContext(ctx, "reply", slog.String("reply", p.reply), slog.Duration("waited", time.Since(p.when)))
	}
	if !strings.EqualFold(msg.To, e.cfg.Nick) && !e.cfg.Watch.Matches(msg.Text) {
		log.DebugContext(ctx, "drop", slog.String("to", msg.To))
		return Dropped
	}
	log.InfoContext(ctx, "return", slog.String("target", target), slog.String("outcome", out.String()))
	if !e.cfg.Main(ctx, message.Sent{To: target, Text: msg.Text}) {
		log.WarnContext(ctx, "return not sent", slog.String("target", target))
	}
	return out
}

// Pending returns the number of commands awaiting replies from a peer.
func (e *Engine) Pending(peer string) int {
	return e.queues[source.Fold(peer)].Len()
}
