package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"gitlab.com/zephyrtronium/tmi"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/zephyrtronium/relaybot/command"
	"github.com/zephyrtronium/relaybot/message"
	"github.com/zephyrtronium/relaybot/metrics"
	"github.com/zephyrtronium/relaybot/phrase"
	"github.com/zephyrtronium/relaybot/relay"
	"github.com/zephyrtronium/relaybot/source"
	"github.com/zephyrtronium/relaybot/watchlist"
)

// Robot is the state of a running bridge. Everything except the network
// channels is owned by the event loop.
type Robot struct {
	// main is the network where users give commands.
	main *network
	// relay is the network where peers answer them.
	relay *network
	// sources is the command registry.
	sources source.Registry
	// engine correlates forwarded commands with replies.
	engine *relay.Engine
	// watch is the watchlist.
	watch *watchlist.List
	// phrases is the phrase book.
	phrases phrase.Book
	// maxLine is the line length for phrase text.
	maxLine int
	// strip removes formatting from received text.
	strip bool
	// kicked is set when we are kicked from the main channel and cleared when
	// we rejoin it.
	kicked bool
	// metrics is the bot's metrics.
	metrics *metrics.Metrics
	// exec is work to run on the event loop on behalf of other goroutines.
	exec chan func(context.Context)
	// log is the bot's logger.
	log *slog.Logger
}

// network is a connection to one IRC network.
type network struct {
	// name is "main" or "relay".
	name string
	// cfg is the network's configuration.
	cfg Network
	// send and recv are the channels to and from the connection.
	send chan *tmi.Message
	recv chan *tmi.Message
	// down is set by the event loop once the connection has given up.
	down bool
}

// New creates a robot from a validated configuration. The watchlist is loaded
// from stor.
func New(ctx context.Context, cfg *Config, stor watchlist.Storage, m *metrics.Metrics, log *slog.Logger) (*Robot, error) {
	srcs, err := cfg.Sources()
	if err != nil {
		return nil, err
	}
	stor = countFailures(stor, m.WatchlistFailures)
	w, err := watchlist.Open(ctx, log, stor)
	if err != nil {
		return nil, fmt.Errorf("couldn't open watchlist: %w", err)
	}
	robo := &Robot{
		main:    newNetwork("main", cfg.Main),
		relay:   newNetwork("relay", cfg.Relay),
		watch:   w,
		phrases: cfg.Phrases(),
		maxLine: cfg.MaxLineLength,
		strip:   cfg.IRC.StripColors,
		metrics: m,
		exec:    make(chan func(context.Context)),
		log:     log,
	}
	robo.sources.Register(log, srcs...)
	robo.engine = relay.New(relay.Config{
		Nick:    cfg.Relay.Nick,
		Channel: cfg.Main.Channel,
		Main:    robo.sendTo(robo.main),
		Relay:   robo.sendTo(robo.relay),
		Watch:   w,
		Log:     log.With(slog.String("component", "relay")),
	}, robo.sources.Relays())
	return robo, nil
}

func newNetwork(name string, cfg Network) *network {
	return &network{
		name: name,
		cfg:  cfg,
		send: make(chan *tmi.Message, 64),
		recv: make(chan *tmi.Message, 8), // 8 is enough for on-connect msgs
	}
}

// Run connects to both networks and handles events until ctx is canceled or
// both connections give up.
func (robo *Robot) Run(ctx context.Context, irc IRCCfg, listen string) error {
	group, ctx := errgroup.WithContext(ctx)
	for _, n := range []*network{robo.main, robo.relay} {
		cfg := connectConfig{
			dialer:  dialer(n.cfg.TLS),
			addr:    n.cfg.Server,
			retries: []time.Duration{time.Second, 5 * time.Second, 30 * time.Second, time.Minute, 5 * time.Minute},
			nick:    n.cfg.Nick,
			pass:    n.cfg.Pass,
			timeout: 300 * time.Second,
		}
		if irc.FloodProtection {
			cfg.rate = rate.NewLimiter(rate.Every(fseconds(irc.Rate.Every)), irc.Rate.Num)
		}
		log := robo.log.With(slog.String("network", n.name))
		group.Go(func() error {
			connect(ctx, cfg, n.send, n.recv, log)
			return nil
		})
	}
	group.Go(func() error {
		return robo.loop(ctx)
	})
	if listen != "" {
		group.Go(func() error {
			return robo.api(ctx, listen, new(http.ServeMux), robo.metrics.Collectors())
		})
	}
	err := group.Wait()
	if errors.Is(err, context.Canceled) {
		// If the first error is context canceled, then we are shutting down
		// normally in response to a sigint.
		err = nil
	}
	return err
}

func dialer(useTLS bool) contextDialer {
	d := &net.Dialer{Timeout: 30 * time.Second, KeepAlive: time.Minute}
	if useTLS {
		return &tls.Dialer{NetDialer: d}
	}
	return d
}

// loop handles events from both networks one at a time.
func (robo *Robot) loop(ctx context.Context) error {
	main, relay := robo.main.recv, robo.relay.recv
	for main != nil || relay != nil {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-main:
			if !ok {
				robo.log.WarnContext(ctx, "main network connection closed")
				robo.main.down = true
				main = nil
				continue
			}
			robo.mainEvent(ctx, msg)
		case msg, ok := <-relay:
			if !ok {
				robo.log.WarnContext(ctx, "relay network connection closed")
				robo.relay.down = true
				relay = nil
				continue
			}
			robo.relayEvent(ctx, msg)
		case f := <-robo.exec:
			f(ctx)
		}
	}
	return errors.New("both connections closed")
}

// do runs f on the event loop and waits for it to finish.
func (robo *Robot) do(ctx context.Context, f func(context.Context)) error {
	done := make(chan struct{})
	g := func(ctx context.Context) {
		defer close(done)
		f(ctx)
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case robo.exec <- g:
	}
	<-done
	return nil
}

// queue hands msg to n's sender without waiting. If the sender is behind or
// the connection has given up, the message is dropped and queue returns false.
func (robo *Robot) queue(ctx context.Context, n *network, msg *tmi.Message) bool {
	if n.down {
		robo.metrics.Dropped.Observe(1, n.name)
		robo.log.DebugContext(ctx, "drop message to closed network", slog.String("network", n.name), slog.String("command", msg.Command))
		return false
	}
	select {
	case n.send <- msg:
		return true
	default:
		robo.metrics.Dropped.Observe(1, n.name)
		robo.log.WarnContext(ctx, "send queue full, dropping message", slog.String("network", n.name), slog.String("command", msg.Command))
		return false
	}
}

// sendTo returns a function that queues messages to n.
func (robo *Robot) sendTo(n *network) func(ctx context.Context, msg message.Sent) bool {
	return func(ctx context.Context, msg message.Sent) bool {
		return robo.queue(ctx, n, message.ToIRC(msg))
	}
}

// commands returns the command view of the robot.
func (robo *Robot) commands() *command.Robot {
	return &command.Robot{
		Log:     robo.log,
		Sources: &robo.sources,
		Watch:   robo.watch,
		Phrases: robo.phrases,
		MaxLine: robo.maxLine,
		Say: func(ctx context.Context, msg message.Sent) {
			robo.queue(ctx, robo.main, message.ToIRC(msg))
		},
	}
}
