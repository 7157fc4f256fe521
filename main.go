package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v3"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/zephyrtronium/relaybot/metrics"
	"github.com/zephyrtronium/relaybot/watchlist"
)

var app = cli.Command{
	Name:  "relaybot",
	Usage: "Relay commands between two IRC networks",

	Flags: []cli.Flag{
		&flagConfig,
		&flagLog,
		&flagLogFormat,
	},
	Commands: []*cli.Command{
		{
			Name:  "watchlist",
			Usage: "Manage the watchlist without connecting",
			Commands: []*cli.Command{
				{
					Name:   "list",
					Usage:  "Print watched nicks",
					Action: cliWatchlistList,
				},
				{
					Name:  "import",
					Usage: "Merge a JSON save file into the configured watchlist",
					Flags: []cli.Flag{
						&cli.StringFlag{
							Name:     "from",
							Usage:    "JSON watchlist save file",
							Required: true,
						},
					},
					Action: cliWatchlistImport,
				},
				{
					Name:   "init",
					Usage:  "Create the watchlist table in the configured SQLite database",
					Action: cliWatchlistInit,
				},
			},
		},
	},
	Action: cliRun,
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	go func() {
		<-ctx.Done()
		stop()
	}()
	err := app.Run(ctx, os.Args)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

// loadConfig loads and validates the config file named on the command line.
func loadConfig(ctx context.Context, cmd *cli.Command) (*Config, error) {
	r, err := os.Open(cmd.String("config"))
	if err != nil {
		return nil, fmt.Errorf("couldn't open config file: %w", err)
	}
	defer r.Close()
	cfg, _, err := Load(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("couldn't load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func cliRun(ctx context.Context, cmd *cli.Command) error {
	log := loggerFromFlags(cmd)
	slog.SetDefault(log)
	cfg, err := loadConfig(ctx, cmd)
	if err != nil {
		return err
	}
	stor, closer, err := openWatchlist(ctx, cfg.Watchlist)
	if err != nil {
		return err
	}
	defer closer()
	robo, err := New(ctx, cfg, stor, newMetrics(), log)
	if err != nil {
		return err
	}
	return robo.Run(ctx, cfg.IRC, cfg.HTTP.Listen)
}

func cliWatchlistList(ctx context.Context, cmd *cli.Command) error {
	slog.SetDefault(loggerFromFlags(cmd))
	cfg, err := loadConfig(ctx, cmd)
	if err != nil {
		return err
	}
	stor, closer, err := openWatchlist(ctx, cfg.Watchlist)
	if err != nil {
		return err
	}
	defer closer()
	l, err := watchlist.Open(ctx, slog.Default(), stor)
	if err != nil {
		return fmt.Errorf("couldn't open watchlist: %w", err)
	}
	for _, n := range l.All() {
		fmt.Println(n)
	}
	return nil
}

func cliWatchlistImport(ctx context.Context, cmd *cli.Command) error {
	slog.SetDefault(loggerFromFlags(cmd))
	cfg, err := loadConfig(ctx, cmd)
	if err != nil {
		return err
	}
	stor, closer, err := openWatchlist(ctx, cfg.Watchlist)
	if err != nil {
		return err
	}
	defer closer()
	from := cmd.String("from")
	src := &watchlist.File{Path: from}
	if src.String() == stor.String() {
		return errors.New("can't import a watchlist into itself")
	}
	nicks, err := src.Load(ctx)
	if err != nil {
		return fmt.Errorf("couldn't read import file: %w", err)
	}
	l, err := watchlist.Open(ctx, slog.Default(), stor)
	if err != nil {
		return fmt.Errorf("couldn't open watchlist: %w", err)
	}
	added, err := l.Merge(ctx, nicks)
	if err != nil {
		return err
	}
	slog.InfoContext(ctx, "imported", slog.String("from", from), slog.String("into", stor.String()), slog.Int("added", added))
	return nil
}

func cliWatchlistInit(ctx context.Context, cmd *cli.Command) error {
	slog.SetDefault(loggerFromFlags(cmd))
	cfg, err := loadConfig(ctx, cmd)
	if err != nil {
		return err
	}
	if cfg.Watchlist.Backend != "sqlite" {
		return fmt.Errorf("watchlist backend is %q, not sqlite", cfg.Watchlist.Backend)
	}
	db, err := sqlitex.NewPool(cfg.Watchlist.DSN, sqlitex.PoolOptions{})
	if err != nil {
		return fmt.Errorf("couldn't open watchlist db: %w", err)
	}
	defer db.Close()
	if err := watchlist.Init(ctx, db); err != nil {
		return fmt.Errorf("couldn't initialize watchlist db: %w", err)
	}
	slog.InfoContext(ctx, "initialized watchlist", slog.String("dsn", cfg.Watchlist.DSN))
	return nil
}

var (
	flagConfig = cli.StringFlag{
		Name:       "config",
		Required:   true,
		Usage:      "TOML config file",
		Persistent: true,
		Action: func(ctx context.Context, cmd *cli.Command, s string) error {
			i, err := os.Stat(s)
			if err != nil {
				return err
			}
			if !i.Mode().IsRegular() {
				return errors.New("config must be a regular file")
			}
			return nil
		},
	}

	flagLog = cli.StringFlag{
		Name:       "log",
		Usage:      "Logging level, one of debug, info, warn, error",
		Value:      "info",
		Persistent: true,
		Action: func(ctx context.Context, c *cli.Command, s string) error {
			var l slog.Level
			return l.UnmarshalText([]byte(s))
		},
	}

	flagLogFormat = cli.StringFlag{
		Name:       "log-format",
		Usage:      "Logging format, either text or json",
		Value:      "text",
		Persistent: true,
		Action: func(ctx context.Context, c *cli.Command, s string) error {
			switch strings.ToLower(s) {
			case "text", "json":
				return nil
			default:
				return errors.New("unknown logging format")
			}
		},
	}
)

func loggerFromFlags(cmd *cli.Command) *slog.Logger {
	var l slog.Level
	if err := l.UnmarshalText([]byte(cmd.String("log"))); err != nil {
		panic(err)
	}
	var h slog.Handler
	switch strings.ToLower(cmd.String("log-format")) {
	case "text":
		h = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l})
	case "json":
		h = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: l})
	}
	return slog.New(h)
}

// metrics configuration
func newMetrics() *metrics.Metrics {
	return &metrics.Metrics{
		MainMessages: metrics.NewPromCounter(
			prometheus.NewCounter(
				prometheus.CounterOpts{
					Namespace: "relaybot",
					Subsystem: "main",
					Name:      "messages",
					Help:      "Number of PRIVMSGs received on the main network.",
				},
			),
		),
		RelayMessages: metrics.NewPromCounter(
			prometheus.NewCounter(
				prometheus.CounterOpts{
					Namespace: "relaybot",
					Subsystem: "relay",
					Name:      "messages",
					Help:      "Number of PRIVMSGs received on the relay network.",
				},
			),
		),
		Commands: metrics.NewPromCounterVec(
			prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "relaybot",
					Subsystem: "main",
					Name:      "commands",
					Help:      "Number of resolved command invocations by source kind.",
				},
				[]string{"kind"},
			),
		),
		Forwarded: metrics.NewPromCounterVec(
			prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "relaybot",
					Subsystem: "relay",
					Name:      "forwarded",
					Help:      "Number of commands forwarded to relay peers.",
				},
				[]string{"peer"},
			),
		),
		Returned: metrics.NewPromCounterVec(
			prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "relaybot",
					Subsystem: "relay",
					Name:      "returned",
					Help:      "Number of relay network messages by what was done with them.",
				},
				[]string{"outcome"},
			),
		),
		WatchlistFailures: metrics.NewPromCounter(
			prometheus.NewCounter(
				prometheus.CounterOpts{
					Namespace: "relaybot",
					Subsystem: "watchlist",
					Name:      "save_failures",
					Help:      "Number of times saving the watchlist failed.",
				},
			),
		),
		Dropped: metrics.NewPromCounterVec(
			prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "relaybot",
					Subsystem: "irc",
					Name:      "dropped",
					Help:      "Number of outbound lines dropped by network.",
				},
				[]string{"network"},
			),
		),
	}
}
