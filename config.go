package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/zephyrtronium/relaybot/phrase"
	"github.com/zephyrtronium/relaybot/source"
	"github.com/zephyrtronium/relaybot/watchlist"
)

// Load loads relaybot's configuration from TOML. Options not present in the
// document keep their defaults.
func Load(ctx context.Context, r io.Reader) (*Config, *toml.MetaData, error) {
	cfg := Config{
		MaxLineLength: 300,
		IRC: IRCCfg{
			StripColors:     true,
			FloodProtection: true,
			Rate:            Rate{Every: 1, Num: 1},
		},
		Watchlist: WatchlistCfg{
			Backend: "json",
			File:    "relaybot.json",
		},
	}
	md, err := toml.NewDecoder(r).Decode(&cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("couldn't decode config: %w", err)
	}
	expandcfg(&cfg, os.Getenv)
	// Tables decode into a map, which loses the order the sources were
	// written in. The metadata still has it.
	seen := make(map[string]bool, len(cfg.Source))
	for _, k := range md.Keys() {
		if len(k) != 2 || k[0] != "source" || seen[k[1]] {
			continue
		}
		seen[k[1]] = true
		cfg.order = append(cfg.order, k[1])
	}
	return &cfg, &md, nil
}

// Validate checks that the configuration describes a bot that can run.
func (cfg *Config) Validate() error {
	var errs []error
	if cfg.MaxLineLength <= 0 {
		errs = append(errs, fmt.Errorf("max_line_length must be positive, not %d", cfg.MaxLineLength))
	}
	errs = append(errs, cfg.Main.validate("main"), cfg.Relay.validate("relay"))
	if cfg.IRC.FloodProtection && (cfg.IRC.Rate.Every <= 0 || cfg.IRC.Rate.Num <= 0) {
		errs = append(errs, errors.New("irc.rate must have positive every and num with flood protection enabled"))
	}
	switch cfg.Watchlist.Backend {
	case "json":
		if cfg.Watchlist.File == "" {
			errs = append(errs, errors.New("watchlist.file is required for the json backend"))
		}
	case "sqlite":
		if cfg.Watchlist.DSN == "" {
			errs = append(errs, errors.New("watchlist.dsn is required for the sqlite backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown watchlist backend %q", cfg.Watchlist.Backend))
	}
	if err := cfg.Phrases().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("bad sayings: %w", err))
	}
	if _, err := cfg.Sources(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (n *Network) validate(name string) error {
	var errs []error
	if n.Server == "" {
		errs = append(errs, fmt.Errorf("%s.server is required", name))
	}
	if n.Nick == "" {
		errs = append(errs, fmt.Errorf("%s.nick is required", name))
	}
	if n.Channel == "" {
		errs = append(errs, fmt.Errorf("%s.channel is required", name))
	}
	return errors.Join(errs...)
}

// Phrases returns the default phrase book with configured sayings applied.
func (cfg *Config) Phrases() phrase.Book {
	return phrase.Defaults().With(cfg.Sayings)
}

// defaultSelf is the command list of the self source when none is configured.
var defaultSelf = []string{"!watch", "!unwatch", "!watched", "!help"}

// Sources returns the configured command sources in document order.
// If no source is the bot itself, a default self source comes first.
func (cfg *Config) Sources() ([]source.Source, error) {
	r := make([]source.Source, 0, len(cfg.order)+1)
	var errs []error
	self := ""
	for _, name := range cfg.order {
		s := cfg.Source[name]
		k, err := source.ParseKind(s.Kind)
		if err != nil {
			errs = append(errs, fmt.Errorf("source.%s: %w", name, err))
			continue
		}
		src := source.Source{
			Name:        name,
			Kind:        k,
			Commands:    s.Commands,
			Description: s.Description,
		}
		if k == source.Self {
			// The bot's commands are provided under its own name, so there
			// can be only one table for them.
			if self != "" {
				errs = append(errs, fmt.Errorf("source.%s: source.%s is already the self source", name, self))
				continue
			}
			src.Name = cfg.Main.Nick
			self = name
		}
		r = append(r, src)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	if self == "" {
		d := source.Source{Name: cfg.Main.Nick, Kind: source.Self, Commands: defaultSelf}
		r = append([]source.Source{d}, r...)
	}
	return r, nil
}

// openWatchlist opens the storage for the configured watchlist backend.
// The returned close function releases any database it opened.
func openWatchlist(ctx context.Context, cfg WatchlistCfg) (watchlist.Storage, func() error, error) {
	switch cfg.Backend {
	case "json":
		slog.DebugContext(ctx, "using json watchlist", slog.String("file", cfg.File))
		return &watchlist.File{Path: cfg.File}, func() error { return nil }, nil
	case "sqlite":
		slog.DebugContext(ctx, "using sqlite watchlist", slog.String("dsn", cfg.DSN))
		db, err := sqlitex.NewPool(cfg.DSN, sqlitex.PoolOptions{})
		if err != nil {
			return nil, nil, fmt.Errorf("couldn't open watchlist db: %w", err)
		}
		if err := watchlist.Init(ctx, db); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("couldn't initialize watchlist db: %w", err)
		}
		return watchlist.OpenSQL(db, cfg.DSN), db.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown watchlist backend %q", cfg.Backend)
	}
}

func fseconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// Config is the marshaled structure of relaybot's configuration.
type Config struct {
	// MaxLineLength is the longest line, in bytes, that phrase and help text
	// is split into. Relay replies are passed through whole.
	MaxLineLength int `toml:"max_line_length"`
	// Main is the network where users give commands.
	Main Network `toml:"main"`
	// Relay is the network where peers answer commands.
	Relay Network `toml:"relay"`
	// IRC is options shared by both connections.
	IRC IRCCfg `toml:"irc"`
	// HTTP is the configuration of the metrics and debug server.
	HTTP HTTP `toml:"http"`
	// Watchlist selects the watchlist storage.
	Watchlist WatchlistCfg `toml:"watchlist"`
	// Sayings overrides phrase templates by key.
	Sayings map[string]string `toml:"sayings"`
	// Source is the command sources keyed by name. For relay sources, the
	// name is the peer's nick on the relay network.
	Source map[string]SourceCfg `toml:"source"`

	// order is the keys of Source in document order.
	order []string
}

// Network is the configuration for a connection to one IRC network.
type Network struct {
	// Server is the address of the server as host:port.
	Server string `toml:"server"`
	// Nick is the bot's nick on the network. It is also used as the username.
	Nick string `toml:"nick"`
	// Pass is the server password, if any.
	Pass string `toml:"pass"`
	// TLS enables TLS for the connection.
	TLS bool `toml:"tls"`
	// Channel is the channel to join.
	Channel string `toml:"channel"`
}

// IRCCfg is options for both IRC connections.
type IRCCfg struct {
	// StripColors removes mIRC formatting from received messages.
	StripColors bool `toml:"strip_colors"`
	// FloodProtection rate limits sent PRIVMSGs according to Rate.
	FloodProtection bool `toml:"flood_protection"`
	// Rate is the flood protection rate.
	Rate Rate `toml:"rate"`
}

// Rate is a rate limit configuration.
type Rate struct {
	// Every is the number of seconds per token.
	Every float64 `toml:"every"`
	// Num is the burst size.
	Num int `toml:"num"`
}

type HTTP struct {
	// Listen is the address to serve metrics and pprof. Empty disables the
	// server.
	Listen string `toml:"listen"`
}

// WatchlistCfg is the configuration of watchlist storage.
type WatchlistCfg struct {
	// Backend is either "json" or "sqlite".
	Backend string `toml:"backend"`
	// File is the save file for the json backend.
	File string `toml:"file"`
	// DSN is the database for the sqlite backend.
	DSN string `toml:"dsn"`
}

// SourceCfg is the configuration of a command source.
type SourceCfg struct {
	// Kind is "self" or "relay".
	Kind string `toml:"kind"`
	// Commands is the command words the source answers to.
	Commands []string `toml:"commands"`
	// Description is the help text for the source's commands.
	Description string `toml:"description"`
}

func expandcfg(cfg *Config, expand func(s string) string) {
	fields := []*string{
		&cfg.Main.Server,
		&cfg.Main.Nick,
		&cfg.Main.Pass,
		&cfg.Main.Channel,
		&cfg.Relay.Server,
		&cfg.Relay.Nick,
		&cfg.Relay.Pass,
		&cfg.Relay.Channel,
		&cfg.HTTP.Listen,
		&cfg.Watchlist.File,
		&cfg.Watchlist.DSN,
	}
	for _, f := range fields {
		*f = os.Expand(*f, expand)
	}
}
