// Package watchlist implements the persisted set of nicknames whose mentions
// are rebroadcast from the relay network.
package watchlist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"golang.org/x/text/cases"
)

// ErrNoNick is returned by Add and Remove when the nickname is empty.
var ErrNoNick = errors.New("no nickname")

// Storage persists the full contents of a watchlist.
type Storage interface {
	// Load returns the stored nicknames. If nothing has been stored yet, the
	// result is empty with a nil error.
	Load(ctx context.Context) ([]string, error)
	// Store replaces the stored nicknames with nicks.
	Store(ctx context.Context, nicks []string) error
	// String describes the storage location for logs.
	String() string
}

// List is a set of watched nicknames. Nicknames are case-folded.
// A List is not safe for concurrent use.
type List struct {
	log  *slog.Logger
	stor Storage
	set  map[string]struct{}
}

// Open loads a list from storage.
func Open(ctx context.Context, log *slog.Logger, stor Storage) (*List, error) {
	nicks, err := stor.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("couldn't load watchlist from %v: %w", stor, err)
	}
	l := &List{
		log:  log,
		stor: stor,
		set:  make(map[string]struct{}, len(nicks)),
	}
	for _, n := range nicks {
		if n := fold(n); n != "" {
			l.set[n] = struct{}{}
		}
	}
	return l, nil
}

func fold(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}

// Contains reports whether nick is on the list.
func (l *List) Contains(nick string) bool {
	_, ok := l.set[fold(nick)]
	return ok
}

// Add adds nick to the list and persists the result.
// If saving fails, the nick stays on the list in memory.
func (l *List) Add(ctx context.Context, nick string) error {
	nick = fold(nick)
	if nick == "" {
		return ErrNoNick
	}
	l.set[nick] = struct{}{}
	return l.save(ctx)
}

// Remove removes nick from the list, if present, and persists the result.
func (l *List) Remove(ctx context.Context, nick string) error {
	nick = fold(nick)
	if nick == "" {
		return ErrNoNick
	}
	delete(l.set, nick)
	return l.save(ctx)
}

// Merge adds every nick in nicks to the list and persists the result once.
// It returns the number of nicks that were not already on the list. Nothing
// is saved if that number is zero.
func (l *List) Merge(ctx context.Context, nicks []string) (int, error) {
	n := 0
	for _, nick := range nicks {
		nick = fold(nick)
		if _, ok := l.set[nick]; ok || nick == "" {
			continue
		}
		l.set[nick] = struct{}{}
		n++
	}
	if n == 0 {
		return 0, nil
	}
	return n, l.save(ctx)
}

func (l *List) save(ctx context.Context) error {
	nicks := l.All()
	if err := l.stor.Store(ctx, nicks); err != nil {
		l.log.ErrorContext(ctx, "couldn't save watchlist",
			slog.String("storage", l.stor.String()),
			slog.Int("count", len(nicks)),
			slog.Any("err", err),
		)
		return fmt.Errorf("couldn't save watchlist: %w", err)
	}
	return nil
}

// Matches reports whether any watched nickname appears in text, ignoring case.
func (l *List) Matches(text string) bool {
	if len(l.set) == 0 {
		return false
	}
	text = cases.Fold().String(text)
	for n := range l.set {
		if strings.Contains(text, n) {
			return true
		}
	}
	return false
}

// All returns the watched nicknames in sorted order.
// The result is nil if no one is watched.
func (l *List) All() []string {
	if len(l.set) == 0 {
		return nil
	}
	r := make([]string, 0, len(l.set))
	for n := range l.set {
		r = append(r, n)
	}
	slices.Sort(r)
	return r
}
