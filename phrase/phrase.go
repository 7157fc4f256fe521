// Package phrase renders the bot's canned responses and splits outgoing text
// to fit IRC line limits.
package phrase

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Key names a phrase in a [Book].
type Key string

const (
	Greeting         Key = "greeting"
	Kicked           Key = "kicked"
	WatchedAlready   Key = "watched_already"
	WatchAdded       Key = "watch_added"
	UnwatchedAlready Key = "unwatched_already"
	WatchRemoved     Key = "watch_removed"
	WatchFailed      Key = "watch_failed"
	NeedNick         Key = "need_nick"
	Watched          Key = "watched"
	Help             Key = "help"
	HelpNotFound     Key = "help_notfound"
	HelpNotAvailable Key = "help_not_available"
	ProvidedBy       Key = "provided_by"
)

// Keys returns every phrase key in a stable order.
func Keys() []Key {
	return []Key{
		Greeting,
		Kicked,
		WatchedAlready,
		WatchAdded,
		UnwatchedAlready,
		WatchRemoved,
		WatchFailed,
		NeedNick,
		Watched,
		Help,
		HelpNotFound,
		HelpNotAvailable,
		ProvidedBy,
	}
}

// Book maps phrase keys to fmt templates.
type Book map[Key]string

// Defaults returns a book with a template for every key.
func Defaults() Book {
	return Book{
		Greeting:         "Hello! Say !help to see what I can do.",
		Kicked:           "That was rude. I'm back anyway.",
		WatchedAlready:   "I'm already watching %s.",
		WatchAdded:       "Now watching %s.",
		UnwatchedAlready: "I wasn't watching %s.",
		WatchRemoved:     "No longer watching %s.",
		WatchFailed:      "Something went wrong saving the watchlist for %s. Try again later.",
		NeedNick:         "Who? Give me a nickname, like %s somebody.",
		Watched:          "Watching: %s",
		Help:             "Commands: %s",
		HelpNotFound:     "I don't know any command called %s.",
		HelpNotAvailable: "There's no description for %s.",
		ProvidedBy:       "Provided by: %s",
	}
}

// With returns a copy of b with templates in over replacing its own.
// Keys in over are not checked; use [Book.Validate] on the result.
func (b Book) With(over map[string]string) Book {
	r := make(Book, len(b)+len(over))
	for k, v := range b {
		r[k] = v
	}
	for k, v := range over {
		r[Key(k)] = v
	}
	return r
}

// Validate checks that b has a template for every key and no unknown keys.
func (b Book) Validate() error {
	var errs []error
	known := Keys()
	for _, k := range known {
		if _, ok := b[k]; !ok {
			errs = append(errs, fmt.Errorf("missing phrase %q", k))
		}
	}
	for k := range b {
		if !slices.Contains(known, k) {
			errs = append(errs, fmt.Errorf("unknown phrase %q", k))
		}
	}
	return errors.Join(errs...)
}

// Render formats the template for k with args according to fmt.Sprintf.
// Panics if b has no template for k.
func (b Book) Render(k Key, args ...any) string {
	f, ok := b[k]
	if !ok {
		panic(fmt.Errorf("phrase: no template for %q", k))
	}
	return strings.TrimSpace(fmt.Sprintf(f, args...))
}
