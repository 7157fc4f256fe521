// Package source implements the registry of command sources: the bot itself,
// and the peers on the relay network that answer commands on its behalf.
package source

import (
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/text/cases"
)

// Kind is the kind of a command source.
type Kind int

const (
	// Self is the bot's own commands.
	Self Kind = iota + 1
	// Relay is a peer on the relay network. Its commands are forwarded to it
	// verbatim and its replies are routed back to whoever asked.
	Relay
)

// ParseKind parses the configuration name of a kind.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(s) {
	case "self":
		return Self, nil
	case "relay":
		return Relay, nil
	default:
		return 0, fmt.Errorf("unknown source kind %q", s)
	}
}

func (k Kind) String() string {
	switch k {
	case Self:
		return "self"
	case Relay:
		return "relay"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Source is a registered command provider.
type Source struct {
	// Name identifies the source. For a Self source it is the bot's nick on
	// the main network; for a Relay source it is the peer's nick on the relay
	// network.
	Name string
	// Kind is the kind of source.
	Kind Kind
	// Commands is the list of command words the source answers to.
	Commands []string
	// Description is optional help text.
	Description string
}

// Fold case-folds s for comparing command words and nicknames.
func Fold(s string) string {
	return cases.Fold().String(s)
}

// Registry maps command words to the sources that provide them.
// The zero value is an empty registry ready to use.
type Registry struct {
	sources  map[string]*Source
	commands map[string]string
	order    []string
	relays   []*Source
}

// Register adds sources to the registry, in order. Command words are
// case-folded. A word which is already registered keeps its first source;
// the conflict is logged to log and the new registration is dropped.
func (r *Registry) Register(log *slog.Logger, sources ...Source) {
	if r.sources == nil {
		r.sources = make(map[string]*Source)
		r.commands = make(map[string]string)
	}
	for _, s := range sources {
		src := &Source{
			Name:        s.Name,
			Kind:        s.Kind,
			Commands:    make([]string, 0, len(s.Commands)),
			Description: s.Description,
		}
		if old := r.sources[src.Name]; old != nil {
			log.Warn("source registered twice; replacing", slog.String("source", src.Name))
			if old.Kind == Relay {
				r.relays = deleteSource(r.relays, old)
			}
		}
		r.sources[src.Name] = src
		if src.Kind == Relay {
			r.relays = append(r.relays, src)
		}
		for _, c := range s.Commands {
			c = Fold(c)
			if c == "" {
				continue
			}
			if had, ok := r.commands[c]; ok {
				log.Warn("duplicate command",
					slog.String("command", c),
					slog.String("source", src.Name),
					slog.String("assigned", had),
				)
				continue
			}
			r.commands[c] = src.Name
			r.order = append(r.order, c)
			src.Commands = append(src.Commands, c)
		}
	}
}

func deleteSource(l []*Source, s *Source) []*Source {
	for i, v := range l {
		if v == s {
			return append(l[:i], l[i+1:]...)
		}
	}
	return l
}

// Resolve returns the source that provides a command word.
func (r *Registry) Resolve(word string) (*Source, bool) {
	name, ok := r.commands[Fold(word)]
	if !ok {
		return nil, false
	}
	src := r.sources[name]
	return src, src != nil
}

// Commands returns every registered command word in registration order.
func (r *Registry) Commands() []string {
	return r.order
}

// Relays returns the Relay sources in registration order.
func (r *Registry) Relays() []*Source {
	return r.relays
}
