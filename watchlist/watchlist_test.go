package watchlist_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/zephyrtronium/relaybot/watchlist"
)

// memory is an in-memory watchlist storage that can be made to fail.
type memory struct {
	nicks  []string
	fail   error
	stores int
}

func (m *memory) Load(ctx context.Context) ([]string, error) { return m.nicks, nil }

func (m *memory) Store(ctx context.Context, nicks []string) error {
	m.stores++
	if m.fail != nil {
		return m.fail
	}
	m.nicks = append([]string(nil), nicks...)
	return nil
}

func (m *memory) String() string { return "memory" }

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestList(t *testing.T) {
	ctx := context.Background()
	stor := &memory{nicks: []string{"Bocchi", "  "}}
	l, err := watchlist.Open(ctx, discard(), stor)
	if err != nil {
		t.Fatal(err)
	}
	if !l.Contains("bocchi") {
		t.Error("loaded nick not folded")
	}
	if err := l.Add(ctx, "Foo"); err != nil {
		t.Errorf("couldn't add: %v", err)
	}
	if !l.Contains("foo") {
		t.Error("added nick missing")
	}
	if diff := cmp.Diff([]string{"bocchi", "foo"}, stor.nicks); diff != "" {
		t.Errorf("wrong stored nicks (+got/-want):\n%s", diff)
	}
	if err := l.Remove(ctx, "foo"); err != nil {
		t.Errorf("couldn't remove: %v", err)
	}
	if l.Contains("FOO") {
		t.Error("removed nick present")
	}
	if diff := cmp.Diff([]string{"bocchi"}, stor.nicks); diff != "" {
		t.Errorf("wrong stored nicks (+got/-want):\n%s", diff)
	}
	if err := l.Add(ctx, ""); !errors.Is(err, watchlist.ErrNoNick) {
		t.Errorf("wrong error adding empty nick: %v", err)
	}
	if err := l.Remove(context.Background(), " "); !errors.Is(err, watchlist.ErrNoNick) {
		t.Errorf("wrong error removing empty nick: %v", err)
	}
	if stor.stores != 2 {
		t.Errorf("wrong number of saves: want 2, got %d", stor.stores)
	}
}

func TestListSaveFailure(t *testing.T) {
	ctx := context.Background()
	bad := errors.New("disk on fire")
	stor := &memory{fail: bad}
	l, err := watchlist.Open(ctx, discard(), stor)
	if err != nil {
		t.Fatal(err)
	}
	if err := l.Add(ctx, "ryou"); !errors.Is(err, bad) {
		t.Errorf("wrong error from failed save: %v", err)
	}
	// The mutation still applies in memory.
	if !l.Contains("ryou") {
		t.Error("failed save discarded the change")
	}
}

func TestMerge(t *testing.T) {
	ctx := context.Background()
	stor := &memory{nicks: []string{"kita"}}
	l, err := watchlist.Open(ctx, discard(), stor)
	if err != nil {
		t.Fatal(err)
	}
	n, err := l.Merge(ctx, []string{"KITA", "ryou", " ", "Nijika", "ryou"})
	if err != nil {
		t.Errorf("couldn't merge: %v", err)
	}
	if n != 2 {
		t.Errorf("wrong number added: want 2, got %d", n)
	}
	if diff := cmp.Diff([]string{"kita", "nijika", "ryou"}, stor.nicks); diff != "" {
		t.Errorf("wrong stored nicks (+got/-want):\n%s", diff)
	}
	if stor.stores != 1 {
		t.Errorf("wrong number of saves: want 1, got %d", stor.stores)
	}
	n, err = l.Merge(ctx, []string{"kita"})
	if n != 0 || err != nil {
		t.Errorf("wrong result merging nothing new: %d, %v", n, err)
	}
	if stor.stores != 1 {
		t.Errorf("merging nothing new saved")
	}
}

func TestMatches(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		name  string
		nicks []string
		text  string
		want  bool
	}{
		{"empty", nil, "hello foo there", false},
		{"exact", []string{"foo"}, "hello foo there", true},
		{"upper-text", []string{"foo"}, "hello FOO there", true},
		{"upper-nick", []string{"FoO"}, "hello foo there", true},
		{"substring", []string{"foo"}, "hello xfoox there", true},
		{"absent", []string{"foo"}, "hello bar there", false},
		{"several", []string{"bar", "foo"}, "just foo", true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			l, err := watchlist.Open(ctx, discard(), &memory{nicks: c.nicks})
			if err != nil {
				t.Fatal(err)
			}
			if got := l.Matches(c.text); got != c.want {
				t.Errorf("wrong match of %q against %q: want %t, got %t", c.text, c.nicks, c.want, got)
			}
		})
	}
}

func TestAll(t *testing.T) {
	ctx := context.Background()
	l, err := watchlist.Open(ctx, discard(), &memory{})
	if err != nil {
		t.Fatal(err)
	}
	if got := l.All(); got != nil {
		t.Errorf("empty list has nicks: %q", got)
	}
	for _, n := range []string{"nijika", "Bocchi", "kita"} {
		l.Add(ctx, n)
	}
	if diff := cmp.Diff([]string{"bocchi", "kita", "nijika"}, l.All()); diff != "" {
		t.Errorf("wrong nicks (+got/-want):\n%s", diff)
	}
}

func TestFile(t *testing.T) {
	ctx := context.Background()
	f := &watchlist.File{Path: filepath.Join(t.TempDir(), "relaybot.json")}
	nicks, err := f.Load(ctx)
	if err != nil {
		t.Errorf("missing file is an error: %v", err)
	}
	if len(nicks) != 0 {
		t.Errorf("missing file has nicks: %q", nicks)
	}
	if err := f.Store(ctx, []string{"ryou", "bocchi"}); err != nil {
		t.Fatalf("couldn't store: %v", err)
	}
	b, err := os.ReadFile(f.Path)
	if err != nil {
		t.Fatal(err)
	}
	want := "{\n \"bocchi\": null,\n \"ryou\": null\n}\n"
	if diff := cmp.Diff(want, string(b)); diff != "" {
		t.Errorf("wrong file contents (+got/-want):\n%s", diff)
	}
	nicks, err = f.Load(ctx)
	if err != nil {
		t.Fatalf("couldn't load: %v", err)
	}
	if diff := cmp.Diff([]string{"bocchi", "ryou"}, nicks, cmpSorted); diff != "" {
		t.Errorf("wrong nicks (+got/-want):\n%s", diff)
	}
}

func TestFileCorrupt(t *testing.T) {
	f := &watchlist.File{Path: filepath.Join(t.TempDir(), "relaybot.json")}
	if err := os.WriteFile(f.Path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := watchlist.Open(context.Background(), discard(), f); err == nil {
		t.Error("opened a corrupt file without error")
	}
}

func TestFileUnwritable(t *testing.T) {
	ctx := context.Background()
	f := &watchlist.File{Path: filepath.Join(t.TempDir(), "nowhere", "relaybot.json")}
	l, err := watchlist.Open(ctx, discard(), f)
	if err != nil {
		t.Fatal(err)
	}
	if err := l.Add(ctx, "kita"); err == nil {
		t.Error("saving into a missing directory succeeded")
	}
}
