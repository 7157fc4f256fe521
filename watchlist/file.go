package watchlist

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"
)

// File stores a watchlist as a JSON object whose keys are the nicknames.
// Values are written as null and ignored when read.
type File struct {
	// Path is the location of the save file.
	Path string
}

// Load reads the save file. A missing file is an empty watchlist.
func (f *File) Load(ctx context.Context) ([]string, error) {
	b, err := os.ReadFile(f.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("couldn't read watchlist file: %w", err)
	}
	var m map[string]jsontext.Value
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("couldn't decode watchlist file %s: %w", f.Path, err)
	}
	r := make([]string, 0, len(m))
	for k := range m {
		r = append(r, k)
	}
	return r, nil
}

// Store rewrites the save file with exactly nicks. The new contents are
// written to a temporary file in the same directory and renamed into place.
func (f *File) Store(ctx context.Context, nicks []string) error {
	m := make(map[string]any, len(nicks))
	for _, n := range nicks {
		m[n] = nil
	}
	b, err := json.Marshal(m, json.Deterministic(true), jsontext.WithIndent(" "))
	if err != nil {
		// Should be impossible for a map of strings to nil.
		panic(fmt.Errorf("watchlist: couldn't marshal %#v: %w", m, err))
	}
	b = append(b, '\n')
	tmp, err := os.CreateTemp(filepath.Dir(f.Path), filepath.Base(f.Path)+".*")
	if err != nil {
		return fmt.Errorf("couldn't create temporary watchlist file: %w", err)
	}
	defer os.Remove(tmp.Name()) // no-op after a successful rename
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return fmt.Errorf("couldn't write watchlist: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("couldn't write watchlist: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.Path); err != nil {
		return fmt.Errorf("couldn't replace watchlist file: %w", err)
	}
	return nil
}

func (f *File) String() string {
	return "file:" + f.Path
}
