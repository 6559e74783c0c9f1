package source

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/giygas/labref-api/document"
	"github.com/giygas/labref-api/errors"
)

// Compile-time check to ensure DirProvider implements Provider
var _ Provider = (*DirProvider)(nil)

// DirProvider reads documents from a directory of .json, .yaml and .yml
// files. Each call reads the file again, so edits are picked up on the next
// load.
type DirProvider struct {
	dir string
}

// NewDirProvider checks that dir exists and is a directory
func NewDirProvider(dir string) (*DirProvider, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "resolve %s", dir)
	}
	info, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errors.Wrapf(errors.ErrSourceNotFound, "reference directory %s", abs)
		}
		return nil, errors.Mark(errors.Wrapf(err, "stat %s", abs), errors.ErrSourceUnavailable)
	}
	if !info.IsDir() {
		return nil, errors.Wrapf(errors.ErrSourceNotFound, "%s is not a directory", abs)
	}
	return &DirProvider{dir: abs}, nil
}

func (p *DirProvider) Location() string { return p.dir }

func (p *DirProvider) LoadRaw(ctx context.Context, key string) (*document.Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !validKey(key) {
		return nil, notFound(key, p.dir)
	}
	for _, ext := range Extensions {
		name := filepath.Join(p.dir, key+ext)
		data, err := os.ReadFile(name)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, errors.Mark(errors.Wrapf(err, "read %s", name), errors.ErrSourceUnavailable)
		}
		return decode(name, data)
	}
	return nil, notFound(key, p.dir)
}

// ListKeys returns the document keys in the directory, sorted. A key present
// under several extensions is listed once.
func (p *DirProvider) ListKeys(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(p.dir)
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "list %s", p.dir), errors.ErrSourceUnavailable)
	}
	seen := make(map[string]bool, len(entries))
	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		key, ok := keyOf(e.Name())
		if !ok || !validKey(key) || seen[key] {
			continue
		}
		seen[key] = true
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}
