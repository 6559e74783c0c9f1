package source

import (
	"context"
	"embed"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"

	"github.com/giygas/labref-api/document"
	"github.com/giygas/labref-api/errors"
	"github.com/giygas/labref-api/logging"
)

//go:embed references/*.json
var builtin embed.FS

const builtinDir = "references"

// BuiltinLocation is the Location of the reference set shipped in the binary
const BuiltinLocation = "builtin:references"

// Compile-time check to ensure EmbedProvider implements Provider
var _ Provider = (*EmbedProvider)(nil)

// EmbedProvider serves documents from an fs.FS, by default the reference set
// built into the binary.
type EmbedProvider struct {
	fsys     fs.FS
	dir      string
	location string
}

// NewBuiltinProvider serves the reference set shipped with the binary
func NewBuiltinProvider() *EmbedProvider {
	return &EmbedProvider{fsys: builtin, dir: builtinDir, location: BuiltinLocation}
}

// NewFSProvider serves documents stored under dir in fsys
func NewFSProvider(fsys fs.FS, dir, location string) *EmbedProvider {
	return &EmbedProvider{fsys: fsys, dir: dir, location: location}
}

func (p *EmbedProvider) Location() string { return p.location }

func (p *EmbedProvider) LoadRaw(ctx context.Context, key string) (*document.Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !validKey(key) {
		return nil, notFound(key, p.location)
	}
	for _, ext := range Extensions {
		name := path.Join(p.dir, key+ext)
		data, err := fs.ReadFile(p.fsys, name)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, errors.Mark(errors.Wrapf(err, "read %s", name), errors.ErrSourceUnavailable)
		}
		return decode(name, data)
	}
	return nil, notFound(key, p.location)
}

func (p *EmbedProvider) ListKeys(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := fs.ReadDir(p.fsys, p.dir)
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "list %s", p.location), errors.ErrSourceUnavailable)
	}
	keys := make([]string, 0, len(entries))
	seen := make(map[string]bool, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if key, ok := keyOf(e.Name()); ok && validKey(key) && !seen[key] {
			seen[key] = true
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// CopyTemplate writes the built-in reference set into dest, creating it if
// needed, and returns the copied file names. Existing files are overwritten.
func CopyTemplate(dest string) ([]string, error) {
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create %s", dest)
	}
	entries, err := fs.ReadDir(builtin, builtinDir)
	if err != nil {
		return nil, errors.Wrap(err, "list built-in references")
	}

	copied := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		data, err := fs.ReadFile(builtin, path.Join(builtinDir, e.Name()))
		if err != nil {
			return copied, errors.Wrapf(err, "read built-in %s", e.Name())
		}
		target := filepath.Join(dest, e.Name())
		if err := os.WriteFile(target, data, 0o644); err != nil {
			return copied, errors.Wrapf(err, "write %s", target)
		}
		copied = append(copied, e.Name())
	}

	logging.Info("Reference template copied", "destination", dest, "files", len(copied))
	return copied, nil
}
