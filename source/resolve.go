package source

import (
	"context"
	"os"
	"strings"

	"github.com/giygas/labref-api/logging"
)

// EnvDir overrides the built-in reference set when no directory is given
const EnvDir = "LAB_REF_DIR"

// ResolveDir picks the reference directory: explicit, then $LAB_REF_DIR.
// It returns "" when the built-in set should be used.
func ResolveDir(explicit string) string {
	if dir := strings.TrimSpace(explicit); dir != "" {
		return dir
	}
	return strings.TrimSpace(os.Getenv(EnvDir))
}

// Open returns the provider for ResolveDir(explicit)
func Open(explicit string) (Provider, error) {
	dir := ResolveDir(explicit)
	if dir == "" {
		return NewBuiltinProvider(), nil
	}
	return NewDirProvider(dir)
}

// Describe reads the _info block of every document. Documents that fail to
// load are listed with their key as name.
func Describe(ctx context.Context, p Provider) ([]Info, error) {
	keys, err := p.ListKeys(ctx)
	if err != nil {
		return nil, err
	}
	infos := make([]Info, 0, len(keys))
	for _, key := range keys {
		doc, err := p.LoadRaw(ctx, key)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			logging.Warn("Skipping metadata of unreadable reference document",
				"key", key, "location", p.Location(), "error", err)
			infos = append(infos, Info{Key: key, Name: key})
			continue
		}
		infos = append(infos, InfoOf(key, doc))
	}
	return infos, nil
}

// ListTestTypes lists every reference document key except lab_studies
func ListTestTypes(ctx context.Context, p Provider) ([]string, error) {
	keys, err := p.ListKeys(ctx)
	if err != nil {
		return nil, err
	}
	types := keys[:0]
	for _, key := range keys {
		if key != StudiesKey {
			types = append(types, key)
		}
	}
	return types, nil
}

// ListBiomaterials lists the documents whose _info declares a biomaterial type
func ListBiomaterials(ctx context.Context, p Provider) ([]Info, error) {
	infos, err := Describe(ctx, p)
	if err != nil {
		return nil, err
	}
	out := make([]Info, 0, len(infos))
	for _, info := range infos {
		if info.IsBiomaterial() && info.Key != StudiesKey {
			out = append(out, info)
		}
	}
	return out, nil
}
