package study

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/giygas/labref-api/catalog"
	"github.com/giygas/labref-api/errors"
	"github.com/giygas/labref-api/reference"
	"github.com/giygas/labref-api/source"
)

type cacheKey struct {
	biomaterial string
	location    string
}

// Registry evaluates studies against biomaterial catalogs from one
// provider. Catalogs are loaded on first use and cached; the cache is safe
// for concurrent use.
type Registry struct {
	provider source.Provider
	defs     *Definitions

	mu       sync.Mutex
	catalogs map[cacheKey]*catalog.Catalog
}

// NewRegistry loads the study definitions of p
func NewRegistry(ctx context.Context, p source.Provider) (*Registry, error) {
	defs, err := LoadDefinitions(ctx, p)
	if err != nil {
		return nil, err
	}
	return NewRegistryWithDefinitions(p, defs), nil
}

// NewRegistryWithDefinitions builds a registry from definitions that are
// already loaded
func NewRegistryWithDefinitions(p source.Provider, defs *Definitions) *Registry {
	return &Registry{
		provider: p,
		defs:     defs,
		catalogs: make(map[cacheKey]*catalog.Catalog),
	}
}

func (r *Registry) Provider() source.Provider { return r.provider }

func (r *Registry) Definitions() *Definitions { return r.defs }

// ListStudies returns study keys in source order
func (r *Registry) ListStudies() []string { return r.defs.List() }

func (r *Registry) Definition(name string) (*Definition, error) {
	return r.defs.Get(name)
}

func (r *Registry) StudyInfo(name string) (Info, error) {
	d, err := r.defs.Get(name)
	if err != nil {
		return Info{}, err
	}
	return d.Info(), nil
}

// FindStudiesWithTest returns the studies declaring test, in source order
func (r *Registry) FindStudiesWithTest(test string) []string {
	return r.defs.FindWithTest(test)
}

// Catalog returns the catalog of a biomaterial, loading it on first use
func (r *Registry) Catalog(ctx context.Context, biomaterial string) (*catalog.Catalog, error) {
	key := cacheKey{biomaterial: biomaterial, location: r.provider.Location()}

	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.catalogs[key]; ok {
		return c, nil
	}
	c, err := catalog.Load(ctx, biomaterial, r.provider)
	if err != nil {
		return nil, err
	}
	r.catalogs[key] = c
	return c, nil
}

// Seed caches a catalog loaded elsewhere from the same provider
func (r *Registry) Seed(c *catalog.Catalog) {
	key := cacheKey{biomaterial: c.Type(), location: r.provider.Location()}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.catalogs[key] = c
}

// Biomaterials returns every biomaterial referenced by a study, sorted
func (r *Registry) Biomaterials() []string {
	seen := make(map[string]bool)
	var out []string
	for _, key := range r.defs.order {
		for _, b := range r.defs.defs[key].biomaterials {
			if !seen[b] {
				seen[b] = true
				out = append(out, b)
			}
		}
	}
	sort.Strings(out)
	return out
}

// Preload loads the catalog of every biomaterial a study refers to
func (r *Registry) Preload(ctx context.Context) error {
	for _, b := range r.Biomaterials() {
		if _, err := r.Catalog(ctx, b); err != nil {
			return errors.Wrapf(err, "preload %s", b)
		}
	}
	return nil
}

// CreateResult starts a result for a study. An empty biomaterial selects the
// study's preferred one; any other must be eligible for the study.
func (r *Registry) CreateResult(ctx context.Context, studyName, biomaterial string, p reference.Patient) (*Result, error) {
	def, err := r.defs.Get(studyName)
	if err != nil {
		return nil, err
	}
	if biomaterial == "" {
		biomaterial = def.PreferredBiomaterial()
	} else if !def.HasBiomaterial(biomaterial) {
		return nil, errors.WithHintf(
			errors.Wrapf(errors.ErrBiomaterialNotEligible, "%q for study %q", biomaterial, studyName),
			"eligible biomaterials: %s", strings.Join(def.biomaterials, ", "))
	}
	cat, err := r.Catalog(ctx, biomaterial)
	if err != nil {
		return nil, err
	}
	return newResult(def, cat, p), nil
}

// TestReference resolves a test's range in a biomaterial catalog
func (r *Registry) TestReference(ctx context.Context, test, biomaterial string, p reference.Patient) (reference.Range, error) {
	cat, err := r.Catalog(ctx, biomaterial)
	if err != nil {
		return reference.Range{}, err
	}
	return cat.Reference(test, p)
}

// CheckTestValue classifies one value in a biomaterial catalog
func (r *Registry) CheckTestValue(ctx context.Context, test string, value float64, biomaterial string, p reference.Patient) (reference.Status, error) {
	cat, err := r.Catalog(ctx, biomaterial)
	if err != nil {
		return "", err
	}
	return cat.ResolveAndClassify(test, value, p)
}

// CheckStudyValues classifies values against the study's preferred
// biomaterial. Every name must belong to the study.
func (r *Registry) CheckStudyValues(ctx context.Context, studyName string, values map[string]float64, p reference.Patient) (map[string]reference.Status, error) {
	res, err := r.CreateResult(ctx, studyName, "", p)
	if err != nil {
		return nil, err
	}
	if err := res.AddResults(values); err != nil {
		return nil, err
	}
	out := make(map[string]reference.Status, len(values))
	for _, t := range res.Tests() {
		status, err := t.Status()
		if err != nil {
			return nil, errors.Wrapf(err, "%s", t.Name())
		}
		out[t.Name()] = status
	}
	return out, nil
}
