// Package loader builds reference snapshots: it reads every document of a
// source concurrently, builds the study registry on top of the loaded
// catalogs and reports data quality issues.
package loader

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/giygas/labref-api/catalog"
	"github.com/giygas/labref-api/errors"
	"github.com/giygas/labref-api/interfaces"
	"github.com/giygas/labref-api/logging"
	"github.com/giygas/labref-api/source"
	"github.com/giygas/labref-api/study"
)

// Compile-time check to ensure Loader implements interfaces.Loader
var _ interfaces.Loader = (*Loader)(nil)

const defaultWorkers = 4

// Loader opens the reference source anew on every load so a changed
// LAB_REF_DIR or directory content is picked up.
type Loader struct {
	dir      string
	provider source.Provider
	workers  int
}

// New returns a loader for dir. An empty dir follows LAB_REF_DIR and falls
// back to the built-in reference set.
func New(dir string) *Loader {
	return &Loader{dir: dir, workers: defaultWorkers}
}

// NewWithProvider returns a loader bound to one provider
func NewWithProvider(p source.Provider) *Loader {
	return &Loader{provider: p, workers: defaultWorkers}
}

// WithWorkers sets how many documents are read in parallel
func (l *Loader) WithWorkers(n int) *Loader {
	if n > 0 {
		l.workers = n
	}
	return l
}

// Location describes where the next load reads from
func (l *Loader) Location() string {
	if l.provider != nil {
		return l.provider.Location()
	}
	if dir := source.ResolveDir(l.dir); dir != "" {
		return dir
	}
	return source.BuiltinLocation
}

func (l *Loader) open() (source.Provider, error) {
	if l.provider != nil {
		return l.provider, nil
	}
	return source.Open(l.dir)
}

type loaded struct {
	key     string
	catalog *catalog.Catalog
	err     error
}

// LoadSnapshot reads the whole reference set. A broken lab_studies document
// or a broken catalog of a biomaterial some study uses fails the load; any
// other unreadable document is reported and skipped.
func (l *Loader) LoadSnapshot(ctx context.Context) (*interfaces.Snapshot, error) {
	p, err := l.open()
	if err != nil {
		return nil, err
	}

	keys, err := p.ListKeys(ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "list %s", p.Location())
	}

	registry, err := study.NewRegistry(ctx, p)
	if err != nil {
		return nil, err
	}

	results := l.loadCatalogs(ctx, p, keys)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	snapshot := &interfaces.Snapshot{
		Location:     p.Location(),
		Registry:     registry,
		Catalogs:     make(map[string]*catalog.Catalog, len(results)),
		TestTypes:    []string{},
		Biomaterials: []source.Info{},
		LoadedAt:     time.Now(),
	}
	report := &interfaces.DataQualityReport{
		TestsWithoutNameRU:  []string{},
		StudyTestsMissing:   []string{},
		UnreadableDocuments: []string{},
	}

	used := make(map[string]bool)
	for _, b := range registry.Biomaterials() {
		used[b] = true
	}

	for _, res := range results {
		if res.err != nil {
			if used[res.key] {
				return nil, errors.Wrapf(res.err, "biomaterial %s", res.key)
			}
			logging.Warn("Skipping unreadable reference document", "key", res.key, "error", res.err)
			report.UnreadableDocuments = append(report.UnreadableDocuments, res.key)
			continue
		}
		c := res.catalog
		snapshot.Catalogs[res.key] = c
		snapshot.TestTypes = append(snapshot.TestTypes, res.key)
		if c.IsBiomaterial() {
			snapshot.Biomaterials = append(snapshot.Biomaterials, infoOf(c))
		}
		if used[res.key] {
			registry.Seed(c)
		}
	}

	// Biomaterials a study names but no document provides
	if err := registry.Preload(ctx); err != nil {
		return nil, err
	}

	fillReport(report, snapshot, registry)
	snapshot.Report = report
	return snapshot, nil
}

// loadCatalogs reads every key but lab_studies with a bounded worker pool.
// Results come back in key order.
func (l *Loader) loadCatalogs(ctx context.Context, p source.Provider, keys []string) []loaded {
	var todo []string
	for _, k := range keys {
		if k != source.StudiesKey {
			todo = append(todo, k)
		}
	}
	sort.Strings(todo)

	results := make([]loaded, len(todo))
	sem := make(chan struct{}, l.workers)
	var wg sync.WaitGroup

	for i, key := range todo {
		wg.Add(1)
		go func(i int, key string) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				results[i] = loaded{key: key, err: ctx.Err()}
				return
			}
			c, err := catalog.Load(ctx, key, p)
			results[i] = loaded{key: key, catalog: c, err: err}
		}(i, key)
	}

	wg.Wait()
	return results
}

func infoOf(c *catalog.Catalog) source.Info {
	m := c.Metadata()
	return source.Info{
		Key:              m.Type,
		Name:             m.Name,
		Description:      m.Description,
		CollectionMethod: m.CollectionMethod,
		BiomaterialType:  m.BiomaterialType,
	}
}

func fillReport(report *interfaces.DataQualityReport, snapshot *interfaces.Snapshot, registry *study.Registry) {
	report.Documents = len(snapshot.Catalogs) + 1 // lab_studies
	report.Biomaterials = len(snapshot.Biomaterials)
	report.Studies = registry.Definitions().Len()

	for _, key := range snapshot.TestTypes {
		c := snapshot.Catalogs[key]
		report.Tests += c.Len()
		for _, name := range c.ListTests() {
			t, err := c.GetTable(name)
			if err == nil && t.NameRU() == t.Name() {
				report.TestsWithoutNameRU = append(report.TestsWithoutNameRU, key+"/"+name)
			}
		}
	}

	for _, studyName := range registry.ListStudies() {
		def, err := registry.Definition(studyName)
		if err != nil {
			continue
		}
		for _, b := range def.Biomaterials() {
			c, ok := snapshot.Catalogs[b]
			if !ok {
				continue
			}
			for _, test := range def.TestNames() {
				if !c.Has(test) {
					report.StudyTestsMissing = append(report.StudyTestsMissing, fmt.Sprintf("%s/%s@%s", studyName, test, b))
				}
			}
		}
	}
}

// LogReport writes data quality findings the way operators grep for them
func LogReport(report *interfaces.DataQualityReport) {
	if len(report.UnreadableDocuments) > 0 {
		logging.Warn("Unreadable reference documents",
			"count", len(report.UnreadableDocuments),
			"keys", report.UnreadableDocuments,
		)
	}

	if len(report.StudyTestsMissing) > 0 {
		logging.Warn("Study tests without a reference in an eligible biomaterial",
			"count", len(report.StudyTestsMissing),
			"tests", report.StudyTestsMissing,
		)
	}

	if len(report.TestsWithoutNameRU) > 0 {
		logging.Debug("Tests without a localized name",
			"count", len(report.TestsWithoutNameRU),
			"tests", report.TestsWithoutNameRU,
		)
	}
}
