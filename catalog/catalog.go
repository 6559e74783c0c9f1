// Package catalog holds the reference tables of one biomaterial (or legacy
// test type) and answers lookups against them.
package catalog

import (
	"context"
	"sort"
	"strings"

	"github.com/giygas/labref-api/document"
	"github.com/giygas/labref-api/errors"
	"github.com/giygas/labref-api/reference"
	"github.com/giygas/labref-api/source"
	"github.com/giygas/labref-api/validation"
)

// Metadata is the _info block of a catalog document
type Metadata struct {
	Type             string `json:"type"`
	Name             string `json:"name"`
	Description      string `json:"description,omitempty"`
	CollectionMethod string `json:"collection_method,omitempty"`
	BiomaterialType  string `json:"biomaterial_type,omitempty"`
}

// Catalog is a read-only set of reference tables loaded from one document.
// It is safe for concurrent use.
type Catalog struct {
	meta     Metadata
	location string
	order    []string
	tables   map[string]*reference.Table
}

// Load reads key from p, validates it and builds one table per test.
// Provider errors are returned as they are.
func Load(ctx context.Context, key string, p source.Provider) (*Catalog, error) {
	doc, err := p.LoadRaw(ctx, key)
	if err != nil {
		return nil, err
	}
	c, err := FromDocument(key, doc)
	if err != nil {
		return nil, err
	}
	c.location = p.Location()
	return c, nil
}

// FromDocument builds a catalog from an already parsed document
func FromDocument(key string, doc *document.Node) (*Catalog, error) {
	if err := validation.ValidateReferenceDocument(doc); err != nil {
		return nil, errors.Wrapf(err, "%s", key)
	}

	info := source.InfoOf(key, doc)
	c := &Catalog{
		meta: Metadata{
			Type:             key,
			Name:             info.Name,
			Description:      info.Description,
			CollectionMethod: info.CollectionMethod,
			BiomaterialType:  info.BiomaterialType,
		},
		tables: make(map[string]*reference.Table, doc.Len()),
	}

	for _, f := range doc.Fields {
		if f.Key == validation.InfoKey {
			continue
		}
		table, err := reference.TableFromNode(f.Key, f.Value)
		if err != nil {
			return nil, errors.Wrapf(err, "%s", key)
		}
		c.order = append(c.order, f.Key)
		c.tables[f.Key] = table
	}
	return c, nil
}

// Type is the document key, e.g. "venous_blood"
func (c *Catalog) Type() string { return c.meta.Type }

func (c *Catalog) Metadata() Metadata { return c.meta }

// Location is where the catalog was loaded from, "" for FromDocument
func (c *Catalog) Location() string { return c.location }

// IsBiomaterial reports whether the document declared a biomaterial type
func (c *Catalog) IsBiomaterial() bool { return c.meta.BiomaterialType != "" }

// ListTests returns test identifiers in source order
func (c *Catalog) ListTests() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

func (c *Catalog) Len() int { return len(c.order) }

func (c *Catalog) Has(name string) bool {
	_, ok := c.tables[name]
	return ok
}

// GetTable returns the table of a test or errors.ErrTestNotFound
func (c *Catalog) GetTable(name string) (*reference.Table, error) {
	t, ok := c.tables[name]
	if !ok {
		return nil, errors.WithHintf(
			errors.Wrapf(errors.ErrTestNotFound, "%q in %s", name, c.meta.Type),
			"available tests: %s", strings.Join(c.order, ", "))
	}
	return t, nil
}

// Reference resolves the range of a test for a patient
func (c *Catalog) Reference(name string, p reference.Patient) (reference.Range, error) {
	t, err := c.GetTable(name)
	if err != nil {
		return reference.Range{}, err
	}
	return t.Resolve(p)
}

// ResolveAndClassify resolves the range of a test and classifies value
func (c *Catalog) ResolveAndClassify(name string, value float64, p reference.Patient) (reference.Status, error) {
	t, err := c.GetTable(name)
	if err != nil {
		return "", err
	}
	return t.Check(value, p)
}

// ClassifyMany classifies each value by test name. It fails on the first
// test, in name order, that cannot be classified; on success the result has
// exactly the submitted keys.
func (c *Catalog) ClassifyMany(values map[string]float64, p reference.Patient) (map[string]reference.Status, error) {
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make(map[string]reference.Status, len(values))
	for _, name := range names {
		status, err := c.ResolveAndClassify(name, values[name], p)
		if err != nil {
			return nil, err
		}
		out[name] = status
	}
	return out, nil
}

// Outcome is the evaluation of one submitted value
type Outcome struct {
	Test      string
	NameRU    string
	Value     float64
	Status    reference.Status
	Reference *reference.Range
	Err       error
}

// Evaluate classifies every value and keeps per-test errors instead of
// stopping at the first one. Outcomes follow catalog order, then unknown
// names sorted.
func (c *Catalog) Evaluate(values map[string]float64, p reference.Patient) []Outcome {
	out := make([]Outcome, 0, len(values))
	for _, name := range c.order {
		if v, ok := values[name]; ok {
			out = append(out, c.evaluate(name, v, p))
		}
	}

	var unknown []string
	for name := range values {
		if !c.Has(name) {
			unknown = append(unknown, name)
		}
	}
	sort.Strings(unknown)
	for _, name := range unknown {
		out = append(out, c.evaluate(name, values[name], p))
	}
	return out
}

func (c *Catalog) evaluate(name string, value float64, p reference.Patient) Outcome {
	o := Outcome{Test: name, NameRU: name, Value: value}
	t, err := c.GetTable(name)
	if err != nil {
		o.Err = err
		return o
	}
	o.NameRU = t.NameRU()
	r, err := t.Resolve(p)
	if err != nil {
		o.Err = err
		return o
	}
	o.Reference = &r
	o.Status = reference.Classify(value, r)
	return o
}

// CreateTest binds a test of the catalog to a patient and optional value
func (c *Catalog) CreateTest(name string, value *float64, p reference.Patient) (*reference.Test, error) {
	t, err := c.GetTable(name)
	if err != nil {
		return nil, err
	}
	test := reference.NewTest(t, p)
	if value != nil {
		test.SetValue(*value)
	}
	return test, nil
}

// TestNamesRU maps test identifiers to their localized names
func (c *Catalog) TestNamesRU() map[string]string {
	out := make(map[string]string, len(c.order))
	for _, name := range c.order {
		out[name] = c.tables[name].NameRU()
	}
	return out
}
