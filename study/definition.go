// Package study composes lab studies (panels): which tests a study declares,
// which biomaterials may supply them, and how submitted values evaluate
// against the catalog of the chosen biomaterial.
package study

import (
	"context"
	"strings"

	"github.com/giygas/labref-api/document"
	"github.com/giygas/labref-api/errors"
	"github.com/giygas/labref-api/source"
	"github.com/giygas/labref-api/validation"
)

// TestEntry is one declared test of a study
type TestEntry struct {
	TestName string `json:"test_name"`
	Required bool   `json:"required"`
}

// Definition is a study as declared in the lab_studies document
type Definition struct {
	key          string
	name         string
	description  string
	tests        []TestEntry
	biomaterials []string
	preferred    string
}

func (d *Definition) Key() string         { return d.key }
func (d *Definition) Name() string        { return d.name }
func (d *Definition) Description() string { return d.description }

// Tests returns the declared tests in source order
func (d *Definition) Tests() []TestEntry {
	out := make([]TestEntry, len(d.tests))
	copy(out, d.tests)
	return out
}

// TestNames returns the declared test names in source order
func (d *Definition) TestNames() []string {
	out := make([]string, len(d.tests))
	for i, t := range d.tests {
		out[i] = t.TestName
	}
	return out
}

// RequiredTests returns the names of tests marked required
func (d *Definition) RequiredTests() []string {
	var out []string
	for _, t := range d.tests {
		if t.Required {
			out = append(out, t.TestName)
		}
	}
	return out
}

func (d *Definition) HasTest(name string) bool {
	for _, t := range d.tests {
		if t.TestName == name {
			return true
		}
	}
	return false
}

// Biomaterials returns the eligible biomaterial types in source order
func (d *Definition) Biomaterials() []string {
	out := make([]string, len(d.biomaterials))
	copy(out, d.biomaterials)
	return out
}

func (d *Definition) HasBiomaterial(biomaterial string) bool {
	for _, b := range d.biomaterials {
		if b == biomaterial {
			return true
		}
	}
	return false
}

// PreferredBiomaterial is the declared preference, else the first eligible
// biomaterial
func (d *Definition) PreferredBiomaterial() string {
	if d.preferred != "" {
		return d.preferred
	}
	if len(d.biomaterials) > 0 {
		return d.biomaterials[0]
	}
	return ""
}

// Info is the serializable view of a study
type Info struct {
	Key                  string      `json:"key"`
	Name                 string      `json:"name"`
	Description          string      `json:"description,omitempty"`
	Biomaterials         []string    `json:"biomaterials"`
	PreferredBiomaterial string      `json:"preferred_biomaterial"`
	Tests                []TestEntry `json:"tests"`
}

func (d *Definition) Info() Info {
	return Info{
		Key:                  d.key,
		Name:                 d.name,
		Description:          d.description,
		Biomaterials:         d.Biomaterials(),
		PreferredBiomaterial: d.PreferredBiomaterial(),
		Tests:                d.Tests(),
	}
}

// Definitions is the parsed lab_studies document
type Definitions struct {
	info  source.Info
	order []string
	defs  map[string]*Definition
}

// LoadDefinitions reads and validates the lab_studies document of p
func LoadDefinitions(ctx context.Context, p source.Provider) (*Definitions, error) {
	doc, err := p.LoadRaw(ctx, source.StudiesKey)
	if err != nil {
		return nil, err
	}
	return DefinitionsFromDocument(doc)
}

// DefinitionsFromDocument builds definitions from a parsed lab_studies
// document
func DefinitionsFromDocument(doc *document.Node) (*Definitions, error) {
	if err := validation.ValidateStudyDocument(doc); err != nil {
		return nil, errors.Wrapf(err, "%s", source.StudiesKey)
	}

	ds := &Definitions{
		info: source.InfoOf(source.StudiesKey, doc),
		defs: make(map[string]*Definition, doc.Len()),
	}
	for _, f := range doc.Fields {
		if f.Key == validation.InfoKey {
			continue
		}
		ds.order = append(ds.order, f.Key)
		ds.defs[f.Key] = definitionFromNode(f.Key, f.Value)
	}
	return ds, nil
}

// definitionFromNode expects a node that passed ValidateStudyDocument
func definitionFromNode(key string, n *document.Node) *Definition {
	d := &Definition{
		key:         key,
		name:        n.StringAt("name"),
		description: n.StringAt("description"),
		preferred:   n.StringAt("preferred_biomaterial"),
	}
	if d.name == "" {
		d.name = key
	}
	bio, _ := n.Get("biomaterials")
	for _, item := range bio.Items {
		s, _ := item.Text()
		d.biomaterials = append(d.biomaterials, s)
	}
	tests, _ := n.Get("tests")
	for _, item := range tests.Items {
		d.tests = append(d.tests, TestEntry{
			TestName: item.StringAt("test_name"),
			Required: item.BoolAt("required"),
		})
	}
	return d
}

// Metadata is the _info block of the lab_studies document
func (ds *Definitions) Metadata() source.Info { return ds.info }

// List returns study keys in source order
func (ds *Definitions) List() []string {
	out := make([]string, len(ds.order))
	copy(out, ds.order)
	return out
}

func (ds *Definitions) Len() int { return len(ds.order) }

// Get returns a study or errors.ErrStudyNotFound
func (ds *Definitions) Get(name string) (*Definition, error) {
	d, ok := ds.defs[name]
	if !ok {
		return nil, errors.WithHintf(
			errors.Wrapf(errors.ErrStudyNotFound, "%q", name),
			"available studies: %s", strings.Join(ds.order, ", "))
	}
	return d, nil
}

// FindWithTest returns the keys of studies declaring test, in source order
func (ds *Definitions) FindWithTest(test string) []string {
	var out []string
	for _, key := range ds.order {
		if ds.defs[key].HasTest(test) {
			out = append(out, key)
		}
	}
	return out
}
