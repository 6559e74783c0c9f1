package study

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/giygas/labref-api/catalog"
	"github.com/giygas/labref-api/errors"
	"github.com/giygas/labref-api/reference"
)

// Summary counts submitted tests by status. Tests whose range cannot be
// resolved count in Total only.
type Summary struct {
	Normal int `json:"normal"`
	Below  int `json:"below"`
	Above  int `json:"above"`
	Total  int `json:"total"`
}

// Result collects submitted values of one study, evaluated against the
// catalog of the biomaterial it was created for. A Result has a single
// owner and is not safe for concurrent use.
type Result struct {
	ID        uuid.UUID
	CreatedAt time.Time

	def     *Definition
	cat     *catalog.Catalog
	patient reference.Patient
	tests   map[string]*reference.Test
}

func newResult(def *Definition, cat *catalog.Catalog, p reference.Patient) *Result {
	return &Result{
		ID:        uuid.New(),
		CreatedAt: time.Now(),
		def:       def,
		cat:       cat,
		patient:   p,
		tests:     make(map[string]*reference.Test),
	}
}

func (r *Result) Study() string { return r.def.key }

// Biomaterial is the type of the catalog values are evaluated against
func (r *Result) Biomaterial() string { return r.cat.Type() }

func (r *Result) Patient() reference.Patient { return r.patient }

func (r *Result) StudyInfo() Info { return r.def.Info() }

func (r *Result) BiomaterialInfo() catalog.Metadata { return r.cat.Metadata() }

func (r *Result) table(name string) (*reference.Table, error) {
	if !r.def.HasTest(name) {
		return nil, errors.WithHintf(
			errors.Wrapf(errors.ErrTestNotInStudy, "%q is not part of study %q", name, r.def.key),
			"declared tests: %s", strings.Join(r.def.TestNames(), ", "))
	}
	return r.cat.GetTable(name)
}

// AddResult stores a value for a declared test. A second value for the same
// test replaces the first.
func (r *Result) AddResult(name string, value float64) error {
	t, err := r.table(name)
	if err != nil {
		return err
	}
	r.tests[name] = reference.NewTestWithValue(t, value, r.patient)
	return nil
}

// AddResults checks every name first and adds nothing if one fails
func (r *Result) AddResults(values map[string]float64) error {
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	tables := make(map[string]*reference.Table, len(names))
	for _, name := range names {
		t, err := r.table(name)
		if err != nil {
			return err
		}
		tables[name] = t
	}
	for _, name := range names {
		r.tests[name] = reference.NewTestWithValue(tables[name], values[name], r.patient)
	}
	return nil
}

// Test returns the submitted test of that name
func (r *Result) Test(name string) (*reference.Test, error) {
	t, ok := r.tests[name]
	if !ok {
		return nil, errors.Wrapf(errors.ErrTestNotFound, "no result for %q in study %q", name, r.def.key)
	}
	return t, nil
}

// Tests returns submitted tests in the study's declared order
func (r *Result) Tests() []*reference.Test {
	out := make([]*reference.Test, 0, len(r.tests))
	for _, entry := range r.def.tests {
		if t, ok := r.tests[entry.TestName]; ok {
			out = append(out, t)
		}
	}
	return out
}

func (r *Result) Len() int { return len(r.tests) }

func (r *Result) Has(name string) bool {
	_, ok := r.tests[name]
	return ok
}

// MissingRequired lists required tests without a submitted value
func (r *Result) MissingRequired() []string {
	var out []string
	for _, name := range r.def.RequiredTests() {
		if !r.Has(name) {
			out = append(out, name)
		}
	}
	return out
}

func (r *Result) Summary() Summary {
	s := Summary{Total: len(r.tests)}
	for _, t := range r.tests {
		status, err := t.Status()
		if err != nil {
			continue
		}
		switch status {
		case reference.StatusNormal:
			s.Normal++
		case reference.StatusBelow:
			s.Below++
		case reference.StatusAbove:
			s.Above++
		}
	}
	return s
}

// AbnormalTests returns tests classified below or above, in declared order
func (r *Result) AbnormalTests() []*reference.Test {
	var out []*reference.Test
	for _, t := range r.Tests() {
		if t.IsAbnormal() {
			out = append(out, t)
		}
	}
	return out
}

// NormalTests returns tests classified normal, in declared order
func (r *Result) NormalTests() []*reference.Test {
	var out []*reference.Test
	for _, t := range r.Tests() {
		if t.IsNormal() {
			out = append(out, t)
		}
	}
	return out
}

func (r *Result) HasAbnormalities() bool {
	for _, t := range r.tests {
		if t.IsAbnormal() {
			return true
		}
	}
	return false
}

// SetPatient updates the given fields of the patient for the result and
// every submitted test
func (r *Result) SetPatient(p reference.Patient) {
	if p.Sex != "" {
		r.patient.Sex = p.Sex
	}
	if p.Age != nil {
		age := *p.Age
		r.patient.Age = &age
	}
	for _, t := range r.tests {
		t.SetPatient(p)
	}
}
