package reference

import (
	"github.com/giygas/labref-api/errors"
)

// SourceKind tells how a sex key stores its ranges
type SourceKind uint8

const (
	AgeBanded SourceKind = iota + 1
	Simple
)

func (k SourceKind) String() string {
	switch k {
	case AgeBanded:
		return "age_banded"
	case Simple:
		return "simple"
	}
	return "unknown"
}

// RangeSource is the ranges of one sex key. Bands is set for AgeBanded,
// Simple for Simple.
type RangeSource struct {
	Kind   SourceKind
	Bands  []AgeRange
	Simple SimpleRange
}

// Table holds the reference ranges of one test across sex keys and ages.
// Tables are built with a Builder and never change afterwards.
type Table struct {
	name    string
	nameRU  string
	code    string
	sexKeys []string
	sources map[string]RangeSource
}

// Name is the test identifier, e.g. "hemoglobin"
func (t *Table) Name() string { return t.name }

// NameRU is the localized label; it falls back to Name
func (t *Table) NameRU() string {
	if t.nameRU == "" {
		return t.name
	}
	return t.nameRU
}

// Code is the optional short test code from the source ("HGB")
func (t *Table) Code() string { return t.code }

// SexKeys lists sex keys in source order
func (t *Table) SexKeys() []string {
	keys := make([]string, len(t.sexKeys))
	copy(keys, t.sexKeys)
	return keys
}

// Source returns the ranges stored for a sex key. The returned bands are a
// copy.
func (t *Table) Source(sex string) (RangeSource, bool) {
	src, ok := t.sources[sex]
	if !ok {
		return RangeSource{}, false
	}
	if src.Kind == AgeBanded {
		bands := make([]AgeRange, len(src.Bands))
		copy(bands, src.Bands)
		src.Bands = bands
	}
	return src, true
}

// Unit returns the unit of the first range in source order, "" if the table
// is empty
func (t *Table) Unit() string {
	for _, key := range t.sexKeys {
		src := t.sources[key]
		switch src.Kind {
		case AgeBanded:
			if len(src.Bands) > 0 {
				return src.Bands[0].Unit
			}
		case Simple:
			return src.Simple.Unit
		}
	}
	return ""
}

// Builder assembles a Table. The first error is kept and reported by Build.
type Builder struct {
	table *Table
	err   error
}

func NewBuilder(name string) *Builder {
	return &Builder{
		table: &Table{
			name:    name,
			sources: make(map[string]RangeSource),
		},
	}
}

func (b *Builder) NameRU(nameRU string) *Builder {
	b.table.nameRU = nameRU
	return b
}

func (b *Builder) Code(code string) *Builder {
	b.table.code = code
	return b
}

// AddBand appends an age band to sex. Bands keep insertion order, which is
// the order Resolve scans them in.
func (b *Builder) AddBand(sex string, band AgeRange) *Builder {
	if b.err != nil {
		return b
	}
	src, ok := b.table.sources[sex]
	if ok && src.Kind != AgeBanded {
		b.err = errors.Wrapf(errors.ErrInvalidStructure,
			"%s/%s: cannot mix age bands with a simple range", b.table.name, sex)
		return b
	}
	if !ok {
		b.table.sexKeys = append(b.table.sexKeys, sex)
		src.Kind = AgeBanded
	}
	src.Bands = append(src.Bands, band)
	b.table.sources[sex] = src
	return b
}

// SetSimple stores the simple range of sex
func (b *Builder) SetSimple(sex string, r SimpleRange) *Builder {
	if b.err != nil {
		return b
	}
	if _, ok := b.table.sources[sex]; ok {
		b.err = errors.Wrapf(errors.ErrInvalidStructure,
			"%s/%s: sex key already has ranges", b.table.name, sex)
		return b
	}
	b.table.sexKeys = append(b.table.sexKeys, sex)
	b.table.sources[sex] = RangeSource{Kind: Simple, Simple: r}
	return b
}

func (b *Builder) Build() (*Table, error) {
	if b.err != nil {
		return nil, b.err
	}
	t := b.table
	b.table = nil
	b.err = errors.New("reference: builder reused after Build")
	return t, nil
}
