// Package reference implements reference-range resolution and value
// classification for laboratory tests.
//
// A Table holds one test's ranges keyed by sex. Each sex key is either age
// banded (a list of AgeRange) or simple (one SimpleRange). Resolve picks the
// range that applies to a patient and Classify places a value against it.
// The package is pure: no I/O, no logging, no shared state.
package reference

import (
	"fmt"
	"strconv"

	"github.com/giygas/labref-api/errors"
)

// Well-known sex keys. Source data may use any other string as well.
const (
	SexAll    = "all"
	SexMale   = "male"
	SexFemale = "female"
)

// AgeRange is a reference range valid for ages in [AgeMin, AgeMax)
type AgeRange struct {
	AgeMin float64 `json:"age_min"`
	AgeMax float64 `json:"age_max"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Unit   string  `json:"unit"`
}

// NewAgeRange validates AgeMin < AgeMax and Min <= Max
func NewAgeRange(ageMin, ageMax, min, max float64, unit string) (AgeRange, error) {
	if !(ageMin < ageMax) {
		return AgeRange{}, errors.Wrapf(errors.ErrInvalidStructure,
			"age_min %s must be below age_max %s", FormatNumber(ageMin), FormatNumber(ageMax))
	}
	if !(min <= max) {
		return AgeRange{}, errors.Wrapf(errors.ErrInvalidStructure,
			"min %s must not exceed max %s", FormatNumber(min), FormatNumber(max))
	}
	return AgeRange{AgeMin: ageMin, AgeMax: ageMax, Min: min, Max: max, Unit: unit}, nil
}

// Contains reports whether age falls inside the half-open band
func (a AgeRange) Contains(age float64) bool {
	return a.AgeMin <= age && age < a.AgeMax
}

// Range returns the band as a resolved Range carrying its age bounds
func (a AgeRange) Range() Range {
	ageMin, ageMax := a.AgeMin, a.AgeMax
	return Range{Min: a.Min, Max: a.Max, Unit: a.Unit, AgeMin: &ageMin, AgeMax: &ageMax}
}

func (a AgeRange) String() string {
	return fmt.Sprintf("%s-%s %s (age %s-%s)",
		FormatNumber(a.Min), FormatNumber(a.Max), a.Unit, FormatNumber(a.AgeMin), FormatNumber(a.AgeMax))
}

// SimpleRange is a reference range without age dependency
type SimpleRange struct {
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	Unit string  `json:"unit"`
}

// NewSimpleRange validates Min <= Max
func NewSimpleRange(min, max float64, unit string) (SimpleRange, error) {
	if !(min <= max) {
		return SimpleRange{}, errors.Wrapf(errors.ErrInvalidStructure,
			"min %s must not exceed max %s", FormatNumber(min), FormatNumber(max))
	}
	return SimpleRange{Min: min, Max: max, Unit: unit}, nil
}

func (s SimpleRange) Range() Range {
	return Range{Min: s.Min, Max: s.Max, Unit: s.Unit}
}

func (s SimpleRange) String() string {
	return fmt.Sprintf("%s-%s %s", FormatNumber(s.Min), FormatNumber(s.Max), s.Unit)
}

// Range is the outcome of a resolution. AgeMin and AgeMax are set only when
// the range came from an age band.
type Range struct {
	Min    float64  `json:"min"`
	Max    float64  `json:"max"`
	Unit   string   `json:"unit"`
	AgeMin *float64 `json:"age_min,omitempty"`
	AgeMax *float64 `json:"age_max,omitempty"`
}

// IsAgeBanded reports whether the range carries age bounds
func (r Range) IsAgeBanded() bool {
	return r.AgeMin != nil && r.AgeMax != nil
}

func (r Range) String() string {
	if r.IsAgeBanded() {
		return fmt.Sprintf("%s-%s %s (age %s-%s)",
			FormatNumber(r.Min), FormatNumber(r.Max), r.Unit, FormatNumber(*r.AgeMin), FormatNumber(*r.AgeMax))
	}
	return fmt.Sprintf("%s-%s %s", FormatNumber(r.Min), FormatNumber(r.Max), r.Unit)
}

// FormatNumber renders a float without trailing zeros (130, 4.5, 0.05)
func FormatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
