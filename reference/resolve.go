package reference

import (
	"fmt"

	"github.com/giygas/labref-api/errors"
)

// Patient carries the attributes resolution depends on. An empty Sex and a
// nil Age mean "not given".
type Patient struct {
	Sex string   `json:"sex,omitempty"`
	Age *float64 `json:"age,omitempty"`
}

// NewPatient builds a patient with both sex and age
func NewPatient(sex string, age float64) Patient {
	return Patient{Sex: sex, Age: &age}
}

func (p Patient) String() string {
	sex := p.Sex
	if sex == "" {
		sex = "-"
	}
	if p.Age == nil {
		return fmt.Sprintf("sex=%s age=-", sex)
	}
	return fmt.Sprintf("sex=%s age=%s", sex, FormatNumber(*p.Age))
}

var fallbackSexKeys = []string{SexAll, SexMale, SexFemale}

// SearchOrder is the sex key precedence for a requested sex: the sex itself,
// then "all", "male", "female", without repeats.
func SearchOrder(sex string) []string {
	order := make([]string, 0, len(fallbackSexKeys)+1)
	if sex != "" {
		order = append(order, sex)
	}
	for _, key := range fallbackSexKeys {
		if key != sex {
			order = append(order, key)
		}
	}
	return order
}

// Resolve picks the range of t that applies to p.
//
// When an age is given, the first sex key in SearchOrder that holds age bands
// is scanned in insertion order and the first band containing the age wins.
// A miss there does not move on to other sex keys' bands: resolution falls
// through to the simple ranges, again in SearchOrder. Without an age only
// simple ranges are considered.
func Resolve(t *Table, p Patient) (Range, error) {
	order := SearchOrder(p.Sex)

	bandedKey := ""
	if p.Age != nil {
		for _, key := range order {
			src, ok := t.sources[key]
			if !ok || src.Kind != AgeBanded {
				continue
			}
			bandedKey = key
			for _, band := range src.Bands {
				if band.Contains(*p.Age) {
					return band.Range(), nil
				}
			}
			break
		}
	}

	for _, key := range order {
		if src, ok := t.sources[key]; ok && src.Kind == Simple {
			return src.Simple.Range(), nil
		}
	}

	if bandedKey != "" {
		return Range{}, errors.Wrapf(errors.ErrNoAgeRangeMatch,
			"%s: no %s age band covers age %s", t.name, bandedKey, FormatNumber(*p.Age))
	}
	if p.Age == nil && t.hasBands(order) {
		return Range{}, errors.WithHint(
			errors.Wrapf(errors.ErrNoAgeRangeMatch, "%s: ranges are age banded and no age was given", t.name),
			"pass the patient's age")
	}
	return Range{}, errors.Wrapf(errors.ErrNoReferenceForSex,
		"%s: no reference for %s", t.name, p)
}

// Resolve is the method form of the package-level Resolve
func (t *Table) Resolve(p Patient) (Range, error) {
	return Resolve(t, p)
}

func (t *Table) hasBands(order []string) bool {
	for _, key := range order {
		if src, ok := t.sources[key]; ok && src.Kind == AgeBanded {
			return true
		}
	}
	return false
}
