package validation

import (
	"github.com/giygas/labref-api/document"
	"github.com/giygas/labref-api/errors"
	"github.com/giygas/labref-api/reference"
)

// InfoKey is the metadata entry of every reference and study document
const InfoKey = "_info"

var (
	bandKeys   = []string{"age_min", "age_max", "min", "max"}
	simpleKeys = []string{"min", "max"}
)

// ValidateReferenceDocument checks the shape of a biomaterial or test-type
// document before any table is built. Errors are marked with
// errors.ErrInvalidStructure and name the test and sex key at fault.
func ValidateReferenceDocument(doc *document.Node) error {
	if !doc.IsMap() {
		return invalid("root must be a mapping, got %s", kindOf(doc))
	}
	for _, f := range doc.Fields {
		if f.Key == InfoKey {
			if !f.Value.IsMap() {
				return invalid("%s must be a mapping, got %s", InfoKey, f.Value.Kind)
			}
			continue
		}
		if err := validateTestEntry(f.Key, f.Value); err != nil {
			return err
		}
	}
	return nil
}

func validateTestEntry(test string, n *document.Node) error {
	switch {
	case n.IsMap() && n.Has("min"):
		return validateSimple(n, "test %q", test)

	case n.IsMap():
		for _, f := range n.Fields {
			if reference.IsReservedKey(f.Key) {
				if _, ok := f.Value.Text(); !ok {
					return invalid("test %q: %s must be a string, got %s", test, f.Key, f.Value.Kind)
				}
				continue
			}
			switch {
			case f.Value.IsList():
				if err := validateBands(f.Value, test, f.Key); err != nil {
					return err
				}
			case f.Value.IsMap():
				if err := validateSimple(f.Value, "test %q, sex %q", test, f.Key); err != nil {
					return err
				}
			default:
				return invalid("test %q, sex %q: expected list of age ranges or a range mapping, got %s",
					test, f.Key, f.Value.Kind)
			}
		}
		return nil

	case n.IsList():
		return validateBands(n, test, reference.SexAll)
	}

	return invalid("test %q: expected mapping or list, got %s", test, kindOf(n))
}

func validateBands(list *document.Node, test, sex string) error {
	for i, item := range list.Items {
		if !item.IsMap() {
			return invalid("test %q, sex %q, age range %d: expected mapping, got %s", test, sex, i, item.Kind)
		}
		nums, err := requireNumbers(item, bandKeys)
		if err == nil {
			err = requireUnit(item)
		}
		if err != nil {
			return errors.Wrapf(err, "test %q, sex %q, age range %d", test, sex, i)
		}
		if !(nums[0] < nums[1]) {
			return invalid("test %q, sex %q, age range %d: age_min %s must be below age_max %s",
				test, sex, i, reference.FormatNumber(nums[0]), reference.FormatNumber(nums[1]))
		}
		if !(nums[2] <= nums[3]) {
			return invalid("test %q, sex %q, age range %d: min %s exceeds max %s",
				test, sex, i, reference.FormatNumber(nums[2]), reference.FormatNumber(nums[3]))
		}
	}
	return nil
}

func validateSimple(n *document.Node, format string, args ...any) error {
	nums, err := requireNumbers(n, simpleKeys)
	if err == nil {
		err = requireUnit(n)
	}
	if err != nil {
		return errors.Wrapf(err, format, args...)
	}
	if !(nums[0] <= nums[1]) {
		return errors.Wrapf(invalid("min %s exceeds max %s",
			reference.FormatNumber(nums[0]), reference.FormatNumber(nums[1])), format, args...)
	}
	return nil
}

func requireNumbers(n *document.Node, keys []string) ([]float64, error) {
	out := make([]float64, len(keys))
	for i, key := range keys {
		v, ok := n.Get(key)
		if !ok {
			return nil, invalid("missing %q", key)
		}
		f, ok := v.Float()
		if !ok {
			return nil, invalid("%q must be a number, got %s", key, v.Kind)
		}
		out[i] = f
	}
	return out, nil
}

func requireUnit(n *document.Node) error {
	v, ok := n.Get("unit")
	if !ok {
		return invalid(`missing "unit"`)
	}
	if _, ok := v.Text(); !ok {
		return invalid(`"unit" must be a string, got %s`, v.Kind)
	}
	return nil
}

// ValidateStudyDocument checks the lab_studies document: every study needs a
// non-empty list of biomaterials, a list of tests with test_name and an
// optional preferred_biomaterial taken from its biomaterials.
func ValidateStudyDocument(doc *document.Node) error {
	if !doc.IsMap() {
		return invalid("root must be a mapping, got %s", kindOf(doc))
	}
	for _, f := range doc.Fields {
		if f.Key == InfoKey {
			if !f.Value.IsMap() {
				return invalid("%s must be a mapping, got %s", InfoKey, f.Value.Kind)
			}
			continue
		}
		if err := validateStudy(f.Key, f.Value); err != nil {
			return err
		}
	}
	return nil
}

func validateStudy(key string, n *document.Node) error {
	if !n.IsMap() {
		return invalid("study %q: expected mapping, got %s", key, n.Kind)
	}
	for _, field := range []string{"name", "description", "preferred_biomaterial"} {
		if v, ok := n.Get(field); ok {
			if _, ok := v.Text(); !ok {
				return invalid("study %q: %s must be a string, got %s", key, field, v.Kind)
			}
		}
	}

	bio, ok := n.Get("biomaterials")
	if !ok {
		return invalid("study %q: missing biomaterials", key)
	}
	if !bio.IsList() {
		return invalid("study %q: biomaterials must be a list, got %s", key, bio.Kind)
	}
	if bio.Len() == 0 {
		return errors.WithHint(
			invalid("study %q: biomaterials is empty", key),
			"list at least one biomaterial type the study can be run on")
	}
	eligible := make(map[string]bool, bio.Len())
	for i, item := range bio.Items {
		s, ok := item.Text()
		if !ok || s == "" {
			return invalid("study %q: biomaterials[%d] must be a non-empty string", key, i)
		}
		eligible[s] = true
	}
	if preferred := n.StringAt("preferred_biomaterial"); preferred != "" && !eligible[preferred] {
		return invalid("study %q: preferred_biomaterial %q is not listed in biomaterials", key, preferred)
	}

	tests, ok := n.Get("tests")
	if !ok {
		return invalid("study %q: missing tests", key)
	}
	if !tests.IsList() {
		return invalid("study %q: tests must be a list, got %s", key, tests.Kind)
	}
	seen := make(map[string]bool, tests.Len())
	for i, item := range tests.Items {
		if !item.IsMap() {
			return invalid("study %q: tests[%d] must be a mapping, got %s", key, i, item.Kind)
		}
		name, ok := item.Get("test_name")
		if !ok {
			return invalid("study %q: tests[%d]: missing test_name", key, i)
		}
		s, ok := name.Text()
		if !ok || s == "" {
			return invalid("study %q: tests[%d]: test_name must be a non-empty string", key, i)
		}
		if seen[s] {
			return invalid("study %q: test %q listed twice", key, s)
		}
		seen[s] = true
		if req, ok := item.Get("required"); ok && req.Kind != document.KindBool {
			return invalid("study %q: test %q: required must be a boolean, got %s", key, s, req.Kind)
		}
	}
	return nil
}

func invalid(format string, args ...any) error {
	return errors.Wrapf(errors.ErrInvalidStructure, format, args...)
}

func kindOf(n *document.Node) string {
	if n == nil {
		return "nothing"
	}
	return n.Kind.String()
}
