package reference

import (
	"github.com/giygas/labref-api/document"
	"github.com/giygas/labref-api/errors"
)

// Reserved per-test keys that are not sex keys
const (
	KeyNameRU   = "name_ru"
	KeyTestCode = "test_code"
)

// IsReservedKey reports whether key is test metadata rather than a sex key
func IsReservedKey(key string) bool {
	return key == KeyNameRU || key == KeyTestCode
}

// TableFromNode builds a table from one top-level entry of a reference
// document. The entry may be a per-sex mapping, a bare list of age bands or
// a bare simple range; the bare forms are stored under "all".
func TableFromNode(name string, n *document.Node) (*Table, error) {
	b := NewBuilder(name)

	switch {
	case n.IsMap() && n.Has("min"):
		r, err := simpleFromNode(n)
		if err != nil {
			return nil, errors.Wrapf(err, "%s", name)
		}
		b.SetSimple(SexAll, r)

	case n.IsMap():
		b.NameRU(n.StringAt(KeyNameRU)).Code(n.StringAt(KeyTestCode))
		for _, f := range n.Fields {
			if IsReservedKey(f.Key) {
				continue
			}
			switch {
			case f.Value.IsList():
				for i, item := range f.Value.Items {
					band, err := bandFromNode(item)
					if err != nil {
						return nil, errors.Wrapf(err, "%s/%s[%d]", name, f.Key, i)
					}
					b.AddBand(f.Key, band)
				}
			case f.Value.IsMap():
				r, err := simpleFromNode(f.Value)
				if err != nil {
					return nil, errors.Wrapf(err, "%s/%s", name, f.Key)
				}
				b.SetSimple(f.Key, r)
			default:
				return nil, errors.Wrapf(errors.ErrInvalidStructure,
					"%s/%s: expected sequence or mapping, got %s", name, f.Key, f.Value.Kind)
			}
		}

	case n.IsList():
		for i, item := range n.Items {
			band, err := bandFromNode(item)
			if err != nil {
				return nil, errors.Wrapf(err, "%s[%d]", name, i)
			}
			b.AddBand(SexAll, band)
		}

	default:
		return nil, errors.Wrapf(errors.ErrInvalidStructure,
			"%s: expected sequence or mapping, got %s", name, n.Kind)
	}

	return b.Build()
}

func bandFromNode(n *document.Node) (AgeRange, error) {
	if !n.IsMap() {
		return AgeRange{}, errors.Wrapf(errors.ErrInvalidStructure, "age range must be a mapping, got %s", n.Kind)
	}
	nums, err := numbers(n, "age_min", "age_max", "min", "max")
	if err != nil {
		return AgeRange{}, err
	}
	unit, err := unitOf(n)
	if err != nil {
		return AgeRange{}, err
	}
	return NewAgeRange(nums[0], nums[1], nums[2], nums[3], unit)
}

func simpleFromNode(n *document.Node) (SimpleRange, error) {
	nums, err := numbers(n, "min", "max")
	if err != nil {
		return SimpleRange{}, err
	}
	unit, err := unitOf(n)
	if err != nil {
		return SimpleRange{}, err
	}
	return NewSimpleRange(nums[0], nums[1], unit)
}

func numbers(n *document.Node, keys ...string) ([]float64, error) {
	out := make([]float64, len(keys))
	for i, key := range keys {
		v, ok := n.Get(key)
		if !ok {
			return nil, errors.Wrapf(errors.ErrInvalidStructure, "missing key %q", key)
		}
		f, ok := v.Float()
		if !ok {
			return nil, errors.Wrapf(errors.ErrInvalidStructure, "%q must be a number, got %s", key, v.Kind)
		}
		out[i] = f
	}
	return out, nil
}

func unitOf(n *document.Node) (string, error) {
	v, ok := n.Get("unit")
	if !ok {
		return "", errors.Wrap(errors.ErrInvalidStructure, `missing key "unit"`)
	}
	unit, ok := v.Text()
	if !ok {
		return "", errors.Wrapf(errors.ErrInvalidStructure, `"unit" must be a string, got %s`, v.Kind)
	}
	return unit, nil
}
