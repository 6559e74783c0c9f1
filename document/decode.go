package document

import (
	"encoding/json"
	"io"

	"github.com/giygas/labref-api/errors"
	"gopkg.in/yaml.v3"
)

// DecodeJSON reads exactly one JSON value from r
func DecodeJSON(r io.Reader) (*Node, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	n, err := decodeJSONValue(dec)
	if err != nil {
		return nil, err
	}

	if _, err := dec.Token(); err != io.EOF {
		if err == nil {
			return nil, errors.New("unexpected data after top-level value")
		}
		return nil, errors.Wrap(err, "reading after top-level value")
	}
	return n, nil
}

func decodeJSONValue(dec *json.Decoder) (*Node, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, errors.Wrap(err, "reading json token")
	}

	switch v := tok.(type) {
	case json.Delim:
		switch v {
		case '{':
			return decodeJSONObject(dec)
		case '[':
			return decodeJSONArray(dec)
		}
		return nil, errors.Newf("unexpected delimiter %q", v.String())
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return nil, errors.Wrapf(err, "invalid number %s", v.String())
		}
		return NewNumber(f), nil
	case string:
		return NewString(v), nil
	case bool:
		return NewBool(v), nil
	case nil:
		return &Node{Kind: KindNull}, nil
	}
	return nil, errors.Newf("unexpected json token %v", tok)
}

func decodeJSONObject(dec *json.Decoder) (*Node, error) {
	n := NewMap()
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, errors.Wrap(err, "reading object key")
		}
		key, ok := tok.(string)
		if !ok {
			return nil, errors.Newf("object key must be a string, got %v", tok)
		}
		value, err := decodeJSONValue(dec)
		if err != nil {
			return nil, errors.Wrapf(err, "key %q", key)
		}
		n.Set(key, value)
	}
	// closing '}'
	if _, err := dec.Token(); err != nil {
		return nil, errors.Wrap(err, "closing object")
	}
	return n, nil
}

func decodeJSONArray(dec *json.Decoder) (*Node, error) {
	n := NewList()
	for dec.More() {
		value, err := decodeJSONValue(dec)
		if err != nil {
			return nil, errors.Wrapf(err, "index %d", len(n.Items))
		}
		n.Items = append(n.Items, value)
	}
	if _, err := dec.Token(); err != nil {
		return nil, errors.Wrap(err, "closing array")
	}
	return n, nil
}

// DecodeYAML reads the first YAML document from r
func DecodeYAML(r io.Reader) (*Node, error) {
	var root yaml.Node
	if err := yaml.NewDecoder(r).Decode(&root); err != nil {
		if err == io.EOF {
			return nil, errors.New("empty yaml document")
		}
		return nil, errors.Wrap(err, "decoding yaml")
	}
	var c yamlConverter
	return c.convert(&root, 0)
}

// Alias expansion limits. Aliases are copied into the tree, so a few nested
// anchors can otherwise grow a small file exponentially or forever.
const (
	maxYAMLNodes = 100_000
	maxYAMLDepth = 64
)

type yamlConverter struct {
	nodes int
}

func (c *yamlConverter) convert(y *yaml.Node, depth int) (*Node, error) {
	c.nodes++
	if c.nodes > maxYAMLNodes {
		return nil, errors.Newf("line %d: document expands to more than %d nodes", y.Line, maxYAMLNodes)
	}
	if depth > maxYAMLDepth {
		return nil, errors.Newf("line %d: document nested deeper than %d levels", y.Line, maxYAMLDepth)
	}

	switch y.Kind {
	case yaml.DocumentNode:
		if len(y.Content) == 0 {
			return &Node{Kind: KindNull}, nil
		}
		return c.convert(y.Content[0], depth)

	case yaml.AliasNode:
		if y.Alias == nil {
			return nil, errors.Newf("line %d: dangling alias", y.Line)
		}
		return c.convert(y.Alias, depth)

	case yaml.MappingNode:
		n := NewMap()
		for i := 0; i+1 < len(y.Content); i += 2 {
			k, v := y.Content[i], y.Content[i+1]
			if k.Kind != yaml.ScalarNode {
				return nil, errors.Newf("line %d: mapping key must be a scalar", k.Line)
			}
			value, err := c.convert(v, depth+1)
			if err != nil {
				return nil, errors.Wrapf(err, "key %q", k.Value)
			}
			n.Set(k.Value, value)
		}
		return n, nil

	case yaml.SequenceNode:
		n := NewList()
		for _, item := range y.Content {
			value, err := c.convert(item, depth+1)
			if err != nil {
				return nil, errors.Wrapf(err, "index %d", len(n.Items))
			}
			n.Items = append(n.Items, value)
		}
		return n, nil

	case yaml.ScalarNode:
		switch y.ShortTag() {
		case "!!null":
			return &Node{Kind: KindNull}, nil
		case "!!bool":
			var b bool
			if err := y.Decode(&b); err != nil {
				return nil, errors.Wrapf(err, "line %d", y.Line)
			}
			return NewBool(b), nil
		case "!!int", "!!float":
			var f float64
			if err := y.Decode(&f); err != nil {
				return nil, errors.Wrapf(err, "line %d", y.Line)
			}
			return NewNumber(f), nil
		}
		return NewString(y.Value), nil
	}
	return nil, errors.Newf("line %d: unsupported yaml node", y.Line)
}
