// Package document holds the parsed form of a reference source: an ordered
// tree of maps, lists and scalars. Map keys keep their source order, which
// the catalogs rely on when listing tests.
package document

import "strconv"

// Kind is the shape of a Node
type Kind uint8

const (
	KindNull Kind = iota
	KindMap
	KindList
	KindNumber
	KindString
	KindBool
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindMap:
		return "mapping"
	case KindList:
		return "sequence"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindBool:
		return "boolean"
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// Field is one key/value pair of a mapping
type Field struct {
	Key   string
	Value *Node
}

// Node is a JSON-equivalent value. Only the members matching Kind are set.
type Node struct {
	Kind   Kind
	Fields []Field
	Items  []*Node
	Num    float64
	Str    string
	Bool   bool
}

func NewMap() *Node { return &Node{Kind: KindMap} }

func NewList(items ...*Node) *Node { return &Node{Kind: KindList, Items: items} }

func NewNumber(v float64) *Node { return &Node{Kind: KindNumber, Num: v} }

func NewString(v string) *Node { return &Node{Kind: KindString, Str: v} }

func NewBool(v bool) *Node { return &Node{Kind: KindBool, Bool: v} }

// Set stores v under key. A repeated key keeps its first position and takes
// the latest value, like encoding/json does for plain maps.
func (n *Node) Set(key string, v *Node) *Node {
	for i := range n.Fields {
		if n.Fields[i].Key == key {
			n.Fields[i].Value = v
			return n
		}
	}
	n.Fields = append(n.Fields, Field{Key: key, Value: v})
	return n
}

// Get returns the value stored under key in a mapping
func (n *Node) Get(key string) (*Node, bool) {
	if n == nil || n.Kind != KindMap {
		return nil, false
	}
	for _, f := range n.Fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}

func (n *Node) Has(key string) bool {
	_, ok := n.Get(key)
	return ok
}

// Keys returns mapping keys in source order
func (n *Node) Keys() []string {
	if n == nil || n.Kind != KindMap {
		return nil
	}
	keys := make([]string, 0, len(n.Fields))
	for _, f := range n.Fields {
		keys = append(keys, f.Key)
	}
	return keys
}

// Len is the number of fields of a mapping or items of a sequence
func (n *Node) Len() int {
	if n == nil {
		return 0
	}
	switch n.Kind {
	case KindMap:
		return len(n.Fields)
	case KindList:
		return len(n.Items)
	}
	return 0
}

func (n *Node) IsMap() bool  { return n != nil && n.Kind == KindMap }
func (n *Node) IsList() bool { return n != nil && n.Kind == KindList }

// Float returns the numeric value of a number node
func (n *Node) Float() (float64, bool) {
	if n == nil || n.Kind != KindNumber {
		return 0, false
	}
	return n.Num, true
}

// Text returns the value of a string node
func (n *Node) Text() (string, bool) {
	if n == nil || n.Kind != KindString {
		return "", false
	}
	return n.Str, true
}

// FloatAt reads a numeric field of a mapping
func (n *Node) FloatAt(key string) (float64, bool) {
	v, ok := n.Get(key)
	if !ok {
		return 0, false
	}
	return v.Float()
}

// StringAt reads a string field of a mapping, "" when absent or not a string
func (n *Node) StringAt(key string) string {
	v, ok := n.Get(key)
	if !ok {
		return ""
	}
	s, _ := v.Text()
	return s
}

// BoolAt reads a boolean field of a mapping, false when absent
func (n *Node) BoolAt(key string) bool {
	v, ok := n.Get(key)
	if !ok || v.Kind != KindBool {
		return false
	}
	return v.Bool
}
