// Package source loads raw reference documents from a directory or from the
// reference set built into the binary.
package source

import (
	"bytes"
	"context"
	"path"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"github.com/giygas/labref-api/document"
	"github.com/giygas/labref-api/errors"
)

// StudiesKey is the fixed document holding lab study definitions
const StudiesKey = "lab_studies"

// Provider hands out parsed reference documents by key ("venous_blood",
// "lab_studies"). Errors are marked errors.ErrSourceNotFound or
// errors.ErrSourceParse.
type Provider interface {
	LoadRaw(ctx context.Context, key string) (*document.Node, error)
	ListKeys(ctx context.Context) ([]string, error)
	// Location identifies where documents come from; catalogs loaded from
	// different locations are never shared.
	Location() string
}

// Extensions tried in order when looking a key up
var Extensions = []string{".json", ".yaml", ".yml"}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// decode parses data by file extension. Files that are not valid UTF-8 are
// read as Windows-1251, the usual encoding of hand-edited Russian lab sheets.
func decode(name string, data []byte) (*document.Node, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if !utf8.Valid(data) {
		decoded, err := charmap.Windows1251.NewDecoder().Bytes(data)
		if err != nil {
			return nil, parseError(name, err)
		}
		data = decoded
	}

	var (
		doc *document.Node
		err error
	)
	switch strings.ToLower(path.Ext(name)) {
	case ".yaml", ".yml":
		doc, err = document.DecodeYAML(bytes.NewReader(data))
	default:
		doc, err = document.DecodeJSON(bytes.NewReader(data))
	}
	if err != nil {
		return nil, parseError(name, err)
	}
	return doc, nil
}

func parseError(name string, err error) error {
	err = errors.Wrapf(err, "parse %s", name)
	return errors.Mark(errors.Mark(err, errors.ErrSourceUnavailable), errors.ErrSourceParse)
}

func notFound(key, location string) error {
	return errors.WithHintf(
		errors.Wrapf(errors.ErrSourceNotFound, "%s in %s", key, location),
		"expected a file named %s.json, %s.yaml or %s.yml", key, key, key)
}

// validKey rejects keys that could escape the source directory
func validKey(key string) bool {
	return key != "" && key != "." && key != ".." &&
		!strings.ContainsAny(key, `/\`) && !strings.HasPrefix(key, ".")
}

// keyOf strips a supported extension from a file name. Extensions match
// case-sensitively, the same way LoadRaw builds file names from keys.
func keyOf(name string) (string, bool) {
	ext := path.Ext(name)
	for _, e := range Extensions {
		if ext == e {
			return strings.TrimSuffix(name, ext), true
		}
	}
	return "", false
}

// Info is the _info block of a reference document
type Info struct {
	Key              string `json:"key"`
	Name             string `json:"name"`
	Description      string `json:"description,omitempty"`
	CollectionMethod string `json:"collection_method,omitempty"`
	BiomaterialType  string `json:"biomaterial_type,omitempty"`
}

// IsBiomaterial reports whether the document declares a biomaterial type
func (i Info) IsBiomaterial() bool { return i.BiomaterialType != "" }

// InfoOf reads the _info block of doc. Name falls back to key.
// biomaterial_type may be the type string or true.
func InfoOf(key string, doc *document.Node) Info {
	meta, _ := doc.Get("_info")
	info := Info{
		Key:              key,
		Name:             meta.StringAt("name"),
		Description:      meta.StringAt("description"),
		CollectionMethod: meta.StringAt("collection_method"),
		BiomaterialType:  meta.StringAt("biomaterial_type"),
	}
	if info.Name == "" {
		info.Name = key
	}
	// a boolean marker means the document key is the biomaterial type
	if info.BiomaterialType == "" && meta.BoolAt("biomaterial_type") {
		info.BiomaterialType = key
	}
	return info
}
