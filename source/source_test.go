package source

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"

	"github.com/giygas/labref-api/errors"
)

func writeFile(t *testing.T, dir, name string, data []byte) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0o644))
}

func TestDirProviderLoadsJSONAndYAML(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "serum.json", []byte(`{"_info": {"name": "Serum"}, "ferritin": {"min": 20, "max": 250, "unit": "ng/mL"}}`))
	writeFile(t, dir, "plasma.yaml", []byte("_info:\n  name: Plasma\nfibrinogen: {min: 2, max: 4, unit: g/L}\n"))

	p, err := NewDirProvider(dir)
	require.NoError(t, err)
	ctx := context.Background()

	serum, err := p.LoadRaw(ctx, "serum")
	require.NoError(t, err)
	assert.Equal(t, []string{"_info", "ferritin"}, serum.Keys())

	plasma, err := p.LoadRaw(ctx, "plasma")
	require.NoError(t, err)
	assert.Equal(t, "Plasma", InfoOf("plasma", plasma).Name)

	keys, err := p.ListKeys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"plasma", "serum"}, keys)
}

func TestDirProviderPrefersJSON(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "serum.json", []byte(`{"from": {"min": 1, "max": 2, "unit": "json"}}`))
	writeFile(t, dir, "serum.yml", []byte("from: {min: 1, max: 2, unit: yaml}\n"))
	writeFile(t, dir, "notes.txt", []byte("ignored"))

	p, err := NewDirProvider(dir)
	require.NoError(t, err)

	doc, err := p.LoadRaw(context.Background(), "serum")
	require.NoError(t, err)
	from, _ := doc.Get("from")
	assert.Equal(t, "json", from.StringAt("unit"))

	keys, err := p.ListKeys(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"serum"}, keys)
}

func TestDirProviderIgnoresUppercaseExtensions(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "Urine.JSON", []byte(`{"ph": {"min": 5, "max": 7, "unit": "pH"}}`))
	writeFile(t, dir, "serum.json", []byte(`{"ferritin": {"min": 20, "max": 250, "unit": "ng/mL"}}`))

	p, err := NewDirProvider(dir)
	require.NoError(t, err)

	// every listed key must be loadable
	keys, err := p.ListKeys(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"serum"}, keys)
	for _, key := range keys {
		_, err := p.LoadRaw(context.Background(), key)
		require.NoError(t, err, key)
	}
}

func TestKeyOf(t *testing.T) {
	cases := []struct {
		name string
		key  string
		ok   bool
	}{
		{"urine.json", "urine", true},
		{"urine.yaml", "urine", true},
		{"urine.yml", "urine", true},
		{"Urine.json", "Urine", true},
		{"urine.JSON", "", false},
		{"urine.Yml", "", false},
		{"urine.txt", "", false},
		{"urine", "", false},
	}
	for _, tc := range cases {
		key, ok := keyOf(tc.name)
		assert.Equal(t, tc.ok, ok, tc.name)
		assert.Equal(t, tc.key, key, tc.name)
	}
}

func TestDirProviderDecodesWindows1251(t *testing.T) {
	encoded, err := charmap.Windows1251.NewEncoder().String(`{"_info": {"name": "Сыворотка"}}`)
	require.NoError(t, err)

	dir := t.TempDir()
	writeFile(t, dir, "serum.json", []byte(encoded))

	p, err := NewDirProvider(dir)
	require.NoError(t, err)

	doc, err := p.LoadRaw(context.Background(), "serum")
	require.NoError(t, err)
	assert.Equal(t, "Сыворотка", InfoOf("serum", doc).Name)
}

func TestDirProviderErrors(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "broken.json", []byte(`{"a": `))
	ctx := context.Background()

	p, err := NewDirProvider(dir)
	require.NoError(t, err)

	_, err = p.LoadRaw(ctx, "missing")
	assert.True(t, errors.Is(err, errors.ErrSourceNotFound))
	assert.True(t, errors.Is(err, errors.ErrSourceUnavailable))
	assert.NotEmpty(t, errors.FlattenHints(err))

	_, err = p.LoadRaw(ctx, "broken")
	assert.True(t, errors.Is(err, errors.ErrSourceParse))
	assert.True(t, errors.Is(err, errors.ErrSourceUnavailable))
	assert.False(t, errors.Is(err, errors.ErrSourceNotFound))

	for _, key := range []string{"../broken", "", "..", ".hidden", `a\b`} {
		_, err = p.LoadRaw(ctx, key)
		assert.True(t, errors.Is(err, errors.ErrSourceNotFound), "key %q", key)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = p.LoadRaw(cancelled, "broken")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewDirProviderMissingDir(t *testing.T) {
	_, err := NewDirProvider(filepath.Join(t.TempDir(), "nope"))
	assert.True(t, errors.Is(err, errors.ErrSourceNotFound))

	file := filepath.Join(t.TempDir(), "file.json")
	require.NoError(t, os.WriteFile(file, []byte("{}"), 0o644))
	_, err = NewDirProvider(file)
	assert.True(t, errors.Is(err, errors.ErrSourceNotFound))
}

func TestBuiltinProvider(t *testing.T) {
	p := NewBuiltinProvider()
	ctx := context.Background()

	assert.Equal(t, BuiltinLocation, p.Location())

	keys, err := p.ListKeys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"arterial_blood", "blood_test", "capillary_blood", "lab_studies", "urine", "venous_blood"}, keys)

	doc, err := p.LoadRaw(ctx, "venous_blood")
	require.NoError(t, err)
	info := InfoOf("venous_blood", doc)
	assert.Equal(t, "Венозная кровь", info.Name)
	assert.Equal(t, "venous_blood", info.BiomaterialType)

	_, err = p.LoadRaw(ctx, "plasma")
	assert.True(t, errors.Is(err, errors.ErrSourceNotFound))
}

func TestListBiomaterialsAndTestTypes(t *testing.T) {
	p := NewBuiltinProvider()
	ctx := context.Background()

	bio, err := ListBiomaterials(ctx, p)
	require.NoError(t, err)
	var keys []string
	for _, info := range bio {
		keys = append(keys, info.Key)
	}
	assert.Equal(t, []string{"arterial_blood", "capillary_blood", "urine", "venous_blood"}, keys)

	types, err := ListTestTypes(ctx, p)
	require.NoError(t, err)
	assert.NotContains(t, types, StudiesKey)
	assert.Contains(t, types, "blood_test")
	assert.Contains(t, types, "urine")
}

func TestDescribeKeepsUnreadableDocuments(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "broken.json", []byte(`[`))
	writeFile(t, dir, "serum.json", []byte(`{"_info": {"name": "Serum", "biomaterial_type": true}}`))

	p, err := NewDirProvider(dir)
	require.NoError(t, err)

	infos, err := Describe(context.Background(), p)
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, Info{Key: "broken", Name: "broken"}, infos[0])
	assert.Equal(t, "serum", infos[1].BiomaterialType)
}

func TestCopyTemplate(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "nested", "references")

	copied, err := CopyTemplate(dest)
	require.NoError(t, err)
	assert.NotEmpty(t, copied)
	for _, name := range copied {
		assert.FileExists(t, filepath.Join(dest, name))
		assert.Equal(t, ".json", filepath.Ext(name))
	}

	p, err := NewDirProvider(dest)
	require.NoError(t, err)
	keys, err := p.ListKeys(context.Background())
	require.NoError(t, err)
	builtinKeys, err := NewBuiltinProvider().ListKeys(context.Background())
	require.NoError(t, err)
	assert.Equal(t, builtinKeys, keys)
}

func TestResolveDirPrecedence(t *testing.T) {
	t.Setenv(EnvDir, "/from/env")
	assert.Equal(t, "/explicit", ResolveDir("/explicit"))
	assert.Equal(t, "/from/env", ResolveDir(""))

	t.Setenv(EnvDir, "")
	assert.Equal(t, "", ResolveDir(""))

	p, err := Open("")
	require.NoError(t, err)
	assert.Equal(t, BuiltinLocation, p.Location())

	dir := t.TempDir()
	t.Setenv(EnvDir, dir)
	p, err = Open("")
	require.NoError(t, err)
	abs, _ := filepath.Abs(dir)
	assert.Equal(t, abs, p.Location())
}
