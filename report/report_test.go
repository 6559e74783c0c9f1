package report

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/pterm/pterm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/giygas/labref-api/catalog"
	"github.com/giygas/labref-api/reference"
	"github.com/giygas/labref-api/source"
	"github.com/giygas/labref-api/study"
)

func TestMain(m *testing.M) {
	pterm.DisableStyling()
	os.Exit(m.Run())
}

func loadCatalog(t *testing.T, key string) *catalog.Catalog {
	t.Helper()
	c, err := catalog.Load(context.Background(), key, source.NewBuiltinProvider())
	require.NoError(t, err)
	return c
}

func rowWith(out string, parts ...string) bool {
	for _, line := range strings.Split(out, "\n") {
		ok := true
		for _, p := range parts {
			if !strings.Contains(line, p) {
				ok = false
				break
			}
		}
		if ok {
			return true
		}
	}
	return false
}

func TestMarker(t *testing.T) {
	assert.Equal(t, "✓", Marker(reference.StatusNormal))
	assert.Equal(t, "↓", Marker(reference.StatusBelow))
	assert.Equal(t, "↑", Marker(reference.StatusAbove))
	assert.Equal(t, "?", Marker(""))
}

func TestReferenceTable(t *testing.T) {
	out, err := ReferenceTable(loadCatalog(t, "venous_blood"))
	require.NoError(t, err)

	assert.True(t, rowWith(out, "hemoglobin", "Гемоглобин", "male", "18-150", "130-170 g/L"), out)
	assert.True(t, rowWith(out, "hemoglobin", "female", "0-18", "115-150 g/L"), out)
	assert.True(t, rowWith(out, "glucose", "all", "60-150", "4.6-6.4 mmol/L"), out)
}

func TestTestNames(t *testing.T) {
	out, err := TestNames(loadCatalog(t, "venous_blood"))
	require.NoError(t, err)

	assert.True(t, rowWith(out, "Гемоглобин", "hemoglobin", "g/L", "HGB"), out)
	assert.True(t, rowWith(out, "Глюкоза", "glucose", "mmol/L"), out)
}

func TestListings(t *testing.T) {
	p := source.NewBuiltinProvider()
	reg, err := study.NewRegistry(context.Background(), p)
	require.NoError(t, err)

	var studies []study.Info
	for _, name := range reg.ListStudies() {
		info, err := reg.StudyInfo(name)
		require.NoError(t, err)
		studies = append(studies, info)
	}
	out, err := Studies(studies)
	require.NoError(t, err)
	assert.True(t, rowWith(out, "blood_test", "capillary_blood, venous_blood", "5 (4 required)"), out)

	out, err = Biomaterials([]source.Info{{Key: "urine", Name: "Моча", CollectionMethod: "Утренняя порция"}})
	require.NoError(t, err)
	assert.True(t, rowWith(out, "urine", "Моча", "Утренняя порция"), out)

	infos, err := source.Describe(context.Background(), p)
	require.NoError(t, err)
	out, err = TestTypes(infos)
	require.NoError(t, err)
	assert.True(t, rowWith(out, "blood_test"), out)
	assert.True(t, rowWith(out, "arterial_blood", "arterial_blood"), out)
}

func TestOutcomes(t *testing.T) {
	c := loadCatalog(t, "venous_blood")
	outcomes := c.Evaluate(map[string]float64{"glucose": 7.2, "troponin": 1}, reference.NewPatient(reference.SexMale, 40))

	out, err := Outcomes(outcomes)
	require.NoError(t, err)
	assert.True(t, rowWith(out, "↑", "glucose", "7.2", "4.1-5.9 mmol/L", "above"), out)
	assert.True(t, rowWith(out, "?", "troponin"), out)
}

func TestResult(t *testing.T) {
	reg, err := study.NewRegistry(context.Background(), source.NewBuiltinProvider())
	require.NoError(t, err)
	res, err := reg.CreateResult(context.Background(), "blood_test", "", reference.NewPatient(reference.SexMale, 30))
	require.NoError(t, err)
	require.NoError(t, res.AddResults(map[string]float64{"hemoglobin": 132, "platelets": 200}))

	out, err := Result(res)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(out, "Общий анализ крови (blood_test)"), out)
	assert.True(t, rowWith(out, "↓", "hemoglobin", "132", "below"), out)
	assert.True(t, rowWith(out, "✓", "platelets", "200", "normal"), out)
	assert.Contains(t, out, "✓ normal: 1  ↓ below: 1  ↑ above: 0  total: 2")
	assert.Contains(t, out, "missing required: erythrocytes, leukocytes")
}
