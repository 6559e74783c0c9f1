package reference

import (
	"testing"

	"github.com/giygas/labref-api/errors"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func band(t *testing.T, ageMin, ageMax, min, max float64, unit string) AgeRange {
	t.Helper()
	a, err := NewAgeRange(ageMin, ageMax, min, max, unit)
	require.NoError(t, err)
	return a
}

func simple(t *testing.T, min, max float64, unit string) SimpleRange {
	t.Helper()
	r, err := NewSimpleRange(min, max, unit)
	require.NoError(t, err)
	return r
}

func hemoglobinTable(t *testing.T) *Table {
	t.Helper()
	table, err := NewBuilder("hemoglobin").
		NameRU("Гемоглобин").
		AddBand(SexMale, band(t, 0, 18, 120, 160, "g/L")).
		AddBand(SexMale, band(t, 18, 150, 130, 170, "g/L")).
		Build()
	require.NoError(t, err)
	return table
}

func leukocytesTable(t *testing.T) *Table {
	t.Helper()
	table, err := NewBuilder("leukocytes").
		SetSimple(SexAll, simple(t, 4.0, 9.0, "10^9/L")).
		Build()
	require.NoError(t, err)
	return table
}

func ptr(v float64) *float64 { return &v }

func TestResolveAgeBandedMale(t *testing.T) {
	table := hemoglobinTable(t)

	got, err := Resolve(table, NewPatient(SexMale, 30))
	require.NoError(t, err)

	want := Range{Min: 130, Max: 170, Unit: "g/L", AgeMin: ptr(18), AgeMax: ptr(150)}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Resolve mismatch (-want +got):\n%s", diff)
	}

	assert.Equal(t, StatusNormal, Classify(140, got))
	assert.Equal(t, StatusBelow, Classify(100, got))
	assert.Equal(t, StatusAbove, Classify(180, got))
}

func TestResolveNoBandCoversAge(t *testing.T) {
	table := hemoglobinTable(t)

	_, err := Resolve(table, NewPatient(SexMale, 200))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrReferenceNotFound))
	assert.True(t, errors.Is(err, errors.ErrNoAgeRangeMatch))
}

func TestResolveSimpleIgnoresAge(t *testing.T) {
	table := leukocytesTable(t)

	got, err := Resolve(table, Patient{Age: ptr(30)})
	require.NoError(t, err)
	assert.Equal(t, Range{Min: 4.0, Max: 9.0, Unit: "10^9/L"}, got)
	assert.False(t, got.IsAgeBanded())

	noAge, err := Resolve(table, Patient{})
	require.NoError(t, err)
	assert.Equal(t, got, noAge)
}

func TestResolveHalfOpenBands(t *testing.T) {
	table := hemoglobinTable(t)

	at18, err := Resolve(table, NewPatient(SexMale, 18))
	require.NoError(t, err)
	assert.Equal(t, 130.0, at18.Min, "age_max is exclusive, 18 belongs to the adult band")

	at0, err := Resolve(table, NewPatient(SexMale, 0))
	require.NoError(t, err)
	assert.Equal(t, 120.0, at0.Min)

	justBelow, err := Resolve(table, NewPatient(SexMale, 17.999))
	require.NoError(t, err)
	assert.Equal(t, 120.0, justBelow.Min)

	_, err = Resolve(table, NewPatient(SexMale, 150))
	assert.True(t, errors.Is(err, errors.ErrNoAgeRangeMatch))
}

func TestResolveFirstMatchingBandWinsInInsertionOrder(t *testing.T) {
	table, err := NewBuilder("overlap").
		AddBand(SexAll, band(t, 0, 100, 1, 2, "u")).
		AddBand(SexAll, band(t, 10, 20, 3, 4, "u")).
		Build()
	require.NoError(t, err)

	got, err := Resolve(table, Patient{Age: ptr(15)})
	require.NoError(t, err)
	assert.Equal(t, 1.0, got.Min)
}

func TestResolveSexFallbackOrder(t *testing.T) {
	table, err := NewBuilder("ferritin").
		SetSimple(SexFemale, simple(t, 10, 120, "ng/mL")).
		SetSimple(SexMale, simple(t, 20, 250, "ng/mL")).
		Build()
	require.NoError(t, err)

	female, err := Resolve(table, Patient{Sex: SexFemale})
	require.NoError(t, err)
	assert.Equal(t, 10.0, female.Min)

	// no "all" entry: male precedes female in the fallback
	unknown, err := Resolve(table, Patient{})
	require.NoError(t, err)
	assert.Equal(t, 20.0, unknown.Min)

	other, err := Resolve(table, Patient{Sex: "intersex"})
	require.NoError(t, err)
	assert.Equal(t, 20.0, other.Min)
}

func TestResolveNilSexBehavesLikeAll(t *testing.T) {
	table, err := NewBuilder("glucose").
		AddBand(SexAll, band(t, 0, 14, 3.3, 5.6, "mmol/L")).
		AddBand(SexAll, band(t, 14, 150, 4.1, 5.9, "mmol/L")).
		SetSimple(SexMale, simple(t, 1, 2, "mmol/L")).
		Build()
	require.NoError(t, err)

	for _, age := range []float64{0, 5, 13.9, 14, 40, 149} {
		none, errNone := Resolve(table, Patient{Age: ptr(age)})
		all, errAll := Resolve(table, Patient{Sex: SexAll, Age: ptr(age)})
		require.NoError(t, errNone)
		require.NoError(t, errAll)
		assert.Equal(t, all, none, "age %v", age)
	}
}

func TestResolveRequestedSexPrecedesAll(t *testing.T) {
	table, err := NewBuilder("hemoglobin").
		AddBand(SexAll, band(t, 0, 150, 110, 160, "g/L")).
		AddBand(SexFemale, band(t, 18, 150, 120, 150, "g/L")).
		Build()
	require.NoError(t, err)

	female, err := Resolve(table, NewPatient(SexFemale, 30))
	require.NoError(t, err)
	assert.Equal(t, 120.0, female.Min)

	male, err := Resolve(table, NewPatient(SexMale, 30))
	require.NoError(t, err)
	assert.Equal(t, 110.0, male.Min)
}

// A banded miss on the first banded sex key goes to the simple ranges; it
// does not try the bands of later sex keys.
func TestResolveBandedMissSkipsLaterBands(t *testing.T) {
	table, err := NewBuilder("creatinine").
		AddBand(SexFemale, band(t, 18, 150, 44, 80, "µmol/L")).
		AddBand(SexAll, band(t, 0, 18, 27, 62, "µmol/L")).
		Build()
	require.NoError(t, err)

	_, err = Resolve(table, NewPatient(SexFemale, 10))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNoAgeRangeMatch))

	withSimple, err := NewBuilder("creatinine").
		AddBand(SexFemale, band(t, 18, 150, 44, 80, "µmol/L")).
		AddBand(SexAll, band(t, 0, 18, 27, 62, "µmol/L")).
		SetSimple(SexMale, simple(t, 62, 115, "µmol/L")).
		Build()
	require.NoError(t, err)

	got, err := Resolve(withSimple, NewPatient(SexFemale, 10))
	require.NoError(t, err)
	assert.Equal(t, Range{Min: 62, Max: 115, Unit: "µmol/L"}, got)
}

func TestResolveBandedMissFallsBackToSimpleOfSameSex(t *testing.T) {
	table, err := NewBuilder("alt").
		AddBand(SexMale, band(t, 0, 18, 5, 30, "U/L")).
		SetSimple(SexAll, simple(t, 7, 41, "U/L")).
		Build()
	require.NoError(t, err)

	got, err := Resolve(table, NewPatient(SexMale, 40))
	require.NoError(t, err)
	assert.Equal(t, Range{Min: 7, Max: 41, Unit: "U/L"}, got)
}

func TestResolveBandedWithoutAge(t *testing.T) {
	_, err := Resolve(hemoglobinTable(t), Patient{Sex: SexMale})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNoAgeRangeMatch))
	assert.NotEmpty(t, errors.FlattenHints(err))
}

func TestResolveNoReferenceForSex(t *testing.T) {
	table, err := NewBuilder("psa").
		SetSimple("child", simple(t, 0, 1, "ng/mL")).
		Build()
	require.NoError(t, err)

	_, err = Resolve(table, NewPatient(SexFemale, 30))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNoReferenceForSex))
	assert.True(t, errors.Is(err, errors.ErrReferenceNotFound))

	got, err := Resolve(table, Patient{Sex: "child"})
	require.NoError(t, err)
	assert.Equal(t, 1.0, got.Max)
}

func TestResolveIsIdempotent(t *testing.T) {
	table := hemoglobinTable(t)
	p := NewPatient(SexMale, 30)

	first, err := table.Resolve(p)
	require.NoError(t, err)
	second, err := table.Resolve(p)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.NotSame(t, first.AgeMin, second.AgeMin)
}

func TestSearchOrder(t *testing.T) {
	assert.Equal(t, []string{"all", "male", "female"}, SearchOrder(""))
	assert.Equal(t, []string{"female", "all", "male"}, SearchOrder("female"))
	assert.Equal(t, []string{"all", "male", "female"}, SearchOrder("all"))
	assert.Equal(t, []string{"child", "all", "male", "female"}, SearchOrder("child"))
}

func TestBuilderRejectsMixedShapes(t *testing.T) {
	_, err := NewBuilder("x").
		AddBand(SexMale, band(t, 0, 10, 1, 2, "u")).
		SetSimple(SexMale, simple(t, 1, 2, "u")).
		Build()
	assert.True(t, errors.Is(err, errors.ErrInvalidStructure))

	_, err = NewBuilder("x").
		SetSimple(SexMale, simple(t, 1, 2, "u")).
		AddBand(SexMale, band(t, 0, 10, 1, 2, "u")).
		Build()
	assert.True(t, errors.Is(err, errors.ErrInvalidStructure))
}

func TestBuilderSingleUse(t *testing.T) {
	b := NewBuilder("x").SetSimple(SexAll, simple(t, 1, 2, "u"))
	_, err := b.Build()
	require.NoError(t, err)

	b.SetSimple(SexMale, simple(t, 1, 2, "u"))
	_, err = b.Build()
	assert.Error(t, err)
}

func TestRangeInvariants(t *testing.T) {
	_, err := NewAgeRange(18, 18, 1, 2, "u")
	assert.True(t, errors.Is(err, errors.ErrInvalidStructure))

	_, err = NewAgeRange(0, 18, 3, 2, "u")
	assert.True(t, errors.Is(err, errors.ErrInvalidStructure))

	_, err = NewSimpleRange(3, 2, "u")
	assert.True(t, errors.Is(err, errors.ErrInvalidStructure))

	point, err := NewSimpleRange(7.4, 7.4, "")
	require.NoError(t, err)
	assert.Equal(t, StatusNormal, Classify(7.4, point.Range()))
}

func TestTableAccessors(t *testing.T) {
	table := hemoglobinTable(t)

	assert.Equal(t, "hemoglobin", table.Name())
	assert.Equal(t, "Гемоглобин", table.NameRU())
	assert.Equal(t, []string{SexMale}, table.SexKeys())
	assert.Equal(t, "g/L", table.Unit())

	src, ok := table.Source(SexMale)
	require.True(t, ok)
	assert.Equal(t, AgeBanded, src.Kind)
	require.Len(t, src.Bands, 2)

	// mutating the copy leaves the table untouched
	src.Bands[0].Min = -1
	again, _ := table.Source(SexMale)
	assert.Equal(t, 120.0, again.Bands[0].Min)

	_, ok = table.Source(SexFemale)
	assert.False(t, ok)

	assert.Equal(t, "leukocytes", leukocytesTable(t).NameRU())
}

func TestRangeString(t *testing.T) {
	r, err := Resolve(hemoglobinTable(t), NewPatient(SexMale, 30))
	require.NoError(t, err)
	assert.Equal(t, "130-170 g/L (age 18-150)", r.String())

	src, ok := leukocytesTable(t).Source(SexAll)
	require.True(t, ok)
	assert.Equal(t, "4-9 10^9/L", src.Simple.String())
}
