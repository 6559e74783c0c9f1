package reference

import "fmt"

// Test binds a table to an optional measured value and patient attributes.
// Its status is derived on demand, so changing the patient re-evaluates it.
type Test struct {
	table   *Table
	value   *float64
	patient Patient
}

// NewTest creates a test without a value
func NewTest(t *Table, p Patient) *Test {
	return &Test{table: t, patient: p}
}

// NewTestWithValue creates a test carrying a measured value
func NewTestWithValue(t *Table, value float64, p Patient) *Test {
	return NewTest(t, p).SetValue(value)
}

func (t *Test) Name() string     { return t.table.Name() }
func (t *Test) NameRU() string   { return t.table.NameRU() }
func (t *Test) Table() *Table    { return t.table }
func (t *Test) Patient() Patient { return t.patient }

// Value returns the measured value and whether one is set
func (t *Test) Value() (float64, bool) {
	if t.value == nil {
		return 0, false
	}
	return *t.value, true
}

func (t *Test) SetValue(value float64) *Test {
	t.value = &value
	return t
}

// SetPatient overrides the fields of p that are given
func (t *Test) SetPatient(p Patient) *Test {
	if p.Sex != "" {
		t.patient.Sex = p.Sex
	}
	if p.Age != nil {
		age := *p.Age
		t.patient.Age = &age
	}
	return t
}

// Reference resolves the range for the test's patient
func (t *Test) Reference() (Range, error) {
	return Resolve(t.table, t.patient)
}

// Status classifies the value. It returns "" without error when no value is
// set.
func (t *Test) Status() (Status, error) {
	if t.value == nil {
		return "", nil
	}
	return t.table.Check(*t.value, t.patient)
}

func (t *Test) IsNormal() bool {
	s, err := t.Status()
	return err == nil && s == StatusNormal
}

func (t *Test) IsAbnormal() bool {
	s, err := t.Status()
	return err == nil && s.IsAbnormal()
}

func (t *Test) String() string {
	if t.value == nil {
		return fmt.Sprintf("%s: no value", t.NameRU())
	}
	r, err := t.Reference()
	if err != nil {
		return fmt.Sprintf("%s: %s [%v]", t.NameRU(), FormatNumber(*t.value), err)
	}
	return fmt.Sprintf("%s: %s %s [%s]", t.NameRU(), FormatNumber(*t.value), r.Unit, Classify(*t.value, r))
}
