package reference

// Status is the position of a value relative to its reference range
type Status string

const (
	StatusBelow  Status = "below"
	StatusNormal Status = "normal"
	StatusAbove  Status = "above"
)

// IsAbnormal reports below or above
func (s Status) IsAbnormal() bool {
	return s == StatusBelow || s == StatusAbove
}

// Classify compares value with r. Both bounds count as normal.
func Classify(value float64, r Range) Status {
	switch {
	case value < r.Min:
		return StatusBelow
	case value > r.Max:
		return StatusAbove
	default:
		return StatusNormal
	}
}

// Check resolves the range of t for p and classifies value against it
func (t *Table) Check(value float64, p Patient) (Status, error) {
	r, err := Resolve(t, p)
	if err != nil {
		return "", err
	}
	return Classify(value, r), nil
}
