// Package validation checks reference documents before they are loaded and
// user input before it reaches the catalogs.
package validation

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/giygas/labref-api/document"
	"github.com/giygas/labref-api/errors"
	"github.com/giygas/labref-api/reference"
)

// Pre-compiled patterns, reused for every request
var (
	// identifiers: test names, biomaterial types, study keys
	identifierRegex = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

	// sex keys are free-form document keys
	sexKeyRegex = regexp.MustCompile(`^\pL[\pL\pN_-]*$`)

	// Dangerous patterns as strings (faster than regex for simple substring matching)
	dangerousPatterns = []string{
		"<script", "</script>", "javascript:", "vbscript:", "onload=", "onerror=",
		"eval(", "expression(", "url(", "@import",
		// SQL injection patterns
		"' or ", "\" or ", "union select", "drop table", "delete from", "insert into",
		"--", "/*", "*/", "exec(",
		// Command injection patterns
		"; ", "| ", "& ", "`", "$(", "${",
		// Path traversal patterns
		"../", "..\\", "%2e%2e", "file://",
	}
)

const (
	maxIdentifierLength = 64
	maxAge              = 200
)

// DataValidatorImpl validates reference documents and request input
type DataValidatorImpl struct{}

// NewDataValidator creates a new data validator
func NewDataValidator() *DataValidatorImpl {
	return &DataValidatorImpl{}
}

func (v *DataValidatorImpl) ValidateReferenceDocument(doc *document.Node) error {
	return ValidateReferenceDocument(doc)
}

func (v *DataValidatorImpl) ValidateStudyDocument(doc *document.Node) error {
	return ValidateStudyDocument(doc)
}

// ValidateInput validates an identifier taken from a URL or query string
func (v *DataValidatorImpl) ValidateInput(input string) error {
	if strings.TrimSpace(input) == "" {
		return errors.New("input cannot be empty")
	}

	if len(input) > maxIdentifierLength {
		return errors.Newf("input too long: maximum %d characters", maxIdentifierLength)
	}

	lowerInput := strings.ToLower(input)
	for _, pattern := range dangerousPatterns {
		if strings.Contains(lowerInput, pattern) {
			return errors.New("input contains potentially dangerous content")
		}
	}

	if !identifierRegex.MatchString(input) {
		return errors.WithHint(
			errors.New("input contains invalid characters"),
			"identifiers use lowercase letters, digits and underscores, e.g. venous_blood")
	}

	if v.hasExcessiveRepetition(input) {
		return errors.New("input contains excessive character repetition")
	}

	return nil
}

// ValidateSex accepts an empty sex (unknown) or any sex key a document may
// define. The standard keys match case-insensitively; custom keys such as
// pregnant or Беременные are kept as written because document keys are.
func (v *DataValidatorImpl) ValidateSex(input string) (string, error) {
	sex := strings.TrimSpace(input)
	if sex == "" {
		return "", nil
	}
	if lower := strings.ToLower(sex); lower == reference.SexAll || lower == reference.SexMale || lower == reference.SexFemale {
		return lower, nil
	}
	if utf8.RuneCountInString(sex) > maxIdentifierLength || !sexKeyRegex.MatchString(sex) {
		return "", errors.WithHintf(errors.Newf("invalid sex %q", input),
			"sex keys are up to %d letters, digits, underscores or hyphens", maxIdentifierLength)
	}
	return sex, nil
}

// ValidateAge parses an optional age in years. An empty input means no age.
// No regex used - strconv.ParseFloat validates numeric format
func (v *DataValidatorImpl) ValidateAge(input string) (*float64, error) {
	trimmedInput := strings.TrimSpace(input)
	if trimmedInput == "" {
		return nil, nil
	}

	if len(input) != len(trimmedInput) {
		return nil, errors.New("age contains invalid characters. Only numeric characters are allowed")
	}

	age, err := strconv.ParseFloat(trimmedInput, 64)
	if err != nil {
		return nil, errors.Newf("age %q is not a number", input)
	}
	if err := checkAge(age); err != nil {
		return nil, err
	}
	return &age, nil
}

// ValidateAgeValue checks an age that arrived as a number in a JSON body
func (v *DataValidatorImpl) ValidateAgeValue(age *float64) error {
	if age == nil {
		return nil
	}
	return checkAge(*age)
}

// ValidateValue rejects NaN and infinities
func (v *DataValidatorImpl) ValidateValue(name string, value float64) error {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return errors.Newf("value of %s must be a finite number", name)
	}
	return nil
}

func checkAge(age float64) error {
	if math.IsNaN(age) || math.IsInf(age, 0) {
		return errors.New("age must be a finite number")
	}
	if age < 0 || age > maxAge {
		return errors.Newf("age must be between 0 and %d", maxAge)
	}
	return nil
}

// hasExcessiveRepetition checks for potential DoS patterns with excessive character repetition
func (v *DataValidatorImpl) hasExcessiveRepetition(input string) bool {
	// Check for the same character repeated more than 10 times consecutively
	for i := 0; i < len(input)-10; i++ {
		allSame := true
		for j := 1; j <= 10; j++ {
			if input[i] != input[i+j] {
				allSame = false
				break
			}
		}
		if allSame {
			return true
		}
	}
	return false
}
