package errors

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolutionKindsMatchReferenceNotFound(t *testing.T) {
	ageMiss := Wrapf(ErrNoAgeRangeMatch, "hemoglobin age=%v", 200)
	sexMiss := Wrapf(ErrNoReferenceForSex, "hemoglobin sex=%q", "male")

	assert.True(t, Is(ageMiss, ErrReferenceNotFound))
	assert.True(t, Is(sexMiss, ErrReferenceNotFound))
	assert.True(t, Is(ageMiss, ErrNoAgeRangeMatch))
	assert.False(t, Is(ageMiss, ErrNoReferenceForSex))
	assert.False(t, Is(sexMiss, ErrNoAgeRangeMatch))
}

func TestSourceKindsMatchSourceUnavailable(t *testing.T) {
	notFound := Wrapf(ErrSourceNotFound, "venous_blood")
	parse := Wrapf(ErrSourceParse, "venous_blood")

	assert.True(t, Is(notFound, ErrSourceUnavailable))
	assert.True(t, Is(parse, ErrSourceUnavailable))
	assert.False(t, Is(parse, ErrSourceNotFound))
	assert.False(t, Is(notFound, ErrInvalidStructure))
}

func TestIsNotFound(t *testing.T) {
	assert.False(t, IsNotFound(nil))
	assert.True(t, IsNotFound(Wrap(ErrTestNotFound, "ph")))
	assert.True(t, IsNotFound(Wrap(ErrNoAgeRangeMatch, "hemoglobin")))
	assert.True(t, IsNotFound(Wrap(ErrStudyNotFound, "x")))
	assert.False(t, IsNotFound(Wrap(ErrTestNotInStudy, "ph")))
}

func TestIsUsageError(t *testing.T) {
	assert.True(t, IsUsageError(Wrap(ErrTestNotInStudy, "ph")))
	assert.True(t, IsUsageError(Wrap(ErrBiomaterialNotEligible, "arterial_blood")))
	assert.False(t, IsUsageError(Wrap(ErrInvalidStructure, "bad")))
	assert.False(t, IsUsageError(nil))
}

func TestHintsSurvive(t *testing.T) {
	err := WithHint(Wrap(ErrTestNotInStudy, "ph"), "declared tests: hemoglobin, leukocytes")
	assert.Equal(t, "declared tests: hemoglobin, leukocytes", FlattenHints(err))
	assert.True(t, Is(err, ErrTestNotInStudy))
}
