// Package errors provides error handling for the lab reference API.
//
// It re-exports github.com/cockroachdb/errors (stack traces, wrapping,
// hints, marks) and declares the error kinds the reference core returns.
// Callers check kinds with errors.Is:
//
//	status, err := cat.ResolveAndClassify("hemoglobin", 140, patient)
//	if errors.Is(err, errors.ErrReferenceNotFound) {
//	    // no applicable range for this patient
//	}
package errors

import (
	crdb "github.com/cockroachdb/errors"
)

// Core error creation and wrapping
var (
	New          = crdb.New
	Newf         = crdb.Newf
	Wrap         = crdb.Wrap
	Wrapf        = crdb.Wrapf
	WithStack    = crdb.WithStack
	WithMessage  = crdb.WithMessage
	WithMessagef = crdb.WithMessagef
	Mark         = crdb.Mark
)

// User-facing messages and details
var (
	WithHint    = crdb.WithHint
	WithHintf   = crdb.WithHintf
	WithDetail  = crdb.WithDetail
	WithDetailf = crdb.WithDetailf
)

// Error inspection
var (
	Is             = crdb.Is
	IsAny          = crdb.IsAny
	As             = crdb.As
	Unwrap         = crdb.Unwrap
	UnwrapAll      = crdb.UnwrapAll
	GetAllHints    = crdb.GetAllHints
	FlattenHints   = crdb.FlattenHints
	FlattenDetails = crdb.FlattenDetails
)

// Reference document errors.
var (
	// ErrInvalidStructure marks a malformed reference or study document.
	// Loading never partially succeeds when it is returned.
	ErrInvalidStructure = New("invalid reference structure")

	// ErrTestNotFound indicates the test identifier is absent from a catalog
	ErrTestNotFound = New("test not found")
)

// Resolution errors. ErrNoReferenceForSex and ErrNoAgeRangeMatch wrap
// ErrReferenceNotFound, so both match it under errors.Is while staying
// distinct from each other.
var (
	ErrReferenceNotFound = New("reference not found")

	// ErrNoReferenceForSex: no entry exists for any candidate sex key
	ErrNoReferenceForSex = Wrap(ErrReferenceNotFound, "no reference for sex")

	// ErrNoAgeRangeMatch: an age-banded entry matched the sex key but no band
	// covers the age (or no age was given)
	ErrNoAgeRangeMatch = Wrap(ErrReferenceNotFound, "no age range match")
)

// Study errors.
var (
	ErrStudyNotFound          = New("study not found")
	ErrBiomaterialNotEligible = New("biomaterial not available for study")
	ErrTestNotInStudy         = New("test is not part of study")
)

// Source errors. Providers return these unwrapped by the core so callers can
// tell I/O failures from validation failures.
var (
	ErrSourceUnavailable = New("reference source unavailable")

	ErrSourceNotFound = Wrap(ErrSourceUnavailable, "not found")
	ErrSourceParse    = Wrap(ErrSourceUnavailable, "parse failed")
)

// IsNotFound reports whether err is any of the lookup-miss kinds.
func IsNotFound(err error) bool {
	return err != nil && IsAny(err,
		ErrTestNotFound,
		ErrReferenceNotFound,
		ErrStudyNotFound,
		ErrSourceNotFound,
	)
}

// IsUsageError reports whether err was caused by the caller's input rather
// than by the reference data or its source.
func IsUsageError(err error) bool {
	return err != nil && IsAny(err,
		ErrBiomaterialNotEligible,
		ErrTestNotInStudy,
	)
}
