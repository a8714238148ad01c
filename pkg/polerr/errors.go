// Package polerr holds the error taxonomy shared by the polarimetry packages.
// Every package wraps one of these sentinels with fmt.Errorf and %w, so callers
// can classify a failure with errors.Is.
package polerr

import (
	"errors"
	"fmt"
)

// Sentinel errors for pipeline operations.
var (
	// ErrPrecondition reports a stage called out of order, or a derived value
	// requested before its inputs exist.
	ErrPrecondition = errors.New("precondition violation")

	// ErrShapeMismatch reports arithmetic or registration between images of
	// incompatible shape.
	ErrShapeMismatch = errors.New("shape mismatch")

	// ErrInvalidUnit reports an unrecognised flux unit.
	ErrInvalidUnit = errors.New("invalid unit")

	// ErrRedundantConversion reports a conversion into the unit the data is
	// already in. It wraps ErrInvalidUnit.
	ErrRedundantConversion = fmt.Errorf("%w: redundant conversion", ErrInvalidUnit)

	// ErrInvalidParameter reports an unknown mask, estimator, stretch or
	// optics kind, or an out-of-range numeric parameter.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrInconsistent reports a header aggregate that found more than one
	// value where a single value is required.
	ErrInconsistent = errors.New("inconsistent values")

	// ErrMissingData reports an absent pixel array, polarizer key or band.
	ErrMissingData = errors.New("missing data")
)
