package poly

import (
	"errors"
	"fmt"
)

// Sentinel errors; the typed errors below match them with errors.Is.
var (
	// ErrConfiguration is returned for malformed or ambiguous association
	// declarations. It is fatal at setup time.
	ErrConfiguration = errors.New("poly: invalid configuration")

	// ErrMissingReference is returned when a reference is read while its
	// stored id is null.
	ErrMissingReference = errors.New("poly: missing reference")

	// ErrTypeMismatch is returned when a stored type tag does not match the
	// accessor that reads it.
	ErrTypeMismatch = errors.New("poly: type mismatch")

	// ErrAssignRejected is returned when a value of the wrong type is
	// assigned to a reference. The instance is left unchanged.
	ErrAssignRejected = errors.New("poly: assignment rejected")

	// ErrNoBacking is returned by PolyField when no accessor is installed
	// for the tag being read or written.
	ErrNoBacking = errors.New("poly: no backing accessor")

	// ErrNoFinder is returned when a referent has to be looked up but its
	// type was registered without a Finder.
	ErrNoFinder = errors.New("poly: no finder")
)

// ConfigurationError describes an invalid association declaration.
type ConfigurationError struct {
	Reason string
}

func configErrorf(format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Reason: fmt.Sprintf(format, args...)}
}

// Error returns the error string.
func (e *ConfigurationError) Error() string {
	return "poly: configuration: " + e.Reason
}

// Is reports whether the target error matches ErrConfiguration.
func (e *ConfigurationError) Is(err error) bool {
	return err == ErrConfiguration
}

// MissingReferenceError is returned when Column is null on a Type instance.
type MissingReferenceError struct {
	Type   string
	Column string
}

// Error returns the error string.
func (e *MissingReferenceError) Error() string {
	return fmt.Sprintf("poly: %s.%s expected to be not null", e.Type, e.Column)
}

// Is reports whether the target error matches ErrMissingReference.
func (e *MissingReferenceError) Is(err error) bool {
	return err == ErrMissingReference
}

// TypeMismatchError is returned when Attribute expects tag Want but the
// instance carries Got.
type TypeMismatchError struct {
	Attribute string
	Want      string
	Got       string
}

// Error returns the error string.
func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("poly: %s expected type %q, not %q", e.Attribute, e.Want, e.Got)
}

// Is reports whether the target error matches ErrTypeMismatch.
func (e *TypeMismatchError) Is(err error) bool {
	return err == ErrTypeMismatch
}

// AssignRejectedError is returned when a value tagged Got is assigned to
// Attribute, which only accepts Want.
type AssignRejectedError struct {
	Attribute string
	Want      string
	Got       string
}

// Error returns the error string.
func (e *AssignRejectedError) Error() string {
	return fmt.Sprintf("poly: %s and %s do not match for setting %s", e.Got, e.Want, e.Attribute)
}

// Is reports whether the target error matches ErrAssignRejected.
func (e *AssignRejectedError) Is(err error) bool {
	return err == ErrAssignRejected
}

// NoBackingError is returned when Type has no accessor named Attribute.
type NoBackingError struct {
	Type      string
	Attribute string
}

// Error returns the error string.
func (e *NoBackingError) Error() string {
	return fmt.Sprintf("poly: %s has no attribute %q", e.Type, e.Attribute)
}

// Is reports whether the target error matches ErrNoBacking.
func (e *NoBackingError) Is(err error) bool {
	return err == ErrNoBacking
}

// IsMissingReference returns true if the error is a MissingReferenceError.
func IsMissingReference(err error) bool {
	return errors.Is(err, ErrMissingReference)
}

// IsTypeMismatch returns true if the error is a TypeMismatchError.
func IsTypeMismatch(err error) bool {
	return errors.Is(err, ErrTypeMismatch)
}

// IsAssignRejected returns true if the error is an AssignRejectedError.
func IsAssignRejected(err error) bool {
	return errors.Is(err, ErrAssignRejected)
}
