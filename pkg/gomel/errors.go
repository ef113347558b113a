package gomel

import (
	"errors"
	"strconv"
)

// DataError represents incorrect data received from a process.
// Indicates a problem with the process providing the data.
type DataError struct {
	msg string
}

// Error returns a string description of a DataError.
func (e *DataError) Error() string {
	return "DataError: " + e.msg
}

// NewDataError constructs a DataError from a given msg.
func NewDataError(msg string) *DataError {
	return &DataError{msg}
}

// ComplianceError is raised when encountering a unit that does not follow compliance rules.
// Indicates a problem with both the process providing the data and the unit's creator.
type ComplianceError struct {
	msg string
}

// Error returns a string description of a ComplianceError.
func (e *ComplianceError) Error() string {
	return "ComplianceError: " + e.msg
}

// NewComplianceError constructs a ComplianceError from a given msg.
func NewComplianceError(msg string) *ComplianceError {
	return &ComplianceError{msg}
}

// DuplicateUnit is an error-like object used when encountering a unit that is already known. Usually not a problem.
type DuplicateUnit struct {
	Unit Unit
}

// Error returns a (fixed) string description of a DuplicateUnit.
func (e *DuplicateUnit) Error() string {
	return "Unit already in dag."
}

// NewDuplicateUnit constructs a DuplicateUnit error for the given unit.
func NewDuplicateUnit(unit Unit) *DuplicateUnit {
	return &DuplicateUnit{unit}
}

// DuplicatePreunit is an error-like object used when encountering a unit that is already waiting to be added.
type DuplicatePreunit struct {
	Pu Preunit
}

// Error returns a (fixed) string description of a DuplicatePreunit.
func (e *DuplicatePreunit) Error() string {
	return "Unit already waiting."
}

// NewDuplicatePreunit constructs a DuplicatePreunit error for the given preunit.
func NewDuplicatePreunit(pu Preunit) *DuplicatePreunit {
	return &DuplicatePreunit{pu}
}

// UnknownParents is an error-like object used when trying to add a unit whose parents are not in the dag.
// Such a unit is buffered, not rejected.
type UnknownParents struct {
	Amount int
}

// Error returns a (fixed) string description of a UnknownParents.
func (e *UnknownParents) Error() string {
	return "Unknown parents"
}

// NewUnknownParents constructs a UnknownParents error for the given unit.
func NewUnknownParents(howMany int) *UnknownParents {
	return &UnknownParents{howMany}
}

// ConfigError is returned when a provided configuration can not be parsed.
type ConfigError struct {
	msg string
}

func (e *ConfigError) Error() string {
	return "ConfigError: " + e.msg
}

// NewConfigError constructs a ConfigError from a given msg.
func NewConfigError(msg string) *ConfigError {
	return &ConfigError{msg}
}

// VersionError is returned when data encoded by an incompatible protocol version is received.
type VersionError struct {
	Got, Expected byte
}

func (e *VersionError) Error() string {
	return "VersionError: got protocol version " + strconv.Itoa(int(e.Got)) + ", expected " + strconv.Itoa(int(e.Expected))
}

// NewVersionError constructs a VersionError.
func NewVersionError(got, expected byte) *VersionError {
	return &VersionError{got, expected}
}

// DurabilityError is returned when persisting consensus state fails. It is fatal:
// the node must not act on anything whose persistence is unconfirmed.
type DurabilityError struct {
	err error
}

func (e *DurabilityError) Error() string {
	return "DurabilityError: " + e.err.Error()
}

// Unwrap returns the underlying storage error.
func (e *DurabilityError) Unwrap() error {
	return e.err
}

// NewDurabilityError wraps a storage error.
func NewDurabilityError(err error) *DurabilityError {
	return &DurabilityError{err}
}

// IsFatal checks whether the error belongs to one of the classes that must halt the node.
func IsFatal(err error) bool {
	var de *DurabilityError
	var ve *VersionError
	return errors.As(err, &de) || errors.As(err, &ve)
}
