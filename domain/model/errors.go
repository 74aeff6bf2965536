// Package model provides the domain model for metamodel: the parsing
// configuration, the schema/table/column object model, rows, and the
// delimited text tokenizer and writer.
package model

import (
	"errors"
	"fmt"
)

// Error categories. Data and resource failures match one of the first four
// with errors.Is. The remaining sentinels report an unknown column or the
// use of a closed callback or data set.
var (
	// ErrConfiguration is returned for nil or invalid constructor arguments
	ErrConfiguration = errors.New("metamodel: invalid configuration")

	// ErrIO indicates an underlying read or write failure
	ErrIO = errors.New("metamodel: i/o failure")

	// ErrNotWritable is returned when a mutation is attempted on a read-only resource
	ErrNotWritable = errors.New("metamodel: data context is not writable")

	// ErrInconsistentRowLength is returned in strict mode when a row has the wrong number of fields
	ErrInconsistentRowLength = errors.New("metamodel: inconsistent row length")

	// ErrNoSuchColumn is returned when a requested column does not belong to the table
	ErrNoSuchColumn = errors.New("metamodel: no such column")

	// ErrCallbackClosed is returned when an update callback is used after its script returned
	ErrCallbackClosed = errors.New("metamodel: update callback is closed")

	// ErrDataSetClosed is returned when reading from a closed data set
	ErrDataSetClosed = errors.New("metamodel: data set is closed")
)

// InconsistentRowLengthError identifies a line whose field count differs
// from the column count of the table.
type InconsistentRowLengthError struct {
	// Line is the 1-based physical line number the record starts on.
	Line int
	// Expected is the column count of the table.
	Expected int
	// Actual is the number of fields found on the line.
	Actual int
	// Values holds the parsed fields of the offending line.
	Values []string
}

// Error implements error.
func (e *InconsistentRowLengthError) Error() string {
	return fmt.Sprintf("%s: line %d has %d fields, expected %d",
		ErrInconsistentRowLength.Error(), e.Line, e.Actual, e.Expected)
}

// Is makes errors.Is(err, ErrInconsistentRowLength) hold.
func (e *InconsistentRowLengthError) Is(target error) bool {
	return target == ErrInconsistentRowLength
}
