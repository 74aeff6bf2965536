package metamodel

import (
	"fmt"
	"strings"

	"github.com/InsightsDev-dev/metamodel/domain/model"
)

// Error categories, re-exported from the model package for easier use
var (
	// ErrConfiguration indicates nil or invalid constructor arguments
	ErrConfiguration = model.ErrConfiguration

	// ErrIO indicates an underlying read or write failure
	ErrIO = model.ErrIO

	// ErrNotWritable indicates a mutation on a read-only resource
	ErrNotWritable = model.ErrNotWritable

	// ErrInconsistentRowLength indicates a strict mode row length mismatch
	ErrInconsistentRowLength = model.ErrInconsistentRowLength

	// ErrNoSuchColumn indicates a column that does not belong to the table
	ErrNoSuchColumn = model.ErrNoSuchColumn

	// ErrCallbackClosed indicates use of an update callback after its script returned
	ErrCallbackClosed = model.ErrCallbackClosed

	// ErrDataSetClosed indicates a read from a closed data set
	ErrDataSetClosed = model.ErrDataSetClosed
)

// InconsistentRowLengthError identifies the line of a strict mode row length mismatch
type InconsistentRowLengthError = model.InconsistentRowLengthError

// ErrorContext provides context for where an error occurred
type ErrorContext struct {
	Operation string
	Resource  string
	TableName string
	Details   string
}

// NewErrorContext creates a new error context
func NewErrorContext(operation, resourceName string) *ErrorContext {
	return &ErrorContext{
		Operation: operation,
		Resource:  resourceName,
	}
}

// WithTable adds table context to the error
func (ec *ErrorContext) WithTable(tableName string) *ErrorContext {
	ec.TableName = tableName
	return ec
}

// WithDetails adds details to the error context
func (ec *ErrorContext) WithDetails(details string) *ErrorContext {
	ec.Details = details
	return ec
}

// Error creates a formatted error with context. baseErr stays matchable
// with errors.Is and errors.As.
func (ec *ErrorContext) Error(baseErr error) error {
	parts := []string{fmt.Sprintf("metamodel: %s failed", ec.Operation)}

	if ec.Resource != "" {
		parts = append(parts, "resource: "+ec.Resource)
	}
	if ec.TableName != "" {
		parts = append(parts, "table: "+ec.TableName)
	}
	if ec.Details != "" {
		parts = append(parts, "details: "+ec.Details)
	}

	context := strings.Join(parts, ", ")
	if baseErr != nil {
		return fmt.Errorf("%s: %w", context, baseErr)
	}
	return fmt.Errorf("%s", context)
}
