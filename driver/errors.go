package driver

import "errors"

// Predefined errors
var (
	// ErrNoPathsProvided is returned when no paths are provided
	ErrNoPathsProvided = errors.New("metamodel driver: no paths provided")

	// ErrNoFilesLoaded is returned when no files were loaded
	ErrNoFilesLoaded = errors.New("metamodel driver: no files were loaded")

	// ErrEmptyTable is returned when a file has no columns
	ErrEmptyTable = errors.New("metamodel driver: table has no columns")

	// ErrStmtExecContextNotSupported is returned when statement does not support ExecContext
	ErrStmtExecContextNotSupported = errors.New("metamodel driver: statement does not support ExecContext")

	// ErrStmtQueryContextNotSupported is returned when statement does not support QueryContext
	ErrStmtQueryContextNotSupported = errors.New("metamodel driver: statement does not support QueryContext")

	// ErrBeginTxNotSupported is returned when underlying connection does not support BeginTx
	ErrBeginTxNotSupported = errors.New("metamodel driver: underlying connection does not support BeginTx")

	// ErrPrepareContextNotSupported is returned when underlying connection does not support PrepareContext
	ErrPrepareContextNotSupported = errors.New("metamodel driver: underlying connection does not support PrepareContext")

	// ErrNotMetamodelConnection is returned when connection is not a metamodel connection
	ErrNotMetamodelConnection = errors.New("metamodel driver: connection is not a metamodel connection")

	// ErrDuplicateColumnName is returned when a file contains duplicate column names
	ErrDuplicateColumnName = errors.New("metamodel driver: duplicate column name")

	// ErrDuplicateTableName is returned when multiple files would create the same table name
	ErrDuplicateTableName = errors.New("metamodel driver: duplicate table name")
)
