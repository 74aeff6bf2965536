// Package driver provides a database/sql driver over delimited files.
//
// Every file named in the DSN is opened as a metamodel.DataContext, and its
// rows are streamed into a table of an in-memory SQLite database. Column
// types are inferred from the first rows of each file.
//
// Key features:
//   - CSV and TSV files, optionally compressed (gzip, bzip2, xz, zstd)
//   - Directories are scanned for supported files
//   - Duplicate table name validation across files
//   - Sync writes modified tables back to their files
//
// Usage:
//
//	import _ "github.com/InsightsDev-dev/metamodel/driver"
//	db, err := sql.Open("metamodel", "data.csv;other.tsv")
package driver
