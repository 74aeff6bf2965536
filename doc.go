// Package metamodel exposes a flat delimited text file (CSV, TSV and
// friends) as a single-table data source for a query engine.
//
// A DataContext wraps one resource: a local file, an HTTP(S) URL, or a
// stream that is copied to a temporary file once. The query engine pushes
// down only iteration and an optional row limit; everything else is
// answered here:
//
//   - Schema and DefaultTable read the header line (or the first record of
//     a header-less file) and name the columns.
//   - MaterializeTable returns a lazy DataSet of rows projected onto the
//     requested columns.
//   - ExecuteCountQuery estimates COUNT(*) from the first 5 MiB of the
//     resource when an approximation is allowed.
//   - ExecuteUpdate runs an UpdateScript with exclusive write access. Its
//     UpdateCallback rewrites the file through a temporary copy.
//
// Basic usage:
//
//	cfg := metamodel.NewConfiguration().WithSeparator(';')
//	dc, err := metamodel.NewFromFile("users.csv", cfg)
//	if err != nil {
//		log.Fatal(err)
//	}
//	table, err := dc.DefaultTable(ctx)
//	if err != nil {
//		log.Fatal(err)
//	}
//	ds, err := dc.MaterializeTable(ctx, table, nil, -1)
//	if err != nil {
//		log.Fatal(err)
//	}
//	for row, err := range ds.All() {
//		if err != nil {
//			log.Fatal(err)
//		}
//		fmt.Println(row.Values())
//	}
//
// # Errors
//
// Failures of the data or the resource match one category with errors.Is:
// ErrConfiguration, ErrIO, ErrNotWritable or ErrInconsistentRowLength. An
// unknown column also matches ErrNoSuchColumn next to ErrConfiguration.
// Misuse of a finished value is reported with ErrCallbackClosed or
// ErrDataSetClosed, which match no category. When ctx ends, its error is
// returned wrapped and matches context.Canceled or
// context.DeadlineExceeded. Errors carry the operation, resource and table
// they happened on.
//
// # Concurrency
//
// Reads open their own handle and may run concurrently with each other.
// Updates are serialized per DataContext only; two DataContext values over
// the same file, or other processes, are not coordinated.
//
// The driver subpackage registers a database/sql driver that loads data
// contexts into an in-memory SQLite database.
package metamodel
