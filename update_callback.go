package metamodel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"sync/atomic"

	"golang.org/x/text/transform"

	"github.com/InsightsDev-dev/metamodel/domain/model"
)

// RowPredicate selects rows for DeleteRows and UpdateRows. A nil predicate
// selects every row.
type RowPredicate func(row *model.Row) bool

// UpdateCallback applies row operations to the resource of an ExecuteUpdate
// call. Every operation rewrites the whole file through a temporary copy, so
// a failed operation leaves the previous content in place.
type UpdateCallback struct {
	dc       *DataContext
	closed   atomic.Bool
	rewrites int
}

func newUpdateCallback(dc *DataContext) *UpdateCallback {
	return &UpdateCallback{dc: dc}
}

func (cb *UpdateCallback) close() {
	cb.closed.Store(true)
}

// document is the full content of a delimited file.
type document struct {
	preamble []string
	header   []string
	columns  []string
	records  [][]string
}

// InsertRow appends a row given by column name. Missing columns are left
// empty. On a new file with a header line, the header is created from the
// sorted keys of values.
func (cb *UpdateCallback) InsertRow(ctx context.Context, values map[string]any) error {
	return cb.rewrite(ctx, "insert row", func(doc *document) error {
		if len(doc.columns) == 0 {
			if !cb.dc.configuration.HasColumnNameLine() {
				return fmt.Errorf("%w: column names of a header-less file are unknown, use InsertValues", ErrConfiguration)
			}
			doc.columns = slices.Sorted(maps.Keys(values))
		}
		record := make([]string, len(doc.columns))
		for name, v := range values {
			i := slices.Index(doc.columns, name)
			if i < 0 {
				return fmt.Errorf("%w: %w: %q", ErrConfiguration, ErrNoSuchColumn, name)
			}
			record[i] = formatValue(v)
		}
		doc.records = append(doc.records, record)
		return nil
	})
}

// InsertValues appends one row of positional values.
func (cb *UpdateCallback) InsertValues(ctx context.Context, values ...any) error {
	return cb.InsertRows(ctx, [][]any{values})
}

// InsertRows appends rows of positional values in a single rewrite. In
// strict mode every row must have one value per column.
func (cb *UpdateCallback) InsertRows(ctx context.Context, rows [][]any) error {
	return cb.rewrite(ctx, "insert rows", func(doc *document) error {
		return cb.appendRows(doc, rows)
	})
}

// ReplaceRows substitutes every row with rows in a single rewrite. Lines
// before the header and the header itself are kept. Either all rows are
// replaced or the file is left as it was.
func (cb *UpdateCallback) ReplaceRows(ctx context.Context, rows [][]any) error {
	return cb.rewrite(ctx, "replace rows", func(doc *document) error {
		doc.records = nil
		return cb.appendRows(doc, rows)
	})
}

func (cb *UpdateCallback) appendRows(doc *document, rows [][]any) error {
	for _, values := range rows {
		if len(doc.columns) == 0 {
			if cb.dc.configuration.HasColumnNameLine() {
				return fmt.Errorf("%w: table has no columns", ErrConfiguration)
			}
			doc.columns = alphabeticNames(len(values))
		}
		if cb.dc.configuration.FailOnInconsistentRowLength() && len(values) != len(doc.columns) {
			return &model.InconsistentRowLengthError{
				Line:     leadingLines(doc, cb.dc.configuration) + len(doc.records) + 1,
				Expected: len(doc.columns),
				Actual:   len(values),
			}
		}
		record := make([]string, len(values))
		for i, v := range values {
			record[i] = formatValue(v)
		}
		doc.records = append(doc.records, record)
	}
	return nil
}

// DeleteRows removes the rows matching where and returns how many were removed.
func (cb *UpdateCallback) DeleteRows(ctx context.Context, where RowPredicate) (int, error) {
	var deleted int
	err := cb.rewrite(ctx, "delete rows", func(doc *document) error {
		columns := model.NewTable(cb.tableName(), doc.columns).Columns()
		kept := doc.records[:0]
		for _, record := range doc.records {
			if where == nil || where(recordRow(columns, record)) {
				deleted++
				continue
			}
			kept = append(kept, record)
		}
		doc.records = kept
		return nil
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}

// UpdateRows sets the given columns on the rows matching where and returns
// how many rows were changed.
func (cb *UpdateCallback) UpdateRows(ctx context.Context, where RowPredicate, set map[string]any) (int, error) {
	var updated int
	err := cb.rewrite(ctx, "update rows", func(doc *document) error {
		positions := make(map[int]string, len(set))
		for name, v := range set {
			i := slices.Index(doc.columns, name)
			if i < 0 {
				return fmt.Errorf("%w: %w: %q", ErrConfiguration, ErrNoSuchColumn, name)
			}
			positions[i] = formatValue(v)
		}

		columns := model.NewTable(cb.tableName(), doc.columns).Columns()
		for n, record := range doc.records {
			if where != nil && !where(recordRow(columns, record)) {
				continue
			}
			if len(record) < len(doc.columns) {
				record = append(record, make([]string, len(doc.columns)-len(record))...)
			}
			for i, value := range positions {
				record[i] = value
			}
			doc.records[n] = record
			updated++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return updated, nil
}

// AddColumn appends a column with empty values. Header-less files only
// accept the alphabetic name of the next position.
func (cb *UpdateCallback) AddColumn(ctx context.Context, name string) error {
	return cb.rewrite(ctx, "add column", func(doc *document) error {
		if name == "" {
			return fmt.Errorf("%w: column name cannot be empty", ErrConfiguration)
		}
		if slices.Contains(doc.columns, name) {
			return fmt.Errorf("%w: column %q already exists", ErrConfiguration, name)
		}
		if !cb.dc.configuration.HasColumnNameLine() {
			if next := model.AlphabeticColumnName(len(doc.columns)); name != next {
				return fmt.Errorf("%w: next column of a header-less file is %q, not %q", ErrConfiguration, next, name)
			}
		}
		width := len(doc.columns)
		doc.columns = append(doc.columns, name)
		if doc.header != nil {
			doc.header = append(doc.header, name)
		}
		for i, record := range doc.records {
			if len(record) < width {
				record = append(record, make([]string, width-len(record))...)
			}
			doc.records[i] = append(record, "")
		}
		return nil
	})
}

// Truncate removes every row. Lines before the header and the header itself are kept.
func (cb *UpdateCallback) Truncate(ctx context.Context) error {
	return cb.rewrite(ctx, "truncate", func(doc *document) error {
		doc.records = nil
		return nil
	})
}

func (cb *UpdateCallback) tableName() string {
	return model.TableNameFromResource(cb.dc.resource.Name())
}

// rewrite loads the document, applies fn and replaces the resource with the result.
func (cb *UpdateCallback) rewrite(ctx context.Context, op string, fn func(doc *document) error) error {
	ec := NewErrorContext(op, cb.dc.resource.Name()).WithTable(cb.tableName())
	if cb.closed.Load() {
		return ec.Error(ErrCallbackClosed)
	}
	if err := ctx.Err(); err != nil {
		return ec.Error(err)
	}

	doc, err := cb.load(ctx)
	if err != nil {
		return ec.Error(err)
	}
	if err := fn(doc); err != nil {
		return ec.Error(err)
	}
	if err := cb.store(ctx, doc); err != nil {
		return ec.Error(err)
	}
	cb.rewrites++
	return nil
}

func (cb *UpdateCallback) load(ctx context.Context) (*document, error) {
	doc := &document{}
	if !cb.dc.resource.Exists() {
		return doc, nil
	}

	cfg := cb.dc.configuration
	reader, handle, err := cb.dc.openReader(ctx)
	if err != nil {
		return nil, err
	}
	defer handle.Close()

	if cfg.HasColumnNameLine() {
		if doc.preamble, err = reader.SkipLines(cfg.ColumnNameLineNumber() - 1); err != nil {
			return nil, wrapIO(err)
		}
		header, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return doc, nil
		}
		if err != nil {
			return nil, wrapIO(err)
		}
		doc.header = header
		doc.columns = columnNames(header)
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return doc, nil
		}
		if err != nil {
			return nil, wrapIO(err)
		}
		if doc.columns == nil {
			doc.columns = alphabeticNames(len(record))
		}
		if cfg.FailOnInconsistentRowLength() && len(record) != len(doc.columns) {
			return nil, &model.InconsistentRowLengthError{
				Line:     reader.Line(),
				Expected: len(doc.columns),
				Actual:   len(record),
				Values:   record,
			}
		}
		doc.records = append(doc.records, record)
	}
}

func (cb *UpdateCallback) store(ctx context.Context, doc *document) error {
	cfg := cb.dc.configuration
	enc, err := cfg.TextEncoding()
	if err != nil {
		return err
	}

	return cb.dc.writable.Replace(ctx, func(w io.Writer) error {
		encoded := transform.NewWriter(w, enc.NewEncoder())
		writer := model.NewWriter(encoded, cfg)

		if cfg.HasColumnNameLine() && len(doc.columns) > 0 {
			for _, line := range doc.preamble {
				if err := writer.WriteLine(line); err != nil {
					return err
				}
			}
			for range cfg.ColumnNameLineNumber() - 1 - len(doc.preamble) {
				if err := writer.WriteLine(""); err != nil {
					return err
				}
			}
			header := doc.header
			if header == nil {
				header = doc.columns
			}
			if err := writer.Write(header); err != nil {
				return err
			}
		}
		for _, record := range doc.records {
			if err := writer.Write(record); err != nil {
				return err
			}
		}
		if err := writer.Flush(); err != nil {
			return err
		}
		return encoded.Close()
	})
}

// leadingLines returns the number of lines written before the first record.
func leadingLines(doc *document, cfg Configuration) int {
	if cfg.HasColumnNameLine() && len(doc.columns) > 0 {
		return cfg.ColumnNameLineNumber()
	}
	return 0
}

func recordRow(columns []*model.Column, record []string) *model.Row {
	values := make([]any, len(columns))
	for i := range columns {
		if i < len(record) {
			values[i] = record[i]
		}
	}
	return model.NewRow(columns, values)
}

func alphabeticNames(n int) []string {
	names := make([]string, n)
	for i := range names {
		names[i] = model.AlphabeticColumnName(i)
	}
	return names
}

// formatValue renders a value as a field; nil is an empty field.
func formatValue(v any) string {
	switch value := v.(type) {
	case nil:
		return ""
	case string:
		return value
	case []byte:
		return string(value)
	case fmt.Stringer:
		return value.String()
	default:
		return fmt.Sprint(value)
	}
}
