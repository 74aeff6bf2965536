package metamodel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"

	"github.com/InsightsDev-dev/metamodel/domain/model"
)

// DataSet is a lazy sequence of rows read from a resource. It owns the read
// handle and releases it once, when the rows are exhausted, the row limit is
// reached, an error occurs, or Close is called.
//
//	ds, err := dc.MaterializeTable(ctx, table, nil, -1)
//	if err != nil {
//		return err
//	}
//	defer ds.Close()
//	for ds.Next() {
//		row := ds.Row()
//		...
//	}
//	return ds.Err()
type DataSet struct {
	ctx       context.Context //nolint:containedctx // bound to the lifetime of the read handle
	columns   []*model.Column
	positions []int
	expected  int
	strict    bool

	reader    *model.Reader
	handle    io.Closer
	remaining int

	row        *model.Row
	err        error
	handleErr  error
	closed     bool
	userClosed bool
}

// MaterializeTable returns the rows of table projected onto columns, in the
// given order. A nil columns slice selects every column. Columns may repeat.
//
// maxRows < 0 reads every row. maxRows == 0 returns an empty data set
// without opening the resource. maxRows > 0 stops after that many rows and
// releases the handle as soon as the last one is produced.
func (dc *DataContext) MaterializeTable(ctx context.Context, table *model.Table, columns []*model.Column, maxRows int) (*DataSet, error) {
	ec := NewErrorContext("materialize table", dc.resource.Name())
	if table == nil {
		return nil, ec.WithDetails("table cannot be nil").Error(ErrConfiguration)
	}
	ec = ec.WithTable(table.Name())
	if columns == nil {
		columns = table.Columns()
	}

	positions := make([]int, len(columns))
	for i, col := range columns {
		if !belongsTo(col, table) {
			name := "<nil>"
			if col != nil {
				name = col.Name()
			}
			return nil, ec.WithDetails(fmt.Sprintf("column %q", name)).
				Error(fmt.Errorf("%w: %w", ErrConfiguration, ErrNoSuchColumn))
		}
		positions[i] = col.Index()
	}

	ds := &DataSet{
		ctx:       ctx,
		columns:   columns,
		positions: positions,
		expected:  table.ColumnCount(),
		strict:    dc.configuration.FailOnInconsistentRowLength(),
		remaining: maxRows,
	}
	if maxRows == 0 {
		ds.closed = true
		return ds, nil
	}

	reader, handle, err := dc.openReader(ctx)
	if err != nil {
		return nil, ec.Error(err)
	}
	if dc.configuration.HasColumnNameLine() {
		if _, err := readHeader(reader, dc.configuration.ColumnNameLineNumber()); err != nil {
			_ = handle.Close()
			return nil, ec.Error(err)
		}
	}
	ds.reader = reader
	ds.handle = handle
	return ds, nil
}

// belongsTo reports whether col is a column of table. Columns of another
// load of the same table are accepted.
func belongsTo(col *model.Column, table *model.Table) bool {
	if col == nil {
		return false
	}
	if col.Table() == table {
		return true
	}
	if col.Table() == nil || col.Table().Name() != table.Name() {
		return false
	}
	if col.Index() < 0 || col.Index() >= table.ColumnCount() {
		return false
	}
	return table.Columns()[col.Index()].Name() == col.Name()
}

// Columns returns the projected columns, in row order.
func (ds *DataSet) Columns() []*model.Column {
	return ds.columns
}

// Next advances to the next row. It returns false when the rows are
// exhausted, the row limit was reached, an error occurred, or the data set
// was closed.
func (ds *DataSet) Next() bool {
	if ds.closed || ds.err != nil {
		return false
	}
	if ds.remaining == 0 {
		ds.release()
		return false
	}
	if err := ds.ctx.Err(); err != nil {
		ds.fail(err)
		return false
	}

	record, err := ds.reader.Read()
	if errors.Is(err, io.EOF) {
		ds.release()
		return false
	}
	if err != nil {
		ds.fail(wrapIO(err))
		return false
	}
	if ds.strict && len(record) != ds.expected {
		ds.fail(&model.InconsistentRowLengthError{
			Line:     ds.reader.Line(),
			Expected: ds.expected,
			Actual:   len(record),
			Values:   record,
		})
		return false
	}

	values := make([]any, len(ds.positions))
	for i, pos := range ds.positions {
		if pos < len(record) {
			values[i] = record[pos]
		}
	}
	ds.row = model.NewRow(ds.columns, values)

	if ds.remaining > 0 {
		ds.remaining--
		if ds.remaining == 0 {
			ds.release()
		}
	}
	return true
}

// Row returns the current row. It is nil before the first call to Next.
func (ds *DataSet) Row() *model.Row {
	return ds.row
}

// Err returns the error that stopped iteration, if any.
func (ds *DataSet) Err() error {
	return ds.err
}

// Close releases the read handle. Further calls to Next return false. It is
// safe to call more than once.
func (ds *DataSet) Close() error {
	if !ds.closed {
		ds.userClosed = true
	}
	ds.release()
	return ds.handleErr
}

// All returns an iterator over the remaining rows. The data set is closed
// when the loop ends, including on break. A stopping error is yielded last.
func (ds *DataSet) All() iter.Seq2[*model.Row, error] {
	return func(yield func(*model.Row, error) bool) {
		defer ds.Close()
		if ds.userClosed {
			yield(nil, ErrDataSetClosed)
			return
		}
		for ds.Next() {
			if !yield(ds.row, nil) {
				return
			}
		}
		if err := ds.err; err != nil {
			yield(nil, err)
		}
	}
}

func (ds *DataSet) fail(err error) {
	ds.err = err
	ds.release()
}

// release closes the read handle exactly once.
func (ds *DataSet) release() {
	if ds.closed {
		return
	}
	ds.closed = true
	ds.reader = nil
	if ds.handle != nil {
		ds.handleErr = ds.handle.Close()
		ds.handle = nil
	}
}
