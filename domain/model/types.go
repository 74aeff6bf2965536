package model

// ColumnType represents the SQL column type
type ColumnType int

const (
	// ColumnTypeText represents TEXT column type
	ColumnTypeText ColumnType = iota
	// ColumnTypeInteger represents INTEGER column type
	ColumnTypeInteger
	// ColumnTypeReal represents REAL column type
	ColumnTypeReal
	// ColumnTypeDatetime represents datetime stored as TEXT in ISO8601 format
	ColumnTypeDatetime
)

const (
	sqlTypeText    = "TEXT"
	sqlTypeInteger = "INTEGER"
	sqlTypeReal    = "REAL"
)

// String returns the SQL column type string
func (ct ColumnType) String() string {
	switch ct {
	case ColumnTypeInteger:
		return sqlTypeInteger
	case ColumnTypeReal:
		return sqlTypeReal
	default:
		// datetime is stored as TEXT in ISO8601 format
		return sqlTypeText
	}
}

// Row is one materialized record. It holds one value per requested column,
// in request order. A value is a string, or nil when the field was absent
// from a short line.
type Row struct {
	columns []*Column
	values  []any
}

// NewRow creates a row. values must be positional with columns.
func NewRow(columns []*Column, values []any) *Row {
	return &Row{columns: columns, values: values}
}

// Columns returns the columns of the row, in request order.
func (r *Row) Columns() []*Column {
	return r.columns
}

// Values returns the values of the row, in request order.
func (r *Row) Values() []any {
	return r.values
}

// Len returns the number of values.
func (r *Row) Len() int {
	return len(r.values)
}

// Value returns the i-th value.
func (r *Row) Value(i int) any {
	return r.values[i]
}

// String returns the i-th value as a string; absent values are "".
func (r *Row) String(i int) string {
	if s, ok := r.values[i].(string); ok {
		return s
	}
	return ""
}

// Lookup returns the value of the first requested column with the given name.
func (r *Row) Lookup(name string) (any, bool) {
	for i, col := range r.columns {
		if col.Name() == name {
			return r.values[i], true
		}
	}
	return nil, false
}
