package model

import (
	"path"
	"strings"
)

// compression extensions stripped before the file type extension
var compressionExts = []string{".gz", ".bz2", ".xz", ".zst"}

// Schema is the single-table schema of a data context.
type Schema struct {
	name   string
	tables []*Table
}

// NewSchema creates a schema. tables may be empty.
func NewSchema(name string, tables ...*Table) *Schema {
	s := &Schema{name: name}
	for _, t := range tables {
		t.schema = s
		s.tables = append(s.tables, t)
	}
	return s
}

// Name returns the schema name.
func (s *Schema) Name() string {
	return s.name
}

// Tables returns the tables of the schema.
func (s *Schema) Tables() []*Table {
	return s.tables
}

// TableCount returns the number of tables.
func (s *Schema) TableCount() int {
	return len(s.tables)
}

// TableByName returns the table with the given name.
func (s *Schema) TableByName(name string) (*Table, bool) {
	for _, t := range s.tables {
		if t.name == name {
			return t, true
		}
	}
	return nil, false
}

// Table represents the delimited file as a table.
type Table struct {
	name    string
	schema  *Schema
	columns []*Column
}

// NewTable creates a table with one TEXT column per name.
func NewTable(name string, columnNames []string) *Table {
	t := &Table{name: name}
	t.columns = make([]*Column, len(columnNames))
	for i, colName := range columnNames {
		t.columns[i] = &Column{
			name:       colName,
			index:      i,
			columnType: ColumnTypeText,
			nullable:   true,
			table:      t,
		}
	}
	return t
}

// Name returns the table name.
func (t *Table) Name() string {
	return t.name
}

// Schema returns the owning schema, or nil for a detached table.
func (t *Table) Schema() *Schema {
	return t.schema
}

// Columns returns all columns in file order.
func (t *Table) Columns() []*Column {
	return t.columns
}

// ColumnCount returns the number of columns.
func (t *Table) ColumnCount() int {
	return len(t.columns)
}

// ColumnNames returns the column names in file order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.columns))
	for i, col := range t.columns {
		names[i] = col.name
	}
	return names
}

// ColumnByName returns the first column with the given name.
func (t *Table) ColumnByName(name string) (*Column, bool) {
	for _, col := range t.columns {
		if col.name == name {
			return col, true
		}
	}
	return nil, false
}

// Column is one positional column of a table.
type Column struct {
	name       string
	index      int
	columnType ColumnType
	nullable   bool
	table      *Table
}

// Name returns the column name.
func (c *Column) Name() string {
	return c.name
}

// Index returns the 0-based field position of the column in a line.
func (c *Column) Index() int {
	return c.index
}

// Type returns the column type.
func (c *Column) Type() ColumnType {
	return c.columnType
}

// Nullable reports whether values may be absent. Delimited files cannot
// enforce presence, so this is always true.
func (c *Column) Nullable() bool {
	return c.nullable
}

// Table returns the owning table.
func (c *Column) Table() *Table {
	return c.table
}

// TableNameFromResource derives a table name from a resource name: the base
// name without compression and file type extensions.
func TableNameFromResource(resourceName string) string {
	name := path.Base(strings.ReplaceAll(resourceName, "\\", "/"))
	lower := strings.ToLower(name)
	for _, ext := range compressionExts {
		if strings.HasSuffix(lower, ext) {
			name = name[:len(name)-len(ext)]
			break
		}
	}
	if trimmed := strings.TrimSuffix(name, path.Ext(name)); trimmed != "" {
		return trimmed
	}
	return name
}

// AlphabeticColumnName returns the spreadsheet style name of a 0-based
// position: A, B, ..., Z, AA, AB, ...
func AlphabeticColumnName(index int) string {
	var b []byte
	for n := index + 1; n > 0; n = (n - 1) / 26 {
		b = append([]byte{byte('A' + (n-1)%26)}, b...)
	}
	return string(b)
}
