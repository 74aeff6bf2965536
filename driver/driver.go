package driver

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"modernc.org/sqlite"

	"github.com/InsightsDev-dev/metamodel"
	"github.com/InsightsDev-dev/metamodel/domain/model"
	"github.com/InsightsDev-dev/metamodel/resource"
)

// DriverName is the name the driver is registered under
const DriverName = "metamodel"

// TypeSampleSize is the number of rows sampled to choose SQL column types
const TypeSampleSize = 100

func init() {
	sql.Register(DriverName, NewDriver())
}

// Driver implements database/sql/driver.Driver interface for delimited files.
// It serves as the entry point for creating connections to file-based databases.
type Driver struct{}

// Connector implements database/sql/driver.Connector interface.
// The dsn field contains file or directory paths separated by semicolons.
type Connector struct {
	driver *Driver
	dsn    string
}

// Connection implements database/sql/driver.Conn interface.
// It wraps an in-memory SQLite connection holding one table per data context.
type Connection struct {
	conn     driver.Conn
	contexts map[string]*metamodel.DataContext
	columns  map[string][]string
}

// Transaction implements database/sql/driver.Tx interface.
type Transaction struct {
	tx driver.Tx
}

// NewDriver creates a new driver
func NewDriver() *Driver {
	return &Driver{}
}

// Open opens a database over the given files and directories.
func Open(paths ...string) (*sql.DB, error) {
	if len(paths) == 0 {
		return nil, ErrNoPathsProvided
	}
	db, err := sql.Open(DriverName, strings.Join(paths, ";"))
	if err != nil {
		return nil, err
	}
	// every connection is a separate in-memory database
	db.SetMaxOpenConns(1)
	return db, nil
}

// Sync writes every table of db back to the file it was loaded from.
func Sync(ctx context.Context, db *sql.DB) error {
	conn, err := db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to get connection: %w", err)
	}
	defer conn.Close()

	return conn.Raw(func(driverConn any) error {
		if c, ok := driverConn.(*Connection); ok {
			return c.Sync(ctx)
		}
		return ErrNotMetamodelConnection
	})
}

// Open implements driver.Driver interface
func (d *Driver) Open(dsn string) (driver.Conn, error) {
	connector, err := d.OpenConnector(dsn)
	if err != nil {
		return nil, err
	}
	return connector.Connect(context.Background())
}

// OpenConnector implements driver.DriverContext interface
func (d *Driver) OpenConnector(dsn string) (driver.Connector, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, ErrNoPathsProvided
	}
	return &Connector{
		driver: d,
		dsn:    dsn,
	}, nil
}

// Connect implements driver.Connector interface
func (c *Connector) Connect(ctx context.Context) (driver.Conn, error) {
	paths, err := c.collectFiles(strings.Split(c.dsn, ";"))
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, ErrNoFilesLoaded
	}

	conn, err := (&sqlite.Driver{}).Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory database: %w", err)
	}

	connection := &Connection{
		conn:     conn,
		contexts: make(map[string]*metamodel.DataContext, len(paths)),
		columns:  make(map[string][]string, len(paths)),
	}
	for _, path := range paths {
		if err := connection.load(ctx, path); err != nil {
			_ = connection.Close()
			return nil, fmt.Errorf("failed to load file %s: %w", path, err)
		}
	}
	return connection, nil
}

// Driver implements driver.Connector interface
func (c *Connector) Driver() driver.Driver {
	return c.driver
}

// collectFiles expands directories and rejects paths that would produce the
// same table name.
func (c *Connector) collectFiles(paths []string) ([]string, error) {
	var files []string
	tableNames := make(map[string]string)

	add := func(path string) error {
		name := model.TableNameFromResource(path)
		if existing, ok := tableNames[name]; ok {
			return fmt.Errorf("%w: %s (from %s and %s)", ErrDuplicateTableName, name, existing, path)
		}
		tableNames[name] = path
		files = append(files, path)
		return nil
	}

	for _, path := range paths {
		path = strings.TrimSpace(path)
		if path == "" {
			continue
		}
		if err := ValidatePath(path); err != nil {
			return nil, fmt.Errorf("%w: %s", err, path)
		}
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("failed to stat path: %w", err)
		}
		if !info.IsDir() {
			if err := add(path); err != nil {
				return nil, err
			}
			continue
		}

		dirFiles, err := readDirectory(path)
		if err != nil {
			return nil, err
		}
		for _, file := range dirFiles {
			if err := add(file); err != nil {
				return nil, err
			}
		}
	}
	return files, nil
}

// readDirectory returns the supported files of a directory, sorted by name.
func readDirectory(dirPath string) ([]string, error) {
	entries, err := os.ReadDir(dirPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !IsValidFileName(entry.Name()) || !IsSupportedFile(entry.Name()) {
			continue
		}
		files = append(files, filepath.Join(dirPath, entry.Name()))
	}
	if err := ValidateFileCount(len(files)); err != nil {
		return nil, err
	}
	slices.Sort(files)
	return files, nil
}

// IsSupportedFile reports whether the driver loads a file with this name:
// .csv or .tsv, optionally compressed.
func IsSupportedFile(fileName string) bool {
	ext := strings.ToLower(filepath.Ext(trimCompression(fileName)))
	return ext == ".csv" || ext == ".tsv"
}

// ConfigurationFor returns the configuration used to load path: comma
// separated, or tab separated for .tsv files.
func ConfigurationFor(path string) metamodel.Configuration {
	cfg := metamodel.NewConfiguration().WithColumnTypeSampleSize(TypeSampleSize)
	if strings.EqualFold(filepath.Ext(trimCompression(path)), ".tsv") {
		cfg = cfg.WithSeparator('\t')
	}
	return cfg
}

func trimCompression(fileName string) string {
	ext := resource.DetectCompressionType(fileName).Extension()
	return fileName[:len(fileName)-len(ext)]
}

// load creates the data context of path and copies its rows into a table.
func (conn *Connection) load(ctx context.Context, path string) error {
	dc, err := metamodel.NewFromFile(path, ConfigurationFor(path))
	if err != nil {
		return err
	}
	if !dc.Resource().Exists() {
		return fmt.Errorf("path does not exist: %s", path)
	}

	table, err := dc.DefaultTable(ctx)
	if err != nil {
		return err
	}
	if err := ValidateColumnCount(table.ColumnCount()); err != nil {
		return err
	}
	if _, exists := conn.contexts[table.Name()]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateTableName, table.Name())
	}
	if err := validateColumnNames(table); err != nil {
		return err
	}

	if err := conn.createTable(ctx, table); err != nil {
		return err
	}
	if err := conn.insertRows(ctx, dc, table); err != nil {
		return err
	}

	conn.contexts[table.Name()] = dc
	conn.columns[table.Name()] = table.ColumnNames()
	slog.DebugContext(ctx, "loaded table", slog.String("table", table.Name()), slog.String("path", path))
	return nil
}

// validateColumnNames rejects names SQLite would treat as the same column.
func validateColumnNames(table *model.Table) error {
	seen := make(map[string]struct{}, table.ColumnCount())
	for _, name := range table.ColumnNames() {
		key := strings.ToLower(name)
		if _, ok := seen[key]; ok {
			return fmt.Errorf("%w: %s in table %s", ErrDuplicateColumnName, name, table.Name())
		}
		seen[key] = struct{}{}
	}
	return nil
}

// createTable creates the SQL table for table
func (conn *Connection) createTable(ctx context.Context, table *model.Table) error {
	if table.ColumnCount() == 0 {
		return fmt.Errorf("%w: %s", ErrEmptyTable, table.Name())
	}
	return conn.exec(ctx, buildCreateTableQuery(table), nil)
}

// buildCreateTableQuery constructs a CREATE TABLE query for the given table
func buildCreateTableQuery(table *model.Table) string {
	columns := make([]string, 0, table.ColumnCount())
	for _, col := range table.Columns() {
		columns = append(columns, fmt.Sprintf(`%s %s`, quoteIdentifier(col.Name()), col.Type()))
	}

	return fmt.Sprintf(
		`CREATE TABLE %s (%s)`,
		quoteIdentifier(table.Name()),
		strings.Join(columns, ", "),
	)
}

// buildInsertQuery constructs an INSERT query for the given table
func buildInsertQuery(table string, columnCount int) string {
	return fmt.Sprintf(
		`INSERT INTO %s VALUES (%s)`,
		quoteIdentifier(table),
		buildPlaceholders(columnCount),
	)
}

// buildPlaceholders creates placeholder string for prepared statements
func buildPlaceholders(count int) string {
	if count == 0 {
		return ""
	}
	return strings.Repeat("?, ", count-1) + "?"
}

// quoteIdentifier quotes an SQL identifier with brackets
func quoteIdentifier(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

// insertRows streams the rows of the data context into the table through a
// prepared statement.
func (conn *Connection) insertRows(ctx context.Context, dc *metamodel.DataContext, table *model.Table) (err error) {
	ds, err := dc.MaterializeTable(ctx, table, nil, -1)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := ds.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	stmt, err := conn.PrepareContext(ctx, buildInsertQuery(table.Name(), table.ColumnCount()))
	if err != nil {
		return err
	}
	defer stmt.Close()

	execer, ok := stmt.(driver.StmtExecContext)
	if !ok {
		return ErrStmtExecContextNotSupported
	}

	args := make([]driver.NamedValue, table.ColumnCount())
	for ds.Next() {
		for i, v := range ds.Row().Values() {
			var value driver.Value
			if s, ok := v.(string); ok {
				value = ValidateFieldValue(s)
			}
			args[i] = driver.NamedValue{Ordinal: i + 1, Value: value}
		}
		if _, err := execer.ExecContext(ctx, args); err != nil {
			return err
		}
	}
	return ds.Err()
}

// exec prepares and executes a statement
func (conn *Connection) exec(ctx context.Context, query string, args []driver.NamedValue) error {
	stmt, err := conn.PrepareContext(ctx, query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	if execer, ok := stmt.(driver.StmtExecContext); ok {
		_, err := execer.ExecContext(ctx, args)
		return err
	}
	return ErrStmtExecContextNotSupported
}

// query prepares a statement and returns its rows. The statement is closed
// with the rows.
func (conn *Connection) query(ctx context.Context, query string) (driver.Rows, error) {
	stmt, err := conn.PrepareContext(ctx, query)
	if err != nil {
		return nil, err
	}
	queryer, ok := stmt.(driver.StmtQueryContext)
	if !ok {
		_ = stmt.Close()
		return nil, ErrStmtQueryContextNotSupported
	}
	rows, err := queryer.QueryContext(ctx, nil)
	if err != nil {
		_ = stmt.Close()
		return nil, err
	}
	return &stmtRows{Rows: rows, stmt: stmt}, nil
}

type stmtRows struct {
	driver.Rows
	stmt driver.Stmt
}

func (r *stmtRows) Close() error {
	return errors.Join(r.Rows.Close(), r.stmt.Close())
}

// Sync writes every table back to its file, replacing the file rows with
// the table rows. Only the columns the file had when loaded are written.
// Tables loaded from read-only files fail with metamodel.ErrNotWritable.
func (conn *Connection) Sync(ctx context.Context) error {
	var errs []error
	for _, name := range slices.Sorted(maps.Keys(conn.contexts)) {
		if err := conn.syncTable(ctx, name); err != nil {
			errs = append(errs, fmt.Errorf("failed to sync table %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

func (conn *Connection) syncTable(ctx context.Context, name string) error {
	dc := conn.contexts[name]
	if !dc.IsWritable() {
		return metamodel.ErrNotWritable
	}

	records, err := conn.tableRecords(ctx, name, conn.columns[name])
	if err != nil {
		return err
	}

	return dc.ExecuteUpdate(ctx, metamodel.UpdateScriptFunc(func(ctx context.Context, cb *metamodel.UpdateCallback) error {
		return cb.ReplaceRows(ctx, records)
	}))
}

// tableRecords reads every row of a table, selecting columns in order.
func (conn *Connection) tableRecords(ctx context.Context, table string, columns []string) ([][]any, error) {
	quoted := make([]string, len(columns))
	for i, col := range columns {
		quoted[i] = quoteIdentifier(col)
	}
	rows, err := conn.query(ctx, fmt.Sprintf("SELECT %s FROM %s", strings.Join(quoted, ", "), quoteIdentifier(table)))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records [][]any
	dest := make([]driver.Value, len(columns))
	for {
		err := rows.Next(dest)
		if errors.Is(err, io.EOF) {
			return records, nil
		}
		if err != nil {
			return nil, err
		}
		records = append(records, convertRow(dest))
	}
}

// convertRow converts SQLite values to field values; NULL becomes nil.
func convertRow(dest []driver.Value) []any {
	record := make([]any, len(dest))
	for i, v := range dest {
		switch value := v.(type) {
		case nil:
			record[i] = nil
		case []byte:
			record[i] = string(value)
		default:
			record[i] = fmt.Sprint(value)
		}
	}
	return record
}

// Close implements driver.Conn interface
func (conn *Connection) Close() error {
	var errs []error
	for _, dc := range conn.contexts {
		errs = append(errs, dc.Close())
	}
	conn.contexts = nil
	if conn.conn != nil {
		errs = append(errs, conn.conn.Close())
		conn.conn = nil
	}
	return errors.Join(errs...)
}

// Begin implements driver.Conn interface (deprecated, use BeginTx instead)
func (conn *Connection) Begin() (driver.Tx, error) {
	return conn.BeginTx(context.Background(), driver.TxOptions{})
}

// BeginTx implements driver.ConnBeginTx interface
func (conn *Connection) BeginTx(ctx context.Context, opts driver.TxOptions) (driver.Tx, error) {
	if connBeginTx, ok := conn.conn.(driver.ConnBeginTx); ok {
		tx, err := connBeginTx.BeginTx(ctx, opts)
		if err != nil {
			return nil, err
		}
		return &Transaction{tx: tx}, nil
	}
	return nil, ErrBeginTxNotSupported
}

// Commit implements driver.Tx interface
func (t *Transaction) Commit() error {
	return t.tx.Commit()
}

// Rollback implements driver.Tx interface
func (t *Transaction) Rollback() error {
	return t.tx.Rollback()
}

// Prepare implements driver.Conn interface (deprecated, use PrepareContext instead)
func (conn *Connection) Prepare(query string) (driver.Stmt, error) {
	return conn.PrepareContext(context.Background(), query)
}

// PrepareContext implements driver.ConnPrepareContext interface
func (conn *Connection) PrepareContext(ctx context.Context, query string) (driver.Stmt, error) {
	if connPrepareCtx, ok := conn.conn.(driver.ConnPrepareContext); ok {
		return connPrepareCtx.PrepareContext(ctx, query)
	}
	return nil, ErrPrepareContextNotSupported
}
