package metamodel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/InsightsDev-dev/metamodel/domain/model"
)

// Schema loads the schema of the resource. It holds one table when the
// resource exists and none otherwise. Only the header line, plus the type
// sample when one is configured, is read.
func (dc *DataContext) Schema(ctx context.Context) (*model.Schema, error) {
	name := dc.resource.Name()
	if !dc.resource.Exists() {
		return model.NewSchema(name), nil
	}

	table, err := dc.loadTable(ctx)
	if err != nil {
		return nil, NewErrorContext("load schema", name).Error(err)
	}
	return model.NewSchema(name, table), nil
}

// DefaultTable returns the single table of the schema, or nil when the
// resource does not exist.
func (dc *DataContext) DefaultTable(ctx context.Context) (*model.Table, error) {
	schema, err := dc.Schema(ctx)
	if err != nil {
		return nil, err
	}
	if schema.TableCount() == 0 {
		return nil, nil //nolint:nilnil // absent resource has no table
	}
	return schema.Tables()[0], nil
}

func (dc *DataContext) loadTable(ctx context.Context) (*model.Table, error) {
	reader, closer, err := dc.openReader(ctx)
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	var (
		names  []string
		sample [][]string
	)
	if dc.configuration.HasColumnNameLine() {
		header, err := readHeader(reader, dc.configuration.ColumnNameLineNumber())
		if err != nil {
			return nil, err
		}
		names = columnNames(header)
	} else {
		first, err := reader.Read()
		switch {
		case errors.Is(err, io.EOF):
		case err != nil:
			return nil, wrapIO(err)
		default:
			names = columnNames(make([]string, len(first)))
			sample = append(sample, first)
		}
	}

	table := model.NewTable(model.TableNameFromResource(dc.resource.Name()), names)

	sampleSize := dc.configuration.ColumnTypeSampleSize()
	if sampleSize == 0 || len(names) == 0 {
		return table, nil
	}
	for len(sample) < sampleSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, wrapIO(err)
		}
		sample = append(sample, record)
	}
	model.InferColumnTypes(table.Columns(), sample)
	return table, nil
}

// readHeader consumes the lines up to and including the header record on
// line headerLine. It returns nil when the input ends first.
func readHeader(reader *model.Reader, headerLine int) ([]string, error) {
	if _, err := reader.SkipLines(headerLine - 1); err != nil {
		return nil, wrapIO(err)
	}
	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapIO(err)
	}
	return header, nil
}

// columnNames fills blank header names with the alphabetic name of their position.
func columnNames(header []string) []string {
	names := make([]string, len(header))
	for i, name := range header {
		if strings.TrimSpace(name) == "" {
			name = model.AlphabeticColumnName(i)
		}
		names[i] = name
	}
	return names
}

// wrapIO marks err as an I/O failure unless it already carries a category.
func wrapIO(err error) error {
	if err == nil || errors.Is(err, ErrIO) || errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrIO, err)
}
