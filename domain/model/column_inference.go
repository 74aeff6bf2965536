package model

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// datetimeLayout pairs a cheap shape check with the layouts that can parse it.
type datetimeLayout struct {
	shape   *regexp.Regexp
	layouts []string
}

var datetimeLayouts = []datetimeLayout{
	{regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(\.\d+)?(Z|[+-]\d{2}:\d{2})$`), []string{time.RFC3339, time.RFC3339Nano}},
	{regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(\.\d+)?$`), []string{"2006-01-02T15:04:05", "2006-01-02T15:04:05.000"}},
	{regexp.MustCompile(`^\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}(\.\d+)?$`), []string{"2006-01-02 15:04:05", "2006-01-02 15:04:05.000"}},
	{regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`), []string{"2006-01-02"}},
	{regexp.MustCompile(`^\d{1,2}/\d{1,2}/\d{4} \d{1,2}:\d{2}:\d{2}( (AM|PM))?$`), []string{"1/2/2006 15:04:05", "1/2/2006 3:04:05 PM", "01/02/2006 15:04:05"}},
	{regexp.MustCompile(`^\d{1,2}/\d{1,2}/\d{4}$`), []string{"1/2/2006", "01/02/2006"}},
	{regexp.MustCompile(`^\d{1,2}\.\d{1,2}\.\d{4} \d{1,2}:\d{2}:\d{2}$`), []string{"2.1.2006 15:04:05", "02.01.2006 15:04:05"}},
	{regexp.MustCompile(`^\d{1,2}\.\d{1,2}\.\d{4}$`), []string{"2.1.2006", "02.01.2006"}},
	{regexp.MustCompile(`^\d{1,2}:\d{2}:\d{2}(\.\d+)?$`), []string{"15:04:05", "15:04:05.000", "3:04:05"}},
	{regexp.MustCompile(`^\d{1,2}:\d{2}$`), []string{"15:04", "3:04"}},
}

// isDatetime checks if a value parses as one of the known date/time layouts
func isDatetime(value string) bool {
	for _, dl := range datetimeLayouts {
		if !dl.shape.MatchString(value) {
			continue
		}
		for _, layout := range dl.layouts {
			if _, err := time.Parse(layout, value); err == nil {
				return true
			}
		}
	}
	return false
}

// classify returns the narrowest type a single non-empty value fits.
func classify(value string) ColumnType {
	if isDatetime(value) {
		return ColumnTypeDatetime
	}
	if _, err := strconv.ParseInt(value, 10, 64); err == nil {
		return ColumnTypeInteger
	}
	if _, err := strconv.ParseFloat(value, 64); err == nil {
		return ColumnTypeReal
	}
	return ColumnTypeText
}

// InferColumnType infers the column type of a set of sampled values.
// Empty values are ignored. Priority: TEXT > DATETIME > REAL > INTEGER.
func InferColumnType(values []string) ColumnType {
	seen := map[ColumnType]bool{}
	for _, value := range values {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		t := classify(value)
		if t == ColumnTypeText {
			return ColumnTypeText
		}
		seen[t] = true
	}

	for _, t := range []ColumnType{ColumnTypeDatetime, ColumnTypeReal, ColumnTypeInteger} {
		if seen[t] {
			return t
		}
	}
	return ColumnTypeText
}

// InferColumnTypes sets the type of every column from the sampled records.
// Records are positional; short records simply contribute nothing to the
// trailing columns.
func InferColumnTypes(columns []*Column, records [][]string) {
	if len(records) == 0 {
		return
	}
	for _, col := range columns {
		values := make([]string, 0, len(records))
		for _, record := range records {
			if col.index < len(record) {
				values = append(values, record[col.index])
			}
		}
		col.columnType = InferColumnType(values)
	}
}
