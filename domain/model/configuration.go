package model

import (
	"fmt"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
)

const (
	// DefaultColumnNameLine is the header line used when none is configured
	DefaultColumnNameLine = 1
	// NoColumnNameLine disables the header line; columns are named A, B, C, ...
	NoColumnNameLine = 0
	// DefaultEncoding is the encoding used when none is configured
	DefaultEncoding = "UTF-8"
	// DefaultSeparator is the default field separator
	DefaultSeparator = ','
	// DefaultQuote is the default quote character
	DefaultQuote = '"'
	// DefaultEscape is the default escape character
	DefaultEscape = '\\'
	// NoCharacter disables the quote or escape character when passed to WithQuote or WithEscape
	NoCharacter rune = -1
)

// Configuration holds the parsing and formatting parameters of a delimited
// text file. It is immutable: the With* methods return modified copies.
// The zero value is equivalent to NewConfiguration().
//
// Example:
//
//	cfg := model.NewConfiguration().
//		WithSeparator(';').
//		WithEncoding("ISO-8859-1").
//		WithFailOnInconsistentRowLength(true)
type Configuration struct {
	columnNameLine              int
	columnNameLineSet           bool
	encoding                    string
	separator                   rune
	quote                       rune
	escape                      rune
	failOnInconsistentRowLength bool
	typeSampleSize              int
}

// NewConfiguration creates a configuration with default values: header on
// the first line, UTF-8, comma separator, double-quote, backslash escape and
// lenient row length.
func NewConfiguration() Configuration {
	return Configuration{
		columnNameLine:    DefaultColumnNameLine,
		columnNameLineSet: true,
		encoding:          DefaultEncoding,
		separator:         DefaultSeparator,
		quote:             DefaultQuote,
		escape:            DefaultEscape,
	}
}

// WithColumnNameLineNumber sets the 1-based line holding the column names.
// Zero or a negative value means the file has no header line.
func (c Configuration) WithColumnNameLineNumber(line int) Configuration {
	if line < 0 {
		line = NoColumnNameLine
	}
	c.columnNameLine = line
	c.columnNameLineSet = true
	return c
}

// WithEncoding sets the text encoding by its IANA or WHATWG name.
// An empty name restores the default.
func (c Configuration) WithEncoding(name string) Configuration {
	c.encoding = strings.TrimSpace(name)
	return c
}

// WithSeparator sets the field separator.
func (c Configuration) WithSeparator(r rune) Configuration {
	c.separator = r
	return c
}

// WithQuote sets the quote character. NoCharacter disables quoting.
func (c Configuration) WithQuote(r rune) Configuration {
	c.quote = r
	return c
}

// WithEscape sets the escape character. NoCharacter disables escaping.
func (c Configuration) WithEscape(r rune) Configuration {
	c.escape = r
	return c
}

// WithFailOnInconsistentRowLength enables strict row length validation.
func (c Configuration) WithFailOnInconsistentRowLength(fail bool) Configuration {
	c.failOnInconsistentRowLength = fail
	return c
}

// WithColumnTypeSampleSize sets how many data rows the schema loader reads to
// infer column types. Zero keeps every column TEXT and the schema load
// limited to the header line.
func (c Configuration) WithColumnTypeSampleSize(rows int) Configuration {
	c.typeSampleSize = rows
	return c
}

// ColumnNameLineNumber returns the effective header line number, or
// NoColumnNameLine when the file has no header.
func (c Configuration) ColumnNameLineNumber() int {
	if !c.columnNameLineSet {
		return DefaultColumnNameLine
	}
	return c.columnNameLine
}

// HasColumnNameLine reports whether a header line is configured.
func (c Configuration) HasColumnNameLine() bool {
	return c.ColumnNameLineNumber() > 0
}

// Encoding returns the configured encoding name.
func (c Configuration) Encoding() string {
	if c.encoding == "" {
		return DefaultEncoding
	}
	return c.encoding
}

// Separator returns the field separator.
func (c Configuration) Separator() rune {
	if c.separator == 0 {
		return DefaultSeparator
	}
	return c.separator
}

// Quote returns the quote character, or NoCharacter.
func (c Configuration) Quote() rune {
	if c.quote == 0 {
		return DefaultQuote
	}
	return c.quote
}

// Escape returns the escape character, or NoCharacter.
func (c Configuration) Escape() rune {
	if c.escape == 0 {
		return DefaultEscape
	}
	return c.escape
}

// FailOnInconsistentRowLength reports whether strict row length validation is on.
func (c Configuration) FailOnInconsistentRowLength() bool {
	return c.failOnInconsistentRowLength
}

// ColumnTypeSampleSize returns the number of rows sampled for type inference.
func (c Configuration) ColumnTypeSampleSize() int {
	return c.typeSampleSize
}

// Validate checks the configuration. Overlapping separator, quote and escape
// characters are tolerated.
func (c Configuration) Validate() error {
	if isLineBreak(c.Separator()) {
		return fmt.Errorf("%w: separator cannot be a line break", ErrConfiguration)
	}
	if isLineBreak(c.Quote()) {
		return fmt.Errorf("%w: quote character cannot be a line break", ErrConfiguration)
	}
	if isLineBreak(c.Escape()) {
		return fmt.Errorf("%w: escape character cannot be a line break", ErrConfiguration)
	}
	if c.Separator() == NoCharacter {
		return fmt.Errorf("%w: separator is required", ErrConfiguration)
	}
	if c.typeSampleSize < 0 {
		return fmt.Errorf("%w: column type sample size cannot be negative: %d", ErrConfiguration, c.typeSampleSize)
	}
	return nil
}

// TextEncoding resolves the configured encoding. Unknown names are reported
// here, at first use, rather than at construction.
func (c Configuration) TextEncoding() (encoding.Encoding, error) {
	name := c.Encoding()
	if isUTF8(name) {
		return unicode.UTF8, nil
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, fmt.Errorf("%w: unsupported encoding %q: %w", ErrIO, name, err)
	}
	return enc, nil
}

// isUTF8 matches the usual spellings of UTF-8, including Java's "UTF8".
func isUTF8(name string) bool {
	switch strings.ToLower(name) {
	case "utf-8", "utf8", "unicode-1-1-utf-8":
		return true
	default:
		return false
	}
}

func isLineBreak(r rune) bool {
	return r == '\n' || r == '\r'
}
