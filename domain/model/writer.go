package model

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Writer formats records as delimited text, the inverse of Reader. Lines
// are terminated by LF. A field is quoted only when it contains the
// separator, the quote or escape character, or a line break.
type Writer struct {
	w         *bufio.Writer
	separator rune
	quote     rune
	escape    rune
}

// NewWriter creates a Writer over an encoding-aware io.Writer.
func NewWriter(w io.Writer, cfg Configuration) *Writer {
	return &Writer{
		w:         bufio.NewWriter(w),
		separator: cfg.Separator(),
		quote:     cfg.Quote(),
		escape:    cfg.Escape(),
	}
}

// Write writes one record. A record made of a single empty field is
// written as an empty quoted field. Without a quote character it cannot be
// told apart from a blank line, so Write fails with ErrConfiguration.
func (w *Writer) Write(fields []string) error {
	if len(fields) == 1 && fields[0] == "" {
		// a bare empty line would be read back as a blank line and skipped
		if w.quote == NoCharacter {
			return fmt.Errorf("%w: a single empty field needs a quote character", ErrConfiguration)
		}
		if _, err := w.w.WriteString(string([]rune{w.quote, w.quote})); err != nil {
			return err
		}
		return w.w.WriteByte('\n')
	}
	for i, field := range fields {
		if i > 0 {
			if _, err := w.w.WriteRune(w.separator); err != nil {
				return err
			}
		}
		if _, err := w.w.WriteString(w.format(field)); err != nil {
			return err
		}
	}
	return w.w.WriteByte('\n')
}

// WriteLine writes a raw line verbatim.
func (w *Writer) WriteLine(line string) error {
	if _, err := w.w.WriteString(line); err != nil {
		return err
	}
	return w.w.WriteByte('\n')
}

// Flush writes buffered data to the underlying writer.
func (w *Writer) Flush() error {
	return w.w.Flush()
}

func (w *Writer) needsQuoting(field string) bool {
	return strings.ContainsFunc(field, func(c rune) bool {
		return c == w.separator || c == '\n' || c == '\r' ||
			(w.quote != NoCharacter && c == w.quote) ||
			(w.escape != NoCharacter && c == w.escape)
	})
}

func (w *Writer) format(field string) string {
	if field == "" || !w.needsQuoting(field) {
		return field
	}

	var b strings.Builder
	if w.quote == NoCharacter {
		if w.escape == NoCharacter {
			return field
		}
		for _, c := range field {
			if c == w.separator || c == w.escape {
				b.WriteRune(w.escape)
			}
			b.WriteRune(c)
		}
		return b.String()
	}

	b.WriteRune(w.quote)
	for _, c := range field {
		switch {
		case c == w.quote && (w.escape == NoCharacter || w.escape == w.quote):
			b.WriteRune(w.quote)
		case c == w.quote || (w.escape != NoCharacter && c == w.escape):
			b.WriteRune(w.escape)
		}
		b.WriteRune(c)
	}
	b.WriteRune(w.quote)
	return b.String()
}
