package model

import (
	"bufio"
	"errors"
	"io"
	"strings"
)

// Reader tokenizes delimited text into records using the separator, quote
// and escape characters of a Configuration. Quoted fields may span lines.
// It reads decoded text; character set decoding happens underneath it.
type Reader struct {
	r          *bufio.Reader
	separator  rune
	quote      rune
	escape     rune
	line       int
	recordLine int
}

// NewReader creates a Reader over decoded text.
func NewReader(r io.Reader, cfg Configuration) *Reader {
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReader(r)
	}
	return &Reader{
		r:         br,
		separator: cfg.Separator(),
		quote:     cfg.Quote(),
		escape:    cfg.Escape(),
	}
}

// Line returns the 1-based physical line on which the last record started.
func (r *Reader) Line() int {
	return r.recordLine
}

// SkipLines consumes up to n physical lines and returns them without their
// terminators. Reaching the end of input early is not an error.
func (r *Reader) SkipLines(n int) ([]string, error) {
	skipped := make([]string, 0, max(n, 0))
	for range max(n, 0) {
		line, err := r.readLine()
		if errors.Is(err, io.EOF) {
			return skipped, nil
		}
		if err != nil {
			return skipped, err
		}
		skipped = append(skipped, line)
	}
	return skipped, nil
}

// Read returns the next record. Blank lines are skipped. It returns io.EOF
// when the input is exhausted.
func (r *Reader) Read() ([]string, error) {
	var line string
	for {
		var err error
		line, err = r.readLine()
		if err != nil {
			return nil, err
		}
		if line != "" {
			break
		}
	}
	r.recordLine = r.line

	var (
		fields   []string
		field    strings.Builder
		inQuotes bool
		quoted   bool
	)
	for {
		chars := []rune(line)
		for i := 0; i < len(chars); i++ {
			c := chars[i]
			switch {
			case r.escape != NoCharacter && r.escape != r.quote && c == r.escape &&
				i+1 < len(chars) && r.isEscapable(chars[i+1]):
				field.WriteRune(chars[i+1])
				i++
			case r.quote != NoCharacter && c == r.quote && inQuotes:
				if i+1 < len(chars) && chars[i+1] == r.quote {
					field.WriteRune(c)
					i++
				} else {
					inQuotes = false
				}
			case r.quote != NoCharacter && c == r.quote && field.Len() == 0 && !quoted:
				inQuotes = true
				quoted = true
			case c == r.separator && !inQuotes:
				fields = append(fields, field.String())
				field.Reset()
				quoted = false
			default:
				field.WriteRune(c)
			}
		}
		if !inQuotes {
			break
		}

		next, err := r.readLine()
		if errors.Is(err, io.EOF) {
			// unterminated quote: keep what was read
			break
		}
		if err != nil {
			return nil, err
		}
		field.WriteByte('\n')
		line = next
	}
	return append(fields, field.String()), nil
}

func (r *Reader) isEscapable(c rune) bool {
	return c == r.quote || c == r.escape || c == r.separator
}

// readLine reads one physical line terminated by LF, CRLF or a lone CR.
func (r *Reader) readLine() (string, error) {
	var b strings.Builder
	for {
		c, _, err := r.r.ReadRune()
		if errors.Is(err, io.EOF) {
			if b.Len() == 0 {
				return "", io.EOF
			}
			r.line++
			return b.String(), nil
		}
		if err != nil {
			return "", err
		}
		switch c {
		case '\n':
			r.line++
			return b.String(), nil
		case '\r':
			if next, _, err := r.r.ReadRune(); err == nil && next != '\n' {
				_ = r.r.UnreadRune()
			}
			r.line++
			return b.String(), nil
		default:
			b.WriteRune(c)
		}
	}
}
