package resource

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// maxLineSize bounds a single line while realizing a stream.
const maxLineSize = 64 * 1024 * 1024

// StreamOption configures FromReader.
type StreamOption func(*streamOptions)

type streamOptions struct {
	encoding encoding.Encoding
}

// WithStreamEncoding sets the text encoding of the stream. Line breaks are
// found in the decoded text and the copy is written back in the same
// encoding. The default is UTF-8.
func WithStreamEncoding(enc encoding.Encoding) StreamOption {
	return func(o *streamOptions) {
		o.encoding = enc
	}
}

// FromReader drains r once, line by line, into a new temporary file and
// returns it as a read-only File. Line separators (LF, CRLF, CR) are
// normalized to LF, and the last line gets no trailing separator.
//
// The returned File owns the temporary copy; Close removes it. r is not
// closed. name is used for the temporary file name and should carry the
// original file name, e.g. "users.csv".
func FromReader(r io.Reader, name string, opts ...StreamOption) (f *File, err error) {
	if r == nil {
		return nil, ioError("realize", name, errors.New("reader cannot be nil"))
	}
	var o streamOptions
	for _, opt := range opts {
		opt(&o)
	}
	if name == "" {
		name = "stream.csv"
	}

	dir := filepath.Join(os.TempDir(), "metamodel-"+uuid.NewString())
	if err := os.Mkdir(dir, 0o700); err != nil {
		return nil, ioError("realize", name, err)
	}
	path := filepath.Join(dir, filepath.Base(name))
	defer func() {
		if err != nil {
			_ = os.RemoveAll(dir)
		}
	}()

	out, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600) //nolint:gosec // path is freshly allocated
	if err != nil {
		return nil, ioError("realize", name, err)
	}

	if err := copyText(out, r, o.encoding); err != nil {
		_ = out.Close()
		return nil, ioError("realize", name, err)
	}
	if err := out.Close(); err != nil {
		return nil, ioError("realize", name, err)
	}

	return &File{
		path:        path,
		compression: CompressionNone,
		readOnly:    true,
		temporary:   true,
	}, nil
}

// copyText copies r to w with normalized line breaks. Text in an encoding
// other than UTF-8 is decoded first and encoded again on the way out.
func copyText(w io.Writer, r io.Reader, enc encoding.Encoding) error {
	if enc == nil || enc == unicode.UTF8 {
		return copyLines(w, r)
	}
	encoded := transform.NewWriter(w, enc.NewEncoder())
	if err := copyLines(encoded, transform.NewReader(r, enc.NewDecoder())); err != nil {
		return err
	}
	return encoded.Close()
}

// copyLines copies r to w with every line break rewritten as LF.
func copyLines(w io.Writer, r io.Reader) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	scanner.Split(scanAnyLineBreak)

	bw := bufio.NewWriter(w)
	first := true
	for scanner.Scan() {
		if !first {
			if err := bw.WriteByte('\n'); err != nil {
				return err
			}
		}
		first = false
		if _, err := bw.Write(scanner.Bytes()); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return bw.Flush()
}

// scanAnyLineBreak is a bufio.SplitFunc that accepts LF, CRLF and a lone CR
// as line terminators.
func scanAnyLineBreak(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		if data[i] == '\n' {
			return i + 1, data[:i], nil
		}
		if i+1 < len(data) {
			if data[i+1] == '\n' {
				return i + 2, data[:i], nil
			}
			return i + 1, data[:i], nil
		}
		if atEOF {
			return i + 1, data[:i], nil
		}
		// a CR at the end of the buffer may be the first half of CRLF
		return 0, nil, nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
