// Package resource provides uniform handles to byte-addressable sources and
// sinks: local files (optionally compressed), HTTP URLs and one-shot streams
// realized into temporary files.
//
// All variants implement Resource. Variants that can be rewritten also
// implement Writable, whose Replace substitutes the whole content
// atomically.
package resource

import (
	"context"
	"fmt"
	"io"

	"github.com/InsightsDev-dev/metamodel/domain/model"
)

// Resource is a read handle factory for a named source.
type Resource interface {
	// Name returns the logical name, usually the file name.
	Name() string
	// Exists reports whether the source currently exists.
	Exists() bool
	// Size returns the size in bytes. ok is false when the size cannot be
	// known without reading the content.
	Size() (size int64, ok bool)
	// IsReadOnly reports whether the content must not be replaced.
	IsReadOnly() bool
	// Open opens a fresh stream. The caller must close it. The stream is not
	// assumed to be seekable.
	Open(ctx context.Context) (io.ReadCloser, error)
}

// Writable is a Resource whose content can be replaced.
type Writable interface {
	Resource
	// Replace atomically substitutes the content with what fn writes. When fn
	// or the write fails the previous content is left untouched.
	Replace(ctx context.Context, fn func(w io.Writer) error) error
}

// Read opens r for the duration of fn and closes it afterwards, whether fn
// succeeds, fails or panics.
func Read[T any](ctx context.Context, r Resource, fn func(io.Reader) (T, error)) (T, error) {
	var zero T
	rc, err := r.Open(ctx)
	if err != nil {
		return zero, err
	}
	defer rc.Close()
	return fn(rc)
}

// ioError wraps err as an I/O failure on the named resource.
func ioError(op, name string, err error) error {
	return fmt.Errorf("%w: %s %s: %w", model.ErrIO, op, name, err)
}
