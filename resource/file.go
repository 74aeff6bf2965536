package resource

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

var (
	_ Writable  = (*File)(nil)
	_ io.Closer = (*File)(nil)
)

// File is a Resource backed by a local file. Files ending in .gz, .bz2, .xz
// or .zst are transparently decompressed on read and compressed on replace.
type File struct {
	path        string
	compression CompressionType
	readOnly    bool
	temporary   bool
}

// FileOption configures a File.
type FileOption func(*File)

// WithReadOnly marks the file as read-only.
func WithReadOnly() FileOption {
	return func(f *File) {
		f.readOnly = true
	}
}

// NewFile creates a file resource. The file does not need to exist yet.
func NewFile(path string, opts ...FileOption) *File {
	f := &File{
		path:        path,
		compression: DetectCompressionType(path),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Path returns the file path.
func (f *File) Path() string {
	return f.path
}

// Compression returns the compression detected from the file extension.
func (f *File) Compression() CompressionType {
	return f.compression
}

// Name returns the base name of the file.
func (f *File) Name() string {
	return filepath.Base(f.path)
}

// Exists reports whether the file exists.
func (f *File) Exists() bool {
	info, err := os.Stat(f.path)
	return err == nil && !info.IsDir()
}

// Size returns the file size. It is unknown for compressed files, because
// the decompressed size cannot be known without reading.
func (f *File) Size() (int64, bool) {
	if f.compression != CompressionNone {
		return 0, false
	}
	info, err := os.Stat(f.path)
	if err != nil {
		return 0, false
	}
	return info.Size(), true
}

// IsReadOnly reports whether the file must not be replaced. bzip2 files are
// always read-only.
func (f *File) IsReadOnly() bool {
	return f.readOnly || !f.compression.Writable()
}

// Open opens the file for reading through its decompressor.
func (f *File) Open(_ context.Context) (io.ReadCloser, error) {
	file, err := os.Open(f.path) //nolint:gosec // User-provided path is necessary for file operations
	if err != nil {
		return nil, ioError("open", f.path, err)
	}

	reader, cleanup, err := f.compression.newDecompressor(file)
	if err != nil {
		_ = file.Close()
		return nil, ioError("open", f.path, err)
	}
	return &readCloser{Reader: reader, closers: []func() error{cleanup, file.Close}}, nil
}

// Replace writes the new content to a temporary file next to the target and
// renames it over the target once fully written and synced.
func (f *File) Replace(ctx context.Context, fn func(w io.Writer) error) (err error) {
	if f.IsReadOnly() {
		return ioError("replace", f.path, errors.New("resource is read-only"))
	}

	dir := filepath.Dir(f.path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return ioError("replace", f.path, err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			if rmErr := os.Remove(tmp.Name()); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
				slog.WarnContext(ctx, "failed to remove temporary file", slog.String("path", tmp.Name()), slog.Any("error", rmErr))
			}
		}
	}()

	writer, cleanup, err := f.compression.newCompressor(tmp)
	if err != nil {
		return ioError("replace", f.path, err)
	}
	if err = fn(writer); err != nil {
		_ = cleanup()
		return err
	}
	if err = cleanup(); err != nil {
		return ioError("replace", f.path, err)
	}
	if err = tmp.Sync(); err != nil {
		return ioError("replace", f.path, err)
	}
	if err = tmp.Close(); err != nil {
		return ioError("replace", f.path, err)
	}
	perm := os.FileMode(0o644)
	if info, statErr := os.Stat(f.path); statErr == nil {
		perm = info.Mode().Perm()
	}
	_ = os.Chmod(tmp.Name(), perm)
	if err = os.Rename(tmp.Name(), f.path); err != nil {
		return ioError("replace", f.path, err)
	}
	return nil
}

// Close removes the file when it is a temporary copy realized from a
// stream. It is a no-op for ordinary files.
func (f *File) Close() error {
	if !f.temporary {
		return nil
	}
	f.temporary = false
	// realized streams live alone in their own temporary directory
	if err := os.RemoveAll(filepath.Dir(f.path)); err != nil {
		return ioError("remove", f.path, err)
	}
	return nil
}
