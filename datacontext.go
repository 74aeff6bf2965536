package metamodel

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"golang.org/x/sync/semaphore"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/InsightsDev-dev/metamodel/domain/model"
	"github.com/InsightsDev-dev/metamodel/resource"
)

// Configuration describes how a delimited file is read and written
type Configuration = model.Configuration

// NewConfiguration returns the default configuration
var NewConfiguration = model.NewConfiguration

// DataContext exposes one delimited text resource as a single-table data
// source. Reads may run concurrently; updates through ExecuteUpdate are
// serialized per DataContext.
type DataContext struct {
	resource      resource.Resource
	configuration Configuration
	writable      resource.Writable
	gate          *semaphore.Weighted
	logger        *slog.Logger
	owned         io.Closer
}

// Option configures a DataContext
type Option func(*DataContext)

// WithLogger sets the logger used for diagnostics. The default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(dc *DataContext) {
		if logger != nil {
			dc.logger = logger
		}
	}
}

// New creates a DataContext over res. The context is writable when res is
// not read-only and supports content replacement.
func New(res resource.Resource, cfg Configuration, opts ...Option) (*DataContext, error) {
	if res == nil {
		return nil, NewErrorContext("create data context", "").
			WithDetails("resource cannot be nil").Error(ErrConfiguration)
	}
	if err := cfg.Validate(); err != nil {
		return nil, NewErrorContext("create data context", res.Name()).Error(err)
	}

	dc := &DataContext{
		resource:      res,
		configuration: cfg,
		gate:          semaphore.NewWeighted(1),
		logger:        slog.Default(),
	}
	if w, ok := res.(resource.Writable); ok && !res.IsReadOnly() {
		dc.writable = w
	}
	for _, opt := range opts {
		opt(dc)
	}
	return dc, nil
}

// NewFromFile creates a DataContext over a local file. The file does not need
// to exist; it is created by the first update.
func NewFromFile(path string, cfg Configuration, opts ...Option) (*DataContext, error) {
	if path == "" {
		return nil, NewErrorContext("create data context", "").
			WithDetails("path cannot be empty").Error(ErrConfiguration)
	}
	return New(resource.NewFile(path), cfg, opts...)
}

// NewFromURL creates a read-only DataContext over an HTTP(S) resource.
func NewFromURL(rawURL string, cfg Configuration, opts ...Option) (*DataContext, error) {
	u, err := resource.NewURL(rawURL)
	if err != nil {
		return nil, NewErrorContext("create data context", rawURL).Error(errors.Join(ErrConfiguration, err))
	}
	return New(u, cfg, opts...)
}

// NewFromReader drains r into a temporary file and creates a read-only
// DataContext over it. name should be the original file name, e.g.
// "users.csv"; the table is named after it. Close removes the temporary file.
//
// r is decoded with the configured encoding, so an unknown encoding fails
// here with ErrIO.
func NewFromReader(r io.Reader, name string, cfg Configuration, opts ...Option) (*DataContext, error) {
	if err := cfg.Validate(); err != nil {
		return nil, NewErrorContext("create data context", name).Error(err)
	}
	enc, err := cfg.TextEncoding()
	if err != nil {
		return nil, NewErrorContext("create data context", name).Error(err)
	}
	f, err := resource.FromReader(r, name, resource.WithStreamEncoding(enc))
	if err != nil {
		return nil, NewErrorContext("create data context", name).Error(err)
	}
	dc, err := New(f, cfg, opts...)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	dc.owned = f
	return dc, nil
}

// Close releases resources owned by the DataContext, such as the temporary
// copy of a stream. It is safe to call more than once.
func (dc *DataContext) Close() error {
	if dc.owned == nil {
		return nil
	}
	owned := dc.owned
	dc.owned = nil
	return owned.Close()
}

// Resource returns the underlying resource.
func (dc *DataContext) Resource() resource.Resource {
	return dc.resource
}

// Configuration returns the configuration.
func (dc *DataContext) Configuration() Configuration {
	return dc.configuration
}

// IsWritable reports whether ExecuteUpdate can modify the resource.
func (dc *DataContext) IsWritable() bool {
	return dc.writable != nil
}

// openReader opens the resource and returns a tokenizer over its decoded text
// together with the handle to close.
func (dc *DataContext) openReader(ctx context.Context) (*model.Reader, io.Closer, error) {
	enc, err := dc.configuration.TextEncoding()
	if err != nil {
		return nil, nil, err
	}
	rc, err := dc.resource.Open(ctx)
	if err != nil {
		return nil, nil, err
	}
	decoded := transform.NewReader(rc, unicode.BOMOverride(enc.NewDecoder()))
	return model.NewReader(decoded, dc.configuration), rc, nil
}
