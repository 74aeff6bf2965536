package metamodel

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/bits"

	"golang.org/x/text/encoding/unicode"

	"github.com/InsightsDev-dev/metamodel/domain/model"
	"github.com/InsightsDev-dev/metamodel/resource"
)

const (
	// maxSampleSize is the number of leading bytes read to estimate a row count
	maxSampleSize = 5 * 1024 * 1024
	// maxChunkSize is the size of a single read while sampling
	maxChunkSize = 1024 * 1024
)

// FilterItem is a query filter pushed down by the query engine. Estimates
// are only made for unfiltered counts, so its content is not inspected.
type FilterItem interface {
	String() string
}

// ExecuteCountQuery answers a COUNT(*) over table. It returns ok == false
// when the caller must fall back to a full scan: approximation is not
// allowed, filters are present, or the resource size is unknown.
//
// The estimate extrapolates the line count of the first 5 MiB to the whole
// resource. Files with very uneven line lengths are estimated poorly.
func (dc *DataContext) ExecuteCountQuery(ctx context.Context, table *model.Table, filters []FilterItem, approximationAllowed bool) (int64, bool, error) {
	if !approximationAllowed || len(filters) > 0 {
		return 0, false, nil
	}
	count, ok, err := dc.ApproximateCount(ctx)
	if err != nil {
		ec := NewErrorContext("count", dc.resource.Name())
		if table != nil {
			ec = ec.WithTable(table.Name())
		}
		return 0, false, ec.Error(err)
	}
	return count, ok, nil
}

// ApproximateCount estimates the number of lines of the resource from a
// bounded sample of its leading bytes.
func (dc *DataContext) ApproximateCount(ctx context.Context) (int64, bool, error) {
	size, ok := dc.resource.Size()
	if !ok {
		return 0, false, nil
	}
	if size <= 0 {
		return 0, true, nil
	}

	sampleSize := min(size, maxSampleSize)
	chunkSize := min(sampleSize, maxChunkSize)

	sample, err := resource.Read(ctx, dc.resource, func(r io.Reader) (lineSample, error) {
		return dc.sampleLines(ctx, r, sampleSize, chunkSize)
	})
	if err != nil {
		return 0, false, err
	}

	lines := max(sample.newlines, sample.carriageReturns)
	estimate := extrapolate(lines, size, sampleSize)

	dc.logger.InfoContext(ctx, "estimated row count",
		slog.String("resource", dc.resource.Name()),
		slog.Int64("lines", lines),
		slog.Int64("sampleSize", sampleSize),
		slog.Int64("sampleRead", sample.read),
		slog.Int64("estimate", estimate),
	)
	return estimate, true, nil
}

// lineSample holds the line break counts of a sampled prefix.
type lineSample struct {
	read            int64
	newlines        int64
	carriageReturns int64
}

// sampleLines reads up to sampleSize bytes in chunks and counts the line
// breaks of the decoded text.
func (dc *DataContext) sampleLines(ctx context.Context, r io.Reader, sampleSize, chunkSize int64) (lineSample, error) {
	var (
		sample lineSample
		buf    = make([]byte, chunkSize)
	)
	for sample.read < sampleSize {
		if err := ctx.Err(); err != nil {
			return sample, err
		}
		n, readErr := io.ReadFull(r, buf[:min(chunkSize, sampleSize-sample.read)])
		if n > 0 {
			text, err := dc.decodeChunk(buf[:n])
			if err != nil {
				return sample, err
			}
			for _, c := range text {
				switch c {
				case '\n':
					sample.newlines++
				case '\r':
					sample.carriageReturns++
				}
			}
			sample.read += int64(n)
		}
		if errors.Is(readErr, io.EOF) || errors.Is(readErr, io.ErrUnexpectedEOF) {
			return sample, nil
		}
		if readErr != nil {
			return sample, wrapIO(readErr)
		}
	}
	return sample, nil
}

// decodeChunk decodes a sampled chunk with the configured encoding, retrying
// with UTF-8. When both fail the first error is returned.
func (dc *DataContext) decodeChunk(chunk []byte) ([]byte, error) {
	enc, err := dc.configuration.TextEncoding()
	if err == nil {
		var text []byte
		if text, err = enc.NewDecoder().Bytes(chunk); err == nil {
			return text, nil
		}
	}
	if text, fallbackErr := unicode.UTF8.NewDecoder().Bytes(chunk); fallbackErr == nil {
		return text, nil
	}
	return nil, wrapIO(err)
}

// extrapolate computes floor(lines * size / sampleSize) without overflow.
func extrapolate(lines, size, sampleSize int64) int64 {
	if lines <= 0 || size <= 0 || sampleSize <= 0 {
		return 0
	}
	lines = min(lines, sampleSize)
	hi, lo := bits.Mul64(uint64(lines), uint64(size))
	quo, _ := bits.Div64(hi, lo, uint64(sampleSize))
	return int64(quo) //nolint:gosec // quo <= size since lines <= sampleSize
}
