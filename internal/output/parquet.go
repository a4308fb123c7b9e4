package output

import (
	"context"
	"fmt"
	"io"

	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/source"
	"github.com/xitongsys/parquet-go/writer"
)

type resultRow struct {
	QueryID string  `parquet:"name=query_id,type=BYTE_ARRAY,convertedtype=UTF8"`
	Rank    int32   `parquet:"name=rank,type=INT32"`
	Lon     float64 `parquet:"name=lon,type=DOUBLE"`
	Lat     float64 `parquet:"name=lat,type=DOUBLE"`
	Count   int64   `parquet:"name=count,type=INT64"`
}

// ParquetOutput writes every location of every report to one parquet file.
type ParquetOutput struct {
	file source.ParquetFile
	pw   *writer.ParquetWriter
	opts Options
}

func NewParquetOutput(sink io.WriteCloser, opts Options) (*ParquetOutput, error) {
	file, ok := sink.(source.ParquetFile)
	if !ok {
		file = NewCloudParquetFile(sink)
	}
	pw, err := writer.NewParquetWriter(file, new(resultRow), 4)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to create ParquetWriter: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY
	return &ParquetOutput{file: file, pw: pw, opts: opts}, nil
}

func (p *ParquetOutput) WriteReport(ctx context.Context, r Report) error {
	for i, l := range p.opts.project(r.Result.Locations) {
		row := resultRow{QueryID: r.QueryID, Rank: int32(i + 1), Lon: l.Lon, Lat: l.Lat, Count: l.Count}
		if err := p.pw.Write(row); err != nil {
			return fmt.Errorf("failed to write result row: %w", err)
		}
	}
	return nil
}

func (p *ParquetOutput) Close() error {
	if err := p.pw.WriteStop(); err != nil {
		p.file.Close()
		return fmt.Errorf("failed to finalize parquet output: %w", err)
	}
	return p.file.Close()
}

// CloudParquetFile adapts a write-only stream, such as an S3 object, to the
// parquet writer. The writer only appends, so Seek just tracks the offset.
type CloudParquetFile struct {
	w      io.WriteCloser
	offset int64
}

func NewCloudParquetFile(w io.WriteCloser) *CloudParquetFile {
	return &CloudParquetFile{w: w}
}

func (c *CloudParquetFile) Open(name string) (source.ParquetFile, error) { return c, nil }

func (c *CloudParquetFile) Create(name string) (source.ParquetFile, error) { return c, nil }

func (c *CloudParquetFile) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	case io.SeekStart:
		c.offset = offset
	case io.SeekCurrent:
		c.offset += offset
	default:
		return 0, fmt.Errorf("seek from end not supported for streamed output")
	}
	return c.offset, nil
}

func (c *CloudParquetFile) Read(p []byte) (int, error) {
	return 0, fmt.Errorf("read not supported for streamed output")
}

func (c *CloudParquetFile) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.offset += int64(n)
	return n, err
}

func (c *CloudParquetFile) Close() error { return c.w.Close() }
