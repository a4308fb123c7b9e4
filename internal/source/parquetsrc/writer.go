package parquetsrc

import (
	"fmt"

	"github.com/chrisdamba/bhtraffic/internal/models"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	pqsource "github.com/xitongsys/parquet-go/source"
	"github.com/xitongsys/parquet-go/writer"
)

// Writer appends traffic records in the Row layout. Callers that want
// month-aligned row groups call FlushRowGroup between months.
type Writer struct {
	file pqsource.ParquetFile
	pw   *writer.ParquetWriter
	rows int64
}

func NewWriter(file pqsource.ParquetFile) (*Writer, error) {
	pw, err := writer.NewParquetWriter(file, new(Row), defaultParallelism)
	if err != nil {
		return nil, fmt.Errorf("failed to create parquet writer: %w", err)
	}
	pw.RowGroupSize = 128 * 1024 * 1024
	pw.CompressionType = parquet.CompressionCodec_SNAPPY
	return &Writer{file: file, pw: pw}, nil
}

func CreateLocal(path string) (*Writer, error) {
	fw, err := local.NewLocalFileWriter(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create parquet file %s: %w", path, err)
	}
	w, err := NewWriter(fw)
	if err != nil {
		fw.Close()
		return nil, err
	}
	return w, nil
}

// SetRowGroupSize bounds row groups in bytes. Non-positive sizes are ignored.
func (w *Writer) SetRowGroupSize(size int64) {
	if size > 0 {
		w.pw.RowGroupSize = size
	}
}

func (w *Writer) Write(rec models.TrafficRecord) error {
	row := RowFrom(rec)
	if err := w.pw.Write(row); err != nil {
		return fmt.Errorf("failed to write parquet row: %w", err)
	}
	w.rows++
	return nil
}

func (w *Writer) FlushRowGroup() error {
	return w.pw.Flush(true)
}

func (w *Writer) Rows() int64 { return w.rows }

func (w *Writer) Close() error {
	if err := w.pw.WriteStop(); err != nil {
		w.file.Close()
		return fmt.Errorf("failed to finalize parquet file: %w", err)
	}
	return w.file.Close()
}
