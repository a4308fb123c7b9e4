package parquetsrc

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	"github.com/chrisdamba/bhtraffic/internal/models"
	"github.com/chrisdamba/bhtraffic/internal/source"
	"github.com/sirupsen/logrus"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/reader"
	pqsource "github.com/xitongsys/parquet-go/source"
)

const (
	defaultBatchSize   = 4096
	defaultParallelism = 4
)

// Opener returns a fresh handle on the parquet object for each scan.
type Opener func(ctx context.Context) (pqsource.ParquetFile, error)

// Source reads traffic records from a parquet object. Row groups whose MONTH
// or CLASS statistics cannot match the pushdown hint are skipped without
// decoding.
type Source struct {
	name      string
	open      Opener
	batchSize int
	log       *logrus.Entry
}

func New(name string, open Opener) *Source {
	return &Source{
		name:      name,
		open:      open,
		batchSize: defaultBatchSize,
		log:       logrus.WithFields(logrus.Fields{"component": "parquet-source", "object": name}),
	}
}

// NewLocal reads the parquet file at path.
func NewLocal(path string) *Source {
	return New(path, func(ctx context.Context) (pqsource.ParquetFile, error) {
		return local.NewLocalFileReader(path)
	})
}

func (s *Source) String() string { return s.name }

func (s *Source) Scan(ctx context.Context, hint source.Pushdown, visit source.Visitor) error {
	fr, err := s.open(ctx)
	if err != nil {
		return fmt.Errorf("%w: open %s: %w", source.ErrSourceUnavailable, s.name, err)
	}
	defer fr.Close()

	pr, err := reader.NewParquetReader(fr, new(Row), defaultParallelism)
	if err != nil {
		return fmt.Errorf("%w: read footer of %s: %w", source.ErrSourceUnavailable, s.name, err)
	}
	defer pr.ReadStop()

	var skipped int
	for i, rg := range pr.Footer.RowGroups {
		if err := ctx.Err(); err != nil {
			return err
		}
		n := rg.GetNumRows()
		if !rowGroupAdmits(rg, hint) {
			if err := pr.SkipRows(n); err != nil {
				return fmt.Errorf("%w: skip row group %d of %s: %w", source.ErrSourceUnavailable, i, s.name, err)
			}
			skipped++
			continue
		}
		for done := int64(0); done < n; {
			size := int64(s.batchSize)
			if n-done < size {
				size = n - done
			}
			rows := make([]Row, size)
			if err := pr.Read(&rows); err != nil {
				return fmt.Errorf("%w: read row group %d of %s: %w", source.ErrSourceUnavailable, i, s.name, err)
			}
			for j := range rows {
				if !hint.Admits(int(rows[j].Month), rows[j].Class) {
					continue
				}
				if err := visit(rows[j].Record()); err != nil {
					if errors.Is(err, source.ErrStop) {
						return nil
					}
					return err
				}
			}
			done += size
		}
	}

	s.log.WithFields(logrus.Fields{
		"row_groups": len(pr.Footer.RowGroups),
		"skipped":    skipped,
	}).Debug("scanned parquet object")
	return nil
}

// rowGroupAdmits checks column statistics against the hint. Missing or
// unreadable statistics admit the row group.
func rowGroupAdmits(rg *parquet.RowGroup, hint source.Pushdown) bool {
	for _, col := range rg.GetColumns() {
		md := col.GetMetaData()
		if md == nil || len(md.PathInSchema) == 0 {
			continue
		}
		min, max, ok := statBounds(md.GetStatistics())
		if !ok {
			continue
		}
		switch column := md.PathInSchema[len(md.PathInSchema)-1]; {
		case strings.EqualFold(column, monthColumn) && len(hint.Months) > 0:
			if len(min) != 4 || len(max) != 4 {
				continue
			}
			lo := int(int32(binary.LittleEndian.Uint32(min)))
			hi := int(int32(binary.LittleEndian.Uint32(max)))
			// Month 0 is unknown and always admitted row by row.
			if lo > 0 && !anyMonthIn(hint.Months, lo, hi) {
				return false
			}
		case strings.EqualFold(column, classColumn) && len(hint.Classes) > 0:
			if !anyCodeIn(hint.Classes, min, max) {
				return false
			}
		}
	}
	return true
}

func statBounds(st *parquet.Statistics) (min, max []byte, ok bool) {
	if st == nil {
		return nil, nil, false
	}
	if st.MinValue != nil && st.MaxValue != nil {
		return st.MinValue, st.MaxValue, true
	}
	if st.Min != nil && st.Max != nil {
		return st.Min, st.Max, true
	}
	return nil, nil, false
}

func anyMonthIn(months []int, lo, hi int) bool {
	for _, m := range months {
		if m >= lo && m <= hi {
			return true
		}
	}
	return false
}

func anyCodeIn(codes []string, min, max []byte) bool {
	for _, c := range codes {
		b := []byte(c)
		if bytes.Compare(b, min) >= 0 && bytes.Compare(b, max) <= 0 {
			return true
		}
	}
	return false
}

var _ source.Source = (*Source)(nil)

// ReadAll is a convenience for tools and tests.
func ReadAll(ctx context.Context, src source.Source) ([]models.TrafficRecord, error) {
	var out []models.TrafficRecord
	err := src.Scan(ctx, source.Pushdown{}, func(rec models.TrafficRecord) error {
		out = append(out, rec)
		return nil
	})
	return out, err
}
