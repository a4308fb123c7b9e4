package output

import (
	"context"
	"encoding/csv"
	"io"
	"strconv"

	"github.com/chrisdamba/bhtraffic/internal/models"
)

// CSVOutput writes one row per location of every report.
type CSVOutput struct {
	sink   io.WriteCloser
	w      *csv.Writer
	opts   Options
	header bool
}

func NewCSVOutput(sink io.WriteCloser, opts Options) *CSVOutput {
	return &CSVOutput{sink: sink, w: csv.NewWriter(sink), opts: opts}
}

func (c *CSVOutput) WriteReport(ctx context.Context, r Report) error {
	if !c.header {
		if err := c.w.Write([]string{"QUERY_ID", "LONGITUDE", "LATITUDE", "COUNT"}); err != nil {
			return err
		}
		c.header = true
	}
	for _, l := range c.opts.project(r.Result.Locations) {
		row := []string{
			r.QueryID,
			models.FormatCoordinate(l.Lon),
			models.FormatCoordinate(l.Lat),
			strconv.FormatInt(l.Count, 10),
		}
		if err := c.w.Write(row); err != nil {
			return err
		}
	}
	c.w.Flush()
	return c.w.Error()
}

func (c *CSVOutput) Close() error {
	c.w.Flush()
	if err := c.w.Error(); err != nil {
		c.sink.Close()
		return err
	}
	return c.sink.Close()
}
