package output

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/chrisdamba/bhtraffic/internal/models"
)

// ConsoleOutput prints a summary and the top locations as an aligned table.
type ConsoleOutput struct {
	w    io.Writer
	opts Options
}

func NewConsoleOutput(w io.Writer, opts Options) *ConsoleOutput {
	return &ConsoleOutput{w: w, opts: opts}
}

func (c *ConsoleOutput) WriteReport(ctx context.Context, r Report) error {
	stats := r.Result.Stats
	fmt.Fprintf(c.w, "query %s  filter %s\n", r.QueryID, r.Filter.Key())
	fmt.Fprintf(c.w, "locations %d  vehicles %d  matched %d  scanned %d  rejected %d\n",
		len(r.Result.Locations), stats.Total, stats.Matched, stats.Scanned, stats.Rejected)

	if r.Result.Empty() {
		_, err := fmt.Fprintln(c.w, "no traffic matched the filter")
		return err
	}

	top := r.Result.Locations
	if c.opts.TopN > 0 {
		top = r.Result.TopN(c.opts.TopN)
	}
	tw := tabwriter.NewWriter(c.w, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(tw, "RANK\tLONGITUDE\tLATITUDE\tCOUNT\t%s\n", c.insideHeader())
	for i, l := range c.opts.project(top) {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\n", i+1,
			models.FormatCoordinate(l.Lon), models.FormatCoordinate(l.Lat), l.Count, c.inside(top[i]))
	}
	return tw.Flush()
}

func (c *ConsoleOutput) insideHeader() string {
	if c.opts.Boundary == nil {
		return ""
	}
	return "IN " + c.opts.Boundary.Name()
}

func (c *ConsoleOutput) inside(l models.LocationCount) string {
	if c.opts.Boundary == nil {
		return ""
	}
	if c.opts.Boundary.Contains(l.Location) {
		return "yes"
	}
	return "no"
}

func (c *ConsoleOutput) Close() error { return nil }
