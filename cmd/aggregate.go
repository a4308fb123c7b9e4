package cmd

import (
	"time"

	"github.com/chrisdamba/bhtraffic/internal/models"
	"github.com/chrisdamba/bhtraffic/internal/output"
	"github.com/lucsky/cuid"
	"github.com/spf13/cobra"
)

var aggregateCmd = &cobra.Command{
	Use:   "aggregate",
	Short: "Sum vehicle counts per location for a filter",
	Example: `  bhtraffic aggregate --from 2022-01-01 --to 2022-01-31 --class car --class motorcycle
  bhtraffic aggregate --from-hour 07:00 --to-hour 09:59 --format geojson --out peak.geojson`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		input := models.FilterInput{}
		input.From, _ = cmd.Flags().GetString("from")
		input.To, _ = cmd.Flags().GetString("to")
		input.FromHour, _ = cmd.Flags().GetString("from-hour")
		input.ToHour, _ = cmd.Flags().GetString("to-hour")
		input.Classes, _ = cmd.Flags().GetStringSlice("class")
		checkClasses, _ := cmd.Flags().GetBool("check-classes")

		a, err := newApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		filter, err := input.Filter(a.bounds())
		if err != nil {
			return err
		}
		if checkClasses {
			if err := a.checkClasses(ctx); err != nil {
				return err
			}
		}

		q, err := a.querier(ctx)
		if err != nil {
			return err
		}
		result, err := q.Aggregate(ctx, a.src, filter)
		if err != nil {
			return err
		}

		w, err := output.New(ctx, cfg, output.Deps{Stdout: cmd.OutOrStdout(), Boundary: a.boundary()})
		if err != nil {
			return err
		}
		report := output.Report{QueryID: cuid.New(), Filter: filter, Result: result, GeneratedAt: time.Now().UTC()}
		if err := w.WriteReport(ctx, report); err != nil {
			w.Close()
			return err
		}
		return w.Close()
	},
}

func init() {
	flags := aggregateCmd.Flags()
	flags.String("from", "", "first day, YYYY-MM-DD (default dataset.min_date)")
	flags.String("to", "", "last day, inclusive (default dataset.max_date)")
	flags.String("from-hour", "", "first hour, H or HH:MM (default 0)")
	flags.String("to-hour", "", "last hour, inclusive (default 23)")
	flags.StringSlice("class", nil, "vehicle class label, repeatable: BUS/TRUCK, CAR, MOTORCYCLE, UNDEFINED (default all)")
	flags.Bool("check-classes", false, "compare the class table with the source before querying")
	flags.String("format", "", "output format: console, csv, json, geojson, parquet, kafka")
	flags.String("out", "", "output file, s3://bucket/key, or - for stdout")
	flags.Int("top", 0, "number of top locations to highlight")
	flags.String("crs", "", "output CRS: EPSG:4326 or EPSG:3857")

	bindFlag(flags.Lookup("format"), "output.format")
	bindFlag(flags.Lookup("out"), "output.path")
	bindFlag(flags.Lookup("top"), "output.top_n")
	bindFlag(flags.Lookup("crs"), "output.crs")

	rootCmd.AddCommand(aggregateCmd)
}
