package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/chrisdamba/bhtraffic/internal/generator"
	"github.com/chrisdamba/bhtraffic/internal/models"
	"github.com/chrisdamba/bhtraffic/internal/source/parquetsrc"
	"github.com/chrisdamba/bhtraffic/internal/vehicleclass"
	"github.com/spf13/cobra"
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Write a synthetic vehicle count dataset as parquet",
	RunE: func(cmd *cobra.Command, args []string) error {
		out, _ := cmd.Flags().GetString("out")
		if out == "" {
			out = cfg.Source.Path
		}
		dates := cfg.Dataset.Bounds()
		if s, _ := cmd.Flags().GetString("from"); s != "" {
			d, err := models.ParseDate(s)
			if err != nil {
				return err
			}
			dates.From = d
		}
		if s, _ := cmd.Flags().GetString("to"); s != "" {
			d, err := models.ParseDate(s)
			if err != nil {
				return err
			}
			dates.To = d
		}

		classes, err := cfg.ClassTable()
		if err != nil {
			return err
		}
		if len(cfg.Generator.ClassCodes) > 0 {
			if classes, err = vehicleclass.TableFromLabels(cfg.Generator.ClassCodes); err != nil {
				return err
			}
		}
		loc, err := cfg.Location()
		if err != nil {
			return err
		}

		gen, err := generator.New(cfg.Generator, classes, loc)
		if err != nil {
			return err
		}
		if quiet, _ := cmd.Flags().GetBool("quiet"); !quiet {
			gen.WithProgress(cmd.ErrOrStderr())
		}

		if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
		w, err := parquetsrc.CreateLocal(out)
		if err != nil {
			return err
		}
		w.SetRowGroupSize(cfg.Generator.RowGroupSize)

		summary, err := gen.Run(cmd.Context(), dates, w)
		if err != nil {
			w.Close()
			return err
		}
		if err := w.Close(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %d rows (%d vehicles, %d sensors) to %s\n",
			summary.Rows, summary.Vehicles, summary.Sensors, out)
		return nil
	},
}

func init() {
	flags := generateCmd.Flags()
	flags.String("out", "", "parquet file to write (default source.path)")
	flags.String("from", "", "first day (default dataset.min_date)")
	flags.String("to", "", "last day (default dataset.max_date)")
	flags.Int64("seed", 0, "random seed")
	flags.Int("sensors", 0, "number of sensors")
	flags.Float64("malformed-rate", 0, "share of rows with unparseable coordinates")
	flags.Bool("quiet", false, "hide the progress bar")

	bindFlag(flags.Lookup("seed"), "generator.seed")
	bindFlag(flags.Lookup("sensors"), "generator.sensors")
	bindFlag(flags.Lookup("malformed-rate"), "generator.malformed_rate")

	rootCmd.AddCommand(generateCmd)
}
