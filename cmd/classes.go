package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var classesCmd = &cobra.Command{
	Use:   "classes",
	Short: "Show the vehicle class table and check it against the source",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "LABEL\tCODE")
		for _, e := range a.classes.Entries() {
			fmt.Fprintf(tw, "%s\t%s\n", e.Class, e.Code)
		}
		if err := tw.Flush(); err != nil {
			return err
		}

		if check, _ := cmd.Flags().GetBool("check"); !check {
			return nil
		}
		if err := a.checkClasses(ctx); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "class table checked against the source")
		return nil
	},
}

func init() {
	classesCmd.Flags().Bool("check", false, "scan the source for its class codes")
	rootCmd.AddCommand(classesCmd)
}
