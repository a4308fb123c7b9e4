package cmd

import (
	"fmt"
	"os"

	"github.com/chrisdamba/bhtraffic/internal/logging"
	"github.com/chrisdamba/bhtraffic/internal/models"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	v       = viper.New()
	cfg     *models.Config
)

var rootCmd = &cobra.Command{
	Use:   "bhtraffic",
	Short: "Filters and aggregates Belo Horizonte vehicle counts",
	Long: `bhtraffic reads the vehicle counts recorded by the traffic sensors of Belo Horizonte,
filters them by date, hour and vehicle class, and sums the counts per sensor location.
Results go to the console, files, S3, Kafka or an HTTP API.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := models.LoadConfig(v, cfgFile)
		if err != nil {
			return fmt.Errorf("error loading config: %w", err)
		}
		if err := logging.Configure(loaded.Logging, cmd.ErrOrStderr()); err != nil {
			return err
		}
		if used := v.ConfigFileUsed(); used != "" {
			logging.Component("cmd").WithField("file", used).Debug("using config file")
		}
		cfg = loaded
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./bhtraffic.yaml or $HOME/bhtraffic.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "", "log format (text or json)")
	rootCmd.PersistentFlags().String("source", "", "source type (parquet, s3, postgres, sqlite)")
	rootCmd.PersistentFlags().String("source-path", "", "parquet file for the parquet source")

	bindFlag(rootCmd.PersistentFlags().Lookup("log-level"), "logging.level")
	bindFlag(rootCmd.PersistentFlags().Lookup("log-format"), "logging.format")
	bindFlag(rootCmd.PersistentFlags().Lookup("source"), "source.type")
	bindFlag(rootCmd.PersistentFlags().Lookup("source-path"), "source.path")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
