// Package cmd provides the Cobra commands for the bundlecost CLI.
package cmd

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/bundlecost/bundlecost/cli/output"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"

	// Global flags
	serverURL string
	outputFmt string
	noHeaders bool
	quiet     bool
	debug     bool

	// Shared across commands
	formatter *output.Formatter
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "bundlecost",
	Short: "Measure the real bundle cost of JavaScript imports",
	Long: `bundlecost measures the tree-shaken bundle footprint (minified and
gzip bytes) of specific import signatures from JavaScript/TypeScript
packages, by synthesizing a minimal entry module and bundling it
in-process.

Get started:
  bundlecost measure react            Measure a whole package
  bundlecost measure "lodash-es:debounce,throttle"
                                      Measure only specific named imports
  bundlecost serve                    Run the measurement daemon`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceErrors = quiet

		zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
		if debug {
			zerolog.SetGlobalLevel(zerolog.DebugLevel)
		} else {
			zerolog.SetGlobalLevel(zerolog.WarnLevel)
		}

		format, err := output.ParseFormat(outputFmt)
		if err != nil {
			return err
		}
		formatter = output.NewFormatter(format, noHeaders, quiet)
		return nil
	},
}

// Execute runs the CLI
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global persistent flags
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "",
		"bundlecost daemon URL (measure against a running daemon instead of in-process)")
	rootCmd.PersistentFlags().StringVarP(&outputFmt, "output", "o", "table",
		"output format: table, json, yaml")
	rootCmd.PersistentFlags().BoolVar(&noHeaders, "no-headers", false,
		"hide table headers")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false,
		"minimal output")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false,
		"enable debug output")

	// Bind environment variables
	viper.SetEnvPrefix("BUNDLECOST")
	_ = viper.BindEnv("server") // BUNDLECOST_SERVER
	_ = viper.BindEnv("debug")  // BUNDLECOST_DEBUG

	// Add subcommands
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(measureCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(cacheCmd)
}

// daemonURL resolves the daemon address from the flag or environment.
func daemonURL() string {
	if serverURL != "" {
		return serverURL
	}
	return viper.GetString("server")
}
