package main

import (
	"errors"
	"fmt"
	"os"
	"runtime"

	"github.com/iwvelando/curve-factors/pkg/constants"
	"github.com/spf13/cobra"
)

var (
	// Build information, set with -ldflags.
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"

	configFile string
	logLevel   string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "curve-factors",
	Short: "Completes yield curves and derives actuarial discount factors",
	Long: "curve-factors turns raw yield curve observations and monthly inflation rates into " +
		"the curve factor and inflation index tables consumed by the reserve engine.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "curve-factors %s\n", Version)
		fmt.Fprintf(out, "Built: %s, from commit: %s\n", BuildTime, GitCommit)
		fmt.Fprintf(out, "Go version: %s\n", runtime.Version())
		fmt.Fprintf(out, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", constants.DefaultConfigFile, "path to configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level override (debug, info, warn, error)")

	rootCmd.AddCommand(newBuildCommand())
	rootCmd.AddCommand(newValidateCommand())
	rootCmd.AddCommand(newServeCommand())
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}
