package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/deploymenttheory/go-avb/pkg/app"
)

var (
	// Global output flags
	verbose      bool
	quiet        bool
	outputFormat string
	configPath   string
)

var rootCmd = &cobra.Command{
	Use:   "go-avb",
	Short: "Android Verified Boot image verifier",
	Long: `go-avb verifies Android Verified Boot (AVB) metadata the way a
bootloader does: it checks vbmeta signatures, follows chained partitions,
enforces rollback indexes and assembles the kernel command line.

Partitions are read from image files named <partition>.img in a directory,
so slots can be verified from a device dump without flashing it.

Commands:
  verify              Verify a slot and print the resulting command line
  inspect             Print the header and descriptors of a vbmeta image
  property            Look up a property descriptor
  extract-public-key  Convert a PEM key to an AVB public key block`,
	Version:       "0.1.0-dev",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose && quiet {
			return fmt.Errorf("--verbose and --quiet cannot be combined")
		}
		newContext().ConfigureLogging()
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress output except errors")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table", "output format (table, json, yaml)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "device configuration file (default: search for avb-config.yaml)")
}

// newContext builds the application context from the global flags
func newContext() *app.Context {
	ctx := app.NewContext()
	ctx.OutputFormat = outputFormat
	ctx.Verbose = verbose
	ctx.Quiet = quiet
	ctx.ConfigPath = configPath
	return ctx
}
