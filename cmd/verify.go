package cmd

import (
	"github.com/spf13/cobra"

	"github.com/deploymenttheory/go-avb/pkg/app"
	"github.com/deploymenttheory/go-avb/pkg/app/verify"
	"github.com/deploymenttheory/go-avb/pkg/services"
)

var (
	verifySlot          string
	verifyPartitionsDir string
	verifyNoOptions     bool
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify a slot and print the resulting kernel command line",
	Long: `Verify the vbmeta image of a slot, every partition it chains to and
every partition covered by a hash descriptor.

Trusted keys, stored rollback indexes, the lock state and partition GUIDs
come from the device configuration file.

Examples:
  # Verify slot _a of a device dump
  go-avb verify --slot _a --partitions-dir ./dump

  # Verify a device without A/B slots, printing JSON
  go-avb verify --config device.yaml -o json`,

	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runVerify()
	},
}

func init() {
	rootCmd.AddCommand(verifyCmd)

	verifyCmd.Flags().StringVarP(&verifySlot, "slot", "s", "", "slot suffix, e.g. _a")
	verifyCmd.Flags().StringVarP(&verifyPartitionsDir, "partitions-dir", "d", "", "directory of <partition>.img files (overrides config)")
	verifyCmd.Flags().BoolVar(&verifyNoOptions, "no-cmdline-options", false, "do not append androidboot.* options to the command line")
}

func runVerify() error {
	ctx := newContext()

	config, err := services.LoadDeviceConfig(ctx.ConfigPath)
	if err != nil {
		return app.NewError(app.ErrCodeInvalidInput, "failed to load device configuration", err)
	}
	if verifyPartitionsDir != "" {
		config.PartitionsDir = verifyPartitionsDir
	}

	request := &verify.Request{
		Device:             config,
		Slot:               app.SlotTarget{Suffix: verifySlot},
		SkipCmdlineOptions: verifyNoOptions,
	}

	response, err := verify.Handle(ctx, request)
	if err != nil {
		return err
	}
	ctx.Log(verify.FormatSummary(response))

	if err := verify.FormatOutput(ctx.Out, response, ctx.OutputFormat); err != nil {
		return err
	}
	if !response.Verified {
		return app.NewError(app.ErrCodeVerificationFailed, "slot verification failed", nil)
	}
	return nil
}
