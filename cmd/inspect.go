package cmd

import (
	"github.com/spf13/cobra"

	"github.com/deploymenttheory/go-avb/pkg/app/inspect"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect [image-path]",
	Short: "Print the header and descriptors of a vbmeta image",
	Long: `Decode a vbmeta image, or a partition image carrying a vbmeta footer,
and print its header fields and descriptors.

The signature is checked against the key embedded in the image only.

Examples:
  go-avb inspect vbmeta.img
  go-avb inspect system.img -o yaml`,

	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := newContext()
		response, err := inspect.Handle(ctx, &inspect.Request{ImagePath: args[0]})
		if err != nil {
			return err
		}
		return inspect.FormatOutput(ctx.Out, response, ctx.OutputFormat)
	},
}

var propertyAsUint64 bool

var propertyCmd = &cobra.Command{
	Use:   "property [image-path] [key]",
	Short: "Look up a property descriptor",
	Long: `Print the value of the first property descriptor with the given key.

Examples:
  go-avb property vbmeta.img com.android.build.boot.os_version
  go-avb property vbmeta.img com.example.counter --uint64`,

	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := newContext()
		response, err := inspect.HandleProperty(ctx, &inspect.PropertyRequest{
			ImagePath: args[0],
			Key:       args[1],
			AsUint64:  propertyAsUint64,
		})
		if err != nil {
			return err
		}
		return inspect.FormatProperty(ctx.Out, response, ctx.OutputFormat)
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd, propertyCmd)

	propertyCmd.Flags().BoolVar(&propertyAsUint64, "uint64", false, "parse the value as a decimal or 0x-prefixed integer")
}
