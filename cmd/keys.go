package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/deploymenttheory/go-avb/internal/device"
	"github.com/deploymenttheory/go-avb/pkg/app"
)

var extractKeyOutput string

var extractKeyCmd = &cobra.Command{
	Use:   "extract-public-key [key-path]",
	Short: "Convert a PEM key to an AVB public key block",
	Long: `Read a PEM encoded RSA public or private key and write the public part
in the AVB public key block format used by chain partition descriptors and
the trusted_keys configuration setting.

Examples:
  go-avb extract-public-key testkey_rsa4096.pem --out testkey.avbpubkey`,

	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := newContext()

		blob, err := device.LoadPublicKey(args[0])
		if err != nil {
			return app.NewError(app.ErrCodeInvalidInput, "failed to load key", err)
		}

		if extractKeyOutput == "" {
			_, err = ctx.Out.Write(blob)
			return err
		}
		if err := os.WriteFile(extractKeyOutput, blob, 0o644); err != nil {
			return fmt.Errorf("failed to write public key: %w", err)
		}
		ctx.Log(fmt.Sprintf("Wrote %d byte public key to %s", len(blob), extractKeyOutput))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(extractKeyCmd)

	extractKeyCmd.Flags().StringVar(&extractKeyOutput, "out", "", "output file (default: stdout)")
}
