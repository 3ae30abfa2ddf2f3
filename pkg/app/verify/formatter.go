package verify

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"
)

// FormatOutput writes the verification response in the requested format
func FormatOutput(w io.Writer, response *Response, format string) error {
	switch format {
	case "json":
		return formatJSON(w, response)
	case "yaml":
		return formatYAML(w, response)
	case "table":
		return formatTable(w, response)
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
}

func formatTable(out io.Writer, response *Response) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	slot := response.Slot
	if slot == "" {
		slot = "(none)"
	}
	fmt.Fprintf(w, "Slot:\t%s\n", slot)
	fmt.Fprintf(w, "Result:\t%s\n", response.Result)

	if !response.Verified {
		if response.FailedPartition != "" {
			fmt.Fprintf(w, "Partition:\t%s\n", response.FailedPartition)
		}
		fmt.Fprintf(w, "Error:\t%s\n", response.Error)
		return w.Flush()
	}

	fmt.Fprintf(w, "VBMeta:\t%s (sha256 %s)\n", humanize.IBytes(response.VBMetaSize), response.VBMetaDigest)
	if response.BootSize > 0 {
		fmt.Fprintf(w, "Boot:\t%s\n", humanize.IBytes(response.BootSize))
	}
	fmt.Fprintf(w, "Cmdline:\t%s\n", response.Cmdline)
	if err := w.Flush(); err != nil {
		return err
	}

	if len(response.RollbackIndexes) > 0 {
		fmt.Fprintf(out, "\n")
		w = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "SLOT\tROLLBACK INDEX\n")
		fmt.Fprintf(w, "----\t--------------\n")
		for _, idx := range response.RollbackIndexes {
			fmt.Fprintf(w, "%d\t%d\n", idx.Slot, idx.Value)
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}

	fmt.Fprintf(out, "\nVerified in %v\n", response.VerifyTime)
	return nil
}

func formatJSON(w io.Writer, response *Response) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(response)
}

func formatYAML(w io.Writer, response *Response) error {
	encoder := yaml.NewEncoder(w)
	defer encoder.Close()
	encoder.SetIndent(2)
	return encoder.Encode(response)
}

// FormatSummary provides a one-line summary for verbose output
func FormatSummary(response *Response) string {
	if !response.Verified {
		return fmt.Sprintf("Verification failed: %s", response.Result)
	}
	return fmt.Sprintf("Verified %s of vbmeta, %s of boot in %v",
		humanize.IBytes(response.VBMetaSize), humanize.IBytes(response.BootSize), response.VerifyTime)
}
