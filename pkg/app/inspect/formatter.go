package inspect

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"
)

// FormatOutput writes the inspection response in the requested format
func FormatOutput(w io.Writer, response *Response, format string) error {
	switch format {
	case "json":
		return encodeJSON(w, response)
	case "yaml":
		return encodeYAML(w, response)
	case "table":
		return formatTable(w, response)
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
}

// FormatProperty writes a property lookup result in the requested format
func FormatProperty(w io.Writer, response *PropertyResponse, format string) error {
	switch format {
	case "json":
		return encodeJSON(w, response)
	case "yaml":
		return encodeYAML(w, response)
	case "table":
		if response.Uint64 != nil {
			_, err := fmt.Fprintf(w, "%s: %d\n", response.Key, *response.Uint64)
			return err
		}
		_, err := fmt.Fprintf(w, "%s: %s\n", response.Key, response.Value)
		return err
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
}

func formatTable(out io.Writer, response *Response) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	h := response.Header

	if f := response.Footer; f != nil {
		fmt.Fprintf(w, "Footer version:\t%s\n", f.Version)
		fmt.Fprintf(w, "Original image size:\t%s\n", humanize.IBytes(f.OriginalImageSize))
		fmt.Fprintf(w, "VBMeta offset:\t%d\n", f.VBMetaOffset)
		fmt.Fprintf(w, "VBMeta size:\t%d\n", f.VBMetaSize)
	}
	fmt.Fprintf(w, "Minimum libavb version:\t%s\n", h.RequiredVersion)
	fmt.Fprintf(w, "Header block:\t256 bytes\n")
	fmt.Fprintf(w, "Authentication block:\t%d bytes\n", h.AuthenticationSize)
	fmt.Fprintf(w, "Auxiliary block:\t%d bytes\n", h.AuxiliarySize)
	if h.PublicKeySHA256 != "" {
		fmt.Fprintf(w, "Public key (sha256):\t%s (%d bits)\n", h.PublicKeySHA256, h.PublicKeyBits)
	}
	fmt.Fprintf(w, "Algorithm:\t%s\n", h.Algorithm)
	fmt.Fprintf(w, "Rollback index:\t%d\n", h.RollbackIndex)
	fmt.Fprintf(w, "Rollback index location:\t%d\n", h.RollbackIndexLocation)
	fmt.Fprintf(w, "Flags:\t%d\n", h.Flags)
	fmt.Fprintf(w, "Release string:\t%q\n", h.ReleaseString)
	fmt.Fprintf(w, "Verification:\t%s\n", response.Verification)
	if err := w.Flush(); err != nil {
		return err
	}

	if len(response.Descriptors) == 0 {
		fmt.Fprintf(out, "\nNo descriptors.\n")
		return nil
	}

	fmt.Fprintf(out, "\nDescriptors:\n")
	for _, d := range response.Descriptors {
		fmt.Fprintf(out, "    %s descriptor:\n", d.Type)
		w = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		for _, row := range descriptorRows(d) {
			fmt.Fprintf(w, "      %s:\t%s\n", row[0], row[1])
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}
	return nil
}

func descriptorRows(d DescriptorInfo) [][2]string {
	var rows [][2]string
	add := func(name, value string) {
		if value != "" {
			rows = append(rows, [2]string{name, value})
		}
	}

	switch d.Type {
	case "hash", "hashtree":
		add("Partition Name", d.Partition)
		add("Image Size", fmt.Sprintf("%d bytes", d.ImageSize))
		if d.Type == "hashtree" {
			add("Tree Offset", fmt.Sprintf("%d", d.TreeOffset))
			add("Tree Size", fmt.Sprintf("%d bytes", d.TreeSize))
			add("Data Block Size", fmt.Sprintf("%d bytes", d.DataBlockSize))
		}
		add("Hash Algorithm", d.HashAlgorithm)
		add("Salt", d.Salt)
		add("Digest", d.Digest)
		add("Flags", fmt.Sprintf("%d", d.Flags))
	case "chain_partition":
		add("Partition Name", d.Partition)
		add("Rollback Index Location", fmt.Sprintf("%d", d.RollbackIndexLocation))
		add("Public key (sha256)", d.PublicKeySHA256)
		add("Flags", fmt.Sprintf("%d", d.Flags))
	case "kernel_cmdline":
		add("Flags", fmt.Sprintf("%d", d.Flags))
		add("Kernel Cmdline", fmt.Sprintf("%q", d.Cmdline))
	case "property":
		add("Key", d.Key)
		add("Value", d.Value)
	default:
		add("Size", fmt.Sprintf("%d bytes", d.Size))
	}
	return rows
}

func encodeJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func encodeYAML(w io.Writer, v any) error {
	encoder := yaml.NewEncoder(w)
	defer encoder.Close()
	encoder.SetIndent(2)
	return encoder.Encode(v)
}
