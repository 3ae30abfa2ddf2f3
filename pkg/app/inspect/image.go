package inspect

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/deploymenttheory/go-avb/internal/parsers/vbmeta"
	"github.com/deploymenttheory/go-avb/internal/types"
)

// LoadImage reads the vbmeta image stored in path. A file that does not
// start with the vbmeta magic is treated as a partition image and the
// vbmeta image is located through its footer.
func LoadImage(path string) ([]byte, *types.Footer, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to stat image: %w", err)
	}
	size := stat.Size()

	magic := make([]byte, types.VBMetaMagicLen)
	if _, err := file.ReadAt(magic, 0); err == nil && bytes.Equal(magic, []byte(types.VBMetaMagic)) {
		n := size
		if n > types.VBMetaMaxSize {
			n = types.VBMetaMaxSize
		}
		data := make([]byte, n)
		if _, err := file.ReadAt(data, 0); err != nil && err != io.EOF {
			return nil, nil, fmt.Errorf("failed to read vbmeta image: %w", err)
		}
		return data, nil, nil
	}

	if size < types.FooterSize {
		return nil, nil, fmt.Errorf("image of %d bytes has neither vbmeta magic nor footer", size)
	}
	raw := make([]byte, types.FooterSize)
	if _, err := file.ReadAt(raw, size-types.FooterSize); err != nil {
		return nil, nil, fmt.Errorf("failed to read footer: %w", err)
	}
	footer, err := vbmeta.ParseFooter(raw)
	if err != nil {
		return nil, nil, err
	}
	if footer.VBMetaSize > types.VBMetaMaxSize || footer.VBMetaOffset > uint64(size) ||
		footer.VBMetaSize > uint64(size)-footer.VBMetaOffset {
		return nil, nil, fmt.Errorf("footer points outside the image: offset %d size %d", footer.VBMetaOffset, footer.VBMetaSize)
	}

	data := make([]byte, footer.VBMetaSize)
	if _, err := file.ReadAt(data, int64(footer.VBMetaOffset)); err != nil {
		return nil, nil, fmt.Errorf("failed to read vbmeta image: %w", err)
	}
	return data, footer, nil
}
