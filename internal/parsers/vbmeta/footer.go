package vbmeta

import (
	"errors"
	"fmt"

	"github.com/deploymenttheory/go-avb/internal/helpers"
	"github.com/deploymenttheory/go-avb/internal/interfaces"
	"github.com/deploymenttheory/go-avb/internal/types"
)

// ErrInvalidFooter is returned for a malformed vbmeta footer.
var ErrInvalidFooter = errors.New("invalid vbmeta footer")

// footerReader implements the FooterReader interface
type footerReader struct {
	footer *types.Footer
}

// NewFooterReader parses the 64-byte footer at the start of data
func NewFooterReader(data []byte) (interfaces.FooterReader, error) {
	footer, err := ParseFooter(data)
	if err != nil {
		return nil, err
	}
	return &footerReader{footer: footer}, nil
}

// ParseFooter decodes and validates a footer. Only the major version must
// match; larger minor versions are accepted.
func ParseFooter(data []byte) (*types.Footer, error) {
	if len(data) < types.FooterSize {
		return nil, fmt.Errorf("%w: %d bytes is smaller than a footer", ErrInvalidFooter, len(data))
	}
	if string(data[:types.FooterMagicLen]) != types.FooterMagic {
		return nil, fmt.Errorf("%w: magic is incorrect", ErrInvalidFooter)
	}

	f := &types.Footer{}
	copy(f.Magic[:], data[0:4])
	f.VersionMajor = helpers.BE32(data[4:8])
	f.VersionMinor = helpers.BE32(data[8:12])
	f.OriginalImageSize = helpers.BE64(data[12:20])
	f.VBMetaOffset = helpers.BE64(data[20:28])
	f.VBMetaSize = helpers.BE64(data[28:36])
	copy(f.Reserved[:], data[36:64])

	if f.VersionMajor != types.FooterVersionMajor {
		return nil, fmt.Errorf("%w: unsupported major version %d", ErrInvalidFooter, f.VersionMajor)
	}
	return f, nil
}

// EncodeFooter serializes f. Magic and versions are filled in when unset.
func EncodeFooter(f *types.Footer) []byte {
	data := make([]byte, types.FooterSize)
	copy(data[0:4], types.FooterMagic)
	major := f.VersionMajor
	if major == 0 {
		major = types.FooterVersionMajor
	}
	helpers.PutBE32(data[4:8], major)
	helpers.PutBE32(data[8:12], f.VersionMinor)
	helpers.PutBE64(data[12:20], f.OriginalImageSize)
	helpers.PutBE64(data[20:28], f.VBMetaOffset)
	helpers.PutBE64(data[28:36], f.VBMetaSize)
	copy(data[36:64], f.Reserved[:])
	return data
}

func (fr *footerReader) Footer() *types.Footer {
	return fr.footer
}

func (fr *footerReader) OriginalImageSize() uint64 {
	return fr.footer.OriginalImageSize
}

func (fr *footerReader) VBMetaOffset() uint64 {
	return fr.footer.VBMetaOffset
}

func (fr *footerReader) VBMetaSize() uint64 {
	return fr.footer.VBMetaSize
}
