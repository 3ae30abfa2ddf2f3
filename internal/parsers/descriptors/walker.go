package descriptors

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/deploymenttheory/go-avb/internal/helpers"
	"github.com/deploymenttheory/go-avb/internal/types"
)

var (
	// ErrInvalidImage is returned when the walker is handed something that is
	// not a vbmeta image.
	ErrInvalidImage = errors.New("invalid vbmeta image")

	// ErrDescriptorsOutOfBounds is returned when the descriptor region or a
	// record inside it does not fit the image.
	ErrDescriptorsOutOfBounds = errors.New("descriptors not inside passed-in data")
)

// Visitor is called for each raw descriptor record. The record slice covers
// the header and the declared payload; it is not tag-validated. Returning
// false stops the walk.
type Visitor func(record []byte, hdr types.DescriptorHeader) bool

// ForEach walks the descriptor region of a vbmeta image. It returns
// completed=false with a nil error when the visitor stopped the walk early.
// Header fields are re-read from image and every offset is bounds checked,
// so image does not need to have passed verification.
func ForEach(image []byte, visit Visitor) (completed bool, err error) {
	if visit == nil {
		return false, fmt.Errorf("%w: nil visitor", ErrInvalidImage)
	}

	region, err := descriptorRegion(image)
	if err != nil {
		return false, err
	}

	for p := uint64(0); p < uint64(len(region)); {
		remaining := region[p:]
		if len(remaining) < types.DescriptorHeaderSize {
			return false, fmt.Errorf("%w: %d trailing bytes at offset %d", ErrDescriptorsOutOfBounds, len(remaining), p)
		}

		hdr := types.DescriptorHeader{
			Tag:               types.DescriptorTag(helpers.BE64(remaining[0:8])),
			NumBytesFollowing: helpers.BE64(remaining[8:16]),
		}

		total, ok := helpers.SafeAdd(types.DescriptorHeaderSize, hdr.NumBytesFollowing)
		if !ok || total%types.DescriptorAlignment != 0 {
			return false, fmt.Errorf("%w: invalid descriptor length %d at offset %d", ErrInvalidDescriptor, hdr.NumBytesFollowing, p)
		}
		if total > uint64(len(remaining)) {
			return false, fmt.Errorf("%w: descriptor at offset %d needs %d bytes, %d left", ErrDescriptorsOutOfBounds, p, total, len(remaining))
		}

		if !visit(remaining[:total:total], hdr) {
			return false, nil
		}
		p += total
	}

	return true, nil
}

// GetAll returns every raw descriptor record of image in order. The result
// is sized by a counting pass before a second pass fills it.
func GetAll(image []byte) ([][]byte, error) {
	count := 0
	if _, err := ForEach(image, func([]byte, types.DescriptorHeader) bool {
		count++
		return true
	}); err != nil {
		return nil, err
	}

	records := make([][]byte, 0, count)
	if _, err := ForEach(image, func(record []byte, _ types.DescriptorHeader) bool {
		records = append(records, record)
		return true
	}); err != nil {
		return nil, err
	}

	if len(records) != count {
		return nil, fmt.Errorf("%w: descriptor count changed between passes", ErrInvalidImage)
	}
	return records, nil
}

// ParseAll decodes every descriptor of image into its typed form.
func ParseAll(image []byte) ([]types.Descriptor, error) {
	records, err := GetAll(image)
	if err != nil {
		return nil, err
	}

	out := make([]types.Descriptor, 0, len(records))
	for i, record := range records {
		d, err := Parse(record)
		if err != nil {
			return nil, fmt.Errorf("descriptor %d: %w", i, err)
		}
		out = append(out, d)
	}
	return out, nil
}

// descriptorRegion locates the descriptor region from the raw header fields.
func descriptorRegion(image []byte) ([]byte, error) {
	if len(image) < types.VBMetaHeaderSize {
		return nil, fmt.Errorf("%w: %d bytes is smaller than the header", ErrInvalidImage, len(image))
	}
	if !bytes.Equal(image[:types.VBMetaMagicLen], []byte(types.VBMetaMagic)) {
		return nil, fmt.Errorf("%w: magic is incorrect", ErrInvalidImage)
	}

	authSize := helpers.BE64(image[types.VBMetaOffsetAuthenticationDataBlockSize:])
	descOffset := helpers.BE64(image[types.VBMetaOffsetDescriptorsOffset:])
	descSize := helpers.BE64(image[types.VBMetaOffsetDescriptorsSize:])

	start, ok := helpers.SafeSum(types.VBMetaHeaderSize, authSize, descOffset)
	if !ok || start > uint64(len(image)) {
		return nil, ErrDescriptorsOutOfBounds
	}
	if !helpers.InBounds(start, descSize, uint64(len(image))) {
		return nil, ErrDescriptorsOutOfBounds
	}
	return image[start : start+descSize], nil
}
