package descriptors

import (
	"errors"
	"fmt"

	"github.com/deploymenttheory/go-avb/internal/helpers"
	"github.com/deploymenttheory/go-avb/internal/types"
)

var (
	// ErrInvalidDescriptor is returned for any structurally invalid descriptor.
	ErrInvalidDescriptor = errors.New("invalid descriptor")

	// ErrUnexpectedTag is returned when a typed parser is handed another kind.
	ErrUnexpectedTag = errors.New("unexpected descriptor tag")
)

// ParseDescriptorHeader decodes the common 16-byte descriptor header.
func ParseDescriptorHeader(data []byte) (types.DescriptorHeader, error) {
	if len(data) < types.DescriptorHeaderSize {
		return types.DescriptorHeader{}, fmt.Errorf("%w: %d bytes is smaller than a descriptor header", ErrInvalidDescriptor, len(data))
	}

	hdr := types.DescriptorHeader{
		Tag:               types.DescriptorTag(helpers.BE64(data[0:8])),
		NumBytesFollowing: helpers.BE64(data[8:16]),
	}

	if hdr.NumBytesFollowing%types.DescriptorAlignment != 0 {
		return types.DescriptorHeader{}, fmt.Errorf("%w: size %d is not divisible by 8", ErrInvalidDescriptor, hdr.NumBytesFollowing)
	}

	return hdr, nil
}

// Parse decodes a single descriptor record into its typed form. Records with
// an unrecognized tag are returned as *types.UnknownDescriptor once their
// header has been validated.
func Parse(data []byte) (types.Descriptor, error) {
	hdr, err := ParseDescriptorHeader(data)
	if err != nil {
		return nil, err
	}

	switch hdr.Tag {
	case types.DescriptorTagProperty:
		return ParsePropertyDescriptor(data)
	case types.DescriptorTagHashtree:
		return ParseHashtreeDescriptor(data)
	case types.DescriptorTagHash:
		return ParseHashDescriptor(data)
	case types.DescriptorTagKernelCmdline:
		return ParseKernelCmdlineDescriptor(data)
	case types.DescriptorTagChainPartition:
		return ParseChainPartitionDescriptor(data)
	}

	if _, err := recordFor(data, hdr, types.DescriptorHeaderSize); err != nil {
		return nil, err
	}
	payload := make([]byte, hdr.NumBytesFollowing)
	copy(payload, data[types.DescriptorHeaderSize:])
	return &types.UnknownDescriptor{DescriptorHeader: hdr, Payload: payload}, nil
}

// validateRecord checks the header of data against the expected tag and
// returns the header together with the record trimmed to its declared size.
func validateRecord(data []byte, tag types.DescriptorTag, fixedSize int) (types.DescriptorHeader, []byte, error) {
	hdr, err := ParseDescriptorHeader(data)
	if err != nil {
		return hdr, nil, err
	}
	if hdr.Tag != tag {
		return hdr, nil, fmt.Errorf("%w: got %s, want %s", ErrUnexpectedTag, hdr.Tag, tag)
	}
	record, err := recordFor(data, hdr, fixedSize)
	if err != nil {
		return hdr, nil, err
	}
	return hdr, record, nil
}

func recordFor(data []byte, hdr types.DescriptorHeader, fixedSize int) ([]byte, error) {
	total, ok := helpers.SafeAdd(types.DescriptorHeaderSize, hdr.NumBytesFollowing)
	if !ok || total > uint64(len(data)) {
		return nil, fmt.Errorf("%w: %s descriptor runs past the end of the data", ErrInvalidDescriptor, hdr.Tag)
	}
	if total < uint64(fixedSize) {
		return nil, fmt.Errorf("%w: %s descriptor is smaller than its fixed part", ErrInvalidDescriptor, hdr.Tag)
	}
	return data[:total], nil
}

// checkTrailingSize verifies that the fixed payload plus every variable
// length field fits in the declared payload size.
func checkTrailingSize(hdr types.DescriptorHeader, fixedSize int, lengths ...uint64) error {
	expected, ok := helpers.SafeSum(append([]uint64{uint64(fixedSize - types.DescriptorHeaderSize)}, lengths...)...)
	if !ok {
		return fmt.Errorf("%w: overflow while adding %s field sizes", ErrInvalidDescriptor, hdr.Tag)
	}
	if expected > hdr.NumBytesFollowing {
		return fmt.Errorf("%w: %s descriptor fields need %d bytes, only %d present", ErrInvalidDescriptor, hdr.Tag, expected, hdr.NumBytesFollowing)
	}
	return nil
}

// encodeHeader allocates a record for a payload of payloadLen bytes, padded
// to the descriptor alignment, and writes the common header.
func encodeHeader(tag types.DescriptorTag, payloadLen uint64) []byte {
	nbf, _ := helpers.RoundUp8(payloadLen)
	buf := make([]byte, types.DescriptorHeaderSize+nbf)
	helpers.PutBE64(buf[0:8], uint64(tag))
	helpers.PutBE64(buf[8:16], nbf)
	return buf
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
