package descriptors

import (
	"fmt"

	"github.com/deploymenttheory/go-avb/internal/helpers"
	"github.com/deploymenttheory/go-avb/internal/types"
)

// ParseKernelCmdlineDescriptor validates a kernel command-line descriptor.
// The padded size of the fixed part plus the command line must equal the
// declared payload size exactly.
func ParseKernelCmdlineDescriptor(data []byte) (*types.KernelCmdlineDescriptor, error) {
	hdr, record, err := validateRecord(data, types.DescriptorTagKernelCmdline, types.KernelCmdlineDescriptorSize)
	if err != nil {
		return nil, err
	}

	d := &types.KernelCmdlineDescriptor{DescriptorHeader: hdr}
	d.Flags = helpers.BE32(record[16:20])
	d.KernelCmdlineLength = helpers.BE32(record[20:24])

	expected, ok := helpers.SafeAdd(types.KernelCmdlineDescriptorSize-types.DescriptorHeaderSize, uint64(d.KernelCmdlineLength))
	if !ok {
		return nil, fmt.Errorf("invalid kernel cmdline descriptor: %w: size overflow", ErrInvalidDescriptor)
	}
	padded, ok := helpers.RoundUp8(expected)
	if !ok || padded != hdr.NumBytesFollowing {
		return nil, fmt.Errorf("invalid kernel cmdline descriptor: %w: %d bytes declared, %d expected", ErrInvalidDescriptor, hdr.NumBytesFollowing, padded)
	}

	p := uint64(types.KernelCmdlineDescriptorSize)
	d.KernelCmdline = string(record[p : p+uint64(d.KernelCmdlineLength)])
	return d, nil
}

// EncodeKernelCmdlineDescriptor serializes d.
func EncodeKernelCmdlineDescriptor(d *types.KernelCmdlineDescriptor) []byte {
	buf := encodeHeader(types.DescriptorTagKernelCmdline, uint64(types.KernelCmdlineDescriptorSize-types.DescriptorHeaderSize+len(d.KernelCmdline)))
	helpers.PutBE32(buf[16:20], d.Flags)
	helpers.PutBE32(buf[20:24], uint32(len(d.KernelCmdline)))
	copy(buf[types.KernelCmdlineDescriptorSize:], d.KernelCmdline)
	return buf
}
