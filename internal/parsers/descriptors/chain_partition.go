package descriptors

import (
	"fmt"

	"github.com/deploymenttheory/go-avb/internal/helpers"
	"github.com/deploymenttheory/go-avb/internal/types"
)

// ParseChainPartitionDescriptor validates a chain partition descriptor.
// Rollback index slot 0 belongs to the main image and is rejected.
func ParseChainPartitionDescriptor(data []byte) (*types.ChainPartitionDescriptor, error) {
	hdr, record, err := validateRecord(data, types.DescriptorTagChainPartition, types.ChainPartitionDescriptorSize)
	if err != nil {
		return nil, err
	}

	d := &types.ChainPartitionDescriptor{DescriptorHeader: hdr}
	d.RollbackIndexLocation = helpers.BE32(record[16:20])
	d.PartitionNameLen = helpers.BE32(record[20:24])
	d.PublicKeyLen = helpers.BE32(record[24:28])
	d.Flags = helpers.BE32(record[28:32])
	copy(d.Reserved[:], record[32:92])

	if d.RollbackIndexLocation == types.MainRollbackIndexSlot {
		return nil, fmt.Errorf("invalid chain partition descriptor: %w: rollback index location 0 is reserved", ErrInvalidDescriptor)
	}

	if err := checkTrailingSize(hdr, types.ChainPartitionDescriptorSize,
		uint64(d.PartitionNameLen), uint64(d.PublicKeyLen)); err != nil {
		return nil, fmt.Errorf("invalid chain partition descriptor: %w", err)
	}

	p := uint64(types.ChainPartitionDescriptorSize)
	d.PartitionName = string(record[p : p+uint64(d.PartitionNameLen)])
	p += uint64(d.PartitionNameLen)
	d.PublicKey = cloneBytes(record[p : p+uint64(d.PublicKeyLen)])

	return d, nil
}

// EncodeChainPartitionDescriptor serializes d.
func EncodeChainPartitionDescriptor(d *types.ChainPartitionDescriptor) []byte {
	trailing := len(d.PartitionName) + len(d.PublicKey)
	buf := encodeHeader(types.DescriptorTagChainPartition, uint64(types.ChainPartitionDescriptorSize-types.DescriptorHeaderSize+trailing))

	helpers.PutBE32(buf[16:20], d.RollbackIndexLocation)
	helpers.PutBE32(buf[20:24], uint32(len(d.PartitionName)))
	helpers.PutBE32(buf[24:28], uint32(len(d.PublicKey)))
	helpers.PutBE32(buf[28:32], d.Flags)

	p := types.ChainPartitionDescriptorSize
	p += copy(buf[p:], d.PartitionName)
	copy(buf[p:], d.PublicKey)
	return buf
}
