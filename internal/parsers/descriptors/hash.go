package descriptors

import (
	"fmt"

	"github.com/deploymenttheory/go-avb/internal/helpers"
	"github.com/deploymenttheory/go-avb/internal/types"
)

// ParseHashDescriptor validates a hash descriptor record and returns a host
// byte order copy of it.
func ParseHashDescriptor(data []byte) (*types.HashDescriptor, error) {
	hdr, record, err := validateRecord(data, types.DescriptorTagHash, types.HashDescriptorSize)
	if err != nil {
		return nil, err
	}

	d := &types.HashDescriptor{DescriptorHeader: hdr}
	d.ImageSize = helpers.BE64(record[16:24])
	copy(d.HashAlgorithm[:], record[24:56])
	d.PartitionNameLen = helpers.BE32(record[56:60])
	d.SaltLen = helpers.BE32(record[60:64])
	d.DigestLen = helpers.BE32(record[64:68])
	d.Flags = helpers.BE32(record[68:72])
	copy(d.Reserved[:], record[72:132])

	if err := checkTrailingSize(hdr, types.HashDescriptorSize,
		uint64(d.PartitionNameLen), uint64(d.SaltLen), uint64(d.DigestLen)); err != nil {
		return nil, fmt.Errorf("invalid hash descriptor: %w", err)
	}

	p := uint64(types.HashDescriptorSize)
	d.PartitionName = string(record[p : p+uint64(d.PartitionNameLen)])
	p += uint64(d.PartitionNameLen)
	d.Salt = cloneBytes(record[p : p+uint64(d.SaltLen)])
	p += uint64(d.SaltLen)
	d.Digest = cloneBytes(record[p : p+uint64(d.DigestLen)])

	return d, nil
}

// EncodeHashDescriptor serializes d. The length fields are derived from
// PartitionName, Salt and Digest.
func EncodeHashDescriptor(d *types.HashDescriptor) []byte {
	trailing := len(d.PartitionName) + len(d.Salt) + len(d.Digest)
	buf := encodeHeader(types.DescriptorTagHash, uint64(types.HashDescriptorSize-types.DescriptorHeaderSize+trailing))

	helpers.PutBE64(buf[16:24], d.ImageSize)
	copy(buf[24:56], d.HashAlgorithm[:])
	helpers.PutBE32(buf[56:60], uint32(len(d.PartitionName)))
	helpers.PutBE32(buf[60:64], uint32(len(d.Salt)))
	helpers.PutBE32(buf[64:68], uint32(len(d.Digest)))
	helpers.PutBE32(buf[68:72], d.Flags)

	p := types.HashDescriptorSize
	p += copy(buf[p:], d.PartitionName)
	p += copy(buf[p:], d.Salt)
	copy(buf[p:], d.Digest)
	return buf
}
