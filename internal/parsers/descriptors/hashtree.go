package descriptors

import (
	"fmt"

	"github.com/deploymenttheory/go-avb/internal/helpers"
	"github.com/deploymenttheory/go-avb/internal/types"
)

// ParseHashtreeDescriptor validates a hashtree descriptor record and returns
// a host byte order copy of it.
func ParseHashtreeDescriptor(data []byte) (*types.HashtreeDescriptor, error) {
	hdr, record, err := validateRecord(data, types.DescriptorTagHashtree, types.HashtreeDescriptorSize)
	if err != nil {
		return nil, err
	}

	d := &types.HashtreeDescriptor{DescriptorHeader: hdr}
	d.DmVerityVersion = helpers.BE32(record[16:20])
	d.ImageSize = helpers.BE64(record[20:28])
	d.TreeOffset = helpers.BE64(record[28:36])
	d.TreeSize = helpers.BE64(record[36:44])
	d.DataBlockSize = helpers.BE32(record[44:48])
	d.HashBlockSize = helpers.BE32(record[48:52])
	d.FECNumRoots = helpers.BE32(record[52:56])
	d.FECOffset = helpers.BE64(record[56:64])
	d.FECSize = helpers.BE64(record[64:72])
	copy(d.HashAlgorithm[:], record[72:104])
	d.PartitionNameLen = helpers.BE32(record[104:108])
	d.SaltLen = helpers.BE32(record[108:112])
	d.RootDigestLen = helpers.BE32(record[112:116])
	d.Flags = helpers.BE32(record[116:120])
	copy(d.Reserved[:], record[120:180])

	if err := checkTrailingSize(hdr, types.HashtreeDescriptorSize,
		uint64(d.PartitionNameLen), uint64(d.SaltLen), uint64(d.RootDigestLen)); err != nil {
		return nil, fmt.Errorf("invalid hashtree descriptor: %w", err)
	}

	p := uint64(types.HashtreeDescriptorSize)
	d.PartitionName = string(record[p : p+uint64(d.PartitionNameLen)])
	p += uint64(d.PartitionNameLen)
	d.Salt = cloneBytes(record[p : p+uint64(d.SaltLen)])
	p += uint64(d.SaltLen)
	d.RootDigest = cloneBytes(record[p : p+uint64(d.RootDigestLen)])

	return d, nil
}

// EncodeHashtreeDescriptor serializes d. The length fields are derived from
// PartitionName, Salt and RootDigest.
func EncodeHashtreeDescriptor(d *types.HashtreeDescriptor) []byte {
	trailing := len(d.PartitionName) + len(d.Salt) + len(d.RootDigest)
	buf := encodeHeader(types.DescriptorTagHashtree, uint64(types.HashtreeDescriptorSize-types.DescriptorHeaderSize+trailing))

	helpers.PutBE32(buf[16:20], d.DmVerityVersion)
	helpers.PutBE64(buf[20:28], d.ImageSize)
	helpers.PutBE64(buf[28:36], d.TreeOffset)
	helpers.PutBE64(buf[36:44], d.TreeSize)
	helpers.PutBE32(buf[44:48], d.DataBlockSize)
	helpers.PutBE32(buf[48:52], d.HashBlockSize)
	helpers.PutBE32(buf[52:56], d.FECNumRoots)
	helpers.PutBE64(buf[56:64], d.FECOffset)
	helpers.PutBE64(buf[64:72], d.FECSize)
	copy(buf[72:104], d.HashAlgorithm[:])
	helpers.PutBE32(buf[104:108], uint32(len(d.PartitionName)))
	helpers.PutBE32(buf[108:112], uint32(len(d.Salt)))
	helpers.PutBE32(buf[112:116], uint32(len(d.RootDigest)))
	helpers.PutBE32(buf[116:120], d.Flags)

	p := types.HashtreeDescriptorSize
	p += copy(buf[p:], d.PartitionName)
	p += copy(buf[p:], d.Salt)
	copy(buf[p:], d.RootDigest)
	return buf
}
