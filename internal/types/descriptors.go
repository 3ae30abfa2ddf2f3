package types

import "fmt"

// Descriptors (auxiliary data block)
// Each descriptor starts with a 16-byte header followed by
// num_bytes_following bytes of payload. num_bytes_following is always a
// multiple of 8 so that consecutive descriptors stay 8-byte aligned.

// DescriptorTag identifies the kind of a descriptor.
type DescriptorTag uint64

const (
	// DescriptorTagProperty is a key/value property.
	DescriptorTagProperty DescriptorTag = 0

	// DescriptorTagHashtree describes a dm-verity protected partition.
	DescriptorTagHashtree DescriptorTag = 1

	// DescriptorTagHash describes a partition verified by a single digest.
	DescriptorTagHash DescriptorTag = 2

	// DescriptorTagKernelCmdline carries a kernel command-line fragment.
	DescriptorTagKernelCmdline DescriptorTag = 3

	// DescriptorTagChainPartition delegates to a vbmeta image in another partition.
	DescriptorTagChainPartition DescriptorTag = 4
)

func (t DescriptorTag) String() string {
	switch t {
	case DescriptorTagProperty:
		return "property"
	case DescriptorTagHashtree:
		return "hashtree"
	case DescriptorTagHash:
		return "hash"
	case DescriptorTagKernelCmdline:
		return "kernel_cmdline"
	case DescriptorTagChainPartition:
		return "chain_partition"
	default:
		return fmt.Sprintf("unknown(%d)", uint64(t))
	}
}

// Serialized sizes, each including the 16-byte descriptor header.
const (
	DescriptorHeaderSize              = 16
	PropertyDescriptorSize            = 32
	HashtreeDescriptorSize            = 180
	HashDescriptorSize                = 132
	KernelCmdlineDescriptorSize       = 24
	ChainPartitionDescriptorSize      = 92
	DescriptorHashAlgorithmSize       = 32
	DescriptorReservedSize            = 60
	DescriptorAlignment               = 8
	PropertyDescriptorTerminatorCount = 2
)

// Kernel command-line descriptor flags.
const (
	// KernelCmdlineFlagUseOnlyIfHashtreeNotDisabled selects the fragment only
	// while dm-verity is active.
	KernelCmdlineFlagUseOnlyIfHashtreeNotDisabled uint32 = 1 << 0

	// KernelCmdlineFlagUseOnlyIfHashtreeDisabled selects the fragment only
	// when the image sets HASHTREE_DISABLED.
	KernelCmdlineFlagUseOnlyIfHashtreeDisabled uint32 = 1 << 1
)

// Hash and hashtree descriptor flags.
const (
	// HashDescriptorFlagDoNotUseAB means the partition name is used without a slot suffix.
	HashDescriptorFlagDoNotUseAB uint32 = 1 << 0
)

// DescriptorHeader is the common prefix of every descriptor.
type DescriptorHeader struct {
	// Descriptor kind.
	Tag DescriptorTag

	// Number of payload bytes after this header, a multiple of 8.
	NumBytesFollowing uint64
}

// TotalSize returns the header size plus the payload size. The caller must
// have checked the sum for overflow.
func (h DescriptorHeader) TotalSize() uint64 {
	return DescriptorHeaderSize + h.NumBytesFollowing
}

// PropertyDescriptor is a key/value pair. Key and value are each followed by
// a NUL byte in the serialized form.
type PropertyDescriptor struct {
	DescriptorHeader

	// Length of the key, not counting the NUL terminator.
	KeyNumBytes uint64

	// Length of the value, not counting the NUL terminator.
	ValueNumBytes uint64

	// Key bytes.
	Key []byte

	// Value bytes. May contain arbitrary binary data.
	Value []byte
}

// HashtreeDescriptor describes a partition protected by dm-verity.
type HashtreeDescriptor struct {
	DescriptorHeader

	// dm-verity on-disk format version.
	DmVerityVersion uint32

	// Size of the protected data in bytes.
	ImageSize uint64

	// Offset of the hash tree within the partition.
	TreeOffset uint64

	// Size of the hash tree.
	TreeSize uint64

	// Data block size in bytes.
	DataBlockSize uint32

	// Hash block size in bytes.
	HashBlockSize uint32

	// Number of forward error correction roots, zero if absent.
	FECNumRoots uint32

	// Offset of the FEC data within the partition.
	FECOffset uint64

	// Size of the FEC data.
	FECSize uint64

	// NUL-padded hash algorithm name.
	HashAlgorithm [DescriptorHashAlgorithmSize]byte

	// Length of the partition name.
	PartitionNameLen uint32

	// Length of the salt.
	SaltLen uint32

	// Length of the root digest.
	RootDigestLen uint32

	// Descriptor flags.
	Flags uint32

	// Reserved padding.
	Reserved [DescriptorReservedSize]byte

	// Partition name, without slot suffix.
	PartitionName string

	// Salt bytes.
	Salt []byte

	// Root digest of the hash tree.
	RootDigest []byte
}

// HashDescriptor describes a partition verified against a single digest.
type HashDescriptor struct {
	DescriptorHeader

	// Number of partition bytes covered by the digest.
	ImageSize uint64

	// NUL-padded hash algorithm name, "sha256" or "sha512".
	HashAlgorithm [DescriptorHashAlgorithmSize]byte

	// Length of the partition name.
	PartitionNameLen uint32

	// Length of the salt.
	SaltLen uint32

	// Length of the digest.
	DigestLen uint32

	// Descriptor flags.
	Flags uint32

	// Reserved padding.
	Reserved [DescriptorReservedSize]byte

	// Partition name, without slot suffix.
	PartitionName string

	// Salt prepended to the partition content before hashing.
	Salt []byte

	// Expected digest.
	Digest []byte
}

// HashAlgorithmName returns the hash algorithm up to the first NUL.
func (d *HashDescriptor) HashAlgorithmName() string {
	return CString(d.HashAlgorithm[:])
}

// HashAlgorithmName returns the hash algorithm up to the first NUL.
func (d *HashtreeDescriptor) HashAlgorithmName() string {
	return CString(d.HashAlgorithm[:])
}

// KernelCmdlineDescriptor carries a kernel command-line fragment.
type KernelCmdlineDescriptor struct {
	DescriptorHeader

	// Selection flags, see KernelCmdlineFlagUseOnlyIfHashtreeNotDisabled.
	Flags uint32

	// Length of the command-line fragment.
	KernelCmdlineLength uint32

	// Command-line fragment.
	KernelCmdline string
}

// ChainPartitionDescriptor delegates verification of a partition to the
// vbmeta image found in that partition's footer.
type ChainPartitionDescriptor struct {
	DescriptorHeader

	// Rollback index slot of the chained image. Slot 0 is reserved.
	RollbackIndexLocation uint32

	// Length of the partition name.
	PartitionNameLen uint32

	// Length of the expected public key.
	PublicKeyLen uint32

	// Descriptor flags.
	Flags uint32

	// Reserved padding.
	Reserved [DescriptorReservedSize]byte

	// Partition name, without slot suffix.
	PartitionName string

	// Public key the chained image must be signed with.
	PublicKey []byte
}

// Descriptor is implemented by every decoded descriptor.
type Descriptor interface {
	Header() DescriptorHeader
}

// Header returns the common descriptor header.
func (h DescriptorHeader) Header() DescriptorHeader { return h }

// UnknownDescriptor holds a descriptor whose tag is not recognized.
type UnknownDescriptor struct {
	DescriptorHeader

	// Raw payload following the header.
	Payload []byte
}
