// Package types implements the on-disk data structures of Android Verified Boot.
// Layouts follow the libavb 1.x serialization produced by avbtool.
package types

// VBMeta Image (header, authentication block, auxiliary block)
// A vbmeta image is a fixed 256-byte header followed by two variable sized
// blocks. Every multi-byte integer is stored big-endian.
//
//	+-----------------------------------------+
//	| Header data - fixed size                |
//	+-----------------------------------------+
//	| Authentication data - variable size     |
//	+-----------------------------------------+
//	| Auxiliary data - variable size          |
//	+-----------------------------------------+

const (
	// VBMetaMagic is the magic marker at offset 0 of every vbmeta image.
	VBMetaMagic = "AVB0"

	// VBMetaMagicLen is the number of bytes used by the magic marker.
	VBMetaMagicLen = 4

	// VBMetaHeaderSize is the size of the serialized header.
	VBMetaHeaderSize = 256

	// VBMetaReleaseStringSize is the size of the release string field.
	VBMetaReleaseStringSize = 48

	// VBMetaReservedSize is the size of the trailing reserved padding.
	VBMetaReservedSize = 80

	// VBMetaVersionMajor is the only header major version this package understands.
	VBMetaVersionMajor = 1

	// VBMetaVersionMinor is the header minor version written by this package.
	// Images with a larger minor version are still accepted.
	VBMetaVersionMinor = 0

	// VBMetaBlockAlignment is the alignment of the authentication and auxiliary blocks.
	VBMetaBlockAlignment = 64

	// VBMetaMaxSize is the ceiling for a single vbmeta image (64 KiB).
	VBMetaMaxSize = 64 * 1024
)

// Header field offsets inside the serialized 256-byte header.
const (
	VBMetaOffsetMagic                       = 0
	VBMetaOffsetVersionMajor                = 4
	VBMetaOffsetVersionMinor                = 8
	VBMetaOffsetAuthenticationDataBlockSize = 12
	VBMetaOffsetAuxiliaryDataBlockSize      = 20
	VBMetaOffsetAlgorithmType               = 28
	VBMetaOffsetHashOffset                  = 32
	VBMetaOffsetHashSize                    = 40
	VBMetaOffsetSignatureOffset             = 48
	VBMetaOffsetSignatureSize               = 56
	VBMetaOffsetPublicKeyOffset             = 64
	VBMetaOffsetPublicKeySize               = 72
	VBMetaOffsetPublicKeyMetadataOffset     = 80
	VBMetaOffsetPublicKeyMetadataSize       = 88
	VBMetaOffsetDescriptorsOffset           = 96
	VBMetaOffsetDescriptorsSize             = 104
	VBMetaOffsetRollbackIndex               = 112
	VBMetaOffsetFlags                       = 120
	VBMetaOffsetRollbackIndexLocation       = 124
	VBMetaOffsetReleaseString               = 128
	VBMetaOffsetReserved                    = 176
)

// VBMeta header flags.
const (
	// VBMetaFlagHashtreeDisabled disables dm-verity for hashtree descriptors.
	VBMetaFlagHashtreeDisabled uint32 = 1 << 0

	// VBMetaFlagVerificationDisabled disables descriptor verification entirely.
	VBMetaFlagVerificationDisabled uint32 = 1 << 1
)

// VBMetaImageHeader is the host byte order copy of a vbmeta image header.
// It is always produced from a copy of the untrusted buffer; the buffer
// itself is never modified.
type VBMetaImageHeader struct {
	// Magic marker, must equal VBMetaMagic.
	Magic [VBMetaMagicLen]byte

	// Required header major version. Must equal VBMetaVersionMajor.
	RequiredLibavbVersionMajor uint32

	// Required header minor version. Unknown minor extensions are ignored.
	RequiredLibavbVersionMinor uint32

	// Size of the authentication data block, a multiple of 64.
	AuthenticationDataBlockSize uint64

	// Size of the auxiliary data block, a multiple of 64.
	AuxiliaryDataBlockSize uint64

	// Signing algorithm, see AlgorithmType.
	AlgorithmType uint32

	// Offset of the hash into the authentication data block.
	HashOffset uint64

	// Length of the hash.
	HashSize uint64

	// Offset of the signature into the authentication data block.
	SignatureOffset uint64

	// Length of the signature.
	SignatureSize uint64

	// Offset of the public key into the auxiliary data block.
	PublicKeyOffset uint64

	// Length of the public key.
	PublicKeySize uint64

	// Offset of the public key metadata into the auxiliary data block.
	PublicKeyMetadataOffset uint64

	// Length of the public key metadata. Zero if not present.
	PublicKeyMetadataSize uint64

	// Offset of the descriptor region into the auxiliary data block.
	DescriptorsOffset uint64

	// Length of the descriptor region.
	DescriptorsSize uint64

	// Rollback index checked against the stored counter of the image's slot.
	RollbackIndex uint64

	// Image flags, see VBMetaFlagHashtreeDisabled.
	Flags uint32

	// Rollback index location recorded by the signer. The slot actually
	// enforced is chosen by the verifier (0 for the main image, the chain
	// descriptor's slot otherwise).
	RollbackIndexLocation uint32

	// NUL-padded release string of the tool that produced the image.
	ReleaseString [VBMetaReleaseStringSize]byte

	// Reserved padding, zero on write.
	Reserved [VBMetaReservedSize]byte
}

// ImageSize returns header + authentication + auxiliary block sizes. The
// caller must only use it on a header that passed validation.
func (h *VBMetaImageHeader) ImageSize() uint64 {
	return VBMetaHeaderSize + h.AuthenticationDataBlockSize + h.AuxiliaryDataBlockSize
}

// HashtreeDisabled reports whether the HASHTREE_DISABLED flag is set.
func (h *VBMetaImageHeader) HashtreeDisabled() bool {
	return h.Flags&VBMetaFlagHashtreeDisabled != 0
}

// ReleaseStringValue returns the release string up to the first NUL.
func (h *VBMetaImageHeader) ReleaseStringValue() string {
	return CString(h.ReleaseString[:])
}

// CString returns b up to (not including) the first NUL byte.
func CString(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

// Footer (last 64 bytes of a partition carrying an appended vbmeta image)

const (
	// FooterMagic is the magic marker of a vbmeta footer.
	FooterMagic = "AVBf"

	// FooterMagicLen is the number of bytes used by the footer magic.
	FooterMagicLen = 4

	// FooterSize is the size of the serialized footer.
	FooterSize = 64

	// FooterVersionMajor is the only footer major version understood.
	FooterVersionMajor = 1

	// FooterVersionMinor is the footer minor version written by this package.
	FooterVersionMinor = 0

	// FooterReservedSize is the size of the trailing reserved padding.
	FooterReservedSize = 28
)

// Footer locates a vbmeta image inside a non-vbmeta partition.
type Footer struct {
	// Magic marker, must equal FooterMagic.
	Magic [FooterMagicLen]byte

	// Footer major version. Must equal FooterVersionMajor.
	VersionMajor uint32

	// Footer minor version.
	VersionMinor uint32

	// Size of the partition content before the vbmeta image was appended.
	OriginalImageSize uint64

	// Offset of the vbmeta image from the start of the partition.
	VBMetaOffset uint64

	// Size of the vbmeta image.
	VBMetaSize uint64

	// Reserved padding, zero on write.
	Reserved [FooterReservedSize]byte
}

// RSA public key block (stored in the auxiliary data block)

const (
	// RSAPublicKeyHeaderSize is the size of the key_num_bits + n0inv header.
	RSAPublicKeyHeaderSize = 8

	// RSAPublicExponent is the implied exponent of every vbmeta key.
	RSAPublicExponent = 65537
)

// RSAPublicKeyHeader precedes the modulus and R^2 mod n in a serialized key.
type RSAPublicKeyHeader struct {
	// Key size in bits: 2048, 4096 or 8192.
	KeyNumBits uint32

	// Montgomery constant -1/n[0] mod 2^32.
	N0Inv uint32
}

// RollbackIndex slots

const (
	// MaxNumberOfRollbackIndexSlots bounds the rollback index slot number.
	MaxNumberOfRollbackIndexSlots = 32

	// MainRollbackIndexSlot is reserved for the main vbmeta image.
	MainRollbackIndexSlot = 0
)

// Partition naming limits.
const (
	// PartNameMaxSize bounds a hash-verified partition name plus suffix,
	// including the terminator of the reference format.
	PartNameMaxSize = 32

	// VBMetaPartNameMaxSize bounds a vbmeta-bearing partition name plus suffix.
	VBMetaPartNameMaxSize = 256

	// MainVBMetaPartition is the partition holding the main vbmeta image.
	MainVBMetaPartition = "vbmeta"

	// BootPartition is the partition whose verified content is returned to the caller.
	BootPartition = "boot"
)
