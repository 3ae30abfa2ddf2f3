// File: internal/interfaces/vbmeta.go
package interfaces

import (
	"crypto/rsa"

	"github.com/deploymenttheory/go-avb/internal/types"
)

// VBMetaImageReader provides read-only access to a vbmeta image
type VBMetaImageReader interface {
	// Header returns the host byte order copy of the image header
	Header() *types.VBMetaImageHeader

	// Algorithm returns the signing algorithm
	Algorithm() types.AlgorithmType

	// ImageSize returns the size of header plus both blocks
	ImageSize() uint64

	// Image returns the image bytes trimmed to ImageSize
	Image() []byte

	// AuthenticationBlock returns the authentication data block
	AuthenticationBlock() []byte

	// AuxiliaryBlock returns the auxiliary data block
	AuxiliaryBlock() []byte

	// Hash returns the stored hash, empty for unsigned images
	Hash() []byte

	// Signature returns the stored signature, empty for unsigned images
	Signature() []byte

	// PublicKey returns the serialized public key, empty for unsigned images
	PublicKey() []byte

	// PublicKeyMetadata returns the public key metadata, empty if absent
	PublicKeyMetadata() []byte

	// RSAPublicKey decodes the embedded public key
	RSAPublicKey() (*rsa.PublicKey, error)

	// Descriptors decodes every descriptor in the image
	Descriptors() ([]types.Descriptor, error)

	// RollbackIndex returns the image rollback index
	RollbackIndex() uint64

	// Flags returns the image flags
	Flags() uint32

	// ReleaseString returns the release string
	ReleaseString() string
}

// FooterReader provides access to a vbmeta footer
type FooterReader interface {
	// Footer returns the decoded footer
	Footer() *types.Footer

	// OriginalImageSize returns the partition content size before vbmeta was appended
	OriginalImageSize() uint64

	// VBMetaOffset returns the offset of the vbmeta image in the partition
	VBMetaOffset() uint64

	// VBMetaSize returns the size of the vbmeta image
	VBMetaSize() uint64
}
