package vbmeta

import (
	"crypto/rsa"
	"fmt"

	"github.com/deploymenttheory/go-avb/internal/interfaces"
	"github.com/deploymenttheory/go-avb/internal/parsers/descriptors"
	"github.com/deploymenttheory/go-avb/internal/types"
)

// vbmetaImageReader implements the VBMetaImageReader interface
type vbmetaImageReader struct {
	l *layout
}

// NewVBMetaImageReader creates a read-only view of a structurally valid
// vbmeta image. No hash or signature is checked.
func NewVBMetaImageReader(data []byte) (interfaces.VBMetaImageReader, error) {
	l, _, err := parseLayout(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse vbmeta image: %w", err)
	}
	return &vbmetaImageReader{l: l}, nil
}

func (r *vbmetaImageReader) Header() *types.VBMetaImageHeader {
	return r.l.header
}

func (r *vbmetaImageReader) Algorithm() types.AlgorithmType {
	return r.l.algorithm
}

func (r *vbmetaImageReader) ImageSize() uint64 {
	return uint64(len(r.l.image))
}

func (r *vbmetaImageReader) Image() []byte {
	return r.l.image
}

func (r *vbmetaImageReader) AuthenticationBlock() []byte {
	return r.l.auth
}

func (r *vbmetaImageReader) AuxiliaryBlock() []byte {
	return r.l.aux
}

func (r *vbmetaImageReader) Hash() []byte {
	return r.l.hash()
}

func (r *vbmetaImageReader) Signature() []byte {
	return r.l.signature()
}

func (r *vbmetaImageReader) PublicKey() []byte {
	return r.l.publicKey()
}

func (r *vbmetaImageReader) PublicKeyMetadata() []byte {
	return r.l.publicKeyMetadata()
}

// RSAPublicKey decodes the embedded key. Unsigned images have none.
func (r *vbmetaImageReader) RSAPublicKey() (*rsa.PublicKey, error) {
	if r.l.algorithm == types.AlgorithmNone {
		return nil, fmt.Errorf("%w: image is not signed", ErrInvalidPublicKey)
	}
	pub, _, err := ParseRSAPublicKey(r.l.publicKey())
	return pub, err
}

func (r *vbmetaImageReader) Descriptors() ([]types.Descriptor, error) {
	return descriptors.ParseAll(r.l.image)
}

func (r *vbmetaImageReader) RollbackIndex() uint64 {
	return r.l.header.RollbackIndex
}

func (r *vbmetaImageReader) Flags() uint32 {
	return r.l.header.Flags
}

func (r *vbmetaImageReader) ReleaseString() string {
	return r.l.header.ReleaseStringValue()
}
