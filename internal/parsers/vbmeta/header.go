package vbmeta

import (
	"errors"
	"fmt"

	"github.com/deploymenttheory/go-avb/internal/helpers"
	"github.com/deploymenttheory/go-avb/internal/types"
)

var (
	// ErrInvalidHeader is returned for a malformed vbmeta header or layout.
	ErrInvalidHeader = errors.New("invalid vbmeta header")

	// ErrUnsupportedVersion is returned when the header requires a newer major version.
	ErrUnsupportedVersion = errors.New("unsupported vbmeta version")

	// ErrHashMismatch is returned when the stored hash does not match the image.
	ErrHashMismatch = errors.New("vbmeta hash mismatch")

	// ErrSignatureMismatch is returned when the signature does not verify.
	ErrSignatureMismatch = errors.New("vbmeta signature mismatch")
)

// ParseHeader decodes the first 256 bytes of data into a host byte order
// copy. Only the length is checked; see VerifyImage for validation.
func ParseHeader(data []byte) (*types.VBMetaImageHeader, error) {
	if len(data) < types.VBMetaHeaderSize {
		return nil, fmt.Errorf("%w: %d bytes is smaller than the header", ErrInvalidHeader, len(data))
	}

	h := &types.VBMetaImageHeader{}
	copy(h.Magic[:], data[0:4])
	h.RequiredLibavbVersionMajor = helpers.BE32(data[4:8])
	h.RequiredLibavbVersionMinor = helpers.BE32(data[8:12])
	h.AuthenticationDataBlockSize = helpers.BE64(data[12:20])
	h.AuxiliaryDataBlockSize = helpers.BE64(data[20:28])
	h.AlgorithmType = helpers.BE32(data[28:32])
	h.HashOffset = helpers.BE64(data[32:40])
	h.HashSize = helpers.BE64(data[40:48])
	h.SignatureOffset = helpers.BE64(data[48:56])
	h.SignatureSize = helpers.BE64(data[56:64])
	h.PublicKeyOffset = helpers.BE64(data[64:72])
	h.PublicKeySize = helpers.BE64(data[72:80])
	h.PublicKeyMetadataOffset = helpers.BE64(data[80:88])
	h.PublicKeyMetadataSize = helpers.BE64(data[88:96])
	h.DescriptorsOffset = helpers.BE64(data[96:104])
	h.DescriptorsSize = helpers.BE64(data[104:112])
	h.RollbackIndex = helpers.BE64(data[112:120])
	h.Flags = helpers.BE32(data[120:124])
	h.RollbackIndexLocation = helpers.BE32(data[124:128])
	copy(h.ReleaseString[:], data[128:176])
	copy(h.Reserved[:], data[176:256])

	return h, nil
}

// EncodeHeader serializes h into its 256-byte big-endian form.
func EncodeHeader(h *types.VBMetaImageHeader) []byte {
	data := make([]byte, types.VBMetaHeaderSize)
	copy(data[0:4], h.Magic[:])
	helpers.PutBE32(data[4:8], h.RequiredLibavbVersionMajor)
	helpers.PutBE32(data[8:12], h.RequiredLibavbVersionMinor)
	helpers.PutBE64(data[12:20], h.AuthenticationDataBlockSize)
	helpers.PutBE64(data[20:28], h.AuxiliaryDataBlockSize)
	helpers.PutBE32(data[28:32], h.AlgorithmType)
	helpers.PutBE64(data[32:40], h.HashOffset)
	helpers.PutBE64(data[40:48], h.HashSize)
	helpers.PutBE64(data[48:56], h.SignatureOffset)
	helpers.PutBE64(data[56:64], h.SignatureSize)
	helpers.PutBE64(data[64:72], h.PublicKeyOffset)
	helpers.PutBE64(data[72:80], h.PublicKeySize)
	helpers.PutBE64(data[80:88], h.PublicKeyMetadataOffset)
	helpers.PutBE64(data[88:96], h.PublicKeyMetadataSize)
	helpers.PutBE64(data[96:104], h.DescriptorsOffset)
	helpers.PutBE64(data[104:112], h.DescriptorsSize)
	helpers.PutBE64(data[112:120], h.RollbackIndex)
	helpers.PutBE32(data[120:124], h.Flags)
	helpers.PutBE32(data[124:128], h.RollbackIndexLocation)
	copy(data[128:176], h.ReleaseString[:])
	copy(data[176:256], h.Reserved[:])
	return data
}

// layout is a structurally validated vbmeta image.
type layout struct {
	header    *types.VBMetaImageHeader
	algorithm types.AlgorithmType
	image     []byte
	auth      []byte
	aux       []byte
}

// parseLayout validates everything about data that does not involve
// cryptography and splits it into its blocks.
func parseLayout(data []byte) (*layout, types.VBMetaVerifyResult, error) {
	if len(data) < types.VBMetaHeaderSize {
		return nil, types.VBMetaVerifyInvalidVBMetaHeader, fmt.Errorf("%w: length %d is smaller than header", ErrInvalidHeader, len(data))
	}
	if string(data[:types.VBMetaMagicLen]) != types.VBMetaMagic {
		return nil, types.VBMetaVerifyInvalidVBMetaHeader, fmt.Errorf("%w: magic is incorrect", ErrInvalidHeader)
	}

	h, err := ParseHeader(data)
	if err != nil {
		return nil, types.VBMetaVerifyInvalidVBMetaHeader, err
	}

	if h.RequiredLibavbVersionMajor != types.VBMetaVersionMajor {
		return nil, types.VBMetaVerifyUnsupportedVersion, fmt.Errorf("%w: image requires major version %d", ErrUnsupportedVersion, h.RequiredLibavbVersionMajor)
	}

	if h.AuthenticationDataBlockSize%types.VBMetaBlockAlignment != 0 {
		return nil, types.VBMetaVerifyInvalidVBMetaHeader, fmt.Errorf("%w: authentication block size %d is not divisible by 64", ErrInvalidHeader, h.AuthenticationDataBlockSize)
	}
	if h.AuxiliaryDataBlockSize%types.VBMetaBlockAlignment != 0 {
		return nil, types.VBMetaVerifyInvalidVBMetaHeader, fmt.Errorf("%w: auxiliary block size %d is not divisible by 64", ErrInvalidHeader, h.AuxiliaryDataBlockSize)
	}

	total, ok := helpers.SafeSum(types.VBMetaHeaderSize, h.AuthenticationDataBlockSize, h.AuxiliaryDataBlockSize)
	if !ok {
		return nil, types.VBMetaVerifyInvalidVBMetaHeader, fmt.Errorf("%w: overflow while computing image size", ErrInvalidHeader)
	}
	if total > uint64(len(data)) {
		return nil, types.VBMetaVerifyInvalidVBMetaHeader, fmt.Errorf("%w: blocks need %d bytes, only %d present", ErrInvalidHeader, total, len(data))
	}

	alg := types.AlgorithmType(h.AlgorithmType)
	if !alg.Valid() {
		return nil, types.VBMetaVerifyInvalidVBMetaHeader, fmt.Errorf("%w: unknown algorithm %d", ErrInvalidHeader, h.AlgorithmType)
	}

	authEnd := types.VBMetaHeaderSize + h.AuthenticationDataBlockSize
	l := &layout{
		header:    h,
		algorithm: alg,
		image:     data[:total:total],
		auth:      data[types.VBMetaHeaderSize:authEnd:authEnd],
		aux:       data[authEnd:total:total],
	}

	if !helpers.InBounds(h.PublicKeyOffset, h.PublicKeySize, h.AuxiliaryDataBlockSize) {
		return nil, types.VBMetaVerifyInvalidVBMetaHeader, fmt.Errorf("%w: public key is not inside the auxiliary block", ErrInvalidHeader)
	}
	if !helpers.InBounds(h.PublicKeyMetadataOffset, h.PublicKeyMetadataSize, h.AuxiliaryDataBlockSize) {
		return nil, types.VBMetaVerifyInvalidVBMetaHeader, fmt.Errorf("%w: public key metadata is not inside the auxiliary block", ErrInvalidHeader)
	}
	if !helpers.InBounds(h.HashOffset, h.HashSize, h.AuthenticationDataBlockSize) {
		return nil, types.VBMetaVerifyInvalidVBMetaHeader, fmt.Errorf("%w: hash is not inside the authentication block", ErrInvalidHeader)
	}
	if !helpers.InBounds(h.SignatureOffset, h.SignatureSize, h.AuthenticationDataBlockSize) {
		return nil, types.VBMetaVerifyInvalidVBMetaHeader, fmt.Errorf("%w: signature is not inside the authentication block", ErrInvalidHeader)
	}

	return l, types.VBMetaVerifyOK, nil
}

func (l *layout) hash() []byte {
	return l.auth[l.header.HashOffset : l.header.HashOffset+l.header.HashSize]
}

func (l *layout) signature() []byte {
	return l.auth[l.header.SignatureOffset : l.header.SignatureOffset+l.header.SignatureSize]
}

func (l *layout) publicKey() []byte {
	return l.aux[l.header.PublicKeyOffset : l.header.PublicKeyOffset+l.header.PublicKeySize]
}

func (l *layout) publicKeyMetadata() []byte {
	return l.aux[l.header.PublicKeyMetadataOffset : l.header.PublicKeyMetadataOffset+l.header.PublicKeyMetadataSize]
}
