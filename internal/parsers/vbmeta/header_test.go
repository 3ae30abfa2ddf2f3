package vbmeta

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deploymenttheory/go-avb/internal/types"
)

func TestHeaderRoundTrip(t *testing.T) {
	want := &types.VBMetaImageHeader{
		RequiredLibavbVersionMajor:  1,
		RequiredLibavbVersionMinor:  2,
		AuthenticationDataBlockSize: 0x0102030405060708,
		AuxiliaryDataBlockSize:      0x1112131415161718,
		AlgorithmType:               0x21222324,
		HashOffset:                  0x3132333435363738,
		HashSize:                    0x4142434445464748,
		SignatureOffset:             0x5152535455565758,
		SignatureSize:               0x6162636465666768,
		PublicKeyOffset:             0x7172737475767778,
		PublicKeySize:               0x8182838485868788,
		PublicKeyMetadataOffset:     0x9192939495969798,
		PublicKeyMetadataSize:       0xa1a2a3a4a5a6a7a8,
		DescriptorsOffset:           0xb1b2b3b4b5b6b7b8,
		DescriptorsSize:             0xc1c2c3c4c5c6c7c8,
		RollbackIndex:               0xd1d2d3d4d5d6d7d8,
		Flags:                       0xe1e2e3e4,
		RollbackIndexLocation:       0xf1f2f3f4,
	}
	copy(want.Magic[:], types.VBMetaMagic)
	copy(want.ReleaseString[:], "avbtool 1.3.0")
	want.Reserved[79] = 0x5a

	data := EncodeHeader(want)
	require.Len(t, data, types.VBMetaHeaderSize)

	// Spot-check the wire layout.
	assert.Equal(t, []byte("AVB0"), data[0:4])
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 8}, data[12:20])
	assert.Equal(t, []byte{0xd1, 0xd2, 0xd3, 0xd4, 0xd5, 0xd6, 0xd7, 0xd8}, data[112:120])
	assert.Equal(t, []byte{0xf1, 0xf2, 0xf3, 0xf4}, data[124:128])

	got, err := ParseHeader(data)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, "avbtool 1.3.0", got.ReleaseStringValue())
}

func TestParseHeaderDoesNotAlias(t *testing.T) {
	data := EncodeHeader(&types.VBMetaImageHeader{})
	copy(data[128:], "release")

	h, err := ParseHeader(data)
	require.NoError(t, err)
	data[128] = 'X'
	assert.Equal(t, "release", h.ReleaseStringValue())
}

func TestParseHeaderShort(t *testing.T) {
	_, err := ParseHeader(make([]byte, types.VBMetaHeaderSize-1))
	assert.ErrorIs(t, err, ErrInvalidHeader)
}

func TestFooterRoundTrip(t *testing.T) {
	data := EncodeFooter(&types.Footer{
		OriginalImageSize: 4096,
		VBMetaOffset:      4096,
		VBMetaSize:        1152,
	})
	require.Len(t, data, types.FooterSize)

	fr, err := NewFooterReader(data)
	require.NoError(t, err)
	assert.Equal(t, uint64(4096), fr.OriginalImageSize())
	assert.Equal(t, uint64(4096), fr.VBMetaOffset())
	assert.Equal(t, uint64(1152), fr.VBMetaSize())
	assert.Equal(t, uint32(types.FooterVersionMajor), fr.Footer().VersionMajor)
}

func TestParseFooterInvalid(t *testing.T) {
	good := EncodeFooter(&types.Footer{VBMetaSize: 64})

	_, err := ParseFooter(good[:63])
	assert.ErrorIs(t, err, ErrInvalidFooter)

	bad := append([]byte(nil), good...)
	bad[3] = 'g'
	_, err = ParseFooter(bad)
	assert.ErrorIs(t, err, ErrInvalidFooter)

	bad = append([]byte(nil), good...)
	bad[7] = 2
	_, err = ParseFooter(bad)
	assert.ErrorIs(t, err, ErrInvalidFooter)

	// Newer minor versions are accepted.
	minor := append([]byte(nil), good...)
	minor[11] = 9
	f, err := ParseFooter(minor)
	require.NoError(t, err)
	assert.Equal(t, uint32(9), f.VersionMinor)
}

func TestMontgomeryConstants(t *testing.T) {
	// For n = 3 (mod 2^32), 3 * 0xaaaaaaab = 1 (mod 2^32), so -1/n = 0x55555555.
	n := new(big.Int).SetUint64(3)
	assert.Equal(t, uint32(0x55555555), montgomeryN0Inv(n))
}
