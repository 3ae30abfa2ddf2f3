package vbmeta_test

import (
	"os"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deploymenttheory/go-avb/internal/helpers"
	"github.com/deploymenttheory/go-avb/internal/parsers/vbmeta"
	"github.com/deploymenttheory/go-avb/internal/testonly"
	"github.com/deploymenttheory/go-avb/internal/types"
)

func TestMain(m *testing.M) {
	logrus.SetLevel(logrus.ErrorLevel)
	os.Exit(m.Run())
}

func signedImage(t *testing.T, alg types.AlgorithmType, bits int) []byte {
	t.Helper()
	b := &testonly.ImageBuilder{
		Algorithm:     alg,
		Key:           testonly.Key(t, bits),
		RollbackIndex: 42,
		ReleaseString: "avbtool 1.3.0",
	}
	b.AddCmdline("androidboot.foo=bar", 0).AddProperty("com.android.build.boot.os_version", "14")
	return b.MustBuild(t)
}

func unsignedImage(t *testing.T) []byte {
	t.Helper()
	b := &testonly.ImageBuilder{Algorithm: types.AlgorithmNone}
	b.AddCmdline("androidboot.foo=bar", 0)
	return b.MustBuild(t)
}

func TestVerifySignedImage(t *testing.T) {
	tests := []struct {
		alg  types.AlgorithmType
		bits int
	}{
		{types.AlgorithmSHA256RSA2048, 2048},
		{types.AlgorithmSHA512RSA2048, 2048},
		{types.AlgorithmSHA256RSA4096, 4096},
		{types.AlgorithmSHA512RSA4096, 4096},
	}
	for _, tc := range tests {
		t.Run(tc.alg.String(), func(t *testing.T) {
			if tc.bits > 2048 && testing.Short() {
				t.Skip("large key generation skipped in short mode")
			}
			image := signedImage(t, tc.alg, tc.bits)
			original := append([]byte(nil), image...)

			result, key, err := vbmeta.VerifyImage(image)
			require.NoError(t, err)
			assert.Equal(t, types.VBMetaVerifyOK, result)
			assert.Equal(t, testonly.PublicKeyBlob(t, testonly.Key(t, tc.bits)), key)
			assert.Equal(t, original, image, "caller buffer must not be modified")
		})
	}
}

func TestVerifyUnsignedImage(t *testing.T) {
	result, key, err := vbmeta.VerifyImage(unsignedImage(t))
	require.NoError(t, err)
	assert.Equal(t, types.VBMetaVerifyOKNotSigned, result)
	assert.Empty(t, key)
}

func TestVerifyTrailingPaddingIgnored(t *testing.T) {
	image := append(signedImage(t, types.AlgorithmSHA256RSA2048, 2048), make([]byte, 4096)...)
	result, _, err := vbmeta.VerifyImage(image)
	require.NoError(t, err)
	assert.Equal(t, types.VBMetaVerifyOK, result)
}

func TestVerifyInvalidHeader(t *testing.T) {
	signed := signedImage(t, types.AlgorithmSHA256RSA2048, 2048)
	unsigned := unsignedImage(t)

	tests := []struct {
		name   string
		base   []byte
		mutate func([]byte) []byte
		result types.VBMetaVerifyResult
		err    error
	}{
		{"shorter than header", signed, func(b []byte) []byte { return b[:types.VBMetaHeaderSize-1] },
			types.VBMetaVerifyInvalidVBMetaHeader, vbmeta.ErrInvalidHeader},
		{"bad magic", signed, func(b []byte) []byte { b[3] = '1'; return b },
			types.VBMetaVerifyInvalidVBMetaHeader, vbmeta.ErrInvalidHeader},
		{"newer major version", signed, func(b []byte) []byte {
			helpers.PutBE32(b[types.VBMetaOffsetVersionMajor:], 2)
			return b
		}, types.VBMetaVerifyUnsupportedVersion, vbmeta.ErrUnsupportedVersion},
		{"auth block not multiple of 64", signed, func(b []byte) []byte {
			helpers.PutBE64(b[types.VBMetaOffsetAuthenticationDataBlockSize:], 65)
			return b
		}, types.VBMetaVerifyInvalidVBMetaHeader, vbmeta.ErrInvalidHeader},
		{"aux block not multiple of 64", signed, func(b []byte) []byte {
			helpers.PutBE64(b[types.VBMetaOffsetAuxiliaryDataBlockSize:], 63)
			return b
		}, types.VBMetaVerifyInvalidVBMetaHeader, vbmeta.ErrInvalidHeader},
		{"blocks past end of buffer", signed, func(b []byte) []byte { return b[:len(b)-64] },
			types.VBMetaVerifyInvalidVBMetaHeader, vbmeta.ErrInvalidHeader},
		{"block sizes overflow", signed, func(b []byte) []byte {
			helpers.PutBE64(b[types.VBMetaOffsetAuthenticationDataBlockSize:], ^uint64(0)&^63)
			return b
		}, types.VBMetaVerifyInvalidVBMetaHeader, vbmeta.ErrInvalidHeader},
		{"unknown algorithm", signed, func(b []byte) []byte {
			helpers.PutBE32(b[types.VBMetaOffsetAlgorithmType:], uint32(types.AlgorithmNumTypes))
			return b
		}, types.VBMetaVerifyInvalidVBMetaHeader, vbmeta.ErrInvalidHeader},
		{"hash outside auth block", signed, func(b []byte) []byte {
			helpers.PutBE64(b[types.VBMetaOffsetHashOffset:], 1024)
			return b
		}, types.VBMetaVerifyInvalidVBMetaHeader, vbmeta.ErrInvalidHeader},
		{"hash offset wraps", signed, func(b []byte) []byte {
			helpers.PutBE64(b[types.VBMetaOffsetHashOffset:], ^uint64(0)-8)
			return b
		}, types.VBMetaVerifyInvalidVBMetaHeader, vbmeta.ErrInvalidHeader},
		{"signature outside auth block", signed, func(b []byte) []byte {
			helpers.PutBE64(b[types.VBMetaOffsetSignatureSize:], 4096)
			return b
		}, types.VBMetaVerifyInvalidVBMetaHeader, vbmeta.ErrInvalidHeader},
		{"public key outside aux block", signed, func(b []byte) []byte {
			helpers.PutBE64(b[types.VBMetaOffsetPublicKeySize:], 1<<20)
			return b
		}, types.VBMetaVerifyInvalidVBMetaHeader, vbmeta.ErrInvalidHeader},
		{"public key metadata outside aux block", signed, func(b []byte) []byte {
			helpers.PutBE64(b[types.VBMetaOffsetPublicKeyMetadataOffset:], 1<<20)
			return b
		}, types.VBMetaVerifyInvalidVBMetaHeader, vbmeta.ErrInvalidHeader},
		{"hash size does not match algorithm", signed, func(b []byte) []byte {
			helpers.PutBE64(b[types.VBMetaOffsetHashSize:], 20)
			return b
		}, types.VBMetaVerifyInvalidVBMetaHeader, vbmeta.ErrInvalidHeader},
		{"unsigned image with hash", unsigned, func(b []byte) []byte {
			helpers.PutBE64(b[types.VBMetaOffsetHashSize:], 0)
			helpers.PutBE64(b[types.VBMetaOffsetPublicKeyOffset:], 0)
			helpers.PutBE64(b[types.VBMetaOffsetPublicKeySize:], 8)
			return b
		}, types.VBMetaVerifyInvalidVBMetaHeader, vbmeta.ErrInvalidHeader},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			image := tc.mutate(append([]byte(nil), tc.base...))
			result, key, err := vbmeta.VerifyImage(image)
			assert.Equal(t, tc.result, result)
			assert.ErrorIs(t, err, tc.err)
			assert.Nil(t, key)
		})
	}
}

func TestVerifyAcceptsNewerMinorVersion(t *testing.T) {
	image := unsignedImage(t)
	helpers.PutBE32(image[types.VBMetaOffsetVersionMinor:], 99)
	result, _, err := vbmeta.VerifyImage(image)
	require.NoError(t, err)
	assert.Equal(t, types.VBMetaVerifyOKNotSigned, result)
}

func TestVerifyKeySizeMismatch(t *testing.T) {
	// A 2048-bit key cannot produce a SHA256_RSA4096 signature.
	b := &testonly.ImageBuilder{Algorithm: types.AlgorithmSHA256RSA4096, Key: testonly.Key(t, 2048)}
	result, _, err := vbmeta.VerifyImage(b.MustBuild(t))
	assert.Equal(t, types.VBMetaVerifySignatureMismatch, result)
	assert.ErrorIs(t, err, vbmeta.ErrSignatureMismatch)
}

func TestVerifyWrongSigner(t *testing.T) {
	image := signedImage(t, types.AlgorithmSHA256RSA2048, 2048)
	r, err := vbmeta.NewVBMetaImageReader(image)
	require.NoError(t, err)

	// Splice in a signature made by the same key over other content: the
	// hash still matches, the signature does not.
	other := &testonly.ImageBuilder{
		Algorithm:     types.AlgorithmSHA256RSA2048,
		Key:           testonly.Key(t, 2048),
		RollbackIndex: 43,
	}
	forged := other.MustBuild(t)
	fr, err := vbmeta.NewVBMetaImageReader(forged)
	require.NoError(t, err)
	copy(r.Signature(), fr.Signature())

	result, _, err := vbmeta.VerifyImage(image)
	assert.Equal(t, types.VBMetaVerifySignatureMismatch, result)
	assert.ErrorIs(t, err, vbmeta.ErrSignatureMismatch)
}

func TestVerifyTamperDetection(t *testing.T) {
	pristine := signedImage(t, types.AlgorithmSHA256RSA2048, 2048)
	r, err := vbmeta.NewVBMetaImageReader(pristine)
	require.NoError(t, err)
	h := r.Header()

	authStart := uint64(types.VBMetaHeaderSize)
	authEnd := authStart + h.AuthenticationDataBlockSize
	hashStart := authStart + h.HashOffset
	sigStart := authStart + h.SignatureOffset
	sigEnd := sigStart + h.SignatureSize
	auxEnd := authEnd + h.AuxiliaryDataBlockSize

	flip := func(offset uint64, bit uint) types.VBMetaVerifyResult {
		image := append([]byte(nil), pristine...)
		image[offset] ^= 1 << bit
		result, _, _ := vbmeta.VerifyImage(image)
		return result
	}

	type span struct {
		name       string
		start, end uint64
		want       types.VBMetaVerifyResult
	}
	spans := []span{
		{"minor version", types.VBMetaOffsetVersionMinor, types.VBMetaOffsetVersionMinor + 4, types.VBMetaVerifyHashMismatch},
		{"descriptor range", types.VBMetaOffsetDescriptorsOffset, types.VBMetaOffsetRollbackIndex, types.VBMetaVerifyHashMismatch},
		{"rollback index and flags", types.VBMetaOffsetRollbackIndex, types.VBMetaOffsetReleaseString, types.VBMetaVerifyHashMismatch},
		{"release string and reserved", types.VBMetaOffsetReleaseString, types.VBMetaHeaderSize, types.VBMetaVerifyHashMismatch},
		{"stored hash", hashStart, hashStart + h.HashSize, types.VBMetaVerifyHashMismatch},
		{"signature", sigStart, sigEnd, types.VBMetaVerifySignatureMismatch},
		{"auth block padding", sigEnd, authEnd, types.VBMetaVerifyOK},
	}
	for _, s := range spans {
		t.Run(s.name, func(t *testing.T) {
			require.Less(t, s.start, s.end)
			for off := s.start; off < s.end; off++ {
				for bit := uint(0); bit < 8; bit++ {
					if got := flip(off, bit); got != s.want {
						t.Fatalf("flip at %d bit %d: got %s, want %s", off, bit, got, s.want)
					}
				}
			}
		})
	}

	t.Run("auxiliary block", func(t *testing.T) {
		for off := authEnd; off < auxEnd; off++ {
			if got := flip(off, uint(off%8)); got != types.VBMetaVerifyHashMismatch {
				t.Fatalf("flip at %d: got %s, want %s", off, got, types.VBMetaVerifyHashMismatch)
			}
		}
	})
}

func TestImageReader(t *testing.T) {
	image := signedImage(t, types.AlgorithmSHA256RSA2048, 2048)
	r, err := vbmeta.NewVBMetaImageReader(append(image, 0, 0, 0))
	require.NoError(t, err)

	assert.Equal(t, types.AlgorithmSHA256RSA2048, r.Algorithm())
	assert.Equal(t, uint64(len(image)), r.ImageSize())
	assert.Equal(t, image, r.Image())
	assert.Equal(t, uint64(42), r.RollbackIndex())
	assert.Equal(t, "avbtool 1.3.0", r.ReleaseString())
	assert.Len(t, r.Hash(), types.SHA256DigestSize)
	assert.Len(t, r.Signature(), 256)
	assert.Empty(t, r.PublicKeyMetadata())

	pub, err := r.RSAPublicKey()
	require.NoError(t, err)
	assert.Equal(t, testonly.Key(t, 2048).PublicKey.N, pub.N)

	descs, err := r.Descriptors()
	require.NoError(t, err)
	require.Len(t, descs, 2)
	cmdline, ok := descs[0].(*types.KernelCmdlineDescriptor)
	require.True(t, ok)
	assert.Equal(t, "androidboot.foo=bar", cmdline.KernelCmdline)

	unsigned, err := vbmeta.NewVBMetaImageReader(unsignedImage(t))
	require.NoError(t, err)
	_, err = unsigned.RSAPublicKey()
	assert.ErrorIs(t, err, vbmeta.ErrInvalidPublicKey)

	_, err = vbmeta.NewVBMetaImageReader(image[:100])
	assert.ErrorIs(t, err, vbmeta.ErrInvalidHeader)
}

func FuzzVerifyImage(f *testing.F) {
	f.Add(make([]byte, types.VBMetaHeaderSize))
	f.Add(append([]byte(types.VBMetaMagic), make([]byte, 508)...))

	f.Fuzz(func(t *testing.T, data []byte) {
		original := append([]byte(nil), data...)
		result, key, err := vbmeta.VerifyImage(data)
		if result.Succeeded() != (err == nil) {
			t.Fatalf("result %s inconsistent with error %v", result, err)
		}
		if err != nil && key != nil {
			t.Fatalf("key returned with error %v", err)
		}
		if string(original) != string(data) {
			t.Fatal("input modified")
		}
	})
}
