// Package testonly provides support for verified boot tests.
package testonly

import (
	"crypto/rand"
	"crypto/rsa"
	"fmt"
	"sync"
	"testing"

	"github.com/deploymenttheory/go-avb/internal/helpers"
	"github.com/deploymenttheory/go-avb/internal/parsers/descriptors"
	"github.com/deploymenttheory/go-avb/internal/parsers/vbmeta"
	"github.com/deploymenttheory/go-avb/internal/types"
)

var (
	keysMu sync.Mutex
	keys   = map[int]*rsa.PrivateKey{}
)

// Key returns an RSA key of the given size. Keys are generated once per
// test binary and shared between tests.
func Key(t testing.TB, bits int) *rsa.PrivateKey {
	t.Helper()
	keysMu.Lock()
	defer keysMu.Unlock()

	if k, ok := keys[bits]; ok {
		return k
	}
	k, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		t.Fatalf("failed to generate %d-bit key: %v", bits, err)
	}
	keys[bits] = k
	return k
}

// PublicKeyBlob returns the serialized vbmeta public key block for k.
func PublicKeyBlob(t testing.TB, k *rsa.PrivateKey) []byte {
	t.Helper()
	blob, err := vbmeta.EncodeRSAPublicKey(&k.PublicKey)
	if err != nil {
		t.Fatalf("failed to encode public key: %v", err)
	}
	return blob
}

// ImageBuilder assembles vbmeta images the way avbtool lays them out:
// hash then signature in the authentication block, descriptors then public
// key then key metadata in the auxiliary block.
type ImageBuilder struct {
	Algorithm             types.AlgorithmType
	Key                   *rsa.PrivateKey
	RollbackIndex         uint64
	RollbackIndexLocation uint32
	Flags                 uint32
	ReleaseString         string
	PublicKeyMetadata     []byte
	Descriptors           [][]byte
}

// AddHash appends a hash descriptor for content, computing its digest.
func (b *ImageBuilder) AddHash(partition string, salt, content []byte, hashName string) *ImageBuilder {
	digest, ok := helpers.Digest(hashName, salt, content)
	if !ok {
		digest = make([]byte, types.SHA256DigestSize)
	}
	d := &types.HashDescriptor{
		ImageSize:     uint64(len(content)),
		PartitionName: partition,
		Salt:          salt,
		Digest:        digest,
	}
	copy(d.HashAlgorithm[:], hashName)
	b.Descriptors = append(b.Descriptors, descriptors.EncodeHashDescriptor(d))
	return b
}

// AddChain appends a chain partition descriptor.
func (b *ImageBuilder) AddChain(partition string, location uint32, publicKey []byte) *ImageBuilder {
	b.Descriptors = append(b.Descriptors, descriptors.EncodeChainPartitionDescriptor(&types.ChainPartitionDescriptor{
		RollbackIndexLocation: location,
		PartitionName:         partition,
		PublicKey:             publicKey,
	}))
	return b
}

// AddCmdline appends a kernel command-line descriptor.
func (b *ImageBuilder) AddCmdline(cmdline string, flags uint32) *ImageBuilder {
	b.Descriptors = append(b.Descriptors, descriptors.EncodeKernelCmdlineDescriptor(&types.KernelCmdlineDescriptor{
		Flags:         flags,
		KernelCmdline: cmdline,
	}))
	return b
}

// AddProperty appends a property descriptor.
func (b *ImageBuilder) AddProperty(key, value string) *ImageBuilder {
	b.Descriptors = append(b.Descriptors, descriptors.EncodePropertyDescriptor(key, []byte(value)))
	return b
}

// AddRaw appends an already serialized descriptor.
func (b *ImageBuilder) AddRaw(record []byte) *ImageBuilder {
	b.Descriptors = append(b.Descriptors, record)
	return b
}

// Build serializes and, unless the algorithm is NONE, signs the image.
func (b *ImageBuilder) Build() ([]byte, error) {
	alg, ok := b.Algorithm.Data()
	if !ok {
		return nil, fmt.Errorf("unknown algorithm %d", b.Algorithm)
	}

	var publicKey []byte
	if b.Algorithm != types.AlgorithmNone {
		if b.Key == nil {
			return nil, fmt.Errorf("algorithm %s needs a key", alg.Name)
		}
		var err error
		if publicKey, err = vbmeta.EncodeRSAPublicKey(&b.Key.PublicKey); err != nil {
			return nil, err
		}
	}

	var descs []byte
	for _, d := range b.Descriptors {
		descs = append(descs, d...)
	}

	aux := append(append(append([]byte(nil), descs...), publicKey...), b.PublicKeyMetadata...)
	aux = pad64(aux)

	h := &types.VBMetaImageHeader{
		RequiredLibavbVersionMajor:  types.VBMetaVersionMajor,
		RequiredLibavbVersionMinor:  types.VBMetaVersionMinor,
		AuthenticationDataBlockSize: uint64(len(pad64(make([]byte, alg.HashLen+alg.SignatureLen)))),
		AuxiliaryDataBlockSize:      uint64(len(aux)),
		AlgorithmType:               uint32(b.Algorithm),
		HashOffset:                  0,
		HashSize:                    alg.HashLen,
		SignatureOffset:             alg.HashLen,
		SignatureSize:               alg.SignatureLen,
		PublicKeyOffset:             uint64(len(descs)),
		PublicKeySize:               uint64(len(publicKey)),
		PublicKeyMetadataOffset:     uint64(len(descs) + len(publicKey)),
		PublicKeyMetadataSize:       uint64(len(b.PublicKeyMetadata)),
		DescriptorsOffset:           0,
		DescriptorsSize:             uint64(len(descs)),
		RollbackIndex:               b.RollbackIndex,
		Flags:                       b.Flags,
		RollbackIndexLocation:       b.RollbackIndexLocation,
	}
	copy(h.Magic[:], types.VBMetaMagic)
	copy(h.ReleaseString[:], b.ReleaseString)

	header := vbmeta.EncodeHeader(h)
	auth := make([]byte, h.AuthenticationDataBlockSize)

	if b.Algorithm != types.AlgorithmNone {
		digest, hashID, _ := helpers.NewDigest(alg.HashName)
		digest.Write(header)
		digest.Write(aux)
		sum := digest.Sum(nil)

		sig, err := rsa.SignPKCS1v15(rand.Reader, b.Key, hashID, sum)
		if err != nil {
			return nil, fmt.Errorf("failed to sign image: %w", err)
		}
		copy(auth[h.HashOffset:], sum)
		copy(auth[h.SignatureOffset:], sig)
	}

	image := append(append(header, auth...), aux...)
	return image, nil
}

// MustBuild is Build for tests.
func (b *ImageBuilder) MustBuild(t testing.TB) []byte {
	t.Helper()
	image, err := b.Build()
	if err != nil {
		t.Fatalf("failed to build vbmeta image: %v", err)
	}
	return image
}

// AppendFooter returns a partition of partitionSize bytes holding content,
// the vbmeta image right after it and a footer in the last 64 bytes.
func AppendFooter(content, image []byte, partitionSize uint64) ([]byte, error) {
	vbmetaOffset := (uint64(len(content)) + 63) &^ 63
	need := vbmetaOffset + uint64(len(image)) + types.FooterSize
	if partitionSize < need {
		return nil, fmt.Errorf("partition size %d too small, need %d", partitionSize, need)
	}

	partition := make([]byte, partitionSize)
	copy(partition, content)
	copy(partition[vbmetaOffset:], image)
	copy(partition[partitionSize-types.FooterSize:], vbmeta.EncodeFooter(&types.Footer{
		OriginalImageSize: uint64(len(content)),
		VBMetaOffset:      vbmetaOffset,
		VBMetaSize:        uint64(len(image)),
	}))
	return partition, nil
}

func pad64(b []byte) []byte {
	if r := len(b) % types.VBMetaBlockAlignment; r != 0 {
		b = append(b, make([]byte, types.VBMetaBlockAlignment-r)...)
	}
	return b
}
