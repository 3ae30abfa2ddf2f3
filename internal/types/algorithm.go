package types

import "fmt"

// AlgorithmType identifies the hash and signature scheme of a vbmeta image.
// RSA signatures use PKCS#1 v1.5 padding.
type AlgorithmType uint32

const (
	// AlgorithmNone means no hash, no signature and no public key.
	AlgorithmNone AlgorithmType = iota
	AlgorithmSHA256RSA2048
	AlgorithmSHA256RSA4096
	AlgorithmSHA256RSA8192
	AlgorithmSHA512RSA2048
	AlgorithmSHA512RSA4096
	AlgorithmSHA512RSA8192

	// AlgorithmNumTypes is one past the last valid algorithm.
	AlgorithmNumTypes
)

// Digest sizes of the recognized hash functions.
const (
	SHA256DigestSize = 32
	SHA512DigestSize = 64
)

// Names of the two digest algorithms recognized in hash descriptors.
const (
	HashAlgorithmSHA256 = "sha256"
	HashAlgorithmSHA512 = "sha512"
)

// AlgorithmData describes the sizes implied by an AlgorithmType.
type AlgorithmData struct {
	// Name as used by avbtool, e.g. "SHA256_RSA2048".
	Name string

	// Hash function name, "sha256" or "sha512". Empty for AlgorithmNone.
	HashName string

	// Digest length in bytes.
	HashLen uint64

	// Signature length in bytes, equal to the key size in bytes.
	SignatureLen uint64

	// RSA key size in bits.
	KeyNumBits uint32
}

var algorithms = [AlgorithmNumTypes]AlgorithmData{
	AlgorithmNone:          {Name: "NONE"},
	AlgorithmSHA256RSA2048: {Name: "SHA256_RSA2048", HashName: HashAlgorithmSHA256, HashLen: SHA256DigestSize, SignatureLen: 256, KeyNumBits: 2048},
	AlgorithmSHA256RSA4096: {Name: "SHA256_RSA4096", HashName: HashAlgorithmSHA256, HashLen: SHA256DigestSize, SignatureLen: 512, KeyNumBits: 4096},
	AlgorithmSHA256RSA8192: {Name: "SHA256_RSA8192", HashName: HashAlgorithmSHA256, HashLen: SHA256DigestSize, SignatureLen: 1024, KeyNumBits: 8192},
	AlgorithmSHA512RSA2048: {Name: "SHA512_RSA2048", HashName: HashAlgorithmSHA512, HashLen: SHA512DigestSize, SignatureLen: 256, KeyNumBits: 2048},
	AlgorithmSHA512RSA4096: {Name: "SHA512_RSA4096", HashName: HashAlgorithmSHA512, HashLen: SHA512DigestSize, SignatureLen: 512, KeyNumBits: 4096},
	AlgorithmSHA512RSA8192: {Name: "SHA512_RSA8192", HashName: HashAlgorithmSHA512, HashLen: SHA512DigestSize, SignatureLen: 1024, KeyNumBits: 8192},
}

// Valid reports whether a is a known algorithm.
func (a AlgorithmType) Valid() bool {
	return a < AlgorithmNumTypes
}

// Data returns the sizes for a. ok is false for unknown algorithms.
func (a AlgorithmType) Data() (AlgorithmData, bool) {
	if !a.Valid() {
		return AlgorithmData{}, false
	}
	return algorithms[a], true
}

func (a AlgorithmType) String() string {
	if d, ok := a.Data(); ok {
		return d.Name
	}
	return fmt.Sprintf("UNKNOWN(%d)", uint32(a))
}

// AlgorithmByName returns the algorithm with the given avbtool name.
func AlgorithmByName(name string) (AlgorithmType, bool) {
	for i, d := range algorithms {
		if d.Name == name {
			return AlgorithmType(i), true
		}
	}
	return 0, false
}
