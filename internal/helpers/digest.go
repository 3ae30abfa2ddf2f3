package helpers

import (
	"crypto"
	"crypto/sha256"
	"crypto/sha512"
	"hash"
)

// NewDigest returns a hash for one of the two digest names used in vbmeta
// images, "sha256" or "sha512".
func NewDigest(name string) (hash.Hash, crypto.Hash, bool) {
	switch name {
	case "sha256":
		return sha256.New(), crypto.SHA256, true
	case "sha512":
		return sha512.New(), crypto.SHA512, true
	default:
		return nil, 0, false
	}
}

// Digest hashes the concatenation of parts with the named algorithm.
func Digest(name string, parts ...[]byte) ([]byte, bool) {
	h, _, ok := NewDigest(name)
	if !ok {
		return nil, false
	}
	for _, p := range parts {
		h.Write(p)
	}
	return h.Sum(nil), true
}
