// Package helpers provides byte-order, bounds and string utilities shared by
// the vbmeta parsers and the slot verifier.
package helpers

import "encoding/binary"

// BE32 decodes a big-endian uint32 from the first 4 bytes of b.
func BE32(b []byte) uint32 {
	return binary.BigEndian.Uint32(b)
}

// BE64 decodes a big-endian uint64 from the first 8 bytes of b.
func BE64(b []byte) uint64 {
	return binary.BigEndian.Uint64(b)
}

// PutBE32 encodes v big-endian into the first 4 bytes of b.
func PutBE32(b []byte, v uint32) {
	binary.BigEndian.PutUint32(b, v)
}

// PutBE64 encodes v big-endian into the first 8 bytes of b.
func PutBE64(b []byte, v uint64) {
	binary.BigEndian.PutUint64(b, v)
}

// RoundUp8 rounds n up to the next multiple of 8. ok is false on overflow.
func RoundUp8(n uint64) (uint64, bool) {
	if n > ^uint64(0)-7 {
		return 0, false
	}
	return (n + 7) &^ 7, true
}
