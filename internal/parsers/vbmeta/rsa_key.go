package vbmeta

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"math/big"

	"golang.org/x/crypto/cryptobyte"

	"github.com/deploymenttheory/go-avb/internal/types"
)

// ErrInvalidPublicKey is returned for a malformed public key block.
var ErrInvalidPublicKey = errors.New("invalid public key")

var two32 = new(big.Int).Lsh(big.NewInt(1), 32)

// ParseRSAPublicKey decodes a serialized vbmeta public key block:
// key_num_bits, n0inv, n and R^2 mod n. The Montgomery values are checked
// against the modulus.
func ParseRSAPublicKey(block []byte) (*rsa.PublicKey, *types.RSAPublicKeyHeader, error) {
	s := cryptobyte.String(block)

	var hdr types.RSAPublicKeyHeader
	if !s.ReadUint32(&hdr.KeyNumBits) || !s.ReadUint32(&hdr.N0Inv) {
		return nil, nil, fmt.Errorf("%w: %d bytes is smaller than the key header", ErrInvalidPublicKey, len(block))
	}

	switch hdr.KeyNumBits {
	case 2048, 4096, 8192:
	default:
		return nil, nil, fmt.Errorf("%w: unsupported key size %d", ErrInvalidPublicKey, hdr.KeyNumBits)
	}

	var nBytes, rrBytes []byte
	keyLen := int(hdr.KeyNumBits / 8)
	if !s.ReadBytes(&nBytes, keyLen) || !s.ReadBytes(&rrBytes, keyLen) || !s.Empty() {
		return nil, nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidPublicKey, types.RSAPublicKeyHeaderSize+2*keyLen, len(block))
	}

	n := new(big.Int).SetBytes(nBytes)
	if n.BitLen() != int(hdr.KeyNumBits) || n.Bit(0) == 0 {
		return nil, nil, fmt.Errorf("%w: modulus is not a %d-bit odd number", ErrInvalidPublicKey, hdr.KeyNumBits)
	}
	if hdr.N0Inv != montgomeryN0Inv(n) {
		return nil, nil, fmt.Errorf("%w: n0inv does not match modulus", ErrInvalidPublicKey)
	}
	if new(big.Int).SetBytes(rrBytes).Cmp(montgomeryRR(n, hdr.KeyNumBits)) != 0 {
		return nil, nil, fmt.Errorf("%w: rr does not match modulus", ErrInvalidPublicKey)
	}

	return &rsa.PublicKey{N: n, E: types.RSAPublicExponent}, &hdr, nil
}

// EncodeRSAPublicKey serializes pub into a vbmeta public key block.
func EncodeRSAPublicKey(pub *rsa.PublicKey) ([]byte, error) {
	if pub == nil || pub.N == nil {
		return nil, fmt.Errorf("%w: nil key", ErrInvalidPublicKey)
	}
	if pub.E != types.RSAPublicExponent {
		return nil, fmt.Errorf("%w: exponent must be %d, got %d", ErrInvalidPublicKey, types.RSAPublicExponent, pub.E)
	}

	bits := uint32(pub.N.BitLen())
	switch bits {
	case 2048, 4096, 8192:
	default:
		return nil, fmt.Errorf("%w: unsupported key size %d", ErrInvalidPublicKey, bits)
	}

	keyLen := int(bits / 8)
	b := cryptobyte.NewBuilder(make([]byte, 0, types.RSAPublicKeyHeaderSize+2*keyLen))
	b.AddUint32(bits)
	b.AddUint32(montgomeryN0Inv(pub.N))
	b.AddBytes(pub.N.FillBytes(make([]byte, keyLen)))
	b.AddBytes(montgomeryRR(pub.N, bits).FillBytes(make([]byte, keyLen)))
	return b.Bytes()
}

// montgomeryN0Inv returns -1/n mod 2^32.
func montgomeryN0Inv(n *big.Int) uint32 {
	inv := new(big.Int).ModInverse(new(big.Int).Mod(n, two32), two32)
	if inv == nil {
		return 0
	}
	return uint32(new(big.Int).Sub(two32, inv).Uint64())
}

// montgomeryRR returns (2^bits)^2 mod n.
func montgomeryRR(n *big.Int, bits uint32) *big.Int {
	rr := new(big.Int).Lsh(big.NewInt(1), uint(2*bits))
	return rr.Mod(rr, n)
}
