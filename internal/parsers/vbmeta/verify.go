package vbmeta

import (
	"bytes"
	"crypto/rsa"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/deploymenttheory/go-avb/internal/helpers"
	"github.com/deploymenttheory/go-avb/internal/types"
)

// VerifyImage checks that data holds a well-formed vbmeta image that is
// either unsigned or correctly signed by the key it embeds. On success the
// embedded public key block is returned; it is empty for unsigned images.
// data is never modified.
//
// The hash covers the header and the auxiliary block. Bytes of the
// authentication block outside the hash and signature are not covered.
func VerifyImage(data []byte) (types.VBMetaVerifyResult, []byte, error) {
	l, result, err := parseLayout(data)
	if err != nil {
		logrus.Warnf("vbmeta: %v", err)
		return result, nil, err
	}
	h := l.header

	if l.algorithm == types.AlgorithmNone {
		if h.HashSize != 0 || h.SignatureSize != 0 || h.PublicKeySize != 0 {
			err := fmt.Errorf("%w: unsigned image carries hash, signature or public key", ErrInvalidHeader)
			logrus.Warnf("vbmeta: %v", err)
			return types.VBMetaVerifyInvalidVBMetaHeader, nil, err
		}
		return types.VBMetaVerifyOKNotSigned, nil, nil
	}

	alg, _ := l.algorithm.Data()
	if h.HashSize != alg.HashLen {
		err := fmt.Errorf("%w: hash size %d does not match %s", ErrInvalidHeader, h.HashSize, alg.Name)
		logrus.Warnf("vbmeta: %v", err)
		return types.VBMetaVerifyInvalidVBMetaHeader, nil, err
	}

	digest, hashID, _ := helpers.NewDigest(alg.HashName)
	digest.Write(l.image[:types.VBMetaHeaderSize])
	digest.Write(l.aux)
	computed := digest.Sum(nil)

	if !bytes.Equal(computed, l.hash()) {
		logrus.Warnf("vbmeta: %v", ErrHashMismatch)
		return types.VBMetaVerifyHashMismatch, nil, ErrHashMismatch
	}

	publicKey := l.publicKey()
	pub, keyHdr, err := ParseRSAPublicKey(publicKey)
	if err != nil {
		err = fmt.Errorf("%w: %v", ErrSignatureMismatch, err)
		logrus.Warnf("vbmeta: %v", err)
		return types.VBMetaVerifySignatureMismatch, nil, err
	}
	if keyHdr.KeyNumBits != alg.KeyNumBits || h.SignatureSize != alg.SignatureLen {
		err := fmt.Errorf("%w: %d-bit key or %d-byte signature does not match %s", ErrSignatureMismatch, keyHdr.KeyNumBits, h.SignatureSize, alg.Name)
		logrus.Warnf("vbmeta: %v", err)
		return types.VBMetaVerifySignatureMismatch, nil, err
	}

	if err := rsa.VerifyPKCS1v15(pub, hashID, computed, l.signature()); err != nil {
		err = fmt.Errorf("%w: %v", ErrSignatureMismatch, err)
		logrus.Warnf("vbmeta: %v", err)
		return types.VBMetaVerifySignatureMismatch, nil, err
	}

	return types.VBMetaVerifyOK, publicKey, nil
}
