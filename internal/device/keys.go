package device

import (
	"bytes"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"

	"github.com/deploymenttheory/go-avb/internal/parsers/vbmeta"
)

// ErrUnsupportedKey is returned for key files that hold no RSA key.
var ErrUnsupportedKey = errors.New("unsupported key")

// LoadPublicKey reads a key file and returns it as an AVB public key block.
// The file may hold a key block or a PEM encoded RSA public or private key.
func LoadPublicKey(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}
	return DecodePublicKey(data)
}

// DecodePublicKey converts key material to an AVB public key block.
func DecodePublicKey(data []byte) ([]byte, error) {
	if !bytes.HasPrefix(bytes.TrimSpace(data), []byte("-----BEGIN")) {
		if _, _, err := vbmeta.ParseRSAPublicKey(data); err != nil {
			return nil, err
		}
		return data, nil
	}

	block, _ := pem.Decode(bytes.TrimSpace(data))
	if block == nil {
		return nil, fmt.Errorf("%w: malformed PEM data", ErrUnsupportedKey)
	}

	pub, err := rsaPublicKeyFromPEM(block)
	if err != nil {
		return nil, err
	}
	return vbmeta.EncodeRSAPublicKey(pub)
}

func rsaPublicKeyFromPEM(block *pem.Block) (*rsa.PublicKey, error) {
	switch block.Type {
	case "PUBLIC KEY":
		key, err := x509.ParsePKIXPublicKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("failed to parse public key: %w", err)
		}
		if pub, ok := key.(*rsa.PublicKey); ok {
			return pub, nil
		}
	case "RSA PUBLIC KEY":
		pub, err := x509.ParsePKCS1PublicKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("failed to parse public key: %w", err)
		}
		return pub, nil
	case "RSA PRIVATE KEY":
		priv, err := x509.ParsePKCS1PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("failed to parse private key: %w", err)
		}
		return &priv.PublicKey, nil
	case "PRIVATE KEY":
		key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("failed to parse private key: %w", err)
		}
		if priv, ok := key.(*rsa.PrivateKey); ok {
			return &priv.PublicKey, nil
		}
	default:
		return nil, fmt.Errorf("%w: PEM block %q", ErrUnsupportedKey, block.Type)
	}
	return nil, fmt.Errorf("%w: not an RSA key", ErrUnsupportedKey)
}
