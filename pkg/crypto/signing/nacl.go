// Package signing implements the keystore adapter used to sign and verify units and justifications.
package signing

import (
	"encoding/base64"
	"errors"

	"golang.org/x/crypto/nacl/sign"

	"github.com/Cardinal-Cryptography/aleph-node/pkg/gomel"
)

type publicKey struct {
	data *[32]byte
}

type privateKey struct {
	data *[64]byte
}

// Verify checks if the signature of the unit is correct.
func (pub *publicKey) Verify(bu gomel.BaseUnit) bool {
	return pub.VerifyBytes(bu.Hash()[:], bu.Signature())
}

// VerifyBytes checks if sig is a correct signature of data.
func (pub *publicKey) VerifyBytes(data []byte, sig gomel.Signature) bool {
	if len(sig) != sign.Overhead {
		return false
	}
	msgSig := make([]byte, 0, len(sig)+len(data))
	msgSig = append(msgSig, sig...)
	msgSig = append(msgSig, data...)
	_, v := sign.Open(nil, msgSig, pub.data)
	return v
}

// Encode encodes the public key in base 64.
func (pub *publicKey) Encode() string {
	return base64.StdEncoding.EncodeToString(pub.data[:])
}

// Sign signs a unit hash and returns only the signature.
func (priv *privateKey) Sign(h *gomel.Hash) gomel.Signature {
	return priv.SignBytes(h[:])
}

// SignBytes signs data and returns only the signature.
func (priv *privateKey) SignBytes(data []byte) gomel.Signature {
	return sign.Sign(nil, data, priv.data)[:sign.Overhead]
}

// Encode encodes the private key in base 64.
func (priv *privateKey) Encode() string {
	return base64.StdEncoding.EncodeToString(priv.data[:])
}

// GenerateKeys produces a pair of keys for signing units.
func GenerateKeys() (gomel.PublicKey, gomel.PrivateKey, error) {
	pubData, privData, err := sign.GenerateKey(nil)
	if err != nil {
		return nil, nil, err
	}
	return &publicKey{pubData}, &privateKey{privData}, nil
}

// DecodePublicKey decodes a public key encoded in base 64.
func DecodePublicKey(enc string) (gomel.PublicKey, error) {
	data, err := base64.StdEncoding.DecodeString(enc)
	if err != nil {
		return nil, err
	}
	if len(data) != 32 {
		return nil, errors.New("wrong length of public key")
	}
	result := &publicKey{new([32]byte)}
	copy(result.data[:], data)
	return result, nil
}

// DecodePrivateKey decodes a private key encoded in base 64.
func DecodePrivateKey(enc string) (gomel.PrivateKey, error) {
	data, err := base64.StdEncoding.DecodeString(enc)
	if err != nil {
		return nil, err
	}
	if len(data) != 64 {
		return nil, errors.New("wrong length of private key")
	}
	result := &privateKey{new([64]byte)}
	copy(result.data[:], data)
	return result, nil
}
