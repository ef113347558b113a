package gomel

// PublicKey used for signature checking.
type PublicKey interface {
	// Verify checks if a unit has a correct signature.
	Verify(BaseUnit) bool
	// VerifyBytes checks if the signature of the given data is correct.
	VerifyBytes(data []byte, sig Signature) bool
	// Encode encodes the public key in base 64.
	Encode() string
}

// PrivateKey used for signing units and justification digests.
type PrivateKey interface {
	// Sign computes and returns a signature of a unit.
	Sign(*Hash) Signature
	// SignBytes computes and returns a signature of the given data.
	SignBytes([]byte) Signature
	// Encode encodes the private key in base 64.
	Encode() string
}
