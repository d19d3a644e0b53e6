package wire

import (
	"bytes"
	"fmt"

	"github.com/taurusgroup/multi-party-keystore/pkg/algo"
	"github.com/taurusgroup/multi-party-keystore/pkg/signature"
)

// Signature is the scheme agnostic signature record.
//
//   - ElGamal/secp256k1: r is the x-coordinate of the nonce point, s is low-S and v the recovery id.
//   - Schnorr/ed25519: r ‖ s is the RFC 8032 signature, v is 0.
//   - Schnorr/taproot: r ‖ s is the BIP-340 signature, v is 0.
//
// PublicKey is the compressed key the signature verifies under.
type Signature struct {
	R         []byte         `cbor:"r"`
	S         []byte         `cbor:"s"`
	V         byte           `cbor:"v"`
	Algorithm algo.Algorithm `cbor:"algo"`
	PublicKey []byte         `cbor:"pk"`
}

// FromECDSA converts a recoverable ECDSA signature.
func FromECDSA(sig *signature.ECDSA) (*Signature, error) {
	s, err := sig.S.MarshalBinary()
	if err != nil {
		return nil, err
	}
	pk, err := sig.PublicKey.MarshalBinary()
	if err != nil {
		return nil, err
	}
	return &Signature{
		R:         sig.RBytes(),
		S:         s,
		V:         sig.RecoveryID,
		Algorithm: algo.ElGamalSecp256k1,
		PublicKey: pk,
	}, nil
}

// FromSchnorr converts an Ed25519 or taproot signature.
func FromSchnorr(sig *signature.Schnorr) (*Signature, error) {
	r, err := sig.RBytes()
	if err != nil {
		return nil, err
	}
	z, err := sig.ZBytes()
	if err != nil {
		return nil, err
	}
	pk, err := sig.PublicKey.MarshalBinary()
	if err != nil {
		return nil, err
	}
	return &Signature{
		R:         r,
		S:         z,
		Algorithm: sig.Algorithm,
		PublicKey: pk,
	}, nil
}

// EncodeSignature returns the canonical record of sig.
func EncodeSignature(sig *Signature) ([]byte, error) {
	if err := sig.Algorithm.Validate(); err != nil {
		return nil, err
	}
	return Marshal(sig)
}

// DecodeSignature parses a signature record, which must be tagged with expected.
func DecodeSignature(data []byte, expected algo.Algorithm) (*Signature, error) {
	if err := expected.Validate(); err != nil {
		return nil, err
	}
	var sig Signature
	if err := Unmarshal(data, &sig); err != nil {
		return nil, fmt.Errorf("wire: signature: %w", err)
	}
	if err := sig.Algorithm.Expect(expected); err != nil {
		return nil, fmt.Errorf("wire: signature: %w", err)
	}
	if len(sig.R) != 32 || len(sig.S) != 32 {
		return nil, fmt.Errorf("wire: signature: r and s must be 32 bytes, have %d and %d", len(sig.R), len(sig.S))
	}
	if len(sig.PublicKey) != expected.Group().PointBytes() {
		return nil, fmt.Errorf("wire: signature: public key has length %d", len(sig.PublicKey))
	}
	return &sig, nil
}

// Equal reports whether both records are byte for byte identical.
func (sig *Signature) Equal(other *Signature) bool {
	if sig == nil || other == nil {
		return sig == other
	}
	return sig.V == other.V &&
		sig.Algorithm == other.Algorithm &&
		bytes.Equal(sig.R, other.R) &&
		bytes.Equal(sig.S, other.S) &&
		bytes.Equal(sig.PublicKey, other.PublicKey)
}

// Bytes returns r ‖ s.
func (sig *Signature) Bytes() []byte {
	out := make([]byte, 0, len(sig.R)+len(sig.S))
	out = append(out, sig.R...)
	return append(out, sig.S...)
}
