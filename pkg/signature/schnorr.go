package signature

import (
	"crypto/ed25519"
	"crypto/sha512"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/taurusgroup/multi-party-keystore/pkg/algo"
	"github.com/taurusgroup/multi-party-keystore/pkg/math/curve"
)

// Schnorr is an Ed25519 or BIP-340 signature.
//
// For taproot, R and PublicKey are stored with whatever parity they have,
// only their x-coordinates are part of the serialized signature.
type Schnorr struct {
	Algorithm algo.Algorithm
	R         curve.Point
	Z         curve.Scalar
	PublicKey curve.Point
}

func reverse(data []byte) []byte {
	out := make([]byte, len(data))
	for i := range data {
		out[len(data)-1-i] = data[i]
	}
	return out
}

// Challenge computes the Fiat-Shamir challenge c for the nonce point R, public key and message.
//
// Ed25519 uses c = SHA-512(R ‖ A ‖ M) read as a little-endian integer.
// Taproot uses c = H_BIP0340/challenge(x(R) ‖ x(P) ‖ M).
func Challenge(a algo.Algorithm, R, public curve.Point, message []byte) (curve.Scalar, error) {
	group := a.Group()
	switch a {
	case algo.SchnorrEd25519:
		rBytes, err := R.MarshalBinary()
		if err != nil {
			return nil, err
		}
		pBytes, err := public.MarshalBinary()
		if err != nil {
			return nil, err
		}
		h := sha512.New()
		_, _ = h.Write(rBytes)
		_, _ = h.Write(pBytes)
		_, _ = h.Write(message)
		return curve.ScalarFromBytesModOrder(group, reverse(h.Sum(nil))), nil
	case algo.SchnorrSecp256k1Taproot:
		rPoint, ok := R.(*curve.Secp256k1Point)
		if !ok {
			return nil, fmt.Errorf("signature: taproot nonce must be on secp256k1")
		}
		pPoint, ok := public.(*curve.Secp256k1Point)
		if !ok {
			return nil, fmt.Errorf("signature: taproot key must be on secp256k1")
		}
		h := chainhash.TaggedHash(chainhash.TagBIP0340Challenge, rPoint.XBytes(), pPoint.XBytes(), message)
		return curve.ScalarFromBytesModOrder(group, h[:]), nil
	default:
		return nil, fmt.Errorf("%w: %s is not a schnorr scheme", algo.ErrAlgorithmMismatch, a)
	}
}

// RBytes returns the serialized nonce: the compressed point for Ed25519, the x-coordinate for taproot.
func (sig *Schnorr) RBytes() ([]byte, error) {
	if sig.Algorithm == algo.SchnorrSecp256k1Taproot {
		point, ok := sig.R.(*curve.Secp256k1Point)
		if !ok {
			return nil, fmt.Errorf("signature: taproot nonce must be on secp256k1")
		}
		return point.XBytes(), nil
	}
	return sig.R.MarshalBinary()
}

// ZBytes returns z little-endian for Ed25519, and big-endian for taproot.
func (sig *Schnorr) ZBytes() ([]byte, error) {
	if sig.Algorithm == algo.SchnorrEd25519 {
		scalar, ok := sig.Z.(*curve.Edwards25519Scalar)
		if !ok {
			return nil, fmt.Errorf("signature: ed25519 scalar expected")
		}
		return scalar.LittleEndian(), nil
	}
	return sig.Z.MarshalBinary()
}

// Bytes returns the 64 byte signature R ‖ z, as expected by RFC 8032 and BIP-340 verifiers.
func (sig *Schnorr) Bytes() ([]byte, error) {
	r, err := sig.RBytes()
	if err != nil {
		return nil, err
	}
	z, err := sig.ZBytes()
	if err != nil {
		return nil, err
	}
	return append(r, z...), nil
}

// Verify checks the signature over message with a standard verifier for its algorithm.
func (sig *Schnorr) Verify(message []byte) error {
	raw, err := sig.Bytes()
	if err != nil {
		return err
	}
	switch sig.Algorithm {
	case algo.SchnorrEd25519:
		pk, err := sig.PublicKey.MarshalBinary()
		if err != nil {
			return err
		}
		if !ed25519.Verify(pk, message, raw) {
			return ErrInvalidSignature
		}
		return nil
	case algo.SchnorrSecp256k1Taproot:
		point, ok := sig.PublicKey.(*curve.Secp256k1Point)
		if !ok {
			return fmt.Errorf("signature: taproot key must be on secp256k1")
		}
		pk, err := schnorr.ParsePubKey(point.XBytes())
		if err != nil {
			return fmt.Errorf("signature: %w", err)
		}
		parsed, err := schnorr.ParseSignature(raw)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidSignature, err)
		}
		if !parsed.Verify(message, pk) {
			return ErrInvalidSignature
		}
		return nil
	default:
		return fmt.Errorf("%w: %s is not a schnorr scheme", algo.ErrAlgorithmMismatch, sig.Algorithm)
	}
}
