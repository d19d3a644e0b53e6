// Package signature holds the raw signatures produced by the signing protocols, and their verification.
package signature

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/taurusgroup/multi-party-keystore/pkg/math/curve"
)

// ErrInvalidSignature is returned when a signature does not verify.
var ErrInvalidSignature = errors.New("signature: invalid signature")

// ECDSA is a recoverable secp256k1 signature, together with the key it verifies under.
type ECDSA struct {
	// R is the nonce point, whose x-coordinate is the r part of the signature.
	R curve.Point
	// S is always low-S normalized by NewECDSA.
	S         curve.Scalar
	PublicKey curve.Point
	// RecoveryID is the parity of R.y, flipped if S was negated.
	RecoveryID byte
}

// NewECDSA normalizes s to the lower half of the order and computes the recovery id.
func NewECDSA(R curve.Point, s curve.Scalar, public curve.Point) (*ECDSA, error) {
	point, ok := R.(*curve.Secp256k1Point)
	if !ok {
		return nil, fmt.Errorf("signature: ecdsa nonce point must be on secp256k1")
	}
	scalar, ok := s.(*curve.Secp256k1Scalar)
	if !ok {
		return nil, fmt.Errorf("signature: ecdsa scalar must be on secp256k1")
	}
	if point.IsIdentity() || scalar.IsZero() {
		return nil, fmt.Errorf("%w: zero component", ErrInvalidSignature)
	}

	normalized := curve.Secp256k1{}.NewScalar().Set(scalar)
	var v byte
	if !point.HasEvenY() {
		v = 1
	}
	if scalar.IsOverHalfOrder() {
		normalized.Negate()
		v ^= 1
	}
	if point.XOverflows() {
		v |= 2
	}
	return &ECDSA{
		R:          R,
		S:          normalized,
		PublicKey:  public,
		RecoveryID: v,
	}, nil
}

// RBytes returns the 32 byte big-endian x-coordinate of R.
func (sig *ECDSA) RBytes() []byte {
	return sig.R.(*curve.Secp256k1Point).XBytes()
}

func (sig *ECDSA) toBtcec() (*ecdsa.Signature, error) {
	var r, s btcec.ModNScalar
	r.SetByteSlice(sig.RBytes())
	sBytes, err := sig.S.MarshalBinary()
	if err != nil {
		return nil, err
	}
	if s.SetByteSlice(sBytes) {
		return nil, fmt.Errorf("%w: s overflows", ErrInvalidSignature)
	}
	return ecdsa.NewSignature(&r, &s), nil
}

// Verify checks the signature over a 32 byte digest.
func (sig *ECDSA) Verify(digest []byte) error {
	raw, err := sig.toBtcec()
	if err != nil {
		return err
	}
	publicBytes, err := sig.PublicKey.MarshalBinary()
	if err != nil {
		return err
	}
	pk, err := btcec.ParsePubKey(publicBytes)
	if err != nil {
		return fmt.Errorf("signature: %w", err)
	}
	if !raw.Verify(digest, pk) {
		return ErrInvalidSignature
	}
	return nil
}

// Compact returns the 65 byte [27+4+v ‖ r ‖ s] encoding used for public key recovery.
func (sig *ECDSA) Compact() ([]byte, error) {
	s, err := sig.S.MarshalBinary()
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, 65)
	out = append(out, 27+4+sig.RecoveryID)
	out = append(out, sig.RBytes()...)
	out = append(out, s...)
	return out, nil
}

// RecoverPublicKey returns the compressed key that produced the signature over digest.
func (sig *ECDSA) RecoverPublicKey(digest []byte) ([]byte, error) {
	compact, err := sig.Compact()
	if err != nil {
		return nil, err
	}
	pk, _, err := ecdsa.RecoverCompact(compact, digest)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSignature, err)
	}
	return pk.SerializeCompressed(), nil
}
