// Package algo defines the closed set of signing suites a keystore can belong to.
package algo

import (
	"errors"
	"fmt"

	"github.com/taurusgroup/multi-party-keystore/pkg/math/curve"
)

// ErrAlgorithmMismatch is returned whenever a decoded or received tag differs from the expected one.
var ErrAlgorithmMismatch = errors.New("algo: algorithm mismatch")

// ErrUnknownAlgorithm is returned for (curve, scheme) pairs outside of the supported set.
var ErrUnknownAlgorithm = errors.New("algo: unknown algorithm")

// Curve identifies the group.
type Curve uint8

const (
	Secp256k1 Curve = iota + 1
	Ed25519
)

// Scheme identifies the signing protocol.
type Scheme uint8

const (
	// ElGamal is the Paillier-assisted threshold ECDSA scheme.
	ElGamal Scheme = iota + 1
	// Schnorr covers both Ed25519 and BIP-340 signatures.
	Schnorr
)

// Algorithm is a (curve, scheme) tag.
type Algorithm struct {
	Curve  Curve  `cbor:"curve"`
	Scheme Scheme `cbor:"scheme"`
}

var (
	ElGamalSecp256k1        = Algorithm{Curve: Secp256k1, Scheme: ElGamal}
	SchnorrEd25519          = Algorithm{Curve: Ed25519, Scheme: Schnorr}
	SchnorrSecp256k1Taproot = Algorithm{Curve: Secp256k1, Scheme: Schnorr}
)

// All lists every supported algorithm.
func All() []Algorithm {
	return []Algorithm{ElGamalSecp256k1, SchnorrEd25519, SchnorrSecp256k1Taproot}
}

// Validate returns ErrUnknownAlgorithm if a is not one of the supported variants.
func (a Algorithm) Validate() error {
	switch a {
	case ElGamalSecp256k1, SchnorrEd25519, SchnorrSecp256k1Taproot:
		return nil
	default:
		return fmt.Errorf("%w: curve %d, scheme %d", ErrUnknownAlgorithm, a.Curve, a.Scheme)
	}
}

// Expect returns ErrAlgorithmMismatch if a differs from expected.
func (a Algorithm) Expect(expected Algorithm) error {
	if a != expected {
		return fmt.Errorf("%w: expected %s, got %s", ErrAlgorithmMismatch, expected, a)
	}
	return nil
}

// Group returns the curve implementation. It panics on an invalid algorithm.
func (a Algorithm) Group() curve.Curve {
	switch a.Curve {
	case Secp256k1:
		return curve.Secp256k1{}
	case Ed25519:
		return curve.Edwards25519{}
	default:
		panic(fmt.Sprintf("algo: unknown curve %d", a.Curve))
	}
}

// UsesPaillier reports whether keystores of this algorithm carry Paillier keys.
func (a Algorithm) UsesPaillier() bool {
	return a.Scheme == ElGamal
}

func (c Curve) String() string {
	switch c {
	case Secp256k1:
		return "secp256k1"
	case Ed25519:
		return "ed25519"
	default:
		return fmt.Sprintf("curve(%d)", uint8(c))
	}
}

func (s Scheme) String() string {
	switch s {
	case ElGamal:
		return "elgamal"
	case Schnorr:
		return "schnorr"
	default:
		return fmt.Sprintf("scheme(%d)", uint8(s))
	}
}

func (a Algorithm) String() string {
	if a == SchnorrSecp256k1Taproot {
		return "schnorr/secp256k1-taproot"
	}
	return a.Scheme.String() + "/" + a.Curve.String()
}

// Parse returns the algorithm named by s, as produced by String.
func Parse(s string) (Algorithm, error) {
	for _, a := range All() {
		if a.String() == s {
			return a, nil
		}
	}
	return Algorithm{}, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, s)
}
