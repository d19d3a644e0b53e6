package paillier

import (
	"errors"
	"fmt"
	"io"

	"github.com/cronokirby/saferith"
	"github.com/taurusgroup/multi-party-keystore/internal/params"
	"github.com/taurusgroup/multi-party-keystore/pkg/math/sample"
)

var ErrInvalidModulus = errors.New("paillier: invalid modulus")

// PublicKey is a Paillier public key. It is represented by a modulus N.
type PublicKey struct {
	// n = p⋅q
	n *saferith.Modulus
	// nSquared = n²
	nSquared *saferith.Modulus

	// These values are cached out of convenience, and performance
	nNat *saferith.Nat
	// nPlusOne = n + 1
	nPlusOne *saferith.Nat
}

// N is the public modulus making up this key.
func (pk *PublicKey) N() *saferith.Modulus {
	return pk.n
}

// NewPublicKey returns an initialized PublicKey, after checking the size of n.
func NewPublicKey(n *saferith.Modulus) (*PublicKey, error) {
	if err := ValidateN(n); err != nil {
		return nil, err
	}
	return newPublicKey(n), nil
}

// NewPublicKeyFromBytes parses a big-endian modulus.
func NewPublicKeyFromBytes(data []byte) (*PublicKey, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty", ErrInvalidModulus)
	}
	return NewPublicKey(saferith.ModulusFromBytes(data))
}

func newPublicKey(n *saferith.Modulus) *PublicKey {
	oneNat := new(saferith.Nat).SetUint64(1)
	nNat := n.Nat()
	nSquared := saferith.ModulusFromNat(new(saferith.Nat).Mul(nNat, nNat, -1))
	nPlusOne := new(saferith.Nat).Add(nNat, oneNat, -1)
	// Tightening is fine, since n is public
	nPlusOne.Resize(nPlusOne.TrueLen())
	return &PublicKey{
		n:        n,
		nSquared: nSquared,
		nNat:     nNat,
		nPlusOne: nPlusOne,
	}
}

// ValidateN performs basic checks to make sure the modulus is valid:
// - log₂(n) ∈ {params.BitsPaillier - 1, params.BitsPaillier}.
// - n is odd.
func ValidateN(n *saferith.Modulus) error {
	if n == nil {
		return fmt.Errorf("%w: nil", ErrInvalidModulus)
	}
	if bits := n.BitLen(); bits < params.MinBitsPaillier || bits > params.BitsPaillier {
		return fmt.Errorf("%w: have %d bits, need %d", ErrInvalidModulus, bits, params.BitsPaillier)
	}
	if n.Nat().Byte(0)&1 != 1 {
		return fmt.Errorf("%w: modulus is even", ErrInvalidModulus)
	}
	return nil
}

// Enc returns the encryption of m under the public key pk.
// The nonce used to encrypt is returned.
//
// ct = (1+N)ᵐρᴺ (mod N²).
func (pk *PublicKey) Enc(rand io.Reader, m *saferith.Nat) (*Ciphertext, *saferith.Nat) {
	nonce := sample.UnitModN(rand, pk.n)
	return pk.EncWithNonce(m, nonce), nonce
}

// EncWithNonce returns the encryption of m under the public key pk, with the given nonce.
// It panics if m is not in [0, N).
func (pk *PublicKey) EncWithNonce(m *saferith.Nat, nonce *saferith.Nat) *Ciphertext {
	if _, _, lt := m.CmpMod(pk.n); lt != 1 {
		panic("paillier.Encrypt: tried to encrypt message outside of range [0, N)")
	}
	oneNat := new(saferith.Nat).SetUint64(1)
	// (N+1)ᵐ = 1 + m⋅N (mod N²)
	c := new(saferith.Nat).Mul(m, pk.nNat, -1)
	c.Add(c, oneNat, -1)
	c.Mod(c, pk.nSquared)
	// ρᴺ mod N²
	rhoN := new(saferith.Nat).Exp(nonce, pk.nNat, pk.nSquared)
	// (N+1)ᵐ rho ^ N
	c.ModMul(c, rhoN, pk.nSquared)
	return &Ciphertext{c: c}
}

// Equal returns true if pk ≡ other.
func (pk *PublicKey) Equal(other *PublicKey) bool {
	if pk == nil || other == nil {
		return pk == other
	}
	_, eq, _ := pk.n.Cmp(other.n)
	return eq == 1
}

// ValidateCiphertexts checks if all ciphertexts are in the correct range and coprime to N²
// ct ∈ [1, …, N²-1] AND GCD(ct,N²) = 1.
func (pk *PublicKey) ValidateCiphertexts(cts ...*Ciphertext) bool {
	for _, ct := range cts {
		if ct == nil || ct.c == nil {
			return false
		}
		if _, _, lt := ct.c.CmpMod(pk.nSquared); lt != 1 {
			return false
		}
		if ct.c.IsUnit(pk.nSquared) != 1 {
			return false
		}
	}
	return true
}

// Bytes returns the big-endian encoding of N.
func (pk *PublicKey) Bytes() []byte {
	return pk.n.Bytes()
}

// WriteTo implements io.WriterTo and should be used within the hash.Hash function.
func (pk *PublicKey) WriteTo(w io.Writer) (int64, error) {
	buf := make([]byte, params.BytesIntModN)
	pk.nNat.FillBytes(buf)
	n, err := w.Write(buf)
	return int64(n), err
}

// Domain implements hash.WriterToWithDomain, and separates this type within hash.Hash.
func (*PublicKey) Domain() string {
	return "Paillier PublicKey"
}
