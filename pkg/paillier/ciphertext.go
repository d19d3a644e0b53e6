package paillier

import (
	"fmt"

	"github.com/cronokirby/saferith"
	"github.com/taurusgroup/multi-party-keystore/internal/params"
)

// Ciphertext represents an integer of the for (1+N)ᵐρᴺ (mod N²), representing the encryption of m ∈ ℤₙˣ.
type Ciphertext struct {
	c *saferith.Nat
}

// Add sets ct to the homomorphic sum ct ⊕ ct₂.
// ct ← ct•ct₂ (mod N²).
func (ct *Ciphertext) Add(pk *PublicKey, ct2 *Ciphertext) *Ciphertext {
	if ct2 == nil {
		return ct
	}

	ct.c.ModMul(ct.c, ct2.c, pk.nSquared)

	return ct
}

// Mul sets ct to the homomorphic multiplication of k ⊙ ct.
// ct ← ctᵏ (mod N²).
func (ct *Ciphertext) Mul(pk *PublicKey, k *saferith.Nat) *Ciphertext {
	if k == nil {
		return ct
	}

	ct.c.Exp(ct.c, k, pk.nSquared)

	return ct
}

// Equal check whether ct ≡ ctₐ (mod N²).
func (ct *Ciphertext) Equal(ctA *Ciphertext) bool {
	return ct.c.Eq(ctA.c) == 1
}

// Clone returns a deep copy of ct.
func (ct Ciphertext) Clone() *Ciphertext {
	c := new(saferith.Nat)
	c.SetNat(ct.c)
	return &Ciphertext{c: c}
}

// MarshalBinary returns the fixed size big-endian encoding of the ciphertext.
func (ct *Ciphertext) MarshalBinary() ([]byte, error) {
	buf := make([]byte, params.BytesCiphertext)
	ct.c.FillBytes(buf)
	return buf, nil
}

// UnmarshalBinary parses a ciphertext, it must still be checked with PublicKey.ValidateCiphertexts.
func (ct *Ciphertext) UnmarshalBinary(data []byte) error {
	if len(data) != params.BytesCiphertext {
		return fmt.Errorf("paillier: invalid ciphertext length %d", len(data))
	}
	ct.c = new(saferith.Nat).SetBytes(data)
	return nil
}
