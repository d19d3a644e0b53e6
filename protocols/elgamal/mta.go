package elgamal

import (
	"io"

	"github.com/cronokirby/saferith"
	"github.com/taurusgroup/multi-party-keystore/internal/params"
	"github.com/taurusgroup/multi-party-keystore/pkg/math/curve"
	"github.com/taurusgroup/multi-party-keystore/pkg/math/sample"
	"github.com/taurusgroup/multi-party-keystore/pkg/paillier"
)

func scalarNat(s curve.Scalar) *saferith.Nat {
	data, _ := s.MarshalBinary()
	return new(saferith.Nat).SetBytes(data)
}

// mta converts the product of the sender's aᵢ and the receiver's bⱼ into additive shares.
// K = Encⱼ(bⱼ) is the receiver's ciphertext, and pk its public key.
//
// It returns D = (aᵢ ⊙ K) ⊕ Encⱼ(β'), and β = -β' mod q, so that Decⱼ(D) + β = aᵢ⋅bⱼ mod q.
// Since β' < 2ˡ', with l' = params.LPrime, the plaintext of D never wraps around N.
func mta(rand io.Reader, a curve.Scalar, K *paillier.Ciphertext, pk *paillier.PublicKey) (*paillier.Ciphertext, curve.Scalar) {
	betaPrime := sample.Bits(rand, params.LPrime)

	D := K.Clone().Mul(pk, scalarNat(a))
	mask, _ := pk.Enc(rand, betaPrime)
	D.Add(pk, mask)

	beta := a.Curve().NewScalar().SetNat(betaPrime).Negate()
	return D, beta
}

// decryptShare returns α = Decᵢ(D) mod q.
func decryptShare(group curve.Curve, sk *paillier.SecretKey, D *paillier.Ciphertext) (curve.Scalar, error) {
	alpha, err := sk.Dec(D)
	if err != nil {
		return nil, err
	}
	return group.NewScalar().SetNat(alpha), nil
}
