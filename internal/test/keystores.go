package test

import (
	"crypto/rand"

	"github.com/taurusgroup/multi-party-keystore/pkg/algo"
	"github.com/taurusgroup/multi-party-keystore/pkg/keystore"
	"github.com/taurusgroup/multi-party-keystore/pkg/math/curve"
	"github.com/taurusgroup/multi-party-keystore/pkg/math/polynomial"
	"github.com/taurusgroup/multi-party-keystore/pkg/math/sample"
	"github.com/taurusgroup/multi-party-keystore/pkg/paillier"
	"github.com/taurusgroup/multi-party-keystore/pkg/party"
)

// GenerateKeystores runs a local, non-interactive version of the Feldman DKG
// for parties 1…n and returns their keystores, ordered by index.
// Paillier keys for algo.ElGamal come from pool.
func GenerateKeystores(a algo.Algorithm, n, threshold int, pool *PaillierPool) ([]*keystore.Keystore, error) {
	group := a.Group()
	ids := make([]party.ID, n)
	for i := range ids {
		ids[i] = party.ID(i + 1)
	}

	polynomials := make(map[party.ID]*polynomial.Polynomial, n)
	commitments := make(map[party.ID][]curve.Point, n)
	for _, id := range ids {
		f := polynomial.NewPolynomial(group, threshold, sample.Scalar(rand.Reader, group), rand.Reader)
		polynomials[id] = f
		commitments[id] = polynomial.NewPolynomialExponent(f).Coefficients()
	}

	var (
		secrets map[party.ID]*paillier.SecretKey
		moduli  map[party.ID]*paillier.PublicKey
	)
	if a.UsesPaillier() {
		secrets = make(map[party.ID]*paillier.SecretKey, n)
		moduli = make(map[party.ID]*paillier.PublicKey, n)
		for _, id := range ids {
			sk, err := pool.KeyGen(rand.Reader)
			if err != nil {
				return nil, err
			}
			secrets[id] = sk
			moduli[id] = sk.PublicKey
		}
	}

	out := make([]*keystore.Keystore, 0, n)
	for _, id := range ids {
		share := group.NewScalar()
		for _, j := range ids {
			share.Add(polynomials[j].Evaluate(id.Scalar(group)))
		}
		params := keystore.Params{
			Algorithm:      a,
			ID:             id,
			BlindingScalar: polynomials[id].Constant(),
			SigningShare:   share,
			Commitments:    commitments,
		}
		if a.UsesPaillier() {
			params.EncryptionKey = secrets[id]
			params.PeerModuli = moduli
		}
		ks, err := keystore.New(params)
		if err != nil {
			return nil, err
		}
		out = append(out, ks)
	}
	return out, nil
}
