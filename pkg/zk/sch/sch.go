// Package zksch is a Schnorr proof of knowledge of a discrete logarithm.
// Dealers attach one to the constant of their polynomial.
package zksch

import (
	"io"

	"github.com/taurusgroup/multi-party-keystore/internal/hash"
	"github.com/taurusgroup/multi-party-keystore/pkg/math/curve"
	"github.com/taurusgroup/multi-party-keystore/pkg/math/sample"
)

type Proof struct {
	// A = a⋅G
	A curve.Point
	// Z = a + e⋅x
	Z curve.Scalar
}

func challenge(hash *hash.Hash, group curve.Curve, A, X curve.Point) curve.Scalar {
	_ = hash.WriteAny(A, X)
	return hash.Scalar(group)
}

// Prove returns a proof that the prover knows x such that X = x⋅G.
// The hash should be bound to the prover's identity.
func Prove(hash *hash.Hash, rand io.Reader, X curve.Point, x curve.Scalar) *Proof {
	group := x.Curve()
	a, A := sample.ScalarPointPair(rand, group)
	e := challenge(hash, group, A, X)
	z := e.Mul(x).Add(a)
	return &Proof{A: A, Z: z}
}

// Verify checks that z⋅G = A + e⋅X.
func (p *Proof) Verify(hash *hash.Hash, X curve.Point) bool {
	if p == nil || p.A == nil || p.Z == nil || X == nil {
		return false
	}
	if p.A.IsIdentity() || X.IsIdentity() {
		return false
	}

	group := X.Curve()
	e := challenge(hash, group, p.A, X)

	lhs := p.Z.ActOnBase()
	rhs := e.Act(X).Add(p.A)
	return lhs.Equal(rhs)
}
