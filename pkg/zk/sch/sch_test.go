package zksch

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/taurusgroup/multi-party-keystore/internal/hash"
	"github.com/taurusgroup/multi-party-keystore/pkg/math/curve"
	"github.com/taurusgroup/multi-party-keystore/pkg/math/sample"
)

func TestSchPass(t *testing.T) {
	for _, group := range []curve.Curve{curve.Secp256k1{}, curve.Edwards25519{}} {
		x, X := sample.ScalarPointPair(rand.Reader, group)

		proof := Prove(hash.New(), rand.Reader, X, x)
		assert.True(t, proof.Verify(hash.New(), X), "proof should pass")

		other := sample.Scalar(rand.Reader, group).ActOnBase()
		assert.False(t, proof.Verify(hash.New(), other), "proof for another point should fail")

		bound := hash.New(&hash.BytesWithDomain{TheDomain: "Party", Bytes: []byte("A")})
		assert.False(t, proof.Verify(bound, X), "proof with another hash state should fail")
	}
}

func TestSchRejectsNil(t *testing.T) {
	group := curve.Secp256k1{}
	var proof *Proof
	assert.False(t, proof.Verify(hash.New(), group.NewBasePoint()))
	assert.False(t, (&Proof{A: group.NewPoint(), Z: group.NewScalar()}).Verify(hash.New(), group.NewBasePoint()))
}
