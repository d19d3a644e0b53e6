package sample

import (
	"crypto/rand"
	"testing"

	"github.com/cronokirby/saferith"
	"github.com/stretchr/testify/assert"
	"github.com/taurusgroup/multi-party-keystore/pkg/math/curve"
)

func TestModN(t *testing.T) {
	n := saferith.ModulusFromUint64(3 * 5 * 7 * 11)
	for i := 0; i < 50; i++ {
		x := ModN(rand.Reader, n)
		_, _, lt := x.CmpMod(n)
		assert.Equal(t, saferith.Choice(1), lt)

		u := UnitModN(rand.Reader, n)
		assert.Equal(t, saferith.Choice(1), u.IsUnit(n))
	}
}

func TestBits(t *testing.T) {
	for i := 0; i < 20; i++ {
		assert.LessOrEqual(t, Bits(rand.Reader, 64).TrueLen(), 64)
	}
}

func TestScalarUnit(t *testing.T) {
	for _, group := range []curve.Curve{curve.Secp256k1{}, curve.Edwards25519{}} {
		s, S := ScalarPointPair(rand.Reader, group)
		assert.False(t, s.IsZero())
		assert.True(t, s.ActOnBase().Equal(S))
	}
}
