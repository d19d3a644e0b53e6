package curve_test

import (
	"crypto/rand"
	"testing"

	"filippo.io/edwards25519"
	"github.com/cronokirby/saferith"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taurusgroup/multi-party-keystore/pkg/math/curve"
	"github.com/taurusgroup/multi-party-keystore/pkg/math/sample"
)

var groups = []curve.Curve{curve.Secp256k1{}, curve.Edwards25519{}}

func TestScalarRoundTrip(t *testing.T) {
	for _, group := range groups {
		t.Run(group.Name(), func(t *testing.T) {
			s := sample.Scalar(rand.Reader, group)
			data, err := s.MarshalBinary()
			require.NoError(t, err)
			require.Len(t, data, 32)

			s2, err := curve.DecodeScalar(group, data)
			require.NoError(t, err)
			assert.True(t, s.Equal(s2))
		})
	}
}

func TestScalarDecodeErrors(t *testing.T) {
	for _, group := range groups {
		t.Run(group.Name(), func(t *testing.T) {
			_, err := curve.DecodeScalar(group, make([]byte, 31))
			assert.ErrorIs(t, err, curve.ErrInvalidScalarLength)

			order := make([]byte, 32)
			group.Order().Nat().FillBytes(order)
			_, err = curve.DecodeScalar(group, order)
			assert.ErrorIs(t, err, curve.ErrNonCanonicalScalar)
		})
	}
}

func TestScalarFromBytesModOrder(t *testing.T) {
	for _, group := range groups {
		t.Run(group.Name(), func(t *testing.T) {
			order := group.Order().Nat()

			// n + 5 reduces to 5
			data := make([]byte, 40)
			new(saferith.Nat).Add(order, new(saferith.Nat).SetUint64(5), -1).FillBytes(data)
			s := curve.ScalarFromBytesModOrder(group, data)
			assert.True(t, s.Equal(group.NewScalar().SetNat(new(saferith.Nat).SetUint64(5))))

			// big-endian interpretation
			one := curve.ScalarFromBytesModOrder(group, []byte{0, 0, 1})
			encoded, err := one.MarshalBinary()
			require.NoError(t, err)
			assert.Equal(t, byte(1), encoded[31])
		})
	}
}

func TestPointRoundTrip(t *testing.T) {
	for _, group := range groups {
		t.Run(group.Name(), func(t *testing.T) {
			p := sample.Scalar(rand.Reader, group).ActOnBase()
			data, err := p.MarshalBinary()
			require.NoError(t, err)
			require.Len(t, data, group.PointBytes())

			p2, err := curve.DecodePoint(group, data)
			require.NoError(t, err)
			assert.True(t, p.Equal(p2))

			_, err = curve.DecodePoint(group, data[:len(data)-1])
			assert.ErrorIs(t, err, curve.ErrNotOnCurve)
		})
	}
}

func TestPointNotOnCurve(t *testing.T) {
	// x = 5 has no matching y on secp256k1
	bad := make([]byte, 33)
	bad[0] = 2
	bad[32] = 5
	_, err := curve.DecodePoint(curve.Secp256k1{}, bad)
	assert.ErrorIs(t, err, curve.ErrNotOnCurve)

	bad[0] = 4
	_, err = curve.DecodePoint(curve.Secp256k1{}, bad)
	assert.ErrorIs(t, err, curve.ErrNotOnCurve)

	// y = 2 is not on edwards25519
	badEd := make([]byte, 32)
	badEd[0] = 2
	_, err = curve.DecodePoint(curve.Edwards25519{}, badEd)
	assert.ErrorIs(t, err, curve.ErrNotOnCurve)
}

func TestEdwards25519RejectsTorsion(t *testing.T) {
	// (0, -1) has order 2
	torsion := make([]byte, 32)
	torsion[0] = 0xec
	for i := 1; i < 31; i++ {
		torsion[i] = 0xff
	}
	torsion[31] = 0x7f
	T, err := new(edwards25519.Point).SetBytes(torsion)
	require.NoError(t, err)

	_, err = curve.DecodePoint(curve.Edwards25519{}, torsion)
	assert.ErrorIs(t, err, curve.ErrNotOnCurve)

	mixed := new(edwards25519.Point).Add(edwards25519.NewGeneratorPoint(), T)
	_, err = curve.DecodePoint(curve.Edwards25519{}, mixed.Bytes())
	assert.ErrorIs(t, err, curve.ErrNotOnCurve)

	g, err := curve.DecodePoint(curve.Edwards25519{}, edwards25519.NewGeneratorPoint().Bytes())
	require.NoError(t, err)
	assert.True(t, g.Equal(curve.Edwards25519{}.NewBasePoint()))

	identity, err := curve.DecodePoint(curve.Edwards25519{}, edwards25519.NewIdentityPoint().Bytes())
	require.NoError(t, err)
	assert.True(t, identity.IsIdentity())
}

func TestArithmetic(t *testing.T) {
	for _, group := range groups {
		t.Run(group.Name(), func(t *testing.T) {
			a := sample.Scalar(rand.Reader, group)
			b := sample.Scalar(rand.Reader, group)

			// (a+b)G = aG + bG
			sum := group.NewScalar().Set(a).Add(b)
			assert.True(t, sum.ActOnBase().Equal(a.ActOnBase().Add(b.ActOnBase())))

			// (a-b)G = aG - bG
			diff := group.NewScalar().Set(a).Sub(b)
			assert.True(t, diff.ActOnBase().Equal(a.ActOnBase().Sub(b.ActOnBase())))

			// a⋅(bG) = (ab)G
			prod := group.NewScalar().Set(a).Mul(b)
			assert.True(t, a.Act(b.ActOnBase()).Equal(prod.ActOnBase()))

			// a⋅a⁻¹ = 1
			inv := group.NewScalar().Set(a).Invert()
			assert.True(t, inv.Mul(a).ActOnBase().Equal(group.NewBasePoint()))

			// P - P = 0
			P := a.ActOnBase()
			assert.True(t, P.Add(P.Negate()).IsIdentity())
			assert.True(t, group.NewPoint().IsIdentity())
			assert.False(t, group.NewBasePoint().IsIdentity())
		})
	}
}

func TestSecp256k1XCoordinate(t *testing.T) {
	group := curve.Secp256k1{}
	P := sample.Scalar(rand.Reader, group).ActOnBase().(*curve.Secp256k1Point)
	data, err := P.MarshalBinary()
	require.NoError(t, err)
	assert.Equal(t, data[1:], P.XBytes())
	assert.Equal(t, data[0] == 2, P.HasEvenY())
	assert.NotEqual(t, P.HasEvenY(), P.Negate().(*curve.Secp256k1Point).HasEvenY())
}
