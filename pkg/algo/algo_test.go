package algo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taurusgroup/multi-party-keystore/pkg/math/curve"
)

func TestValidate(t *testing.T) {
	for _, a := range All() {
		assert.NoError(t, a.Validate())
		parsed, err := Parse(a.String())
		require.NoError(t, err)
		assert.Equal(t, a, parsed)
	}
	assert.ErrorIs(t, Algorithm{Curve: Ed25519, Scheme: ElGamal}.Validate(), ErrUnknownAlgorithm)
	assert.ErrorIs(t, Algorithm{}.Validate(), ErrUnknownAlgorithm)

	_, err := Parse("rsa")
	assert.ErrorIs(t, err, ErrUnknownAlgorithm)
}

func TestExpect(t *testing.T) {
	assert.NoError(t, ElGamalSecp256k1.Expect(ElGamalSecp256k1))
	assert.ErrorIs(t, SchnorrSecp256k1Taproot.Expect(ElGamalSecp256k1), ErrAlgorithmMismatch)
}

func TestGroup(t *testing.T) {
	assert.Equal(t, curve.Secp256k1{}, ElGamalSecp256k1.Group())
	assert.Equal(t, curve.Secp256k1{}, SchnorrSecp256k1Taproot.Group())
	assert.Equal(t, curve.Edwards25519{}, SchnorrEd25519.Group())
	assert.True(t, ElGamalSecp256k1.UsesPaillier())
	assert.False(t, SchnorrEd25519.UsesPaillier())
}
