package protocol_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taurusgroup/multi-party-keystore/internal/round"
	"github.com/taurusgroup/multi-party-keystore/pkg/protocol"
)

func TestNewErrorCulprit(t *testing.T) {
	cause := errors.New("invalid share")
	err := protocol.NewError("A", 2, &round.PeerError{From: "C", Err: cause})
	assert.Equal(t, "C", err.Culprit)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "party A: round 2: culprit C: message from C: invalid share", err.Error())

	err = protocol.NewError("B", 1, cause)
	assert.Empty(t, err.Culprit)
	assert.Equal(t, "party B: round 1: invalid share", err.Error())

	var wrapped error = protocol.Blame("B", 3, "A", cause)
	var protocolErr *protocol.Error
	require.True(t, errors.As(wrapped, &protocolErr))
	assert.Equal(t, "A", protocolErr.Culprit)
	assert.Equal(t, round.Number(3), protocolErr.RoundNumber)
}
