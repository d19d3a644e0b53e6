package wire

import (
	"fmt"
	"math/big"

	"github.com/taurusgroup/multi-party-keystore/pkg/paillier"
	"github.com/taurusgroup/multi-party-keystore/pkg/party"
)

// paillierBlob is the content of the misc field of an ElGamal keystore.
type paillierBlob struct {
	P []byte              `cbor:"p"`
	Q []byte              `cbor:"q"`
	N map[party.ID][]byte `cbor:"n"`
}

// EncodePaillierBlob serializes the encryption key together with the table of peer moduli.
// Only the primes are stored, the precomputation is rebuilt by DecodePaillierBlob.
func EncodePaillierBlob(sk *paillier.SecretKey, moduli map[party.ID]*paillier.PublicKey) ([]byte, error) {
	if sk == nil {
		return nil, fmt.Errorf("wire: misc: missing encryption key")
	}
	blob := paillierBlob{
		P: sk.P().Big().Bytes(),
		Q: sk.Q().Big().Bytes(),
		N: make(map[party.ID][]byte, len(moduli)),
	}
	for id, pk := range moduli {
		blob.N[id] = pk.N().Big().Bytes()
	}
	return Marshal(blob)
}

// DecodePaillierBlob parses the output of EncodePaillierBlob.
// The secret key is imported from its primes, which validates them and recomputes ϕ(N).
func DecodePaillierBlob(data []byte) (*paillier.SecretKey, map[party.ID]*paillier.PublicKey, error) {
	var blob paillierBlob
	if err := Unmarshal(data, &blob); err != nil {
		return nil, nil, fmt.Errorf("wire: misc: %w", err)
	}
	sk, err := paillier.Import(new(big.Int).SetBytes(blob.P), new(big.Int).SetBytes(blob.Q))
	if err != nil {
		return nil, nil, fmt.Errorf("wire: misc: %w", err)
	}
	moduli := make(map[party.ID]*paillier.PublicKey, len(blob.N))
	for id, n := range blob.N {
		pk, err := paillier.NewPublicKeyFromBytes(n)
		if err != nil {
			return nil, nil, fmt.Errorf("wire: misc: party %d: %w", id, err)
		}
		moduli[id] = pk
	}
	return sk, moduli, nil
}
