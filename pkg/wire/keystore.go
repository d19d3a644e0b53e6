package wire

import (
	"errors"
	"fmt"

	"github.com/taurusgroup/multi-party-keystore/pkg/algo"
	"github.com/taurusgroup/multi-party-keystore/pkg/keystore"
	"github.com/taurusgroup/multi-party-keystore/pkg/math/curve"
	"github.com/taurusgroup/multi-party-keystore/pkg/party"
)

var ErrMissingField = errors.New("wire: missing field")

type keystoreRecord struct {
	ID          party.ID              `cbor:"i"`
	U           []byte                `cbor:"ui"`
	X           []byte                `cbor:"xi"`
	Commitments map[party.ID][][]byte `cbor:"vss_scheme"`
	XPub        string                `cbor:"xpub"`
	Misc        []byte                `cbor:"misc,omitempty"`
	Algorithm   algo.Algorithm        `cbor:"algo"`
}

// EncodeKeystore returns the canonical record of ks.
// The xpub field is computed from the public key, and is not read back by DecodeKeystore.
func EncodeKeystore(ks *keystore.Keystore) ([]byte, error) {
	u, err := ks.BlindingScalar().MarshalBinary()
	if err != nil {
		return nil, err
	}
	x, err := ks.SigningShare().MarshalBinary()
	if err != nil {
		return nil, err
	}

	commitments := ks.Commitments()
	table := make(map[party.ID][][]byte, len(commitments))
	for id, points := range commitments {
		encoded := make([][]byte, 0, len(points))
		for _, p := range points {
			data, err := p.MarshalBinary()
			if err != nil {
				return nil, fmt.Errorf("wire: commitment of party %d: %w", id, err)
			}
			encoded = append(encoded, data)
		}
		table[id] = encoded
	}

	xpub, err := ks.ExtendedPublicKey()
	if err != nil {
		return nil, fmt.Errorf("wire: xpub: %w", err)
	}

	record := keystoreRecord{
		ID:          ks.ID(),
		U:           u,
		X:           x,
		Commitments: table,
		XPub:        xpub,
		Algorithm:   ks.Algorithm(),
	}
	if ks.Algorithm().UsesPaillier() {
		if record.Misc, err = EncodePaillierBlob(ks.EncryptionKey(), ks.PeerModuli()); err != nil {
			return nil, err
		}
	}
	return Marshal(record)
}

// DecodeKeystore parses a keystore record, which must be tagged with expected.
func DecodeKeystore(data []byte, expected algo.Algorithm) (*keystore.Keystore, error) {
	if err := expected.Validate(); err != nil {
		return nil, err
	}
	var record keystoreRecord
	if err := Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("wire: keystore: %w", err)
	}
	if err := record.Algorithm.Expect(expected); err != nil {
		return nil, fmt.Errorf("wire: keystore: %w", err)
	}
	group := expected.Group()

	if record.U == nil || record.X == nil {
		return nil, fmt.Errorf("%w: ui/xi", ErrMissingField)
	}
	u, err := curve.DecodeScalar(group, record.U)
	if err != nil {
		return nil, fmt.Errorf("wire: keystore: ui: %w", err)
	}
	x, err := curve.DecodeScalar(group, record.X)
	if err != nil {
		return nil, fmt.Errorf("wire: keystore: xi: %w", err)
	}

	commitments := make(map[party.ID][]curve.Point, len(record.Commitments))
	for id, encoded := range record.Commitments {
		points := make([]curve.Point, 0, len(encoded))
		for _, data := range encoded {
			p, err := curve.DecodePoint(group, data)
			if err != nil {
				return nil, fmt.Errorf("wire: keystore: commitment of party %d: %w", id, err)
			}
			points = append(points, p)
		}
		commitments[id] = points
	}

	params := keystore.Params{
		Algorithm:      expected,
		ID:             record.ID,
		BlindingScalar: u,
		SigningShare:   x,
		Commitments:    commitments,
	}
	if expected.UsesPaillier() {
		if record.Misc == nil {
			return nil, fmt.Errorf("%w: misc", ErrMissingField)
		}
		if params.EncryptionKey, params.PeerModuli, err = DecodePaillierBlob(record.Misc); err != nil {
			return nil, err
		}
	} else if record.Misc != nil {
		return nil, fmt.Errorf("wire: keystore: unexpected misc field for %s", expected)
	}

	ks, err := keystore.New(params)
	if err != nil {
		return nil, fmt.Errorf("wire: keystore: %w", err)
	}
	return ks, nil
}
