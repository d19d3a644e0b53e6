// Package dkg implements the Feldman VSS based key generation and resharing
// shared by all signing schemes.
//
// Every dealer commits to a random polynomial, sends one evaluation to each
// receiver, and every receiver checks its evaluation against the commitments.
// A final echo round makes sure that all receivers saw the same broadcasts.
package dkg

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/taurusgroup/multi-party-keystore/internal/hash"
	"github.com/taurusgroup/multi-party-keystore/internal/round"
	"github.com/taurusgroup/multi-party-keystore/pkg/math/curve"
	"github.com/taurusgroup/multi-party-keystore/pkg/math/polynomial"
	"github.com/taurusgroup/multi-party-keystore/pkg/party"
	zksch "github.com/taurusgroup/multi-party-keystore/pkg/zk/sch"
)

var (
	// ErrInvalidShare is returned when a share does not match the dealer's commitments.
	ErrInvalidShare = errors.New("dkg: share does not match commitments")
	// ErrInvalidCommitments is returned for commitments of the wrong degree, or without a valid proof.
	ErrInvalidCommitments = errors.New("dkg: invalid commitments")
	// ErrEchoMismatch is returned when a peer saw different broadcasts.
	ErrEchoMismatch = errors.New("dkg: echo mismatch")
	// ErrPublicKeyMismatch is returned when resharing would change the public key.
	ErrPublicKeyMismatch = errors.New("dkg: public key mismatch")
)

// Result is the output of a keygen or reshare for one receiving party.
type Result struct {
	ID             party.ID
	BlindingScalar curve.Scalar
	SigningShare   curve.Scalar
	// Commitments is indexed by the dealers: keygen participants, or reshare providers
	// by their index before the reshare.
	Commitments map[party.ID][]curve.Point
	// Extras holds the opaque data each receiver attached, by receiver index.
	Extras map[party.ID][]byte
}

type dealing struct {
	Commitments [][]byte `cbor:"c"`
	ProofA      []byte   `cbor:"a"`
	ProofZ      []byte   `cbor:"z"`
}

type shareMessage struct {
	Share []byte `cbor:"s"`
}

type echoMessage struct {
	Digest []byte `cbor:"d"`
}

// deal samples a polynomial of the given degree with constant secret,
// and returns it together with its broadcast form.
func deal(h *round.Helper, degree int, secret curve.Scalar, rand io.Reader) (*polynomial.Polynomial, *dealing, error) {
	group := h.Group()
	f := polynomial.NewPolynomial(group, degree, secret, rand)
	F := polynomial.NewPolynomialExponent(f)

	proof := zksch.Prove(h.HashForParty(h.Self()), rand, F.Constant(), f.Constant())

	d := &dealing{Commitments: make([][]byte, 0, degree+1)}
	for _, c := range F.Coefficients() {
		data, err := c.MarshalBinary()
		if err != nil {
			return nil, nil, err
		}
		d.Commitments = append(d.Commitments, data)
	}
	var err error
	if d.ProofA, err = proof.A.MarshalBinary(); err != nil {
		return nil, nil, err
	}
	if d.ProofZ, err = proof.Z.MarshalBinary(); err != nil {
		return nil, nil, err
	}
	return f, d, nil
}

// open decodes the dealing of `from` and verifies its degree and proof.
func (d *dealing) open(h *round.Helper, from string, degree int) (*polynomial.Exponent, error) {
	group := h.Group()
	if len(d.Commitments) != degree+1 {
		return nil, fmt.Errorf("%w: have %d coefficients, expected %d", ErrInvalidCommitments, len(d.Commitments), degree+1)
	}
	points := make([]curve.Point, 0, len(d.Commitments))
	for _, data := range d.Commitments {
		p, err := curve.DecodePoint(group, data)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidCommitments, err)
		}
		points = append(points, p)
	}
	F, err := polynomial.NewExponent(group, points)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCommitments, err)
	}

	A, err := curve.DecodePoint(group, d.ProofA)
	if err != nil {
		return nil, fmt.Errorf("%w: proof: %w", ErrInvalidCommitments, err)
	}
	z, err := curve.DecodeScalar(group, d.ProofZ)
	if err != nil {
		return nil, fmt.Errorf("%w: proof: %w", ErrInvalidCommitments, err)
	}
	proof := &zksch.Proof{A: A, Z: z}
	if !proof.Verify(h.HashForParty(from), F.Constant()) {
		return nil, fmt.Errorf("%w: proof of knowledge failed", ErrInvalidCommitments)
	}
	return F, nil
}

// verifyShare decodes a share sent to receiver and checks it against F.
func verifyShare(group curve.Curve, F *polynomial.Exponent, receiver party.ID, data []byte) (curve.Scalar, error) {
	share, err := curve.DecodeScalar(group, data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidShare, err)
	}
	if !share.ActOnBase().Equal(F.Evaluate(receiver.Scalar(group))) {
		return nil, ErrInvalidShare
	}
	return share, nil
}

func sortedIDs[V any](m map[party.ID]V) []party.ID {
	ids := make([]party.ID, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// transcript hashes everything the receivers must agree on.
func transcript(h *round.Helper, commitments map[party.ID]*polynomial.Exponent, extras map[party.ID][]byte, aux ...hash.WriterToWithDomain) []byte {
	state := h.Hash()
	for _, id := range sortedIDs(commitments) {
		_ = state.WriteAny(id, commitments[id])
	}
	for _, id := range sortedIDs(extras) {
		_ = state.WriteAny(id, &hash.BytesWithDomain{TheDomain: "Extra", Bytes: extras[id]})
	}
	for _, a := range aux {
		_ = state.WriteAny(a)
	}
	return state.Sum()
}

func checkEcho(own []byte, echoes map[string]*echoMessage) (string, error) {
	names := make([]string, 0, len(echoes))
	for name := range echoes {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if !bytes.Equal(own, echoes[name].Digest) {
			return name, ErrEchoMismatch
		}
	}
	return "", nil
}

func coefficients(F map[party.ID]*polynomial.Exponent) map[party.ID][]curve.Point {
	out := make(map[party.ID][]curve.Point, len(F))
	for id, f := range F {
		out[id] = f.Coefficients()
	}
	return out
}
