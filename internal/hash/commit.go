package hash

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"io"

	"github.com/taurusgroup/multi-party-keystore/internal/params"
)

// Commitment is h(state, data, decommitment), DigestLengthBytes long.
type Commitment []byte

// Decommitment is the params.SecBytes random opening of a Commitment.
type Decommitment []byte

// Validate checks the length of c.
func (c Commitment) Validate() error {
	if len(c) != DigestLengthBytes {
		return errors.New("hash: commitment has wrong length")
	}
	return nil
}

func (c Commitment) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(c)
	return int64(n), err
}

func (Commitment) Domain() string { return "Commitment" }

func (d Decommitment) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(d)
	return int64(n), err
}

func (Decommitment) Domain() string { return "Decommitment" }

func (hash *Hash) commitment(d Decommitment, data []interface{}) (Commitment, error) {
	h := hash.Clone()
	if err := h.WriteAny(data...); err != nil {
		return nil, err
	}
	if err := h.WriteAny(d); err != nil {
		return nil, err
	}
	return h.Sum(), nil
}

// Commit binds data to the current state, without modifying it.
func (hash *Hash) Commit(rand io.Reader, data ...interface{}) (Commitment, Decommitment, error) {
	d := make(Decommitment, params.SecBytes)
	if _, err := io.ReadFull(rand, d); err != nil {
		return nil, nil, fmt.Errorf("hash: sample decommitment: %w", err)
	}
	c, err := hash.commitment(d, data)
	if err != nil {
		return nil, nil, fmt.Errorf("hash: commit: %w", err)
	}
	return c, d, nil
}

// Decommit reports whether c opens to data with d.
func (hash *Hash) Decommit(c Commitment, d Decommitment, data ...interface{}) bool {
	if len(c) != DigestLengthBytes || len(d) != params.SecBytes {
		return false
	}
	expected, err := hash.commitment(d, data)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare(expected, c) == 1
}
