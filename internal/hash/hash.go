package hash

import (
	"encoding"
	"fmt"
	"io"

	"github.com/taurusgroup/multi-party-keystore/internal/params"
	"github.com/taurusgroup/multi-party-keystore/pkg/math/curve"
	"github.com/zeebo/blake3"
)

const DigestLengthBytes = params.SecBytes * 2 // 64

// Hash is a domain separated blake3 transcript. It backs commitments,
// session digests and the Fiat-Shamir challenges of the protocols.
type Hash struct {
	h *blake3.Hasher
}

// New starts a transcript absorbing initialData.
func New(initialData ...WriterToWithDomain) *Hash {
	hash := &Hash{h: blake3.New()}
	for _, d := range initialData {
		_ = hash.WriteAny(d)
	}
	return hash
}

// Digest finalizes the current state into an extendable output stream.
func (hash *Hash) Digest() io.Reader {
	return hash.h.Digest()
}

// Sum returns the first DigestLengthBytes of Digest.
func (hash *Hash) Sum() []byte {
	out := make([]byte, DigestLengthBytes)
	if _, err := io.ReadFull(hash.Digest(), out); err != nil {
		panic(fmt.Sprintf("hash: blake3 digest: %v", err))
	}
	return out
}

// Scalar reduces Sum modulo the order of group.
func (hash *Hash) Scalar(group curve.Curve) curve.Scalar {
	return curve.ScalarFromBytesModOrder(group, hash.Sum())
}

func (hash *Hash) writeBinary(domain string, m encoding.BinaryMarshaler) error {
	b, err := m.MarshalBinary()
	if err != nil {
		return err
	}
	return writeWithDomain(hash.h, BytesWithDomain{TheDomain: domain, Bytes: b})
}

// WriteAny absorbs []byte, curve.Scalar, curve.Point and WriterToWithDomain values.
// Any other type is a programming error and panics.
func (hash *Hash) WriteAny(data ...interface{}) error {
	for _, d := range data {
		var err error
		switch t := d.(type) {
		case []byte:
			err = writeWithDomain(hash.h, BytesWithDomain{TheDomain: "[]byte", Bytes: t})
		case curve.Scalar:
			err = hash.writeBinary("curve.Scalar", t)
		case curve.Point:
			err = hash.writeBinary("curve.Point", t)
		case WriterToWithDomain:
			err = writeWithDomain(hash.h, t)
		default:
			panic(fmt.Sprintf("hash: cannot absorb %T", d))
		}
		if err != nil {
			return fmt.Errorf("hash: write %T: %w", d, err)
		}
	}
	return nil
}

// Clone forks the transcript.
func (hash *Hash) Clone() *Hash {
	return &Hash{h: hash.h.Clone()}
}
