package party

import (
	"encoding/binary"
	"io"
	"strconv"

	"github.com/cronokirby/saferith"
	"github.com/taurusgroup/multi-party-keystore/pkg/math/curve"
)

// ByteSize is the number of bytes required to store an ID.
const ByteSize = 2

// MAX is the largest valid ID.
const MAX = (1 << (ByteSize * 8)) - 1

// ID is the 1-based index of a party within a roster. 0 is never a valid ID.
type ID uint16

// Scalar converts this ID into a scalar, which is used as the evaluation point of sharing polynomials.
func (id ID) Scalar(group curve.Curve) curve.Scalar {
	return group.NewScalar().SetNat(new(saferith.Nat).SetUint64(uint64(id)))
}

// Valid reports whether id can be used as a party index.
func (id ID) Valid() bool {
	return id != 0
}

// String returns a base 10 representation of ID.
func (id ID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// WriteTo implements io.WriterTo.
func (id ID) WriteTo(w io.Writer) (int64, error) {
	var buf [ByteSize]byte
	binary.BigEndian.PutUint16(buf[:], uint16(id))
	n, err := w.Write(buf[:])
	return int64(n), err
}

// Domain implements hash.WriterToWithDomain.
func (ID) Domain() string {
	return "ID"
}
