package curve

import (
	"encoding"
	"errors"

	"github.com/cronokirby/saferith"
)

var (
	// ErrNotOnCurve is returned when a byte string does not encode a point of the group.
	ErrNotOnCurve = errors.New("curve: point not on curve")
	// ErrInvalidScalarLength is returned when a scalar encoding is not 32 bytes.
	ErrInvalidScalarLength = errors.New("curve: invalid scalar length")
	// ErrNonCanonicalScalar is returned when an encoded scalar is not reduced modulo the group order.
	ErrNonCanonicalScalar = errors.New("curve: scalar not reduced")
)

// Curve represents the group used by one of the supported algorithms.
type Curve interface {
	// NewPoint returns the identity element.
	NewPoint() Point
	NewBasePoint() Point
	// NewScalar returns the zero scalar.
	NewScalar() Scalar
	Name() string
	ScalarBits() int
	SafeScalarBytes() int
	// PointBytes is the length of a compressed point.
	PointBytes() int
	Order() *saferith.Modulus
}

// Scalar is an integer modulo the group order.
//
// Arithmetic methods modify the receiver and return it.
// MarshalBinary always produces 32 big-endian bytes.
type Scalar interface {
	encoding.BinaryMarshaler
	encoding.BinaryUnmarshaler
	Curve() Curve
	Add(Scalar) Scalar
	Sub(Scalar) Scalar
	Negate() Scalar
	Mul(Scalar) Scalar
	Invert() Scalar
	Equal(Scalar) bool
	IsZero() bool
	Set(Scalar) Scalar
	SetNat(*saferith.Nat) Scalar
	Act(Point) Point
	ActOnBase() Point
}

// Point is an element of the group.
//
// Unlike Scalar, the arithmetic methods return new values.
type Point interface {
	encoding.BinaryMarshaler
	encoding.BinaryUnmarshaler
	Curve() Curve
	Add(Point) Point
	Sub(Point) Point
	Negate() Point
	Set(Point) Point
	Equal(Point) bool
	IsIdentity() bool
}

// ScalarFromBytesModOrder interprets data as a big-endian integer of any length,
// and reduces it modulo the order of the group.
func ScalarFromBytesModOrder(group Curve, data []byte) Scalar {
	return group.NewScalar().SetNat(new(saferith.Nat).SetBytes(data))
}

// DecodeScalar parses a canonical scalar encoding.
func DecodeScalar(group Curve, data []byte) (Scalar, error) {
	s := group.NewScalar()
	if err := s.UnmarshalBinary(data); err != nil {
		return nil, err
	}
	return s, nil
}

// DecodePoint decompresses a point, failing with ErrNotOnCurve for any invalid encoding.
func DecodePoint(group Curve, data []byte) (Point, error) {
	p := group.NewPoint()
	if err := p.UnmarshalBinary(data); err != nil {
		return nil, err
	}
	return p, nil
}

// FromHash converts a hash value to a Scalar.
//
// There is some disagreement about how this should be done.
// [NSA] suggests that this is done in the obvious
// manner, but [SECG] truncates the hash to the bit-length of the curve order
// first. We follow [SECG] because that's what OpenSSL does. Additionally,
// OpenSSL right shifts excess bits from the number if the hash is too large
// and we mirror that too.
//
// Taken from crypto/ecdsa.
func FromHash(group Curve, h []byte) Scalar {
	order := group.Order()
	orderBits := order.BitLen()
	orderBytes := (orderBits + 7) / 8
	if len(h) > orderBytes {
		h = h[:orderBytes]
	}
	s := new(saferith.Nat).SetBytes(h)
	excess := len(h)*8 - orderBits
	if excess > 0 {
		s.Rsh(s, uint(excess), -1)
	}
	return group.NewScalar().SetNat(s)
}
