package curve

import (
	"bytes"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/cronokirby/saferith"
)

// Edwards25519 is the prime order subgroup of Curve25519 in Edwards form, as used by Ed25519.
type Edwards25519 struct{}

func (Edwards25519) NewPoint() Point {
	return &Edwards25519Point{value: *edwards25519.NewIdentityPoint()}
}

func (Edwards25519) NewBasePoint() Point {
	return &Edwards25519Point{value: *edwards25519.NewGeneratorPoint()}
}

func (Edwards25519) NewScalar() Scalar {
	return &Edwards25519Scalar{value: *edwards25519.NewScalar()}
}

func (Edwards25519) ScalarBits() int {
	return 253
}

func (Edwards25519) SafeScalarBytes() int {
	return 64
}

func (Edwards25519) PointBytes() int {
	return 32
}

// ℓ = 2²⁵² + 27742317777372353535851937790883648493
var edwards25519OrderNat, _ = new(saferith.Nat).SetHex("1000000000000000000000000000000014DEF9DEA2F79CD65812631A5CF5D3ED")
var edwards25519Order = saferith.ModulusFromNat(edwards25519OrderNat)

func (Edwards25519) Order() *saferith.Modulus {
	return edwards25519Order
}

func (Edwards25519) Name() string {
	return "ed25519"
}

// Edwards25519Scalar wraps edwards25519.Scalar.
//
// The library stores scalars little-endian, the binary encoding here is big-endian
// so that both curves share one layout.
type Edwards25519Scalar struct {
	value edwards25519.Scalar
}

func edwards25519CastScalar(generic Scalar) *Edwards25519Scalar {
	out, ok := generic.(*Edwards25519Scalar)
	if !ok {
		panic(fmt.Sprintf("failed to convert to edwards25519Scalar: %v", generic))
	}
	return out
}

func reverse(data []byte) []byte {
	out := make([]byte, len(data))
	for i := range data {
		out[len(data)-1-i] = data[i]
	}
	return out
}

func (*Edwards25519Scalar) Curve() Curve {
	return Edwards25519{}
}

func (s *Edwards25519Scalar) MarshalBinary() ([]byte, error) {
	return reverse(s.value.Bytes()), nil
}

func (s *Edwards25519Scalar) UnmarshalBinary(data []byte) error {
	if len(data) != 32 {
		return fmt.Errorf("ed25519 scalar: %w (got %d)", ErrInvalidScalarLength, len(data))
	}
	if _, err := s.value.SetCanonicalBytes(reverse(data)); err != nil {
		return fmt.Errorf("ed25519 scalar: %w", ErrNonCanonicalScalar)
	}
	return nil
}

// LittleEndian returns the encoding expected by RFC 8032.
func (s *Edwards25519Scalar) LittleEndian() []byte {
	return s.value.Bytes()
}

func (s *Edwards25519Scalar) Add(that Scalar) Scalar {
	other := edwards25519CastScalar(that)

	s.value.Add(&s.value, &other.value)
	return s
}

func (s *Edwards25519Scalar) Sub(that Scalar) Scalar {
	other := edwards25519CastScalar(that)

	s.value.Subtract(&s.value, &other.value)
	return s
}

func (s *Edwards25519Scalar) Mul(that Scalar) Scalar {
	other := edwards25519CastScalar(that)

	s.value.Multiply(&s.value, &other.value)
	return s
}

func (s *Edwards25519Scalar) Invert() Scalar {
	s.value.Invert(&s.value)
	return s
}

func (s *Edwards25519Scalar) Negate() Scalar {
	s.value.Negate(&s.value)
	return s
}

func (s *Edwards25519Scalar) Equal(that Scalar) bool {
	other := edwards25519CastScalar(that)

	return s.value.Equal(&other.value) == 1
}

func (s *Edwards25519Scalar) IsZero() bool {
	return s.value.Equal(edwards25519.NewScalar()) == 1
}

func (s *Edwards25519Scalar) Set(that Scalar) Scalar {
	other := edwards25519CastScalar(that)

	s.value.Set(&other.value)
	return s
}

func (s *Edwards25519Scalar) SetNat(x *saferith.Nat) Scalar {
	reduced := new(saferith.Nat).Mod(x, edwards25519Order)
	data := make([]byte, 32)
	reduced.FillBytes(data)
	// reduced < ℓ, so the encoding is always canonical
	_, _ = s.value.SetCanonicalBytes(reverse(data))
	return s
}

func (s *Edwards25519Scalar) Act(that Point) Point {
	other := edwards25519CastPoint(that)
	out := new(Edwards25519Point)
	out.value.ScalarMult(&s.value, &other.value)
	return out
}

func (s *Edwards25519Scalar) ActOnBase() Point {
	out := new(Edwards25519Point)
	out.value.ScalarBaseMult(&s.value)
	return out
}

type Edwards25519Point struct {
	value edwards25519.Point
}

func edwards25519CastPoint(generic Point) *Edwards25519Point {
	out, ok := generic.(*Edwards25519Point)
	if !ok {
		panic(fmt.Sprintf("failed to convert to edwards25519Point: %v", generic))
	}
	return out
}

func (*Edwards25519Point) Curve() Curve {
	return Edwards25519{}
}

func (p *Edwards25519Point) MarshalBinary() ([]byte, error) {
	return p.value.Bytes(), nil
}

func (p *Edwards25519Point) UnmarshalBinary(data []byte) error {
	if len(data) != 32 {
		return fmt.Errorf("ed25519 point: %w (invalid length %d)", ErrNotOnCurve, len(data))
	}
	var value edwards25519.Point
	if _, err := value.SetBytes(data); err != nil {
		return fmt.Errorf("ed25519 point: %w", ErrNotOnCurve)
	}
	// SetBytes accepts non-canonical encodings of y, which would not survive a round trip.
	if !bytes.Equal(value.Bytes(), data) {
		return fmt.Errorf("ed25519 point: %w (non-canonical encoding)", ErrNotOnCurve)
	}
	if !inPrimeOrderSubgroup(&value) {
		return fmt.Errorf("ed25519 point: %w (small order component)", ErrNotOnCurve)
	}
	p.value.Set(&value)
	return nil
}

// edwards25519MinusOne is ℓ - 1.
var edwards25519MinusOne = func() *edwards25519.Scalar {
	var one [32]byte
	one[0] = 1
	s, _ := edwards25519.NewScalar().SetCanonicalBytes(one[:])
	return s.Negate(s)
}()

// inPrimeOrderSubgroup checks [ℓ]P = O, computed as [ℓ-1]P + P.
func inPrimeOrderSubgroup(p *edwards25519.Point) bool {
	var q edwards25519.Point
	q.ScalarMult(edwards25519MinusOne, p)
	q.Add(&q, p)
	return q.Equal(edwards25519.NewIdentityPoint()) == 1
}

func (p *Edwards25519Point) Add(that Point) Point {
	other := edwards25519CastPoint(that)

	out := new(Edwards25519Point)
	out.value.Add(&p.value, &other.value)
	return out
}

func (p *Edwards25519Point) Sub(that Point) Point {
	other := edwards25519CastPoint(that)

	out := new(Edwards25519Point)
	out.value.Subtract(&p.value, &other.value)
	return out
}

func (p *Edwards25519Point) Set(that Point) Point {
	other := edwards25519CastPoint(that)

	p.value.Set(&other.value)
	return p
}

func (p *Edwards25519Point) Negate() Point {
	out := new(Edwards25519Point)
	out.value.Negate(&p.value)
	return out
}

func (p *Edwards25519Point) Equal(that Point) bool {
	other := edwards25519CastPoint(that)

	return p.value.Equal(&other.value) == 1
}

func (p *Edwards25519Point) IsIdentity() bool {
	return p.value.Equal(edwards25519.NewIdentityPoint()) == 1
}
