package curve

import (
	"encoding/hex"
	"fmt"

	"github.com/cronokirby/saferith"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

var secp256k1BaseX, secp256k1BaseY secp256k1.FieldVal

func init() {
	Gx, _ := hex.DecodeString("79BE667EF9DCBBAC55A06295CE870B07029BFCDB2DCE28D959F2815B16F81798")
	Gy, _ := hex.DecodeString("483ADA7726A3C4655DA4FBFC0E1108A8FD17B448A68554199C47D08FFB10D4B8")
	secp256k1BaseX.SetByteSlice(Gx)
	secp256k1BaseY.SetByteSlice(Gy)
}

type Secp256k1 struct{}

func (Secp256k1) NewPoint() Point {
	return new(Secp256k1Point)
}

func (Secp256k1) NewBasePoint() Point {
	out := new(Secp256k1Point)
	out.value.X.Set(&secp256k1BaseX)
	out.value.Y.Set(&secp256k1BaseY)
	out.value.Z.SetInt(1)
	return out
}

func (Secp256k1) NewScalar() Scalar {
	return new(Secp256k1Scalar)
}

func (Secp256k1) ScalarBits() int {
	return 256
}

func (Secp256k1) SafeScalarBytes() int {
	return 64
}

func (Secp256k1) PointBytes() int {
	return 33
}

var secp256k1OrderNat, _ = new(saferith.Nat).SetHex("FFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFEBAAEDCE6AF48A03BBFD25E8CD0364141")
var secp256k1Order = saferith.ModulusFromNat(secp256k1OrderNat)

func (Secp256k1) Order() *saferith.Modulus {
	return secp256k1Order
}

func (Secp256k1) Name() string {
	return "secp256k1"
}

type Secp256k1Scalar struct {
	value secp256k1.ModNScalar
}

func secp256k1CastScalar(generic Scalar) *Secp256k1Scalar {
	out, ok := generic.(*Secp256k1Scalar)
	if !ok {
		panic(fmt.Sprintf("failed to convert to secp256k1Scalar: %v", generic))
	}
	return out
}

func (*Secp256k1Scalar) Curve() Curve {
	return Secp256k1{}
}

func (s *Secp256k1Scalar) MarshalBinary() ([]byte, error) {
	data := s.value.Bytes()
	return data[:], nil
}

func (s *Secp256k1Scalar) UnmarshalBinary(data []byte) error {
	if len(data) != 32 {
		return fmt.Errorf("secp256k1 scalar: %w (got %d)", ErrInvalidScalarLength, len(data))
	}
	var exactData [32]byte
	copy(exactData[:], data)
	if s.value.SetBytes(&exactData) != 0 {
		return fmt.Errorf("secp256k1 scalar: %w", ErrNonCanonicalScalar)
	}
	return nil
}

func (s *Secp256k1Scalar) Add(that Scalar) Scalar {
	other := secp256k1CastScalar(that)

	s.value.Add(&other.value)
	return s
}

func (s *Secp256k1Scalar) Sub(that Scalar) Scalar {
	other := secp256k1CastScalar(that)
	negated := new(Secp256k1Scalar)
	negated.value.Set(&other.value)
	negated.value.Negate()

	s.value.Add(&negated.value)
	return s
}

func (s *Secp256k1Scalar) Mul(that Scalar) Scalar {
	other := secp256k1CastScalar(that)

	s.value.Mul(&other.value)
	return s
}

func (s *Secp256k1Scalar) Invert() Scalar {
	s.value.InverseNonConst()
	return s
}

func (s *Secp256k1Scalar) Negate() Scalar {
	s.value.Negate()
	return s
}

// IsOverHalfOrder reports whether s > n/2.
func (s *Secp256k1Scalar) IsOverHalfOrder() bool {
	return s.value.IsOverHalfOrder()
}

func (s *Secp256k1Scalar) Equal(that Scalar) bool {
	other := secp256k1CastScalar(that)

	return s.value.Equals(&other.value)
}

func (s *Secp256k1Scalar) IsZero() bool {
	return s.value.IsZero()
}

func (s *Secp256k1Scalar) Set(that Scalar) Scalar {
	other := secp256k1CastScalar(that)

	s.value.Set(&other.value)
	return s
}

func (s *Secp256k1Scalar) SetNat(x *saferith.Nat) Scalar {
	reduced := new(saferith.Nat).Mod(x, secp256k1Order)
	var data [32]byte
	reduced.FillBytes(data[:])
	s.value.SetBytes(&data)
	return s
}

func (s *Secp256k1Scalar) Act(that Point) Point {
	other := secp256k1CastPoint(that)
	out := new(Secp256k1Point)
	secp256k1.ScalarMultNonConst(&s.value, &other.value, &out.value)
	return out
}

func (s *Secp256k1Scalar) ActOnBase() Point {
	out := new(Secp256k1Point)
	secp256k1.ScalarBaseMultNonConst(&s.value, &out.value)
	return out
}

type Secp256k1Point struct {
	value secp256k1.JacobianPoint
}

func secp256k1CastPoint(generic Point) *Secp256k1Point {
	out, ok := generic.(*Secp256k1Point)
	if !ok {
		panic(fmt.Sprintf("failed to convert to secp256k1Point: %v", generic))
	}
	return out
}

func (*Secp256k1Point) Curve() Curve {
	return Secp256k1{}
}

// affine returns a normalized copy of p, leaving p untouched so that points
// may be shared between readers.
func (p *Secp256k1Point) affine() secp256k1.JacobianPoint {
	var out secp256k1.JacobianPoint
	out.Set(&p.value)
	out.ToAffine()
	return out
}

func (p *Secp256k1Point) MarshalBinary() ([]byte, error) {
	if p.IsIdentity() {
		return nil, fmt.Errorf("secp256k1 point: cannot encode identity")
	}
	a := p.affine()
	out := make([]byte, 33)
	// Doing it this way is compatible with Bitcoin
	out[0] = byte(a.Y.IsOddBit()) + 2
	data := a.X.Bytes()
	copy(out[1:], data[:])
	return out, nil
}

func (p *Secp256k1Point) UnmarshalBinary(data []byte) error {
	if len(data) != 33 {
		return fmt.Errorf("secp256k1 point: %w (invalid length %d)", ErrNotOnCurve, len(data))
	}
	if data[0] != 2 && data[0] != 3 {
		return fmt.Errorf("secp256k1 point: %w (invalid prefix %#x)", ErrNotOnCurve, data[0])
	}
	var value secp256k1.JacobianPoint
	value.Z.SetInt(1)
	if value.X.SetByteSlice(data[1:]) {
		return fmt.Errorf("secp256k1 point: %w (x coordinate out of range)", ErrNotOnCurve)
	}
	if !secp256k1.DecompressY(&value.X, data[0] == 3, &value.Y) {
		return fmt.Errorf("secp256k1 point: %w", ErrNotOnCurve)
	}
	p.value.Set(&value)
	return nil
}

func (p *Secp256k1Point) Add(that Point) Point {
	other := secp256k1CastPoint(that)

	out := new(Secp256k1Point)
	secp256k1.AddNonConst(&p.value, &other.value, &out.value)
	return out
}

func (p *Secp256k1Point) Sub(that Point) Point {
	return p.Add(that.Negate())
}

func (p *Secp256k1Point) Set(that Point) Point {
	other := secp256k1CastPoint(that)

	p.value.Set(&other.value)
	return p
}

func (p *Secp256k1Point) Negate() Point {
	out := new(Secp256k1Point)
	if p.IsIdentity() {
		return out
	}
	out.value = p.affine()
	out.value.Y.Negate(1)
	out.value.Y.Normalize()
	return out
}

func (p *Secp256k1Point) Equal(that Point) bool {
	other := secp256k1CastPoint(that)

	pIsIdentity := p.IsIdentity()
	otherIsIdentity := other.IsIdentity()
	if pIsIdentity || otherIsIdentity {
		return pIsIdentity == otherIsIdentity
	}
	a, b := p.affine(), other.affine()
	return a.X.Equals(&b.X) && a.Y.Equals(&b.Y)
}

func (p *Secp256k1Point) IsIdentity() bool {
	return (p.value.X.IsZero() && p.value.Y.IsZero()) || p.value.Z.IsZero()
}

// XScalar returns the affine x coordinate, reduced modulo the group order.
func (p *Secp256k1Point) XScalar() Scalar {
	a := p.affine()
	out := new(Secp256k1Scalar)
	out.value.SetByteSlice(a.X.Bytes()[:])
	return out
}

// XBytes returns the 32 byte affine x coordinate, without reduction.
func (p *Secp256k1Point) XBytes() []byte {
	a := p.affine()
	return a.X.Bytes()[:]
}

// HasEvenY reports whether the affine y coordinate is even.
func (p *Secp256k1Point) HasEvenY() bool {
	a := p.affine()
	return !a.Y.IsOdd()
}

// XOverflows reports whether the affine x coordinate is at least the group order.
func (p *Secp256k1Point) XOverflows() bool {
	a := p.affine()
	var s secp256k1.ModNScalar
	return s.SetByteSlice(a.X.Bytes()[:])
}
