package polynomial

import (
	"encoding/binary"
	"errors"
	"io"

	"github.com/taurusgroup/multi-party-keystore/pkg/math/curve"
)

var (
	errEmptyExponent  = errors.New("polynomial: exponent needs at least one coefficient")
	errDegreeMismatch = errors.New("polynomial: exponents have different degrees")
)

// Exponent holds the Feldman commitments [a₀]•G, …, [aₜ]•G to a Polynomial.
type Exponent struct {
	group        curve.Curve
	coefficients []curve.Point
}

func (p *Exponent) clone() *Exponent {
	points := make([]curve.Point, len(p.coefficients))
	for i, c := range p.coefficients {
		points[i] = p.group.NewPoint().Set(c)
	}
	return &Exponent{group: p.group, coefficients: points}
}

// NewPolynomialExponent commits to every coefficient of f.
func NewPolynomialExponent(f *Polynomial) *Exponent {
	points := make([]curve.Point, len(f.coefficients))
	for i, a := range f.coefficients {
		points[i] = a.ActOnBase()
	}
	return &Exponent{group: f.group, coefficients: points}
}

// NewExponent copies the given commitments, lowest degree first.
func NewExponent(group curve.Curve, coefficients []curve.Point) (*Exponent, error) {
	if len(coefficients) == 0 {
		return nil, errEmptyExponent
	}
	for _, c := range coefficients {
		if c == nil {
			return nil, errors.New("polynomial: nil coefficient")
		}
	}
	return (&Exponent{group: group, coefficients: coefficients}).clone(), nil
}

// Evaluate returns [f(x)]•G, by Horner's rule.
func (p *Exponent) Evaluate(x curve.Scalar) curve.Point {
	acc := p.group.NewPoint()
	for i := len(p.coefficients) - 1; i >= 0; i-- {
		acc = x.Act(acc).Add(p.coefficients[i])
	}
	return acc
}

func (p *Exponent) Degree() int { return len(p.coefficients) - 1 }

// Sum returns the coefficient-wise sum of exponents, which must all have the same degree.
// The inputs are left untouched.
func Sum(exponents []*Exponent) (*Exponent, error) {
	if len(exponents) == 0 {
		return nil, errEmptyExponent
	}
	acc := exponents[0].clone()
	for _, q := range exponents[1:] {
		if len(q.coefficients) != len(acc.coefficients) {
			return nil, errDegreeMismatch
		}
		for i, c := range q.coefficients {
			acc.coefficients[i] = acc.coefficients[i].Add(c)
		}
	}
	return acc, nil
}

func (p *Exponent) Copy() *Exponent { return p.clone() }

func (p *Exponent) Equal(other *Exponent) bool {
	if len(p.coefficients) != len(other.coefficients) {
		return false
	}
	for i, c := range p.coefficients {
		if !c.Equal(other.coefficients[i]) {
			return false
		}
	}
	return true
}

// Constant returns [f(0)]•G.
func (p *Exponent) Constant() curve.Point {
	return p.group.NewPoint().Set(p.coefficients[0])
}

// Coefficients returns a copy of the commitments, lowest degree first.
func (p *Exponent) Coefficients() []curve.Point {
	return p.clone().coefficients
}

// WriteTo writes a uint32 count followed by the encoded points.
func (p *Exponent) WriteTo(w io.Writer) (int64, error) {
	buf := binary.BigEndian.AppendUint32(nil, uint32(len(p.coefficients)))
	for _, c := range p.coefficients {
		data, err := c.MarshalBinary()
		if err != nil {
			return 0, err
		}
		buf = append(buf, data...)
	}
	n, err := w.Write(buf)
	return int64(n), err
}

func (*Exponent) Domain() string { return "Exponent" }
