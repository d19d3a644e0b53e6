package polynomial

import (
	"github.com/cronokirby/saferith"
	"github.com/taurusgroup/multi-party-keystore/pkg/math/curve"
	"github.com/taurusgroup/multi-party-keystore/pkg/party"
)

// Lagrange returns λⱼ for every j in domain, so that
// Σⱼ λⱼ⋅f(j) = f(0) for any polynomial f of degree < len(domain).
func Lagrange(group curve.Curve, domain []party.ID) map[party.ID]curve.Scalar {
	return LagrangeFor(group, domain, domain...)
}

// LagrangeFor is Lagrange restricted to the parties in subset, which must belong to domain.
func LagrangeFor(group curve.Curve, domain []party.ID, subset ...party.ID) map[party.ID]curve.Scalar {
	xs := make([]curve.Scalar, len(domain))
	for k, id := range domain {
		xs[k] = id.Scalar(group)
	}
	out := make(map[party.ID]curve.Scalar, len(subset))
	for _, j := range subset {
		out[j] = coefficient(group, domain, xs, j)
	}
	return out
}

// LagrangeSingle returns λⱼ over domain.
func LagrangeSingle(group curve.Curve, domain []party.ID, j party.ID) curve.Scalar {
	return LagrangeFor(group, domain, j)[j]
}

// coefficient computes λⱼ = ∏ᵢ≠ⱼ xᵢ / (xᵢ - xⱼ).
func coefficient(group curve.Curve, domain []party.ID, xs []curve.Scalar, j party.ID) curve.Scalar {
	xj := j.Scalar(group)
	num := group.NewScalar().SetNat(new(saferith.Nat).SetUint64(1))
	den := group.NewScalar().SetNat(new(saferith.Nat).SetUint64(1))
	diff := group.NewScalar()
	for k, id := range domain {
		if id == j {
			continue
		}
		num.Mul(xs[k])
		diff.Set(xs[k]).Sub(xj)
		den.Mul(diff)
	}
	return den.Invert().Mul(num)
}
