package curve

import (
	"errors"
	"math"
	"sort"
)

var errBadKnots = errors.New("pchip: knots must be finite and strictly increasing")

// pchip is a monotone piecewise cubic Hermite interpolant (Fritsch–Carlson).
// Between two knots it never leaves the range spanned by their values, so a
// non-negative input can never produce a negative curve.
type pchip struct {
	x, y, d []float64
}

func newPCHIP(x, y []float64) (*pchip, error) {
	n := len(x)
	if n < 2 || n != len(y) {
		return nil, errBadKnots
	}
	for i := range x {
		if !isFinite(x[i]) || !isFinite(y[i]) {
			return nil, errBadKnots
		}
		if i > 0 && x[i] <= x[i-1] {
			return nil, errBadKnots
		}
	}

	h := make([]float64, n-1)
	m := make([]float64, n-1)
	for k := 0; k < n-1; k++ {
		h[k] = x[k+1] - x[k]
		m[k] = (y[k+1] - y[k]) / h[k]
	}

	d := make([]float64, n)
	if n == 2 {
		d[0], d[1] = m[0], m[0]
		return &pchip{x: x, y: y, d: d}, nil
	}

	for k := 1; k < n-1; k++ {
		if m[k-1] == 0 || m[k] == 0 || math.Signbit(m[k-1]) != math.Signbit(m[k]) {
			continue
		}
		// weighted harmonic mean of the neighbouring slopes
		w1 := 2*h[k] + h[k-1]
		w2 := h[k] + 2*h[k-1]
		d[k] = (w1 + w2) / (w1/m[k-1] + w2/m[k])
	}
	d[0] = edgeSlope(h[0], h[1], m[0], m[1])
	d[n-1] = edgeSlope(h[n-2], h[n-3], m[n-2], m[n-3])
	return &pchip{x: x, y: y, d: d}, nil
}

// edgeSlope is the one-sided three-point end condition, limited so the end
// segments stay monotone.
func edgeSlope(h0, h1, m0, m1 float64) float64 {
	d := ((2*h0+h1)*m0 - h0*m1) / (h0 + h1)
	if sign(d) != sign(m0) {
		return 0
	}
	if sign(m0) != sign(m1) && math.Abs(d) > math.Abs(3*m0) {
		return 3 * m0
	}
	return d
}

func (p *pchip) at(xv float64) float64 {
	n := len(p.x)
	// interval k with x[k] <= xv < x[k+1], clamped to the outer segments
	k := sort.SearchFloat64s(p.x, xv)
	if k < len(p.x) && p.x[k] == xv {
		if k == n-1 {
			k--
		}
	} else {
		k--
	}
	if k < 0 {
		k = 0
	}
	if k > n-2 {
		k = n - 2
	}

	h := p.x[k+1] - p.x[k]
	t := xv - p.x[k]
	slope := (p.y[k+1] - p.y[k]) / h
	c2 := (3*slope - 2*p.d[k] - p.d[k+1]) / h
	c3 := (p.d[k] + p.d[k+1] - 2*slope) / (h * h)
	return p.y[k] + t*(p.d[k]+t*(c2+t*c3))
}

func sign(v float64) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
