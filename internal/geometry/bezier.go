// Package geometry describes the paths the mouse drives as Bezier curves and
// derives the wheel speeds, accelerations and torques needed to follow them.
package geometry

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/integrate/quad"
	"gonum.org/v1/gonum/spatial/r2"
)

var ErrDegenerate = errors.New("geometry: curve needs at least two nodes")

// quadPoints is the Gauss-Legendre order used for arc length.
const quadPoints = 32

// Bezier is a Bezier curve of any degree.
type Bezier struct {
	Nodes []r2.Vec
}

func NewBezier(nodes ...r2.Vec) (Bezier, error) {
	if len(nodes) < 2 {
		return Bezier{}, ErrDegenerate
	}
	return Bezier{Nodes: nodes}, nil
}

func (b Bezier) Degree() int {
	return len(b.Nodes) - 1
}

// At evaluates the curve at t in [0, 1] with de Casteljau's algorithm.
func (b Bezier) At(t float64) r2.Vec {
	if len(b.Nodes) == 0 {
		return r2.Vec{}
	}
	pts := make([]r2.Vec, len(b.Nodes))
	copy(pts, b.Nodes)
	for n := len(pts) - 1; n > 0; n-- {
		for i := 0; i < n; i++ {
			pts[i] = r2.Add(r2.Scale(1-t, pts[i]), r2.Scale(t, pts[i+1]))
		}
	}
	return pts[0]
}

// Hodograph returns the derivative curve, of one degree less.
func (b Bezier) Hodograph() Bezier {
	n := b.Degree()
	if n < 1 {
		return Bezier{Nodes: []r2.Vec{{}}}
	}
	nodes := make([]r2.Vec, n)
	for i := range nodes {
		nodes[i] = r2.Scale(float64(n), r2.Sub(b.Nodes[i+1], b.Nodes[i]))
	}
	return Bezier{Nodes: nodes}
}

// Tangent returns the first derivative at t.
func (b Bezier) Tangent(t float64) r2.Vec {
	return b.Hodograph().At(t)
}

// Curvature returns the signed curvature at t; positive turns left.
func (b Bezier) Curvature(t float64) float64 {
	d1 := b.Hodograph()
	v := d1.At(t)
	a := d1.Hodograph().At(t)
	speed := r2.Norm(v)
	if speed == 0 {
		return math.Inf(1)
	}
	return r2.Cross(v, a) / (speed * speed * speed)
}

// Length returns the arc length from 0 to t.
func (b Bezier) Length(t float64) float64 {
	if t <= 0 {
		return 0
	}
	d1 := b.Hodograph()
	speed := func(s float64) float64 { return r2.Norm(d1.At(s)) }
	return quad.Fixed(speed, 0, t, quadPoints, nil, 0)
}

// ClosestPoint returns the parameter of the point on the curve nearest p and
// its distance. A coarse scan picks the bracket, a golden section search
// refines it.
func (b Bezier) ClosestPoint(p r2.Vec) (t, dist float64) {
	const scan = 200
	dist2 := func(t float64) float64 {
		d := r2.Sub(b.At(t), p)
		return r2.Dot(d, d)
	}

	best := 0
	for i := 1; i <= scan; i++ {
		if dist2(float64(i)/scan) < dist2(float64(best)/scan) {
			best = i
		}
	}

	lo := math.Max(0, float64(best-1)/scan)
	hi := math.Min(1, float64(best+1)/scan)
	gr := (math.Sqrt(5) - 1) / 2
	for hi-lo > 1e-10 {
		m1 := hi - gr*(hi-lo)
		m2 := lo + gr*(hi-lo)
		if dist2(m1) < dist2(m2) {
			hi = m2
		} else {
			lo = m1
		}
	}
	t = (lo + hi) / 2
	return t, math.Sqrt(dist2(t))
}

// Sample evaluates the curve at n evenly spaced parameters.
func (b Bezier) Sample(n int) []r2.Vec {
	pts := make([]r2.Vec, n)
	for i := range pts {
		pts[i] = b.At(param(i, n))
	}
	return pts
}

func param(i, n int) float64 {
	if n <= 1 {
		return 0
	}
	return float64(i) / float64(n-1)
}
