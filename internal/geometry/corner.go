package geometry

import (
	"gonum.org/v1/gonum/spatial/r2"
	"periph.io/x/conn/v3/physic"
)

// CornerCurve returns the degree-5 curve of a 90° corner of radius r,
// entering along the y axis at (0, r-offset) and leaving along the x axis
// at (r+offset, 0). Coordinates are in metres.
func CornerCurve(r, offset physic.Distance) Bezier {
	rm := metres(r)
	om := metres(offset)
	r1 := rm * 0.5
	r2v := rm * 0.3

	return Bezier{Nodes: []r2.Vec{
		{X: 0, Y: rm - om},
		{X: 0, Y: r1},
		{X: 0, Y: r2v},
		{X: r2v, Y: 0},
		{X: r1, Y: 0},
		{X: rm + om, Y: 0},
	}}
}

func metres(d physic.Distance) float64 {
	return float64(d) / float64(physic.Metre)
}

func kilograms(m physic.Mass) float64 {
	return float64(m) / float64(physic.KiloGram)
}

func metresPerSecond(s physic.Speed) float64 {
	return float64(s) / float64(physic.MetrePerSecond)
}
