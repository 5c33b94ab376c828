// Package export writes curves as standalone SVG drawings.
package export

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/san-kum/motorlab/internal/geometry"
)

var ErrTooFewPoints = errors.New("export: need at least two points")

// SVGOptions control the drawing size and colors.
type SVGOptions struct {
	Width, Height int
	Stroke        string
	Control       string
	Background    string
	// Samples is the number of curve points in the path.
	Samples int
}

func DefaultSVGOptions() SVGOptions {
	return SVGOptions{
		Width:      600,
		Height:     600,
		Stroke:     "#00ff88",
		Control:    "#666688",
		Background: "#0a0a0a",
		Samples:    200,
	}
}

// frame maps curve coordinates to pixels with a common scale on both axes,
// y pointing up and a 10% margin.
type frame struct {
	minX, minY, scale float64
	height            float64
}

func newFrame(pts []r2.Vec, width, height int) frame {
	minX, maxX := pts[0].X, pts[0].X
	minY, maxY := pts[0].Y, pts[0].Y
	for _, p := range pts {
		minX, maxX = math.Min(minX, p.X), math.Max(maxX, p.X)
		minY, maxY = math.Min(minY, p.Y), math.Max(maxY, p.Y)
	}
	rangeX, rangeY := maxX-minX, maxY-minY
	if rangeX == 0 {
		rangeX = 1
	}
	if rangeY == 0 {
		rangeY = 1
	}
	span := math.Max(rangeX, rangeY) * 1.2
	return frame{
		minX:   minX - (span-rangeX)/2,
		minY:   minY - (span-rangeY)/2,
		scale:  math.Min(float64(width), float64(height)) / span,
		height: float64(height),
	}
}

func (f frame) px(p r2.Vec) (x, y float64) {
	return (p.X - f.minX) * f.scale, f.height - (p.Y-f.minY)*f.scale
}

func (f frame) path(pts []r2.Vec) string {
	var sb strings.Builder
	for i, p := range pts {
		x, y := f.px(p)
		if i == 0 {
			fmt.Fprintf(&sb, "M%.1f,%.1f", x, y)
		} else {
			fmt.Fprintf(&sb, " L%.1f,%.1f", x, y)
		}
	}
	return sb.String()
}

// PathToSVG writes points as a polyline drawing.
func PathToSVG(w io.Writer, points []r2.Vec, opts SVGOptions) error {
	if len(points) < 2 {
		return ErrTooFewPoints
	}
	f := newFrame(points, opts.Width, opts.Height)
	bw := bufio.NewWriter(w)
	header(bw, opts)
	fmt.Fprintf(bw, "<path fill=\"none\" stroke=\"%s\" stroke-width=\"2\" d=\"%s\"/>\n", opts.Stroke, f.path(points))
	bw.WriteString("</svg>\n")
	return bw.Flush()
}

// CurveToSVG writes a Bezier curve with its control polygon and nodes.
func CurveToSVG(w io.Writer, curve geometry.Bezier, opts SVGOptions) error {
	if len(curve.Nodes) < 2 {
		return ErrTooFewPoints
	}
	n := opts.Samples
	if n < 2 {
		n = 2
	}
	pts := curve.Sample(n)

	all := append(append([]r2.Vec(nil), pts...), curve.Nodes...)
	f := newFrame(all, opts.Width, opts.Height)

	bw := bufio.NewWriter(w)
	header(bw, opts)
	fmt.Fprintf(bw, "<path fill=\"none\" stroke=\"%s\" stroke-width=\"1\" stroke-dasharray=\"6 4\" d=\"%s\"/>\n", opts.Control, f.path(curve.Nodes))
	fmt.Fprintf(bw, "<g fill=\"%s\">\n", opts.Control)
	for _, p := range curve.Nodes {
		x, y := f.px(p)
		fmt.Fprintf(bw, "<circle cx=\"%.1f\" cy=\"%.1f\" r=\"4\"/>\n", x, y)
	}
	bw.WriteString("</g>\n")
	fmt.Fprintf(bw, "<path fill=\"none\" stroke=\"%s\" stroke-width=\"2.5\" d=\"%s\"/>\n", opts.Stroke, f.path(pts))
	bw.WriteString("</svg>\n")
	return bw.Flush()
}

func header(w io.Writer, opts SVGOptions) {
	fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="%s"/>
`, opts.Width, opts.Height, opts.Width, opts.Height, opts.Background)
}
