// Package plot renders captures, fits and simulations as PNG figures with
// gonum/plot and as terminal charts with asciigraph.
package plot

import (
	"bufio"
	"fmt"
	"image/color"
	"io"
	"math"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

// DPI of rendered figures.
const DPI = 300

// limitedTicker produces at most maxLabels evenly spaced ticks formatted
// with labelFmt.
func limitedTicker(maxLabels int, labelFmt string) plot.Ticker {
	if maxLabels < 2 {
		maxLabels = 2
	}
	return plot.TickerFunc(func(min, max float64) []plot.Tick {
		if math.IsNaN(min) || math.IsNaN(max) || math.IsInf(min, 0) || math.IsInf(max, 0) {
			return nil
		}
		if min == max {
			return []plot.Tick{{Value: min, Label: fmt.Sprintf(labelFmt, min)}}
		}
		step := (max - min) / float64(maxLabels-1)

		ticks := make([]plot.Tick, 0, maxLabels)
		for i := 0; i < maxLabels; i++ {
			v := min + float64(i)*step
			ticks = append(ticks, plot.Tick{Value: v, Label: fmt.Sprintf(labelFmt, v)})
		}
		return ticks
	})
}

// stylePlot applies the shared look: large labels, thick axes and at most
// ten tick labels per axis.
func stylePlot(p *plot.Plot) {
	p.Title.TextStyle.Font.Size = vg.Points(22)
	p.Title.Padding = vg.Points(12)

	p.X.Label.TextStyle.Font.Size = vg.Points(18)
	p.Y.Label.TextStyle.Font.Size = vg.Points(18)
	p.X.Label.Padding = vg.Points(10)
	p.Y.Label.Padding = vg.Points(10)

	p.X.LineStyle.Width = vg.Points(2.2)
	p.Y.LineStyle.Width = vg.Points(2.2)
	p.X.Padding = vg.Points(20)
	p.Y.Padding = vg.Points(20)

	p.X.Tick.LineStyle.Width = vg.Points(2.0)
	p.Y.Tick.LineStyle.Width = vg.Points(2.0)
	p.X.Tick.Length = vg.Points(8)
	p.Y.Tick.Length = vg.Points(8)

	p.X.Tick.Label.Font.Size = vg.Points(14)
	p.Y.Tick.Label.Font.Size = vg.Points(14)

	p.X.Tick.Marker = limitedTicker(10, "%.0f")
	p.Y.Tick.Marker = limitedTicker(10, "%.2f")

	p.Legend.Top = true
	p.Legend.TextStyle.Font.Size = vg.Points(14)
	p.Add(plotter.NewGrid())
}

func newPlot(title, xLabel, yLabel string) *plot.Plot {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = xLabel
	p.Y.Label.Text = yLabel
	stylePlot(p)
	return p
}

// addLine adds a series drawn in the palette color of index. NaN and
// infinite values are dropped.
func addLine(p *plot.Plot, name string, xs, ys []float64, index int) error {
	_, err := line(p, name, xs, ys, plotutil.Color(index))
	return err
}

// addDashed adds a thin dashed reference line.
func addDashed(p *plot.Plot, name string, xs, ys []float64, c color.Color) error {
	l, err := line(p, name, xs, ys, c)
	if l != nil {
		l.LineStyle.Width = vg.Points(1.2)
		l.LineStyle.Dashes = []vg.Length{vg.Points(6), vg.Points(4)}
	}
	return err
}

func line(p *plot.Plot, name string, xs, ys []float64, c color.Color) (*plotter.Line, error) {
	pts := make(plotter.XYs, 0, len(xs))
	for i := range xs {
		if math.IsNaN(ys[i]) || math.IsInf(ys[i], 0) {
			continue
		}
		pts = append(pts, plotter.XY{X: xs[i], Y: ys[i]})
	}
	if len(pts) == 0 {
		return nil, nil
	}
	l, err := plotter.NewLine(pts)
	if err != nil {
		return nil, fmt.Errorf("plot %s: %w", name, err)
	}
	l.LineStyle.Width = vg.Points(2.0)
	l.LineStyle.Color = c
	p.Add(l)
	if name != "" {
		p.Legend.Add(name, l)
	}
	return l, nil
}

// render draws a grid of plots onto a DPI raster canvas of widthIn x
// heightIn inches and writes it as PNG.
func render(w io.Writer, plots [][]*plot.Plot, widthIn, heightIn float64) error {
	c := vgimg.NewWith(
		vgimg.UseWH(vg.Length(widthIn)*vg.Inch, vg.Length(heightIn)*vg.Inch),
		vgimg.UseDPI(DPI),
	)
	dc := draw.New(c)

	if len(plots) == 1 && len(plots[0]) == 1 {
		plots[0][0].Draw(dc)
	} else {
		tiles := draw.Tiles{
			Rows: len(plots),
			Cols: len(plots[0]),
			PadX: vg.Points(12),
			PadY: vg.Points(12),
		}
		canvases := plot.Align(plots, tiles, dc)
		for i := range plots {
			for j := range plots[i] {
				if plots[i][j] != nil {
					plots[i][j].Draw(canvases[i][j])
				}
			}
		}
	}

	bw := bufio.NewWriter(w)
	png := vgimg.PngCanvas{Canvas: c}
	if _, err := png.WriteTo(bw); err != nil {
		return fmt.Errorf("cannot write png: %w", err)
	}
	return bw.Flush()
}

// SavePNG writes a figure to filename, creating its directory.
func SavePNG(fig Figure, filename string) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return fmt.Errorf("cannot create directory: %w", err)
	}
	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("cannot create png: %w", err)
	}
	defer f.Close()

	if err := fig.WritePNG(f); err != nil {
		return err
	}
	return f.Close()
}

// Figure is a grid of plots with a physical size in inches.
type Figure struct {
	Plots  [][]*plot.Plot
	Width  float64
	Height float64
}

func single(p *plot.Plot) Figure {
	return Figure{Plots: [][]*plot.Plot{{p}}, Width: 8, Height: 6}
}

func (f Figure) WritePNG(w io.Writer) error {
	return render(w, f.Plots, f.Width, f.Height)
}

// addPoints adds a scatter series.
func addPoints(p *plot.Plot, name string, xs, ys []float64, index int) error {
	pts := make(plotter.XYs, len(xs))
	for i := range xs {
		pts[i] = plotter.XY{X: xs[i], Y: ys[i]}
	}
	sc, err := plotter.NewScatter(pts)
	if err != nil {
		return fmt.Errorf("plot %s: %w", name, err)
	}
	sc.GlyphStyle.Color = plotutil.Color(index)
	sc.GlyphStyle.Radius = vg.Points(4)
	sc.GlyphStyle.Shape = draw.CircleGlyph{}
	p.Add(sc)
	if name != "" {
		p.Legend.Add(name, sc)
	}
	return nil
}
