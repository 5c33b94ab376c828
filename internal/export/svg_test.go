package export

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"gonum.org/v1/gonum/spatial/r2"
	"periph.io/x/conn/v3/physic"

	"github.com/san-kum/motorlab/internal/geometry"
)

func TestCurveToSVG(t *testing.T) {
	curve := geometry.CornerCurve(90*physic.MilliMetre, 12*physic.MilliMetre)
	opts := DefaultSVGOptions()
	opts.Samples = 50

	var buf bytes.Buffer
	if err := CurveToSVG(&buf, curve, opts); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.HasPrefix(out, "<?xml") || !strings.HasSuffix(out, "</svg>\n") {
		t.Error("not a complete svg document")
	}
	if got := strings.Count(out, "<circle"); got != len(curve.Nodes) {
		t.Errorf("circles = %d, want %d", got, len(curve.Nodes))
	}
	if got := strings.Count(out, " L"); got != 49+len(curve.Nodes)-1 {
		t.Errorf("line segments = %d", got)
	}
}

func TestPathToSVG(t *testing.T) {
	var buf bytes.Buffer
	pts := []r2.Vec{{X: 0, Y: 0}, {X: 1, Y: 1}}
	if err := PathToSVG(&buf, pts, DefaultSVGOptions()); err != nil {
		t.Fatal(err)
	}
	// y points up: the second point is drawn above the first.
	if !strings.Contains(buf.String(), "M50.0,550.0 L550.0,50.0") {
		t.Errorf("unexpected path:\n%s", buf.String())
	}

	if err := PathToSVG(&buf, pts[:1], DefaultSVGOptions()); !errors.Is(err, ErrTooFewPoints) {
		t.Errorf("expected ErrTooFewPoints, got %v", err)
	}
}
