package tune

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/san-kum/motorlab/internal/dynamo"
	"github.com/san-kum/motorlab/internal/tf"
)

var ErrEmptyGrid = errors.New("tune: empty gain grid")

// Grid lists the candidate values of each gain.
type Grid struct {
	P []float64 `json:"p" yaml:"p"`
	I []float64 `json:"i" yaml:"i"`
	D []float64 `json:"d" yaml:"d"`
}

// Linspace returns n evenly spaced values from lo to hi inclusive.
func Linspace(lo, hi float64, n int) []float64 {
	if n <= 1 {
		return []float64{lo}
	}
	out := make([]float64, n)
	step := (hi - lo) / float64(n-1)
	for i := range out {
		out[i] = lo + float64(i)*step
	}
	return out
}

// Logspace returns n values spaced evenly on a log scale from lo to hi.
func Logspace(lo, hi float64, n int) []float64 {
	exps := Linspace(math.Log10(lo), math.Log10(hi), n)
	for i, e := range exps {
		exps[i] = math.Pow(10, e)
	}
	return exps
}

// Points enumerates every combination of the grid.
func (g Grid) Points() []Gains {
	pts := make([]Gains, 0, len(g.P)*len(g.I)*len(g.D))
	for _, p := range g.P {
		for _, i := range g.I {
			for _, d := range g.D {
				pts = append(pts, Gains{P: p, I: i, D: d})
			}
		}
	}
	return pts
}

// Search evaluates every grid point concurrently and returns the lowest cost
// evaluation together with all evaluations sorted by cost.
func Search(ctx context.Context, motor tf.TransferFunction, grid Grid, opts Options) (Evaluation, []Evaluation, error) {
	pts := grid.Points()
	if len(pts) == 0 {
		return Evaluation{}, nil, ErrEmptyGrid
	}

	evals := make([]Evaluation, len(pts))
	ens := dynamo.NewEnsemble(opts.Workers)
	_, err := ens.Run(ctx, len(pts), func(ctx context.Context, idx int) (*dynamo.Result, error) {
		ev, err := Evaluate(ctx, motor, pts[idx], opts)
		if err != nil {
			return nil, fmt.Errorf("evaluating %s: %w", pts[idx], err)
		}
		ev.Response, ev.Power = tf.Response{}, nil
		evals[idx] = ev
		return &dynamo.Result{Metrics: map[string]float64{"cost": ev.Cost}}, nil
	})
	if err != nil {
		return Evaluation{}, nil, err
	}

	sort.SliceStable(evals, func(a, b int) bool {
		return evals[a].Cost < evals[b].Cost
	})
	if math.IsInf(evals[0].Cost, 1) {
		return evals[0], evals, fmt.Errorf("tune: no stable gains settle within %g ms", opts.Duration)
	}

	// rerun the winner to keep its traces
	best, err := Evaluate(ctx, motor, evals[0].Gains, opts)
	if err != nil {
		return Evaluation{}, evals, err
	}
	return best, evals, nil
}
