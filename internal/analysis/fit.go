package analysis

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
)

// maxEvaluations bounds the objective evaluations of one fit.
const maxEvaluations = 40000

// Fit is the result of a least squares fit.
type Fit struct {
	Params []float64 `json:"params"`
	// Covariance of the parameters, s²(JᵀJ)⁻¹ with s² the residual variance.
	Covariance *mat.SymDense `json:"-"`
	SSE        float64       `json:"sse"`
	N          int           `json:"n"`
}

// StdErr returns the standard error of each parameter.
func (f Fit) StdErr() []float64 {
	if f.Covariance == nil {
		return nil
	}
	n := f.Covariance.SymmetricDim()
	out := make([]float64, n)
	for i := range out {
		out[i] = math.Sqrt(math.Abs(f.Covariance.At(i, i)))
	}
	return out
}

// RMSE is the root mean square residual.
func (f Fit) RMSE() float64 {
	if f.N == 0 {
		return 0
	}
	return math.Sqrt(f.SSE / float64(f.N))
}

// CovarianceRows returns the covariance as nested slices for reports.
func (f Fit) CovarianceRows() [][]float64 {
	if f.Covariance == nil {
		return nil
	}
	n := f.Covariance.SymmetricDim()
	rows := make([][]float64, n)
	for i := range rows {
		rows[i] = make([]float64, n)
		for j := range rows[i] {
			rows[i][j] = f.Covariance.At(i, j)
		}
	}
	return rows
}

type model func(t float64, p []float64) float64

// leastSquares minimizes the squared residuals of m over p. The search runs
// on parameters scaled by the magnitude of the guess so that parameters of
// very different size (an offset of a few ticks/ms, a frequency of a few
// thousandths per ms) move at the same rate.
func leastSquares(m model, t, y, guess []float64) (Fit, error) {
	if len(t) != len(y) {
		return Fit{}, fmt.Errorf("analysis: %d times but %d values", len(t), len(y))
	}
	if len(t) <= len(guess) {
		return Fit{}, fmt.Errorf("%w: %d points for %d parameters", ErrTooFewSamples, len(t), len(guess))
	}

	scale := make([]float64, len(guess))
	for i, g := range guess {
		scale[i] = math.Abs(g)
		if scale[i] == 0 {
			scale[i] = 1
		}
	}
	unscale := func(x []float64) []float64 {
		p := make([]float64, len(x))
		for i := range x {
			p[i] = x[i] * scale[i]
		}
		return p
	}
	residuals := func(r, x []float64) {
		p := unscale(x)
		for i := range t {
			r[i] = y[i] - m(t[i], p)
		}
	}
	sse := func(x []float64) float64 {
		p := unscale(x)
		var sum float64
		for i := range t {
			d := y[i] - m(t[i], p)
			sum += d * d
		}
		return sum
	}

	x0 := make([]float64, len(guess))
	for i := range x0 {
		x0[i] = guess[i] / scale[i]
	}

	res, err := optimize.Minimize(
		optimize.Problem{Func: sse},
		x0,
		&optimize.Settings{FuncEvaluations: maxEvaluations},
		&optimize.NelderMead{},
	)
	if err != nil {
		return Fit{}, fmt.Errorf("analysis: fit did not converge: %w", err)
	}

	n, k := len(t), len(guess)
	jac := mat.NewDense(n, k, nil)
	fd.Jacobian(jac, residuals, res.X, &fd.JacobianSettings{Formula: fd.Central})
	for j := 0; j < k; j++ {
		for i := 0; i < n; i++ {
			jac.Set(i, j, jac.At(i, j)/scale[j])
		}
	}

	var jtj mat.SymDense
	jtj.SymOuterK(1, jac.T())
	var chol mat.Cholesky
	if ok := chol.Factorize(&jtj); !ok {
		return Fit{}, ErrSingular
	}
	cov := mat.NewSymDense(k, nil)
	if err := chol.InverseTo(cov); err != nil {
		return Fit{}, fmt.Errorf("%w: %v", ErrSingular, err)
	}
	cov.ScaleSym(res.F/float64(n-k), cov)

	return Fit{
		Params:     unscale(res.X),
		Covariance: cov,
		SSE:        res.F,
		N:          n,
	}, nil
}

// SineParams describe offset + amplitude*sin(2π t f + phase), t in ms.
type SineParams struct {
	Offset    float64 `json:"offset" yaml:"offset"`
	Amplitude float64 `json:"amplitude" yaml:"amplitude"`
	Frequency float64 `json:"frequency" yaml:"frequency"`
	Phase     float64 `json:"phase" yaml:"phase"`
}

// DefaultSineGuess is the starting point used for a 10000 power drive at
// 0.002 cycles/ms.
var DefaultSineGuess = SineParams{Offset: 3, Amplitude: 2.5, Frequency: 0.002, Phase: 0}

func (s SineParams) At(t float64) float64 {
	return s.Offset + s.Amplitude*math.Sin(2*math.Pi*t*s.Frequency+s.Phase)
}

func (s SineParams) slice() []float64 {
	return []float64{s.Offset, s.Amplitude, s.Frequency, s.Phase}
}

func sine(t float64, p []float64) float64 {
	return p[0] + p[1]*math.Sin(2*math.Pi*t*p[2]+p[3])
}

// SineFit is a fitted sinusoid.
type SineFit struct {
	SineParams
	Fit
}

// FitSine fits a sinusoid to v(t). The result has a positive amplitude and
// a phase in (-π, π].
func FitSine(t, v []float64, guess SineParams) (SineFit, error) {
	f, err := leastSquares(sine, t, v, guess.slice())
	if err != nil {
		return SineFit{}, err
	}
	p := SineParams{Offset: f.Params[0], Amplitude: f.Params[1], Frequency: f.Params[2], Phase: f.Params[3]}
	if p.Amplitude < 0 {
		p.Amplitude = -p.Amplitude
		p.Phase += math.Pi
	}
	p.Phase = wrapPhase(p.Phase)
	return SineFit{SineParams: p, Fit: f}, nil
}

func wrapPhase(p float64) float64 {
	p = math.Mod(p, 2*math.Pi)
	if p > math.Pi {
		p -= 2 * math.Pi
	} else if p <= -math.Pi {
		p += 2 * math.Pi
	}
	return p
}

// FirstOrder is the step response K*power*(1-exp(-(t-start)/ta)).
type FirstOrder struct {
	Gain         float64 `json:"gain" yaml:"gain"`
	TimeConstant float64 `json:"time_constant" yaml:"time_constant"`
}

// At evaluates the response at t for a step of power applied at start.
func (f FirstOrder) At(t, power, start float64) float64 {
	if t < start || f.TimeConstant == 0 {
		return 0
	}
	return f.Gain * power * (1 - math.Exp(-(t-start)/math.Abs(f.TimeConstant)))
}

// FirstOrderFit is a fitted first-order step response.
type FirstOrderFit struct {
	FirstOrder
	Fit
}

// FitFirstOrder fits a first-order step response to the driven part of a
// capture, v(t) for t >= start.
func FitFirstOrder(t, v []float64, power, start float64, guess FirstOrder) (FirstOrderFit, error) {
	m := func(t float64, p []float64) float64 {
		return FirstOrder{Gain: p[0], TimeConstant: p[1]}.At(t, power, start)
	}
	f, err := leastSquares(m, t, v, []float64{guess.Gain, guess.TimeConstant})
	if err != nil {
		return FirstOrderFit{}, err
	}
	fo := FirstOrder{Gain: f.Params[0], TimeConstant: math.Abs(f.Params[1])}
	return FirstOrderFit{FirstOrder: fo, Fit: f}, nil
}
