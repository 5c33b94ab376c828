// Package tf builds continuous-time transfer functions of the motor and its
// PID controller and simulates their step responses. Time is in
// milliseconds throughout, so a motor time constant of 44.8 ms appears as
// the pole 1/44.8.
package tf

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/mat"
)

var (
	ErrZeroDenominator = errors.New("tf: zero denominator")
	ErrImproper        = errors.New("tf: numerator degree exceeds denominator degree")
)

// TransferFunction is Num(s)/Den(s).
type TransferFunction struct {
	Num Poly
	Den Poly
}

// New returns num/den.
func New(num, den Poly) (TransferFunction, error) {
	if den.IsZero() {
		return TransferFunction{}, ErrZeroDenominator
	}
	return TransferFunction{Num: num.trim(), Den: den.trim()}, nil
}

// Gain is the constant transfer function k.
func Gain(k float64) TransferFunction {
	return TransferFunction{Num: Poly{k}, Den: Poly{1}}
}

// Motor is the first-order velocity response finalV/(ta s + 1), with finalV
// the steady-state velocity per unit of power.
func Motor(ta, finalV float64) TransferFunction {
	return TransferFunction{Num: Poly{finalV}, Den: Poly{ta, 1}}
}

// PID is p + i/s + d s = (d s² + p s + i)/s. Without integral action the
// pole at the origin is left out: p + d s.
func PID(p, i, d float64) TransferFunction {
	if i == 0 {
		return TransferFunction{Num: Poly{d, p}.trim(), Den: Poly{1}}
	}
	return TransferFunction{Num: Poly{d, p, i}.trim(), Den: Poly{1, 0}}
}

// Series is a followed by b.
func Series(a, b TransferFunction) TransferFunction {
	return TransferFunction{Num: a.Num.Mul(b.Num), Den: a.Den.Mul(b.Den)}
}

// Parallel is a + b.
func Parallel(a, b TransferFunction) TransferFunction {
	return TransferFunction{
		Num: a.Num.Mul(b.Den).Add(b.Num.Mul(a.Den)),
		Den: a.Den.Mul(b.Den),
	}
}

// Feedback closes a unity negative feedback loop around g: g/(1+g).
func Feedback(g TransferFunction) TransferFunction {
	return TransferFunction{Num: g.Num, Den: g.Den.Add(g.Num)}
}

// Proper reports whether the numerator degree does not exceed the
// denominator degree.
func (g TransferFunction) Proper() bool {
	return g.Num.Degree() <= g.Den.Degree()
}

// Eval returns g(s).
func (g TransferFunction) Eval(s complex128) complex128 {
	return g.Num.Eval(s) / g.Den.Eval(s)
}

// Freq returns g(jω) for ω in rad/ms.
func (g TransferFunction) Freq(omega float64) complex128 {
	return g.Eval(complex(0, omega))
}

// Bode returns magnitude and phase (radians) at ω.
func (g TransferFunction) Bode(omega float64) (mag, phase float64) {
	h := g.Freq(omega)
	return cmplx.Abs(h), cmplx.Phase(h)
}

// DCGain returns g(0); a pole at the origin gives ±Inf.
func (g TransferFunction) DCGain() float64 {
	num, den := g.Num.At(0), g.Den.At(0)
	if den == 0 {
		if num == 0 {
			return math.NaN()
		}
		return math.Copysign(math.Inf(1), num)
	}
	return num / den
}

// Poles returns the roots of the denominator, computed as the eigenvalues
// of its companion matrix.
func (g TransferFunction) Poles() []complex128 {
	return roots(g.Den)
}

// Stable reports whether every pole lies in the open left half plane.
func (g TransferFunction) Stable() bool {
	for _, p := range g.Poles() {
		if real(p) >= 0 {
			return false
		}
	}
	return true
}

func (g TransferFunction) String() string {
	return fmt.Sprintf("(%s) / (%s)", g.Num, g.Den)
}

func roots(p Poly) []complex128 {
	p = p.trim()
	n := len(p) - 1
	if n < 1 {
		return nil
	}
	comp := mat.NewDense(n, n, nil)
	for j := 0; j < n; j++ {
		comp.Set(0, j, -p[j+1]/p[0])
	}
	for i := 1; i < n; i++ {
		comp.Set(i, i-1, 1)
	}
	var eig mat.Eigen
	if ok := eig.Factorize(comp, mat.EigenNone); !ok {
		return nil
	}
	return eig.Values(nil)
}
