package integrators

import "github.com/san-kum/motorlab/internal/dynamo"

// Classic fourth-order tableau: stage s is evaluated at t+c[s]*dt from the
// previous stage slope, and the slopes are combined with weights w/6.
var (
	rk4C = [4]float64{0, 0.5, 0.5, 1}
	rk4W = [4]float64{1, 2, 2, 1}
)

// RK4 reuses its stage buffers between steps of the same dimension, so one
// instance must not be shared between goroutines.
type RK4 struct {
	k   [4]dynamo.State
	tmp dynamo.State
}

func NewRK4() *RK4 {
	return &RK4{}
}

func (r *RK4) resize(n int) {
	if len(r.tmp) == n {
		return
	}
	for s := range r.k {
		r.k[s] = make(dynamo.State, n)
	}
	r.tmp = make(dynamo.State, n)
}

func (r *RK4) Step(dyn dynamo.System, x dynamo.State, u dynamo.Control, t, dt float64) dynamo.State {
	n := len(x)
	r.resize(n)

	for s := range r.k {
		in := x
		if s > 0 {
			h := rk4C[s] * dt
			for i := range x {
				r.tmp[i] = x[i] + h*r.k[s-1][i]
			}
			in = r.tmp
		}
		copy(r.k[s], dyn.Derive(in, u, t+rk4C[s]*dt))
	}

	next := make(dynamo.State, n)
	for i := range x {
		var slope float64
		for s, w := range rk4W {
			slope += w * r.k[s][i]
		}
		next[i] = x[i] + dt/6*slope
	}
	return next
}
