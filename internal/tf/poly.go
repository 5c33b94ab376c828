package tf

import (
	"fmt"
	"math"
	"strings"
)

// Poly is a polynomial in s with coefficients from the highest power down:
// Poly{2, 0, 1} is 2s² + 1.
type Poly []float64

// trim drops leading zero coefficients, keeping at least one.
func (p Poly) trim() Poly {
	for len(p) > 1 && p[0] == 0 {
		p = p[1:]
	}
	if len(p) == 0 {
		return Poly{0}
	}
	return p
}

// Degree returns the degree; the zero polynomial has degree 0.
func (p Poly) Degree() int {
	return len(p.trim()) - 1
}

// IsZero reports whether every coefficient is zero.
func (p Poly) IsZero() bool {
	for _, c := range p {
		if c != 0 {
			return false
		}
	}
	return true
}

// Eval evaluates p at a complex point with Horner's rule.
func (p Poly) Eval(s complex128) complex128 {
	var acc complex128
	for _, c := range p {
		acc = acc*s + complex(c, 0)
	}
	return acc
}

// At evaluates p at a real point.
func (p Poly) At(x float64) float64 {
	var acc float64
	for _, c := range p {
		acc = acc*x + c
	}
	return acc
}

func (p Poly) Add(q Poly) Poly {
	n := max(len(p), len(q))
	out := make(Poly, n)
	for i := range p {
		out[n-len(p)+i] += p[i]
	}
	for i := range q {
		out[n-len(q)+i] += q[i]
	}
	return out.trim()
}

func (p Poly) Mul(q Poly) Poly {
	if len(p) == 0 || len(q) == 0 {
		return Poly{0}
	}
	out := make(Poly, len(p)+len(q)-1)
	for i, a := range p {
		for j, b := range q {
			out[i+j] += a * b
		}
	}
	return out.trim()
}

func (p Poly) Scale(k float64) Poly {
	out := make(Poly, len(p))
	for i, c := range p {
		out[i] = c * k
	}
	return out.trim()
}

func (p Poly) String() string {
	p = p.trim()
	var terms []string
	for i, c := range p {
		if c == 0 && len(p) > 1 {
			continue
		}
		pow := len(p) - 1 - i
		coef := fmt.Sprintf("%g", math.Abs(c))
		var term string
		switch {
		case pow == 0:
			term = coef
		case coef == "1":
			term = power(pow)
		default:
			term = coef + " " + power(pow)
		}
		switch {
		case len(terms) == 0 && c < 0:
			terms = append(terms, "-"+term)
		case len(terms) == 0:
			terms = append(terms, term)
		case c < 0:
			terms = append(terms, "- "+term)
		default:
			terms = append(terms, "+ "+term)
		}
	}
	return strings.Join(terms, " ")
}

func power(n int) string {
	if n == 1 {
		return "s"
	}
	return fmt.Sprintf("s^%d", n)
}
