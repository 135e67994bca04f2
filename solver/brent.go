// Package solver implements the one-dimensional root finding used to imply
// correlations: Brent's method, coarse-table bracketing and the factor search
// that inverts a (strike, correlation) table.
package solver

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrNoSignChange is returned when the end points do not straddle the target.
	ErrNoSignChange = errors.New("solver: no sign change")
	// ErrMaxIterations is returned when Brent's method does not converge.
	ErrMaxIterations = errors.New("solver: maximum iterations exceeded")
)

// DefaultMaxIterations bounds a Brent solve when none is configured.
const DefaultMaxIterations = 1000

// Func is an objective evaluated at a trial point.
type Func func(x float64) (float64, error)

// Result is a converged root.
type Result struct {
	X          float64
	F          float64
	Iterations int
}

// Brent finds x with f(x) = target by inverse quadratic interpolation with a
// bisection fallback.
type Brent struct {
	// ToleranceF stops the search once |f(x) - target| <= ToleranceF.
	ToleranceF float64
	// ToleranceX stops the search once the bracket is narrower than ToleranceX.
	ToleranceX float64
	// MaxIterations defaults to DefaultMaxIterations.
	MaxIterations int
}

// Solve searches [lo, hi]; f(lo) and f(hi) must straddle target.
func (s Brent) Solve(f Func, target, lo, hi float64) (Result, error) {
	g := shifted(f, target)
	flo, err := g(lo)
	if err != nil {
		return Result{}, err
	}
	fhi, err := g(hi)
	if err != nil {
		return Result{}, err
	}
	return s.solve(g, lo, flo, hi, fhi, target)
}

// SolveFrom searches [lo, hi] and, when the end points do not straddle the
// target, probes start to split the domain.
func (s Brent) SolveFrom(f Func, target, lo, hi, start float64) (Result, error) {
	g := shifted(f, target)
	flo, err := g(lo)
	if err != nil {
		return Result{}, err
	}
	fhi, err := g(hi)
	if err != nil {
		return Result{}, err
	}
	if straddles(flo, fhi) || start <= lo || start >= hi {
		return s.solve(g, lo, flo, hi, fhi, target)
	}

	fs, err := g(start)
	if err != nil {
		return Result{}, err
	}
	if straddles(flo, fs) {
		return s.solve(g, lo, flo, start, fs, target)
	}
	return s.solve(g, start, fs, hi, fhi, target)
}

// SolveBracket refines an already evaluated bracket; FLow and FHigh are raw
// objective values, not deviations.
func (s Brent) SolveBracket(f Func, target float64, b Bracket) (Result, error) {
	return s.solve(shifted(f, target), b.XLow, b.FLow-target, b.XHigh, b.FHigh-target, target)
}

func shifted(f Func, target float64) Func {
	return func(x float64) (float64, error) {
		v, err := f(x)
		if err != nil {
			return 0, err
		}
		if math.IsNaN(v) {
			return 0, fmt.Errorf("solver: objective is NaN at %v", x)
		}
		return v - target, nil
	}
}

func straddles(fa, fb float64) bool {
	return fa == 0 || fb == 0 || (fa < 0) != (fb < 0)
}

func (s Brent) solve(g Func, a, fa, b, fb, target float64) (Result, error) {
	if !straddles(fa, fb) {
		return Result{}, fmt.Errorf("%w: f(%.6g)=%.6g, f(%.6g)=%.6g for target %.6g",
			ErrNoSignChange, a, fa+target, b, fb+target, target)
	}
	if fa == 0 {
		return Result{X: a, F: target}, nil
	}
	if fb == 0 {
		return Result{X: b, F: target}, nil
	}

	maxIter := s.MaxIterations
	if maxIter <= 0 {
		maxIter = DefaultMaxIterations
	}
	const eps = 2.220446049250313e-16

	c, fc := a, fa
	d := b - a
	e := d
	for iter := 1; iter <= maxIter; iter++ {
		if (fb > 0) == (fc > 0) {
			c, fc = a, fa
			d = b - a
			e = d
		}
		if math.Abs(fc) < math.Abs(fb) {
			a, b, c = b, c, b
			fa, fb, fc = fb, fc, fb
		}

		tol1 := 2*eps*math.Abs(b) + 0.5*s.ToleranceX
		xm := 0.5 * (c - b)
		if math.Abs(xm) <= tol1 || math.Abs(fb) <= s.ToleranceF {
			return Result{X: b, F: fb + target, Iterations: iter}, nil
		}

		if math.Abs(e) >= tol1 && math.Abs(fa) > math.Abs(fb) {
			var p, q float64
			ratio := fb / fa
			if a == c {
				p = 2 * xm * ratio
				q = 1 - ratio
			} else {
				q = fa / fc
				r := fb / fc
				p = ratio * (2*xm*q*(q-r) - (b-a)*(r-1))
				q = (q - 1) * (r - 1) * (ratio - 1)
			}
			if p > 0 {
				q = -q
			}
			p = math.Abs(p)
			if 2*p < math.Min(3*xm*q-math.Abs(tol1*q), math.Abs(e*q)) {
				e = d
				d = p / q
			} else {
				d = xm
				e = d
			}
		} else {
			d = xm
			e = d
		}

		a, fa = b, fb
		if math.Abs(d) > tol1 {
			b += d
		} else {
			b += math.Copysign(tol1, xm)
		}
		var err error
		if fb, err = g(b); err != nil {
			return Result{}, err
		}
	}
	return Result{X: b, F: fb + target, Iterations: maxIter},
		fmt.Errorf("%w: %d iterations, last x=%.6g", ErrMaxIterations, maxIter, b)
}
