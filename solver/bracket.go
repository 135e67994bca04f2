package solver

import (
	"fmt"
)

// Bracket is a pair of trial points with their objective values.
type Bracket struct {
	XLow, FLow   float64
	XHigh, FHigh float64
}

// Straddles reports whether the bracket's deviations from target have opposite signs.
func (b Bracket) Straddles(target float64) bool {
	return straddles(b.FLow-target, b.FHigh-target)
}

// Width is the distance between the trial points.
func (b Bracket) Width() float64 {
	return b.XHigh - b.XLow
}

// CoarseBracket evaluates f at intervals+1 equally spaced points on [lo, hi]
// and returns the first adjacent pair straddling target. An exact hit yields a
// degenerate bracket with XLow == XHigh.
func CoarseBracket(f Func, target, lo, hi float64, intervals int) (Bracket, error) {
	if intervals < 1 {
		intervals = 1
	}
	step := (hi - lo) / float64(intervals)
	x0 := lo
	f0, err := f(x0)
	if err != nil {
		return Bracket{}, err
	}
	if f0 == target {
		return Bracket{XLow: x0, FLow: f0, XHigh: x0, FHigh: f0}, nil
	}
	for i := 1; i <= intervals; i++ {
		x1 := lo + float64(i)*step
		if i == intervals {
			x1 = hi
		}
		f1, err := f(x1)
		if err != nil {
			return Bracket{}, err
		}
		b := Bracket{XLow: x0, FLow: f0, XHigh: x1, FHigh: f1}
		if b.Straddles(target) {
			if f1 == target {
				return Bracket{XLow: x1, FLow: f1, XHigh: x1, FHigh: f1}, nil
			}
			return b, nil
		}
		x0, f0 = x1, f1
	}
	return Bracket{}, fmt.Errorf("%w: target %.6g not reached on [%.6g, %.6g] with %d intervals",
		ErrNoSignChange, target, lo, hi, intervals)
}

// SolveCoarse brackets with CoarseBracket and refines with Brent.
func (s Brent) SolveCoarse(f Func, target, lo, hi float64, intervals int) (Result, error) {
	b, err := CoarseBracket(f, target, lo, hi, intervals)
	if err != nil {
		return Result{}, err
	}
	if b.Width() == 0 {
		return Result{X: b.XLow, F: b.FLow}, nil
	}
	return s.SolveBracket(f, target, b)
}
