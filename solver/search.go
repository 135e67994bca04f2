package solver

import (
	"fmt"
	"math"

	"github.com/meenmo/basecorr/config"
)

// FactorSearch inverts a (strike, correlation) table: it finds the factor x
// whose strike S(x) maps back through the table to x*x, so the returned
// correlation is consistent with the strike it produces.
type FactorSearch struct {
	Brent          Brent
	Floor          float64
	MaxCorrelation float64
	RetryStart     float64
	Strategy       config.BracketStrategy
}

// NewFactorSearch builds a search from a calibration config and resolved tolerances.
func NewFactorSearch(cfg config.Config, toleranceF, toleranceX float64) FactorSearch {
	return FactorSearch{
		Brent: Brent{
			ToleranceF:    toleranceF,
			ToleranceX:    toleranceX,
			MaxIterations: cfg.MaxIterations,
		},
		Floor:          cfg.FactorFloor,
		MaxCorrelation: cfg.MaxCorrelation,
		RetryStart:     cfg.RetryBracketStart,
		Strategy:       cfg.BracketStrategy,
	}
}

// Upper is the largest factor searched.
func (s FactorSearch) Upper() float64 {
	return math.Sqrt(math.Max(s.MaxCorrelation, s.Floor))
}

// Find returns the correlation x*x solving corrAt(strikeAt(x)) = x*x.
// strikes and correlations are the table knots, ordered by strike.
func (s FactorSearch) Find(strikeAt Func, corrAt Func, strikes, correlations []float64) (float64, error) {
	if len(strikes) != len(correlations) {
		return math.NaN(), fmt.Errorf("factor search: %d strikes vs %d correlations", len(strikes), len(correlations))
	}

	residual := func(x float64) (float64, error) {
		k, err := strikeAt(x)
		if err != nil {
			return 0, err
		}
		c, err := corrAt(k)
		if err != nil {
			return 0, err
		}
		return c - x*x, nil
	}

	lo, hi := s.Floor, s.Upper()
	if s.Strategy == config.BracketTable && len(strikes) > 1 &&
		IsMonotone(strikes) && IsMonotone(correlations) {
		x, exact, b, err := s.tableBracket(strikeAt, strikes, correlations)
		if err != nil {
			return math.NaN(), err
		}
		if exact {
			return x * x, nil
		}
		if b != nil {
			if b.Width() < s.Brent.ToleranceX {
				mid := 0.5 * (b.XLow + b.XHigh)
				r, err := residual(mid)
				if err != nil {
					return math.NaN(), err
				}
				if math.Abs(r) <= s.Brent.ToleranceF {
					return mid * mid, nil
				}
			} else if res, err := s.Brent.Solve(residual, 0, b.XLow, b.XHigh); err == nil {
				return res.X * res.X, nil
			}
			// Widen to the whole domain and retry once.
			res, err := s.Brent.SolveFrom(residual, 0, lo, hi, s.RetryStart)
			if err != nil {
				return math.NaN(), fmt.Errorf("factor search: %w", err)
			}
			return res.X * res.X, nil
		}
	}

	res, err := s.Brent.SolveFrom(residual, 0, lo, hi, s.RetryStart)
	if err != nil {
		return math.NaN(), fmt.Errorf("factor search: %w", err)
	}
	return res.X * res.X, nil
}

// tableBracket binary-searches the knots for a sign change of S(x_i) - K_i,
// where x_i is the factor of knot i. It returns an exact factor, a bracket, or
// neither when the table ends do not straddle.
func (s FactorSearch) tableBracket(strikeAt Func, strikes, correlations []float64) (float64, bool, *Bracket, error) {
	factorAt := func(i int) float64 {
		return math.Max(math.Sqrt(math.Max(correlations[i], 0)), s.Floor)
	}
	deviation := func(i int) (float64, error) {
		k, err := strikeAt(factorAt(i))
		if err != nil {
			return 0, err
		}
		return k - strikes[i], nil
	}
	hit := func(i int, dev float64) bool {
		return math.Abs(dev) <= s.Brent.ToleranceF*math.Max(1, math.Abs(strikes[i]))
	}

	lo, hi := 0, len(strikes)-1
	dlo, err := deviation(lo)
	if err != nil {
		return 0, false, nil, err
	}
	if hit(lo, dlo) {
		return factorAt(lo), true, nil, nil
	}
	dhi, err := deviation(hi)
	if err != nil {
		return 0, false, nil, err
	}
	if hit(hi, dhi) {
		return factorAt(hi), true, nil, nil
	}
	if (dlo < 0) == (dhi < 0) {
		return 0, false, nil, nil
	}

	for hi-lo > 1 {
		mid := (lo + hi) / 2
		dmid, err := deviation(mid)
		if err != nil {
			return 0, false, nil, err
		}
		if hit(mid, dmid) {
			return factorAt(mid), true, nil, nil
		}
		if (dmid < 0) == (dlo < 0) {
			lo, dlo = mid, dmid
		} else {
			hi = mid
		}
	}

	xl, xh := factorAt(lo), factorAt(hi)
	if xl > xh {
		xl, xh = xh, xl
	}
	return 0, false, &Bracket{XLow: xl, XHigh: xh}, nil
}

// IsMonotone reports whether successive differences are non-zero and share a sign.
func IsMonotone(xs []float64) bool {
	if len(xs) < 2 {
		return true
	}
	sign := 0
	for i := 1; i < len(xs); i++ {
		d := xs[i] - xs[i-1]
		if d == 0 || math.IsNaN(d) {
			return false
		}
		s := 1
		if d < 0 {
			s = -1
		}
		if sign == 0 {
			sign = s
		} else if s != sign {
			return false
		}
	}
	return true
}
