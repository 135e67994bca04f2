package basecorr

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/interp"

	"github.com/meenmo/basecorr/utils"
)

// Interp is the interpolation rule in strike.
type Interp int

const (
	Linear Interp = iota
	Flat
	Akima
	// Monotone is the Fritsch-Butland monotone cubic.
	Monotone
	// Cubic is the natural cubic spline.
	Cubic
)

var interpNames = map[Interp]string{
	Linear:   "Linear",
	Flat:     "Flat",
	Akima:    "Akima",
	Monotone: "Monotone",
	Cubic:    "Cubic",
}

func (i Interp) String() string {
	if s, ok := interpNames[i]; ok {
		return s
	}
	return fmt.Sprintf("Interp(%d)", int(i))
}

// ParseInterp is case-insensitive.
func ParseInterp(s string) (Interp, error) {
	if s == "" {
		return Linear, nil
	}
	for i, name := range interpNames {
		if strings.EqualFold(name, s) {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%w: interpolation %q", ErrInvalidInput, s)
}

// Extrap is the rule outside the strike range.
type Extrap int

const (
	// Const holds the end correlation.
	Const Extrap = iota
	// Smooth continues the slope of the end segment.
	Smooth
)

func (e Extrap) String() string {
	switch e {
	case Const:
		return "Const"
	case Smooth:
		return "Smooth"
	}
	return fmt.Sprintf("Extrap(%d)", int(e))
}

// ParseExtrap is case-insensitive.
func ParseExtrap(s string) (Extrap, error) {
	switch strings.ToLower(s) {
	case "const", "":
		return Const, nil
	case "smooth":
		return Smooth, nil
	}
	return 0, fmt.Errorf("%w: extrapolation %q", ErrInvalidInput, s)
}

// exactMatch is the distance under which a strike hits a knot.
const exactMatch = 1e-15

// Interpolator maps strikes to correlations over a fixed set of knots.
type Interpolator struct {
	xs, ys []float64
	// strikes and correlations are the knots in the caller's coordinates,
	// ordered as xs.
	strikes      []float64
	correlations []float64

	extrap     Extrap
	complement bool
	onFactor   bool
	exact      bool
	lo, hi     float64

	pred interp.Predictor
}

// NewInterpolator filters NaN pairs, orders the knots by strike and fits the
// configured rule. An empty knot set after filtering is a calibration failure.
func NewInterpolator(strikes, correlations []float64, o Options) (*Interpolator, error) {
	if len(strikes) != len(correlations) {
		return nil, fmt.Errorf("%w: %d strikes vs %d correlations", ErrInvalidInput, len(strikes), len(correlations))
	}

	type knot struct{ x, k, c float64 }
	knots := make([]knot, 0, len(strikes))
	for i, c := range correlations {
		k := strikes[i]
		if math.IsNaN(c) || math.IsNaN(k) {
			continue
		}
		if math.Abs(c) > 2 {
			return nil, fmt.Errorf("%w: %v at strike %v", ErrInvalidCorrelation, c, k)
		}
		x := k
		if o.Complement {
			x = 1 - k
		}
		knots = append(knots, knot{x: x, k: k, c: c})
	}
	if len(knots) == 0 {
		return nil, &CalibrationError{Index: -1, Err: errors.New("no finite correlations to interpolate")}
	}
	sort.SliceStable(knots, func(i, j int) bool { return knots[i].x < knots[j].x })

	ip := &Interpolator{
		extrap:     o.Extrap,
		complement: o.Complement,
		onFactor:   o.OnFactor,
		exact:      o.Config.ExactStrikeMatch,
		lo:         o.Config.MinCorrelation,
		hi:         o.Config.MaxCorrelation,
	}
	for i, kn := range knots {
		if i > 0 && kn.x == knots[i-1].x {
			continue
		}
		y := kn.c
		if o.OnFactor {
			y = utils.FactorOf(kn.c)
		}
		ip.xs = append(ip.xs, kn.x)
		ip.ys = append(ip.ys, y)
		ip.strikes = append(ip.strikes, kn.k)
		ip.correlations = append(ip.correlations, kn.c)
	}
	if len(ip.xs) < 2 {
		return ip, nil
	}

	var fp interp.FittablePredictor
	switch {
	case o.Interp == Flat:
		fp = &interp.PiecewiseConstant{}
	case len(ip.xs) < 3 || o.Interp == Linear:
		fp = &interp.PiecewiseLinear{}
	case o.Interp == Akima:
		fp = &interp.AkimaSpline{}
	case o.Interp == Monotone:
		fp = &interp.FritschButland{}
	case o.Interp == Cubic:
		fp = &interp.NaturalCubic{}
	default:
		return nil, fmt.Errorf("%w: interpolation %s", ErrInvalidInput, o.Interp)
	}
	if err := fp.Fit(ip.xs, ip.ys); err != nil {
		return nil, fmt.Errorf("basecorr: fit %s: %w", o.Interp, err)
	}
	ip.pred = fp
	return ip, nil
}

// Len is the number of distinct knots.
func (ip *Interpolator) Len() int { return len(ip.xs) }

// Knots returns the knot strikes and correlations in interpolation order.
func (ip *Interpolator) Knots() ([]float64, []float64) {
	return append([]float64(nil), ip.strikes...), append([]float64(nil), ip.correlations...)
}

// At interpolates the correlation at strike, clamped to the configured bounds.
func (ip *Interpolator) At(strike float64) (float64, error) {
	if math.IsNaN(strike) {
		return math.NaN(), fmt.Errorf("%w: NaN strike", ErrInvalidInput)
	}
	x := strike
	if ip.complement {
		x = 1 - strike
	}

	n := len(ip.xs)
	var y float64
	switch {
	case n == 1:
		y = ip.ys[0]
	case x < ip.xs[0]:
		y = ip.extrapolate(x, 0, 1)
	case x > ip.xs[n-1]:
		y = ip.extrapolate(x, n-1, n-2)
	default:
		y = math.NaN()
		if ip.exact {
			if i := sort.SearchFloat64s(ip.xs, x); i < n && math.Abs(ip.xs[i]-x) < exactMatch {
				y = ip.ys[i]
			} else if i > 0 && math.Abs(ip.xs[i-1]-x) < exactMatch {
				y = ip.ys[i-1]
			}
		}
		if math.IsNaN(y) {
			y = ip.pred.Predict(x)
		}
	}

	c := y
	if ip.onFactor {
		c = utils.CorrelationOf(y)
	}
	return utils.Clamp(c, ip.lo, ip.hi), nil
}

func (ip *Interpolator) extrapolate(x float64, end, inner int) float64 {
	if ip.extrap != Smooth {
		return ip.ys[end]
	}
	slope := (ip.ys[end] - ip.ys[inner]) / (ip.xs[end] - ip.xs[inner])
	return ip.ys[end] + slope*(x-ip.xs[end])
}
