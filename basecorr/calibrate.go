package basecorr

import (
	"errors"
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"github.com/meenmo/basecorr/cdo"
	"github.com/meenmo/basecorr/solver"
	"github.com/meenmo/basecorr/strike"
)

var errPinned = errors.New("correlation pinned at the domain boundary")

// Calibrator bootstraps base correlations from tranche ladders. It holds no
// market state; every call works on the baskets of the pricers it is given
// and leaves them at the last solved factor.
type Calibrator struct {
	opts Options
	log  zerolog.Logger
}

// NewCalibrator validates opts.
func NewCalibrator(opts Options, log zerolog.Logger) (*Calibrator, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Calibrator{
		opts: opts,
		log:  log.With().Str("component", "calibrator").Logger(),
	}, nil
}

// Options returns the calibrator configuration.
func (c *Calibrator) Options() Options { return c.opts }

// CalibrateSmile bootstraps one ladder with the configured method. A solver
// failure does not fail construction: the smile keeps the partial table and
// reports CalibrationFailed.
func (c *Calibrator) CalibrateSmile(pricers []*cdo.Pricer) (*Smile, error) {
	var (
		t   Table
		err error
	)
	switch c.opts.Method {
	case ArbitrageFree:
		t, err = c.ArbitrageFree(pricers)
	case ProtectionMatching:
		t, err = c.ProtectionMatching(pricers)
	default:
		return nil, fmt.Errorf("%w: calibration method %s", ErrInvalidInput, c.opts.Method)
	}

	var ce *CalibrationError
	if err != nil {
		if !errors.As(err, &ce) {
			return nil, err
		}
		t = ce.Table
	}

	s := &Smile{opts: c.opts, maturity: pricers[0].Tranche().Maturity, table: t}
	if err := s.refit(); err != nil && !IsCalibrationError(err) {
		return nil, err
	}
	if ce != nil {
		s.markFailed(ce)
	}
	return s, nil
}

// ArbitrageFree solves tranche 0 at zero PV, then for each later tranche i
// prices base tranche i-1 at its solved correlation with the coupon terms
// of tranche i, and solves base tranche i to that PV. Only tranche 0 has a
// tranche correlation.
func (c *Calibrator) ArbitrageFree(pricers []*cdo.Pricer) (Table, error) {
	if err := cdo.ValidateLadder(pricers); err != nil {
		return Table{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	t := newTable(cdo.Detachments(pricers))

	prevFactor := math.NaN()
	for i, p := range pricers {
		tr := p.Tranche()
		b := p.Basket()
		scale := 1 / b.TotalPrincipal()

		base, err := p.WithTranche(0, tr.Detachment)
		if err != nil {
			return t, err
		}

		target := 0.0
		if i > 0 {
			prev, err := pricers[i-1].WithTranche(0, t.Detachments[i-1])
			if err != nil {
				return t, err
			}
			prev = prev.WithPremium(tr.Premium, tr.Fee)
			prev.Basket().SetFactor(prevFactor)
			target = prev.Pv() * scale
		}

		f, err := c.solver(b.TotalPrincipal()).solve(func(x float64) (float64, error) {
			b.SetFactor(x)
			return base.Pv() * scale, nil
		}, target)
		if err != nil {
			return t, c.fail(i, tr, err, t)
		}

		t.Correlations[i] = f * f
		if i == 0 {
			t.TrancheCorrelations[0] = f * f
		}
		if t.Strikes[i], err = c.strikeAt(base, f); err != nil {
			return t, err
		}
		prevFactor = f

		c.log.Debug().
			Int("index", i).
			Str("tranche", tr.Name).
			Float64("detachment", tr.Detachment).
			Float64("correlation", t.Correlations[i]).
			Float64("strike", t.Strikes[i]).
			Msg("Solved base correlation")
	}
	return t, nil
}

// ProtectionMatching first implies every tranche's own break-even
// correlation and records its protection PV. It then solves each base
// tranche for the correlation reproducing the cumulative protection PV of
// the tranches beneath its detachment.
func (c *Calibrator) ProtectionMatching(pricers []*cdo.Pricer) (Table, error) {
	if err := cdo.ValidateLadder(pricers); err != nil {
		return Table{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	t := newTable(cdo.Detachments(pricers))

	protection := make([]float64, len(pricers))
	for i, p := range pricers {
		b := p.Basket()
		scale := 1 / b.TotalPrincipal()
		f, err := c.solver(b.TotalPrincipal()).solve(func(x float64) (float64, error) {
			b.SetFactor(x)
			return p.Pv() * scale, nil
		}, 0)
		if err != nil {
			return t, c.fail(i, p.Tranche(), err, t)
		}
		b.SetFactor(f)
		t.TrancheCorrelations[i] = f * f
		protection[i] = p.ProtectionPv()

		c.log.Debug().
			Int("index", i).
			Str("tranche", p.Tranche().Name).
			Float64("tranche_correlation", t.TrancheCorrelations[i]).
			Float64("protection_pv", protection[i]).
			Msg("Solved tranche correlation")
	}

	cumulative := 0.0
	for i, p := range pricers {
		cumulative += protection[i]
		b := p.Basket()
		scale := 1 / b.TotalPrincipal()

		base, err := p.WithTranche(0, t.Detachments[i])
		if err != nil {
			return t, err
		}
		f, err := c.solver(b.TotalPrincipal()).solve(func(x float64) (float64, error) {
			b.SetFactor(x)
			return base.ProtectionPv() * scale, nil
		}, cumulative*scale)
		if err != nil {
			return t, c.fail(i, p.Tranche(), err, t)
		}

		t.Correlations[i] = f * f
		if t.Strikes[i], err = c.strikeAt(base, f); err != nil {
			return t, err
		}

		c.log.Debug().
			Int("index", i).
			Float64("detachment", t.Detachments[i]).
			Float64("correlation", t.Correlations[i]).
			Float64("strike", t.Strikes[i]).
			Msg("Solved base correlation")
	}
	return t, nil
}

func (c *Calibrator) fail(i int, tr cdo.Tranche, err error, t Table) error {
	c.log.Warn().
		Err(err).
		Int("index", i).
		Str("tranche", tr.Name).
		Msg("Calibration failed")
	return &CalibrationError{Index: i, Err: err, Table: t.clone()}
}

func (c *Calibrator) strikeAt(base *cdo.Pricer, factor float64) (float64, error) {
	ev, err := strike.New(c.opts.StrikeMethod, strike.Context{
		Pricer:     base,
		Detachment: base.Tranche().Detachment,
		User:       c.opts.User,
	})
	if err != nil {
		return math.NaN(), err
	}
	return ev.Strike(factor)
}

func (c *Calibrator) solver(principal float64) factorSolver {
	cfg := c.opts.Config
	return newFactorSolver(c.opts, principal, cfg.ToleranceF, cfg.ToleranceX)
}

// factorSolver solves PV equations for a factor on [floor, sqrt(max)]
// by coarse tabulation followed by Brent.
type factorSolver struct {
	brent     solver.Brent
	lo, hi    float64
	intervals int
}

func newFactorSolver(opts Options, principal, tolF, tolX float64) factorSolver {
	cfg := opts.Config
	tolF, tolX = solver.Tolerances(principal, tolF, tolX)
	return factorSolver{
		brent: solver.Brent{
			ToleranceF:    tolF,
			ToleranceX:    tolX,
			MaxIterations: cfg.MaxIterations,
		},
		lo:        cfg.FactorFloor,
		hi:        math.Sqrt(cfg.MaxCorrelation),
		intervals: cfg.InitialSearchPoints,
	}
}

func (fs factorSolver) solve(f solver.Func, target float64) (float64, error) {
	res, err := fs.brent.SolveCoarse(f, target, fs.lo, fs.hi, fs.intervals)
	if err != nil {
		return math.NaN(), err
	}
	atEdge := res.X-fs.lo <= fs.brent.ToleranceX || fs.hi-res.X <= fs.brent.ToleranceX
	if atEdge && math.Abs(res.F-target) > fs.brent.ToleranceF {
		return math.NaN(), fmt.Errorf("%w: factor %.6g", errPinned, res.X)
	}
	return res.X, nil
}
