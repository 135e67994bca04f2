package basecorr

import (
	"fmt"
	"math"
	"time"

	"github.com/meenmo/basecorr/basket"
	"github.com/meenmo/basecorr/cdo"
	"github.com/meenmo/basecorr/curve"
	"github.com/meenmo/basecorr/solver"
	"github.com/meenmo/basecorr/strike"
	"github.com/meenmo/basecorr/utils"
)

// unitLevel is the distance from 1 under which a detachment is the whole portfolio.
const unitLevel = 1e-12

// Smile is a single-maturity base correlation curve. Detachments, strikes,
// correlations and tranche correlations are parallel. A smile changes only
// through its bump methods.
type Smile struct {
	opts     Options
	maturity time.Time
	table    Table

	failed  bool
	message string

	ip    *Interpolator
	ipErr error
}

// NewSmile builds a smile from explicit knots. With the Unscaled strike
// method the strikes double as detachments; otherwise detachments are NaN.
func NewSmile(strikes, correlations []float64, opts Options) (*Smile, error) {
	if len(strikes) != len(correlations) {
		return nil, fmt.Errorf("%w: %d strikes vs %d correlations", ErrInvalidInput, len(strikes), len(correlations))
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	detachments := utils.NaNs(len(strikes))
	if opts.StrikeMethod == strike.Unscaled {
		copy(detachments, strikes)
	}
	t := newTable(detachments)
	copy(t.Strikes, strikes)
	copy(t.Correlations, correlations)
	return newSmile(t, time.Time{}, opts)
}

func newSmile(t Table, maturity time.Time, opts Options) (*Smile, error) {
	s := &Smile{opts: opts, maturity: maturity, table: t}
	if err := s.refit(); err != nil {
		if !IsCalibrationError(err) {
			return nil, err
		}
		s.markFailed(err)
	}
	return s, nil
}

// refit rebuilds the interpolator. A calibration error is kept and
// reported by queries so that failed smiles remain inspectable.
func (s *Smile) refit() error {
	s.ip, s.ipErr = NewInterpolator(s.table.Strikes, s.table.Correlations, s.opts)
	return s.ipErr
}

func (s *Smile) interpolator() (*Interpolator, error) {
	if s.ipErr != nil {
		return nil, s.ipErr
	}
	return s.ip, nil
}

// Options returns the smile configuration.
func (s *Smile) Options() Options { return s.opts }

// Maturity is the calibration maturity; zero for explicit smiles.
func (s *Smile) Maturity() time.Time { return s.maturity }

// Len is the number of detachment points.
func (s *Smile) Len() int { return s.table.Len() }

// Detachments returns a copy of the detachment points.
func (s *Smile) Detachments() []float64 { return append([]float64(nil), s.table.Detachments...) }

// Strikes returns a copy of the stored strikes.
func (s *Smile) Strikes() []float64 { return append([]float64(nil), s.table.Strikes...) }

// Correlations returns a copy of the base correlations.
func (s *Smile) Correlations() []float64 { return append([]float64(nil), s.table.Correlations...) }

// TrancheCorrelations returns a copy of the per-tranche implied correlations.
func (s *Smile) TrancheCorrelations() []float64 {
	return append([]float64(nil), s.table.TrancheCorrelations...)
}

// Table returns a copy of all four sequences.
func (s *Smile) Table() Table { return s.table.clone() }

// CalibrationFailed reports whether the bootstrap stopped early.
func (s *Smile) CalibrationFailed() bool { return s.failed }

// ErrorMessage describes the calibration failure, if any.
func (s *Smile) ErrorMessage() string { return s.message }

// Factor is the signed square root of the correlation at index.
func (s *Smile) Factor(index int) (float64, error) {
	if index < 0 || index >= s.Len() {
		return math.NaN(), fmt.Errorf("%w: index %d of %d", ErrInvalidInput, index, s.Len())
	}
	return utils.FactorOf(s.table.Correlations[index]), nil
}

// Clone returns an independent copy.
func (s *Smile) Clone() *Smile {
	out := *s
	out.table = s.table.clone()
	out.refit()
	return &out
}

// CorrelationAt interpolates the smile at strike without touching any basket.
func (s *Smile) CorrelationAt(k float64) (float64, error) {
	ip, err := s.interpolator()
	if err != nil {
		return math.NaN(), err
	}
	return ip.At(k)
}

// GetCorrelation returns the base correlation for the detachment of tr on
// basket b: the correlation whose implied strike maps back to itself through
// the smile. tolF and tolX fall back to the configured tolerances and then to
// the principal-based defaults. The basket is left at the solved factor.
func (s *Smile) GetCorrelation(tr cdo.Tranche, b basket.Basket, discount *curve.DiscountCurve, tolF, tolX float64) (float64, error) {
	return s.correlationAt(tr.Detachment, tr, b, discount, tolF, tolX)
}

func (s *Smile) correlationAt(level float64, tr cdo.Tranche, b basket.Basket, discount *curve.DiscountCurve, tolF, tolX float64) (float64, error) {
	ip, err := s.interpolator()
	if err != nil {
		return math.NaN(), err
	}
	if ip.Len() == 1 {
		return ip.At(0)
	}

	ctx, err := s.context(level, tr, b, discount)
	if err != nil {
		return math.NaN(), err
	}
	ev, err := strike.New(s.opts.StrikeMethod, ctx)
	if err != nil {
		return math.NaN(), err
	}

	if level >= 1-unitLevel || !s.opts.StrikeMethod.DependsOnCorrelation() {
		k, err := ev.Strike(0)
		if err != nil {
			return math.NaN(), err
		}
		return ip.At(k)
	}

	cfg := s.opts.Config
	if tolF <= 0 {
		tolF = cfg.ToleranceF
	}
	if tolX <= 0 {
		tolX = cfg.ToleranceX
	}
	var principal float64
	if b != nil {
		principal = b.TotalPrincipal()
	}
	tolF, tolX = solver.Tolerances(principal, tolF, tolX)

	ks, cs := ip.Knots()
	corr, err := solver.NewFactorSearch(cfg, tolF, tolX).Find(ev.Strike, ip.At, ks, cs)
	if err != nil {
		return math.NaN(), &CalibrationError{Index: -1, Err: err}
	}
	if b != nil {
		b.SetFactor(utils.FactorOf(corr))
	}
	return corr, nil
}

// context describes level on b. The tranche supplies coupon conventions when
// a discount curve is available.
func (s *Smile) context(level float64, tr cdo.Tranche, b basket.Basket, discount *curve.DiscountCurve) (strike.Context, error) {
	ctx := strike.Context{Basket: b, Discount: discount, Detachment: level, User: s.opts.User}
	if b != nil && discount != nil && level > 0 {
		tr.Maturity = b.Maturity()
		if tr.Effective.IsZero() {
			tr.Effective = b.AsOf()
		}
		p, err := cdo.NewPricer(tr.WithLevels(0, level), b, discount)
		if err != nil {
			return ctx, err
		}
		ctx.Pricer = p
	}
	return ctx, nil
}

// Strike evaluates the strike of the pricer's detachment at factor.
func (s *Smile) Strike(p *cdo.Pricer, factor float64) (float64, error) {
	ev, err := strike.New(s.opts.StrikeMethod, strike.Context{
		Pricer:     p,
		Detachment: p.Tranche().Detachment,
		User:       s.opts.User,
	})
	if err != nil {
		return math.NaN(), err
	}
	return ev.Strike(factor)
}

// StrikesOf evaluates the strike of each pricer's detachment at the factor
// already loaded in its basket.
func (s *Smile) StrikesOf(pricers []*cdo.Pricer) ([]float64, error) {
	out := make([]float64, len(pricers))
	for i, p := range pricers {
		ev, err := strike.New(s.opts.StrikeMethod, strike.Context{
			Pricer:     p,
			Detachment: p.Tranche().Detachment,
			User:       s.opts.User,
		})
		if err != nil {
			return nil, err
		}
		if out[i], err = ev.Current(); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// markFailed records a calibration failure and keeps the partial table.
func (s *Smile) markFailed(err error) {
	s.failed = true
	s.message = err.Error()
}
