package basecorr

import (
	"fmt"
	"math"

	"github.com/meenmo/basecorr/basket"
	"github.com/meenmo/basecorr/cdo"
	"github.com/meenmo/basecorr/curve"
	"github.com/meenmo/basecorr/strike"
	"github.com/meenmo/basecorr/utils"
)

// sameCorrelation is the gap under which attachment and detachment
// correlations are averaged instead of solved.
const sameCorrelation = 1e-7

// TrancheCorrelation maps tr onto the smile as a single flat correlation.
// The attachment and detachment base correlations (shifted by bumpA and
// bumpD) are reconciled through the tranche value under the smile's
// calibration method: PV for ArbitrageFree, protection PV for
// ProtectionMatching.
func (s *Smile) TrancheCorrelation(tr cdo.Tranche, b basket.Basket, discount *curve.DiscountCurve, bumpA, bumpD, tolF, tolX float64) (float64, error) {
	corrA, corrD, err := s.levelCorrelations(tr, b, discount, tolF, tolX)
	if err != nil {
		return math.NaN(), err
	}
	return reconcile(s.opts, tr, b, discount, corrA+bumpA, corrD+bumpD, tolF, tolX)
}

func (s *Smile) levelCorrelations(tr cdo.Tranche, b basket.Basket, discount *curve.DiscountCurve, tolF, tolX float64) (float64, float64, error) {
	if tr.Detachment <= tr.Attachment {
		return 0, 0, fmt.Errorf("%w: tranche [%v, %v]", ErrInvalidInput, tr.Attachment, tr.Detachment)
	}
	corrD, err := s.correlationAt(tr.Detachment, tr, b, discount, tolF, tolX)
	if err != nil {
		return 0, 0, err
	}
	corrA := corrD
	if !tr.IsBase() {
		if corrA, err = s.correlationAt(tr.Attachment, tr, b, discount, tolF, tolX); err != nil {
			return 0, 0, err
		}
	}
	return corrA, corrD, nil
}

// reconcile returns the single correlation at which tr is worth what the
// base tranches [0, d] at corrD less [0, a] at corrA are worth.
func reconcile(opts Options, tr cdo.Tranche, b basket.Basket, discount *curve.DiscountCurve, corrA, corrD, tolF, tolX float64) (float64, error) {
	if math.Abs(corrA-corrD) < sameCorrelation {
		return 0.5 * (corrA + corrD), nil
	}
	if b == nil {
		return math.NaN(), fmt.Errorf("%w: basket required to solve a tranche correlation", ErrInvalidInput)
	}
	if discount == nil {
		return math.NaN(), strike.ErrMissingDiscountCurve
	}
	if tr.Effective.IsZero() {
		tr.Effective = b.AsOf()
	}
	if tr.Maturity.IsZero() {
		tr.Maturity = b.Maturity()
	}

	p, err := cdo.NewPricer(tr, b, discount)
	if err != nil {
		return math.NaN(), fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	value := (*cdo.Pricer).Pv
	if opts.Method == ProtectionMatching {
		value = (*cdo.Pricer).ProtectionPv
	}

	scale := 1 / b.TotalPrincipal()
	baseD, err := p.WithTranche(0, tr.Detachment)
	if err != nil {
		return math.NaN(), err
	}
	b.SetFactor(utils.FactorOf(corrD))
	target := value(baseD) * scale
	if !tr.IsBase() {
		baseA, err := p.WithTranche(0, tr.Attachment)
		if err != nil {
			return math.NaN(), err
		}
		b.SetFactor(utils.FactorOf(corrA))
		target -= value(baseA) * scale
	}

	cfg := opts.Config
	if tolF <= 0 {
		tolF = cfg.ToleranceF
	}
	if tolX <= 0 {
		tolX = cfg.ToleranceX
	}
	f, err := newFactorSolver(opts, b.TotalPrincipal(), tolF, tolX).solve(func(x float64) (float64, error) {
		b.SetFactor(x)
		return value(p) * scale, nil
	}, target)
	if err != nil {
		return math.NaN(), &CalibrationError{Index: -1, Err: err}
	}
	return f * f, nil
}
