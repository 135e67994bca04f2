package basecorr

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/meenmo/basecorr/basket"
	"github.com/meenmo/basecorr/cdo"
	"github.com/meenmo/basecorr/curve"
	"github.com/meenmo/basecorr/utils"
)

// Tenor is the tranche ladder quoted for one maturity.
type Tenor struct {
	Name    string
	Pricers []*cdo.Pricer
}

// Maturity is the maturity of the first tranche.
func (t Tenor) Maturity() time.Time {
	if len(t.Pricers) == 0 {
		return time.Time{}
	}
	return t.Pricers[0].Tranche().Maturity
}

// TermStructure is a set of smiles on strictly increasing maturities.
type TermStructure struct {
	asOf       time.Time
	dates      []time.Time
	names      []string
	smiles     []*Smile
	discipline Discipline
	timeInterp curve.Interpolation

	cal *Calibrator
}

// NewTermStructure assembles already built smiles. Names default to the
// maturity dates.
func NewTermStructure(asOf time.Time, dates []time.Time, names []string, smiles []*Smile, opts Options) (*TermStructure, error) {
	if len(dates) == 0 || len(dates) != len(smiles) {
		return nil, fmt.Errorf("%w: %d dates vs %d smiles", ErrInvalidInput, len(dates), len(smiles))
	}
	if names == nil {
		names = make([]string, len(dates))
		for i, d := range dates {
			names[i] = d.Format(utils.DateLayout)
		}
	}
	if len(names) != len(dates) {
		return nil, fmt.Errorf("%w: %d names vs %d dates", ErrInvalidInput, len(names), len(dates))
	}
	if !utils.StrictlyIncreasing(dates) {
		return nil, fmt.Errorf("%w: tenor dates must be strictly increasing", ErrInvalidInput)
	}
	for i, s := range smiles {
		if s == nil {
			return nil, fmt.Errorf("%w: nil smile for tenor %s", ErrInvalidInput, names[i])
		}
	}
	return &TermStructure{
		asOf:       asOf,
		dates:      append([]time.Time(nil), dates...),
		names:      append([]string(nil), names...),
		smiles:     append([]*Smile(nil), smiles...),
		discipline: opts.Discipline,
		timeInterp: opts.TimeInterp,
	}, nil
}

// CalibrateTermStructure calibrates every tenor under the configured
// discipline. Tenors are ordered by maturity first.
func (c *Calibrator) CalibrateTermStructure(ctx context.Context, tenors []Tenor) (*TermStructure, error) {
	sorted, err := sortTenors(tenors)
	if err != nil {
		return nil, err
	}
	smiles, err := c.calibrateTenors(ctx, sorted)
	if err != nil {
		return nil, err
	}

	dates := make([]time.Time, len(sorted))
	names := make([]string, len(sorted))
	for i, tn := range sorted {
		dates[i] = tn.Maturity()
		names[i] = tn.Name
		if names[i] == "" {
			names[i] = dates[i].Format(utils.DateLayout)
		}
	}
	ts, err := NewTermStructure(sorted[0].Pricers[0].Basket().AsOf(), dates, names, smiles, c.opts)
	if err != nil {
		return nil, err
	}
	ts.cal = c
	return ts, nil
}

// Refit recalibrates in place with the calibrator that built ts.
func (ts *TermStructure) Refit(ctx context.Context, tenors []Tenor) error {
	if ts.cal == nil {
		return fmt.Errorf("%w: term structure was not calibrated", ErrInvalidInput)
	}
	fresh, err := ts.cal.CalibrateTermStructure(ctx, tenors)
	if err != nil {
		return err
	}
	*ts = *fresh
	return nil
}

func sortTenors(tenors []Tenor) ([]Tenor, error) {
	if len(tenors) == 0 {
		return nil, fmt.Errorf("%w: no tenors", ErrInvalidInput)
	}
	for _, tn := range tenors {
		if len(tn.Pricers) == 0 {
			return nil, fmt.Errorf("%w: tenor %q has no tranches", ErrInvalidInput, tn.Name)
		}
	}
	sorted := append([]Tenor(nil), tenors...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Maturity().Before(sorted[j].Maturity())
	})
	for i := 1; i < len(sorted); i++ {
		if !sorted[i].Maturity().After(sorted[i-1].Maturity()) {
			return nil, fmt.Errorf("%w: duplicate tenor maturity %s", ErrInvalidInput,
				sorted[i].Maturity().Format(utils.DateLayout))
		}
	}
	return sorted, nil
}

func (c *Calibrator) calibrateTenors(ctx context.Context, tenors []Tenor) ([]*Smile, error) {
	smiles := make([]*Smile, len(tenors))

	if c.opts.Discipline == TermBootstrap {
		var histories []factorHistory
		for k, tn := range tenors {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			pricers, err := withHistories(tn.Pricers, histories)
			if err != nil {
				return nil, fmt.Errorf("tenor %s: %w", tn.Name, err)
			}
			s, err := c.CalibrateSmile(pricers)
			if err != nil {
				return nil, fmt.Errorf("tenor %s: %w", tn.Name, err)
			}
			smiles[k] = s
			histories = extendHistories(histories, tn.Maturity(), s.table.Correlations)
			c.logTenor(tn, s)
		}
		return smiles, nil
	}

	if !c.opts.Config.Parallel {
		for k, tn := range tenors {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			s, err := c.CalibrateSmile(tn.Pricers)
			if err != nil {
				return nil, fmt.Errorf("tenor %s: %w", tn.Name, err)
			}
			smiles[k] = s
			c.logTenor(tn, s)
		}
		return smiles, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for k, tn := range tenors {
		k, tn := k, tn
		pricers := snapshot(tn.Pricers)
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			s, err := c.CalibrateSmile(pricers)
			if err != nil {
				return fmt.Errorf("tenor %s: %w", tn.Name, err)
			}
			smiles[k] = s
			c.logTenor(tn, s)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return smiles, nil
}

func (c *Calibrator) logTenor(tn Tenor, s *Smile) {
	var ev *zerolog.Event
	if s.CalibrationFailed() {
		ev = c.log.Warn().Str("error", s.ErrorMessage())
	} else {
		ev = c.log.Info()
	}
	ev.Str("tenor", tn.Name).
		Str("maturity", tn.Maturity().Format(utils.DateLayout)).
		Floats64("correlations", s.table.Correlations).
		Msg("Calibrated tenor")
}

// snapshot rebinds pricers to private basket copies, keeping pricers that
// shared a basket on a shared copy.
func snapshot(pricers []*cdo.Pricer) []*cdo.Pricer {
	copies := make(map[basket.Basket]basket.Basket)
	out := make([]*cdo.Pricer, len(pricers))
	for i, p := range pricers {
		b := p.Basket()
		c, ok := copies[b]
		if !ok {
			c = b.WithMaturity(b.Maturity())
			copies[b] = c
		}
		out[i] = p.WithBasket(c)
	}
	return out
}

// factorHistory is the solved factor of one detachment index per earlier tenor.
type factorHistory struct {
	dates   []time.Time
	factors []float64
}

// withHistories gives pricer i its own basket copy carrying history i.
func withHistories(pricers []*cdo.Pricer, histories []factorHistory) ([]*cdo.Pricer, error) {
	out := make([]*cdo.Pricer, len(pricers))
	for i, p := range pricers {
		b := p.Basket()
		c := b.WithMaturity(b.Maturity())
		if i < len(histories) && len(histories[i].dates) > 0 {
			if err := c.SetFactorCurve(histories[i].dates, histories[i].factors); err != nil {
				return nil, err
			}
		}
		out[i] = p.WithBasket(c)
	}
	return out, nil
}

func extendHistories(histories []factorHistory, maturity time.Time, correlations []float64) []factorHistory {
	for len(histories) < len(correlations) {
		histories = append(histories, factorHistory{})
	}
	for i, c := range correlations {
		if math.IsNaN(c) {
			continue
		}
		histories[i].dates = append(histories[i].dates, maturity)
		histories[i].factors = append(histories[i].factors, utils.FactorOf(c))
	}
	return histories
}

// AsOf is the valuation date of the calibration.
func (ts *TermStructure) AsOf() time.Time { return ts.asOf }

// Len is the number of tenors.
func (ts *TermStructure) Len() int { return len(ts.dates) }

// Dates returns a copy of the tenor maturities.
func (ts *TermStructure) Dates() []time.Time { return append([]time.Time(nil), ts.dates...) }

// Names returns a copy of the tenor names.
func (ts *TermStructure) Names() []string { return append([]string(nil), ts.names...) }

// Smile returns the smile of tenor i.
func (ts *TermStructure) Smile(i int) *Smile { return ts.smiles[i] }

// Smiles returns the tenor smiles in maturity order.
func (ts *TermStructure) Smiles() []*Smile { return append([]*Smile(nil), ts.smiles...) }

// Discipline is the calibration discipline.
func (ts *TermStructure) Discipline() Discipline { return ts.discipline }

// Clone returns an independent copy sharing only the calibrator.
func (ts *TermStructure) Clone() *TermStructure {
	out := *ts
	out.dates = ts.Dates()
	out.names = ts.Names()
	out.smiles = make([]*Smile, len(ts.smiles))
	for i, s := range ts.smiles {
		out.smiles[i] = s.Clone()
	}
	return &out
}

// GetCorrelation returns the base correlation of tr. On a tenor maturity the
// tenor smile answers directly on a basket rolled to that maturity; otherwise every tenor after the valuation
// date is evaluated on a basket rolled to that tenor and the results are
// interpolated in time.
func (ts *TermStructure) GetCorrelation(tr cdo.Tranche, b basket.Basket, discount *curve.DiscountCurve, tolF, tolX float64) (float64, error) {
	return ts.acrossTenors(tr, b, func(s *Smile, tk cdo.Tranche, bk basket.Basket) (float64, error) {
		return s.GetCorrelation(tk, bk, discount, tolF, tolX)
	})
}

// TrancheCorrelation is GetCorrelation for the flat tranche correlation.
func (ts *TermStructure) TrancheCorrelation(tr cdo.Tranche, b basket.Basket, discount *curve.DiscountCurve, bumpA, bumpD, tolF, tolX float64) (float64, error) {
	return ts.acrossTenors(tr, b, func(s *Smile, tk cdo.Tranche, bk basket.Basket) (float64, error) {
		return s.TrancheCorrelation(tk, bk, discount, bumpA, bumpD, tolF, tolX)
	})
}

func (ts *TermStructure) acrossTenors(tr cdo.Tranche, b basket.Basket, eval func(*Smile, cdo.Tranche, basket.Basket) (float64, error)) (float64, error) {
	if b == nil {
		return math.NaN(), fmt.Errorf("%w: basket required", ErrInvalidInput)
	}
	target := tr.Maturity
	if target.IsZero() {
		target = b.Maturity()
		tr.Maturity = target
	}
	if i := utils.IndexOfDate(ts.dates, target); i >= 0 {
		if !utils.SameDay(b.Maturity(), target) {
			b = b.WithMaturity(target)
		}
		return eval(ts.smiles[i], tr, b)
	}

	asOf := b.AsOf()
	dc := curve.NewDatedCurve(asOf, ts.timeInterp)
	for k, t := range ts.dates {
		if !t.After(asOf) {
			continue
		}
		tk := tr
		tk.Maturity = t
		c, err := eval(ts.smiles[k], tk, b.WithMaturity(t))
		if err != nil {
			return math.NaN(), fmt.Errorf("tenor %s: %w", ts.names[k], err)
		}
		dc.Add(t, c)
	}
	if dc.Len() == 0 {
		return eval(ts.smiles[len(ts.smiles)-1], tr, b)
	}
	return dc.Interpolate(target), nil
}

// GetBaseCorrelation returns the smile at date. Between tenors, every smile
// is read at the union of all tenor strikes and interpolated in time.
func (ts *TermStructure) GetBaseCorrelation(date time.Time) (*Smile, error) {
	if i := utils.IndexOfDate(ts.dates, date); i >= 0 {
		return ts.smiles[i].Clone(), nil
	}
	first := ts.smiles[0].opts
	for i, s := range ts.smiles {
		if s.opts.Method != first.Method || s.opts.StrikeMethod != first.StrikeMethod {
			return nil, fmt.Errorf("%w: tenor %s uses %s/%s, expected %s/%s", ErrInvalidInput, ts.names[i],
				s.opts.Method, s.opts.StrikeMethod, first.Method, first.StrikeMethod)
		}
	}

	strikes := unionStrikes(ts.smiles)
	correlations := make([]float64, len(strikes))
	for j, k := range strikes {
		dc := curve.NewDatedCurve(ts.asOf, ts.timeInterp)
		for i, t := range ts.dates {
			if !t.After(ts.asOf) {
				continue
			}
			c, err := ts.smiles[i].CorrelationAt(k)
			if err != nil {
				return nil, fmt.Errorf("tenor %s: %w", ts.names[i], err)
			}
			dc.Add(t, c)
		}
		if dc.Len() == 0 {
			c, err := ts.smiles[len(ts.smiles)-1].CorrelationAt(k)
			if err != nil {
				return nil, err
			}
			correlations[j] = c
			continue
		}
		correlations[j] = dc.Interpolate(date)
	}

	s, err := NewSmile(strikes, correlations, first)
	if err != nil {
		return nil, err
	}
	s.maturity = date
	return s, nil
}

// FactorCurve returns the factor history of detachment index across tenors
// after the valuation date, in the form basket.SetFactorCurve accepts.
func (ts *TermStructure) FactorCurve(index int) ([]time.Time, []float64, error) {
	if index < 0 {
		return nil, nil, fmt.Errorf("%w: index %d", ErrInvalidInput, index)
	}
	var dates []time.Time
	var factors []float64
	for i, t := range ts.dates {
		s := ts.smiles[i]
		if !t.After(ts.asOf) || index >= s.Len() {
			continue
		}
		c := s.table.Correlations[index]
		if math.IsNaN(c) {
			continue
		}
		dates = append(dates, t)
		factors = append(factors, utils.FactorOf(c))
	}
	return dates, factors, nil
}

// BumpTenor bumps every correlation of tenor i.
func (ts *TermStructure) BumpTenor(i int, bump float64, relative bool) (float64, error) {
	if i < 0 || i >= len(ts.smiles) {
		return 0, fmt.Errorf("%w: tenor index %d of %d", ErrInvalidInput, i, len(ts.smiles))
	}
	return ts.smiles[i].BumpCorrelations(bump, relative), nil
}

// BumpTenorByName bumps every correlation of the named tenor.
func (ts *TermStructure) BumpTenorByName(name string, bump float64, relative bool) (float64, error) {
	for i, n := range ts.names {
		if n == name {
			return ts.BumpTenor(i, bump, relative)
		}
	}
	return 0, fmt.Errorf("%w: no tenor %q", ErrInvalidInput, name)
}

// BumpAll bumps every tenor and returns the average realized change over
// all bumped correlations.
func (ts *TermStructure) BumpAll(bump float64, relative bool) float64 {
	total, n := 0.0, 0
	for _, s := range ts.smiles {
		live := s.Len() - utils.CountNaN(s.table.Correlations)
		total += s.BumpCorrelations(bump, relative) * float64(live)
		n += live
	}
	if n == 0 {
		return 0
	}
	return total / float64(n)
}
