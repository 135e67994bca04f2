package basket

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/integrate/quad"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/meenmo/basecorr/curve"
	"github.com/meenmo/basecorr/utils"
)

const (
	// factorBound keeps sqrt(1 - factor^2) away from zero.
	factorBound = 1 - 1e-9
	// quadratureRange truncates the common factor to [-7, 7].
	quadratureRange = 7.0
	levelEpsilon    = 1e-12
)

// Gaussian is a one-factor Gaussian copula basket. Conditional on the common
// factor Z, name i defaults by t with probability
//
//	Phi((Phi^-1(PD_i(t)) - b*Z) / sqrt(1 - b^2))
//
// where b is the factor (square root of correlation). Names default
// independently given Z; the unconditional loss distribution integrates the
// conditional one over Z.
type Gaussian struct {
	spec  Spec
	total float64
	lgd   []float64
	// amortRatio maps a unit of future loss to the recovered notional that
	// amortizes the top of the capital structure.
	amortRatio float64
	realized   float64
	realAmort  float64

	nodes   []float64
	weights []float64

	factor       float64
	curveDates   []time.Time
	curveFactors []float64

	cache map[distKey]*distribution
}

type distKey struct {
	day    int64
	factor float64
}

// distribution holds a discrete loss distribution; levels include realized loss.
type distribution struct {
	levels []float64
	probs  []float64
}

var _ Basket = (*Gaussian)(nil)

func newGaussian(s Spec) *Gaussian {
	g := &Gaussian{
		spec:   s,
		total:  s.TotalPrincipal(),
		factor: s.Factor,
		cache:  make(map[distKey]*distribution),
	}

	var liveLoss, liveRecovery float64
	g.lgd = make([]float64, len(s.Names))
	for i, n := range s.Names {
		g.lgd[i] = n.Notional * (1 - n.Recovery) / g.total
		liveLoss += n.Notional * (1 - n.Recovery)
		liveRecovery += n.Notional * n.Recovery
	}
	if liveLoss > 0 {
		g.amortRatio = liveRecovery / liveLoss
	}
	g.realized = s.DefaultedNotional * (1 - s.DefaultedRecovery) / g.total
	g.realAmort = s.DefaultedNotional * s.DefaultedRecovery / g.total

	g.nodes = make([]float64, s.QuadraturePoints)
	g.weights = make([]float64, s.QuadraturePoints)
	quad.Legendre{}.FixedLocations(g.nodes, g.weights, -quadratureRange, quadratureRange)
	for j, z := range g.nodes {
		g.weights[j] *= distuv.UnitNormal.Prob(z)
	}
	floats.Scale(1/floats.Sum(g.weights), g.weights)
	return g
}

// Spec returns the description the basket was built from, with the current factor.
func (g *Gaussian) Spec() Spec { return g.spec.WithFactor(g.factor) }

func (g *Gaussian) AsOf() time.Time         { return g.spec.AsOf }
func (g *Gaussian) Maturity() time.Time     { return g.spec.Maturity }
func (g *Gaussian) TotalPrincipal() float64 { return g.total }
func (g *Gaussian) Factor() float64         { return g.factor }
func (g *Gaussian) DefaultedLoss() float64  { return g.realized }

func (g *Gaussian) DefaultedAmortization() float64 { return g.realAmort }

// SetFactor changes the current factor. Cached distributions for other
// factors are dropped to bound memory during root searches.
func (g *Gaussian) SetFactor(factor float64) {
	if factor != g.factor {
		g.factor = factor
		g.Reset()
	}
}

func (g *Gaussian) SetFactorCurve(dates []time.Time, factors []float64) error {
	if len(dates) != len(factors) {
		return fmt.Errorf("SetFactorCurve: %d dates vs %d factors", len(dates), len(factors))
	}
	if !utils.StrictlyIncreasing(dates) {
		return fmt.Errorf("SetFactorCurve: dates must be strictly increasing")
	}
	for _, f := range factors {
		if math.IsNaN(f) {
			return fmt.Errorf("SetFactorCurve: NaN factor")
		}
	}
	g.curveDates = append([]time.Time(nil), dates...)
	g.curveFactors = append([]float64(nil), factors...)
	g.Reset()
	return nil
}

func (g *Gaussian) Reset() {
	g.cache = make(map[distKey]*distribution)
}

func (g *Gaussian) WithMaturity(maturity time.Time) Basket {
	out := newGaussian(g.spec.WithMaturity(maturity))
	out.factor = g.factor
	out.curveDates = append([]time.Time(nil), g.curveDates...)
	out.curveFactors = append([]float64(nil), g.curveFactors...)
	return out
}

func (g *Gaussian) effectiveFactor(date time.Time) float64 {
	if n := len(g.curveDates); n > 0 && !date.After(g.curveDates[n-1]) {
		return g.curveFactors[utils.SearchDate(g.curveDates, date)]
	}
	return g.factor
}

func (g *Gaussian) AccumulatedLoss(date time.Time, attach, detach float64) float64 {
	if detach <= attach {
		return 0
	}
	d := g.distribution(date)
	width := detach - attach
	el := 0.0
	for k, l := range d.levels {
		el += d.probs[k] * utils.Clamp(l-attach, 0, width)
	}
	return el
}

func (g *Gaussian) AmortizedAmount(date time.Time, attach, detach float64) float64 {
	if detach <= attach {
		return 0
	}
	d := g.distribution(date)
	width := detach - attach
	top := 1 - detach
	amort := 0.0
	for k, l := range d.levels {
		trancheLoss := utils.Clamp(l-attach, 0, width)
		a := g.realAmort + (l-g.realized)*g.amortRatio
		amort += d.probs[k] * utils.Clamp(a-top, 0, width-trancheLoss)
	}
	return amort
}

// expectedLoss does not depend on correlation, so it skips the distribution.
func (g *Gaussian) expectedLoss(date time.Time) float64 {
	el := g.realized
	for i, n := range g.spec.Names {
		el += g.lgd[i] * n.Survival.DefaultProb(date)
	}
	return el
}

func (g *Gaussian) BasketLoss(start, end time.Time) float64 {
	if !end.After(start) {
		return 0
	}
	return g.expectedLoss(end) - g.expectedLoss(start)
}

func (g *Gaussian) BasketLossPv(discount *curve.DiscountCurve) float64 {
	pv := 0.0
	prev := g.spec.AsOf
	prevLoss := g.expectedLoss(prev)
	for _, t := range g.stepDates() {
		loss := g.expectedLoss(t)
		mid := prev.Add(t.Sub(prev) / 2)
		pv += discount.DF(mid) * (loss - prevLoss)
		prev, prevLoss = t, loss
	}
	return pv
}

func (g *Gaussian) stepDates() []time.Time {
	var dates []time.Time
	for k := 1; ; k++ {
		t := utils.AddMonth(g.spec.AsOf, g.spec.StepMonths*k)
		if !t.Before(g.spec.Maturity) {
			break
		}
		dates = append(dates, t)
	}
	return append(dates, g.spec.Maturity)
}

func (g *Gaussian) CalcLossDistribution(date time.Time, levels []float64) []float64 {
	d := g.distribution(date)
	out := make([]float64, len(levels))
	for i, x := range levels {
		cum := 0.0
		for k, l := range d.levels {
			if l > x+levelEpsilon {
				break
			}
			cum += d.probs[k]
		}
		out[i] = math.Min(cum, 1)
	}
	return out
}

func (g *Gaussian) distribution(date time.Time) *distribution {
	beta := g.effectiveFactor(date)
	key := distKey{day: date.Unix() / 86400, factor: beta}
	if d, ok := g.cache[key]; ok {
		return d
	}

	var d *distribution
	if !date.After(g.spec.AsOf) {
		d = &distribution{levels: []float64{g.realized}, probs: []float64{1}}
	} else {
		d = g.computeDistribution(date, utils.Clamp(beta, -factorBound, factorBound))
	}
	g.cache[key] = d
	return d
}

func (g *Gaussian) computeDistribution(date time.Time, beta float64) *distribution {
	n := len(g.spec.Names)
	thresholds := make([]float64, n)
	pds := make([]float64, n)
	for i, name := range g.spec.Names {
		pds[i] = name.Survival.DefaultProb(date)
		thresholds[i] = normalQuantile(pds[i])
	}

	homogeneous := true
	for i := 1; i < n; i++ {
		if math.Abs(g.lgd[i]-g.lgd[0]) > 1e-14 || math.Abs(pds[i]-pds[0]) > 1e-14 {
			homogeneous = false
			break
		}
	}

	var step float64
	var size int
	if homogeneous {
		step = g.lgd[0]
		size = n + 1
	} else {
		step = g.spec.LossGridSize
		size = 1
		for _, l := range g.lgd {
			size += int(math.Floor(l/step)) + 1
		}
	}

	probs := make([]float64, size)
	cond := make([]float64, size)
	scratch := make([]float64, size)
	sigma := math.Sqrt(1 - beta*beta)
	for j, z := range g.nodes {
		if homogeneous {
			binomial(cond, n, conditionalPD(thresholds[0], beta, sigma, z))
		} else {
			g.convolve(cond, scratch, thresholds, beta, sigma, z, step)
		}
		floats.AddScaled(probs, g.weights[j], cond)
	}

	levels := make([]float64, size)
	for k := range levels {
		levels[k] = g.realized + float64(k)*step
	}
	return &distribution{levels: levels, probs: probs}
}

// convolve builds the conditional loss density on the grid by adding names one
// at a time. Each name's loss is split between its two neighbouring buckets so
// the conditional mean is preserved.
func (g *Gaussian) convolve(dens, scratch, thresholds []float64, beta, sigma, z, step float64) {
	for k := range dens {
		dens[k] = 0
	}
	dens[0] = 1
	top := 0
	for i := range g.spec.Names {
		p := conditionalPD(thresholds[i], beta, sigma, z)
		if p <= 0 {
			continue
		}
		u := g.lgd[i] / step
		lo := int(math.Floor(u))
		frac := u - float64(lo)

		copy(scratch, dens)
		for k := 0; k <= top; k++ {
			dens[k] = (1 - p) * scratch[k]
		}
		for k := top + 1; k < len(dens); k++ {
			dens[k] = 0
		}
		for k := 0; k <= top; k++ {
			mass := p * scratch[k]
			if mass == 0 {
				continue
			}
			if k+lo < len(dens) {
				dens[k+lo] += (1 - frac) * mass
			}
			if frac > 0 && k+lo+1 < len(dens) {
				dens[k+lo+1] += frac * mass
			}
		}
		top += lo + 1
		if top >= len(dens) {
			top = len(dens) - 1
		}
	}
}

func conditionalPD(threshold, beta, sigma, z float64) float64 {
	switch {
	case math.IsInf(threshold, -1):
		return 0
	case math.IsInf(threshold, 1):
		return 1
	}
	if sigma < 1e-12 {
		if threshold > beta*z {
			return 1
		}
		return 0
	}
	return distuv.UnitNormal.CDF((threshold - beta*z) / sigma)
}

func normalQuantile(p float64) float64 {
	switch {
	case p <= 0:
		return math.Inf(-1)
	case p >= 1:
		return math.Inf(1)
	}
	return distuv.UnitNormal.Quantile(p)
}

// binomial fills dens[0..n] with the Binomial(n, p) density.
func binomial(dens []float64, n int, p float64) {
	for k := range dens {
		dens[k] = 0
	}
	switch {
	case p <= 0:
		dens[0] = 1
		return
	case p >= 1:
		dens[n] = 1
		return
	}
	logP, logQ := math.Log(p), math.Log1p(-p)
	for k := 0; k <= n; k++ {
		lg, _ := math.Lgamma(float64(n + 1))
		lk, _ := math.Lgamma(float64(k + 1))
		lnk, _ := math.Lgamma(float64(n - k + 1))
		dens[k] = math.Exp(lg - lk - lnk + float64(k)*logP + float64(n-k)*logQ)
	}
}
