package curve

import (
	"fmt"
	"math"
	"time"

	"github.com/meenmo/basecorr/utils"
)

// DiscountCurve holds discount factors on pillar dates and interpolates them
// log-linearly on an ACT/365F time axis measured from the as-of date.
type DiscountCurve struct {
	asOf    time.Time
	pillars []time.Time
	dfs     []float64
}

// NewDiscountCurveFromDFs creates a curve from explicitly provided discount factors.
// The as-of date is implicitly a pillar with DF = 1.
func NewDiscountCurveFromDFs(asOf time.Time, dfs map[time.Time]float64) (*DiscountCurve, error) {
	c := &DiscountCurve{asOf: asOf}
	dates := make([]time.Time, 0, len(dfs)+1)
	for t, df := range dfs {
		if df <= 0 || math.IsNaN(df) {
			return nil, fmt.Errorf("NewDiscountCurveFromDFs: invalid DF %v at %s", df, t.Format(utils.DateLayout))
		}
		if t.Before(asOf) {
			return nil, fmt.Errorf("NewDiscountCurveFromDFs: pillar %s before as-of", t.Format(utils.DateLayout))
		}
		if utils.SameDay(t, asOf) {
			continue
		}
		dates = append(dates, t)
	}
	utils.SortDates(dates)

	c.pillars = append([]time.Time{asOf}, dates...)
	c.dfs = make([]float64, len(c.pillars))
	c.dfs[0] = 1.0
	for i, d := range dates {
		c.dfs[i+1] = dfs[d]
	}
	return c, nil
}

// NewFlatDiscountCurve builds a curve with a constant continuously-compounded rate.
func NewFlatDiscountCurve(asOf time.Time, rate float64) *DiscountCurve {
	end := asOf.AddDate(50, 0, 0)
	return &DiscountCurve{
		asOf:    asOf,
		pillars: []time.Time{asOf, end},
		dfs:     []float64{1.0, math.Exp(-rate * utils.Time(asOf, end))},
	}
}

// AsOf returns the curve date.
func (c *DiscountCurve) AsOf() time.Time { return c.asOf }

// DF returns the discount factor for t. Dates before as-of discount at 1.
func (c *DiscountCurve) DF(t time.Time) float64 {
	if !t.After(c.asOf) {
		return 1.0
	}
	if len(c.pillars) < 2 {
		return 1.0
	}

	i1, i2 := utils.AdjacentIndices(t, c.pillars)
	df1, df2 := c.dfs[i1], c.dfs[i2]
	t1 := utils.Time(c.asOf, c.pillars[i1])
	t2 := utils.Time(c.asOf, c.pillars[i2])
	tTarget := utils.Time(c.asOf, t)

	if t2 == t1 {
		return df1
	}

	forwardRate := math.Log(df1/df2) / (t2 - t1)
	return df1 * math.Exp(-forwardRate*(tTarget-t1))
}

// ZeroRate returns the continuously-compounded zero rate to t, in decimal.
func (c *DiscountCurve) ZeroRate(t time.Time) float64 {
	tau := utils.Time(c.asOf, t)
	if tau <= 0 {
		return 0
	}
	return -math.Log(c.DF(t)) / tau
}
