package curve

import (
	"fmt"
	"math"
	"time"

	"github.com/meenmo/basecorr/utils"
)

// SurvivalCurve is a piecewise-constant hazard rate curve. Hazard i applies on
// (tenors[i-1], tenors[i]]; the last hazard extends flat beyond the last tenor.
type SurvivalCurve struct {
	asOf    time.Time
	tenors  []time.Time
	hazards []float64
}

// NewSurvivalCurve builds a curve from tenor dates and hazard rates.
func NewSurvivalCurve(asOf time.Time, tenors []time.Time, hazards []float64) (*SurvivalCurve, error) {
	if len(tenors) == 0 || len(tenors) != len(hazards) {
		return nil, fmt.Errorf("NewSurvivalCurve: %d tenors vs %d hazards", len(tenors), len(hazards))
	}
	if !utils.StrictlyIncreasing(tenors) || !tenors[0].After(asOf) {
		return nil, fmt.Errorf("NewSurvivalCurve: tenors must be increasing and after as-of")
	}
	for _, h := range hazards {
		if h < 0 || math.IsNaN(h) {
			return nil, fmt.Errorf("NewSurvivalCurve: invalid hazard %v", h)
		}
	}
	return &SurvivalCurve{
		asOf:    asOf,
		tenors:  append([]time.Time(nil), tenors...),
		hazards: append([]float64(nil), hazards...),
	}, nil
}

// NewFlatSurvivalCurve builds a curve with a single hazard rate.
func NewFlatSurvivalCurve(asOf time.Time, hazard float64) *SurvivalCurve {
	return &SurvivalCurve{
		asOf:    asOf,
		tenors:  []time.Time{asOf.AddDate(50, 0, 0)},
		hazards: []float64{hazard},
	}
}

// NewSurvivalCurveFromSpread calibrates a flat hazard with the credit triangle
// hazard = spread / (1 - recovery). spread is in decimal (0.01 = 100bp).
func NewSurvivalCurveFromSpread(asOf time.Time, spread, recovery float64) (*SurvivalCurve, error) {
	if recovery < 0 || recovery >= 1 {
		return nil, fmt.Errorf("NewSurvivalCurveFromSpread: recovery %v outside [0,1)", recovery)
	}
	if spread < 0 {
		return nil, fmt.Errorf("NewSurvivalCurveFromSpread: negative spread %v", spread)
	}
	return NewFlatSurvivalCurve(asOf, spread/(1-recovery)), nil
}

// AsOf returns the curve date.
func (c *SurvivalCurve) AsOf() time.Time { return c.asOf }

// SurvivalProb returns P(tau > t).
func (c *SurvivalCurve) SurvivalProb(t time.Time) float64 {
	if !t.After(c.asOf) {
		return 1.0
	}
	integral := 0.0
	prev := 0.0
	tau := utils.Time(c.asOf, t)
	for i, d := range c.tenors {
		ti := utils.Time(c.asOf, d)
		if tau <= ti || i == len(c.tenors)-1 {
			integral += c.hazards[i] * (tau - prev)
			break
		}
		integral += c.hazards[i] * (ti - prev)
		prev = ti
	}
	return math.Exp(-integral)
}

// DefaultProb returns P(tau <= t).
func (c *SurvivalCurve) DefaultProb(t time.Time) float64 {
	return 1 - c.SurvivalProb(t)
}
