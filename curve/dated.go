package curve

import (
	"fmt"
	"math"
	"time"

	"github.com/meenmo/basecorr/utils"
)

// Interpolation selects how a DatedCurve fills values between pillars.
type Interpolation int

const (
	// Linear interpolates linearly in ACT/365F time.
	Linear Interpolation = iota
	// Flat takes the value of the next pillar on or after the date, so pillar i
	// governs (date[i-1], date[i]].
	Flat
)

func (m Interpolation) String() string {
	switch m {
	case Linear:
		return "Linear"
	case Flat:
		return "Flat"
	default:
		return fmt.Sprintf("Interpolation(%d)", int(m))
	}
}

// DatedCurve is a value curve over dates with flat extrapolation on both ends.
type DatedCurve struct {
	asOf   time.Time
	method Interpolation
	dates  []time.Time
	values []float64
}

// NewDatedCurve creates an empty curve.
func NewDatedCurve(asOf time.Time, method Interpolation) *DatedCurve {
	return &DatedCurve{asOf: asOf, method: method}
}

// Add inserts (or replaces) the value at date, keeping pillars sorted.
func (c *DatedCurve) Add(date time.Time, value float64) {
	if i := utils.IndexOfDate(c.dates, date); i >= 0 {
		c.values[i] = value
		return
	}
	i := utils.SearchDate(c.dates, date)
	c.dates = append(c.dates, time.Time{})
	c.values = append(c.values, 0)
	copy(c.dates[i+1:], c.dates[i:])
	copy(c.values[i+1:], c.values[i:])
	c.dates[i] = date
	c.values[i] = value
}

// Len returns the number of pillars.
func (c *DatedCurve) Len() int { return len(c.dates) }

// Dates returns a copy of the pillar dates.
func (c *DatedCurve) Dates() []time.Time { return append([]time.Time(nil), c.dates...) }

// Values returns a copy of the pillar values.
func (c *DatedCurve) Values() []float64 { return append([]float64(nil), c.values...) }

// Interpolate returns the curve value at t. An empty curve yields NaN.
func (c *DatedCurve) Interpolate(t time.Time) float64 {
	n := len(c.dates)
	switch {
	case n == 0:
		return math.NaN()
	case n == 1:
		return c.values[0]
	}

	i := utils.SearchDate(c.dates, t)
	if i >= n {
		return c.values[n-1]
	}
	if i == 0 || utils.SameDay(c.dates[i], t) {
		return c.values[i]
	}
	if c.method == Flat {
		return c.values[i]
	}

	t1 := utils.Time(c.asOf, c.dates[i-1])
	t2 := utils.Time(c.asOf, c.dates[i])
	w := (utils.Time(c.asOf, t) - t1) / (t2 - t1)
	return c.values[i-1] + w*(c.values[i]-c.values[i-1])
}

// Clone returns a deep copy.
func (c *DatedCurve) Clone() *DatedCurve {
	return &DatedCurve{
		asOf:   c.asOf,
		method: c.method,
		dates:  c.Dates(),
		values: c.Values(),
	}
}
