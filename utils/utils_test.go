package utils_test

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meenmo/basecorr/utils"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestAdjacentIndices(t *testing.T) {
	t.Parallel()

	dates := []time.Time{date(2025, 1, 1), date(2026, 1, 1), date(2027, 1, 1)}

	lo, hi := utils.AdjacentIndices(date(2025, 6, 1), dates)
	assert.Equal(t, 0, lo)
	assert.Equal(t, 1, hi)

	lo, hi = utils.AdjacentIndices(date(2030, 1, 1), dates)
	assert.Equal(t, 1, lo)
	assert.Equal(t, 2, hi)

	lo, hi = utils.AdjacentIndices(date(2020, 1, 1), dates)
	assert.Equal(t, 0, lo)
	assert.Equal(t, 1, hi)
}

func TestIndexOfDate(t *testing.T) {
	t.Parallel()

	dates := []time.Time{date(2025, 1, 1), date(2026, 1, 1)}
	assert.Equal(t, 1, utils.IndexOfDate(dates, date(2026, 1, 1).Add(3*time.Hour)))
	assert.Equal(t, -1, utils.IndexOfDate(dates, date(2025, 7, 1)))
}

func TestParseDate(t *testing.T) {
	t.Parallel()

	d, err := utils.ParseDate("2025-03-20")
	require.NoError(t, err)
	assert.Equal(t, date(2025, 3, 20), d)

	_, err = utils.ParseDate("20/03/2025")
	assert.Error(t, err)
}

func TestFactorRoundTrip(t *testing.T) {
	t.Parallel()

	for _, c := range []float64{0, 0.09, 0.5, 1, -0.25} {
		assert.InDelta(t, c, utils.CorrelationOf(utils.FactorOf(c)), 1e-15)
	}
	assert.InDelta(t, -0.5, utils.FactorOf(-0.25), 1e-15)
}

func TestYearFraction(t *testing.T) {
	t.Parallel()

	start, end := date(2025, 1, 31), date(2025, 7, 31)
	assert.InDelta(t, 181.0/360.0, utils.YearFraction(start, end, utils.Act360), 1e-15)
	assert.InDelta(t, 0.5, utils.YearFraction(start, end, utils.Thirty), 1e-15)
	assert.InDelta(t, 181.0/365.0, utils.Time(start, end), 1e-15)
}

func TestNaNHelpers(t *testing.T) {
	t.Parallel()

	xs := utils.NaNs(3)
	xs[1] = 0.2
	assert.Equal(t, 2, utils.CountNaN(xs))
	assert.True(t, math.IsNaN(xs[0]))
	assert.Equal(t, 1.0, utils.Clamp(1.4, 0, 1))
}
