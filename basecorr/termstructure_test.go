package basecorr_test

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meenmo/basecorr/basecorr"
)

func explicitTerm(t *testing.T, dates []time.Time) *basecorr.TermStructure {
	t.Helper()
	opts := unscaledOptions()
	s1, err := basecorr.NewSmile(ladder, []float64{0.2, 0.3, 0.4}, opts)
	require.NoError(t, err)
	s3, err := basecorr.NewSmile(ladder, []float64{0.3, 0.4, 0.6}, opts)
	require.NoError(t, err)
	ts, err := basecorr.NewTermStructure(asOf, dates, []string{"short", "long"}, []*basecorr.Smile{s1, s3}, opts)
	require.NoError(t, err)
	return ts
}

func TestTermStructureLinearInTime(t *testing.T) {
	t1, t2, t3 := asOf.AddDate(0, 0, 400), asOf.AddDate(0, 0, 800), asOf.AddDate(0, 0, 1200)
	ts := explicitTerm(t, []time.Time{t1, t3})
	b := newBasket(t, y5)

	c, err := ts.GetCorrelation(trancheAt(0, 0.07, t2, 0), b, nil, 0, 0)
	require.NoError(t, err)
	assert.InDelta(t, 0.35, c, 1e-12)

	c, err = ts.GetCorrelation(trancheAt(0, 0.07, t1, 0), b, nil, 0, 0)
	require.NoError(t, err)
	assert.InDelta(t, 0.3, c, 1e-12)

	c, err = ts.TrancheCorrelation(trancheAt(0, 0.1, t2, 0), b, nil, 0, 0, 0, 0)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, c, 1e-12)

	s, err := ts.GetBaseCorrelation(t2)
	require.NoError(t, err)
	assert.Equal(t, t2, s.Maturity())
	assert.Equal(t, ladder, s.Strikes())
	assert.InDeltaSlice(t, []float64{0.25, 0.35, 0.5}, s.Correlations(), 1e-12)

	s, err = ts.GetBaseCorrelation(t3)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.3, 0.4, 0.6}, s.Correlations())
}

func TestTermStructureSkipsExpiredTenors(t *testing.T) {
	expired, live := asOf.AddDate(0, 0, -10), asOf.AddDate(0, 0, 1200)
	ts := explicitTerm(t, []time.Time{expired, live})
	b := newBasket(t, y5)

	c, err := ts.GetCorrelation(trancheAt(0, 0.07, asOf.AddDate(0, 0, 600), 0), b, nil, 0, 0)
	require.NoError(t, err)
	assert.InDelta(t, 0.4, c, 1e-12)

	gone := explicitTerm(t, []time.Time{asOf.AddDate(0, 0, -20), asOf.AddDate(0, 0, -10)})
	c, err = gone.GetCorrelation(trancheAt(0, 0.07, y5, 0), b, nil, 0, 0)
	require.NoError(t, err)
	assert.InDelta(t, 0.4, c, 1e-12, "falls back to the last tenor")
}

func TestTermStructureValidation(t *testing.T) {
	opts := unscaledOptions()
	s, err := basecorr.NewSmile(ladder, []float64{0.2, 0.3, 0.4}, opts)
	require.NoError(t, err)

	_, err = basecorr.NewTermStructure(asOf, []time.Time{y5, y3}, nil, []*basecorr.Smile{s, s}, opts)
	assert.ErrorIs(t, err, basecorr.ErrInvalidInput)
	_, err = basecorr.NewTermStructure(asOf, []time.Time{y3}, nil, []*basecorr.Smile{s, s}, opts)
	assert.ErrorIs(t, err, basecorr.ErrInvalidInput)

	ts, err := basecorr.NewTermStructure(asOf, []time.Time{y3}, nil, []*basecorr.Smile{s}, opts)
	require.NoError(t, err)
	assert.Equal(t, []string{"2028-03-20"}, ts.Names())
	assert.Error(t, ts.Refit(context.Background(), nil))

	other, err := basecorr.NewSmile(ladder, []float64{0.2, 0.3, 0.4}, basecorr.DefaultOptions())
	require.NoError(t, err)
	mixed, err := basecorr.NewTermStructure(asOf, []time.Time{y3, y5}, nil, []*basecorr.Smile{s, other}, opts)
	require.NoError(t, err)
	_, err = mixed.GetBaseCorrelation(asOf.AddDate(3, 6, 0))
	assert.ErrorIs(t, err, basecorr.ErrInvalidInput)
}

func TestTermStructureBumpsAndClone(t *testing.T) {
	ts := explicitTerm(t, []time.Time{y3, y5})
	c := ts.Clone()

	delta, err := ts.BumpTenorByName("short", 0.1, false)
	require.NoError(t, err)
	assert.InDelta(t, 0.1, delta, 1e-12)
	assert.InDeltaSlice(t, []float64{0.3, 0.4, 0.5}, ts.Smile(0).Correlations(), 1e-12)
	assert.Equal(t, []float64{0.2, 0.3, 0.4}, c.Smile(0).Correlations())

	_, err = ts.BumpTenorByName("medium", 0.1, false)
	assert.ErrorIs(t, err, basecorr.ErrInvalidInput)
	_, err = ts.BumpTenor(5, 0.1, false)
	assert.ErrorIs(t, err, basecorr.ErrInvalidInput)

	// Long tenor: 0.6 is clamped at 1 after +0.5, the others move fully.
	delta = c.BumpAll(0.5, false)
	assert.InDelta(t, (0.5*5+0.4)/6, delta, 1e-12)
	assert.Equal(t, 1.0, c.Smile(1).Correlations()[2])
}

func TestTermStructureFactorCurve(t *testing.T) {
	ts := explicitTerm(t, []time.Time{y3, y5})
	dates, factors, err := ts.FactorCurve(1)
	require.NoError(t, err)
	assert.Equal(t, []time.Time{y3, y5}, dates)
	assert.InDeltaSlice(t, []float64{math.Sqrt(0.3), math.Sqrt(0.4)}, factors, 1e-15)

	dates, _, err = ts.FactorCurve(7)
	require.NoError(t, err)
	assert.Empty(t, dates)

	b := newBasket(t, y5)
	dates, factors, _ = ts.FactorCurve(0)
	require.NoError(t, b.SetFactorCurve(dates, factors))
}

func quotedTenors(t *testing.T, corr float64) []basecorr.Tenor {
	t.Helper()
	flat := []float64{corr, corr, corr}
	return []basecorr.Tenor{
		{Name: "5Y", Pricers: arbitrageFreeQuotes(t, newBasket(t, y5), y5, flat)},
		{Name: "3Y", Pricers: arbitrageFreeQuotes(t, newBasket(t, y3), y3, flat)},
	}
}

func TestCalibrateTermStructure(t *testing.T) {
	for _, tc := range []struct {
		name       string
		discipline basecorr.Discipline
		parallel   bool
	}{
		{"maturity match", basecorr.MaturityMatch, false},
		{"maturity match parallel", basecorr.MaturityMatch, true},
		{"term bootstrap", basecorr.TermBootstrap, false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			opts := basecorr.DefaultOptions()
			opts.Discipline = tc.discipline
			opts.Config.Parallel = tc.parallel
			tenors := quotedTenors(t, 0.3)

			ts, err := calibrator(t, opts).CalibrateTermStructure(context.Background(), tenors)
			require.NoError(t, err)
			assert.Equal(t, []time.Time{y3, y5}, ts.Dates())
			assert.Equal(t, []string{"3Y", "5Y"}, ts.Names())
			assert.Equal(t, tc.discipline, ts.Discipline())
			for i := 0; i < ts.Len(); i++ {
				assert.False(t, ts.Smile(i).CalibrationFailed())
				assert.InDeltaSlice(t, []float64{0.3, 0.3, 0.3}, ts.Smile(i).Correlations(), 1e-4)
			}

			dates, factors, err := ts.FactorCurve(2)
			require.NoError(t, err)
			assert.Len(t, dates, 2)
			assert.InDeltaSlice(t, []float64{math.Sqrt(0.3), math.Sqrt(0.3)}, factors, 1e-4)

			y4 := time.Date(2029, 3, 20, 0, 0, 0, 0, time.UTC)
			c, err := ts.GetCorrelation(trancheAt(0, 0.05, y4, 0), newBasket(t, y4), discount(), 0, 0)
			require.NoError(t, err)
			assert.InDelta(t, 0.3, c, 1e-4)

			require.NoError(t, ts.Refit(context.Background(), quotedTenors(t, 0.3)))
			assert.Equal(t, 2, ts.Len())
		})
	}
}

func TestTermBootstrapCarriesFactorHistory(t *testing.T) {
	short := []float64{0.1, 0.2, 0.3}
	long := []float64{0.2, 0.35, 0.5}
	tenors := []basecorr.Tenor{
		{Name: "3Y", Pricers: arbitrageFreeQuotes(t, newBasket(t, y3), y3, short)},
		{Name: "5Y", Pricers: arbitrageFreeQuotes(t, newBasket(t, y5), y5, long)},
	}

	calibrate := func(d basecorr.Discipline) *basecorr.TermStructure {
		opts := basecorr.DefaultOptions()
		opts.Discipline = d
		ts, err := calibrator(t, opts).CalibrateTermStructure(context.Background(), tenors)
		require.NoError(t, err)
		return ts
	}
	matched := calibrate(basecorr.MaturityMatch)
	boot := calibrate(basecorr.TermBootstrap)

	assert.InDeltaSlice(t, short, matched.Smile(0).Correlations(), 1e-4)
	assert.InDeltaSlice(t, matched.Smile(0).Correlations(), boot.Smile(0).Correlations(), 1e-12)
	assert.InDeltaSlice(t, long, matched.Smile(1).Correlations(), 1e-4)

	// Losses up to 3Y are pinned at the lower 3Y correlations, so the 5Y
	// correlations must rise to reprice the same quotes.
	got := boot.Smile(1).Correlations()
	for i := range long {
		assert.Greater(t, got[i], long[i]+1e-3, "detachment %v", ladder[i])
	}
}

func TestTermStructureRollsBasketOnTenorHit(t *testing.T) {
	ts, err := calibrator(t, basecorr.DefaultOptions()).CalibrateTermStructure(context.Background(), []basecorr.Tenor{
		{Name: "3Y", Pricers: arbitrageFreeQuotes(t, newBasket(t, y3), y3, []float64{0.1, 0.2, 0.3})},
		{Name: "5Y", Pricers: arbitrageFreeQuotes(t, newBasket(t, y5), y5, []float64{0.2, 0.35, 0.5})},
	})
	require.NoError(t, err)

	tr := trancheAt(0, 0.05, y3, 0)
	onTenor, err := ts.GetCorrelation(tr, newBasket(t, y3), discount(), 0, 0)
	require.NoError(t, err)
	long := newBasket(t, y5)
	rolled, err := ts.GetCorrelation(tr, long, discount(), 0, 0)
	require.NoError(t, err)
	assert.InDelta(t, onTenor, rolled, 1e-12)
	assert.Equal(t, 0.5, long.Factor(), "caller basket untouched")
}

func TestCalibrateTermStructureRejectsDuplicateTenors(t *testing.T) {
	tenors := quotedTenors(t, 0.3)
	tenors[1] = tenors[0]
	_, err := calibrator(t, basecorr.DefaultOptions()).CalibrateTermStructure(context.Background(), tenors)
	assert.ErrorIs(t, err, basecorr.ErrInvalidInput)

	_, err = calibrator(t, basecorr.DefaultOptions()).CalibrateTermStructure(context.Background(), nil)
	assert.ErrorIs(t, err, basecorr.ErrInvalidInput)
}

func TestCalibrateTermStructureHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := calibrator(t, basecorr.DefaultOptions()).CalibrateTermStructure(ctx, quotedTenors(t, 0.3))
	assert.ErrorIs(t, err, context.Canceled)
}
