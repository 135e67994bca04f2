package basecorr_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meenmo/basecorr/basecorr"
)

var (
	knotStrikes = []float64{0.1, 0.2, 0.4, 0.6, 0.9}
	knotCorrs   = []float64{0.2, 0.25, 0.35, 0.5, 0.7}
)

func TestInterpolatorRoundTrip(t *testing.T) {
	for _, method := range []basecorr.Interp{basecorr.Linear, basecorr.Flat, basecorr.Akima, basecorr.Monotone, basecorr.Cubic} {
		for _, variant := range []struct {
			name       string
			complement bool
			onFactor   bool
		}{
			{"plain", false, false},
			{"complement", true, false},
			{"factor", false, true},
		} {
			opts := unscaledOptions()
			opts.Interp = method
			opts.Complement = variant.complement
			opts.OnFactor = variant.onFactor

			s, err := basecorr.NewSmile(knotStrikes, knotCorrs, opts)
			require.NoError(t, err)
			for i, k := range knotStrikes {
				c, err := s.CorrelationAt(k)
				require.NoError(t, err)
				assert.InDelta(t, knotCorrs[i], c, 1e-12, "%s/%s at %v", method, variant.name, k)
			}
		}
	}
}

func TestInterpolatorLinearBetweenKnots(t *testing.T) {
	s, err := basecorr.NewSmile(knotStrikes, knotCorrs, unscaledOptions())
	require.NoError(t, err)
	c, err := s.CorrelationAt(0.3)
	require.NoError(t, err)
	assert.InDelta(t, 0.3, c, 1e-12)
}

func TestInterpolatorFlatTakesNextKnot(t *testing.T) {
	opts := unscaledOptions()
	opts.Interp = basecorr.Flat
	s, err := basecorr.NewSmile(knotStrikes, knotCorrs, opts)
	require.NoError(t, err)
	c, err := s.CorrelationAt(0.3)
	require.NoError(t, err)
	assert.InDelta(t, 0.35, c, 1e-12)
}

func TestInterpolatorResortsDescendingStrikes(t *testing.T) {
	strikes := []float64{0.9, 0.6, 0.4, 0.2, 0.1}
	corrs := []float64{0.7, 0.5, 0.35, 0.25, 0.2}
	s, err := basecorr.NewSmile(strikes, corrs, unscaledOptions())
	require.NoError(t, err)
	c, err := s.CorrelationAt(0.3)
	require.NoError(t, err)
	assert.InDelta(t, 0.3, c, 1e-12)
	assert.Equal(t, strikes, s.Strikes(), "stored order is untouched")
}

func TestInterpolatorExtrapolation(t *testing.T) {
	opts := unscaledOptions()
	s, err := basecorr.NewSmile(knotStrikes, knotCorrs, opts)
	require.NoError(t, err)
	c, _ := s.CorrelationAt(0)
	assert.InDelta(t, 0.2, c, 1e-12)
	c, _ = s.CorrelationAt(1)
	assert.InDelta(t, 0.7, c, 1e-12)

	opts.Extrap = basecorr.Smooth
	s, err = basecorr.NewSmile(knotStrikes, knotCorrs, opts)
	require.NoError(t, err)
	c, _ = s.CorrelationAt(0)
	assert.InDelta(t, 0.15, c, 1e-12)
	c, _ = s.CorrelationAt(1)
	assert.InDelta(t, 0.7+0.2/3, c, 1e-12)
	c, _ = s.CorrelationAt(5)
	assert.Equal(t, 1.0, c, "clamped to the upper bound")
}

func TestInterpolatorFiltersNaN(t *testing.T) {
	corrs := []float64{0.2, math.NaN(), 0.35, 0.5, math.NaN()}
	s, err := basecorr.NewSmile(knotStrikes, corrs, unscaledOptions())
	require.NoError(t, err)
	c, err := s.CorrelationAt(0.2)
	require.NoError(t, err)
	assert.InDelta(t, 0.2+0.15/3, c, 1e-12)

	allNaN := []float64{math.NaN(), math.NaN()}
	s, err = basecorr.NewSmile([]float64{0.1, 0.2}, allNaN, unscaledOptions())
	require.NoError(t, err)
	_, err = s.CorrelationAt(0.1)
	assert.True(t, basecorr.IsCalibrationError(err))
}

func TestInterpolatorRejectsBadInput(t *testing.T) {
	_, err := basecorr.NewSmile([]float64{0.1, 0.2}, []float64{0.3, 2.5}, unscaledOptions())
	assert.ErrorIs(t, err, basecorr.ErrInvalidCorrelation)

	_, err = basecorr.NewSmile([]float64{0.1, 0.2}, []float64{0.3}, unscaledOptions())
	assert.ErrorIs(t, err, basecorr.ErrInvalidInput)
}

func TestInterpolatorDuplicateStrikes(t *testing.T) {
	s, err := basecorr.NewSmile([]float64{0.1, 0.1, 0.3}, []float64{0.2, 0.9, 0.4}, unscaledOptions())
	require.NoError(t, err)
	c, err := s.CorrelationAt(0.1)
	require.NoError(t, err)
	assert.InDelta(t, 0.2, c, 1e-12, "first of a duplicate pair wins")
}

func TestInterpolatorExactStrikeMatch(t *testing.T) {
	opts := unscaledOptions()
	opts.Interp = basecorr.Cubic
	opts.Config.ExactStrikeMatch = true
	s, err := basecorr.NewSmile(knotStrikes, knotCorrs, opts)
	require.NoError(t, err)
	for i, k := range knotStrikes {
		c, err := s.CorrelationAt(k)
		require.NoError(t, err)
		assert.Equal(t, knotCorrs[i], c)
	}
}

func TestParseEnums(t *testing.T) {
	i, err := basecorr.ParseInterp("akima")
	require.NoError(t, err)
	assert.Equal(t, basecorr.Akima, i)
	_, err = basecorr.ParseInterp("quartic")
	assert.ErrorIs(t, err, basecorr.ErrInvalidInput)

	e, err := basecorr.ParseExtrap("smooth")
	require.NoError(t, err)
	assert.Equal(t, basecorr.Smooth, e)

	m, err := basecorr.ParseMethod("protection-matching")
	require.NoError(t, err)
	assert.Equal(t, basecorr.ProtectionMatching, m)

	d, err := basecorr.ParseDiscipline("termstructure")
	require.NoError(t, err)
	assert.Equal(t, basecorr.TermBootstrap, d)
}
