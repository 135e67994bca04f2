package basecorr_test

import (
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/meenmo/basecorr/basecorr"
	"github.com/meenmo/basecorr/basket"
	"github.com/meenmo/basecorr/cdo"
	"github.com/meenmo/basecorr/curve"
	"github.com/meenmo/basecorr/strike"
)

var (
	asOf = time.Date(2025, 3, 20, 0, 0, 0, 0, time.UTC)
	y3   = time.Date(2028, 3, 20, 0, 0, 0, 0, time.UTC)
	y5   = time.Date(2030, 3, 20, 0, 0, 0, 0, time.UTC)

	ladder = []float64{0.03, 0.07, 0.10}
)

func newBasket(t *testing.T, maturity time.Time) *basket.Gaussian {
	t.Helper()
	spec := basket.Homogeneous(asOf, maturity, 50, 2e6, 0.4, curve.NewFlatSurvivalCurve(asOf, 0.015))
	spec.Factor = 0.5
	b, err := spec.Build()
	require.NoError(t, err)
	return b
}

func discount() *curve.DiscountCurve {
	return curve.NewFlatDiscountCurve(asOf, 0.03)
}

func trancheAt(attach, detach float64, maturity time.Time, premium float64) cdo.Tranche {
	return cdo.Tranche{
		Name:       "IDX",
		Attachment: attach,
		Detachment: detach,
		Effective:  asOf,
		Maturity:   maturity,
		Premium:    premium,
	}
}

// arbitrageFreeQuotes prices a ladder whose arbitrage-free base correlations
// are exactly corrs.
func arbitrageFreeQuotes(t *testing.T, b basket.Basket, maturity time.Time, corrs []float64) []*cdo.Pricer {
	t.Helper()
	dc := discount()
	var prevProt, prevPv01, attach float64
	out := make([]*cdo.Pricer, len(ladder))
	for i, d := range ladder {
		base, err := cdo.NewPricer(trancheAt(0, d, maturity, 0), b, dc)
		require.NoError(t, err)
		b.SetFactor(math.Sqrt(corrs[i]))
		prot, pv01 := base.ProtectionPv(), base.Pv01()

		premium := -(prot - prevProt) / (pv01 - prevPv01)
		out[i], err = cdo.NewPricer(trancheAt(attach, d, maturity, premium), b, dc)
		require.NoError(t, err)
		prevProt, prevPv01, attach = prot, pv01, d
	}
	return out
}

// breakEvenQuotes prices every tranche at its own correlation.
func breakEvenQuotes(t *testing.T, b basket.Basket, maturity time.Time, corrs []float64) []*cdo.Pricer {
	t.Helper()
	dc := discount()
	attach := 0.0
	out := make([]*cdo.Pricer, len(ladder))
	for i, d := range ladder {
		p, err := cdo.NewPricer(trancheAt(attach, d, maturity, 0), b, dc)
		require.NoError(t, err)
		b.SetFactor(math.Sqrt(corrs[i]))
		out[i] = p.WithPremium(p.BreakEvenPremium(), 0)
		attach = d
	}
	return out
}

func calibrator(t *testing.T, opts basecorr.Options) *basecorr.Calibrator {
	t.Helper()
	c, err := basecorr.NewCalibrator(opts, zerolog.Nop())
	require.NoError(t, err)
	return c
}

func unscaledOptions() basecorr.Options {
	opts := basecorr.DefaultOptions()
	opts.StrikeMethod = strike.Unscaled
	return opts
}
