package solver_test

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meenmo/basecorr/config"
	"github.com/meenmo/basecorr/solver"
)

func cubic(x float64) (float64, error) { return x*x*x - 2*x - 5, nil }

func TestBrentSolve(t *testing.T) {
	s := solver.Brent{ToleranceF: 1e-12, ToleranceX: 1e-12}
	res, err := s.Solve(cubic, 0, 2, 3)
	require.NoError(t, err)
	assert.InDelta(t, 2.0945514815423265, res.X, 1e-9)
	assert.Greater(t, res.Iterations, 0)

	res, err = s.Solve(func(x float64) (float64, error) { return math.Exp(x), nil }, 2, 0, 1)
	require.NoError(t, err)
	assert.InDelta(t, math.Ln2, res.X, 1e-9)
}

func TestBrentNoSignChange(t *testing.T) {
	s := solver.Brent{ToleranceF: 1e-10, ToleranceX: 1e-10}
	_, err := s.Solve(func(x float64) (float64, error) { return x * x, nil }, -1, -1, 1)
	assert.ErrorIs(t, err, solver.ErrNoSignChange)
}

func TestBrentPropagatesObjectiveErrors(t *testing.T) {
	boom := errors.New("boom")
	s := solver.Brent{}
	_, err := s.Solve(func(float64) (float64, error) { return 0, boom }, 0, 0, 1)
	assert.ErrorIs(t, err, boom)

	_, err = s.Solve(func(float64) (float64, error) { return math.NaN(), nil }, 0, 0, 1)
	assert.Error(t, err)
}

func TestBrentMaxIterations(t *testing.T) {
	s := solver.Brent{MaxIterations: 2}
	_, err := s.Solve(cubic, 0, 0, 100)
	assert.ErrorIs(t, err, solver.ErrMaxIterations)
}

func TestSolveFromSplitsDomain(t *testing.T) {
	// Even function: the ends do not straddle but the start point does.
	f := func(x float64) (float64, error) { return x*x - 0.25, nil }
	s := solver.Brent{ToleranceF: 1e-12, ToleranceX: 1e-12}
	res, err := s.SolveFrom(f, 0, -1, 1, 0.1)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, math.Abs(res.X), 1e-9)
}

func TestCoarseBracket(t *testing.T) {
	lin := func(x float64) (float64, error) { return 10 * x, nil }
	b, err := solver.CoarseBracket(lin, 3.3, 0, 1, 7)
	require.NoError(t, err)
	assert.LessOrEqual(t, b.XLow, 0.33)
	assert.GreaterOrEqual(t, b.XHigh, 0.33)
	assert.InDelta(t, 1.0/7, b.Width(), 1e-12)

	exact, err := solver.CoarseBracket(lin, 0, 0, 1, 7)
	require.NoError(t, err)
	assert.Zero(t, exact.Width())

	_, err = solver.CoarseBracket(lin, 42, 0, 1, 7)
	assert.ErrorIs(t, err, solver.ErrNoSignChange)

	s := solver.Brent{ToleranceF: 1e-12, ToleranceX: 1e-12}
	res, err := s.SolveCoarse(lin, 3.3, 0, 1, 7)
	require.NoError(t, err)
	assert.InDelta(t, 0.33, res.X, 1e-10)
}

func TestTolerances(t *testing.T) {
	f, x := solver.Tolerances(1e8, 0, 0)
	assert.Equal(t, 1e-8, f)
	assert.InDelta(t, 1e-6, x, 1e-18)

	f, x = solver.Tolerances(100, 0, 0)
	assert.Equal(t, 1e-6, f)
	assert.InDelta(t, 1e-4, x, 1e-16)

	f, x = solver.Tolerances(0, 0, 0)
	assert.Equal(t, 1e-6, f)
	assert.InDelta(t, 1e-4, x, 1e-16)

	f, x = solver.Tolerances(1e8, 1e-3, 5e-3)
	assert.Equal(t, 1e-3, f)
	assert.Equal(t, 5e-3, x)
}

func TestIsMonotone(t *testing.T) {
	assert.True(t, solver.IsMonotone([]float64{1, 2, 3}))
	assert.True(t, solver.IsMonotone([]float64{3, 2, 1}))
	assert.True(t, solver.IsMonotone([]float64{7}))
	assert.False(t, solver.IsMonotone([]float64{1, 2, 2}))
	assert.False(t, solver.IsMonotone([]float64{1, 3, 2}))
	assert.False(t, solver.IsMonotone([]float64{1, math.NaN(), 2}))
}

var (
	knotStrikes = []float64{0.03, 0.07, 0.10, 0.15, 0.30}
	knotCorrs   = []float64{0.20, 0.30, 0.40, 0.50, 0.60}
)

func linear(xs, ys []float64) solver.Func {
	return func(x float64) (float64, error) {
		if x <= xs[0] {
			return ys[0], nil
		}
		for i := 1; i < len(xs); i++ {
			if x <= xs[i] {
				w := (x - xs[i-1]) / (xs[i] - xs[i-1])
				return ys[i-1] + w*(ys[i]-ys[i-1]), nil
			}
		}
		return ys[len(ys)-1], nil
	}
}

func search(strategy config.BracketStrategy) solver.FactorSearch {
	cfg := config.Default()
	cfg.BracketStrategy = strategy
	return solver.NewFactorSearch(cfg, 1e-12, 1e-12)
}

func TestFactorSearchConstantStrike(t *testing.T) {
	strikeAt := func(float64) (float64, error) { return 0.12, nil }
	for _, strategy := range []config.BracketStrategy{config.BracketTable, config.BracketFullDomain} {
		corr, err := search(strategy).Find(strikeAt, linear(knotStrikes, knotCorrs), knotStrikes, knotCorrs)
		require.NoError(t, err, strategy.String())
		assert.InDelta(t, 0.44, corr, 1e-9, strategy.String())
	}
}

func TestFactorSearchSolutionLiesBetweenKnots(t *testing.T) {
	// Strike grows with the factor, as expected loss does for senior levels.
	strikeAt := func(x float64) (float64, error) { return 0.2 * x, nil }
	corrAt := linear(knotStrikes, knotCorrs)

	corr, err := search(config.BracketTable).Find(strikeAt, corrAt, knotStrikes, knotCorrs)
	require.NoError(t, err)

	k, _ := strikeAt(math.Sqrt(corr))
	back, _ := corrAt(k)
	assert.InDelta(t, corr, back, 1e-9)

	// k lies in (0.10, 0.15], so corr must lie between the matching knots.
	assert.Greater(t, k, knotStrikes[2])
	assert.LessOrEqual(t, k, knotStrikes[3])
	assert.GreaterOrEqual(t, corr, knotCorrs[2])
	assert.LessOrEqual(t, corr, knotCorrs[3])
}

func TestFactorSearchExactKnot(t *testing.T) {
	// S(sqrt(0.4)) equals the third knot strike.
	strikeAt := func(x float64) (float64, error) { return 0.1 * x * x / 0.4, nil }
	corr, err := search(config.BracketTable).Find(strikeAt, linear(knotStrikes, knotCorrs), knotStrikes, knotCorrs)
	require.NoError(t, err)
	assert.InDelta(t, 0.4, corr, 1e-9)
}

func TestFactorSearchNonMonotoneTable(t *testing.T) {
	strikes := []float64{0.03, 0.07, 0.10}
	corrs := []float64{0.3, 0.2, 0.35}
	strikeAt := func(float64) (float64, error) { return 0.05, nil }
	corr, err := search(config.BracketTable).Find(strikeAt, linear(strikes, corrs), strikes, corrs)
	require.NoError(t, err)
	assert.InDelta(t, 0.25, corr, 1e-9)
}

func TestFactorSearchLengthMismatch(t *testing.T) {
	_, err := search(config.BracketTable).Find(cubic, cubic, []float64{1, 2}, []float64{1})
	assert.Error(t, err)
}
