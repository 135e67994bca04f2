package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meenmo/basecorr/config"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, config.Default().Validate())
	assert.Equal(t, 1000, config.DefaultConfig.MaxIterations)
	assert.Equal(t, 7, config.DefaultConfig.InitialSearchPoints)
}

func TestValidate(t *testing.T) {
	c := config.Default()
	c.MaxCorrelation = 0
	assert.ErrorIs(t, c.Validate(), config.ErrInvalidConfig)

	c = config.Default()
	c.InitialSearchPoints = 0
	assert.ErrorIs(t, c.Validate(), config.ErrInvalidConfig)
}

func TestLoadEnv(t *testing.T) {
	t.Setenv("BASECORR_TOLERANCE_F", "1e-8")
	t.Setenv("BASECORR_MAX_CORRELATION", "1.5")
	t.Setenv("BASECORR_BRACKET_STRATEGY", "full")
	t.Setenv("BASECORR_PARALLEL", "true")
	t.Setenv("LOG_LEVEL", "debug")

	env, err := config.LoadEnv()
	require.NoError(t, err)
	assert.Equal(t, 1e-8, env.Calibration.ToleranceF)
	assert.Equal(t, 1.5, env.Calibration.MaxCorrelation)
	assert.Equal(t, config.BracketFullDomain, env.Calibration.BracketStrategy)
	assert.True(t, env.Calibration.Parallel)
	assert.Equal(t, "debug", env.LogLevel)
}

func TestLoadEnvRejectsGarbage(t *testing.T) {
	t.Setenv("BASECORR_MAX_ITERATIONS", "many")
	_, err := config.LoadEnv()
	assert.Error(t, err)

	t.Setenv("BASECORR_MAX_ITERATIONS", "")
	t.Setenv("BASECORR_BRACKET_STRATEGY", "sideways")
	_, err = config.LoadEnv()
	assert.Error(t, err)
}
