package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Env bundles the calibration config with process-level settings read from
// the environment.
type Env struct {
	Calibration Config
	LogLevel    string
	LogPretty   bool
}

// LoadEnv reads overrides of DefaultConfig from the environment, after
// loading a .env file if one exists.
func LoadEnv() (*Env, error) {
	_ = godotenv.Load()

	c := Default()
	var err error
	if c.ToleranceF, err = getEnvAsFloat("BASECORR_TOLERANCE_F", c.ToleranceF); err != nil {
		return nil, err
	}
	if c.ToleranceX, err = getEnvAsFloat("BASECORR_TOLERANCE_X", c.ToleranceX); err != nil {
		return nil, err
	}
	if c.MaxCorrelation, err = getEnvAsFloat("BASECORR_MAX_CORRELATION", c.MaxCorrelation); err != nil {
		return nil, err
	}
	if c.MaxIterations, err = getEnvAsInt("BASECORR_MAX_ITERATIONS", c.MaxIterations); err != nil {
		return nil, err
	}
	if c.InitialSearchPoints, err = getEnvAsInt("BASECORR_SEARCH_POINTS", c.InitialSearchPoints); err != nil {
		return nil, err
	}
	if c.BracketStrategy, err = ParseBracketStrategy(getEnv("BASECORR_BRACKET_STRATEGY", "table")); err != nil {
		return nil, err
	}
	c.Parallel = getEnvAsBool("BASECORR_PARALLEL", false)

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &Env{
		Calibration: c,
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogPretty:   getEnvAsBool("LOG_PRETTY", false),
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return f, nil
}

func getEnvAsInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
