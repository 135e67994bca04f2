// Package config holds the numerical settings of a calibration run. A Config
// is a plain value passed into each calibration; there is no package state.
package config

import (
	"errors"
	"fmt"
)

// BracketStrategy selects how the factor search seeds Brent's method.
type BracketStrategy int

const (
	// BracketTable binary-searches a monotone (strike, correlation) table for
	// a two-point bracket before refining.
	BracketTable BracketStrategy = iota
	// BracketFullDomain always searches the whole factor domain.
	BracketFullDomain
)

func (s BracketStrategy) String() string {
	switch s {
	case BracketTable:
		return "table"
	case BracketFullDomain:
		return "full"
	default:
		return fmt.Sprintf("BracketStrategy(%d)", int(s))
	}
}

// ParseBracketStrategy maps "table" / "full" to a strategy.
func ParseBracketStrategy(s string) (BracketStrategy, error) {
	switch s {
	case "table", "":
		return BracketTable, nil
	case "full":
		return BracketFullDomain, nil
	default:
		return 0, fmt.Errorf("unknown bracket strategy %q", s)
	}
}

// Config holds solver and calibration parameters.
type Config struct {
	// ToleranceF is the relative objective tolerance. Zero or negative derives
	// it from the basket principal.
	ToleranceF float64

	// ToleranceX is the factor tolerance. Zero or negative derives it from ToleranceF.
	ToleranceX float64

	// MaxIterations bounds every Brent solve.
	MaxIterations int

	// InitialSearchPoints is the number of intervals of the coarse factor table
	// used to bracket break-even and protection-matching solves.
	InitialSearchPoints int

	// MinCorrelation and MaxCorrelation bound solved and bumped correlations.
	// MaxCorrelation may exceed 1 for extended models.
	MinCorrelation float64
	MaxCorrelation float64

	// FactorFloor keeps the search away from a degenerate zero factor.
	FactorFloor float64

	// RetryBracketStart is the first point probed when a failed bracketed solve
	// is retried over the whole domain.
	RetryBracketStart float64

	BracketStrategy BracketStrategy

	// ExactStrikeMatch returns a stored correlation without interpolation when
	// the requested strike equals a knot within 1e-15.
	ExactStrikeMatch bool

	// Parallel calibrates maturity-matched tenors concurrently.
	Parallel bool
}

// DefaultConfig provides production-ready default values.
var DefaultConfig = Config{
	ToleranceF:          0,
	ToleranceX:          0,
	MaxIterations:       1000,
	InitialSearchPoints: 7,
	MinCorrelation:      0,
	MaxCorrelation:      1,
	FactorFloor:         1e-10,
	RetryBracketStart:   0.4,
	BracketStrategy:     BracketTable,
}

// Default returns a copy of DefaultConfig.
func Default() Config {
	return DefaultConfig
}

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("config: invalid")

// Validate rejects inconsistent settings.
func (c Config) Validate() error {
	if c.MaxIterations <= 0 {
		return fmt.Errorf("%w: MaxIterations %d", ErrInvalidConfig, c.MaxIterations)
	}
	if c.InitialSearchPoints < 1 {
		return fmt.Errorf("%w: InitialSearchPoints %d", ErrInvalidConfig, c.InitialSearchPoints)
	}
	if c.MaxCorrelation <= c.MinCorrelation {
		return fmt.Errorf("%w: correlation bounds [%v, %v]", ErrInvalidConfig, c.MinCorrelation, c.MaxCorrelation)
	}
	if c.MaxCorrelation > 2 || c.MinCorrelation < -1 {
		return fmt.Errorf("%w: correlation bounds [%v, %v] outside [-1, 2]", ErrInvalidConfig, c.MinCorrelation, c.MaxCorrelation)
	}
	if c.FactorFloor <= 0 || c.FactorFloor >= 0.1 {
		return fmt.Errorf("%w: FactorFloor %v", ErrInvalidConfig, c.FactorFloor)
	}
	if c.RetryBracketStart <= 0 {
		return fmt.Errorf("%w: RetryBracketStart %v", ErrInvalidConfig, c.RetryBracketStart)
	}
	return nil
}
