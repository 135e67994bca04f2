// Package basecorr calibrates base correlation smiles and term structures
// from CDO tranche quotes and maps them back onto arbitrary tranches.
package basecorr

import (
	"fmt"
	"strings"

	"github.com/meenmo/basecorr/config"
	"github.com/meenmo/basecorr/curve"
	"github.com/meenmo/basecorr/strike"
)

// Method is the bootstrap used to turn tranche quotes into base correlations.
type Method int

const (
	// ArbitrageFree reprices each base tranche at the previous base
	// correlation with the next tranche's coupon terms.
	ArbitrageFree Method = iota
	// ProtectionMatching implies each tranche's own correlation and matches
	// cumulative protection values on the base tranches.
	ProtectionMatching
)

func (m Method) String() string {
	switch m {
	case ArbitrageFree:
		return "ArbitrageFree"
	case ProtectionMatching:
		return "ProtectionMatching"
	}
	return fmt.Sprintf("Method(%d)", int(m))
}

// ParseMethod is case-insensitive.
func ParseMethod(s string) (Method, error) {
	switch strings.ToLower(s) {
	case "arbitragefree", "arbitrage-free", "":
		return ArbitrageFree, nil
	case "protectionmatching", "protection-matching":
		return ProtectionMatching, nil
	}
	return 0, fmt.Errorf("%w: calibration method %q", ErrInvalidInput, s)
}

// Discipline controls how tenors of a term structure relate.
type Discipline int

const (
	// MaturityMatch calibrates every tenor independently.
	MaturityMatch Discipline = iota
	// TermBootstrap calibrates tenors in order, each against the factor
	// history solved for the earlier ones.
	TermBootstrap
)

func (d Discipline) String() string {
	switch d {
	case MaturityMatch:
		return "MaturityMatch"
	case TermBootstrap:
		return "TermBootstrap"
	}
	return fmt.Sprintf("Discipline(%d)", int(d))
}

// ParseDiscipline is case-insensitive.
func ParseDiscipline(s string) (Discipline, error) {
	switch strings.ToLower(s) {
	case "maturitymatch", "maturity-match", "":
		return MaturityMatch, nil
	case "termbootstrap", "termstructure", "term-structure":
		return TermBootstrap, nil
	}
	return 0, fmt.Errorf("%w: term discipline %q", ErrInvalidInput, s)
}

// Options configures smiles and the calibrator that builds them.
type Options struct {
	Method       Method
	StrikeMethod strike.Method
	Interp       Interp
	Extrap       Extrap

	// Complement interpolates on 1 - strike.
	Complement bool
	// OnFactor interpolates the square root of correlation and squares the result.
	OnFactor bool

	// User is required by strike.UserDefined.
	User strike.UserStrike

	Discipline Discipline
	// TimeInterp interpolates correlations between tenor maturities.
	TimeInterp curve.Interpolation

	Config config.Config
}

// DefaultOptions is arbitrage-free, expected-loss-ratio strikes, linear in
// strike and time, with the default calibration config.
func DefaultOptions() Options {
	return Options{
		Method:       ArbitrageFree,
		StrikeMethod: strike.ExpectedLossRatio,
		Interp:       Linear,
		Extrap:       Const,
		TimeInterp:   curve.Linear,
		Config:       config.Default(),
	}
}

// Validate checks option combinations that would fail later.
func (o Options) Validate() error {
	if o.StrikeMethod == strike.UserDefined && o.User == nil {
		return strike.ErrMissingUserStrike
	}
	if _, ok := interpNames[o.Interp]; !ok {
		return fmt.Errorf("%w: interpolation %d", ErrInvalidInput, int(o.Interp))
	}
	if err := o.Config.Validate(); err != nil {
		return err
	}
	return nil
}
