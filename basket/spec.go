package basket

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/meenmo/basecorr/curve"
	"github.com/meenmo/basecorr/utils"
)

// ErrInvalidSpec is returned by Spec.Validate.
var ErrInvalidSpec = errors.New("basket: invalid spec")

// Name is a single live reference entity of the portfolio.
type Name struct {
	ID       string
	Notional float64
	Recovery float64
	Survival *curve.SurvivalCurve
}

// Spec is an immutable description of a basket. Build turns it into a
// Gaussian basket; every derived basket is built from a modified Spec rather
// than by copying a live basket.
type Spec struct {
	AsOf     time.Time
	Maturity time.Time
	Names    []Name

	// DefaultedNotional is the principal of names that defaulted before AsOf;
	// DefaultedRecovery is the fraction of it that was recovered.
	DefaultedNotional float64
	DefaultedRecovery float64

	// Factor is the initial square root of correlation.
	Factor float64

	// QuadraturePoints is the number of Gauss-Legendre nodes over the common factor.
	QuadraturePoints int
	// LossGridSize is the loss bucket width, as a fraction of total principal,
	// used for heterogeneous portfolios.
	LossGridSize float64
	// StepMonths is the time step of the expected loss PV integration.
	StepMonths int
}

// Default numerical settings.
const (
	DefaultQuadraturePoints = 48
	DefaultLossGridSize     = 0.0025
	DefaultStepMonths       = 3
)

// Homogeneous describes n identical names sharing one survival curve.
func Homogeneous(asOf, maturity time.Time, n int, notional, recovery float64, survival *curve.SurvivalCurve) Spec {
	names := make([]Name, n)
	for i := range names {
		names[i] = Name{
			ID:       fmt.Sprintf("N%03d", i+1),
			Notional: notional,
			Recovery: recovery,
			Survival: survival,
		}
	}
	return Spec{
		AsOf:     asOf,
		Maturity: maturity,
		Names:    names,
	}
}

// WithMaturity returns a copy of s with a new horizon.
func (s Spec) WithMaturity(maturity time.Time) Spec {
	s.Names = append([]Name(nil), s.Names...)
	s.Maturity = maturity
	return s
}

// WithFactor returns a copy of s with a new initial factor.
func (s Spec) WithFactor(factor float64) Spec {
	s.Names = append([]Name(nil), s.Names...)
	s.Factor = factor
	return s
}

// TotalPrincipal is the original principal including defaulted names.
func (s Spec) TotalPrincipal() float64 {
	total := s.DefaultedNotional
	for _, n := range s.Names {
		total += n.Notional
	}
	return total
}

// Validate checks the description before any distribution is computed.
func (s Spec) Validate() error {
	if len(s.Names) == 0 {
		return fmt.Errorf("%w: no live names", ErrInvalidSpec)
	}
	if !s.Maturity.After(s.AsOf) {
		return fmt.Errorf("%w: maturity %s not after as-of %s", ErrInvalidSpec,
			s.Maturity.Format(utils.DateLayout), s.AsOf.Format(utils.DateLayout))
	}
	for _, n := range s.Names {
		if n.Notional <= 0 || math.IsNaN(n.Notional) {
			return fmt.Errorf("%w: name %s has notional %v", ErrInvalidSpec, n.ID, n.Notional)
		}
		if n.Recovery < 0 || n.Recovery >= 1 {
			return fmt.Errorf("%w: name %s has recovery %v", ErrInvalidSpec, n.ID, n.Recovery)
		}
		if n.Survival == nil {
			return fmt.Errorf("%w: name %s has no survival curve", ErrInvalidSpec, n.ID)
		}
	}
	if s.DefaultedNotional < 0 || s.DefaultedRecovery < 0 || s.DefaultedRecovery > 1 {
		return fmt.Errorf("%w: defaulted notional %v recovery %v", ErrInvalidSpec,
			s.DefaultedNotional, s.DefaultedRecovery)
	}
	if s.QuadraturePoints < 0 || s.LossGridSize < 0 || s.StepMonths < 0 {
		return fmt.Errorf("%w: negative numerical setting", ErrInvalidSpec)
	}
	return nil
}

// Build validates the spec and returns a Gaussian basket.
func (s Spec) Build() (*Gaussian, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	if s.QuadraturePoints == 0 {
		s.QuadraturePoints = DefaultQuadraturePoints
	}
	if s.LossGridSize == 0 {
		s.LossGridSize = DefaultLossGridSize
	}
	if s.StepMonths == 0 {
		s.StepMonths = DefaultStepMonths
	}
	return newGaussian(s), nil
}
