// Package basket defines the portfolio loss model consumed by the correlation
// engine, plus a reference one-factor Gaussian copula implementation.
package basket

import (
	"time"

	"github.com/meenmo/basecorr/curve"
)

// Basket is the loss model seen by tranche pricers and strike evaluators.
//
// All loss amounts are fractions of the original total principal. A basket
// holds mutable factor state and is not safe for concurrent use; use
// WithMaturity to obtain an independent snapshot.
type Basket interface {
	AsOf() time.Time
	Maturity() time.Time
	TotalPrincipal() float64

	// Factor is the square root of the current correlation.
	Factor() float64
	SetFactor(factor float64)
	// SetFactorCurve fixes the factor on (dates[i-1], dates[i]]. Dates after
	// the last pillar use the factor set by SetFactor.
	SetFactorCurve(dates []time.Time, factors []float64) error
	// Reset drops any cached loss distributions.
	Reset()

	// AccumulatedLoss is the expected loss absorbed by [attach, detach] up to date.
	AccumulatedLoss(date time.Time, attach, detach float64) float64
	// AmortizedAmount is the expected notional written down from the top of
	// [attach, detach] by recoveries up to date.
	AmortizedAmount(date time.Time, attach, detach float64) float64
	// BasketLoss is the expected portfolio loss incurred over (start, end].
	BasketLoss(start, end time.Time) float64
	// BasketLossPv is the discounted expected portfolio loss to maturity.
	BasketLossPv(discount *curve.DiscountCurve) float64
	// CalcLossDistribution returns P(L <= level) at date for each level.
	CalcLossDistribution(date time.Time, levels []float64) []float64

	// DefaultedLoss is the loss already realized at the as-of date.
	DefaultedLoss() float64
	// DefaultedAmortization is the recovered notional of defaulted names.
	DefaultedAmortization() float64

	// WithMaturity returns an independent basket identical to this one
	// (including its current factor) but with a different horizon.
	WithMaturity(maturity time.Time) Basket
}
