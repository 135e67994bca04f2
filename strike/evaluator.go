package strike

import (
	"errors"
	"fmt"
	"math"

	"github.com/meenmo/basecorr/basket"
	"github.com/meenmo/basecorr/cdo"
	"github.com/meenmo/basecorr/curve"
	"github.com/meenmo/basecorr/utils"
)

var (
	ErrMissingBasket        = errors.New("strike: basket required")
	ErrMissingDiscountCurve = errors.New("strike: discount curve required")
	ErrMissingUserStrike    = errors.New("strike: user strike evaluator required")
	ErrInvalidDetachment    = errors.New("strike: detachment outside [0, 1]")
)

// zeroDetachment is the level below which a detachment is treated as zero.
const zeroDetachment = 1e-12

// UserStrike computes strikes for the UserDefined method. Implementations
// own whatever pricing state they need and read the level from ctx.
type UserStrike interface {
	Strike(ctx Context, factor float64) (float64, error)
}

// Context is everything a strike evaluation reads. Pricer is optional and
// only supplies premium schedule conventions; the evaluator always prices the
// base tranche [0, Detachment] to the basket maturity.
type Context struct {
	Basket     basket.Basket
	Pricer     *cdo.Pricer
	Discount   *curve.DiscountCurve
	Detachment float64
	User       UserStrike
}

// Evaluator computes the strike of one detachment point. It sets the basket
// factor on every Strike call and is therefore bound to a single goroutine.
type Evaluator struct {
	method Method
	ctx    Context

	level    float64
	realized float64
	scale    float64
	zero     bool

	base   *cdo.Pricer
	senior *cdo.Pricer
}

// New validates ctx for method and computes the normalizing scale once.
func New(method Method, ctx Context) (*Evaluator, error) {
	if !method.valid() {
		return nil, fmt.Errorf("strike: unknown method %d", int(method))
	}
	if ctx.Pricer != nil {
		if ctx.Basket == nil {
			ctx.Basket = ctx.Pricer.Basket()
		}
		if ctx.Discount == nil {
			ctx.Discount = ctx.Pricer.Discount()
		}
	}
	d := ctx.Detachment
	if math.IsNaN(d) || d < 0 || d > 1+zeroDetachment {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDetachment, d)
	}

	e := &Evaluator{method: method, ctx: ctx, level: d, scale: 1}
	if method == UserDefined {
		if ctx.User == nil {
			return nil, ErrMissingUserStrike
		}
		return e, nil
	}
	if d < zeroDetachment {
		e.zero = true
		return e, nil
	}
	if method == Unscaled {
		return e, nil
	}
	if ctx.Basket == nil {
		return nil, fmt.Errorf("%w for %s", ErrMissingBasket, method)
	}
	if method.IsPV() && ctx.Discount == nil {
		return nil, fmt.Errorf("%w for %s", ErrMissingDiscountCurve, method)
	}
	if err := e.init(); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *Evaluator) init() error {
	b := e.ctx.Basket
	d := e.ctx.Detachment
	lost, amortized := b.DefaultedLoss(), b.DefaultedAmortization()
	remaining := 1 - lost - amortized

	if e.method.IsForward() {
		_, fd := AdjustLevels(0, d, lost, amortized)
		e.level = fd * remaining
		e.realized = math.Min(lost, d)
	}

	principal := b.TotalPrincipal()
	switch e.method {
	case ExpectedLoss, ExpectedLossRatio:
		el := lost + b.BasketLoss(b.AsOf(), b.Maturity())
		if el <= 0 {
			return fmt.Errorf("strike: %s: portfolio expected loss is zero", e.method)
		}
		e.scale = 1 / el
	case ExpectedLossForward, ExpectedLossRatioForward:
		el := b.BasketLoss(b.AsOf(), b.Maturity())
		if el <= 0 {
			return fmt.Errorf("strike: %s: portfolio expected loss is zero", e.method)
		}
		e.scale = 1 / el
	case ExpectedLossPV, ExpectedLossPVForward:
		pv := b.BasketLossPv(e.ctx.Discount)
		if pv <= 0 {
			return fmt.Errorf("strike: %s: portfolio loss PV is zero", e.method)
		}
		e.scale = 1 / pv
	case ExpectedLossPvRatio:
		pv := b.BasketLossPv(e.ctx.Discount)
		if pv <= 0 || principal <= 0 {
			return fmt.Errorf("strike: %s: portfolio loss PV is zero", e.method)
		}
		e.scale = 1 / (pv * principal)
	case EquityProtection:
		e.scale = 1 / d
	case EquityProtectionForward:
		e.scale = inverse(e.level)
	case ProtectionForward:
		e.scale = inverse(remaining)
	case EquityProtectionPv:
		e.scale = inverse(d * principal)
	case EquityProtectionPvForward:
		e.scale = inverse(e.level * principal)
	case ProtectionPv:
		e.scale = inverse(principal)
	case ProtectionPvForward:
		e.scale = inverse(remaining * principal)
	}

	if e.method.IsPV() && e.method != ExpectedLossPV && e.method != ExpectedLossPVForward {
		base, err := e.pricer(0, d)
		if err != nil {
			return err
		}
		e.base = base
		if e.method == SeniorSpread && d < 1-zeroDetachment {
			if e.senior, err = e.pricer(d, 1); err != nil {
				return err
			}
		}
	}
	return nil
}

// pricer builds a zero-coupon tranche on the context basket, maturing with it.
func (e *Evaluator) pricer(attach, detach float64) (*cdo.Pricer, error) {
	b := e.ctx.Basket
	tr := cdo.Tranche{Name: "strike", Effective: b.AsOf()}
	if e.ctx.Pricer != nil {
		tr = e.ctx.Pricer.Tranche()
	}
	tr = tr.WithLevels(attach, detach)
	tr.Maturity = b.Maturity()
	tr.Premium, tr.Fee = 0, 0
	p, err := cdo.NewPricer(tr, b, e.ctx.Discount)
	if err != nil {
		return nil, fmt.Errorf("strike: %s: %w", e.method, err)
	}
	return p, nil
}

func inverse(x float64) float64 {
	if x <= 0 {
		return 0
	}
	return 1 / x
}

// Method returns the strike convention.
func (e *Evaluator) Method() Method { return e.method }

// Detachment returns the level being evaluated.
func (e *Evaluator) Detachment() float64 { return e.ctx.Detachment }

// Scale is the normalizing multiplier applied to the raw loss measure.
func (e *Evaluator) Scale() float64 { return e.scale }

// Strike loads factor into the basket and evaluates the strike.
func (e *Evaluator) Strike(factor float64) (float64, error) {
	if e.method == UserDefined {
		return e.ctx.User.Strike(e.ctx, factor)
	}
	if e.zero || !e.method.DependsOnCorrelation() {
		return e.Current()
	}
	e.ctx.Basket.SetFactor(factor)
	return e.Current()
}

// Current evaluates the strike at the factor already loaded in the basket.
func (e *Evaluator) Current() (float64, error) {
	if e.zero {
		if e.method.IsDecreasing() {
			return math.NaN(), nil
		}
		return 0, nil
	}

	b := e.ctx.Basket
	switch e.method {
	case Unscaled:
		return e.ctx.Detachment, nil
	case UserDefined:
		factor := math.NaN()
		if b != nil {
			factor = b.Factor()
		}
		return e.ctx.User.Strike(e.ctx, factor)
	case ExpectedLoss, ExpectedLossPV, ExpectedLossForward, ExpectedLossPVForward:
		return e.level * e.scale, nil
	case ExpectedLossRatio, EquityProtection, Protection,
		ExpectedLossRatioForward, EquityProtectionForward, ProtectionForward:
		loss := b.AccumulatedLoss(b.Maturity(), 0, e.ctx.Detachment) - e.realized
		return math.Max(loss, 0) * e.scale, nil
	case ExpectedLossPvRatio, EquityProtectionPv, ProtectionPv,
		EquityProtectionPvForward, ProtectionPvForward:
		return -e.base.ProtectionPv() * e.scale, nil
	case Probability:
		return b.CalcLossDistribution(b.Maturity(), []float64{e.ctx.Detachment})[0], nil
	case EquitySpread:
		return 1 - e.base.BreakEvenPremium(), nil
	case SeniorSpread:
		if e.senior == nil {
			return math.NaN(), nil
		}
		return 1 - e.senior.BreakEvenPremium(), nil
	}
	return math.NaN(), fmt.Errorf("strike: unhandled method %s", e.method)
}

// AdjustLevels re-expresses [attach, detach] on the portfolio that survives
// realized losses (taken from the bottom) and amortization (taken from the
// top). Levels are fractions of the surviving principal.
func AdjustLevels(attach, detach, defaultedLoss, amortized float64) (float64, float64) {
	remaining := 1 - defaultedLoss - amortized
	if remaining <= 0 {
		return 0, 0
	}
	top := 1 - amortized
	adjust := func(x float64) float64 {
		return utils.Clamp((math.Min(x, top)-defaultedLoss)/remaining, 0, 1)
	}
	return adjust(attach), adjust(detach)
}

// Strikes evaluates every detachment of ctx template at factor. The basket
// factor is left at factor.
func Strikes(method Method, ctx Context, detachments []float64, factor float64) ([]float64, error) {
	out := make([]float64, len(detachments))
	for i, d := range detachments {
		ctx.Detachment = d
		e, err := New(method, ctx)
		if err != nil {
			return nil, err
		}
		if out[i], err = e.Strike(factor); err != nil {
			return nil, err
		}
	}
	return out, nil
}
