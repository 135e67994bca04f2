package cdo

import (
	"fmt"
	"math"
	"time"

	"github.com/meenmo/basecorr/basket"
	"github.com/meenmo/basecorr/calendar"
	"github.com/meenmo/basecorr/curve"
	"github.com/meenmo/basecorr/utils"
)

type period struct {
	start   time.Time
	end     time.Time
	accrual float64
}

// Pricer values a tranche from the protection seller's side: FeePv is
// received, ProtectionPv (negative) is paid. Amounts are in currency units of
// the tranche notional, which is the tranche width times the basket principal.
type Pricer struct {
	tranche  Tranche
	basket   basket.Basket
	discount *curve.DiscountCurve
	periods  []period
}

// NewPricer validates the tranche and builds its premium schedule.
func NewPricer(tr Tranche, b basket.Basket, discount *curve.DiscountCurve) (*Pricer, error) {
	if err := tr.Validate(); err != nil {
		return nil, err
	}
	if b == nil {
		return nil, fmt.Errorf("NewPricer: nil basket for %s", tr.Name)
	}
	if discount == nil {
		return nil, fmt.Errorf("NewPricer: nil discount curve for %s", tr.Name)
	}

	dates, err := calendar.PremiumDates(tr.Calendar, tr.Effective, tr.Maturity, tr.frequency())
	if err != nil {
		return nil, fmt.Errorf("NewPricer: %w", err)
	}
	asOf := b.AsOf()
	p := &Pricer{tranche: tr, basket: b, discount: discount}
	start := tr.Effective
	for _, end := range dates {
		if end.After(asOf) {
			p.periods = append(p.periods, period{
				start:   start,
				end:     end,
				accrual: utils.YearFraction(start, end, tr.dayCount()),
			})
		}
		start = end
	}
	return p, nil
}

// Tranche returns the tranche terms.
func (p *Pricer) Tranche() Tranche { return p.tranche }

// Basket returns the loss model.
func (p *Pricer) Basket() basket.Basket { return p.basket }

// Discount returns the discount curve.
func (p *Pricer) Discount() *curve.DiscountCurve { return p.discount }

// Notional is the tranche notional in currency.
func (p *Pricer) Notional() float64 {
	return p.tranche.Width() * p.basket.TotalPrincipal()
}

// WithTranche reprices the same basket and curve for other levels.
func (p *Pricer) WithTranche(attach, detach float64) (*Pricer, error) {
	return NewPricer(p.tranche.WithLevels(attach, detach), p.basket, p.discount)
}

// WithPremium returns a pricer for the same tranche with other coupon terms.
func (p *Pricer) WithPremium(premium, fee float64) *Pricer {
	out := *p
	out.tranche.Premium = premium
	out.tranche.Fee = fee
	return &out
}

// WithBasket returns a pricer of the same tranche on another basket.
func (p *Pricer) WithBasket(b basket.Basket) *Pricer {
	out := *p
	out.basket = b
	return &out
}

// lossFraction is the expected loss of the tranche at t per unit of tranche notional.
func (p *Pricer) lossFraction(t time.Time) float64 {
	tr := p.tranche
	return p.basket.AccumulatedLoss(t, tr.Attachment, tr.Detachment) / tr.Width()
}

// outstanding is the expected surviving tranche notional fraction at t.
func (p *Pricer) outstanding(t time.Time) float64 {
	tr := p.tranche
	gone := p.basket.AccumulatedLoss(t, tr.Attachment, tr.Detachment) +
		p.basket.AmortizedAmount(t, tr.Attachment, tr.Detachment)
	return math.Max(0, 1-gone/tr.Width())
}

// ExpectedLoss is the expected tranche loss at maturity per unit notional.
func (p *Pricer) ExpectedLoss() float64 {
	return p.lossFraction(p.tranche.Maturity)
}

// ProtectionPv discounts expected tranche loss increments at period midpoints.
// The result is negative for a protection seller.
func (p *Pricer) ProtectionPv() float64 {
	asOf := p.basket.AsOf()
	prev := asOf
	prevLoss := p.lossFraction(asOf)
	pv := 0.0
	for _, per := range p.periods {
		loss := p.lossFraction(per.end)
		mid := prev.Add(per.end.Sub(prev) / 2)
		pv += p.discount.DF(mid) * (loss - prevLoss)
		prev, prevLoss = per.end, loss
	}
	return -pv * p.Notional()
}

// Pv01 is the premium leg value of a unit running spread, excluding the fee.
func (p *Pricer) Pv01() float64 {
	annuity := 0.0
	prevOut := p.outstanding(p.basket.AsOf())
	for _, per := range p.periods {
		out := p.outstanding(per.end)
		annuity += per.accrual * p.discount.DF(per.end) * 0.5 * (prevOut + out)
		prevOut = out
	}
	return annuity * p.Notional()
}

// FeePv is the running premium leg plus the upfront fee.
func (p *Pricer) FeePv() float64 {
	return p.tranche.Premium*p.Pv01() + p.tranche.Fee*p.Notional()
}

// Pv is the protection seller's value.
func (p *Pricer) Pv() float64 {
	return p.ProtectionPv() + p.FeePv()
}

// BreakEvenPremium is the running spread that sets Pv to zero given the fee.
func (p *Pricer) BreakEvenPremium() float64 {
	pv01 := p.Pv01()
	if pv01 <= 0 {
		return math.NaN()
	}
	return (-p.ProtectionPv() - p.tranche.Fee*p.Notional()) / pv01
}

// BreakEvenFee is the upfront fee that sets Pv to zero given the premium.
func (p *Pricer) BreakEvenFee() float64 {
	n := p.Notional()
	if n <= 0 {
		return math.NaN()
	}
	return (-p.ProtectionPv() - p.tranche.Premium*p.Pv01()) / n
}
