// Package strike maps tranche detachment points to the strike coordinate a
// base correlation smile is interpolated on.
package strike

import (
	"fmt"
	"strings"
)

// Method is a strike convention.
type Method int

const (
	Unscaled Method = iota
	ExpectedLoss
	ExpectedLossPV
	ExpectedLossRatio
	ExpectedLossPvRatio
	EquityProtection
	EquityProtectionPv
	Protection
	ProtectionPv
	Probability
	EquitySpread
	SeniorSpread
	UserDefined
	ExpectedLossForward
	ExpectedLossPVForward
	ExpectedLossRatioForward
	EquityProtectionForward
	ProtectionForward
	EquityProtectionPvForward
	ProtectionPvForward
)

var methodNames = map[Method]string{
	Unscaled:                  "Unscaled",
	ExpectedLoss:              "ExpectedLoss",
	ExpectedLossPV:            "ExpectedLossPV",
	ExpectedLossRatio:         "ExpectedLossRatio",
	ExpectedLossPvRatio:       "ExpectedLossPvRatio",
	EquityProtection:          "EquityProtection",
	EquityProtectionPv:        "EquityProtectionPv",
	Protection:                "Protection",
	ProtectionPv:              "ProtectionPv",
	Probability:               "Probability",
	EquitySpread:              "EquitySpread",
	SeniorSpread:              "SeniorSpread",
	UserDefined:               "UserDefined",
	ExpectedLossForward:       "ExpectedLossForward",
	ExpectedLossPVForward:     "ExpectedLossPVForward",
	ExpectedLossRatioForward:  "ExpectedLossRatioForward",
	EquityProtectionForward:   "EquityProtectionForward",
	ProtectionForward:         "ProtectionForward",
	EquityProtectionPvForward: "EquityProtectionPvForward",
	ProtectionPvForward:       "ProtectionPvForward",
}

func (m Method) String() string {
	if s, ok := methodNames[m]; ok {
		return s
	}
	return fmt.Sprintf("Method(%d)", int(m))
}

// ParseMethod is case-insensitive.
func ParseMethod(s string) (Method, error) {
	for m, name := range methodNames {
		if strings.EqualFold(name, s) {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown strike method %q", s)
}

// IsForward reports methods that net out losses realized before the as-of date.
func (m Method) IsForward() bool {
	switch m {
	case ExpectedLossForward, ExpectedLossPVForward, ExpectedLossRatioForward,
		EquityProtectionForward, ProtectionForward,
		EquityProtectionPvForward, ProtectionPvForward:
		return true
	}
	return false
}

// IsPV reports methods that discount losses and therefore need a discount curve.
func (m Method) IsPV() bool {
	switch m {
	case ExpectedLossPV, ExpectedLossPvRatio, EquityProtectionPv, ProtectionPv,
		EquitySpread, SeniorSpread,
		ExpectedLossPVForward, EquityProtectionPvForward, ProtectionPvForward:
		return true
	}
	return false
}

// DependsOnCorrelation reports whether the strike moves with the basket factor.
func (m Method) DependsOnCorrelation() bool {
	switch m {
	case Unscaled, ExpectedLoss, ExpectedLossPV, ExpectedLossForward, ExpectedLossPVForward:
		return false
	}
	return true
}

// IsDecreasing reports the break-even spread methods. The underlying spread
// falls as detachment rises and has no value at zero detachment.
func (m Method) IsDecreasing() bool {
	return m == EquitySpread || m == SeniorSpread
}

func (m Method) valid() bool {
	_, ok := methodNames[m]
	return ok
}
