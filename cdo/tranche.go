// Package cdo prices synthetic CDO tranches against a basket loss model.
package cdo

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/meenmo/basecorr/calendar"
	"github.com/meenmo/basecorr/utils"
)

var (
	// ErrInvalidTranche reports malformed tranche terms.
	ErrInvalidTranche = errors.New("cdo: invalid tranche")
	// ErrInvalidLadder reports a tranche ladder that cannot be bootstrapped.
	ErrInvalidLadder = errors.New("cdo: invalid tranche ladder")
)

// Tranche holds the contractual terms of a CDO tranche.
type Tranche struct {
	Name       string
	Attachment float64
	Detachment float64
	Effective  time.Time
	Maturity   time.Time

	// Premium is the running spread in decimal (0.05 = 500bp).
	Premium float64
	// Fee is the upfront payment as a fraction of tranche notional.
	Fee float64

	// FrequencyMonths is the premium period; zero means quarterly.
	FrequencyMonths int
	// DayCount defaults to ACT/360.
	DayCount string
	Calendar calendar.CalendarID
}

// Width is the thickness of the tranche.
func (t Tranche) Width() float64 {
	return t.Detachment - t.Attachment
}

// IsBase reports whether the tranche attaches at zero.
func (t Tranche) IsBase() bool {
	return math.Abs(t.Attachment) < 1e-12
}

// WithLevels returns a copy with new attachment and detachment points.
func (t Tranche) WithLevels(attach, detach float64) Tranche {
	t.Attachment, t.Detachment = attach, detach
	t.Name = fmt.Sprintf("%s[%.4g-%.4g]", baseName(t.Name), attach, detach)
	return t
}

func baseName(name string) string {
	for i := 0; i < len(name); i++ {
		if name[i] == '[' {
			return name[:i]
		}
	}
	return name
}

// Validate checks the terms.
func (t Tranche) Validate() error {
	if t.Attachment < 0 || t.Detachment > 1+1e-12 || t.Detachment <= t.Attachment {
		return fmt.Errorf("%w: levels [%v, %v]", ErrInvalidTranche, t.Attachment, t.Detachment)
	}
	if !t.Maturity.After(t.Effective) {
		return fmt.Errorf("%w: maturity %s not after effective %s", ErrInvalidTranche,
			t.Maturity.Format(utils.DateLayout), t.Effective.Format(utils.DateLayout))
	}
	if math.IsNaN(t.Premium) || math.IsNaN(t.Fee) {
		return fmt.Errorf("%w: NaN premium or fee", ErrInvalidTranche)
	}
	if t.FrequencyMonths < 0 {
		return fmt.Errorf("%w: negative frequency", ErrInvalidTranche)
	}
	return nil
}

func (t Tranche) frequency() int {
	if t.FrequencyMonths == 0 {
		return 3
	}
	return t.FrequencyMonths
}

func (t Tranche) dayCount() string {
	if t.DayCount == "" {
		return utils.Act360
	}
	return t.DayCount
}
