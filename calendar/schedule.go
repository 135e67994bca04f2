package calendar

import (
	"fmt"
	"time"

	"github.com/meenmo/basecorr/utils"
)

// NextIMMDate returns the first CDS roll date (20 Mar/Jun/Sep/Dec) strictly after t.
func NextIMMDate(t time.Time) time.Time {
	y, m := t.Year(), t.Month()
	for i := 0; i < 5; i++ {
		cand := time.Date(y, m, 20, 0, 0, 0, 0, time.UTC)
		if int(m)%3 == 0 && cand.After(t) {
			return cand
		}
		m++
		if m > time.December {
			m = time.January
			y++
		}
	}
	// unreachable: a quarter month always appears within five steps
	return time.Date(y, m, 20, 0, 0, 0, 0, time.UTC)
}

// PremiumDates rolls backward from maturity in steps of months and returns the
// payment dates strictly after effective. Every date but the last is adjusted
// Modified Following; the final date stays on maturity so the protection period
// ends exactly there.
func PremiumDates(cal CalendarID, effective, maturity time.Time, months int) ([]time.Time, error) {
	if months <= 0 {
		return nil, fmt.Errorf("PremiumDates: months must be positive, got %d", months)
	}
	if !maturity.After(effective) {
		return nil, fmt.Errorf("PremiumDates: maturity %s not after effective %s",
			maturity.Format(utils.DateLayout), effective.Format(utils.DateLayout))
	}

	unadjusted := []time.Time{}
	for k := 0; ; k++ {
		d := utils.AddMonth(maturity, -months*k)
		if !d.After(effective) {
			break
		}
		unadjusted = append([]time.Time{d}, unadjusted...)
	}

	dates := make([]time.Time, 0, len(unadjusted))
	for i, d := range unadjusted {
		if i < len(unadjusted)-1 {
			d = Adjust(cal, d)
		}
		if len(dates) > 0 && !d.After(dates[len(dates)-1]) {
			continue
		}
		dates = append(dates, d)
	}
	return dates, nil
}
