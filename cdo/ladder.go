package cdo

import (
	"fmt"
	"math"

	"github.com/meenmo/basecorr/utils"
)

const levelTolerance = 1e-9

// ValidateLadder checks that pricers describe a contiguous capital structure
// starting at zero with a common maturity.
func ValidateLadder(pricers []*Pricer) error {
	if len(pricers) == 0 {
		return fmt.Errorf("%w: no tranches", ErrInvalidLadder)
	}
	if pricers[0] == nil {
		return fmt.Errorf("%w: nil pricer at 0", ErrInvalidLadder)
	}
	first := pricers[0].Tranche()
	if !first.IsBase() {
		return fmt.Errorf("%w: first attachment %v is not zero", ErrInvalidLadder, first.Attachment)
	}
	prevDetach := 0.0
	for i, p := range pricers {
		if p == nil {
			return fmt.Errorf("%w: nil pricer at %d", ErrInvalidLadder, i)
		}
		tr := p.Tranche()
		if math.Abs(tr.Attachment-prevDetach) > levelTolerance {
			return fmt.Errorf("%w: tranche %d attaches at %v, previous detaches at %v",
				ErrInvalidLadder, i, tr.Attachment, prevDetach)
		}
		if !utils.SameDay(tr.Maturity, first.Maturity) {
			return fmt.Errorf("%w: tranche %d matures %s, expected %s", ErrInvalidLadder, i,
				tr.Maturity.Format(utils.DateLayout), first.Maturity.Format(utils.DateLayout))
		}
		prevDetach = tr.Detachment
	}
	return nil
}

// Detachments lists the detachment points of a ladder.
func Detachments(pricers []*Pricer) []float64 {
	out := make([]float64, len(pricers))
	for i, p := range pricers {
		out[i] = p.Tranche().Detachment
	}
	return out
}
