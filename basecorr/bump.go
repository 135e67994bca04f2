package basecorr

import (
	"fmt"
	"math"

	"github.com/meenmo/basecorr/utils"
)

// detachmentMatch is the distance under which two detachments are the same.
const detachmentMatch = 1e-9

// InverseRelativeBump returns the relative bump that undoes a relative bump of b.
func InverseRelativeBump(b float64) float64 {
	return -b / (1 + b)
}

// BumpCorrelations shifts every correlation by bump, absolute or relative,
// clamped to the configured bounds. It returns the average realized change.
func (s *Smile) BumpCorrelations(bump float64, relative bool) float64 {
	indices := make([]int, s.Len())
	for i := range indices {
		indices[i] = i
	}
	avg, _ := s.BumpCorrelationsAt(indices, bump, relative)
	return avg
}

// BumpCorrelationsAt shifts the correlations at indices. A repeated index
// is bumped once.
func (s *Smile) BumpCorrelationsAt(indices []int, bump float64, relative bool) (float64, error) {
	seen := make(map[int]bool, len(indices))
	for _, i := range indices {
		if i < 0 || i >= s.Len() {
			return 0, fmt.Errorf("%w: bump index %d of %d", ErrInvalidInput, i, s.Len())
		}
	}

	lo, hi := s.opts.Config.MinCorrelation, s.opts.Config.MaxCorrelation
	total, n := 0.0, 0
	for _, i := range indices {
		if seen[i] {
			continue
		}
		seen[i] = true
		old := s.table.Correlations[i]
		if math.IsNaN(old) {
			continue
		}
		v := old + bump
		if relative {
			v = old * (1 + bump)
		}
		v = utils.Clamp(v, lo, hi)
		s.table.Correlations[i] = v
		total += math.Abs(v - old)
		n++
	}
	if err := s.refit(); err != nil && !IsCalibrationError(err) {
		return 0, err
	}
	if n == 0 {
		return 0, nil
	}
	return total / float64(n), nil
}

// BumpCorrelationsByDetachment shifts the correlations of the given detachments.
func (s *Smile) BumpCorrelationsByDetachment(detachments []float64, bump float64, relative bool) (float64, error) {
	indices := make([]int, 0, len(detachments))
	for _, d := range detachments {
		i := s.detachmentIndex(d)
		if i < 0 {
			return 0, fmt.Errorf("%w: no detachment %v", ErrInvalidInput, d)
		}
		indices = append(indices, i)
	}
	return s.BumpCorrelationsAt(indices, bump, relative)
}

func (s *Smile) detachmentIndex(d float64) int {
	for i, x := range s.table.Detachments {
		if math.Abs(x-d) < detachmentMatch {
			return i
		}
	}
	return -1
}
