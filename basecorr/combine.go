package basecorr

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// strikeMatch merges union strikes closer than this.
const strikeMatch = 1e-14

// CombineSmiles blends smiles sharing a strike method. The result has the
// union of their strikes; each correlation is the weight-normalized sum of
// the inputs interpolated at that strike. Options come from the first smile.
func CombineSmiles(smiles []*Smile, weights []float64) (*Smile, error) {
	if len(smiles) == 0 || len(smiles) != len(weights) {
		return nil, fmt.Errorf("%w: %d smiles vs %d weights", ErrInvalidInput, len(smiles), len(weights))
	}
	total := 0.0
	for i, s := range smiles {
		if s.opts.StrikeMethod != smiles[0].opts.StrikeMethod {
			return nil, fmt.Errorf("%w: strike method %s differs from %s", ErrInvalidInput,
				s.opts.StrikeMethod, smiles[0].opts.StrikeMethod)
		}
		total += weights[i]
	}
	if total == 0 || math.IsNaN(total) {
		return nil, fmt.Errorf("%w: weights sum to %v", ErrInvalidInput, total)
	}

	strikes := unionStrikes(smiles)
	correlations := make([]float64, len(strikes))
	for j, k := range strikes {
		sum := 0.0
		for i, s := range smiles {
			c, err := s.CorrelationAt(k)
			if err != nil {
				return nil, err
			}
			sum += weights[i] * c
		}
		correlations[j] = sum / total
	}

	out, err := NewSmile(strikes, correlations, smiles[0].opts)
	if err != nil {
		return nil, err
	}
	out.maturity = commonMaturity(smiles)
	return out, nil
}

// unionStrikes returns the sorted distinct finite strikes of all smiles.
func unionStrikes(smiles []*Smile) []float64 {
	var all []float64
	for _, s := range smiles {
		for _, k := range s.table.Strikes {
			if !math.IsNaN(k) {
				all = append(all, k)
			}
		}
	}
	sort.Float64s(all)
	out := all[:0]
	for _, k := range all {
		if len(out) == 0 || k-out[len(out)-1] > strikeMatch {
			out = append(out, k)
		}
	}
	return out
}

func commonMaturity(smiles []*Smile) time.Time {
	m := smiles[0].maturity
	for _, s := range smiles[1:] {
		if !s.maturity.Equal(m) {
			return time.Time{}
		}
	}
	return m
}
