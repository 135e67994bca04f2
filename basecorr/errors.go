package basecorr

import (
	"errors"
	"fmt"

	"github.com/meenmo/basecorr/utils"
)

var (
	// ErrInvalidInput reports malformed arguments; it is never retried.
	ErrInvalidInput = errors.New("basecorr: invalid input")
	// ErrInvalidCorrelation reports a correlation outside [-2, 2].
	ErrInvalidCorrelation = errors.New("basecorr: invalid correlation")
)

// Table is the per-detachment output of a bootstrap. Entries not yet solved
// are NaN.
type Table struct {
	Detachments         []float64
	Strikes             []float64
	Correlations        []float64
	TrancheCorrelations []float64
}

func newTable(detachments []float64) Table {
	n := len(detachments)
	return Table{
		Detachments:         append([]float64(nil), detachments...),
		Strikes:             utils.NaNs(n),
		Correlations:        utils.NaNs(n),
		TrancheCorrelations: utils.NaNs(n),
	}
}

// Len is the number of detachment points.
func (t Table) Len() int { return len(t.Detachments) }

func (t Table) clone() Table {
	return Table{
		Detachments:         append([]float64(nil), t.Detachments...),
		Strikes:             append([]float64(nil), t.Strikes...),
		Correlations:        append([]float64(nil), t.Correlations...),
		TrancheCorrelations: append([]float64(nil), t.TrancheCorrelations...),
	}
}

// CalibrationError is a solver failure. Table holds everything solved before
// the failure so callers can keep partial results.
type CalibrationError struct {
	// Index is the tranche being solved, or -1 when not tied to one.
	Index int
	Err   error
	Table Table
}

func (e *CalibrationError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("basecorr: calibration failed: %v", e.Err)
	}
	return fmt.Sprintf("basecorr: calibration failed at tranche %d: %v", e.Index, e.Err)
}

func (e *CalibrationError) Unwrap() error { return e.Err }

// IsCalibrationError reports whether err carries a CalibrationError.
func IsCalibrationError(err error) bool {
	var ce *CalibrationError
	return errors.As(err, &ce)
}
