package solver

import "math"

// Tolerances applies the adaptive tolerance policy. A non-positive toleranceF
// becomes 1/|totalPrincipal| capped at 1e-6; a non-positive toleranceX
// becomes 100 * toleranceF capped at 1e-4.
func Tolerances(totalPrincipal, toleranceF, toleranceX float64) (float64, float64) {
	if toleranceF <= 0 {
		toleranceF = 1e-6
		if p := math.Abs(totalPrincipal); p > 0 {
			toleranceF = math.Min(1/p, 1e-6)
		}
	}
	if toleranceX <= 0 {
		toleranceX = math.Min(100*toleranceF, 1e-4)
	}
	return toleranceF, toleranceX
}
