package utils

import (
	"time"
)

// Day count conventions accepted by YearFraction.
const (
	Act360  = "ACT/360"
	Act365F = "ACT/365F"
	Thirty  = "30/360"
)

// YearFraction computes year fraction between two dates using the specified day count convention.
// Supported conventions: ACT/360, ACT/365F, 30E/360, 30/360
func YearFraction(start, end time.Time, convention string) float64 {
	switch convention {
	case Act360:
		return Days(start, end) / 360.0
	case "30E/360", Thirty:
		// D1 and D2 are capped at 30
		d1 := start.Day()
		if d1 > 30 {
			d1 = 30
		}
		d2 := end.Day()
		if d2 > 30 {
			d2 = 30
		}
		y1, m1 := start.Year(), int(start.Month())
		y2, m2 := end.Year(), int(end.Month())
		return float64(360*(y2-y1)+30*(m2-m1)+(d2-d1)) / 360.0
	default:
		return Days(start, end) / 365.0
	}
}

// Time returns the ACT/365F year fraction used as the time axis of every curve.
func Time(asOf, t time.Time) float64 {
	return YearFraction(asOf, t, Act365F)
}
