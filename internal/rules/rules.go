package rules

import (
	"time"
)

// Rule carries one version of the jurisdiction's heating-law thresholds.
// Rules are configuration data, not code constants, so a threshold
// change is a config change rather than an evaluator change.
type Rule struct {
	// Version names the rule set, e.g. "nyc-2015".
	Version string

	// Heating season, expressed as month/day boundaries. The season is
	// allowed to wrap the year end (October through May).
	SeasonStartMonth time.Month
	SeasonStartDay   int
	SeasonEndMonth   time.Month
	SeasonEndDay     int

	// Daily window during which the indoor minimum applies, in local
	// hours [WindowStartHour, WindowEndHour).
	WindowStartHour int
	WindowEndHour   int

	// IndoorMinimum is the lowest acceptable indoor temperature while
	// the outdoor temperature is below OutdoorTrigger. Fahrenheit.
	IndoorMinimum  float64
	OutdoorTrigger float64

	// HighTempThreshold is the indoor temperature at or above which a
	// reading counts toward a high-temperature alert. Distinct from the
	// violation thresholds above.
	HighTempThreshold float64
}

// NYC2015 returns the rule set the service ships with: NYC heat season
// October 1 through May 31, daytime window 6am-10pm, indoor minimum
// 68F when the outdoor temperature is below 55F.
func NYC2015() Rule {
	return Rule{
		Version:           "nyc-2015",
		SeasonStartMonth:  time.October,
		SeasonStartDay:    1,
		SeasonEndMonth:    time.May,
		SeasonEndDay:      31,
		WindowStartHour:   6,
		WindowEndHour:     22,
		IndoorMinimum:     68,
		OutdoorTrigger:    55,
		HighTempThreshold: 85,
	}
}

// IsViolation reports whether a single reading constitutes a heating
// violation under the rule. ts must already be in the reading's local
// time zone. Deterministic and side-effect free.
//
// Boundary values do not violate: indoor exactly at IndoorMinimum or
// outdoor exactly at OutdoorTrigger is compliant.
func IsViolation(indoorTemp, outdoorTemp float64, ts time.Time, rule Rule) bool {
	if !rule.InSeason(ts) {
		return false
	}
	if !rule.InWindow(ts) {
		return false
	}
	return indoorTemp < rule.IndoorMinimum && outdoorTemp < rule.OutdoorTrigger
}

// IsHighTemp reports whether a reading counts toward a high-temperature
// alert: indoor temperature at or above the alert threshold.
func IsHighTemp(indoorTemp float64, rule Rule) bool {
	return indoorTemp >= rule.HighTempThreshold
}

// InSeason reports whether ts falls inside the heating season. The
// season may wrap the year end.
func (r Rule) InSeason(ts time.Time) bool {
	start := monthDay(r.SeasonStartMonth, r.SeasonStartDay)
	end := monthDay(r.SeasonEndMonth, r.SeasonEndDay)
	cur := monthDay(ts.Month(), ts.Day())

	if start <= end {
		return cur >= start && cur <= end
	}
	// Wrapping season, e.g. October through May.
	return cur >= start || cur <= end
}

// InWindow reports whether the local time of day falls inside the
// [WindowStartHour, WindowEndHour) window.
func (r Rule) InWindow(ts time.Time) bool {
	h := ts.Hour()
	return h >= r.WindowStartHour && h < r.WindowEndHour
}

func monthDay(m time.Month, d int) int {
	return int(m)*100 + d
}
