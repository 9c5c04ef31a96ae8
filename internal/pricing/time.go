package pricing

import (
	"fmt"
	"time"
)

// TimeUnit names a duration unit accepted by TimeToYears.
type TimeUnit string

const (
	Minutes TimeUnit = "minutes"
	Hours   TimeUnit = "hours"
	Days    TimeUnit = "days"
	Weeks   TimeUnit = "weeks"
	Months  TimeUnit = "months"
)

// TimeToYears converts value in unit to a year fraction.
func TimeToYears(value float64, unit TimeUnit) (float64, error) {
	switch unit {
	case Minutes:
		return value / (365 * 24 * 60), nil
	case Hours:
		return value / (365 * 24), nil
	case Days:
		return value / 365, nil
	case Weeks:
		return value / 52, nil
	case Months:
		return value / 12, nil
	}
	return 0, fmt.Errorf("unknown time unit %q", unit)
}

// YearsUntil is the year fraction from now to expiry, floored at zero.
func YearsUntil(now, expiry time.Time) float64 {
	d := expiry.Sub(now)
	if d <= 0 {
		return 0
	}
	return d.Hours() / (365 * 24)
}
