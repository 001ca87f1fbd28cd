package provider

import (
	"fmt"
	"time"
)

// Granularity is the time-bucket size of aggregation.
type Granularity string

const (
	GranularityMinute Granularity = "minute"
	GranularityDay    Granularity = "day"
)

// ParseGranularity converts a user-supplied string to a Granularity.
func ParseGranularity(s string) (Granularity, error) {
	switch Granularity(s) {
	case GranularityMinute:
		return GranularityMinute, nil
	case GranularityDay:
		return GranularityDay, nil
	default:
		return "", fmt.Errorf("unsupported granularity: %q (use %s or %s)", s, GranularityMinute, GranularityDay)
	}
}

// Duration returns the bucket size. Timestamps are truncated to it when
// normalizing vendor responses.
func (g Granularity) Duration() time.Duration {
	if g == GranularityDay {
		return 24 * time.Hour
	}

	return time.Minute
}

// TwelveDataInterval returns the interval parameter the Twelve Data
// time_series endpoint expects.
func (g Granularity) TwelveDataInterval() string {
	if g == GranularityDay {
		return "1day"
	}

	return "1min"
}
