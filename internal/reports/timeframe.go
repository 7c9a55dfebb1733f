package reports

import (
	"errors"
	"strings"
	"time"
)

var ErrUnknownTimeframe = errors.New("unknown timeframe")

// Timeframe is a bucket width. Buckets are aligned to UTC.
type Timeframe string

const (
	Minute     Timeframe = "1m"
	FiveMinute Timeframe = "5m"
	Day        Timeframe = "1d"
	Month      Timeframe = "1M"
)

// ParseTimeframe accepts the short codes and the aliases minute, 5min, day and month.
// An empty value selects Day.
func ParseTimeframe(s string) (Timeframe, error) {
	switch strings.TrimSpace(s) {
	case "":
		return Day, nil
	case "1m", "minute":
		return Minute, nil
	case "5m", "5min":
		return FiveMinute, nil
	case "1d", "day", "daily":
		return Day, nil
	case "1M", "month", "monthly":
		return Month, nil
	}
	return "", ErrUnknownTimeframe
}

// Floor returns the start of the bucket holding t
func (tf Timeframe) Floor(t time.Time) time.Time {
	t = t.UTC()
	switch tf {
	case Minute:
		return t.Truncate(time.Minute)
	case FiveMinute:
		return t.Truncate(5 * time.Minute)
	case Month:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	default:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	}
}

// Shift moves a bucket start by n buckets
func (tf Timeframe) Shift(start time.Time, n int) time.Time {
	switch tf {
	case Minute:
		return start.Add(time.Duration(n) * time.Minute)
	case FiveMinute:
		return start.Add(time.Duration(n) * 5 * time.Minute)
	case Month:
		return start.AddDate(0, n, 0)
	default:
		return start.AddDate(0, 0, n)
	}
}
