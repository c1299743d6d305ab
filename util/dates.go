package util

import (
	"errors"
	"fmt"
	"time"
)

const Layout = "2006-01-02"

var NYSE = []string{
	"2024-01-01", "2024-01-15", "2024-02-19", "2024-03-29", "2024-05-27", "2024-06-19", "2024-07-04", "2024-09-02", "2024-11-28", "2024-12-25",
	"2025-01-01", "2025-01-09", "2025-01-20", "2025-02-17", "2025-04-18", "2025-05-26", "2025-06-19", "2025-07-04", "2025-09-01", "2025-11-27", "2025-12-25",
	"2026-01-01", "2026-01-19", "2026-02-16", "2026-04-03", "2026-05-25", "2026-06-19", "2026-07-03", "2026-09-07", "2026-11-26", "2026-12-25",
	"2027-01-01", "2027-01-18", "2027-02-15", "2027-03-26", "2027-05-31", "2027-06-18", "2027-07-05", "2027-09-06", "2027-11-25", "2027-12-24",
}

// Convert holidays from string to time.Time format
func Hols(s []string) ([]time.Time, error) {
	h := make([]time.Time, len(s))
	for i, v := range s {
		d, err := time.Parse(Layout, v)
		if err != nil {
			return nil, err
		}
		h[i] = d
	}
	return h, nil
}

func IsHol(d time.Time, hols []time.Time) bool {
	for _, v := range hols {
		if d.Equal(v) {
			return true
		}
	}
	return false
}

func IsWeekday(d time.Time) bool {
	return d.Weekday() > time.Sunday && d.Weekday() < time.Saturday
}

func AdjustFollowing(d time.Time, hols []time.Time) time.Time {
	for IsHol(d, hols) || !IsWeekday(d) {
		d = d.AddDate(0, 0, 1)
	}
	return d
}

// TradingDays counts the business days after start up to and including end,
// which is the option duration in days used by the pricer.
func TradingDays(start, end time.Time, hols []time.Time) (int, error) {
	start, end = truncate(start), truncate(end)
	if !end.After(start) {
		return 0, errors.New("expiry must be later than the valuation date")
	}
	n := 0
	for d := AdjustFollowing(start.AddDate(0, 0, 1), hols); !d.After(end); d = AdjustFollowing(d.AddDate(0, 0, 1), hols) {
		n++
	}
	return n, nil
}

// DurationTo returns the number of NYSE trading days from now until expiry,
// given as YYYY-MM-DD. Expiries after the last year of the NYSE table are
// rejected.
func DurationTo(now time.Time, expiry string) (int, error) {
	end, err := time.Parse(Layout, expiry)
	if err != nil {
		return 0, err
	}
	hols, err := Hols(NYSE)
	if err != nil {
		return 0, err
	}
	if last := hols[len(hols)-1].Year(); end.Year() > last {
		return 0, fmt.Errorf("expiry %s is beyond the holiday calendar, which ends in %d", expiry, last)
	}
	return TradingDays(now, end, hols)
}

func truncate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
