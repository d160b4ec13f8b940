package toolkit

import (
	"time"

	"taskmaster/internal/common"
	"taskmaster/internal/domain/model"
)

const LongDateLayout = "January 2, 2006"

// DefaultDueSoonDays is the due-soon window used when none is configured.
const DefaultDueSoonDays = 3

func parseDate(field, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, common.Validation(field + " is required")
	}
	t, err := model.ParseTime(value)
	if err != nil {
		return time.Time{}, common.Validation("Invalid " + field + ": expected YYYY-MM-DD or ISO 8601")
	}
	return t, nil
}

// civil drops the clock so day arithmetic ignores time of day.
func civil(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func AddDays(date string, days int) (string, error) {
	t, err := parseDate("date", date)
	if err != nil {
		return "", err
	}
	return civil(t).AddDate(0, 0, days).Format(time.DateOnly), nil
}

// DiffDays returns the number of calendar days from start to end.
func DiffDays(start, end string) (int, error) {
	s, err := parseDate("start", start)
	if err != nil {
		return 0, err
	}
	e, err := parseDate("end", end)
	if err != nil {
		return 0, err
	}
	return daysBetween(s, e), nil
}

func daysBetween(from, to time.Time) int {
	return int(civil(to).Sub(civil(from)).Hours() / 24)
}

func FormatLong(date string) (string, error) {
	t, err := parseDate("date", date)
	if err != nil {
		return "", err
	}
	return t.UTC().Format(LongDateLayout), nil
}

func IsWeekend(date string) (bool, error) {
	t, err := parseDate("date", date)
	if err != nil {
		return false, err
	}
	wd := t.UTC().Weekday()
	return wd == time.Saturday || wd == time.Sunday, nil
}

// DueSoon reports whether date falls within the next threshold days
// (today included) and how many days remain. Past dates are not due soon.
func DueSoon(date string, now time.Time, threshold int) (bool, int, error) {
	t, err := parseDate("date", date)
	if err != nil {
		return false, 0, err
	}
	days := daysBetween(now, t)
	return IsWithinDays(days, threshold), days, nil
}

func IsWithinDays(days, threshold int) bool {
	return days >= 0 && days <= threshold
}

func Now() string {
	return time.Now().UTC().Format(model.TimestampLayout)
}
