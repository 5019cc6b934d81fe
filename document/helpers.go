package document

import (
	"fmt"
	"time"
)

// mrzDateLayout is the YYMMDD layout of MRZ dates.
const mrzDateLayout = "060102"

func BoolToYesNo(value bool) string {
	if value {
		return "Yes"
	}
	return "No"
}

func parseMRZDate(dateStr string) (time.Time, error) {
	if len(dateStr) != 6 {
		return time.Time{}, fmt.Errorf("invalid date format: %q", dateStr)
	}
	parsed, err := time.Parse(mrzDateLayout, dateStr)
	if err != nil {
		return time.Time{}, fmt.Errorf("error parsing date: %w", err)
	}
	return parsed, nil
}

// ParseExpiryDate resolves the century of a YYMMDD expiry date relative to
// now: a date more than 30 years before now belongs to the next century.
func ParseExpiryDate(dateStr string, now time.Time) (time.Time, error) {
	parsed, err := parseMRZDate(dateStr)
	if err != nil {
		return time.Time{}, err
	}
	for parsed.Before(now.AddDate(-30, 0, 0)) {
		parsed = parsed.AddDate(100, 0, 0)
	}
	for parsed.After(now.AddDate(70, 0, 0)) {
		parsed = parsed.AddDate(-100, 0, 0)
	}
	return parsed, nil
}

// ParseDateOfBirth resolves the century of a YYMMDD birth date so that it
// never lies after now.
func ParseDateOfBirth(dateStr string, now time.Time) (time.Time, error) {
	parsed, err := parseMRZDate(dateStr)
	if err != nil {
		return time.Time{}, err
	}
	for parsed.After(now) {
		parsed = parsed.AddDate(-100, 0, 0)
	}
	for parsed.Before(now.AddDate(-100, 0, 0)) {
		parsed = parsed.AddDate(100, 0, 0)
	}
	return parsed, nil
}
