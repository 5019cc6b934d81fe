package document

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, time.June, 15, 12, 0, 0, 0, time.UTC)

func TestBoolToYesNo(t *testing.T) {
	t.Run("true converts to Yes", func(t *testing.T) {
		require.Equal(t, "Yes", BoolToYesNo(true))
	})

	t.Run("false converts to No", func(t *testing.T) {
		require.Equal(t, "No", BoolToYesNo(false))
	})
}

func TestParseExpiryDate(t *testing.T) {
	tests := []struct {
		name string
		date string
		want time.Time
	}{
		{"this century", "300101", time.Date(2030, time.January, 1, 0, 0, 0, 0, time.UTC)},
		{"recently expired", "120415", time.Date(2012, time.April, 15, 0, 0, 0, 0, time.UTC)},
		{"29 years ago is untouched", "970101", time.Date(1997, time.January, 1, 0, 0, 0, 0, time.UTC)},
		{"more than 30 years ago moves forward", "950101", time.Date(2095, time.January, 1, 0, 0, 0, 0, time.UTC)},
		{"1969 moves forward", "690101", time.Date(2069, time.January, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseExpiryDate(tt.date, testNow)
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestParseDateOfBirth(t *testing.T) {
	tests := []struct {
		name     string
		date     string
		wantYear int
	}{
		{"last century", "740812", 1974},
		{"1968 parses correctly", "680101", 1968},
		{"1969 parses correctly", "690101", 1969},
		{"this year before today", "260101", 2026},
		{"later this year is last century", "261231", 1926},
		{"next year is last century", "270101", 1927},
		{"recent birth", "200229", 2020},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDateOfBirth(tt.date, testNow)
			require.NoError(t, err)
			require.Equal(t, tt.wantYear, got.Year())
			require.False(t, got.After(testNow))
		})
	}
}

func TestParseMRZDateErrors(t *testing.T) {
	tests := []struct {
		name    string
		date    string
		wantMsg string
	}{
		{"too short", "25031", "invalid date format"},
		{"too long", "2503155", "invalid date format"},
		{"empty", "", "invalid date format"},
		{"invalid month", "251399", "error parsing date"},
		{"filler", "<<<<<<", "error parsing date"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseDateOfBirth(tt.date, testNow)
			require.ErrorContains(t, err, tt.wantMsg)
			_, err = ParseExpiryDate(tt.date, testNow)
			require.ErrorContains(t, err, tt.wantMsg)
		})
	}
}
