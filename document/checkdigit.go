package document

import (
	"errors"
	"fmt"
)

var checkWeights = [3]int{7, 3, 1}

// CheckDigit computes the ICAO 9303 7-3-1 check digit over s. Digits count
// as their value, letters A-Z as 10-35 and the filler '<' as zero.
func CheckDigit(s string) byte {
	sum := 0
	for i := 0; i < len(s); i++ {
		sum += charValue(s[i]) * checkWeights[i%3]
	}
	return byte('0' + sum%10)
}

func charValue(c byte) int {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0')
	case c >= 'A' && c <= 'Z':
		return int(c-'A') + 10
	case c >= 'a' && c <= 'z':
		return int(c-'a') + 10
	default:
		return 0
	}
}

type checkedField struct {
	name       string
	line       int
	start, end int
	check      int
}

var checkedFields = map[Format][]checkedField{
	FormatTD1: {
		{"document_number", 0, 5, 14, 14},
		{"date_of_birth", 1, 0, 6, 6},
		{"date_of_expiry", 1, 8, 14, 14},
	},
	FormatTD2: {
		{"document_number", 1, 0, 9, 9},
		{"date_of_birth", 1, 13, 19, 19},
		{"date_of_expiry", 1, 21, 27, 27},
	},
	FormatTD3: {
		{"document_number", 1, 0, 9, 9},
		{"date_of_birth", 1, 13, 19, 19},
		{"date_of_expiry", 1, 21, 27, 27},
	},
}

// VerifyCheckDigits recomputes the check digits of the document number and
// both dates. It only reports mismatches; unreadable lines are skipped.
func (m *MRZ) VerifyCheckDigits() error {
	var errs []error
	for _, f := range checkedFields[m.Format] {
		if f.line >= len(m.lines) || f.check >= len(m.lines[f.line]) {
			continue
		}
		line := m.lines[f.line]
		if f.name == "document_number" && m.Format == FormatTD1 && line[f.check] == '<' {
			// long document number, check digit lives in the optional data
			continue
		}
		want := CheckDigit(line[f.start:f.end])
		if got := line[f.check]; got != want {
			errs = append(errs, ParseError{Field: f.name, Msg: fmt.Sprintf("check digit mismatch: got %c, want %c", got, want)})
		}
	}
	return errors.Join(errs...)
}

// MRZInformation builds the key seed string used by BAC and PACE: document
// number padded to nine characters, date of birth and date of expiry, each
// followed by its check digit.
func MRZInformation(documentNumber, dateOfBirth, dateOfExpiry string) string {
	doc := documentNumber
	for len(doc) < 9 {
		doc += "<"
	}
	return doc + string(CheckDigit(doc)) +
		dateOfBirth + string(CheckDigit(dateOfBirth)) +
		dateOfExpiry + string(CheckDigit(dateOfExpiry))
}
