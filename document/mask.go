package document

import "strings"

const visibleDocumentNumberChars = 3

// MaskDocumentNumber keeps the first three characters of a document number
// and replaces the rest with '*'. At least one character is always masked.
func MaskDocumentNumber(number string) string {
	r := []rune(number)
	if len(r) == 0 {
		return number
	}
	visible := min(visibleDocumentNumberChars, len(r)-1)
	return string(r[:visible]) + strings.Repeat("*", len(r)-visible)
}

// MaskDate keeps the year of a YYMMDD date.
func MaskDate(yymmdd string) string {
	if len(yymmdd) < 2 {
		return strings.Repeat("*", len(yymmdd))
	}
	return yymmdd[:2] + strings.Repeat("*", len(yymmdd)-2)
}
