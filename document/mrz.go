package document

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

type Format string

const (
	FormatTD1 Format = "TD1"
	FormatTD2 Format = "TD2"
	FormatTD3 Format = "TD3"
)

// Line widths per MRZ format.
const (
	td1LineLen = 30
	td2LineLen = 36
	td3LineLen = 44
)

// MRZ holds the named fields of a decoded machine readable zone. Filler
// characters are converted to spaces and trimmed.
type MRZ struct {
	Format          Format
	DocumentType    string
	IssuingState    string
	Nationality     string
	Surname         string
	GivenNames      string
	DocumentNumber  string
	DateOfBirth     string
	Sex             string
	DateOfExpiry    string
	OptionalDataRaw string

	lines []string
}

// IssuingCountry is the issuing state, or the nationality when the issuing
// state field is blank.
func (m *MRZ) IssuingCountry() string {
	if m.IssuingState != "" {
		return m.IssuingState
	}
	return m.Nationality
}

var nameSeparator = regexp.MustCompile(` {2,}`)

// ParseMRZ dispatches on the line layout and extracts every field it can.
// Field problems are joined into the returned error; the MRZ returned next to
// such an error is partially filled.
func ParseMRZ(text string) (*MRZ, error) {
	lines, format, err := splitMRZ(text)
	if err != nil {
		return nil, err
	}

	p := &fieldParser{}
	m := &MRZ{Format: format, lines: lines}
	switch format {
	case FormatTD1:
		p.parseTD1(m, lines)
	case FormatTD2:
		p.parseTD2(m, lines)
	case FormatTD3:
		p.parseTD3(m, lines)
	}
	return m, errors.Join(p.errs...)
}

func splitMRZ(text string) ([]string, Format, error) {
	normalized := strings.ReplaceAll(text, "\r\n", "\n")
	normalized = strings.ReplaceAll(normalized, "\r", "\n")

	var lines []string
	for _, l := range strings.Split(normalized, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}

	switch len(lines) {
	case 0:
		return nil, "", ParseError{Msg: "empty MRZ"}
	case 1:
		s := lines[0]
		switch len(s) {
		case 2 * td3LineLen:
			return []string{s[:td3LineLen], s[td3LineLen:]}, FormatTD3, nil
		case 2 * td2LineLen:
			return []string{s[:td2LineLen], s[td2LineLen:]}, FormatTD2, nil
		case 3 * td1LineLen:
			return []string{s[:td1LineLen], s[td1LineLen : 2*td1LineLen], s[2*td1LineLen:]}, FormatTD1, nil
		}
		return nil, "", ParseError{Msg: fmt.Sprintf("unsupported MRZ length %d", len(s))}
	case 2:
		switch {
		case len(lines[0]) >= td3LineLen:
			return lines, FormatTD3, nil
		case len(lines[0]) >= td2LineLen:
			return lines, FormatTD2, nil
		}
		return nil, "", ParseError{Msg: fmt.Sprintf("unsupported MRZ line width %d", len(lines[0]))}
	case 3:
		return lines, FormatTD1, nil
	}
	return nil, "", ParseError{Msg: fmt.Sprintf("unsupported MRZ line count %d", len(lines))}
}

type fieldParser struct {
	errs []error
}

// field returns line[start:end] with fillers removed, recording an error when
// the line is too short to hold the whole field.
func (p *fieldParser) field(name, line string, start, end int) string {
	if end > len(line) {
		p.errs = append(p.errs, ParseError{Field: name, Msg: fmt.Sprintf("line too short (%d < %d)", len(line), end)})
		if start >= len(line) {
			return ""
		}
		end = len(line)
	}
	return clean(line[start:end])
}

func (p *fieldParser) name(m *MRZ, line string, start, end int) {
	if end > len(line) {
		end = len(line)
	}
	if start >= end {
		p.errs = append(p.errs, ParseError{Field: "name", Msg: "name field missing"})
		return
	}
	m.Surname, m.GivenNames = splitName(line[start:end])
}

// TD3: passports, 2 x 44.
func (p *fieldParser) parseTD3(m *MRZ, lines []string) {
	l1, l2 := lines[0], lines[1]
	m.DocumentType = p.field("document_type", l1, 0, 2)
	m.IssuingState = p.field("issuing_state", l1, 2, 5)
	p.name(m, l1, 5, td3LineLen)

	m.DocumentNumber = p.field("document_number", l2, 0, 9)
	m.Nationality = p.field("nationality", l2, 10, 13)
	m.DateOfBirth = p.field("date_of_birth", l2, 13, 19)
	m.Sex = p.field("sex", l2, 20, 21)
	m.DateOfExpiry = p.field("date_of_expiry", l2, 21, 27)
	m.OptionalDataRaw = p.field("optional_data", l2, 28, 42)
}

// TD2: 2 x 36.
func (p *fieldParser) parseTD2(m *MRZ, lines []string) {
	l1, l2 := lines[0], lines[1]
	m.DocumentType = p.field("document_type", l1, 0, 2)
	m.IssuingState = p.field("issuing_state", l1, 2, 5)
	p.name(m, l1, 5, td2LineLen)

	m.DocumentNumber = p.field("document_number", l2, 0, 9)
	m.Nationality = p.field("nationality", l2, 10, 13)
	m.DateOfBirth = p.field("date_of_birth", l2, 13, 19)
	m.Sex = p.field("sex", l2, 20, 21)
	m.DateOfExpiry = p.field("date_of_expiry", l2, 21, 27)
	m.OptionalDataRaw = p.field("optional_data", l2, 28, 35)
}

// TD1: identity cards, 3 x 30.
func (p *fieldParser) parseTD1(m *MRZ, lines []string) {
	l1, l2, l3 := lines[0], lines[1], lines[2]
	m.DocumentType = p.field("document_type", l1, 0, 2)
	m.IssuingState = p.field("issuing_state", l1, 2, 5)
	m.DocumentNumber = p.field("document_number", l1, 5, 14)
	m.OptionalDataRaw = p.field("optional_data", l1, 15, 30)

	// Document numbers longer than nine characters continue in the optional
	// data, terminated by their check digit, with '<' in the check position.
	if len(l1) > 14 && l1[14] == '<' && m.OptionalDataRaw != "" {
		rest := strings.SplitN(m.OptionalDataRaw, " ", 2)[0]
		if len(rest) > 1 {
			m.DocumentNumber += rest[:len(rest)-1]
		}
	}

	m.DateOfBirth = p.field("date_of_birth", l2, 0, 6)
	m.Sex = p.field("sex", l2, 7, 8)
	m.DateOfExpiry = p.field("date_of_expiry", l2, 8, 14)
	m.Nationality = p.field("nationality", l2, 15, 18)

	p.name(m, l3, 0, td1LineLen)
}

func clean(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, "<", " "))
}

func splitName(raw string) (string, string) {
	parts := nameSeparator.Split(clean(raw), -1)
	surname := strings.TrimSpace(parts[0])
	if len(parts) < 2 {
		return surname, ""
	}
	return surname, strings.TrimSpace(parts[1])
}
