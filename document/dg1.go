package document

import (
	"fmt"
)

// DG1 framing per ICAO 9303 part 10.
const (
	TagDG1 = 0x61
	TagMRZ = 0x5F1F
)

// ParseError describes a DG1/MRZ decoding problem. Field is empty when the
// problem concerns the framing rather than a single MRZ field.
type ParseError struct {
	Field string
	Msg   string
}

func (e ParseError) Error() string {
	if e.Field == "" {
		return e.Msg
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Msg)
}

// ExtractMRZText unwraps the 0x61 / 0x5F1F TLV layers of EF.DG1 and returns
// the MRZ characters as US-ASCII text.
func ExtractMRZText(dg1 []byte) (string, error) {
	offset, _, err := expectTag(dg1, 0, TagDG1)
	if err != nil {
		return "", err
	}
	offset, length, err := expectTag(dg1, offset, TagMRZ)
	if err != nil {
		return "", err
	}

	end := offset + length
	if end > len(dg1) {
		// truncated value, keep what the chip returned
		end = len(dg1)
	}
	return asciiString(dg1[offset:end]), nil
}

func expectTag(b []byte, offset int, want int) (int, int, error) {
	tag, next, err := readTag(b, offset)
	if err != nil {
		return 0, 0, err
	}
	if tag != want {
		return 0, 0, ParseError{Msg: fmt.Sprintf("unexpected tag 0x%X at offset %d, expected 0x%X", tag, offset, want)}
	}
	length, next, err := readLength(b, next)
	if err != nil {
		return 0, 0, err
	}
	return next, length, nil
}

// readTag reads a BER tag. Multi-byte tags have the low five bits of the
// first byte set and continue while bit 8 of the following bytes is set.
func readTag(b []byte, offset int) (int, int, error) {
	if offset >= len(b) {
		return 0, 0, ParseError{Msg: "unexpected end of data while reading tag"}
	}
	tag := int(b[offset])
	offset++
	if tag&0x1F != 0x1F {
		return tag, offset, nil
	}
	for {
		if offset >= len(b) {
			return 0, 0, ParseError{Msg: "unexpected end of data in multi-byte tag"}
		}
		next := b[offset]
		tag = tag<<8 | int(next)
		offset++
		if next&0x80 == 0 {
			return tag, offset, nil
		}
	}
}

// readLength reads a definite BER length: one byte below 0x80, otherwise
// 0x8N followed by N length bytes.
func readLength(b []byte, offset int) (int, int, error) {
	if offset >= len(b) {
		return 0, 0, ParseError{Msg: "unexpected end of data while reading length"}
	}
	first := int(b[offset])
	offset++
	if first < 0x80 {
		return first, offset, nil
	}

	n := first & 0x7F
	if n == 0 || n > 4 {
		return 0, 0, ParseError{Msg: fmt.Sprintf("unsupported length encoding 0x%02X", first)}
	}
	if offset+n > len(b) {
		return 0, 0, ParseError{Msg: "unexpected end of data in long-form length"}
	}
	length := 0
	for _, v := range b[offset : offset+n] {
		length = length<<8 | int(v)
	}
	return length, offset + n, nil
}

// ReadTagLength decodes the BER tag and definite length at the start of b.
// headerLen is the number of bytes used by both.
func ReadTagLength(b []byte) (tag, length, headerLen int, err error) {
	tag, next, err := readTag(b, 0)
	if err != nil {
		return 0, 0, 0, err
	}
	length, next, err = readLength(b, next)
	if err != nil {
		return 0, 0, 0, err
	}
	return tag, length, next, nil
}

func asciiString(b []byte) string {
	out := make([]byte, len(b))
	for i, c := range b {
		if c > 0x7F {
			c = '?'
		}
		out[i] = c
	}
	return string(out)
}

// DecodeDG1 extracts and parses the MRZ held in raw EF.DG1 bytes. A non-nil
// MRZ may be returned together with an error listing the fields that could
// not be read.
func DecodeDG1(dg1 []byte) (*MRZ, error) {
	text, err := ExtractMRZText(dg1)
	if err != nil {
		return nil, err
	}
	return ParseMRZ(text)
}

// EncodeDG1 wraps MRZ text into the 0x61 / 0x5F1F TLV layers. It mirrors
// ExtractMRZText and is used when building fixtures.
func EncodeDG1(mrz string) []byte {
	inner := append(encodeTagLength(TagMRZ, len(mrz)), mrz...)
	return append(encodeTagLength(TagDG1, len(inner)), inner...)
}

func encodeTagLength(tag int, length int) []byte {
	var out []byte
	if tag > 0xFF {
		out = append(out, byte(tag>>8))
	}
	out = append(out, byte(tag))
	switch {
	case length < 0x80:
		out = append(out, byte(length))
	case length <= 0xFF:
		out = append(out, 0x81, byte(length))
	default:
		out = append(out, 0x82, byte(length>>8), byte(length))
	}
	return out
}
