package nfc

import (
	"errors"
	"fmt"
	"strings"

	"github.com/moov-io/bertlv"
)

// Data group tags as listed in the EF.COM tag list (5C).
const (
	tagDG1  = 0x61
	tagDG2  = 0x75
	tagDG3  = 0x63
	tagDG11 = 0x6B
	tagDG12 = 0x6C
	tagDG14 = 0x6E
)

// COM is the content of EF.COM.
type COM struct {
	LDSVersion     string
	UnicodeVersion string
	Tags           []byte
}

func (c *COM) has(tag byte) bool {
	for _, t := range c.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Presence reports which of the optional data groups are listed.
func (c *COM) Presence() DataGroupPresence {
	return DataGroupPresence{
		DG3:  c.has(tagDG3),
		DG11: c.has(tagDG11),
		DG12: c.has(tagDG12),
		DG14: c.has(tagDG14),
	}
}

// ParseCOM decodes EF.COM (tag 60).
func ParseCOM(data []byte) (*COM, error) {
	packets, err := bertlv.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("bertlv decode failed: %w", err)
	}
	if len(packets) == 0 || !strings.EqualFold(packets[0].Tag, "60") {
		return nil, errors.New("EF.COM: missing tag 60")
	}
	fields, err := children(packets[0])
	if err != nil {
		return nil, err
	}

	com := &COM{}
	for _, f := range fields {
		switch strings.ToUpper(f.Tag) {
		case "5F01":
			com.LDSVersion = formatVersion(string(f.Value))
		case "5F36":
			com.UnicodeVersion = formatVersion(string(f.Value))
		case "5C":
			com.Tags = f.Value
		}
	}
	return com, nil
}

// formatVersion turns "0107" into "1.7" and "040000" into "4.0.0".
func formatVersion(raw string) string {
	if len(raw) == 0 || len(raw)%2 != 0 {
		return raw
	}
	var parts []string
	for i := 0; i < len(raw); i += 2 {
		p := strings.TrimLeft(raw[i:i+2], "0")
		if p == "" {
			p = "0"
		}
		parts = append(parts, p)
	}
	return strings.Join(parts, ".")
}

// EncodeCOM builds an EF.COM for the given version and data group tags.
func EncodeCOM(ldsVersion string, tags ...byte) []byte {
	var body []byte
	body = append(body, 0x5F, 0x01, byte(len(ldsVersion)))
	body = append(body, ldsVersion...)
	body = append(body, 0x5F, 0x36, 0x06)
	body = append(body, "040000"...)
	body = append(body, 0x5C, byte(len(tags)))
	body = append(body, tags...)
	return append([]byte{0x60, byte(len(body))}, body...)
}
