package nfc

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// StatusWord is the two-byte SW1-SW2 trailer of an ISO 7816 response.
type StatusWord uint16

// Status words the reader distinguishes.
const (
	SWNoError                StatusWord = 0x9000
	SWWrongLength            StatusWord = 0x6700
	SWSecurityNotSatisfied   StatusWord = 0x6982
	SWConditionsNotSatisfied StatusWord = 0x6985
	SWFunctionNotSupported   StatusWord = 0x6A81
	SWFileNotFound           StatusWord = 0x6A82
	SWIncorrectP1P2          StatusWord = 0x6A86
	SWInsNotSupported        StatusWord = 0x6D00
	SWClaNotSupported        StatusWord = 0x6E00
)

func NewStatusWord(sw1, sw2 byte) StatusWord {
	return StatusWord(uint16(sw1)<<8 | uint16(sw2))
}

func (sw StatusWord) SW1() byte { return byte(sw >> 8) }
func (sw StatusWord) SW2() byte { return byte(sw) }

// IsSuccess is true for 9000 and for 61XX (response bytes still available).
func (sw StatusWord) IsSuccess() bool {
	return sw == SWNoError || sw.SW1() == 0x61
}

// String renders the status word as four upper-case hex digits.
func (sw StatusWord) String() string {
	return fmt.Sprintf("%04X", uint16(sw))
}

// PACESupport is the outcome of classifying a failed PACE attempt.
type PACESupport int

const (
	// PACESupported means the chip speaks PACE and the attempt genuinely failed.
	PACESupported PACESupport = iota
	// PACENotSupported means PACE is absent on this document; BAC may be tried.
	PACENotSupported
)

func (p PACESupport) String() string {
	if p == PACENotSupported {
		return "not_supported"
	}
	return "supported"
}

var swPattern = regexp.MustCompile(`(?i)SW\s*[=:]\s*(?:0x)?([0-9A-F]{4})`)

var paceNotSupportedCodes = map[string]bool{
	SWFileNotFound.String():         true,
	SWFunctionNotSupported.String(): true,
	SWIncorrectP1P2.String():        true,
	SWInsNotSupported.String():      true,
}

var paceNotSupportedPhrases = []string{
	"file not found",
	"not supported",
	"not available",
	"no such file",
}

// ExtractSWCode returns the status word an error carries, as four upper-case
// hex digits, or "" when none can be found. A *StatusError in the chain wins;
// otherwise the message is scanned for forms such as "SW = 0x6985",
// "SW=6985" or "SW: 0x6985", falling back to the wrapped cause's message.
func ExtractSWCode(err error) string {
	if err == nil {
		return ""
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.SW.String()
	}
	if sw := findSW(err.Error()); sw != "" {
		return sw
	}
	if cause := errors.Unwrap(err); cause != nil {
		return findSW(cause.Error())
	}
	return ""
}

func findSW(msg string) string {
	m := swPattern.FindStringSubmatch(msg)
	if m == nil {
		return ""
	}
	return strings.ToUpper(m[1])
}

// ClassifyPACESupport decides whether a PACE failure means the document
// lacks PACE (fall back to BAC) or that a real protocol failure happened.
func ClassifyPACESupport(sw, message string) PACESupport {
	if paceNotSupportedCodes[strings.ToUpper(sw)] {
		return PACENotSupported
	}
	lower := strings.ToLower(message)
	for _, phrase := range paceNotSupportedPhrases {
		if strings.Contains(lower, phrase) {
			return PACENotSupported
		}
	}
	return PACESupported
}

// ClassifyBACFailure is used when the engine runs without PACE. A chip that
// refuses BAC with "conditions not satisfied" demands PACE, which is a
// document limitation rather than wrong MRZ input.
func ClassifyBACFailure(sw, message string) Status {
	if strings.EqualFold(sw, SWConditionsNotSatisfied.String()) {
		return StatusPACERequired
	}
	if strings.Contains(strings.ToUpper(message), "CONDITIONS NOT SATISFIED") {
		return StatusPACERequired
	}
	if strings.Contains(message, "expected length: 40 + 2, actual length: 2") {
		return StatusPACERequired
	}
	return StatusBACFailed
}
