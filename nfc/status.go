package nfc

// Status is the canonical classification of a read attempt. Every value is
// terminal for the attempt it describes.
type Status string

const (
	StatusSuccess               Status = "SUCCESS"
	StatusNFCNotAvailable       Status = "NFC_NOT_AVAILABLE"
	StatusNFCNotISODep          Status = "NFC_NOT_ISODEP"
	StatusAppletSelectionFailed Status = "APPLET_SELECTION_FAILED"
	StatusBACFailed             Status = "BAC_FAILED"
	StatusPACEFailed            Status = "PACE_FAILED"
	StatusPACERequired          Status = "PACE_REQUIRED"
	StatusDGReadError           Status = "DG_READ_ERROR"
	StatusPartialRead           Status = "PARTIAL_READ"
	StatusUnknownError          Status = "UNKNOWN_ERROR"
)

// Statuses lists every status in diagnostic precedence order.
var Statuses = []Status{
	StatusSuccess,
	StatusNFCNotAvailable,
	StatusNFCNotISODep,
	StatusAppletSelectionFailed,
	StatusBACFailed,
	StatusPACEFailed,
	StatusPACERequired,
	StatusDGReadError,
	StatusPartialRead,
	StatusUnknownError,
}

func (s Status) String() string {
	return string(s)
}

// AllowsBackendCall reports whether data from an attempt with this status may
// be sent to the verification backend. Only SUCCESS qualifies.
func (s Status) AllowsBackendCall() bool {
	return s == StatusSuccess
}

// IsClientError reports whether the attempt failed on the reading side.
func (s Status) IsClientError() bool {
	return s != StatusSuccess
}

// ParseStatus maps a status string back onto the enumeration; unknown values
// become UNKNOWN_ERROR.
func ParseStatus(s string) Status {
	for _, st := range Statuses {
		if string(st) == s {
			return st
		}
	}
	return StatusUnknownError
}
