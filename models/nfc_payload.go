package models

type MRZKeys struct {
	DocumentNumber string `json:"document_number"`
	DateOfBirth    string `json:"date_of_birth"`
	DateOfExpiry   string `json:"date_of_expiry"`
}

// RawPayload carries the data groups exactly as read from the chip.
type RawPayload struct {
	DG1RawB64 string  `json:"dg1_raw_b64"`
	DG2RawB64 string  `json:"dg2_raw_b64"`
	MRZKeys   MRZKeys `json:"mrz_keys"`
	Format    string  `json:"format"`
}

// LegacyPayload is the pre-parsed variant kept for older backends.
//
// Deprecated: use RawPayload.
type LegacyPayload struct {
	Passport     map[string]string `json:"passport"`
	FaceImageB64 string            `json:"face_image_b64"`
}

type NfcStoreResponse struct {
	ScanID string `json:"scan_id"`
	Status string `json:"status"`
}

// NfcPayload is implemented by RawPayload and LegacyPayload only.
type NfcPayload interface {
	PayloadFormat() string
	isNfcPayload()
}

func (*RawPayload) PayloadFormat() string { return "raw" }
func (*RawPayload) isNfcPayload()         {}

func (*LegacyPayload) PayloadFormat() string { return "legacy" }
func (*LegacyPayload) isNfcPayload()         {}
