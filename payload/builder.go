// Package payload builds the request bodies sent to the verification
// backend. Builders are pure: no I/O, same input gives the same output.
package payload

import (
	"encoding/base64"
	"errors"
	"fmt"

	"go-passport-reader/models"
	"go-passport-reader/nfc"
)

var ErrInvalidArgument = errors.New("invalid argument")

// FormatRaw is the format marker of raw payloads.
const FormatRaw = "raw"

// Payload is either *models.RawPayload or *models.LegacyPayload.
type Payload = models.NfcPayload

// BuildRaw encodes the data groups of a successful read. Any other outcome,
// undersized data groups or missing access keys give ErrInvalidArgument.
func BuildRaw(outcome nfc.ReadOutcome) (*models.RawPayload, error) {
	success, ok := outcome.(*nfc.Success)
	if !ok || success == nil {
		return nil, fmt.Errorf("%w: outcome is not a successful read", ErrInvalidArgument)
	}
	if err := nfc.ValidateDataGroups(success.DG1, success.DG2); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	if err := success.Keys.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}

	return &models.RawPayload{
		DG1RawB64: base64.StdEncoding.EncodeToString(success.DG1),
		DG2RawB64: base64.StdEncoding.EncodeToString(success.DG2),
		MRZKeys: models.MRZKeys{
			DocumentNumber: success.Keys.DocumentNumber,
			DateOfBirth:    success.Keys.DateOfBirth,
			DateOfExpiry:   success.Keys.DateOfExpiry,
		},
		Format: FormatRaw,
	}, nil
}

// BuildLegacy packs pre-parsed passport fields and the face image.
//
// Deprecated: backends accept BuildRaw payloads.
func BuildLegacy(passport map[string]string, face []byte) (*models.LegacyPayload, error) {
	if len(passport) == 0 {
		return nil, fmt.Errorf("%w: passport data is required", ErrInvalidArgument)
	}
	if len(face) < nfc.MinDG2Size {
		return nil, fmt.Errorf("%w: face image shorter than %d bytes", ErrInvalidArgument, nfc.MinDG2Size)
	}

	fields := make(map[string]string, len(passport))
	for k, v := range passport {
		fields[k] = v
	}
	return &models.LegacyPayload{
		Passport:     fields,
		FaceImageB64: base64.StdEncoding.EncodeToString(face),
	}, nil
}
