// Package diagnostics turns the outcome of a chip read into an operator
// facing report. Reports never contain the raw access key values.
package diagnostics

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"go-passport-reader/document"
	"go-passport-reader/images"
	"go-passport-reader/logging"
	"go-passport-reader/nfc"
)

// Diagnostic-only stages and error codes.
const (
	StageDG1Parse      = "dg1_parse"
	StageDG1CheckDigit = "dg1_check_digit"

	CodeDG1ParseError      = "DG1_PARSE_ERROR"
	CodeCheckDigitMismatch = "CHECK_DIGIT_MISMATCH"
	CodeWarning            = "WARNING"
	unknownStage           = "unknown"
)

type Session struct {
	Status         string `json:"status"`
	AccessMethod   string `json:"access_method_used,omitempty"`
	PACESupported  bool   `json:"pace_supported"`
	PACEObjectID   string `json:"pace_object_id,omitempty"`
	BACAttempted   bool   `json:"bac_attempted"`
	DocumentType   string `json:"document_type,omitempty"`
	IssuingCountry string `json:"issuing_country,omitempty"`
	ChipInfo       string `json:"chip_info,omitempty"`
	ReadTimeMs     int64  `json:"read_time_ms"`
	ReadTime       string `json:"read_time"`
	LDSVersion     string `json:"lds_version,omitempty"`
}

type AccessKeys struct {
	DocumentNumberMasked string `json:"document_number_masked"`
	DateOfBirthMasked    string `json:"date_of_birth_masked"`
	DateOfExpiryMasked   string `json:"date_of_expiry_masked"`
	MRZKeyHash           string `json:"mrz_key_hash"`
}

// DG1 holds the decoded MRZ. Key fields are masked; the Matches flags tell
// whether the chip agrees with the keys that were entered.
type DG1 struct {
	Present             bool   `json:"present"`
	RawSize             int    `json:"raw_size"`
	Format              string `json:"format,omitempty"`
	DocumentNumber      string `json:"document_number,omitempty"`
	IssuingState        string `json:"issuing_state,omitempty"`
	Nationality         string `json:"nationality,omitempty"`
	Surname             string `json:"surname,omitempty"`
	GivenNames          string `json:"given_names,omitempty"`
	DateOfBirth         string `json:"date_of_birth,omitempty"`
	Sex                 string `json:"sex,omitempty"`
	DateOfExpiry        string `json:"date_of_expiry,omitempty"`
	OptionalDataRaw     string `json:"optional_data_raw,omitempty"`
	Expired             bool   `json:"expired"`
	DocumentNumberMatch bool   `json:"document_number_matches_key"`
	DateOfBirthMatch    bool   `json:"date_of_birth_matches_key"`
	DateOfExpiryMatch   bool   `json:"date_of_expiry_matches_key"`
}

type DG2 struct {
	Present     bool   `json:"present"`
	ImageFormat string `json:"image_format,omitempty"`
	WidthPx     int    `json:"width_px"`
	HeightPx    int    `json:"height_px"`
	SizeBytes   int    `json:"size_bytes"`
}

// OtherDataGroups are presence flags from EF.COM. DG3 is never read.
type OtherDataGroups struct {
	DG3Present  bool `json:"dg3_present"`
	DG11Present bool `json:"dg11_present"`
	DG12Present bool `json:"dg12_present"`
	DG14Present bool `json:"dg14_present"`
}

// Error is one failure or warning recorded for the attempt.
type Error struct {
	Stage        string `json:"stage"`
	ErrorCode    string `json:"error_code,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
	SW           string `json:"sw,omitempty"`
}

// Report describes exactly one read attempt. It is immutable once built.
type Report struct {
	ID        string          `json:"id"`
	CreatedAt string          `json:"created_at"`
	Session   Session         `json:"session"`
	Keys      AccessKeys      `json:"access_keys"`
	DG1       DG1             `json:"dg1"`
	DG2       DG2             `json:"dg2"`
	Other     OtherDataGroups `json:"other_data_groups"`
	Errors    []Error         `json:"errors"`

	// face image bytes travel out of band and are never serialized
	dg2 []byte
}

// FaceImage returns the raw EF.DG2 bytes of a successful read, or nil.
func (r *Report) FaceImage() []byte {
	return r.dg2
}

// Restore reattaches DG2 bytes to a report loaded from storage.
func Restore(r Report, dg2 []byte) *Report {
	r.dg2 = dg2
	return &r
}

type buildOptions struct {
	now   func() time.Time
	newID func() string
}

type Option func(*buildOptions)

func WithClock(now func() time.Time) Option {
	return func(o *buildOptions) { o.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(o *buildOptions) { o.newID = newID }
}

// Build aggregates one outcome and the access keys used for it.
func Build(outcome nfc.ReadOutcome, keys nfc.AccessKeys, opts ...Option) *Report {
	o := buildOptions{now: time.Now, newID: uuid.NewString}
	for _, opt := range opts {
		opt(&o)
	}
	redactor := logging.NewRedactor(keys.Secrets()...)
	now := o.now()

	r := &Report{
		ID:        o.newID(),
		CreatedAt: now.UTC().Truncate(time.Second).Format(time.RFC3339),
		Keys: AccessKeys{
			DocumentNumberMasked: MaskDocumentNumber(keys.DocumentNumber),
			DateOfBirthMasked:    document.MaskDate(keys.DateOfBirth),
			DateOfExpiryMasked:   document.MaskDate(keys.DateOfExpiry),
			MRZKeyHash:           MRZKeyHash(keys),
		},
		Errors: []Error{},
	}
	if outcome == nil {
		r.Session.Status = nfc.StatusUnknownError.String()
		r.Errors = append(r.Errors, Error{Stage: unknownStage, ErrorCode: nfc.StatusUnknownError.String(), ErrorMessage: "no outcome"})
		return r
	}

	r.Session.Status = outcome.Status().String()
	r.Session.ReadTimeMs = outcome.Duration().Milliseconds()
	r.Session.ReadTime = FormatReadTime(outcome.Duration())

	switch out := outcome.(type) {
	case *nfc.Success:
		r.Session.AccessMethod = string(out.Method)
		r.Session.PACESupported = out.PACESupported
		r.Session.PACEObjectID = out.PACEObjectID
		r.Session.BACAttempted = out.Method == nfc.AuthBAC
		r.Session.ChipInfo = redactor.Redact(out.ChipInfo)
		r.Session.LDSVersion = out.LDSVersion
		r.Other = OtherDataGroups{
			DG3Present:  out.Presence.DG3,
			DG11Present: out.Presence.DG11,
			DG12Present: out.Presence.DG12,
			DG14Present: out.Presence.DG14,
		}
		r.addWarnings(out.Warnings, redactor)
		r.fillDG1(out.DG1, keys, redactor, now)
		r.fillDG2(out.DG2)
	case *nfc.Failure:
		r.Session.AccessMethod = string(out.Method)
		r.Session.PACESupported = out.PACESupported
		r.Session.PACEObjectID = out.PACEObjectID
		r.Session.BACAttempted = out.BACAttempted
		r.Session.ChipInfo = redactor.Redact(out.ChipInfo)
		r.addWarnings(out.Warnings, redactor)
		stage := out.Stage
		if stage == "" {
			stage = unknownStage
		}
		r.Errors = append(r.Errors, Error{
			Stage:        stage,
			ErrorCode:    out.Status().String(),
			ErrorMessage: redactor.Redact(out.Message),
			SW:           out.SW,
		})
	}
	return r
}

func (r *Report) addWarnings(warnings []nfc.StageError, redactor *logging.Redactor) {
	for _, w := range warnings {
		r.Errors = append(r.Errors, Error{
			Stage:        w.Stage,
			ErrorCode:    CodeWarning,
			ErrorMessage: redactor.Redact(w.Message),
			SW:           w.SW,
		})
	}
}

func (r *Report) fillDG1(raw []byte, keys nfc.AccessKeys, redactor *logging.Redactor, now time.Time) {
	if len(raw) == 0 {
		return
	}
	r.DG1.Present = true
	r.DG1.RawSize = len(raw)

	mrz, err := document.DecodeDG1(raw)
	if err != nil {
		r.Errors = append(r.Errors, Error{Stage: StageDG1Parse, ErrorCode: CodeDG1ParseError, ErrorMessage: redactor.Redact(err.Error())})
	}
	if mrz == nil {
		return
	}

	r.DG1.Format = string(mrz.Format)
	r.DG1.DocumentNumber = MaskDocumentNumber(mrz.DocumentNumber)
	r.DG1.IssuingState = mrz.IssuingState
	r.DG1.Nationality = mrz.Nationality
	r.DG1.Surname = redactor.Redact(mrz.Surname)
	r.DG1.GivenNames = redactor.Redact(mrz.GivenNames)
	r.DG1.DateOfBirth = document.MaskDate(mrz.DateOfBirth)
	r.DG1.Sex = mrz.Sex
	r.DG1.DateOfExpiry = document.MaskDate(mrz.DateOfExpiry)
	r.DG1.OptionalDataRaw = redactor.Redact(mrz.OptionalDataRaw)
	r.DG1.DocumentNumberMatch = mrz.DocumentNumber != "" && mrz.DocumentNumber == keys.DocumentNumber
	r.DG1.DateOfBirthMatch = mrz.DateOfBirth != "" && mrz.DateOfBirth == keys.DateOfBirth
	r.DG1.DateOfExpiryMatch = mrz.DateOfExpiry != "" && mrz.DateOfExpiry == keys.DateOfExpiry

	if expiry, err := document.ParseExpiryDate(mrz.DateOfExpiry, now); err == nil {
		r.DG1.Expired = expiry.Before(now)
	}

	r.Session.DocumentType = mrz.DocumentType
	r.Session.IssuingCountry = mrz.IssuingCountry()

	if err := mrz.VerifyCheckDigits(); err != nil {
		for _, e := range unjoin(err) {
			r.Errors = append(r.Errors, Error{Stage: StageDG1CheckDigit, ErrorCode: CodeCheckDigitMismatch, ErrorMessage: redactor.Redact(e.Error())})
		}
	}
}

func (r *Report) fillDG2(raw []byte) {
	if len(raw) == 0 {
		return
	}
	meta := images.ParseDG2Metadata(raw)
	r.DG2 = DG2{
		Present:     true,
		ImageFormat: string(meta.Format),
		WidthPx:     meta.Width,
		HeightPx:    meta.Height,
		SizeBytes:   len(raw),
	}
	r.dg2 = raw
}

// unjoin flattens an errors.Join result.
func unjoin(err error) []error {
	var joined interface{ Unwrap() []error }
	if errors.As(err, &joined) {
		return joined.Unwrap()
	}
	return []error{err}
}

// MaskDocumentNumber keeps the first three characters ("AB123456" becomes
// "AB1*****").
func MaskDocumentNumber(number string) string {
	return document.MaskDocumentNumber(number)
}

// MRZKeyHash is the hex encoding of the first 8 bytes of SHA-256 over
// "doc|dob|exp". Operators can correlate reports with it without seeing
// the keys.
func MRZKeyHash(keys nfc.AccessKeys) string {
	sum := sha256.Sum256([]byte(keys.DocumentNumber + "|" + keys.DateOfBirth + "|" + keys.DateOfExpiry))
	return hex.EncodeToString(sum[:8])
}

// FormatReadTime renders d as "N ms" below one second, "N.NN s" otherwise.
func FormatReadTime(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%d ms", d.Milliseconds())
	}
	return fmt.Sprintf("%.2f s", d.Seconds())
}
