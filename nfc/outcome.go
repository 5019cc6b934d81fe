package nfc

import (
	"errors"
	"fmt"
	"regexp"
	"time"

	"go-passport-reader/document"
)

// Minimum sizes a data group must have to hold meaningful content.
const (
	MinDG1Size = 10
	MinDG2Size = 1024
)

var (
	ErrMissingAccessKeys = errors.New("access keys missing")
	ErrDG1TooSmall       = fmt.Errorf("dg1 shorter than %d bytes", MinDG1Size)
	ErrDG2TooSmall       = fmt.Errorf("dg2 shorter than %d bytes", MinDG2Size)
)

var datePattern = regexp.MustCompile(`^\d{6}$`)

// AccessKeys are the MRZ values that unlock the chip. They are supplied by
// the caller before any chip I/O and never logged in plaintext.
type AccessKeys struct {
	DocumentNumber string
	DateOfBirth    string // YYMMDD
	DateOfExpiry   string // YYMMDD
}

func (k AccessKeys) IsZero() bool {
	return k.DocumentNumber == "" && k.DateOfBirth == "" && k.DateOfExpiry == ""
}

// Validate checks that all three keys are present and both dates are YYMMDD.
func (k AccessKeys) Validate() error {
	if k.DocumentNumber == "" || k.DateOfBirth == "" || k.DateOfExpiry == "" {
		return ErrMissingAccessKeys
	}
	if !datePattern.MatchString(k.DateOfBirth) {
		return errors.New("date of birth must be YYMMDD")
	}
	if !datePattern.MatchString(k.DateOfExpiry) {
		return errors.New("date of expiry must be YYMMDD")
	}
	// parse errors quote the value, so they are not wrapped
	if _, err := document.ParseDateOfBirth(k.DateOfBirth, time.Now()); err != nil {
		return errors.New("date of birth is not a calendar date")
	}
	if _, err := document.ParseExpiryDate(k.DateOfExpiry, time.Now()); err != nil {
		return errors.New("date of expiry is not a calendar date")
	}
	return nil
}

// MRZInformation is the check-digit protected key seed shared by BAC and PACE.
func (k AccessKeys) MRZInformation() string {
	return document.MRZInformation(k.DocumentNumber, k.DateOfBirth, k.DateOfExpiry)
}

// Secrets returns the raw key values, for log redaction.
func (k AccessKeys) Secrets() []string {
	return []string{k.DocumentNumber, k.DateOfBirth, k.DateOfExpiry}
}

// KeyReference identifies the password type used for PACE.
type KeyReference byte

const (
	KeyReferenceMRZ KeyReference = 0x01
	KeyReferenceCAN KeyReference = 0x02
)

// SecretKey is the password handed to the injected authenticator.
type SecretKey struct {
	Reference KeyReference
	Seed      string
}

func (k AccessKeys) PACEKey() SecretKey {
	return SecretKey{Reference: KeyReferenceMRZ, Seed: k.MRZInformation()}
}

func (k AccessKeys) BACKey() SecretKey {
	return SecretKey{Reference: KeyReferenceMRZ, Seed: k.MRZInformation()}
}

type AuthMethod string

const (
	AuthNone AuthMethod = ""
	AuthPACE AuthMethod = "PACE"
	AuthBAC  AuthMethod = "BAC"
)

// DataGroupPresence records which optional data groups EF.COM lists. Their
// content is never read.
type DataGroupPresence struct {
	DG3  bool
	DG11 bool
	DG12 bool
	DG14 bool
}

// StageError is a non-fatal problem met during a read, e.g. a missing
// EF.CardAccess.
type StageError struct {
	Stage   string
	SW      string
	Message string
}

// ReadOutcome is either *Success or *Failure.
type ReadOutcome interface {
	Status() Status
	Duration() time.Duration
	isOutcome()
}

// Success carries the raw data groups of a completed read.
type Success struct {
	DG1           []byte
	DG2           []byte
	Keys          AccessKeys
	Method        AuthMethod
	PACEObjectID  string
	PACESupported bool
	Presence      DataGroupPresence
	LDSVersion    string
	ChipInfo      string
	Elapsed       time.Duration
	Warnings      []StageError
}

// ValidateDataGroups enforces the minimum sizes of DG1 and DG2.
func ValidateDataGroups(dg1, dg2 []byte) error {
	if len(dg1) < MinDG1Size {
		return fmt.Errorf("%w: got %d", ErrDG1TooSmall, len(dg1))
	}
	if len(dg2) < MinDG2Size {
		return fmt.Errorf("%w: got %d", ErrDG2TooSmall, len(dg2))
	}
	return nil
}

// NewSuccess builds a Success, rejecting data groups below the minimum sizes
// and missing access keys.
func NewSuccess(dg1, dg2 []byte, keys AccessKeys, method AuthMethod) (*Success, error) {
	if err := ValidateDataGroups(dg1, dg2); err != nil {
		return nil, err
	}
	if err := keys.Validate(); err != nil {
		return nil, err
	}
	return &Success{DG1: dg1, DG2: dg2, Keys: keys, Method: method}, nil
}

func (s *Success) Status() Status          { return StatusSuccess }
func (s *Success) Duration() time.Duration { return s.Elapsed }
func (s *Success) isOutcome()              {}

// Failure describes a terminal error. It never carries chip data.
type Failure struct {
	status        Status
	Stage         string
	SW            string
	Message       string
	Method        AuthMethod
	PACEObjectID  string
	PACESupported bool
	BACAttempted  bool
	ChipInfo      string
	Elapsed       time.Duration
	Warnings      []StageError
}

// NewFailure panics when given StatusSuccess: a failure must carry an error
// status.
func NewFailure(status Status, stage, sw, message string) *Failure {
	if status == StatusSuccess {
		panic("nfc: NewFailure called with SUCCESS")
	}
	return &Failure{status: status, Stage: stage, SW: sw, Message: message}
}

func (f *Failure) Status() Status          { return f.status }
func (f *Failure) Duration() time.Duration { return f.Elapsed }
func (f *Failure) isOutcome()              {}

func (f *Failure) Error() string {
	if f.SW != "" {
		return fmt.Sprintf("%s at %s (SW=%s)", f.status, f.Stage, f.SW)
	}
	return fmt.Sprintf("%s at %s", f.status, f.Stage)
}
