package nfc

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Transceiver is the byte level link to a contactless card. Implementations
// exist for PC/SC readers (package pcsc) and for the simulated card in
// package nfctest.
type Transceiver interface {
	// Connect blocks until a card is present and an ISO-DEP link is open or
	// ctx is done.
	Connect(ctx context.Context) error
	SetTimeout(d time.Duration)
	Transmit(cmd []byte) ([]byte, error)
	Close() error
}

// ChipDescriber is optionally implemented by transceivers that can describe
// the connected chip (reader name, ATR, ...).
type ChipDescriber interface {
	ChipInfo() string
}

// Session is an authenticated channel to the chip. Commands sent through it
// are protected by secure messaging when the authenticator set that up.
type Session interface {
	Transmit(cmd []byte) ([]byte, error)
	Close() error
}

var (
	// ErrNFCUnavailable is returned by Connect when no reader or radio is usable.
	ErrNFCUnavailable = errors.New("nfc not available")
	// ErrNotISODep is returned by Connect when the tag is not an ISO 14443-4 card.
	ErrNotISODep = errors.New("tag does not support ISO-DEP")
)

// StatusError reports a command answered with a non-success status word.
type StatusError struct {
	Op string
	SW StatusWord
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s failed: SW=%s", e.Op, e.SW)
}
