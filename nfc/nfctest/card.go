// Package nfctest provides a simulated eMRTD card for tests and demos.
package nfctest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/skythen/apdu"

	"go-passport-reader/document"
	"go-passport-reader/nfc"
)

// Card answers SELECT and READ BINARY like an unprotected LDS1 chip. It
// implements nfc.Transceiver and nfc.ChipDescriber.
type Card struct {
	mu sync.Mutex

	// Files maps file identifiers to EF contents.
	Files map[uint16][]byte
	// SFI maps short file identifiers to file identifiers.
	SFI map[byte]uint16

	ConnectErr  error
	TransmitErr error
	CloseErr    error
	// SelectAppSW overrides the answer to SELECT APPLICATION.
	SelectAppSW nfc.StatusWord
	// ReadSW makes every READ BINARY of the given file fail with that word.
	ReadSW map[uint16]nfc.StatusWord
	Info   string

	timeout   time.Duration
	connected bool
	appOK     bool
	selected  uint16
	commands  [][]byte
	closes    int
	oddReads  int
}

// NewCard returns a card holding EF.COM, DG1 and DG2. cardAccess is
// installed as EF.CardAccess when not nil.
func NewCard(com, dg1, dg2, cardAccess []byte) *Card {
	c := &Card{
		Files: map[uint16][]byte{},
		SFI:   map[byte]uint16{},
		Info:  "simulated eMRTD",
	}
	if com != nil {
		c.Files[nfc.FIDCOM] = com
	}
	if dg1 != nil {
		c.Files[nfc.FIDDG1] = dg1
	}
	if dg2 != nil {
		c.Files[nfc.FIDDG2] = dg2
	}
	if cardAccess != nil {
		c.Files[fidCardAccess] = cardAccess
		c.SFI[nfc.SFICardAccess] = fidCardAccess
	}
	return c
}

const fidCardAccess = 0x011C

func (c *Card) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ConnectErr != nil {
		return c.ConnectErr
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	c.connected = true
	return nil
}

func (c *Card) SetTimeout(d time.Duration) {
	c.mu.Lock()
	c.timeout = d
	c.mu.Unlock()
}

func (c *Card) Timeout() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.timeout
}

func (c *Card) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closes++
	c.connected = false
	return c.CloseErr
}

// Closes reports how often Close was called.
func (c *Card) Closes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closes
}

// Commands returns a copy of every command received.
func (c *Card) Commands() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]byte, len(c.commands))
	copy(out, c.commands)
	return out
}

func (c *Card) ChipInfo() string {
	return c.Info
}

func (c *Card) Transmit(cmd []byte) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.commands = append(c.commands, append([]byte(nil), cmd...))

	if !c.connected {
		return nil, errors.New("card not connected")
	}
	if c.TransmitErr != nil {
		return nil, c.TransmitErr
	}

	capdu, err := apdu.ParseCapdu(cmd)
	if err != nil {
		return respond(nil, nfc.SWWrongLength)
	}

	switch capdu.Ins {
	case 0xA4:
		return c.selectFile(capdu)
	case 0xB0:
		return c.readBinary(capdu)
	case 0xB1:
		return c.readBinaryOdd(capdu)
	default:
		return respond(nil, nfc.SWInsNotSupported)
	}
}

func (c *Card) selectFile(capdu *apdu.Capdu) ([]byte, error) {
	switch capdu.P1 {
	case 0x04:
		if c.SelectAppSW != 0 {
			return respond(nil, c.SelectAppSW)
		}
		if !bytes.Equal(capdu.Data, nfc.MRTDApplicationID) {
			return respond(nil, nfc.SWFileNotFound)
		}
		c.appOK = true
		return respond(nil, nfc.SWNoError)
	case 0x02:
		if !c.appOK || len(capdu.Data) != 2 {
			return respond(nil, nfc.SWConditionsNotSatisfied)
		}
		fid := uint16(capdu.Data[0])<<8 | uint16(capdu.Data[1])
		if _, ok := c.Files[fid]; !ok {
			return respond(nil, nfc.SWFileNotFound)
		}
		c.selected = fid
		return respond(nil, nfc.SWNoError)
	default:
		return respond(nil, nfc.SWIncorrectP1P2)
	}
}

func (c *Card) readBinary(capdu *apdu.Capdu) ([]byte, error) {
	fid := c.selected
	offset := int(capdu.P1)<<8 | int(capdu.P2)
	if capdu.P1&0x80 != 0 {
		sfi := capdu.P1 & 0x1F
		var ok bool
		if fid, ok = c.SFI[sfi]; !ok {
			return respond(nil, nfc.SWFileNotFound)
		}
		c.selected = fid
		offset = int(capdu.P2)
	}
	if fid == 0 {
		return respond(nil, nfc.SWConditionsNotSatisfied)
	}
	if sw, ok := c.ReadSW[fid]; ok {
		return respond(nil, sw)
	}

	data := c.Files[fid]
	if offset > len(data) {
		return respond(nil, nfc.SWIncorrectP1P2)
	}
	ne := capdu.Ne
	if ne == 0 {
		ne = 256
	}
	end := offset + ne
	if end > len(data) {
		return respond(data[offset:], nfc.SWEndOfFile)
	}
	return respond(data[offset:end], nfc.SWNoError)
}

// readBinaryOdd serves READ BINARY with an offset data object (54) on the
// current EF and wraps the result in a discretionary data object (53).
func (c *Card) readBinaryOdd(capdu *apdu.Capdu) ([]byte, error) {
	if capdu.P1 != 0 || capdu.P2 != 0 {
		return respond(nil, nfc.SWIncorrectP1P2)
	}
	d := capdu.Data
	if len(d) < 3 || d[0] != 0x54 || int(d[1]) != len(d)-2 {
		return respond(nil, nfc.SWWrongLength)
	}
	offset := 0
	for _, b := range d[2:] {
		offset = offset<<8 | int(b)
	}

	fid := c.selected
	if fid == 0 {
		return respond(nil, nfc.SWConditionsNotSatisfied)
	}
	if sw, ok := c.ReadSW[fid]; ok {
		return respond(nil, sw)
	}
	c.oddReads++

	data := c.Files[fid]
	if offset > len(data) {
		return respond(nil, nfc.SWIncorrectP1P2)
	}
	ne := capdu.Ne
	if ne == 0 {
		ne = 256
	}
	n := ne - 3
	sw := nfc.SWNoError
	if offset+n > len(data) {
		n = len(data) - offset
		sw = nfc.SWEndOfFile
	}
	chunk := data[offset : offset+n]
	wrapped := append([]byte{0x53}, berLength(len(chunk))...)
	return respond(append(wrapped, chunk...), sw)
}

// OddReads reports how many READ BINARY commands used an offset data
// object.
func (c *Card) OddReads() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.oddReads
}

func respond(data []byte, sw nfc.StatusWord) ([]byte, error) {
	r := apdu.Rapdu{Data: data, SW1: sw.SW1(), SW2: sw.SW2()}
	b, err := r.Bytes()
	if err != nil {
		return nil, fmt.Errorf("failed to encode response: %w", err)
	}
	return b, nil
}

// Specimen MRZ of the ICAO 9303 TD3 example passport.
const (
	SpecimenMRZ = "P<UTOERIKSSON<<ANNA<MARIA<<<<<<<<<<<<<<<<<<<" +
		"L898902C36UTO7408122F1204159ZE184226B<<<<<10"
	SpecimenDocumentNumber = "L898902C3"
	SpecimenDateOfBirth    = "740812"
	SpecimenDateOfExpiry   = "120415"
)

// SpecimenKeys are the access keys matching SpecimenMRZ.
func SpecimenKeys() nfc.AccessKeys {
	return nfc.AccessKeys{
		DocumentNumber: SpecimenDocumentNumber,
		DateOfBirth:    SpecimenDateOfBirth,
		DateOfExpiry:   SpecimenDateOfExpiry,
	}
}

// FakeJPEG returns a JPEG-shaped byte string with an SOF0 segment declaring
// the given size, padded to n bytes before the EOI marker.
func FakeJPEG(width, height, n int) []byte {
	b := []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00, 0x01, 0x01, 0x00, 0x00, 0x01, 0x00, 0x01, 0x00, 0x00}
	b = append(b, 0xFF, 0xC0, 0x00, 0x11, 0x08,
		byte(height>>8), byte(height), byte(width>>8), byte(width),
		0x03, 0x01, 0x22, 0x00, 0x02, 0x11, 0x01, 0x03, 0x11, 0x01)
	for len(b) < n-2 {
		b = append(b, 0x00)
	}
	return append(b, 0xFF, 0xD9)
}

// EncodeDG2 wraps an image in a minimal EF.DG2 container (tag 75).
func EncodeDG2(image []byte) []byte {
	inner := append([]byte{0x5F, 0x2E}, berLength(len(image))...)
	inner = append(inner, image...)
	out := append([]byte{0x75}, berLength(len(inner))...)
	return append(out, inner...)
}

func berLength(n int) []byte {
	switch {
	case n < 0x80:
		return []byte{byte(n)}
	case n <= 0xFF:
		return []byte{0x81, byte(n)}
	case n <= 0xFFFF:
		return []byte{0x82, byte(n >> 8), byte(n)}
	default:
		return []byte{0x83, byte(n >> 16), byte(n >> 8), byte(n)}
	}
}

// SpecimenCard returns a card holding the specimen passport with a 2 KiB
// face image. withPACE installs an EF.CardAccess advertising PACE.
func SpecimenCard(withPACE bool) *Card {
	var cardAccess []byte
	if withPACE {
		cardAccess = nfc.EncodeCardAccess(nfc.PACEInfo{ObjectID: "0.4.0.127.0.7.2.2.4.2.2", Version: 2, ParameterID: 13})
	}
	return NewCard(
		nfc.EncodeCOM("0107", 0x61, 0x75, 0x6E),
		document.EncodeDG1(SpecimenMRZ),
		EncodeDG2(FakeJPEG(480, 640, 2048)),
		cardAccess,
	)
}
