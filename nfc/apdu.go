package nfc

import (
	"fmt"
	"log/slog"

	"github.com/gmrtd/gmrtd/utils"
	"github.com/skythen/apdu"

	"go-passport-reader/document"
)

// MRTDApplicationID is the AID of the ICAO LDS1 eMRTD application.
var MRTDApplicationID = []byte{0xA0, 0x00, 0x00, 0x02, 0x47, 0x10, 0x01}

// Elementary file identifiers.
const (
	FIDCOM = 0x011E
	FIDDG1 = 0x0101
	FIDDG2 = 0x0102

	SFICardAccess = 0x1C
)

const (
	insSelect        = 0xA4
	insReadBinary    = 0xB0
	insReadBinaryOdd = 0xB1

	// odd READ BINARY carries its offset in a 0x54 object and answers
	// with a 0x53 object
	tagOffsetObject       = 0x54
	tagDiscretionaryData  = 0x53
	discretionaryOverhead = 3

	// SWEndOfFile is returned when fewer bytes than requested were left.
	SWEndOfFile StatusWord = 0x6282

	headerProbeLen = 8

	// maxReadChunk keeps protected responses within a short APDU.
	maxReadChunk = 0xDF

	// maxShortOffset is the last offset plain READ BINARY can address.
	maxShortOffset = 0x7FFF
	maxFileSize    = 0xFFFFFF
)

type transmitter interface {
	Transmit(cmd []byte) ([]byte, error)
}

func transmit(t transmitter, op string, c apdu.Capdu) ([]byte, error) {
	cmd, err := c.Bytes()
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", op, err)
	}
	slog.Debug("Sending APDU", "op", op, "header", utils.BytesToHex(cmd[:4]))

	resp, err := t.Transmit(cmd)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	r, err := apdu.ParseRapdu(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s response: %w", op, err)
	}

	sw := NewStatusWord(r.SW1, r.SW2)
	slog.Debug("Received APDU response", "op", op, "sw", sw.String(), "data_len", len(r.Data))
	if !sw.IsSuccess() && sw != SWEndOfFile {
		return nil, &StatusError{Op: op, SW: sw}
	}
	return r.Data, nil
}

func selectApplication(t transmitter, aid []byte) error {
	_, err := transmit(t, "SELECT APPLICATION", apdu.Capdu{Cla: 0x00, Ins: insSelect, P1: 0x04, P2: 0x0C, Data: aid})
	return err
}

func selectFile(t transmitter, fid uint16) error {
	data := []byte{byte(fid >> 8), byte(fid)}
	_, err := transmit(t, fmt.Sprintf("SELECT EF %04X", fid), apdu.Capdu{Cla: 0x00, Ins: insSelect, P1: 0x02, P2: 0x0C, Data: data})
	return err
}

func readBinaryCommand(offset, n int) apdu.Capdu {
	return apdu.Capdu{Cla: 0x00, Ins: insReadBinary, P1: byte(offset >> 8), P2: byte(offset), Ne: n}
}

// readBinaryOddCommand reads the current EF from an offset beyond the 15 bits
// of plain READ BINARY.
func readBinaryOddCommand(offset, n int) apdu.Capdu {
	var data []byte
	if offset > 0xFFFF {
		data = []byte{tagOffsetObject, 0x03, byte(offset >> 16), byte(offset >> 8), byte(offset)}
	} else {
		data = []byte{tagOffsetObject, 0x02, byte(offset >> 8), byte(offset)}
	}
	return apdu.Capdu{Cla: 0x00, Ins: insReadBinaryOdd, P1: 0x00, P2: 0x00, Data: data, Ne: n + discretionaryOverhead}
}

// unwrapDiscretionaryData returns the content of the 0x53 object an odd
// READ BINARY responds with. A short response keeps what was received.
func unwrapDiscretionaryData(resp []byte) ([]byte, error) {
	tag, length, headerLen, err := document.ReadTagLength(resp)
	if err != nil {
		return nil, err
	}
	if tag != tagDiscretionaryData {
		return nil, fmt.Errorf("unexpected tag 0x%X in odd READ BINARY response", tag)
	}
	return resp[headerLen:min(len(resp), headerLen+length)], nil
}

func readBinarySFICommand(sfi byte, n int) apdu.Capdu {
	return apdu.Capdu{Cla: 0x00, Ins: insReadBinary, P1: 0x80 | sfi, P2: 0x00, Ne: n}
}

// readTransparent reads a whole TLV-structured EF. When sfi is non-zero the
// first READ BINARY selects the file implicitly, otherwise the EF must be
// selected already. The total size comes from the outer TLV header.
func readTransparent(t transmitter, name string, sfi byte) ([]byte, error) {
	op := "READ BINARY " + name
	first := readBinaryCommand(0, headerProbeLen)
	if sfi != 0 {
		first = readBinarySFICommand(sfi, headerProbeLen)
	}

	head, err := transmit(t, op, first)
	if err != nil {
		return nil, err
	}
	_, length, headerLen, err := document.ReadTagLength(head)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid file header: %w", name, err)
	}

	total := headerLen + length
	if total > maxFileSize {
		return nil, fmt.Errorf("%s: file size %d exceeds READ BINARY range", name, total)
	}
	buf := make([]byte, 0, total)
	buf = append(buf, head...)
	for len(buf) < total {
		n := min(total-len(buf), maxReadChunk)
		chunk, err := readChunk(t, op, len(buf), n)
		if err != nil {
			return nil, err
		}
		if len(chunk) == 0 {
			return nil, fmt.Errorf("%s: empty response at offset %d", name, len(buf))
		}
		buf = append(buf, chunk...)
	}
	if len(buf) > total {
		buf = buf[:total]
	}
	return buf, nil
}

func readChunk(t transmitter, op string, offset, n int) ([]byte, error) {
	if offset <= maxShortOffset {
		return transmit(t, op, readBinaryCommand(offset, n))
	}
	resp, err := transmit(t, op, readBinaryOddCommand(offset, n))
	if err != nil {
		return nil, err
	}
	chunk, err := unwrapDiscretionaryData(resp)
	if err != nil {
		return nil, fmt.Errorf("%s: offset %d: %w", op, offset, err)
	}
	return chunk, nil
}
