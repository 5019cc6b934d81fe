package nfc

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/moov-io/bertlv"
)

// idPACE is the arc under which every PACEInfo protocol identifier sits
// (BSI TR-03110 / ICAO 9303 part 11).
const idPACE = "0.4.0.127.0.7.2.2.4"

// PACEInfo is one PACE security descriptor from EF.CardAccess.
type PACEInfo struct {
	ObjectID string
	Version  int
	// ParameterID is the standardized domain parameter id, -1 when absent.
	ParameterID int
}

// ParseCardAccess returns the PACEInfo entries of an EF.CardAccess file in
// the order they appear. Other SecurityInfos are skipped.
func ParseCardAccess(data []byte) ([]PACEInfo, error) {
	packets, err := bertlv.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("bertlv decode failed: %w", err)
	}

	var infos []PACEInfo
	for _, set := range packets {
		if !strings.EqualFold(set.Tag, "31") {
			continue
		}
		items, err := children(set)
		if err != nil {
			return nil, err
		}
		for _, seq := range items {
			if info, ok := paceInfoFrom(seq); ok {
				infos = append(infos, info)
			}
		}
	}
	return infos, nil
}

func paceInfoFrom(seq bertlv.TLV) (PACEInfo, bool) {
	if !strings.EqualFold(seq.Tag, "30") {
		return PACEInfo{}, false
	}
	fields, err := children(seq)
	if err != nil || len(fields) < 2 || !strings.EqualFold(fields[0].Tag, "06") {
		return PACEInfo{}, false
	}

	oid := decodeOID(fields[0].Value)
	// PACEInfo protocols are id-PACE.<algorithm>.<cipher>; a single extra arc
	// denotes PACEDomainParameterInfo.
	if !strings.HasPrefix(oid, idPACE+".") || strings.Count(strings.TrimPrefix(oid, idPACE+"."), ".") != 1 {
		return PACEInfo{}, false
	}
	if !strings.EqualFold(fields[1].Tag, "02") {
		return PACEInfo{}, false
	}

	info := PACEInfo{ObjectID: oid, Version: intValue(fields[1].Value), ParameterID: -1}
	if len(fields) > 2 && strings.EqualFold(fields[2].Tag, "02") {
		info.ParameterID = intValue(fields[2].Value)
	}
	return info, true
}

// children returns the nested TLVs of a constructed packet, decoding the
// value when the decoder left it flat.
func children(p bertlv.TLV) ([]bertlv.TLV, error) {
	if len(p.TLVs) > 0 {
		return p.TLVs, nil
	}
	if len(p.Value) == 0 {
		return nil, nil
	}
	nested, err := bertlv.Decode(p.Value)
	if err != nil {
		return nil, fmt.Errorf("bertlv decode of %s failed: %w", p.Tag, err)
	}
	return nested, nil
}

func decodeOID(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	var arcs []string
	first := int(b[0])
	switch {
	case first < 40:
		arcs = append(arcs, "0", strconv.Itoa(first))
	case first < 80:
		arcs = append(arcs, "1", strconv.Itoa(first-40))
	default:
		arcs = append(arcs, "2", strconv.Itoa(first-80))
	}

	value := 0
	for _, c := range b[1:] {
		value = value<<7 | int(c&0x7F)
		if c&0x80 == 0 {
			arcs = append(arcs, strconv.Itoa(value))
			value = 0
		}
	}
	return strings.Join(arcs, ".")
}

func intValue(b []byte) int {
	return int(new(big.Int).SetBytes(b).Int64())
}

// encodeOID is the inverse of decodeOID for well formed dotted strings.
func encodeOID(oid string) []byte {
	parts := strings.Split(oid, ".")
	if len(parts) < 2 {
		return nil
	}
	a, _ := strconv.Atoi(parts[0])
	b, _ := strconv.Atoi(parts[1])
	out := []byte{byte(a*40 + b)}
	for _, p := range parts[2:] {
		v, _ := strconv.Atoi(p)
		var enc []byte
		enc = append(enc, byte(v&0x7F))
		for v >>= 7; v > 0; v >>= 7 {
			enc = append([]byte{byte(v&0x7F) | 0x80}, enc...)
		}
		out = append(out, enc...)
	}
	return out
}

// EncodeCardAccess builds a minimal EF.CardAccess holding the given PACE
// descriptors. Used by the simulated card.
func EncodeCardAccess(infos ...PACEInfo) []byte {
	var body []byte
	for _, info := range infos {
		oid := encodeOID(info.ObjectID)
		seq := append([]byte{0x06, byte(len(oid))}, oid...)
		seq = append(seq, 0x02, 0x01, byte(info.Version))
		if info.ParameterID >= 0 {
			seq = append(seq, 0x02, 0x01, byte(info.ParameterID))
		}
		body = append(body, 0x30, byte(len(seq)))
		body = append(body, seq...)
	}
	return append([]byte{0x31, byte(len(body))}, body...)
}
