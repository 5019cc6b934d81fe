package images

import (
	"bytes"
)

type Format string

const (
	FormatJPEG     Format = "JPEG"
	FormatJPEG2000 Format = "JPEG2000"
	FormatUnknown  Format = "Unknown"
)

var (
	jpegSOI = []byte{0xFF, 0xD8}
	jpegEOI = []byte{0xFF, 0xD9}
	// start of the JP2 signature box
	jp2Signature = []byte{0x00, 0x00, 0x00, 0x0C, 0x6A, 0x50}
)

// Metadata describes the face image inside EF.DG2. Width and Height are 0
// when they could not be determined (always so for JPEG2000).
type Metadata struct {
	Format Format `json:"format"`
	Width  int    `json:"width_px"`
	Height int    `json:"height_px"`
}

// ParseDG2Metadata locates the face image in raw EF.DG2 bytes by signature.
func ParseDG2Metadata(raw []byte) Metadata {
	if offset := bytes.Index(raw, jpegSOI); offset >= 0 {
		h, w := ParseJPEGDimensions(raw[offset:])
		return Metadata{Format: FormatJPEG, Width: w, Height: h}
	}
	if bytes.Contains(raw, jp2Signature) {
		return Metadata{Format: FormatJPEG2000}
	}
	return Metadata{Format: FormatUnknown}
}

// ParseJPEGDimensions scans for the first SOF0, SOF1 or SOF2 marker and
// returns the frame height and width, or zeros when none is found.
func ParseJPEGDimensions(b []byte) (height, width int) {
	for i := 0; i+8 < len(b); i++ {
		if b[i] != 0xFF {
			continue
		}
		switch b[i+1] {
		case 0xC0, 0xC1, 0xC2:
			// FF Cx Lh Ll P Yh Yl Xh Xl
			height = int(b[i+5])<<8 | int(b[i+6])
			width = int(b[i+7])<<8 | int(b[i+8])
			return height, width
		}
	}
	return 0, 0
}

// ExtractFaceImage returns the JPEG stream embedded in raw EF.DG2, from the
// SOI marker through the first EOI after it, or to the end of the buffer
// when there is no EOI. It returns nil when no JPEG is present.
func ExtractFaceImage(raw []byte) []byte {
	start := bytes.Index(raw, jpegSOI)
	if start < 0 {
		return nil
	}
	end := len(raw)
	if eoi := bytes.Index(raw[start+2:], jpegEOI); eoi >= 0 {
		end = start + 2 + eoi + 2
	}
	return raw[start:end]
}
