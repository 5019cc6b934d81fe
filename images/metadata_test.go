package images

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// sof0 builds an SOF0 segment for a frame of the given size.
func sof0(width, height int) []byte {
	return []byte{0xFF, 0xC0, 0x00, 0x11, 0x08,
		byte(height >> 8), byte(height), byte(width >> 8), byte(width),
		0x03, 0x01, 0x22, 0x00}
}

func TestParseJPEGDimensions(t *testing.T) {
	data := append([]byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x02}, sof0(480, 640)...)
	h, w := ParseJPEGDimensions(data)
	require.Equal(t, 640, h)
	require.Equal(t, 480, w)

	h, w = ParseJPEGDimensions([]byte{0xFF, 0xD8, 0xFF, 0xC0, 0x00})
	require.Zero(t, h)
	require.Zero(t, w)
}

func TestParseDG2Metadata(t *testing.T) {
	header := []byte{0x75, 0x82, 0x10, 0x00, 0x7F, 0x61, 0x82}
	tests := []struct {
		name string
		raw  []byte
		want Metadata
	}{
		{
			name: "jpeg after header",
			raw:  append(append(append([]byte{}, header...), 0xFF, 0xD8, 0xFF, 0xE0), sof0(480, 640)...),
			want: Metadata{Format: FormatJPEG, Width: 480, Height: 640},
		},
		{
			name: "progressive jpeg",
			raw:  append([]byte{0xFF, 0xD8}, 0xFF, 0xC2, 0x00, 0x11, 0x08, 0x01, 0x00, 0x00, 0xC8),
			want: Metadata{Format: FormatJPEG, Width: 200, Height: 256},
		},
		{
			name: "jpeg2000",
			raw:  append(append([]byte{}, header...), 0x00, 0x00, 0x00, 0x0C, 0x6A, 0x50, 0x20, 0x20, 0x0D, 0x0A),
			want: Metadata{Format: FormatJPEG2000},
		},
		{
			name: "unknown",
			raw:  header,
			want: Metadata{Format: FormatUnknown},
		},
		{
			name: "empty",
			raw:  nil,
			want: Metadata{Format: FormatUnknown},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, ParseDG2Metadata(tt.raw))
		})
	}
}

func TestExtractFaceImage(t *testing.T) {
	jpg := []byte{0xFF, 0xD8, 0x01, 0x02, 0xFF, 0xD9}
	raw := append(append([]byte{0x75, 0x10, 0x5F, 0x2E}, jpg...), 0xAA, 0xBB)
	require.Equal(t, jpg, ExtractFaceImage(raw))

	// no EOI: runs to the end
	require.Equal(t, []byte{0xFF, 0xD8, 0x01}, ExtractFaceImage([]byte{0x00, 0xFF, 0xD8, 0x01}))

	require.Nil(t, ExtractFaceImage([]byte{0x00, 0x01}))
}
