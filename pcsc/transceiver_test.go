package pcsc

import (
	"testing"

	"github.com/stretchr/testify/require"

	"go-passport-reader/nfc"
)

var _ nfc.Transceiver = (*Transceiver)(nil)
var _ nfc.ChipDescriber = (*Transceiver)(nil)

func TestIsISODep(t *testing.T) {
	tests := []struct {
		name string
		atr  []byte
		want bool
	}{
		{"iso 14443-4 type A", []byte{0x3B, 0x88, 0x80, 0x01, 0x00, 0x00, 0x00, 0x00, 0x33, 0x81, 0x81, 0x00, 0x3A}, true},
		{"mifare ultralight", []byte{0x3B, 0x8F, 0x80, 0x01, 0x80, 0x4F, 0x0C, 0xA0, 0x00, 0x00, 0x03, 0x06, 0x03, 0x00, 0x03, 0x00, 0x00, 0x00, 0x00, 0x68}, false},
		{"empty", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, IsISODep(tt.atr))
		})
	}
}

func TestFilterReaders(t *testing.T) {
	readers := []string{"ACS ACR122U 00 00", "Identiv uTrust 3700 F"}
	require.Equal(t, []string{"Identiv uTrust 3700 F"}, filterReaders(readers, "Identiv uTrust 3700 F"))
	require.Empty(t, filterReaders(readers, "missing"))
}

func TestUnconnectedTransceiver(t *testing.T) {
	tr := New("")
	_, err := tr.Transmit([]byte{0x00, 0xA4, 0x04, 0x0C})
	require.Error(t, err)
	require.Empty(t, tr.ChipInfo())
	require.NoError(t, tr.Close())
}
