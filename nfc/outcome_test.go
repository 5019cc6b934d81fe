package nfc

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

var testKeys = AccessKeys{DocumentNumber: "L898902C3", DateOfBirth: "740812", DateOfExpiry: "120415"}

func TestNewSuccessBoundaries(t *testing.T) {
	tests := []struct {
		name    string
		dg1     int
		dg2     int
		wantErr error
	}{
		{"empty dg1", 0, MinDG2Size, ErrDG1TooSmall},
		{"dg1 one short", MinDG1Size - 1, MinDG2Size, ErrDG1TooSmall},
		{"dg2 one short", MinDG1Size, MinDG2Size - 1, ErrDG2TooSmall},
		{"minimum sizes", MinDG1Size, MinDG2Size, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewSuccess(bytes.Repeat([]byte{1}, tt.dg1), bytes.Repeat([]byte{2}, tt.dg2), testKeys, AuthBAC)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				require.Nil(t, s)
				return
			}
			require.NoError(t, err)
			require.Equal(t, StatusSuccess, s.Status())
		})
	}
}

func TestNewSuccessRequiresKeys(t *testing.T) {
	_, err := NewSuccess(make([]byte, MinDG1Size), make([]byte, MinDG2Size), AccessKeys{}, AuthBAC)
	require.ErrorIs(t, err, ErrMissingAccessKeys)
}

func TestNewFailureRejectsSuccess(t *testing.T) {
	require.Panics(t, func() { NewFailure(StatusSuccess, "connect", "", "") })

	f := NewFailure(StatusBACFailed, StageBAC, "6300", "bad keys")
	require.Equal(t, StatusBACFailed, f.Status())
	require.Equal(t, "BAC_FAILED at bac_authentication (SW=6300)", f.Error())
}

func TestAccessKeysValidate(t *testing.T) {
	require.NoError(t, testKeys.Validate())
	require.True(t, AccessKeys{}.IsZero())

	bad := testKeys
	bad.DateOfBirth = "1974-08-12"
	require.Error(t, bad.Validate())

	bad = testKeys
	bad.DateOfExpiry = "12041"
	require.Error(t, bad.Validate())

	bad = testKeys
	bad.DateOfBirth = "741332"
	err := bad.Validate()
	require.Error(t, err)
	require.NotContains(t, err.Error(), "741332")
}

func TestAccessKeysMRZInformation(t *testing.T) {
	require.Equal(t, "L898902C36"+"7408122"+"1204159", testKeys.MRZInformation())
	require.Equal(t, testKeys.MRZInformation(), testKeys.PACEKey().Seed)
	require.Equal(t, KeyReferenceMRZ, testKeys.BACKey().Reference)
}
