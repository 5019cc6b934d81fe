package main

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/require"

	"go-passport-reader/diagnostics"
	"go-passport-reader/nfc"
	"go-passport-reader/nfc/nfctest"
)

func TestReportEncodingRoundTrip(t *testing.T) {
	card := nfctest.SpecimenCard(true)
	outcome := specimenEngine(card).Read(t.Context(), nfctest.SpecimenKeys())
	require.Equal(t, nfc.StatusSuccess, outcome.Status())

	report := diagnostics.Build(outcome, nfctest.SpecimenKeys(),
		diagnostics.WithClock(func() time.Time { return time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC) }),
		diagnostics.WithIDGenerator(func() string { return "report-1" }),
	)

	encoded, err := encodeReport(report)
	require.NoError(t, err)
	decoded, err := decodeReport(encoded, report.FaceImage())
	require.NoError(t, err)

	if diff := cmp.Diff(report, decoded, cmpopts.IgnoreUnexported(diagnostics.Report{}), cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("report mismatch (-want +got):\n%s", diff)
	}
	require.Equal(t, report.FaceImage(), decoded.FaceImage())
}

func TestDecodeReportRejectsGarbage(t *testing.T) {
	_, err := decodeReport([]byte{0xFF, 0x00, 0x13}, nil)
	require.Error(t, err)
}

func TestStorageKeys(t *testing.T) {
	require.Equal(t, "reader:report:abc", createKey("reader", "abc"))
	require.Equal(t, "reader:report:abc:dg2", createFaceKey("reader", "abc"))
}

func TestInMemoryReportStorageExpiresReports(t *testing.T) {
	now := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	storage := NewInMemoryReportStorage()
	storage.now = func() time.Time { return now }

	require.NoError(t, storage.StoreReport(&diagnostics.Report{ID: "old"}))
	now = now.Add(ReportTTL - time.Second)
	_, err := storage.RetrieveReport("old")
	require.NoError(t, err)

	now = now.Add(time.Second)
	_, err = storage.RetrieveReport("old")
	require.ErrorIs(t, err, ErrReportNotFound)
	require.ErrorIs(t, storage.RemoveReport("old"), ErrReportNotFound)

	require.NoError(t, storage.StoreReport(&diagnostics.Report{ID: "stale"}))
	now = now.Add(ReportTTL)
	require.NoError(t, storage.StoreReport(&diagnostics.Report{ID: "new"}))
	require.Len(t, storage.reports, 1)
	require.Contains(t, storage.reports, "new")
}
