package logging

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

var leakTemplates = []string{
	"bac failed doc=%s dob=%s exp=%s",
	`{"document_number":"%s","date_of_birth":"%s","date_of_expiry":"%s"}`,
	"document_number: '%s', date_of_birth=%s, date_of_expiry: %s",
	"keys doc=%s*** dob=%s exp=%s retry",
}

func TestSanitizeMasksKnownForms(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"doc", "failed for doc=L898902C3", "failed for doc=***"},
		{"masked doc", "doc=L89*****", "doc=***"},
		{"dob", "dob=740812", "dob=******"},
		{"exp", "exp=120415 trailing", "exp=****** trailing"},
		{"json document number", `{"document_number":"L898902C3"}`, `{"document_number=***}`},
		{"colon document number", "document_number: L898902C3", "document_number=***"},
		{"json date of birth", `"date_of_birth": "740812"`, `"date_of_birth=******`},
		{"date of expiry", "date_of_expiry=120415", "date_of_expiry=******"},
		{"untouched", "SW=6A82 file not found", "SW=6A82 file not found"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expected, Sanitize(tt.input))
		})
	}
}

func TestRedactorBlanksLiteralSecrets(t *testing.T) {
	r := NewRedactor("L898902C3", "740812", "120415", "  ", "AB")
	out := r.Redact("chip rejected L898902C3 born 740812 until 120415 AB")

	require.NotContains(t, out, "L898902C3")
	require.NotContains(t, out, "740812")
	require.NotContains(t, out, "120415")
	require.Contains(t, out, "AB", "values shorter than the minimum stay untouched")
}

func TestNilRedactorStillSanitizes(t *testing.T) {
	var r *Redactor
	require.Equal(t, "doc=***", r.Redact("doc=X1234567"))
}

func TestSanitizeRandomKeysNeverLeak(t *testing.T) {
	rng := rand.New(rand.NewPCG(9303, 7816))
	for i := 0; i < 2000; i++ {
		doc, dob, exp := randomKeys(rng)
		for _, tmpl := range leakTemplates {
			out := Sanitize(fmt.Sprintf(tmpl, doc, dob, exp))
			require.NotContains(t, out, doc, "template %q", tmpl)
			require.NotContains(t, out, dob, "template %q", tmpl)
			require.NotContains(t, out, exp, "template %q", tmpl)
		}
	}
}

func FuzzSanitize(f *testing.F) {
	f.Add("L898902C3", "740812", "120415")
	f.Add("AB123456", "000101", "991231")
	f.Add("x<y", "1", "22")

	f.Fuzz(func(t *testing.T, rawDoc, rawDob, rawExp string) {
		doc := mrzAlnum(rawDoc)
		dob := digits(rawDob)
		exp := digits(rawExp)
		if len(doc) < 3 || len(dob) != 6 || len(exp) != 6 {
			t.Skip()
		}
		for _, tmpl := range leakTemplates {
			out := Sanitize(fmt.Sprintf(tmpl, doc, dob, exp))
			if strings.Contains(out, doc) || strings.Contains(out, dob) || strings.Contains(out, exp) {
				t.Fatalf("leak in %q", out)
			}
		}
	})
}

func TestNfcLoggerEmitsSanitizedEvents(t *testing.T) {
	var buf bytes.Buffer
	l := NewNfcLogger(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))).
		WithSecrets("L898902C3", "740812", "120415")

	l.SessionStart()
	l.Stage("bac_authentication")
	l.Error("BAC_FAILED", "bac_authentication", "6300", errors.New("mutual auth failed doc=L898902C3 raw L898902C3"))
	l.Result("BAC_FAILED", "bac_authentication", "6300", `{"date_of_birth":"740812"} 120415`)
	l.DataRead(90, 15000)

	out := buf.String()
	for _, event := range []string{EventSessionStart, EventStage, EventError, EventResult, EventDataRead} {
		require.Contains(t, out, event)
	}
	require.Contains(t, out, "stage=bac_authentication")
	require.Contains(t, out, "error_class=*errors.errorString")
	require.Contains(t, out, "dg2_size=15000")
	require.NotContains(t, out, "L898902C3")
	require.NotContains(t, out, "740812")
	require.NotContains(t, out, "120415")
}

func TestNfcLoggerSkipsEmptyOptionalFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewNfcLogger(slog.New(slog.NewTextHandler(&buf, nil)))

	l.Result("SUCCESS", "", "", "")

	require.Contains(t, buf.String(), "status=SUCCESS")
	require.NotContains(t, buf.String(), "sw=")
	require.NotContains(t, buf.String(), "stage=")
}

func randomKeys(rng *rand.Rand) (string, string, string) {
	const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	n := 6 + rng.IntN(4)
	doc := make([]byte, n)
	for i := range doc {
		doc[i] = alphabet[rng.IntN(len(alphabet))]
	}
	return string(doc), fmt.Sprintf("%06d", rng.IntN(1000000)), fmt.Sprintf("%06d", rng.IntN(1000000))
}

func mrzAlnum(s string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(s) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
