package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"go-passport-reader/models"
	"go-passport-reader/nfc"
)

var specimenKeys = nfc.AccessKeys{DocumentNumber: "L898902C3", DateOfBirth: "740812", DateOfExpiry: "120415"}

func successOutcome(t *testing.T) *nfc.Success {
	t.Helper()
	s, err := nfc.NewSuccess(bytes.Repeat([]byte{0x61}, 93), bytes.Repeat([]byte{0x75}, 2048), specimenKeys, nfc.AuthPACE)
	require.NoError(t, err)
	return s
}

type staticSigner string

func (s staticSigner) Sign([]byte) (string, error) { return string(s), nil }

func TestSubmitOutcomePostsRawPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, PathNfc, r.URL.Path)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.Equal(t, "sig", r.Header.Get(SignatureHeader))

		var body models.RawPayload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "raw", body.Format)
		require.Equal(t, "L898902C3", body.MRZKeys.DocumentNumber)
		require.NotEmpty(t, body.DG1RawB64)
		require.NotEmpty(t, body.DG2RawB64)

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(models.NfcStoreResponse{ScanID: "scan-1", Status: "stored"})
	}))
	defer server.Close()

	client := NewClient(server.URL+"/", WithSigner(staticSigner("sig")))
	resp, err := client.SubmitOutcome(context.Background(), successOutcome(t))
	require.NoError(t, err)
	require.Equal(t, "scan-1", resp.ScanID)
	require.Equal(t, "stored", resp.Status)
}

func TestSubmitOutcomeRefusesFailures(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer server.Close()

	client := NewClient(server.URL)
	for _, status := range nfc.Statuses {
		if status == nfc.StatusSuccess {
			continue
		}
		t.Run(status.String(), func(t *testing.T) {
			_, err := client.SubmitOutcome(context.Background(), nfc.NewFailure(status, "stage", "", "failed"))
			require.ErrorIs(t, err, ErrBackendCallNotAllowed)
		})
	}
	_, err := client.SubmitOutcome(context.Background(), nil)
	require.ErrorIs(t, err, ErrBackendCallNotAllowed)
	require.Zero(t, calls.Load())
}

func TestSubmitOutcomeHTTPErrorIsReported(t *testing.T) {
	reports := make(chan models.ErrorReport, 4)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case PathNfc:
			w.WriteHeader(http.StatusUnprocessableEntity)
			io.WriteString(w, `{"detail":"bad document_number: L898902C3"}`)
		case PathErrors:
			var report models.ErrorReport
			require.NoError(t, json.NewDecoder(r.Body).Decode(&report))
			reports <- report
			w.WriteHeader(http.StatusOK)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	client := NewClient(server.URL)
	client.SetErrorReporter(NewErrorReporter(client, WithAppVersion("1.4.0")))

	_, err := client.SubmitOutcome(context.Background(), successOutcome(t))
	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	require.Equal(t, http.StatusUnprocessableEntity, httpErr.StatusCode)
	require.Equal(t, http.MethodPost, httpErr.Method)

	require.Len(t, reports, 1)
	report := <-reports
	require.Equal(t, DefaultPlatform, report.Platform)
	require.Equal(t, "1.4.0", report.AppVersion)
	require.NotEmpty(t, report.RequestID)
	require.NotEmpty(t, report.TsUTC)
	require.NotNil(t, report.ContextJSON)
	require.Equal(t, http.StatusUnprocessableEntity, report.ContextJSON.HTTPStatus)
	require.Equal(t, http.MethodPost, report.ContextJSON.Method)
	require.NotContains(t, report.ContextJSON.ResponseBody, "L898902C3")
	require.NotContains(t, report.ErrorMessage, "L898902C3")
}

func TestEchoedAccessKeysNeverLeak(t *testing.T) {
	const echo = `{"detail":[{"loc":["body","document_number"],"input":"L898902C3"},{"loc":["body","date_of_birth"],"input":"740812"}]}`
	reports := make(chan models.ErrorReport, 4)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case PathErrors:
			var report models.ErrorReport
			require.NoError(t, json.NewDecoder(r.Body).Decode(&report))
			reports <- report
		default:
			w.WriteHeader(http.StatusUnprocessableEntity)
			io.WriteString(w, echo)
		}
	}))
	defer server.Close()

	tests := []struct {
		name   string
		submit func(c *Client) error
	}{
		{"raw", func(c *Client) error {
			_, err := c.SubmitOutcome(context.Background(), successOutcome(t))
			return err
		}},
		{"legacy", func(c *Client) error {
			_, err := c.SubmitLegacy(context.Background(), map[string]string{
				"document_number": "L898902C3",
				"date_of_birth":   "740812",
			}, make([]byte, 1024))
			return err
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := NewClient(server.URL)
			client.SetErrorReporter(NewErrorReporter(client))

			err := tt.submit(client)
			var httpErr *HTTPError
			require.ErrorAs(t, err, &httpErr)
			require.Equal(t, echo, httpErr.Body)

			require.Len(t, reports, 1)
			report := <-reports
			for _, secret := range []string{"L898902C3", "740812"} {
				require.NotContains(t, err.Error(), secret)
				require.NotContains(t, report.ErrorMessage, secret)
				require.NotContains(t, report.Stacktrace, secret)
				require.NotContains(t, report.ContextJSON.ResponseBody, secret)
			}
			require.Contains(t, report.ContextJSON.ResponseBody, `"input":"*********"`)
		})
	}
}

func TestSendErrorReportFailureIsNotReported(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(server.URL)
	client.SetErrorReporter(NewErrorReporter(client))

	err := client.SendErrorReport(context.Background(), models.ErrorReport{Platform: "android", ErrorMessage: "boom"})
	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	require.Equal(t, int32(1), calls.Load())
}

func TestSubmitLegacy(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body models.LegacyPayload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "ERIKSSON", body.Passport["surname"])
		json.NewEncoder(w).Encode(models.NfcStoreResponse{ScanID: "scan-2", Status: "stored"})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	resp, err := client.SubmitLegacy(context.Background(), map[string]string{"surname": "ERIKSSON"}, make([]byte, 1024))
	require.NoError(t, err)
	require.Equal(t, "scan-2", resp.ScanID)

	_, err = client.SubmitLegacy(context.Background(), nil, nil)
	require.Error(t, err)
}

func TestHealthCheck(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr bool
	}{
		{"healthy", http.StatusOK, false},
		{"unavailable", http.StatusServiceUnavailable, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				require.Equal(t, PathHealth, r.URL.Path)
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			err := NewClient(server.URL).HealthCheck(context.Background())
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestTransportErrorIsWrapped(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := NewClient(url).SubmitOutcome(context.Background(), successOutcome(t))
	require.Error(t, err)
	var httpErr *HTTPError
	require.False(t, errors.As(err, &httpErr))
}

func TestTransportErrorReportCarriesFullContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	sender := &recordingSender{}
	client := NewClient(url)
	client.SetErrorReporter(NewErrorReporter(sender))

	_, err := client.SubmitOutcome(context.Background(), successOutcome(t))
	require.Error(t, err)
	require.Equal(t, 1, sender.count())

	body, err := json.Marshal(sender.reports[0].ContextJSON)
	require.NoError(t, err)
	var fields map[string]any
	require.NoError(t, json.Unmarshal(body, &fields))
	require.Equal(t, map[string]any{
		"request_url":   url + PathNfc,
		"method":        http.MethodPost,
		"http_status":   float64(0),
		"response_body": "",
	}, fields)
}
