// Package backend talks to the verification backend: NFC payload upload,
// error reports and health checks.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go-passport-reader/models"
	"go-passport-reader/nfc"
	"go-passport-reader/payload"
)

const (
	PathNfc    = "/api/passport/nfc"
	PathErrors = "/api/errors"
	PathHealth = "/api/health"

	SignatureHeader = "X-Payload-Signature"

	defaultTimeout = 30 * time.Second
	// responses kept in errors and reports
	maxBodySnippet = 2048
)

var ErrBackendCallNotAllowed = errors.New("backend call not allowed: read did not succeed")

// HTTPError is returned for non-2xx responses. Body may echo the submitted
// access keys, so it is kept out of Error and only reaches error reports
// after redaction.
type HTTPError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s %s failed with status %d", e.Method, e.URL, e.StatusCode)
}

// PayloadSigner produces the value of the signature header for a body.
type PayloadSigner interface {
	Sign(body []byte) (string, error)
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	signer     PayloadSigner
	reporter   *ErrorReporter
}

type ClientOption func(*Client)

func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

func WithSigner(s PayloadSigner) ClientOption {
	return func(c *Client) { c.signer = s }
}

func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SubmitOutcome uploads a successful read as a raw payload. Any other
// outcome is refused before a request is built.
func (c *Client) SubmitOutcome(ctx context.Context, outcome nfc.ReadOutcome) (*models.NfcStoreResponse, error) {
	if outcome == nil || !outcome.Status().AllowsBackendCall() {
		return nil, ErrBackendCallNotAllowed
	}
	p, err := payload.BuildRaw(outcome)
	if err != nil {
		return nil, fmt.Errorf("failed to build raw payload: %w", err)
	}
	var secrets []string
	if success, ok := outcome.(*nfc.Success); ok {
		secrets = success.Keys.Secrets()
	}
	return c.submit(ctx, p, secrets)
}

// SubmitLegacy uploads pre-parsed fields and a face image.
//
// Deprecated: use SubmitOutcome.
func (c *Client) SubmitLegacy(ctx context.Context, passport map[string]string, face []byte) (*models.NfcStoreResponse, error) {
	p, err := payload.BuildLegacy(passport, face)
	if err != nil {
		return nil, fmt.Errorf("failed to build legacy payload: %w", err)
	}
	secrets := make([]string, 0, len(passport))
	for _, value := range passport {
		secrets = append(secrets, value)
	}
	return c.submit(ctx, p, secrets)
}

// submit posts p; secrets are the submitted values that a failure report
// must not repeat.
func (c *Client) submit(ctx context.Context, p payload.Payload, secrets []string) (*models.NfcStoreResponse, error) {
	var resp models.NfcStoreResponse
	err := c.postJSON(ctx, PathNfc, p, &resp, true)
	if err != nil {
		c.report(ctx, err, secrets)
		return nil, err
	}
	slog.Info("NFC payload stored", "format", p.PayloadFormat(), "scan_id", resp.ScanID)
	return &resp, nil
}

// SendErrorReport posts a report. Its own failures are never reported.
func (c *Client) SendErrorReport(ctx context.Context, report models.ErrorReport) error {
	return c.postJSON(ctx, PathErrors, report, nil, false)
}

func (c *Client) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+PathHealth, nil)
	if err != nil {
		return fmt.Errorf("failed to create health check request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute health check request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return newHTTPError(req, resp)
	}
	slog.Debug("Backend health check passed")
	return nil
}

func (c *Client) postJSON(ctx context.Context, path string, body any, out any, sign bool) error {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if sign && c.signer != nil {
		signature, err := c.signer.Sign(jsonData)
		if err != nil {
			return fmt.Errorf("failed to sign request: %w", err)
		}
		req.Header.Set(SignatureHeader, signature)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newHTTPError(req, resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func newHTTPError(req *http.Request, resp *http.Response) *HTTPError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxBodySnippet))
	return &HTTPError{
		Method:     req.Method,
		URL:        req.URL.String(),
		StatusCode: resp.StatusCode,
		Body:       string(body),
	}
}

// SetErrorReporter makes failed payload uploads feed r. The reporter
// usually sends through c itself, hence a setter rather than an option.
func (c *Client) SetErrorReporter(r *ErrorReporter) {
	c.reporter = r
}

func (c *Client) report(ctx context.Context, err error, secrets []string) {
	if c.reporter == nil {
		return
	}
	exchange := &models.ErrorContext{RequestURL: c.baseURL + PathNfc, Method: http.MethodPost}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		exchange.RequestURL = httpErr.URL
		exchange.HTTPStatus = httpErr.StatusCode
		exchange.ResponseBody = httpErr.Body
	}
	c.reporter.Report(ctx, err, exchange, secrets...)
}
