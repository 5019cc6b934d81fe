package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"go-passport-reader/logging"
	"go-passport-reader/models"
)

const (
	DefaultReportInterval = 5 * time.Second
	DefaultPlatform       = "android"
)

// ReportSender delivers an error report. *Client implements it.
type ReportSender interface {
	SendErrorReport(ctx context.Context, report models.ErrorReport) error
}

// ErrorReporter forwards failures to the backend at most once per interval.
// The last report time is claimed with compare-and-swap so concurrent
// callers cannot both pass the check.
type ErrorReporter struct {
	sender     ReportSender
	interval   time.Duration
	platform   string
	appVersion string
	deviceInfo string
	now        func() time.Time

	last atomic.Int64 // unix nanoseconds, 0 before the first report
}

type ReporterOption func(*ErrorReporter)

func WithInterval(d time.Duration) ReporterOption {
	return func(r *ErrorReporter) { r.interval = d }
}

func WithPlatform(platform string) ReporterOption {
	return func(r *ErrorReporter) {
		if platform != "" {
			r.platform = platform
		}
	}
}

func WithAppVersion(version string) ReporterOption {
	return func(r *ErrorReporter) { r.appVersion = version }
}

func WithDeviceInfo(info string) ReporterOption {
	return func(r *ErrorReporter) { r.deviceInfo = info }
}

func WithReporterClock(now func() time.Time) ReporterOption {
	return func(r *ErrorReporter) { r.now = now }
}

func NewErrorReporter(sender ReportSender, opts ...ReporterOption) *ErrorReporter {
	r := &ErrorReporter{
		sender:   sender,
		interval: DefaultReportInterval,
		platform: DefaultPlatform,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Allow claims the current interval. It returns false when a report was
// already let through less than one interval ago.
func (r *ErrorReporter) Allow() bool {
	now := r.now().UnixNano()
	for {
		last := r.last.Load()
		if last != 0 && now-last < int64(r.interval) {
			return false
		}
		if r.last.CompareAndSwap(last, now) {
			return true
		}
	}
}

// Report sends err unless the interval is still running. Any of secrets
// found in the message or response body is blanked out. It returns true
// when a report was sent.
func (r *ErrorReporter) Report(ctx context.Context, err error, exchange *models.ErrorContext, secrets ...string) bool {
	if err == nil || r == nil || r.sender == nil {
		return false
	}
	if !r.Allow() {
		slog.Debug("Error report suppressed", "interval", r.interval)
		return false
	}

	redactor := logging.NewRedactor(secrets...)
	report := models.ErrorReport{
		TsUTC:        r.now().UTC().Format(time.RFC3339),
		Platform:     r.platform,
		AppVersion:   r.appVersion,
		ErrorMessage: redactor.Redact(err.Error()),
		Stacktrace:   redactor.Redact(errorChain(err)),
		ContextJSON:  exchange,
		DeviceInfo:   r.deviceInfo,
		RequestID:    uuid.NewString(),
	}
	if exchange != nil {
		sanitized := *exchange
		sanitized.ResponseBody = redactor.Redact(sanitized.ResponseBody)
		report.ContextJSON = &sanitized
	}

	if sendErr := r.sender.SendErrorReport(ctx, report); sendErr != nil {
		slog.Warn("Failed to send error report", "error", sendErr)
		return false
	}
	return true
}

// errorChain lists the wrapped errors, outermost first, with their types.
func errorChain(err error) string {
	var lines []string
	for e := err; e != nil; e = errors.Unwrap(e) {
		lines = append(lines, fmt.Sprintf("%T: %s", e, e.Error()))
	}
	return strings.Join(lines, "\n")
}
