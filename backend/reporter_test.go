package backend

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"go-passport-reader/models"
)

type recordingSender struct {
	mu      sync.Mutex
	reports []models.ErrorReport
	err     error
}

func (s *recordingSender) SendErrorReport(_ context.Context, report models.ErrorReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports = append(s.reports, report)
	return s.err
}

func (s *recordingSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.reports)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestReporterDebounces(t *testing.T) {
	sender := &recordingSender{}
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	r := NewErrorReporter(sender, WithReporterClock(clock.Now))
	ctx := context.Background()

	require.True(t, r.Report(ctx, errors.New("first"), nil))
	require.False(t, r.Report(ctx, errors.New("second"), nil))

	clock.Advance(DefaultReportInterval - time.Millisecond)
	require.False(t, r.Report(ctx, errors.New("third"), nil))

	clock.Advance(time.Millisecond)
	require.True(t, r.Report(ctx, errors.New("fourth"), nil))

	require.Equal(t, 2, sender.count())
	require.Equal(t, "first", sender.reports[0].ErrorMessage)
	require.Equal(t, "fourth", sender.reports[1].ErrorMessage)
	require.Equal(t, "2026-03-01T12:00:00Z", sender.reports[0].TsUTC)
}

func TestReporterConcurrentCallersSendOnce(t *testing.T) {
	sender := &recordingSender{}
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	r := NewErrorReporter(sender, WithReporterClock(clock.Now))

	var sent atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if r.Report(context.Background(), fmt.Errorf("error %d", i), nil) {
				sent.Add(1)
			}
		}(i)
	}
	wg.Wait()

	require.Equal(t, int32(1), sent.Load())
	require.Equal(t, 1, sender.count())
}

func TestReporterFields(t *testing.T) {
	sender := &recordingSender{}
	r := NewErrorReporter(sender,
		WithPlatform("ios"),
		WithAppVersion("2.0.1"),
		WithDeviceInfo("Pixel 8"),
	)

	wrapped := fmt.Errorf("upload failed for doc=AB123456 dob=900101: %w", errors.New("connection reset"))
	exchange := &models.ErrorContext{
		RequestURL:   "https://backend.example/api/passport/nfc",
		Method:       "POST",
		HTTPStatus:   500,
		ResponseBody: `{"date_of_expiry": "300101"}`,
	}
	require.True(t, r.Report(context.Background(), wrapped, exchange))

	report := sender.reports[0]
	require.Equal(t, "ios", report.Platform)
	require.Equal(t, "2.0.1", report.AppVersion)
	require.Equal(t, "Pixel 8", report.DeviceInfo)
	require.Len(t, report.RequestID, 36)
	require.NotContains(t, report.ErrorMessage, "AB123456")
	require.NotContains(t, report.ErrorMessage, "900101")
	require.Contains(t, report.Stacktrace, "connection reset")
	require.NotContains(t, report.ContextJSON.ResponseBody, "300101")
	// the caller's context is left alone
	require.Contains(t, exchange.ResponseBody, "300101")
}

func TestReporterIgnoresNil(t *testing.T) {
	sender := &recordingSender{}
	r := NewErrorReporter(sender)
	require.False(t, r.Report(context.Background(), nil, nil))

	var nilReporter *ErrorReporter
	require.False(t, nilReporter.Report(context.Background(), errors.New("x"), nil))
	require.Zero(t, sender.count())
}

func TestReporterSendFailureStillConsumesInterval(t *testing.T) {
	sender := &recordingSender{err: errors.New("offline")}
	r := NewErrorReporter(sender)

	require.False(t, r.Report(context.Background(), errors.New("a"), nil))
	require.False(t, r.Report(context.Background(), errors.New("b"), nil))
	require.Equal(t, 1, sender.count())
}

func TestEmptyPlatformKeepsDefault(t *testing.T) {
	r := NewErrorReporter(nil, WithPlatform(""))
	require.Equal(t, DefaultPlatform, r.platform)
}
