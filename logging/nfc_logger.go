package logging

import (
	"fmt"
	"log/slog"
)

// Event names emitted by NfcLogger.
const (
	EventSessionStart = "nfc_session_start"
	EventStage        = "nfc_stage"
	EventResult       = "nfc_result"
	EventError        = "nfc_error"
	EventDataRead     = "nfc_data_read"
)

// NfcLogger writes the structured events of a single chip read. Every free
// text attribute passes through the redactor before it reaches the handler.
type NfcLogger struct {
	log      *slog.Logger
	redactor *Redactor
}

// NewNfcLogger wraps l, or the global logger when l is nil.
func NewNfcLogger(l *slog.Logger) *NfcLogger {
	if l == nil {
		l = GetLogger()
	}
	return &NfcLogger{log: l, redactor: NewRedactor()}
}

// WithSecrets returns a logger that also redacts the literal values given.
func (l *NfcLogger) WithSecrets(secrets ...string) *NfcLogger {
	return &NfcLogger{log: l.log, redactor: NewRedactor(secrets...)}
}

func (l *NfcLogger) Sanitize(s string) string {
	return l.redactor.Redact(s)
}

func (l *NfcLogger) SessionStart() {
	l.log.Info(EventSessionStart)
}

func (l *NfcLogger) Stage(stage string) {
	l.log.Info(EventStage, "stage", stage)
}

func (l *NfcLogger) Result(status, stage, sw, message string) {
	attrs := []any{"status", status}
	attrs = appendIfSet(attrs, "stage", stage)
	attrs = appendIfSet(attrs, "sw", sw)
	attrs = appendIfSet(attrs, "message", l.Sanitize(message))
	if status == "SUCCESS" {
		l.log.Info(EventResult, attrs...)
		return
	}
	l.log.Warn(EventResult, attrs...)
}

func (l *NfcLogger) Error(status, stage, sw string, err error) {
	attrs := []any{"status", status, "stage", stage}
	attrs = appendIfSet(attrs, "sw", sw)
	if err != nil {
		attrs = append(attrs,
			"error_class", fmt.Sprintf("%T", err),
			"error_message", l.Sanitize(err.Error()),
		)
	}
	l.log.Error(EventError, attrs...)
}

func (l *NfcLogger) DataRead(dg1Size, dg2Size int) {
	l.log.Info(EventDataRead, "dg1_size", dg1Size, "dg2_size", dg2Size)
}

func appendIfSet(attrs []any, key, value string) []any {
	if value == "" {
		return attrs
	}
	return append(attrs, key, value)
}
