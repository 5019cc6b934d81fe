package main

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"golang.org/x/text/language"

	"go-passport-reader/diagnostics"
	"go-passport-reader/logging"
	"go-passport-reader/models"
	"go-passport-reader/nfc"
)

var ErrReadInProgress = errors.New("another read is in progress")

type ChipReader interface {
	Read(ctx context.Context, keys nfc.AccessKeys) nfc.ReadOutcome
}

type OutcomeSubmitter interface {
	SubmitOutcome(ctx context.Context, outcome nfc.ReadOutcome) (*models.NfcStoreResponse, error)
}

// ReadService runs one chip read at a time, stores its diagnostic report
// and optionally forwards a successful read to the backend.
type ReadService struct {
	mu        sync.Mutex
	reader    ChipReader
	storage   ReportStorage
	submitter OutcomeSubmitter
	language  language.Tag
}

func NewReadService(reader ChipReader, storage ReportStorage, submitter OutcomeSubmitter, lang language.Tag) *ReadService {
	return &ReadService{
		reader:    reader,
		storage:   storage,
		submitter: submitter,
		language:  lang,
	}
}

// Read returns ErrReadInProgress without touching the reader when another
// read holds it.
func (s *ReadService) Read(ctx context.Context, keys nfc.AccessKeys, submit bool) (*models.ReadResponse, *diagnostics.Report, error) {
	if !s.mu.TryLock() {
		return nil, nil, ErrReadInProgress
	}
	defer s.mu.Unlock()

	outcome := s.reader.Read(ctx, keys)
	report := diagnostics.Build(outcome, keys)
	if err := s.storage.StoreReport(report); err != nil {
		slog.Error("Failed to store diagnostic report", "report_id", report.ID, "error", err)
	}

	status := outcome.Status()
	response := &models.ReadResponse{
		ReportID: report.ID,
		Status:   status.String(),
		Message:  status.UserMessage(s.language),
	}
	if failure, ok := outcome.(*nfc.Failure); ok {
		response.Stage = failure.Stage
		response.SW = failure.SW
		response.Technical = failure.Message
	}

	if !submit || !status.AllowsBackendCall() {
		return response, report, nil
	}
	if s.submitter == nil {
		response.SubmitError = "no backend configured"
		return response, report, nil
	}

	stored, err := s.submitter.SubmitOutcome(ctx, outcome)
	if err != nil {
		submitErr := logging.NewRedactor(keys.Secrets()...).Redact(err.Error())
		slog.Warn("Failed to submit read to backend", "report_id", report.ID, "error", submitErr)
		response.SubmitError = submitErr
		return response, report, nil
	}
	response.Submitted = true
	response.ScanID = stored.ScanID
	return response, report, nil
}
