package main

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/redis/go-redis/v9"

	"go-passport-reader/diagnostics"
)

var ErrReportNotFound = errors.New("report not found")

// Should be safe to use concurrently
type ReportStorage interface {
	// Store the report under its ID, replacing any earlier value.
	// The face image is stored along with it.
	StoreReport(report *diagnostics.Report) error

	// Retrieve the report for the given ID, with its face image reattached.
	// Returns ErrReportNotFound when there is none.
	RetrieveReport(id string) (*diagnostics.Report, error)

	// Remove the report. A missing report is an error.
	RemoveReport(id string) error
}

// InMemoryReportStorage drops reports ReportTTL after they were stored,
// like the redis storage does.
type InMemoryReportStorage struct {
	reports map[string]storedReport
	mutex   sync.Mutex
	now     func() time.Time
}

type storedReport struct {
	report    *diagnostics.Report
	expiresAt time.Time
}

func NewInMemoryReportStorage() *InMemoryReportStorage {
	return &InMemoryReportStorage{
		reports: make(map[string]storedReport),
		now:     time.Now,
	}
}

type RedisReportStorage struct {
	client    *redis.Client
	namespace string
}

func NewRedisReportStorage(client *redis.Client, namespace string) *RedisReportStorage {
	return &RedisReportStorage{client: client, namespace: namespace}
}

// ------------------------------------------------------------------------------

const ReportTTL time.Duration = 24 * time.Hour

func createKey(namespace, id string) string {
	return fmt.Sprintf("%s:report:%s", namespace, id)
}

func createFaceKey(namespace, id string) string {
	return createKey(namespace, id) + ":dg2"
}

func encodeReport(report *diagnostics.Report) ([]byte, error) {
	b, err := cbor.Marshal(report)
	if err != nil {
		return nil, fmt.Errorf("failed to encode report: %w", err)
	}
	return b, nil
}

func decodeReport(b []byte, dg2 []byte) (*diagnostics.Report, error) {
	var report diagnostics.Report
	if err := cbor.Unmarshal(b, &report); err != nil {
		return nil, fmt.Errorf("failed to decode report: %w", err)
	}
	return diagnostics.Restore(report, dg2), nil
}

func (s *RedisReportStorage) StoreReport(report *diagnostics.Report) error {
	ctx := context.Background()
	b, err := encodeReport(report)
	if err != nil {
		return err
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, createKey(s.namespace, report.ID), b, ReportTTL)
		if face := report.FaceImage(); len(face) > 0 {
			pipe.Set(ctx, createFaceKey(s.namespace, report.ID), face, ReportTTL)
		}
		return nil
	})
	return err
}

func (s *RedisReportStorage) RetrieveReport(id string) (*diagnostics.Report, error) {
	ctx := context.Background()
	b, err := s.client.Get(ctx, createKey(s.namespace, id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", ErrReportNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	face, err := s.client.Get(ctx, createFaceKey(s.namespace, id)).Bytes()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}
	return decodeReport(b, face)
}

func (s *RedisReportStorage) RemoveReport(id string) error {
	ctx := context.Background()
	n, err := s.client.Del(ctx, createKey(s.namespace, id), createFaceKey(s.namespace, id)).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrReportNotFound, id)
	}
	return nil
}

// ------------------------------------------------------------------------------

func (s *InMemoryReportStorage) StoreReport(report *diagnostics.Report) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	now := s.now()
	s.evictExpired(now)
	s.reports[report.ID] = storedReport{report: report, expiresAt: now.Add(ReportTTL)}
	return nil
}

func (s *InMemoryReportStorage) RetrieveReport(id string) (*diagnostics.Report, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if stored, ok := s.reports[id]; ok && s.now().Before(stored.expiresAt) {
		return stored.report, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrReportNotFound, id)
}

func (s *InMemoryReportStorage) RemoveReport(id string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if stored, ok := s.reports[id]; !ok || !s.now().Before(stored.expiresAt) {
		delete(s.reports, id)
		return fmt.Errorf("failed to remove report %s: %w", id, ErrReportNotFound)
	}
	delete(s.reports, id)
	return nil
}

// evictExpired must be called with the mutex held.
func (s *InMemoryReportStorage) evictExpired(now time.Time) {
	for id, stored := range s.reports {
		if !now.Before(stored.expiresAt) {
			delete(s.reports, id)
		}
	}
}
