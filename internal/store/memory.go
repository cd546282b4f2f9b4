package store

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/i474232898/aqi-data-ingestion/internal/aqi"
)

// MemoryStore is a concurrency-safe, append-only in-memory store.
type MemoryStore struct {
	mu sync.RWMutex

	measurements []aqi.MeasurementRecord
	logs         []aqi.FetchLogEntry
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// SaveMeasurement appends a measurement.
func (s *MemoryStore) SaveMeasurement(ctx context.Context, rec aqi.MeasurementRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.measurements = append(s.measurements, rec)
	return nil
}

// SaveFetchLog appends a fetch-log entry.
func (s *MemoryStore) SaveFetchLog(ctx context.Context, entry aqi.FetchLogEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, entry)
	return nil
}

// ListMeasurements returns matching measurements newest first.
// Ties keep reverse insertion order. A non-positive limit means no limit.
func (s *MemoryStore) ListMeasurements(ctx context.Context, q aqi.MeasurementQuery) ([]aqi.MeasurementRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	result := make([]aqi.MeasurementRecord, 0)
	for i := len(s.measurements) - 1; i >= 0; i-- {
		rec := s.measurements[i]
		if q.State != "" && rec.State != q.State {
			continue
		}
		if q.PollutantID != "" && rec.PollutantID != q.PollutantID {
			continue
		}
		result = append(result, rec)
	}
	s.mu.RUnlock()

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].IngestedAt.After(result[j].IngestedAt)
	})
	if q.Limit > 0 && len(result) > q.Limit {
		result = result[:q.Limit]
	}
	return result, nil
}

// ListFetchLogs returns matching fetch-log entries newest first.
func (s *MemoryStore) ListFetchLogs(ctx context.Context, q aqi.FetchLogQuery) ([]aqi.FetchLogEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	result := make([]aqi.FetchLogEntry, 0)
	for i := len(s.logs) - 1; i >= 0; i-- {
		if q.State != "" && s.logs[i].State != q.State {
			continue
		}
		result = append(result, s.logs[i])
	}
	s.mu.RUnlock()

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].LoggedAt.After(result[j].LoggedAt)
	})
	if q.Limit > 0 && len(result) > q.Limit {
		result = result[:q.Limit]
	}
	return result, nil
}

// Len reports how many measurements and fetch-log entries are stored.
func (s *MemoryStore) Len() (measurements, logs int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.measurements), len(s.logs)
}
