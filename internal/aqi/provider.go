package aqi

import (
	"context"
)

// Source abstracts the upstream AQI data API.
type Source interface {
	Name() string
	Fetch(ctx context.Context, filter Filter, pageLimit int) (IngestionResult, error)
}

// Store is the contract the in-memory store and the Mongo store satisfy.
// Implementations are append-only.
type Store interface {
	SaveMeasurement(ctx context.Context, rec MeasurementRecord) error
	SaveFetchLog(ctx context.Context, entry FetchLogEntry) error
	ListMeasurements(ctx context.Context, q MeasurementQuery) ([]MeasurementRecord, error)
	ListFetchLogs(ctx context.Context, q FetchLogQuery) ([]FetchLogEntry, error)
}
