package aqi

import (
	"time"
)

// AllFilter is recorded in the fetch log when a filter field is not set.
const AllFilter = "All"

// FetchStatus is the outcome recorded for one ingestion attempt.
type FetchStatus string

const (
	StatusPending FetchStatus = "pending"
	StatusSuccess FetchStatus = "success"
	StatusFailed  FetchStatus = "failed"
)

// Trigger identifies what started a run.
type Trigger string

const (
	TriggerScheduled Trigger = "scheduled"
	TriggerOnDemand  Trigger = "on-demand"
	TriggerManual    Trigger = "manual"
)

// RawRecord is one upstream measurement entry before normalization.
type RawRecord map[string]any

// Filter narrows an upstream query. Empty fields mean "no filter".
type Filter struct {
	State     string `json:"state,omitempty"`
	Pollutant string `json:"pollutantId,omitempty"`
}

// stateOrAll returns the value written to the fetch log for the state filter.
func (f Filter) stateOrAll() string {
	if f.State == "" {
		return AllFilter
	}
	return f.State
}

func (f Filter) pollutantOrAll() string {
	if f.Pollutant == "" {
		return AllFilter
	}
	return f.Pollutant
}

// MeasurementRecord is a normalized, persisted AQI measurement.
// Records are append-only; re-fetching the same upstream row stores a new document.
type MeasurementRecord struct {
	ID            string    `json:"id" bson:"_id"`
	State         string    `json:"state" bson:"state"`
	City          string    `json:"city" bson:"city"`
	PollutantID   string    `json:"pollutantId" bson:"pollutant_id"`
	PollutantName string    `json:"pollutantName" bson:"pollutant_name"`
	Value         *float64  `json:"value" bson:"value,omitempty"`
	MinValue      *float64  `json:"minValue" bson:"min_value,omitempty"`
	MaxValue      *float64  `json:"maxValue" bson:"max_value,omitempty"`
	Unit          string    `json:"unit" bson:"unit"`
	SamplingDate  string    `json:"samplingDate" bson:"sampling_date"`
	SamplingTime  string    `json:"samplingTime" bson:"sampling_time"`
	StationName   string    `json:"stationName" bson:"station_name"`
	Latitude      string    `json:"latitude" bson:"latitude"`
	Longitude     string    `json:"longitude" bson:"longitude"`
	RawSource     string    `json:"rawSource,omitempty" bson:"raw_source"`
	IngestedAt    time.Time `json:"ingestedAt" bson:"ingested_at"` // always UTC
}

// FetchLogEntry is the audit entry written once per ingestion attempt.
type FetchLogEntry struct {
	ID             string      `json:"id" bson:"_id"`
	State          string      `json:"state" bson:"state"`
	PollutantID    string      `json:"pollutantId" bson:"pollutant_id"`
	Status         FetchStatus `json:"status" bson:"status"`
	Message        string      `json:"message" bson:"message"`
	RecordsFetched int         `json:"recordsFetched" bson:"records_fetched"`
	LoggedAt       time.Time   `json:"loggedAt" bson:"logged_at"`
}

// NewFetchLogEntry returns a pending entry for the given filter.
func NewFetchLogEntry(f Filter) FetchLogEntry {
	return FetchLogEntry{
		State:       f.stateOrAll(),
		PollutantID: f.pollutantOrAll(),
		Status:      StatusPending,
		LoggedAt:    time.Now().UTC(),
	}
}

// MeasurementQuery selects stored measurements, newest first.
type MeasurementQuery struct {
	State       string
	PollutantID string
	Limit       int
}

// FetchLogQuery selects fetch-log entries, newest first.
type FetchLogQuery struct {
	State string
	Limit int
}

// IngestionResult is what the upstream returned for one request.
type IngestionResult struct {
	Records []RawRecord
	Total   int
	Count   int
	Status  string
	Message string
}
