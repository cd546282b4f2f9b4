package aqi

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultPageLimit caps how many records one upstream request asks for.
const DefaultPageLimit = 1000

// RunState is a step of the ingestion run state machine.
type RunState string

const (
	StateStarted               RunState = "started"
	StateFetching              RunState = "fetching"
	StateNormalizingAndStoring RunState = "normalizing_and_storing"
	StateLoggedSuccess         RunState = "logged_success"
	StateLoggedFailure         RunState = "logged_failure"
)

// Skip reasons reported in RecordOutcome.
const (
	SkipUnparseable = "unparseable"
	SkipPersistence = "persistence"
)

// RecordOutcome reports what happened to one raw record of a run.
type RecordOutcome struct {
	Index  int    `json:"index"`
	Stored bool   `json:"stored"`
	Reason string `json:"reason,omitempty"`
	Err    error  `json:"-"`
}

// RunRequest describes one ingestion run.
type RunRequest struct {
	Trigger   Trigger
	Filter    Filter
	PageLimit int // <= 0 uses the service default
}

// RunResult is the full account of one run.
// Err is set only when the run ended in StateLoggedFailure.
type RunResult struct {
	RunID    string
	Trigger  Trigger
	Filter   Filter
	State    RunState
	Stored   []MeasurementRecord
	Outcomes []RecordOutcome
	Log      FetchLogEntry
	Err      error
}

// Recorder receives run and record counters. metrics.Collectors implements it.
type Recorder interface {
	RunFinished(trigger, status string, elapsed time.Duration)
	RecordStored()
	RecordSkipped(reason string)
}

type nopRecorder struct{}

func (nopRecorder) RunFinished(string, string, time.Duration) {}
func (nopRecorder) RecordStored()                             {}
func (nopRecorder) RecordSkipped(string)                      {}

// ServiceOptions configures a Service. Zero values fall back to defaults.
type ServiceOptions struct {
	PageLimit int
	Logger    *zap.Logger
	Recorder  Recorder
}

// Service runs fetch-normalize-store-log cycles and serves stored data.
// Runs are independent; nothing serializes concurrent runs against each other.
type Service struct {
	store     Store
	source    Source
	pageLimit int
	logger    *zap.Logger
	recorder  Recorder
}

// NewService creates a new Service.
func NewService(store Store, source Source, opts ServiceOptions) *Service {
	if opts.PageLimit <= 0 {
		opts.PageLimit = DefaultPageLimit
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Recorder == nil {
		opts.Recorder = nopRecorder{}
	}
	return &Service{
		store:     store,
		source:    source,
		pageLimit: opts.PageLimit,
		logger:    opts.Logger,
		recorder:  opts.Recorder,
	}
}

// Run executes one ingestion run. It always writes exactly one fetch-log entry
// and never returns an error; failures are reported in the result.
func (s *Service) Run(ctx context.Context, req RunRequest) RunResult {
	started := time.Now()
	res := RunResult{
		RunID:   uuid.NewString(),
		Trigger: req.Trigger,
		Filter:  req.Filter,
		State:   StateStarted,
	}

	logger := s.logger.With(
		zap.String("run_id", res.RunID),
		zap.String("trigger", string(req.Trigger)),
		zap.String("state", req.Filter.stateOrAll()),
		zap.String("pollutant_id", req.Filter.pollutantOrAll()),
	)
	logger.Info("ingestion run started")

	limit := req.PageLimit
	if limit <= 0 {
		limit = s.pageLimit
	}

	res.State = StateFetching
	fetched, err := s.fetch(ctx, req.Filter, limit)
	if err != nil {
		res.Err = err
		res.State = StateLoggedFailure
		res.Log = s.writeLog(ctx, logger, req.Filter, StatusFailed, failureMessage(err), 0)
		logger.Error("ingestion run failed", zap.Error(err))
		s.recorder.RunFinished(string(req.Trigger), string(StatusFailed), time.Since(started))
		return res
	}

	logger.Info("upstream responded",
		zap.Int("records", len(fetched.Records)),
		zap.Int("total", fetched.Total),
		zap.Int("count", fetched.Count),
	)

	res.State = StateNormalizingAndStoring
	res.Outcomes = make([]RecordOutcome, 0, len(fetched.Records))
	for i, raw := range fetched.Records {
		rec, outcome := s.storeRecord(ctx, i, raw)
		res.Outcomes = append(res.Outcomes, outcome)
		if !outcome.Stored {
			logger.Warn("record skipped",
				zap.Int("index", i),
				zap.String("reason", outcome.Reason),
				zap.Error(outcome.Err),
			)
			s.recorder.RecordSkipped(outcome.Reason)
			continue
		}
		res.Stored = append(res.Stored, rec)
		s.recorder.RecordStored()
	}

	n := len(res.Stored)
	res.State = StateLoggedSuccess
	res.Log = s.writeLog(ctx, logger, req.Filter, StatusSuccess, fmt.Sprintf("Successfully fetched %d records", n), n)
	logger.Info("ingestion run completed",
		zap.Int("stored", n),
		zap.Int("skipped", len(fetched.Records)-n),
		zap.Duration("elapsed", time.Since(started)),
	)
	s.recorder.RunFinished(string(req.Trigger), string(StatusSuccess), time.Since(started))
	return res
}

// fetch calls the source, turning a panic into an error so the run still logs.
func (s *Service) fetch(ctx context.Context, f Filter, limit int) (res IngestionResult, err error) {
	if s.source == nil {
		return IngestionResult{}, errors.New("no AQI source configured")
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("source %s panicked: %v", s.source.Name(), r)
		}
	}()
	return s.source.Fetch(ctx, f, limit)
}

func (s *Service) storeRecord(ctx context.Context, i int, raw RawRecord) (MeasurementRecord, RecordOutcome) {
	rec, err := Normalize(raw)
	if err != nil {
		return MeasurementRecord{}, RecordOutcome{Index: i, Reason: SkipUnparseable, Err: err}
	}
	rec.ID = uuid.NewString()
	if err := s.store.SaveMeasurement(ctx, rec); err != nil {
		return MeasurementRecord{}, RecordOutcome{Index: i, Reason: SkipPersistence, Err: fmt.Errorf("%w: %w", ErrPersistence, err)}
	}
	return rec, RecordOutcome{Index: i, Stored: true}
}

// writeLog appends the run's single fetch-log entry. It ignores cancellation of
// ctx so an abandoned on-demand request still leaves an audit entry.
func (s *Service) writeLog(ctx context.Context, logger *zap.Logger, f Filter, status FetchStatus, msg string, n int) FetchLogEntry {
	entry := NewFetchLogEntry(f)
	entry.ID = uuid.NewString()
	entry.Status = status
	entry.Message = msg
	entry.RecordsFetched = n

	if err := s.store.SaveFetchLog(context.WithoutCancel(ctx), entry); err != nil {
		logger.Error("failed to write fetch log", zap.Error(err))
	}
	return entry
}

func failureMessage(err error) string {
	var upstream *UpstreamError
	switch {
	case errors.As(err, &upstream):
		return fmt.Sprintf("Upstream rejected request: %s", upstream.Message)
	case errors.Is(err, ErrTransport):
		return fmt.Sprintf("Failed to fetch AQI data: %v", err)
	default:
		return fmt.Sprintf("Error processing AQI data: %v", err)
	}
}

// ListMeasurements delegates to the underlying store.
func (s *Service) ListMeasurements(ctx context.Context, q MeasurementQuery) ([]MeasurementRecord, error) {
	return s.store.ListMeasurements(ctx, q)
}

// ListFetchLogs delegates to the underlying store.
func (s *Service) ListFetchLogs(ctx context.Context, q FetchLogQuery) ([]FetchLogEntry, error) {
	return s.store.ListFetchLogs(ctx, q)
}
