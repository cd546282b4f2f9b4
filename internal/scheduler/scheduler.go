package scheduler

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"

	"github.com/i474232898/aqi-data-ingestion/internal/aqi"
)

// HourlyCron fires at minute 0 of every hour, UTC.
const HourlyCron = "0 * * * *"

// Runner is the part of aqi.Service the scheduler needs.
type Runner interface {
	Run(ctx context.Context, req aqi.RunRequest) aqi.RunResult
}

// Scheduler triggers one unfiltered ingestion run per hour.
// Overlapping runs are allowed: a slow run never delays the next trigger.
type Scheduler struct {
	scheduler *gocron.Scheduler
	runner    Runner
	logger    *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a new Scheduler.
func New(runner Runner, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		runner:    runner,
		logger:    logger.Named("scheduler"),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start registers the hourly job and starts the underlying scheduler.
func (s *Scheduler) Start() error {
	job, err := s.scheduler.Cron(HourlyCron).Tag("fetch-aqi-hourly").Do(s.runJob)
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	s.logger.Info("hourly AQI fetch scheduled", zap.Time("next_run", job.NextRun()))
	return nil
}

// runJob is the job body. Its outcome is observable only through the fetch log.
func (s *Scheduler) runJob() {
	s.logger.Info("starting hourly AQI data fetch")
	res := s.runner.Run(s.ctx, aqi.RunRequest{Trigger: aqi.TriggerScheduled})
	s.logger.Info("hourly AQI data fetch finished",
		zap.String("run_id", res.RunID),
		zap.String("status", string(res.Log.Status)),
		zap.Int("records_fetched", res.Log.RecordsFetched),
	)
}

// Stop stops the scheduler and cancels in-flight runs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
	s.cancel()
}
