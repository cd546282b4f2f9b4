// Command fetch-aqi performs a single AQI ingestion run and exits.
//
//	fetch-aqi [-state S] [-pollutant P] [-limit N]
//
// The run outcome is recorded in the fetch log; the exit status is non-zero
// only when the process cannot be set up.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/i474232898/aqi-data-ingestion/internal/aqi"
	"github.com/i474232898/aqi-data-ingestion/internal/aqi/datagov"
	"github.com/i474232898/aqi-data-ingestion/internal/config"
	"github.com/i474232898/aqi-data-ingestion/internal/logging"
	"github.com/i474232898/aqi-data-ingestion/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes one ingestion run and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("fetch-aqi", flag.ContinueOnError)
	fs.SetOutput(stderr)
	state := fs.String("state", "", "Fetch data for a specific state")
	pollutant := fs.String("pollutant", "", "Fetch data for a specific pollutant")
	limit := fs.Int("limit", 0, "Maximum number of records to request (default from DATAGOV_PAGE_LIMIT)")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "failed to load config: %v\n", err)
		return 1
	}

	zl, err := logging.NewLogger(cfg.ServiceName, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(stderr, "failed to build logger: %v\n", err)
		return 1
	}
	defer zl.Sync()

	st, closeStore, err := store.Open(ctx, cfg)
	if err != nil {
		zl.Error("failed to open store", zap.String("backend", cfg.StoreBackend), zap.Error(err))
		return 1
	}
	defer func() {
		if err := closeStore(context.Background()); err != nil {
			zl.Error("failed to close store", zap.Error(err))
		}
	}()
	if cfg.StoreBackend == config.BackendMemory {
		zl.Warn("memory store selected; fetched records are discarded on exit")
	}

	service := aqi.NewService(st, datagov.NewClient(cfg.DataGov(), nil, zl.Named("datagov")), aqi.ServiceOptions{
		PageLimit: cfg.DataGovPageLimit,
		Logger:    zl.Named("ingestion"),
	})

	res := service.Run(ctx, aqi.RunRequest{
		Trigger:   aqi.TriggerManual,
		Filter:    aqi.Filter{State: *state, Pollutant: *pollutant},
		PageLimit: *limit,
	})
	if res.Err != nil {
		fmt.Fprintln(stderr, res.Log.Message)
		return 0
	}
	fmt.Fprintln(stdout, res.Log.Message)
	return 0
}
