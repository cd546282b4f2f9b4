package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/i474232898/aqi-data-ingestion/internal/aqi"
	"github.com/i474232898/aqi-data-ingestion/internal/aqi/datagov"
)

// QueryMode selects what the measurements read endpoint does.
type QueryMode string

const (
	// ModeScheduled serves stored data only; ingestion happens on the hourly trigger.
	ModeScheduled QueryMode = "scheduled"
	// ModeOnDemand runs one ingestion per read request and returns the fresh records.
	ModeOnDemand QueryMode = "on-demand"
)

// Store backends.
const (
	BackendMemory = "memory"
	BackendMongo  = "mongo"
)

type AppConfig struct {
	ServiceName string
	LogLevel    string
	Port        string

	DataGovBaseURL   string
	DataGovAPIKey    string
	DataGovPageLimit int

	// HTTPTimeout bounds each outbound upstream request.
	HTTPTimeout time.Duration

	QueryMode        QueryMode
	SchedulerEnabled bool

	StoreBackend  string
	MongoURI      string
	MongoDatabase string
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}
	cfg := &AppConfig{}

	cfg.ServiceName = getenvDefault("SERVICE_NAME", "aqi-data-ingestion")
	cfg.LogLevel = getenvDefault("LOG_LEVEL", "info")
	cfg.Port = getenvDefault("PORT", "8080")

	cfg.DataGovBaseURL = getenvDefault("DATAGOV_BASE_URL", datagov.DefaultBaseURL)
	cfg.DataGovAPIKey = os.Getenv("DATAGOV_API_KEY")
	cfg.DataGovPageLimit = getenvInt("DATAGOV_PAGE_LIMIT", aqi.DefaultPageLimit)

	timeout, err := time.ParseDuration(getenvDefault("HTTP_TIMEOUT", "30s"))
	if err != nil {
		return nil, fmt.Errorf("invalid HTTP_TIMEOUT: %w", err)
	}
	cfg.HTTPTimeout = timeout

	cfg.QueryMode = QueryMode(strings.ToLower(getenvDefault("QUERY_MODE", string(ModeScheduled))))

	enabled, err := strconv.ParseBool(getenvDefault("SCHEDULER_ENABLED", "true"))
	if err != nil {
		return nil, fmt.Errorf("invalid SCHEDULER_ENABLED: %w", err)
	}
	cfg.SchedulerEnabled = enabled

	cfg.StoreBackend = strings.ToLower(getenvDefault("STORE_BACKEND", BackendMemory))
	cfg.MongoURI = getenvDefault("MONGO_URI", "mongodb://localhost:27017")
	cfg.MongoDatabase = getenvDefault("MONGO_DATABASE", "aqi")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that Load cannot default.
func (c *AppConfig) Validate() error {
	var errs []error
	if c.DataGovAPIKey == "" {
		errs = append(errs, errors.New("DATAGOV_API_KEY is required"))
	}
	if c.DataGovPageLimit <= 0 {
		errs = append(errs, fmt.Errorf("DATAGOV_PAGE_LIMIT must be positive, got %d", c.DataGovPageLimit))
	}
	if c.HTTPTimeout <= 0 {
		errs = append(errs, fmt.Errorf("HTTP_TIMEOUT must be positive, got %s", c.HTTPTimeout))
	}
	switch c.QueryMode {
	case ModeScheduled, ModeOnDemand:
	default:
		errs = append(errs, fmt.Errorf("unknown QUERY_MODE %q", c.QueryMode))
	}
	switch c.StoreBackend {
	case BackendMemory, BackendMongo:
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend))
	}
	return errors.Join(errs...)
}

// DataGov returns the upstream client configuration.
func (c *AppConfig) DataGov() datagov.Config {
	return datagov.Config{
		BaseURL: c.DataGovBaseURL,
		APIKey:  c.DataGovAPIKey,
		Timeout: c.HTTPTimeout,
	}
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// getenvInt returns def when the variable is unset; a malformed value yields -1
// so Validate reports it instead of silently using the default.
func getenvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return -1
	}
	return n
}
