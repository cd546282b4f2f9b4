// Package datagov fetches AQI records from the data.gov.in resource API.
package datagov

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/i474232898/aqi-data-ingestion/internal/aqi"
)

// DefaultBaseURL is the real-time AQI resource on data.gov.in.
const DefaultBaseURL = "https://api.data.gov.in/resource/3b01bcb8-0b14-4abf-b6f2-c1bfd384ba69"

// Config bundles everything the client needs; nothing is read from globals.
type Config struct {
	BaseURL string
	APIKey  string
	Format  string // defaults to "json"
	Timeout time.Duration
	Breaker BreakerSettings
}

// Client implements aqi.Source for data.gov.in.
type Client struct {
	name    string
	cfg     Config
	http    *http.Client
	circuit *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

// NewClient builds a client. A nil httpClient gets one with cfg.Timeout.
func NewClient(cfg Config, httpClient *http.Client, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Format == "" {
		cfg.Format = "json"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Breaker == (BreakerSettings{}) {
		cfg.Breaker = BreakerSettings{
			MaxRequests: 5,
			Interval:    1 * time.Minute,
			Timeout:     2 * time.Minute,
		}
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		name:    "datagov",
		cfg:     cfg,
		http:    httpClient,
		circuit: newBreaker("datagov", cfg.Breaker),
		logger:  logger,
	}
}

func (c *Client) Name() string {
	return c.name
}

// Fetch issues a single request capped at pageLimit records. It does not page.
func (c *Client) Fetch(ctx context.Context, filter aqi.Filter, pageLimit int) (aqi.IngestionResult, error) {
	if c.cfg.APIKey == "" {
		return aqi.IngestionResult{}, fmt.Errorf("datagov api key is not configured")
	}
	if pageLimit <= 0 {
		pageLimit = aqi.DefaultPageLimit
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequest(http.MethodGet, c.buildURL(filter, pageLimit), nil)
	if err != nil {
		return aqi.IngestionResult{}, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := doRequest(ctx, c.http, c.circuit, req)
	if err != nil {
		return aqi.IngestionResult{}, aqi.TransportError(c.redact(err))
	}
	defer resp.Body.Close()

	var payload struct {
		Records []json.RawMessage `json:"records"`
		Total   any               `json:"total"`
		Count   any               `json:"count"`
		Status  any               `json:"status"`
		Message any               `json:"message"`
	}

	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(&payload); err != nil {
		if ctx.Err() != nil {
			return aqi.IngestionResult{}, aqi.TransportError(err)
		}
		return aqi.IngestionResult{}, fmt.Errorf("decode datagov response: %w", err)
	}

	status := asString(payload.Status)
	message := asString(payload.Message)
	if strings.EqualFold(status, "error") {
		return aqi.IngestionResult{}, &aqi.UpstreamError{Message: message}
	}

	c.logger.Debug("datagov response decoded",
		zap.Int("status_code", resp.StatusCode),
		zap.Int("records", len(payload.Records)),
		zap.String("status", status),
	)

	return aqi.IngestionResult{
		Records: decodeRecords(payload.Records),
		Total:   asInt(payload.Total),
		Count:   asInt(payload.Count),
		Status:  status,
		Message: message,
	}, nil
}

func (c *Client) buildURL(filter aqi.Filter, pageLimit int) string {
	values := url.Values{}
	values.Set("api-key", c.cfg.APIKey)
	values.Set("format", c.cfg.Format)
	values.Set("limit", strconv.Itoa(pageLimit))
	values.Set("offset", "0")
	if filter.State != "" {
		values.Set("filters[state]", filter.State)
	}
	if filter.Pollutant != "" {
		values.Set("filters[pollutant_id]", filter.Pollutant)
	}
	return fmt.Sprintf("%s?%s", c.cfg.BaseURL, values.Encode())
}

// decodeRecords decodes each element on its own. Elements that are not JSON
// objects become nil records, which the run skips as unparseable.
func decodeRecords(raw []json.RawMessage) []aqi.RawRecord {
	records := make([]aqi.RawRecord, 0, len(raw))
	for _, msg := range raw {
		dec := json.NewDecoder(bytes.NewReader(msg))
		dec.UseNumber()

		var rec aqi.RawRecord
		if err := dec.Decode(&rec); err != nil {
			rec = nil
		}
		records = append(records, rec)
	}
	return records
}

// redact strips the query string (which carries the API key) from url errors.
func (c *Client) redact(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		ue.URL = c.cfg.BaseURL
	}
	return err
}

func asString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}

// asInt accepts the numeric and string encodings the upstream uses for counts.
func asInt(v any) int {
	switch t := v.(type) {
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return int(n)
		}
		if f, err := t.Float64(); err == nil {
			return int(f)
		}
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(t)); err == nil {
			return n
		}
	case float64:
		return int(t)
	}
	return 0
}
