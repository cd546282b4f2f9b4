package datagov

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/i474232898/aqi-data-ingestion/internal/aqi"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{BaseURL: srv.URL, APIKey: "test-key", Timeout: 2 * time.Second}, srv.Client(), nil)
}

func TestFetchBuildsQueryAndDecodesRecords(t *testing.T) {
	var got map[string]string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		got = map[string]string{
			"api-key":               q.Get("api-key"),
			"format":                q.Get("format"),
			"limit":                 q.Get("limit"),
			"offset":                q.Get("offset"),
			"filters[state]":        q.Get("filters[state]"),
			"filters[pollutant_id]": q.Get("filters[pollutant_id]"),
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"status": "ok",
			"total": 3120,
			"count": 2,
			"records": [
				{"state": "Delhi", "pollutant_id": "PM2.5", "avg_value": "150", "last_update": "17-02-2026 21:00:00"},
				{"state": "Delhi", "pollutant_id": "PM2.5", "avg_value": 98.5}
			]
		}`))
	})

	res, err := c.Fetch(context.Background(), aqi.Filter{State: "Delhi", Pollutant: "PM2.5"}, 500)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := map[string]string{
		"api-key":               "test-key",
		"format":                "json",
		"limit":                 "500",
		"offset":                "0",
		"filters[state]":        "Delhi",
		"filters[pollutant_id]": "PM2.5",
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("query %s: expected %q, got %q", k, v, got[k])
		}
	}

	if res.Total != 3120 || res.Count != 2 || len(res.Records) != 2 {
		t.Fatalf("unexpected result: total=%d count=%d records=%d", res.Total, res.Count, len(res.Records))
	}

	rec, err := aqi.Normalize(res.Records[1])
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if rec.Value == nil || *rec.Value != 98.5 {
		t.Fatalf("expected numeric JSON value to coerce, got %v", rec.Value)
	}
}

func TestFetchOmitsEmptyFilters(t *testing.T) {
	var rawQuery string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		rawQuery = r.URL.RawQuery
		_, _ = w.Write([]byte(`{"records": [], "total": "0"}`))
	})

	res, err := c.Fetch(context.Background(), aqi.Filter{}, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(rawQuery, "filters") {
		t.Fatalf("expected no filters, got %s", rawQuery)
	}
	if !strings.Contains(rawQuery, "limit=1000") {
		t.Fatalf("expected default limit, got %s", rawQuery)
	}
	if len(res.Records) != 0 || res.Total != 0 {
		t.Fatalf("expected empty result, got %+v", res)
	}
}

func TestFetchUpstreamRejected(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status": "error", "message": "Invalid API key"}`))
	})

	_, err := c.Fetch(context.Background(), aqi.Filter{}, 10)

	var upstream *aqi.UpstreamError
	if !errors.As(err, &upstream) {
		t.Fatalf("expected UpstreamError, got %v", err)
	}
	if upstream.Message != "Invalid API key" {
		t.Fatalf("unexpected message %q", upstream.Message)
	}
	if errors.Is(err, aqi.ErrTransport) {
		t.Fatal("upstream rejection must not be a transport failure")
	}
}

func TestFetchNon2xxIsTransportFailure(t *testing.T) {
	for _, code := range []int{http.StatusBadRequest, http.StatusForbidden, http.StatusTooManyRequests, http.StatusBadGateway} {
		calls := 0
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			calls++
			w.WriteHeader(code)
		})

		_, err := c.Fetch(context.Background(), aqi.Filter{}, 10)
		if !errors.Is(err, aqi.ErrTransport) {
			t.Fatalf("status %d: expected transport failure, got %v", code, err)
		}
		if calls != 1 {
			t.Fatalf("status %d: expected a single attempt, got %d", code, calls)
		}
	}
}

func TestFetchTimeoutIsTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, APIKey: "secret-key", Timeout: 50 * time.Millisecond}, srv.Client(), nil)

	_, err := c.Fetch(context.Background(), aqi.Filter{}, 10)
	if !errors.Is(err, aqi.ErrTransport) {
		t.Fatalf("expected transport failure, got %v", err)
	}
	if strings.Contains(err.Error(), "secret-key") {
		t.Fatalf("error leaks the api key: %v", err)
	}
}

func TestFetchMalformedBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"records": [`))
	})

	_, err := c.Fetch(context.Background(), aqi.Filter{}, 10)
	if err == nil {
		t.Fatal("expected decode error")
	}
	if errors.Is(err, aqi.ErrTransport) || errors.Is(err, aqi.ErrUpstreamRejected) {
		t.Fatalf("expected a processing error, got %v", err)
	}
}

func TestFetchRequiresAPIKey(t *testing.T) {
	c := NewClient(Config{BaseURL: "http://127.0.0.1:0"}, nil, nil)
	if _, err := c.Fetch(context.Background(), aqi.Filter{}, 10); err == nil {
		t.Fatal("expected error without api key")
	}
}

func TestCircuitOpensAfterConsecutiveFailures(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(Config{
		BaseURL: srv.URL,
		APIKey:  "k",
		Breaker: BreakerSettings{MaxRequests: 1, Interval: time.Minute, Timeout: time.Minute, ConsecutiveFailures: 2},
	}, srv.Client(), nil)

	for i := 0; i < 3; i++ {
		_, _ = c.Fetch(context.Background(), aqi.Filter{}, 10)
	}
	_, err := c.Fetch(context.Background(), aqi.Filter{}, 10)
	if !errors.Is(err, errCircuitOpen) || !errors.Is(err, aqi.ErrTransport) {
		t.Fatalf("expected open circuit transport failure, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected upstream to be called twice, got %d", calls)
	}
}

func TestFetchKeepsValidRecordsAlongsideMalformedOnes(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"total": 5, "records": [
			{"state": "Delhi", "pollutant_id": "PM10", "avg_value": "61"},
			"garbage",
			42,
			["nested"],
			null
		]}`))
	})

	res, err := c.Fetch(context.Background(), aqi.Filter{}, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Records) != 5 {
		t.Fatalf("expected 5 records, got %d", len(res.Records))
	}
	if res.Records[0]["state"] != "Delhi" {
		t.Fatalf("expected first record decoded, got %v", res.Records[0])
	}
	for i, rec := range res.Records[1:] {
		if rec != nil {
			t.Errorf("record %d: expected nil for non-object element, got %v", i+1, rec)
		}
	}
}
