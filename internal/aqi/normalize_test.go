package aqi

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestNormalizeSplitsTimestampAndParsesValue(t *testing.T) {
	raw := RawRecord{"last_update": "17-02-2026 21:00:00", "avg_value": "35.2"}

	rec, err := Normalize(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.SamplingDate != "17-02-2026" || rec.SamplingTime != "21:00:00" {
		t.Fatalf("expected date/time 17-02-2026 21:00:00, got %q %q", rec.SamplingDate, rec.SamplingTime)
	}
	if rec.Value == nil || *rec.Value != 35.2 {
		t.Fatalf("expected value 35.2, got %v", rec.Value)
	}
}

func TestNormalizeNumericCoercion(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  *float64
	}{
		{name: "missing", value: nil},
		{name: "empty string", value: ""},
		{name: "whitespace", value: "  "},
		{name: "not a number", value: "NA"},
		{name: "nan", value: "NaN"},
		{name: "string number", value: "12.5", want: ptr(12.5)},
		{name: "json number", value: json.Number("7"), want: ptr(7)},
		{name: "float", value: 3.25, want: ptr(3.25)},
		{name: "zero", value: "0", want: ptr(0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := RawRecord{"state": "Delhi"}
			if tt.value != nil {
				raw["avg_value"] = tt.value
				raw["min_value"] = tt.value
				raw["max_value"] = tt.value
			}

			rec, err := Normalize(raw)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			for field, got := range map[string]*float64{"value": rec.Value, "min": rec.MinValue, "max": rec.MaxValue} {
				switch {
				case tt.want == nil && got != nil:
					t.Errorf("%s: expected absent, got %v", field, *got)
				case tt.want != nil && (got == nil || *got != *tt.want):
					t.Errorf("%s: expected %v, got %v", field, *tt.want, got)
				}
			}
		})
	}
}

func TestNormalizeMalformedTimestampLeavesDateAndTimeEmpty(t *testing.T) {
	for _, ts := range []string{"", "17-02-2026", "17-02-2026T21:00:00", "17-02-2026  21:00:00", "a b c"} {
		rec, err := Normalize(RawRecord{"last_update": ts})
		if err != nil {
			t.Fatalf("%q: unexpected error: %v", ts, err)
		}
		if rec.SamplingDate != "" || rec.SamplingTime != "" {
			t.Errorf("%q: expected empty date/time, got %q %q", ts, rec.SamplingDate, rec.SamplingTime)
		}
	}

	rec, _ := Normalize(RawRecord{})
	if rec.SamplingDate != "" || rec.SamplingTime != "" {
		t.Errorf("missing field: expected empty date/time, got %q %q", rec.SamplingDate, rec.SamplingTime)
	}
}

func TestNormalizeStringFieldsDefaultEmpty(t *testing.T) {
	rec, err := Normalize(RawRecord{"avg_value": ""})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Value != nil {
		t.Fatalf("expected absent value, got %v", *rec.Value)
	}
	for name, v := range map[string]string{
		"state": rec.State, "city": rec.City, "pollutantId": rec.PollutantID,
		"pollutantName": rec.PollutantName, "unit": rec.Unit, "stationName": rec.StationName,
		"latitude": rec.Latitude, "longitude": rec.Longitude,
	} {
		if v != "" {
			t.Errorf("%s: expected empty, got %q", name, v)
		}
	}
}

func TestNormalizeCopiesFieldsAndSnapshot(t *testing.T) {
	at := time.Date(2026, 2, 17, 15, 30, 0, 0, time.UTC)
	raw := RawRecord{
		"country":      "India",
		"state":        "Maharashtra",
		"city":         "Mumbai",
		"station":      "Bandra, Mumbai - MPCB",
		"last_update":  "17-02-2026 21:00:00",
		"latitude":     "19.041847",
		"longitude":    "72.865513",
		"pollutant_id": "PM2.5",
		"min_value":    "12",
		"max_value":    "88",
		"avg_value":    "41",
	}

	rec, err := NormalizeAt(raw, at)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if rec.State != "Maharashtra" || rec.City != "Mumbai" || rec.PollutantID != "PM2.5" {
		t.Fatalf("unexpected identity fields: %+v", rec)
	}
	if rec.StationName != "Bandra, Mumbai - MPCB" {
		t.Fatalf("expected station name from station field, got %q", rec.StationName)
	}
	if rec.Latitude != "19.041847" || rec.Longitude != "72.865513" {
		t.Fatalf("unexpected coordinates %q %q", rec.Latitude, rec.Longitude)
	}
	if rec.MinValue == nil || *rec.MinValue != 12 || rec.MaxValue == nil || *rec.MaxValue != 88 {
		t.Fatalf("unexpected min/max %v %v", rec.MinValue, rec.MaxValue)
	}
	if !rec.IngestedAt.Equal(at) {
		t.Fatalf("expected ingestedAt %v, got %v", at, rec.IngestedAt)
	}

	var back map[string]any
	if err := json.Unmarshal([]byte(rec.RawSource), &back); err != nil {
		t.Fatalf("raw source is not JSON: %v", err)
	}
	if back["country"] != "India" || len(back) != len(raw) {
		t.Fatalf("raw source does not round-trip the record: %s", rec.RawSource)
	}
}

func TestNormalizeStationNameFallback(t *testing.T) {
	rec, _ := Normalize(RawRecord{"station_name": "ITO, Delhi"})
	if rec.StationName != "ITO, Delhi" {
		t.Fatalf("expected fallback station name, got %q", rec.StationName)
	}
}

func TestNormalizeNilRecordIsUnparseable(t *testing.T) {
	_, err := Normalize(nil)
	if !errors.Is(err, ErrUnparseable) {
		t.Fatalf("expected ErrUnparseable, got %v", err)
	}
}

func ptr(f float64) *float64 { return &f }
