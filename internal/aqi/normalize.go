package aqi

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Upstream field names of the data.gov.in AQI resource.
const (
	FieldState       = "state"
	FieldCity        = "city"
	FieldStation     = "station"
	FieldStationName = "station_name"
	FieldPollutantID = "pollutant_id"
	FieldPollutant   = "pollutant_name"
	FieldAvgValue    = "avg_value"
	FieldMinValue    = "min_value"
	FieldMaxValue    = "max_value"
	FieldUnit        = "unit"
	FieldLastUpdate  = "last_update"
	FieldLatitude    = "latitude"
	FieldLongitude   = "longitude"
)

// Normalize maps one raw upstream record into a MeasurementRecord stamped with the current time.
func Normalize(raw RawRecord) (MeasurementRecord, error) {
	return NormalizeAt(raw, time.Now().UTC())
}

// NormalizeAt is Normalize with an explicit ingestion time.
// Field-level coercion never fails: missing or malformed values become empty strings
// or nil numbers. Only a nil record yields ErrUnparseable.
func NormalizeAt(raw RawRecord, ingestedAt time.Time) (MeasurementRecord, error) {
	if raw == nil {
		return MeasurementRecord{}, ErrUnparseable
	}

	date, clock := splitTimestamp(stringField(raw, FieldLastUpdate))

	station := stringField(raw, FieldStation)
	if station == "" {
		station = stringField(raw, FieldStationName)
	}

	return MeasurementRecord{
		State:         stringField(raw, FieldState),
		City:          stringField(raw, FieldCity),
		PollutantID:   stringField(raw, FieldPollutantID),
		PollutantName: stringField(raw, FieldPollutant),
		Value:         floatField(raw, FieldAvgValue),
		MinValue:      floatField(raw, FieldMinValue),
		MaxValue:      floatField(raw, FieldMaxValue),
		Unit:          stringField(raw, FieldUnit),
		SamplingDate:  date,
		SamplingTime:  clock,
		StationName:   station,
		Latitude:      stringField(raw, FieldLatitude),
		Longitude:     stringField(raw, FieldLongitude),
		RawSource:     snapshot(raw),
		IngestedAt:    ingestedAt.UTC(),
	}, nil
}

// splitTimestamp splits "DD-MM-YYYY HH:MM:SS" on its single space.
// Anything that does not split into exactly two parts yields two empty strings.
func splitTimestamp(s string) (string, string) {
	if s == "" {
		return "", ""
	}
	parts := strings.Split(s, " ")
	if len(parts) != 2 {
		return "", ""
	}
	return parts[0], parts[1]
}

func stringField(raw RawRecord, key string) string {
	v, ok := raw[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}

// floatField returns nil when the value is absent, empty or not a finite number.
func floatField(raw RawRecord, key string) *float64 {
	v, ok := raw[key]
	if !ok || v == nil {
		return nil
	}

	var (
		f   float64
		err error
	)
	switch t := v.(type) {
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return nil
		}
		f, err = strconv.ParseFloat(s, 64)
	case json.Number:
		f, err = t.Float64()
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int:
		f = float64(t)
	case int64:
		f = float64(t)
	default:
		return nil
	}
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

// snapshot renders the raw record for forensic replay.
func snapshot(raw RawRecord) string {
	b, err := json.Marshal(raw)
	if err != nil {
		return fmt.Sprint(map[string]any(raw))
	}
	return string(b)
}
