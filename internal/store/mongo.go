package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/i474232898/aqi-data-ingestion/internal/aqi"
)

// Collection names.
const (
	MeasurementsCollection = "aqi_data"
	FetchLogsCollection    = "fetch_logs"
)

// MongoStore persists measurements and fetch logs as MongoDB documents.
type MongoStore struct {
	measurements *mongo.Collection
	logs         *mongo.Collection
}

// ConnectMongo opens a client and verifies the server is reachable.
func ConnectMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return client, nil
}

// NewMongoStore uses the aqi_data and fetch_logs collections of db.
func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{
		measurements: db.Collection(MeasurementsCollection),
		logs:         db.Collection(FetchLogsCollection),
	}
}

// EnsureIndexes creates the lookup and ordering indexes. It is idempotent.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	if _, err := s.measurements.Indexes().CreateMany(ctx, measurementIndexes()); err != nil {
		return fmt.Errorf("create %s indexes: %w", MeasurementsCollection, err)
	}
	if _, err := s.logs.Indexes().CreateMany(ctx, fetchLogIndexes()); err != nil {
		return fmt.Errorf("create %s indexes: %w", FetchLogsCollection, err)
	}
	return nil
}

func measurementIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{Keys: bson.D{{Key: "state", Value: 1}}},
		{Keys: bson.D{{Key: "city", Value: 1}}},
		{Keys: bson.D{{Key: "pollutant_id", Value: 1}}},
		{Keys: bson.D{{Key: "state", Value: 1}, {Key: "pollutant_id", Value: 1}}},
		{Keys: bson.D{{Key: "ingested_at", Value: -1}}},
	}
}

func fetchLogIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{Keys: bson.D{{Key: "state", Value: 1}}},
		{Keys: bson.D{{Key: "pollutant_id", Value: 1}}},
		{Keys: bson.D{{Key: "logged_at", Value: -1}}},
	}
}

// SaveMeasurement inserts one document.
func (s *MongoStore) SaveMeasurement(ctx context.Context, rec aqi.MeasurementRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if _, err := s.measurements.InsertOne(ctx, rec); err != nil {
		return fmt.Errorf("insert measurement: %w", err)
	}
	return nil
}

// SaveFetchLog inserts one document.
func (s *MongoStore) SaveFetchLog(ctx context.Context, entry aqi.FetchLogEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if _, err := s.logs.InsertOne(ctx, entry); err != nil {
		return fmt.Errorf("insert fetch log: %w", err)
	}
	return nil
}

// ListMeasurements returns matching measurements newest first.
func (s *MongoStore) ListMeasurements(ctx context.Context, q aqi.MeasurementQuery) ([]aqi.MeasurementRecord, error) {
	cur, err := s.measurements.Find(ctx, measurementFilter(q), newestFirst("ingested_at", q.Limit))
	if err != nil {
		return nil, fmt.Errorf("find measurements: %w", err)
	}
	result := make([]aqi.MeasurementRecord, 0)
	if err := cur.All(ctx, &result); err != nil {
		return nil, fmt.Errorf("decode measurements: %w", err)
	}
	return result, nil
}

// ListFetchLogs returns matching fetch-log entries newest first.
func (s *MongoStore) ListFetchLogs(ctx context.Context, q aqi.FetchLogQuery) ([]aqi.FetchLogEntry, error) {
	cur, err := s.logs.Find(ctx, fetchLogFilter(q), newestFirst("logged_at", q.Limit))
	if err != nil {
		return nil, fmt.Errorf("find fetch logs: %w", err)
	}
	result := make([]aqi.FetchLogEntry, 0)
	if err := cur.All(ctx, &result); err != nil {
		return nil, fmt.Errorf("decode fetch logs: %w", err)
	}
	return result, nil
}

func measurementFilter(q aqi.MeasurementQuery) bson.M {
	filter := bson.M{}
	if q.State != "" {
		filter["state"] = q.State
	}
	if q.PollutantID != "" {
		filter["pollutant_id"] = q.PollutantID
	}
	return filter
}

func fetchLogFilter(q aqi.FetchLogQuery) bson.M {
	filter := bson.M{}
	if q.State != "" {
		filter["state"] = q.State
	}
	return filter
}

func newestFirst(field string, limit int) *options.FindOptions {
	opts := options.Find().SetSort(bson.D{{Key: field, Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	return opts
}
