package store

import (
	"context"
	"fmt"

	"github.com/i474232898/aqi-data-ingestion/internal/aqi"
	"github.com/i474232898/aqi-data-ingestion/internal/config"
)

// Open builds the store selected by cfg. The returned close function is never nil.
func Open(ctx context.Context, cfg *config.AppConfig) (aqi.Store, func(context.Context) error, error) {
	switch cfg.StoreBackend {
	case config.BackendMemory:
		return NewMemoryStore(), func(context.Context) error { return nil }, nil
	case config.BackendMongo:
		client, err := ConnectMongo(ctx, cfg.MongoURI)
		if err != nil {
			return nil, nil, err
		}
		s := NewMongoStore(client.Database(cfg.MongoDatabase))
		if err := s.EnsureIndexes(ctx); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, nil, err
		}
		return s, client.Disconnect, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}
