package bootstrap

import (
	"context"
	"fmt"
	"os"

	"github.com/niveshsaharan/centire-shopify/internal/config"
	"github.com/niveshsaharan/centire-shopify/internal/infrastructure/database"
	"github.com/niveshsaharan/centire-shopify/internal/infrastructure/lock"
	"github.com/niveshsaharan/centire-shopify/internal/infrastructure/logging"
	"github.com/niveshsaharan/centire-shopify/internal/infrastructure/queue"
	"github.com/niveshsaharan/centire-shopify/internal/infrastructure/repository"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/multierr"
	"gorm.io/gorm"
)

// LoadConfig reads .env when present, then the environment
func LoadConfig(logger zerolog.Logger) (*config.Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logger.Warn().Err(err).Msg("Failed to read .env file")
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// NewLogger builds the root logger for a binary
func NewLogger(service string, cfg *config.Config) zerolog.Logger {
	return logging.New(logging.Options{
		Service: service,
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Output:  os.Stdout,
	})
}

// Stores holds the open connections behind the repositories
type Stores struct {
	Mongo *mongo.Client
	DB    *gorm.DB
	Redis *redis.Client

	logger zerolog.Logger
}

// Open connects to MongoDB, the billing database and Redis and builds the repositories
func Open(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*Stores, Dependencies, error) {
	stores := &Stores{logger: logger}

	var err error
	stores.Mongo, err = database.ConnectMongo(ctx, cfg.MongoURI, logger)
	if err != nil {
		return nil, Dependencies{}, err
	}

	stores.DB, err = database.OpenPostgres(ctx, database.PostgresConfig{DSN: cfg.DatabaseURL}, logger)
	if err != nil {
		stores.Close(ctx)
		return nil, Dependencies{}, err
	}
	if err := database.Migrate(ctx, stores.DB); err != nil {
		stores.Close(ctx)
		return nil, Dependencies{}, err
	}

	stores.Redis, err = database.ConnectRedis(ctx, cfg.RedisURL, logger)
	if err != nil {
		stores.Close(ctx)
		return nil, Dependencies{}, err
	}

	db := stores.Mongo.Database(cfg.MongoDatabase)
	shops := repository.NewMongoShopRepository(db)
	if err := shops.EnsureIndexes(ctx); err != nil {
		stores.Close(ctx)
		return nil, Dependencies{}, err
	}

	locker, err := lock.NewRedisLocker(stores.Redis, "shopify:")
	if err != nil {
		stores.Close(ctx)
		return nil, Dependencies{}, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return stores, Dependencies{
		Shops:      shops,
		WebhookLog: repository.NewMongoWebhookEventLog(db),
		Billing:    repository.NewGormBillingRepository(stores.DB),
		Queue:      queue.NewRedisQueue(stores.Redis, "", logger),
		Locker:     locker,
		Registry:   registry,
	}, nil
}

// Close releases every open connection
func (s *Stores) Close(ctx context.Context) {
	var err error
	if s.Redis != nil {
		err = multierr.Append(err, s.Redis.Close())
	}
	if s.DB != nil {
		err = multierr.Append(err, database.Close(s.DB))
	}
	if s.Mongo != nil {
		err = multierr.Append(err, s.Mongo.Disconnect(ctx))
	}
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to close stores")
	}
}
