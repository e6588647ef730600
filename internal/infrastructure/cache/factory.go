package cache

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/zeno/cartsync/internal/domain/shared"
	"github.com/zeno/cartsync/internal/infrastructure/config"
)

// IdempotencyStoreFactory creates idempotency stores based on configuration
type IdempotencyStoreFactory struct {
	redisConfig config.RedisConfig
	logger      *zap.Logger
}

// NewIdempotencyStoreFactory creates a new factory
func NewIdempotencyStoreFactory(cfg config.RedisConfig, logger *zap.Logger) *IdempotencyStoreFactory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IdempotencyStoreFactory{redisConfig: cfg, logger: logger}
}

// CreateStore returns a Redis store when a Redis host is configured,
// otherwise the in-process store. A configured but unreachable Redis is
// an error rather than a silent fallback: checkout deduplication must
// not quietly stop being shared across instances.
func (f *IdempotencyStoreFactory) CreateStore() (shared.IdempotencyStore, error) {
	if f.redisConfig.Host == "" {
		f.logger.Info("using in-memory idempotency store")
		return NewInMemoryIdempotencyStore(), nil
	}

	store, err := NewRedisIdempotencyStore(RedisConfig{
		Host:     f.redisConfig.Host,
		Port:     f.redisConfig.Port,
		Password: f.redisConfig.Password,
		DB:       f.redisConfig.DB,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Redis idempotency store: %w", err)
	}

	f.logger.Info("using Redis idempotency store",
		zap.String("host", f.redisConfig.Host),
		zap.Int("port", f.redisConfig.Port),
	)
	return store, nil
}
