package kvstore

import (
	"fmt"

	"storefront/internal/models"
)

// Open creates the backend selected by cfg.Type. An unreachable Redis server
// is not an error. The result is not guarded; callers wrap it with Guarded
// before handing it to the limiter.
func Open(cfg models.KVConfig) (Store, error) {
	switch cfg.Type {
	case models.KVTypeMemory:
		return NewMemory(cfg.Memory.CleanupInterval), nil
	case models.KVTypeRedis:
		return NewRedis(RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		}), nil
	default:
		return nil, fmt.Errorf("unsupported kv store type: %s", cfg.Type)
	}
}
