package app

import (
	"fmt"
	"user-onboarding/internal/common/logging"
	"user-onboarding/internal/redis"
	"user-onboarding/internal/storage/memory"
	redisstore "user-onboarding/internal/storage/redis"
)

func (app *App) initializeStorage() error {
	if app.Store != nil {
		return nil
	}

	switch app.Config.StorageBackend {
	case "redis":
		client, err := redis.NewClient(&redis.Config{
			Address:  app.Config.RedisAddress,
			Password: app.Config.RedisPassword,
			DB:       app.Config.RedisDB,
			PoolSize: app.Config.RedisPoolSize,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize storage: %w", err)
		}
		app.Store = redisstore.NewStore(client, app.Config.RedisKeyPrefix)
		app.Logger.Info("Storage: Redis",
			logging.String("address", app.Config.RedisAddress),
			logging.Int("db", app.Config.RedisDB),
		)
	default:
		app.Store = memory.NewStore()
		app.Logger.Info("Storage: in-memory")
	}
	return nil
}
