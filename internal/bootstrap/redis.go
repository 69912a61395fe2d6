package bootstrap

import (
	"github.com/redis/go-redis/v9"

	"github.com/jonesrussell/campscout/internal/config"
	"github.com/jonesrussell/campscout/internal/events"
	"github.com/jonesrussell/campscout/internal/logger"
)

// SetupEvents creates the Redis-backed event publisher. When Redis is
// disabled it returns a nil publisher, which every publish method
// treats as a no-op.
func SetupEvents(cfg *config.Config, log logger.Logger) *events.Publisher {
	if !cfg.Redis.Enabled {
		log.Info("redis events disabled")
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	log.Info("redis events enabled", logger.String("address", cfg.Redis.Address))
	return events.NewPublisher(client, log)
}
