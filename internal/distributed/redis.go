package distributed

import (
	"log/slog"

	"cloudops/internal/config"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient connects directly or through sentinel, depending on cfg.
func NewRedisClient(cfg *config.RedisConfig, logger *slog.Logger) redis.UniversalClient {
	if cfg.Sentinel != nil {
		logger.Info("connecting to redis via sentinel",
			"master", cfg.Sentinel.MasterName,
			"sentinels", cfg.Sentinel.SentinelAddresses)

		return redis.NewFailoverClient(&redis.FailoverOptions{
			MasterName:       cfg.Sentinel.MasterName,
			SentinelAddrs:    cfg.Sentinel.SentinelAddresses,
			SentinelUsername: cfg.Sentinel.SentinelUsername,
			SentinelPassword: cfg.Sentinel.SentinelPassword,
			Username:         cfg.Username,
			Password:         cfg.Password,
			DB:               cfg.LeaderIndex,
			MinIdleConns:     2,
		})
	}

	return redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Username:     cfg.Username,
		Password:     cfg.Password,
		DB:           cfg.LeaderIndex,
		MinIdleConns: 2,
	})
}
