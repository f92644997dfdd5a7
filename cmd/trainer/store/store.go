// Package store constructs the report store from the trainer config.
package store

import (
	"log/slog"
	"os"

	"github.com/HatiCode/millwright/cmd/trainer/config"
	"github.com/HatiCode/millwright/pkg/storage"
)

// New creates the configured storage backend.
// Exits when the backend is unknown or Redis is unreachable.
func New(cfg *config.Config, logger *slog.Logger) storage.Store {
	switch cfg.Storage {
	case "memory":
		logger.Info("using in-memory report store")
		return storage.NewMemoryStore()

	case "redis":
		logger.Info("using redis report store",
			"addr", cfg.RedisAddr,
			"db", cfg.RedisDB,
			"ttl", cfg.RedisTTL,
		)
		s, err := storage.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.RedisTTL)
		if err != nil {
			logger.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		return s

	default:
		logger.Error("invalid storage backend", "storage", cfg.Storage)
		os.Exit(1)
	}

	return nil
}
