package commands

import (
	"fmt"

	"github.com/luckygong/streambus/internal/logger"
	"github.com/luckygong/streambus/pkg/config"
	"github.com/luckygong/streambus/pkg/identity"
)

// InitLogger initializes the structured logger from configuration.
func InitLogger(cfg *config.Config) error {
	loggerCfg := logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}
	if err := logger.Init(loggerCfg); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}

// openStore opens the configured credential store. The returned closer is
// a no-op for the memory backend.
func openStore(cfg *config.Config) (identity.Admin, func() error, error) {
	switch cfg.Store.Backend {
	case "badger":
		store, err := identity.OpenBadgerStore(cfg.Store.Path)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	case "memory":
		return identity.NewMemoryStore(), func() error { return nil }, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend: %s", cfg.Store.Backend)
	}
}
