package config

import (
	"fmt"

	"github.com/rs/zerolog"
)

// Validate checks runtime config for obvious operator mistakes.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if cfg.Network != Mainnet && cfg.Network != Testnet {
		return fmt.Errorf("network must be %q or %q", Mainnet, Testnet)
	}
	switch cfg.DB.Backend {
	case BackendBadger, BackendMemory:
	case "":
		cfg.DB.Backend = BackendBadger
	default:
		return fmt.Errorf("db.backend must be %q or %q", BackendBadger, BackendMemory)
	}
	if cfg.DataDir == "" && cfg.DB.Backend == BackendBadger {
		return fmt.Errorf("datadir is required for the badger backend")
	}

	if cfg.Pending.MaxSize < 0 {
		return fmt.Errorf("pending.maxsize must not be negative")
	}
	if cfg.Pending.MaxSize == 0 {
		cfg.Pending.MaxSize = DefaultPendingSize
	}

	if cfg.Log.Level != "" {
		if _, err := zerolog.ParseLevel(cfg.Log.Level); err != nil {
			return fmt.Errorf("log.level %q: %w", cfg.Log.Level, err)
		}
	}

	return nil
}
