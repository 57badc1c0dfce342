// Package wiring builds the shared server dependencies (storage, auth,
// event publishing) from resolved configuration. The serve subcommands
// all use the same wiring so a relay and API started separately see the
// same world as "serve" running both.
package wiring

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/rotaworks/rotachat/cmd/rotachatd/dbpath"
	"github.com/rotaworks/rotachat/pkg/auth"
	"github.com/rotaworks/rotachat/pkg/config"
	"github.com/rotaworks/rotachat/pkg/eventstream"
	"github.com/rotaworks/rotachat/pkg/eventstream/kafka"
	"github.com/rotaworks/rotachat/pkg/eventstream/nop"
	"github.com/rotaworks/rotachat/pkg/secrets"
	"github.com/rotaworks/rotachat/pkg/storage"
	"github.com/rotaworks/rotachat/pkg/storage/inmemory"
	"github.com/rotaworks/rotachat/pkg/storage/sqldb"
)

// NewStorageDriver opens the configured storage backend.
func NewStorageDriver(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (storage.Driver, error) {
	switch cfg.Driver {
	case "memory":
		logger.Info("using in-memory storage")
		return inmemory.NewDriver(), nil

	case "sqlite", "":
		dsn := cfg.DSN
		if dsn == "" {
			resolved, err := dbpath.ResolveSQLitePath("")
			if err != nil {
				// No database on disk yet: create the default one.
				home, herr := os.UserHomeDir()
				if herr != nil {
					return nil, fmt.Errorf("resolving sqlite path: %w", err)
				}
				resolved = home + "/.rotachat/rotachat.db"
			}
			dsn = resolved
		}
		logger.Info("using SQLite storage", zap.String("path", dsn))
		return sqldb.Open(ctx, "sqlite", dsn, cfg.AutoMigrate)

	case "postgres":
		logger.Info("using Postgres storage")
		return sqldb.Open(ctx, "postgres", cfg.DSN, cfg.AutoMigrate)

	default:
		return nil, fmt.Errorf("unknown storage driver %q (sqlite, postgres, memory)", cfg.Driver)
	}
}

// NewVerifier builds the token verifier for the relay.
func NewVerifier(cfg config.AuthConfig, anonKey string) (auth.Verifier, error) {
	switch cfg.Provider {
	case "static", "":
		tokens := auth.ParseStaticTokens(os.Getenv("ROTACHAT_STATIC_TOKENS"))
		return auth.NewStaticVerifier(tokens), nil

	case "http":
		if cfg.Target == "" {
			return nil, fmt.Errorf("auth.provider is http but auth.target is empty")
		}
		return auth.NewHTTPVerifier(cfg.Target, anonKey), nil

	default:
		return nil, fmt.Errorf("unknown auth provider %q (static, http)", cfg.Provider)
	}
}

// NewSecretLookup resolves provider API keys for the relay: secrets.toml
// in the .rotachat/ directory first, environment variables as fallback.
func NewSecretLookup(configDir string) (func(string) string, error) {
	mgr, err := secrets.NewManager(configDir)
	if err != nil {
		return nil, fmt.Errorf("opening secrets store: %w", err)
	}
	return mgr.Lookup, nil
}

// NewPublisher builds the usage event publisher.
func NewPublisher(cfg config.EventsConfig, logger *zap.Logger) (eventstream.Publisher, error) {
	switch cfg.Provider {
	case "nop", "":
		return nop.NewPublisher(), nil

	case "kafka":
		if len(cfg.Brokers) == 0 {
			return nil, fmt.Errorf("events.provider is kafka but events.brokers is empty")
		}
		logger.Info("publishing usage events to kafka",
			zap.Strings("brokers", cfg.Brokers),
			zap.String("topic", cfg.Topic),
		)
		return kafka.NewPublisher(cfg.Brokers, cfg.Topic), nil

	default:
		return nil, fmt.Errorf("unknown events provider %q (nop, kafka)", cfg.Provider)
	}
}
