package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/aretw0/stepwise"
	"github.com/aretw0/stepwise/internal/config"
	"github.com/aretw0/stepwise/internal/logging"
	"github.com/aretw0/stepwise/pkg/adapters/memory"
	"github.com/aretw0/stepwise/pkg/adapters/redis"
	"github.com/aretw0/stepwise/pkg/domain"
	"github.com/aretw0/stepwise/pkg/observability"
	"github.com/aretw0/stepwise/pkg/ports"
)

// loadConfig reads the configuration, looking for stepwise.yaml in the working
// directory when no path is given.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		path = config.DefaultPath
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("error loading config: %w", err)
	}
	return cfg, nil
}

// createLogger configures the application logger.
// Interactive commands stay quiet unless --debug is set; servers log at the configured level.
func createLogger(cfg *config.Config, debug, server bool) (*slog.Logger, error) {
	if debug {
		return logging.NewWithWriter(os.Stderr, slog.LevelDebug, logging.Format(cfg.Log.Format)), nil
	}
	if !server {
		return logging.NewNop(), nil
	}
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	return logging.NewWithWriter(os.Stderr, level, logging.Format(cfg.Log.Format)), nil
}

// createEngine initializes a stepwise engine with standard CLI conventions.
func createEngine(cfg *config.Config, logger *slog.Logger, debug bool, hooks ...domain.LifecycleHooks) (*stepwise.Engine, error) {
	engineOpts := []stepwise.Option{
		stepwise.WithTransportConfig(cfg.Transport()),
		stepwise.WithLogger(logger),
	}
	if debug {
		engineOpts = append(engineOpts, stepwise.WithLifecycleHooks(observability.AuditHooks(logger)))
	}
	for _, h := range hooks {
		engineOpts = append(engineOpts, stepwise.WithLifecycleHooks(h))
	}

	engine, err := stepwise.New(engineOpts...)
	if err != nil {
		return nil, fmt.Errorf("error initializing stepwise: %w", err)
	}
	return engine, nil
}

// createBroadcaster fans snapshots out through redis when an address is configured.
// The returned close func releases the connection.
func createBroadcaster(cfg *config.Config, logger *slog.Logger) (ports.Broadcaster, func() error) {
	if cfg.Redis.Addr == "" {
		return memory.NewBroadcaster(logger), func() error { return nil }
	}
	logger.Info("Using redis broadcaster", "addr", cfg.Redis.Addr)
	b := redis.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, redis.WithLogger(logger))
	return b, b.Close
}
