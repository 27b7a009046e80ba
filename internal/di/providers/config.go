// Package providers contains dependency injection providers for the sync
// client and the reference dev server.
package providers

import (
	"github.com/samber/do/v2"

	"github.com/solestoreapp/solestore-client/internal/config"
	"github.com/solestoreapp/solestore-client/internal/logger"
)

// ProvideConfig provides the application configuration.
func ProvideConfig(i do.Injector) (*config.Config, error) {
	return config.LoadConfig()
}

// ProvideLogger provides the structured logger.
func ProvideLogger(i do.Injector) (*logger.Logger, error) {
	cfg := do.MustInvoke[*config.Config](i)

	log := logger.New(logger.Config{
		Level:       logger.ParseLevel(cfg.Logger.Level),
		Environment: cfg.App.Environment,
	})

	log.Info("Starting Solestore sync client",
		"environment", cfg.App.Environment,
		"log_level", cfg.Logger.Level,
		"api_url", cfg.Remote.BaseURL,
		"cache_path", cfg.Cache.Path,
	)

	return log, nil
}
