// Package di provides dependency injection configuration for the sync client
// and the reference dev server.
package di

import (
	"github.com/samber/do/v2"

	"github.com/solestoreapp/solestore-client/internal/client"
	"github.com/solestoreapp/solestore-client/internal/config"
	"github.com/solestoreapp/solestore-client/internal/di/providers"
	"github.com/solestoreapp/solestore-client/internal/logger"
	"github.com/solestoreapp/solestore-client/internal/store"
)

// NewContainer creates and configures the DI container with all providers.
// Providers are lazy; a binary only pays for what its bootstrap invokes.
func NewContainer() *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)

	// Client side: durable cache, remote API, stores, reconciliation
	do.Provide(injector, providers.ProvideCache)
	do.Provide(injector, providers.ProvideAPIClient)
	do.Provide(injector, providers.ProvideRevalidator)
	do.Provide(injector, providers.ProvideCartStore)
	do.Provide(injector, providers.ProvideFavoritesStore)
	do.Provide(injector, providers.ProvideCacheWatcher)

	// Dev server side: Badger backend and HTTP listener
	do.Provide(injector, providers.ProvideBackend)
	do.Provide(injector, providers.ProvideHTTPServer)

	return injector
}

// BootstrapClient initializes the client-side graph. Invoking the watcher
// also performs the initial favorites load for the configured user.
func BootstrapClient(injector *do.RootScope) error {
	_ = do.MustInvoke[*config.Config](injector)
	_ = do.MustInvoke[*logger.Logger](injector)
	_ = do.MustInvoke[*providers.CacheHandle](injector)
	_ = do.MustInvoke[client.API](injector)
	_ = do.MustInvoke[*providers.RevalidatorHandle](injector)
	_ = do.MustInvoke[*store.CartStore](injector)
	_ = do.MustInvoke[*providers.FavoritesStoreHandle](injector)
	_ = do.MustInvoke[*providers.WatcherHandle](injector)

	return nil
}

// BootstrapServer initializes the dev server graph.
func BootstrapServer(injector *do.RootScope) error {
	_ = do.MustInvoke[*config.Config](injector)
	_ = do.MustInvoke[*logger.Logger](injector)
	_ = do.MustInvoke[*providers.BackendHandle](injector)
	_ = do.MustInvoke[*providers.HTTPServerHandle](injector)

	return nil
}
