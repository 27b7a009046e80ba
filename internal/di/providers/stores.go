package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/solestoreapp/solestore-client/internal/client"
	"github.com/solestoreapp/solestore-client/internal/config"
	"github.com/solestoreapp/solestore-client/internal/logger"
	"github.com/solestoreapp/solestore-client/internal/store"
)

// ProvideCartStore provides the optimistic cart store.
func ProvideCartStore(i do.Injector) (*store.CartStore, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	api := do.MustInvoke[client.API](i)
	cacheHandle := do.MustInvoke[*CacheHandle](i)
	revalidator := do.MustInvoke[*RevalidatorHandle](i)

	return store.NewCartStore(api, cacheHandle.Cache, revalidator.Revalidator, log,
		store.WithCartFreshness(cfg.Cache.Freshness),
	), nil
}

// FavoritesStoreHandle wraps the favorites store with shutdown capability.
type FavoritesStoreHandle struct {
	*store.FavoritesStore
}

// Shutdown implements do.Shutdownable. Any debounced sync still waiting for
// its quiescence window fires immediately so pending toggles reach the server
// before the process exits.
func (h *FavoritesStoreHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	h.FlushSync(ctx)
	h.StopSync()
	return nil
}

// ProvideFavoritesStore provides the optimistic favorites store.
func ProvideFavoritesStore(i do.Injector) (*FavoritesStoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	api := do.MustInvoke[client.API](i)
	cacheHandle := do.MustInvoke[*CacheHandle](i)
	revalidator := do.MustInvoke[*RevalidatorHandle](i)

	s := store.NewFavoritesStore(api, cacheHandle.Cache, revalidator.Revalidator, log,
		store.WithFavoritesFreshness(cfg.Cache.Freshness),
		store.WithSyncWait(cfg.Sync.DebounceWait),
		store.WithClearTimeout(cfg.Sync.ClearTimeout),
	)

	return &FavoritesStoreHandle{FavoritesStore: s}, nil
}
