package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/solestoreapp/solestore-client/internal/config"
	"github.com/solestoreapp/solestore-client/internal/logger"
	"github.com/solestoreapp/solestore-client/internal/watcher"
)

// WatcherHandle wraps the cache watcher with its context for lifecycle
// management.
type WatcherHandle struct {
	*watcher.CacheWatcher
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (h *WatcherHandle) Shutdown() error {
	h.cancel()
	return h.Stop()
}

// ProvideCacheWatcher provides the started cross-process favorites watcher.
// Construction performs the initial favorites load for the configured user.
func ProvideCacheWatcher(i do.Injector) (*WatcherHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	cacheHandle := do.MustInvoke[*CacheHandle](i)
	favorites := do.MustInvoke[*FavoritesStoreHandle](i)

	w, err := watcher.New(favorites.FavoritesStore, cacheHandle.Cache, cfg.App.UserID, log)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	if err := w.Start(ctx); err != nil {
		cancel()
		return nil, err
	}

	return &WatcherHandle{CacheWatcher: w, cancel: cancel}, nil
}
