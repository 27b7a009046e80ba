package providers

import (
	"github.com/samber/do/v2"

	"github.com/solestoreapp/solestore-client/internal/cache"
	"github.com/solestoreapp/solestore-client/internal/config"
	"github.com/solestoreapp/solestore-client/internal/logger"
)

// CacheHandle wraps the durable cache with shutdown capability.
type CacheHandle struct {
	*cache.Cache
}

// Shutdown implements do.Shutdownable.
func (h *CacheHandle) Shutdown() error {
	return h.Close()
}

// ProvideCache provides the durable snapshot cache.
func ProvideCache(i do.Injector) (*CacheHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	c, err := cache.Open(cfg.Cache.Path, log)
	if err != nil {
		return nil, err
	}

	log.Info("Durable cache opened", "path", cfg.Cache.Path, "writer_id", c.WriterID())

	return &CacheHandle{Cache: c}, nil
}
