package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/solestoreapp/solestore-client/internal/client"
	"github.com/solestoreapp/solestore-client/internal/config"
	"github.com/solestoreapp/solestore-client/internal/logger"
)

// ProvideAPIClient provides the storefront HTTP client.
func ProvideAPIClient(i do.Injector) (client.API, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	return client.NewHTTP(client.Options{
		BaseURL:   cfg.Remote.BaseURL,
		AuthToken: cfg.Remote.AuthToken,
		Timeout:   cfg.Remote.RequestTimeout,
	}, log), nil
}

// RevalidatorHandle wraps the tag revalidator with shutdown capability.
type RevalidatorHandle struct {
	*client.Revalidator
}

// Shutdown implements do.Shutdownable. Pending tags are flushed before the
// revalidator stops so page invalidations from a final sync are not lost.
func (h *RevalidatorHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	h.Flush(ctx)
	h.Stop()
	return nil
}

// ProvideRevalidator provides the debounced tag revalidator.
func ProvideRevalidator(i do.Injector) (*RevalidatorHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	r := client.NewRevalidator(cfg.Remote.BaseURL, cfg.Sync.DebounceWait, log)
	return &RevalidatorHandle{Revalidator: r}, nil
}
