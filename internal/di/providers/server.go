package providers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/samber/do/v2"

	"github.com/solestoreapp/solestore-client/internal/api"
	"github.com/solestoreapp/solestore-client/internal/api/backend"
	"github.com/solestoreapp/solestore-client/internal/config"
	"github.com/solestoreapp/solestore-client/internal/logger"
)

// BackendHandle wraps the dev server backend with shutdown capability.
type BackendHandle struct {
	*backend.Backend
}

// Shutdown implements do.Shutdownable.
func (h *BackendHandle) Shutdown() error {
	return h.Close()
}

// ProvideBackend provides the BadgerDB storefront backend.
func ProvideBackend(i do.Injector) (*BackendHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	b, err := backend.Open(cfg.Server.DataPath, log)
	if err != nil {
		return nil, err
	}

	log.Info("Backend database initialized", "path", cfg.Server.DataPath)

	return &BackendHandle{Backend: b}, nil
}

// HTTPServerHandle wraps http.Server with Shutdownable.
type HTTPServerHandle struct {
	*http.Server
}

// Shutdown implements do.Shutdownable.
func (h *HTTPServerHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Server.Shutdown(ctx)
}

// ProvideHTTPServer provides the dev server HTTP listener.
func ProvideHTTPServer(i do.Injector) (*HTTPServerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	backendHandle := do.MustInvoke[*BackendHandle](i)

	handler := api.NewServer(backendHandle.Backend, log)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start in background
	go func() {
		log.Info("HTTP server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error", "error", err)
		}
	}()

	return &HTTPServerHandle{Server: srv}, nil
}
