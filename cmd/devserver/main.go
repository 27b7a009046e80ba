// Package main provides the entry point for the reference storefront server.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/samber/do/v2"

	"github.com/solestoreapp/solestore-client/internal/di"
	"github.com/solestoreapp/solestore-client/internal/di/providers"
	"github.com/solestoreapp/solestore-client/internal/logger"
)

func main() {
	injector := di.NewContainer()

	if err := di.BootstrapServer(injector); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap dev server: %v\n", err)
		os.Exit(1)
	}

	log := do.MustInvoke[*logger.Logger](injector)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down dev server gracefully...")

	// The DI container handles shutdown order automatically.
	if err := injector.Shutdown(); err != nil {
		log.Error("Shutdown error", "error", err)
	}

	// The backend uses a wrapper type, close it explicitly.
	if backendHandle, err := do.Invoke[*providers.BackendHandle](injector); err == nil {
		if err := backendHandle.Shutdown(); err != nil {
			log.Error("Failed to close backend database", "error", err)
		}
	}

	log.Info("Dev server stopped")
}
