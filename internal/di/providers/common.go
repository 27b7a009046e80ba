package providers

import "time"

const (
	// shutdownTimeout is the maximum time to wait for graceful shutdown,
	// including the final flush of pending favorite syncs.
	shutdownTimeout = 10 * time.Second
)
