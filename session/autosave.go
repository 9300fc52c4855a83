package session

import (
	"context"
	"log/slog"
	"time"
)

// autosaveLoop calls save every interval until stop is closed. Each save
// runs under its own bounded context so a wedged browser cannot stall the
// loop forever. A failed save is logged and the loop keeps ticking; the
// next tick gets a fresh chance.
func autosaveLoop(interval time.Duration, stop <-chan struct{}, logger *slog.Logger, save func(context.Context) error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			if err := save(ctx); err != nil {
				logger.Warn("session: autosave failed", "error", err)
			}
			cancel()
		}
	}
}
