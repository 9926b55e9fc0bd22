package safelist

import (
	"context"
	"time"
)

// Refresh reloads c every interval until ctx is done. It loads once immediately.
func Refresh(ctx context.Context, c *Cache, interval time.Duration) {
	if _, err := c.Reload(ctx); err != nil && ctx.Err() == nil {
		c.logger.Warnw("[SafeList] initial load failed", "error", err)
	}
	if interval <= 0 {
		return
	}

	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			_, _ = c.Reload(ctx)
		}
	}
}
