package safelist

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"risk-vetting-engine/metrics"
	"risk-vetting-engine/normalize"
	"risk-vetting-engine/ports"
)

// Cache maps www-stripped lowercase hosts to display labels.
// The map is only ever replaced whole; readers see either the old or the new one.
type Cache struct {
	source        ports.TrustSource
	clock         func() time.Time
	maxAge        time.Duration
	reloadTimeout time.Duration
	logger        *zap.SugaredLogger

	mu       sync.RWMutex
	entries  map[string]string
	loadedAt time.Time

	group singleflight.Group
}

type Option func(*Cache)

func WithClock(clock func() time.Time) Option { return func(c *Cache) { c.clock = clock } }

func WithMaxAge(d time.Duration) Option { return func(c *Cache) { c.maxAge = d } }

func WithReloadTimeout(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.reloadTimeout = d
		}
	}
}

func WithLogger(l *zap.SugaredLogger) Option { return func(c *Cache) { c.logger = l } }

func New(source ports.TrustSource, opts ...Option) *Cache {
	c := &Cache{
		source:        source,
		clock:         time.Now,
		maxAge:        30 * time.Minute,
		reloadTimeout: 10 * time.Second,
		logger:        zap.NewNop().Sugar(),
		entries:       map[string]string{},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Lookup returns the display label for host, if the host is trusted.
func (c *Cache) Lookup(host string) (string, bool) {
	key := normalize.StripWWW(host)
	if key == "" {
		return "", false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	label, ok := c.entries[key]
	return label, ok
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *Cache) LoadedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loadedAt
}

// Reload fetches the full trusted list and swaps it in. Concurrent calls share one fetch.
// The fetch is detached from the caller's cancellation, so a caller that gives up
// returns ctx.Err() without failing the others. On failure the previous map stays in place.
func (c *Cache) Reload(ctx context.Context) (int, error) {
	ch := c.group.DoChan("reload", func() (any, error) {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.reloadTimeout)
		defer cancel()
		return c.reload(rctx)
	})
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return 0, r.Err
		}
		return r.Val.(int), nil
	}
}

func (c *Cache) reload(ctx context.Context) (int, error) {
	links, err := c.source.LoadAll(ctx)
	if err != nil {
		metrics.SafeListReloads.WithLabelValues("error").Inc()
		c.logger.Warnw("[SafeList] reload failed, keeping previous list", "error", err)
		return 0, fmt.Errorf("load trusted links: %w", err)
	}

	next, skipped := build(links)

	c.mu.Lock()
	c.entries = next
	c.loadedAt = c.clock()
	c.mu.Unlock()

	metrics.SafeListReloads.WithLabelValues("ok").Inc()
	metrics.SafeListEntries.Set(float64(len(next)))
	c.logger.Infow("[SafeList] reloaded", "entries", len(next), "skipped", skipped)
	return len(next), nil
}

// LoadIfNeeded reloads when the cache has never loaded or is older than its max age.
func (c *Cache) LoadIfNeeded(ctx context.Context) error {
	c.mu.RLock()
	stale := c.loadedAt.IsZero() || c.clock().Sub(c.loadedAt) > c.maxAge
	c.mu.RUnlock()
	if !stale {
		return nil
	}
	_, err := c.Reload(ctx)
	return err
}

func build(links []ports.TrustedLink) (map[string]string, int) {
	out := make(map[string]string, len(links))
	skipped := 0
	for _, l := range links {
		host := normalize.Host(l.URL)
		if host == "" {
			skipped++
			continue
		}
		label := l.ID
		if label == "" {
			label = host
		}
		out[host] = label
	}
	return out, skipped
}
