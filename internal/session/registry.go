// Package session owns one feed engine per device and drops engines that have
// gone idle. Watch history survives eviction through the device's KV.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/shortsfeed/shortsfeed/internal/device"
	"github.com/shortsfeed/shortsfeed/internal/feed"
	"github.com/shortsfeed/shortsfeed/internal/watch"
)

const DefaultIdleTTL = 30 * time.Minute

type Config struct {
	Discoverer feed.Discoverer
	KV         KVFactory
	Feed       feed.Config
	IdleTTL    time.Duration
	// Devices is optional; without it device visits are not recorded.
	Devices *Devices
	// Country maps a client IP to an ISO country code. Optional.
	Country func(ip string) string
}

type entry struct {
	once     sync.Once
	engine   *feed.Engine
	lastUsed time.Time
	// inUse counts callers holding the engine; held entries are never evicted.
	inUse int
}

type Registry struct {
	mu      sync.Mutex
	entries map[string]*entry
	cfg     Config
	now     func() time.Time
}

func NewRegistry(cfg Config) *Registry {
	if cfg.KV == nil {
		cfg.KV = MemoryKVs()
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = DefaultIdleTTL
	}
	// *rand.Rand is not safe to share between engines.
	cfg.Feed.Rand = nil
	return &Registry{
		entries: make(map[string]*entry),
		cfg:     cfg,
		now:     time.Now,
	}
}

// Acquire returns the device's engine, creating and initializing it on first
// use, and holds it until release is called. Concurrent first calls for one
// device share a single engine.
func (r *Registry) Acquire(ctx context.Context, deviceID string) (eng *feed.Engine, release func()) {
	r.mu.Lock()
	e, ok := r.entries[deviceID]
	if !ok {
		e = &entry{}
		r.entries[deviceID] = e
	}
	e.lastUsed = r.now()
	e.inUse++
	r.mu.Unlock()

	var once sync.Once
	release = func() {
		once.Do(func() {
			r.mu.Lock()
			e.inUse--
			e.lastUsed = r.now()
			r.mu.Unlock()
		})
	}

	e.once.Do(func() {
		logger := slog.Default().With("device", deviceID)
		store := watch.Open(ctx, r.cfg.KV(deviceID), watch.WithLogger(logger))
		e.engine = feed.New(store, r.cfg.Discoverer, r.cfg.Feed)
		if !e.engine.Init(ctx) {
			logger.Warn("session: no videos discovered for new engine")
		}
		logger.Debug("session: engine created")
	})
	return e.engine, release
}

// Visit records a device visit when a device table is configured.
func (r *Registry) Visit(ctx context.Context, deviceID, userAgent, ip string) {
	if r.cfg.Devices == nil || deviceID == "" {
		return
	}
	var country string
	if r.cfg.Country != nil {
		country = r.cfg.Country(ip)
	}
	if err := r.cfg.Devices.Touch(ctx, deviceID, device.Describe(userAgent), country); err != nil {
		slog.Warn("session: failed to record device", "device", deviceID, "error", err)
	}
}

// KnownDevices counts recorded devices. ok is false when no device table is
// configured.
func (r *Registry) KnownDevices(ctx context.Context) (n int, ok bool, err error) {
	if r.cfg.Devices == nil {
		return 0, false, nil
	}
	n, err = r.cfg.Devices.Count(ctx)
	return n, true, err
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Evict drops engines unused for longer than the idle TTL and returns how many
// were removed. Engines still held by a caller are kept.
func (r *Registry) Evict() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	cutoff := r.now().Add(-r.cfg.IdleTTL)
	removed := 0
	for id, e := range r.entries {
		if e.inUse == 0 && e.lastUsed.Before(cutoff) {
			delete(r.entries, id)
			removed++
		}
	}
	return removed
}

// StartEvictionLoop evicts idle engines every interval until ctx is done.
func (r *Registry) StartEvictionLoop(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = r.cfg.IdleTTL / 2
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := r.Evict(); n > 0 {
					slog.Info("session: evicted idle engines", "count", n, "remaining", r.Len())
				}
			}
		}
	}()
}
