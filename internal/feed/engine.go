// Package feed serves a shuffled, non-repeating stream of videos for one
// device. Videos already watched are skipped until every video has been seen,
// at which point the watch history is cleared and a new cycle starts.
package feed

import (
	"context"
	"log/slog"
	"math/rand"
	"slices"
	"sync"
	"time"

	"github.com/shortsfeed/shortsfeed/internal/watch"
)

const (
	DefaultRecentWindow = 5
	DefaultLowWater     = 3
)

type Discoverer interface {
	Discover(ctx context.Context) ([]string, error)
}

type Config struct {
	// RecentWindow is how many recently served videos are kept out of a
	// rebuilt queue when other candidates exist. Zero selects
	// DefaultRecentWindow; a negative value disables the window.
	RecentWindow int
	// LowWater triggers an early queue rebuild after a mark.
	LowWater int
	Rand     *rand.Rand
}

type Stats struct {
	Total       int `json:"total"`
	Unwatched   int `json:"unwatched"`
	Watched     int `json:"watched"`
	QueueSize   int `json:"queueSize"`
	RecentCount int `json:"recentCount"`
	Cycles      int `json:"cycles"`
}

type Engine struct {
	mu         sync.Mutex
	store      *watch.Store
	discoverer Discoverer
	cfg        Config
	rng        *rand.Rand

	catalog     []string
	inCatalog   map[string]bool
	unwatched   []string
	queue       []string
	recent      []string
	cycles      int
	initialized bool
}

func New(store *watch.Store, discoverer Discoverer, cfg Config) *Engine {
	switch {
	case cfg.RecentWindow == 0:
		cfg.RecentWindow = DefaultRecentWindow
	case cfg.RecentWindow < 0:
		cfg.RecentWindow = 0
	}
	if cfg.LowWater <= 0 {
		cfg.LowWater = DefaultLowWater
	}
	rng := cfg.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Engine{store: store, discoverer: discoverer, cfg: cfg, rng: rng}
}

// Init discovers the catalog and builds the first queue. It reports whether any
// video was found. A successful Init is final; a failed one may be retried.
func (e *Engine) Init(ctx context.Context) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.initialized {
		return true
	}

	var refs []string
	if e.discoverer != nil {
		found, err := e.discoverer.Discover(ctx)
		if err != nil {
			slog.Warn("feed: discovery failed", "error", err)
		}
		refs = found
	}
	if len(refs) == 0 {
		return false
	}

	e.catalog = append([]string(nil), refs...)
	e.inCatalog = make(map[string]bool, len(refs))
	for _, ref := range refs {
		e.inCatalog[ref] = true
	}
	e.initialized = true
	e.refreshUnwatched()
	e.rebuildQueue(ctx)
	slog.Debug("feed: initialized", "total", len(e.catalog), "unwatched", len(e.unwatched))
	return true
}

// Next returns the next video to play, or false when the catalog is empty.
func (e *Engine) Next(ctx context.Context) (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for {
		if len(e.queue) == 0 {
			e.rebuildQueue(ctx)
		}
		if len(e.queue) == 0 {
			return "", false
		}
		ref := e.queue[0]
		e.queue = e.queue[1:]

		// Watched out of band (a share link) after the queue was built.
		if e.store.IsWatched(ref) && len(e.unwatched) > 0 {
			continue
		}

		e.pushRecent(ref)
		return ref, true
	}
}

// MarkWatched records that ref started playing.
func (e *Engine) MarkWatched(ctx context.Context, ref string) {
	if ref == "" {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	e.store.MarkWatched(ctx, ref)
	e.refreshUnwatched()
	if len(e.queue) < e.cfg.LowWater && len(e.unwatched) > 0 {
		e.rebuildQueue(ctx)
	}
}

// Reset clears the device's watch history and reshuffles.
func (e *Engine) Reset(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.store.Reset(ctx)
	e.refreshUnwatched()
	e.queue = nil
	e.rebuildQueue(ctx)
}

func (e *Engine) refreshUnwatched() {
	e.unwatched = e.unwatched[:0]
	for _, ref := range e.catalog {
		if !e.store.IsWatched(ref) {
			e.unwatched = append(e.unwatched, ref)
		}
	}
}

// rebuildQueue must be called with e.mu held.
func (e *Engine) rebuildQueue(ctx context.Context) {
	e.refreshUnwatched()
	if len(e.unwatched) == 0 && len(e.catalog) > 0 {
		e.store.Reset(ctx)
		e.unwatched = append(e.unwatched[:0], e.catalog...)
		e.cycles++
		slog.Info("feed: every video watched, starting a new cycle", "total", len(e.catalog), "cycle", e.cycles)
	}

	candidates := make([]string, 0, len(e.unwatched))
	for _, ref := range e.unwatched {
		if !slices.Contains(e.recent, ref) {
			candidates = append(candidates, ref)
		}
	}
	if len(candidates) == 0 {
		candidates = append(candidates, e.unwatched...)
	}

	shuffle(e.rng, candidates)
	e.queue = candidates
}

func (e *Engine) pushRecent(ref string) {
	if e.cfg.RecentWindow == 0 {
		return
	}
	e.recent = append([]string{ref}, e.recent...)
	if len(e.recent) > e.cfg.RecentWindow {
		e.recent = e.recent[:e.cfg.RecentWindow]
	}
}

// shuffle is a Fisher-Yates permutation in place.
func shuffle(rng *rand.Rand, refs []string) {
	for i := len(refs) - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		refs[i], refs[j] = refs[j], refs[i]
	}
}

func (e *Engine) TotalCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.catalog)
}

func (e *Engine) UnwatchedCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.unwatched)
}

func (e *Engine) QueueSize() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.queue)
}

// AllVideos returns a copy of the catalog.
func (e *Engine) AllVideos() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.catalog...)
}

func (e *Engine) Contains(ref string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.inCatalog[ref]
}

func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Stats{
		Total:       len(e.catalog),
		Unwatched:   len(e.unwatched),
		Watched:     len(e.catalog) - len(e.unwatched),
		QueueSize:   len(e.queue),
		RecentCount: len(e.recent),
		Cycles:      e.cycles,
	}
}
