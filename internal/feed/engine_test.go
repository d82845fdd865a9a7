package feed

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"testing"

	"github.com/shortsfeed/shortsfeed/internal/watch"
)

type listDiscoverer struct {
	refs  []string
	err   error
	calls int
}

func (d *listDiscoverer) Discover(context.Context) ([]string, error) {
	d.calls++
	return d.refs, d.err
}

func catalogOf(n int) []string {
	refs := make([]string, n)
	for i := range refs {
		refs[i] = fmt.Sprintf("videos/video%d.mp4", i+1)
	}
	return refs
}

func newEngine(t *testing.T, refs []string, window int) (*Engine, *watch.Store, *watch.MemoryKV) {
	t.Helper()
	kv := watch.NewMemoryKV()
	store := watch.Open(context.Background(), kv)
	e := New(store, &listDiscoverer{refs: refs}, Config{RecentWindow: window, Rand: rand.New(rand.NewSource(1))})
	if len(refs) > 0 && !e.Init(context.Background()) {
		t.Fatal("expected init to succeed")
	}
	return e, store, kv
}

func TestInit_EmptyCatalogFails(t *testing.T) {
	ctx := context.Background()
	store := watch.Open(ctx, watch.NewMemoryKV())
	e := New(store, &listDiscoverer{err: errors.New("offline")}, Config{})

	if e.Init(ctx) {
		t.Fatal("expected init to report failure")
	}
	if ref, ok := e.Next(ctx); ok {
		t.Fatalf("expected no video, got %q", ref)
	}
	if s := e.Stats(); s != (Stats{}) {
		t.Errorf("expected zero stats, got %+v", s)
	}
}

func TestInit_RetriesAfterFailure(t *testing.T) {
	ctx := context.Background()
	d := &listDiscoverer{}
	e := New(watch.Open(ctx, watch.NewMemoryKV()), d, Config{})

	if e.Init(ctx) {
		t.Fatal("expected first init to fail")
	}
	d.refs = []string{"videos/a.mp4"}
	if !e.Init(ctx) {
		t.Fatal("expected re-init to succeed")
	}
	if !e.Init(ctx) {
		t.Fatal("expected repeated init to stay successful")
	}
	if d.calls != 2 {
		t.Errorf("expected discovery to run twice, got %d", d.calls)
	}
}

func TestIntrospection_BeforeInit(t *testing.T) {
	e := New(watch.Open(context.Background(), watch.NewMemoryKV()), nil, Config{})
	if e.TotalCount() != 0 || e.UnwatchedCount() != 0 || e.QueueSize() != 0 || len(e.AllVideos()) != 0 {
		t.Fatal("expected zero values before init")
	}
}

func TestNext_CycleScenario(t *testing.T) {
	ctx := context.Background()
	refs := []string{"A", "B", "C", "D", "E"}
	e, store, _ := newEngine(t, refs, 2)

	seen := map[string]int{}
	var order []string
	for i := 0; i < 5; i++ {
		ref, ok := e.Next(ctx)
		if !ok {
			t.Fatalf("call %d returned no video", i+1)
		}
		seen[ref]++
		order = append(order, ref)
		e.MarkWatched(ctx, ref)
	}
	for _, ref := range refs {
		if seen[ref] != 1 {
			t.Fatalf("expected %s exactly once in %v", ref, order)
		}
	}

	sixth, ok := e.Next(ctx)
	if !ok {
		t.Fatal("expected sixth call to restart the cycle")
	}
	if sixth == order[4] || sixth == order[3] {
		t.Errorf("sixth video %s repeats one of the last two %v", sixth, order[3:])
	}
	e.MarkWatched(ctx, sixth)
	if store.Count() != 1 {
		t.Fatalf("expected watch set of 1 after restart, got %d", store.Count())
	}
	if e.Stats().Cycles != 1 {
		t.Errorf("expected 1 completed cycle, got %d", e.Stats().Cycles)
	}
}

func TestNext_ExhaustionResetsWatchSet(t *testing.T) {
	ctx := context.Background()
	const n = 7
	e, store, _ := newEngine(t, catalogOf(n), 0)

	for i := 0; i < n; i++ {
		ref, _ := e.Next(ctx)
		e.MarkWatched(ctx, ref)
	}
	if store.Count() != n {
		t.Fatalf("expected %d watched, got %d", n, store.Count())
	}
	if e.UnwatchedCount() != 0 {
		t.Fatalf("expected pool exhausted, got %d unwatched", e.UnwatchedCount())
	}

	if _, ok := e.Next(ctx); !ok {
		t.Fatal("expected a video after exhaustion")
	}
	if store.Count() > n || store.Count() != 0 {
		t.Fatalf("expected watch set cleared on restart, got %d", store.Count())
	}
}

func TestNext_NoImmediateRepeat(t *testing.T) {
	ctx := context.Background()
	const window = 5
	e, _, _ := newEngine(t, catalogOf(10), window)

	var history []string
	for i := 0; i < 200; i++ {
		ref, ok := e.Next(ctx)
		if !ok {
			t.Fatal("unexpected empty feed")
		}
		start := len(history) - window
		if start < 0 {
			start = 0
		}
		for _, prev := range history[start:] {
			if prev == ref {
				t.Fatalf("call %d repeated %s within the last %d: %v", i+1, ref, window, history[start:])
			}
		}
		history = append(history, ref)
		e.MarkWatched(ctx, ref)
	}
}

func TestNext_WindowLargerThanCatalogFallsBack(t *testing.T) {
	ctx := context.Background()
	e, _, _ := newEngine(t, []string{"only"}, 40)

	for i := 0; i < 3; i++ {
		ref, ok := e.Next(ctx)
		if !ok || ref != "only" {
			t.Fatalf("call %d: expected the single video, got %q (ok=%v)", i+1, ref, ok)
		}
		e.MarkWatched(ctx, ref)
	}
}

func TestNext_SkipsVideosWatchedOutOfBand(t *testing.T) {
	ctx := context.Background()
	e, _, _ := newEngine(t, []string{"a", "b", "c"}, 5)

	e.MarkWatched(ctx, "a")

	got := map[string]bool{}
	for i := 0; i < 2; i++ {
		ref, ok := e.Next(ctx)
		if !ok {
			t.Fatal("unexpected empty feed")
		}
		got[ref] = true
	}
	if got["a"] || !got["b"] || !got["c"] {
		t.Fatalf("expected b and c before any repeat of a, got %v", got)
	}
}

func TestMarkWatched_IdempotentPersistence(t *testing.T) {
	ctx := context.Background()
	e, store, kv := newEngine(t, catalogOf(4), 0)

	ref, _ := e.Next(ctx)
	e.MarkWatched(ctx, ref)
	e.MarkWatched(ctx, ref)

	if store.Count() != 1 {
		t.Errorf("expected 1 watched, got %d", store.Count())
	}
	if kv.Writes() != 1 {
		t.Errorf("expected a single persistence write, got %d", kv.Writes())
	}
}

func TestMarkWatched_LowWaterRefill(t *testing.T) {
	ctx := context.Background()
	e, _, _ := newEngine(t, catalogOf(6), -1)

	var served []string
	for i := 0; i < 5; i++ {
		ref, _ := e.Next(ctx)
		served = append(served, ref)
	}
	before := e.QueueSize()
	if before >= DefaultLowWater {
		t.Fatalf("expected queue below low water, got %d", before)
	}

	e.MarkWatched(ctx, served[0])

	if after := e.QueueSize(); after <= before {
		t.Fatalf("expected proactive refill, queue %d -> %d", before, after)
	}
}

func TestReset_ClearsHistory(t *testing.T) {
	ctx := context.Background()
	e, store, _ := newEngine(t, catalogOf(3), 0)
	ref, _ := e.Next(ctx)
	e.MarkWatched(ctx, ref)

	e.Reset(ctx)

	if store.Count() != 0 || e.UnwatchedCount() != 3 || e.QueueSize() == 0 {
		t.Fatalf("unexpected state after reset: %+v", e.Stats())
	}
}

func TestAllVideos_ReturnsCopy(t *testing.T) {
	e, _, _ := newEngine(t, []string{"a", "b"}, 0)
	all := e.AllVideos()
	all[0] = "mutated"
	if e.AllVideos()[0] != "a" {
		t.Fatal("expected defensive copy")
	}
	if !e.Contains("b") || e.Contains("mutated") {
		t.Error("unexpected catalog membership")
	}
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	e, _, _ := newEngine(t, catalogOf(5), 2)
	for i := 0; i < 3; i++ {
		ref, _ := e.Next(ctx)
		e.MarkWatched(ctx, ref)
	}
	s := e.Stats()
	if s.Total != 5 || s.Watched != 3 || s.Unwatched != 2 || s.RecentCount != 2 {
		t.Fatalf("unexpected stats: %+v", s)
	}
	if s.QueueSize != e.QueueSize() {
		t.Errorf("queue size mismatch: %d vs %d", s.QueueSize, e.QueueSize())
	}
}

func TestNext_ConcurrentCallsNeverShareAPop(t *testing.T) {
	ctx := context.Background()
	const n = 20
	e, _, _ := newEngine(t, catalogOf(n), 0)

	var mu sync.Mutex
	var got []string
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ref, ok := e.Next(ctx)
			if !ok {
				t.Error("unexpected empty feed")
				return
			}
			mu.Lock()
			got = append(got, ref)
			mu.Unlock()
		}()
	}
	wg.Wait()

	sort.Strings(got)
	for i := 1; i < len(got); i++ {
		if got[i] == got[i-1] {
			t.Fatalf("video %s served twice from one queue", got[i])
		}
	}
}

func TestShuffle_IsPermutation(t *testing.T) {
	refs := catalogOf(50)
	shuffled := append([]string(nil), refs...)
	shuffle(rand.New(rand.NewSource(42)), shuffled)

	sorted := append([]string(nil), shuffled...)
	sort.Strings(sorted)
	want := append([]string(nil), refs...)
	sort.Strings(want)
	for i := range want {
		if sorted[i] != want[i] {
			t.Fatalf("shuffle lost or duplicated entries")
		}
	}
}
