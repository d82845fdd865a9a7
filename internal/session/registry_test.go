package session

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/shortsfeed/shortsfeed/internal/device"
	"github.com/shortsfeed/shortsfeed/internal/feed"
	"github.com/shortsfeed/shortsfeed/internal/watch"
)

type staticDiscoverer []string

func (s staticDiscoverer) Discover(context.Context) ([]string, error) {
	return append([]string(nil), s...), nil
}

var catalog = staticDiscoverer{"videos/a.mp4", "videos/b.mp4", "videos/c.mp4"}

func engineFor(r *Registry, id string) *feed.Engine {
	eng, release := r.Acquire(context.Background(), id)
	release()
	return eng
}

func TestAcquire_SameDeviceSharesEngine(t *testing.T) {
	r := NewRegistry(Config{Discoverer: catalog})

	a := engineFor(r, "dev-1")
	b := engineFor(r, "dev-1")
	if a != b {
		t.Fatal("expected the same engine for one device")
	}
	if c := engineFor(r, "dev-2"); c == a {
		t.Fatal("expected separate engines per device")
	}
	if r.Len() != 2 {
		t.Errorf("expected 2 engines, got %d", r.Len())
	}
	if a.TotalCount() != 3 {
		t.Errorf("expected engine initialized with 3 videos, got %d", a.TotalCount())
	}
}

func TestAcquire_ConcurrentFirstUse(t *testing.T) {
	r := NewRegistry(Config{Discoverer: catalog})
	var wg sync.WaitGroup
	engines := make(chan any, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			engines <- engineFor(r, "dev-1")
		}()
	}
	wg.Wait()
	close(engines)

	var first any
	for e := range engines {
		if first == nil {
			first = e
		} else if e != first {
			t.Fatal("expected all callers to get one engine")
		}
	}
}

func TestEvict_HistorySurvives(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	r := NewRegistry(Config{Discoverer: catalog, IdleTTL: time.Minute})
	r.now = func() time.Time { return now }
	ctx := context.Background()

	engineFor(r, "dev-1").MarkWatched(ctx, "videos/a.mp4")

	now = now.Add(2 * time.Minute)
	engineFor(r, "dev-2")
	if n := r.Evict(); n != 1 {
		t.Fatalf("expected 1 eviction, got %d", n)
	}
	if r.Len() != 1 {
		t.Fatalf("expected 1 remaining engine, got %d", r.Len())
	}

	if got := engineFor(r, "dev-1").Stats().Watched; got != 1 {
		t.Errorf("expected watch history to survive eviction, got %d watched", got)
	}
}

func TestEvict_SkipsHeldEngines(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	r := NewRegistry(Config{Discoverer: catalog, IdleTTL: time.Minute})
	r.now = func() time.Time { return now }
	ctx := context.Background()

	held, release := r.Acquire(ctx, "dev-1")
	now = now.Add(2 * time.Minute)
	if n := r.Evict(); n != 0 {
		t.Fatalf("expected held engine to survive eviction, evicted %d", n)
	}
	held.MarkWatched(ctx, "videos/a.mp4")
	release()
	release()

	if got := engineFor(r, "dev-1"); got != held {
		t.Fatal("expected the held engine to still be registered")
	}
	now = now.Add(2 * time.Minute)
	if n := r.Evict(); n != 1 {
		t.Fatalf("expected released engine to be evicted once idle, got %d", n)
	}
}

func TestFileKVs_ScopesByDevice(t *testing.T) {
	dir := t.TempDir()
	kvs := FileKVs(dir)
	ctx := context.Background()

	watch.Open(ctx, kvs("dev-1")).MarkWatched(ctx, "videos/a.mp4")

	if !watch.Open(ctx, kvs("dev-1")).IsWatched("videos/a.mp4") {
		t.Error("expected history for dev-1")
	}
	if watch.Open(ctx, kvs("dev-2")).IsWatched("videos/a.mp4") {
		t.Error("expected dev-2 to have its own history")
	}
	kv := kvs("../escape").(watch.FileKV)
	if filepath.Dir(kv.Dir) != dir {
		t.Errorf("expected device dir inside state dir, got %s", kv.Dir)
	}
}

func TestDevices_Touch(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	mock.ExpectExec(`INSERT INTO devices`).
		WithArgs("dev-1", "Firefox", "Windows", "Desktop", "DE").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	info := device.Info{Browser: "Firefox", OS: "Windows", Class: "Desktop"}
	if err := NewDevices(mock).Touch(context.Background(), "dev-1", info, "DE"); err != nil {
		t.Fatalf("touch: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestDevices_Count(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM devices`).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(7))

	n, err := NewDevices(mock).Count(context.Background())
	if err != nil || n != 7 {
		t.Fatalf("expected 7, got %d (%v)", n, err)
	}
}

func TestVisit_RecordsCountry(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	mock.ExpectExec(`INSERT INTO devices`).
		WithArgs("dev-1", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), "IN").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	r := NewRegistry(Config{
		Discoverer: catalog,
		Devices:    NewDevices(mock),
		Country:    func(ip string) string { return map[string]string{"203.0.113.9": "IN"}[ip] },
	})
	r.Visit(context.Background(), "dev-1", "Mozilla/5.0", "203.0.113.9")

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestVisit_ErrorIsAbsorbed(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	mock.ExpectExec(`INSERT INTO devices`).WillReturnError(errors.New("connection refused"))

	r := NewRegistry(Config{Discoverer: catalog, Devices: NewDevices(mock)})
	r.Visit(context.Background(), "dev-1", "", "")
}

func TestVisit_NoDevicesTable(t *testing.T) {
	r := NewRegistry(Config{Discoverer: catalog})
	r.Visit(context.Background(), "dev-1", "", "")
}

func TestKnownDevices(t *testing.T) {
	if _, ok, _ := NewRegistry(Config{Discoverer: catalog}).KnownDevices(context.Background()); ok {
		t.Error("expected no count without a device table")
	}

	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM devices`).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(3))

	n, ok, err := NewRegistry(Config{Discoverer: catalog, Devices: NewDevices(mock)}).KnownDevices(context.Background())
	if !ok || err != nil || n != 3 {
		t.Fatalf("expected 3 known devices, got %d ok=%v err=%v", n, ok, err)
	}
}
