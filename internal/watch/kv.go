package watch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/shortsfeed/shortsfeed/internal/database"
)

// KV is the device-local key/value storage a Store persists into.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
}

type MemoryKV struct {
	mu     sync.Mutex
	values map[string][]byte
	writes int
}

func NewMemoryKV() *MemoryKV {
	return &MemoryKV{values: make(map[string][]byte)}
}

func (m *MemoryKV) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (m *MemoryKV) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = append([]byte(nil), value...)
	m.writes++
	return nil
}

// Writes reports how many Set calls succeeded.
func (m *MemoryKV) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

// FileKV stores each key as a file under Dir. Writes are atomic.
type FileKV struct {
	Dir string
}

func (f FileKV) path(key string) string {
	return filepath.Join(f.Dir, url.PathEscape(key)+".json")
}

func (f FileKV) Get(_ context.Context, key string) ([]byte, bool, error) {
	file, err := os.Open(f.path(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("open state: %w", err)
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, false, fmt.Errorf("read state: %w", err)
	}
	return data, true, nil
}

func (f FileKV) Set(_ context.Context, key string, value []byte) error {
	if err := os.MkdirAll(f.Dir, 0o750); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	path := f.path(key)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, value, 0o600); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("write tmp: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename tmp: %w", err)
	}
	return nil
}

// PostgresKV keeps a device's keys in the device_state table.
type PostgresKV struct {
	db       database.DBTX
	deviceID string
}

func NewPostgresKV(db database.DBTX, deviceID string) *PostgresKV {
	return &PostgresKV{db: db, deviceID: deviceID}
}

func (p *PostgresKV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := p.db.QueryRow(ctx,
		`SELECT value FROM device_state WHERE device_id = $1 AND key = $2`,
		p.deviceID, key,
	).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("select device state: %w", err)
	}
	return value, true, nil
}

func (p *PostgresKV) Set(ctx context.Context, key string, value []byte) error {
	_, err := p.db.Exec(ctx,
		`INSERT INTO device_state (device_id, key, value, updated_at)
		 VALUES ($1, $2, $3, now())
		 ON CONFLICT (device_id, key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
		p.deviceID, key, value,
	)
	if err != nil {
		return fmt.Errorf("upsert device state: %w", err)
	}
	return nil
}
