package session

import (
	"path/filepath"
	"sync"

	"github.com/shortsfeed/shortsfeed/internal/database"
	"github.com/shortsfeed/shortsfeed/internal/watch"
)

// KVFactory returns the storage a device's watch history lives in.
type KVFactory func(deviceID string) watch.KV

// FileKVs keeps each device's history in its own directory under stateDir.
func FileKVs(stateDir string) KVFactory {
	return func(deviceID string) watch.KV {
		return watch.FileKV{Dir: filepath.Join(stateDir, filepath.Base(deviceID))}
	}
}

func PostgresKVs(db database.DBTX) KVFactory {
	return func(deviceID string) watch.KV {
		return watch.NewPostgresKV(db, deviceID)
	}
}

// MemoryKVs holds history in process memory. The values outlive engine
// eviction but not a restart.
func MemoryKVs() KVFactory {
	var mu sync.Mutex
	kvs := make(map[string]*watch.MemoryKV)
	return func(deviceID string) watch.KV {
		mu.Lock()
		defer mu.Unlock()
		kv, ok := kvs[deviceID]
		if !ok {
			kv = watch.NewMemoryKV()
			kvs[deviceID] = kv
		}
		return kv
	}
}
