// Package storage is a small JSON-file-backed key-value store used for the
// ancillary data that must survive restarts (personality descriptions). The
// contextual memory subsystem deliberately does not use it — that cache is
// in-memory only.
package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// DataStore keeps a map in memory and flushes it atomically to one JSON
// file. Safe for concurrent use.
type DataStore struct {
	mu           sync.RWMutex
	data         map[string]any
	file         string
	lastChecksum string

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New opens (or creates) the store at filePath and starts the autosave loop.
func New(filePath string) (*DataStore, error) {
	if filePath == "" {
		return nil, fmt.Errorf("file path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	ds := &DataStore{
		data:   make(map[string]any),
		file:   filePath,
		ctx:    ctx,
		cancel: cancel,
	}

	if b, err := os.ReadFile(filePath); err == nil {
		if err := json.Unmarshal(b, &ds.data); err != nil {
			cancel()
			return nil, fmt.Errorf("load %s: %w", filePath, err)
		}
	} else if !os.IsNotExist(err) {
		cancel()
		return nil, fmt.Errorf("stat %s: %w", filePath, err)
	}

	ds.wg.Add(1)
	go ds.autoSave(10 * time.Second)
	return ds, nil
}

// Get returns the raw value for key.
func (ds *DataStore) Get(key string) (any, bool) {
	ds.mu.RLock()
	defer ds.mu.RUnlock()
	v, ok := ds.data[key]
	return v, ok
}

// Add stores a value under key.
func (ds *DataStore) Add(key string, value any) {
	ds.mu.Lock()
	ds.data[key] = value
	ds.mu.Unlock()
}

// Delete removes a key.
func (ds *DataStore) Delete(key string) {
	ds.mu.Lock()
	delete(ds.data, key)
	ds.mu.Unlock()
}

// Keys returns all stored keys.
func (ds *DataStore) Keys() []string {
	ds.mu.RLock()
	defer ds.mu.RUnlock()
	keys := make([]string, 0, len(ds.data))
	for k := range ds.data {
		keys = append(keys, k)
	}
	return keys
}

// Save flushes to disk when the content changed since the last flush.
func (ds *DataStore) Save() error {
	ds.mu.RLock()
	b, err := json.MarshalIndent(ds.data, "", "  ")
	ds.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("marshal store: %w", err)
	}

	sum := sha256.Sum256(b)
	checksum := hex.EncodeToString(sum[:])
	ds.mu.Lock()
	unchanged := checksum == ds.lastChecksum
	if !unchanged {
		ds.lastChecksum = checksum
	}
	ds.mu.Unlock()
	if unchanged {
		return nil
	}
	return ds.writeFileAtomic(b)
}

// Close stops the autosave loop and performs a final flush.
func (ds *DataStore) Close() error {
	ds.cancel()
	ds.wg.Wait()
	return ds.Save()
}

func (ds *DataStore) autoSave(interval time.Duration) {
	defer ds.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ds.ctx.Done():
			return
		case <-ticker.C:
			if err := ds.Save(); err != nil {
				log.Printf("[ERR] datastore autosave: %v", err)
			}
		}
	}
}

// writeFileAtomic writes via temp file + rename so a crash never leaves a
// half-written store.
func (ds *DataStore) writeFileAtomic(b []byte) error {
	tmp := ds.file + ".tmp"
	if err := os.WriteFile(tmp, b, 0644); err != nil {
		return fmt.Errorf("write temp store: %w", err)
	}
	if err := os.Rename(tmp, ds.file); err != nil {
		return fmt.Errorf("replace store: %w", err)
	}
	return nil
}
