package internal

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

const cacheVersion = "1"

// CacheManager keeps downloaded assets on disk. A YAML index records what
// each file holds and when it was fetched; entries older than maxAge are
// treated as missing.
type CacheManager struct {
	cacheDir string
	maxAge   time.Duration
	now      func() time.Time

	mu sync.Mutex
}

// CacheEntry describes one cached asset
type CacheEntry struct {
	Key       string    `yaml:"key"`
	File      string    `yaml:"file"`
	Size      int64     `yaml:"size"`
	FetchedAt time.Time `yaml:"fetched_at"`
}

// CacheIndex is the YAML index of all cached assets
type CacheIndex struct {
	Version   string       `yaml:"cache_version"`
	UpdatedAt time.Time    `yaml:"updated_at"`
	Entries   []CacheEntry `yaml:"entries"`
}

// NewCacheManager creates a cache rooted at cacheDir. A maxAge of zero
// keeps entries forever.
func NewCacheManager(cacheDir string, maxAge time.Duration) *CacheManager {
	return &CacheManager{cacheDir: cacheDir, maxAge: maxAge, now: time.Now}
}

// Dir returns the cache directory path
func (cm *CacheManager) Dir() string {
	return cm.cacheDir
}

// IndexPath returns the path to the index YAML file
func (cm *CacheManager) IndexPath() string {
	return filepath.Join(cm.cacheDir, "index.yaml")
}

func (cm *CacheManager) fileFor(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:16]) + path.Ext(key)
}

// LoadIndex loads the index. A missing or outdated index is empty.
func (cm *CacheManager) LoadIndex() (*CacheIndex, error) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	return cm.loadIndexLocked()
}

func (cm *CacheManager) loadIndexLocked() (*CacheIndex, error) {
	data, err := os.ReadFile(cm.IndexPath())
	if errors.Is(err, fs.ErrNotExist) {
		return &CacheIndex{Version: cacheVersion}, nil
	}
	if err != nil {
		return nil, &StorageError{Path: cm.IndexPath(), Op: "read", Err: err}
	}
	var index CacheIndex
	if err := yaml.Unmarshal(data, &index); err != nil {
		return nil, &StorageError{Path: cm.IndexPath(), Op: "parse", Err: err}
	}
	if index.Version != cacheVersion {
		LogDebug("Discarding asset cache index version %q", index.Version)
		return &CacheIndex{Version: cacheVersion}, nil
	}
	return &index, nil
}

func (cm *CacheManager) saveIndexLocked(index *CacheIndex) error {
	index.Version = cacheVersion
	index.UpdatedAt = cm.now()
	data, err := yaml.Marshal(index)
	if err != nil {
		return fmt.Errorf("failed to marshal index: %w", err)
	}
	if err := os.WriteFile(cm.IndexPath(), data, 0644); err != nil {
		return &StorageError{Path: cm.IndexPath(), Op: "write", Err: err}
	}
	return nil
}

// Get returns the cached bytes for key if present and fresh
func (cm *CacheManager) Get(key string) ([]byte, bool) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	index, err := cm.loadIndexLocked()
	if err != nil {
		LogWarn("Asset cache unreadable: %v", err)
		return nil, false
	}
	for _, e := range index.Entries {
		if e.Key != key {
			continue
		}
		if cm.maxAge > 0 && cm.now().Sub(e.FetchedAt) > cm.maxAge {
			return nil, false
		}
		data, err := os.ReadFile(filepath.Join(cm.cacheDir, e.File))
		if err != nil || int64(len(data)) != e.Size {
			return nil, false
		}
		return data, true
	}
	return nil, false
}

// Put stores data under key and records it in the index
func (cm *CacheManager) Put(key string, data []byte) error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if err := os.MkdirAll(cm.cacheDir, 0755); err != nil {
		return &StorageError{Path: cm.cacheDir, Op: "mkdir", Err: err}
	}
	index, err := cm.loadIndexLocked()
	if err != nil {
		return err
	}

	entry := CacheEntry{Key: key, File: cm.fileFor(key), Size: int64(len(data)), FetchedAt: cm.now()}
	if err := os.WriteFile(filepath.Join(cm.cacheDir, entry.File), data, 0644); err != nil {
		return &StorageError{Path: entry.File, Op: "write", Err: err}
	}

	replaced := false
	for i := range index.Entries {
		if index.Entries[i].Key == key {
			index.Entries[i] = entry
			replaced = true
			break
		}
	}
	if !replaced {
		index.Entries = append(index.Entries, entry)
	}
	return cm.saveIndexLocked(index)
}

// Clear removes every cached asset and the index
func (cm *CacheManager) Clear() error {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	if err := os.RemoveAll(cm.cacheDir); err != nil {
		return &StorageError{Path: cm.cacheDir, Op: "remove", Err: err}
	}
	return nil
}
