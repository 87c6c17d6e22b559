package cache

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/galleriad/immich-cache/utils"
	lrucache "github.com/hashicorp/golang-lru"
	log "github.com/sirupsen/logrus"
	"golang.org/x/xerrors"
)

// DiskEntry implements Entry with file-backed payloads
type DiskEntry struct {
	key          string
	kind         Kind
	contentType  string
	size         int
	creationTime time.Time
	filePath     string
}

// GetKey returns key of the entry
func (entry *DiskEntry) GetKey() string {
	return entry.key
}

// GetKind returns kind of the entry
func (entry *DiskEntry) GetKind() Kind {
	return entry.kind
}

// GetContentType returns content type of the entry payload
func (entry *DiskEntry) GetContentType() string {
	return entry.contentType
}

// GetSize returns the payload size of the entry
func (entry *DiskEntry) GetSize() int {
	return entry.size
}

// GetCreationTime returns creation time of the entry
func (entry *DiskEntry) GetCreationTime() time.Time {
	return entry.creationTime
}

// GetData returns the payload of the entry
func (entry *DiskEntry) GetData() ([]byte, error) {
	data, err := os.ReadFile(entry.filePath)
	if err != nil {
		return nil, xerrors.Errorf("failed to read cache file %s: %w", entry.filePath, err)
	}
	return data, nil
}

func (entry *DiskEntry) deleteDataFile() error {
	err := os.Remove(entry.filePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return xerrors.Errorf("failed to remove cache file %s: %w", entry.filePath, err)
	}
	return nil
}

// DiskStore implements Store with payloads on disk and an LRU entry index
type DiskStore struct {
	entryCap int
	rootPath string
	cache    *lrucache.Cache
	kinds    map[Kind]map[string]bool // key = kind, value = cache keys for a kind
	mutex    sync.Mutex
}

// NewDiskStore creates a new DiskStore rooted at rootPath.
// The store keeps at most entryCap entries; the least recently used
// entry and its data file are evicted beyond that.
// Data files left behind by a previous process are removed at startup:
// the index lives in memory and file names are key hashes, so leftover
// files can never be served again.
func NewDiskStore(rootPath string, entryCap int) (Store, error) {
	for _, kind := range Kinds {
		kindPath := filepath.Join(rootPath, string(kind))

		err := os.RemoveAll(kindPath)
		if err != nil {
			return nil, xerrors.Errorf("failed to clear dir %s: %w", kindPath, err)
		}

		err = os.MkdirAll(kindPath, 0766)
		if err != nil {
			return nil, xerrors.Errorf("failed to make dir %s: %w", kindPath, err)
		}
	}

	diskStore := &DiskStore{
		entryCap: entryCap,
		rootPath: rootPath,
		cache:    nil,
		kinds:    map[Kind]map[string]bool{},
	}

	lruCache, err := lrucache.NewWithEvict(entryCap, diskStore.onEvicted)
	if err != nil {
		return nil, xerrors.Errorf("failed to create LRU cache: %w", err)
	}

	diskStore.cache = lruCache
	return diskStore, nil
}

// Release releases resources and removes all cached files
func (store *DiskStore) Release() {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	// clear
	store.kinds = map[Kind]map[string]bool{}
	store.cache.Purge()

	os.RemoveAll(store.rootPath)
}

// GetRootPath returns root path of the disk store
func (store *DiskStore) GetRootPath() string {
	return store.rootPath
}

// GetTotalEntries returns total number of entries in the store
func (store *DiskStore) GetTotalEntries() int {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	return store.cache.Len()
}

// GetEntryKeys returns all entry keys
func (store *DiskStore) GetEntryKeys() []string {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	keys := []string{}
	for _, key := range store.cache.Keys() {
		if strkey, ok := key.(string); ok {
			keys = append(keys, strkey)
		}
	}
	return keys
}

// GetEntryKeysForKind returns all entry keys for the given kind
func (store *DiskStore) GetEntryKeysForKind(kind Kind) []string {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	keys := []string{}
	if cacheKind, ok := store.kinds[kind]; ok {
		for key := range cacheKind {
			if store.cache.Contains(key) {
				keys = append(keys, key)
			}
		}
	}
	return keys
}

// CreateEntry creates a new entry, replacing any existing entry at the same key.
// The entry is stamped with the caller's creationTime so expiry and the
// data on disk share one time source.
// The data file is written next to a temp file and renamed so a concurrent
// reader observes either the old or the new payload in full.
func (store *DiskStore) CreateEntry(key string, kind Kind, contentType string, data []byte, creationTime time.Time) (Entry, error) {
	if !kind.IsValid() {
		return nil, xerrors.Errorf("unknown cache kind %q", kind)
	}

	filePath := filepath.Join(store.rootPath, string(kind), utils.MakeHash(key))
	tempPath := filePath + ".tmp"

	err := os.WriteFile(tempPath, data, 0666)
	if err != nil {
		return nil, xerrors.Errorf("failed to write cache file %s: %w", tempPath, err)
	}

	err = os.Rename(tempPath, filePath)
	if err != nil {
		os.Remove(tempPath)
		return nil, xerrors.Errorf("failed to place cache file %s: %w", filePath, err)
	}

	entry := &DiskEntry{
		key:          key,
		kind:         kind,
		contentType:  contentType,
		size:         len(data),
		creationTime: creationTime,
		filePath:     filePath,
	}

	store.mutex.Lock()
	defer store.mutex.Unlock()

	store.cache.Add(key, entry)

	if cacheKind, ok := store.kinds[kind]; ok {
		cacheKind[key] = true
	} else {
		cacheKind = map[string]bool{}
		cacheKind[key] = true
		store.kinds[kind] = cacheKind
	}

	return entry, nil
}

// HasEntry checks if the entry for the given key is present
func (store *DiskStore) HasEntry(key string) bool {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	return store.cache.Contains(key)
}

// GetEntry returns an entry with the given key
func (store *DiskStore) GetEntry(key string) Entry {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	if entry, ok := store.cache.Get(key); ok {
		if cacheEntry, ok := entry.(*DiskEntry); ok {
			return cacheEntry
		}
	}

	return nil
}

// DeleteEntry deletes an entry with the given key,
// returning whether an entry was present
func (store *DiskStore) DeleteEntry(key string) bool {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	return store.cache.Remove(key)
}

// DeleteAllEntries deletes all entries and returns the number removed
func (store *DiskStore) DeleteAllEntries() int {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	removed := store.cache.Len()

	store.kinds = map[Kind]map[string]bool{}
	store.cache.Purge()

	return removed
}

// DeleteAllEntriesForKind deletes all entries of the given kind
// and returns the number removed
func (store *DiskStore) DeleteAllEntriesForKind(kind Kind) int {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	removed := 0
	if cacheKind, ok := store.kinds[kind]; ok {
		for key := range cacheKind {
			if store.cache.Remove(key) {
				removed++
			}
		}
	}
	return removed
}

func (store *DiskStore) onEvicted(key interface{}, entry interface{}) {
	logger := log.WithFields(log.Fields{
		"package":  "cache",
		"struct":   "DiskStore",
		"function": "onEvicted",
	})

	if cacheEntry, ok := entry.(*DiskEntry); ok {
		err := cacheEntry.deleteDataFile()
		if err != nil {
			logger.WithError(err).Warnf("failed to delete data file for evicted entry %s", cacheEntry.key)
		}

		if cacheKind, ok := store.kinds[cacheEntry.kind]; ok {
			delete(cacheKind, cacheEntry.key)

			if len(cacheKind) == 0 {
				delete(store.kinds, cacheEntry.kind)
			}
		}
	}
}
